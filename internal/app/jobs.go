package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/fitbarz/kitcontrol/internal/backup"
)

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

func (a *Application) initJob() {
	loc, _ := time.LoadLocation(a.appConfig.System.Location)
	if loc == nil {
		loc = time.Local
	}
	a.sched = cron.New(cron.WithParser(cronParser), cron.WithLocation(loc))

	if a.GetSettingsBoolValue("backup", "auto_enabled") {
		spec := a.GetSettingsStringValue("backup", "cron")
		if spec == "" {
			spec = "0 0 3 * * *"
		}
		if _, err := a.sched.AddFunc(spec, a.runBackupSnapshot); err != nil {
			zap.L().Error("failed to schedule backup snapshot", zap.String("spec", spec), zap.Error(err))
		} else {
			zap.L().Info("scheduled backup snapshot", zap.String("spec", spec))
		}
	}

	a.sched.Start()
}

// runBackupSnapshot writes a full export to workdir/backups and prunes
// the oldest snapshots past the configured keep count.
func (a *Application) runBackupSnapshot() {
	dir := filepath.Join(a.appConfig.System.Workdir, "backups")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		zap.L().Error("failed to create backup dir", zap.String("dir", dir), zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	codec := backup.NewCodec(a.gormDB)
	data, err := codec.ExportJSON(ctx)
	if err != nil {
		zap.L().Error("backup snapshot export failed", zap.Error(err))
		return
	}

	name := fmt.Sprintf("kitcontrol_backup_%s.json", time.Now().Format("2006-01-02_150405"))
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		zap.L().Error("backup snapshot write failed", zap.String("path", path), zap.Error(err))
		return
	}
	zap.L().Info("backup snapshot written", zap.String("path", path), zap.Int("bytes", len(data)))

	a.pruneBackups(dir)
}

func (a *Application) pruneBackups(dir string) {
	keep := int(a.GetSettingsInt64Value("backup", "keep"))
	if keep <= 0 {
		return
	}
	entries, err := filepath.Glob(filepath.Join(dir, "kitcontrol_backup_*.json"))
	if err != nil || len(entries) <= keep {
		return
	}
	sort.Strings(entries)
	for _, old := range entries[:len(entries)-keep] {
		if err := os.Remove(old); err != nil {
			zap.L().Warn("failed to prune old backup", zap.String("path", old), zap.Error(err))
		}
	}
}
