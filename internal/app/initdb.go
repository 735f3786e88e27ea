package app

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/fitbarz/kitcontrol/internal/domain"
	"github.com/fitbarz/kitcontrol/pkg/common"
)

func (a *Application) checkSuper() {
	const superUsername = "admin"
	const defaultPassword = "kitcontrol"

	hashed, err := bcrypt.GenerateFromPassword([]byte(defaultPassword), bcrypt.DefaultCost)
	if err != nil {
		zap.L().Error("failed to hash default password", zap.Error(err))
		return
	}

	var operator domain.SysOpr
	err = a.gormDB.Where("username = ?", superUsername).First(&operator).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		if err := a.gormDB.Create(&domain.SysOpr{
			ID:        common.UUIDint64(),
			Realname:  "administrator",
			Mobile:    "0000",
			Email:     common.NA,
			Username:  superUsername,
			Password:  string(hashed),
			Level:     "super",
			Status:    common.ENABLED,
			Remark:    "super",
			LastLogin: time.Now(),
		}).Error; err != nil {
			zap.L().Error("failed to create default super admin", zap.Error(err))
		} else {
			zap.L().Info("initialized default super admin account", zap.String("username", superUsername))
		}
		return
	case err != nil:
		zap.L().Error("failed to query super admin", zap.Error(err))
		return
	}

	resetLevel := !strings.EqualFold(operator.Level, "super")
	resetStatus := !strings.EqualFold(operator.Status, common.ENABLED)
	if !resetLevel && !resetStatus {
		return
	}

	updates := map[string]interface{}{
		"updated_at": time.Now(),
	}
	if resetLevel {
		updates["level"] = "super"
	}
	if resetStatus {
		updates["status"] = common.ENABLED
	}
	if err := a.gormDB.Model(&domain.SysOpr{}).Where("id = ?", operator.ID).Updates(updates).Error; err != nil {
		zap.L().Error("failed to repair super admin account", zap.Error(err))
		return
	}
	zap.L().Warn("repaired default super admin account",
		zap.String("username", superUsername),
		zap.Bool("levelReset", resetLevel),
		zap.Bool("statusEnabled", resetStatus))
}

type settingDefault struct {
	Key         string
	Default     string
	Description string
}

var settingDefaults = []settingDefault{
	{"dispatch.privileged_operator", "FS", "Operator identifier allowed to confirm components without a scan"},
	{"backup.auto_enabled", "true", "Write a scheduled backup snapshot to the workdir"},
	{"backup.cron", "0 0 3 * * *", "Cron expression for the scheduled backup snapshot"},
	{"backup.keep", "14", "Scheduled backup snapshots kept before the oldest is removed"},
}

func (a *Application) checkSettings() {
	for sortid, schema := range settingDefaults {
		parts := strings.SplitN(schema.Key, ".", 2)
		if len(parts) != 2 {
			zap.L().Warn("invalid config key format", zap.String("key", schema.Key))
			continue
		}
		category := parts[0]
		name := parts[1]

		var count int64
		a.gormDB.Model(&domain.SysConfig{}).
			Where("type = ? and name = ?", category, name).
			Count(&count)

		if count == 0 {
			a.gormDB.Create(&domain.SysConfig{
				ID:     common.UUIDint64(),
				Sort:   sortid,
				Type:   category,
				Name:   name,
				Value:  schema.Default,
				Remark: schema.Description,
			})
			zap.L().Info("initialized config",
				zap.String("key", schema.Key),
				zap.String("default", schema.Default))
		}
	}
}

// checkDefaultCatalog seeds the catalog on first load so the dispatch
// screen is never empty on a fresh install.
func (a *Application) checkDefaultCatalog() {
	var count int64
	a.gormDB.Model(&domain.Product{}).Count(&count)
	if count > 0 {
		return
	}

	now := time.Now()
	product := domain.Product{
		ID:        common.UUIDint64(),
		Name:      "BANCA PLANA PROFESIONAL",
		Code:      "FB0318",
		ImageURL:  "https://picsum.photos/400/300",
		Status:    domain.StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	components := []domain.Component{
		{Name: "Estructura Base", Code: "FB0318-A"},
		{Name: "Cojín Principal", Code: "FB0318-B"},
		{Name: "Kit Tornillería", Code: "FB0318-C"},
	}
	for i := range components {
		components[i].ID = common.UUIDint64()
		components[i].ProductID = product.ID
		components[i].Status = domain.StatusActive
		components[i].Sort = i + 1
		components[i].CreatedAt = now
		components[i].UpdatedAt = now
	}
	product.Components = components

	if err := a.gormDB.Create(&product).Error; err != nil {
		zap.L().Error("failed to seed default catalog", zap.Error(err))
		return
	}
	zap.L().Info("initialized default catalog",
		zap.String("product", product.Name),
		zap.Int("components", len(components)))
}
