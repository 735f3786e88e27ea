package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/fitbarz/kitcontrol/config"
	"github.com/fitbarz/kitcontrol/internal/adminapi"
	"github.com/fitbarz/kitcontrol/internal/app"
	"github.com/fitbarz/kitcontrol/internal/dispatch"
	"github.com/fitbarz/kitcontrol/internal/webserver"
)

var (
	cfile  = flag.String("c", "/etc/kitcontrol.yml", "config file path")
	initdb = flag.Bool("initdb", false, "drop and recreate all tables, then exit")
)

func main() {
	flag.Parse()

	cfgPath := *cfile
	if _, err := os.Stat(cfgPath); err != nil {
		cfgPath = ""
	}
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	application := app.NewApplication(cfg)
	application.Init(cfg)
	defer application.Release()

	if *initdb {
		application.InitDb()
		zap.S().Info("database initialized")
		return
	}

	logRepo := dispatch.NewGormLogRepository(application.DB())
	// No capture device is compiled into the server build; decoded
	// codes arrive through the scan endpoint. A device integration
	// supplies a ScannerFactory here.
	manager := dispatch.NewManager(logRepo, application.RoleResolver(), nil)

	webserver.Init(cfg, application.DB())
	adminapi.Init(cfg, manager)

	errCh := make(chan error, 1)
	go func() {
		errCh <- webserver.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			zap.S().Errorf("web server error: %v", err)
		}
	case sig := <-sigCh:
		zap.S().Infof("received signal %s, shutting down", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := webserver.Shutdown(ctx); err != nil {
			zap.S().Errorf("shutdown error: %v", err)
		}
	}
}
