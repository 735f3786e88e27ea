package app

import (
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"github.com/fitbarz/kitcontrol/config"
	"github.com/fitbarz/kitcontrol/internal/dispatch"
)

// DBProvider provides database access
type DBProvider interface {
	DB() *gorm.DB
}

// ConfigProvider provides application configuration
type ConfigProvider interface {
	Config() *config.AppConfig
}

// SettingsProvider provides system settings access
type SettingsProvider interface {
	GetSettingsStringValue(category, name string) string
	GetSettingsInt64Value(category, name string) int64
	GetSettingsBoolValue(category, name string) bool
}

// SchedulerProvider provides task scheduling capability
type SchedulerProvider interface {
	Scheduler() *cron.Cron
}

// AppContext combines all provider interfaces for full application context.
// Services should depend on specific providers or this combined interface.
type AppContext interface {
	DBProvider
	ConfigProvider
	SettingsProvider
	SchedulerProvider

	// Application lifecycle methods
	MigrateDB(track bool) error
	InitDb()
	DropAll()

	// PrivilegedOperator returns the identifier allowed to confirm
	// dispatch components without a scan.
	PrivilegedOperator() string
	// RoleResolver resolves dispatch operator roles at login.
	RoleResolver() dispatch.RoleResolver
}
