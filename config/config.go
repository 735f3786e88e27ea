package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type SystemConfig struct {
	Appid    string `yaml:"appid" mapstructure:"appid" json:"appid"`
	Location string `yaml:"location" mapstructure:"location" json:"location"`
	Workdir  string `yaml:"workdir" mapstructure:"workdir" json:"workdir"`
	Debug    bool   `yaml:"debug" mapstructure:"debug" json:"debug"`
}

type WebConfig struct {
	Host      string `yaml:"host" mapstructure:"host" json:"host"`
	Port      int    `yaml:"port" mapstructure:"port" json:"port"`
	Secret    string `yaml:"secret" mapstructure:"secret" json:"secret"`
	JwtExpire int    `yaml:"jwt_expire" mapstructure:"jwt_expire" json:"jwt_expire"` // hours
}

type DBConfig struct {
	Type     string `yaml:"type" mapstructure:"type" json:"type"` // postgres or sqlite
	Host     string `yaml:"host" mapstructure:"host" json:"host"`
	Port     int    `yaml:"port" mapstructure:"port" json:"port"`
	Name     string `yaml:"name" mapstructure:"name" json:"name"`
	User     string `yaml:"user" mapstructure:"user" json:"user"`
	Passwd   string `yaml:"passwd" mapstructure:"passwd" json:"passwd"`
	MaxConn  int    `yaml:"max_conn" mapstructure:"max_conn" json:"max_conn"`
	IdleConn int    `yaml:"idle_conn" mapstructure:"idle_conn" json:"idle_conn"`
	Debug    bool   `yaml:"debug" mapstructure:"debug" json:"debug"`
}

type LogConfig struct {
	Mode       string `yaml:"mode" mapstructure:"mode" json:"mode"` // development or production
	FileEnable bool   `yaml:"file_enable" mapstructure:"file_enable" json:"file_enable"`
	Filename   string `yaml:"filename" mapstructure:"filename" json:"filename"`
}

type AppConfig struct {
	System   SystemConfig `yaml:"system" mapstructure:"system" json:"system"`
	Web      WebConfig    `yaml:"web" mapstructure:"web" json:"web"`
	Database DBConfig     `yaml:"database" mapstructure:"database" json:"database"`
	Logger   LogConfig    `yaml:"logger" mapstructure:"logger" json:"logger"`
}

func DefaultAppConfig() *AppConfig {
	return &AppConfig{
		System: SystemConfig{
			Appid:    "kitcontrol",
			Location: "America/Santo_Domingo",
			Workdir:  "/var/kitcontrol",
			Debug:    false,
		},
		Web: WebConfig{
			Host:      "0.0.0.0",
			Port:      1816,
			Secret:    "9b6de5cc-kitcontrol-b712-7aef4f6aaf90",
			JwtExpire: 24,
		},
		Database: DBConfig{
			Type:     "postgres",
			Host:     "127.0.0.1",
			Port:     5432,
			Name:     "kitcontrol",
			User:     "postgres",
			Passwd:   "kitcontrol",
			MaxConn:  100,
			IdleConn: 10,
		},
		Logger: LogConfig{
			Mode:       "development",
			FileEnable: true,
			Filename:   "/var/kitcontrol/kitcontrol.log",
		},
	}
}

// LoadConfig reads the YAML configuration from cfile, falling back to
// defaults for anything unset. Environment variables prefixed KITCONTROL_
// override file values (KITCONTROL_DATABASE_HOST etc.) and work without
// a config file.
func LoadConfig(cfile string) (*AppConfig, error) {
	cfg := DefaultAppConfig()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("KITCONTROL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Every key must be known to viper for AutomaticEnv to consider it.
	v.SetDefault("system.appid", cfg.System.Appid)
	v.SetDefault("system.location", cfg.System.Location)
	v.SetDefault("system.workdir", cfg.System.Workdir)
	v.SetDefault("system.debug", cfg.System.Debug)
	v.SetDefault("web.host", cfg.Web.Host)
	v.SetDefault("web.port", cfg.Web.Port)
	v.SetDefault("web.secret", cfg.Web.Secret)
	v.SetDefault("web.jwt_expire", cfg.Web.JwtExpire)
	v.SetDefault("database.type", cfg.Database.Type)
	v.SetDefault("database.host", cfg.Database.Host)
	v.SetDefault("database.port", cfg.Database.Port)
	v.SetDefault("database.name", cfg.Database.Name)
	v.SetDefault("database.user", cfg.Database.User)
	v.SetDefault("database.passwd", cfg.Database.Passwd)
	v.SetDefault("database.max_conn", cfg.Database.MaxConn)
	v.SetDefault("database.idle_conn", cfg.Database.IdleConn)
	v.SetDefault("database.debug", cfg.Database.Debug)
	v.SetDefault("logger.mode", cfg.Logger.Mode)
	v.SetDefault("logger.file_enable", cfg.Logger.FileEnable)
	v.SetDefault("logger.filename", cfg.Logger.Filename)

	if cfile != "" {
		v.SetConfigFile(cfile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", cfile, err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
