package config

import (
	"os"

	"gopkg.in/yaml.v2"
)

type SysConfig struct {
	Appid    string `yaml:"appid" json:"appid"`
	Location string `yaml:"location" json:"location"`
	Workdir  string `yaml:"workdir" json:"workdir"`
	Debug    bool   `yaml:"debug" json:"debug"`
}

type WebConfig struct {
	Host string `yaml:"host" json:"host"`
	Port int    `yaml:"port" json:"port"`
}

type DBConfig struct {
	Type     string `yaml:"type" json:"type"`
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port" json:"port"`
	Name     string `yaml:"name" json:"name"`
	User     string `yaml:"user" json:"user"`
	Passwd   string `yaml:"passwd" json:"passwd"`
	MaxConn  int    `yaml:"max_conn" json:"max_conn"`
	IdleConn int    `yaml:"idle_conn" json:"idle_conn"`
}

type LogConfig struct {
	Mode       string `yaml:"mode" json:"mode"`
	FileEnable bool   `yaml:"file_enable" json:"file_enable"`
	Filename   string `yaml:"filename" json:"filename"`
}

type AppConfig struct {
	System   SysConfig `yaml:"system" json:"system"`
	Web      WebConfig `yaml:"web" json:"web"`
	Database DBConfig  `yaml:"database" json:"database"`
	Logger   LogConfig `yaml:"logger" json:"logger"`
}

var DefaultAppConfig = &AppConfig{
	System: SysConfig{
		Appid:    "wadesk",
		Location: "Asia/Shanghai",
		Workdir:  "/var/wadesk",
		Debug:    true,
	},
	Web: WebConfig{
		Host: "0.0.0.0",
		Port: 1816,
	},
	Database: DBConfig{
		Type:     "postgres",
		Host:     "127.0.0.1",
		Port:     5432,
		Name:     "wadesk",
		User:     "postgres",
		Passwd:   "",
		MaxConn:  100,
		IdleConn: 10,
	},
	Logger: LogConfig{
		Mode:       "development",
		FileEnable: true,
		Filename:   "/var/wadesk/wadesk.log",
	},
}

func setEnvValue(name string, f func(v string)) {
	if v, ok := os.LookupEnv(name); ok {
		f(v)
	}
}

// LoadConfig reads configuration from the given YAML file, falling back to
// defaults when the file is absent. Environment variables override file values.
func LoadConfig(cfile string) *AppConfig {
	cfg := DefaultAppConfig
	if cfile != "" {
		if _, err := os.Stat(cfile); err == nil {
			data, err := os.ReadFile(cfile)
			if err == nil {
				fcfg := new(AppConfig)
				if err := yaml.Unmarshal(data, fcfg); err == nil {
					cfg = fcfg
				}
			}
		}
	}

	setEnvValue("WADESK_SYSTEM_WORKDIR", func(v string) { cfg.System.Workdir = v })
	setEnvValue("WADESK_SYSTEM_DEBUG", func(v string) { cfg.System.Debug = v == "true" })
	setEnvValue("WADESK_WEB_HOST", func(v string) { cfg.Web.Host = v })
	setEnvValue("WADESK_DB_HOST", func(v string) { cfg.Database.Host = v })
	setEnvValue("WADESK_DB_NAME", func(v string) { cfg.Database.Name = v })
	setEnvValue("WADESK_DB_USER", func(v string) { cfg.Database.User = v })
	setEnvValue("WADESK_DB_PWD", func(v string) { cfg.Database.Passwd = v })

	return cfg
}
