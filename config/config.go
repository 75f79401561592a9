package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"insight-reports/utils"
)

type Config struct {
	Server struct {
		Listen    string `yaml:"listen"`
		LogDir    string `yaml:"log_dir"`
		ExportDir string `yaml:"export_dir"`
	} `yaml:"server"`
	Mongo struct {
		URI       string `yaml:"uri"`
		PrimaryDB string `yaml:"primary_db"`
	} `yaml:"mongo"`
	JWT struct {
		Secret            string `yaml:"secret"`
		ExpirationMinutes int    `yaml:"expiration_minutes"`
	} `yaml:"jwt"`
	Cache struct {
		ReportMaxSize    int `yaml:"report_max_size"`
		ReportTTLSeconds int `yaml:"report_ttl_seconds"`
		ResultMaxSize    int `yaml:"result_max_size"`
		ResultTTLSeconds int `yaml:"result_ttl_seconds"`
	} `yaml:"cache"`
	Export struct {
		Workers         int `yaml:"workers"`
		BatchSize       int `yaml:"batch_size"`
		RetentionDays   int `yaml:"retention_days"`
		MaxFileAgeHours int `yaml:"max_file_age_hours"` // durée max des artefacts sur disque
	} `yaml:"export"`
}

// Load lit le fichier yaml (relatif à la racine projet), puis applique
// les surcharges d'environnement (MONGODB_URI, PORT) et les défauts.
func Load(file string) (*Config, error) {
	var cfg Config
	root := utils.GetProjectRoot()
	cfgPath := filepath.Join(root, file)
	data, err := os.ReadFile(cfgPath)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if uri := os.Getenv("MONGODB_URI"); uri != "" {
		cfg.Mongo.URI = uri
	}
	if port := os.Getenv("PORT"); port != "" {
		cfg.Server.Listen = ":" + port
	}

	cfg.applyDefaults()

	if cfg.Mongo.URI == "" {
		return nil, fmt.Errorf("mongo.uri missing (set it in %s or via MONGODB_URI)", file)
	}
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Listen == "" {
		cfg.Server.Listen = ":3000"
	}
	if cfg.Server.LogDir == "" {
		cfg.Server.LogDir = "./logs"
	}
	if cfg.Server.ExportDir == "" {
		cfg.Server.ExportDir = "./exports"
	}
	if cfg.Mongo.PrimaryDB == "" {
		cfg.Mongo.PrimaryDB = "insights"
	}
	if cfg.JWT.ExpirationMinutes <= 0 {
		cfg.JWT.ExpirationMinutes = 60
	}
	if cfg.Cache.ReportMaxSize <= 0 {
		cfg.Cache.ReportMaxSize = 100
	}
	if cfg.Cache.ReportTTLSeconds <= 0 {
		cfg.Cache.ReportTTLSeconds = 600
	}
	if cfg.Cache.ResultMaxSize <= 0 {
		cfg.Cache.ResultMaxSize = 50
	}
	if cfg.Cache.ResultTTLSeconds <= 0 {
		cfg.Cache.ResultTTLSeconds = 60
	}
	if cfg.Export.Workers <= 0 {
		cfg.Export.Workers = 5
	}
	if cfg.Export.BatchSize <= 0 {
		cfg.Export.BatchSize = 1000
	}
	if cfg.Export.RetentionDays <= 0 {
		cfg.Export.RetentionDays = 7
	}
	if cfg.Export.MaxFileAgeHours <= 0 {
		cfg.Export.MaxFileAgeHours = 168
	}
}
