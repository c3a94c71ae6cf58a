package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Env             string        `mapstructure:"ENV"`
	Port            string        `mapstructure:"PORT"`
	DatabaseURL     string        `mapstructure:"DATABASE_URL"`
	ServiceKey      string        `mapstructure:"SERVICE_KEY"`
	OracleURL       string        `mapstructure:"ORACLE_URL"`
	OracleModel     string        `mapstructure:"ORACLE_MODEL"`
	OracleAPIKey    string        `mapstructure:"ORACLE_API_KEY"`
	SearchURL       string        `mapstructure:"SEARCH_URL"`
	SearchLimit     int           `mapstructure:"SEARCH_LIMIT"`
	SearchThreshold float64       `mapstructure:"SEARCH_THRESHOLD"`
	CORSAllowed     string        `mapstructure:"CORS_ALLOWED_ORIGINS"`
	RequestTimeout  time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	LogLevel        string        `mapstructure:"LOG_LEVEL"`
}

func Load() (Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	_ = v.ReadInConfig()

	v.SetDefault("ENV", "dev")
	v.SetDefault("PORT", "8080")
	v.SetDefault("ORACLE_MODEL", "gpt-4o-mini")
	v.SetDefault("SEARCH_LIMIT", 5)
	v.SetDefault("SEARCH_THRESHOLD", 0.6)
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
