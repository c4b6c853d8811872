package auth

import (
	"fmt"
	"github.com/spf13/viper"
)

type Config struct {
	JWTSecret string `mapstructure:"JWT_SECRET"`
	Issuer    string `mapstructure:"JWT_ISSUER"`
}

func NewConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.BindEnv("JWT_SECRET")
	v.BindEnv("JWT_ISSUER")

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("Warning: using only environment variables: %v\n", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("cannot unmarshal config: %w", err)
	}

	if cfg.JWTSecret == "" {
		cfg.JWTSecret = v.GetString("JWT_SECRET")
	}
	if cfg.Issuer == "" {
		cfg.Issuer = v.GetString("JWT_ISSUER")
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("auth configuration is incomplete: JWT_SECRET is required")
	}

	return &cfg, nil
}
