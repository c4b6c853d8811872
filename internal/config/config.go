package config

import (
	"fmt"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"Server"`
	Storage  StorageConfig  `mapstructure:"Storage"`
	Database DatabaseConfig `mapstructure:"Database"`
	Redis    RedisConfig    `mapstructure:"Redis"`
	Quota    QuotaConfig    `mapstructure:"Quota"`
}

type ServerConfig struct {
	Port string `mapstructure:"Port"`
}

// StorageConfig выбирает бэкенд хранилища: redis, postgres или memory.
type StorageConfig struct {
	Driver string `mapstructure:"Driver"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"Host"`
	Port     string `mapstructure:"Port"`
	User     string `mapstructure:"User"`
	Password string `mapstructure:"Password"`
	Name     string `mapstructure:"Name"`
	SSLMode  string `mapstructure:"SSLMode"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"Addr"`
	Password string `mapstructure:"Password"`
	DB       int    `mapstructure:"DB"`
}

// QuotaConfig задает дефолтную квоту, засеиваемую в хранилище при старте.
type QuotaConfig struct {
	MaxAmount       int `mapstructure:"MaxAmount"`
	MaxUploadSizeKB int `mapstructure:"MaxUploadSizeKB"`
}

func NewConfig(path string) (*Config, error) {
	v := viper.New()

	// Устанавливаем файл конфигурации
	v.SetConfigFile(path)

	// Привязываем переменные окружения
	v.BindEnv("Storage.Driver", "STORAGE_DRIVER")
	v.BindEnv("Database.Host", "DATABASE_HOST")
	v.BindEnv("Database.Port", "DATABASE_PORT")
	v.BindEnv("Database.User", "DATABASE_USER")
	v.BindEnv("Database.Password", "DATABASE_PASSWORD")
	v.BindEnv("Database.Name", "DATABASE_NAME")
	v.BindEnv("Database.SSLMode", "DATABASE_SSLMODE")
	v.BindEnv("Redis.Addr", "REDIS_ADDR")
	v.BindEnv("Redis.Password", "REDIS_PASSWORD")
	v.BindEnv("Redis.DB", "REDIS_DB")
	v.BindEnv("Server.Port", "HTTP_PORT")
	v.BindEnv("Quota.MaxAmount", "QUOTA_MAX_AMOUNT")
	v.BindEnv("Quota.MaxUploadSizeKB", "QUOTA_MAX_UPLOAD_SIZE_KB")

	// Читаем конфигурацию из файла
	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("Warning: using only environment variables: %v\n", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Проверяем переменные окружения напрямую если конфигурация неполная
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = v.GetString("STORAGE_DRIVER")
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = v.GetString("DATABASE_HOST")
	}
	if cfg.Database.Port == "" {
		cfg.Database.Port = v.GetString("DATABASE_PORT")
	}
	if cfg.Database.User == "" {
		cfg.Database.User = v.GetString("DATABASE_USER")
	}
	if cfg.Database.Password == "" {
		cfg.Database.Password = v.GetString("DATABASE_PASSWORD")
	}
	if cfg.Database.Name == "" {
		cfg.Database.Name = v.GetString("DATABASE_NAME")
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = v.GetString("DATABASE_SSLMODE")
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = v.GetString("REDIS_ADDR")
	}
	if cfg.Server.Port == "" {
		cfg.Server.Port = v.GetString("HTTP_PORT")
	}

	// Установка значений по умолчанию
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "redis"
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Server.Port == "" {
		cfg.Server.Port = "2525"
	}
	if cfg.Quota.MaxAmount == 0 {
		cfg.Quota.MaxAmount = 100
	}
	if cfg.Quota.MaxUploadSizeKB == 0 {
		cfg.Quota.MaxUploadSizeKB = 512
	}

	// Для postgres нужна минимальная конфигурация подключения
	if cfg.Storage.Driver == "postgres" {
		if cfg.Database.Host == "" ||
			cfg.Database.Port == "" ||
			cfg.Database.User == "" ||
			cfg.Database.Name == "" {
			return nil, fmt.Errorf("database configuration is incomplete: host=%s, port=%s, user=%s, name=%s",
				cfg.Database.Host, cfg.Database.Port, cfg.Database.User, cfg.Database.Name)
		}
	}

	return &cfg, nil
}

func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host,
		c.Port,
		c.User,
		c.Password,
		c.Name,
		c.SSLMode,
	)
}

func (c *DatabaseConfig) GetURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Name,
		c.SSLMode,
	)
}
