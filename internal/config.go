package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/viper"

	"github.com/tuannm99/novastore/internal/bufferpool"
	"github.com/tuannm99/novastore/internal/heap"
)

var ErrInvalidConfig = errors.New("config: invalid")

type NovaStoreConfig struct {
	AppName string `mapstructure:"app_name"`

	Storage struct {
		Workdir string `mapstructure:"workdir"`
	} `mapstructure:"storage"`

	BufferPool struct {
		Size     int    `mapstructure:"size"`
		Replacer string `mapstructure:"replacer"`
		LRUK     int    `mapstructure:"lru_k"`
	} `mapstructure:"buffer_pool"`

	Table struct {
		StorageModel   string `mapstructure:"storage_model"`
		RecordsPerPage int    `mapstructure:"records_per_page"` // 0 = as many as fit
	} `mapstructure:"table"`

	Log struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_name", "novastore")
	v.SetDefault("storage.workdir", "./data")
	v.SetDefault("buffer_pool.size", bufferpool.DefaultCapacity)
	v.SetDefault("buffer_pool.replacer", string(bufferpool.ReplacerLRU))
	v.SetDefault("buffer_pool.lru_k", bufferpool.DefaultLRUK)
	v.SetDefault("table.storage_model", heap.NAryModel.String())
	v.SetDefault("table.records_per_page", 0)
	v.SetDefault("log.level", "info")
}

// LoadConfig reads a yaml file. An empty path uses defaults only.
// NOVASTORE_* environment variables override both, e.g.
// NOVASTORE_BUFFER_POOL_SIZE=64.
func LoadConfig(path string) (*NovaStoreConfig, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("NOVASTORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg NovaStoreConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *NovaStoreConfig) Validate() error {
	if c.BufferPool.Size <= 0 {
		return fmt.Errorf("%w: buffer_pool.size must be positive, got %d", ErrInvalidConfig, c.BufferPool.Size)
	}
	if _, err := bufferpool.ParseReplacerKind(c.BufferPool.Replacer); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.BufferPool.LRUK <= 0 {
		return fmt.Errorf("%w: buffer_pool.lru_k must be positive, got %d", ErrInvalidConfig, c.BufferPool.LRUK)
	}
	if _, err := heap.ParseStorageModel(c.Table.StorageModel); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.Table.RecordsPerPage < 0 {
		return fmt.Errorf("%w: table.records_per_page must not be negative", ErrInvalidConfig)
	}
	if _, err := c.LogLevel(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

func (c *NovaStoreConfig) ReplacerKind() bufferpool.ReplacerKind {
	return bufferpool.ReplacerKind(c.BufferPool.Replacer)
}

func (c *NovaStoreConfig) StorageModel() heap.StorageModel {
	m, _ := heap.ParseStorageModel(c.Table.StorageModel)
	return m
}

func (c *NovaStoreConfig) LogLevel() (slog.Level, error) {
	var lvl slog.Level
	err := lvl.UnmarshalText([]byte(c.Log.Level))
	return lvl, err
}
