package history

import (
	"fmt"

	"go.uber.org/zap"
)

// NewStore creates a Store based on the configuration.
func NewStore(cfg StoreConfig, logger *zap.Logger) (Store, error) {
	switch cfg.Type {
	case StoreTypeMemory, "":
		return NewMemoryStore(), nil
	case StoreTypeFile:
		return NewFileStore(cfg.BaseDir)
	case StoreTypeRedis:
		return NewRedisStore(cfg.Redis)
	case StoreTypeSQL:
		return NewSQLStore(cfg.SQL, logger)
	default:
		return nil, fmt.Errorf("unsupported history store type: %s", cfg.Type)
	}
}

// MustNewStore creates a Store or panics. Use only during initialization.
func MustNewStore(cfg StoreConfig, logger *zap.Logger) Store {
	s, err := NewStore(cfg, logger)
	if err != nil {
		panic(fmt.Sprintf("failed to create history store: %v", err))
	}
	return s
}
