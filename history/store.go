package history

import (
	"context"
	"time"

	"github.com/goccy/go-json"

	"github.com/BaSui01/guardflow/types"
)

// StoreType selects a Store backend.
type StoreType string

const (
	StoreTypeMemory StoreType = "memory"
	StoreTypeFile   StoreType = "file"
	StoreTypeRedis  StoreType = "redis"
	StoreTypeSQL    StoreType = "sql"
)

// Store persists finished calls.
type Store interface {
	// Save inserts or replaces the call.
	Save(ctx context.Context, call *Call) error

	// Get returns the call with id, or a STORE_NOT_FOUND error.
	Get(ctx context.Context, id string) (*Call, error)

	// List returns calls newest first.
	List(ctx context.Context, opts ListOptions) ([]*Call, error)

	// Delete removes the call. Deleting an unknown id is not an error.
	Delete(ctx context.Context, id string) error

	// Close releases resources.
	Close() error

	// Ping checks if the store is healthy.
	Ping(ctx context.Context) error
}

// ListOptions filters List.
type ListOptions struct {
	Status Status
	Limit  int
	Offset int
}

func (o ListOptions) match(c *Call) bool {
	return o.Status == "" || c.Status == o.Status
}

// page applies Offset and Limit to an already filtered, ordered slice.
func (o ListOptions) page(calls []*Call) []*Call {
	if o.Offset > 0 {
		if o.Offset >= len(calls) {
			return []*Call{}
		}
		calls = calls[o.Offset:]
	}
	if o.Limit > 0 && len(calls) > o.Limit {
		calls = calls[:o.Limit]
	}
	return calls
}

// StoreConfig selects and configures the backend.
type StoreConfig struct {
	Type StoreType `json:"type" yaml:"type"`

	// BaseDir is the directory for the file store.
	BaseDir string `json:"base_dir" yaml:"base_dir"`

	Redis RedisStoreConfig `json:"redis" yaml:"redis"`
	SQL   SQLStoreConfig   `json:"sql" yaml:"sql"`
}

// RedisStoreConfig contains Redis-specific configuration.
type RedisStoreConfig struct {
	Addr      string        `json:"addr" yaml:"addr"`
	Password  string        `json:"password" yaml:"password"`
	DB        int           `json:"db" yaml:"db"`
	PoolSize  int           `json:"pool_size" yaml:"pool_size"`
	KeyPrefix string        `json:"key_prefix" yaml:"key_prefix"`
	TTL       time.Duration `json:"ttl" yaml:"ttl"`
}

// SQLStoreConfig contains database configuration for the gorm store.
type SQLStoreConfig struct {
	// Driver is postgres, mysql or sqlite.
	Driver       string        `json:"driver" yaml:"driver"`
	DSN          string        `json:"dsn" yaml:"dsn"`
	MaxOpenConns int           `json:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns int           `json:"max_idle_conns" yaml:"max_idle_conns"`
	ConnMaxLife  time.Duration `json:"conn_max_lifetime" yaml:"conn_max_lifetime"`
}

// DefaultStoreConfig returns the default store configuration.
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		Type:    StoreTypeMemory,
		BaseDir: "./data/history",
		Redis: RedisStoreConfig{
			Addr:      "localhost:6379",
			PoolSize:  10,
			KeyPrefix: "guardflow:",
		},
		SQL: SQLStoreConfig{
			Driver:       "sqlite",
			DSN:          "file:guardflow.db",
			MaxOpenConns: 10,
			MaxIdleConns: 5,
			ConnMaxLife:  time.Hour,
		},
	}
}

func errNotFound(id string) error {
	return types.NewError(types.ErrStoreNotFound, "call "+id+" not found")
}

func errClosed() error {
	return types.NewError(types.ErrStoreClosed, "store is closed")
}

// IsNotFound reports whether err is a STORE_NOT_FOUND error.
func IsNotFound(err error) bool {
	return types.IsErrorCode(err, types.ErrStoreNotFound)
}

func encode(c *Call) ([]byte, error) {
	return json.Marshal(c)
}

func decode(data []byte) (*Call, error) {
	var c Call
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// snapshot copies c through its JSON form so stored calls never alias the
// caller's.
func snapshot(c *Call) (*Call, error) {
	data, err := encode(c)
	if err != nil {
		return nil, err
	}
	return decode(data)
}
