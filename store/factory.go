package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mezonai/rollupstate/db"
)

// StoreType represents the type of store implementation
type StoreType string

const (
	// LevelDBStoreType uses the LevelDB implementation
	LevelDBStoreType StoreType = "leveldb"

	// RocksDBStoreType uses the RocksDB implementation (needs -tags rocksdb)
	RocksDBStoreType StoreType = "rocksdb"

	// BoltStoreType keeps the whole history in a single bbolt file
	BoltStoreType StoreType = "bolt"

	// RedisStoreType uses the Redis implementation
	RedisStoreType StoreType = "redis"

	// MemoryStoreType uses an in-memory LevelDB, nothing survives a restart
	MemoryStoreType StoreType = "memory"
)

const boltFileName = "history.bolt"

// StoreConfig holds configuration for creating store instances
type StoreConfig struct {
	// Type specifies which store implementation to use
	Type StoreType `json:"type" yaml:"type"`

	// Directory is the database directory path (for file-based databases)
	Directory string `json:"directory" yaml:"directory"`

	// RedisAddress is only used by the redis store
	RedisAddress string `json:"redis_address" yaml:"redis_address"`
}

// Validate validates the store configuration
func (sc *StoreConfig) Validate() error {
	if sc.Type == "" {
		return fmt.Errorf("store type cannot be empty")
	}

	switch sc.Type {
	case LevelDBStoreType, RocksDBStoreType, BoltStoreType:
		if sc.Directory == "" {
			return fmt.Errorf("directory cannot be empty")
		}
		return nil
	case RedisStoreType:
		if sc.RedisAddress == "" {
			return fmt.Errorf("redis address cannot be empty")
		}
		return nil
	case MemoryStoreType:
		return nil
	default:
		return fmt.Errorf("unsupported store type: %s", sc.Type)
	}
}

// StoreFactory take responsibility to create store instances
type StoreFactory struct{}

// NewStoreFactory creates a new store factory
func NewStoreFactory() *StoreFactory {
	return &StoreFactory{}
}

// CreateHistoryStore opens the configured backend and loads the history metadata
func (sf *StoreFactory) CreateHistoryStore(config *StoreConfig) (*GenericHistoryStore, error) {
	provider, err := sf.CreateProvider(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider: %w", err)
	}

	hs, err := NewGenericHistoryStore(provider)
	if err != nil {
		provider.Close()
		return nil, fmt.Errorf("failed to create history store: %w", err)
	}
	return hs, nil
}

// CreateProvider creates a database provider based on the configuration
func (sf *StoreFactory) CreateProvider(config *StoreConfig) (db.DatabaseProvider, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	switch config.Type {
	case LevelDBStoreType:
		return db.NewLevelDBProvider(config.Directory)

	case RocksDBStoreType:
		return db.NewRocksDBProvider(config.Directory)

	case BoltStoreType:
		if err := os.MkdirAll(config.Directory, 0755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
		return db.NewBoltDBProvider(filepath.Join(config.Directory, boltFileName))

	case RedisStoreType:
		// just for debug
		return db.NewRedisProvider(db.RedisOptions{Address: config.RedisAddress})

	case MemoryStoreType:
		return db.NewMemLevelDBProvider()

	default:
		return nil, fmt.Errorf("unsupported store type: %s", config.Type)
	}
}

// Global factory instance
var globalFactory = NewStoreFactory()

// OpenHistoryStore creates a history store using the global factory
func OpenHistoryStore(config *StoreConfig) (*GenericHistoryStore, error) {
	return globalFactory.CreateHistoryStore(config)
}
