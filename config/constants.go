package config

const (
	DefaultDataDir            = "./data"
	DefaultStoreBackend       = "leveldb"
	DefaultRedisAddress       = "localhost:6379"
	DefaultAPIAddr            = ":8080"
	DefaultJSONRPCAddr        = ":8545"
	DefaultCheckpointInterval = 100
	DefaultRestoreTimeoutSec  = 0
	DefaultAPIRateLimit       = 50
	DefaultAPIRateWindowMs    = 1000

	// TreeDepth 0 selects tree.DefaultDepth
	DefaultTreeDepth = 0
)
