package store

const (
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
)

// SQLiteConfig locates the seen-height database. The file seen_blocks.db is
// created under DataDir, along with the directory itself.
type SQLiteConfig struct {
	DataDir string `validate:"required"`
}

// RedisConfig contains connection options for the Redis-backed store. The
// struct is validated via go-playground/validator tags.
type RedisConfig struct {
	Host               string `validate:"required,hostname|ip"`
	Port               string `validate:"required,numeric"`
	Password           string
	DB                 int `validate:"gte=0"`
	UseTLS             bool
	PoolSize           int `validate:"gte=0"`
	MaxRetries         int `validate:"gte=0"`
	DialTimeoutSeconds int `validate:"gte=0"`

	// Key is the Redis SET holding published heights.
	Key string `validate:"required"`
}
