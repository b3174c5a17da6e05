package cache

import "time"

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string // host:port
	Password string
	DB       int

	PoolSize     int
	MinIdleConns int
	PoolTimeout  time.Duration

	// Prefix namespaces every key this client writes.
	Prefix string
}

// RedisOption overrides a connection setting.
type RedisOption func(*RedisConfig)

// WithRedisAddr sets the host:port address.
func WithRedisAddr(addr string) RedisOption {
	return func(rc *RedisConfig) { rc.Addr = addr }
}

// WithRedisPassword sets the password.
func WithRedisPassword(password string) RedisOption {
	return func(rc *RedisConfig) { rc.Password = password }
}

// WithRedisDB selects the database number.
func WithRedisDB(db int) RedisOption {
	return func(rc *RedisConfig) { rc.DB = db }
}
