package config

// DBConfig contains PostgreSQL database configuration for the role store.
type DBConfig struct {
	Host     string `env:"HOST"     envDefault:"localhost"`
	Port     int    `env:"PORT"     envDefault:"5432"`
	User     string `env:"USER"     envDefault:"storefront"`
	Password string `env:"PASSWORD" envDefault:"storefront"`
	Name     string `env:"NAME"     envDefault:"storefront"`
	SSLMode  string `env:"SSL_MODE" envDefault:"disable"` // Use 'disable' for local dev, 'require' for production
	// RunMigrationsOnStart controls whether the application automatically applies migrations during startup.
	RunMigrationsOnStart bool `env:"RUN_MIGRATIONS_ON_START" envDefault:"true"`
}

// RedisConfig contains Redis configuration for the durable cache tier.
type RedisConfig struct {
	Addr      string `env:"ADDR"       envDefault:"localhost:6379"`
	Password  string `env:"PASSWORD"   envDefault:""`
	DB        int    `env:"DB"         envDefault:"0"`
	KeyPrefix string `env:"KEY_PREFIX" envDefault:"storefront:durable:"`
}
