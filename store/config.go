package store

import (
	"github.com/kbukum/viewkit/validation"
)

// Drivers known to Validate. Each still has to be registered to be usable.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
	DriverBolt   = "bolt"
)

var knownDrivers = []string{DriverMemory, DriverSQLite, DriverRedis, DriverBolt}

// Config selects and configures a collection backend.
type Config struct {
	// Driver is one of memory, sqlite, redis or bolt.
	Driver string `mapstructure:"driver" validate:"omitempty,oneof=memory sqlite redis bolt"`

	// DSN is the sqlite database path or DSN.
	DSN string `mapstructure:"dsn"`

	// Addr, Password and DB address a redis server.
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"gte=0"`

	// KeyPrefix namespaces redis keys.
	KeyPrefix string `mapstructure:"key_prefix"`

	// Path is the bolt database file.
	Path string `mapstructure:"path"`

	// PageSize is the number of documents fetched per round trip during scans.
	PageSize int `mapstructure:"page_size" validate:"gte=0"`
}

// ApplyDefaults sets sensible defaults for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Driver == "" {
		c.Driver = DriverMemory
	}
	if c.PageSize <= 0 {
		c.PageSize = 256
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = "viewkit"
	}
}

// Validate checks that the selected driver has what it needs.
func (c *Config) Validate() error {
	v := validation.New().
		OneOf("driver", c.Driver, knownDrivers).
		Min("page_size", c.PageSize, 1).
		Min("db", c.DB, 0)
	switch c.Driver {
	case DriverSQLite:
		v.Required("dsn", c.DSN)
	case DriverRedis:
		v.Required("addr", c.Addr)
	case DriverBolt:
		v.Required("path", c.Path)
	}
	return v.Err()
}
