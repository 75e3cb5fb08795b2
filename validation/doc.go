// Package validation checks configuration values.
//
// Struct tag validation uses go-playground/validator with field names taken
// from mapstructure tags, so messages name the keys users write in
// config.yml:
//
//	type EngineConfig struct {
//	    Workers int `mapstructure:"workers" validate:"gte=1,lte=256"`
//	}
//	err := validation.Struct(cfg)
//
// Rules that depend on other fields go through a collector:
//
//	err := validation.New().
//	    OneOf("driver", cfg.Driver, drivers).
//	    Required("path", cfg.Path).
//	    Err()
//
// Both return INVALID_CONFIG errors listing every failing field.
package validation
