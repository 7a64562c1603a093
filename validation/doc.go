// Package validation checks configuration and collaborator input.
//
// Struct tag validation uses go-playground/validator and names fields by
// their mapstructure, yaml or json tag, so messages match the keys of the
// config file:
//
//	type Config struct {
//	    Addr string `mapstructure:"addr" validate:"required,hostname_port"`
//	}
//	err := validation.Validate(&cfg)
//
// The programmatic Validator collects errors for checks that depend on
// more than one field:
//
//	v := validation.New()
//	v.Custom(cfg.InMemory || cfg.Dir != "", "dir", "is required unless in_memory is set")
//	return v.Validate()
package validation
