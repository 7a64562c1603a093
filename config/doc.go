// Package config loads service configuration from a config.yml file, an
// optional .env file and the process environment.
//
// Values are layered with viper: the YAML file first, then environment
// variables. LOG_LEVEL, STREAM_COMPUTATION_PARALLELISM and similar
// upper-case names map onto nested keys (logging.level,
// stream.computation_parallelism).
//
//	var cfg config.ServiceConfig
//	if err := config.LoadConfig("flowdemo", &cfg); err != nil {
//	    return err
//	}
//	cfg.ApplyDefaults()
//	if err := cfg.Validate(); err != nil {
//	    return err
//	}
package config
