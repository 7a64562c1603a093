package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	apperrors "github.com/kbukum/flowkit/errors"
	"github.com/kbukum/flowkit/logger"
)

// FileSystem abstracts the file lookups of the loader so tests can fake them.
type FileSystem interface {
	Exists(path string) bool
	LoadEnv(path string) error
}

// OSFileSystem is the FileSystem of the running process.
type OSFileSystem struct{}

// Exists reports whether path can be stat'ed.
func (OSFileSystem) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// LoadEnv loads a .env file into the process environment without
// overriding variables that are already set.
func (OSFileSystem) LoadEnv(path string) error {
	return godotenv.Load(path)
}

// LoaderConfig holds the loader dependencies and file overrides.
type LoaderConfig struct {
	FileSystem FileSystem
	ConfigFile string
	EnvFile    string
}

// LoaderOption customizes LoadConfig.
type LoaderOption func(*LoaderConfig)

// WithFileSystem replaces the file system.
func WithFileSystem(fs FileSystem) LoaderOption {
	return func(lc *LoaderConfig) { lc.FileSystem = fs }
}

// WithConfigFile sets an explicit config file path.
func WithConfigFile(path string) LoaderOption {
	return func(lc *LoaderConfig) { lc.ConfigFile = path }
}

// WithEnvFile sets an explicit .env file path.
func WithEnvFile(path string) LoaderOption {
	return func(lc *LoaderConfig) { lc.EnvFile = path }
}

// ResolvedFiles are the files LoadConfig will read. Empty means none found.
type ResolvedFiles struct {
	ConfigFile string
	EnvFile    string
}

// Resolve returns the config and env files for a service, preferring the
// explicit paths of lc.
func Resolve(serviceName string, lc LoaderConfig) ResolvedFiles {
	fs := lc.FileSystem
	if fs == nil {
		fs = OSFileSystem{}
	}
	files := ResolvedFiles{ConfigFile: lc.ConfigFile, EnvFile: lc.EnvFile}
	if files.ConfigFile == "" {
		files.ConfigFile = firstExisting(fs, searchDirs(serviceName), "config.yml")
	}
	if files.EnvFile == "" {
		files.EnvFile = firstExisting(fs, searchDirs(serviceName), ".env."+serviceName, ".env")
	}
	return files
}

// searchDirs lists candidate directories, most specific first.
func searchDirs(serviceName string) []string {
	var dirs []string
	for _, base := range []string{".", "..", filepath.Join("..", "..")} {
		dirs = append(dirs,
			filepath.Join(base, "cmd", serviceName),
			filepath.Join(base, "config"),
		)
	}
	return append(dirs, ".", "..")
}

func firstExisting(fs FileSystem, dirs []string, names ...string) string {
	for _, name := range names {
		for _, dir := range dirs {
			path := filepath.Join(dir, name)
			if fs.Exists(path) {
				return path
			}
		}
	}
	return ""
}

// LoadConfig fills cfg from the resolved config.yml, the resolved .env file
// and the environment, in increasing priority. Missing files are not an
// error; a broken file is logged and skipped.
func LoadConfig(serviceName string, cfg any, opts ...LoaderOption) error {
	lc := LoaderConfig{FileSystem: OSFileSystem{}}
	for _, opt := range opts {
		opt(&lc)
	}
	files := Resolve(serviceName, lc)
	log := logger.Get("config")

	v := viper.New()
	if files.ConfigFile != "" && lc.FileSystem.Exists(files.ConfigFile) {
		v.SetConfigFile(files.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			log.Warn("config file skipped", logger.MergeWithError(logger.Fields("file", files.ConfigFile), err))
		} else {
			log.Debug("config file loaded", logger.Fields("file", files.ConfigFile))
		}
	}
	if files.EnvFile != "" && lc.FileSystem.Exists(files.EnvFile) {
		if err := lc.FileSystem.LoadEnv(files.EnvFile); err != nil {
			log.Warn("env file skipped", logger.MergeWithError(logger.Fields("file", files.EnvFile), err))
		}
	}
	bindEnv(v, os.Environ())

	if err := v.Unmarshal(cfg); err != nil {
		return apperrors.Internal(fmt.Errorf("unmarshal config for %s: %w", serviceName, err))
	}
	return nil
}

// bindEnv sets every environment variable under each nested key it could
// stand for.
func bindEnv(v *viper.Viper, environ []string) {
	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			continue
		}
		for _, k := range keyVariants(key) {
			v.Set(k, value)
		}
	}
}

// keyVariants maps an upper-case env name onto candidate viper keys:
// STREAM_COMPUTATION_PARALLELISM yields stream_computation_parallelism,
// stream.computation.parallelism, stream.computation_parallelism and
// stream_computation.parallelism.
func keyVariants(envKey string) []string {
	lower := strings.ToLower(envKey)
	parts := strings.Split(lower, "_")
	if len(parts) == 1 {
		return []string{lower}
	}

	seen := make(map[string]bool)
	var out []string
	add := func(k string) {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	add(lower)
	add(strings.Join(parts, "."))
	for i := 1; i < len(parts); i++ {
		add(strings.Join(parts[:i], ".") + "." + strings.Join(parts[i:], "_"))
		add(strings.Join(parts[:i], "_") + "." + strings.Join(parts[i:], "."))
	}
	return out
}
