package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/kbukum/viewkit/logger"
)

// FileSystem is the file access the loader needs.
type FileSystem interface {
	Exists(path string) bool
	LoadEnv(path string) error
}

// RealFileSystem reads the local disk.
type RealFileSystem struct{}

func (RealFileSystem) Exists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && !fi.IsDir()
}

// LoadEnv sets the variables of a .env file that are not already set.
func (RealFileSystem) LoadEnv(path string) error { return godotenv.Load(path) }

// Resolver finds the config and .env files of an application.
type Resolver struct {
	FileSystem FileSystem
}

// ResolvedFiles are the files LoadConfig will read. Empty means none.
type ResolvedFiles struct {
	ConfigFile string
	EnvFile    string
}

// ResolveFiles keeps explicitly configured paths and searches for the
// rest, first match wins:
//
//	./<app>.yml ./<app>.yaml ./config.yml ./config.yaml
//	./config/<app>.yml ./config/config.yml
//	./.env.<app> ./.env ./config/.env
func (r *Resolver) ResolveFiles(app string, lc LoaderConfig) ResolvedFiles {
	files := ResolvedFiles{ConfigFile: lc.ConfigFile, EnvFile: lc.EnvFile}
	if files.ConfigFile == "" {
		files.ConfigFile = r.first(configCandidates(app))
	}
	if files.EnvFile == "" {
		files.EnvFile = r.first(envCandidates(app))
	}
	return files
}

func (r *Resolver) first(paths []string) string {
	for _, p := range paths {
		if r.FileSystem.Exists(p) {
			return p
		}
	}
	return ""
}

func configCandidates(app string) []string {
	return []string{
		app + ".yml",
		app + ".yaml",
		"config.yml",
		"config.yaml",
		filepath.Join("config", app+".yml"),
		filepath.Join("config", "config.yml"),
	}
}

func envCandidates(app string) []string {
	return []string{".env." + app, ".env", filepath.Join("config", ".env")}
}

// LoaderConfig holds the loader's dependencies and overrides.
type LoaderConfig struct {
	FileSystem FileSystem
	// ConfigFile skips the config file search.
	ConfigFile string
	// EnvFile skips the .env file search.
	EnvFile string
	// EnvPrefix namespaces environment overrides: with prefix "viewkit",
	// VIEWKIT_ENGINE_WORKERS sets engine.workers.
	EnvPrefix string
}

// LoaderOption configures LoadConfig.
type LoaderOption func(*LoaderConfig)

// WithFileSystem replaces the disk, for tests.
func WithFileSystem(fs FileSystem) LoaderOption {
	return func(lc *LoaderConfig) { lc.FileSystem = fs }
}

// WithConfigFile reads path instead of searching for a config file.
func WithConfigFile(path string) LoaderOption {
	return func(lc *LoaderConfig) { lc.ConfigFile = path }
}

// WithEnvFile loads path instead of searching for a .env file.
func WithEnvFile(path string) LoaderOption {
	return func(lc *LoaderConfig) { lc.EnvFile = path }
}

// WithEnvPrefix sets the environment variable prefix.
func WithEnvPrefix(prefix string) LoaderOption {
	return func(lc *LoaderConfig) { lc.EnvPrefix = prefix }
}

// LoadConfig reads the config file, applies the .env file and
// environment overrides, and decodes the result into cfg. A config file
// that does not exist is skipped; one that does not parse is an error.
func LoadConfig(app string, cfg any, opts ...LoaderOption) error {
	lc := LoaderConfig{FileSystem: RealFileSystem{}}
	for _, opt := range opts {
		opt(&lc)
	}
	files := (&Resolver{FileSystem: lc.FileSystem}).ResolveFiles(app, lc)

	v := viper.New()
	if files.ConfigFile != "" && lc.FileSystem.Exists(files.ConfigFile) {
		v.SetConfigFile(files.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("config: read %s: %w", files.ConfigFile, err)
		}
		logger.Debug("config file loaded", logger.Fields("file", files.ConfigFile))
	}
	if files.EnvFile != "" && lc.FileSystem.Exists(files.EnvFile) {
		if err := lc.FileSystem.LoadEnv(files.EnvFile); err != nil {
			logger.Warn("env file not loaded", logger.Fields("file", files.EnvFile, logger.FieldError, err.Error()))
		}
	}

	bindEnv(v, lc.EnvPrefix, settingKeys(v, cfg))
	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("config: decode %s: %w", app, err)
	}
	return nil
}

// settingKeys lists every dotted key that may be set: the keys present in
// the file and every mapstructure path of cfg's type. Viper only consults
// the environment for keys it knows about.
func settingKeys(v *viper.Viper, cfg any) []string {
	seen := make(map[string]bool)
	var out []string
	for _, k := range append(v.AllKeys(), structKeys(reflect.TypeOf(cfg), "")...) {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	return out
}

func structKeys(t reflect.Type, prefix string) []string {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil
	}
	var out []string
	for i := range t.NumField() {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name, opts, _ := strings.Cut(f.Tag.Get("mapstructure"), ",")
		switch {
		case name == "-":
			continue
		case opts == "squash":
			out = append(out, structKeys(f.Type, prefix)...)
			continue
		case name == "":
			name = strings.ToLower(f.Name)
		}
		key := prefix + name
		if sub := structKeys(f.Type, key+"."); len(sub) > 0 {
			out = append(out, sub...)
		} else {
			out = append(out, key)
		}
	}
	return out
}

var envKeyReplacer = strings.NewReplacer(".", "_", "-", "_")

func bindEnv(v *viper.Viper, prefix string, keys []string) {
	for _, k := range keys {
		name := envKeyReplacer.Replace(k)
		if prefix != "" {
			name = prefix + "_" + name
		}
		_ = v.BindEnv(k, strings.ToUpper(name))
	}
}
