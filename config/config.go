// Package config provides a dynamic module exporting configuration values
// read from .env files and the process environment.
//
// Example:
//
//	var AppModule = nestor.NewModule("AppModule",
//	    nestor.Imports(config.ForRoot(config.Options{
//	        EnvFiles: []string{".env.local", ".env"},
//	        Global:   true,
//	    })),
//	    nestor.Providers(NewServer),
//	)
//
//	func NewServer(cfg *config.Service) *Server {
//	    return &Server{Port: cfg.GetInt("PORT", 8080)}
//	}
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/junioryono/nestor"
)

// Module is the declaration shared by every ForRoot configuration.
var Module = nestor.NewModule("ConfigModule")

// OptionsToken is the token the Options of a configuration are provided under.
const OptionsToken = "CONFIG_OPTIONS"

// Options configures where values are read from.
type Options struct {
	// EnvFiles are read in order; a key found in an earlier file wins.
	// Missing files are skipped. Defaults to ".env".
	EnvFiles []string `json:"envFiles,omitempty"`

	// IgnoreEnvFile disables reading env files.
	IgnoreEnvFile bool `json:"ignoreEnvFile,omitempty"`

	// IgnoreEnvVars disables the process environment, which otherwise
	// overrides values read from files.
	IgnoreEnvVars bool `json:"ignoreEnvVars,omitempty"`

	// Defaults are used for keys found nowhere else.
	Defaults map[string]string `json:"defaults,omitempty"`

	// Required keys must have a value once every source is merged.
	Required []string `json:"required,omitempty"`

	// Global makes the Service visible to every module without an import.
	Global bool `json:"global,omitempty"`
}

// MissingKeysError is returned when required keys have no value.
type MissingKeysError struct {
	Keys []string
}

func (e MissingKeysError) Error() string {
	return fmt.Sprintf("missing required configuration keys: %s", strings.Join(e.Keys, ", "))
}

// ForRoot returns a module exporting a *Service loaded with opts. Calls with
// different options produce distinct modules.
func ForRoot(opts Options) *nestor.DynamicModule {
	return &nestor.DynamicModule{
		Module: Module,
		Providers: []any{
			nestor.Value(OptionsToken, opts),
			nestor.Factory(nestor.TokenOf[*Service](), Load, nestor.Inject(OptionsToken)),
		},
		Exports: []nestor.Token{nestor.TokenOf[*Service]()},
		Global:  opts.Global,
	}
}

// ForRootAsync returns an import whose options are computed by fn while the
// application is scanned.
func ForRootAsync(fn func(ctx context.Context) (Options, error)) nestor.Import {
	return nestor.Deferred(func(ctx context.Context) (nestor.Import, error) {
		opts, err := fn(ctx)
		if err != nil {
			return nil, fmt.Errorf("config options: %w", err)
		}
		return ForRoot(opts), nil
	})
}

// Service holds merged configuration values.
type Service struct {
	values map[string]string
}

// Load merges defaults, env files and the process environment, in increasing
// precedence.
func Load(opts Options) (*Service, error) {
	values := make(map[string]string, len(opts.Defaults))
	for k, v := range opts.Defaults {
		values[k] = v
	}

	if !opts.IgnoreEnvFile {
		files := opts.EnvFiles
		if len(files) == 0 {
			files = []string{".env"}
		}
		for i := len(files) - 1; i >= 0; i-- {
			read, err := godotenv.Read(files[i])
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("failed to read %s: %w", files[i], err)
			}
			for k, v := range read {
				values[k] = v
			}
		}
	}

	if !opts.IgnoreEnvVars {
		for _, kv := range os.Environ() {
			if k, v, ok := strings.Cut(kv, "="); ok {
				values[k] = v
			}
		}
	}

	var missing []string
	for _, key := range opts.Required {
		if values[key] == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, MissingKeysError{Keys: missing}
	}

	return &Service{values: values}, nil
}

// Lookup returns the value of key and whether it is set.
func (s *Service) Lookup(key string) (string, bool) {
	v, ok := s.values[key]
	return v, ok
}

// Get returns the value of key, or "" if it is not set.
func (s *Service) Get(key string) string {
	return s.values[key]
}

// GetOr returns the value of key, falling back to def when it is empty.
func (s *Service) GetOr(key, def string) string {
	if v := s.values[key]; v != "" {
		return v
	}
	return def
}

// GetInt returns an int value, falling back to def when it is empty or malformed.
func (s *Service) GetInt(key string, def int) int {
	i, err := strconv.Atoi(s.values[key])
	if err != nil {
		return def
	}
	return i
}

// GetBool returns a bool value, falling back to def when it is empty or malformed.
func (s *Service) GetBool(key string, def bool) bool {
	b, err := strconv.ParseBool(s.values[key])
	if err != nil {
		return def
	}
	return b
}
