package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"RuntimeLink/internal/index"
	"RuntimeLink/internal/layout"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

// RelPath is searched for under the XDG config directories when no path is given.
const RelPath = "runtimelink/config.yaml"

var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	Workers        int      `yaml:"workers"`
	Lenient        bool     `yaml:"lenient"`
	LinkToolModule string   `yaml:"link_tool_module"`
	OverrideFile   string   `yaml:"override_file"`
	Overrides      []string `yaml:"overrides"`
	PatchEnv       []string `yaml:"patch_env"`
	Progress       string   `yaml:"progress"`
	LogFormat      string   `yaml:"log_format"`
	LogLevel       string   `yaml:"log_level"`
	BufferSize     int      `yaml:"buffer_size"`
	Compress       bool     `yaml:"compress"`
}

func Default() Config {
	return Config{
		Workers:        4,
		Lenient:        false,
		LinkToolModule: index.DefaultLinkTool,
		PatchEnv:       append([]string(nil), layout.DefaultPatchEnv...),
		Progress:       "auto",
		LogFormat:      "text",
		LogLevel:       "warn",
		BufferSize:     8192,
		Compress:       true,
	}
}

// Locate returns the first config file found under the XDG config directories, or "" when
// there is none.
func Locate() string {
	p, err := xdg.SearchConfigFile(RelPath)
	if err != nil {
		return ""
	}
	return p
}

// Load reads path on top of Default. An empty path falls back to Locate; if no file is
// found the defaults are returned.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = Locate()
	}
	if path != "" {
		raw, err := os.ReadFile(path) // #nosec G304
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := decode(raw, &cfg); err != nil {
			return Config{}, &ParseError{Path: path, Problems: describe(err), Err: err}
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ParseError reports a config file that could not be decoded. Error is a short sentence; the
// decoder's own error is kept in Err.
type ParseError struct {
	Path     string
	Problems []string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid configuration in %s: %s", e.Path, strings.Join(e.Problems, "; "))
}

func (e *ParseError) Unwrap() []error { return []error{ErrInvalid, e.Err} }

var (
	unknownKeyRe = regexp.MustCompile(`^line (\d+): field (\S+) not found`)
	wrongTypeRe  = regexp.MustCompile("^line (\\d+): cannot unmarshal \\S+ `([^`]*)`")
	lineRe       = regexp.MustCompile(`^(?:yaml: )?line (\d+):`)
)

func describe(err error) []string {
	var te *yaml.TypeError
	if !errors.As(err, &te) {
		if m := lineRe.FindStringSubmatch(err.Error()); m != nil {
			return []string{fmt.Sprintf("line %s: not valid YAML", m[1])}
		}
		return []string{"not valid YAML"}
	}

	out := make([]string, 0, len(te.Errors))
	for _, msg := range te.Errors {
		if m := unknownKeyRe.FindStringSubmatch(msg); m != nil {
			out = append(out, fmt.Sprintf("line %s: unknown key %s", m[1], m[2]))
		} else if m := wrongTypeRe.FindStringSubmatch(msg); m != nil {
			out = append(out, fmt.Sprintf("line %s: value %q has the wrong type", m[1], m[2]))
		} else if m := lineRe.FindStringSubmatch(msg); m != nil {
			out = append(out, fmt.Sprintf("line %s: invalid value", m[1]))
		} else {
			out = append(out, "invalid value")
		}
	}
	return out
}

func decode(raw []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c Config) Validate() error {
	var errs []string

	if c.Workers < 1 {
		errs = append(errs, "workers must be at least 1")
	}
	if strings.TrimSpace(c.LinkToolModule) == "" {
		errs = append(errs, "link_tool_module is required")
	}
	switch strings.ToLower(c.Progress) {
	case "auto", "always", "never":
	default:
		errs = append(errs, "progress must be one of: auto, always, never")
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, "log_level must be one of: debug, info, warn, error")
	}
	switch strings.ToLower(c.LogFormat) {
	case "json", "text":
	default:
		errs = append(errs, "log_format must be one of: json, text")
	}
	if c.BufferSize < 1 {
		errs = append(errs, "buffer_size must be positive")
	}
	for _, name := range c.PatchEnv {
		if name == "" || strings.Contains(name, "=") {
			errs = append(errs, fmt.Sprintf("patch_env entry %q is not a variable name", name))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(errs, "; "))
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v, ok := os.LookupEnv("RUNTIMELINK_WORKERS"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Workers = n
		}
	}
	if v, ok := os.LookupEnv("RUNTIMELINK_LENIENT"); ok {
		if parsed, err := strconv.ParseBool(v); err == nil {
			cfg.Lenient = parsed
		}
	}
	if v, ok := os.LookupEnv("RUNTIMELINK_LOG_LEVEL"); ok && v != "" {
		cfg.LogLevel = v
	}
	if v, ok := os.LookupEnv("RUNTIMELINK_LOG_FORMAT"); ok && v != "" {
		cfg.LogFormat = v
	}
}
