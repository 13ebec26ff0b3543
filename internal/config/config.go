// Package config loads and validates symtrace settings from TOML or YAML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/phobologic/symtrace/internal/metrics"
)

// DefaultMaxFileSize is the default per-file size limit in bytes.
const DefaultMaxFileSize = 1_000_000

// FileNames are the config files looked up in a project root, in order.
var FileNames = []string{".symtrace.toml", ".symtrace.yaml", ".symtrace.yml"}

// Config holds every setting a run uses.
type Config struct {
	Mode          string `toml:"mode" yaml:"mode" validate:"oneof=full references analyze"`
	Depth         int    `toml:"depth" yaml:"depth" validate:"gte=0"`
	Format        string `toml:"format" yaml:"format" validate:"oneof=text txt json markdown md"`
	OutputDir     string `toml:"output_dir" yaml:"output_dir" validate:"required"`
	Snippet       string `toml:"snippet" yaml:"snippet" validate:"oneof=none line block"`
	RelationLevel string `toml:"relation_level" yaml:"relation_level" validate:"oneof=direct references inheritance all"`

	DataAccessTokens []string `toml:"data_access_tokens" yaml:"data_access_tokens" validate:"dive,required"`
	SmellTypes       []string `toml:"smell_types" yaml:"smell_types" validate:"dive,required"`

	Exclude     []string `toml:"exclude" yaml:"exclude" validate:"dive,required,glob"`
	MaxFileSize int64    `toml:"max_file_size" yaml:"max_file_size" validate:"gt=0"`
	Workers     int      `toml:"workers" yaml:"workers" validate:"gte=0"`
	LogLevel    string   `toml:"log_level" yaml:"log_level" validate:"oneof=trace debug info warn error"`

	// Interactive overrides terminal detection when set.
	Interactive     *bool `toml:"interactive,omitempty" yaml:"interactive,omitempty"`
	IncludeExternal bool  `toml:"include_external" yaml:"include_external"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Mode:             "full",
		Depth:            0,
		Format:           "text",
		OutputDir:        ".",
		Snippet:          "none",
		RelationLevel:    "direct",
		DataAccessTokens: append([]string(nil), metrics.DefaultDataAccessTokens...),
		SmellTypes:       append([]string(nil), metrics.DefaultSmellTypes...),
		Exclude:          []string{},
		MaxFileSize:      DefaultMaxFileSize,
		LogLevel:         "info",
		IncludeExternal:  true,
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("glob", func(fl validator.FieldLevel) bool {
		return doublestar.ValidatePattern(fl.Field().String())
	})
	return v
}

// Validate lowercases the enumerated settings, then checks every field
// against its allowed values.
func (c *Config) Validate() error {
	for _, s := range []*string{&c.Mode, &c.Format, &c.Snippet, &c.RelationLevel, &c.LogLevel} {
		*s = strings.ToLower(strings.TrimSpace(*s))
	}
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, len(verrs))
	for i, fe := range verrs {
		msgs[i] = fmt.Sprintf("%s: invalid value %v (%s)", fe.Namespace(), fe.Value(), fe.Tag())
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// Load reads the file at path over the defaults. The format follows the
// extension: .toml, or .yaml/.yml.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	c := Default()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(c); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q", ext)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Find returns the first config file present in dir, or "".
func Find(dir string) string {
	for _, name := range FileNames {
		p := filepath.Join(dir, name)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p
		}
	}
	return ""
}

// Encode writes c to w as "toml" or "yaml".
func (c *Config) Encode(w io.Writer, format string) error {
	switch format {
	case "toml":
		enc := toml.NewEncoder(w)
		enc.SetIndentTables(true)
		return enc.Encode(c)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(c); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("unsupported config format %q", format)
}
