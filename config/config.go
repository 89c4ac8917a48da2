// Package config holds the configured constants of a potkit run.
//
// Settings come from .potkit.yaml in the project root. A missing file
// means defaults for the WP Clean Admin plugin layout. Project name and
// version fall back to the WordPress plugin header when not configured.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/minios-linux/potkit/extract"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// FileName is the default config file name.
const FileName = ".potkit.yaml"

// Defaults
const (
	DefaultDomain       = "wp-clean-admin"
	DefaultPluginRoot   = "wpcleanadmin"
	DefaultLanguagesDir = "languages"
	DefaultVersion      = "0.0.0"
)

// Config is the top-level .potkit.yaml structure.
type Config struct {
	// Domain is the text domain literal calls must carry. It is also the
	// product slug catalog file names start with.
	Domain string `yaml:"domain"`
	// PluginRoot is the source tree, relative to the project root.
	PluginRoot string `yaml:"plugin_root"`
	// LanguagesDir is the catalog directory, relative to PluginRoot.
	LanguagesDir string `yaml:"languages_dir"`
	// Template is the template file name inside LanguagesDir
	// (default "<domain>.pot").
	Template string `yaml:"template,omitempty"`
	// Extensions maps dialect names ("php", "js") to file extensions.
	Extensions map[string][]string `yaml:"extensions,omitempty"`
	// Exclude lists directory names skipped while scanning.
	Exclude []string `yaml:"exclude,omitempty"`
	// Project fills the template header.
	Project Project `yaml:"project,omitempty"`
	// Locales adds project specific locale codes and names to the
	// recognized set.
	Locales map[string]string `yaml:"locales,omitempty"`
	// References writes "#: file:line" comments into the template.
	References bool `yaml:"references,omitempty"`
	// Workers > 1 scans files concurrently.
	Workers int `yaml:"workers,omitempty"`
}

// Project describes the plugin in the template header.
type Project struct {
	Name    string `yaml:"name,omitempty"`
	Version string `yaml:"version,omitempty"`
	// Bugs is the Report-Msgid-Bugs-To address.
	Bugs string `yaml:"bugs,omitempty"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load reads the config file at path from fs. A missing file yields the
// defaults; a malformed or invalid one is an error.
func Load(fs afero.Fs, path string) (*Config, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.Domain == "" {
		c.Domain = DefaultDomain
	}
	if c.PluginRoot == "" {
		c.PluginRoot = DefaultPluginRoot
	}
	if c.LanguagesDir == "" {
		c.LanguagesDir = DefaultLanguagesDir
	}
	if len(c.Extensions) == 0 {
		c.Extensions = map[string][]string{
			string(extract.PHP):        {".php"},
			string(extract.JavaScript): {".js"},
		}
	}
	if c.Exclude == nil {
		c.Exclude = append([]string(nil), extract.DefaultExclude...)
	}
}

// Validate reports every problem with the configuration at once.
func (c *Config) Validate() error {
	var errs *multierror.Error
	if strings.TrimSpace(c.Domain) == "" {
		errs = multierror.Append(errs, errors.New("domain must not be empty"))
	}
	if strings.ContainsAny(c.Domain, `'"`) {
		errs = multierror.Append(errs, fmt.Errorf("domain %q must not contain quotes", c.Domain))
	}
	if filepath.IsAbs(c.LanguagesDir) {
		errs = multierror.Append(errs, fmt.Errorf("languages_dir %q must be relative to plugin_root", c.LanguagesDir))
	}
	if c.Workers < 0 {
		errs = multierror.Append(errs, fmt.Errorf("workers must not be negative, got %d", c.Workers))
	}
	for _, name := range sortedKeys(c.Extensions) {
		if _, err := extract.ParseDialect(name); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("extensions: %w", err))
			continue
		}
		for _, ext := range c.Extensions[name] {
			if !strings.HasPrefix(ext, ".") || len(ext) < 2 {
				errs = multierror.Append(errs, fmt.Errorf("extensions.%s: %q must start with a dot", name, ext))
			}
		}
	}
	return errs.ErrorOrNil()
}

// TemplateName returns the template file name.
func (c *Config) TemplateName() string {
	if c.Template != "" {
		return c.Template
	}
	return c.Domain + ".pot"
}

// PluginPath returns the source tree below projectRoot.
func (c *Config) PluginPath(projectRoot string) string {
	if filepath.IsAbs(c.PluginRoot) {
		return c.PluginRoot
	}
	return filepath.Join(projectRoot, c.PluginRoot)
}

// LanguagesPath returns the catalog directory below projectRoot.
func (c *Config) LanguagesPath(projectRoot string) string {
	return filepath.Join(c.PluginPath(projectRoot), c.LanguagesDir)
}

// TemplatePath returns the template file below projectRoot.
func (c *Config) TemplatePath(projectRoot string) string {
	return filepath.Join(c.LanguagesPath(projectRoot), c.TemplateName())
}

// DialectExtensions maps lower-case extensions to their dialect.
func (c *Config) DialectExtensions() (map[string]extract.Dialect, error) {
	out := make(map[string]extract.Dialect)
	for _, name := range sortedKeys(c.Extensions) {
		d, err := extract.ParseDialect(name)
		if err != nil {
			return nil, err
		}
		for _, ext := range c.Extensions[name] {
			out[strings.ToLower(ext)] = d
		}
	}
	return out, nil
}

// Scanner builds the directory scanner for this configuration. The
// catalog directory is always excluded.
func (c *Config) Scanner(fs afero.Fs, projectRoot string, log logrus.FieldLogger) (*extract.Scanner, error) {
	exts, err := c.DialectExtensions()
	if err != nil {
		return nil, err
	}
	return &extract.Scanner{
		Fs:           fs,
		Matcher:      extract.NewPatternMatcher(c.Domain),
		Extensions:   exts,
		Exclude:      c.Exclude,
		ExcludePaths: []string{c.LanguagesPath(projectRoot)},
		Workers:      c.Workers,
		References:   c.References,
		Log:          log,
	}, nil
}

// BindFlags registers the command-line overrides on flags. Call
// ApplyFlags after parsing to copy the ones that were set.
func BindFlags(flags *pflag.FlagSet) {
	flags.String("domain", DefaultDomain, "Text domain and catalog file prefix")
	flags.String("plugin-root", DefaultPluginRoot, "Plugin source tree, relative to --root")
	flags.String("languages-dir", DefaultLanguagesDir, "Catalog directory, relative to the plugin root")
	flags.StringSlice("exclude", extract.DefaultExclude, "Directory names skipped while scanning")
	flags.Int("workers", 0, "Scan files concurrently with this many workers")
	flags.Bool("references", false, "Write #: file:line references into the template")
}

// ApplyFlags overrides settings with the flags that were given
// explicitly, then validates the result.
func (c *Config) ApplyFlags(flags *pflag.FlagSet) error {
	var err error
	if flags.Changed("domain") {
		if c.Domain, err = flags.GetString("domain"); err != nil {
			return err
		}
	}
	if flags.Changed("plugin-root") {
		if c.PluginRoot, err = flags.GetString("plugin-root"); err != nil {
			return err
		}
	}
	if flags.Changed("languages-dir") {
		if c.LanguagesDir, err = flags.GetString("languages-dir"); err != nil {
			return err
		}
	}
	if flags.Changed("exclude") {
		if c.Exclude, err = flags.GetStringSlice("exclude"); err != nil {
			return err
		}
	}
	if flags.Changed("workers") {
		if c.Workers, err = flags.GetInt("workers"); err != nil {
			return err
		}
	}
	if flags.Changed("references") {
		if c.References, err = flags.GetBool("references"); err != nil {
			return err
		}
	}
	return c.Validate()
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
