package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	apperr "tabsense/internal/errors"
	"tabsense/internal/export"
	"tabsense/internal/rows"
	"tabsense/internal/split"
)

type Theme string

const (
	ThemeDark  Theme = "dark"
	ThemeLight Theme = "light"
)

// DelimiterAuto detects the delimiter from the file name or its first bytes.
const DelimiterAuto = "auto"

// Config is resolved from defaults, then the YAML file, then the environment,
// then command-line flags.
type Config struct {
	File           string   `yaml:"-"`
	Where          []string `yaml:"where"`
	Select         []string `yaml:"select"`
	Pattern        string   `yaml:"-"`
	Delimiter      string   `yaml:"delimiter"`
	Quote          string   `yaml:"quote"`
	NoHeader       bool     `yaml:"no_header"`
	Encoding       string   `yaml:"encoding"`
	Follow         bool     `yaml:"follow"`
	Print          bool     `yaml:"-"`
	Interactive    bool     `yaml:"-"`
	Format         string   `yaml:"format"`
	Theme          Theme    `yaml:"theme"`
	CacheRows      int      `yaml:"cache_rows"`
	ChunkKB        int      `yaml:"chunk_kb"`
	MaxRowKB       int      `yaml:"max_row_kb"`
	MaxColumnWidth int      `yaml:"max_column_width"`
	PrintCommand   bool     `yaml:"print_command"`

	// ConfigFile overrides the YAML file location.
	ConfigFile string `yaml:"-"`
}

func Default() *Config {
	return &Config{
		Delimiter:      DelimiterAuto,
		Quote:          `"`,
		Encoding:       "utf-8",
		Format:         string(export.Table),
		Theme:          ThemeDark,
		CacheRows:      rows.DefaultCacheRows,
		ChunkKB:        256,
		MaxRowKB:       1024,
		MaxColumnWidth: rows.DefaultMaxColumnWidth,
	}
}

// Path returns the YAML file to read: explicit, $TABSENSE_CONFIG, or
// ~/.config/tabsense/config.yaml.
func Path(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if p := os.Getenv("TABSENSE_CONFIG"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "tabsense", "config.yaml")
}

// LoadFile returns the defaults overlaid with the YAML file at path. A missing
// file is not an error.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, apperr.NewConfigError("error reading config file", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, apperr.NewConfigError(fmt.Sprintf("error parsing config file %s", path), err)
	}
	return cfg, nil
}

// ApplyEnv applies TABSENSE_THEME and TABSENSE_CACHE_ROWS.
func (c *Config) ApplyEnv() {
	c.Theme = Theme(getenvDefault("TABSENSE_THEME", string(c.Theme)))
	c.CacheRows = getenvDefaultInt("TABSENSE_CACHE_ROWS", c.CacheRows)
}

// RegisterFlags binds the command-line flags to c.
func (c *Config) RegisterFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&c.File, "file", "f", c.File, "path to the table (- for stdin; .gz, .zst and .lz4 are decompressed)")
	fs.StringArrayVarP(&c.Where, "where", "w", c.Where, "filter such as 'score>4' or 'name~al*'; repeatable, all must match")
	fs.StringSliceVarP(&c.Select, "select", "s", c.Select, "comma-separated columns to show, by name or #N")
	fs.StringVarP(&c.Delimiter, "delimiter", "d", c.Delimiter, "field delimiter: auto, tab, or a single character")
	fs.StringVar(&c.Quote, "quote", c.Quote, "quote character; empty or none disables quoting")
	fs.BoolVar(&c.NoHeader, "no-header", c.NoHeader, "the first row is data, not column names")
	fs.StringVar(&c.Encoding, "encoding", c.Encoding, "source encoding: "+strings.Join(rows.Encodings, "|"))
	fs.BoolVar(&c.Follow, "follow", c.Follow, "keep reading as the file grows")
	fs.BoolVarP(&c.Print, "print", "p", c.Print, "print the filtered table instead of opening the viewer")
	fs.BoolVarP(&c.Interactive, "interactive", "i", c.Interactive, "open the viewer even when stdout is not a terminal")
	fs.StringVar(&c.Format, "format", c.Format, "print format: table|csv|json")
	fs.StringVar((*string)(&c.Theme), "theme", string(c.Theme), "theme: dark|light")
	fs.IntVar(&c.CacheRows, "cache-rows", c.CacheRows, "parsed rows kept in memory")
	fs.IntVar(&c.ChunkKB, "chunk-kb", c.ChunkKB, "bytes scanned per index step, in KiB")
	fs.IntVar(&c.MaxRowKB, "max-row-kb", c.MaxRowKB, "longest row before it is flagged and skipped to the next newline, in KiB (0 = no limit)")
	fs.IntVar(&c.MaxColumnWidth, "max-col-width", c.MaxColumnWidth, "widest column in cells (0 = no limit)")
	fs.BoolVar(&c.PrintCommand, "print-command", c.PrintCommand, "print the equivalent non-interactive command after leaving the viewer")
	fs.StringVar(&c.ConfigFile, "config", c.ConfigFile, "config file (default $TABSENSE_CONFIG or ~/.config/tabsense/config.yaml)")
}

// Resolve builds the effective configuration. flags holds the values bound
// by RegisterFlags; only flags set on the command line override the file and
// the environment.
func Resolve(flags *Config, fs *pflag.FlagSet) (*Config, error) {
	cfg, err := LoadFile(Path(flags.ConfigFile))
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv()
	fs.Visit(func(f *pflag.Flag) { cfg.overlay(f.Name, flags) })
	cfg.File, cfg.Pattern, cfg.ConfigFile = flags.File, flags.Pattern, flags.ConfigFile
	cfg.Print, cfg.Interactive = flags.Print, flags.Interactive
	return cfg, cfg.Validate()
}

func (c *Config) overlay(name string, f *Config) {
	switch name {
	case "where":
		c.Where = f.Where
	case "select":
		c.Select = f.Select
	case "delimiter":
		c.Delimiter = f.Delimiter
	case "quote":
		c.Quote = f.Quote
	case "no-header":
		c.NoHeader = f.NoHeader
	case "encoding":
		c.Encoding = f.Encoding
	case "follow":
		c.Follow = f.Follow
	case "format":
		c.Format = f.Format
	case "theme":
		c.Theme = f.Theme
	case "cache-rows":
		c.CacheRows = f.CacheRows
	case "chunk-kb":
		c.ChunkKB = f.ChunkKB
	case "max-row-kb":
		c.MaxRowKB = f.MaxRowKB
	case "max-col-width":
		c.MaxColumnWidth = f.MaxColumnWidth
	case "print-command":
		c.PrintCommand = f.PrintCommand
	}
}

func (c *Config) Validate() error {
	if _, err := c.DelimiterRune(); err != nil {
		return err
	}
	q, err := c.QuoteRune()
	if err != nil {
		return err
	}
	if d, _ := c.DelimiterRune(); d != 0 && d == q {
		return apperr.NewConfigError("delimiter and quote must differ", nil)
	}
	if _, err := rows.LookupEncoding(c.Encoding); err != nil {
		return apperr.NewConfigError("invalid --encoding", err)
	}
	if _, err := export.ParseFormat(c.Format); err != nil {
		return apperr.NewConfigError("invalid --format", err)
	}
	if c.Theme != ThemeDark && c.Theme != ThemeLight {
		return apperr.NewConfigError(fmt.Sprintf("invalid theme %q (want dark or light)", c.Theme), nil)
	}
	switch {
	case c.CacheRows < 1:
		return apperr.NewConfigError("--cache-rows must be at least 1", nil)
	case c.ChunkKB < 1:
		return apperr.NewConfigError("--chunk-kb must be at least 1", nil)
	case c.MaxRowKB < 0:
		return apperr.NewConfigError("--max-row-kb must not be negative", nil)
	case c.MaxColumnWidth < 0:
		return apperr.NewConfigError("--max-col-width must not be negative", nil)
	}
	return nil
}

// DelimiterRune returns the configured delimiter, or 0 for auto.
func (c *Config) DelimiterRune() (rune, error) {
	switch strings.ToLower(c.Delimiter) {
	case "", DelimiterAuto:
		return 0, nil
	case "tab", `\t`:
		return '\t', nil
	case "comma":
		return ',', nil
	case "semicolon":
		return ';', nil
	case "pipe":
		return '|', nil
	}
	return singleASCII("delimiter", c.Delimiter)
}

// QuoteRune returns the quote character, or 0 when quoting is off.
func (c *Config) QuoteRune() (rune, error) {
	switch strings.ToLower(c.Quote) {
	case "", "none":
		return 0, nil
	}
	return singleASCII("quote", c.Quote)
}

// Dialect returns the split dialect. Validate must have passed.
func (c *Config) Dialect() split.Dialect {
	d, _ := c.DelimiterRune()
	q, _ := c.QuoteRune()
	return split.Dialect{Delimiter: d, Quote: q}
}

// row scanning works on bytes, so both characters must be single-byte
func singleASCII(what, s string) (rune, error) {
	r, size := utf8.DecodeRuneInString(s)
	if size != len(s) || r >= utf8.RuneSelf || r == '\n' || r == '\r' {
		return 0, apperr.NewConfigError(fmt.Sprintf("invalid %s %q: want one ASCII character", what, s), nil)
	}
	return r, nil
}

func getenvDefault(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func getenvDefaultInt(k string, d int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return d
}

func (c *Config) String() string {
	return fmt.Sprintf("file=%s delimiter=%s quote=%s header=%v encoding=%s follow=%v theme=%s where=%q select=%q",
		c.File, c.Delimiter, c.Quote, !c.NoHeader, c.Encoding, c.Follow, c.Theme, c.Where, c.Select)
}
