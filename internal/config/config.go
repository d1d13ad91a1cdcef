package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Output         string   `yaml:"output"`
	ImageWorkers   int      `yaml:"image_workers"`
	ChapterWorkers int      `yaml:"chapter_workers"`
	KeepFolders    bool     `yaml:"keep_folders"`
	Debug          bool     `yaml:"debug"`
	SkipBroken     bool     `yaml:"skip_broken"`
	AllowExt       []string `yaml:"allow_ext"`

	DefaultSource string `yaml:"default_source"`

	HTTP   HTTPConfig   `yaml:"http"`
	Engine EngineConfig `yaml:"engine"`
	Store  StoreConfig  `yaml:"store"`

	// Sources holds per-source settings, e.g. sources.ikigai.show_nsfw.
	Sources map[string]map[string]string `yaml:"sources"`
}

type HTTPConfig struct {
	Timeout          time.Duration `yaml:"timeout"`
	UserAgent        string        `yaml:"user_agent"`
	Cookie           string        `yaml:"cookie"`
	CookieFile       string        `yaml:"cookie_file"`
	BypassCloudflare bool          `yaml:"bypass_cloudflare"`
	Retries          int           `yaml:"retries"`
	RetryBackoff     time.Duration `yaml:"retry_backoff"`
}

// EngineConfig drives the headless browser used for script interception.
type EngineConfig struct {
	Enabled    bool   `yaml:"enabled"`
	BrowserBin string `yaml:"browser_bin"`
	Headless   bool   `yaml:"headless"`
	ControlURL string `yaml:"control_url"`

	MaxIdle        int           `yaml:"max_idle"`
	ActiveTTL      time.Duration `yaml:"active_ttl"`
	BackgroundTTL  time.Duration `yaml:"background_ttl"`
	IdleAfter      time.Duration `yaml:"idle_after"`
	SweepInterval  time.Duration `yaml:"sweep_interval"`
	HiddenGrace    time.Duration `yaml:"hidden_grace"`
	CacheTTL       time.Duration `yaml:"cache_ttl"`
	SweepThreshold int           `yaml:"cache_sweep_threshold"`
	WaitTimeout    time.Duration `yaml:"wait_timeout"`
	ReleaseDelay   time.Duration `yaml:"release_delay"`
}

type StoreConfig struct {
	// Timestamps is the sqlite file holding first-seen chapter dates.
	// "memory" keeps them for the current run only.
	Timestamps string `yaml:"timestamps"`
}

type Options struct {
	IgnoreConfig bool
	// Path loads this file instead of the active profile.
	Path string

	Debug          bool
	Output         string
	ImageWorkers   int
	ChapterWorkers int
	KeepFolders    bool
	SkipBroken     bool
	Source         string
	Cookie         string
	CookieFile     string
	UserAgent      string
}

func DefaultConfig() *Config {
	return &Config{
		Output:         ".",
		ImageWorkers:   5,
		ChapterWorkers: 2,
		AllowExt:       []string{"jpg", "jpeg", "png", "webp"},
		HTTP: HTTPConfig{
			Timeout:      30 * time.Second,
			Retries:      3,
			RetryBackoff: 500 * time.Millisecond,
		},
		Engine: EngineConfig{
			Enabled:        true,
			Headless:       true,
			MaxIdle:        2,
			ActiveTTL:      3 * time.Minute,
			BackgroundTTL:  30 * time.Second,
			IdleAfter:      time.Minute,
			SweepInterval:  30 * time.Second,
			HiddenGrace:    time.Minute,
			CacheTTL:       5 * time.Minute,
			SweepThreshold: 50,
			WaitTimeout:    8 * time.Second,
			ReleaseDelay:   2500 * time.Millisecond,
		},
		Store: StoreConfig{
			Timestamps: filepath.Join(DefaultRoot(), "timestamps.db"),
		},
		Sources: map[string]map[string]string{},
	}
}

func SaveYAML(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// LoadYAML reads path over the defaults, so a partial file only overrides
// the keys it sets.
func LoadYAML(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	c := DefaultConfig()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, err
	}

	return c, nil
}

// LoadMerged resolves the config file (explicit path, then the active
// profile, then built-in defaults), applies the command-line options and
// fills in anything still unset. The second result says where the config
// came from.
func LoadMerged(opts Options) (*Config, string, error) {
	var (
		cfg  *Config
		used string
	)

	switch {
	case opts.Path != "":
		c, err := LoadYAML(opts.Path)
		if err != nil {
			return nil, "", fmt.Errorf("failed to load config %s: %w", opts.Path, err)
		}
		cfg, used = c, opts.Path

	case opts.IgnoreConfig:
		cfg, used = DefaultConfig(), "(ignored config)"

	default:
		_, activePath, err := DefaultProfiles().Active()
		if errors.Is(err, ErrNoConfig) {
			cfg, used = DefaultConfig(), "(default config in memory)\nRun `mangaext config init` to create an actual config\n"
			break
		}
		if err != nil {
			return nil, "", err
		}

		c, err := LoadYAML(activePath)
		if err != nil {
			return nil, "", fmt.Errorf("failed to load config %s: %w", activePath, err)
		}
		cfg, used = c, activePath
	}

	mergeConfig(cfg, opts)
	normalizeDefaults(cfg)

	return cfg, used, nil
}

func mergeConfig(c *Config, o Options) {
	if o.Output != "" {
		c.Output = o.Output
	}
	if o.ImageWorkers != 0 {
		c.ImageWorkers = o.ImageWorkers
	}
	if o.ChapterWorkers != 0 {
		c.ChapterWorkers = o.ChapterWorkers
	}
	if o.KeepFolders {
		c.KeepFolders = true
	}
	if o.Debug {
		c.Debug = true
	}
	if o.SkipBroken {
		c.SkipBroken = true
	}
	if o.Source != "" {
		c.DefaultSource = o.Source
	}
	if o.Cookie != "" {
		c.HTTP.Cookie = o.Cookie
	}
	if o.CookieFile != "" {
		c.HTTP.CookieFile = o.CookieFile
	}
	if o.UserAgent != "" {
		c.HTTP.UserAgent = o.UserAgent
	}
}

func normalizeDefaults(c *Config) {
	def := DefaultConfig()

	if c.Output == "" {
		c.Output = def.Output
	}
	if c.ImageWorkers <= 0 {
		c.ImageWorkers = def.ImageWorkers
	}
	if c.ChapterWorkers <= 0 {
		c.ChapterWorkers = def.ChapterWorkers
	}
	if c.HTTP.Timeout <= 0 {
		c.HTTP.Timeout = def.HTTP.Timeout
	}
	if c.HTTP.Retries <= 0 {
		c.HTTP.Retries = 1
	}
	if c.Engine.MaxIdle <= 0 {
		c.Engine.MaxIdle = def.Engine.MaxIdle
	}
	if c.Store.Timestamps == "" {
		c.Store.Timestamps = def.Store.Timestamps
	}
	if c.Sources == nil {
		c.Sources = map[string]map[string]string{}
	}
}

// SourceSettings returns the settings block for one source, never nil.
func (c *Config) SourceSettings(id string) map[string]string {
	if s, ok := c.Sources[id]; ok && s != nil {
		return s
	}

	return map[string]string{}
}

func (c *Config) Print(w io.Writer) {
	fmt.Fprintf(w, " -output: %s\n", c.Output)
	fmt.Fprintf(w, " -image_workers: %d\n", c.ImageWorkers)
	fmt.Fprintf(w, " -chapter_workers: %d\n", c.ChapterWorkers)
	if c.KeepFolders {
		fmt.Fprintf(w, " -keep_folders: %t\n", c.KeepFolders)
	}
	if c.Debug {
		fmt.Fprintf(w, " -debug: %t\n", c.Debug)
	}
	if c.SkipBroken {
		fmt.Fprintf(w, " -skip_broken: %t\n", c.SkipBroken)
	}
	if len(c.AllowExt) > 0 {
		fmt.Fprintf(w, " -allow_ext: %s\n", strings.Join(c.AllowExt, ", "))
	}
	if c.DefaultSource != "" {
		fmt.Fprintf(w, " -default_source: %s\n", c.DefaultSource)
	}

	fmt.Fprintf(w, " -http.timeout: %s\n", c.HTTP.Timeout)
	fmt.Fprintf(w, " -http.retries: %d\n", c.HTTP.Retries)
	if c.HTTP.UserAgent != "" {
		fmt.Fprintf(w, " -http.user_agent: %s\n", c.HTTP.UserAgent)
	}
	if c.HTTP.CookieFile != "" {
		fmt.Fprintf(w, " -http.cookie_file: %s\n", c.HTTP.CookieFile)
	}
	if c.HTTP.BypassCloudflare {
		fmt.Fprintf(w, " -http.bypass_cloudflare: %t\n", c.HTTP.BypassCloudflare)
	}

	fmt.Fprintf(w, " -engine.enabled: %t\n", c.Engine.Enabled)
	if c.Engine.Enabled {
		if c.Engine.BrowserBin != "" {
			fmt.Fprintf(w, " -engine.browser_bin: %s\n", c.Engine.BrowserBin)
		}
		if c.Engine.ControlURL != "" {
			fmt.Fprintf(w, " -engine.control_url: %s\n", c.Engine.ControlURL)
		}
		fmt.Fprintf(w, " -engine.max_idle: %d\n", c.Engine.MaxIdle)
		fmt.Fprintf(w, " -engine.cache_ttl: %s\n", c.Engine.CacheTTL)
	}

	fmt.Fprintf(w, " -store.timestamps: %s\n", c.Store.Timestamps)

	ids := make([]string, 0, len(c.Sources))
	for id := range c.Sources {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		keys := make([]string, 0, len(c.Sources[id]))
		for k := range c.Sources[id] {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, k := range keys {
			fmt.Fprintf(w, " -sources.%s.%s: %s\n", id, k, c.Sources[id][k])
		}
	}
}
