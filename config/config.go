package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const (
	ConfigDir      = ".flowpad"
	ConfigFileName = "config.yaml"
	StoreFileName  = "flowcharts.gob"
	LogFileName    = "flowpad.log"
	EnvFileName    = ".env"
	EnvPrefix      = "FLOWPAD"
)

// ErrNoProject is returned by FindProjectRoot when no .flowpad directory
// exists in the working directory or any parent.
var ErrNoProject = errors.New("no flowpad project found (run 'flowpad init' first)")

type Config struct {
	Version  int            `yaml:"version"`
	API      APIConfig      `yaml:"api"`
	Autosave AutosaveConfig `yaml:"autosave"`
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
}

// APIConfig locates the flowchart REST API.
type APIConfig struct {
	BaseURL   string `yaml:"base_url"`
	TimeoutMs int    `yaml:"timeout_ms"`
}

// AutosaveConfig tunes the editor's autosave scheduler.
type AutosaveConfig struct {
	IntervalMs      int `yaml:"interval_ms"`       // periodic save interval (default: 5000)
	ErrorCooldownMs int `yaml:"error_cooldown_ms"` // how long the error indicator stays up (default: 2000)
	ExitBudgetMs    int `yaml:"exit_budget_ms"`    // time allowed for the save on exit (default: 3000)
}

type ServerConfig struct {
	Listen string      `yaml:"listen"`
	Store  StoreConfig `yaml:"store"`
}

type StoreConfig struct {
	Backend  string         `yaml:"backend"` // gob | postgres | redis
	GOBPath  string         `yaml:"gob_path,omitempty"`
	Postgres PostgresConfig `yaml:"postgres,omitempty"`
	Redis    RedisConfig    `yaml:"redis,omitempty"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

type RedisConfig struct {
	URL    string `yaml:"url"`
	Prefix string `yaml:"prefix,omitempty"` // key prefix (default: "flowpad")
}

type LogConfig struct {
	Level  string `yaml:"level"`  // trace | debug | info | warn | error
	Format string `yaml:"format"` // console | json
}

func DefaultConfig() *Config {
	return &Config{
		Version: 1,
		API: APIConfig{
			BaseURL:   "http://localhost:8000/api",
			TimeoutMs: 30000,
		},
		Autosave: AutosaveConfig{
			IntervalMs:      5000,
			ErrorCooldownMs: 2000,
			ExitBudgetMs:    3000,
		},
		Server: ServerConfig{
			Listen: "localhost:8000",
			Store: StoreConfig{
				Backend: "gob",
			},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

func GetConfigDir(projectRoot string) string {
	return filepath.Join(projectRoot, ConfigDir)
}

func GetConfigPath(projectRoot string) string {
	return filepath.Join(GetConfigDir(projectRoot), ConfigFileName)
}

func GetStorePath(projectRoot string) string {
	return filepath.Join(GetConfigDir(projectRoot), StoreFileName)
}

func GetLogPath(projectRoot string) string {
	return filepath.Join(GetConfigDir(projectRoot), LogFileName)
}

func Load(projectRoot string) (*Config, error) {
	configPath := GetConfigPath(projectRoot)

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults(projectRoot)

	return &cfg, nil
}

// Resolve returns the effective configuration for the current directory: the
// nearest project's config file if there is one, defaults otherwise, with
// .env and FLOWPAD_* environment overrides applied on top. projectRoot is
// empty when no project was found.
func Resolve() (cfg *Config, projectRoot string, err error) {
	projectRoot, findErr := FindProjectRoot()
	switch {
	case findErr == nil:
		if err := LoadDotEnv(projectRoot); err != nil {
			return nil, "", err
		}
		cfg, err = Load(projectRoot)
		if err != nil {
			return nil, "", err
		}
	case errors.Is(findErr, ErrNoProject):
		projectRoot = ""
		if err := LoadDotEnv("."); err != nil {
			return nil, "", err
		}
		cfg = DefaultConfig()
	default:
		return nil, "", findErr
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, "", err
	}
	return cfg, projectRoot, nil
}

// applyDefaults fills in values missing from older or hand-written config
// files.
func (c *Config) applyDefaults(projectRoot string) {
	defaults := DefaultConfig()

	if c.Version == 0 {
		c.Version = defaults.Version
	}
	if c.API.BaseURL == "" {
		c.API.BaseURL = defaults.API.BaseURL
	}
	if c.API.TimeoutMs <= 0 {
		c.API.TimeoutMs = defaults.API.TimeoutMs
	}

	if c.Autosave.IntervalMs <= 0 {
		c.Autosave.IntervalMs = defaults.Autosave.IntervalMs
	}
	if c.Autosave.ErrorCooldownMs <= 0 {
		c.Autosave.ErrorCooldownMs = defaults.Autosave.ErrorCooldownMs
	}
	if c.Autosave.ExitBudgetMs <= 0 {
		c.Autosave.ExitBudgetMs = defaults.Autosave.ExitBudgetMs
	}

	if c.Server.Listen == "" {
		c.Server.Listen = defaults.Server.Listen
	}
	if c.Server.Store.Backend == "" {
		c.Server.Store.Backend = defaults.Server.Store.Backend
	}
	if c.Server.Store.Backend == "gob" && c.Server.Store.GOBPath == "" && projectRoot != "" {
		c.Server.Store.GOBPath = GetStorePath(projectRoot)
	}
	if c.Server.Store.Backend == "redis" && c.Server.Store.Redis.Prefix == "" {
		c.Server.Store.Redis.Prefix = "flowpad"
	}

	if c.Log.Level == "" {
		c.Log.Level = defaults.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = defaults.Log.Format
	}
}

// envOverrides lists the FLOWPAD_* variables that win over the config file.
type envOverrides struct {
	APIURL             string `envconfig:"API_URL"`
	APITimeoutMs       int    `envconfig:"API_TIMEOUT_MS"`
	AutosaveIntervalMs int    `envconfig:"AUTOSAVE_INTERVAL_MS"`
	Listen             string `envconfig:"LISTEN"`
	StoreBackend       string `envconfig:"STORE_BACKEND"`
	GOBPath            string `envconfig:"GOB_PATH"`
	PostgresDSN        string `envconfig:"POSTGRES_DSN"`
	RedisURL           string `envconfig:"REDIS_URL"`
	LogLevel           string `envconfig:"LOG_LEVEL"`
	LogFormat          string `envconfig:"LOG_FORMAT"`
}

// ApplyEnv overlays FLOWPAD_* environment variables onto c.
func (c *Config) ApplyEnv() error {
	var env envOverrides
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return fmt.Errorf("failed to read environment overrides: %w", err)
	}

	if env.APIURL != "" {
		c.API.BaseURL = env.APIURL
	}
	if env.APITimeoutMs > 0 {
		c.API.TimeoutMs = env.APITimeoutMs
	}
	if env.AutosaveIntervalMs > 0 {
		c.Autosave.IntervalMs = env.AutosaveIntervalMs
	}
	if env.Listen != "" {
		c.Server.Listen = env.Listen
	}
	if env.StoreBackend != "" {
		c.Server.Store.Backend = env.StoreBackend
	}
	if env.GOBPath != "" {
		c.Server.Store.GOBPath = env.GOBPath
	}
	if env.PostgresDSN != "" {
		c.Server.Store.Postgres.DSN = env.PostgresDSN
	}
	if env.RedisURL != "" {
		c.Server.Store.Redis.URL = env.RedisURL
	}
	if env.LogLevel != "" {
		c.Log.Level = env.LogLevel
	}
	if env.LogFormat != "" {
		c.Log.Format = env.LogFormat
	}
	return nil
}

// LoadDotEnv loads dir/.env into the process environment when present.
// Variables already set are not overridden.
func LoadDotEnv(dir string) error {
	path := filepath.Join(dir, EnvFileName)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func (c *Config) Save(projectRoot string) error {
	configDir := GetConfigDir(projectRoot)

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	configPath := GetConfigPath(projectRoot)
	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func Exists(projectRoot string) bool {
	configPath := GetConfigPath(projectRoot)
	_, err := os.Stat(configPath)
	return err == nil
}

func FindProjectRoot() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}

	// Resolve symlinks to handle symlinked directories
	cwd, err = filepath.EvalSymlinks(cwd)
	if err != nil {
		return "", fmt.Errorf("failed to resolve symlinks: %w", err)
	}

	dir := cwd
	for {
		if Exists(dir) {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", ErrNoProject
}

// EnsureGitignoreEntry appends entry to dir/.gitignore unless a line already
// matches it. Failures are ignored; the entry is a convenience.
func EnsureGitignoreEntry(dir, entry string) {
	gitignorePath := filepath.Join(dir, ".gitignore")
	content, err := os.ReadFile(gitignorePath)
	if err == nil {
		for _, line := range strings.Split(string(content), "\n") {
			if strings.TrimSpace(line) == entry || strings.TrimSpace(line) == strings.TrimSuffix(entry, "/") {
				return
			}
		}
	}
	f, err := os.OpenFile(gitignorePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	defer f.Close()
	if len(content) > 0 && content[len(content)-1] != '\n' {
		if _, err := f.WriteString("\n"); err != nil {
			return
		}
	}
	_, _ = f.WriteString(entry + "\n")
}
