package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment variable the audit reads.
const EnvPrefix = "SPF_"

// ConfigFileEnv names the variable holding an optional config file path.
const ConfigFileEnv = EnvPrefix + "CONFIG"

// AppConfig holds the audit configuration.
type AppConfig struct {
	// Env is the runtime environment, either "dev" or "prod".
	Env string `koanf:"env" validate:"required,oneof=dev prod"`

	Log     LogConfig     `koanf:"log"`
	Scan    ScanConfig    `koanf:"scan"`
	Report  ReportConfig  `koanf:"report"`
	GitHub  GitHubConfig  `koanf:"github"`
	History HistoryConfig `koanf:"history"`
	Probe   ProbeConfig   `koanf:"probe"`
}

// LogConfig controls log verbosity: "debug", "info", "warn", or "error".
type LogConfig struct {
	Level string `koanf:"level" validate:"required,oneof=debug info warn error"`
}

// ScanConfig selects what is scanned.
type ScanConfig struct {
	// Root is the directory walked for configuration files.
	Root string `koanf:"root" validate:"required"`

	// Extension is the file name suffix of scanned files.
	Extension string `koanf:"extension" validate:"required,file_ext"`

	// Workers bounds how many files are scanned concurrently.
	Workers int `koanf:"workers" validate:"gte=1,lte=256"`

	// Progress draws a progress bar on stderr while scanning.
	Progress bool `koanf:"progress"`
}

// ReportConfig controls console output.
type ReportConfig struct {
	Format string `koanf:"format" validate:"required,oneof=text json yaml"`
	Color  bool   `koanf:"color"`
}

// GitHubConfig enables posting violations as an issue comment.
type GitHubConfig struct {
	Enabled   bool   `koanf:"enabled"`
	Token     string `koanf:"token" validate:"required_if=Enabled true"`
	Owner     string `koanf:"owner" validate:"required_if=Enabled true"`
	Repo      string `koanf:"repo" validate:"required_if=Enabled true"`
	Issue     int    `koanf:"issue" validate:"required_if=Enabled true,gte=0"`
	UserAgent string `koanf:"user_agent" validate:"required"`

	// BaseURL overrides the API endpoint, e.g. for GitHub Enterprise.
	BaseURL string `koanf:"base_url" validate:"omitempty,url"`
}

// HistoryConfig points at the database of already-reported hostnames.
// An empty DB disables history.
type HistoryConfig struct {
	DB string `koanf:"db"`
}

// ProbeConfig controls live DNS lookups for violations.
type ProbeConfig struct {
	Enabled bool `koanf:"enabled"`

	// Nameservers in ip:port format. Empty uses the system resolvers.
	Nameservers []string      `koanf:"nameservers" validate:"omitempty,dive,ip_port"`
	Timeout     time.Duration `koanf:"timeout" validate:"gte=0"`
}

// DEFAULT_APP_CONFIG defines the default audit configuration.
var DEFAULT_APP_CONFIG = AppConfig{
	Env: "prod",
	Log: LogConfig{
		Level: "info",
	},
	Scan: ScanConfig{
		Root:      ".",
		Extension: ".tf",
		Workers:   1,
	},
	Report: ReportConfig{
		Format: "text",
		Color:  true,
	},
	GitHub: GitHubConfig{
		UserAgent: "tf-spf-audit",
	},
	Probe: ProbeConfig{
		Timeout: 5 * time.Second,
	},
}

// sections are the nested config groups an env var can address.
var sections = map[string]bool{
	"log":     true,
	"scan":    true,
	"report":  true,
	"github":  true,
	"history": true,
	"probe":   true,
}

// envKey maps SPF_GITHUB_USER_AGENT to github.user_agent.
func envKey(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	if i := strings.Index(key, "_"); i > 0 && sections[key[:i]] {
		return key[:i] + "." + key[i+1:]
	}
	return key
}

// validIPPort validates whether the provided field value is a valid "IP:Port".
func validIPPort(fl validator.FieldLevel) bool {
	addr := fl.Field().String()
	ip, port, err := net.SplitHostPort(addr)
	if err != nil || ip == "" || port == "" {
		return false
	}
	if net.ParseIP(ip) == nil {
		return false
	}
	portNum, err := strconv.ParseUint(port, 10, 16)
	return err == nil && portNum > 0 && portNum < 65536
}

// validFileExt accepts a dot-prefixed suffix without path separators.
func validFileExt(fl validator.FieldLevel) bool {
	ext := fl.Field().String()
	return len(ext) > 1 && strings.HasPrefix(ext, ".") && !strings.ContainsAny(ext, `/\`)
}

// envLoader loads environment variables with the prefix "SPF_".
// Values holding spaces or commas become lists. It can be mocked in tests.
var envLoader = func(k *koanf.Koanf) error {
	return k.Load(env.Provider(".", env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(key, value string) (string, any) {
			key = envKey(key)
			value = strings.TrimSpace(value)

			if value == "" {
				return key, value
			}

			if key == "probe.nameservers" && (strings.Contains(value, " ") || strings.Contains(value, ",")) {
				parts := strings.FieldsFunc(value, func(r rune) bool {
					return r == ' ' || r == ','
				})
				return key, parts
			}

			return key, value
		},
	}), nil)
}

// defaultLoader loads DEFAULT_APP_CONFIG into k.
var defaultLoader = func(k *koanf.Koanf) error {
	return k.Load(structs.Provider(DEFAULT_APP_CONFIG, "koanf"), nil)
}

// fileLoader loads the config file at path, picking the parser from its extension.
var fileLoader = func(k *koanf.Koanf, path string) error {
	var parser koanf.Parser
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	case ".toml":
		parser = toml.Parser()
	default:
		return fmt.Errorf("unsupported config file type: %s", path)
	}
	return k.Load(file.Provider(path), parser)
}

// registerValidation registers the custom "ip_port" and "file_ext" validators.
var registerValidation = func(v *validator.Validate) error {
	if err := v.RegisterValidation("ip_port", validIPPort); err != nil {
		return err
	}
	return v.RegisterValidation("file_ext", validFileExt)
}

// Load builds an AppConfig from defaults, the optional file named by
// SPF_CONFIG and SPF_* environment variables, then validates it.
func Load() (*AppConfig, error) {
	k := koanf.New(".")

	err := defaultLoader(k)
	if err != nil {
		return nil, fmt.Errorf("error loading default config: %w", err)
	}

	if path := os.Getenv(ConfigFileEnv); path != "" {
		if err := fileLoader(k, path); err != nil {
			return nil, fmt.Errorf("error loading config file: %w", err)
		}
	}

	err = envLoader(k)
	if err != nil {
		return nil, fmt.Errorf("error loading env: %w", err)
	}

	var cfg AppConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cfg against its struct tags and custom rules.
func Validate(cfg *AppConfig) error {
	validate := validator.New(validator.WithRequiredStructEnabled())

	if err := registerValidation(validate); err != nil {
		return fmt.Errorf("error registering validation: %w", err)
	}

	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}
