// Package config defines the single Config tree every dc-pipeline
// binary binds its flags onto, loaded from JSON with environment
// overrides taking precedence.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

type ClassifierConfig struct {
	ManifestsRoot        string  `json:"manifests_root" validate:"required"`
	QueuesRoot           string  `json:"queues_root" validate:"required"`
	LedgerRoot           string  `json:"ledger_root" validate:"required"`
	DenylistPath         string  `json:"denylist_path"`
	LicenseMapPath       string  `json:"license_map_path" validate:"required"`
	NoFetch              bool    `json:"no_fetch"`
	MinLicenseConfidence float64 `json:"min_license_confidence" validate:"gte=0,lte=1"`
	AuditDSN             string  `json:"-"` // DC_AUDIT_DSN only, never persisted to JSON
}

type AcquireConfig struct {
	RawRoot       string `json:"raw_root" validate:"required"`
	Workers       int    `json:"workers" validate:"gte=1"`
	Overwrite     bool   `json:"overwrite"`
	Resume        bool   `json:"resume"`
	Execute       bool   `json:"execute"`
	VerifyZenodoMD5 bool `json:"verify_zenodo_md5"`
}

type ScreenConfig struct {
	DatasetRoot   string `json:"dataset_root" validate:"required"`
	PitchRoot     string `json:"pitch_root"`
	Domain        string `json:"domain" validate:"required"`
	ShardMaxBytes int64  `json:"shard_max_bytes" validate:"gte=0"`

	// DedupBackend selects internal/dedup's backend ("minhash",
	// "jaccard"); empty disables near-duplicate detection for the run.
	DedupBackend string `json:"dedup_backend"`
}

type BudgetConfig struct {
	RunMaxBytes          int64 `json:"run_max_bytes" validate:"gte=0"`
	MaxFilesPerTarget    int   `json:"max_files_per_target" validate:"gte=0"`
	MaxBytesPerFile      int64 `json:"max_bytes_per_file" validate:"gte=0"`
	MaxBytesPerTarget    int64 `json:"max_bytes_per_target" validate:"gte=0"`
}

type NetworkConfig struct {
	AllowNonGlobalDownloadHosts bool     `json:"allow_non_global_download_hosts"`
	InternalMirrorAllowlist     []string `json:"internal_mirror_allowlist"`
	FetchMaxAttempts            int      `json:"fetch_max_attempts" validate:"gte=1"`
	FetchBackoffBaseSeconds     float64  `json:"fetch_backoff_base_seconds" validate:"gt=0"`
	FetchBackoffMaxSeconds      float64  `json:"fetch_backoff_max_seconds" validate:"gt=0"`
}

type ObservabilityConfig struct {
	LogLevel      string `json:"log_level"`
	LogFormat     string `json:"log_format"`
	MetricsServer bool   `json:"metrics_server"`
	OTELEndpoint  string `json:"otel_endpoint"`
}

type Config struct {
	Classifier    ClassifierConfig    `json:"classifier"`
	Acquire       AcquireConfig       `json:"acquire"`
	Screen        ScreenConfig        `json:"screen"`
	Budget        BudgetConfig        `json:"budget"`
	Network       NetworkConfig       `json:"network"`
	Observability ObservabilityConfig `json:"observability"`
}

// DefaultConfig returns conservative defaults suitable for a first run
// against a fresh dataset_root/manifests_root tree.
func DefaultConfig() *Config {
	return &Config{
		Classifier: ClassifierConfig{
			ManifestsRoot:        "manifests",
			QueuesRoot:           "queues",
			LedgerRoot:           "ledger",
			LicenseMapPath:       "license_map.json",
			MinLicenseConfidence: 0.7,
		},
		Acquire: AcquireConfig{
			RawRoot:         "raw",
			Workers:         4,
			Resume:          true,
			VerifyZenodoMD5: true,
		},
		Screen: ScreenConfig{
			DatasetRoot:   "dataset",
			PitchRoot:     "pitch",
			Domain:        "standard",
			ShardMaxBytes: 512 * 1024 * 1024,
		},
		Budget: BudgetConfig{
			RunMaxBytes:       0, // 0 == unlimited
			MaxFilesPerTarget: 0,
			MaxBytesPerFile:   0,
			MaxBytesPerTarget: 0,
		},
		Network: NetworkConfig{
			FetchMaxAttempts:        4,
			FetchBackoffBaseSeconds: 2.0,
			FetchBackoffMaxSeconds:  30.0,
		},
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "text",
		},
	}
}

// Preset returns one of the three named configuration presets.
func Preset(name string) (*Config, error) {
	cfg := DefaultConfig()
	switch name {
	case "", "default":
		return cfg, nil
	case "strict":
		cfg.Classifier.MinLicenseConfidence = 0.9
		cfg.Network.AllowNonGlobalDownloadHosts = false
		cfg.Acquire.VerifyZenodoMD5 = true
		return cfg, nil
	case "offline":
		cfg.Classifier.NoFetch = true
		cfg.Acquire.Execute = false
		return cfg, nil
	default:
		return nil, fmt.Errorf("unknown config preset: %s", name)
	}
}

// Load reads configPath (if non-empty; missing files are ignored so a
// default-only configuration still loads), applies environment
// overrides, and validates the result.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()
	if configPath != "" {
		if err := cfg.loadFromFile(configPath); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}
	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFromFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return json.Unmarshal(b, c)
}

// applyEnvOverrides applies the DC_*-prefixed environment override
// convention; environment values always win over file/default.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("DC_AUDIT_DSN"); v != "" {
		c.Classifier.AuditDSN = v
	}
	if v := os.Getenv("DC_NO_FETCH"); v != "" {
		c.Classifier.NoFetch = mustBool(v, c.Classifier.NoFetch)
	}
	if v := os.Getenv("DC_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Acquire.Workers = n
		}
	}
	if v := os.Getenv("DC_ALLOW_NON_GLOBAL_DOWNLOAD_HOSTS"); v != "" {
		c.Network.AllowNonGlobalDownloadHosts = mustBool(v, c.Network.AllowNonGlobalDownloadHosts)
	}
	if v := os.Getenv("DC_LOG_LEVEL"); v != "" {
		c.Observability.LogLevel = v
	}
	if v := os.Getenv("DC_METRICS_SERVER"); v == "1" {
		c.Observability.MetricsServer = true
	}
	if v := os.Getenv("DC_INTERNAL_MIRROR_ALLOWLIST"); v != "" {
		c.Network.InternalMirrorAllowlist = strings.Split(v, ",")
	}
}

func mustBool(s string, fallback bool) bool {
	b, err := strconv.ParseBool(s)
	if err != nil {
		return fallback
	}
	return b
}

var validate = validator.New()

func (c *Config) Validate() error {
	return validate.Struct(c)
}
