// Package config loads environment-driven configuration, in the shape of
// Mindburn-Labs/helm's pkg/config/config.go (Load() *Config, os.Getenv with
// fallbacks) — extended with the fields this system's boundary, index, and
// archive layers need. A YAML deployment-profile loader, grounded on
// pkg/config/profile_loader.go, lets an operator override these defaults
// from a named profile file instead of environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds process-wide configuration, loaded once at startup and
// passed explicitly to every component that needs it — no package-level
// global, per spec §9 "No global state".
type Config struct {
	ArtifactRoot   string
	HTTPPort       string
	LogLevel       string
	PolicyBundleDir string
	OTLPEndpoint   string
	IndexDSN       string // empty disables internal/index
	RedisAddr      string // empty disables the distributed rate limiter
	ArchiveURL     string // "s3://bucket/prefix" or "gs://bucket/prefix"; empty disables internal/archive
	JWTSigningKey  string
	RateLimitRPS   float64
}

// Load reads configuration from the environment, falling back to
// development-friendly defaults for anything unset.
func Load() *Config {
	return &Config{
		ArtifactRoot:    getenvDefault("VERASEAL_ARTIFACT_ROOT", "./artifacts"),
		HTTPPort:        getenvDefault("VERASEAL_HTTP_PORT", "8080"),
		LogLevel:        getenvDefault("VERASEAL_LOG_LEVEL", "INFO"),
		PolicyBundleDir: getenvDefault("VERASEAL_POLICY_BUNDLE_DIR", "./policies"),
		OTLPEndpoint:    getenvDefault("VERASEAL_OTLP_ENDPOINT", "localhost:4317"),
		IndexDSN:        os.Getenv("VERASEAL_INDEX_DSN"),
		RedisAddr:       os.Getenv("VERASEAL_REDIS_ADDR"),
		ArchiveURL:      os.Getenv("VERASEAL_ARCHIVE_URL"),
		JWTSigningKey:   os.Getenv("VERASEAL_JWT_SIGNING_KEY"),
		RateLimitRPS:    getenvFloatDefault("VERASEAL_RATE_LIMIT_RPS", 50.0),
	}
}

func getenvDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvFloatDefault(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

// Profile is a named deployment profile that overrides a subset of Config
// fields — e.g. "dev" (local filesystem, no index/archive) or "airgapped"
// (no OTLP endpoint, no archive). Mirrors the shape of
// pkg/config/profile_loader.go's RegionalProfile, narrowed to this system's
// knobs.
type Profile struct {
	Name            string `yaml:"name"`
	ArtifactRoot    string `yaml:"artifact_root,omitempty"`
	HTTPPort        string `yaml:"http_port,omitempty"`
	LogLevel        string `yaml:"log_level,omitempty"`
	PolicyBundleDir string `yaml:"policy_bundle_dir,omitempty"`
	OTLPEndpoint    string `yaml:"otlp_endpoint,omitempty"`
	IndexDSN        string `yaml:"index_dsn,omitempty"`
	RedisAddr       string `yaml:"redis_addr,omitempty"`
	ArchiveURL      string `yaml:"archive_url,omitempty"`
}

// LoadProfile reads profile_<name>.yaml from profilesDir.
func LoadProfile(profilesDir, name string) (*Profile, error) {
	path := filepath.Join(profilesDir, fmt.Sprintf("profile_%s.yaml", name))
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: load profile %q: %w", name, err)
	}
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("config: parse profile %q: %w", name, err)
	}
	if p.Name == "" {
		p.Name = name
	}
	return &p, nil
}

// Apply overlays non-empty Profile fields onto cfg, returning a new Config.
func (p *Profile) Apply(cfg *Config) *Config {
	out := *cfg
	if p.ArtifactRoot != "" {
		out.ArtifactRoot = p.ArtifactRoot
	}
	if p.HTTPPort != "" {
		out.HTTPPort = p.HTTPPort
	}
	if p.LogLevel != "" {
		out.LogLevel = p.LogLevel
	}
	if p.PolicyBundleDir != "" {
		out.PolicyBundleDir = p.PolicyBundleDir
	}
	if p.OTLPEndpoint != "" {
		out.OTLPEndpoint = p.OTLPEndpoint
	}
	if p.IndexDSN != "" {
		out.IndexDSN = p.IndexDSN
	}
	if p.RedisAddr != "" {
		out.RedisAddr = p.RedisAddr
	}
	if p.ArchiveURL != "" {
		out.ArchiveURL = p.ArchiveURL
	}
	return &out
}
