// Package config loads YAML-backed Configuration/ScanConfig defaults for
// local/standalone runs and provides a TTL cache for the ScanConfig
// (size tolerance, whitelist, scan flags) instead of process-global
// variables. DNS servers are part of Configuration and are not cached.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/webwatch/monitor/internal/model"
)

// FileConfig is the on-disk shape for local/standalone runs (no CRUD-backed
// Repository). Production deployments load Configuration/ScanConfig from
// the Repository instead; `monitor serve` and `monitor run` load this file
// through their --config flag when run outside the larger platform.
type FileConfig struct {
	NotificationEmail         string   `yaml:"notificationEmail"`
	UserAgent                 string   `yaml:"userAgent"`
	Proxies                   []string `yaml:"proxies"`
	DNSServers                []string `yaml:"dnsServers"`
	DefacementWhitelist       []string `yaml:"defacementWhitelist"`
	VTAPIKey                  string   `yaml:"vtApiKey"`
	HistoryDB                 string   `yaml:"historyDB"`
	ListenAddr                string   `yaml:"listenAddr"`
	MetricsPath               string   `yaml:"metricsPath"`
	NotifyEnabled             *bool    `yaml:"notifyEnabled"`
	UseProxy                  bool     `yaml:"useProxy"`
	FallbackDirectOnProxyFail bool     `yaml:"fallbackDirectOnProxyFail"`
	ScanFrequencySeconds      int      `yaml:"scanFrequencySeconds"`
	MaxWorkers                int      `yaml:"maxWorkers"`
	VTFrequencySeconds        int      `yaml:"vtFrequencySeconds"`
	DefacementSizeTolerance   int64    `yaml:"defacementSizeTolerance"`
	HTTPMaxResponseMS         int      `yaml:"httpMaxResponseMs"`
	SSLEnabled                bool     `yaml:"sslEnabled"`
	DomainEnabled             bool     `yaml:"domainEnabled"`
	DefacementEnabled         bool     `yaml:"defacementEnabled"`
	HTTPEnabled               bool     `yaml:"httpEnabled"`
	VTEnabled                 bool     `yaml:"vtEnabled"`
}

// Defaults returns a FileConfig seeded from model.DefaultConfiguration /
// model.DefaultScanConfig.
func Defaults() *FileConfig {
	cfg := model.DefaultConfiguration()
	scan := model.DefaultScanConfig()
	notify := cfg.NotifyEnabled
	return &FileConfig{
		ListenAddr:              ":8080",
		MetricsPath:             "/metrics",
		HistoryDB:               "monitor.db",
		UserAgent:               cfg.UserAgent,
		NotifyEnabled:           &notify,
		ScanFrequencySeconds:    cfg.ScanFrequencySeconds,
		MaxWorkers:              cfg.MaxWorkers,
		SSLEnabled:              scan.SSLEnabled,
		DomainEnabled:           scan.DomainEnabled,
		DefacementEnabled:       scan.DefacementEnabled,
		HTTPEnabled:             scan.HTTPEnabled,
		DefacementSizeTolerance: scan.DefacementSizeTolerance,
		HTTPMaxResponseMS:       scan.HTTPMaxResponseMS,
		VTFrequencySeconds:      scan.VTFrequencySeconds,
	}
}

// Load reads a YAML config file and merges it over Defaults.
func Load(path string) (*FileConfig, error) {
	c := Defaults()
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return c, nil
}

// Validate checks that the loaded config values are sane.
func (c *FileConfig) Validate() error {
	if c.ScanFrequencySeconds <= 0 {
		return fmt.Errorf("scanFrequencySeconds must be positive, got %d", c.ScanFrequencySeconds)
	}
	if c.MaxWorkers != 0 && (c.MaxWorkers < 5 || c.MaxWorkers > 30) {
		return fmt.Errorf("maxWorkers must be between 5 and 30, got %d", c.MaxWorkers)
	}
	if c.ListenAddr == "" {
		return fmt.Errorf("listenAddr must not be empty")
	}
	return nil
}

// Configuration converts the file config into model.Configuration.
func (c *FileConfig) Configuration() model.Configuration {
	notify := true
	if c.NotifyEnabled != nil {
		notify = *c.NotifyEnabled
	}
	cfg := model.Configuration{
		NotificationEmail:         c.NotificationEmail,
		UserAgent:                 c.UserAgent,
		Proxies:                   c.Proxies,
		DNSServers:                c.DNSServers,
		NotifyEnabled:             notify,
		UseProxy:                  c.UseProxy,
		FallbackDirectOnProxyFail: c.FallbackDirectOnProxyFail,
		ScanFrequencySeconds:      c.ScanFrequencySeconds,
		MaxWorkers:                c.MaxWorkers,
	}
	cfg.Clamp()
	return cfg
}

// ScanConfig converts the file config into model.ScanConfig.
func (c *FileConfig) ScanConfig() model.ScanConfig {
	whitelist := make(map[string]struct{}, len(c.DefacementWhitelist))
	for _, h := range c.DefacementWhitelist {
		whitelist[h] = struct{}{}
	}
	return model.ScanConfig{
		SSLEnabled:              c.SSLEnabled,
		DomainEnabled:           c.DomainEnabled,
		DefacementEnabled:       c.DefacementEnabled,
		HTTPEnabled:             c.HTTPEnabled,
		SSLCheckError:           true,
		SSLCheckExpiry:          true,
		DomainCheckWhois:        true,
		DomainCheckDNS:          true,
		DomainCheckExpiry:       true,
		DefacementSizeTolerance: c.DefacementSizeTolerance,
		DefacementWhitelist:     whitelist,
		HTTPMaxResponseMS:       c.HTTPMaxResponseMS,
		VTEnabled:               c.VTEnabled,
		VTAPIKey:                c.VTAPIKey,
		VTFrequencySeconds:      c.VTFrequencySeconds,
	}
}
