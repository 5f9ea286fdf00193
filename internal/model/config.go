package model

import "time"

// ScanConfig is the global battery of scan-activation flags and thresholds.
// Unlike Configuration, these values are cached with a TTL by
// internal/config.Cache rather than read fresh on every probe.
type ScanConfig struct {
	VTAPIKey              string
	DefacementWhitelist   map[string]struct{}
	SSLEnabled            bool
	DomainEnabled         bool
	DefacementEnabled     bool
	HTTPEnabled           bool
	SSLCheckError         bool
	SSLCheckExpiry        bool
	DomainCheckWhois      bool
	DomainCheckDNS        bool
	DomainCheckExpiry     bool
	DefacementSizeTolerance int64
	HTTPMaxResponseMS     int
	VTEnabled             bool
	VTFrequencySeconds    int
}

// Configuration is the global runtime configuration.
type Configuration struct {
	NotificationEmail        string
	UserAgent                string
	Proxies                  []string // ordered list of proxy URLs
	DNSServers               []string
	NotifyEnabled            bool
	UseProxy                 bool
	FallbackDirectOnProxyFail bool
	ScanFrequencySeconds     int
	MaxWorkers               int // bounded 5-30
}

// Clamp enforces the 5-30 MaxWorkers bound.
func (c *Configuration) Clamp() {
	if c.MaxWorkers < 5 {
		c.MaxWorkers = 5
	}
	if c.MaxWorkers > 30 {
		c.MaxWorkers = 30
	}
}

// DefaultConfiguration mirrors the Python Monitoring class's constructor
// defaults (original_source/backend/apps/cerb_scans/monitoring.py).
func DefaultConfiguration() Configuration {
	return Configuration{
		UserAgent:            "Mozilla/5.0 (X11; Linux x86_64) webwatch-monitor",
		NotifyEnabled:        true,
		ScanFrequencySeconds: 3600,
		MaxWorkers:           5,
	}
}

// DefaultScanConfig mirrors the original's default scan criteria.
func DefaultScanConfig() ScanConfig {
	return ScanConfig{
		SSLEnabled:        true,
		DomainEnabled:     true,
		DefacementEnabled: true,
		HTTPEnabled:       true,
		SSLCheckError:     true,
		SSLCheckExpiry:    true,
		DomainCheckWhois:  true,
		DomainCheckDNS:    true,
		DomainCheckExpiry: true,
		DefacementSizeTolerance: 100,
		HTTPMaxResponseMS: 5000,
		VTFrequencySeconds: 24 * 60 * 60,
	}
}

// ExpiryThresholdDays are the day-remaining thresholds that trigger
// expiry alerts for both Domain and TLS probes.
var ExpiryThresholdDays = []int{30, 14, 7}

// TTL for the cached ScanConfig (size_tolerance, whitelist and the scan
// flags). dns_servers belongs to Configuration, which is not cached.
const ScanConfigCacheTTL = 12 * time.Hour
