// Package config provides configuration management for geoproxy.
// Configuration is read from a YAML file with ${VAR} and ${VAR:-default}
// environment substitution and layered over built-in defaults.
package config

import "time"

// Default values.
const (
	DefaultServerAddress       = ""
	DefaultServerPort          = 8080
	DefaultMetricsPort         = 9090
	DefaultMetricsPath         = "/metrics"
	DefaultMetricsNamespace    = "geoproxy"
	DefaultServiceName         = "geoproxy"
	DefaultSearchLanguage      = "zh"
	DefaultSearchLimit         = 5
	DefaultMaxIdleConns        = 100
	DefaultMaxIdleConnsPerHost = 16
	DefaultReadTimeout         = 30 * time.Second
	DefaultReadHeaderTimeout   = 10 * time.Second
	DefaultWriteTimeout        = 60 * time.Second
	DefaultIdleTimeout         = 120 * time.Second
	DefaultShutdownTimeout     = 15 * time.Second
	DefaultIdleConnTimeout     = 90 * time.Second
)

// Config holds all configuration settings for geoproxy.
type Config struct {
	Server    ServerConfig                 `yaml:"server"`
	Logging   LoggingConfig                `yaml:"logging"`
	Metrics   MetricsConfig                `yaml:"metrics"`
	Tracing   TracingConfig                `yaml:"tracing"`
	Upstream  UpstreamConfig               `yaml:"upstream"`
	Proxy     ProxyConfig                  `yaml:"proxy"`
	Routes    RoutesConfig                 `yaml:"routes"`
	AllowList map[string]AllowListOverride `yaml:"allowList,omitempty"`
}

// ServerConfig configures the public HTTP listener.
type ServerConfig struct {
	Address           string   `yaml:"address"`
	Port              int      `yaml:"port"`
	ReadTimeout       Duration `yaml:"readTimeout"`
	ReadHeaderTimeout Duration `yaml:"readHeaderTimeout"`
	WriteTimeout      Duration `yaml:"writeTimeout"`
	IdleTimeout       Duration `yaml:"idleTimeout"`
	ShutdownTimeout   Duration `yaml:"shutdownTimeout"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json, console
	Output string `yaml:"output"` // stdout, stderr
}

// MetricsConfig configures the Prometheus listener.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Port      int    `yaml:"port"`
	Path      string `yaml:"path"`
	Namespace string `yaml:"namespace"`
}

// TracingConfig configures OpenTelemetry tracing.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	OTLPEndpoint string  `yaml:"otlpEndpoint"`
	SamplingRate float64 `yaml:"samplingRate"`
	ServiceName  string  `yaml:"serviceName"`
}

// UpstreamConfig configures the shared outbound HTTP client.
type UpstreamConfig struct {
	// Timeout bounds a whole upstream exchange. Zero means no client
	// timeout; the inbound request context still applies.
	Timeout             Duration `yaml:"timeout"`
	MaxIdleConns        int      `yaml:"maxIdleConns"`
	MaxIdleConnsPerHost int      `yaml:"maxIdleConnsPerHost"`
	IdleConnTimeout     Duration `yaml:"idleConnTimeout"`
	// UserAgent is sent when the allow-list entry does not set one.
	UserAgent string `yaml:"userAgent"`
}

// ProxyConfig configures the JSON dispatcher.
type ProxyConfig struct {
	// PropagateUpstreamStatus forwards non-2xx upstream status codes
	// instead of wrapping every JSON body as a 200.
	PropagateUpstreamStatus bool `yaml:"propagateUpstreamStatus"`
}

// RoutesConfig configures the search and elevation routes.
type RoutesConfig struct {
	SearchLanguage     string `yaml:"searchLanguage"`
	SearchDefaultLimit int    `yaml:"searchDefaultLimit"`
}

// AllowListOverride overrides fields of a built-in allow-list entry or
// declares a new one. Unset fields keep the built-in value.
type AllowListOverride struct {
	BaseURL     string            `yaml:"baseURL,omitempty"`
	Headers     map[string]string `yaml:"headers,omitempty"`
	CacheMaxAge *int              `yaml:"cacheMaxAge,omitempty"`
	Subdomains  []string          `yaml:"subdomains,omitempty"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Address:           DefaultServerAddress,
			Port:              DefaultServerPort,
			ReadTimeout:       Duration(DefaultReadTimeout),
			ReadHeaderTimeout: Duration(DefaultReadHeaderTimeout),
			WriteTimeout:      Duration(DefaultWriteTimeout),
			IdleTimeout:       Duration(DefaultIdleTimeout),
			ShutdownTimeout:   Duration(DefaultShutdownTimeout),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Port:      DefaultMetricsPort,
			Path:      DefaultMetricsPath,
			Namespace: DefaultMetricsNamespace,
		},
		Tracing: TracingConfig{
			Enabled:      false,
			SamplingRate: 1.0,
			ServiceName:  DefaultServiceName,
		},
		Upstream: UpstreamConfig{
			MaxIdleConns:        DefaultMaxIdleConns,
			MaxIdleConnsPerHost: DefaultMaxIdleConnsPerHost,
			IdleConnTimeout:     Duration(DefaultIdleConnTimeout),
		},
		Routes: RoutesConfig{
			SearchLanguage:     DefaultSearchLanguage,
			SearchDefaultLimit: DefaultSearchLimit,
		},
	}
}
