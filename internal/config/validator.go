package config

import (
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap/zapcore"
	"golang.org/x/text/language"
)

const maxPort = 65535

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Path    string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d validation errors:\n", len(e))
	for i := range e {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, e[i].Error())
	}
	return sb.String()
}

// HasErrors returns true if there are validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validator validates geoproxy configuration.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new configuration validator.
func NewValidator() *Validator {
	return &Validator{errors: make(ValidationErrors, 0)}
}

// Validate validates a configuration.
func Validate(cfg *Config) error {
	return NewValidator().Validate(cfg)
}

// Validate validates the configuration and returns every problem found as
// ValidationErrors.
func (v *Validator) Validate(cfg *Config) error {
	v.errors = make(ValidationErrors, 0)

	if cfg == nil {
		v.addError("", "configuration is nil")
		return v.errors
	}

	v.validateServer(&cfg.Server)
	v.validateLogging(&cfg.Logging)
	v.validateMetrics(&cfg.Metrics, &cfg.Server)
	v.validateTracing(&cfg.Tracing)
	v.validateUpstream(&cfg.Upstream)
	v.validateRoutes(&cfg.Routes)
	v.validateAllowList(cfg.AllowList)

	if v.errors.HasErrors() {
		return v.errors
	}
	return nil
}

func (v *Validator) validateServer(s *ServerConfig) {
	v.validatePort("server.port", s.Port)

	durations := map[string]Duration{
		"server.readTimeout":       s.ReadTimeout,
		"server.readHeaderTimeout": s.ReadHeaderTimeout,
		"server.writeTimeout":      s.WriteTimeout,
		"server.idleTimeout":       s.IdleTimeout,
		"server.shutdownTimeout":   s.ShutdownTimeout,
	}
	for path, d := range durations {
		if d < 0 {
			v.addError(path, "must not be negative")
		}
	}
}

func (v *Validator) validateLogging(l *LoggingConfig) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		v.addError("logging.level", fmt.Sprintf("invalid level %q", l.Level))
	}

	switch l.Format {
	case "json", "console":
	default:
		v.addError("logging.format", "format must be 'json' or 'console'")
	}

	switch l.Output {
	case "stdout", "stderr", "":
	default:
		v.addError("logging.output", "output must be 'stdout' or 'stderr'")
	}
}

func (v *Validator) validateMetrics(m *MetricsConfig, s *ServerConfig) {
	if !m.Enabled {
		return
	}
	v.validatePort("metrics.port", m.Port)
	if m.Port == s.Port {
		v.addError("metrics.port", "must differ from server.port")
	}
	if !strings.HasPrefix(m.Path, "/") {
		v.addError("metrics.path", "path must start with '/'")
	}
}

func (v *Validator) validateTracing(t *TracingConfig) {
	if t.SamplingRate < 0 || t.SamplingRate > 1 {
		v.addError("tracing.samplingRate", "must be between 0 and 1")
	}
	if t.Enabled && t.ServiceName == "" {
		v.addError("tracing.serviceName", "serviceName is required when tracing is enabled")
	}
}

func (v *Validator) validateUpstream(u *UpstreamConfig) {
	if u.Timeout < 0 {
		v.addError("upstream.timeout", "must not be negative")
	}
	if u.IdleConnTimeout < 0 {
		v.addError("upstream.idleConnTimeout", "must not be negative")
	}
	if u.MaxIdleConns < 0 {
		v.addError("upstream.maxIdleConns", "must not be negative")
	}
	if u.MaxIdleConnsPerHost < 0 {
		v.addError("upstream.maxIdleConnsPerHost", "must not be negative")
	}
}

func (v *Validator) validateRoutes(r *RoutesConfig) {
	if _, err := language.Parse(r.SearchLanguage); err != nil {
		v.addError("routes.searchLanguage",
			fmt.Sprintf("%q is not a valid BCP 47 language tag", r.SearchLanguage))
	}
	if r.SearchDefaultLimit <= 0 {
		v.addError("routes.searchDefaultLimit", "must be positive")
	}
}

func (v *Validator) validateAllowList(entries map[string]AllowListOverride) {
	for key, entry := range entries {
		path := "allowList." + key
		if strings.TrimSpace(key) == "" {
			v.addError("allowList", "key must not be empty")
			continue
		}
		if entry.BaseURL != "" {
			v.validateBaseURL(path+".baseURL", entry.BaseURL)
		}
		if entry.CacheMaxAge != nil && *entry.CacheMaxAge < 0 {
			v.addError(path+".cacheMaxAge", "must not be negative")
		}
		for i, sub := range entry.Subdomains {
			if sub == "" || strings.ContainsAny(sub, "./:") {
				v.addError(fmt.Sprintf("%s.subdomains[%d]", path, i),
					fmt.Sprintf("invalid subdomain %q", sub))
			}
		}
	}
}

func (v *Validator) validateBaseURL(path, raw string) {
	u, err := url.Parse(strings.ReplaceAll(raw, "{s}", "s"))
	if err != nil {
		v.addError(path, fmt.Sprintf("invalid URL: %v", err))
		return
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		v.addError(path, "scheme must be http or https")
	}
	if u.Host == "" {
		v.addError(path, "host is required")
	}
}

func (v *Validator) validatePort(path string, port int) {
	if port < 1 || port > maxPort {
		v.addError(path, fmt.Sprintf("port must be between 1 and %d", maxPort))
	}
}

func (v *Validator) addError(path, message string) {
	v.errors = append(v.errors, ValidationError{Path: path, Message: message})
}
