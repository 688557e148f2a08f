package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationError_Error(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      ValidationError
		expected string
	}{
		{
			name:     "with path",
			err:      ValidationError{Path: "server.port", Message: "required"},
			expected: "server.port: required",
		},
		{
			name:     "without path",
			err:      ValidationError{Message: "configuration is nil"},
			expected: "configuration is nil",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestValidationErrors_Error(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "no validation errors", ValidationErrors{}.Error())

	multi := ValidationErrors{
		{Path: "server.port", Message: "bad"},
		{Path: "metrics.port", Message: "worse"},
	}
	msg := multi.Error()
	assert.Contains(t, msg, "2 validation errors")
	assert.Contains(t, msg, "1. server.port: bad")
	assert.Contains(t, msg, "2. metrics.port: worse")
}

func TestValidate_Defaults(t *testing.T) {
	t.Parallel()

	assert.NoError(t, Validate(DefaultConfig()))
}

func TestValidate_Nil(t *testing.T) {
	t.Parallel()

	err := Validate(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration is nil")
}

func intPtr(v int) *int { return &v }

func TestValidate_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(cfg *Config)
		path   string
	}{
		{
			name:   "server port zero",
			mutate: func(cfg *Config) { cfg.Server.Port = 0 },
			path:   "server.port",
		},
		{
			name:   "negative write timeout",
			mutate: func(cfg *Config) { cfg.Server.WriteTimeout = -1 },
			path:   "server.writeTimeout",
		},
		{
			name:   "unknown log level",
			mutate: func(cfg *Config) { cfg.Logging.Level = "verbose" },
			path:   "logging.level",
		},
		{
			name:   "unknown log format",
			mutate: func(cfg *Config) { cfg.Logging.Format = "logfmt" },
			path:   "logging.format",
		},
		{
			name:   "unknown log output",
			mutate: func(cfg *Config) { cfg.Logging.Output = "/var/log/geoproxy" },
			path:   "logging.output",
		},
		{
			name:   "metrics port collides with server",
			mutate: func(cfg *Config) { cfg.Metrics.Port = cfg.Server.Port },
			path:   "metrics.port",
		},
		{
			name:   "metrics path",
			mutate: func(cfg *Config) { cfg.Metrics.Path = "metrics" },
			path:   "metrics.path",
		},
		{
			name:   "sampling rate out of range",
			mutate: func(cfg *Config) { cfg.Tracing.SamplingRate = 1.5 },
			path:   "tracing.samplingRate",
		},
		{
			name: "tracing without service name",
			mutate: func(cfg *Config) {
				cfg.Tracing.Enabled = true
				cfg.Tracing.ServiceName = ""
			},
			path: "tracing.serviceName",
		},
		{
			name:   "negative upstream timeout",
			mutate: func(cfg *Config) { cfg.Upstream.Timeout = -1 },
			path:   "upstream.timeout",
		},
		{
			name:   "negative max idle conns",
			mutate: func(cfg *Config) { cfg.Upstream.MaxIdleConns = -1 },
			path:   "upstream.maxIdleConns",
		},
		{
			name:   "invalid search language",
			mutate: func(cfg *Config) { cfg.Routes.SearchLanguage = "not a tag!" },
			path:   "routes.searchLanguage",
		},
		{
			name:   "non-positive search limit",
			mutate: func(cfg *Config) { cfg.Routes.SearchDefaultLimit = 0 },
			path:   "routes.searchDefaultLimit",
		},
		{
			name: "allow-list base URL scheme",
			mutate: func(cfg *Config) {
				cfg.AllowList = map[string]AllowListOverride{"nominatim": {BaseURL: "ftp://example.com"}}
			},
			path: "allowList.nominatim.baseURL",
		},
		{
			name: "allow-list base URL without host",
			mutate: func(cfg *Config) {
				cfg.AllowList = map[string]AllowListOverride{"openMeteo": {BaseURL: "https://"}}
			},
			path: "allowList.openMeteo.baseURL",
		},
		{
			name: "allow-list negative cache",
			mutate: func(cfg *Config) {
				cfg.AllowList = map[string]AllowListOverride{"esri": {CacheMaxAge: intPtr(-1)}}
			},
			path: "allowList.esri.cacheMaxAge",
		},
		{
			name: "allow-list bad subdomain",
			mutate: func(cfg *Config) {
				cfg.AllowList = map[string]AllowListOverride{"openTopoMap": {Subdomains: []string{"a", "b.c"}}}
			},
			path: "allowList.openTopoMap.subdomains[1]",
		},
		{
			name: "allow-list empty key",
			mutate: func(cfg *Config) {
				cfg.AllowList = map[string]AllowListOverride{" ": {}}
			},
			path: "allowList",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			require.Error(t, err)

			var verrs ValidationErrors
			require.ErrorAs(t, err, &verrs)

			paths := make([]string, 0, len(verrs))
			for _, e := range verrs {
				paths = append(paths, e.Path)
			}
			assert.Contains(t, paths, tt.path)
		})
	}
}

func TestValidate_MetricsDisabledSkipsPortChecks(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Metrics.Enabled = false
	cfg.Metrics.Port = 0

	assert.NoError(t, Validate(cfg))
}

func TestValidate_AllowListTemplateURL(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.AllowList = map[string]AllowListOverride{
		"openTopoMap": {BaseURL: "https://{s}.tile.example.org", Subdomains: []string{"x", "y"}},
	}

	assert.NoError(t, Validate(cfg))
}
