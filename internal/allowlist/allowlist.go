// Package allowlist holds the static table of upstream APIs geoproxy is
// permitted to contact. The table is built once at startup, never mutated,
// and shared by reference between handlers.
package allowlist

import (
	"maps"
	"math/rand/v2"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/vyrodovalexey/geoproxy/internal/config"
)

// Built-in API keys.
const (
	KeyNominatim   = "nominatim"
	KeyOpenMeteo   = "openMeteo"
	KeyEsri        = "esri"
	KeyOpenTopoMap = "openTopoMap"
)

// SubdomainPlaceholder is replaced in a base URL by one of the entry's
// subdomains on every request.
const SubdomainPlaceholder = "{s}"

// DefaultUserAgent identifies geoproxy to providers that require one.
const DefaultUserAgent = "DistanceCalculator/1.0"

// Cache lifetimes in seconds.
const (
	CacheHour = 3600
	CacheDay  = 86400
)

// Entry describes one permitted upstream.
type Entry struct {
	BaseURL     string
	Headers     map[string]string
	CacheMaxAge int
	Subdomains  []string
}

// ResolveBase returns the base URL with the subdomain placeholder replaced
// by a uniformly random subdomain. Entries without a placeholder return
// BaseURL unchanged.
func (e Entry) ResolveBase() string {
	if len(e.Subdomains) == 0 || !strings.Contains(e.BaseURL, SubdomainPlaceholder) {
		return e.BaseURL
	}
	sub := e.Subdomains[rand.IntN(len(e.Subdomains))] //nolint:gosec // load spreading, not security
	return strings.ReplaceAll(e.BaseURL, SubdomainPlaceholder, sub)
}

// CacheControl returns the Cache-Control value for successful responses.
func (e Entry) CacheControl() string {
	return "public, max-age=" + strconv.Itoa(e.CacheMaxAge)
}

func (e Entry) clone() Entry {
	return Entry{
		BaseURL:     e.BaseURL,
		Headers:     maps.Clone(e.Headers),
		CacheMaxAge: e.CacheMaxAge,
		Subdomains:  slices.Clone(e.Subdomains),
	}
}

// Table is an immutable allow-list.
type Table struct {
	entries map[string]Entry
}

// New validates entries and returns a table holding deep copies of them.
func New(entries map[string]Entry) (*Table, error) {
	t := &Table{entries: make(map[string]Entry, len(entries))}
	for key, entry := range entries {
		if err := validateEntry(key, entry); err != nil {
			return nil, err
		}
		t.entries[key] = entry.clone()
	}
	return t, nil
}

// DefaultEntries returns a fresh copy of the built-in entries.
func DefaultEntries() map[string]Entry {
	return map[string]Entry{
		KeyNominatim: {
			BaseURL:     "https://nominatim.openstreetmap.org",
			Headers:     map[string]string{"User-Agent": DefaultUserAgent},
			CacheMaxAge: CacheHour,
		},
		KeyOpenMeteo: {
			BaseURL:     "https://api.open-meteo.com",
			CacheMaxAge: CacheDay,
		},
		KeyEsri: {
			BaseURL:     "https://server.arcgisonline.com",
			CacheMaxAge: CacheDay,
		},
		KeyOpenTopoMap: {
			BaseURL:     "https://" + SubdomainPlaceholder + ".tile.opentopomap.org",
			Headers:     map[string]string{"User-Agent": DefaultUserAgent},
			CacheMaxAge: CacheDay,
			Subdomains:  []string{"a", "b", "c"},
		},
	}
}

// Default returns the built-in table.
func Default() *Table {
	t, err := New(DefaultEntries())
	if err != nil {
		panic(err)
	}
	return t
}

// FromConfig overlays configured overrides on the built-in entries. Unset
// override fields keep the built-in value; unknown keys declare new entries.
func FromConfig(overrides map[string]config.AllowListOverride) (*Table, error) {
	entries := DefaultEntries()
	for key, o := range overrides {
		entry := entries[key]
		if o.BaseURL != "" {
			entry.BaseURL = o.BaseURL
			if !strings.Contains(o.BaseURL, SubdomainPlaceholder) {
				entry.Subdomains = nil
			}
		}
		if o.Headers != nil {
			entry.Headers = o.Headers
		}
		if o.CacheMaxAge != nil {
			entry.CacheMaxAge = *o.CacheMaxAge
		}
		if o.Subdomains != nil {
			entry.Subdomains = o.Subdomains
		}
		entries[key] = entry
	}
	return New(entries)
}

// Lookup returns a copy of the entry for key. Unknown keys yield a
// *ForbiddenError.
func (t *Table) Lookup(key string) (Entry, error) {
	entry, ok := t.entries[key]
	if !ok {
		return Entry{}, &ForbiddenError{Key: key}
	}
	return entry.clone(), nil
}

// Keys returns the allowed keys in sorted order.
func (t *Table) Keys() []string {
	return slices.Sorted(maps.Keys(t.entries))
}

// Len returns the number of entries.
func (t *Table) Len() int {
	return len(t.entries)
}

func validateEntry(key string, e Entry) error {
	if strings.TrimSpace(key) == "" {
		return &EntryError{Key: key, Message: "key must not be empty"}
	}

	hasPlaceholder := strings.Contains(e.BaseURL, SubdomainPlaceholder)
	if hasPlaceholder && len(e.Subdomains) == 0 {
		return &EntryError{Key: key, Message: "base URL has a subdomain placeholder but no subdomains"}
	}

	u, err := url.Parse(strings.ReplaceAll(e.BaseURL, SubdomainPlaceholder, "s"))
	if err != nil {
		return &EntryError{Key: key, Message: "invalid base URL", Cause: err}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return &EntryError{Key: key, Message: "base URL scheme must be http or https"}
	}
	if u.Host == "" {
		return &EntryError{Key: key, Message: "base URL host is required"}
	}

	if e.CacheMaxAge < 0 {
		return &EntryError{Key: key, Message: "cache max-age must not be negative"}
	}

	for _, sub := range e.Subdomains {
		if sub == "" || strings.ContainsAny(sub, "./:") {
			return &EntryError{Key: key, Message: "invalid subdomain " + strconv.Quote(sub)}
		}
	}

	return nil
}
