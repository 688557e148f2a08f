package tiles

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/geoproxy/internal/allowlist"
	"github.com/vyrodovalexey/geoproxy/internal/proxy"
)

var (
	pngMagic  = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	jpegMagic = []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00")
)

func TestParseCoord(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		z, x, y string
		want    Coord
		wantErr bool
	}{
		{name: "valid", z: "5", x: "10", y: "12", want: Coord{Z: 5, X: 10, Y: 12}},
		{name: "zero", z: "0", x: "0", y: "0", want: Coord{}},
		{name: "leading zeros", z: "05", x: "010", y: "0012", want: Coord{Z: 5, X: 10, Y: 12}},
		{name: "negative", z: "5", x: "-1", y: "12", wantErr: true},
		{name: "signed", z: "+5", x: "1", y: "2", wantErr: true},
		{name: "float", z: "5", x: "1.5", y: "2", wantErr: true},
		{name: "empty", z: "", x: "1", y: "2", wantErr: true},
		{name: "extension", z: "5", x: "1", y: "2.png", wantErr: true},
		{name: "overflow", z: "5", x: "1", y: "99999999999", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseCoord(tt.z, tt.x, tt.y)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidCoord)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestProvider_Path(t *testing.T) {
	t.Parallel()

	c := Coord{Z: 5, X: 10, Y: 12}

	assert.Equal(t, "/ArcGIS/rest/services/World_Imagery/MapServer/tile/5/12/10", Esri.Path(c))
	assert.Equal(t, "/5/10/12.png", OpenTopoMap.Path(c))
	assert.Equal(t, "5/10/12", c.String())
}

func newStubFetcher(t *testing.T, handler http.HandlerFunc) *Fetcher {
	t.Helper()

	upstream := httptest.NewServer(handler)
	t.Cleanup(upstream.Close)

	entries := allowlist.DefaultEntries()
	for _, key := range []string{allowlist.KeyEsri, allowlist.KeyOpenTopoMap} {
		entry := entries[key]
		entry.BaseURL = upstream.URL
		entry.Subdomains = nil
		entries[key] = entry
	}
	table, err := allowlist.New(entries)
	require.NoError(t, err)

	return NewFetcher(proxy.NewClient(table))
}

func TestFetcher_Fetch(t *testing.T) {
	t.Parallel()

	var gotPath, gotUA string
	f := newStubFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUA = r.Header.Get("User-Agent")
		_, _ = w.Write(pngMagic)
	})

	tile, err := f.Fetch(context.Background(), OpenTopoMap, Coord{Z: 3, X: 4, Y: 5})
	require.NoError(t, err)

	assert.Equal(t, pngMagic, tile.Data)
	assert.Equal(t, "image/png", tile.ContentType)
	assert.Equal(t, "public, max-age=86400", tile.CacheControl)
	assert.Equal(t, "/3/4/5.png", gotPath)
	assert.Equal(t, allowlist.DefaultUserAgent, gotUA)
}

func TestFetcher_Fetch_ContentType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		provider Provider
		body     []byte
		expected string
	}{
		{name: "esri jpeg", provider: Esri, body: jpegMagic, expected: "image/jpeg"},
		{name: "esri serving png", provider: Esri, body: pngMagic, expected: "image/png"},
		{name: "unrecognized bytes keep default", provider: Esri, body: []byte{0x01, 0x02}, expected: "image/jpeg"},
		{name: "text keeps default", provider: OpenTopoMap, body: []byte("hello"), expected: "image/png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newStubFetcher(t, func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write(tt.body)
			})

			tile, err := f.Fetch(context.Background(), tt.provider, Coord{Z: 1})
			require.NoError(t, err)
			assert.Equal(t, tt.expected, tile.ContentType)
		})
	}
}

func TestFetcher_Fetch_Non2xx(t *testing.T) {
	t.Parallel()

	for _, status := range []int{http.StatusNotFound, http.StatusForbidden, http.StatusInternalServerError, http.StatusNotModified} {
		f := newStubFetcher(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(status)
		})

		_, err := f.Fetch(context.Background(), Esri, Coord{Z: 5, X: 10, Y: 12})
		assert.ErrorIs(t, err, ErrTileNotFound, "status %d", status)
		assert.NotErrorIs(t, err, ErrTileFetchFailed)
	}
}

func TestFetcher_Fetch_NetworkError(t *testing.T) {
	t.Parallel()

	upstream := httptest.NewServer(http.NotFoundHandler())
	table, err := allowlist.New(map[string]allowlist.Entry{
		allowlist.KeyEsri: {BaseURL: upstream.URL, CacheMaxAge: allowlist.CacheDay},
	})
	require.NoError(t, err)
	upstream.Close()

	f := NewFetcher(proxy.NewClient(table))

	_, err = f.Fetch(context.Background(), Esri, Coord{Z: 5, X: 10, Y: 12})
	assert.ErrorIs(t, err, ErrTileFetchFailed)
	assert.ErrorIs(t, err, proxy.ErrUpstreamFailed)
}

type stubUpstream struct {
	err error
}

func (s stubUpstream) Fetch(context.Context, proxy.Request) (*proxy.Response, error) {
	return nil, s.err
}

func TestFetcher_Fetch_ProviderNotAllowed(t *testing.T) {
	t.Parallel()

	table, err := allowlist.New(map[string]allowlist.Entry{})
	require.NoError(t, err)

	_, err = NewFetcher(proxy.NewClient(table)).Fetch(context.Background(), OpenTopoMap, Coord{})
	assert.ErrorIs(t, err, ErrTileFetchFailed)
	assert.ErrorIs(t, err, allowlist.ErrForbiddenAPIKey)

	boom := errors.New("boom")
	_, err = NewFetcher(stubUpstream{err: boom}).Fetch(context.Background(), Esri, Coord{})
	assert.ErrorIs(t, err, boom)
}
