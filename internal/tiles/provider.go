// Package tiles proxies map tile images from allow-listed providers.
package tiles

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/vyrodovalexey/geoproxy/internal/allowlist"
)

// ErrInvalidCoord indicates a tile coordinate that is not a non-negative
// integer.
var ErrInvalidCoord = errors.New("invalid tile coordinate")

// Provider describes how one tile source lays out its URLs.
type Provider struct {
	// Name is the route segment, as in /tiles/{name}/{z}/{x}/{y}.
	Name string
	// APIKey selects the allow-list entry.
	APIKey string
	// PathTemplate names {z}, {x} and {y} in upstream order.
	PathTemplate string
	// ContentType is used unless the body sniffs as another image type.
	ContentType string
}

// Built-in providers.
var (
	Esri = Provider{
		Name:         "esri",
		APIKey:       allowlist.KeyEsri,
		PathTemplate: "/ArcGIS/rest/services/World_Imagery/MapServer/tile/{z}/{y}/{x}",
		ContentType:  "image/jpeg",
	}
	OpenTopoMap = Provider{
		Name:         "topo",
		APIKey:       allowlist.KeyOpenTopoMap,
		PathTemplate: "/{z}/{x}/{y}.png",
		ContentType:  "image/png",
	}
)

// Coord is a slippy-map tile address.
type Coord struct {
	Z, X, Y uint64
}

// String returns z/x/y.
func (c Coord) String() string {
	return fmt.Sprintf("%d/%d/%d", c.Z, c.X, c.Y)
}

// ParseCoord parses decimal z, x and y path segments.
func ParseCoord(z, x, y string) (Coord, error) {
	var c Coord
	for _, part := range []struct {
		name string
		raw  string
		dst  *uint64
	}{
		{"z", z, &c.Z},
		{"x", x, &c.X},
		{"y", y, &c.Y},
	} {
		v, err := strconv.ParseUint(part.raw, 10, 32)
		if err != nil {
			return Coord{}, fmt.Errorf("%w: %s=%q", ErrInvalidCoord, part.name, part.raw)
		}
		*part.dst = v
	}
	return c, nil
}

// Path renders the provider's upstream path for c.
func (p Provider) Path(c Coord) string {
	return strings.NewReplacer(
		"{z}", strconv.FormatUint(c.Z, 10),
		"{x}", strconv.FormatUint(c.X, 10),
		"{y}", strconv.FormatUint(c.Y, 10),
	).Replace(p.PathTemplate)
}
