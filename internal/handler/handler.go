// Package handler implements the geoproxy HTTP routes.
package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/vyrodovalexey/geoproxy/internal/allowlist"
	"github.com/vyrodovalexey/geoproxy/internal/observability"
	"github.com/vyrodovalexey/geoproxy/internal/proxy"
	"github.com/vyrodovalexey/geoproxy/internal/tiles"
)

// Route patterns.
const (
	RouteSearch    = "/api/search"
	RouteElevation = "/api/elevation"
	RouteEsriTile  = "/tiles/esri/:z/:x/:y"
	RouteTopoTile  = "/tiles/topo/:z/:x/:y"
)

// Client-visible validation messages.
const (
	MsgMissingKeyword = "missing search keyword"
	MsgMissingLatLng  = "missing latitude or longitude"
)

// Upstream paths.
const (
	searchPath    = "/search"
	elevationPath = "/v1/elevation"
)

const textPlain = "text/plain; charset=utf-8"

// Dispatcher forwards a JSON request to an allow-listed API.
type Dispatcher interface {
	Dispatch(ctx context.Context, req proxy.Request) *proxy.Envelope
}

// TileFetcher retrieves map tiles.
type TileFetcher interface {
	Fetch(ctx context.Context, p tiles.Provider, c tiles.Coord) (*tiles.Tile, error)
}

// Handler serves the search, elevation and tile routes.
type Handler struct {
	dispatcher     Dispatcher
	tiles          TileFetcher
	logger         observability.Logger
	searchLanguage string
	searchLimit    int
}

// Option is a functional option for configuring the handler.
type Option func(*Handler)

// WithLogger sets the logger for the handler.
func WithLogger(logger observability.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

// WithSearchLanguage sets the accept-language hint sent to the search API.
func WithSearchLanguage(lang string) Option {
	return func(h *Handler) {
		if lang != "" {
			h.searchLanguage = lang
		}
	}
}

// WithSearchDefaultLimit sets the result limit used when the client
// omits one.
func WithSearchDefaultLimit(limit int) Option {
	return func(h *Handler) {
		if limit > 0 {
			h.searchLimit = limit
		}
	}
}

// New creates a new route handler.
func New(dispatcher Dispatcher, tileFetcher TileFetcher, opts ...Option) *Handler {
	h := &Handler{
		dispatcher:     dispatcher,
		tiles:          tileFetcher,
		logger:         observability.NopLogger(),
		searchLanguage: "zh",
		searchLimit:    5,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the routes on r.
func (h *Handler) Register(r gin.IRoutes) {
	r.GET(RouteSearch, h.Search)
	r.GET(RouteElevation, h.Elevation)
	r.GET(RouteEsriTile, h.Tile(tiles.Esri))
	r.GET(RouteTopoTile, h.Tile(tiles.OpenTopoMap))
}

// Search handles GET /api/search?q=<text>&limit=<n>.
func (h *Handler) Search(c *gin.Context) {
	keyword := c.Query("q")
	if keyword == "" {
		h.logger.WithContext(c.Request.Context()).Debug("search rejected: missing keyword")
		proxy.Failure(http.StatusBadRequest, MsgMissingKeyword).Write(c.Writer)
		return
	}

	limit := c.Query("limit")
	if limit == "" {
		limit = strconv.Itoa(h.searchLimit)
	}

	env := h.dispatcher.Dispatch(c.Request.Context(), proxy.Request{
		APIKey: allowlist.KeyNominatim,
		Path:   searchPath,
		Query: map[string]string{
			"format":          "json",
			"q":               keyword,
			"limit":           limit,
			"accept-language": h.searchLanguage,
		},
	})
	env.Write(c.Writer)
}

// Elevation handles GET /api/elevation?lat=<f>&lng=<f>.
func (h *Handler) Elevation(c *gin.Context) {
	lat := c.Query("lat")
	lng := c.Query("lng")
	if lat == "" || lng == "" {
		h.logger.WithContext(c.Request.Context()).Debug("elevation rejected: missing coordinates",
			observability.String("lat", lat),
			observability.String("lng", lng),
		)
		proxy.Failure(http.StatusBadRequest, MsgMissingLatLng).Write(c.Writer)
		return
	}

	env := h.dispatcher.Dispatch(c.Request.Context(), proxy.Request{
		APIKey: allowlist.KeyOpenMeteo,
		Path:   elevationPath,
		Query: map[string]string{
			"latitude":  lat,
			"longitude": lng,
		},
	})
	env.Write(c.Writer)
}

// Tile returns the handler for GET /tiles/<provider>/:z/:x/:y.
func (h *Handler) Tile(p tiles.Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		coord, err := tiles.ParseCoord(c.Param("z"), c.Param("x"), c.Param("y"))
		if err != nil {
			h.logger.WithContext(c.Request.Context()).Debug("tile rejected",
				observability.String("provider", p.Name),
				observability.Error(err),
			)
			c.Data(http.StatusNotFound, textPlain, []byte(tiles.MsgTileNotFound))
			return
		}

		tile, err := h.tiles.Fetch(c.Request.Context(), p, coord)
		switch {
		case errors.Is(err, tiles.ErrTileNotFound):
			c.Data(http.StatusNotFound, textPlain, []byte(tiles.MsgTileNotFound))
			return
		case err != nil:
			c.Data(http.StatusInternalServerError, textPlain, []byte(tiles.MsgProxyError))
			return
		}

		c.Header("Cache-Control", tile.CacheControl)
		c.Header("Access-Control-Allow-Origin", proxy.AllowAnyOrigin)
		c.Data(http.StatusOK, tile.ContentType, tile.Data)
	}
}
