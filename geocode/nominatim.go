package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultEndpoint  = "https://nominatim.openstreetmap.org"
	defaultUserAgent = "geotube/1.0"
	defaultTimeout   = 10 * time.Second
)

// Nominatim resolves coordinates through a Nominatim-compatible reverse
// geocoding endpoint. The public instance requires an identifying User-Agent
// and allows at most one request per second, hence the limiter.
type Nominatim struct {
	endpoint   string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

type NominatimConfig struct {
	Endpoint  string
	UserAgent string
	Timeout   time.Duration
}

func NewNominatim(cfg NominatimConfig, logger *slog.Logger) *Nominatim {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	return &Nominatim{
		endpoint:  strings.TrimRight(endpoint, "/"),
		userAgent: userAgent,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(1), 1),
		logger:  logger,
	}
}

// Available reports whether the resolver can be used at all. A malformed
// endpoint makes every lookup pointless, so it is probed once here instead
// of failing per call.
func (n *Nominatim) Available() bool {
	u, err := url.Parse(n.endpoint)
	return err == nil && u.Scheme != "" && u.Host != ""
}

type reverseResponse struct {
	Address struct {
		City        string `json:"city"`
		Town        string `json:"town"`
		Village     string `json:"village"`
		County      string `json:"county"`
		State       string `json:"state"`
		Suburb      string `json:"suburb"`
		Road        string `json:"road"`
		Country     string `json:"country"`
		CountryCode string `json:"country_code"`
	} `json:"address"`
}

// Resolve looks up the address for a coordinate pair. The city is the first
// non-empty candidate in priority order: locality (city/town/village), then
// sub-region (county), admin region (state), sub-locality (suburb), and
// finally the street name. The country prefers the readable name over the
// ISO code. Every failure degrades to an empty Location.
func (n *Nominatim) Resolve(ctx context.Context, lat, lon float64) Location {
	if err := n.limiter.Wait(ctx); err != nil {
		return Location{}
	}

	reqURL := n.buildReverseURL(lat, lon)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		n.logger.Warn("failed to build reverse geocode request", slog.String("error", err.Error()))
		return Location{}
	}
	req.Header.Set("User-Agent", n.userAgent)

	resp, err := n.httpClient.Do(req)
	if err != nil {
		n.logger.Warn("reverse geocode request failed",
			slog.Float64("lat", lat), slog.Float64("lon", lon), slog.String("error", err.Error()))
		return Location{}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		n.logger.Warn("reverse geocode returned unexpected status",
			slog.Float64("lat", lat), slog.Float64("lon", lon), slog.Int("status", resp.StatusCode))
		return Location{}
	}

	var body reverseResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		n.logger.Warn("failed to decode reverse geocode response", slog.String("error", err.Error()))
		return Location{}
	}

	addr := body.Address
	city := firstNonEmpty(addr.City, addr.Town, addr.Village, addr.County, addr.State, addr.Suburb, addr.Road)
	country := addr.Country
	if country == "" {
		country = strings.ToUpper(addr.CountryCode)
	}

	return Location{City: city, Country: country}
}

func (n *Nominatim) buildReverseURL(lat, lon float64) string {
	params := url.Values{}
	params.Set("format", "jsonv2")
	params.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	return fmt.Sprintf("%s/reverse?%s", n.endpoint, params.Encode())
}

func firstNonEmpty(candidates ...string) string {
	for _, c := range candidates {
		if c != "" {
			return c
		}
	}
	return ""
}
