package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultKakaoBaseURL  = "https://dapi.kakao.com"
	addressSearchPath    = "/v2/local/search/address.json"
	keywordSearchPath    = "/v2/local/search/keyword.json"
	addressMaxLength     = 100
	responseErrReadLimit = 1024
)

var safeAddress = regexp.MustCompile(`^[가-힣a-zA-Z0-9\-\s.,()·]*$`)

// KakaoResolver geocodes addresses with the Kakao Local search API: address
// search first, keyword search as a fallback.
type KakaoResolver struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	limiter    *rate.Limiter
	log        *zap.SugaredLogger
}

// KakaoOption configures optional resolver behaviour.
type KakaoOption func(*KakaoResolver)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(c *http.Client) KakaoOption {
	return func(r *KakaoResolver) {
		if c != nil {
			r.httpClient = c
		}
	}
}

// WithBaseURL overrides the Kakao API host.
func WithBaseURL(u string) KakaoOption {
	return func(r *KakaoResolver) {
		if trimmed := strings.TrimSpace(u); trimmed != "" {
			r.baseURL = strings.TrimRight(trimmed, "/")
		}
	}
}

// WithRateLimit caps outgoing requests per second.
func WithRateLimit(rps int) KakaoOption {
	return func(r *KakaoResolver) {
		if rps > 0 {
			r.limiter = rate.NewLimiter(rate.Limit(rps), rps)
		}
	}
}

// NewKakaoResolver builds a resolver. The key may be given with or without the
// "KakaoAK " prefix.
func NewKakaoResolver(apiKey string, timeout time.Duration, log *zap.SugaredLogger, opts ...KakaoOption) *KakaoResolver {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	r := &KakaoResolver{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    defaultKakaoBaseURL,
		apiKey:     strings.TrimSpace(apiKey),
		log:        log,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Resolve implements Resolver.
func (r *KakaoResolver) Resolve(ctx context.Context, address string) Coordinate {
	if !isSafeAddress(address) {
		r.log.Warnw("rejected address for geocoding", "address", address)
		return Unresolved
	}
	if r.apiKey == "" {
		r.log.Error("kakao api key not configured")
		return Unresolved
	}

	query := stripParentheses(address)
	for _, path := range []string{addressSearchPath, keywordSearchPath} {
		params := url.Values{"query": {query}}
		if path == addressSearchPath {
			params.Set("analyze_type", "similar")
		}
		c, err := r.search(ctx, path, params)
		if err != nil {
			r.log.Warnw("kakao search failed", "path", path, "address", query, "error", err)
			continue
		}
		if c.IsResolved() {
			return c
		}
	}
	r.log.Warnw("address not resolved", "address", query)
	return Unresolved
}

func (r *KakaoResolver) search(ctx context.Context, path string, params url.Values) (Coordinate, error) {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return Unresolved, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return Unresolved, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", formatKakaoKey(r.apiKey))

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return Unresolved, fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseErrReadLimit))
		return Unresolved, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var body struct {
		Documents []struct {
			X string `json:"x"`
			Y string `json:"y"`
		} `json:"documents"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Unresolved, fmt.Errorf("decode response: %w", err)
	}
	if len(body.Documents) == 0 {
		return Unresolved, nil
	}

	first := body.Documents[0]
	lat, err := strconv.ParseFloat(first.Y, 64)
	if err != nil {
		return Unresolved, fmt.Errorf("parse latitude %q: %w", first.Y, err)
	}
	lng, err := strconv.ParseFloat(first.X, 64)
	if err != nil {
		return Unresolved, fmt.Errorf("parse longitude %q: %w", first.X, err)
	}
	return Coordinate{Latitude: lat, Longitude: lng}, nil
}

func isSafeAddress(s string) bool {
	return strings.TrimSpace(s) != "" &&
		len([]rune(s)) <= addressMaxLength &&
		safeAddress.MatchString(s)
}

// stripParentheses drops the first "(...)" segment, e.g. a building name.
func stripParentheses(s string) string {
	start := strings.Index(s, "(")
	end := strings.Index(s, ")")
	if start >= 0 && end > start {
		return strings.TrimSpace(s[:start] + s[end+1:])
	}
	return s
}

func formatKakaoKey(key string) string {
	if strings.HasPrefix(key, "KakaoAK ") {
		return key
	}
	return "KakaoAK " + key
}
