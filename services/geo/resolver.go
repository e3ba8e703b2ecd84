package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/tech-arch1tect/inkpress/config"
	"github.com/tech-arch1tect/inkpress/services/logging"
	"github.com/tech-arch1tect/inkpress/services/metrics"
	"go.uber.org/zap"
)

const Unknown = "Unknown"

// Resolver turns an IP address into a human-readable location. It never fails:
// lookups that cannot be answered resolve to Unknown.
type Resolver interface {
	Resolve(ctx context.Context, ipAddress string) string
}

type StaticResolver struct {
	Location string
}

func (r StaticResolver) Resolve(_ context.Context, _ string) string {
	if r.Location == "" {
		return Unknown
	}
	return r.Location
}

type lookupResponse struct {
	Status     string `json:"status"`
	Message    string `json:"message"`
	City       string `json:"city"`
	RegionName string `json:"regionName"`
	Country    string `json:"country"`
}

// HTTPResolver queries an ip-api compatible endpoint at {BaseURL}/{ip}.
type HTTPResolver struct {
	client  *http.Client
	baseURL string
	timeout time.Duration
	logger  *logging.Service
}

func NewHTTPResolver(cfg *config.GeoConfig, client *http.Client, logger *logging.Service) *HTTPResolver {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPResolver{
		client:  client,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		timeout: cfg.Timeout,
		logger:  logger.Named("geo"),
	}
}

func (r *HTTPResolver) Resolve(ctx context.Context, ipAddress string) string {
	ip := net.ParseIP(strings.TrimSpace(ipAddress))
	if ip == nil || !isPublic(ip) {
		return Unknown
	}

	// Detached from request cancellation, bounded by the configured timeout.
	lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	start := time.Now()
	location, err := r.lookup(lookupCtx, ip.String())
	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = metrics.OutcomeError
		r.logger.Warn("geolocation lookup failed",
			zap.String("ip", ip.String()),
			zap.Error(err))
		location = Unknown
	}
	metrics.GeoLookupDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())

	return location
}

func (r *HTTPResolver) lookup(ctx context.Context, ip string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/"+ip, nil)
	if err != nil {
		return "", err
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var body lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if body.Status != "success" {
		return "", fmt.Errorf("lookup rejected: %s", body.Message)
	}

	parts := make([]string, 0, 3)
	for _, p := range []string{body.City, body.RegionName, body.Country} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return Unknown, nil
	}
	return strings.Join(parts, ", "), nil
}

func isPublic(ip net.IP) bool {
	return !(ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsMulticast())
}
