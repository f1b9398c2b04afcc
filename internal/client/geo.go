package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/germed/backend/internal/config"
)

const defaultRegion = "unknown"

// GeoClient resolves a client IP to a coarse region at signup time.
// Lookup failures are non-fatal and fall back to a default.
type GeoClient struct {
	baseURL    string
	httpClient *http.Client
	log        *zap.Logger
}

type geoResponse struct {
	Status     string `json:"status"`
	Country    string `json:"country"`
	RegionName string `json:"regionName"`
	Timezone   string `json:"timezone"`
}

func NewGeoClient(cfg config.GeoConfig, log *zap.Logger) *GeoClient {
	return &GeoClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: 5 * time.Second},
		log:        log,
	}
}

func (c *GeoClient) RegionFromIP(ctx context.Context, ip string) string {
	if isPrivateIP(ip) {
		return defaultRegion
	}

	url := fmt.Sprintf("%s/json/%s", c.baseURL, ip)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return defaultRegion
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Warn("geo lookup failed", zap.String("ip", ip), zap.Error(err))
		return defaultRegion
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.log.Warn("geo lookup returned non-200", zap.String("ip", ip), zap.Int("status", resp.StatusCode))
		return defaultRegion
	}

	var data geoResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		c.log.Warn("geo lookup decode failed", zap.String("ip", ip), zap.Error(err))
		return defaultRegion
	}
	if data.Timezone == "" {
		return defaultRegion
	}
	return data.Timezone
}

func isPrivateIP(ip string) bool {
	prefixes := []string{"127.", "192.168.", "10.", "172.16.", "::1", "0.0.0.0"}
	for _, p := range prefixes {
		if strings.HasPrefix(ip, p) {
			return true
		}
	}
	return ip == ""
}
