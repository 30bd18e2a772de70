package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/claude/mafwalk/internal/models"
)

// errNotFound marks a 404 from the REST API.
var errNotFound = errors.New("not found")

// HTTPClient implements DataSource by calling the MAF Walk REST API.
// Used for remote MCP mode where the binary runs locally (stdio) but
// data lives on the remote server (accessed over Tailscale).
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

// Compile-time check: HTTPClient satisfies DataSource.
var _ DataSource = (*HTTPClient)(nil)

// NewHTTPClient creates an HTTPClient targeting the given base URL.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *HTTPClient) get(ctx context.Context, path string, params url.Values, v any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("httpclient: create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("httpclient: %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("httpclient: read body: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("httpclient: %s: %w", path, errNotFound)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("httpclient: %s returned %d: %s", path, resp.StatusCode, body)
	}

	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("httpclient: decode %s: %w", path, err)
	}
	return nil
}

func (c *HTTPClient) GetProfileOrDefault(ctx context.Context) (models.UserProfile, bool, error) {
	var resp struct {
		Profile models.UserProfile `json:"profile"`
		Saved   bool               `json:"saved"`
	}
	if err := c.get(ctx, "/api/v1/profile", nil, &resp); err != nil {
		return models.UserProfile{}, false, err
	}
	return resp.Profile, resp.Saved, nil
}

func (c *HTTPClient) GetDailyStats(ctx context.Context, date string) (models.DailyStats, bool, error) {
	var stats models.DailyStats
	err := c.get(ctx, "/api/v1/stats/daily/"+url.PathEscape(date), nil, &stats)
	if errors.Is(err, errNotFound) {
		return models.DailyStats{}, false, nil
	}
	if err != nil {
		return models.DailyStats{}, false, err
	}
	return stats, true, nil
}

func (c *HTTPClient) GetWeeklyStats(ctx context.Context) ([]models.DailyStats, error) {
	var stats []models.DailyStats
	if err := c.get(ctx, "/api/v1/stats/weekly", nil, &stats); err != nil {
		return nil, err
	}
	return stats, nil
}

func (c *HTTPClient) GetMonthlyStats(ctx context.Context) ([]models.DailyStats, error) {
	var stats []models.DailyStats
	if err := c.get(ctx, "/api/v1/stats/monthly", nil, &stats); err != nil {
		return nil, err
	}
	return stats, nil
}

func (c *HTTPClient) GetAllActivities(ctx context.Context) ([]models.ActivitySession, error) {
	var sessions []models.ActivitySession
	if err := c.get(ctx, "/api/v1/activities", nil, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

func (c *HTTPClient) GetActivitiesByDateRange(ctx context.Context, startDate, endDate string) ([]models.ActivitySession, error) {
	params := url.Values{}
	if startDate != "" {
		params.Set("start", startDate)
	}
	if endDate != "" {
		params.Set("end", endDate)
	}

	var sessions []models.ActivitySession
	if err := c.get(ctx, "/api/v1/activities", params, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

func (c *HTTPClient) GetCurrentStreak(ctx context.Context) (int, error) {
	var resp struct {
		Streak int `json:"streak"`
	}
	if err := c.get(ctx, "/api/v1/stats/streak", nil, &resp); err != nil {
		return 0, err
	}
	return resp.Streak, nil
}
