package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bbab/servicecenter/internal/models"
)

const (
	defaultUptimeBaseURL = "https://api.uptimerobot.com/v2"
	defaultUptimeTimeout = 15 * time.Second
	uptimeRatioWindow    = "30"
)

// ErrUptimeNotConfigured marks an organization without uptime monitoring; the
// dispatcher skips the fetch silently rather than recording an error.
var ErrUptimeNotConfigured = errors.New("uptime: not configured")

// UptimeClient queries the uptime monitoring SaaS for a single monitor's
// current status and 30-day ratio.
type UptimeClient struct {
	baseURL string
	client  *http.Client
}

// NewUptimeClient constructs an uptime fetcher. An empty baseURL selects the
// production API endpoint.
func NewUptimeClient(baseURL string, timeout time.Duration) *UptimeClient {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultUptimeBaseURL
	}
	if timeout <= 0 {
		timeout = defaultUptimeTimeout
	}
	return &UptimeClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

type uptimeMonitorPayload struct {
	ID                int64           `json:"id"`
	FriendlyName      string          `json:"friendly_name"`
	Status            int             `json:"status"`
	CustomUptimeRatio json.RawMessage `json:"custom_uptime_ratio"`
}

type uptimeResponse struct {
	Stat  string `json:"stat"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
	Monitors []uptimeMonitorPayload `json:"monitors"`
}

// Fetch retrieves the monitor configured for the organization.
func (c *UptimeClient) Fetch(ctx context.Context, org models.Organization) (*UptimeResult, error) {
	if org.UptimeMonitorID == "" || org.UptimeAPIKey == "" {
		return nil, ErrUptimeNotConfigured
	}

	form := url.Values{}
	form.Set("api_key", org.UptimeAPIKey)
	form.Set("monitors", org.UptimeMonitorID)
	form.Set("custom_uptime_ratios", uptimeRatioWindow)
	form.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/getMonitors", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("uptime: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("uptime: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("uptime: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("uptime: unexpected status %d", resp.StatusCode)
	}

	var parsed uptimeResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("uptime: decode response: %w", err)
	}

	if parsed.Stat != "ok" {
		msg := "api reported failure"
		if parsed.Error != nil && parsed.Error.Message != "" {
			msg = parsed.Error.Message
		}
		return nil, fmt.Errorf("uptime: %s", msg)
	}
	if len(parsed.Monitors) == 0 {
		return nil, fmt.Errorf("uptime: monitor %s not found", org.UptimeMonitorID)
	}

	monitor := parsed.Monitors[0]
	ratio, err := parseUptimeRatio(monitor.CustomUptimeRatio)
	if err != nil {
		return nil, err
	}

	return &UptimeResult{
		MonitorID:    strconv.FormatInt(monitor.ID, 10),
		FriendlyName: monitor.FriendlyName,
		Status:       uptimeStatusLabel(monitor.Status),
		Ratio30d:     ratio,
	}, nil
}

// parseUptimeRatio tolerates the API returning the ratio either as a string
// or as a number.
func parseUptimeRatio(raw json.RawMessage) (float64, error) {
	if len(raw) == 0 {
		return 0, errors.New("uptime: ratio missing from response")
	}

	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		// Multiple ratio windows come back dash-separated; only the first was requested.
		first := strings.SplitN(asString, "-", 2)[0]
		ratio, convErr := strconv.ParseFloat(strings.TrimSpace(first), 64)
		if convErr != nil {
			return 0, fmt.Errorf("uptime: malformed ratio %q", asString)
		}
		return ratio, nil
	}

	var asNumber float64
	if err := json.Unmarshal(raw, &asNumber); err == nil {
		return asNumber, nil
	}

	return 0, errors.New("uptime: malformed ratio field")
}

func uptimeStatusLabel(status int) string {
	switch status {
	case 0:
		return "paused"
	case 1:
		return "not_checked_yet"
	case 2:
		return "up"
	case 8:
		return "seems_down"
	case 9:
		return "down"
	default:
		return "unknown"
	}
}
