package bankfeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type feedClient struct {
	baseURL   string
	apiKey    string
	apiKeyHdr string
	http      *http.Client
	limiter   <-chan time.Time
}

func newFeedClient(accessToken string) (*feedClient, error) {
	baseURL := strings.TrimSpace(os.Getenv("BANKFEED_API_BASE_URL"))
	if baseURL == "" {
		baseURL = "https://api.bankfeed.io"
	}
	apiKeyHeader := strings.TrimSpace(os.Getenv("BANKFEED_API_KEY_HEADER"))
	if apiKeyHeader == "" {
		apiKeyHeader = "X-API-Key"
	}
	if strings.TrimSpace(accessToken) == "" {
		return nil, errors.New("bankfeed access token is empty")
	}
	rateLimitPerMin := int64(30)
	if v := strings.TrimSpace(os.Getenv("BANKFEED_RATE_LIMIT_PER_MIN")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			rateLimitPerMin = n
		}
	}
	interval := time.Minute / time.Duration(rateLimitPerMin)

	return &feedClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    accessToken,
		apiKeyHdr: apiKeyHeader,
		http:      &http.Client{Timeout: 30 * time.Second},
		limiter:   time.Tick(interval),
	}, nil
}

type feedListResponse struct {
	Data       []json.RawMessage `json:"data"`
	Items      []json.RawMessage `json:"items"`
	NextCursor string            `json:"next_cursor"`
	HasMore    *bool             `json:"has_more"`
}

func (c *feedClient) getList(ctx context.Context, path string, params url.Values) (feedListResponse, error) {
	<-c.limiter
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint = endpoint + "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return feedListResponse{}, err
	}
	req.Header.Set(c.apiKeyHdr, c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return feedListResponse{}, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return feedListResponse{}, fmt.Errorf("bankfeed api error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed feedListResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return feedListResponse{}, err
	}
	return parsed, nil
}
