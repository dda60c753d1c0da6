// AngelaMos | 2026
// client.go

package discovery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/carterperez-dev/creator-outreach/internal/config"
	"github.com/carterperez-dev/creator-outreach/internal/creator"
)

const maxErrorBody = 4 << 10

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewClient(cfg config.DiscoveryConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout},
	}
}

type searchBody struct {
	Platform string         `json:"platform"`
	Filters  map[string]any `json:"filters,omitempty"`
	Page     int            `json:"page"`
	Limit    int            `json:"limit"`
}

// searchResponse accepts the envelopes the provider has been seen to use.
// Unknown fields are ignored by encoding/json.
type searchResponse struct {
	Data     []profileRecord `json:"data"`
	Results  []profileRecord `json:"results"`
	Accounts []profileRecord `json:"accounts"`
	Total    flexInt         `json:"total"`
	HasMore  *bool           `json:"has_more"`
}

func (r searchResponse) records() []profileRecord {
	switch {
	case len(r.Data) > 0:
		return r.Data
	case len(r.Results) > 0:
		return r.Results
	default:
		return r.Accounts
	}
}

type profileRecord struct {
	Handle     string  `json:"handle"`
	Username   string  `json:"username"`
	FullName   string  `json:"full_name"`
	Name       string  `json:"name"`
	Followers  flexInt `json:"followers"`
	FollowerCt flexInt `json:"follower_count"`
	Niche      string  `json:"niche"`
	Category   string  `json:"category"`
	URL        string  `json:"url"`
	ProfileURL string  `json:"profile_url"`
}

func (p profileRecord) toProfile() (Profile, bool) {
	handle := creator.NormalizeHandle(firstNonEmpty(p.Handle, p.Username))
	if handle == "" {
		return Profile{}, false
	}

	followers := int64(p.Followers)
	if followers == 0 {
		followers = int64(p.FollowerCt)
	}

	return Profile{
		Handle:      handle,
		DisplayName: firstNonEmpty(p.FullName, p.Name, handle),
		Followers:   followers,
		Niche:       firstNonEmpty(p.Niche, p.Category),
		ProfileURL:  firstNonEmpty(p.ProfileURL, p.URL),
	}, true
}

// flexInt decodes numbers that arrive as JSON numbers, numeric strings,
// or null. Anything unparsable becomes zero.
type flexInt int64

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		*f = flexInt(n)
		return nil
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		*f = flexInt(int64(v))
		return nil
	}
	*f = 0
	return nil
}

func (c *Client) Search(ctx context.Context, req SearchRequest) (SearchPage, error) {
	payload, err := json.Marshal(searchBody{
		Platform: req.Platform,
		Filters:  req.Filters,
		Page:     req.Page,
		Limit:    req.PageSize,
	})
	if err != nil {
		return SearchPage{}, fmt.Errorf("marshal search: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.baseURL+"/search",
		bytes.NewReader(payload),
	)
	if err != nil {
		return SearchPage{}, fmt.Errorf("build search request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return SearchPage{}, fmt.Errorf("search %s page %d: %w: %w",
			req.Platform, req.Page, ErrProviderUnavailable, err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody)) //nolint:errcheck // diagnostic only
		return SearchPage{}, fmt.Errorf("search %s page %d: status %d: %s: %w",
			req.Platform, req.Page, resp.StatusCode, strings.TrimSpace(string(body)), ErrProviderUnavailable)
	}

	var decoded searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return SearchPage{}, fmt.Errorf("decode search response: %w: %w", ErrProviderUnavailable, err)
	}

	records := decoded.records()
	page := SearchPage{
		Profiles: make([]Profile, 0, len(records)),
		Total:    int(decoded.Total),
	}
	for _, rec := range records {
		if p, ok := rec.toProfile(); ok {
			page.Profiles = append(page.Profiles, p)
		}
	}

	if decoded.HasMore != nil {
		page.HasMore = *decoded.HasMore
	} else {
		page.HasMore = len(records) >= req.PageSize && req.PageSize > 0
	}

	return page, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

var _ Provider = (*Client)(nil)
