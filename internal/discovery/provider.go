// AngelaMos | 2026
// provider.go

package discovery

import (
	"context"
	"errors"
)

var ErrProviderUnavailable = errors.New("discovery provider unavailable")

// Provider is the external creator search. Its filter semantics are not
// trusted: every returned profile is a candidate, not a guaranteed match.
type Provider interface {
	Search(ctx context.Context, req SearchRequest) (SearchPage, error)
}

type SearchRequest struct {
	Platform string         `json:"platform"`
	Filters  map[string]any `json:"filters,omitempty"`
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
}

type SearchPage struct {
	Profiles []Profile `json:"profiles"`
	Total    int       `json:"total"`
	HasMore  bool      `json:"has_more"`
}

type Profile struct {
	Handle      string `json:"handle"`
	DisplayName string `json:"display_name"`
	Followers   int64  `json:"followers"`
	Niche       string `json:"niche"`
	ProfileURL  string `json:"profile_url"`
}
