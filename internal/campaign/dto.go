// AngelaMos | 2026
// dto.go

package campaign

import (
	"time"
)

type CreateRequest struct {
	Name           string         `json:"name"            validate:"required,min=1,max=200"`
	Platform       string         `json:"platform"        validate:"required,oneof=instagram tiktok youtube twitter"`
	Filters        map[string]any `json:"filters"`
	RequestedCount int            `json:"requested_count" validate:"required,min=1,max=1000"`
	Recurring      bool           `json:"recurring"`
}

type UpdateRequest struct {
	Name           *string        `json:"name,omitempty"            validate:"omitempty,min=1,max=200"`
	Filters        map[string]any `json:"filters,omitempty"`
	RequestedCount *int           `json:"requested_count,omitempty" validate:"omitempty,min=1,max=1000"`
	Recurring      *bool          `json:"recurring,omitempty"`
	Active         *bool          `json:"active,omitempty"`
}

type Response struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Platform       string         `json:"platform"`
	Filters        map[string]any `json:"filters"`
	RequestedCount int            `json:"requested_count"`
	Recurring      bool           `json:"recurring"`
	Active         bool           `json:"active"`
	ResultsCount   int            `json:"results_count"`
	LastRunAt      *time.Time     `json:"last_run_at,omitempty"`
	NextRunAt      *time.Time     `json:"next_run_at,omitempty"`
	LastError      string         `json:"last_error,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

func ToResponse(c *Campaign) Response {
	return Response{
		ID:             c.ID,
		Name:           c.Name,
		Platform:       c.Platform,
		Filters:        c.Filters,
		RequestedCount: c.RequestedCount,
		Recurring:      c.Recurring,
		Active:         c.Active,
		ResultsCount:   c.ResultsCount,
		LastRunAt:      c.LastRunAt,
		NextRunAt:      c.NextRunAt,
		LastError:      c.LastError,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
}

func ToResponseList(campaigns []Campaign) []Response {
	out := make([]Response, 0, len(campaigns))
	for i := range campaigns {
		out = append(out, ToResponse(&campaigns[i]))
	}
	return out
}

type RunResult struct {
	CampaignID  string `json:"campaign_id"`
	Discovered  int    `json:"discovered"`
	NetNew      int    `json:"net_new"`
	NewCreators int    `json:"new_creators"`
	NoEmail     int    `json:"no_email"`
	Queued      int    `json:"queued"`
	Skipped     int    `json:"skipped"`
	Results     int    `json:"results_count"`
}

type DueSummary struct {
	Campaigns   int `json:"campaigns"`
	Discovered  int `json:"discovered"`
	NewCreators int `json:"new_creators"`
	Queued      int `json:"queued"`
	Skipped     int `json:"skipped"`
	Failed      int `json:"failed"`
}
