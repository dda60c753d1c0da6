// AngelaMos | 2026
// entity.go

package creator

import (
	"strings"
	"time"
)

// Creator is identified by (Platform, Handle). Handles are stored
// lower-cased without a leading "@" so re-discovery resolves to the same row.
type Creator struct {
	ID                 string    `db:"id"                   json:"id"`
	Platform           string    `db:"platform"             json:"platform"`
	Handle             string    `db:"handle"               json:"handle"`
	DisplayName        string    `db:"display_name"         json:"display_name"`
	Followers          int64     `db:"followers"            json:"followers"`
	Niche              string    `db:"niche"                json:"niche"`
	ProfileURL         string    `db:"profile_url"          json:"profile_url"`
	Email              string    `db:"email"                json:"email,omitempty"`
	EmailFound         *bool     `db:"email_found"          json:"email_found,omitempty"`
	HasBasicProfile    bool      `db:"has_basic_profile"    json:"has_basic_profile"`
	HasDetailedProfile bool      `db:"has_detailed_profile" json:"has_detailed_profile"`
	CreatedAt          time.Time `db:"created_at"           json:"created_at"`
	UpdatedAt          time.Time `db:"updated_at"           json:"updated_at"`
}

func (c *Creator) HasEmail() bool {
	return strings.TrimSpace(c.Email) != ""
}

func NormalizeHandle(handle string) string {
	h := strings.TrimSpace(handle)
	h = strings.TrimPrefix(h, "@")
	return strings.ToLower(h)
}

func NormalizePlatform(platform string) string {
	return strings.ToLower(strings.TrimSpace(platform))
}
