// AngelaMos | 2026
// service_test.go

package creator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeHandle(t *testing.T) {
	assert.Equal(t, "janedoe", NormalizeHandle("  @JaneDoe "))
	assert.Equal(t, "", NormalizeHandle("@"))
	assert.Equal(t, "tiktok", NormalizePlatform(" TikTok"))
}
