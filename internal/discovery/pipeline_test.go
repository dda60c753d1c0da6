// AngelaMos | 2026
// pipeline_test.go

package discovery

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/creator-outreach/internal/creator"
	"github.com/carterperez-dev/creator-outreach/internal/creator/creatortest"
)

type stubProvider struct {
	profiles []Profile
	err      error
	calls    atomic.Int32
}

func (s *stubProvider) Search(_ context.Context, req SearchRequest) (SearchPage, error) {
	s.calls.Add(1)
	if s.err != nil {
		return SearchPage{}, s.err
	}
	start := (req.Page - 1) * req.PageSize
	if start >= len(s.profiles) {
		return SearchPage{}, nil
	}
	end := min(start+req.PageSize, len(s.profiles))
	return SearchPage{Profiles: s.profiles[start:end], HasMore: end < len(s.profiles)}, nil
}

func profiles(n int) []Profile {
	out := make([]Profile, n)
	for i := range out {
		out[i] = Profile{Handle: fmt.Sprintf("Creator%02d", i), Followers: int64(1000 + i)}
	}
	return out
}

func TestDiscoverPersistsOnlyNewCreators(t *testing.T) {
	ctx := context.Background()
	repo := creatortest.NewMemoryRepository()
	provider := &stubProvider{profiles: profiles(7)}
	p := NewPipeline(provider, repo, 3, 2, nil)

	req := DiscoverRequest{UserID: "u1", Platform: "Instagram", RequestedCount: 7}

	first, err := p.Discover(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 7, first.NetNew)
	assert.Equal(t, 0, first.Existing)
	assert.Equal(t, int32(3), provider.calls.Load())
	require.Len(t, first.Creators, 7)
	assert.Equal(t, "creator00", first.Creators[0].Handle)
	assert.Equal(t, "instagram", first.Creators[0].Platform)

	second, err := p.Discover(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 0, second.NetNew)
	assert.Equal(t, 7, second.Existing)
	assert.Equal(t, 7, repo.Len())

	for i := range first.Creators {
		assert.Equal(t, first.Creators[i].ID, second.Creators[i].ID)
	}
}

func TestDiscoverRequestedCountIsSoftBound(t *testing.T) {
	repo := creatortest.NewMemoryRepository()
	p := NewPipeline(&stubProvider{profiles: profiles(4)}, repo, 10, 2, nil)

	res, err := p.Discover(context.Background(), DiscoverRequest{Platform: "tiktok", RequestedCount: 25})
	require.NoError(t, err)
	assert.Len(t, res.Creators, 4)
}

func TestDiscoverTruncatesAndDedupes(t *testing.T) {
	list := []Profile{
		{Handle: "@Alpha"}, {Handle: "alpha"}, {Handle: ""}, {Handle: "beta"}, {Handle: "gamma"},
	}
	repo := creatortest.NewMemoryRepository()
	p := NewPipeline(&stubProvider{profiles: list}, repo, 5, 1, nil)

	res, err := p.Discover(context.Background(), DiscoverRequest{Platform: "tiktok", RequestedCount: 2})
	require.NoError(t, err)
	require.Len(t, res.Creators, 2)
	assert.Equal(t, "alpha", res.Creators[0].Handle)
	assert.Equal(t, "beta", res.Creators[1].Handle)
}

func TestDiscoverProviderFailureAborts(t *testing.T) {
	repo := creatortest.NewMemoryRepository()
	p := NewPipeline(&stubProvider{err: fmt.Errorf("boom: %w", ErrProviderUnavailable)}, repo, 5, 1, nil)

	_, err := p.Discover(context.Background(), DiscoverRequest{Platform: "tiktok", RequestedCount: 5})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrProviderUnavailable))
	assert.Equal(t, 0, repo.Len())
}

func TestDiscoverRejectsEmptyRequest(t *testing.T) {
	p := NewPipeline(&stubProvider{}, creatortest.NewMemoryRepository(), 5, 1, nil)

	_, err := p.Discover(context.Background(), DiscoverRequest{Platform: "", RequestedCount: 5})
	assert.Error(t, err)

	_, err = p.Discover(context.Background(), DiscoverRequest{Platform: "tiktok"})
	assert.Error(t, err)
}

type staleReads struct {
	*creatortest.MemoryRepository
}

func (staleReads) FindByHandles(context.Context, string, []string) ([]creator.Creator, error) {
	return nil, nil
}

func TestDiscoverCountsRaceLoserAsExisting(t *testing.T) {
	ctx := context.Background()
	repo := staleReads{creatortest.NewMemoryRepository()}
	_, err := repo.InsertNew(ctx, []creator.Creator{{ID: "winner", Platform: "tiktok", Handle: "creator00"}})
	require.NoError(t, err)

	p := NewPipeline(&stubProvider{profiles: profiles(2)}, repo, 5, 1, nil)
	res, err := p.Discover(ctx, DiscoverRequest{Platform: "tiktok", RequestedCount: 2})
	require.NoError(t, err)

	assert.Equal(t, 1, res.NetNew)
	assert.Equal(t, 1, res.Existing)
	require.Len(t, res.Creators, 2)
	assert.Equal(t, "winner", res.Creators[0].ID)
	assert.False(t, res.Creators[0].NetNew)
	assert.True(t, res.Creators[1].NetNew)
}
