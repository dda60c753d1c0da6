// AngelaMos | 2026
// pipeline.go

package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/carterperez-dev/creator-outreach/internal/core"
	"github.com/carterperez-dev/creator-outreach/internal/creator"
)

const (
	defaultPageSize    = 50
	defaultConcurrency = 4
)

type DiscoverRequest struct {
	UserID         string
	Platform       string
	Filters        map[string]any
	RequestedCount int
	CampaignID     string
}

type Discovered struct {
	creator.Creator
	NetNew bool `json:"net_new"`
}

type Result struct {
	Creators []Discovered `json:"creators"`
	NetNew   int          `json:"net_new"`
	Existing int          `json:"existing"`
}

type Pipeline struct {
	provider    Provider
	creators    creator.Repository
	pageSize    int
	concurrency int
	logger      *slog.Logger
}

func NewPipeline(
	provider Provider,
	creators creator.Repository,
	pageSize, concurrency int,
	logger *slog.Logger,
) *Pipeline {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		provider:    provider,
		creators:    creators,
		pageSize:    pageSize,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Discover returns up to RequestedCount creators for the search. Creators
// already in the store come back as stored; the rest are persisted first
// and flagged NetNew. Calling it again with the same search never creates
// a second row for the same (platform, handle).
func (p *Pipeline) Discover(ctx context.Context, req DiscoverRequest) (Result, error) {
	ctx, span := core.StartSpan(ctx, "discovery.Discover",
		attribute.String("user_id", req.UserID),
		attribute.String("platform", req.Platform),
		attribute.Int("requested_count", req.RequestedCount),
	)
	defer span.End()

	platform := creator.NormalizePlatform(req.Platform)
	if platform == "" || req.RequestedCount <= 0 {
		return Result{}, fmt.Errorf("discover: %w", core.ErrInvalidInput)
	}

	start := time.Now()

	profiles, err := p.fetch(ctx, platform, req.Filters, req.RequestedCount)
	if err != nil {
		core.SetSpanError(ctx, err)
		return Result{}, err
	}

	handles := make([]string, 0, len(profiles))
	for _, prof := range profiles {
		handles = append(handles, prof.Handle)
	}

	known, err := p.creators.FindByHandles(ctx, platform, handles)
	if err != nil {
		core.SetSpanError(ctx, err)
		return Result{}, fmt.Errorf("discover: %w", err)
	}
	byHandle := make(map[string]creator.Creator, len(known))
	for _, c := range known {
		byHandle[c.Handle] = c
	}

	var fresh []creator.Creator
	for _, prof := range profiles {
		if _, ok := byHandle[prof.Handle]; ok {
			continue
		}
		fresh = append(fresh, creator.Creator{
			ID:              uuid.New().String(),
			Platform:        platform,
			Handle:          prof.Handle,
			DisplayName:     prof.DisplayName,
			Followers:       prof.Followers,
			Niche:           prof.Niche,
			ProfileURL:      prof.ProfileURL,
			HasBasicProfile: true,
		})
	}

	netNew := make(map[string]bool, len(fresh))
	if len(fresh) > 0 {
		stored, insErr := p.creators.InsertNew(ctx, fresh)
		if insErr != nil {
			core.SetSpanError(ctx, insErr)
			return Result{}, fmt.Errorf("discover: %w", insErr)
		}
		generated := make(map[string]string, len(fresh))
		for _, c := range fresh {
			generated[c.Handle] = c.ID
		}
		// A row that lost an insert race comes back with the winner's id
		// and is not ours to count as new.
		for _, c := range stored {
			byHandle[c.Handle] = c
			netNew[c.Handle] = c.ID == generated[c.Handle]
		}
	}

	result := Result{Creators: make([]Discovered, 0, len(profiles))}
	for _, prof := range profiles {
		c, ok := byHandle[prof.Handle]
		if !ok {
			continue
		}
		d := Discovered{Creator: c, NetNew: netNew[prof.Handle]}
		if d.NetNew {
			result.NetNew++
		} else {
			result.Existing++
		}
		result.Creators = append(result.Creators, d)
	}

	core.RecordDiscovered(result.NetNew, result.Existing)
	span.SetAttributes(
		attribute.Int("net_new", result.NetNew),
		attribute.Int("existing", result.Existing),
	)

	p.logger.Info("discovery complete",
		"user_id", req.UserID,
		"campaign_id", req.CampaignID,
		"platform", platform,
		"requested", req.RequestedCount,
		"returned", len(result.Creators),
		"net_new", result.NetNew,
		"existing", result.Existing,
		"duration", time.Since(start),
	)

	return result, nil
}

// fetch pulls ceil(count/pageSize) pages concurrently, then concatenates
// them in page order, drops repeated handles, and truncates to count.
func (p *Pipeline) fetch(
	ctx context.Context,
	platform string,
	filters map[string]any,
	count int,
) ([]Profile, error) {
	pages := (count + p.pageSize - 1) / p.pageSize
	results := make([][]Profile, pages)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	for i := range pages {
		g.Go(func() error {
			page, err := p.provider.Search(gctx, SearchRequest{
				Platform: platform,
				Filters:  filters,
				Page:     i + 1,
				PageSize: p.pageSize,
			})
			if err != nil {
				return fmt.Errorf("discover: %w", err)
			}
			results[i] = page.Profiles
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, count)
	out := make([]Profile, 0, count)
	for _, page := range results {
		for _, prof := range page {
			prof.Handle = creator.NormalizeHandle(prof.Handle)
			if prof.Handle == "" {
				continue
			}
			if _, dup := seen[prof.Handle]; dup {
				continue
			}
			seen[prof.Handle] = struct{}{}
			out = append(out, prof)
			if len(out) == count {
				return out, nil
			}
		}
	}

	return out, nil
}
