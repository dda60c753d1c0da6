// AngelaMos | 2026
// service.go

package creator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/carterperez-dev/creator-outreach/internal/core"
)

type Service struct {
	repo     Repository
	validate *validator.Validate
	logger   *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, validate: validator.New(), logger: logger}
}

func (s *Service) Get(ctx context.Context, id string) (*Creator, error) {
	return s.repo.GetByID(ctx, id)
}

// ApplyEnrichment records the result of an asynchronous email lookup. An
// empty email records that the provider found nothing. Applying the same
// result twice leaves the row unchanged.
func (s *Service) ApplyEnrichment(ctx context.Context, creatorID, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email != "" {
		if err := s.validate.Var(email, "email"); err != nil {
			return fmt.Errorf("apply enrichment: invalid email: %w", core.ErrInvalidInput)
		}
	}

	if err := s.repo.SetEmail(ctx, creatorID, email, email != ""); err != nil {
		return fmt.Errorf("apply enrichment: %w", err)
	}

	s.logger.Info("creator enriched",
		"creator_id", creatorID,
		"email_found", email != "",
	)
	return nil
}
