// AngelaMos | 2026
// service.go

package account

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/carterperez-dev/creator-outreach/internal/auth"
	"github.com/carterperez-dev/creator-outreach/internal/core"
)

type Service struct {
	repo            Repository
	defaultTimezone string
	logger          *slog.Logger
}

func NewService(repo Repository, defaultTimezone string, logger *slog.Logger) *Service {
	if defaultTimezone == "" {
		defaultTimezone = "UTC"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, defaultTimezone: defaultTimezone, logger: logger}
}

func (s *Service) GetByID(ctx context.Context, id string) (*auth.AccountInfo, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return toAccountInfo(a), nil
}

func (s *Service) GetByEmail(ctx context.Context, email string) (*auth.AccountInfo, error) {
	a, err := s.repo.GetByEmail(ctx, strings.ToLower(email))
	if err != nil {
		return nil, err
	}
	return toAccountInfo(a), nil
}

// Create registers a free-plan account. An empty timezone takes the
// deployment default; business-hours sending is on unless declined.
func (s *Service) Create(ctx context.Context, in auth.NewAccount) (*auth.AccountInfo, error) {
	quota, err := DailyQuotaFor(PlanFree)
	if err != nil {
		return nil, err
	}

	tz := in.Timezone
	if tz == "" {
		tz = s.defaultTimezone
	}
	businessHours := true
	if in.BusinessHoursOnly != nil {
		businessHours = *in.BusinessHoursOnly
	}

	a := &Account{
		ID:                uuid.New().String(),
		Email:             strings.ToLower(in.Email),
		PasswordHash:      in.PasswordHash,
		Name:              in.Name,
		Role:              RoleUser,
		Plan:              PlanFree,
		EmailQuotaDaily:   quota,
		BusinessHoursOnly: businessHours,
		Timezone:          tz,
	}

	if err := s.repo.Create(ctx, a); err != nil {
		return nil, err
	}

	s.logger.Info("account created", "user_id", a.ID, "timezone", tz)
	return toAccountInfo(a), nil
}

func (s *Service) GetAccount(ctx context.Context, id string) (*Account, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetMe(ctx context.Context, userID string) (*Account, error) {
	if userID == "" {
		return nil, fmt.Errorf("get me: %w", core.ErrUnauthorized)
	}
	return s.repo.GetByID(ctx, userID)
}

func (s *Service) UpdateMe(
	ctx context.Context,
	userID string,
	req UpdateAccountRequest,
) (*Account, error) {
	if userID == "" {
		return nil, fmt.Errorf("update me: %w", core.ErrUnauthorized)
	}

	a, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		a.Name = *req.Name
	}
	if req.BusinessHoursOnly != nil {
		a.BusinessHoursOnly = *req.BusinessHoursOnly
	}
	if req.Timezone != nil {
		a.Timezone = *req.Timezone
	}

	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}

	return a, nil
}

func (s *Service) DeleteMe(ctx context.Context, userID string) error {
	if userID == "" {
		return fmt.Errorf("delete me: %w", core.ErrUnauthorized)
	}
	return s.repo.SoftDelete(ctx, userID)
}

// ApplyPlan moves an account to plan and resets its daily allotment to the
// plan's quota. Usage already recorded today is kept.
func (s *Service) ApplyPlan(ctx context.Context, userID, plan string) (*Account, error) {
	quota, err := DailyQuotaFor(plan)
	if err != nil {
		return nil, fmt.Errorf("apply plan: %w", err)
	}

	if err := s.repo.UpdatePlan(ctx, userID, plan, quota); err != nil {
		return nil, err
	}

	s.logger.Info("plan applied",
		"user_id", userID,
		"plan", plan,
		"email_quota_daily", quota,
	)

	return s.repo.GetByID(ctx, userID)
}

func (s *Service) UpdateRole(ctx context.Context, userID, role string) (*Account, error) {
	if role != RoleUser && role != RoleAdmin {
		return nil, fmt.Errorf("update role: invalid role %q: %w", role, core.ErrInvalidInput)
	}

	if err := s.repo.UpdateRole(ctx, userID, role); err != nil {
		return nil, err
	}

	return s.repo.GetByID(ctx, userID)
}

func (s *Service) ListAccounts(
	ctx context.Context,
	params ListAccountsParams,
) ([]Account, int, error) {
	return s.repo.List(ctx, params)
}

func toAccountInfo(a *Account) *auth.AccountInfo {
	return &auth.AccountInfo{
		ID:                a.ID,
		Email:             a.Email,
		Name:              a.Name,
		PasswordHash:      a.PasswordHash,
		Role:              a.Role,
		Plan:              a.Plan,
		Timezone:          a.Timezone,
		BusinessHoursOnly: a.BusinessHoursOnly,
	}
}

var _ auth.AccountProvider = (*Service)(nil)
