// AngelaMos | 2026
// service.go

package mailbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/carterperez-dev/creator-outreach/internal/core"
	"github.com/carterperez-dev/creator-outreach/internal/mail"
)

const resetBatchSize = 500

type Service struct {
	repo       Repository
	cipher     *core.Cipher
	dailyLimit int
	logger     *slog.Logger
}

func NewService(
	repo Repository,
	cipher *core.Cipher,
	defaultDailyLimit int,
	logger *slog.Logger,
) *Service {
	if defaultDailyLimit <= 0 {
		defaultDailyLimit = 50
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:       repo,
		cipher:     cipher,
		dailyLimit: defaultDailyLimit,
		logger:     logger,
	}
}

// Connect registers a mailbox from tokens obtained by an external OAuth
// flow. Connecting an address the user already has replaces its tokens and
// reactivates it, which is how a reconnect_required mailbox recovers.
func (s *Service) Connect(
	ctx context.Context,
	userID string,
	req ConnectRequest,
) (*Mailbox, error) {
	if userID == "" {
		return nil, fmt.Errorf("connect mailbox: %w", core.ErrUnauthorized)
	}

	access, err := s.cipher.Encrypt(req.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("connect mailbox: %w", err)
	}
	var refresh string
	if req.RefreshToken != "" {
		if refresh, err = s.cipher.Encrypt(req.RefreshToken); err != nil {
			return nil, fmt.Errorf("connect mailbox: %w", err)
		}
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))

	existing, err := s.repo.GetByEmail(ctx, userID, email)
	switch {
	case err == nil:
		existing.AccessTokenEnc = access
		existing.RefreshTokenEnc = refresh
		existing.TokenExpiresAt = req.TokenExpiresAt
		if req.DisplayName != "" {
			existing.DisplayName = req.DisplayName
		}
		if err := s.repo.UpdateTokens(ctx, existing); err != nil {
			return nil, err
		}
		s.logger.Info("mailbox reconnected", "user_id", userID, "mailbox_id", existing.ID)
		return existing, nil
	case !errors.Is(err, core.ErrNotFound):
		return nil, err
	}

	limit := req.DailyLimit
	if limit <= 0 {
		limit = s.dailyLimit
	}

	m := &Mailbox{
		ID:              uuid.New().String(),
		UserID:          userID,
		Email:           email,
		DisplayName:     req.DisplayName,
		Provider:        req.Provider,
		AccessTokenEnc:  access,
		RefreshTokenEnc: refresh,
		TokenExpiresAt:  req.TokenExpiresAt,
		DailyLimit:      limit,
		Status:          StatusActive,
	}

	if err := s.repo.Create(ctx, m); err != nil {
		return nil, err
	}

	s.logger.Info("mailbox connected",
		"user_id", userID,
		"mailbox_id", m.ID,
		"provider", m.Provider,
	)

	return m, nil
}

func (s *Service) List(ctx context.Context, userID string) ([]Mailbox, error) {
	return s.repo.ListByUser(ctx, userID)
}

// Get hides mailboxes owned by other users behind ErrNotFound.
func (s *Service) Get(ctx context.Context, userID, id string) (*Mailbox, error) {
	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.UserID != userID {
		return nil, fmt.Errorf("get mailbox: %w", core.ErrNotFound)
	}
	return m, nil
}

func (s *Service) Update(
	ctx context.Context,
	userID, id string,
	req UpdateRequest,
) (*Mailbox, error) {
	m, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if req.DisplayName != nil {
		m.DisplayName = *req.DisplayName
	}
	if req.DailyLimit != nil {
		m.DailyLimit = *req.DailyLimit
	}
	if req.Status != nil {
		if *req.Status == StatusActive && m.Status == StatusReconnectRequired {
			return nil, fmt.Errorf(
				"update mailbox: reconnect with new tokens to reactivate: %w",
				core.ErrInvalidInput,
			)
		}
		m.Status = *req.Status
	}

	if err := s.repo.Update(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *Service) Disconnect(ctx context.Context, userID, id string) error {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("mailbox disconnected", "user_id", userID, "mailbox_id", id)
	return nil
}

// Select returns ErrNoMailbox when nothing active has headroom.
func (s *Service) Select(ctx context.Context, userID string) (*Mailbox, error) {
	m, err := s.repo.SelectForSend(ctx, userID)
	if errors.Is(err, core.ErrNotFound) {
		return nil, ErrNoMailbox
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Credentials opens the sealed tokens for a single send.
func (s *Service) Credentials(m *Mailbox) (mail.Credentials, error) {
	access, err := s.cipher.Decrypt(m.AccessTokenEnc)
	if err != nil {
		return mail.Credentials{}, fmt.Errorf("open access token: %w", err)
	}

	var refresh string
	if m.RefreshTokenEnc != "" {
		if refresh, err = s.cipher.Decrypt(m.RefreshTokenEnc); err != nil {
			return mail.Credentials{}, fmt.Errorf("open refresh token: %w", err)
		}
	}

	return mail.Credentials{
		MailboxID:    m.ID,
		Provider:     m.Provider,
		Email:        m.Email,
		AccessToken:  access,
		RefreshToken: refresh,
	}, nil
}

func (s *Service) ReserveSend(ctx context.Context, id string) (bool, error) {
	return s.repo.ReserveSend(ctx, id)
}

func (s *Service) ReleaseSend(ctx context.Context, id string) error {
	return s.repo.ReleaseSend(ctx, id)
}

func (s *Service) MarkReconnectRequired(ctx context.Context, m *Mailbox, cause error) error {
	reason := "authorization expired"
	if cause != nil {
		reason = cause.Error()
	}
	if err := s.repo.MarkReconnectRequired(ctx, m.ID, reason); err != nil {
		return err
	}
	s.logger.Warn("mailbox needs reconnect",
		"user_id", m.UserID,
		"mailbox_id", m.ID,
		"error", reason,
	)
	return nil
}

// ResetDaily zeroes sent_today for mailboxes not yet reset for now's UTC
// day. Re-running it on the same day changes nothing.
func (s *Service) ResetDaily(ctx context.Context, now time.Time) (int64, error) {
	today := truncateDay(now)

	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n, err := s.repo.ResetDailyBatch(ctx, today, resetBatchSize)
		if err != nil {
			return total, fmt.Errorf("reset mailboxes: %w", err)
		}
		total += n
		if n == 0 {
			return total, nil
		}
	}
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
