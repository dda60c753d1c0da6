// AngelaMos | 2026
// service.go

package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/carterperez-dev/creator-outreach/internal/core"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailExists        = errors.New("email already exists")
)

// AccountInfo is the slice of an account auth needs. The account package
// owns storage and quota; auth only verifies and issues.
type AccountInfo struct {
	ID                string
	Email             string
	Name              string
	PasswordHash      string
	Role              string
	Plan              string
	Timezone          string
	BusinessHoursOnly bool
}

type NewAccount struct {
	Email             string
	PasswordHash      string
	Name              string
	Timezone          string
	BusinessHoursOnly *bool
}

type AccountProvider interface {
	GetByEmail(ctx context.Context, email string) (*AccountInfo, error)
	GetByID(ctx context.Context, id string) (*AccountInfo, error)
	Create(ctx context.Context, acct NewAccount) (*AccountInfo, error)
}

type TokenIssuer interface {
	CreateAccessToken(claims AccessTokenClaims) (string, time.Time, error)
}

type Service struct {
	issuer   TokenIssuer
	accounts AccountProvider
}

func NewService(issuer TokenIssuer, accounts AccountProvider) *Service {
	return &Service{issuer: issuer, accounts: accounts}
}

func (s *Service) Register(ctx context.Context, req RegisterRequest) (*SessionResponse, error) {
	hash, err := core.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	acct, err := s.accounts.Create(ctx, NewAccount{
		Email:             strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash:      hash,
		Name:              req.Name,
		Timezone:          req.Timezone,
		BusinessHoursOnly: req.BusinessHoursOnly,
	})
	if errors.Is(err, core.ErrDuplicateKey) {
		return nil, ErrEmailExists
	}
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	return s.session(acct)
}

// Login runs the password check even for unknown emails so response time
// does not reveal which addresses have accounts.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*SessionResponse, error) {
	acct, err := s.accounts.GetByEmail(ctx, strings.TrimSpace(req.Email))
	if errors.Is(err, core.ErrNotFound) {
		//nolint:errcheck // result intentionally discarded
		_, _ = core.VerifyPasswordTimingSafe(req.Password, nil)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	ok, err := core.VerifyPasswordTimingSafe(req.Password, &acct.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}

	return s.session(acct)
}

func (s *Service) CurrentAccount(ctx context.Context, userID string) (*AccountResponse, error) {
	if userID == "" {
		return nil, fmt.Errorf("current account: %w", core.ErrNotFound)
	}
	acct, err := s.accounts.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	resp := toAccountResponse(acct)
	return &resp, nil
}

func (s *Service) session(acct *AccountInfo) (*SessionResponse, error) {
	token, expiresAt, err := s.issuer.CreateAccessToken(AccessTokenClaims{
		UserID: acct.ID,
		Role:   acct.Role,
		Plan:   acct.Plan,
	})
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	return &SessionResponse{
		Account: toAccountResponse(acct),
		Token: SessionToken{
			AccessToken: token,
			TokenType:   "Bearer",
			ExpiresAt:   expiresAt,
		},
	}, nil
}

func toAccountResponse(acct *AccountInfo) AccountResponse {
	return AccountResponse{
		ID:                acct.ID,
		Email:             acct.Email,
		Name:              acct.Name,
		Role:              acct.Role,
		Plan:              acct.Plan,
		Timezone:          acct.Timezone,
		BusinessHoursOnly: acct.BusinessHoursOnly,
	}
}
