package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/punchamoorthee/swapledger/internal/auth"
	"github.com/punchamoorthee/swapledger/internal/domain"
	"go.uber.org/zap"
)

type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// Register creates an account funded with the starting balance. The grant is
// recorded as a ledger entry so the balance always equals the sum of entries.
func (m *Marketplace) Register(ctx context.Context, in RegisterInput) (*domain.Account, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" {
		return nil, domain.NewValidationError("email", "is required")
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	now := m.clock()
	acct := &domain.Account{
		ID:            uuid.New(),
		Email:         email,
		FirstName:     strings.TrimSpace(in.FirstName),
		LastName:      strings.TrimSpace(in.LastName),
		PasswordHash:  hash,
		PointsBalance: m.startingPoints,
		IsActive:      true,
		CreatedAt:     now,
	}

	err = m.inTx(ctx, func(repo domain.Repository, _ *commitLog) error {
		if err := repo.CreateAccount(ctx, acct); err != nil {
			return err
		}
		if m.startingPoints == 0 {
			return nil
		}
		return repo.InsertLedgerEntries(ctx, domain.LedgerEntry{
			ID:        uuid.New(),
			AccountID: acct.ID,
			Delta:     m.startingPoints,
			Kind:      domain.EntrySignupGrant,
			CreatedAt: now,
		})
	})
	if err != nil {
		return nil, err
	}

	m.log.Info("account registered", zap.String("account_id", acct.ID.String()))
	return acct, nil
}

// NamesInput edits the caller's display name. Nil fields are left unchanged.
type NamesInput struct {
	FirstName *string
	LastName  *string
}

// UpdateNames changes the caller's first and last name and returns the
// refreshed profile.
func (m *Marketplace) UpdateNames(ctx context.Context, accountID uuid.UUID, in NamesInput) (*Profile, error) {
	trim := func(field string, v *string) (string, error) {
		s := strings.TrimSpace(*v)
		if s == "" {
			return "", domain.NewValidationError(field, "must not be blank")
		}
		return s, nil
	}

	err := m.inTx(ctx, func(repo domain.Repository, _ *commitLog) error {
		acct, err := repo.FindAccount(ctx, accountID)
		if err != nil {
			return err
		}
		if !acct.IsActive {
			return fmt.Errorf("account %s is deactivated: %w", accountID, domain.ErrForbidden)
		}
		if in.FirstName != nil {
			if acct.FirstName, err = trim("first_name", in.FirstName); err != nil {
				return err
			}
		}
		if in.LastName != nil {
			if acct.LastName, err = trim("last_name", in.LastName); err != nil {
				return err
			}
		}
		return repo.UpdateAccountNames(ctx, acct)
	})
	if err != nil {
		return nil, err
	}
	return m.Profile(ctx, accountID)
}

// Authenticate resolves credentials to an active account. Every failure is
// reported as ErrUnauthorized so callers cannot discover registered emails.
func (m *Marketplace) Authenticate(ctx context.Context, email, password string) (*domain.Account, error) {
	acct, err := m.uow.GetAccountByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: invalid credentials", domain.ErrUnauthorized)
		}
		return nil, err
	}
	if err := auth.CheckPassword(acct.PasswordHash, password); err != nil {
		return nil, err
	}
	if !acct.IsActive {
		return nil, fmt.Errorf("%w: account is deactivated", domain.ErrUnauthorized)
	}
	return acct, nil
}

// Profile is the public view of an account with its reputation.
type Profile struct {
	*domain.Account
	AverageRating float64 `json:"average_rating"`
	RatingCount   int     `json:"rating_count"`
}

func (m *Marketplace) Profile(ctx context.Context, accountID uuid.UUID) (*Profile, error) {
	acct, err := m.uow.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	ratings, err := m.uow.ListRatings(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return &Profile{
		Account:       acct,
		AverageRating: domain.AverageScore(ratings),
		RatingCount:   len(ratings),
	}, nil
}
