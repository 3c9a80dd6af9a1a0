// Package wallet derives fan wallets from email sign-ins. Key management is
// out of scope; MockProvider hands out random addresses.
package wallet

import (
	"context"
	"fmt"
	"strings"

	apperrors "github.com/louisbranch/encore/internal/platform/errors"
	"github.com/louisbranch/encore/internal/platform/i18n"
	"github.com/louisbranch/encore/internal/platform/random"
	"github.com/louisbranch/encore/internal/services/companion/badge"
)

// Identity is the signed-in wallet. It is the only persisted entity.
type Identity struct {
	Address     string `json:"address"`
	IsConnected bool   `json:"isConnected"`
}

// Provider is the wallet collaborator.
type Provider interface {
	// Create derives a wallet for an email sign-in.
	Create(ctx context.Context, email string) (Identity, error)
	// Disconnect ends the provider session for address.
	Disconnect(ctx context.Context, address string) error
	// FetchBadges lists badges already held by address.
	FetchBadges(ctx context.Context, address string) ([]badge.Badge, error)
}

// ErrInvalidEmail matches the validation failure for a malformed email.
var ErrInvalidEmail = &apperrors.Error{Kind: apperrors.KindValidation, Message: i18n.Sprintf(i18n.KeyLoginInvalid)}

// ValidateEmail accepts any non-empty value containing "@".
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" || !strings.Contains(email, "@") {
		return apperrors.Field("email", i18n.Sprintf(i18n.KeyLoginInvalid))
	}
	return nil
}

// MockProvider creates wallets with random 20-byte addresses and holds no
// badges.
type MockProvider struct{}

// Create implements Provider.
func (MockProvider) Create(ctx context.Context, email string) (Identity, error) {
	if err := ValidateEmail(email); err != nil {
		return Identity{}, err
	}
	if err := ctx.Err(); err != nil {
		return Identity{}, err
	}
	address, err := random.Hex(20)
	if err != nil {
		return Identity{}, apperrors.Wrap(apperrors.KindUnknown, i18n.Sprintf(i18n.KeyLoginFailed), fmt.Errorf("derive address: %w", err))
	}
	return Identity{Address: address, IsConnected: true}, nil
}

// Disconnect implements Provider.
func (MockProvider) Disconnect(ctx context.Context, _ string) error {
	return ctx.Err()
}

// FetchBadges implements Provider.
func (MockProvider) FetchBadges(ctx context.Context, _ string) ([]badge.Badge, error) {
	return nil, ctx.Err()
}

// Abbreviate shortens an address for display, e.g. 0x1234...abcd.
func Abbreviate(address string) string {
	if len(address) <= 10 {
		return address
	}
	return address[:6] + "..." + address[len(address)-4:]
}
