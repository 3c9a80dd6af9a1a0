package app

import (
	"net/http"
	"strings"
	"time"

	apperrors "github.com/louisbranch/encore/internal/platform/errors"
	"github.com/louisbranch/encore/internal/platform/httpx"
	"github.com/louisbranch/encore/internal/platform/i18n"
	"github.com/louisbranch/encore/internal/platform/requestctx"
	"github.com/louisbranch/encore/internal/services/companion/wallet"
)

// SessionCookieName carries the session token for browser clients.
const SessionCookieName = "encore_session"

func tokenFromRequest(r *http.Request) string {
	if r == nil {
		return ""
	}
	if header := strings.TrimSpace(r.Header.Get("Authorization")); header != "" {
		if token, ok := strings.CutPrefix(header, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		return strings.TrimSpace(cookie.Value)
	}
	return ""
}

// authenticate checks that the request carries a token for the wallet that
// is currently signed in.
func (h *handler) authenticate(r *http.Request) (wallet.Identity, error) {
	identity, ok := h.deps.Sessions.Identity()
	if !ok {
		return wallet.Identity{}, apperrors.E(apperrors.KindUnauthorized, i18n.Sprintf(i18n.KeyLoginNeeded))
	}
	address, err := h.deps.Tokens.Verify(tokenFromRequest(r))
	if err != nil {
		return wallet.Identity{}, err
	}
	if address != identity.Address {
		return wallet.Identity{}, apperrors.E(apperrors.KindUnauthorized, i18n.Sprintf(i18n.KeyLoginNeeded))
	}
	return identity, nil
}

// requireWallet rejects requests without a valid session token and stores
// the wallet address in the request context.
func (h *handler) requireWallet(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, err := h.authenticate(r)
		if err != nil {
			httpx.WriteError(w, err)
			return
		}
		next(w, r.WithContext(requestctx.WithWalletAddress(r.Context(), identity.Address)))
	}
}

// viewer returns the signed-in user for page views, or nil.
func (h *handler) viewer(r *http.Request) *UserView {
	identity, err := h.authenticate(r)
	if err != nil {
		return nil
	}
	view := userView(identity)
	return &view
}

func (h *handler) setSessionCookie(w http.ResponseWriter, token string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(ttl / time.Second),
	})
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}
