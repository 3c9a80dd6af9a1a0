package app

import (
	"errors"
	"log"
	"net/http"
	"strings"

	apperrors "github.com/louisbranch/encore/internal/platform/errors"
	"github.com/louisbranch/encore/internal/platform/httpx"
	"github.com/louisbranch/encore/internal/platform/requestctx"
	"github.com/louisbranch/encore/internal/services/companion/badge"
	"github.com/louisbranch/encore/internal/services/companion/concert"
	"github.com/louisbranch/encore/internal/services/companion/interaction"
	"github.com/louisbranch/encore/internal/services/companion/session"
)

// Deps are the services the HTTP surface reads and drives.
type Deps struct {
	Catalog     *concert.Catalog
	Interaction *interaction.Service
	Sessions    *session.Controller
	Tokens      *session.Tokens
	// MCP is mounted at /mcp when set.
	MCP    http.Handler
	Logger *log.Logger
}

func (d Deps) validate() error {
	switch {
	case d.Catalog == nil:
		return errors.New("concert catalog is required")
	case d.Interaction == nil:
		return errors.New("interaction service is required")
	case d.Sessions == nil:
		return errors.New("session controller is required")
	case d.Tokens == nil:
		return errors.New("session tokens are required")
	}
	return nil
}

type handler struct {
	deps Deps
}

// NewHandler builds the routes with request IDs, access logs and panic
// recovery applied.
func NewHandler(deps Deps) (http.Handler, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if deps.Logger == nil {
		deps.Logger = log.Default()
	}
	h := &handler{deps: deps}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /up", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	mux.HandleFunc("GET /{$}", h.landing)
	mux.HandleFunc("GET /concert/{id}", h.concertDetail)
	mux.HandleFunc("GET /profile", h.profile)

	mux.HandleFunc("GET /api/concerts", h.listUpcoming)
	mux.HandleFunc("GET /api/concerts/live", h.listLive)
	mux.HandleFunc("POST /api/session", h.login)
	mux.HandleFunc("DELETE /api/session", h.requireWallet(h.logout))
	mux.HandleFunc("GET /api/profile", h.requireWallet(h.profileAPI))
	mux.HandleFunc("GET /api/transactions/pending", h.requireWallet(h.pending))
	mux.HandleFunc("GET /api/concerts/{id}/chat", h.requireWallet(h.transcript))
	mux.HandleFunc("POST /api/concerts/{id}/chat", h.requireWallet(h.chat))
	mux.HandleFunc("POST /api/concerts/{id}/claps", h.requireWallet(h.clap))
	mux.HandleFunc("GET /api/concerts/{id}/badges", h.requireWallet(h.badges))
	mux.HandleFunc("POST /api/concerts/{id}/badges", h.requireWallet(h.mint))
	mux.Handle("GET /ws/concerts/{id}/chat", h.requireWallet(h.chatSocket()))

	if deps.MCP != nil {
		// Streamable HTTP uses GET for the event stream, POST for calls and
		// DELETE to end a session.
		for _, method := range []string{http.MethodGet, http.MethodPost, http.MethodDelete} {
			mux.Handle(method+" /mcp", deps.MCP)
		}
	}

	// Unknown pages fall back to the catalog.
	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			httpx.WriteError(w, apperrors.E(apperrors.KindNotFound, "not found"))
			return
		}
		http.Redirect(w, r, "/", http.StatusSeeOther)
	})

	return httpx.Chain(mux,
		httpx.RequestID(),
		httpx.RequestLogger(deps.Logger),
		httpx.RecoverPanic(deps.Logger),
	), nil
}

func (h *handler) landing(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	live, err := h.deps.Catalog.ListLive(ctx)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	upcoming, err := h.deps.Catalog.ListUpcoming(ctx, "")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	now := h.deps.Catalog.Now()
	_ = httpx.WriteJSON(w, http.StatusOK, LandingView{
		User:     h.viewer(r),
		Live:     concertCards(live, now),
		Upcoming: concertCards(upcoming, now),
	})
}

func (h *handler) concertDetail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	record, ok, err := h.deps.Catalog.Get(ctx, r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !ok {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	view := DetailView{
		User:    h.viewer(r),
		Concert: concertCard(record, h.deps.Catalog.Now()),
		Badges:  []badge.Badge{},
	}
	if view.User != nil {
		if transcript, ok := h.deps.Sessions.Transcript(record.ID, record.Artist); ok {
			view.Messages = transcript.Messages()
		}
		view.Badges = h.deps.Sessions.BadgesForConcert(record.ID)
		view.ClapCount = h.deps.Interaction.ClapCount(record.ID)
	}
	_ = httpx.WriteJSON(w, http.StatusOK, view)
}

func (h *handler) profile(w http.ResponseWriter, r *http.Request) {
	view, ok := h.profileView(r)
	if !ok {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, view)
}

func (h *handler) profileAPI(w http.ResponseWriter, r *http.Request) {
	view, ok := h.profileView(r)
	if !ok {
		httpx.WriteError(w, apperrors.E(apperrors.KindUnauthorized, "session ended"))
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, view)
}

func (h *handler) profileView(r *http.Request) (ProfileView, bool) {
	if _, err := h.authenticate(r); err != nil {
		return ProfileView{}, false
	}
	snap, ok := h.deps.Sessions.Snapshot()
	if !ok {
		return ProfileView{}, false
	}
	return ProfileView{
		User:         userView(snap.Identity),
		Transactions: snap.Transactions,
		Badges:       snap.Badges,
		Pending:      h.deps.Interaction.Pending(),
	}, true
}

func (h *handler) listUpcoming(w http.ResponseWriter, r *http.Request) {
	records, err := h.deps.Catalog.ListUpcoming(r.Context(), r.URL.Query().Get("filter"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"concerts": concertCards(records, h.deps.Catalog.Now()),
	})
}

func (h *handler) listLive(w http.ResponseWriter, r *http.Request) {
	records, err := h.deps.Catalog.ListLive(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"concerts": concertCards(records, h.deps.Catalog.Now()),
	})
}

type loginRequest struct {
	Email string `json:"email"`
}

type loginResponse struct {
	User  UserView `json:"user"`
	Token string   `json:"token"`
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}
	identity, err := h.deps.Sessions.SignIn(r.Context(), req.Email)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	token, err := h.deps.Tokens.Issue(identity.Address)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.setSessionCookie(w, token, h.deps.Tokens.TTL())
	_ = httpx.WriteJSON(w, http.StatusCreated, loginResponse{User: userView(identity), Token: token})
}

func (h *handler) logout(w http.ResponseWriter, r *http.Request) {
	h.deps.Sessions.Logout(r.Context())
	clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) pending(w http.ResponseWriter, r *http.Request) {
	_ = httpx.WriteJSON(w, http.StatusOK, map[string]any{"transactions": h.deps.Interaction.Pending()})
}

func (h *handler) transcript(w http.ResponseWriter, r *http.Request) {
	msgs, err := h.deps.Interaction.Transcript(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

type chatRequest struct {
	Text    string `json:"text"`
	Publish bool   `json:"publish"`
}

type chatResponse struct {
	interaction.ChatResult
	Error *httpx.ErrorDetail `json:"error,omitempty"`
}

func (h *handler) chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}
	result, err := h.deps.Interaction.Chat(r.Context(), r.PathValue("id"), req.Text, req.Publish)
	if err != nil {
		if result.Reply.ID == "" {
			h.fail(w, r, err)
			return
		}
		// The exchange stands; only publishing failed.
		h.logFailure(r, err)
		_ = httpx.WriteJSON(w, apperrors.HTTPStatus(err), chatResponse{
			ChatResult: result,
			Error:      errorDetail(err),
		})
		return
	}
	_ = httpx.WriteJSON(w, http.StatusCreated, chatResponse{ChatResult: result})
}

func (h *handler) clap(w http.ResponseWriter, r *http.Request) {
	tx, err := h.deps.Interaction.Clap(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusCreated, map[string]any{
		"transaction": tx,
		"clapCount":   h.deps.Interaction.ClapCount(r.PathValue("id")),
	})
}

func (h *handler) badges(w http.ResponseWriter, r *http.Request) {
	badges, err := h.deps.Interaction.Badges(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, map[string]any{"badges": badges})
}

func (h *handler) mint(w http.ResponseWriter, r *http.Request) {
	tx, minted, err := h.deps.Interaction.Mint(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusCreated, map[string]any{"transaction": tx, "badge": minted})
}

func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	h.logFailure(r, err)
	httpx.WriteError(w, err)
}

func (h *handler) logFailure(r *http.Request, err error) {
	switch apperrors.KindOf(err) {
	case apperrors.KindValidation, apperrors.KindNotFound, apperrors.KindUnauthorized, apperrors.KindConflict:
		return
	}
	h.deps.Logger.Printf("request failed: method=%s path=%s wallet=%s request_id=%s err=%v",
		r.Method, r.URL.Path, requestctx.WalletAddressFromContext(r.Context()), r.Header.Get(httpx.RequestIDHeader), err)
}

func errorDetail(err error) *httpx.ErrorDetail {
	return &httpx.ErrorDetail{
		Kind:    string(apperrors.KindOf(err)),
		Message: apperrors.UserMessage(err),
		Field:   apperrors.FieldOf(err),
	}
}
