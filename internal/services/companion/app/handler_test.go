package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/louisbranch/encore/internal/platform/httpx"
	"github.com/louisbranch/encore/internal/platform/random"
	"github.com/louisbranch/encore/internal/services/companion/badge"
	"github.com/louisbranch/encore/internal/services/companion/concert"
	"github.com/louisbranch/encore/internal/services/companion/interaction"
	"github.com/louisbranch/encore/internal/services/companion/issuer"
	"github.com/louisbranch/encore/internal/services/companion/mcptools"
	"github.com/louisbranch/encore/internal/services/companion/responder"
	"github.com/louisbranch/encore/internal/services/companion/session"
	"github.com/louisbranch/encore/internal/services/companion/storage"
	"github.com/louisbranch/encore/internal/services/companion/wallet"
)

var testNow = time.Date(2026, time.October, 20, 18, 0, 0, 0, time.UTC)

type testEnv struct {
	deps    Deps
	handler http.Handler
	store   *storage.MemoryStore
	logs    *bytes.Buffer
}

func newTestDeps(t *testing.T, sponsor issuer.Sponsor) (Deps, *storage.MemoryStore, *bytes.Buffer) {
	t.Helper()
	clock := func() time.Time { return testNow }
	var logs bytes.Buffer
	logger := log.New(&logs, "", 0)

	catalog := concert.NewCatalog(concert.Config{Now: clock})
	companion, err := responder.New(responder.Config{Picker: random.NewSequence(0), Now: clock})
	if err != nil {
		t.Fatalf("new responder: %v", err)
	}
	store := storage.NewMemoryStore()
	sessions, err := session.NewController(session.Config{
		Store:   store,
		Wallets: wallet.MockProvider{},
		Logger:  logger,
		Now:     clock,
	})
	if err != nil {
		t.Fatalf("new controller: %v", err)
	}
	svc, err := interaction.NewService(interaction.Config{
		Catalog:   catalog,
		Responder: companion,
		Issuer:    issuer.New(sponsor, issuer.WithClock(clock)),
		Sessions:  sessions,
		Now:       clock,
	})
	if err != nil {
		t.Fatalf("new interaction service: %v", err)
	}
	tokens, err := session.NewTokens("test-secret", time.Hour, clock)
	if err != nil {
		t.Fatalf("new tokens: %v", err)
	}
	return Deps{
		Catalog:     catalog,
		Interaction: svc,
		Sessions:    sessions,
		Tokens:      tokens,
		MCP:         mcptools.Handler(mcptools.NewServer(catalog, companion)),
		Logger:      logger,
	}, store, &logs
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	return newTestEnvWithSponsor(t, issuer.RandomSponsor{})
}

func newTestEnvWithSponsor(t *testing.T, sponsor issuer.Sponsor) testEnv {
	t.Helper()
	deps, store, logs := newTestDeps(t, sponsor)
	handler, err := NewHandler(deps)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	return testEnv{deps: deps, handler: handler, store: store, logs: logs}
}

func (e testEnv) do(t *testing.T, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e testEnv) login(t *testing.T) (string, UserView) {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/session", `{"email":"fan@example.com"}`, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("login status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp loginResponse
	decodeBody(t, rec, &resp)
	return resp.Token, resp.User
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), target); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
}

func TestNewHandlerRequiresDeps(t *testing.T) {
	t.Parallel()

	if _, err := NewHandler(Deps{}); err == nil {
		t.Fatal("expected error")
	}
}

func TestUp(t *testing.T) {
	t.Parallel()

	rec := newTestEnv(t).do(t, http.MethodGet, "/up", "", "")
	if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Fatalf("status = %d body = %q", rec.Code, rec.Body.String())
	}
	if rec.Header().Get(httpx.RequestIDHeader) == "" {
		t.Fatal("expected request id header")
	}
}

func TestLandingView(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var view LandingView
	decodeBody(t, rec, &view)
	if view.User != nil {
		t.Fatalf("user = %+v, want none", view.User)
	}
	if len(view.Live) != 1 || view.Live[0].ID != "2" || view.Live[0].Countdown != "Live now!" {
		t.Fatalf("live = %+v", view.Live)
	}
	if len(view.Upcoming) != 4 {
		t.Fatalf("upcoming = %d, want 4", len(view.Upcoming))
	}
	if got := view.Upcoming[0]; got.Countdown != "Starts in 1h 0m" || got.Date != "Tue, Oct 20, 07:00 PM" {
		t.Fatalf("first card = %+v", got)
	}

	token, user := env.login(t)
	rec = env.do(t, http.MethodGet, "/", "", token)
	decodeBody(t, rec, &view)
	if view.User == nil || view.User.Address != user.Address || !strings.Contains(view.User.ShortAddress, "...") {
		t.Fatalf("user = %+v", view.User)
	}
}

func TestNavigationRedirects(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	for _, path := range []string{"/concert/missing", "/profile", "/somewhere/else"} {
		rec := env.do(t, http.MethodGet, path, "", "")
		if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/" {
			t.Errorf("%s: status = %d location = %q", path, rec.Code, rec.Header().Get("Location"))
		}
	}
	rec := env.do(t, http.MethodGet, "/api/nope", "", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("api fallback status = %d, want 404", rec.Code)
	}
}

func TestConcertDetailView(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/concert/3", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var view DetailView
	decodeBody(t, rec, &view)
	if view.Concert.Artist != "BTS" || view.Concert.Status != concert.StatusUpcoming || view.User != nil {
		t.Fatalf("view = %+v", view)
	}

	token, _ := env.login(t)
	rec = env.do(t, http.MethodGet, "/concert/3", "", token)
	decodeBody(t, rec, &view)
	if len(view.Messages) != 1 || view.Messages[0].ID != responder.WelcomeID {
		t.Fatalf("messages = %+v", view.Messages)
	}
}

func TestListConcertsAPI(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	var body struct {
		Concerts []ConcertCard `json:"concerts"`
	}

	rec := env.do(t, http.MethodGet, "/api/concerts?filter="+url.QueryEscape(`artist = "The Weeknd"`), "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	decodeBody(t, rec, &body)
	if len(body.Concerts) != 1 || body.Concerts[0].ID != "4" {
		t.Fatalf("concerts = %+v", body.Concerts)
	}

	rec = env.do(t, http.MethodGet, "/api/concerts/live", "", "")
	decodeBody(t, rec, &body)
	if len(body.Concerts) != 1 || body.Concerts[0].ID != "2" {
		t.Fatalf("live = %+v", body.Concerts)
	}

	rec = env.do(t, http.MethodGet, "/api/concerts?filter="+url.QueryEscape("artist ="), "", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid filter status = %d", rec.Code)
	}
}

func TestLoginValidation(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/session", `{"email":"nope"}`, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	var body httpx.ErrorBody
	decodeBody(t, rec, &body)
	if body.Error.Field != "email" || body.Error.Message != "Please enter a valid email address" {
		t.Fatalf("error = %+v", body.Error)
	}
	if env.deps.Sessions.LoggedIn() {
		t.Fatal("expected logged out")
	}
}

func TestLoginSetsCookieAndPersists(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/session", `{"email":"fan@example.com"}`, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d", rec.Code)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != SessionCookieName || cookies[0].Value == "" {
		t.Fatalf("cookies = %+v", cookies)
	}
	if _, err := env.store.Get(context.Background(), session.IdentityKey); err != nil {
		t.Fatalf("identity not persisted: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/profile", nil)
	req.AddCookie(cookies[0])
	profileRec := httptest.NewRecorder()
	env.handler.ServeHTTP(profileRec, req)
	if profileRec.Code != http.StatusOK {
		t.Fatalf("profile via cookie status = %d", profileRec.Code)
	}
}

func TestLogout(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	token, _ := env.login(t)
	rec := env.do(t, http.MethodDelete, "/api/session", "", token)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
	if env.deps.Sessions.LoggedIn() {
		t.Fatal("expected logged out")
	}
	if rec := env.do(t, http.MethodGet, "/api/profile", "", token); rec.Code != http.StatusUnauthorized {
		t.Fatalf("profile after logout status = %d", rec.Code)
	}
	if rec := env.do(t, http.MethodDelete, "/api/session", "", token); rec.Code != http.StatusUnauthorized {
		t.Fatalf("second logout status = %d", rec.Code)
	}
}

func TestActionsRequireToken(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.login(t)
	other, err := session.NewTokens("other-secret", time.Hour, nil)
	if err != nil {
		t.Fatalf("new tokens: %v", err)
	}
	forged, err := other.Issue("0xsomeone")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	stale, err := env.deps.Tokens.Issue("0xsomeone")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	routes := []struct{ method, path, body string }{
		{http.MethodGet, "/api/profile", ""},
		{http.MethodGet, "/api/concerts/1/chat", ""},
		{http.MethodPost, "/api/concerts/1/chat", `{"text":"hi"}`},
		{http.MethodPost, "/api/concerts/1/claps", ""},
		{http.MethodGet, "/api/concerts/1/badges", ""},
		{http.MethodPost, "/api/concerts/1/badges", ""},
		{http.MethodGet, "/api/transactions/pending", ""},
	}
	for _, route := range routes {
		for _, token := range []string{"", forged, stale} {
			rec := env.do(t, route.method, route.path, route.body, token)
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("%s %s token=%t: status = %d", route.method, route.path, token != "", rec.Code)
			}
		}
	}
}

func TestChatAPI(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	token, _ := env.login(t)

	rec := env.do(t, http.MethodPost, "/api/concerts/1/chat", `{"text":"this is amazing","publish":true}`, token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	var resp chatResponse
	decodeBody(t, rec, &resp)
	if !strings.HasPrefix(resp.Reply.Content, responder.AcknowledgmentPrefix) {
		t.Fatalf("reply = %q", resp.Reply.Content)
	}
	if resp.Transaction == nil || resp.Transaction.Intent != issuer.IntentComment {
		t.Fatalf("transaction = %+v", resp.Transaction)
	}

	rec = env.do(t, http.MethodPost, "/api/concerts/1/chat", `{"text":"   "}`, token)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty text status = %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/api/concerts/1/chat", "", token)
	var transcript struct {
		Messages []responder.Message `json:"messages"`
	}
	decodeBody(t, rec, &transcript)
	if len(transcript.Messages) != 3 {
		t.Fatalf("messages = %d, want 3", len(transcript.Messages))
	}

	rec = env.do(t, http.MethodPost, "/api/concerts/missing/chat", `{"text":"hi"}`, token)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown concert status = %d", rec.Code)
	}
}

type failingSponsor struct{}

func (failingSponsor) Submit(context.Context, issuer.Request) (string, error) {
	return "", io.ErrUnexpectedEOF
}

func TestChatPublishFailureReturnsExchange(t *testing.T) {
	t.Parallel()

	env := newTestEnvWithSponsor(t, failingSponsor{})
	token, user := env.login(t)
	rec := env.do(t, http.MethodPost, "/api/concerts/2/chat", `{"text":"hello","publish":true}`, token)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp chatResponse
	decodeBody(t, rec, &resp)
	if resp.Reply.Content == "" || resp.Error == nil || resp.Error.Kind != "transaction" {
		t.Fatalf("resp = %+v", resp)
	}
	if !strings.Contains(env.logs.String(), "request failed: method=POST path=/api/concerts/2/chat wallet="+user.Address) {
		t.Fatalf("logs = %q", env.logs.String())
	}
}

func TestClapAndMintAPI(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	token, _ := env.login(t)

	rec := env.do(t, http.MethodPost, "/api/concerts/2/claps", "", token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("clap status = %d", rec.Code)
	}
	var clap struct {
		Transaction issuer.Record `json:"transaction"`
		ClapCount   int           `json:"clapCount"`
	}
	decodeBody(t, rec, &clap)
	if clap.Transaction.Intent != issuer.IntentClap || clap.ClapCount != 1 {
		t.Fatalf("clap = %+v", clap)
	}

	rec = env.do(t, http.MethodPost, "/api/concerts/2/badges", "", token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("mint status = %d", rec.Code)
	}
	var mint struct {
		Transaction issuer.Record `json:"transaction"`
		Badge       badge.Badge   `json:"badge"`
	}
	decodeBody(t, rec, &mint)
	if mint.Badge.Name != "Beyoncé Fan" || mint.Badge.ConcertID != "2" {
		t.Fatalf("badge = %+v", mint.Badge)
	}

	rec = env.do(t, http.MethodGet, "/api/concerts/2/badges", "", token)
	var badges struct {
		Badges []badge.Badge `json:"badges"`
	}
	decodeBody(t, rec, &badges)
	if len(badges.Badges) != 1 {
		t.Fatalf("badges = %+v", badges.Badges)
	}

	rec = env.do(t, http.MethodGet, "/api/profile", "", token)
	var profile ProfileView
	decodeBody(t, rec, &profile)
	if len(profile.Transactions) != 2 || len(profile.Badges) != 1 || len(profile.Pending) != 0 {
		t.Fatalf("profile = %+v", profile)
	}

	rec = env.do(t, http.MethodGet, "/profile", "", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("profile page status = %d", rec.Code)
	}
}

func TestClapFailureIsBadGateway(t *testing.T) {
	t.Parallel()

	env := newTestEnvWithSponsor(t, failingSponsor{})
	token, _ := env.login(t)
	rec := env.do(t, http.MethodPost, "/api/concerts/2/claps", "", token)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", rec.Code)
	}
	var body httpx.ErrorBody
	decodeBody(t, rec, &body)
	if body.Error.Message != "Failed to send clap transaction. Please try again." {
		t.Fatalf("error = %+v", body.Error)
	}
}

func TestMCPMounted(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	server := httptest.NewServer(env.handler)
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client := mcp.NewClient(&mcp.Implementation{Name: "encore-test", Version: "v0.0.1"}, nil)
	session, err := client.Connect(ctx, &mcp.StreamableClientTransport{Endpoint: server.URL + "/mcp", MaxRetries: -1}, nil)
	if err != nil {
		t.Fatalf("connect mcp: %v", err)
	}
	defer session.Close()

	tools, err := session.ListTools(ctx, nil)
	if err != nil {
		t.Fatalf("list tools: %v", err)
	}
	names := make(map[string]bool, len(tools.Tools))
	for _, tool := range tools.Tools {
		names[tool.Name] = true
	}
	for _, want := range []string{"list_concerts", "concert_countdown", "companion_reply"} {
		if !names[want] {
			t.Fatalf("tools = %v, missing %s", names, want)
		}
	}

	// Pages still fall back to the catalog next to the MCP routes.
	rec := env.do(t, http.MethodGet, "/mcp/unknown", "", "")
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("fallback status = %d, want %d", rec.Code, http.StatusSeeOther)
	}
}
