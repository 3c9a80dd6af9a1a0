package encorectl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	apperrors "github.com/louisbranch/encore/internal/platform/errors"
	"github.com/louisbranch/encore/internal/platform/httpx"
)

// Client calls the encore JSON API.
type Client struct {
	http *resty.Client
}

// NewClient builds a client for baseURL. A non-empty token is sent as a
// bearer credential.
func NewClient(baseURL, token string, timeout time.Duration, httpClient *http.Client) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("server url is required")
	}
	var client *resty.Client
	if httpClient != nil {
		client = resty.NewWithClient(httpClient)
	} else {
		client = resty.New()
	}
	client.SetBaseURL(baseURL)
	if timeout > 0 {
		client.SetTimeout(timeout)
	}
	client.SetHeader("Accept", "application/json")
	if token = strings.TrimSpace(token); token != "" {
		client.SetAuthToken(token)
	}
	return &Client{http: client}, nil
}

// LoginResult is the session returned by Login.
type LoginResult struct {
	User struct {
		Address      string `json:"address"`
		ShortAddress string `json:"shortAddress"`
	} `json:"user"`
	Token string `json:"token"`
}

// Concerts lists upcoming concerts, or live ones when live is set.
func (c *Client) Concerts(ctx context.Context, filter string, live bool) (json.RawMessage, error) {
	req := c.http.R().SetContext(ctx)
	path := "/api/concerts"
	if live {
		path = "/api/concerts/live"
	} else if filter = strings.TrimSpace(filter); filter != "" {
		req.SetQueryParam("filter", filter)
	}
	return c.do(req, http.MethodGet, path)
}

// Login signs in with email.
func (c *Client) Login(ctx context.Context, email string) (LoginResult, error) {
	body, err := c.do(c.http.R().SetContext(ctx).SetBody(map[string]string{"email": email}), http.MethodPost, "/api/session")
	if err != nil {
		return LoginResult{}, err
	}
	var result LoginResult
	if err := json.Unmarshal(body, &result); err != nil {
		return LoginResult{}, fmt.Errorf("decode login: %w", err)
	}
	return result, nil
}

// Logout ends the session.
func (c *Client) Logout(ctx context.Context) error {
	_, err := c.do(c.http.R().SetContext(ctx), http.MethodDelete, "/api/session")
	return err
}

// Profile returns the signed-in profile.
func (c *Client) Profile(ctx context.Context) (json.RawMessage, error) {
	return c.do(c.http.R().SetContext(ctx), http.MethodGet, "/api/profile")
}

// Chat sends text to a concert's companion.
func (c *Client) Chat(ctx context.Context, concertID, text string, publish bool) (json.RawMessage, error) {
	req := c.http.R().
		SetContext(ctx).
		SetPathParam("id", concertID).
		SetBody(map[string]any{"text": text, "publish": publish})
	return c.do(req, http.MethodPost, "/api/concerts/{id}/chat")
}

// Clap sends a clap for a concert.
func (c *Client) Clap(ctx context.Context, concertID string) (json.RawMessage, error) {
	return c.do(c.http.R().SetContext(ctx).SetPathParam("id", concertID), http.MethodPost, "/api/concerts/{id}/claps")
}

// Mint mints the attendance badge for a concert.
func (c *Client) Mint(ctx context.Context, concertID string) (json.RawMessage, error) {
	return c.do(c.http.R().SetContext(ctx).SetPathParam("id", concertID), http.MethodPost, "/api/concerts/{id}/badges")
}

func (c *Client) do(req *resty.Request, method, path string) (json.RawMessage, error) {
	var failure httpx.ErrorBody
	resp, err := req.SetError(&failure).Execute(method, path)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.IsError() {
		kind := apperrors.Kind(failure.Error.Kind)
		if kind == "" {
			kind = apperrors.KindUnknown
		}
		message := failure.Error.Message
		if message == "" {
			message = strings.TrimSpace(resp.String())
		}
		if message == "" {
			message = resp.Status()
		}
		return nil, &apperrors.Error{Kind: kind, Message: message, Field: failure.Error.Field}
	}
	return json.RawMessage(resp.Body()), nil
}
