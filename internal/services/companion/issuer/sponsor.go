package issuer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/louisbranch/encore/internal/platform/random"
	"github.com/louisbranch/encore/internal/platform/timeouts"
)

// RandomSponsor stands in for a chain: every submission succeeds with a
// random 32-byte hash.
type RandomSponsor struct{}

// Submit implements Sponsor.
func (RandomSponsor) Submit(ctx context.Context, _ Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return random.Hex(32)
}

// DefaultPollInterval spaces status checks against the paymaster.
const DefaultPollInterval = 500 * time.Millisecond

// PaymasterSponsor submits sponsored operations to an HTTP paymaster and
// polls until each settles.
type PaymasterSponsor struct {
	client       *resty.Client
	pollInterval time.Duration
}

// PaymasterConfig configures a PaymasterSponsor.
type PaymasterConfig struct {
	BaseURL      string
	BundlerURL   string
	PollInterval time.Duration
	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client
}

// NewPaymasterSponsor builds a client for cfg.BaseURL.
func NewPaymasterSponsor(cfg PaymasterConfig) (*PaymasterSponsor, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("paymaster url is required")
	}
	var client *resty.Client
	if cfg.HTTPClient != nil {
		client = resty.NewWithClient(cfg.HTTPClient)
	} else {
		client = resty.New()
	}
	client.SetBaseURL(baseURL)
	client.SetTimeout(timeouts.Sponsor)
	client.SetHeader("Accept", "application/json")
	if bundler := strings.TrimSpace(cfg.BundlerURL); bundler != "" {
		client.SetHeader("X-Bundler-URL", bundler)
	}
	poll := cfg.PollInterval
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	return &PaymasterSponsor{client: client, pollInterval: poll}, nil
}

type operationRequest struct {
	Intent  Intent            `json:"intent"`
	Owner   string            `json:"owner"`
	Subject string            `json:"subject,omitempty"`
	Payload map[string]string `json:"payload,omitempty"`
}

type operationResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Hash   string `json:"hash"`
	Error  string `json:"error"`
}

// Submit posts the operation and waits for a terminal status.
func (p *PaymasterSponsor) Submit(ctx context.Context, req Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Sponsor)
	defer cancel()

	var op operationResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(operationRequest{Intent: req.Intent, Owner: req.Owner, Subject: req.Subject, Payload: req.Payload}).
		SetResult(&op).
		Post("/operations")
	if err != nil {
		return "", fmt.Errorf("submit operation: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("submit operation: paymaster returned %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
	}

	for {
		switch op.Status {
		case "completed", "success":
			if op.Hash == "" {
				return "", fmt.Errorf("operation %s completed without hash", op.ID)
			}
			return op.Hash, nil
		case "failed":
			return "", fmt.Errorf("operation %s failed: %s", op.ID, op.Error)
		case "pending", "":
		default:
			return "", fmt.Errorf("operation %s: unexpected status %q", op.ID, op.Status)
		}
		if op.ID == "" {
			return "", errors.New("paymaster returned a pending operation without id")
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(p.pollInterval):
		}

		id := op.ID
		op = operationResponse{}
		resp, err = p.client.R().
			SetContext(ctx).
			SetPathParam("id", id).
			SetResult(&op).
			Get("/operations/{id}")
		if err != nil {
			return "", fmt.Errorf("poll operation %s: %w", id, err)
		}
		if resp.IsError() {
			return "", fmt.Errorf("poll operation %s: paymaster returned %d", id, resp.StatusCode())
		}
		if op.ID == "" {
			op.ID = id
		}
	}
}
