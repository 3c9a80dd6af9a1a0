package issuer

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/louisbranch/encore/internal/platform/errors"
	"github.com/louisbranch/encore/internal/platform/i18n"
	"github.com/louisbranch/encore/internal/platform/id"
	"github.com/louisbranch/encore/internal/platform/otel"
)

// ErrInFlight matches a submission rejected because the same intent is
// already pending for the owner and subject.
var ErrInFlight = &apperrors.Error{Kind: apperrors.KindConflict}

// Sponsor executes a transaction on the owner's behalf and returns its hash.
type Sponsor interface {
	Submit(ctx context.Context, req Request) (string, error)
}

// Logger receives submission failures. *log.Logger satisfies it.
type Logger interface {
	Printf(format string, args ...any)
}

// Issuer submits transactions through a Sponsor.
type Issuer struct {
	sponsor Sponsor
	logger  Logger
	now     func() time.Time
	tracer  trace.Tracer

	mu       sync.Mutex
	inFlight map[string]string
	pending  map[string]Record
}

// Option customizes an Issuer.
type Option func(*Issuer)

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) {
		if now != nil {
			i.now = now
		}
	}
}

// WithLogger sets the failure logger.
func WithLogger(logger Logger) Option {
	return func(i *Issuer) { i.logger = logger }
}

// New builds an Issuer over sponsor.
func New(sponsor Sponsor, opts ...Option) *Issuer {
	i := &Issuer{
		sponsor:  sponsor,
		now:      time.Now,
		tracer:   otel.Tracer("encore/issuer"),
		inFlight: make(map[string]string),
		pending:  make(map[string]Record),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Issue submits req and blocks until the sponsor settles it. The returned
// record is always terminal when the sponsor was reached; on failure it is
// returned alongside a transaction error.
func (i *Issuer) Issue(ctx context.Context, req Request) (Record, error) {
	if i == nil || i.sponsor == nil {
		return Record{}, errors.New("transaction sponsor is not configured")
	}
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	if !req.Intent.Valid() {
		return Record{}, apperrors.Field("intent", fmt.Sprintf("unknown transaction intent %q", req.Intent))
	}
	if strings.TrimSpace(req.Owner) == "" {
		return Record{}, apperrors.E(apperrors.KindUnauthorized, i18n.Sprintf(i18n.KeyLoginNeeded))
	}

	record, err := i.begin(req)
	if err != nil {
		return Record{}, err
	}

	ctx, span := i.tracer.Start(ctx, "issuer.Issue", trace.WithAttributes(
		attribute.String("encore.intent", string(req.Intent)),
		attribute.String("encore.subject", req.Subject),
	))
	defer span.End()

	hash, submitErr := i.sponsor.Submit(ctx, req)
	if submitErr == nil && hash == "" {
		submitErr = errors.New("sponsor returned no transaction hash")
	}
	record = i.finish(req, record, hash, submitErr)

	if submitErr != nil {
		span.RecordError(submitErr)
		span.SetStatus(codes.Error, "sponsor submit")
		if i.logger != nil {
			i.logger.Printf("transaction failed: intent=%s subject=%s err=%v", req.Intent, req.Subject, submitErr)
		}
		return record, apperrors.Wrap(apperrors.KindTransaction,
			i18n.Sprintf(i18n.KeyTransactionFailed, req.Intent), submitErr)
	}
	span.SetAttributes(attribute.String("encore.tx_hash", hash))
	return record, nil
}

// Mint issues a badge mint for a concert. Badges themselves are recorded by
// the caller.
func (i *Issuer) Mint(ctx context.Context, owner, concertID, artist string) (Record, error) {
	return i.Issue(ctx, Request{
		Intent:  IntentMint,
		Owner:   owner,
		Subject: concertID,
		Payload: map[string]string{PayloadConcertID: concertID, PayloadArtist: artist},
	})
}

// Pending returns the transactions awaiting the sponsor, oldest first.
func (i *Issuer) Pending() []Record {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := make([]Record, 0, len(i.pending))
	for _, record := range i.pending {
		out = append(out, record)
	}
	slices.SortFunc(out, func(a, b Record) int {
		if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

// InFlight reports whether req's intent is pending for its owner and subject.
func (i *Issuer) InFlight(req Request) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	_, busy := i.inFlight[req.key()]
	return busy
}

func (i *Issuer) begin(req Request) (Record, error) {
	recordID, err := id.Prefixed("tx")
	if err != nil {
		return Record{}, fmt.Errorf("transaction id: %w", err)
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	if _, busy := i.inFlight[req.key()]; busy {
		return Record{}, &apperrors.Error{
			Kind:    apperrors.KindConflict,
			Message: i18n.Sprintf(i18n.KeyTransactionBusy, req.Intent),
		}
	}
	record := Record{
		ID:        recordID,
		Intent:    req.Intent,
		Timestamp: i.now().UTC(),
		Status:    StatusPending,
		Payload:   clonePayload(req.Payload),
	}
	i.inFlight[req.key()] = record.ID
	i.pending[record.ID] = record
	return record, nil
}

func (i *Issuer) finish(req Request, record Record, hash string, err error) Record {
	i.mu.Lock()
	defer i.mu.Unlock()
	delete(i.inFlight, req.key())
	delete(i.pending, record.ID)
	if err != nil {
		record.Status = StatusFailed
		return record
	}
	record.Status = StatusCompleted
	record.Hash = hash
	return record
}
