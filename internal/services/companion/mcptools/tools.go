// Package mcptools exposes the concert catalog and the companion over the
// Model Context Protocol.
package mcptools

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/louisbranch/encore/internal/services/companion/concert"
	"github.com/louisbranch/encore/internal/services/companion/responder"
)

const (
	serverName    = "encore"
	serverVersion = "v1"
)

// ConcertSummary is a catalog entry as tools report it.
type ConcertSummary struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Artist    string `json:"artist"`
	Status    string `json:"status"`
	StartsAt  string `json:"starts_at"`
	Date      string `json:"date"`
	Countdown string `json:"countdown"`
}

// ListConcertsInput filters list_concerts.
type ListConcertsInput struct {
	Filter   string `json:"filter,omitempty" jsonschema:"optional filter expression, e.g. artist = \"BTS\" or status = \"live\""`
	LiveOnly bool   `json:"live_only,omitempty" jsonschema:"only return concerts streaming now"`
}

// ListConcertsResult is the list_concerts output.
type ListConcertsResult struct {
	Concerts []ConcertSummary `json:"concerts"`
}

// CountdownInput selects a concert.
type CountdownInput struct {
	ConcertID string `json:"concert_id" jsonschema:"concert identifier"`
}

// CountdownResult is the concert_countdown output.
type CountdownResult struct {
	ConcertID string `json:"concert_id"`
	Countdown string `json:"countdown"`
	StartsAt  string `json:"starts_at"`
}

// CompanionReplyInput asks the companion something about a concert.
type CompanionReplyInput struct {
	ConcertID string `json:"concert_id" jsonschema:"concert identifier"`
	Text      string `json:"text" jsonschema:"fan message"`
}

// CompanionReplyResult is the companion_reply output.
type CompanionReplyResult struct {
	Artist string `json:"artist"`
	Reply  string `json:"reply"`
}

// NewServer registers the catalog and companion tools.
func NewServer(catalog *concert.Catalog, companion *responder.Responder) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: serverVersion}, nil)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_concerts",
		Description: "List upcoming and live concerts with countdowns",
	}, ListConcertsHandler(catalog))
	mcp.AddTool(server, &mcp.Tool{
		Name:        "concert_countdown",
		Description: "Report how long until a concert starts",
	}, CountdownHandler(catalog))
	mcp.AddTool(server, &mcp.Tool{
		Name:        "companion_reply",
		Description: "Ask the concert companion a question without joining the chat",
	}, CompanionReplyHandler(catalog, companion))
	return server
}

// Handler serves server over streamable HTTP.
func Handler(server *mcp.Server) http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return server }, nil)
}

func ListConcertsHandler(catalog *concert.Catalog) mcp.ToolHandlerFor[ListConcertsInput, ListConcertsResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ListConcertsInput) (*mcp.CallToolResult, ListConcertsResult, error) {
		var (
			records []concert.Record
			err     error
		)
		if input.LiveOnly {
			records, err = catalog.ListLive(ctx)
		} else {
			records, err = catalog.ListUpcoming(ctx, input.Filter)
		}
		if err != nil {
			return nil, ListConcertsResult{}, fmt.Errorf("list concerts: %w", err)
		}
		now := catalog.Now()
		result := ListConcertsResult{Concerts: make([]ConcertSummary, 0, len(records))}
		for _, record := range records {
			result.Concerts = append(result.Concerts, summarize(record, now))
		}
		return nil, result, nil
	}
}

func CountdownHandler(catalog *concert.Catalog) mcp.ToolHandlerFor[CountdownInput, CountdownResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input CountdownInput) (*mcp.CallToolResult, CountdownResult, error) {
		record, err := lookup(ctx, catalog, input.ConcertID)
		if err != nil {
			return nil, CountdownResult{}, err
		}
		return nil, CountdownResult{
			ConcertID: record.ID,
			Countdown: concert.Countdown(record.StartTime, catalog.Now()),
			StartsAt:  record.StartTime.UTC().Format(time.RFC3339),
		}, nil
	}
}

func CompanionReplyHandler(catalog *concert.Catalog, companion *responder.Responder) mcp.ToolHandlerFor[CompanionReplyInput, CompanionReplyResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input CompanionReplyInput) (*mcp.CallToolResult, CompanionReplyResult, error) {
		if strings.TrimSpace(input.Text) == "" {
			return nil, CompanionReplyResult{}, fmt.Errorf("text is required")
		}
		record, err := lookup(ctx, catalog, input.ConcertID)
		if err != nil {
			return nil, CompanionReplyResult{}, err
		}
		msg, err := companion.Respond(ctx, input.Text, record.Artist)
		if err != nil {
			return nil, CompanionReplyResult{}, fmt.Errorf("companion reply: %w", err)
		}
		return nil, CompanionReplyResult{Artist: record.Artist, Reply: msg.Content}, nil
	}
}

func lookup(ctx context.Context, catalog *concert.Catalog, concertID string) (concert.Record, error) {
	concertID = strings.TrimSpace(concertID)
	if concertID == "" {
		return concert.Record{}, fmt.Errorf("concert_id is required")
	}
	record, ok, err := catalog.Get(ctx, concertID)
	if err != nil {
		return concert.Record{}, fmt.Errorf("get concert: %w", err)
	}
	if !ok {
		return concert.Record{}, fmt.Errorf("concert %q not found", concertID)
	}
	return record, nil
}

func summarize(record concert.Record, now time.Time) ConcertSummary {
	return ConcertSummary{
		ID:        record.ID,
		Title:     record.Title,
		Artist:    record.Artist,
		Status:    record.Status(now),
		StartsAt:  record.StartTime.UTC().Format(time.RFC3339),
		Date:      concert.FormatDate(record.StartTime),
		Countdown: concert.Countdown(record.StartTime, now),
	}
}
