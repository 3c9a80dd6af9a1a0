package concert

import (
	"context"
	"strings"
	"time"
)

// Default simulated latencies.
const (
	DefaultListLatency   = 500 * time.Millisecond
	DefaultLookupLatency = 300 * time.Millisecond
)

// Config configures a Catalog.
type Config struct {
	// Records is the event table; DefaultRecords(Now()) when nil.
	Records []Record
	// ListLatency delays ListUpcoming and ListLive. Zero disables it.
	ListLatency time.Duration
	// LookupLatency delays Get. Zero disables it.
	LookupLatency time.Duration
	// Now is the clock; time.Now when nil.
	Now func() time.Time
}

// Catalog answers read-only queries over a fixed event table.
type Catalog struct {
	records       []Record
	byID          map[string]int
	listLatency   time.Duration
	lookupLatency time.Duration
	now           func() time.Time
}

// NewCatalog builds a catalog from cfg.
func NewCatalog(cfg Config) *Catalog {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	records := cfg.Records
	if records == nil {
		records = DefaultRecords(now())
	}
	records = append([]Record(nil), records...)
	byID := make(map[string]int, len(records))
	for i, record := range records {
		if _, dup := byID[record.ID]; !dup {
			byID[record.ID] = i
		}
	}
	return &Catalog{
		records:       records,
		byID:          byID,
		listLatency:   max(cfg.ListLatency, 0),
		lookupLatency: max(cfg.LookupLatency, 0),
		now:           now,
	}
}

// Now returns the catalog clock reading.
func (c *Catalog) Now() time.Time {
	return c.now()
}

// ListUpcoming returns records that start in the future or are live, in
// table order, narrowed by an optional filter expression (see ParseFilter).
func (c *Catalog) ListUpcoming(ctx context.Context, filter string) ([]Record, error) {
	match, err := ParseFilter(filter)
	if err != nil {
		return nil, err
	}
	if err := wait(ctx, c.listLatency); err != nil {
		return nil, err
	}
	now := c.now()
	out := make([]Record, 0, len(c.records))
	for _, record := range c.records {
		if !record.StartTime.After(now) && !record.IsLive {
			continue
		}
		ok, err := match(record, now)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, record)
		}
	}
	return out, nil
}

// ListLive returns live records in table order.
func (c *Catalog) ListLive(ctx context.Context) ([]Record, error) {
	if err := wait(ctx, c.listLatency); err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(c.records))
	for _, record := range c.records {
		if record.IsLive {
			out = append(out, record)
		}
	}
	return out, nil
}

// Get looks a record up by id. An unknown id reports false; the only error
// is context cancellation.
func (c *Catalog) Get(ctx context.Context, id string) (Record, bool, error) {
	if err := wait(ctx, c.lookupLatency); err != nil {
		return Record{}, false, err
	}
	idx, ok := c.byID[strings.TrimSpace(id)]
	if !ok {
		return Record{}, false, nil
	}
	return c.records[idx], true, nil
}

func wait(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
