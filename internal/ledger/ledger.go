// Package ledger keeps the insights memo: an append-only, categorised list of
// analytical notes that is persisted as one JSON document after every append.
//
// One Ledger is built per process, loaded once at startup and handed to every
// surface that records or reads insights. A single mutex is held across the
// whole read-modify-write cycle, including the store write, so appends within
// one process are linearised and ids never collide. Nothing arbitrates between
// several processes sharing a store: the last writer wins.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/starford/fabric-mcp/internal/apperr"
	"github.com/starford/fabric-mcp/internal/checksum"
	"github.com/starford/fabric-mcp/internal/models"
	"github.com/starford/fabric-mcp/internal/storage"
)

// DefaultKey is the logical document key of the memo.
const DefaultKey = "insights/company_insights.json"

// DefaultPersistTimeout bounds a single store write.
const DefaultPersistTimeout = 10 * time.Second

// AppendResult is the outcome of Append as reported to callers.
type AppendResult struct {
	Success   bool   `json:"success"`
	InsightID int    `json:"insight_id,omitempty"`
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Observer is notified after an insight has been persisted.
type Observer func(models.Insight)

// FailureObserver is notified when an appended insight could not be
// persisted and so lives only in memory.
type FailureObserver func(models.Insight, error)

// Ledger is the in-memory memo plus its persistence protocol.
type Ledger struct {
	store   storage.Provider
	key     string
	timeout time.Duration
	logger  *slog.Logger
	now     func() time.Time

	mu          sync.Mutex
	insights    []models.Insight
	lastUpdated *time.Time
	version     string
	observers   []Observer
	failures    []FailureObserver
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithKey sets the document key used in the store.
func WithKey(key string) Option {
	return func(l *Ledger) {
		if key != "" {
			l.key = key
		}
	}
}

// WithPersistTimeout bounds each store write.
func WithPersistTimeout(d time.Duration) Option {
	return func(l *Ledger) {
		if d > 0 {
			l.timeout = d
		}
	}
}

// WithLogger sets the logger used for load and persistence diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithClock replaces the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

// WithObserver registers fn to run after every successful append.
func WithObserver(fn Observer) Option {
	return func(l *Ledger) {
		if fn != nil {
			l.observers = append(l.observers, fn)
		}
	}
}

// WithFailureObserver registers fn to run after every failed persist.
func WithFailureObserver(fn FailureObserver) Option {
	return func(l *Ledger) {
		if fn != nil {
			l.failures = append(l.failures, fn)
		}
	}
}

// New creates an empty ledger on top of store. Call Load before serving.
func New(store storage.Provider, opts ...Option) *Ledger {
	l := &Ledger{
		store:   store,
		key:     DefaultKey,
		timeout: DefaultPersistTimeout,
		logger:  slog.Default(),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load replaces the in-memory state with the persisted document.
// Any failure leaves the ledger empty; the error is logged, never returned.
// Store calls are bounded by the persist timeout.
func (l *Ledger) Load(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	l.insights = nil
	l.lastUpdated = nil
	l.version = ""

	ok, err := l.store.Exists(ctx, l.key)
	if err != nil {
		l.logger.Warn("ledger: existence check failed, starting empty",
			slog.String("key", l.key), slog.String("error", err.Error()))
		return
	}
	if !ok {
		l.logger.Info("ledger: no stored memo, starting empty", slog.String("key", l.key))
		return
	}

	data, err := l.store.Read(ctx, l.key)
	if err != nil {
		l.logger.Warn("ledger: read failed, starting empty",
			slog.String("key", l.key), slog.String("error", err.Error()))
		return
	}

	doc, err := Decode(data)
	if err != nil {
		l.logger.Warn("ledger: stored memo is malformed, starting empty",
			slog.String("key", l.key), slog.String("error", err.Error()))
		return
	}

	l.insights = doc.Insights
	l.lastUpdated = doc.LastUpdated
	l.version = checksum.Sum(data)
	l.logger.Info("ledger: loaded",
		slog.String("key", l.key),
		slog.Int("insights", len(l.insights)),
		slog.String("version", checksum.Short(data)))
}

// Append records a new insight and persists the whole memo before
// acknowledging it. An empty category becomes models.DefaultCategory and a
// nil tags slice becomes empty.
//
// When the store write fails the insight stays in memory (and is written
// with the next successful append) but the caller gets a failure result.
// Ids therefore keep counting from the highest assigned id.
func (l *Ledger) Append(ctx context.Context, title, content, category string, tags []string) AppendResult {
	if category == "" {
		category = models.DefaultCategory
	}

	insight, err := l.record(ctx, title, content, category, tags)
	if err != nil {
		l.logger.Error("ledger: persist failed",
			slog.Int("insight_id", insight.ID),
			slog.String("key", l.key),
			slog.String("error", err.Error()))
		for _, fn := range l.failures {
			fn(insight, err)
		}
		return AppendResult{Success: false, Error: err.Error()}
	}

	l.logger.Info("ledger: insight appended",
		slog.Int("insight_id", insight.ID),
		slog.String("category", insight.Category))

	for _, fn := range l.observers {
		fn(insight)
	}

	return AppendResult{
		Success:   true,
		InsightID: insight.ID,
		Message:   "Insight added successfully",
	}
}

// record appends under the lock and persists. The returned insight does not
// alias ledger state.
func (l *Ledger) record(ctx context.Context, title, content, category string, tags []string) (models.Insight, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	insight := models.Insight{
		ID:        l.nextIDLocked(),
		Title:     title,
		Content:   content,
		Category:  category,
		Tags:      append([]string{}, tags...),
		CreatedAt: now,
		Author:    models.Author,
	}
	l.insights = append(l.insights, insight)
	err := l.persistLocked(ctx, now)

	insight.Tags = append([]string{}, insight.Tags...)
	return insight, err
}

// nextIDLocked returns one past the highest assigned id. For a ledger built
// only through Append this equals len+1.
func (l *Ledger) nextIDLocked() int {
	highest := 0
	for _, in := range l.insights {
		if in.ID > highest {
			highest = in.ID
		}
	}
	return highest + 1
}

// persistLocked writes the full document with lastUpdated set to stamp.
// l.mu must be held. lastUpdated and version change only on success.
func (l *Ledger) persistLocked(ctx context.Context, stamp time.Time) error {
	data, err := Encode(models.Document{Insights: l.insights, LastUpdated: &stamp})
	if err != nil {
		return fmt.Errorf("serialize memo: %w", err)
	}

	wctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	if err := l.store.Write(wctx, l.key, data); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(wctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("save memo: %w after %s", apperr.ErrTimeout, l.timeout)
		}
		return fmt.Errorf("save memo: %w", err)
	}

	l.lastUpdated = &stamp
	l.version = checksum.Sum(data)
	return nil
}

// Count returns the number of insights.
func (l *Ledger) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.insights)
}

// Categories returns the distinct categories present, sorted.
func (l *Ledger) Categories() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	seen := make(map[string]struct{})
	out := []string{}
	for _, in := range l.insights {
		if _, ok := seen[in.Category]; ok {
			continue
		}
		seen[in.Category] = struct{}{}
		out = append(out, in.Category)
	}
	sort.Strings(out)
	return out
}

// LastUpdated returns the time of the last successful persist, or nil.
func (l *Ledger) LastUpdated() *time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.lastUpdated == nil {
		return nil
	}
	t := *l.lastUpdated
	return &t
}

// Version returns the checksum of the last document read or written.
func (l *Ledger) Version() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.version
}

// Snapshot returns a deep copy of the current state.
func (l *Ledger) Snapshot() models.Document {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshotLocked()
}

func (l *Ledger) snapshotLocked() models.Document {
	insights := make([]models.Insight, len(l.insights))
	for i, in := range l.insights {
		in.Tags = append([]string{}, in.Tags...)
		insights[i] = in
	}
	doc := models.Document{Insights: insights}
	if l.lastUpdated != nil {
		t := *l.lastUpdated
		doc.LastUpdated = &t
	}
	return doc
}

// Encode serialises doc in the persisted format.
func Encode(doc models.Document) ([]byte, error) {
	if doc.Insights == nil {
		doc.Insights = []models.Insight{}
	}
	return json.MarshalIndent(doc, "", "  ")
}

// Timestamp layouts accepted on load. Zone-less ISO 8601 (as written by
// Python's datetime.isoformat) is read as UTC. Fractional seconds are
// optional in both.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func parseTimestamp(v string) (time.Time, error) {
	var firstErr error
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, v)
		if err == nil {
			return t.UTC(), nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}

// storedInsight mirrors models.Insight with timestamps left as text.
type storedInsight struct {
	ID        int      `json:"id"`
	Title     string   `json:"title"`
	Content   string   `json:"content"`
	Category  string   `json:"category"`
	Tags      []string `json:"tags"`
	CreatedAt string   `json:"created_at"`
	Author    string   `json:"author"`
}

type storedDocument struct {
	Insights    []storedInsight `json:"insights"`
	LastUpdated *string         `json:"last_updated"`
}

// Decode parses a persisted document. Timestamps may be RFC 3339 or
// zone-less ISO 8601. Missing tags and categories are normalised the same
// way Append does.
func Decode(data []byte) (models.Document, error) {
	var raw storedDocument
	if err := json.Unmarshal(data, &raw); err != nil {
		return models.Document{}, fmt.Errorf("decode memo: %w", err)
	}

	doc := models.Document{Insights: make([]models.Insight, 0, len(raw.Insights))}
	for i, in := range raw.Insights {
		item := models.Insight{
			ID:       in.ID,
			Title:    in.Title,
			Content:  in.Content,
			Category: in.Category,
			Tags:     in.Tags,
			Author:   in.Author,
		}
		if in.CreatedAt != "" {
			t, err := parseTimestamp(in.CreatedAt)
			if err != nil {
				return models.Document{}, fmt.Errorf("decode memo: insights[%d].created_at: %w", i, err)
			}
			item.CreatedAt = t
		}
		if item.Category == "" {
			item.Category = models.DefaultCategory
		}
		if item.Tags == nil {
			item.Tags = []string{}
		}
		doc.Insights = append(doc.Insights, item)
	}

	if raw.LastUpdated != nil && *raw.LastUpdated != "" {
		t, err := parseTimestamp(*raw.LastUpdated)
		if err != nil {
			return models.Document{}, fmt.Errorf("decode memo: last_updated: %w", err)
		}
		doc.LastUpdated = &t
	}
	return doc, nil
}
