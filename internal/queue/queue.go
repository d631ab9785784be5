// Package queue is the background media download queue: a bounded FIFO of
// pending fetches, deduplicated by locator, advanced one item per Step call.
// Items move Pending → InProgress → Done and are never revisited; a failed
// transfer consumes its item (fail-and-skip, no retry).
package queue

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/dialtone/dial-tone/internal/cache"
	"github.com/dialtone/dial-tone/internal/download"
	"github.com/dialtone/dial-tone/internal/fetch"
	"github.com/dialtone/dial-tone/internal/httpclient"
	"github.com/dialtone/dial-tone/internal/metrics"
	"github.com/dialtone/dial-tone/internal/safeurl"
)

const (
	// DefaultCapacity bounds the number of items the queue will hold.
	DefaultCapacity = 20
	// DefaultMinInterval is the shortest time between two transfer attempts.
	// Rate limiting is the queue's job, not the driver's.
	DefaultMinInterval = time.Second
)

// ErrFull is returned by Enqueue when the queue is at capacity.
var ErrFull = errors.New("download queue full")

// Status is the lifecycle state of a queue item. Strictly forward.
type Status int

const (
	StatusPending Status = iota
	StatusInProgress
	StatusDone
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusInProgress:
		return "in-progress"
	case StatusDone:
		return "done"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Item is one media fetch request. Done items stay inspectable via Items but
// the processing index never returns to them.
type Item struct {
	ID          string
	Locator     string
	LocalPath   string
	Description string
	Status      Status
}

// StepKind classifies the outcome of one Step call.
type StepKind int

const (
	// StepIdle: nothing left to process.
	StepIdle StepKind = iota
	// StepThrottled: an item is waiting but the minimum interval since the
	// last attempt has not elapsed yet.
	StepThrottled
	// StepCompleted: one item was downloaded; Path holds the local file.
	StepCompleted
	// StepFailed: one item was attempted and consumed without a file; Err
	// holds the reason.
	StepFailed
)

// StepResult reports what a single Step call did.
type StepResult struct {
	Kind StepKind
	Path string // set for StepCompleted
	Err  error  // set for StepFailed
}

// Config for New. Zero values get defaults.
type Config struct {
	Capacity    int
	CacheDir    string
	MinInterval time.Duration
	Client      *http.Client
	UserAgent   string
	// OnDone is invoked after each attempted item with the bytes written and
	// the transfer error (nil on success). Used for the download ledger.
	OnDone func(item Item, bytes int64, err error)
}

// Queue processes media downloads strictly in enqueue order. All methods run
// on the single driver goroutine; Step blocks for the duration of one
// transfer but never longer.
type Queue struct {
	capacity  int
	cacheDir  string
	client    *http.Client
	userAgent string
	limiter   *rate.Limiter
	onDone    func(Item, int64, error)

	items []Item
	next  int // index of next item to process; only moves forward

	// transfer is swappable in tests.
	transfer func(client *http.Client, url, destPath, userAgent string) (int64, error)
}

// New returns an empty queue.
func New(cfg Config) *Queue {
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = DefaultMinInterval
	}
	if cfg.Client == nil {
		cfg.Client = httpclient.Default()
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = fetch.DefaultUserAgent
	}
	return &Queue{
		capacity:  cfg.Capacity,
		cacheDir:  cfg.CacheDir,
		client:    cfg.Client,
		userAgent: cfg.UserAgent,
		limiter:   rate.NewLimiter(rate.Every(cfg.MinInterval), 1),
		onDone:    cfg.OnDone,
		transfer:  download.Fetch,
	}
}

// Enqueue adds a fetch request for locator. A locator already present on a
// non-Done item is a no-op success; a full queue rejects the request without
// mutating anything.
func (q *Queue) Enqueue(locator, description string) error {
	for _, it := range q.items {
		if it.Locator == locator && it.Status != StatusDone {
			log.Printf("queue: %s already queued", safeurl.Redact(locator))
			return nil
		}
	}
	if len(q.items) >= q.capacity {
		return fmt.Errorf("queue: enqueue %s: %w", safeurl.Redact(locator), ErrFull)
	}
	if description == "" {
		description = "Unknown"
	}
	item := Item{
		ID:          uuid.NewString(),
		Locator:     locator,
		LocalPath:   cache.DestPath(q.cacheDir, locator),
		Description: description,
		Status:      StatusPending,
	}
	q.items = append(q.items, item)
	metrics.QueueDepth.Set(float64(q.Remaining()))
	log.Printf("queue: added %s -> %s (%d waiting)", item.Description, item.LocalPath, q.Remaining())
	return nil
}

// Step advances the queue by at most one item. The call blocks for the
// duration of that item's transfer and then returns; the internal rate
// limiter enforces the minimum interval between attempts regardless of how
// often the driver calls Step.
func (q *Queue) Step() StepResult {
	if q.next >= len(q.items) {
		return StepResult{Kind: StepIdle}
	}
	if !q.limiter.Allow() {
		return StepResult{Kind: StepThrottled}
	}

	item := &q.items[q.next]
	item.Status = StatusInProgress
	log.Printf("queue: downloading %s (%s)", item.Description, safeurl.Redact(item.Locator))

	n, err := q.transfer(q.client, item.Locator, item.LocalPath, q.userAgent)

	// Consumed either way: failures are skipped, never retried.
	item.Status = StatusDone
	q.next++
	metrics.QueueDepth.Set(float64(q.Remaining()))
	if q.onDone != nil {
		q.onDone(*item, n, err)
	}
	if err != nil {
		metrics.DownloadTotal.WithLabelValues("failed").Inc()
		log.Printf("queue: download failed: %v", err)
		return StepResult{Kind: StepFailed, Err: err}
	}
	metrics.DownloadTotal.WithLabelValues("ok").Inc()
	metrics.DownloadBytes.Add(float64(n))
	log.Printf("queue: downloaded %d bytes to %s", n, item.LocalPath)
	return StepResult{Kind: StepCompleted, Path: item.LocalPath}
}

// Remaining returns the number of items not yet processed.
func (q *Queue) Remaining() int { return len(q.items) - q.next }

// Total returns the number of items ever enqueued since the last Clear.
func (q *Queue) Total() int { return len(q.items) }

// IsEmpty reports whether no items remain to process.
func (q *Queue) IsEmpty() bool { return q.next >= len(q.items) }

// Items returns a snapshot of all items, including completed ones.
func (q *Queue) Items() []Item {
	out := make([]Item, len(q.items))
	copy(out, q.items)
	return out
}

// Clear discards all items and bookkeeping. Already-downloaded files are left
// on disk; an in-flight transfer at the protocol layer is not aborted.
func (q *Queue) Clear() {
	q.items = nil
	q.next = 0
	metrics.QueueDepth.Set(0)
	log.Printf("queue: cleared")
}
