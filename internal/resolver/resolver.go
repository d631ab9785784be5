// Package resolver turns keypad keys into playable media paths. Media entries
// are served from the local cache when present and queued for background
// download when not; non-media kinds are handed to external handlers.
package resolver

import (
	"fmt"
	"log"

	"github.com/dialtone/dial-tone/internal/cache"
	"github.com/dialtone/dial-tone/internal/metrics"
	"github.com/dialtone/dial-tone/internal/queue"
	"github.com/dialtone/dial-tone/internal/registry"
	"github.com/dialtone/dial-tone/internal/safeurl"
)

// Outcome classifies what resolving a key produced.
type Outcome int

const (
	// OutcomeLocalPath: a playable local file path is available now.
	OutcomeLocalPath Outcome = iota
	// OutcomePending: the media is being fetched; retry the key later.
	OutcomePending
	// OutcomeNotApplicable: the key maps to a non-media kind handled (or not)
	// by an external collaborator.
	OutcomeNotApplicable
	// OutcomeNotFound: the key is unknown or the entry has no usable locator.
	OutcomeNotFound
)

func (o Outcome) String() string {
	switch o {
	case OutcomeLocalPath:
		return "local"
	case OutcomePending:
		return "pending"
	case OutcomeNotApplicable:
		return "not_applicable"
	case OutcomeNotFound:
		return "not_found"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Result is the outcome of one Resolve call. Path is set for OutcomeLocalPath.
type Result struct {
	Outcome Outcome
	Path    string
	Entry   registry.Entry
}

// Handler acts on a non-media entry (service hook, shortcut, link hand-off).
// Registered per kind by the embedding application; resolution itself only
// reports NotApplicable.
type Handler func(registry.Entry) error

// Resolver looks up keys in the store and dispatches by entry kind.
type Resolver struct {
	store    *registry.Store
	queue    *queue.Queue
	cacheDir string
	handlers map[registry.Kind]Handler
}

// New returns a resolver over store and q, caching media under cacheDir.
func New(store *registry.Store, q *queue.Queue, cacheDir string) *Resolver {
	return &Resolver{
		store:    store,
		queue:    q,
		cacheDir: cacheDir,
		handlers: make(map[registry.Kind]Handler),
	}
}

// Register installs the external handler for a non-media kind.
func (r *Resolver) Register(kind registry.Kind, h Handler) {
	r.handlers[kind] = h
}

// Resolve looks up key and decides between serving a local path, queueing a
// download, delegating to a kind handler, or reporting the key unknown.
func (r *Resolver) Resolve(key string) Result {
	e, ok := r.store.Lookup(key)
	if !ok {
		metrics.ResolveTotal.WithLabelValues(OutcomeNotFound.String()).Inc()
		return Result{Outcome: OutcomeNotFound}
	}

	if e.Kind != registry.KindMedia {
		if h, ok := r.handlers[e.Kind]; ok {
			if err := h(e); err != nil {
				log.Printf("resolver: %s handler for key %q: %v", e.Kind, key, err)
			}
		}
		metrics.ResolveTotal.WithLabelValues(OutcomeNotApplicable.String()).Inc()
		return Result{Outcome: OutcomeNotApplicable, Entry: e}
	}

	if e.Locator == "" {
		log.Printf("resolver: key %q has no locator", key)
		metrics.ResolveTotal.WithLabelValues(OutcomeNotFound.String()).Inc()
		return Result{Outcome: OutcomeNotFound, Entry: e}
	}

	if !safeurl.IsHTTPOrHTTPS(e.Locator) {
		// Already a local reference: serve it directly.
		metrics.ResolveTotal.WithLabelValues(OutcomeLocalPath.String()).Inc()
		return Result{Outcome: OutcomeLocalPath, Path: e.Locator, Entry: e}
	}

	if path, cached := cache.CachedPath(r.cacheDir, e.Locator); cached {
		metrics.ResolveTotal.WithLabelValues(OutcomeLocalPath.String()).Inc()
		return Result{Outcome: OutcomeLocalPath, Path: path, Entry: e}
	}

	// Not cached yet: queue it and let the caller retry once downloaded.
	// A full queue is logged and absorbed; the enqueue is retried naturally
	// the next time the key is resolved.
	if err := r.queue.Enqueue(e.Locator, e.Description); err != nil {
		log.Printf("resolver: %v", err)
	}
	metrics.ResolveTotal.WithLabelValues(OutcomePending.String()).Inc()
	return Result{Outcome: OutcomePending, Entry: e}
}
