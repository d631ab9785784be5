// Command dial-tone resolves short keypad keys to playable media references,
// caching the key registry and the media files locally for offline use.
//
//	run      Load cache, refresh if stale, then serve status endpoints and the
//	         download driver loop. For systemd. Zero interaction after .env.
//	refresh  Fetch the remote registry (staleness-gated; -force overrides), save, exit
//	resolve  Resolve one key; -wait drains the download queue before exiting
//	list     Print the cached registry
//	queue    Print a running daemon's download queue (via its status endpoint)
//	history  Print recent rows from the download ledger
//	clear    Remove the cached registry document and sync stamp
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dialtone/dial-tone/internal/config"
	"github.com/dialtone/dial-tone/internal/fetch"
	"github.com/dialtone/dial-tone/internal/health"
	"github.com/dialtone/dial-tone/internal/history"
	"github.com/dialtone/dial-tone/internal/httpclient"
	"github.com/dialtone/dial-tone/internal/metrics"
	"github.com/dialtone/dial-tone/internal/queue"
	"github.com/dialtone/dial-tone/internal/registry"
	"github.com/dialtone/dial-tone/internal/resolver"
)

func main() {
	if err := config.LoadEnvFile(".env"); err != nil {
		log.Printf("warning: .env: %v", err)
	}
	cfg := config.Load()

	args := os.Args[1:]
	cmd := "run"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}

	var err error
	switch cmd {
	case "run":
		err = cmdRun(cfg)
	case "refresh":
		err = cmdRefresh(cfg, args)
	case "resolve":
		err = cmdResolve(cfg, args)
	case "list":
		err = cmdList(cfg)
	case "queue":
		err = cmdQueue(cfg)
	case "history":
		err = cmdHistory(cfg, args)
	case "clear":
		err = cmdClear(cfg)
	default:
		err = fmt.Errorf("unknown command %q (want run|refresh|resolve|list|queue|history|clear)", cmd)
	}
	if err != nil {
		log.Fatalf("%s: %v", cmd, err)
	}
}

// loadStore opens the cache store and loads any persisted registry. A cold or
// unreadable cache is absorbed: the daemon starts with an empty registry and
// refreshes when it can.
func loadStore(cfg *config.Config) *registry.Store {
	store := registry.NewStore(cfg.DataDir, cfg.MaxEntries)
	switch err := store.Load(); {
	case err == nil:
	case errors.Is(err, registry.ErrNotFound):
		log.Printf("registry: cold cache, will refresh when possible")
	default:
		log.Printf("registry: warning: %v (starting empty)", err)
	}
	metrics.RegistryEntries.Set(float64(store.Len()))
	return store
}

// refreshRegistry fetches the remote registry and atomically replaces the
// cached one. Skipped while the cache is fresh unless force is set. A failed
// fetch or parse leaves the existing registry untouched.
func refreshRegistry(ctx context.Context, cfg *config.Config, store *registry.Store, force bool) error {
	if !force && !store.Stale(registry.NowTick(), cfg.CacheMaxAge) {
		log.Printf("registry: cache is fresh, skipping refresh")
		metrics.RefreshTotal.WithLabelValues("skipped").Inc()
		return nil
	}
	if cfg.RegistryURL == "" {
		return fmt.Errorf("refresh: DIALTONE_REGISTRY_URL not set")
	}
	fc := &fetch.Client{
		HTTP:      httpclient.WithTimeout(cfg.FetchTimeout),
		UserAgent: cfg.UserAgent,
		MaxBytes:  cfg.MaxResponseBytes,
	}
	entries, err := fc.Fetch(ctx, cfg.RegistryURL)
	if err != nil {
		metrics.RefreshTotal.WithLabelValues("failed").Inc()
		return err
	}
	if err := store.Replace(entries, registry.NowTick()); err != nil {
		metrics.RefreshTotal.WithLabelValues("failed").Inc()
		return err
	}
	metrics.RefreshTotal.WithLabelValues("ok").Inc()
	metrics.RegistryEntries.Set(float64(store.Len()))
	log.Printf("registry: refreshed, %d entries", store.Len())
	return nil
}

func cmdRefresh(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("refresh", flag.ExitOnError)
	force := fs.Bool("force", false, "refresh even when the cache is fresh")
	fs.Parse(args)
	store := loadStore(cfg)
	return refreshRegistry(context.Background(), cfg, store, *force)
}

func cmdRun(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := loadStore(cfg)
	if cfg.RegistryURL != "" {
		hctx, cancel := context.WithTimeout(ctx, 20*time.Second)
		if err := health.CheckRegistry(hctx, cfg.RegistryURL); err != nil {
			log.Printf("health: %v (continuing with cached registry)", err)
		}
		cancel()
		if err := refreshRegistry(ctx, cfg, store, false); err != nil {
			log.Printf("registry: refresh failed: %v (keeping cached registry)", err)
		}
	} else {
		log.Printf("registry: no DIALTONE_REGISTRY_URL, serving cached registry only")
	}

	var ledger *history.Ledger
	if cfg.LedgerPath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LedgerPath), 0700); err != nil {
			log.Printf("history: warning: %v", err)
		} else if l, err := history.Open(cfg.LedgerPath); err != nil {
			log.Printf("history: warning: %v (ledger disabled)", err)
		} else {
			ledger = l
			defer ledger.Close()
		}
	}

	q := queue.New(queue.Config{
		Capacity:    cfg.QueueCapacity,
		CacheDir:    cfg.CacheDir,
		MinInterval: cfg.QueueInterval,
		UserAgent:   cfg.UserAgent,
		OnDone: func(item queue.Item, bytes int64, err error) {
			if ledger == nil {
				return
			}
			if rerr := ledger.Record(item.Locator, item.LocalPath, item.Description, bytes, err); rerr != nil {
				log.Printf("history: %v", rerr)
			}
		},
	})
	res := resolver.New(store, q, cfg.CacheDir)

	// The core runs single-threaded: one mutex serializes the driver loop and
	// the status handlers so no two operations on the registry or queue ever
	// overlap in time.
	var mu sync.Mutex

	srv := &http.Server{Addr: cfg.BindAddr, Handler: statusMux(&mu, store, q, res)}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("serving on http://%s", cfg.BindAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	g.Go(func() error {
		return driverLoop(ctx, cfg, store, q, &mu)
	})
	return g.Wait()
}

// driverLoop is the periodic driver: one queue step per tick plus a
// staleness-gated registry refresh. The queue rate-limits itself, so the tick
// only bounds how promptly new work is noticed.
func driverLoop(ctx context.Context, cfg *config.Config, store *registry.Store, q *queue.Queue, mu *sync.Mutex) error {
	ticker := time.NewTicker(cfg.DriverTick)
	defer ticker.Stop()

	// Back off failed refresh attempts so a dead registry host is not hit on
	// every tick.
	var lastAttempt time.Time
	const retryAfter = time.Minute

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		mu.Lock()
		q.Step()
		if cfg.RegistryURL != "" &&
			store.Stale(registry.NowTick(), cfg.CacheMaxAge) &&
			time.Since(lastAttempt) > retryAfter {
			lastAttempt = time.Now()
			if err := refreshRegistry(ctx, cfg, store, false); err != nil {
				log.Printf("registry: refresh failed: %v (keeping cached registry)", err)
			}
		}
		mu.Unlock()
	}
}

func statusMux(mu *sync.Mutex, store *registry.Store, q *queue.Queue, res *resolver.Resolver) http.Handler {
	mux := http.NewServeMux()
	writeJSON := func(w http.ResponseWriter, v any) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(v)
	}

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		writeJSON(w, map[string]any{
			"ok":              true,
			"entries":         store.Len(),
			"queue_remaining": q.Remaining(),
			"last_sync":       store.LastSync(),
		})
	})

	mux.HandleFunc("/resolve", func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Query().Get("key")
		if key == "" {
			http.Error(w, "missing key parameter", http.StatusBadRequest)
			return
		}
		mu.Lock()
		result := res.Resolve(key)
		mu.Unlock()
		out := map[string]any{"key": key, "outcome": result.Outcome.String()}
		if result.Path != "" {
			out["path"] = result.Path
		}
		if result.Outcome != resolver.OutcomeNotFound {
			out["description"] = result.Entry.Description
			out["kind"] = result.Entry.Kind.String()
		}
		writeJSON(w, out)
	})

	mux.HandleFunc("/keys", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		entries := store.List()
		mu.Unlock()
		out := make([]map[string]string, 0, len(entries))
		for _, e := range entries {
			out = append(out, map[string]string{
				"key":         e.Key,
				"description": e.Description,
				"kind":        e.Kind.String(),
				"locator":     e.Locator,
			})
		}
		writeJSON(w, out)
	})

	mux.HandleFunc("/queue", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		items := q.Items()
		mu.Unlock()
		out := make([]map[string]string, 0, len(items))
		for _, it := range items {
			out = append(out, map[string]string{
				"id":          it.ID,
				"locator":     it.Locator,
				"local_path":  it.LocalPath,
				"description": it.Description,
				"status":      it.Status.String(),
			})
		}
		writeJSON(w, out)
	})

	mux.Handle("/metrics", metrics.Handler())
	return mux
}

func cmdResolve(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("resolve", flag.ExitOnError)
	wait := fs.Bool("wait", false, "download queued media before exiting")
	fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: dial-tone resolve [-wait] <key>")
	}
	key := fs.Arg(0)

	store := loadStore(cfg)
	if store.Len() == 0 && cfg.RegistryURL != "" {
		if err := refreshRegistry(context.Background(), cfg, store, false); err != nil {
			log.Printf("registry: refresh failed: %v", err)
		}
	}
	q := queue.New(queue.Config{
		Capacity:    cfg.QueueCapacity,
		CacheDir:    cfg.CacheDir,
		MinInterval: cfg.QueueInterval,
		UserAgent:   cfg.UserAgent,
	})
	r := resolver.New(store, q, cfg.CacheDir)

	result := r.Resolve(key)
	if result.Outcome == resolver.OutcomePending && *wait {
		for !q.IsEmpty() {
			if step := q.Step(); step.Kind == queue.StepThrottled {
				time.Sleep(cfg.QueueInterval)
			}
		}
		result = r.Resolve(key)
	}

	switch result.Outcome {
	case resolver.OutcomeLocalPath:
		fmt.Printf("%s: %s (%s)\n", key, result.Path, result.Entry.Description)
	case resolver.OutcomePending:
		fmt.Printf("%s: download queued for %s (re-run with -wait to download now)\n", key, result.Entry.Description)
	case resolver.OutcomeNotApplicable:
		fmt.Printf("%s: %s entry (%s), handled externally\n", key, result.Entry.Kind, result.Entry.Description)
	case resolver.OutcomeNotFound:
		return fmt.Errorf("key %q not found", key)
	}
	return nil
}

func cmdList(cfg *config.Config) error {
	store := loadStore(cfg)
	entries := store.List()
	if len(entries) == 0 {
		fmt.Println("no cached registry entries (try: dial-tone refresh)")
		return nil
	}
	fmt.Printf("%d entries:\n", len(entries))
	for i, e := range entries {
		fmt.Printf("%2d. %-10s %-9s %s\n", i+1, e.Key, e.Kind, e.Description)
		if e.Locator != "" {
			fmt.Printf("    %s\n", e.Locator)
		}
	}
	return nil
}

func cmdQueue(cfg *config.Config) error {
	resp, err := http.Get("http://" + cfg.BindAddr + "/queue")
	if err != nil {
		return fmt.Errorf("no daemon at %s: %w", cfg.BindAddr, err)
	}
	defer resp.Body.Close()
	var items []struct {
		Locator     string `json:"locator"`
		LocalPath   string `json:"local_path"`
		Description string `json:"description"`
		Status      string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Println("download queue is empty")
		return nil
	}
	for i, it := range items {
		fmt.Printf("%2d. [%s] %s\n    %s -> %s\n", i+1, it.Status, it.Description, it.Locator, it.LocalPath)
	}
	return nil
}

func cmdHistory(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	n := fs.Int("n", 20, "number of rows to show")
	fs.Parse(args)
	if cfg.LedgerPath == "" {
		return fmt.Errorf("download ledger is disabled")
	}
	l, err := history.Open(cfg.LedgerPath)
	if err != nil {
		return err
	}
	defer l.Close()
	rows, err := l.Recent(*n)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		fmt.Println("no downloads recorded")
		return nil
	}
	for _, row := range rows {
		status := "ok"
		if !row.OK {
			status = "failed: " + row.Error
		}
		fmt.Printf("%s  %-20s %8d bytes  %s\n", row.At.Format(time.RFC3339), row.Description, row.Bytes, status)
	}
	return nil
}

func cmdClear(cfg *config.Config) error {
	store := registry.NewStore(cfg.DataDir, cfg.MaxEntries)
	if err := store.Clear(); err != nil {
		return err
	}
	log.Printf("registry: cache cleared")
	return nil
}
