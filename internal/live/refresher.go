// Package live implements the periodic re-fetch of live-location
// documents: a user-toggled task that polls the document's liveUrl and
// pushes re-rendered markup.
package live

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// Refresher fetches live data and drives refresh sessions. At most one
// session should exist per rendered document; callers own that invariant
// and must Stop sessions they started.
type Refresher struct {
	logger   *slog.Logger
	client   *http.Client
	interval time.Duration
}

func NewRefresher(log *slog.Logger, interval time.Duration) *Refresher {
	if interval <= 0 {
		interval = time.Second
	}
	return &Refresher{
		logger:   log.With(slog.String("service", "live")),
		client:   &http.Client{Timeout: 5 * time.Second},
		interval: interval,
	}
}

// Fetch retrieves the current live document fields from liveUrl.
func (r *Refresher) Fetch(ctx context.Context, liveURL string) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, liveURL, nil)
	if err != nil {
		return nil, fmt.Errorf("live request: %w", err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("live fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("live fetch: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("live read: %w", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("live decode: %w", err)
	}
	return fields, nil
}

// Session is one running auto-refresh task.
type Session struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Stop cancels the periodic task. Safe to call more than once; failing to
// call it leaks the ticker goroutine.
func (s *Session) Stop() {
	s.once.Do(s.cancel)
	<-s.done
}

// Start launches the auto-refresh loop. Each tick fetches liveURL and, if
// the response is not stale, delivers the fields to push. Staleness is
// decided by a monotonic sequence number so a slow response can never
// overwrite a newer one.
func (r *Refresher) Start(ctx context.Context, liveURL string, push func(fields map[string]any)) *Session {
	sctx, cancel := context.WithCancel(ctx)
	session := &Session{cancel: cancel, done: make(chan struct{})}

	// mu serializes the staleness check with the push itself, so once a
	// newer response has been delivered an older one can no longer reach
	// push at all.
	var mu sync.Mutex
	var issued, delivered uint64

	go func() {
		defer close(session.done)
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		var wg sync.WaitGroup
		defer wg.Wait()
		for {
			select {
			case <-sctx.Done():
				return
			case <-ticker.C:
			}

			issued++
			seq := issued
			wg.Add(1)
			go func() {
				defer wg.Done()
				fields, err := r.Fetch(sctx, liveURL)
				if err != nil {
					if sctx.Err() == nil {
						r.logger.Warn("live refresh failed", slog.String("url", liveURL), slog.Any("error", err))
					}
					return
				}
				// Last issued wins: drop anything a newer fetch beat.
				mu.Lock()
				defer mu.Unlock()
				if seq <= delivered {
					return
				}
				delivered = seq
				push(fields)
			}()
		}
	}()

	return session
}
