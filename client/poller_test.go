package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nebula-foundry/media-gateway-go/internal/model"
)

func TestPollerStopsOnTerminalStatus(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		st := pendingStatus("clip-1")
		if n >= 3 {
			st = doneStatus("clip-1")
		}
		_ = json.NewEncoder(w).Encode(st)
	}))
	defer srv.Close()

	var seen []model.AssetStatusResponse
	p := NewPoller(NewAPI(srv.URL, ""), "clip-1", 2*time.Millisecond, func(st model.AssetStatusResponse) {
		seen = append(seen, st)
	})
	p.Start(context.Background())
	p.Wait()

	if len(seen) < 3 {
		t.Fatalf("saw %d statuses, want at least 3", len(seen))
	}
	if !seen[len(seen)-1].AllTerminal() {
		t.Fatal("final observed status is not terminal")
	}
	final := calls.Load()

	// The loop must have exited; no further fetches may arrive.
	time.Sleep(20 * time.Millisecond)
	if calls.Load() != final {
		t.Fatal("poller kept fetching after terminal status")
	}
}

func TestPollerSurvivesFetchErrors(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(doneStatus("clip-1"))
	}))
	defer srv.Close()

	var got model.AssetStatusResponse
	p := NewPoller(NewAPI(srv.URL, ""), "clip-1", 2*time.Millisecond, func(st model.AssetStatusResponse) {
		got = st
	})
	p.Start(context.Background())
	p.Wait()

	if !got.AllTerminal() {
		t.Fatal("poller gave up before reaching a terminal status")
	}
}

func TestPollerStopIsIdempotent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(pendingStatus("clip-1"))
	}))
	defer srv.Close()

	p := NewPoller(NewAPI(srv.URL, ""), "clip-1", time.Millisecond, func(model.AssetStatusResponse) {})
	p.Start(context.Background())

	p.Stop()
	p.Stop()
}

func TestPollerStopBeforeStart(t *testing.T) {
	p := NewPoller(NewAPI("http://unused", ""), "clip-1", time.Millisecond, nil)
	p.Stop()

	// A Start after an early Stop must exit on its first iteration rather
	// than poll forever.
	p.Start(context.Background())
	p.Wait()
}

func TestPollerConcurrentStartStop(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(pendingStatus("clip-1"))
	}))
	defer srv.Close()

	for i := 0; i < 50; i++ {
		p := NewPoller(NewAPI(srv.URL, ""), "clip-1", time.Millisecond, func(model.AssetStatusResponse) {})

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			p.Start(context.Background())
		}()
		go func() {
			defer wg.Done()
			p.Stop()
		}()
		wg.Wait()

		// Whatever the interleaving, the loop must wind down.
		p.Stop()
	}
}
