// client/poller.go
package client

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/nebula-foundry/media-gateway-go/internal/model"
)

// DefaultPollInterval is the pause between status fetches.
const DefaultPollInterval = 5 * time.Second

// Poller repeatedly fetches an asset's processing status until every stage
// reaches a terminal state or the poller is stopped. Fetch errors are
// logged and the polling loop keeps going; transient gateway hiccups must
// not kill a long-running upload watch.
type Poller struct {
	api      *API
	assetID  string
	interval time.Duration
	onStatus func(model.AssetStatusResponse)
	log      *slog.Logger

	// ctx and cancel are created at construction so Stop has a handle to
	// act on no matter how it interleaves with Start.
	ctx     context.Context
	cancel  context.CancelFunc
	started atomic.Bool
	done    chan struct{}
}

// NewPoller creates a poller for one asset. onStatus is called after every
// successful fetch, including the final terminal one. A zero interval uses
// DefaultPollInterval.
func NewPoller(api *API, assetID string, interval time.Duration, onStatus func(model.AssetStatusResponse)) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	p := &Poller{
		api:      api,
		assetID:  assetID,
		interval: interval,
		onStatus: onStatus,
		log:      slog.Default(),
		done:     make(chan struct{}),
	}
	p.ctx, p.cancel = context.WithCancel(context.Background())
	return p
}

// Start launches the polling loop. The first fetch happens immediately.
// Cancelling ctx stops the loop just like Stop does.
func (p *Poller) Start(ctx context.Context) {
	p.started.Store(true)
	release := context.AfterFunc(ctx, p.cancel)

	go func() {
		defer close(p.done)
		defer release()

		for {
			st, err := p.api.AssetStatus(p.ctx, p.assetID)
			switch {
			case p.ctx.Err() != nil:
				return
			case err != nil:
				p.log.Warn("status poll failed", "asset_id", p.assetID, "error", err)
			default:
				p.onStatus(st)
				if st.AllTerminal() {
					return
				}
			}

			select {
			case <-time.After(p.interval):
			case <-p.ctx.Done():
				return
			}
		}
	}()
}

// Stop cancels the polling loop and, when the loop was started, waits for
// it to exit. Calling Stop at any point relative to Start is safe: before
// Start it pre-cancels, so a later Start exits on its first iteration.
func (p *Poller) Stop() {
	p.cancel()
	if !p.started.Load() {
		return
	}
	<-p.done
}

// Wait blocks until the polling loop exits on its own. It must only be
// called after Start.
func (p *Poller) Wait() {
	<-p.done
}
