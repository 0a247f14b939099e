package push

import (
	"context"
	"time"

	"github.com/ocx/pushgate/internal/blocklist"
	"github.com/ocx/pushgate/internal/monitoring"
	"github.com/ocx/pushgate/internal/ratelimit"
)

// Sweeper cadence is fixed; the limiter's own cleanup interval only
// governs which entries qualify for removal.
const (
	blocklistSweepInterval = 60 * time.Second
	ratelimitSweepInterval = 300 * time.Second
)

// Module is a named composite of one adapter, one rate limiter and one
// blocklist. Constructing a module spawns its two periodic sweepers;
// they run until Close.
type Module struct {
	id        string
	adapter   Adapter
	limiter   *ratelimit.Limiter
	blocklist *blocklist.Blocklist

	metrics *monitoring.Metrics
	cancel  context.CancelFunc
}

// NewModule builds a module and starts its sweepers. metrics may be nil.
func NewModule(id string, adapter Adapter, rl ratelimit.Settings, bl blocklist.Settings, metrics *monitoring.Metrics) *Module {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Module{
		id:        id,
		adapter:   adapter,
		limiter:   ratelimit.New(rl),
		blocklist: blocklist.New(bl),
		metrics:   metrics,
		cancel:    cancel,
	}
	go m.runBlocklistSweeper(ctx)
	go m.runRatelimitSweeper(ctx)
	return m
}

func (m *Module) runBlocklistSweeper(ctx context.Context) {
	ticker := time.NewTicker(blocklistSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.blocklist.Sweep()
			if m.metrics != nil {
				m.metrics.BlocklistEntries.WithLabelValues(m.id).Set(float64(m.blocklist.Len()))
			}
		}
	}
}

func (m *Module) runRatelimitSweeper(ctx context.Context) {
	ticker := time.NewTicker(ratelimitSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.limiter.Sweep()
			if m.metrics != nil {
				m.metrics.RatelimitEntries.WithLabelValues(m.id).Set(float64(m.limiter.Len()))
			}
		}
	}
}

func (m *Module) ID() string {
	return m.id
}

// Close stops the sweepers. The state maps stay readable; modules are
// only closed on process shutdown.
func (m *Module) Close() {
	m.cancel()
}
