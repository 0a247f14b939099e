package push

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/ocx/pushgate/internal/blocklist"
	"github.com/ocx/pushgate/internal/config"
	"github.com/ocx/pushgate/internal/monitoring"
	"github.com/ocx/pushgate/internal/ratelimit"
)

// DefaultModuleID is the reserved registry key resolving to whichever
// module was flagged isDefaultModule.
const DefaultModuleID = "default"

// AdapterFactory builds the vendor adapter for one module
// configuration. Wired in by the caller so the registry stays free of
// vendor SDK imports.
type AdapterFactory func(id string, cfg config.PushModuleConfig) (Adapter, error)

// Registry is the named map of push modules. Populated once at startup,
// read-only afterwards.
type Registry struct {
	modules map[string]*Module
	metrics *monitoring.Metrics
}

// NewRegistry instantiates one module per configuration entry. The
// entry flagged isDefaultModule additionally gets a second, independent
// instance under the reserved "default" key, so direct queries to the
// named module and to "default" use disjoint rate-limit and blocklist
// state. metrics may be nil.
func NewRegistry(cfgs map[string]config.PushModuleConfig, factory AdapterFactory, metrics *monitoring.Metrics) (*Registry, error) {
	r := &Registry{
		modules: make(map[string]*Module, len(cfgs)+1),
		metrics: metrics,
	}

	defaults := 0
	for id, cfg := range cfgs {
		if id == DefaultModuleID {
			r.Close()
			return nil, fmt.Errorf("push module identifier %q is reserved", DefaultModuleID)
		}
		mod, err := r.buildModule(id, cfg, factory)
		if err != nil {
			r.Close()
			return nil, err
		}
		r.modules[id] = mod

		if cfg.IsDefaultModule {
			defaults++
			if defaults > 1 {
				r.Close()
				return nil, fmt.Errorf("at most one push module can be flagged isDefaultModule")
			}
			slog.Info("loading module as default push module", "module", id)
			defaultMod, err := r.buildModule(DefaultModuleID, cfg, factory)
			if err != nil {
				r.Close()
				return nil, err
			}
			r.modules[DefaultModuleID] = defaultMod
		}
	}
	return r, nil
}

func (r *Registry) buildModule(id string, cfg config.PushModuleConfig, factory AdapterFactory) (*Module, error) {
	adapter, err := factory(id, cfg)
	if err != nil {
		return nil, fmt.Errorf("push module %s: %w", id, err)
	}
	return NewModule(id, adapter, ratelimitSettings(cfg.Ratelimit), blocklistSettings(cfg.Blacklist), r.metrics), nil
}

func ratelimitSettings(cfg config.RatelimitConfig) ratelimit.Settings {
	return ratelimit.Settings{
		RatelimitTime:     cfg.RatelimitTime.Std(),
		HardRatelimitTime: cfg.HardRatelimitTime.Std(),
		CleanupInterval:   cfg.RatelimitCleanupInterval.Std(),
		Enabled:           cfg.IsEnabled(),
	}
}

func blocklistSettings(cfg config.BlacklistConfig) blocklist.Settings {
	return blocklist.Settings{
		InvalidToken: blocklist.BlockingTimes{
			Initial:  cfg.InvalidToken.InitialBlocking.Std(),
			Extended: cfg.InvalidToken.ExtendedBlocking.Std(),
		},
		PushError: blocklist.BlockingTimes{
			Initial:  cfg.PushError.InitialBlocking.Std(),
			Extended: cfg.PushError.ExtendedBlocking.Std(),
		},
		BlockExtension: cfg.BlockExtension.Std(),
	}
}

// Lookup resolves a module by exact name.
func (r *Registry) Lookup(id string) (*Module, bool) {
	mod, ok := r.modules[id]
	return mod, ok
}

// ModuleStats reports per-module state-map sizes, sorted by module
// name, for the ops server.
func (r *Registry) ModuleStats() []monitoring.ModuleStats {
	stats := make([]monitoring.ModuleStats, 0, len(r.modules))
	for id, mod := range r.modules {
		stats = append(stats, monitoring.ModuleStats{
			Module:           id,
			RatelimitEntries: mod.limiter.Len(),
			BlocklistEntries: mod.blocklist.Len(),
		})
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Module < stats[j].Module })
	return stats
}

// Close stops all module sweepers.
func (r *Registry) Close() {
	for _, mod := range r.modules {
		mod.Close()
	}
}
