package push

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ocx/pushgate/internal/config"
)

func TestRegistryBuildsDefaultAlias(t *testing.T) {
	r, adapters := newTestRegistry(t, map[string]config.PushModuleConfig{
		"m1": moduleConfig(time.Second, time.Second, true),
		"m2": moduleConfig(time.Second, time.Second, false),
	})

	_, ok := r.Lookup("m1")
	assert.True(t, ok)
	_, ok = r.Lookup("m2")
	assert.True(t, ok)
	_, ok = r.Lookup(DefaultModuleID)
	assert.True(t, ok)

	// The default entry is its own instance with its own adapter.
	assert.Len(t, adapters, 3)
	assert.NotSame(t, adapters["m1"], adapters[DefaultModuleID])
}

func TestRegistryWithoutDefaultModule(t *testing.T) {
	r, _ := newTestRegistry(t, map[string]config.PushModuleConfig{
		"m1": moduleConfig(time.Second, time.Second, false),
	})

	_, ok := r.Lookup(DefaultModuleID)
	assert.False(t, ok)
	assert.Equal(t, UnknownModule, r.Dispatch(context.Background(), DefaultModuleID, testToken))
}

func TestRegistryRejectsMultipleDefaults(t *testing.T) {
	adapters := make(map[string]*stubAdapter)
	_, err := NewRegistry(map[string]config.PushModuleConfig{
		"m1": moduleConfig(time.Second, time.Second, true),
		"m2": moduleConfig(time.Second, time.Second, true),
	}, stubFactory(adapters), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "isDefaultModule")
}

func TestRegistryRejectsReservedIdentifier(t *testing.T) {
	adapters := make(map[string]*stubAdapter)
	_, err := NewRegistry(map[string]config.PushModuleConfig{
		DefaultModuleID: moduleConfig(time.Second, time.Second, false),
	}, stubFactory(adapters), nil)
	require.Error(t, err)
}

// The default module and its named twin keep disjoint limiter and
// blocklist state: pacing one must not pace the other.
func TestDefaultModuleStateIsDisjoint(t *testing.T) {
	const window = 400 * time.Millisecond
	r, _ := newTestRegistry(t, map[string]config.PushModuleConfig{
		"m1": moduleConfig(window, time.Second, true),
	})

	require.Equal(t, Accepted, r.Dispatch(context.Background(), DefaultModuleID, testToken))

	// Immediately afterwards the named module still has a free slot for
	// the same token.
	start := time.Now()
	verdict := r.Dispatch(context.Background(), "m1", testToken)
	assert.Equal(t, Accepted, verdict)
	assert.Less(t, time.Since(start), window,
		"the named module must not inherit the default instance's reservation")
}

func TestModuleStatsSorted(t *testing.T) {
	r, _ := newTestRegistry(t, map[string]config.PushModuleConfig{
		"zeta":  moduleConfig(time.Second, time.Second, false),
		"alpha": moduleConfig(time.Second, time.Second, false),
	})

	stats := r.ModuleStats()
	require.Len(t, stats, 2)
	assert.Equal(t, "alpha", stats[0].Module)
	assert.Equal(t, "zeta", stats[1].Module)
}

func TestVerdictStrings(t *testing.T) {
	assert.Equal(t, "accepted", Accepted.String())
	assert.Equal(t, "ratelimited", RateLimited.String())
	assert.Equal(t, "blocked", Blocked.String())
	assert.Equal(t, "unknown_module", UnknownModule.String())
	assert.Equal(t, "internal", Internal.String())
}

func TestErrorStrings(t *testing.T) {
	assert.Equal(t, "push error: token_blocked", NewError(KindTokenBlocked).Error())
	assert.Equal(t, "push error: unknown vendor code 418", UnknownError(418).Error())
}
