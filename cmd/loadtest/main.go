package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math/rand/v2"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ocx/pushgate/internal/config"
	"github.com/ocx/pushgate/internal/monitoring"
	"github.com/ocx/pushgate/internal/push"
	"github.com/ocx/pushgate/internal/push/demo"
)

// Drives the dispatch pipeline against the demo backend, hammering a
// pool of fake tokens from concurrent workers and reporting verdict
// counts and latency percentiles.

type stats struct {
	accepted    atomic.Uint64
	ratelimited atomic.Uint64
	blocked     atomic.Uint64
	internal    atomic.Uint64

	mu        sync.Mutex
	latencies []time.Duration
}

func (s *stats) record(v push.Verdict, latency time.Duration) {
	switch v {
	case push.Accepted:
		s.accepted.Add(1)
	case push.RateLimited:
		s.ratelimited.Add(1)
	case push.Blocked:
		s.blocked.Add(1)
	default:
		s.internal.Add(1)
	}
	s.mu.Lock()
	s.latencies = append(s.latencies, latency)
	s.mu.Unlock()
}

func (s *stats) total() uint64 {
	return s.accepted.Load() + s.ratelimited.Load() + s.blocked.Load() + s.internal.Load()
}

func main() {
	workers := flag.Int("workers", 100, "Number of concurrent workers")
	requests := flag.Int("requests", 10000, "Total number of push requests")
	tokens := flag.Int("tokens", 1000, "Size of the fake token pool")
	ratelimitTime := flag.Duration("ratelimit", 20*time.Second, "Per-token ratelimit window")
	report := flag.Duration("report", 5*time.Second, "Stats reporting interval")
	flag.Parse()

	registry, err := push.NewRegistry(
		map[string]config.PushModuleConfig{
			"demo": demoModuleConfig(*ratelimitTime),
		},
		func(id string, cfg config.PushModuleConfig) (push.Adapter, error) {
			return demo.New(), nil
		},
		monitoring.NewMetrics(prometheus.NewRegistry()),
	)
	if err != nil {
		log.Fatalf("Failed to build demo registry: %v", err)
	}
	defer registry.Close()

	pool := tokenPool(*tokens)
	slog.Info("starting push load test",
		"workers", *workers, "requests", *requests, "tokens", *tokens)

	st := &stats{}
	start := time.Now()

	done := make(chan struct{})
	go reportLoop(st, *report, done)

	var wg sync.WaitGroup
	work := make(chan string)
	for i := 0; i < *workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for token := range work {
				reqStart := time.Now()
				verdict := registry.Dispatch(context.Background(), "default", token)
				st.record(verdict, time.Since(reqStart))
			}
		}()
	}
	for i := 0; i < *requests; i++ {
		work <- pool[rand.IntN(len(pool))]
	}
	close(work)
	wg.Wait()
	close(done)

	printResults(st, time.Since(start))
}

func demoModuleConfig(ratelimitTime time.Duration) config.PushModuleConfig {
	return config.PushModuleConfig{
		Type: config.ModuleTypeDemo,
		Ratelimit: config.RatelimitConfig{
			RatelimitTime:            config.Duration(ratelimitTime),
			HardRatelimitTime:        config.Duration(10 * time.Minute),
			RatelimitCleanupInterval: config.Duration(5 * time.Minute),
		},
		Blacklist: config.BlacklistConfig{
			InvalidToken:   config.BlockingTimes{InitialBlocking: config.Duration(24 * time.Hour), ExtendedBlocking: config.Duration(5 * 24 * time.Hour)},
			PushError:      config.BlockingTimes{InitialBlocking: config.Duration(10 * time.Minute), ExtendedBlocking: config.Duration(20 * time.Minute)},
			BlockExtension: config.Duration(10 * time.Minute),
		},
		IsDefaultModule: true,
	}
}

// tokenPool builds n random 88-character fake tokens.
func tokenPool(n int) []string {
	const alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	pool := make([]string, n)
	for i := range pool {
		var b strings.Builder
		for j := 0; j < 88; j++ {
			b.WriteByte(alphabet[rand.IntN(len(alphabet))])
		}
		pool[i] = b.String()
	}
	return pool
}

func reportLoop(st *stats, interval time.Duration, done <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			slog.Info("progress",
				"total", st.total(),
				"accepted", st.accepted.Load(),
				"ratelimited", st.ratelimited.Load(),
				"blocked", st.blocked.Load(),
				"internal", st.internal.Load())
		}
	}
}

func printResults(st *stats, elapsed time.Duration) {
	st.mu.Lock()
	latencies := append([]time.Duration(nil), st.latencies...)
	st.mu.Unlock()
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	total := st.total()
	fmt.Println("=== Load Test Results ===")
	fmt.Printf("Requests:     %d in %s (%.1f req/s)\n", total, elapsed.Round(time.Millisecond), float64(total)/elapsed.Seconds())
	fmt.Printf("Accepted:     %d\n", st.accepted.Load())
	fmt.Printf("RateLimited:  %d\n", st.ratelimited.Load())
	fmt.Printf("Blocked:      %d\n", st.blocked.Load())
	fmt.Printf("Internal:     %d\n", st.internal.Load())
	if len(latencies) > 0 {
		fmt.Printf("Latency:      min=%s p50=%s p95=%s p99=%s max=%s\n",
			latencies[0],
			percentile(latencies, 0.50),
			percentile(latencies, 0.95),
			percentile(latencies, 0.99),
			latencies[len(latencies)-1])
	}
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	idx := int(float64(len(sorted)-1) * p)
	return sorted[idx]
}
