// Command rotation-loadtest hammers an engine with concurrent authorize calls
// and with racing refreshes of the same token, and reports latency
// percentiles plus any refresh token that was redeemed more than once.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	goSession "github.com/MrEthical07/goSession"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type session struct {
	access  string
	refresh string
}

func main() {
	var (
		sessions    = flag.Int("sessions", 10000, "number of sessions to seed")
		concurrency = flag.Int("concurrency", 256, "number of concurrent workers")
		ops         = flag.Int("ops", 200000, "authorize operations")
		racers      = flag.Int("racers", 8, "concurrent refreshes per refresh token")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		memory      = flag.Bool("memory", false, "use in-process stores instead of redis")
	)
	flag.Parse()

	if *sessions <= 0 || *concurrency <= 0 || *ops <= 0 || *racers <= 0 {
		fmt.Fprintln(os.Stderr, "sessions, concurrency, ops and racers must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	cfg := goSession.DefaultConfig()
	cfg.JWT.Secret = []byte("rotation-loadtest-secret-0123456789abcdef")
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true

	builder := goSession.New().
		WithUserDirectory(syntheticUsers{}).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))

	cleanup := func() {}
	if !*memory {
		client, closeFn, err := connectRedis(*redisAddr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "redis: %v\n", err)
			os.Exit(1)
		}
		cleanup = closeFn
		cfg.Store.Backend = goSession.BackendRedis
		builder = builder.WithRedis(client)
	}
	defer cleanup()

	engine, err := builder.WithConfig(cfg).Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build engine: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	fmt.Printf("seeding %d sessions on %s stores...\n", *sessions, engine.Backend())
	startSeed := time.Now()
	states := make([]session, *sessions)
	for i := range states {
		access, refresh, err := engine.Login(ctx, "user-"+strconv.Itoa(i), syntheticSecret)
		if err != nil {
			fmt.Fprintf(os.Stderr, "login failed: %v\n", err)
			os.Exit(1)
		}
		states[i] = session{access: access, refresh: refresh}
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	authorizeStats := runAuthorizePhase(ctx, engine, states, *ops, *concurrency)
	refreshStats, violations := runRacePhase(ctx, engine, states, *racers, *concurrency)

	fmt.Println("---- results ----")
	printStats("authorize", authorizeStats)
	printStats("refresh", refreshStats)
	snap := engine.MetricsSnapshot()
	fmt.Printf("reuse detected: %d\n", snap.Counters[goSession.MetricRefreshReuseDetected])

	if violations > 0 {
		fmt.Printf("FAIL: %d refresh tokens did not have exactly one winner\n", violations)
		os.Exit(1)
	}
	fmt.Println("ok: every refresh token was redeemed exactly once")
}

func connectRedis(addr string) (redis.UniversalClient, func(), error) {
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, nil, fmt.Errorf("start miniredis: %w", err)
		}
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
		fmt.Printf("using miniredis at %s\n", mr.Addr())
		return client, func() {
			_ = client.Close()
			mr.Close()
		}, nil
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
	fmt.Printf("using redis at %s\n", addr)
	return client, func() { _ = client.Close() }, nil
}

func runAuthorizePhase(ctx context.Context, engine *goSession.Engine, states []session, ops, concurrency int) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				_, err := engine.Authorize(ctx, states[r.Intn(len(states))].access)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

// runRacePhase refreshes every session's token from racers goroutines at once
// and counts sessions whose token was not redeemed exactly once. Losers are
// expected and not counted as failures.
func runRacePhase(ctx context.Context, engine *goSession.Engine, states []session, racers, concurrency int) (phaseStats, int64) {
	var (
		wg         sync.WaitGroup
		cursor     int64
		violations int64
		latencies  = make([]time.Duration, 0, len(states)*racers)
		mu         sync.Mutex
	)

	workers := concurrency / racers
	if workers < 1 {
		workers = 1
	}

	start := time.Now()
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= len(states) {
					return
				}

				var (
					race    sync.WaitGroup
					winners int64
					gate    = make(chan struct{})
					local   = make([]time.Duration, racers)
				)
				for r := 0; r < racers; r++ {
					race.Add(1)
					go func(r int) {
						defer race.Done()
						<-gate
						t0 := time.Now()
						_, _, err := engine.Refresh(ctx, states[i].refresh)
						local[r] = time.Since(t0)
						if err == nil {
							atomic.AddInt64(&winners, 1)
						}
					}(r)
				}
				close(gate)
				race.Wait()

				if winners != 1 {
					atomic.AddInt64(&violations, 1)
				}
				mu.Lock()
				latencies = append(latencies, local...)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, violations), violations
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	return samples[(len(samples)-1)*p/100]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}

const syntheticSecret = "loadtest-password"

// syntheticUsers accepts any "user-N" identifier with syntheticSecret and skips
// password hashing so the run measures token work only.
type syntheticUsers struct{}

func (syntheticUsers) Resolve(_ context.Context, subjectID string) (goSession.Identity, error) {
	return goSession.Identity{ID: subjectID, Role: "member", Active: true}, nil
}

func (u syntheticUsers) VerifyCredentials(ctx context.Context, identifier, secret string) (goSession.Identity, error) {
	if secret != syntheticSecret {
		return goSession.Identity{}, goSession.ErrInvalidCredentials
	}
	return u.Resolve(ctx, identifier)
}
