// Command renew-loadtest drives bursts of concurrent requests through one
// goRenew client while the backend expires every access token between
// rounds, and reports how many renewals each burst cost.
//
// Without -base-url (or RENEW_BASE_URL) it starts the in-process reference
// backend; with one, it logs in against that server and skips expiry
// injection.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sort"
	"sync"
	"time"

	goRenew "github.com/MrEthical07/goRenew"
	"github.com/MrEthical07/goRenew/internal/authtest"
	"golang.org/x/sync/errgroup"
)

func main() {
	var (
		baseURL     = flag.String("base-url", "", "backend base URL; if empty, RENEW_BASE_URL env or the in-process backend is used")
		username    = flag.String("username", envOr("RENEW_USERNAME", ""), "login user")
		password    = flag.String("password", envOr("RENEW_PASSWORD", ""), "login password")
		rounds      = flag.Int("rounds", 20, "number of expiry rounds")
		burst       = flag.Int("burst", 256, "requests per round")
		concurrency = flag.Int("concurrency", 64, "maximum in-flight requests")
		path        = flag.String("path", "/api/items", "request path")
		hang        = flag.Duration("renew-delay", 20*time.Millisecond, "renewal delay injected by the in-process backend")
		breaker     = flag.Bool("breaker", false, "enable the renewal circuit breaker")
		verbose     = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	if *rounds <= 0 || *burst <= 0 || *concurrency <= 0 {
		fmt.Fprintln(os.Stderr, "rounds, burst, and concurrency must be > 0")
		os.Exit(2)
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	addr := *baseURL
	if addr == "" {
		addr = os.Getenv("RENEW_BASE_URL")
	}

	var srv *authtest.Server
	if addr == "" {
		var err error
		srv, err = authtest.NewServer(authtest.Options{Username: *username, Password: *password})
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start backend: %v\n", err)
			os.Exit(1)
		}
		defer srv.Close()
		srv.HangRenewals(*hang)
		addr = srv.URL()
		*username, *password = srv.Username(), srv.Password()
		fmt.Printf("using in-process backend at %s\n", addr)
	} else {
		fmt.Printf("using backend at %s\n", addr)
	}

	cfg := goRenew.ResilientConfig()
	cfg.BaseURL = addr
	cfg.Audit.Enabled = false
	cfg.Token.ProactiveWindow = 0
	cfg.Renewal.Breaker.Enabled = *breaker
	cfg.Classifier.ExemptPaths = []string{authtest.LoginPath}

	client, err := goRenew.New().
		WithConfig(cfg).
		WithLogger(logger).
		WithHTTPClient(&http.Client{Transport: &http.Transport{MaxIdleConnsPerHost: *concurrency}}).
		OnSessionInvalidated(func(_ context.Context, err error) {
			fmt.Fprintf(os.Stderr, "session lost: %v\n", err)
		}).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "client build: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	ctx := context.Background()
	var tok struct {
		AccessToken string `json:"access_token"`
	}
	if err := client.DoJSON(ctx, http.MethodPost, authtest.LoginPath, map[string]string{
		"username": *username,
		"password": *password,
	}, &tok); err != nil {
		fmt.Fprintf(os.Stderr, "login: %v\n", err)
		os.Exit(1)
	}
	client.SetAccessToken(tok.AccessToken)

	var all []roundStats
	for r := 0; r < *rounds; r++ {
		if srv != nil {
			if err := srv.ExpireAccess(); err != nil {
				fmt.Fprintf(os.Stderr, "expire access: %v\n", err)
				os.Exit(1)
			}
		}
		before := client.MetricsSnapshot().Counters[goRenew.MetricRenewalStarted]
		stats := runRound(ctx, client, *path, *burst, *concurrency)
		stats.renewals = client.MetricsSnapshot().Counters[goRenew.MetricRenewalStarted] - before
		all = append(all, stats)
		if client.SessionInvalidated() {
			fmt.Fprintf(os.Stderr, "stopping after round %d: session invalidated\n", r+1)
			break
		}
	}

	fmt.Println("---- results ----")
	for i, s := range all {
		printStats(fmt.Sprintf("round %02d", i+1), s)
	}
	snap := client.MetricsSnapshot()
	fmt.Printf("totals: dispatched=%d expired=%d renewals=%d queued=%d replayed=%d stale=%d\n",
		snap.Counters[goRenew.MetricRequestDispatched],
		snap.Counters[goRenew.MetricAuthExpired],
		snap.Counters[goRenew.MetricRenewalStarted],
		snap.Counters[goRenew.MetricWaiterQueued],
		snap.Counters[goRenew.MetricReplaySuccess],
		snap.Counters[goRenew.MetricStaleReplay],
	)
	if srv != nil {
		fmt.Printf("backend: renewals=%d requests=%d\n", srv.RenewalCount(), srv.RequestCount(*path))
	}
}

type roundStats struct {
	total    time.Duration
	ops      int
	failures int
	renewals uint64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
}

func runRound(ctx context.Context, client *goRenew.Client, path string, burst, concurrency int) roundStats {
	var (
		mu        sync.Mutex
		latencies = make([]time.Duration, 0, burst)
		failures  int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	start := time.Now()
	for i := 0; i < burst; i++ {
		g.Go(func() error {
			t0 := time.Now()
			_, err := client.Get(gctx, path)
			d := time.Since(t0)

			mu.Lock()
			latencies = append(latencies, d)
			if err != nil {
				failures++
			}
			mu.Unlock()

			// A lost session ends the round; anything else is counted.
			if goRenew.IsSessionExpired(err) {
				return err
			}
			return nil
		})
	}
	err := g.Wait()
	if err != nil && !errors.Is(err, goRenew.ErrRenewalFailed) {
		fmt.Fprintf(os.Stderr, "round error: %v\n", err)
	}

	return computeStats(time.Since(start), latencies, failures)
}

func computeStats(total time.Duration, samples []time.Duration, failures int) roundStats {
	if len(samples) == 0 {
		return roundStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return roundStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
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
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s roundStats) {
	fmt.Printf("%s: ops=%d failures=%d renewals=%d total=%s p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.renewals,
		s.total.Round(time.Millisecond),
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
