// Package benchmarks provides performance and load testing for the realtime
// client against a running backend
package benchmarks

import (
	"context"
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sdkwork-cloud/openchat-realtime/pkg/client"
	"github.com/sdkwork-cloud/openchat-realtime/pkg/observability"
)

// LoadTestConfig configures load testing parameters
type LoadTestConfig struct {
	Endpoint string
	Token    string

	// Number of concurrent clients
	Clients int
	// Acknowledged messages sent by each client
	MessagesPerClient int
	// Per-client send rate in messages per second, 0 = unlimited
	Rate int
	// Size of the text payload in bytes
	PayloadSize int

	// How long to wait for every client to connect
	ConnectTimeout time.Duration
	// Test duration (0 = run until all messages complete)
	Duration time.Duration
	// Ramp up period for gradual load increase
	RampUpTime time.Duration
}

// LoadTestResult contains the results of a load test
type LoadTestResult struct {
	TotalMessages int64
	Acked         int64
	Failed        int64
	TotalDuration time.Duration

	// Acknowledgment latency
	MinLatency time.Duration
	MaxLatency time.Duration
	AvgLatency time.Duration
	P50Latency time.Duration
	P90Latency time.Duration
	P99Latency time.Duration

	MessagesPerSecond float64

	// Failures by error type
	ErrorCounts map[string]int64
}

// LoadTester drives many clients sending acknowledged frames
type LoadTester struct {
	config LoadTestConfig

	total  atomic.Int64
	acked  atomic.Int64
	failed atomic.Int64

	mu        sync.Mutex
	latencies []time.Duration
	errors    map[string]int64
}

type loadMessage struct {
	Client int    `json:"client"`
	Seq    int    `json:"seq"`
	Text   string `json:"text"`
}

// NewLoadTester creates a new load tester
func NewLoadTester(config LoadTestConfig) *LoadTester {
	if config.Clients <= 0 {
		config.Clients = 1
	}
	if config.MessagesPerClient <= 0 {
		config.MessagesPerClient = 100
	}
	if config.ConnectTimeout <= 0 {
		config.ConnectTimeout = 10 * time.Second
	}
	return &LoadTester{config: config, errors: make(map[string]int64)}
}

// Run executes the load test
func (lt *LoadTester) Run(ctx context.Context) (*LoadTestResult, error) {
	if lt.config.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, lt.config.Duration)
		defer cancel()
	}

	clients := make([]*client.Client, 0, lt.config.Clients)
	defer func() {
		for _, c := range clients {
			_ = c.Close()
		}
	}()

	connectCtx, cancel := context.WithTimeout(ctx, lt.config.ConnectTimeout)
	defer cancel()
	for i := 0; i < lt.config.Clients; i++ {
		cfg := client.DefaultConfig()
		cfg.Endpoint = lt.config.Endpoint
		cfg.Token = lt.config.Token
		// Room for every in-flight frame of this client
		cfg.Queue.Capacity = lt.config.MessagesPerClient + 1

		c, err := client.New(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create client %d: %w", i, err)
		}
		clients = append(clients, c)

		if err := c.Connect(); err != nil {
			return nil, err
		}
		if err := c.WaitForState(connectCtx, client.StateConnected); err != nil {
			return nil, fmt.Errorf("client %d did not connect: %w", i, err)
		}
	}

	start := time.Now()
	var wg sync.WaitGroup
	for i, c := range clients {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lt.runClient(ctx, i, c)
		}()

		if lt.config.RampUpTime > 0 && i < len(clients)-1 {
			time.Sleep(lt.config.RampUpTime / time.Duration(len(clients)-1))
		}
	}
	wg.Wait()

	return lt.results(time.Since(start)), nil
}

func (lt *LoadTester) runClient(ctx context.Context, id int, c *client.Client) {
	var tick <-chan time.Time
	if lt.config.Rate > 0 {
		ticker := time.NewTicker(time.Second / time.Duration(lt.config.Rate))
		defer ticker.Stop()
		tick = ticker.C
	}

	text := strings.Repeat("x", lt.config.PayloadSize)
	var pending sync.WaitGroup
	defer pending.Wait()

	for seq := 0; seq < lt.config.MessagesPerClient; seq++ {
		if tick != nil {
			select {
			case <-tick:
			case <-ctx.Done():
				return
			}
		} else if ctx.Err() != nil {
			return
		}

		lt.total.Add(1)
		sent := time.Now()
		d, err := c.SendWithAck("load:message", loadMessage{Client: id, Seq: seq, Text: text})
		if err != nil {
			lt.record(0, err)
			continue
		}

		pending.Add(1)
		go func() {
			defer pending.Done()
			err := d.Wait(ctx)
			lt.record(time.Since(sent), err)
		}()
	}
}

func (lt *LoadTester) record(latency time.Duration, err error) {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	if err != nil {
		lt.failed.Add(1)
		lt.errors[observability.ErrorType(err)]++
		return
	}
	lt.acked.Add(1)
	lt.latencies = append(lt.latencies, latency)
}

func (lt *LoadTester) results(elapsed time.Duration) *LoadTestResult {
	lt.mu.Lock()
	defer lt.mu.Unlock()

	r := &LoadTestResult{
		TotalMessages: lt.total.Load(),
		Acked:         lt.acked.Load(),
		Failed:        lt.failed.Load(),
		TotalDuration: elapsed,
		ErrorCounts:   make(map[string]int64, len(lt.errors)),
	}
	for k, v := range lt.errors {
		r.ErrorCounts[k] = v
	}
	if elapsed > 0 {
		r.MessagesPerSecond = float64(r.Acked) / elapsed.Seconds()
	}

	if len(lt.latencies) == 0 {
		return r
	}
	sorted := append([]time.Duration(nil), lt.latencies...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum time.Duration
	for _, l := range sorted {
		sum += l
	}
	r.MinLatency = sorted[0]
	r.MaxLatency = sorted[len(sorted)-1]
	r.AvgLatency = sum / time.Duration(len(sorted))
	r.P50Latency = percentile(sorted, 50)
	r.P90Latency = percentile(sorted, 90)
	r.P99Latency = percentile(sorted, 99)
	return r
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	index := int(math.Ceil(float64(len(sorted))*p/100.0)) - 1
	if index < 0 {
		index = 0
	}
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return sorted[index]
}

// Print writes the results in a readable format
func (r *LoadTestResult) Print(w io.Writer) {
	fmt.Fprintln(w, "=== Load Test Results ===")
	fmt.Fprintf(w, "Total Duration: %s\n", r.TotalDuration)
	fmt.Fprintf(w, "Messages: %d (acked %d, failed %d)\n", r.TotalMessages, r.Acked, r.Failed)
	fmt.Fprintf(w, "Messages/sec: %.2f\n", r.MessagesPerSecond)

	fmt.Fprintln(w, "\nAck latency:")
	fmt.Fprintf(w, "  Min: %s\n", r.MinLatency)
	fmt.Fprintf(w, "  Avg: %s\n", r.AvgLatency)
	fmt.Fprintf(w, "  P50: %s\n", r.P50Latency)
	fmt.Fprintf(w, "  P90: %s\n", r.P90Latency)
	fmt.Fprintf(w, "  P99: %s\n", r.P99Latency)
	fmt.Fprintf(w, "  Max: %s\n", r.MaxLatency)

	if len(r.ErrorCounts) > 0 {
		fmt.Fprintln(w, "\nErrors:")
		for kind, count := range r.ErrorCounts {
			fmt.Fprintf(w, "  %s: %d\n", kind, count)
		}
	}
}
