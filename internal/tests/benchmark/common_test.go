package benchmark

import (
	"context"
	"fmt"
	"runtime"
	"testing"
	"time"

	"github.com/yndnr/kvwait/internal/cli/connection"
	"github.com/yndnr/kvwait/internal/server/admission"
	"github.com/yndnr/kvwait/internal/server/kvserver"
	"github.com/yndnr/kvwait/internal/storage/memory"
)

// KeyCounts defines the store sizes for benchmarking.
var KeyCounts = []int{1000, 10000, 100000, 500000}

// SmallKeyCounts for quick benchmarks.
var SmallKeyCounts = []int{1000, 10000}

const (
	benchUser     = "bench"
	benchPassword = "bench-password"
)

func keyName(i int) string {
	return fmt.Sprintf("key-%08d", i)
}

// prefillStore writes count keys with 64-byte values.
func prefillStore(store *memory.Store, count int) []string {
	keys := make([]string, count)
	value := make([]byte, 64)
	for i := 0; i < count; i++ {
		keys[i] = keyName(i)
		store.Put(keys[i], value)
	}
	return keys
}

// reportMemory reports memory usage.
func reportMemory(b *testing.B, prefix string) {
	var m runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&m)
	b.ReportMetric(float64(m.Alloc)/(1024*1024), prefix+"_MB")
	b.ReportMetric(float64(m.NumGC), prefix+"_GC")
}

// runWithKeyCounts runs a benchmark function with various store sizes.
func runWithKeyCounts(b *testing.B, counts []int, benchFn func(b *testing.B, count int)) {
	for _, count := range counts {
		b.Run(fmt.Sprintf("keys_%d", count), func(b *testing.B) {
			benchFn(b, count)
		})
	}
}

// startServer runs a protocol server on loopback with one registered user.
func startServer(b *testing.B, maxSessions int) (*memory.Store, string) {
	b.Helper()

	gate, err := admission.New(maxSessions)
	if err != nil {
		b.Fatal(err)
	}
	store := memory.New()
	if _, err := store.RegisterUser(benchUser, benchPassword); err != nil {
		b.Fatal(err)
	}

	cfg := kvserver.DefaultConfig()
	cfg.Addr = "127.0.0.1:0"
	srv := kvserver.New(cfg, store, gate)
	if err := srv.Start(context.Background()); err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})

	return store, srv.Addr().String()
}

// dialLoggedIn opens a logged-in client.
func dialLoggedIn(b *testing.B, addr string) *connection.Client {
	b.Helper()

	ctx := context.Background()
	client, err := connection.Dial(ctx, addr)
	if err != nil {
		b.Fatal(err)
	}
	if ok, err := client.Login(ctx, benchUser, benchPassword); err != nil || !ok {
		b.Fatalf("login: %v, %v", ok, err)
	}
	b.Cleanup(func() { _ = client.Exit() })
	return client
}
