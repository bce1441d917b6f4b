package tests

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"

	"github.com/transac/go-offline-cache"
	"github.com/transac/go-offline-cache/tests/help"
)

var (
	benchClient     *offlinecache.Client
	benchClientOnce sync.Once
	benchEndpoints  []string
)

func initBenchClient() {
	ctx := context.Background()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"p1","name":"drill","lastUpdated":"2026-08-10T12:00:00Z"}`))
	}))

	dir, err := os.MkdirTemp("", "offline-cache-bench-*")
	if err != nil {
		panic(err)
	}

	benchClient, err = offlinecache.New(ctx, help.Cfg(dir, srv.URL), help.Logger())
	if err != nil {
		panic(err)
	}

	// Pre-populate the api tier through the normal fetch path.
	benchEndpoints = make([]string, 256)
	for i := range benchEndpoints {
		benchEndpoints[i] = fmt.Sprintf("/api/v1/products/%04d", i)
		if _, err := benchClient.Get(ctx, benchEndpoints[i], nil); err != nil {
			panic(err)
		}
	}
}

func getBenchClient() *offlinecache.Client {
	benchClientOnce.Do(initBenchClient)
	return benchClient
}

// BenchmarkGetHit measures the cache-first hit path through the facade.
func BenchmarkGetHit(b *testing.B) {
	client := getBenchClient()
	ctx := context.Background()
	endpoint := benchEndpoints[0]

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		resp, err := client.Get(ctx, endpoint, nil)
		if err != nil {
			b.Fatal(err)
		}
		if !resp.FromCache {
			b.Fatal("expected a cache hit")
		}
	}
}

// BenchmarkGetHitParallel measures the same path under contention.
func BenchmarkGetHitParallel(b *testing.B) {
	client := getBenchClient()
	ctx := context.Background()

	b.ResetTimer()
	b.ReportAllocs()

	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			endpoint := benchEndpoints[i%len(benchEndpoints)]
			i++
			if _, err := client.Get(ctx, endpoint, nil); err != nil {
				b.Fatal(err)
			}
		}
	})
}

// BenchmarkStorageInfo measures the usage report, which walks every tier.
func BenchmarkStorageInfo(b *testing.B) {
	client := getBenchClient()
	ctx := context.Background()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		info := client.StorageInfo(ctx)
		if info.UsedBytes == 0 {
			b.Fatal("expected non-zero usage")
		}
	}
}
