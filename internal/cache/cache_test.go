package cache

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

var bankBalance = Entry{ChainID: "manifest-ledger-beta", Module: "bank", Subcommand: "balance"}

func openTestStore(t *testing.T) (*Store, *time.Time) {
	t.Helper()
	tmp := t.TempDir()
	store, err := Open(filepath.Join(tmp, "cache.db"), filepath.Join(tmp, "cache.lock"))
	if err != nil {
		t.Fatalf("Open cache failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	now := time.Unix(1700000000, 0)
	store.now = func() time.Time { return now }
	return store, &now
}

func TestCacheSetGetFreshAndStale(t *testing.T) {
	store, now := openTestStore(t)

	if err := store.Set("k1", bankBalance, []byte(`{"v":1}`), 10*time.Second); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	res, err := store.Get("k1", 5*time.Second)
	if err != nil {
		t.Fatalf("Get fresh failed: %v", err)
	}
	if !res.Hit || res.Stale || string(res.Value) != `{"v":1}` {
		t.Fatalf("expected fresh hit, got %+v", res)
	}

	*now = now.Add(12 * time.Second)
	res, err = store.Get("k1", 5*time.Second)
	if err != nil {
		t.Fatalf("Get stale failed: %v", err)
	}
	if !res.Hit || !res.Stale || res.TooStale {
		t.Fatalf("expected stale within budget, got %+v", res)
	}
}

func TestCacheTooStale(t *testing.T) {
	store, now := openTestStore(t)

	if err := store.Set("k2", bankBalance, []byte(`{"v":2}`), time.Second); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	*now = now.Add(3 * time.Second)
	res, err := store.Get("k2", time.Second)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !res.TooStale {
		t.Fatalf("expected too stale, got %+v", res)
	}

	res, err = store.Get("k2", -1)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if res.TooStale {
		t.Fatalf("negative max stale should accept any age, got %+v", res)
	}
}

func TestCacheMiss(t *testing.T) {
	store, _ := openTestStore(t)
	res, err := store.Get("absent", time.Minute)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if res.Hit {
		t.Fatalf("expected miss, got %+v", res)
	}
}

func TestCachePruneAndPurge(t *testing.T) {
	store, now := openTestStore(t)
	other := Entry{ChainID: "manifest-1", Module: "bank", Subcommand: "balance"}

	if err := store.Set("old", bankBalance, []byte(`1`), time.Second); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := store.Set("keep", bankBalance, []byte(`2`), time.Hour); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := store.Set("mainnet", other, []byte(`3`), time.Hour); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	*now = now.Add(5 * time.Second)
	if err := store.Prune(); err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if res, _ := store.Get("old", -1); res.Hit {
		t.Fatal("expired entry survived prune")
	}

	n, err := store.Purge("manifest-ledger-beta")
	if err != nil {
		t.Fatalf("Purge failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 purged entry, got %d", n)
	}
	if res, _ := store.Get("mainnet", -1); !res.Hit {
		t.Fatal("purge removed another chain's entry")
	}
}

func TestKeyDependsOnEveryPart(t *testing.T) {
	base := Key("manifest-ledger-beta", "bank", "balance", []string{"manifest1abc", "umfx"})
	variants := []string{
		Key("manifest-1", "bank", "balance", []string{"manifest1abc", "umfx"}),
		Key("manifest-ledger-beta", "staking", "balance", []string{"manifest1abc", "umfx"}),
		Key("manifest-ledger-beta", "bank", "balances", []string{"manifest1abc", "umfx"}),
		Key("manifest-ledger-beta", "bank", "balance", []string{"umfx", "manifest1abc"}),
		Key("manifest-ledger-beta", "bank", "balance", []string{"manifest1abcumfx"}),
	}
	for i, v := range variants {
		if v == base {
			t.Fatalf("variant %d collides with base key", i)
		}
	}
	if base != Key("manifest-ledger-beta", "bank", "balance", []string{"manifest1abc", "umfx"}) {
		t.Fatal("key is not deterministic")
	}
}

func TestCacheConcurrentOpenAndSet(t *testing.T) {
	tmp := t.TempDir()
	dbPath := filepath.Join(tmp, "cache.db")
	lockPath := filepath.Join(tmp, "cache.lock")

	const workers = 16
	const iterations = 40

	var wg sync.WaitGroup
	errCh := make(chan error, workers)
	for worker := 0; worker < workers; worker++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()

			store, err := Open(dbPath, lockPath)
			if err != nil {
				errCh <- fmt.Errorf("worker %d open: %w", workerID, err)
				return
			}
			defer store.Close()

			for i := 0; i < iterations; i++ {
				key := fmt.Sprintf("worker-%d-key-%d", workerID, i)
				if err := store.Set(key, bankBalance, []byte(`{"ok":true}`), time.Minute); err != nil {
					errCh <- fmt.Errorf("worker %d set iter %d: %w", workerID, i, err)
					return
				}
				res, err := store.Get(key, time.Minute)
				if err != nil {
					errCh <- fmt.Errorf("worker %d get iter %d: %w", workerID, i, err)
					return
				}
				if !res.Hit {
					errCh <- fmt.Errorf("worker %d get iter %d: expected hit", workerID, i)
					return
				}
			}
		}(worker)
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Fatal(err)
	}
}
