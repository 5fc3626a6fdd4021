package store

import (
	"sync"
	"testing"
	"time"
)

func ms(v float64) *float64 { return &v }

func TestNewMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	if store == nil {
		t.Fatal("NewMemoryStore() = nil")
	}

	if len(store.GetAll()) != 0 {
		t.Errorf("GetAll() = %v items, want 0", len(store.GetAll()))
	}
	if store.RoundID() != "" {
		t.Errorf("RoundID() = %q, want empty", store.RoundID())
	}
}

func TestMemoryStore_Update(t *testing.T) {
	store := NewMemoryStore()

	store.Update(Result{
		Endpoint:     "docker.m.daocloud.io",
		URL:          "https://docker.m.daocloud.io",
		SuccessRate:  0.8,
		Successes:    4,
		Attempts:     5,
		AvgLatencyMs: ms(120),
		Failures:     map[string]int{"timeout": 1},
		CheckedAt:    time.Now(),
	})

	all := store.GetAll()
	if len(all) != 1 {
		t.Fatalf("GetAll() = %v items, want 1", len(all))
	}
	if all[0].Endpoint != "docker.m.daocloud.io" {
		t.Errorf("GetAll()[0].Endpoint = %v, want %v", all[0].Endpoint, "docker.m.daocloud.io")
	}
	if all[0].Rank != 0 {
		t.Errorf("GetAll()[0].Rank = %d, want 0 before a ranking is installed", all[0].Rank)
	}
}

func TestMemoryStore_UpdateOverwrites(t *testing.T) {
	store := NewMemoryStore()

	store.Update(Result{Endpoint: "mirror", SuccessRate: 1})
	store.Update(Result{Endpoint: "mirror", SuccessRate: 0.2})

	all := store.GetAll()
	if len(all) != 1 {
		t.Fatalf("GetAll() = %v items, want 1", len(all))
	}
	if all[0].SuccessRate != 0.2 {
		t.Errorf("GetAll()[0].SuccessRate = %v, want %v", all[0].SuccessRate, 0.2)
	}
}

func TestMemoryStore_StreamedResultsOrderedByEndpoint(t *testing.T) {
	store := NewMemoryStore()

	store.Update(Result{Endpoint: "charlie"})
	store.Update(Result{Endpoint: "alpha"})
	store.Update(Result{Endpoint: "bravo"})

	all := store.GetAll()
	want := []string{"alpha", "bravo", "charlie"}
	if len(all) != len(want) {
		t.Fatalf("GetAll() = %v items, want %d", len(all), len(want))
	}
	for i, name := range want {
		if all[i].Endpoint != name {
			t.Errorf("GetAll()[%d].Endpoint = %q, want %q", i, all[i].Endpoint, name)
		}
	}
}

func TestMemoryStore_Replace(t *testing.T) {
	store := NewMemoryStore()
	store.Update(Result{Endpoint: "stale"})

	ranked := []Result{
		{Endpoint: "fast", SuccessRate: 1, AvgLatencyMs: ms(50)},
		{Endpoint: "slow", SuccessRate: 1, AvgLatencyMs: ms(400)},
		{Endpoint: "dead", SuccessRate: 0},
		{Endpoint: "dead", SuccessRate: 0},
	}
	store.Replace("round-1", ranked)

	all := store.GetAll()
	if len(all) != len(ranked) {
		t.Fatalf("GetAll() = %v items, want %d (duplicates kept, streamed results hidden)", len(all), len(ranked))
	}
	for i, r := range all {
		if r.Rank != i+1 {
			t.Errorf("GetAll()[%d].Rank = %d, want %d", i, r.Rank, i+1)
		}
		if r.RoundID != "round-1" {
			t.Errorf("GetAll()[%d].RoundID = %q, want %q", i, r.RoundID, "round-1")
		}
		if r.Endpoint != ranked[i].Endpoint {
			t.Errorf("GetAll()[%d].Endpoint = %q, want %q", i, r.Endpoint, ranked[i].Endpoint)
		}
	}
	if ranked[0].Rank != 0 {
		t.Error("Replace() modified its input")
	}
	if store.RoundID() != "round-1" {
		t.Errorf("RoundID() = %q, want %q", store.RoundID(), "round-1")
	}
}

func TestMemoryStore_ReplaceSwapsRanking(t *testing.T) {
	store := NewMemoryStore()

	store.Replace("round-1", []Result{{Endpoint: "a"}, {Endpoint: "b"}})
	store.Replace("round-2", []Result{{Endpoint: "b"}})

	all := store.GetAll()
	if len(all) != 1 || all[0].Endpoint != "b" || all[0].RoundID != "round-2" {
		t.Errorf("GetAll() = %+v, want only b from round-2", all)
	}
}

func TestMemoryStore_GetAllIsSnapshot(t *testing.T) {
	store := NewMemoryStore()
	store.Replace("round-1", []Result{{Endpoint: "a", Failures: map[string]int{"timeout": 2}}})

	all := store.GetAll()
	all[0].Endpoint = "mutated"
	all[0].Failures["timeout"] = 99

	again := store.GetAll()
	if again[0].Endpoint != "a" {
		t.Errorf("Endpoint = %q, want %q", again[0].Endpoint, "a")
	}
	if again[0].Failures["timeout"] != 2 {
		t.Errorf("Failures[timeout] = %d, want 2", again[0].Failures["timeout"])
	}
}

func TestMemoryStore_Subscribe(t *testing.T) {
	store := NewMemoryStore()

	ch := store.Subscribe()
	if ch == nil {
		t.Fatal("Subscribe() = nil")
	}

	go func() {
		store.Update(Result{Endpoint: "mirror"})
	}()

	select {
	case result := <-ch:
		if result.Endpoint != "mirror" {
			t.Errorf("received Endpoint = %v, want %v", result.Endpoint, "mirror")
		}
	case <-time.After(1 * time.Second):
		t.Error("Subscribe() channel did not receive update")
	}
}

func TestMemoryStore_ReplaceDoesNotNotify(t *testing.T) {
	store := NewMemoryStore()
	ch := store.Subscribe()

	store.Replace("round-1", []Result{{Endpoint: "a"}})

	select {
	case r := <-ch:
		t.Errorf("unexpected notification for %q", r.Endpoint)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemoryStore_MultipleSubscribers(t *testing.T) {
	store := NewMemoryStore()

	ch1 := store.Subscribe()
	ch2 := store.Subscribe()
	ch3 := store.Subscribe()

	go func() {
		store.Update(Result{Endpoint: "mirror"})
	}()

	received := 0
	timeout := time.After(1 * time.Second)

	for received < 3 {
		select {
		case <-ch1:
			received++
		case <-ch2:
			received++
		case <-ch3:
			received++
		case <-timeout:
			t.Fatalf("Only received %d/3 updates", received)
		}
	}
}

func TestMemoryStore_Unsubscribe(t *testing.T) {
	store := NewMemoryStore()

	ch := store.Subscribe()
	store.Unsubscribe(ch)
	store.Unsubscribe(ch)

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("Unsubscribe() channel should be closed")
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("Unsubscribe() channel should be closed immediately")
	}
}

func TestMemoryStore_SlowSubscriberDoesNotBlock(t *testing.T) {
	store := NewMemoryStore()

	// never read
	_ = store.Subscribe()
	ch2 := store.Subscribe()

	done := make(chan bool)
	go func() {
		for i := 0; i < 2*subscriberBuffer; i++ {
			store.Update(Result{Endpoint: "mirror"})
		}
		done <- true
	}()

	go func() {
		for range ch2 {
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Error("Update() blocked on slow subscriber")
	}
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	store := NewMemoryStore()

	var wg sync.WaitGroup
	numGoroutines := 10
	numUpdates := 100

	for i := 0; i < numGoroutines; i++ {
		wg.Add(3)
		go func() {
			defer wg.Done()
			for j := 0; j < numUpdates; j++ {
				store.Update(Result{Endpoint: "mirror", Failures: map[string]int{"other": j}})
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < numUpdates; j++ {
				_ = store.GetAll()
				store.Replace("round", []Result{{Endpoint: "mirror"}})
			}
		}()
		go func() {
			defer wg.Done()
			ch := store.Subscribe()
			time.Sleep(10 * time.Millisecond)
			store.Unsubscribe(ch)
		}()
	}

	wg.Wait()
}
