package registry

import (
	"math"
	"sync"
	"testing"
)

func TestUpsertAndList(t *testing.T) {
	r := New()

	level, isUpdate, _, err := r.Upsert(1, "btcusdt", 115000)
	if err != nil {
		t.Fatalf("upsert returned error: %v", err)
	}
	if isUpdate {
		t.Fatal("first upsert reported as update")
	}
	if level.Symbol != "BTCUSDT" {
		t.Fatalf("symbol not normalized, got %s", level.Symbol)
	}
	if level.CreatedAt.IsZero() {
		t.Fatal("created_at not set")
	}

	levels := r.List(1)
	if len(levels) != 1 {
		t.Fatalf("list got %d levels, want 1", len(levels))
	}
	if levels[0].TargetPrice != 115000 {
		t.Fatalf("target price got %f, want 115000", levels[0].TargetPrice)
	}
}

func TestUpsertReplacesExisting(t *testing.T) {
	r := New()

	r.Upsert(1, "SOLUSDT", 100)
	level, isUpdate, prev, err := r.Upsert(1, "SOLUSDT", 90)
	if err != nil {
		t.Fatalf("second upsert returned error: %v", err)
	}
	if !isUpdate {
		t.Fatal("second upsert not reported as update")
	}
	if prev != 100 {
		t.Fatalf("previous price got %f, want 100", prev)
	}
	if level.TargetPrice != 90 {
		t.Fatalf("stored price got %f, want 90", level.TargetPrice)
	}

	if levels := r.List(1); len(levels) != 1 || levels[0].TargetPrice != 90 {
		t.Fatalf("list after update: %+v", levels)
	}
}

func TestUpsertValidation(t *testing.T) {
	r := New()

	tests := []struct {
		name    string
		symbol  string
		price   float64
		wantErr error
	}{
		{"empty symbol", "", 100, ErrEmptySymbol},
		{"whitespace symbol", "   ", 100, ErrEmptySymbol},
		{"zero price", "BTCUSDT", 0, ErrInvalidPrice},
		{"negative price", "BTCUSDT", -5, ErrInvalidPrice},
		{"nan price", "BTCUSDT", math.NaN(), ErrInvalidPrice},
		{"inf price", "BTCUSDT", math.Inf(1), ErrInvalidPrice},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, _, err := r.Upsert(1, tt.symbol, tt.price); err != tt.wantErr {
				t.Fatalf("got %v, want %v", err, tt.wantErr)
			}
		})
	}

	if r.Count() != 0 {
		t.Fatalf("registry mutated by rejected upserts, count %d", r.Count())
	}
}

func TestRemove(t *testing.T) {
	r := New()
	r.Upsert(1, "ETHUSDT", 3200)

	removed := r.Remove(1, "ethusdt")
	if removed == nil || removed.Symbol != "ETHUSDT" {
		t.Fatalf("remove got %+v", removed)
	}
	if r.Remove(1, "ETHUSDT") != nil {
		t.Fatal("second remove should return nil")
	}
	if len(r.List(1)) != 0 {
		t.Fatal("level still listed after removal")
	}
}

func TestListInsertionOrder(t *testing.T) {
	r := New()
	r.Upsert(1, "AAA", 1)
	r.Upsert(1, "BBB", 2)
	r.Upsert(1, "CCC", 3)
	r.Remove(1, "BBB")
	r.Upsert(1, "BBB", 4)
	r.Upsert(1, "AAA", 5) // update keeps original position

	var got []string
	for _, level := range r.List(1) {
		got = append(got, level.Symbol)
	}
	want := []string{"AAA", "CCC", "BBB"}
	if len(got) != len(want) {
		t.Fatalf("order got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order got %v, want %v", got, want)
		}
	}
}

func TestSnapshotAllIsolatedFromMutation(t *testing.T) {
	r := New()
	r.Upsert(1, "BTCUSDT", 100)
	r.Upsert(2, "ETHUSDT", 200)

	snapshot := r.SnapshotAll()
	if len(snapshot) != 2 {
		t.Fatalf("snapshot got %d entries, want 2", len(snapshot))
	}

	r.Remove(1, "BTCUSDT")
	r.Upsert(2, "ETHUSDT", 999)

	for _, entry := range snapshot {
		switch entry.Level.Symbol {
		case "BTCUSDT":
			if entry.Level.TargetPrice != 100 {
				t.Fatal("snapshot entry changed after removal")
			}
		case "ETHUSDT":
			if entry.Level.TargetPrice != 200 {
				t.Fatal("snapshot entry changed after update")
			}
		}
	}
}

func TestPopIf(t *testing.T) {
	r := New()
	r.Upsert(1, "SOLUSDT", 145)

	atOrBelow := func(target float64) func(float64) bool {
		return func(current float64) bool { return current <= target }
	}

	if popped := r.PopIf(1, "SOLUSDT", atOrBelow(145), 150); popped != nil {
		t.Fatal("predicate declined but level was popped")
	}
	if len(r.List(1)) != 1 {
		t.Fatal("level vanished after declined pop")
	}

	popped := r.PopIf(1, "SOLUSDT", atOrBelow(145), 140)
	if popped == nil || popped.TargetPrice != 145 {
		t.Fatalf("pop got %+v", popped)
	}
	if r.PopIf(1, "SOLUSDT", atOrBelow(145), 140) != nil {
		t.Fatal("second pop should observe already absent")
	}
}

func TestPopIfConcurrentSingleWinner(t *testing.T) {
	r := New()

	for i := 0; i < 100; i++ {
		r.Upsert(7, "BTCUSDT", 100)

		var wg sync.WaitGroup
		wins := make(chan struct{}, 2)
		for g := 0; g < 2; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if r.PopIf(7, "BTCUSDT", func(p float64) bool { return p <= 100 }, 95) != nil {
					wins <- struct{}{}
				}
			}()
		}
		wg.Wait()
		close(wins)

		var count int
		for range wins {
			count++
		}
		if count != 1 {
			t.Fatalf("iteration %d: %d winners, want exactly 1", i, count)
		}
	}
}

func TestConcurrentMutationWhileSnapshotting(t *testing.T) {
	r := New()
	done := make(chan struct{})

	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			r.Upsert(int64(i%5), "BTCUSDT", float64(i+1))
			r.Remove(int64(i%5), "BTCUSDT")
		}
	}()

	for i := 0; i < 500; i++ {
		for _, entry := range r.SnapshotAll() {
			if entry.Level.Symbol != "BTCUSDT" {
				t.Fatalf("corrupt snapshot entry: %+v", entry)
			}
		}
	}
	<-done
}
