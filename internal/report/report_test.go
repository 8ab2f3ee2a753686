package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestRecordConcurrent(t *testing.T) {
	s := NewStats()
	var wg sync.WaitGroup
	numGoroutines := 10
	recordsPerGoroutine := 100

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < recordsPerGoroutine; j++ {
				s.Record("user_history", time.Millisecond, nil)
				s.Record("purchases_by_city", 2*time.Millisecond, nil)
			}
		}()
	}
	wg.Wait()

	all := s.All()
	if len(all) != 2 {
		t.Fatalf("expected 2 operations, got %d", len(all))
	}
	want := int64(numGoroutines * recordsPerGoroutine)
	for _, op := range all {
		if op.Count != want {
			t.Errorf("expected %d runs for %s, got %d", want, op.Name, op.Count)
		}
	}
}

func TestRecordMinMaxMean(t *testing.T) {
	s := NewStats()
	s.Record("q1", 10*time.Millisecond, nil)
	s.Record("q1", 30*time.Millisecond, nil)
	s.Record("q1", time.Hour, errors.New("timeout"))

	op, ok := s.Get("q1")
	if !ok {
		t.Fatal("q1 not recorded")
	}
	if op.Count != 2 || op.Errors != 1 {
		t.Errorf("count=%d errors=%d, want 2 and 1", op.Count, op.Errors)
	}
	if op.Min != 10*time.Millisecond || op.Max != 30*time.Millisecond {
		t.Errorf("min=%v max=%v", op.Min, op.Max)
	}
	if op.Mean() != 20*time.Millisecond {
		t.Errorf("mean=%v, want 20ms", op.Mean())
	}
	if _, ok := s.Get("missing"); ok {
		t.Error("unexpected stats for unknown operation")
	}
}

func TestSlowestOrdering(t *testing.T) {
	s := NewStats()
	s.Record("fast", time.Millisecond, nil)
	s.Record("slow", 20*time.Millisecond, nil)
	s.Record("medium", 5*time.Millisecond, nil)

	top := s.Slowest(2)
	if len(top) != 2 || top[0].Name != "slow" || top[1].Name != "medium" {
		t.Errorf("unexpected order: %+v", top)
	}
	if got := s.Slowest(0); len(got) != 0 {
		t.Errorf("Slowest(0) returned %d entries", len(got))
	}

	// All keeps first-recorded order.
	all := s.All()
	if all[0].Name != "fast" || all[2].Name != "medium" {
		t.Errorf("unexpected insertion order: %v, %v", all[0].Name, all[2].Name)
	}
}

func TestPruneRemovesOldEntries(t *testing.T) {
	s := NewStats()
	s.Record("old", time.Millisecond, nil)
	time.Sleep(150 * time.Millisecond)
	s.Record("new", time.Millisecond, nil)

	s.Prune(100 * time.Millisecond)

	if _, ok := s.Get("old"); ok {
		t.Error("expected old entry to be pruned")
	}
	if _, ok := s.Get("new"); !ok {
		t.Error("expected new entry to remain")
	}
	if len(s.All()) != 1 {
		t.Errorf("expected 1 entry after prune, got %d", len(s.All()))
	}
}

func TestTime(t *testing.T) {
	s := NewStats()
	boom := errors.New("boom")
	err := s.Time(context.Background(), "delete", func(context.Context) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected fn error, got %v", err)
	}
	if err := s.Time(context.Background(), "delete", func(context.Context) error { return nil }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	op, _ := s.Get("delete")
	if op.Count != 1 || op.Errors != 1 {
		t.Errorf("count=%d errors=%d", op.Count, op.Errors)
	}
}

func TestMeanOf(t *testing.T) {
	calls := 0
	mean, err := MeanOf(context.Background(), 3, func(context.Context) error {
		calls++
		time.Sleep(2 * time.Millisecond)
		return nil
	})
	if err != nil {
		t.Fatalf("MeanOf failed: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
	if mean < 2*time.Millisecond {
		t.Errorf("mean %v shorter than each run", mean)
	}

	if _, err := MeanOf(context.Background(), 0, nil); err == nil {
		t.Error("expected error for zero runs")
	}

	calls = 0
	_, err = MeanOf(context.Background(), 5, func(context.Context) error {
		calls++
		if calls == 2 {
			return errors.New("query failed")
		}
		return nil
	})
	if err == nil || calls != 2 {
		t.Errorf("expected abort on second run, err=%v calls=%d", err, calls)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := MeanOf(ctx, 1, func(context.Context) error { return nil }); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestRenderTable(t *testing.T) {
	s := NewStats()
	s.Record("user_history", 1500*time.Microsecond, nil)

	var buf bytes.Buffer
	headers, rows := s.Rows()
	RenderTable(&buf, headers, rows)
	out := buf.String()
	for _, want := range []string{"Operation", "Mean (ms)", "user_history", "1.50"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	RenderTable(&buf, headers, nil)
	if buf.Len() != 0 {
		t.Errorf("expected no output for empty rows, got %q", buf.String())
	}
}

func TestRenderJSON(t *testing.T) {
	var buf bytes.Buffer
	err := RenderJSON(&buf, []string{"city", "purchases"}, [][]string{{"Lahore", "12"}, {"Karachi", "7"}})
	if err != nil {
		t.Fatalf("RenderJSON failed: %v", err)
	}
	var got []map[string]string
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(got) != 2 || got[1]["city"] != "Karachi" || got[0]["purchases"] != "12" {
		t.Errorf("unexpected JSON: %v", got)
	}
}
