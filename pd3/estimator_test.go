package pd3

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestEstimatorEndToEnd(t *testing.T) {
	var (
		mu      sync.Mutex
		reports []Report
	)
	cfg := DefaultConfig()
	cfg.PeriodInterval = 20 * time.Millisecond
	cfg.Report = func(r Report) {
		mu.Lock()
		reports = append(reports, r)
		mu.Unlock()
	}

	est, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer est.Close()

	ctx := context.Background()
	flow := Key{1, 1}
	for s := Seqno(1); s <= 20; s++ {
		if err := est.PushPacketInfo(ctx, PacketInfo{FlowKey: flow, Seqno: s}); err != nil {
			t.Fatalf("PushPacketInfo: %v", err)
		}
	}

	if err := est.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	// give the reporter goroutine a moment to process the handed-off period
	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := len(reports)
		mu.Unlock()
		if n > 0 || time.Now().After(deadline) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(reports) == 0 {
		t.Fatalf("expected at least one report after Flush")
	}
	found := false
	for _, r := range reports {
		if r.FlowKey == flow {
			found = true
			if r.Loss.Received != 20 {
				t.Errorf("Loss.Received = %d, want 20", r.Loss.Received)
			}
		}
	}
	if !found {
		t.Errorf("no report seen for the pushed flow")
	}
}

func TestEstimatorRejectsBadSchedule(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ReportSchedule = "garbage-no-interval"
	if _, err := New(cfg); err == nil {
		t.Errorf("expected New to reject a malformed report schedule")
	}
}
