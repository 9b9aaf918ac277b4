package pd3

import (
	"testing"
	"time"
)

func TestParseScheduleBasic(t *testing.T) {
	now := time.Unix(1000, 0)
	sched, err := parseSchedule("d,1;hr,5,0;h,5,2.5", now)
	if err != nil {
		t.Fatalf("parseSchedule error: %v", err)
	}
	if sched.parallelism() != 3 {
		t.Fatalf("parallelism = %d, want 3", sched.parallelism())
	}
	if sched.items[0].interval != time.Second {
		t.Errorf("items[0].interval = %v, want 1s", sched.items[0].interval)
	}
	if sched.items[2].interval != 5*time.Second {
		t.Errorf("items[2].interval = %v, want 5s", sched.items[2].interval)
	}
}

func TestParseScheduleRejectsMalformed(t *testing.T) {
	if _, err := parseSchedule("d", time.Now()); err == nil {
		t.Errorf("expected an error for a schedule entry missing an interval")
	}
	if _, err := parseSchedule("d,notanumber", time.Now()); err == nil {
		t.Errorf("expected an error for a non-numeric interval")
	}
}

func TestScheduleDueAndReset(t *testing.T) {
	now := time.Unix(1000, 0)
	sched, err := parseSchedule("d,1", now)
	if err != nil {
		t.Fatalf("parseSchedule error: %v", err)
	}
	if outlets := sched.due(0, now); outlets != nil {
		t.Errorf("should not be due immediately after creation")
	}
	later := now.Add(2300 * time.Millisecond)
	if outlets := sched.due(0, later); outlets == nil {
		t.Errorf("should be due 2.3s after a 1s-interval schedule was created")
	}
	sched.reset(0, later)
	soon := later.Add(500 * time.Millisecond)
	if outlets := sched.due(0, soon); outlets != nil {
		t.Errorf("should not be due again until the next interval boundary after the reset point")
	}
}
