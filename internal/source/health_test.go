package source

import (
	"testing"
	"time"

	"github.com/rawblock/onchain-intel/pkg/models"
)

func TestHealthTracker_StartsUp(t *testing.T) {
	h := NewHealthTracker(2, 5, time.Minute)
	if !h.IsAvailable("alpha") {
		t.Error("an unseen source should be considered available")
	}
	if status := h.Status("alpha").Status; status != models.HealthUp {
		t.Errorf("Status = %v, want up", status)
	}
}

func TestHealthTracker_DegradesAtThreshold(t *testing.T) {
	h := NewHealthTracker(2, 5, time.Minute)

	h.RecordFailure("alpha")
	if got := h.Status("alpha").Status; got != models.HealthUp {
		t.Errorf("after 1 failure, Status = %v, want still up", got)
	}

	h.RecordFailure("alpha")
	if got := h.Status("alpha").Status; got != models.HealthDegraded {
		t.Errorf("after 2 failures, Status = %v, want degraded", got)
	}
}

func TestHealthTracker_DownAndCooldown(t *testing.T) {
	h := NewHealthTracker(2, 3, 20*time.Millisecond)

	for i := 0; i < 3; i++ {
		h.RecordFailure("alpha")
	}

	if got := h.Status("alpha").Status; got != models.HealthDown {
		t.Fatalf("after 3 failures, Status = %v, want down", got)
	}
	if h.IsAvailable("alpha") {
		t.Error("a down source within cooldown must not be available")
	}

	time.Sleep(30 * time.Millisecond)
	if !h.IsAvailable("alpha") {
		t.Error("a down source should become available again after cooldown elapses")
	}
}

func TestHealthTracker_SuccessResetsFailures(t *testing.T) {
	h := NewHealthTracker(2, 5, time.Minute)

	h.RecordFailure("alpha")
	h.RecordFailure("alpha")
	h.RecordSuccess("alpha", 10*time.Millisecond)

	status := h.Status("alpha")
	if status.Status != models.HealthUp {
		t.Errorf("Status after success = %v, want up", status.Status)
	}
	if status.ConsecutiveFailures != 0 {
		t.Errorf("ConsecutiveFailures after success = %d, want 0", status.ConsecutiveFailures)
	}
}

func TestHealthTracker_EMAResponseTime(t *testing.T) {
	h := NewHealthTracker(2, 5, time.Minute)

	h.RecordSuccess("alpha", 100*time.Millisecond)
	first := h.Status("alpha").EMAResponseTimeMS
	if first != 100 {
		t.Fatalf("first EMA = %v, want 100 (seeded from first sample)", first)
	}

	h.RecordSuccess("alpha", 200*time.Millisecond)
	second := h.Status("alpha").EMAResponseTimeMS
	want := 0.9*100 + 0.1*200
	if second != want {
		t.Errorf("second EMA = %v, want %v", second, want)
	}
}

func TestHealthTracker_AllReportsEverySeenSource(t *testing.T) {
	h := NewHealthTracker(2, 5, time.Minute)
	h.RecordSuccess("alpha", time.Millisecond)
	h.RecordFailure("beta")

	all := h.All()
	if len(all) != 2 {
		t.Fatalf("All() returned %d entries, want 2", len(all))
	}
}
