package metrics

import (
	"sync"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	c := New()
	if c == nil {
		t.Fatal("New() returned nil")
	}
}

func TestCollector_ProbeCounters(t *testing.T) {
	c := New()

	c.RecordPlanned(5)
	c.RecordDeduped()
	c.RecordIssued()
	c.RecordIssued()
	c.RecordIssued()
	c.RecordSuccess()
	c.RecordSuppressed()
	c.RecordUnexpected()
	c.RecordSkipped()

	snap := c.Snapshot()
	if snap.ProbesPlanned != 5 {
		t.Errorf("ProbesPlanned = %d, want 5", snap.ProbesPlanned)
	}
	if snap.ProbesDeduped != 1 {
		t.Errorf("ProbesDeduped = %d, want 1", snap.ProbesDeduped)
	}
	if snap.ProbesIssued != 3 {
		t.Errorf("ProbesIssued = %d, want 3", snap.ProbesIssued)
	}
	if snap.ProbesSucceeded != 1 {
		t.Errorf("ProbesSucceeded = %d, want 1", snap.ProbesSucceeded)
	}
	if snap.Suppressed != 1 || snap.Unexpected != 1 {
		t.Errorf("Suppressed = %d, Unexpected = %d, want 1 each", snap.Suppressed, snap.Unexpected)
	}
	if snap.ProbesSkipped != 1 {
		t.Errorf("ProbesSkipped = %d, want 1", snap.ProbesSkipped)
	}
}

func TestCollector_ScanCounters(t *testing.T) {
	c := New()

	c.RecordScan()
	c.RecordCandidates(12)
	c.RecordDescriptorHit()
	c.RecordEndpoints(4)
	c.RecordBytes(1024)

	snap := c.Snapshot()
	if snap.Scans != 1 || snap.Candidates != 12 || snap.DescriptorHits != 1 || snap.Endpoints != 4 {
		t.Errorf("unexpected snapshot: %+v", snap)
	}
	if snap.BytesTotal != 1024 {
		t.Errorf("BytesTotal = %d, want 1024", snap.BytesTotal)
	}
}

func TestCollector_RecordResponseTime(t *testing.T) {
	c := New()

	c.RecordResponseTime(100 * time.Millisecond)
	c.RecordResponseTime(200 * time.Millisecond)
	c.RecordResponseTime(300 * time.Millisecond)

	snap := c.Snapshot()
	if avgMs := snap.AverageResponseTime.Milliseconds(); avgMs != 200 {
		t.Errorf("AverageResponseTime = %dms, want 200ms", avgMs)
	}
}

func TestCollector_RecordResponseTime_Empty(t *testing.T) {
	if got := New().GetAverageResponseTime(); got != 0 {
		t.Errorf("GetAverageResponseTime() = %v, want 0", got)
	}
}

func TestCollector_RecordStatusCode(t *testing.T) {
	c := New()

	c.RecordStatusCode(200)
	c.RecordStatusCode(200)
	c.RecordStatusCode(404)

	snap := c.Snapshot()
	if snap.StatusCodes[200] != 2 {
		t.Errorf("StatusCodes[200] = %d, want 2", snap.StatusCodes[200])
	}
	if snap.StatusCodes[404] != 1 {
		t.Errorf("StatusCodes[404] = %d, want 1", snap.StatusCodes[404])
	}
}

func TestCollector_Add(t *testing.T) {
	scan := New()
	scan.RecordScan()
	scan.RecordIssued()
	scan.RecordIssued()
	scan.RecordSuccess()
	scan.RecordStatusCode(200)
	scan.RecordResponseTime(40 * time.Millisecond)

	total := New()
	total.Add(scan.Snapshot())
	total.Add(scan.Snapshot())

	snap := total.Snapshot()
	if snap.Scans != 2 {
		t.Errorf("Scans = %d, want 2", snap.Scans)
	}
	if snap.ProbesIssued != 4 {
		t.Errorf("ProbesIssued = %d, want 4", snap.ProbesIssued)
	}
	if snap.StatusCodes[200] != 2 {
		t.Errorf("StatusCodes[200] = %d, want 2", snap.StatusCodes[200])
	}
	if avg := snap.AverageResponseTime.Milliseconds(); avg != 40 {
		t.Errorf("AverageResponseTime = %dms, want 40ms", avg)
	}
}

func TestSnapshot_FailureRate(t *testing.T) {
	tests := []struct {
		name string
		snap Snapshot
		want float64
	}{
		{"no probes", Snapshot{}, 0},
		{"all failed", Snapshot{ProbesIssued: 4, Suppressed: 3, Unexpected: 1}, 1},
		{"half failed", Snapshot{ProbesIssued: 4, Suppressed: 2}, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.snap.FailureRate(); got != tt.want {
				t.Errorf("FailureRate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSnapshot_Summary(t *testing.T) {
	c := New()
	c.RecordIssued()
	c.RecordSuppressed()

	summary := c.Snapshot().Summary()
	if summary["probes_issued"] != int64(1) {
		t.Errorf("probes_issued = %v", summary["probes_issued"])
	}
	if summary["failure_rate"] != float64(1) {
		t.Errorf("failure_rate = %v", summary["failure_rate"])
	}
}

func TestCollector_Concurrent(t *testing.T) {
	c := New()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c.RecordIssued()
			c.RecordStatusCode(200 + i%2)
			c.RecordResponseTime(time.Millisecond)
		}(i)
	}
	wg.Wait()

	snap := c.Snapshot()
	if snap.ProbesIssued != 50 {
		t.Errorf("ProbesIssued = %d, want 50", snap.ProbesIssued)
	}
	if snap.StatusCodes[200]+snap.StatusCodes[201] != 50 {
		t.Errorf("StatusCodes = %v", snap.StatusCodes)
	}
}
