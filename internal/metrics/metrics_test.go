package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordPrune(t *testing.T) {
	before := testutil.ToFloat64(PruneDeleted)
	RecordPrune(42, time.Now().Add(-time.Second))
	if got := testutil.ToFloat64(PruneDeleted) - before; got != 42 {
		t.Errorf("PruneDeleted grew by %v, want 42", got)
	}
}

func TestCounterVecsAcceptLabels(t *testing.T) {
	before := testutil.ToFloat64(WriteFailures.WithLabelValues("sync"))
	WriteFailures.WithLabelValues("sync").Inc()
	if got := testutil.ToFloat64(WriteFailures.WithLabelValues("sync")) - before; got != 1 {
		t.Errorf("WriteFailures grew by %v, want 1", got)
	}
	EntriesCaptured.WithLabelValues("error").Inc()
	EntriesSkipped.WithLabelValues("duplicate").Inc()
	RecordQuery(time.Now())
}
