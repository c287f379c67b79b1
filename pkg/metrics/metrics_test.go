package metrics

import (
	"bytes"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveHelpers(t *testing.T) {
	before := testutil.ToFloat64(DecisionsTotal.WithLabelValues("true"))
	ObserveDecision(true)
	if got := testutil.ToFloat64(DecisionsTotal.WithLabelValues("true")); got != before+1 {
		t.Errorf("DecisionsTotal{true}: got %v, want %v", got, before+1)
	}

	before = testutil.ToFloat64(SignalsTotal.WithLabelValues("capability", "false"))
	ObserveSignal("capability", false)
	if got := testutil.ToFloat64(SignalsTotal.WithLabelValues("capability", "false")); got != before+1 {
		t.Errorf("SignalsTotal: got %v", got)
	}

	ObserveOverride(true)
	if testutil.ToFloat64(OverridesTotal.WithLabelValues("true")) < 1 {
		t.Error("OverridesTotal{true} should be >= 1")
	}
}

func TestWritePrometheus(t *testing.T) {
	ObserveDecision(false)
	var buf bytes.Buffer
	if err := WritePrometheus(&buf); err != nil {
		t.Fatalf("WritePrometheus: %v", err)
	}
	if !strings.Contains(buf.String(), "animgate_decisions_total") {
		t.Errorf("output missing animgate_decisions_total:\n%s", buf.String())
	}
}
