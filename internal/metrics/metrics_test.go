package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestOutcome(t *testing.T) {
	if Outcome(true) != "allow" {
		t.Fatal("Outcome(true) should be allow")
	}
	if Outcome(false) != "deny" {
		t.Fatal("Outcome(false) should be deny")
	}
}

func TestLoginCounterGathers(t *testing.T) {
	LoginsTotal.WithLabelValues("allow").Inc()
	LoginsTotal.WithLabelValues("deny").Inc()
	LoginsTotal.WithLabelValues("deny").Inc()

	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatal(err)
	}

	var logins *dto.MetricFamily
	for _, mf := range families {
		if mf.GetName() == "buildgate_logins_total" {
			logins = mf
			break
		}
	}
	if logins == nil {
		t.Fatal("buildgate_logins_total not registered")
	}

	byOutcome := map[string]float64{}
	for _, m := range logins.GetMetric() {
		for _, label := range m.GetLabel() {
			if label.GetName() == "outcome" {
				byOutcome[label.GetValue()] = m.GetCounter().GetValue()
			}
		}
	}
	if byOutcome["allow"] < 1 {
		t.Fatalf("allow count = %v, want >= 1", byOutcome["allow"])
	}
	if byOutcome["deny"] < 2 {
		t.Fatalf("deny count = %v, want >= 2", byOutcome["deny"])
	}
}
