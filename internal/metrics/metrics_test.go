package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestRegisterOnFreshRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	Register(reg)

	StreamBytesTotal.WithLabelValues("local").Add(10)
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	found := false
	for _, family := range families {
		if family.GetName() == "relay_stream_bytes_total" {
			found = true
		}
	}
	if !found {
		t.Fatal("relay_stream_bytes_total not registered")
	}
}

func TestRegisterTwicePanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	Register(reg)
	defer func() {
		if recover() == nil {
			t.Fatal("expected duplicate registration to panic")
		}
	}()
	Register(reg)
}
