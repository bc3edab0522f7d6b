package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveBroadcast("session", 1, 1)
		m.ClientConnected()
		m.ClientDisconnected()
		m.ObserveAdmission("join", nil)
		m.ObserveUtterance()
		m.ObserveEnqueueFailure()
		m.ObserveFeedback()
		m.ObserveCompletion("ok", 0.5)
		m.ObserveReports(3)
		m.ObserveSweep()
		m.ObserveSweepOutcome("deleted")
		m.ObserveAudit("FORCE_END_SESSION", nil)
	})
}

func TestObserveAdmissionOutcome(t *testing.T) {
	m := New()

	m.ObserveAdmission("join", nil)
	m.ObserveAdmission("join", nil)
	m.ObserveAdmission("join", errors.New("boom"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.AdmissionOps.WithLabelValues("join", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AdmissionOps.WithLabelValues("join", "error")))
}

func TestObserveBroadcastSkipsZeroDrops(t *testing.T) {
	m := New()

	m.ObserveBroadcast("global", 4, 0)
	m.ObserveBroadcast("global", 1, 2)

	assert.Equal(t, 5.0, testutil.ToFloat64(m.BroadcastDelivered.WithLabelValues("global")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.BroadcastDropped))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.BroadcastDropped.WithLabelValues("global")))
}

func TestObserveCompletionByResult(t *testing.T) {
	m := New()

	m.ObserveCompletion("fallback", 0)
	m.ObserveCompletion("ok", 0.25)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CompletionRequests.WithLabelValues("fallback")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CompletionRequests.WithLabelValues("ok")))
}

func TestRegistryGathersNamespacedFamilies(t *testing.T) {
	m := New()
	m.ObserveSweep()

	families, err := m.Registry().Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["groupcall_expiry_sweeps_total"])
	assert.True(t, names["go_goroutines"], "runtime collectors should be registered")
}
