// Copyright (C) 2025 Waypoint Labs (ktresler@waypointlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMetrics(t *testing.T) *Metrics {
	t.Helper()
	return NewMetrics(prometheus.NewRegistry())
}

func TestRecordRequest(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordRequest(EndpointGenerate, true)
	m.RecordRequest(EndpointGenerate, true)
	m.RecordRequest(EndpointGenerate, false)
	m.RecordRequest(EndpointValidate, true)

	assert.Equal(t, 2.0, testutil.ToFloat64(
		m.RequestsTotal.WithLabelValues("generate", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(
		m.RequestsTotal.WithLabelValues("generate", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(
		m.RequestsTotal.WithLabelValues("validate", "success")))
}

func TestRecordReply(t *testing.T) {
	m := newTestMetrics(t)

	// One clean reply, then one that exhausted the attempt cap.
	m.RecordReply("DUMP", 1, nil, false)
	m.RecordReply("DUMP", 3, []string{"questions", "advice"}, true)

	assert.Equal(t, 4.0, testutil.ToFloat64(
		m.ReplyAttemptsTotal.WithLabelValues("DUMP")))
	assert.Equal(t, 1.0, testutil.ToFloat64(
		m.PhaseViolationsTotal.WithLabelValues("DUMP", "questions")))
	assert.Equal(t, 1.0, testutil.ToFloat64(
		m.PhaseViolationsTotal.WithLabelValues("DUMP", "advice")))
	assert.Equal(t, 1.0, testutil.ToFloat64(
		m.DegradedRepliesTotal.WithLabelValues("DUMP")))
}

func TestSessionGauge(t *testing.T) {
	m := newTestMetrics(t)

	m.SessionCreated()
	m.SessionCreated()
	m.SessionRemoved()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActiveSessions))
}

func TestRecordLLMError(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordLLMError("openai", "RATE_LIMITED")
	m.RecordLLMError("openai", "RATE_LIMITED")

	assert.Equal(t, 2.0, testutil.ToFloat64(
		m.LLMErrorsTotal.WithLabelValues("openai", "RATE_LIMITED")))
}

func TestRecordPersistFailure(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordPersistFailure("decision")
	assert.Equal(t, 1.0, testutil.ToFloat64(
		m.PersistFailuresTotal.WithLabelValues("decision")))
}

func TestIsolatedRegistriesDoNotCollide(t *testing.T) {
	// Two instances on separate registries must both register cleanly.
	require.NotPanics(t, func() {
		NewMetrics(prometheus.NewRegistry())
		NewMetrics(prometheus.NewRegistry())
	})
}
