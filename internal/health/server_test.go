package health

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"hostelmon/internal/complaint"
	"hostelmon/internal/notify"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingPublisher struct{ n int }

func (c *countingPublisher) Publish(complaint.Event) { c.n++ }

func TestMonitorInitialStatus(t *testing.T) {
	m := NewMonitor(nil)
	s := m.GetStatus()

	assert.Equal(t, "healthy", s.Status)
	assert.Equal(t, "not started", s.LastIntakeStatus)
	assert.Empty(t, s.LastIntakeTime)
	assert.Nil(t, s.Delivery)
}

func TestRecordIntake(t *testing.T) {
	m := NewMonitor(nil)

	m.RecordIntake(true, nil)
	assert.Equal(t, "success", m.GetStatus().LastIntakeStatus)
	assert.NotEmpty(t, m.GetStatus().LastIntakeTime)

	m.RecordIntake(false, nil)
	assert.Equal(t, "ignored", m.GetStatus().LastIntakeStatus)

	m.RecordIntake(false, errors.New("db down"))
	s := m.GetStatus()
	assert.Equal(t, "error: db down", s.LastIntakeStatus)
	assert.Equal(t, int64(1), s.IntakeFailures)
}

func TestTapCountsAndForwards(t *testing.T) {
	next := &countingPublisher{}
	m := NewMonitor(nil)
	p := m.Tap(next)

	p.Publish(complaint.Event{Type: complaint.EventCreated})
	p.Publish(complaint.Event{Type: complaint.EventCreated})
	p.Publish(complaint.Event{Type: complaint.EventResolved})

	s := m.GetStatus()
	assert.Equal(t, int64(2), s.Created)
	assert.Equal(t, int64(1), s.Resolved)
	assert.Equal(t, 3, next.n)

	assert.NotPanics(t, func() {
		m.Tap(nil).Publish(complaint.Event{Type: complaint.EventCreated})
	})
}

func TestHandler(t *testing.T) {
	m := NewMonitor(func() notify.Stats { return notify.Stats{Delivered: 4, Failed: 1} })

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	delivery := body["delivery"].(map[string]any)
	assert.Equal(t, float64(4), delivery["delivered"])
	assert.Equal(t, float64(1), delivery["failed"])
}
