// Package health provides health check and monitoring for hostelmon.
//
// This package implements:
//   - The /health JSON endpoint
//   - Intake and lifecycle counters
//   - Uptime monitoring
package health

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"hostelmon/internal/complaint"
	"hostelmon/internal/notify"
)

// Status is returned by the /health endpoint for monitoring tools.
//
// Fields:
//   - Status: Overall health status ("healthy")
//   - Uptime: How long the application has been running
//   - LastIntakeTime: When the last inbound message was processed
//   - LastIntakeStatus: "success", "ignored" or the error message
//   - Created / Resolved: lifecycle events seen since start
//   - Delivery: notification dispatcher counters, when wired
type Status struct {
	Status           string        `json:"status"`
	Uptime           string        `json:"uptime"`
	LastIntakeTime   string        `json:"last_intake_time"`
	LastIntakeStatus string        `json:"last_intake_status"`
	Created          int64         `json:"complaints_created"`
	Resolved         int64         `json:"complaints_resolved"`
	IntakeFailures   int64         `json:"intake_failures"`
	Delivery         *notify.Stats `json:"delivery,omitempty"`
}

// StatsFunc reports delivery counters.
type StatsFunc func() notify.Stats

// Monitor tracks application health metrics.
//
// All fields are protected by mu; updates come from HTTP handlers, the
// Telegram loop and the publisher concurrently.
type Monitor struct {
	startTime        time.Time
	lastIntakeTime   time.Time
	lastIntakeStatus string
	created          int64
	resolved         int64
	intakeFailures   int64
	delivery         StatsFunc
	mu               sync.RWMutex
}

// NewMonitor creates a new health monitor. delivery may be nil.
func NewMonitor(delivery StatsFunc) *Monitor {
	return &Monitor{
		startTime:        time.Now(),
		lastIntakeStatus: "not started",
		delivery:         delivery,
	}
}

// RecordIntake updates the intake status after an inbound message.
//
// created is false for blank or non-text messages that were ignored.
func (m *Monitor) RecordIntake(created bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastIntakeTime = time.Now()
	switch {
	case err != nil:
		m.lastIntakeStatus = "error: " + err.Error()
		m.intakeFailures++
	case created:
		m.lastIntakeStatus = "success"
	default:
		m.lastIntakeStatus = "ignored"
	}
}

// Tap returns a Publisher that counts lifecycle events before handing
// them to next. next may be nil.
func (m *Monitor) Tap(next complaint.Publisher) complaint.Publisher {
	return &tap{monitor: m, next: next}
}

type tap struct {
	monitor *Monitor
	next    complaint.Publisher
}

func (t *tap) Publish(ev complaint.Event) {
	t.monitor.mu.Lock()
	switch ev.Type {
	case complaint.EventCreated:
		t.monitor.created++
	case complaint.EventResolved:
		t.monitor.resolved++
	}
	t.monitor.mu.Unlock()

	if t.next != nil {
		t.next.Publish(ev)
	}
}

// GetStatus returns the current health status.
func (m *Monitor) GetStatus() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := Status{
		Status:           "healthy",
		Uptime:           time.Since(m.startTime).Round(time.Second).String(),
		LastIntakeStatus: m.lastIntakeStatus,
		Created:          m.created,
		Resolved:         m.resolved,
		IntakeFailures:   m.intakeFailures,
	}
	if !m.lastIntakeTime.IsZero() {
		s.LastIntakeTime = m.lastIntakeTime.Format("2006-01-02 15:04:05")
	}
	if m.delivery != nil {
		d := m.delivery()
		s.Delivery = &d
	}
	return s
}

// Handler serves GET /health.
//
// Example response:
//
//	{
//	  "status": "healthy",
//	  "uptime": "1h2m3s",
//	  "last_intake_time": "2026-01-15 10:30:00",
//	  "last_intake_status": "success",
//	  "complaints_created": 12,
//	  "complaints_resolved": 9,
//	  "intake_failures": 0,
//	  "delivery": {"delivered": 30, "failed": 1, "dropped": 0}
//	}
func (m *Monitor) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(m.GetStatus())
	}
}
