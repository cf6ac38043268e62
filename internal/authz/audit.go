// Portcullis - Embeddable Authorization Decision Engine
// Copyright 2026 Portcullis Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portcullis-io/portcullis

package authz

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/portcullis-io/portcullis/internal/logging"
)

// AuditRecord captures one authorization decision for the audit trail.
type AuditRecord struct {
	// ID is a unique identifier for this record.
	ID string `json:"id"`

	// Timestamp is when the decision was made.
	Timestamp time.Time `json:"timestamp"`

	// SubjectID is the subject the check was evaluated for.
	SubjectID string `json:"subject_id"`

	// Resource and Action identify what was requested.
	Resource string `json:"resource"`
	Action   string `json:"action"`

	// Decision is true for granted, false for denied.
	Decision bool `json:"decision"`

	// Reason contextualizes the decision (especially denials).
	Reason string `json:"reason,omitempty"`

	// RoleID is the role that produced the grant, if any.
	RoleID string `json:"role_id,omitempty"`

	// Duration is how long the check took.
	Duration time.Duration `json:"duration_ns"`
}

// AuditConfig configures the audit logger.
type AuditConfig struct {
	// Enabled controls whether audit logging is active.
	Enabled bool

	// LogGranted controls whether granted decisions are recorded.
	// Set false to record denials only (reduces log volume).
	LogGranted bool

	// LogDenied controls whether denied decisions are recorded.
	LogDenied bool

	// SampleRate is the fraction of granted decisions to record (0.0 to
	// 1.0). Denials are never sampled when LogDenied is true.
	SampleRate float64

	// BufferSize is the async buffer size. Records are dropped, not
	// blocked on, when the buffer is full.
	BufferSize int
}

// DefaultAuditConfig returns production defaults.
func DefaultAuditConfig() AuditConfig {
	return AuditConfig{
		Enabled:    true,
		LogGranted: true,
		LogDenied:  true,
		SampleRate: 1.0,
		BufferSize: 1000,
	}
}

// AuditLogger writes decision records to the structured log from a
// background worker so the decision path never blocks on audit I/O.
type AuditLogger struct {
	config   AuditConfig
	records  chan *AuditRecord
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	// sampleSeq counts granted decisions seen, for counter-based sampling.
	sampleSeq atomic.Uint64
}

// NewAuditLogger creates and starts the audit logger.
func NewAuditLogger(config AuditConfig) *AuditLogger {
	if config.BufferSize <= 0 {
		config.BufferSize = 1000
	}
	if config.SampleRate <= 0 {
		config.SampleRate = 1.0
	}
	if config.SampleRate > 1.0 {
		config.SampleRate = 1.0
	}

	al := &AuditLogger{
		config:   config,
		records:  make(chan *AuditRecord, config.BufferSize),
		stopChan: make(chan struct{}),
	}

	if config.Enabled {
		al.wg.Add(1)
		go al.processRecords()
	}

	return al
}

// Record queues an authorization decision asynchronously. Non-blocking;
// records are dropped if the buffer is full.
func (al *AuditLogger) Record(record *AuditRecord) {
	if al == nil || !al.config.Enabled {
		return
	}

	if record.Decision {
		if !al.config.LogGranted {
			return
		}
		if al.config.SampleRate < 1.0 {
			// Counter-based sampling: of every 100 granted decisions,
			// keep the first SampleRate*100.
			seq := al.sampleSeq.Add(1) - 1
			if seq%100 >= uint64(al.config.SampleRate*100+0.5) {
				return
			}
		}
	} else if !al.config.LogDenied {
		return
	}

	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}

	select {
	case al.records <- record:
	default:
		logging.Warn().
			Str("subject", record.SubjectID).
			Str("resource", record.Resource).
			Msg("audit buffer full, record dropped")
	}
}

// Close stops the worker after draining buffered records.
func (al *AuditLogger) Close() {
	if al == nil {
		return
	}
	al.stopOnce.Do(func() {
		close(al.stopChan)
		al.wg.Wait()
	})
}

func (al *AuditLogger) processRecords() {
	defer al.wg.Done()

	for {
		select {
		case <-al.stopChan:
			al.drain()
			return
		case record := <-al.records:
			al.write(record)
		}
	}
}

func (al *AuditLogger) drain() {
	for {
		select {
		case record := <-al.records:
			al.write(record)
		default:
			return
		}
	}
}

func (al *AuditLogger) write(record *AuditRecord) {
	event := logging.Info().
		Str("event_type", "authz_decision").
		Str("audit_id", record.ID).
		Time("audit_timestamp", record.Timestamp).
		Str("subject_id", record.SubjectID).
		Str("resource", record.Resource).
		Str("action", record.Action).
		Bool("decision", record.Decision).
		Dur("duration", record.Duration)

	if record.Reason != "" {
		event = event.Str("reason", record.Reason)
	}
	if record.RoleID != "" {
		event = event.Str("role_id", record.RoleID)
	}

	event.Msg("authorization decision")
}
