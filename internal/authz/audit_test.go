// Portcullis - Embeddable Authorization Decision Engine
// Copyright 2026 Portcullis Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portcullis-io/portcullis

package authz

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/portcullis-io/portcullis/internal/logging"
)

// syncBuffer is a goroutine-safe log capture target: the audit worker
// writes from its own goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) Lines(t *testing.T) []map[string]interface{} {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(b.buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]interface{}
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("unmarshal log line %q: %v", line, err)
		}
		out = append(out, entry)
	}
	return out
}

// captureLog swaps the global logger for a JSON buffer for the test's
// duration.
func captureLog(t *testing.T) *syncBuffer {
	t.Helper()
	buf := &syncBuffer{}
	logging.Init(logging.Config{Level: "info", Format: "json", Output: buf})
	t.Cleanup(func() { logging.Init(logging.DefaultConfig()) })
	return buf
}

func TestAuditLogger_RecordsDecisions(t *testing.T) {
	buf := captureLog(t)

	audit := NewAuditLogger(DefaultAuditConfig())
	audit.Record(&AuditRecord{
		SubjectID: "u1",
		Resource:  "project:1",
		Action:    "read",
		Decision:  true,
		RoleID:    RoleViewer,
		Duration:  42 * time.Microsecond,
	})
	audit.Record(&AuditRecord{
		SubjectID: "u2",
		Resource:  "billing:invoice-1",
		Action:    "write",
		Decision:  false,
		Reason:    ReasonPolicyDeny,
	})
	audit.Close()

	lines := buf.Lines(t)
	if len(lines) != 2 {
		t.Fatalf("audit log lines = %d, want 2", len(lines))
	}

	granted := lines[0]
	if granted["event_type"] != "authz_decision" || granted["subject_id"] != "u1" ||
		granted["decision"] != true || granted["role_id"] != RoleViewer {
		t.Errorf("granted record = %v", granted)
	}
	if granted["audit_id"] == "" || granted["audit_id"] == nil {
		t.Error("granted record missing audit_id")
	}

	denied := lines[1]
	if denied["decision"] != false || denied["reason"] != ReasonPolicyDeny {
		t.Errorf("denied record = %v", denied)
	}
	if _, ok := denied["role_id"]; ok {
		t.Error("denied record should omit role_id")
	}
}

func TestAuditLogger_DeniedOnly(t *testing.T) {
	buf := captureLog(t)

	cfg := DefaultAuditConfig()
	cfg.LogGranted = false
	audit := NewAuditLogger(cfg)

	audit.Record(&AuditRecord{SubjectID: "u1", Decision: true})
	audit.Record(&AuditRecord{SubjectID: "u2", Decision: false, Reason: ReasonNoRoles})
	audit.Close()

	lines := buf.Lines(t)
	if len(lines) != 1 {
		t.Fatalf("audit log lines = %d, want 1", len(lines))
	}
	if lines[0]["subject_id"] != "u2" {
		t.Errorf("recorded subject = %v, want u2", lines[0]["subject_id"])
	}
}

func TestAuditLogger_GrantedOnly(t *testing.T) {
	buf := captureLog(t)

	cfg := DefaultAuditConfig()
	cfg.LogDenied = false
	audit := NewAuditLogger(cfg)

	audit.Record(&AuditRecord{SubjectID: "u1", Decision: true})
	audit.Record(&AuditRecord{SubjectID: "u2", Decision: false})
	audit.Close()

	lines := buf.Lines(t)
	if len(lines) != 1 || lines[0]["subject_id"] != "u1" {
		t.Errorf("audit log lines = %v, want single granted record for u1", lines)
	}
}

func TestAuditLogger_SamplingDropsGranted(t *testing.T) {
	buf := captureLog(t)

	cfg := DefaultAuditConfig()
	cfg.SampleRate = 0.01
	audit := NewAuditLogger(cfg)

	for i := 0; i < 200; i++ {
		audit.Record(&AuditRecord{SubjectID: "u1", Resource: "doc:1", Action: "read", Decision: true})
	}
	audit.Close()

	// 1-in-100 sampling over 200 granted decisions keeps exactly 2.
	if lines := buf.Lines(t); len(lines) != 2 {
		t.Errorf("audit log lines = %d, want 2 at sample rate 0.01", len(lines))
	}
}

func TestAuditLogger_SamplingNeverDropsDenied(t *testing.T) {
	buf := captureLog(t)

	cfg := DefaultAuditConfig()
	cfg.SampleRate = 0.01
	audit := NewAuditLogger(cfg)

	for i := 0; i < 50; i++ {
		audit.Record(&AuditRecord{SubjectID: "u1", Resource: "doc:1", Action: "write", Decision: false, Reason: ReasonPolicyDeny})
	}
	audit.Close()

	if lines := buf.Lines(t); len(lines) != 50 {
		t.Errorf("audit log lines = %d, want all 50 denials", len(lines))
	}
}

func TestAuditLogger_Disabled(t *testing.T) {
	buf := captureLog(t)

	audit := NewAuditLogger(AuditConfig{Enabled: false})
	audit.Record(&AuditRecord{SubjectID: "u1", Decision: true})
	audit.Close()

	if lines := buf.Lines(t); len(lines) != 0 {
		t.Errorf("disabled logger wrote %d lines, want 0", len(lines))
	}
}

func TestAuditLogger_NilSafe(t *testing.T) {
	var audit *AuditLogger
	audit.Record(&AuditRecord{SubjectID: "u1", Decision: true})
	audit.Close()
}

func TestAuditLogger_CloseDrainsBuffer(t *testing.T) {
	buf := captureLog(t)

	cfg := DefaultAuditConfig()
	cfg.BufferSize = 64
	audit := NewAuditLogger(cfg)

	const n = 50
	for i := 0; i < n; i++ {
		audit.Record(&AuditRecord{SubjectID: "u1", Resource: "doc:1", Action: "read", Decision: true})
	}
	audit.Close()

	// Close drains whatever was still buffered before stopping the worker.
	if lines := buf.Lines(t); len(lines) != n {
		t.Errorf("audit log lines = %d, want %d after drain", len(lines), n)
	}
}

func TestAuditLogger_CloseIdempotent(t *testing.T) {
	audit := NewAuditLogger(DefaultAuditConfig())
	audit.Close()
	audit.Close()
}

func TestAuditLogger_DefaultsApplied(t *testing.T) {
	audit := NewAuditLogger(AuditConfig{Enabled: true, LogGranted: true, LogDenied: true, SampleRate: -1, BufferSize: -5})
	defer audit.Close()

	if audit.config.BufferSize != 1000 {
		t.Errorf("BufferSize = %d, want 1000", audit.config.BufferSize)
	}
	if audit.config.SampleRate != 1.0 {
		t.Errorf("SampleRate = %v, want 1.0", audit.config.SampleRate)
	}
}
