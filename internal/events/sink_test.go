// Portcullis - Embeddable Authorization Decision Engine
// Copyright 2026 Portcullis Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portcullis-io/portcullis

package events

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/rs/zerolog"

	"github.com/portcullis-io/portcullis/internal/logging"
)

func TestNew_PopulatesIDAndTimestamp(t *testing.T) {
	before := time.Now().UTC()
	event := New(PermissionGranted, map[string]interface{}{"subject_id": "u1"})

	if event.ID == "" {
		t.Error("New() produced empty ID")
	}
	if event.Name != PermissionGranted {
		t.Errorf("Name = %q, want %q", event.Name, PermissionGranted)
	}
	if event.Timestamp.Before(before) {
		t.Errorf("Timestamp = %v, before test start %v", event.Timestamp, before)
	}
	if event.Payload["subject_id"] != "u1" {
		t.Errorf("Payload = %v, want subject_id entry", event.Payload)
	}
}

func TestDiscard(t *testing.T) {
	var sink Discard
	if err := sink.Publish(context.Background(), New(PermissionDenied, nil)); err != nil {
		t.Errorf("Publish() error: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Errorf("Close() error: %v", err)
	}
}

func TestLogSink_WritesEvent(t *testing.T) {
	var buf bytes.Buffer
	logging.SetLogger(zerolog.New(&buf))
	defer logging.Init(logging.DefaultConfig())

	sink := LogSink{}
	if err := sink.Publish(context.Background(), New(RoleCreated, map[string]interface{}{"role_id": "auditor"})); err != nil {
		t.Fatalf("Publish() error: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, RoleCreated) {
		t.Errorf("log output missing event name: %q", out)
	}
	if !strings.Contains(out, "auditor") {
		t.Errorf("log output missing payload: %q", out)
	}
}

func TestBusSink_PublishAndDeserialize(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	sink := NewBusSink(pubSub, "portcullis.")
	defer sink.Close()

	messages, err := pubSub.Subscribe(context.Background(), "portcullis."+PermissionDenied)
	if err != nil {
		t.Fatalf("Subscribe() error: %v", err)
	}

	sent := New(PermissionDenied, map[string]interface{}{
		"subject_id": "u3",
		"resource":   "project:1",
		"action":     "read",
	})
	if err := sink.Publish(context.Background(), sent); err != nil {
		t.Fatalf("Publish() error: %v", err)
	}

	select {
	case msg := <-messages:
		msg.Ack()
		got, err := Deserialize(msg)
		if err != nil {
			t.Fatalf("Deserialize() error: %v", err)
		}
		if got.ID != sent.ID {
			t.Errorf("ID = %q, want %q", got.ID, sent.ID)
		}
		if got.Name != PermissionDenied {
			t.Errorf("Name = %q, want %q", got.Name, PermissionDenied)
		}
		if got.Payload["subject_id"] != "u3" {
			t.Errorf("Payload = %v, want subject_id u3", got.Payload)
		}
		if msg.Metadata.Get("event") != PermissionDenied {
			t.Errorf("metadata event = %q, want %q", msg.Metadata.Get("event"), PermissionDenied)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for published event")
	}
}

func TestBusSink_Topic(t *testing.T) {
	tests := []struct {
		prefix string
		name   string
		want   string
	}{
		{"portcullis.", PermissionGranted, "portcullis.permission:granted"},
		{"", PermissionGranted, "permission:granted"},
	}

	for _, tt := range tests {
		sink := NewBusSink(gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{}), tt.prefix)
		if got := sink.Topic(tt.name); got != tt.want {
			t.Errorf("Topic(%q) with prefix %q = %q, want %q", tt.name, tt.prefix, got, tt.want)
		}
		sink.Close()
	}
}

func TestEmbeddedServer_StartPublishShutdown(t *testing.T) {
	if testing.Short() {
		t.Skip("embedded NATS server test skipped in short mode")
	}

	srv, err := NewEmbeddedServer(ServerConfig{Port: -1, StoreDir: t.TempDir()})
	if err != nil {
		t.Fatalf("NewEmbeddedServer() error: %v", err)
	}
	if !srv.IsRunning() {
		t.Fatal("server not running after start")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown() error: %v", err)
	}
}
