package observability

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestSlackNotifier_EmptyAlertsSendNothing(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewSlackNotifier(srv.URL)
	if err := n.Notify(nil); err != nil {
		t.Fatalf("nil alerts: %v", err)
	}
	if err := n.Notify([]Alert{}); err != nil {
		t.Fatalf("empty alerts: %v", err)
	}
	if called {
		t.Error("webhook was called with nothing to report")
	}
}

func TestSlackNotifier_DigestStructure(t *testing.T) {
	var receivedBody []byte
	var receivedContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedContentType = r.Header.Get("Content-Type")
		var err error
		receivedBody, err = io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("reading request body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewSlackNotifier(srv.URL)
	alerts := []Alert{
		{
			ID:          "idle-piano",
			Condition:   "progress_stalled",
			Severity:    SeverityHigh,
			Message:     "project piano has had no completions for 10 days",
			TriggeredAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		},
		{
			ID:          "evolution-overdue-piano",
			Condition:   "evolution_overdue",
			Severity:    SeverityLow,
			Message:     "11 completions since the last strategy evolution",
			TriggeredAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		},
	}

	if err := n.Notify(alerts); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if receivedContentType != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", receivedContentType)
	}

	var msg slackMessage
	if err := json.Unmarshal(receivedBody, &msg); err != nil {
		t.Fatalf("unmarshaling request body: %v", err)
	}

	// Header, one section per alert, closing count line.
	if len(msg.Blocks) != 4 {
		t.Fatalf("got %d blocks, want 4", len(msg.Blocks))
	}
	if msg.Blocks[0].Type != "header" {
		t.Errorf("first block type = %q, want header", msg.Blocks[0].Type)
	}
	if msg.Blocks[0].Text == nil || msg.Blocks[0].Text.Text != "Forest needs attention" {
		t.Errorf("header text = %v", msg.Blocks[0].Text)
	}
	for i := 1; i < 4; i++ {
		if msg.Blocks[i].Type != "section" {
			t.Errorf("block %d type = %q, want section", i, msg.Blocks[i].Type)
		}
	}
	if !strings.Contains(msg.Blocks[1].Text.Text, "progress_stalled") {
		t.Errorf("first section lacks condition name: %q", msg.Blocks[1].Text.Text)
	}
	if !strings.Contains(msg.Blocks[1].Text.Text, "HIGH") {
		t.Errorf("first section lacks severity: %q", msg.Blocks[1].Text.Text)
	}
	if !strings.Contains(msg.Blocks[2].Text.Text, "evolution_overdue") {
		t.Errorf("second section lacks condition name: %q", msg.Blocks[2].Text.Text)
	}
	if !strings.Contains(msg.Blocks[3].Text.Text, "2 condition(s) firing") {
		t.Errorf("count line = %q", msg.Blocks[3].Text.Text)
	}

	body := string(receivedBody)
	if !strings.Contains(body, "project piano has had no completions") {
		t.Error("digest lacks the alert message")
	}
	if !strings.Contains(body, "2026-03-01 12:00 UTC") {
		t.Error("digest lacks the triggered time")
	}
}

func TestSlackNotifier_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := NewSlackNotifier(srv.URL)
	alerts := []Alert{{
		ID:          "idle-piano",
		Condition:   "progress_stalled",
		Severity:    SeverityHigh,
		Message:     "project piano has stalled",
		TriggeredAt: time.Now().UTC(),
	}}

	err := n.Notify(alerts)
	if err == nil {
		t.Fatal("expected error for 500 response")
	}
	if !strings.Contains(err.Error(), "500") {
		t.Errorf("error = %v, want the status code surfaced", err)
	}
}

func TestSlackNotifier_SeverityEmojis(t *testing.T) {
	tests := []struct {
		severity AlertSeverity
		emoji    string
	}{
		{SeverityHigh, "\U0001f534"},
		{SeverityMedium, "\U0001f7e1"},
		{SeverityLow, "\U0001f535"},
	}

	for _, tt := range tests {
		t.Run(string(tt.severity), func(t *testing.T) {
			var receivedBody []byte
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				var err error
				receivedBody, err = io.ReadAll(r.Body)
				if err != nil {
					t.Errorf("reading request body: %v", err)
				}
				w.WriteHeader(http.StatusOK)
			}))
			defer srv.Close()

			n := NewSlackNotifier(srv.URL)
			alerts := []Alert{{
				ID:          "emoji-test",
				Condition:   "low_energy_trend",
				Severity:    tt.severity,
				Message:     "mean energy after completion is low",
				TriggeredAt: time.Now().UTC(),
			}}
			if err := n.Notify(alerts); err != nil {
				t.Fatalf("notify: %v", err)
			}
			if !strings.Contains(string(receivedBody), tt.emoji) {
				t.Errorf("digest lacks emoji %s for severity %s", tt.emoji, tt.severity)
			}
		})
	}
}
