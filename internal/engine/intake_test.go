package engine

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alfredjeanlab/gatewarden/internal/model"
)

// fakeSubscriber delivers payloads from a preloaded channel.
type fakeSubscriber struct {
	ch     chan []byte
	topic  string
	closed bool
}

func newFakeSubscriber() *fakeSubscriber {
	return &fakeSubscriber{ch: make(chan []byte, 8)}
}

func (f *fakeSubscriber) Subscribe(topic string) (<-chan []byte, func(), error) {
	f.topic = topic
	return f.ch, func() {}, nil
}

func (f *fakeSubscriber) Close() error {
	f.closed = true
	return nil
}

func TestFindingIntakeIngestsPayloads(t *testing.T) {
	srv, _, _ := newTestServer(nil)
	seedProject(t, srv, "proj-intake", false)

	sub := newFakeSubscriber()
	payload, _ := json.Marshal(FindingInput{
		ProjectID: "proj-intake",
		Severity:  model.SeverityCritical,
		Category:  "hardcoded_secrets",
		Title:     "api key in config",
	})
	sub.ch <- payload
	// A malformed payload and an unknown project are skipped, not fatal.
	sub.ch <- []byte("{not json")
	bad, _ := json.Marshal(FindingInput{
		ProjectID: "proj-missing",
		Severity:  model.SeverityHigh,
		Category:  "sast",
	})
	sub.ch <- bad

	ctx, cancel := context.WithCancel(context.Background())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	done := make(chan error, 1)
	go func() {
		done <- srv.StartFindingIntake(ctx, sub, logger)
	}()

	deadline := time.After(2 * time.Second)
	for {
		findings, err := srv.ListFindings(context.Background(), model.FindingFilter{ProjectID: "proj-intake"})
		if err != nil {
			t.Fatalf("ListFindings: %v", err)
		}
		if len(findings) == 1 {
			if findings[0].Category != "hardcoded_secrets" || findings[0].Status != model.FindingOpen {
				t.Fatalf("ingested finding = %+v, want open hardcoded_secrets", findings[0])
			}
			break
		}
		select {
		case <-deadline:
			t.Fatal("finding was not ingested from the bus")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("StartFindingIntake: %v", err)
	}

	// Nothing was ingested for the unknown project.
	missing, err := srv.ListFindings(context.Background(), model.FindingFilter{ProjectID: "proj-missing"})
	if err != nil {
		t.Fatalf("ListFindings: %v", err)
	}
	if len(missing) != 0 {
		t.Fatalf("len(missing) = %d, want 0", len(missing))
	}
}
