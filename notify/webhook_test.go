package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xraph/rostersync/syncer"
)

func finishedRun(address string) (*syncer.Run, *syncer.Outcome) {
	run := syncer.NewRun("prog-1")
	run.NotifyAddress = address
	out := &syncer.Outcome{
		RunID:   run.ID,
		Program: run.Program,
		Status:  syncer.StatusCompletedWithFailures,
		Total:   3,
		Failures: []syncer.Failure{
			{Participant: "p-2", System: "chat", Detail: "upstream 502"},
		},
		StartedAt:  time.Now().UTC().Add(-time.Minute),
		FinishedAt: time.Now().UTC(),
	}
	return run, out
}

func TestWebhookPostsReport(t *testing.T) {
	var got Report
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %s", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode report: %v", err)
		}
	}))
	defer srv.Close()

	run, out := finishedRun(srv.URL)
	if err := NewWebhook().Notify(context.Background(), run, out); err != nil {
		t.Fatalf("Notify: %v", err)
	}

	if n := calls.Load(); n != 1 {
		t.Fatalf("calls = %d, want exactly 1", n)
	}
	if got.RunID != run.ID.String() || got.Program != "prog-1" {
		t.Fatalf("report = %+v", got)
	}
	if got.Status != string(syncer.StatusCompletedWithFailures) {
		t.Fatalf("status = %s", got.Status)
	}
	if got.Total != 3 || got.Failed != 1 || len(got.Failures) != 1 {
		t.Fatalf("report = %+v", got)
	}
	if got.Failures[0].Participant != "p-2" || got.Failures[0].System != "chat" {
		t.Fatalf("failure = %+v", got.Failures[0])
	}
}

func TestWebhookCarriesAbortReason(t *testing.T) {
	var got Report
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode report: %v", err)
		}
	}))
	defer srv.Close()

	run := syncer.NewRun("prog-gone")
	run.NotifyAddress = srv.URL
	out := &syncer.Outcome{
		RunID:      run.ID,
		Program:    run.Program,
		Status:     syncer.StatusAbortedFatal,
		Reason:     `program "prog-gone" not found`,
		StartedAt:  time.Now().UTC(),
		FinishedAt: time.Now().UTC(),
	}
	if err := NewWebhook().Notify(context.Background(), run, out); err != nil {
		t.Fatalf("Notify: %v", err)
	}

	if got.Status != string(syncer.StatusAbortedFatal) {
		t.Fatalf("status = %s", got.Status)
	}
	if got.Reason != out.Reason {
		t.Fatalf("reason = %q, want %q", got.Reason, out.Reason)
	}
}

func TestWebhookSkipsRunsWithoutAddress(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		t.Error("unexpected request")
	}))
	defer srv.Close()

	run, out := finishedRun("")
	if err := NewWebhook().Notify(context.Background(), run, out); err != nil {
		t.Fatalf("Notify: %v", err)
	}
}

func TestWebhookReportsRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	run, out := finishedRun(srv.URL)
	if err := NewWebhook().Notify(context.Background(), run, out); err == nil {
		t.Fatal("expected error for rejected report")
	}
}
