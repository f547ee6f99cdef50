package remote

import (
	"errors"
	"io"
	"log"
	"testing"

	"github.com/roea-ai/botmind/internal/core/execution"
	"github.com/roea-ai/botmind/pkg/types"
)

func newTestBackend() *Backend {
	return NewBackend([]types.CommandKind{types.CommandBuild, types.CommandExplore}, log.New(io.Discard, "", 0))
}

func TestRemote_CompleteClosesBody(t *testing.T) {
	b := newTestBackend()
	exec := b.For("overworld", "alex")
	task := &types.Task{ID: "t1", Kind: types.CommandBuild, Parameters: map[string]string{"target": "house"}}

	if !exec.CanExecute(task) {
		t.Fatalf("build should route remotely")
	}
	if exec.CanExecute(&types.Task{Kind: types.CommandMine}) {
		t.Fatalf("mine should not route remotely")
	}
	if err := exec.Execute(task); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	open := b.Sessions("overworld", "")
	if len(open) != 1 || open[0].Bot != "alex" || open[0].Parameters["target"] != "house" {
		t.Fatalf("sessions = %+v", open)
	}
	id := open[0].ID

	if err := b.ReportProgress(id, 40, "walls up"); err != nil {
		t.Fatalf("ReportProgress: %v", err)
	}
	if exec.IsComplete(task) {
		t.Fatalf("complete before worker finished")
	}
	if err := b.Complete(id, "house built"); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if len(b.Sessions("", "")) != 0 {
		t.Fatalf("completed session still listed")
	}
	if !exec.IsComplete(task) {
		t.Fatalf("not complete after worker finished")
	}
	if _, err := b.Session(id); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("session kept after completion: %v", err)
	}
}

func TestRemote_FailReportsReason(t *testing.T) {
	b := newTestBackend()
	exec := b.For("overworld", "alex")
	task := &types.Task{ID: "t1", Kind: types.CommandExplore}
	exec.Execute(task)
	id := b.Sessions("", "alex")[0].ID

	if err := b.Fail(id, "lost in the nether"); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	if err := b.Complete(id, ""); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("complete after fail err = %v", err)
	}

	reporter := exec.(interface {
		Failure(*types.Task) (string, bool)
	})
	reason, failed := reporter.Failure(task)
	if !failed || reason != "lost in the nether" {
		t.Fatalf("Failure = %q, %v", reason, failed)
	}
}

func TestRemote_PausedSessionRejectsProgress(t *testing.T) {
	b := newTestBackend()
	exec := b.For("overworld", "alex")
	task := &types.Task{ID: "t1", Kind: types.CommandBuild}
	exec.Execute(task)
	id := b.Sessions("", "")[0].ID
	b.ReportProgress(id, 30, "")

	if err := exec.Pause(task); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if task.PauseData["percent"] != "30" {
		t.Fatalf("pause data = %v", task.PauseData)
	}
	if err := b.ReportProgress(id, 50, ""); !errors.Is(err, ErrSessionPaused) {
		t.Fatalf("progress while paused err = %v", err)
	}
	if err := exec.Resume(task); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if err := b.ReportProgress(id, 50, ""); err != nil {
		t.Fatalf("progress after resume: %v", err)
	}
}

func TestRemote_CancelDropsSession(t *testing.T) {
	b := newTestBackend()
	r := execution.NewRouter(b.For("overworld", "alex"))
	task := &types.Task{ID: "t1", Kind: types.CommandBuild}

	if err := r.Execute(task); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if err := r.Cancel(task); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if len(b.Sessions("", "")) != 0 {
		t.Fatalf("cancelled session still listed")
	}
	if err := r.Pause(task); err == nil {
		t.Fatalf("pause after cancel accepted")
	}
}
