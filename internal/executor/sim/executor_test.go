package sim

import (
	"io"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/roea-ai/botmind/internal/core/approval"
	"github.com/roea-ai/botmind/internal/core/execution"
	"github.com/roea-ai/botmind/pkg/types"
)

var quiet = log.New(io.Discard, "", 0)

func newTask(id string, kind types.CommandKind, params map[string]string) *types.Task {
	return &types.Task{ID: id, Kind: kind, Parameters: params, Status: types.TaskExecuting}
}

func newExecutor(approvals *approval.Manager) *Executor {
	bot := types.BotConfig{Name: "alex", Owner: "Steve", World: "overworld"}
	return NewExecutor(DefaultStrategies(approvals, bot), quiet)
}

func TestSim_QuantityAdvancesOneUnitPerCheck(t *testing.T) {
	e := newExecutor(nil)
	task := newTask("t1", types.CommandMine, map[string]string{"target": "iron_ore", "quantity": "3"})

	if err := e.Execute(task); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	for i := 1; i < 3; i++ {
		if e.IsComplete(task) {
			t.Fatalf("complete after %d checks", i)
		}
		if done, units, _ := e.Progress("t1"); done != i || units != 3 {
			t.Fatalf("progress = %d/%d, want %d/3", done, units, i)
		}
	}
	if !e.IsComplete(task) {
		t.Fatalf("not complete after 3 checks")
	}
	if _, _, ok := e.Progress("t1"); ok {
		t.Fatalf("body kept after completion")
	}
}

func TestSim_PauseBlocksProgress(t *testing.T) {
	e := newExecutor(nil)
	task := newTask("t1", types.CommandGather, map[string]string{"quantity": "2"})
	e.Execute(task)
	e.IsComplete(task)

	if err := e.Pause(task); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if task.PauseData["done"] != "1" || task.PauseData["units"] != "2" {
		t.Fatalf("pause data = %v", task.PauseData)
	}
	if e.IsComplete(task) {
		t.Fatalf("paused body advanced")
	}
	if err := e.Resume(task); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if !e.IsComplete(task) {
		t.Fatalf("resumed body did not finish")
	}
}

func TestSim_RestartCarriesPauseData(t *testing.T) {
	e := newExecutor(nil)
	task := newTask("t1", types.CommandCraft, map[string]string{"quantity": "4"})
	task.PauseData = map[string]string{"done": "3"}

	e.Execute(task)
	if !e.IsComplete(task) {
		t.Fatalf("restarted body should finish on the fourth unit")
	}
}

func TestSim_PlanErrors(t *testing.T) {
	e := newExecutor(nil)

	if err := e.Execute(newTask("b", types.CommandBuild, nil)); err == nil {
		t.Fatalf("build without target accepted")
	}
	if err := e.Execute(newTask("q", types.CommandMine, map[string]string{"quantity": "lots"})); err == nil {
		t.Fatalf("bad quantity accepted")
	}
	if err := e.Pause(newTask("none", types.CommandMine, nil)); err == nil {
		t.Fatalf("pause of unknown body accepted")
	}
}

func TestSim_TradeWaitsForOwner(t *testing.T) {
	approvals := approval.NewManager(time.Minute, nil, quiet)
	e := newExecutor(approvals)
	task := newTask("t1", types.CommandTrade, map[string]string{"target": "diamond"})
	e.Execute(task)

	if e.IsComplete(task) {
		t.Fatalf("trade completed before approval")
	}
	pending := approvals.List("steve", true)
	if len(pending) != 1 || pending[0].Bot != "alex" || pending[0].TaskID != "t1" {
		t.Fatalf("pending approvals = %+v", pending)
	}
	if e.IsComplete(task) {
		t.Fatalf("trade completed while pending")
	}
	if _, err := approvals.Answer(pending[0].ID, "Steve", true); err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if !e.IsComplete(task) {
		t.Fatalf("approved trade did not complete")
	}
}

func TestSim_DeniedTradeFails(t *testing.T) {
	approvals := approval.NewManager(time.Minute, nil, quiet)
	e := newExecutor(approvals)
	task := newTask("t1", types.CommandTrade, map[string]string{"target": "diamond"})
	e.Execute(task)
	e.IsComplete(task)

	id := approvals.List("Steve", true)[0].ID
	approvals.Answer(id, "Steve", false)

	if e.IsComplete(task) {
		t.Fatalf("denied trade completed")
	}
	reason, failed := e.Failure(task)
	if !failed || !strings.Contains(reason, "denied") {
		t.Fatalf("Failure = %q, %v", reason, failed)
	}
}

func TestSim_CancelForgetsApproval(t *testing.T) {
	approvals := approval.NewManager(time.Minute, nil, quiet)
	e := newExecutor(approvals)
	task := newTask("t1", types.CommandTrade, map[string]string{"target": "diamond"})
	e.Execute(task)
	e.IsComplete(task)

	if err := e.Cancel(task); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if got := approvals.List("Steve", false); len(got) != 0 {
		t.Fatalf("approval kept after cancel: %+v", got)
	}
}

func TestSim_ThroughRouter(t *testing.T) {
	r := execution.NewRouter(newExecutor(nil))
	task := newTask("t1", types.CommandFlee, nil)

	if err := r.Execute(task); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := r.ActiveExecutions(); len(got) != 1 || got[0].Backend != "sim" {
		t.Fatalf("active = %+v", got)
	}
	if !r.IsComplete(task) {
		t.Fatalf("flee should finish in one unit")
	}
	if got := r.ActiveExecutions(); len(got) != 0 {
		t.Fatalf("active after completion = %+v", got)
	}
}
