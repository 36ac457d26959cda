// File: internal/dispatcher/dispatcher.go
// Description: The execution boundary between the planner and the core.
// Routes tasks by shape (direct resolve vs. goal loop), owns the only retry
// mechanism in the system, and surfaces deferred high-risk actions as
// pending-confirmation results instead of dropping them.

package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mirelock/uipilot/api/schemas"
	"github.com/mirelock/uipilot/internal/config"
	"github.com/mirelock/uipilot/pkg/loop"
	"github.com/mirelock/uipilot/pkg/resolver"
	"github.com/mirelock/uipilot/pkg/safety"
)

// ErrUnknownTask is returned for task IDs with no pending confirmation.
var ErrUnknownTask = errors.New("no pending task with that id")

// Dispatcher routes planner tasks into the resolver or the control loop.
// Concurrent goals run as independent loop instances sharing only the gate's
// append-only audit log.
type Dispatcher struct {
	logger   *zap.Logger
	cfg      config.DispatcherConfig
	loopCfg  config.LoopConfig
	resolver *resolver.Resolver
	gate     *safety.Gate
	gateway  schemas.DeviceGateway
	llm      schemas.LLMClient

	mu      sync.Mutex
	pending map[string]schemas.Task
	held    map[string]schemas.Directive
}

// New wires a dispatcher. The gate is shared across all loops it spawns.
func New(logger *zap.Logger, cfg config.DispatcherConfig, loopCfg config.LoopConfig, res *resolver.Resolver, gate *safety.Gate, gateway schemas.DeviceGateway, llm schemas.LLMClient) *Dispatcher {
	return &Dispatcher{
		logger:   logger.Named("dispatcher"),
		cfg:      cfg,
		loopCfg:  loopCfg,
		resolver: res,
		gate:     gate,
		gateway:  gateway,
		llm:      llm,
		pending:  make(map[string]schemas.Task),
		held:     make(map[string]schemas.Directive),
	}
}

// Dispatch routes one task and blocks until it reaches a terminal (or
// pending-confirmation) state. Transient infrastructure failures are retried
// with exponential backoff; failures from inside the loop come back as
// result values.
func (d *Dispatcher) Dispatch(ctx context.Context, task schemas.Task) (schemas.TaskResult, error) {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	d.logger.Info("Dispatching task",
		zap.String("task_id", task.ID),
		zap.String("type", string(task.Type)),
	)

	switch task.Type {
	case schemas.TaskResolve:
		return d.executeResolve(ctx, task)
	case schemas.TaskGoal:
		if task.Goal == "" {
			return schemas.TaskResult{}, fmt.Errorf("goal task %s has no goal text", task.ID)
		}
		return d.withRetry(ctx, task, d.gate)
	default:
		return schemas.TaskResult{}, fmt.Errorf("unknown task type %q", task.Type)
	}
}

// DispatchAll runs a batch of tasks concurrently, one independent loop per
// goal. Results are positionally aligned with the input.
func (d *Dispatcher) DispatchAll(ctx context.Context, tasks []schemas.Task) ([]schemas.TaskResult, error) {
	g, ctx := errgroup.WithContext(ctx)
	results := make([]schemas.TaskResult, len(tasks))
	for i, task := range tasks {
		g.Go(func() error {
			result, err := d.Dispatch(ctx, task)
			if err != nil {
				return err
			}
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

// Confirm resumes a task whose action was deferred by the gate. The held
// directive is approved for exactly one execution; everything else the
// resumed loop decides still goes through the gate.
func (d *Dispatcher) Confirm(ctx context.Context, taskID string) (schemas.TaskResult, error) {
	d.mu.Lock()
	task, ok := d.pending[taskID]
	directive := d.held[taskID]
	if ok {
		delete(d.pending, taskID)
		delete(d.held, taskID)
	}
	d.mu.Unlock()
	if !ok {
		return schemas.TaskResult{}, fmt.Errorf("%w: %s", ErrUnknownTask, taskID)
	}

	d.logger.Info("Resuming task with confirmed action",
		zap.String("task_id", taskID),
		zap.String("action_type", string(directive.Type)),
	)
	guard := &approvalGuard{gate: d.gate, approved: &directive}
	return d.withRetry(ctx, task, guard)
}

// withRetry wraps one goal execution in the system's only retry mechanism.
func (d *Dispatcher) withRetry(ctx context.Context, task schemas.Task, guard loop.Guard) (schemas.TaskResult, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = d.cfg.InitialBackoff
	b.MaxElapsedTime = d.cfg.MaxElapsedTime

	var result schemas.TaskResult
	operation := func() error {
		var err error
		result, err = d.executeGoal(ctx, task, guard)
		return err
	}
	policy := backoff.WithMaxRetries(backoff.WithContext(b, ctx), uint64(d.cfg.MaxRetries))
	if err := backoff.Retry(operation, policy); err != nil {
		return schemas.TaskResult{
			TaskID: task.ID,
			Status: schemas.StatusFailed,
			Error:  err.Error(),
		}, nil
	}
	return result, nil
}

// executeGoal runs one control loop. A returned error marks the attempt
// transient and retryable; terminal outcomes come back inside the result.
func (d *Dispatcher) executeGoal(ctx context.Context, task schemas.Task, guard loop.Guard) (schemas.TaskResult, error) {
	l := loop.New(d.logger, d.loopCfg, d.gateway, d.llm, guard, task.DeviceID)
	loopResult, err := l.Run(ctx, task.Goal, task.MaxSteps, task.Timeout)

	var pending *loop.PendingConfirmationError
	if errors.As(err, &pending) {
		d.mu.Lock()
		d.pending[task.ID] = task
		d.held[task.ID] = pending.Directive
		d.mu.Unlock()
		d.logger.Warn("Task paused pending confirmation",
			zap.String("task_id", task.ID),
			zap.String("risk", string(pending.Assessment.Level)),
		)
		return schemas.TaskResult{
			TaskID:     task.ID,
			Status:     schemas.StatusPendingConfirmation,
			Loop:       &loopResult,
			Assessment: &pending.Assessment,
			Held:       &pending.Directive,
		}, nil
	}

	if loopResult.Status == schemas.LoopFailed && transientFailure(loopResult.Error) {
		return schemas.TaskResult{}, fmt.Errorf("transient loop failure: %s", loopResult.Error)
	}

	result := schemas.TaskResult{
		TaskID: task.ID,
		Loop:   &loopResult,
	}
	if loopResult.Status == schemas.LoopSuccess {
		result.Status = schemas.StatusCompleted
	} else {
		result.Status = schemas.StatusFailed
		result.Error = loopResult.Error
	}
	return result, nil
}

// executeResolve answers a direct element-resolution task. A not-found
// detection is a valid completed answer, not a failure.
func (d *Dispatcher) executeResolve(ctx context.Context, task schemas.Task) (schemas.TaskResult, error) {
	detection := d.resolver.Resolve(ctx, task.Element, nil)
	return schemas.TaskResult{
		TaskID:    task.ID,
		Status:    schemas.StatusCompleted,
		Detection: &detection,
	}, nil
}

// transientFailure classifies loop failures worth a whole-task retry:
// capture/provider infrastructure problems, not decisions or budgets.
func transientFailure(reason string) bool {
	return strings.HasPrefix(reason, "init:") || strings.HasPrefix(reason, "observe:")
}

// approvalGuard allows one specific directive through the gate exactly once;
// every other decision defers to the wrapped gate.
type approvalGuard struct {
	gate *safety.Gate

	mu       sync.Mutex
	approved *schemas.Directive
}

func (g *approvalGuard) Decide(directive schemas.Directive) (schemas.GateDecision, schemas.RiskAssessment) {
	g.mu.Lock()
	approved := g.approved != nil && *g.approved == directive
	if approved {
		g.approved = nil
	}
	g.mu.Unlock()

	if approved {
		assessment := g.gate.Assess(string(directive.Type), nil)
		g.gate.Record(directive, "approved", "confirmed by planner")
		return schemas.GateAllow, assessment
	}
	return g.gate.Decide(directive)
}

func (g *approvalGuard) Record(directive schemas.Directive, status, detail string) {
	g.gate.Record(directive, status, detail)
}
