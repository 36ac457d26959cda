// File: pkg/loop/loop.go
// Description: The bounded perceive-decide-act-observe control loop. One Loop
// drives one goal at a time against a device gateway, with the decision step
// delegated to a remote model and every action vetted by the safety guard.

package loop

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/mirelock/uipilot/api/schemas"
	"github.com/mirelock/uipilot/internal/config"
)

// Guard vets directives before execution and records every attempt. The
// safety gate satisfies this; tests substitute permissive stand-ins.
type Guard interface {
	Decide(directive schemas.Directive) (schemas.GateDecision, schemas.RiskAssessment)
	Record(directive schemas.Directive, status, detail string)
}

// PendingConfirmationError reports that the guard deferred a high-risk
// directive. The run cannot proceed on its own; the dispatcher surfaces the
// pending state to the planner, which decides whether to confirm.
type PendingConfirmationError struct {
	Directive  schemas.Directive
	Assessment schemas.RiskAssessment
}

func (e *PendingConfirmationError) Error() string {
	return fmt.Sprintf("action %q deferred pending confirmation (risk %s)", e.Directive.Type, e.Assessment.Level)
}

// actionHandler routes one directive type to its execution and settle
// behavior. The registry replaces per-type branching in the step body.
type actionHandler struct {
	execute func(ctx context.Context, l *Loop, d schemas.Directive) (schemas.ExecutionResult, error)
	settle  func(cfg config.LoopConfig) time.Duration
}

func executeViaGateway(ctx context.Context, l *Loop, d schemas.Directive) (schemas.ExecutionResult, error) {
	return l.gateway.Execute(ctx, l.deviceID, d)
}

func settleNavigation(cfg config.LoopConfig) time.Duration  { return cfg.SettleNavigation }
func settleInteraction(cfg config.LoopConfig) time.Duration { return cfg.SettleInteraction }

// Navigation and activation actions settle longer than in-place interaction.
var actionRegistry = map[schemas.DirectiveType]actionHandler{
	schemas.DirectiveClick:    {execute: executeViaGateway, settle: settleNavigation},
	schemas.DirectiveTypeText: {execute: executeViaGateway, settle: settleInteraction},
	schemas.DirectiveScroll:   {execute: executeViaGateway, settle: settleInteraction},
	schemas.DirectiveGlobal:   {execute: executeViaGateway, settle: settleNavigation},
}

// Loop runs goals against one device. It is single-goal and non-reentrant:
// concurrent goals get independent Loop instances sharing only the guard's
// append-only audit log.
type Loop struct {
	logger   *zap.Logger
	cfg      config.LoopConfig
	gateway  schemas.DeviceGateway
	llm      schemas.LLMClient
	guard    Guard
	deviceID string
	limiter  *rate.Limiter
}

// New wires a control loop. All collaborators are injected; the loop holds
// no package-level state.
func New(logger *zap.Logger, cfg config.LoopConfig, gateway schemas.DeviceGateway, llm schemas.LLMClient, guard Guard, deviceID string) *Loop {
	limit := rate.Inf
	if cfg.DecideRatePerSec > 0 {
		limit = rate.Limit(cfg.DecideRatePerSec)
	}
	return &Loop{
		logger:   logger.Named("loop"),
		cfg:      cfg,
		gateway:  gateway,
		llm:      llm,
		guard:    guard,
		deviceID: deviceID,
		limiter:  rate.NewLimiter(limit, 1),
	}
}

// Run drives the goal to a terminal status. Failures inside the loop come
// back as result values with a human-readable reason naming the failing
// stage; the only error return is *PendingConfirmationError, which means the
// run is suspended rather than finished.
func (l *Loop) Run(ctx context.Context, goal string, maxSteps int, timeout time.Duration) (schemas.LoopResult, error) {
	if maxSteps <= 0 {
		maxSteps = l.cfg.DefaultMaxSteps
	}
	if timeout <= 0 {
		timeout = l.cfg.DefaultTimeout
	}
	start := time.Now()
	state := newLoopState(l.cfg.SnapshotRingSize, l.cfg.HistoryLimit, l.cfg.ReasoningWindow)

	l.logger.Info("Starting control loop",
		zap.String("goal", goal),
		zap.Int("max_steps", maxSteps),
		zap.Duration("timeout", timeout),
	)

	snap, err := l.captureWithRetry(ctx)
	if err != nil {
		return l.finish(state, start, schemas.LoopResult{
			Status: schemas.LoopFailed,
			Error:  fmt.Sprintf("init: %v", err),
		}), nil
	}
	state.observe(snap)

	for step := 1; step <= maxSteps; step++ {
		if time.Since(start) > timeout {
			return l.finish(state, start, schemas.LoopResult{
				Status:     schemas.LoopTimeout,
				StepsTaken: step - 1,
				Error:      "wall-clock timeout exceeded",
			}), nil
		}
		if err := ctx.Err(); err != nil {
			return l.finish(state, start, schemas.LoopResult{
				Status:     schemas.LoopFailed,
				StepsTaken: step - 1,
				Error:      fmt.Sprintf("context canceled: %v", err),
			}), nil
		}

		if state.stuck() {
			l.logger.Warn("Stuck loop detected, injecting corrective navigation",
				zap.String("state_label", state.stateLabel),
				zap.Int("stuck_counter", state.stuckCounter),
			)
			if err := l.recover(ctx, state, step); err != nil {
				return l.finish(state, start, schemas.LoopResult{
					Status:     schemas.LoopFailed,
					StepsTaken: step - 1,
					Error:      fmt.Sprintf("stuck-loop recovery failed: %v", err),
				}), nil
			}
		}

		directive, err := l.decide(ctx, goal, state)
		if err != nil {
			reason := fmt.Sprintf("decide: %v", err)
			if errors.Is(err, ErrDirectiveParse) {
				reason = err.Error()
			}
			return l.finish(state, start, schemas.LoopResult{
				Status:     schemas.LoopFailed,
				StepsTaken: step - 1,
				Error:      reason,
			}), nil
		}
		state.pushReasoning(summarizeDirective(step, directive))

		if directive.Type == schemas.DirectiveComplete {
			l.guard.Record(directive, "completed", directive.Reason)
			return l.finish(state, start, schemas.LoopResult{
				Status:           schemas.LoopSuccess,
				StepsTaken:       step,
				CompletionReason: directive.Reason,
			}), nil
		}

		if decision, assessment := l.guard.Decide(directive); decision == schemas.GateDefer {
			l.guard.Record(directive, "deferred", fmt.Sprintf("risk %s requires confirmation", assessment.Level))
			result := l.finish(state, start, schemas.LoopResult{
				Status:     schemas.LoopFailed,
				StepsTaken: step - 1,
				Error:      fmt.Sprintf("action deferred pending confirmation (risk %s)", assessment.Level),
			})
			return result, &PendingConfirmationError{Directive: directive, Assessment: assessment}
		}

		handler := actionRegistry[directive.Type]
		execResult, execErr := handler.execute(ctx, l, directive)
		rec := schemas.ActionRecord{
			Step:      step,
			Directive: directive,
			Succeeded: execErr == nil && execResult.Success,
			Timestamp: time.Now().UTC(),
		}
		switch {
		case execErr != nil:
			rec.Error = execErr.Error()
		case !execResult.Success:
			rec.Error = execResult.Error
		}
		if rec.Succeeded {
			l.guard.Record(directive, "executed", "")
		} else {
			// Execution failures are recorded and the loop continues; the
			// model sees the unchanged screen and may adapt.
			l.guard.Record(directive, "failed", rec.Error)
			l.logger.Warn("Action execution failed, continuing",
				zap.String("action_type", string(directive.Type)),
				zap.String("error", rec.Error),
			)
		}

		if err := l.observe(ctx, state, handler.settle(l.cfg)); err != nil {
			rec.StateLabel = state.stateLabel
			state.recordAction(rec)
			return l.finish(state, start, schemas.LoopResult{
				Status:     schemas.LoopFailed,
				StepsTaken: step,
				Error:      fmt.Sprintf("observe: %v", err),
			}), nil
		}
		rec.StateLabel = state.stateLabel
		state.recordAction(rec)
	}

	return l.finish(state, start, schemas.LoopResult{
		Status:     schemas.LoopFailed,
		StepsTaken: maxSteps,
		Error:      "step budget exhausted",
	}), nil
}

// decide serializes the current state into a prompt, rate-limits the call,
// and parses the response into exactly one directive.
func (l *Loop) decide(ctx context.Context, goal string, state *loopState) (schemas.Directive, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return schemas.Directive{}, fmt.Errorf("rate limiter: %w", err)
	}
	userPrompt, err := buildDecidePrompt(goal, state.current, state.stateLabel, state.reasoning)
	if err != nil {
		return schemas.Directive{}, err
	}
	response, err := l.llm.GenerateResponse(ctx, schemas.GenerationRequest{
		SystemPrompt: decideSystemPrompt,
		UserPrompt:   userPrompt,
		Options:      schemas.GenerationOptions{ForceJSONFormat: true},
	})
	if err != nil {
		return schemas.Directive{}, fmt.Errorf("inference call failed: %w", err)
	}
	return ParseDirective(response)
}

// recover executes the corrective "return to known-good state" action and
// re-observes. The stuck counter resets; a subsequent state change keeps it
// at zero, while an unchanged screen starts accumulating again.
func (l *Loop) recover(ctx context.Context, state *loopState, step int) error {
	corrective := schemas.Directive{Type: schemas.DirectiveGlobal, Global: schemas.GlobalHome}
	l.guard.Record(corrective, "corrective", "stuck-loop recovery")

	execResult, err := l.gateway.Execute(ctx, l.deviceID, corrective)
	rec := schemas.ActionRecord{
		Step:      step,
		Directive: corrective,
		Succeeded: err == nil && execResult.Success,
		Timestamp: time.Now().UTC(),
	}
	if err != nil {
		rec.Error = err.Error()
	} else if !execResult.Success {
		rec.Error = execResult.Error
	}

	observeErr := l.observe(ctx, state, l.cfg.SettleNavigation)
	rec.StateLabel = state.stateLabel
	state.recordAction(rec)
	state.resetStuck()
	return observeErr
}

// observe waits the settle delay, recaptures with one degenerate-snapshot
// retry, and installs the new snapshot into the loop state.
func (l *Loop) observe(ctx context.Context, state *loopState, settle time.Duration) error {
	if err := sleepCtx(ctx, settle); err != nil {
		return err
	}
	snap, err := l.captureWithRetry(ctx)
	if err != nil {
		return err
	}
	state.observe(snap)
	return nil
}

// captureWithRetry fetches a snapshot, allowing one retry-with-delay when
// the capture is empty or degenerate. A second degenerate capture is a hard
// failure.
func (l *Loop) captureWithRetry(ctx context.Context) (*schemas.SemanticScreenSnapshot, error) {
	snap, err := l.gateway.FetchSnapshot(ctx, l.deviceID)
	if err == nil && !snap.Degenerate() {
		return snap, nil
	}
	if err != nil {
		l.logger.Debug("Snapshot fetch failed, retrying once", zap.Error(err))
	} else {
		l.logger.Debug("Snapshot degenerate, retrying once")
	}
	if serr := sleepCtx(ctx, l.cfg.InitRetryDelay); serr != nil {
		return nil, serr
	}
	snap, err = l.gateway.FetchSnapshot(ctx, l.deviceID)
	if err != nil {
		return nil, fmt.Errorf("snapshot fetch failed: %w", err)
	}
	if snap.Degenerate() {
		return nil, fmt.Errorf("snapshot degenerate after retry")
	}
	return snap, nil
}

// finish stamps the shared result fields and logs the terminal state.
func (l *Loop) finish(state *loopState, start time.Time, result schemas.LoopResult) schemas.LoopResult {
	result.ActionsExecuted = append([]schemas.ActionRecord(nil), state.history...)
	result.ExecutionTimeMS = time.Since(start).Milliseconds()
	l.logger.Info("Control loop finished",
		zap.String("status", string(result.Status)),
		zap.Int("steps_taken", result.StepsTaken),
		zap.Int64("execution_time_ms", result.ExecutionTimeMS),
		zap.String("error", result.Error),
	)
	return result
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
