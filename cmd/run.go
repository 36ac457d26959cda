// -- cmd/run.go --
package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mirelock/uipilot/api/schemas"
	"github.com/mirelock/uipilot/internal/dispatcher"
	"github.com/mirelock/uipilot/internal/llmclient"
	"github.com/mirelock/uipilot/internal/observability"
	"github.com/mirelock/uipilot/pkg/providers/cdp"
	"github.com/mirelock/uipilot/pkg/resolver"
	"github.com/mirelock/uipilot/pkg/safety"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// newRunCmd creates the command that drives a browser session toward a goal.
func newRunCmd() *cobra.Command {
	var (
		targetURL   string
		deviceID    string
		maxSteps    int
		timeout     time.Duration
		autoConfirm bool
	)

	cmd := &cobra.Command{
		Use:   "run [goal]",
		Short: "Run the observe-decide-act loop against a web page until the goal is reached",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := observability.GetLogger()
			ctx := cmd.Context()
			goal := args[0]

			browser, err := cdp.NewBrowser(ctx, cfg.Browser, logger)
			if err != nil {
				return fmt.Errorf("failed to start browser: %w", err)
			}
			defer browser.Close()

			if err := browser.Navigate(ctx, targetURL); err != nil {
				return err
			}

			sessionID := uuid.NewString()
			sink, err := safety.OpenSessionLog(cfg.Safety.AuditDir, sessionID)
			if err != nil {
				return err
			}
			defer sink.Close()

			gate := safety.NewGate(logger,
				safety.NewRiskTable(cfg.Safety.Rules),
				safety.NewAuditLog(sink, cfg.Safety.AuditMirrorLimit, logger),
				safety.NewUndoQueue(cfg.Safety.UndoCapacity),
			)

			llm, err := llmclient.NewClient(ctx, cfg.LLM, logger)
			if err != nil {
				return fmt.Errorf("failed to create LLM client: %w", err)
			}

			res := resolver.New(logger, cfg.Resolver, resolver.Providers{Capturer: browser})
			disp := dispatcher.New(logger, cfg.Dispatcher, cfg.Loop, res, gate, browser, llm)

			logger.Info("Starting goal session",
				zap.String("session_id", sessionID),
				zap.String("goal", goal),
				zap.String("url", targetURL),
			)

			result, err := disp.Dispatch(ctx, schemas.Task{
				Type:     schemas.TaskGoal,
				DeviceID: deviceID,
				Goal:     goal,
				MaxSteps: maxSteps,
				Timeout:  timeout,
			})
			if err != nil {
				return err
			}

			if result.Status == schemas.StatusPendingConfirmation && autoConfirm {
				logger.Warn("Auto-confirming held action",
					zap.String("task_id", result.TaskID),
					zap.String("action_type", string(result.Held.Type)),
					zap.String("risk", string(result.Assessment.Level)),
				)
				result, err = disp.Confirm(ctx, result.TaskID)
				if err != nil {
					return err
				}
			}

			if err := printJSON(cmd.OutOrStdout(), result); err != nil {
				return err
			}
			if result.Status == schemas.StatusPendingConfirmation {
				logger.Warn("A high-risk action was held and not executed; re-run with --confirm to approve such actions",
					zap.String("task_id", result.TaskID))
			}
			if result.Status == schemas.StatusFailed {
				return fmt.Errorf("goal did not complete: %s", result.Error)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&targetURL, "url", "", "URL to open before the loop starts (required)")
	cmd.Flags().StringVar(&deviceID, "device", "browser-0", "logical device identifier recorded in results")
	cmd.Flags().IntVar(&maxSteps, "max-steps", 0, "step budget (0 uses the configured default)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "wall-clock budget (0 uses the configured default)")
	cmd.Flags().BoolVar(&autoConfirm, "confirm", false, "automatically approve actions the safety gate defers")
	cmd.MarkFlagRequired("url")
	return cmd
}

// printJSON writes a value as indented JSON.
func printJSON(w io.Writer, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	fmt.Fprintln(w, string(out))
	return nil
}
