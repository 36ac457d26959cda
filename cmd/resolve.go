// -- cmd/resolve.go --
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mirelock/uipilot/api/schemas"
	"github.com/mirelock/uipilot/internal/observability"
	"github.com/mirelock/uipilot/pkg/providers/cdp"
	"github.com/mirelock/uipilot/pkg/resolver"
)

// newResolveCmd creates the command that locates a single element on a page.
func newResolveCmd() *cobra.Command {
	var (
		targetURL string
		element   schemas.ElementDescription
		all       bool
	)

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve an element description to screen coordinates on a web page",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := observability.GetLogger()
			ctx := cmd.Context()

			if !element.HasSelector() {
				return fmt.Errorf("at least one selector flag is required (--control-id, --title, --role, --class, --text, --template)")
			}

			browser, err := cdp.NewBrowser(ctx, cfg.Browser, logger)
			if err != nil {
				return fmt.Errorf("failed to start browser: %w", err)
			}
			defer browser.Close()

			if err := browser.Navigate(ctx, targetURL); err != nil {
				return err
			}

			res := resolver.New(logger, cfg.Resolver, resolver.Providers{Capturer: browser})

			if all {
				detections := res.ResolveAll(ctx, element, browser)
				logger.Info("Resolution finished", zap.Int("candidates", len(detections)))
				return printJSON(cmd.OutOrStdout(), detections)
			}

			detection := res.Resolve(ctx, element, browser)
			logger.Info("Resolution finished",
				zap.Bool("found", detection.Found),
				zap.String("method", string(detection.Method)),
			)
			return printJSON(cmd.OutOrStdout(), detection)
		},
	}

	cmd.Flags().StringVar(&targetURL, "url", "", "URL to open before resolving (required)")
	cmd.Flags().StringVar(&element.ControlID, "control-id", "", "structural control id selector")
	cmd.Flags().StringVar(&element.WindowTitle, "title", "", "window/document title selector")
	cmd.Flags().StringVar(&element.Role, "role", "", "accessibility role selector")
	cmd.Flags().StringVar(&element.ClassName, "class", "", "class name selector")
	cmd.Flags().StringVar(&element.Text, "text", "", "visible text to match")
	cmd.Flags().StringVar(&element.TemplateRef, "template", "", "template image reference for pixel matching")
	cmd.Flags().BoolVar(&all, "all", false, "report every tier's candidate instead of the first hit")
	cmd.MarkFlagRequired("url")
	return cmd
}
