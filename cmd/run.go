// -- cmd/run.go --
package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagedriver/internal/driver"
	"github.com/xkilldash9x/pagedriver/internal/harness"
	"github.com/xkilldash9x/pagedriver/internal/observability"
)

var (
	flagWorkspace   string
	flagServerPath  string
	flagAgentFolder string
	flagHeadful     bool
)

const closeGracePeriod = 15 * time.Second

// runCmd launches the editor server, connects a browser session and holds
// it open until interrupted. Useful as a smoke test of a server install and
// for interactive debugging with --headful.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Launch the editor server and hold a driven browser session open.",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := observability.GetLogger()

		if flagWorkspace != "" {
			appCfg.Server.Workspace = flagWorkspace
		}
		if flagServerPath != "" {
			appCfg.Server.Path = flagServerPath
		}
		if flagAgentFolder != "" {
			appCfg.Server.AgentFolder = flagAgentFolder
		}
		if flagHeadful {
			appCfg.Browser.Headless = false
		}

		// SIGINT/SIGTERM cancel the context; the deferred Close is the only
		// teardown path.
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		h, err := harness.Open(ctx, appCfg, logger)
		if err != nil {
			return err
		}
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), closeGracePeriod)
			defer cancel()
			if err := h.Close(closeCtx); err != nil {
				logger.Warn("Harness close reported an error.", zap.Error(err))
			}
		}()

		title, err := h.Driver().Title(ctx, driver.WindowID)
		if err != nil {
			logger.Warn("Could not read window title.", zap.Error(err))
		} else {
			logger.Info("Session ready.", zap.String("title", title), zap.String("endpoint", h.Endpoint()))
		}

		<-ctx.Done()
		logger.Info("Shutting down.")
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&flagWorkspace, "workspace", "", "workspace folder to open")
	runCmd.Flags().StringVar(&flagServerPath, "server-path", "", "root of the editor server installation")
	runCmd.Flags().StringVar(&flagAgentFolder, "agent-folder", "", "scratch user-data directory for the server")
	runCmd.Flags().BoolVar(&flagHeadful, "headful", false, "run the browser with a visible window")
	rootCmd.AddCommand(runCmd)
}
