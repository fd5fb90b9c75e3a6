package cmd

import (
	"fmt"

	"ratepace/internal/dummy"
	"ratepace/internal/shutdown"

	"github.com/nuclio/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var dummyCmd = &cobra.Command{
	Use:   "dummy",
	Short: "Run a local target server",
	Long: `
Serves a local target for trying out runs:

  /fast           answers within 10-50ms
  /slow           answers within 1-2s
  /status/<code>  answers with the given status code
  /flaky          answers 500 one time out of five
  /drop           closes the connection without answering`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetInt("port")

		loggerInstance, err := newLogger(viper.GetString("log-level"), cmd.ErrOrStderr())
		if err != nil {
			return err
		}

		ctx, stop := shutdown.NewCoordinator(loggerInstance).Watch(cmd.Context())
		defer stop()

		addr, err := dummy.NewServer(loggerInstance, dummy.ServerConfig{Port: port}).Start(ctx)
		if err != nil {
			return errors.Wrap(err, "Failed to start dummy server")
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Dummy server running on %s\n", addr.String())
		fmt.Fprintln(cmd.OutOrStdout(), "   Endpoints: /fast, /slow, /status/<code>, /flaky, /drop")

		<-ctx.Done()
		return nil
	},
}

func init() {
	dummyCmd.Flags().IntP("port", "p", 8080, "Port to run dummy server on")
}
