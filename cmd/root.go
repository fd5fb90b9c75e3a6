package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	"ratepace/internal/banner"
	"ratepace/internal/cli"
	"ratepace/internal/params"
	"ratepace/internal/shutdown"

	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
	nucliozap "github.com/nuclio/zap"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "ratepace [targetURL] [totalRequests] [requestsPerSecond]",
	Short: "ratepace - rate-paced HTTP load generator",
	Long: `
ratepace fires a fixed budget of HTTP GET requests at a target URL, one batch
per second, and prints a performance report once every request completed or
the run was interrupted.

Defaults: https://www.example.com/, 20 requests, 1 request per second.
Every request is appended to request-log-<date>.txt in the log directory.`,
	Args:          cobra.MaximumNArgs(3),
	SilenceUsage:  true,
	SilenceErrors: true,
	Run: func(cmd *cobra.Command, args []string) {
		if code := run(cmd.Context(), args, cmd.OutOrStdout(), cmd.ErrOrStderr()); code != 0 {
			os.Exit(code)
		}
	},
}

func Execute() {
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), banner.GetString())
		cmd.Usage() // nolint: errcheck
	})

	rootCmd.SetArgs(normalizeArgs(rootCmd.LocalFlags(), os.Args[1:]))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.AddCommand(dummyCmd)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.ratepace.yaml)")
	rootCmd.PersistentFlags().String("log-level", "warn", "Diagnostics level (debug, info, warn, error)")

	rootCmd.Flags().Int("timeout", 10, "Request timeout in seconds")
	rootCmd.Flags().String("log-dir", ".", "Directory of the daily request log")
	rootCmd.Flags().String("metrics-addr", "", "Serve prometheus metrics on this address (disabled when empty)")
	rootCmd.Flags().Bool("tui", false, "Show a live view while the run progresses")

	viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level")) // nolint: errcheck
	for _, name := range []string{"timeout", "log-dir", "metrics-addr", "tui"} {
		viper.BindPFlag(name, rootCmd.Flags().Lookup(name)) // nolint: errcheck
	}
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
			viper.SetConfigType("yaml")
			viper.SetConfigName(".ratepace")
		}
	}
	viper.SetEnvPrefix("ratepace")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	viper.ReadInConfig() // nolint: errcheck
}

// run resolves the parameters and performs a single run, returning the
// process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if ctx == nil {
		ctx = context.Background()
	}

	parameters, err := params.Resolve(args)
	if err != nil {
		fmt.Fprintln(stderr, err.Error())
		return 1
	}

	loggerInstance, err := newLogger(viper.GetString("log-level"), stderr)
	if err != nil {
		errors.PrintErrorStack(stderr, err, 5)
		return 1
	}

	runCtx, stop := shutdown.NewCoordinator(loggerInstance).Watch(ctx)
	defer stop()

	session := cli.NewSession(loggerInstance, cli.Options{
		Params:      parameters,
		Timeout:     time.Duration(viper.GetInt("timeout")) * time.Second,
		LogDir:      viper.GetString("log-dir"),
		MetricsAddr: viper.GetString("metrics-addr"),
		TUI:         viper.GetBool("tui"),
		Out:         stdout,
		ErrOut:      stderr,
	})

	if _, err := session.Run(runCtx); err != nil {
		errors.PrintErrorStack(stderr, err, 5)
		return 1
	}

	return 0
}

func newLogger(level string, output io.Writer) (logger.Logger, error) {
	loggerInstance, err := nucliozap.NewNuclioZapCmd("ratepace",
		nucliozap.GetLevelByName(level),
		nucliozap.NewRedactor(output))
	if err != nil {
		return nil, errors.Wrap(err, "Failed to create logger")
	}

	return loggerInstance, nil
}

var negativeNumber = regexp.MustCompile(`^-[0-9]+$`)

// normalizeArgs keeps negative numbers positional so they reach parameter
// validation instead of failing as unknown shorthand flags. Flags are moved
// ahead of a "--" separator, positionals keep their order after it.
func normalizeArgs(flags *pflag.FlagSet, args []string) []string {
	hasNegative := false
	for _, arg := range args {
		if arg == "--" {
			break
		}
		if negativeNumber.MatchString(arg) {
			hasNegative = true
			break
		}
	}
	if !hasNegative {
		return args
	}

	var flagArgs, positionals []string
	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch {
		case arg == "--":
			positionals = append(positionals, args[i+1:]...)
			i = len(args)
		case negativeNumber.MatchString(arg) || !strings.HasPrefix(arg, "-") || arg == "-":
			positionals = append(positionals, arg)
		default:
			flagArgs = append(flagArgs, arg)
			if takesValue(flags, arg) && i+1 < len(args) {
				i++
				flagArgs = append(flagArgs, args[i])
			}
		}
	}

	return append(append(flagArgs, "--"), positionals...)
}

// takesValue tells whether a flag given without "=value" consumes the
// following argument.
func takesValue(flags *pflag.FlagSet, arg string) bool {
	if strings.Contains(arg, "=") {
		return false
	}

	var flag *pflag.Flag
	if name := strings.TrimPrefix(arg, "--"); name != arg {
		flag = flags.Lookup(name)
	} else {
		shorthand := strings.TrimPrefix(arg, "-")
		if len(shorthand) != 1 {
			return false
		}
		flag = flags.ShorthandLookup(shorthand)
	}

	return flag != nil && flag.NoOptDefVal == ""
}
