// Package main is the entrypoint for the fleetrun CLI.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fleetrun/fleetrun/internal/engine"
	"github.com/fleetrun/fleetrun/internal/hostlist"
	"github.com/fleetrun/fleetrun/internal/lg"
	"github.com/fleetrun/fleetrun/internal/printer"
	"github.com/fleetrun/fleetrun/internal/transport"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Global flags
var (
	forks          int
	connectTimeout time.Duration
	tags           []string
	configPath     string
	noColor        bool
	debug          bool
)

// runOK carries the aggregate outcome to the exit-status mapping in
// main: 0 all hosts exited zero, 1 otherwise, 2 usage or input errors.
var runOK = true

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(2)
	}
	if !runOK {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "fleetrun [flags] <hosts.csv> <command...>",
	Short: "Run one command on many hosts over SSH in parallel",
	Long: `Fleetrun runs a single command against every host in a hosts file
concurrently, streaming each host's output live with an alias prefix.

The hosts file is comma-separated text, one host per line:

  alias,address,port,user[,keypath[,tags]]

An empty keypath uses the default keys under ~/.ssh; '#' selects
password auth (read from $FLEETRUN_PASSWORD). Tags are colon-separated.

Examples:
  fleetrun hosts.csv uptime
  fleetrun -f 20 -t 5s hosts.csv systemctl is-active nginx
  fleetrun --tags web hosts.csv 'tail -n1 /var/log/nginx/access.log'`,
	Args:         cobra.MinimumNArgs(2),
	RunE:         run,
	SilenceUsage: true,
	Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
}

func init() {
	rootCmd.Flags().IntVarP(&forks, "forks", "f", 0, "Max concurrent hosts (0 = unlimited)")
	rootCmd.Flags().DurationVarP(&connectTimeout, "connect-timeout", "t", transport.DefaultTimeout, "SSH dial and handshake timeout")
	rootCmd.Flags().StringSliceVar(&tags, "tags", nil, "Only run on hosts matching any of these tags")
	rootCmd.Flags().StringVar(&configPath, "config", "", "YAML file with default run options")
	rootCmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging on stderr")
}

func run(cmd *cobra.Command, args []string) error {
	if configPath != "" {
		d, err := loadDefaults(configPath)
		if err != nil {
			return err
		}
		if err := applyDefaults(cmd, d); err != nil {
			return err
		}
	}

	logger := lg.New(debug)
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx = lg.Attach(ctx, logger)

	// First interrupt cancels the run; every in-flight host winds down
	// and reports cancelled.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nInterrupted, winding down...")
		cancel()
	}()

	hosts, err := hostlist.Load(ctx, args[0], hostlist.Options{
		Tags:     tags,
		Password: os.Getenv("FLEETRUN_PASSWORD"),
	})
	if err != nil {
		return err
	}
	if len(hosts) == 0 {
		logger.Warn("no hosts selected", lg.String("file", args[0]))
	}

	command := strings.Join(args[1:], " ")
	pr := printer.New(hostlist.MaxAliasLen(hosts), !noColor)
	mux := engine.NewMux(os.Stdout, pr.Line)
	dialer := &transport.SSHDialer{Timeout: connectTimeout}

	outcome, err := engine.New(dialer, mux, logger).Run(ctx, hosts, command, engine.Options{Forks: forks})
	if err != nil {
		return err
	}

	printSummary(os.Stdout, pr, outcome)
	runOK = outcome.OK
	return nil
}

// summaryWidth is the length of the rule drawn between the live output
// and the per-host report.
const summaryWidth = 60

// printSummary writes the end-of-run report: a separator rule, then
// one line per host in registration order.
func printSummary(w io.Writer, pr *printer.Printer, outcome engine.Outcome) {
	if len(outcome.Hosts) == 0 {
		return
	}
	fmt.Fprintln(w, strings.Repeat("-", summaryWidth))
	for _, c := range outcome.Hosts {
		fmt.Fprintln(w, pr.Summary(c))
	}
}
