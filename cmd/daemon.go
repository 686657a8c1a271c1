package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"thornfield.dev/daybook/pkg/activity"
	"thornfield.dev/daybook/pkg/daemon"
)

func init() {
	rootCmd.AddCommand(newDaemonCmd())
}

func newDaemonCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Manage the daybook background daemon",
		Long: `The daemon runs the incremental aggregation on a schedule and serves the
latest snapshot over a localhost HTTP API, including a live SSE stream of
new activity.`,
	}

	cmd.AddCommand(newDaemonStartCmd())
	cmd.AddCommand(newDaemonStopCmd())
	cmd.AddCommand(newDaemonStatusCmd())
	cmd.AddCommand(newDaemonEventsCmd())

	return cmd
}

func newDaemonStartCmd() *cobra.Command {
	var foreground bool
	var idleExit bool

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the daybook background daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			if daemon.IsRunning() {
				fmt.Println("Daemon is already running.")
				return nil
			}

			if !foreground {
				return spawnDaemon(idleExit)
			}

			return runDaemon(cmd.Context(), idleExit)
		},
	}

	cmd.Flags().BoolVar(&foreground, "foreground", false, "run in the foreground instead of detaching")
	cmd.Flags().BoolVar(&idleExit, "idle-exit", false, "shut down after a period with no clients")

	return cmd
}

// spawnDaemon re-execs the current binary detached from this session.
func spawnDaemon(idleExit bool) error {
	exe, err := os.Executable()
	if err != nil {
		return err
	}

	args := []string{"daemon", "start", "--foreground"}
	if idleExit {
		args = append(args, "--idle-exit")
	}
	c := exec.Command(exe, args...)
	daemon.Detach(c)
	if err := c.Start(); err != nil {
		return err
	}

	fmt.Printf("Daemon started (PID %d)\n", c.Process.Pid)
	return nil
}

// runDaemon builds the service and blocks until shutdown.
func runDaemon(ctx context.Context, idleExit bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	agg, err := buildAggregator(cfg)
	if err != nil {
		return err
	}

	poll := func(ctx context.Context) (*activity.WorkspaceActivity, error) {
		doc, err := agg.Aggregate(ctx, cfg.Workspace.Root, false)
		if err != nil {
			return nil, err
		}
		enrichGitHub(ctx, cfg, &doc)
		return &doc, nil
	}

	svcCfg := daemon.Config{
		Interval:     cfg.Daemon.Interval,
		Addr:         cfg.Daemon.Addr,
		EventsBuffer: cfg.Daemon.EventsBuffer,
	}
	if idleExit {
		svcCfg.IdleTimeout = 15 * time.Minute
	}
	svc := daemon.New(svcCfg, poll)

	if err := daemon.WritePIDFile(); err != nil {
		return err
	}
	defer func() { _ = daemon.RemovePIDFile() }()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nShutting down daemon...")
		cancel()
	}()

	if cfg.Daemon.WatchPlans {
		if refs, _, err := agg.Source.Targets(cfg.Workspace.Root, false); err == nil {
			paths := make([]string, len(refs))
			for i, ref := range refs {
				paths[i] = ref.Path
			}
			go func() { _ = svc.WatchPlans(runCtx, paths, cfg.Plans.DirName) }()
		}
	}

	fmt.Printf("Daemon listening on %s (PID %d)\n", cfg.Daemon.Addr, os.Getpid())
	return svc.Run(runCtx)
}

func newDaemonEventsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "events",
		Short: "Print the daemon's buffered activity events",
		Long: `Events prints the daemon's buffered activity events as JSON, oldest
first. The daemon is started on demand if it is not already running.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			exe, err := os.Executable()
			if err != nil {
				return err
			}

			client, err := daemon.EnsureRunning(cmd.Context(), exe, cfg.Daemon.Addr)
			if err != nil {
				return err
			}

			events, err := client.Events(cmd.Context())
			if err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(events)
		},
	}
}

func newDaemonStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the daybook background daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := daemon.ReadPIDFile()
			if err != nil {
				if os.IsNotExist(err) {
					fmt.Println("Daemon is not running.")
					return nil
				}
				return fmt.Errorf("failed to read PID file: %w", err)
			}

			process, err := os.FindProcess(pid)
			if err != nil {
				return fmt.Errorf("failed to find daemon process: %w", err)
			}

			return process.Signal(syscall.SIGTERM)
		},
	}
}

func newDaemonStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the status of the daybook background daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !daemon.IsRunning() {
				fmt.Println("Daemon is not running.")
				return nil
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			status, err := daemon.NewClient(cfg.Daemon.Addr).Status(cmd.Context())
			if err != nil {
				fmt.Println("Daemon process exists but is not responding.")
				return nil
			}

			fmt.Printf("Daemon running since %s\n", status.StartedAt.Format(time.RFC3339))
			fmt.Printf("  polls: %d (every %ds, last %s ago)\n",
				status.PollCount, status.PollIntervalSec, time.Since(status.LastPollAt).Round(time.Second))
			fmt.Printf("  activity: %d projects, %d commits, %d plan updates\n",
				status.Summary.ActiveProjects, status.Summary.Commits, status.Summary.PlanUpdates)
			if status.LastError != "" {
				fmt.Printf("  last error: %s\n", status.LastError)
			}
			return nil
		},
	}
}
