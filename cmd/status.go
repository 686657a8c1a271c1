package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"thornfield.dev/daybook/pkg/daemon"
	"thornfield.dev/daybook/pkg/discovery"
	"thornfield.dev/daybook/pkg/state"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show incremental state, cache, and daemon status",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		fmt.Printf("Workspace root: %s\n", cfg.Workspace.Root)

		store, err := state.NewStore("")
		if err != nil {
			return err
		}
		st := store.Load(cfg.Workspace.Root)
		fmt.Printf("State file:     %s\n", store.Path(cfg.Workspace.Root))
		if st.LastRunAt != nil {
			fmt.Printf("Last run:       %s (%s ago)\n",
				st.LastRunAt.Format(time.RFC3339), time.Since(*st.LastRunAt).Round(time.Second))
		} else {
			fmt.Println("Last run:       never")
		}

		cache := discovery.NewCache(cfg.Cache.Path)
		if err := cache.Load(); err == nil && !cache.LastScanned.IsZero() {
			fmt.Printf("Discovery cache: %d repositories, scanned %s ago\n",
				len(cache.Repos), time.Since(cache.LastScanned).Round(time.Second))
		} else {
			fmt.Println("Discovery cache: empty")
		}

		if daemon.IsRunning() {
			client := daemon.NewClient(cfg.Daemon.Addr)
			if ds, err := client.Status(cmd.Context()); err == nil {
				fmt.Printf("Daemon:         running (polled %d times, last %s ago)\n",
					ds.PollCount, time.Since(ds.LastPollAt).Round(time.Second))
			} else {
				fmt.Println("Daemon:         pidfile present but not responding")
			}
		} else {
			fmt.Println("Daemon:         not running")
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
