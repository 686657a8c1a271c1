package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/creativeprojects/go-selfupdate"
	"github.com/spf13/cobra"

	dberrors "thornfield.dev/daybook/pkg/errors"
)

const (
	repoOwner = "thornfield"
	repoName  = "daybook"
)

var (
	updateCheck bool
	updateForce bool
	updatePre   bool
	updateYes   bool
)

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Update daybook to the latest release",
	Long: `Update downloads the latest daybook release from GitHub releases,
verifies its checksums, and replaces the current binary in place.

Examples:
  daybook update            # interactive update to the latest release
  daybook update --check    # report whether an update is available
  daybook update --yes      # update without the confirmation prompt
  daybook update --force    # reinstall even when already up to date
  daybook update --pre      # include pre-release versions`,
	RunE: runUpdate,
}

func runUpdate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	updater, err := selfupdate.NewUpdater(selfupdate.Config{
		Prerelease: updatePre,
	})
	if err != nil {
		return dberrors.Wrap(err, "failed to initialize updater")
	}

	repo := selfupdate.ParseSlug(repoOwner + "/" + repoName)
	latest, found, err := updater.DetectLatest(ctx, repo)
	if err != nil {
		return dberrors.Wrap(err, "failed to check for updates")
	}
	if !found {
		fmt.Println("No releases found.")
		return nil
	}

	current := GetVersion()

	if updateCheck {
		if upToDate(current, latest.Version()) {
			fmt.Printf("daybook %s is up to date.\n", current)
		} else {
			fmt.Printf("Update available: %s -> %s\n", current, latest.Version())
		}
		return nil
	}

	if !updateForce {
		if upToDate(current, latest.Version()) {
			fmt.Printf("daybook %s is up to date.\n", current)
			return nil
		}
		if isDowngrade(current, latest.Version()) {
			return dberrors.Newf("latest release %s is older than the current version %s (use --force to install anyway)",
				latest.Version(), current)
		}
	}

	if !updateYes && !updateForce {
		if !confirmUpdate(current, latest.Version()) {
			fmt.Println("Update cancelled.")
			return nil
		}
	}

	exe, err := selfupdate.ExecutablePath()
	if err != nil {
		return dberrors.Wrap(err, "failed to locate the current binary")
	}

	if err := updater.UpdateTo(ctx, latest, exe); err != nil {
		return dberrors.Wrap(err, "update failed")
	}

	fmt.Printf("Updated daybook to %s\n", latest.Version())
	return nil
}

// upToDate reports whether current is at least the latest version. A dev
// build is never up to date.
func upToDate(current, latest string) bool {
	cur, err := semver.NewVersion(current)
	if err != nil {
		return false
	}
	lat, err := semver.NewVersion(latest)
	if err != nil {
		return false
	}
	return !cur.LessThan(lat)
}

// isDowngrade reports whether moving to latest would roll the binary back.
func isDowngrade(current, latest string) bool {
	cur, err := semver.NewVersion(current)
	if err != nil {
		return false
	}
	lat, err := semver.NewVersion(latest)
	if err != nil {
		return false
	}
	return lat.LessThan(cur)
}

// confirmUpdate prompts on stdin; y/yes (any case) accepts.
func confirmUpdate(currentVersion, newVersion string) bool {
	fmt.Printf("Update daybook from %s to %s? [y/N]: ", currentVersion, newVersion)

	reader := bufio.NewReader(os.Stdin)
	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}

	response = strings.ToLower(strings.TrimSpace(response))
	return response == "y" || response == "yes"
}

func init() {
	rootCmd.AddCommand(updateCmd)

	updateCmd.Flags().BoolVarP(&updateCheck, "check", "c", false, "Check for updates without installing")
	updateCmd.Flags().BoolVarP(&updateForce, "force", "f", false, "Force update even if already up to date")
	updateCmd.Flags().BoolVarP(&updatePre, "pre", "p", false, "Include pre-release versions")
	updateCmd.Flags().BoolVarP(&updateYes, "yes", "y", false, "Skip the confirmation prompt")
}
