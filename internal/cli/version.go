package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version and Commit are stamped by the release build via -ldflags; a
// plain source build reports "dev".
var (
	Version = "dev"
	Commit  = ""
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the engram version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("engram " + VersionString())
	},
}

// VersionString is the version plus the commit suffix when one was
// stamped in.
func VersionString() string {
	if Commit == "" {
		return Version
	}
	return fmt.Sprintf("%s (%s)", Version, Commit)
}
