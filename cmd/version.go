package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sbuerk/dbdoctor/pkg/build"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version and build information",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Printf("dbdoctor %s (%s)\n", build.Version, build.Commit)
		fmt.Printf("built %s by %s\n", build.Date, build.BuiltBy)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
