package cmd

import (
	"fmt"

	"github.com/MeKo-Tech/mvgeo/internal/version"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	RunE: func(cmd *cobra.Command, args []string) error {
		v, commit, built := version.Info()
		w := cmd.OutOrStdout()
		_, _ = fmt.Fprintf(w, "mvgeo %s\n", v)
		_, _ = fmt.Fprintf(w, "  commit: %s\n", commit)
		_, _ = fmt.Fprintf(w, "  built:  %s\n", built)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
