package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"xscraper/pkg/sink"
	"xscraper/pkg/ui"
)

// dedupeCmd represents the dedupe command
var dedupeCmd = &cobra.Command{
	Use:   "dedupe <file>",
	Short: "Remove duplicate posts from a harvested CSV",
	Long: `Rewrite a harvested CSV keeping only the first row for each Tweet ID.

Runs that hit rate limits or were resumed can append the same post twice.
The file is replaced atomically, so an interrupted dedupe leaves it intact.`,
	Example: `  xscraper dedupe tweets_data.csv`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := sink.Dedupe(args[0])
		if err != nil {
			ui.PrintError("Dedupe failed", err.Error())
			return reported(err)
		}
		ui.PrintInfo("Kept", fmt.Sprintf("%d", res.Kept))
		ui.PrintInfo("Removed", fmt.Sprintf("%d", res.Removed))
		ui.PrintSuccess("Deduplicated " + args[0])
		return nil
	},
}

// versionCmd prints build information
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("xscraper %s\n", version)
		fmt.Printf("  commit: %s\n", gitCommit)
		fmt.Printf("  built:  %s\n", buildDate)
	},
}

func init() {
	rootCmd.AddCommand(dedupeCmd)
	rootCmd.AddCommand(versionCmd)
}
