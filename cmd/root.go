package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "rayon",
	Short: "Rayon Sensor Network Simulator",
	Long: `Rayon simulates a low-power wireless sensor network running tree collection.
It replays a scenario file over a virtual radio medium and reports how the
network converged and what the sink collected.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
