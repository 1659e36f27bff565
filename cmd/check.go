package cmd

import (
	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	"github.com/rayonsim/rayon/state"
)

// checkCmd represents the check command
var checkCmd = &cobra.Command{
	Use:   "check <scenario.yaml>",
	Short: "Validate a scenario file and print the merged configuration",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := state.LoadSimCfg(args[0])
		if err != nil {
			panic(err)
		}
		err = state.ValidateSimCfg(cfg)
		if err != nil {
			panic(err)
		}

		cfgYaml, err := yaml.Marshal(cfg)
		if err != nil {
			panic(err)
		}

		println("Scenario is valid")
		println(string(cfgYaml))
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
