package cmd

import (
	"fmt"

	"github.com/reflectscan-tool/internal/detect"
	"github.com/reflectscan-tool/internal/payload"
	"github.com/reflectscan-tool/internal/token"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var payloadsCmd = &cobra.Command{
	Use:   "payloads",
	Short: "Print the payloads a scan would send for one context",
	Long: `Print one payload per line for the given context hint and parameter.

Examples:
  reflectscan payloads --context attribute-value
  reflectscan payloads --context script --param q --limit 5 --seed 7`,
	Args: cobra.NoArgs,
	RunE: runPayloads,
}

func init() {
	rootCmd.AddCommand(payloadsCmd)

	payloadsCmd.Flags().String("context", "text-node", "context hint")
	payloadsCmd.Flags().String("param", "q", "parameter name used by name-aware templates")
	payloadsCmd.Flags().Int("limit", 0, "maximum payloads (default from config)")
	payloadsCmd.Flags().Int64("seed", 0, "random seed (0 = from clock)")
	payloadsCmd.Flags().Bool("randomize", false, "shuffle templates before applying --limit")

	for _, name := range []string{"context", "param", "limit", "seed", "randomize"} {
		viper.BindPFlag("payloads."+name, payloadsCmd.Flags().Lookup(name))
	}
}

func runPayloads(cmd *cobra.Command, args []string) error {
	hint, err := detect.ParseContext(viper.GetString("payloads.context"))
	if err != nil {
		return err
	}

	limit := cfg.Scanning.PayloadLimit
	if cmd.Flags().Changed("limit") {
		limit = viper.GetInt("payloads.limit")
	}

	gen := payload.NewGenerator(
		token.NewSource(viper.GetInt64("payloads.seed")),
		payload.WithRandomize(viper.GetBool("payloads.randomize")),
	)

	out := cmd.OutOrStdout()
	for _, p := range gen.Generate(hint, viper.GetString("payloads.param"), limit) {
		fmt.Fprintln(out, p.Value)
	}
	return nil
}
