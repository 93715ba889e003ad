package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/reflectscan-tool/internal/config"
	"github.com/reflectscan-tool/internal/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	cfg     *config.Config
	log     logger.Logger
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "reflectscan",
	Short: "Reflected XSS scanner with context-aware reflection detection",
	Long: `reflectscan probes a single URL for reflected cross-site scripting.

Each probe carries a unique token. The response is parsed and the token's
location is classified as element-name, attribute-name, attribute-value,
script, text-node or unknown, most specific first.

Only scan targets you are authorized to test.`,
	Version:           "1.0.0",
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute(config *config.Config, logger logger.Logger) error {
	cfg = config
	log = logger
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default searches ./configs/default.yaml, ~/.reflectscan.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "log format (text, json)")

	viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log-format", rootCmd.PersistentFlags().Lookup("log-format"))

	// Add completion command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "completion",
		Short: "Generate completion script",
		Long: `To load completions:

Bash:
$ source <(reflectscan completion bash)

Zsh:
$ source <(reflectscan completion zsh)

Fish:
$ reflectscan completion fish | source
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			default:
				return cmd.Root().GenPowerShellCompletion(out)
			}
		},
	})
}

// initConfig wires environment variables into viper.
func initConfig() {
	viper.SetEnvPrefix("REFLECTSCAN")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// setup reloads the configuration when --config is given and applies the
// global logging flags before any subcommand runs.
func setup(cmd *cobra.Command, args []string) error {
	if cfg == nil || cfgFile != "" {
		loaded, err := config.LoadFrom(cfgFile)
		if err != nil {
			return err
		}
		cfg = loaded
		if cfgFile != "" {
			fmt.Fprintln(os.Stderr, "Using config file:", cfgFile)
		}
	}

	if v := viper.GetString("log-level"); v != "" {
		cfg.LogLevel = v
	}
	if v := viper.GetString("log-format"); v != "" {
		cfg.LogFormat = v
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	log = logger.New(cfg.LogLevel, cfg.LogFormat)
	return nil
}
