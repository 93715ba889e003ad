package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/reflectscan-tool/internal/detect"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var classifyCmd = &cobra.Command{
	Use:   "classify [file|-]",
	Short: "Classify where a token appears in a saved HTML response",
	Long: `Run the reflection classifier on an HTML document read from a file,
or from stdin when the argument is "-" or missing.

Examples:
  curl -s 'http://127.0.0.1:5000/reflect_text?q=PAY_abc123' | reflectscan classify --token PAY_abc123
  reflectscan classify response.html --token PAY_abc123 --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runClassify,
}

func init() {
	rootCmd.AddCommand(classifyCmd)

	classifyCmd.Flags().String("token", "", "token to look for (required)")
	classifyCmd.Flags().Bool("json", false, "print the result as JSON")

	viper.BindPFlag("classify.token", classifyCmd.Flags().Lookup("token"))
	viper.BindPFlag("classify.json", classifyCmd.Flags().Lookup("json"))
}

func runClassify(cmd *cobra.Command, args []string) error {
	tok := viper.GetString("classify.token")
	if tok == "" {
		return fmt.Errorf("--token is required")
	}

	var in io.Reader = cmd.InOrStdin()
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", args[0], err)
		}
		defer f.Close()
		in = f
	}

	body, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("failed to read document: %w", err)
	}

	result := detect.Classify(string(body), tok)
	out := cmd.OutOrStdout()

	if viper.GetBool("classify.json") {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(result)
	}

	if result == nil {
		fmt.Fprintf(out, "No reflection of %s found.\n", tok)
		return nil
	}

	fmt.Fprintf(out, "Detected as: %s\n", result.Context)
	if result.Element != "" {
		fmt.Fprintf(out, "Element: %s\n", result.Element)
	}
	if result.Attribute != "" {
		fmt.Fprintf(out, "Attribute: %s\n", result.Attribute)
	}
	fmt.Fprintf(out, "Snippet: %s\n", result.Snippet)
	return nil
}
