package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	"github.com/reflectscan-tool/internal/cache"
	"github.com/reflectscan-tool/internal/config"
	"github.com/reflectscan-tool/internal/detect"
	"github.com/reflectscan-tool/internal/injector"
	"github.com/reflectscan-tool/internal/payload"
	"github.com/reflectscan-tool/internal/report"
	"github.com/reflectscan-tool/internal/scanner"
	"github.com/reflectscan-tool/internal/token"
	"github.com/reflectscan-tool/pkg/models"
	"github.com/reflectscan-tool/pkg/utils"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Probe parameters of one URL for reflected XSS",
	Long: `Inject tokenized payloads into each parameter, as a value or as the
parameter name, and classify where each token comes back in the response.

The terminal report is printed unless --report-html is given. The other
--report-* flags write additional files. Every scan is stored under its
scan id so it can be re-rendered later with 'reflectscan report'.

Examples:
  reflectscan scan --url http://127.0.0.1:5000/reflect_all --params q
  reflectscan scan --url http://target/search --params q,id --method POST --report-html report.html
  reflectscan scan --url http://target/ --params q --contexts script,text-node --limit 3 --seed 42`,
	Args: cobra.NoArgs,
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().String("url", "", "target URL (required)")
	scanCmd.Flags().String("params", "", "comma separated parameter names, e.g. q,id (required)")
	scanCmd.Flags().String("method", "GET", "HTTP method (GET or POST)")
	scanCmd.Flags().String("contexts", "", "comma separated context hints (default from config)")
	scanCmd.Flags().Int("limit", 0, "payloads per parameter and context (default from config)")
	scanCmd.Flags().Int("timeout", 0, "request timeout in seconds (default from config)")
	scanCmd.Flags().Bool("randomize", false, "shuffle payload templates before applying --limit")
	scanCmd.Flags().Int64("seed", 0, "random seed for tokens and shuffling (0 = from clock)")
	scanCmd.Flags().StringArrayP("header", "H", nil, `extra request header "Name: value" (repeatable)`)
	scanCmd.Flags().String("proxy", "", "proxy URL (http, https or socks5)")
	scanCmd.Flags().String("user-agent", "", "User-Agent header (empty config value picks a random one)")
	scanCmd.Flags().Bool("insecure", false, "skip TLS certificate verification")
	scanCmd.Flags().Bool("no-save", false, "do not store the results")
	scanCmd.Flags().String("report-html", "", "write an HTML report to this path instead of the terminal report")
	scanCmd.Flags().String("report-json", "", "also write a JSON report")
	scanCmd.Flags().String("report-yaml", "", "also write a YAML report")
	scanCmd.Flags().String("report-csv", "", "also write a CSV report")
	scanCmd.Flags().String("report-md", "", "also write a Markdown report")

	for _, name := range []string{
		"url", "params", "method", "contexts", "limit", "timeout", "randomize", "seed",
		"header", "proxy", "user-agent", "insecure", "no-save",
		"report-html", "report-json", "report-yaml", "report-csv", "report-md",
	} {
		viper.BindPFlag("scan."+name, scanCmd.Flags().Lookup(name))
	}
}

func runScan(cmd *cobra.Command, args []string) error {
	scanConfig, err := buildScan(cmd, cfg)
	if err != nil {
		return err
	}

	exports := reportTargets()

	dispatcher, err := injector.NewDispatcher(injector.OptionsFromConfig(cfg), log)
	if err != nil {
		return fmt.Errorf("failed to initialize dispatcher: %w", err)
	}

	src := token.NewSource(cfg.Scanning.Seed)
	gen := payload.NewGenerator(src, payload.WithRandomize(cfg.Scanning.Randomize))

	spin := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
	spin.Suffix = " " + scanner.Describe(scanConfig)

	opts := []scanner.Option{scanner.WithProgress(func(p scanner.Progress) {
		spin.Lock()
		spin.Suffix = fmt.Sprintf(" %d/%d %s/%s, %d findings", p.Sent, p.Total, p.Param, p.Hint, p.Findings)
		spin.Unlock()
	})}
	var store *savedStore
	if !viper.GetBool("scan.no-save") {
		manager, err := cache.NewManager(cfg, log)
		if err != nil {
			log.Warn("Results will not be stored", "error", err)
		} else {
			store = &savedStore{Store: manager}
			opts = append(opts, scanner.WithStore(store))
		}
	}

	s := scanner.New(dispatcher, gen, log, opts...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	spin.Start()
	results, err := s.Scan(ctx, scanConfig)
	spin.Stop()
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	return writeReports(cmd, results, exports, store.ok())
}

// savedStore remembers whether the results actually reached the store
type savedStore struct {
	scanner.Store
	saved bool
}

func (s *savedStore) SaveScan(ctx context.Context, results *models.ScanResults) error {
	err := s.Store.SaveScan(ctx, results)
	s.saved = err == nil
	return err
}

func (s *savedStore) ok() bool {
	return s != nil && s.saved
}

// buildScan merges flags over the loaded configuration and validates
// everything that can be checked before a request is sent.
func buildScan(cmd *cobra.Command, cfg *config.Config) (*models.ScanConfig, error) {
	flags := cmd.Flags()

	target := viper.GetString("scan.url")
	if target == "" {
		return nil, fmt.Errorf("--url is required")
	}
	if !utils.IsValidURL(target) {
		return nil, fmt.Errorf("invalid target URL: %s", target)
	}

	params := utils.SplitList(viper.GetString("scan.params"))
	if len(params) == 0 {
		return nil, fmt.Errorf("--params is required")
	}

	method, err := utils.NormalizeMethod(viper.GetString("scan.method"))
	if err != nil {
		return nil, err
	}

	if flags.Changed("contexts") {
		cfg.Scanning.Contexts = utils.SplitList(viper.GetString("scan.contexts"))
	}
	for _, c := range cfg.Scanning.Contexts {
		if _, err := detect.ParseContext(c); err != nil {
			return nil, err
		}
	}

	if flags.Changed("limit") {
		cfg.Scanning.PayloadLimit = viper.GetInt("scan.limit")
	}
	if flags.Changed("timeout") {
		cfg.Scanning.Timeout = viper.GetInt("scan.timeout")
	}
	if flags.Changed("randomize") {
		cfg.Scanning.Randomize = viper.GetBool("scan.randomize")
	}
	if flags.Changed("seed") {
		cfg.Scanning.Seed = viper.GetInt64("scan.seed")
	}
	if flags.Changed("proxy") {
		cfg.Scanning.Proxy = viper.GetString("scan.proxy")
	}
	if flags.Changed("user-agent") {
		cfg.Scanning.UserAgent = viper.GetString("scan.user-agent")
	}
	if flags.Changed("insecure") && viper.GetBool("scan.insecure") {
		cfg.Scanning.VerifySSL = false
	}

	lines, err := flags.GetStringArray("header")
	if err != nil {
		return nil, err
	}
	headers, err := utils.ParseHeaders(lines)
	if err != nil {
		return nil, err
	}
	if cfg.Scanning.Headers == nil {
		cfg.Scanning.Headers = make(map[string]string, len(headers))
	}
	for k, v := range headers {
		cfg.Scanning.Headers[k] = v
	}

	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	sc := &models.ScanConfig{
		Target:       target,
		Params:       params,
		Method:       method,
		Contexts:     cfg.Scanning.Contexts,
		PayloadLimit: cfg.Scanning.PayloadLimit,
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return sc, nil
}

type export struct {
	format report.Format
	path   string
}

var exportFlags = []struct {
	flag   string
	format report.Format
}{
	{"report-html", report.FormatHTML},
	{"report-json", report.FormatJSON},
	{"report-yaml", report.FormatYAML},
	{"report-csv", report.FormatCSV},
	{"report-md", report.FormatMarkdown},
}

func reportTargets() []export {
	var out []export
	for _, e := range exportFlags {
		if path := viper.GetString("scan." + e.flag); path != "" {
			out = append(out, export{format: e.format, path: path})
		}
	}
	return out
}

func writeReports(cmd *cobra.Command, results *models.ScanResults, exports []export, saved bool) error {
	out := cmd.OutOrStdout()
	gen := report.NewGenerator(log)

	htmlOnly := false
	for _, e := range exports {
		if e.format == report.FormatHTML {
			if err := report.RenderHTML(results, e.path); err != nil {
				return err
			}
			log.Info("Report saved", "format", e.format, "path", e.path)
			htmlOnly = true
			fmt.Fprintf(out, "[+] HTML report saved to %s\n", e.path)
			continue
		}
		if err := gen.WriteFile(e.path, results, e.format); err != nil {
			return err
		}
	}

	if !htmlOnly {
		report.RenderTerminal(out, results.Findings)
		fmt.Fprintln(out)
		if err := report.RenderSummary(out, results); err != nil {
			return err
		}
	}

	if saved {
		fmt.Fprintf(out, "Scan id: %s (reflectscan report %s)\n", results.ScanID, results.ScanID)
	}
	return nil
}
