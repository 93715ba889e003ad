package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/reflectscan-tool/internal/detect"
	"github.com/reflectscan-tool/pkg/models"
)

const (
	terminalSnippet = 200
	separator       = "----------------------------------------"
)

var (
	headerColor  = color.New(color.FgCyan, color.Bold)
	contextColor = color.New(color.FgRed, color.Bold)
	okColor      = color.New(color.FgGreen)
)

// RenderTerminal writes one block per finding, or a single line when there are none
func RenderTerminal(w io.Writer, findings []models.Finding) {
	if len(findings) == 0 {
		okColor.Fprintln(w, "[+] No reflections found.")
		return
	}

	headerColor.Fprintln(w, "\n=== Reflections Found ===")
	for _, f := range findings {
		fmt.Fprintf(w, "- URL: %s\n", f.URL)
		fmt.Fprintf(w, "  Param: %s\n", f.Param)
		fmt.Fprintf(w, "  Payload: %s\n", f.Payload)
		fmt.Fprintf(w, "  Detected as: %s\n", contextColor.Sprint(f.Context))
		if f.Element != "" {
			fmt.Fprintf(w, "  Element: %s\n", location(f))
		}
		fmt.Fprintf(w, "  Snippet: %s\n", oneLine(f.Snippet, terminalSnippet))
		fmt.Fprintln(w, separator)
	}
}

// RenderSummary prints a findings-per-context table followed by request totals
func RenderSummary(w io.Writer, results *models.ScanResults) error {
	counts := results.CountByContext()

	rows := make([][]string, 0, len(counts))
	for _, c := range detect.All() {
		if n := counts[c.String()]; n > 0 {
			rows = append(rows, []string{c.String(), strconv.Itoa(n)})
		}
	}

	table := tablewriter.NewWriter(w)
	table.Header([]string{"Context", "Findings"})
	if err := table.Bulk(rows); err != nil {
		return err
	}
	table.Footer([]string{"Total", strconv.Itoa(len(results.Findings))})
	if err := table.Render(); err != nil {
		return err
	}

	fmt.Fprintf(w, "Scan %s: %s, %d requests, %d errors, %s\n",
		results.ScanID, results.Status, results.Requests, results.Errors, results.Duration.Round(time.Millisecond))
	return nil
}

func location(f models.Finding) string {
	if f.Attribute == "" {
		return "<" + f.Element + ">"
	}
	return "<" + f.Element + " " + f.Attribute + ">"
}

// oneLine flattens newlines and caps s at max bytes
func oneLine(s string, max int) string {
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}
