package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/reflectscan-tool/internal/logger"
	"github.com/reflectscan-tool/pkg/models"
	"gopkg.in/yaml.v3"
)

// Format is a report output format
type Format string

const (
	FormatTerminal Format = "terminal"
	FormatHTML     Format = "html"
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
)

// Formats lists every supported format
func Formats() []Format {
	return []Format{FormatTerminal, FormatHTML, FormatJSON, FormatYAML, FormatCSV, FormatMarkdown}
}

// ParseFormat accepts a format name, with "md" and "yml" as aliases
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(name))); f {
	case "md":
		return FormatMarkdown, nil
	case "yml":
		return FormatYAML, nil
	case FormatTerminal, FormatHTML, FormatJSON, FormatYAML, FormatCSV, FormatMarkdown:
		return f, nil
	}
	return "", fmt.Errorf("unsupported format: %s", name)
}

// Generator renders scan results in any supported format
type Generator struct {
	log logger.Logger
}

// NewGenerator creates a new report generator
func NewGenerator(log logger.Logger) *Generator {
	return &Generator{log: log}
}

// Write renders results to w
func (g *Generator) Write(w io.Writer, results *models.ScanResults, format Format) error {
	switch format {
	case FormatTerminal:
		RenderTerminal(w, results.Findings)
		return nil
	case FormatHTML:
		return WriteHTML(w, results)
	case FormatJSON:
		return WriteJSON(w, results)
	case FormatYAML:
		return WriteYAML(w, results)
	case FormatCSV:
		return WriteCSV(w, results.Findings)
	case FormatMarkdown:
		return WriteMarkdown(w, results)
	}
	return fmt.Errorf("unsupported format: %s", format)
}

// WriteFile renders results to path, replacing any existing file
func (g *Generator) WriteFile(path string, results *models.ScanResults, format Format) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s report: %w", format, err)
	}
	defer file.Close()

	if err := g.Write(file, results, format); err != nil {
		return fmt.Errorf("failed to write %s report: %w", format, err)
	}

	g.log.Info("Report saved", "format", format, "path", path)
	return nil
}

// WriteHTML renders a standalone HTML document with one row per finding
func WriteHTML(w io.Writer, results *models.ScanResults) error {
	return reportTemplate.Execute(w, results)
}

// RenderHTML writes the HTML report to path, overwriting it
func RenderHTML(results *models.ScanResults, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create HTML report: %w", err)
	}
	defer file.Close()

	return WriteHTML(file, results)
}

// WriteJSON writes results as indented JSON
func WriteJSON(w io.Writer, results *models.ScanResults) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(results)
}

// WriteYAML writes results as YAML
func WriteYAML(w io.Writer, results *models.ScanResults) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(results); err != nil {
		return err
	}
	return enc.Close()
}

// WriteCSV writes one record per finding under a header row
func WriteCSV(w io.Writer, findings []models.Finding) error {
	writer := csv.NewWriter(w)

	header := []string{"URL", "Param", "Payload", "Context", "Snippet", "Method", "Hint", "Element", "Attribute"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, f := range findings {
		record := []string{f.URL, f.Param, f.Payload, f.Context, f.Snippet, f.Method, f.Hint, f.Element, f.Attribute}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// WriteMarkdown writes a summary table and a findings table
func WriteMarkdown(w io.Writer, results *models.ScanResults) error {
	md := markdown.NewMarkdown(w)

	md.H1("Reflected XSS Report")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Target", mdCell(results.Target)},
			{"Method", results.Method},
			{"Params", mdCell(strings.Join(results.Params, ", "))},
			{"Scan ID", results.ScanID},
			{"Status", results.Status},
			{"Requests", fmt.Sprint(results.Requests)},
			{"Errors", fmt.Sprint(results.Errors)},
		},
	})
	md.PlainText("")

	md.H2("Findings")
	md.PlainText("")
	if len(results.Findings) == 0 {
		md.PlainText("No reflections found.")
		return md.Build()
	}

	rows := make([][]string, 0, len(results.Findings))
	for _, f := range results.Findings {
		rows = append(rows, []string{
			mdCell(f.URL), mdCell(f.Param), mdCell(f.Payload), f.Context, mdCell(oneLine(f.Snippet, terminalSnippet)),
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"URL", "Param", "Payload", "Context", "Snippet"},
		Rows:   rows,
	})

	return md.Build()
}

// mdCell wraps a value in a code span so markup in it renders as text
func mdCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	s = strings.ReplaceAll(s, "`", "'")
	return "`" + s + "`"
}
