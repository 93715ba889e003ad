package models

import (
	"fmt"
	"strings"
	"time"
)

// Scan status values
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

// ScanConfig describes one scan run against a single URL
type ScanConfig struct {
	Target       string   `json:"target" yaml:"target"`
	Params       []string `json:"params" yaml:"params"`
	Method       string   `json:"method" yaml:"method"`
	Contexts     []string `json:"contexts" yaml:"contexts"`
	PayloadLimit int      `json:"payload_limit" yaml:"payload_limit"`
}

// Validate checks the scan configuration
func (sc *ScanConfig) Validate() error {
	if sc.Target == "" {
		return fmt.Errorf("no target specified")
	}
	if len(sc.Params) == 0 {
		return fmt.Errorf("no parameters specified")
	}
	for _, p := range sc.Params {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("empty parameter name")
		}
	}
	if len(sc.Contexts) == 0 {
		return fmt.Errorf("no contexts specified")
	}
	return nil
}

// SetDefaults fills in unset values
func (sc *ScanConfig) SetDefaults() {
	if sc.Method == "" {
		sc.Method = "GET"
	}
	if sc.PayloadLimit <= 0 {
		sc.PayloadLimit = 2
	}
}

// Finding records one payload that came back in the response
type Finding struct {
	URL       string `json:"url" yaml:"url"`
	Param     string `json:"param" yaml:"param"`
	Payload   string `json:"payload" yaml:"payload"`
	Context   string `json:"context" yaml:"context"`
	Snippet   string `json:"snippet" yaml:"snippet"`
	Method    string `json:"method" yaml:"method"`
	Hint      string `json:"hint" yaml:"hint"`
	Element   string `json:"element_tag,omitempty" yaml:"element_tag,omitempty"`
	Attribute string `json:"attribute_name,omitempty" yaml:"attribute_name,omitempty"`
}

// ScanResults contains the results of a scan run
type ScanResults struct {
	ScanID    string        `json:"scan_id" yaml:"scan_id"`
	Target    string        `json:"target" yaml:"target"`
	Method    string        `json:"method" yaml:"method"`
	Params    []string      `json:"params" yaml:"params"`
	Contexts  []string      `json:"contexts" yaml:"contexts"`
	StartTime time.Time     `json:"start_time" yaml:"start_time"`
	EndTime   time.Time     `json:"end_time" yaml:"end_time"`
	Duration  time.Duration `json:"duration" yaml:"duration"`
	Status    string        `json:"status" yaml:"status"`
	Requests  int           `json:"requests" yaml:"requests"`
	Errors    int           `json:"errors" yaml:"errors"`
	Findings  []Finding     `json:"findings" yaml:"findings"`
}

// AddFinding appends a finding, keeping discovery order
func (sr *ScanResults) AddFinding(f Finding) {
	sr.Findings = append(sr.Findings, f)
}

// CountByContext returns the number of findings per reflection context
func (sr *ScanResults) CountByContext() map[string]int {
	counts := make(map[string]int)
	for _, f := range sr.Findings {
		counts[f.Context]++
	}
	return counts
}

// Finish stamps the end time and final status
func (sr *ScanResults) Finish(status string) {
	sr.EndTime = time.Now()
	sr.Duration = sr.EndTime.Sub(sr.StartTime)
	sr.Status = status
}
