package scanner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/reflectscan-tool/internal/detect"
	"github.com/reflectscan-tool/internal/injector"
	"github.com/reflectscan-tool/internal/logger"
	"github.com/reflectscan-tool/internal/payload"
	"github.com/reflectscan-tool/pkg/models"
	"github.com/reflectscan-tool/pkg/utils"
)

// ErrNoParams is returned when a scan names no parameters to probe
var ErrNoParams = errors.New("no parameters to scan")

// Sender dispatches one probe and returns the response
type Sender interface {
	SendValue(target, method, param, value string) (*injector.Response, error)
	SendAsName(target, method, payload string) (*injector.Response, error)
}

// PayloadSource renders the payloads for one parameter and context hint
type PayloadSource interface {
	Generate(hint detect.Context, param string, limit int) []payload.Payload
}

// Store persists finished scans
type Store interface {
	SaveScan(ctx context.Context, results *models.ScanResults) error
}

// Progress is reported after every probe
type Progress struct {
	Param    string
	Hint     detect.Context
	Sent     int
	Total    int
	Findings int
}

// Scanner drives params x hints x payloads through the dispatcher and classifier
type Scanner struct {
	sender   Sender
	payloads PayloadSource
	log      logger.Logger
	store    Store
	progress func(Progress)
}

// Option configures a Scanner
type Option func(*Scanner)

// WithStore saves every finished scan to store
func WithStore(store Store) Option {
	return func(s *Scanner) { s.store = store }
}

// WithProgress registers a callback invoked after each probe
func WithProgress(fn func(Progress)) Option {
	return func(s *Scanner) { s.progress = fn }
}

// New creates a new scanner instance
func New(sender Sender, payloads PayloadSource, log logger.Logger, opts ...Option) *Scanner {
	s := &Scanner{
		sender:   sender,
		payloads: payloads,
		log:      log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan probes every parameter with every context hint. Findings keep param,
// hint, payload order. A failed probe is logged and skipped. Cancelling ctx
// stops the scan between probes and returns what was found so far.
func (s *Scanner) Scan(ctx context.Context, cfg *models.ScanConfig) (*models.ScanResults, error) {
	hints, method, err := s.prepare(cfg)
	if err != nil {
		return nil, err
	}

	results := &models.ScanResults{
		ScanID:    uuid.NewString(),
		Target:    cfg.Target,
		Method:    method,
		Params:    cfg.Params,
		Contexts:  cfg.Contexts,
		StartTime: time.Now(),
		Status:    models.StatusRunning,
		Findings:  make([]models.Finding, 0),
	}

	s.log.Info("Starting scan",
		"scan_id", results.ScanID,
		"target", cfg.Target,
		"method", method,
		"params", len(cfg.Params),
		"contexts", cfg.Contexts)

	total := len(cfg.Params) * len(hints)
	done := 0

	status := models.StatusCompleted
scan:
	for _, param := range cfg.Params {
		for _, hint := range hints {
			for _, p := range s.payloads.Generate(hint, param, cfg.PayloadLimit) {
				if ctx.Err() != nil {
					status = models.StatusCancelled
					break scan
				}
				s.probe(results, method, param, hint, p)
			}
			done++
			s.report(Progress{Param: param, Hint: hint, Sent: done, Total: total, Findings: len(results.Findings)})
		}
	}

	results.Finish(status)
	if status == models.StatusCancelled {
		s.log.Warn("Scan cancelled", "scan_id", results.ScanID, "findings", len(results.Findings))
	}

	if s.store != nil {
		// the caller's context may already be cancelled; keep the partial results
		if err := s.store.SaveScan(context.Background(), results); err != nil {
			s.log.Error("Failed to save results", "scan_id", results.ScanID, "error", err)
		}
	}

	s.log.Info("Scan finished",
		"scan_id", results.ScanID,
		"status", results.Status,
		"duration", results.Duration,
		"requests", results.Requests,
		"errors", results.Errors,
		"findings", len(results.Findings))

	return results, nil
}

// prepare validates cfg before any request is sent
func (s *Scanner) prepare(cfg *models.ScanConfig) ([]detect.Context, string, error) {
	if len(cfg.Params) == 0 {
		return nil, "", ErrNoParams
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}

	method, err := utils.NormalizeMethod(cfg.Method)
	if err != nil {
		return nil, "", err
	}

	hints := make([]detect.Context, 0, len(cfg.Contexts))
	for _, name := range cfg.Contexts {
		c, err := detect.ParseContext(name)
		if err != nil {
			return nil, "", err
		}
		hints = append(hints, c)
	}
	return hints, method, nil
}

func (s *Scanner) probe(results *models.ScanResults, method, param string, hint detect.Context, p payload.Payload) {
	var (
		resp *injector.Response
		err  error
	)

	// attribute-name probes put the payload in the parameter name
	sentParam := param
	if hint == detect.AttributeName {
		sentParam = p.Value
		resp, err = s.sender.SendAsName(results.Target, method, p.Value)
	} else {
		resp, err = s.sender.SendValue(results.Target, method, param, p.Value)
	}
	results.Requests++

	if err != nil {
		results.Errors++
		s.log.Warn("Probe failed", "param", param, "payload", p.Value, "error", err)
		return
	}

	res := detect.Classify(resp.Body, p.Token)
	if res == nil {
		return
	}

	s.log.Debug("Reflection found", "param", sentParam, "hint", hint, "context", res.Context)
	results.AddFinding(models.Finding{
		URL:       resp.URL,
		Param:     sentParam,
		Payload:   p.Value,
		Context:   res.Context.String(),
		Snippet:   res.Snippet,
		Method:    method,
		Hint:      hint.String(),
		Element:   res.Element,
		Attribute: res.Attribute,
	})
}

func (s *Scanner) report(p Progress) {
	if s.progress != nil {
		s.progress(p)
	}
}

// Describe is a one-line summary of a scan config for logs and the spinner
func Describe(cfg *models.ScanConfig) string {
	return fmt.Sprintf("%s %s params=%v contexts=%v", cfg.Method, cfg.Target, cfg.Params, cfg.Contexts)
}
