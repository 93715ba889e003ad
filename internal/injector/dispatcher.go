package injector

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/gocolly/colly/v2/debug"
	"github.com/gocolly/colly/v2/extensions"
	"github.com/reflectscan-tool/internal/config"
	"github.com/reflectscan-tool/internal/logger"
	"github.com/reflectscan-tool/pkg/utils"
)

// ErrUnsupportedMethod is returned for anything other than GET or POST
var ErrUnsupportedMethod = errors.New("unsupported method")

const (
	responseKey = "response"
	// placeholder value sent when the payload is the parameter name
	nameValue = "1"
	formType  = "application/x-www-form-urlencoded"
)

// Response is what the dispatcher hands back for one probe
type Response struct {
	URL        string
	StatusCode int
	Body       string
	Header     http.Header
}

// Options controls how probes are sent
type Options struct {
	Timeout         time.Duration
	UserAgent       string
	Headers         map[string]string
	Proxy           string
	VerifySSL       bool
	FollowRedirects bool
	MaxRedirects    int
	MaxBodySize     int
	Debug           bool
}

// OptionsFromConfig maps the scanning section of cfg onto dispatcher options
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Timeout:         time.Duration(cfg.Scanning.Timeout) * time.Second,
		UserAgent:       cfg.Scanning.UserAgent,
		Headers:         cfg.Scanning.Headers,
		Proxy:           cfg.Scanning.Proxy,
		VerifySSL:       cfg.Scanning.VerifySSL,
		FollowRedirects: cfg.Scanning.FollowRedirects,
		MaxRedirects:    cfg.Scanning.MaxRedirects,
		MaxBodySize:     cfg.Scanning.MaxBodySize,
		Debug:           cfg.LogLevel == "debug",
	}
}

// Dispatcher sends probes one at a time through a colly collector
type Dispatcher struct {
	collector *colly.Collector
	headers   http.Header
	userAgent string
	log       logger.Logger
}

// NewDispatcher creates a dispatcher. A transport or proxy error is returned
// before any request is made.
func NewDispatcher(opts Options, log logger.Logger) (*Dispatcher, error) {
	collectorOpts := []colly.CollectorOption{
		colly.AllowURLRevisit(),
		colly.ParseHTTPErrorResponse(),
	}
	if opts.UserAgent != "" {
		collectorOpts = append(collectorOpts, colly.UserAgent(opts.UserAgent))
	}
	if opts.MaxBodySize > 0 {
		collectorOpts = append(collectorOpts, colly.MaxBodySize(opts.MaxBodySize))
	}
	if opts.Debug {
		collectorOpts = append(collectorOpts, colly.Debugger(&debug.LogDebugger{Output: os.Stderr}))
	}

	c := colly.NewCollector(collectorOpts...)

	transport, err := NewTransport(opts.Proxy, opts.VerifySSL)
	if err != nil {
		return nil, err
	}
	c.WithTransport(transport)

	if opts.Timeout > 0 {
		c.SetRequestTimeout(opts.Timeout)
	}
	c.SetRedirectHandler(redirectPolicy(opts.FollowRedirects, opts.MaxRedirects))

	if opts.UserAgent == "" {
		extensions.RandomUserAgent(c)
	}

	headers := make(http.Header, len(opts.Headers))
	for k, v := range opts.Headers {
		headers.Set(k, v)
	}

	d := &Dispatcher{
		collector: c,
		headers:   headers,
		userAgent: opts.UserAgent,
		log:       log,
	}
	d.setupCallbacks()

	if opts.Proxy != "" {
		log.Debug("Using proxy", "proxy", utils.RedactURL(opts.Proxy))
	}
	return d, nil
}

func (d *Dispatcher) setupCallbacks() {
	d.collector.OnRequest(func(r *colly.Request) {
		d.log.Debug("Sending probe", "method", r.Method, "url", r.URL.String())
	})

	d.collector.OnResponse(func(r *colly.Response) {
		var header http.Header
		if r.Headers != nil {
			header = *r.Headers
		}
		r.Ctx.Put(responseKey, &Response{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Body:       string(r.Body),
			Header:     header,
		})
	})
}

// SendValue sends value as the value of param: in the query string for GET,
// in a form body for POST.
func (d *Dispatcher) SendValue(target, method, param, value string) (*Response, error) {
	switch strings.ToUpper(method) {
	case http.MethodGet:
		u, err := utils.WithQuery(target, param, value)
		if err != nil {
			return nil, err
		}
		return d.do(http.MethodGet, u, "")
	case http.MethodPost:
		form := url.Values{param: {value}}
		return d.do(http.MethodPost, target, form.Encode())
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedMethod, method)
}

// SendAsName sends payload as a parameter name with a placeholder value.
// The name always travels in the query string; POST adds a placeholder form body.
func (d *Dispatcher) SendAsName(target, method, payload string) (*Response, error) {
	m := strings.ToUpper(method)
	if m != http.MethodGet && m != http.MethodPost {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMethod, method)
	}

	u, err := utils.WithQuery(target, payload, nameValue)
	if err != nil {
		return nil, err
	}
	if m == http.MethodGet {
		return d.do(m, u, "")
	}
	return d.do(m, u, url.Values{"dummy": {nameValue}}.Encode())
}

func (d *Dispatcher) do(method, target, body string) (*Response, error) {
	hdr := d.headers.Clone()
	// colly only applies its own User-Agent when no header map is passed
	if d.userAgent != "" && hdr.Get("User-Agent") == "" {
		hdr.Set("User-Agent", d.userAgent)
	}
	var data *strings.Reader
	if method == http.MethodPost {
		hdr.Set("Content-Type", formType)
		data = strings.NewReader(body)
	}

	ctx := colly.NewContext()
	var err error
	if data != nil {
		err = d.collector.Request(method, target, data, ctx, hdr)
	} else {
		err = d.collector.Request(method, target, nil, ctx, hdr)
	}
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, target, err)
	}

	resp, ok := ctx.GetAny(responseKey).(*Response)
	if !ok {
		return nil, fmt.Errorf("%s %s: no response received", method, target)
	}
	return resp, nil
}
