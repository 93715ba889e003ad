package scanner

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/reflectscan-tool/internal/detect"
	"github.com/reflectscan-tool/internal/injector"
	"github.com/reflectscan-tool/internal/logger"
	"github.com/reflectscan-tool/internal/payload"
	"github.com/reflectscan-tool/internal/token"
	"github.com/reflectscan-tool/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	asName bool
	method string
	param  string
	value  string
}

// fakeSender reflects every value into a text node and every name into an attribute name
type fakeSender struct {
	calls []call
	fail  func(c call) bool
}

func (f *fakeSender) SendValue(target, method, param, value string) (*injector.Response, error) {
	c := call{method: method, param: param, value: value}
	f.calls = append(f.calls, c)
	if f.fail != nil && f.fail(c) {
		return nil, errors.New("connection refused")
	}
	return &injector.Response{URL: target + "?" + param + "=x", StatusCode: 200, Body: "<p>" + value + "</p>"}, nil
}

func (f *fakeSender) SendAsName(target, method, p string) (*injector.Response, error) {
	c := call{asName: true, method: method, value: p}
	f.calls = append(f.calls, c)
	if f.fail != nil && f.fail(c) {
		return nil, errors.New("timeout")
	}
	return &injector.Response{URL: target, StatusCode: 200, Body: `<div ` + p + `="1"></div>`}, nil
}

type memStore struct {
	saved []*models.ScanResults
}

func (m *memStore) SaveScan(_ context.Context, r *models.ScanResults) error {
	m.saved = append(m.saved, r)
	return nil
}

func newScanner(sender Sender, opts ...Option) *Scanner {
	return New(sender, payload.NewGenerator(token.NewSource(7)), logger.Discard(), opts...)
}

func TestScanOrder(t *testing.T) {
	sender := &fakeSender{}
	s := newScanner(sender)

	res, err := s.Scan(context.Background(), &models.ScanConfig{
		Target:       "http://app.local/search",
		Params:       []string{"q", "id"},
		Method:       "get",
		Contexts:     []string{"attribute-name", "text-node"},
		PayloadLimit: 2,
	})
	require.NoError(t, err)

	// q: name(1) + text(2), id: name(1) + text(2)
	require.Len(t, sender.calls, 6)
	assert.True(t, sender.calls[0].asName)
	assert.Equal(t, "q", sender.calls[1].param)
	assert.Equal(t, "q", sender.calls[2].param)
	assert.True(t, sender.calls[3].asName)
	assert.Equal(t, "id", sender.calls[4].param)

	assert.Equal(t, "GET", res.Method)
	assert.Equal(t, 6, res.Requests)
	assert.Equal(t, 0, res.Errors)
	assert.Equal(t, models.StatusCompleted, res.Status)
	require.Len(t, res.Findings, 6)

	name := res.Findings[0]
	assert.Equal(t, detect.AttributeName.String(), name.Context)
	assert.Equal(t, name.Payload, name.Param)
	assert.Equal(t, "attribute-name", name.Hint)

	// "<script>/*TOKEN*/</script>" inside <p> lands in a script element
	assert.Equal(t, "script", res.Findings[1].Context)
	assert.Equal(t, "text-node", res.Findings[2].Context)
	assert.Equal(t, "q", res.Findings[2].Param)
	assert.Equal(t, "http://app.local/search?q=x", res.Findings[2].URL)
	assert.Equal(t, "id", res.Findings[5].Param)
}

func TestScanIDIsUUID(t *testing.T) {
	s := newScanner(&fakeSender{})

	a, err := s.Scan(context.Background(), &models.ScanConfig{Target: "http://x", Params: []string{"q"}, Contexts: []string{"script"}})
	require.NoError(t, err)
	b, err := s.Scan(context.Background(), &models.ScanConfig{Target: "http://x", Params: []string{"q"}, Contexts: []string{"script"}})
	require.NoError(t, err)

	assert.Len(t, a.ScanID, 36)
	assert.NotEqual(t, a.ScanID, b.ScanID)
}

func TestProbeErrorsDoNotAbort(t *testing.T) {
	sender := &fakeSender{fail: func(c call) bool { return c.param == "q" }}
	s := newScanner(sender)

	res, err := s.Scan(context.Background(), &models.ScanConfig{
		Target:   "http://app.local",
		Params:   []string{"q", "name"},
		Contexts: []string{"text-node"},
	})
	require.NoError(t, err)

	assert.Equal(t, 4, res.Requests)
	assert.Equal(t, 2, res.Errors)
	require.Len(t, res.Findings, 2)
	for _, f := range res.Findings {
		assert.Equal(t, "name", f.Param)
	}
}

func TestNoReflectionNoFinding(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<p>static page</p>")
	}))
	defer srv.Close()

	d, err := injector.NewDispatcher(injector.Options{Timeout: 2 * time.Second}, logger.Discard())
	require.NoError(t, err)

	res, err := newScanner(d).Scan(context.Background(), &models.ScanConfig{
		Target:   srv.URL,
		Params:   []string{"q"},
		Contexts: []string{"attribute-value", "script"},
	})
	require.NoError(t, err)
	assert.Empty(t, res.Findings)
	assert.Equal(t, 4, res.Requests)
}

func TestArgumentErrorsBeforeAnyRequest(t *testing.T) {
	tests := []struct {
		name string
		cfg  models.ScanConfig
		is   error
	}{
		{"no params", models.ScanConfig{Target: "http://x", Contexts: []string{"script"}}, ErrNoParams},
		{"bad method", models.ScanConfig{Target: "http://x", Params: []string{"q"}, Method: "PUT", Contexts: []string{"script"}}, nil},
		{"bad context", models.ScanConfig{Target: "http://x", Params: []string{"q"}, Contexts: []string{"css"}}, nil},
		{"no target", models.ScanConfig{Params: []string{"q"}, Contexts: []string{"script"}}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &fakeSender{}
			cfg := tt.cfg
			_, err := newScanner(sender).Scan(context.Background(), &cfg)
			require.Error(t, err)
			if tt.is != nil {
				assert.ErrorIs(t, err, tt.is)
			}
			assert.Empty(t, sender.calls)
		})
	}
}

func TestCancelStopsBetweenProbes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sender := &fakeSender{fail: func(c call) bool {
		cancel()
		return false
	}}
	store := &memStore{}
	s := newScanner(sender, WithStore(store))

	res, err := s.Scan(ctx, &models.ScanConfig{
		Target:   "http://app.local",
		Params:   []string{"q", "id", "name"},
		Contexts: []string{"text-node", "script"},
	})
	require.NoError(t, err)

	assert.Len(t, sender.calls, 1)
	assert.Equal(t, models.StatusCancelled, res.Status)
	assert.Len(t, res.Findings, 1)
	require.Len(t, store.saved, 1)
	assert.Equal(t, res.ScanID, store.saved[0].ScanID)
}

func TestProgressAndStore(t *testing.T) {
	var seen []Progress
	store := &memStore{}
	s := newScanner(&fakeSender{}, WithStore(store), WithProgress(func(p Progress) { seen = append(seen, p) }))

	_, err := s.Scan(context.Background(), &models.ScanConfig{
		Target:   "http://app.local",
		Params:   []string{"q", "id"},
		Contexts: []string{"text-node"},
	})
	require.NoError(t, err)

	require.Len(t, seen, 2)
	assert.Equal(t, 2, seen[1].Sent)
	assert.Equal(t, 2, seen[1].Total)
	assert.Equal(t, "id", seen[1].Param)
	assert.Len(t, store.saved, 1)
}

// vulnerableApp mirrors a deliberately unsafe app that reflects input unescaped
func vulnerableApp() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/reflect_attr_name", func(w http.ResponseWriter, r *http.Request) {
		var b strings.Builder
		b.WriteString("<h3>Attribute-name reflections</h3>")
		for k, vs := range r.URL.Query() {
			fmt.Fprintf(&b, `<div %s="%s">Reflected attribute-name: %s=%s</div>`, k, vs[0], k, vs[0])
		}
		fmt.Fprint(w, b.String())
	})
	mux.HandleFunc("/reflect_attr_value", func(w http.ResponseWriter, r *http.Request) {
		var b strings.Builder
		for k, vs := range r.URL.Query() {
			fmt.Fprintf(&b, `<div data-%s="%s">Reflected attribute-value for param %s</div>`, k, vs[0], k)
		}
		fmt.Fprint(w, b.String())
	})
	mux.HandleFunc("/reflect_text", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		var b strings.Builder
		for k, vs := range r.Form {
			fmt.Fprintf(&b, `<p>Param <b>%s</b> reflected in text: %s</p>`, k, vs[0])
		}
		fmt.Fprint(w, b.String())
	})
	mux.HandleFunc("/reflect_script", func(w http.ResponseWriter, r *http.Request) {
		var pairs []string
		for k, vs := range r.URL.Query() {
			pairs = append(pairs, fmt.Sprintf(`"%s": "%s"`, k, vs[0]))
		}
		fmt.Fprintf(w, "<script>\nvar REFLECTED = {%s};\n</script><p>see source</p>", strings.Join(pairs, ","))
	})
	return mux
}

func TestScanAgainstVulnerableApp(t *testing.T) {
	srv := httptest.NewServer(vulnerableApp())
	defer srv.Close()

	d, err := injector.NewDispatcher(injector.Options{Timeout: 2 * time.Second}, logger.Discard())
	require.NoError(t, err)

	tests := []struct {
		path     string
		method   string
		contexts []string
		limit    int
		want     string
	}{
		{"/reflect_attr_name", "GET", []string{"attribute-name"}, 2, "attribute-name"},
		{"/reflect_attr_value", "GET", []string{"attribute-value"}, 3, "attribute-value"},
		{"/reflect_text", "GET", []string{"text-node"}, 2, "text-node"},
		{"/reflect_text", "POST", []string{"text-node"}, 2, "text-node"},
		{"/reflect_script", "GET", []string{"script"}, 2, "script"},
	}

	for _, tt := range tests {
		t.Run(tt.method+tt.path, func(t *testing.T) {
			res, err := newScanner(d).Scan(context.Background(), &models.ScanConfig{
				Target:       srv.URL + tt.path,
				Params:       []string{"q"},
				Method:       tt.method,
				Contexts:     tt.contexts,
				PayloadLimit: tt.limit,
			})
			require.NoError(t, err)
			assert.Zero(t, res.Errors)
			require.NotEmpty(t, res.Findings)

			var contexts []string
			for _, f := range res.Findings {
				contexts = append(contexts, f.Context)
				assert.Equal(t, tt.method, f.Method)
				assert.True(t, strings.HasPrefix(f.URL, srv.URL+tt.path), f.URL)
				assert.NotEmpty(t, f.Snippet)
			}
			assert.Contains(t, contexts, tt.want)
		})
	}
}

func TestDescribe(t *testing.T) {
	got := Describe(&models.ScanConfig{Method: "GET", Target: "http://x", Params: []string{"q"}, Contexts: []string{"script"}})
	assert.Equal(t, "GET http://x params=[q] contexts=[script]", got)
}
