package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/lead-collector/internal/config"
)

func htmlServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestFetch_Success(t *testing.T) {
	server := htmlServer(t, "<html><body><h1>Padaria</h1></body></html>")

	result, err := NewFetcher(nil).Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, server.URL, result.URL)
	assert.Contains(t, result.HTML, "<h1>Padaria</h1>")
	assert.Equal(t, http.StatusOK, result.StatusCode)
	assert.Equal(t, "text/html; charset=utf-8", result.ContentType)
	assert.False(t, result.Rendered)
}

func TestFetch_SendsBrowserHeaders(t *testing.T) {
	var got http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html></html>"))
	}))
	defer server.Close()

	opts := DefaultOptions()
	opts.Headers = map[string]string{"X-Extra": "1"}
	_, err := NewFetcher(opts).Fetch(context.Background(), server.URL)
	require.NoError(t, err)

	assert.Equal(t, DefaultUserAgent, got.Get("User-Agent"))
	assert.Contains(t, got.Get("Accept"), "text/html")
	assert.Contains(t, got.Get("Accept-Language"), "pt-BR")
	assert.Equal(t, "1", got.Get("X-Extra"))
}

func TestFetch_HTTPStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	result, err := NewFetcher(nil).Fetch(context.Background(), server.URL)
	require.Error(t, err)
	assert.Nil(t, result)

	var fetchErr *Error
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, ReasonHTTPStatus, fetchErr.Reason)
	assert.Equal(t, http.StatusNotFound, fetchErr.StatusCode)
	assert.Contains(t, err.Error(), "404")
	assert.True(t, errors.Is(err, ErrUpstreamUnavailable))
}

func TestFetch_NonHTML(t *testing.T) {
	tests := []string{"application/pdf", "application/json", "image/png", ""}

	for _, contentType := range tests {
		t.Run(contentType, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header()["Content-Type"] = []string{contentType}
				_, _ = w.Write([]byte("%PDF-1.4"))
			}))
			defer server.Close()

			_, err := NewFetcher(nil).Fetch(context.Background(), server.URL)
			require.Error(t, err)
			assert.Equal(t, ReasonNonHTML, ReasonOf(err))
			assert.True(t, errors.Is(err, ErrUpstreamUnavailable))
		})
	}
}

func TestFetch_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer server.Close()

	opts := DefaultOptions()
	opts.Timeout = 50 * time.Millisecond

	start := time.Now()
	_, err := NewFetcher(opts).Fetch(context.Background(), server.URL)
	require.Error(t, err)
	assert.Equal(t, ReasonTimeout, ReasonOf(err))
	assert.True(t, errors.Is(err, ErrUpstreamUnavailable))
	assert.Less(t, time.Since(start), time.Second)
}

func TestFetch_ConnectionError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	addr := server.URL
	server.Close()

	_, err := NewFetcher(nil).Fetch(context.Background(), addr)
	require.Error(t, err)
	assert.Equal(t, ReasonConnection, ReasonOf(err))
	assert.True(t, errors.Is(err, ErrUpstreamUnavailable))
}

func TestFetch_InvalidURL(t *testing.T) {
	for _, raw := range []string{"", "   ", "http://[::1"} {
		t.Run(raw, func(t *testing.T) {
			_, err := NewFetcher(nil).Fetch(context.Background(), raw)
			require.Error(t, err)

			var fetchErr *Error
			require.ErrorAs(t, err, &fetchErr)
			assert.Equal(t, ReasonInvalidURL, fetchErr.Reason)
			assert.False(t, errors.Is(err, ErrUpstreamUnavailable))
		})
	}
}

func TestFetch_LimitsBody(t *testing.T) {
	server := htmlServer(t, strings.Repeat("a", 1000))

	opts := DefaultOptions()
	opts.MaxBodyBytes = 10
	result, err := NewFetcher(opts).Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Len(t, result.HTML, 10)
}

type stubRenderer struct {
	html  string
	err   error
	calls int
}

func (s *stubRenderer) Render(_ context.Context, _ string) (string, error) {
	s.calls++
	return s.html, s.err
}

func TestFetch_BrowserFallback(t *testing.T) {
	rendered := "<html><body>" + strings.Repeat("conteudo ", 100) + "</body></html>"

	t.Run("short page is rendered", func(t *testing.T) {
		server := htmlServer(t, `<html><body><div id="root"></div></body></html>`)
		renderer := &stubRenderer{html: rendered}

		result, err := NewFetcher(&Options{UseBrowser: true, Renderer: renderer}).Fetch(context.Background(), server.URL)
		require.NoError(t, err)
		assert.Equal(t, 1, renderer.calls)
		assert.True(t, result.Rendered)
		assert.Equal(t, rendered, result.HTML)
	})

	t.Run("render failure keeps HTTP body", func(t *testing.T) {
		server := htmlServer(t, `<html><body>curto</body></html>`)
		renderer := &stubRenderer{err: errors.New("chrome not found")}

		result, err := NewFetcher(&Options{UseBrowser: true, Renderer: renderer}).Fetch(context.Background(), server.URL)
		require.NoError(t, err)
		assert.False(t, result.Rendered)
		assert.Contains(t, result.HTML, "curto")
	})

	t.Run("long page is not rendered", func(t *testing.T) {
		server := htmlServer(t, rendered)
		renderer := &stubRenderer{html: "<html></html>"}

		result, err := NewFetcher(&Options{UseBrowser: true, Renderer: renderer}).Fetch(context.Background(), server.URL)
		require.NoError(t, err)
		assert.Zero(t, renderer.calls)
		assert.False(t, result.Rendered)
	})

	t.Run("disabled", func(t *testing.T) {
		server := htmlServer(t, `<html></html>`)
		renderer := &stubRenderer{html: rendered}

		_, err := NewFetcher(&Options{Renderer: renderer}).Fetch(context.Background(), server.URL)
		require.NoError(t, err)
		assert.Zero(t, renderer.calls)
	})
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"padaria.com.br", "https://padaria.com.br"},
		{"  www.padaria.com.br/contato ", "https://www.padaria.com.br/contato"},
		{"//padaria.com.br", "https://padaria.com.br"},
		{"http://padaria.com.br", "http://padaria.com.br"},
		{"HTTPS://Padaria.com.br", "HTTPS://Padaria.com.br"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeURL(tt.in))
		})
	}
}

func TestShouldUseBrowser(t *testing.T) {
	assert.True(t, ShouldUseBrowser(""))
	assert.True(t, ShouldUseBrowser("   short   "))
	assert.False(t, ShouldUseBrowser(strings.Repeat("x", MinContentLength)))
}

func TestError_Message(t *testing.T) {
	err := &Error{URL: "https://x.com", Reason: ReasonConnection, Message: "HTTP request failed", Cause: errors.New("refused")}
	assert.Equal(t, "fetch error for https://x.com (connection): HTTP request failed: refused", err.Error())

	noCause := &Error{URL: "https://x.com", Reason: ReasonHTTPStatus, Message: "HTTP status 500"}
	assert.Equal(t, "fetch error for https://x.com (http-status): HTTP status 500", noCause.Error())

	assert.Equal(t, Reason(""), ReasonOf(errors.New("other")))
}

func TestOptionsFromConfig(t *testing.T) {
	opts := OptionsFromConfig(config.FetchConfig{
		Timeout:        5 * time.Second,
		UserAgent:      "lead-collector-test",
		MaxBodyBytes:   1024,
		UseBrowser:     true,
		BrowserTimeout: 20 * time.Second,
	})
	assert.Equal(t, 5*time.Second, opts.Timeout)
	assert.Equal(t, "lead-collector-test", opts.UserAgent)
	assert.Equal(t, int64(1024), opts.MaxBodyBytes)
	assert.True(t, opts.UseBrowser)

	f := NewFetcher(OptionsFromConfig(config.FetchConfig{}))
	assert.Equal(t, DefaultTimeout, f.opts.Timeout)
	assert.Equal(t, DefaultUserAgent, f.opts.UserAgent)
	assert.Nil(t, f.renderer)
}
