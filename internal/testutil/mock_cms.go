// Package testutil provides test doubles for the summary aggregation core.
package testutil

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
)

// MockCMS is a configurable httptest server imitating a hosted CMS
// collection endpoint with pagination.
type MockCMS struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc

	requestCount int
	requests     []*url.URL
}

// NewMockCMS creates a mock collection server. Paths without a configured
// handler answer with an empty final page.
func NewMockCMS() *MockCMS {
	mock := &MockCMS{
		handlers: make(map[string]http.HandlerFunc),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.requestCount++
		u := *r.URL
		mock.requests = append(mock.requests, &u)
		mock.mu.Unlock()

		mock.mu.RLock()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.RUnlock()

		if exists {
			handler(w, r)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, PageJSON(nil, ""))
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockCMS) URL() string {
	return m.server.URL
}

// Host returns the mock server host:port.
func (m *MockCMS) Host() string {
	u, _ := url.Parse(m.server.URL)
	return u.Host
}

// Close shuts down the mock server.
func (m *MockCMS) Close() {
	m.server.Close()
}

// SetHandler sets a custom handler for a specific path.
func (m *MockCMS) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// ServePages wires a chain of pages under path: page 1 at the path itself,
// later pages at path?page=N. Each page holds the given raw item JSON
// objects.
func (m *MockCMS) ServePages(path string, pages [][]string) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		pageNum := 1
		if p := r.URL.Query().Get("page"); p != "" {
			pageNum, _ = strconv.Atoi(p)
		}
		if pageNum < 1 || pageNum > len(pages) {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		next := ""
		if pageNum < len(pages) {
			next = m.URL() + path + "?page=" + strconv.Itoa(pageNum+1)
		}

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, PageJSON(pages[pageNum-1], next))
	})
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockCMS) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requestCount
}

// Requests returns the URLs of all requests seen so far.
func (m *MockCMS) Requests() []*url.URL {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*url.URL, len(m.requests))
	copy(out, m.requests)
	return out
}

// PageJSON renders a collection page document holding the given raw item
// JSON objects. An empty nextURL marks the final page.
func PageJSON(items []string, nextURL string) string {
	next := "null"
	nextPage := "false"
	if nextURL != "" {
		next = strconv.Quote(nextURL)
		nextPage = "true"
	}
	return fmt.Sprintf(`{"items":[%s],"pagination":{"nextPage":%s,"nextPageUrl":%s}}`,
		strings.Join(items, ","), nextPage, next)
}

// ItemJSON renders a minimal collection item document.
func ItemJSON(id string, starred bool) string {
	return fmt.Sprintf(`{"id":%q,"title":"Item %s","excerpt":"about %s","starred":%t,"categories":["news"],"tags":["go"]}`,
		id, id, id, starred)
}

// StatusSequenceHandler answers with each status in turn, then serves body
// as JSON with 200.
func StatusSequenceHandler(statuses []int, body string) http.HandlerFunc {
	var mu sync.Mutex
	i := 0
	return func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		n := i
		i++
		mu.Unlock()

		if n < len(statuses) {
			w.WriteHeader(statuses[n])
			return
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, body)
	}
}
