package upstream

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/OU-Studio/summary-access/internal/testutil"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.BackoffBase = 20 * time.Millisecond
	cfg.AttemptTimeout = 2 * time.Second
	return cfg
}

func TestFetchPage_Success(t *testing.T) {
	cms := testutil.NewMockCMS()
	defer cms.Close()

	cms.ServePages("/blog", [][]string{
		{testutil.ItemJSON("a", false), testutil.ItemJSON("b", true)},
	})

	client := New(testConfig())

	page, err := client.FetchPage(context.Background(), cms.URL()+"/blog")
	if err != nil {
		t.Fatalf("FetchPage failed: %v", err)
	}

	if len(page.Items) != 2 {
		t.Fatalf("Items = %d, want 2", len(page.Items))
	}
	if page.Items[0].ID != "a" || page.Items[1].ID != "b" {
		t.Errorf("Item IDs = %q, %q, want a, b", page.Items[0].ID, page.Items[1].ID)
	}
	if !page.Items[1].Starred {
		t.Error("Item b should be starred")
	}
	if page.HasNext() {
		t.Error("Single page should not advertise a successor")
	}
	if got := cms.GetRequestCount(); got != 1 {
		t.Errorf("Request count = %d, want 1", got)
	}
}

func TestFetchPage_RetriesTransientThenSucceeds(t *testing.T) {
	cms := testutil.NewMockCMS()
	defer cms.Close()

	cms.SetHandler("/blog", testutil.StatusSequenceHandler(
		[]int{http.StatusServiceUnavailable, http.StatusServiceUnavailable},
		testutil.PageJSON([]string{testutil.ItemJSON("a", false)}, ""),
	))

	cfg := testConfig()
	client := New(cfg)

	start := time.Now()
	page, err := client.FetchPage(context.Background(), cms.URL()+"/blog")
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("FetchPage failed: %v", err)
	}
	if len(page.Items) != 1 {
		t.Fatalf("Items = %d, want 1", len(page.Items))
	}
	if got := cms.GetRequestCount(); got != 3 {
		t.Errorf("Request count = %d, want 3", got)
	}

	// Two backoffs: 1*base then 2*base.
	if minimum := 3 * cfg.BackoffBase; elapsed < minimum {
		t.Errorf("Elapsed = %v, want at least %v of backoff", elapsed, minimum)
	}
}

func TestFetchPage_TransientExhausted(t *testing.T) {
	cms := testutil.NewMockCMS()
	defer cms.Close()

	cms.SetHandler("/blog", testutil.StatusSequenceHandler(
		[]int{503, 503, 503, 503}, "",
	))

	client := New(testConfig())

	_, err := client.FetchPage(context.Background(), cms.URL()+"/blog")
	if err == nil {
		t.Fatal("Expected error after retry exhaustion")
	}

	var transient *TransientError
	if !errors.As(err, &transient) {
		t.Fatalf("Error = %v, want *TransientError", err)
	}
	if transient.StatusCode != 503 {
		t.Errorf("StatusCode = %d, want 503", transient.StatusCode)
	}
	if got := cms.GetRequestCount(); got != 3 {
		t.Errorf("Request count = %d, want 3 (1 attempt + 2 retries)", got)
	}
}

func TestFetchPage_AuthRequiredNotRetried(t *testing.T) {
	cms := testutil.NewMockCMS()
	defer cms.Close()

	cms.SetHandler("/private", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	client := New(testConfig())

	pageURL := cms.URL() + "/private"
	_, err := client.FetchPage(context.Background(), pageURL)
	if !errors.Is(err, ErrAuthRequired) {
		t.Fatalf("Error = %v, want ErrAuthRequired", err)
	}

	var authErr *AuthRequiredError
	if !errors.As(err, &authErr) {
		t.Fatalf("Error = %v, want *AuthRequiredError", err)
	}
	if authErr.URL != pageURL {
		t.Errorf("URL = %q, want %q", authErr.URL, pageURL)
	}
	if got := cms.GetRequestCount(); got != 1 {
		t.Errorf("Request count = %d, want 1 (zero retries on 401)", got)
	}
}

func TestFetchPage_FatalStatusNotRetried(t *testing.T) {
	cms := testutil.NewMockCMS()
	defer cms.Close()

	cms.SetHandler("/gone", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	client := New(testConfig())

	_, err := client.FetchPage(context.Background(), cms.URL()+"/gone")

	var fatal *FatalError
	if !errors.As(err, &fatal) {
		t.Fatalf("Error = %v, want *FatalError", err)
	}
	if fatal.StatusCode != 404 {
		t.Errorf("StatusCode = %d, want 404", fatal.StatusCode)
	}
	if got := cms.GetRequestCount(); got != 1 {
		t.Errorf("Request count = %d, want 1", got)
	}
}

func TestFetchPage_MalformedPayloadIsFatal(t *testing.T) {
	cms := testutil.NewMockCMS()
	defer cms.Close()

	cms.SetHandler("/broken", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html>not json</html>"))
	})

	client := New(testConfig())

	_, err := client.FetchPage(context.Background(), cms.URL()+"/broken")

	var fatal *FatalError
	if !errors.As(err, &fatal) {
		t.Fatalf("Error = %v, want *FatalError", err)
	}
}

func TestFetchPage_AttemptTimeoutIsTransient(t *testing.T) {
	cms := testutil.NewMockCMS()
	defer cms.Close()

	cms.SetHandler("/slow", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.Write([]byte(testutil.PageJSON(nil, "")))
	})

	cfg := testConfig()
	cfg.AttemptTimeout = 50 * time.Millisecond
	cfg.MaxRetries = 0
	client := New(cfg)

	_, err := client.FetchPage(context.Background(), cms.URL()+"/slow")

	var transient *TransientError
	if !errors.As(err, &transient) {
		t.Fatalf("Error = %v, want *TransientError on attempt timeout", err)
	}
}

func TestFetchPage_ContextCancellationStopsRetries(t *testing.T) {
	cms := testutil.NewMockCMS()
	defer cms.Close()

	cms.SetHandler("/blog", testutil.StatusSequenceHandler([]int{503, 503, 503}, ""))

	cfg := testConfig()
	cfg.BackoffBase = time.Second
	client := New(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := client.FetchPage(ctx, cms.URL()+"/blog")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Error = %v, want context.DeadlineExceeded", err)
	}
}
