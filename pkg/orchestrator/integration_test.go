package orchestrator_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/chapterscout/chapterscout/pkg/orchestrator"
	"github.com/chapterscout/chapterscout/pkg/session"
)

// TestFetchListingAcceptsJSMiningResult exercises the S1 scenario end to
// end: a TOC page embedding a fifty-entry inline chapter array should be
// accepted straight off the JS-mining strategy, sorted by chapter number.
func TestFetchListingAcceptsJSMiningResult(t *testing.T) {
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	var entries []string
	for i := 1; i <= 50; i++ {
		entries = append(entries, fmt.Sprintf(`"%s/b/a/chapter-%d"`, server.URL, i))
	}
	page := `<html><body><script>var chapters=[` + strings.Join(entries, ",") + `];</script></body></html>`
	mux.HandleFunc("/toc", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(page))
	})

	sessCfg := session.DefaultConfig()
	sessCfg.MinInterval = 0
	sess := session.New(sessCfg)

	orch := orchestrator.New(sess, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	result := orch.FetchListing(ctx, server.URL+"/toc", nil, nil, nil)
	if result.Error != nil {
		t.Fatalf("unexpected error: %v", *result.Error)
	}
	if len(result.URLs) != 50 {
		t.Fatalf("got %d urls, want 50", len(result.URLs))
	}
	if result.Metadata.MethodUsed == nil || *result.Metadata.MethodUsed != "javascript" {
		t.Errorf("expected javascript strategy to be used, got %+v", result.Metadata.MethodUsed)
	}
	if !strings.HasSuffix(result.URLs[0], "chapter-1") || !strings.HasSuffix(result.URLs[49], "chapter-50") {
		t.Errorf("expected urls sorted 1..50, got first=%q last=%q", result.URLs[0], result.URLs[49])
	}
}

// TestFetchListingClampsCrossHostURLs exercises a TOC page whose inline
// chapter array mixes same-host and cross-host entries; only the
// same-host ones should survive into the result, and the clamped count
// should be recorded in metadata.
func TestFetchListingClampsCrossHostURLs(t *testing.T) {
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	var entries []string
	for i := 1; i <= 50; i++ {
		entries = append(entries, fmt.Sprintf(`"%s/b/a/chapter-%d"`, server.URL, i))
	}
	for i := 1; i <= 5; i++ {
		entries = append(entries, fmt.Sprintf(`"https://evil-mirror.com/b/a/chapter-%d"`, i))
	}
	page := `<html><body><script>var chapters=[` + strings.Join(entries, ",") + `];</script></body></html>`
	mux.HandleFunc("/toc", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(page))
	})

	sessCfg := session.DefaultConfig()
	sessCfg.MinInterval = 0
	sess := session.New(sessCfg)

	orch := orchestrator.New(sess, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	result := orch.FetchListing(ctx, server.URL+"/toc", nil, nil, nil)
	if result.Error != nil {
		t.Fatalf("unexpected error: %v", *result.Error)
	}
	if len(result.URLs) != 50 {
		t.Fatalf("got %d urls, want 50 (cross-host entries must be clamped)", len(result.URLs))
	}
	for _, u := range result.URLs {
		if strings.Contains(u, "evil-mirror.com") {
			t.Errorf("cross-host url leaked into result: %q", u)
		}
	}
	if result.Metadata.ClampedCrossHost != 5 {
		t.Errorf("expected 5 clamped cross-host urls recorded, got %d", result.Metadata.ClampedCrossHost)
	}
}

// TestFetchListingAllStrategiesEmpty exercises a TOC page with nothing for
// any configured strategy to find.
func TestFetchListingAllStrategiesEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body>nothing here</body></html>`))
	}))
	defer server.Close()

	sessCfg := session.DefaultConfig()
	sessCfg.MinInterval = 0
	sess := session.New(sessCfg)

	orch := orchestrator.New(sess, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	result := orch.FetchListing(ctx, server.URL+"/toc", nil, nil, nil)
	if result.Error == nil || *result.Error != orchestrator.ErrAllStrategiesEmpty {
		t.Fatalf("expected all_strategies_empty, got %+v", result)
	}
}
