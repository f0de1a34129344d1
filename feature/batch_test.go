package feature

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/npillmayer/otfeat/core"
	"github.com/npillmayer/schuko/tracing/gotestingadapter"
)

func TestBatchProcess(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otfeat.engine")
	defer teardown()
	dir := t.TempDir()
	data := mustBuildData(t, generationFontSpec())
	paths := []string{
		filepath.Join(dir, "one.otf"),
		filepath.Join(dir, "broken.otf"),
		filepath.Join(dir, "two.otf"),
	}
	for _, p := range []string{paths[0], paths[2]} {
		if err := os.WriteFile(p, data, 0644); err != nil {
			t.Fatalf("cannot write font file: %v", err)
		}
	}
	results := BatchProcess(context.Background(), paths, Options{})
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	// results come back in input order, failures in between notwithstanding
	for i, r := range results {
		if r.Path != paths[i] {
			t.Errorf("result %d is for %q, expected %q", i, r.Path, paths[i])
		}
	}
	if results[0].Err != nil || results[0].Result == nil || results[0].Result.Delta.RuleCount() != 4 {
		t.Errorf("unexpected result for %q: %+v", paths[0], results[0])
	}
	if results[2].Err != nil || results[2].Result == nil {
		t.Errorf("unexpected result for %q: %+v", paths[2], results[2])
	}
	if results[1].Err == nil {
		t.Fatalf("missing file should fail")
	}
	if core.Code(results[1].Err) != core.EMISSING {
		t.Errorf("expected error code EMISSING, got %d", core.Code(results[1].Err))
	}
	if err := FirstError(results); err != results[1].Err {
		t.Errorf("FirstError returned %v", err)
	}
}

func TestBatchProcessEmpty(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otfeat.engine")
	defer teardown()
	if results := BatchProcess(context.Background(), nil, Options{}); results != nil {
		t.Errorf("expected no results for an empty batch, got %v", results)
	}
	if err := FirstError(nil); err != nil {
		t.Errorf("empty batch has no first error, got %v", err)
	}
}

func TestBatchProcessCancellation(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otfeat.engine")
	defer teardown()
	dir := t.TempDir()
	data := mustBuildData(t, generationFontSpec())
	paths := make([]string, 8)
	for i := range paths {
		paths[i] = filepath.Join(dir, fmt.Sprintf("font%d.otf", i))
		if err := os.WriteFile(paths[i], data, 0644); err != nil {
			t.Fatalf("cannot write font file: %v", err)
		}
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results := BatchProcess(ctx, paths, Options{})
	if len(results) != 8 {
		t.Fatalf("expected 8 results, got %d", len(results))
	}
	// fonts fed before the cancellation won the race and processed normally;
	// every other font carries the context error
	for i, r := range results {
		switch {
		case r.Err == nil && r.Result != nil:
		case r.Err == context.Canceled && r.Result == nil:
		default:
			t.Errorf("result %d is neither processed nor cancelled: %+v", i, r)
		}
	}
}
