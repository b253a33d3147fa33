package template

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestLoadStore_MissingFileUsesDefaults(t *testing.T) {
	store, err := LoadStore(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadStore: %v", err)
	}

	tmpl, err := store.GetActive("trend-analysis")
	if err != nil {
		t.Fatalf("expected default catalog to be loaded: %v", err)
	}
	if tmpl.Category != "Analysis" {
		t.Errorf("category = %q", tmpl.Category)
	}
}

func TestLoadStore_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	catalog := `templates:
  - id: revenue-check
    name: Revenue Check
    category: Finance
    body: "Review {metric} for {period}"
    active: true
    variables:
      - name: metric
        type: text
        required: true
      - name: period
        type: select
        required: true
        choices: ["monthly", "quarterly"]
  - id: retired
    name: Retired Template
    category: Finance
    body: "old {thing}"
    active: false
    variables:
      - name: thing
        type: text
`
	if err := os.WriteFile(path, []byte(catalog), 0o600); err != nil {
		t.Fatal(err)
	}

	store, err := LoadStore(path)
	if err != nil {
		t.Fatalf("LoadStore: %v", err)
	}

	if _, err := store.GetActive("revenue-check"); err != nil {
		t.Errorf("GetActive(revenue-check): %v", err)
	}
	if _, err := store.GetActive("retired"); err == nil {
		t.Error("inactive template must not be returned")
	}
	if _, err := store.GetActive("nope"); err == nil {
		t.Error("unknown id must error")
	}

	byCat := store.GetActiveByCategory("Finance")
	if len(byCat) != 1 || byCat[0].ID != "revenue-check" {
		t.Errorf("GetActiveByCategory(Finance) = %v", byCat)
	}
}

func TestLoadStore_RejectsInvalidCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	catalog := `templates:
  - id: broken
    name: Broken
    category: X
    body: "has {1bad} name"
    active: true
    variables:
      - name: 1bad
        type: text
`
	if err := os.WriteFile(path, []byte(catalog), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadStore(path); err == nil {
		t.Error("expected validation error for bad identifier")
	}
}

func TestIncrementUsage_Concurrent(t *testing.T) {
	store := NewStore(DefaultCatalog())

	const workers = 16
	const perWorker = 50

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				store.IncrementUsage("trend-analysis")
			}
		}()
	}
	wg.Wait()

	if got := store.UsageCount("trend-analysis"); got != workers*perWorker {
		t.Errorf("usage count = %d, want %d", got, workers*perWorker)
	}
}

func TestIncrementUsage_UnknownIDIgnored(t *testing.T) {
	store := NewStore(DefaultCatalog())
	store.IncrementUsage("does-not-exist")
	if got := store.UsageCount("does-not-exist"); got != 0 {
		t.Errorf("usage count for unknown id = %d", got)
	}
}

func TestCategories(t *testing.T) {
	store := NewStore(DefaultCatalog())
	cats := store.Categories()

	want := map[string]bool{"Analysis": true, "Reporting": true, "Forecasting": true, "Data Quality": true, "Investigation": true}
	if len(cats) != len(want) {
		t.Fatalf("categories = %v", cats)
	}
	for _, c := range cats {
		if !want[c] {
			t.Errorf("unexpected category %q", c)
		}
	}
}
