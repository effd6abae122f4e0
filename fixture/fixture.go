// Package fixture loads labeled test cases from a corpus directory. Each
// case is a directory holding the rendered markup, the geometry captured
// for it and one expected-value fragment per feature.
package fixture

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/use-agent/prodrank/dom"
	"github.com/use-agent/prodrank/models"
)

// File names inside a case directory.
const (
	SourceFile    = "source.html"
	NodesFile     = "nodes.txt"
	NodesFileJSON = "nodes.json"
)

// ExpectedFile returns the expected-value fragment name for f.
func ExpectedFile(f models.Feature) string {
	return "expected-" + string(f) + ".html"
}

// TestCase is one labeled page. A case that failed to load still carries
// its ID and the error so the harness can report it.
type TestCase struct {
	ID       string
	Dir      string
	Page     *dom.Page
	Expected models.Product

	// Err is set when the page itself could not be loaded or its geometry
	// does not match the document.
	Err error

	// ExpectedErr holds per-feature problems with the expected fixtures.
	ExpectedErr map[models.Feature]error
}

// ExpectedValue returns the raw expected value for f.
func (tc *TestCase) ExpectedValue(f models.Feature) (string, error) {
	if tc.Err != nil {
		return "", tc.Err
	}
	if err := tc.ExpectedErr[f]; err != nil {
		return "", err
	}
	return tc.Expected.Get(f), nil
}

// LoadCorpus loads every case directory under root, ordered by name. Only
// an unreadable root is an error; broken cases are returned with Err set.
func LoadCorpus(root string) ([]*TestCase, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("fixture: read corpus %s: %w", root, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	cases := make([]*TestCase, 0, len(names))
	for _, name := range names {
		tc := LoadCase(filepath.Join(root, name))
		if tc.Err != nil {
			slog.Warn("fixture: case failed to load", "case", tc.ID, "error", tc.Err)
		} else {
			slog.Debug("fixture: case loaded", "case", tc.ID, "elements", tc.Page.Document.Len())
		}
		cases = append(cases, tc)
	}
	return cases, nil
}

// LoadCase loads a single case directory. It never returns nil.
func LoadCase(dir string) *TestCase {
	tc := &TestCase{
		ID:          filepath.Base(dir),
		Dir:         dir,
		ExpectedErr: make(map[models.Feature]error),
	}

	page, err := loadPage(dir)
	if err != nil {
		tc.Err = err
		return tc
	}
	tc.Page = page

	for _, f := range models.Features {
		v, err := loadExpected(dir, f)
		if err != nil {
			tc.ExpectedErr[f] = err
			continue
		}
		tc.Expected.Set(f, v)
	}
	return tc
}

func loadPage(dir string) (*dom.Page, error) {
	markup, err := os.ReadFile(filepath.Join(dir, SourceFile))
	if err != nil {
		return nil, models.NewExtractError(models.ErrCodeFixtureIntegrity, "missing "+SourceFile, err)
	}
	doc, err := dom.Parse(bytes.NewReader(markup))
	if err != nil {
		return nil, models.NewExtractError(models.ErrCodeFixtureIntegrity, "unparseable "+SourceFile, err)
	}

	raw, err := readFirst(dir, NodesFile, NodesFileJSON)
	if err != nil {
		return nil, models.NewExtractError(models.ErrCodeFixtureIntegrity, "missing geometry table", err)
	}
	var geo dom.GeometryTable
	if err := json.Unmarshal(raw, &geo); err != nil {
		return nil, models.NewExtractError(models.ErrCodeFixtureIntegrity, "invalid geometry table", err)
	}
	return dom.NewPage(doc, geo)
}

func readFirst(dir string, names ...string) ([]byte, error) {
	var lastErr error
	for _, name := range names {
		b, err := os.ReadFile(filepath.Join(dir, name))
		if err == nil {
			return b, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// loadExpected reads the expected fragment of f: the head title for title,
// the first body img src for image, the body text for price.
func loadExpected(dir string, f models.Feature) (string, error) {
	name := ExpectedFile(f)
	markup, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return "", models.NewExtractError(models.ErrCodeFixtureIntegrity, "missing "+name, err)
	}
	v, ok, err := ParseExpected(f, string(markup))
	if err != nil {
		return "", models.NewExtractError(models.ErrCodeFixtureIntegrity, "unparseable "+name, err)
	}
	if !ok {
		return "", models.FixtureIntegrityError("%s holds no expected %s", name, f)
	}
	return v, nil
}

// ParseExpected extracts the expected value of f from a fragment.
func ParseExpected(f models.Feature, markup string) (string, bool, error) {
	doc, err := dom.ParseString(markup)
	if err != nil {
		return "", false, err
	}
	switch f {
	case models.FeatureTitle:
		el := doc.First("head > title")
		if el == nil {
			el = doc.First("title")
		}
		if el == nil {
			return "", false, nil
		}
		return el.Text(), true, nil
	case models.FeatureImage:
		el := doc.First("body img")
		if el == nil || el.AttrOr("src") == "" {
			return "", false, nil
		}
		return el.AttrOr("src"), true, nil
	case models.FeaturePrice:
		body := doc.First("body")
		if body == nil {
			return "", false, nil
		}
		text := strings.TrimSpace(body.Text())
		return text, text != "", nil
	}
	return "", false, fmt.Errorf("unknown feature %q", f)
}

// WriteCase stores rendered markup and its geometry as a case directory.
// Expected fragments are labeled by hand and left untouched.
func WriteCase(dir, markup string, geo dom.GeometryTable) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("fixture: create %s: %w", dir, err)
	}
	if err := os.WriteFile(filepath.Join(dir, SourceFile), []byte(markup), 0o644); err != nil {
		return fmt.Errorf("fixture: write source: %w", err)
	}
	raw, err := json.Marshal(geo)
	if err != nil {
		return fmt.Errorf("fixture: encode geometry: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, NodesFile), raw, 0o644); err != nil {
		return fmt.Errorf("fixture: write geometry: %w", err)
	}
	return nil
}
