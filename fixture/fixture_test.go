package fixture

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/use-agent/prodrank/dom"
	"github.com/use-agent/prodrank/models"
)

const source = `<html><head><title>Red Mug</title></head><body><img src="/mug.jpg"><span>$12.00</span></body></html>`

func writeCase(t *testing.T, dir string, geo func(*dom.Document) dom.GeometryTable, expected map[models.Feature]string) {
	t.Helper()
	doc, err := dom.ParseString(source)
	if err != nil {
		t.Fatal(err)
	}
	if err := WriteCase(dir, source, geo(doc)); err != nil {
		t.Fatal(err)
	}
	for f, markup := range expected {
		if err := os.WriteFile(filepath.Join(dir, ExpectedFile(f)), []byte(markup), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func fullGeometry(doc *dom.Document) dom.GeometryTable { return dom.FillGeometry(doc, dom.Geometry{}) }

var allExpected = map[models.Feature]string{
	models.FeatureTitle: `<html><head><title>Red Mug</title></head></html>`,
	models.FeatureImage: `<img src="/mug.jpg?v=2">`,
	models.FeaturePrice: `$12`,
}

func TestLoadCorpus(t *testing.T) {
	root := t.TempDir()
	writeCase(t, filepath.Join(root, "b-good"), fullGeometry, allExpected)
	writeCase(t, filepath.Join(root, "a-short-geometry"), func(doc *dom.Document) dom.GeometryTable {
		g := fullGeometry(doc)
		delete(g, doc.Len()-1)
		return g
	}, allExpected)
	writeCase(t, filepath.Join(root, "c-no-price"), fullGeometry, map[models.Feature]string{
		models.FeatureTitle: allExpected[models.FeatureTitle],
		models.FeatureImage: allExpected[models.FeatureImage],
	})
	if err := os.WriteFile(filepath.Join(root, "README"), []byte("not a case"), 0o644); err != nil {
		t.Fatal(err)
	}

	cases, err := LoadCorpus(root)
	if err != nil {
		t.Fatal(err)
	}
	if len(cases) != 3 {
		t.Fatalf("got %d cases, want 3", len(cases))
	}
	if cases[0].ID != "a-short-geometry" || cases[1].ID != "b-good" || cases[2].ID != "c-no-price" {
		t.Errorf("cases not ordered by name: %s %s %s", cases[0].ID, cases[1].ID, cases[2].ID)
	}

	if !models.IsFixtureIntegrity(cases[0].Err) {
		t.Errorf("short geometry: got %v, want fixture integrity error", cases[0].Err)
	}

	good := cases[1]
	if good.Err != nil {
		t.Fatalf("good case failed: %v", good.Err)
	}
	want := models.Product{Title: "Red Mug", Image: "/mug.jpg?v=2", Price: "$12"}
	if good.Expected != want {
		t.Errorf("expected = %+v, want %+v", good.Expected, want)
	}

	if _, err := cases[2].ExpectedValue(models.FeaturePrice); !models.IsFixtureIntegrity(err) {
		t.Errorf("missing price fixture: got %v", err)
	}
	if v, err := cases[2].ExpectedValue(models.FeatureTitle); err != nil || v != "Red Mug" {
		t.Errorf("title of c-no-price = %q, %v", v, err)
	}
}

func TestLoadCorpusUnreadable(t *testing.T) {
	if _, err := LoadCorpus(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("missing corpus should fail")
	}
}

func TestLoadCaseNodesJSON(t *testing.T) {
	dir := t.TempDir()
	writeCase(t, dir, fullGeometry, allExpected)
	if err := os.Rename(filepath.Join(dir, NodesFile), filepath.Join(dir, NodesFileJSON)); err != nil {
		t.Fatal(err)
	}
	if tc := LoadCase(dir); tc.Err != nil {
		t.Errorf("nodes.json fallback failed: %v", tc.Err)
	}
}

func TestParseExpected(t *testing.T) {
	tests := []struct {
		feature models.Feature
		markup  string
		want    string
		ok      bool
	}{
		{models.FeatureTitle, `<title>Kettle | Shop</title>`, "Kettle | Shop", true},
		{models.FeatureTitle, `<p>no title</p>`, "", false},
		{models.FeatureImage, `<img src="/k.jpg">`, "/k.jpg", true},
		{models.FeatureImage, `<img alt="blank">`, "", false},
		{models.FeaturePrice, "  $4.99\n", "$4.99", true},
		{models.FeaturePrice, "   ", "", false},
	}
	for _, tt := range tests {
		got, ok, err := ParseExpected(tt.feature, tt.markup)
		if err != nil {
			t.Fatalf("%s %q: %v", tt.feature, tt.markup, err)
		}
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseExpected(%s, %q) = %q, %v; want %q, %v", tt.feature, tt.markup, got, ok, tt.want, tt.ok)
		}
	}
}

func pageCase(t *testing.T, id, markup string) *TestCase {
	t.Helper()
	doc, err := dom.ParseString(markup)
	if err != nil {
		t.Fatal(err)
	}
	page, err := dom.NewPage(doc, fullGeometry(doc))
	if err != nil {
		t.Fatal(err)
	}
	return &TestCase{ID: id, Page: page}
}

func TestDuplicates(t *testing.T) {
	cases := []*TestCase{
		pageCase(t, "mug", source),
		pageCase(t, "table", `<html><body><h1>Oak dining table</h1><p>Seats six, solid wood</p><span>$499.00</span></body></html>`),
		pageCase(t, "mug-again", source),
		{ID: "broken", Err: models.FixtureIntegrityError("broken")},
	}

	dups := Duplicates(cases, DefaultDuplicateDistance)
	if len(dups) != 1 {
		t.Fatalf("got %d duplicate pairs, want 1: %+v", len(dups), dups)
	}
	if dups[0].A != "mug" || dups[0].B != "mug-again" || dups[0].Distance != 0 {
		t.Errorf("duplicate = %+v", dups[0])
	}
}
