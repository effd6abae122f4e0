package dom

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/use-agent/prodrank/models"
)

// Geometry is the layout record a browser captured for one element.
type Geometry struct {
	Top           float64 `json:"top"`
	Bottom        float64 `json:"bottom"`
	Left          float64 `json:"left"`
	Right         float64 `json:"right"`
	Display       string  `json:"display"`
	Visibility    string  `json:"visibility"`
	Strikethrough string  `json:"strikethrough"`
}

// Width is the rendered width.
func (g Geometry) Width() float64 { return g.Right - g.Left }

// Height is the rendered height.
func (g Geometry) Height() float64 { return g.Bottom - g.Top }

// Area is the rendered area.
func (g Geometry) Area() float64 { return g.Width() * g.Height() }

// Struck reports whether the computed text-decoration includes
// line-through. Browsers report either the bare keyword or the full
// shorthand ("line-through solid rgb(0, 0, 0)").
func (g Geometry) Struck() bool {
	return strings.Contains(g.Strikethrough, "line-through")
}

// GeometryTable maps element indices to their layout records.
type GeometryTable map[int]Geometry

// UnmarshalJSON decodes the collector format: an object keyed by the
// decimal element index.
func (t *GeometryTable) UnmarshalJSON(data []byte) error {
	var raw map[string]Geometry
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(GeometryTable, len(raw))
	for k, g := range raw {
		i, err := strconv.Atoi(k)
		if err != nil || i < 0 {
			return fmt.Errorf("geometry: invalid element index %q", k)
		}
		out[i] = g
	}
	*t = out
	return nil
}

// MarshalJSON encodes the table with string keys.
func (t GeometryTable) MarshalJSON() ([]byte, error) {
	raw := make(map[string]Geometry, len(t))
	for i, g := range t {
		raw[strconv.Itoa(i)] = g
	}
	return json.Marshal(raw)
}

// ReadGeometry decodes a geometry table from r.
func ReadGeometry(r io.Reader) (GeometryTable, error) {
	var t GeometryTable
	if err := json.NewDecoder(r).Decode(&t); err != nil {
		return nil, err
	}
	return t, nil
}

// Page pairs a document with the geometry captured for it.
type Page struct {
	Document *Document
	Geometry GeometryTable
}

// NewPage binds a geometry table to a document. The table's key set must
// equal the document's index set exactly.
func NewPage(doc *Document, geo GeometryTable) (*Page, error) {
	if len(geo) != doc.Len() {
		return nil, models.FixtureIntegrityError(
			"document has %d elements but geometry table has %d entries", doc.Len(), len(geo))
	}
	var missing []int
	for i := 0; i < doc.Len(); i++ {
		if _, ok := geo[i]; !ok {
			missing = append(missing, i)
		}
	}
	if len(missing) > 0 {
		sort.Ints(missing)
		return nil, models.FixtureIntegrityError(
			"geometry table lacks %d element indices (first: %d)", len(missing), missing[0])
	}
	return &Page{Document: doc, Geometry: geo}, nil
}

// GeometryOf returns the layout record for el.
func (p *Page) GeometryOf(el *Element) (Geometry, bool) {
	g, ok := p.Geometry[el.Index()]
	return g, ok
}

// FillGeometry builds a table that assigns g to every element of doc. It
// lets callers score markup for which no layout was captured.
func FillGeometry(doc *Document, g Geometry) GeometryTable {
	t := make(GeometryTable, doc.Len())
	for i := 0; i < doc.Len(); i++ {
		t[i] = g
	}
	return t
}
