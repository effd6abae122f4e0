package fixture

import (
	"github.com/use-agent/prodrank/simhash"
)

// DefaultDuplicateDistance is the largest fingerprint distance at which two
// cases are reported as the same page.
const DefaultDuplicateDistance = 3

// Duplicate is a pair of cases whose page text is near-identical. A corpus
// holding the same page twice weights that page double in the error rate.
type Duplicate struct {
	A, B     string
	Distance int
}

// Duplicates compares the text of every loaded case pairwise and returns
// the pairs at most maxDistance bits apart, in corpus order. Cases that
// failed to load are skipped.
func Duplicates(cases []*TestCase, maxDistance int) []Duplicate {
	type print struct {
		id string
		fp uint64
	}
	prints := make([]print, 0, len(cases))
	for _, tc := range cases {
		if tc.Err != nil || tc.Page == nil || tc.Page.Document.Len() == 0 {
			continue
		}
		fp := simhash.Text(tc.Page.Document.At(0).Text())
		if fp == 0 {
			continue
		}
		prints = append(prints, print{id: tc.ID, fp: fp})
	}

	var out []Duplicate
	for i := range prints {
		for j := i + 1; j < len(prints); j++ {
			if d := simhash.Distance(prints[i].fp, prints[j].fp); d <= maxDistance {
				out = append(out, Duplicate{A: prints[i].id, B: prints[j].id, Distance: d})
			}
		}
	}
	return out
}
