package research

import (
	"slices"
	"strings"

	"github.com/m-mizutani/mnemo/pkg/model"
)

// CitationIndex maps citation identity to record for one session. It
// tolerates being queried before any Set call; all lookups miss on an
// empty index.
type CitationIndex struct {
	records []model.Citation
	byTitle map[string]int
}

func NewCitationIndex() *CitationIndex {
	return &CitationIndex{
		byTitle: map[string]int{},
	}
}

// Set replaces the full list atomically. There is no incremental merge; a
// later citations payload fully supersedes an earlier one.
func (x *CitationIndex) Set(records []model.Citation) {
	x.records = slices.Clone(records)
	x.byTitle = make(map[string]int, len(records))
	for i, c := range x.records {
		key := strings.ToLower(c.Title)
		if _, ok := x.byTitle[key]; !ok {
			x.byTitle[key] = i
		}
	}
}

// ByPosition looks up a citation by 1-based reference order.
func (x *CitationIndex) ByPosition(n int) (*model.Citation, bool) {
	if x == nil || n < 1 || n > len(x.records) {
		return nil, false
	}
	return &x.records[n-1], true
}

// ByTitle does a case-insensitive exact match; ambiguity favors the first
// record.
func (x *CitationIndex) ByTitle(title string) (*model.Citation, bool) {
	if x == nil {
		return nil, false
	}
	i, ok := x.byTitle[strings.ToLower(title)]
	if !ok {
		return nil, false
	}
	return &x.records[i], true
}

func (x *CitationIndex) Len() int {
	if x == nil {
		return 0
	}
	return len(x.records)
}

// Records returns a copy of the current list in reference order.
func (x *CitationIndex) Records() []model.Citation {
	if x == nil {
		return nil
	}
	return slices.Clone(x.records)
}
