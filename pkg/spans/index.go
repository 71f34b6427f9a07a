// Lookup index over a span capture
// Resolves parent references by id and walks ancestor chains with a depth bound
package spans

import (
	"log/slog"
)

// Index provides id and name lookups over a capture without copying it.
// Duplicate ids resolve to the last record carrying that id; every record
// stays visible through Records and ByName for counting.
type Index struct {
	records []Record
	byID    map[string]int
	byName  map[string][]int
}

// NewIndex indexes records. A warning is logged for each duplicated id.
// logger may be nil.
func NewIndex(records []Record, logger *slog.Logger) *Index {
	if logger == nil {
		logger = discardLogger()
	}
	idx := &Index{
		records: records,
		byID:    make(map[string]int, len(records)),
		byName:  make(map[string][]int),
	}
	for i, r := range records {
		if r.ID != "" {
			if prev, dup := idx.byID[r.ID]; dup {
				logger.Warn("duplicate span id in capture, last record wins for lookup",
					"span_id", r.ID, "first", records[prev].Name, "last", r.Name)
			}
			idx.byID[r.ID] = i
		}
		idx.byName[r.Name] = append(idx.byName[r.Name], i)
	}
	return idx
}

// Len returns the number of indexed records, duplicates included.
func (idx *Index) Len() int { return len(idx.records) }

// Records returns the indexed records in emission order.
func (idx *Index) Records() []Record { return idx.records }

// At returns the record at position i.
func (idx *Index) At(i int) Record { return idx.records[i] }

// Lookup returns the position of the record with the given id.
func (idx *Index) Lookup(id string) (int, bool) {
	i, ok := idx.byID[id]
	return i, ok
}

// ByName returns positions of all records with exactly this name.
func (idx *Index) ByName(name string) []int { return idx.byName[name] }

// CountName returns how many records carry exactly this name.
func (idx *Index) CountName(name string) int { return len(idx.byName[name]) }

// Names returns the distinct span names in the capture.
func (idx *Index) Names() []string {
	names := make([]string, 0, len(idx.byName))
	for name := range idx.byName {
		names = append(names, name)
	}
	return names
}

// Ancestors calls yield with the position of each ancestor of record i,
// nearest first, until yield returns false. The walk stops at a root, at a
// parent id missing from the capture, or after Len()+1 steps, so cyclic
// parent references always terminate.
func (idx *Index) Ancestors(i int, yield func(int) bool) {
	limit := len(idx.records) + 1
	cur := idx.records[i]
	for step := 0; step < limit; step++ {
		if cur.ParentID == "" {
			return
		}
		p, ok := idx.byID[cur.ParentID]
		if !ok {
			return
		}
		if !yield(p) {
			return
		}
		cur = idx.records[p]
	}
}

// HasAncestorNamed reports whether any ancestor of record i is named name.
func (idx *Index) HasAncestorNamed(i int, name string) bool {
	found := false
	idx.Ancestors(i, func(p int) bool {
		if idx.records[p].Name == name {
			found = true
			return false
		}
		return true
	})
	return found
}

// AncestorNames returns the names along record i's ancestor chain, nearest first.
func (idx *Index) AncestorNames(i int) []string {
	var names []string
	idx.Ancestors(i, func(p int) bool {
		names = append(names, idx.records[p].Name)
		return true
	})
	return names
}
