package tables

import (
	"sort"

	"github.com/appetiteclub/pos/pkg/enums/tablestatus"
)

// Registry is an immutable snapshot of the floor. Every mutation returns a
// new Registry and leaves the receiver untouched.
type Registry struct {
	sections []Section
	tables   []Table
	index    map[string]int
}

func NewRegistry(sections []Section, tables []Table) Registry {
	r := Registry{
		sections: append([]Section(nil), sections...),
		tables:   make([]Table, 0, len(tables)),
		index:    make(map[string]int, len(tables)),
	}
	for _, t := range tables {
		if _, dup := r.index[t.ID]; dup {
			continue
		}
		r.index[t.ID] = len(r.tables)
		r.tables = append(r.tables, cloneTable(t))
	}
	return r
}

func (r Registry) Sections() []Section {
	return append([]Section(nil), r.sections...)
}

func (r Registry) Tables() []Table {
	out := make([]Table, len(r.tables))
	for i, t := range r.tables {
		out[i] = cloneTable(t)
	}
	return out
}

func (r Registry) Len() int {
	return len(r.tables)
}

func (r Registry) Find(id string) (Table, bool) {
	i, ok := r.index[id]
	if !ok {
		return Table{}, false
	}
	return cloneTable(r.tables[i]), true
}

// BySection groups tables by section id, sorted by name within each section.
func (r Registry) BySection() map[string][]Table {
	out := make(map[string][]Table, len(r.sections))
	for _, t := range r.tables {
		out[t.SectionID] = append(out[t.SectionID], cloneTable(t))
	}
	for id := range out {
		sort.SliceStable(out[id], func(i, j int) bool {
			return out[id][i].Name < out[id][j].Name
		})
	}
	return out
}

func (r Registry) CountByStatus(status tablestatus.Status) int {
	n := 0
	for _, t := range r.tables {
		if t.Is(status) {
			n++
		}
	}
	return n
}

// With returns a registry where the given tables replace their previous
// versions. Unknown ids are appended.
func (r Registry) With(updated ...Table) Registry {
	next := Registry{
		sections: r.sections,
		tables:   make([]Table, len(r.tables), len(r.tables)+len(updated)),
		index:    make(map[string]int, len(r.index)+len(updated)),
	}
	copy(next.tables, r.tables)
	for id, i := range r.index {
		next.index[id] = i
	}
	for _, t := range updated {
		if i, ok := next.index[t.ID]; ok {
			next.tables[i] = cloneTable(t)
			continue
		}
		next.index[t.ID] = len(next.tables)
		next.tables = append(next.tables, cloneTable(t))
	}
	return next
}

// ResolveRoot returns the table that bills for id: the merge root when id was
// absorbed into one, the table itself otherwise.
func (r Registry) ResolveRoot(id string) (Table, bool) {
	t, ok := r.Find(id)
	if !ok {
		return Table{}, false
	}
	if t.IsMergeMember() {
		if root, ok := r.Find(t.MergedInto); ok {
			return root, true
		}
	}
	return t, true
}

func cloneTable(t Table) Table {
	if t.MergedTables != nil {
		t.MergedTables = append([]string(nil), t.MergedTables...)
	}
	return t
}
