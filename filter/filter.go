// Package filter narrows item lists by independently selectable facets.
package filter

// Matcher is the type-erased view of a Filter used by Apply.
type Matcher[Item any] interface {
	// Match reports whether item passes; an unselected filter passes everything.
	Match(item Item) bool
}

// Filter is one facet: a set of selectable values and a predicate tested
// against the selected one.
type Filter[Item any, Value comparable] struct {
	Label     string
	Name      string
	Values    []Value
	Selected  *Value
	Predicate func(Item, Value) bool
}

// Select picks v. Values outside Values are accepted as given.
func (f *Filter[Item, Value]) Select(v Value) {
	f.Selected = &v
}

func (f *Filter[Item, Value]) Clear() {
	f.Selected = nil
}

// IsSelected reports whether v is the current selection.
func (f *Filter[Item, Value]) IsSelected(v Value) bool {
	return f.Selected != nil && *f.Selected == v
}

func (f *Filter[Item, Value]) Match(item Item) bool {
	if f.Selected == nil || f.Predicate == nil {
		return true
	}
	return f.Predicate(item, *f.Selected)
}

// Apply keeps the items that every filter matches. Filters do not affect
// each other's values.
func Apply[Item any](items []Item, filters ...Matcher[Item]) []Item {
	out := make([]Item, 0, len(items))
outer:
	for _, item := range items {
		for _, f := range filters {
			if !f.Match(item) {
				continue outer
			}
		}
		out = append(out, item)
	}
	return out
}
