package batch

import (
	"strconv"

	"github.com/aescanero/batchflow/pkg/graph"
)

// Selection reports whether an element takes part in a job
type Selection func(view graph.ReadView, kind graph.ElementKind, id int) bool

// All selects every element
func All() Selection {
	return func(graph.ReadView, graph.ElementKind, int) bool { return true }
}

// IDs selects the given element ids
func IDs(ids ...int) Selection {
	set := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return func(_ graph.ReadView, _ graph.ElementKind, id int) bool {
		_, ok := set[id]
		return ok
	}
}

// SelectedAttribute selects elements whose boolean attribute name is true.
// An empty name means DefaultSelectedAttribute.
func SelectedAttribute(name string) Selection {
	if name == "" {
		name = DefaultSelectedAttribute
	}
	return func(view graph.ReadView, kind graph.ElementKind, id int) bool {
		v, ok := view.Value(kind, id, name)
		if !ok {
			return false
		}
		switch x := v.(type) {
		case bool:
			return x
		case string:
			b, _ := strconv.ParseBool(x)
			return b
		}
		return false
	}
}
