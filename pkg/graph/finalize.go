package graph

import (
	"sort"
	"strings"
)

// FinalizeReport summarizes a finalization pass
type FinalizeReport struct {
	DefaultsFilled int `json:"defaults_filled"`
	MergedNodes    int `json:"merged_nodes"`
}

// Finalize makes the graph internally consistent after bulk changes: missing
// values of attributes with defaults are filled in, and nodes sharing the
// same values for every key attribute are merged into the lowest id.
func (g *Graph) Finalize() (FinalizeReport, error) {
	var report FinalizeReport

	for _, kind := range []ElementKind{KindNode, KindRelation} {
		ids := g.NodeIDs()
		if kind == KindRelation {
			ids = g.RelationIDs()
		}
		for _, attr := range g.schema.Attributes(kind) {
			if attr.Default == nil {
				continue
			}
			for _, id := range ids {
				if _, ok := g.Value(kind, id, attr.Name); ok {
					continue
				}
				if err := g.SetValue(kind, id, attr.Name, attr.Default); err != nil {
					return report, err
				}
				report.DefaultsFilled++
			}
		}
	}

	merged, err := g.mergeDuplicateKeys()
	report.MergedNodes = merged
	return report, err
}

func (g *Graph) mergeDuplicateKeys() (int, error) {
	keys := g.schema.Keys(KindNode)
	if len(keys) == 0 {
		return 0, nil
	}

	groups := make(map[string][]int)
	for _, id := range g.NodeIDs() {
		parts := make([]string, 0, len(keys))
		complete := true
		for _, k := range keys {
			v, ok := g.Value(KindNode, id, k)
			if !ok || FormatValue(v) == "" {
				complete = false
				break
			}
			parts = append(parts, FormatValue(v))
		}
		if !complete {
			continue
		}
		key := strings.Join(parts, "\x1f")
		groups[key] = append(groups[key], id)
	}

	groupKeys := make([]string, 0, len(groups))
	for k := range groups {
		groupKeys = append(groupKeys, k)
	}
	sort.Strings(groupKeys)

	merged := 0
	for _, k := range groupKeys {
		ids := groups[k]
		keeper := ids[0]
		for _, dup := range ids[1:] {
			if err := g.absorb(keeper, dup); err != nil {
				return merged, err
			}
			merged++
		}
	}
	return merged, nil
}

// absorb folds node dup into keeper: missing attributes are copied, incident
// relations are redirected, and dup is removed.
func (g *Graph) absorb(keeper, dup int) error {
	for name, v := range g.Values(KindNode, dup) {
		if _, ok := g.Value(KindNode, keeper, name); ok {
			continue
		}
		if err := g.SetValue(KindNode, keeper, name, v); err != nil {
			return err
		}
	}
	for _, rid := range g.Relations(dup) {
		g.redirect(rid, dup, keeper)
	}
	return g.RemoveNode(dup)
}
