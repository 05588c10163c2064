package graph

import "fmt"

// MergeStats reports what a merge changed in the destination
type MergeStats struct {
	NodesCreated     int
	NodesUpdated     int
	RelationsCreated int
	RelationsUpdated int
	// Translation maps source ids to destination ids
	Nodes     map[int]int
	Relations map[int]int
}

// Merge copies the elements of src into dst. Source ids present in the
// anchor maps are translated to existing destination elements whose
// attributes are updated; all other source elements become new destination
// elements. Relation endpoints are translated through the node translation.
//
// When base is not nil it is the state src started from, with the same ids.
// Anchored elements that also exist in base only receive the attribute
// values that differ from base, so values src never changed are left as dst
// has them. Merge is additive: elements missing from src are left untouched
// in dst.
func Merge(dst WriteView, src, base ReadView, nodeAnchors, relationAnchors map[int]int) (MergeStats, error) {
	stats := MergeStats{
		Nodes:     make(map[int]int, src.NodeCount()),
		Relations: make(map[int]int, src.RelationCount()),
	}

	for _, kind := range []ElementKind{KindNode, KindRelation} {
		for _, attr := range src.Attributes(kind) {
			if err := dst.EnsureAttribute(kind, attr); err != nil {
				return stats, fmt.Errorf("merge schema: %w", err)
			}
		}
	}

	for _, id := range src.NodeIDs() {
		target, ok := nodeAnchors[id]
		if ok && dst.HasNode(target) {
			stats.Nodes[id] = target
			var changed bool
			var err error
			if base != nil && base.HasNode(id) {
				changed, err = copyChanges(dst, src, base, KindNode, id, target)
			} else {
				changed, err = copyValues(dst, src, KindNode, id, target)
			}
			if err != nil {
				return stats, err
			}
			if changed {
				stats.NodesUpdated++
			}
			continue
		}
		target = dst.AddNode()
		stats.NodesCreated++
		stats.Nodes[id] = target
		if _, err := copyValues(dst, src, KindNode, id, target); err != nil {
			return stats, err
		}
	}

	for _, id := range src.RelationIDs() {
		target, ok := relationAnchors[id]
		if ok && dst.HasRelation(target) {
			stats.Relations[id] = target
			var changed bool
			var err error
			if base != nil && base.HasRelation(id) {
				changed, err = copyChanges(dst, src, base, KindRelation, id, target)
			} else {
				changed, err = copyValues(dst, src, KindRelation, id, target)
			}
			if err != nil {
				return stats, err
			}
			if changed {
				stats.RelationsUpdated++
			}
			continue
		}
		srcNode, dstNode, directed, _ := src.Endpoints(id)
		target, err := dst.AddRelation(stats.Nodes[srcNode], stats.Nodes[dstNode], directed)
		if err != nil {
			return stats, fmt.Errorf("merge relation %d: %w", id, err)
		}
		stats.RelationsCreated++
		stats.Relations[id] = target
		if _, err := copyValues(dst, src, KindRelation, id, target); err != nil {
			return stats, err
		}
	}

	return stats, nil
}

// copyValues sets every value of the source element on the target
func copyValues(dst WriteView, src ReadView, kind ElementKind, from, to int) (bool, error) {
	values := src.Values(kind, from)
	for name, v := range values {
		if err := dst.SetValue(kind, to, name, v); err != nil {
			return false, fmt.Errorf("merge %s %d: %w", kind, from, err)
		}
	}
	return len(values) > 0, nil
}

// copyChanges sets only the values that differ between base and src,
// clearing those src removed
func copyChanges(dst WriteView, src, base ReadView, kind ElementKind, from, to int) (bool, error) {
	before := base.Values(kind, from)
	after := src.Values(kind, from)
	changed := false
	for name, v := range after {
		if old, ok := before[name]; ok && old == v {
			continue
		}
		if err := dst.SetValue(kind, to, name, v); err != nil {
			return changed, fmt.Errorf("merge %s %d: %w", kind, from, err)
		}
		changed = true
	}
	for name := range before {
		if _, ok := after[name]; ok {
			continue
		}
		if err := dst.SetValue(kind, to, name, nil); err != nil {
			return changed, fmt.Errorf("merge %s %d: %w", kind, from, err)
		}
		changed = true
	}
	return changed, nil
}
