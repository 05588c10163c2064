// Package record provides flattened attribute rows describing graph elements.
//
// A RecordSet is the unit exchanged between workflow stages and the graph:
//   - Extract functions read node or relation rows out of a graph view
//   - AddToGraph materializes rows into a graph, filling IDMaps as elements are created
//   - Anchors translates filled IDMaps into the id space of another graph for merging
//
// Keys are "<prefix>.<attribute>" with an optional "<type>" suffix, using the
// prefixes source., destination. and relation. The special attribute [id]
// carries element identity.
package record
