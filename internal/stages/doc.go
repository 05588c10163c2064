// Package stages provides the built-in stages every registry starts with.
//
// Stages:
//   - tag: sets one attribute to a fixed value on every node of the batch
//   - expand: creates child nodes linked from every node of the batch
//   - centrality: scores the nodes of the batch with PageRank
//   - fail: fails on purpose in a chosen phase, for error-stage wiring
//   - notify: records a message on the job report
//
// Every stage reads its working copy through record sets and writes its
// result back with record.AddToGraph, so what a stage computes is the same
// row format the HTTP API and CLI accept.
package stages
