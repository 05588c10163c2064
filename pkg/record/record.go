package record

import (
	"fmt"
	"strings"

	"github.com/aescanero/batchflow/pkg/graph"
)

const (
	Source      = "source."
	Destination = "destination."
	Relation    = "relation."

	ID       = "[id]"
	Directed = "[directed]"
)

// Record is one row of attribute values keyed by prefixed attribute name
type Record map[string]string

// Get returns the value stored under key
func (r Record) Get(key string) (string, bool) {
	v, ok := r[key]
	return v, ok
}

// RecordSet is an ordered collection of records
type RecordSet struct {
	keys  []string
	index map[string]struct{}
	rows  []Record
}

// NewRecordSet creates an empty record set
func NewRecordSet() *RecordSet {
	return &RecordSet{index: make(map[string]struct{})}
}

// Add appends an empty row and returns it
func (rs *RecordSet) Add() Record {
	r := make(Record)
	rs.rows = append(rs.rows, r)
	return r
}

// Set stores value under key in row i
func (rs *RecordSet) Set(i int, key, value string) {
	rs.addKey(key)
	rs.rows[i][key] = value
}

// Append adds a copy of r as a new row
func (rs *RecordSet) Append(r Record) {
	row := rs.Add()
	for k, v := range r {
		rs.addKey(k)
		row[k] = v
	}
}

// Len returns the number of rows
func (rs *RecordSet) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.rows)
}

// Row returns row i
func (rs *RecordSet) Row(i int) Record {
	return rs.rows[i]
}

// Rows returns the rows in insertion order
func (rs *RecordSet) Rows() []Record {
	if rs == nil {
		return nil
	}
	return rs.rows
}

// Keys returns every key used by any row, in first-use order
func (rs *RecordSet) Keys() []string {
	if rs == nil {
		return nil
	}
	out := make([]string, len(rs.keys))
	copy(out, rs.keys)
	return out
}

// Clone returns a deep copy
func (rs *RecordSet) Clone() *RecordSet {
	c := NewRecordSet()
	if rs == nil {
		return c
	}
	for _, r := range rs.rows {
		c.Append(r)
	}
	for _, k := range rs.keys {
		c.addKey(k)
	}
	return c
}

// Slice returns a copy of at most limit rows starting at offset. A limit
// below one means every remaining row.
func (rs *RecordSet) Slice(offset, limit int) *RecordSet {
	out := NewRecordSet()
	rows := rs.Rows()
	if offset < 0 {
		offset = 0
	}
	if offset > len(rows) {
		offset = len(rows)
	}
	end := len(rows)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	for _, k := range rs.Keys() {
		out.addKey(k)
	}
	for _, r := range rows[offset:end] {
		out.Append(r)
	}
	return out
}

func (rs *RecordSet) addKey(key string) {
	if rs.index == nil {
		rs.index = make(map[string]struct{})
	}
	if _, ok := rs.index[key]; ok {
		return
	}
	rs.index[key] = struct{}{}
	rs.keys = append(rs.keys, key)
}

// Key builds a record key for an attribute under prefix
func Key(prefix, attribute string) string {
	return prefix + attribute
}

// TypedKey builds a record key that also carries the attribute type
func TypedKey(prefix, attribute string, t graph.AttrType) string {
	return fmt.Sprintf("%s%s<%s>", prefix, attribute, t)
}

// SplitKey returns the prefix, attribute name and declared type of key.
// ok is false when key has no known prefix.
func SplitKey(key string) (prefix, attribute string, t graph.AttrType, typed bool, ok bool) {
	for _, p := range []string{Source, Destination, Relation} {
		if strings.HasPrefix(key, p) {
			prefix = p
			attribute = key[len(p):]
			break
		}
	}
	if prefix == "" || attribute == "" {
		return "", "", "", false, false
	}
	if i := strings.LastIndexByte(attribute, '<'); i > 0 && strings.HasSuffix(attribute, ">") {
		t = graph.ParseType(attribute[i+1 : len(attribute)-1])
		attribute = attribute[:i]
		typed = true
	}
	return prefix, attribute, t, typed, true
}
