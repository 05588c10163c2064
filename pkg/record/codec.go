package record

import (
	"fmt"
	"io"

	"github.com/goccy/go-json"
)

type wireRecordSet struct {
	Keys []string `json:"keys"`
	Rows []Record `json:"rows"`
}

// MarshalJSON encodes the record set as {"keys": [...], "rows": [...]}
func (rs *RecordSet) MarshalJSON() ([]byte, error) {
	w := wireRecordSet{Keys: rs.Keys(), Rows: rs.Rows()}
	if w.Keys == nil {
		w.Keys = []string{}
	}
	if w.Rows == nil {
		w.Rows = []Record{}
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes the form produced by MarshalJSON. Keys missing from
// the key list but present in rows are appended.
func (rs *RecordSet) UnmarshalJSON(data []byte) error {
	var w wireRecordSet
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("decode record set: %w", err)
	}
	*rs = RecordSet{index: make(map[string]struct{})}
	for _, k := range w.Keys {
		rs.addKey(k)
	}
	for _, r := range w.Rows {
		rs.Append(r)
	}
	return nil
}

// Decode reads a JSON record set from r
func Decode(r io.Reader) (*RecordSet, error) {
	rs := NewRecordSet()
	if err := json.NewDecoder(r).Decode(rs); err != nil {
		return nil, err
	}
	return rs, nil
}

// Encode writes rs to w as JSON
func Encode(w io.Writer, rs *RecordSet) error {
	return json.NewEncoder(w).Encode(rs)
}
