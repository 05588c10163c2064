package graph

import (
	"fmt"
	"strconv"
	"strings"
)

// ElementKind distinguishes nodes from relations
type ElementKind string

const (
	KindNode     ElementKind = "node"
	KindRelation ElementKind = "relation"
)

// AttrType is the value type of an attribute
type AttrType string

const (
	TypeString AttrType = "string"
	TypeInt    AttrType = "int"
	TypeFloat  AttrType = "float"
	TypeBool   AttrType = "bool"
)

// Attribute describes a named, typed attribute of nodes or relations
type Attribute struct {
	Name    string
	Type    AttrType
	Default any
	// Key attributes identify a node; nodes sharing all key values are merged by Finalize.
	Key bool
}

// Schema holds the attribute definitions of a graph
type Schema struct {
	attrs map[ElementKind][]Attribute
}

// NewSchema creates an empty schema
func NewSchema() *Schema {
	return &Schema{attrs: map[ElementKind][]Attribute{}}
}

// Add registers an attribute. Re-adding an attribute with the same type is a no-op.
func (s *Schema) Add(kind ElementKind, attr Attribute) error {
	if attr.Name == "" {
		return fmt.Errorf("attribute name is required")
	}
	if !attr.Type.valid() {
		return fmt.Errorf("attribute %s: unsupported type %q", attr.Name, attr.Type)
	}
	if existing, ok := s.Lookup(kind, attr.Name); ok {
		if existing.Type != attr.Type {
			return fmt.Errorf("attribute %s already registered as %s, not %s", attr.Name, existing.Type, attr.Type)
		}
		return nil
	}
	if attr.Default != nil {
		v, err := Coerce(attr.Type, attr.Default)
		if err != nil {
			return fmt.Errorf("attribute %s default: %w", attr.Name, err)
		}
		attr.Default = v
	}
	s.attrs[kind] = append(s.attrs[kind], attr)
	return nil
}

// Lookup returns the attribute registered under name
func (s *Schema) Lookup(kind ElementKind, name string) (Attribute, bool) {
	for _, a := range s.attrs[kind] {
		if a.Name == name {
			return a, true
		}
	}
	return Attribute{}, false
}

// Attributes returns the attributes of kind in registration order
func (s *Schema) Attributes(kind ElementKind) []Attribute {
	out := make([]Attribute, len(s.attrs[kind]))
	copy(out, s.attrs[kind])
	return out
}

// Keys returns the names of the key attributes of kind
func (s *Schema) Keys(kind ElementKind) []string {
	var keys []string
	for _, a := range s.attrs[kind] {
		if a.Key {
			keys = append(keys, a.Name)
		}
	}
	return keys
}

// Clone returns an independent copy of the schema
func (s *Schema) Clone() *Schema {
	c := NewSchema()
	for kind, attrs := range s.attrs {
		c.attrs[kind] = append([]Attribute(nil), attrs...)
	}
	return c
}

func (s *Schema) remove(kind ElementKind, name string) {
	attrs := s.attrs[kind]
	for i, a := range attrs {
		if a.Name == name {
			s.attrs[kind] = append(attrs[:i:i], attrs[i+1:]...)
			return
		}
	}
}

func (t AttrType) valid() bool {
	switch t {
	case TypeString, TypeInt, TypeFloat, TypeBool:
		return true
	}
	return false
}

// ParseType maps a type name to an AttrType, defaulting to string
func ParseType(name string) AttrType {
	t := AttrType(strings.ToLower(strings.TrimSpace(name)))
	switch t {
	case "integer":
		return TypeInt
	case "boolean":
		return TypeBool
	case "double":
		return TypeFloat
	}
	if t.valid() {
		return t
	}
	return TypeString
}

// TypeOf infers the attribute type of a Go value
func TypeOf(v any) AttrType {
	switch v.(type) {
	case int, int32, int64:
		return TypeInt
	case float32, float64:
		return TypeFloat
	case bool:
		return TypeBool
	default:
		return TypeString
	}
}

// ParseValue converts the string form of a value to the given type
func ParseValue(t AttrType, s string) (any, error) {
	switch t {
	case TypeInt:
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return nil, fmt.Errorf("parse int %q: %w", s, err)
		}
		return n, nil
	case TypeFloat:
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil, fmt.Errorf("parse float %q: %w", s, err)
		}
		return f, nil
	case TypeBool:
		b, err := strconv.ParseBool(strings.TrimSpace(s))
		if err != nil {
			return nil, fmt.Errorf("parse bool %q: %w", s, err)
		}
		return b, nil
	default:
		return s, nil
	}
}

// FormatValue returns the string form of a value
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32)
	default:
		return fmt.Sprint(x)
	}
}

// Coerce converts v to the Go representation of t
func Coerce(t AttrType, v any) (any, error) {
	switch t {
	case TypeInt:
		switch x := v.(type) {
		case int:
			return x, nil
		case int32:
			return int(x), nil
		case int64:
			return int(x), nil
		case float64:
			if x == float64(int(x)) {
				return int(x), nil
			}
		case string:
			return ParseValue(t, x)
		}
	case TypeFloat:
		switch x := v.(type) {
		case float64:
			return x, nil
		case float32:
			return float64(x), nil
		case int:
			return float64(x), nil
		case int64:
			return float64(x), nil
		case string:
			return ParseValue(t, x)
		}
	case TypeBool:
		switch x := v.(type) {
		case bool:
			return x, nil
		case string:
			return ParseValue(t, x)
		}
	case TypeString:
		return FormatValue(v), nil
	}
	return nil, fmt.Errorf("cannot use %T as %s", v, t)
}
