// Package params holds the ordered key/value parameters passed to stages.
package params

import (
	"fmt"
	"sort"
	"strconv"
	"time"
)

// Params is an ordered set of string-keyed parameter values. The zero value
// is empty and ready to use.
type Params struct {
	keys   []string
	values map[string]any
}

// New builds Params from alternating key/value pairs
func New(kv ...any) *Params {
	p := &Params{}
	for i := 0; i+1 < len(kv); i += 2 {
		k, ok := kv[i].(string)
		if !ok {
			continue
		}
		p.Set(k, kv[i+1])
	}
	return p
}

// FromMap builds Params from m with keys in the given order; keys of m not
// listed in order follow in lexical order.
func FromMap(m map[string]any, order ...string) *Params {
	p := &Params{}
	for _, k := range order {
		if v, ok := m[k]; ok {
			p.Set(k, v)
		}
	}
	rest := make([]string, 0, len(m))
	for k := range m {
		if !p.Has(k) {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	for _, k := range rest {
		p.Set(k, m[k])
	}
	return p
}

// Set stores v under key, keeping the original position of existing keys
func (p *Params) Set(key string, v any) {
	if p.values == nil {
		p.values = make(map[string]any)
	}
	if _, ok := p.values[key]; !ok {
		p.keys = append(p.keys, key)
	}
	p.values[key] = v
}

func (p *Params) Get(key string) (any, bool) {
	if p == nil {
		return nil, false
	}
	v, ok := p.values[key]
	return v, ok
}

func (p *Params) Has(key string) bool {
	_, ok := p.Get(key)
	return ok
}

// Keys returns the keys in order
func (p *Params) Keys() []string {
	if p == nil {
		return nil
	}
	return append([]string(nil), p.keys...)
}

func (p *Params) Len() int {
	if p == nil {
		return 0
	}
	return len(p.keys)
}

// Map returns an unordered copy of the values
func (p *Params) Map() map[string]any {
	m := make(map[string]any, p.Len())
	if p == nil {
		return m
	}
	for k, v := range p.values {
		m[k] = v
	}
	return m
}

// Clone returns an independent copy
func (p *Params) Clone() *Params {
	c := &Params{}
	if p == nil {
		return c
	}
	for _, k := range p.keys {
		c.Set(k, p.values[k])
	}
	return c
}

// Merge combines the declared defaults of a stage with the job-wide
// parameters. A key present in global always wins. The result lists the
// stage keys first, in their declared order, followed by the keys only
// global defines. Neither input is modified.
func Merge(stage, global *Params) *Params {
	out := &Params{}
	for _, k := range stage.Keys() {
		if v, ok := global.Get(k); ok {
			out.Set(k, v)
			continue
		}
		v, _ := stage.Get(k)
		out.Set(k, v)
	}
	for _, k := range global.Keys() {
		if !out.Has(k) {
			v, _ := global.Get(k)
			out.Set(k, v)
		}
	}
	return out
}

// String returns the value of key formatted as a string, or def when unset
func (p *Params) String(key, def string) string {
	v, ok := p.Get(key)
	if !ok || v == nil {
		return def
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Int returns the value of key as an int
func (p *Params) Int(key string, def int) (int, error) {
	v, ok := p.Get(key)
	if !ok || v == nil {
		return def, nil
	}
	switch x := v.(type) {
	case int:
		return x, nil
	case int64:
		return int(x), nil
	case float64:
		if x != float64(int(x)) {
			return 0, fmt.Errorf("parameter %s: %v is not an integer", key, x)
		}
		return int(x), nil
	case string:
		n, err := strconv.Atoi(x)
		if err != nil {
			return 0, fmt.Errorf("parameter %s: %w", key, err)
		}
		return n, nil
	}
	return 0, fmt.Errorf("parameter %s: unsupported type %T", key, v)
}

// Float returns the value of key as a float64
func (p *Params) Float(key string, def float64) (float64, error) {
	v, ok := p.Get(key)
	if !ok || v == nil {
		return def, nil
	}
	switch x := v.(type) {
	case float64:
		return x, nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case string:
		f, err := strconv.ParseFloat(x, 64)
		if err != nil {
			return 0, fmt.Errorf("parameter %s: %w", key, err)
		}
		return f, nil
	}
	return 0, fmt.Errorf("parameter %s: unsupported type %T", key, v)
}

// Bool returns the value of key as a bool
func (p *Params) Bool(key string, def bool) (bool, error) {
	v, ok := p.Get(key)
	if !ok || v == nil {
		return def, nil
	}
	switch x := v.(type) {
	case bool:
		return x, nil
	case string:
		b, err := strconv.ParseBool(x)
		if err != nil {
			return false, fmt.Errorf("parameter %s: %w", key, err)
		}
		return b, nil
	}
	return false, fmt.Errorf("parameter %s: unsupported type %T", key, v)
}

// Duration returns the value of key as a time.Duration. Strings use
// time.ParseDuration; numbers are milliseconds.
func (p *Params) Duration(key string, def time.Duration) (time.Duration, error) {
	v, ok := p.Get(key)
	if !ok || v == nil {
		return def, nil
	}
	if s, ok := v.(string); ok {
		d, err := time.ParseDuration(s)
		if err != nil {
			return 0, fmt.Errorf("parameter %s: %w", key, err)
		}
		return d, nil
	}
	ms, err := p.Int(key, 0)
	if err != nil {
		return 0, err
	}
	return time.Duration(ms) * time.Millisecond, nil
}
