// Package params parses page query strings into an ordered parameter map and
// re-encodes that map into a query string for forwarding to the data backend.
package params

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// MaxIndex is the largest explicit bracket index that is placed by position.
// Larger indices are appended so a single parameter cannot force a huge allocation.
const MaxIndex = 1024

// Kind tags the variant held by a Value.
type Kind int

const (
	KindScalar Kind = iota + 1
	KindFlag
	KindList
)

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindFlag:
		return "flag"
	case KindList:
		return "list"
	default:
		return "unknown"
	}
}

// Element is one slot of a list value. Unset slots are holes left by sparse
// indexed placement such as a[0]=x&a[2]=y.
type Element struct {
	Text string `json:"text"`
	Set  bool   `json:"set"`
}

// Value is a single parameter: a scalar string, a valueless flag, or a list.
type Value struct {
	Kind  Kind
	Text  string
	Items []Element
}

// Scalar returns a single-valued parameter.
func Scalar(s string) Value { return Value{Kind: KindScalar, Text: s} }

// Flag returns a valueless parameter (e.g. "?debug").
func Flag() Value { return Value{Kind: KindFlag} }

// List returns a list parameter with every slot set.
func List(items ...string) Value {
	v := Value{Kind: KindList, Items: make([]Element, len(items))}
	for i, s := range items {
		v.Items[i] = Element{Text: s, Set: true}
	}
	return v
}

// String flattens the value the way the forwarding query expects it: flags
// become "true", lists are comma-joined with holes rendered empty.
func (v Value) String() string {
	switch v.Kind {
	case KindFlag:
		return "true"
	case KindList:
		parts := make([]string, len(v.Items))
		for i, it := range v.Items {
			if it.Set {
				parts[i] = it.Text
			}
		}
		return strings.Join(parts, ",")
	default:
		return v.Text
	}
}

func (v Value) element() Element {
	if v.Kind == KindFlag {
		return Element{Text: "true", Set: true}
	}
	return Element{Text: v.Text, Set: true}
}

// empty reports whether a stored value would be falsy on the page, i.e. an
// empty scalar that the next occurrence replaces instead of promoting.
func (v Value) empty() bool {
	return v.Kind == KindScalar && v.Text == ""
}

// Params is an ordered parameter map. Keys keep first-encounter order.
type Params struct {
	keys   []string
	values map[string]Value
}

// New returns an empty parameter map.
func New() *Params {
	return &Params{values: make(map[string]Value)}
}

// Set stores v under key, appending key to the order if it is new.
func (p *Params) Set(key string, v Value) {
	if p.values == nil {
		p.values = make(map[string]Value)
	}
	if _, ok := p.values[key]; !ok {
		p.keys = append(p.keys, key)
	}
	p.values[key] = v
}

// Get returns the value stored under key.
func (p Params) Get(key string) (Value, bool) {
	v, ok := p.values[key]
	return v, ok
}

// Text returns the flattened value for key, or "" when it is absent.
func (p Params) Text(key string) string {
	v, ok := p.values[key]
	if !ok {
		return ""
	}
	return v.String()
}

// PositiveInt returns key as a positive integer, or def when the parameter is
// absent, a flag, a list, or not a positive number.
func (p Params) PositiveInt(key string, def int) int {
	v, ok := p.values[key]
	if !ok || v.Kind != KindScalar {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v.Text))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// Keys returns the parameter names in order.
func (p Params) Keys() []string {
	out := make([]string, len(p.keys))
	copy(out, p.keys)
	return out
}

// Len returns the number of distinct keys.
func (p Params) Len() int { return len(p.keys) }

// Parse converts a raw query string (with or without the leading "?") into a
// parameter map. Anything after "#" is ignored. Parse never fails: malformed
// segments degrade to flags, raw text, or are skipped when they have no name.
func Parse(rawQuery string) Params {
	p := Params{values: make(map[string]Value)}

	if i := strings.IndexByte(rawQuery, '#'); i >= 0 {
		rawQuery = rawQuery[:i]
	}
	rawQuery = strings.TrimPrefix(rawQuery, "?")
	if rawQuery == "" {
		return p
	}

	for _, pair := range strings.Split(rawQuery, "&") {
		rawName, rest, hasValue := strings.Cut(pair, "=")
		// Text after a second "=" is dropped.
		rawValue, _, _ := strings.Cut(rest, "=")

		incoming := Flag()
		if hasValue {
			incoming = Scalar(unescape(rawValue))
		}

		if base, index, ok := splitBracket(rawName); ok {
			if base = unescape(base); base == "" {
				continue
			}
			p.addIndexed(base, index, incoming)
			continue
		}

		name := unescape(rawName)
		if name == "" {
			continue
		}
		p.addPlain(name, incoming)
	}
	return p
}

// QueryOf returns the query part of a chart page reference. raw may be an
// absolute or relative URL, "?query", or a bare query string.
func QueryOf(raw string) (string, error) {
	head, _, hasQuery := strings.Cut(raw, "?")
	if strings.ContainsAny(head, "=&") || (!hasQuery && !strings.Contains(raw, "://")) {
		return raw, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	return u.RawQuery, nil
}

// FromURL parses the query of a chart page reference accepted by QueryOf.
func FromURL(raw string) (Params, error) {
	q, err := QueryOf(raw)
	if err != nil {
		return Params{}, err
	}
	return Parse(q), nil
}

func (p *Params) addPlain(name string, incoming Value) {
	cur, ok := p.values[name]
	switch {
	case !ok || cur.empty():
		p.Set(name, incoming)
	case cur.Kind == KindList:
		cur.Items = append(cur.Items, incoming.element())
		p.values[name] = cur
	default:
		p.values[name] = Value{Kind: KindList, Items: []Element{cur.element(), incoming.element()}}
	}
}

func (p *Params) addIndexed(base string, index int, incoming Value) {
	var items []Element
	cur, ok := p.values[base]
	switch {
	case !ok || cur.empty():
	case cur.Kind == KindList:
		items = cur.Items
	default:
		items = []Element{cur.element()}
	}

	el := incoming.element()
	if index < 0 || index > MaxIndex {
		items = append(items, el)
	} else {
		for len(items) <= index {
			items = append(items, Element{})
		}
		items[index] = el
	}
	p.Set(base, Value{Kind: KindList, Items: items})
}

var (
	trailingGroup = regexp.MustCompile(`\[(\d+)?\]$`)
	anyGroup      = regexp.MustCompile(`\[(\d+)?\]`)
	indexGroup    = regexp.MustCompile(`\[(\d+)\]`)
)

// splitBracket detects a name ending in "[]" or "[N]". The first bracket group
// is removed to form the base, so "x[1][2]" has base "x[2]". When the name ends
// in "[N]", the index is taken from the first numbered group; it is -1 for "[]".
func splitBracket(name string) (base string, index int, ok bool) {
	tail := trailingGroup.FindStringSubmatch(name)
	if tail == nil {
		return "", 0, false
	}
	loc := anyGroup.FindStringIndex(name)
	base = name[:loc[0]] + name[loc[1]:]
	if tail[1] == "" {
		return base, -1, true
	}
	n, err := strconv.Atoi(indexGroup.FindStringSubmatch(name)[1])
	if err != nil {
		// Overflowing digit runs still mark an array key; append them.
		return base, -1, true
	}
	return base, n, true
}

func unescape(s string) string {
	if !strings.Contains(s, "%") {
		return s
	}
	out, err := url.PathUnescape(s)
	if err != nil {
		return s
	}
	return out
}
