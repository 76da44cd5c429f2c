package params

import (
	"bytes"
	"encoding/json"
	"strings"
)

const upperhex = "0123456789ABCDEF"

// Encode serializes p into "key=value" pairs joined by "&", in key order.
// Lists are flattened with Value.String, so bracket notation is not rebuilt.
func Encode(p Params) string {
	parts := make([]string, 0, len(p.keys))
	for _, k := range p.keys {
		parts = append(parts, EscapeComponent(k)+"="+EscapeComponent(p.values[k].String()))
	}
	return strings.Join(parts, "&")
}

// EscapeComponent percent-encodes s with the encodeURIComponent alphabet:
// letters, digits and -_.!~*'() pass through, every other byte is escaped.
func EscapeComponent(s string) string {
	n := 0
	for i := 0; i < len(s); i++ {
		if !unreserved(s[i]) {
			n++
		}
	}
	if n == 0 {
		return s
	}

	var b strings.Builder
	b.Grow(len(s) + 2*n)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if unreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperhex[c>>4])
		b.WriteByte(upperhex[c&15])
	}
	return b.String()
}

func unreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	switch c {
	case '-', '_', '.', '!', '~', '*', '\'', '(', ')':
		return true
	}
	return false
}

// MarshalJSON renders the map as an object in key order: scalars as strings,
// flags as true, lists as arrays with null holes.
func (p Params) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range p.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(p.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalJSON renders a single value in the shape MarshalJSON on Params uses.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindFlag:
		return []byte("true"), nil
	case KindList:
		items := make([]*string, len(v.Items))
		for i := range v.Items {
			if v.Items[i].Set {
				s := v.Items[i].Text
				items[i] = &s
			}
		}
		return json.Marshal(items)
	default:
		return json.Marshal(v.Text)
	}
}
