package journal

import (
	"bytes"
	"encoding/json"
	"math/big"
	"strconv"
)

type param struct {
	name  string
	value []byte // pre-encoded JSON
}

// Params is an insertion-ordered parameter map. Numbers are encoded as
// base-10 strings, booleans as literals, so consumers never lose precision.
type Params struct {
	entries []param
}

func NewParams() *Params {
	return &Params{}
}

// Str adds a string value such as an address or key.
func (p *Params) Str(name, v string) *Params {
	return p.add(name, quote(v))
}

// Int adds an unbounded integer as a decimal string. nil encodes as "0".
func (p *Params) Int(name string, v *big.Int) *Params {
	if v == nil {
		return p.add(name, quote("0"))
	}
	return p.add(name, quote(v.String()))
}

// Int64 adds a machine integer as a decimal string.
func (p *Params) Int64(name string, v int64) *Params {
	return p.add(name, quote(strconv.FormatInt(v, 10)))
}

// Bool adds a literal true/false.
func (p *Params) Bool(name string, v bool) *Params {
	return p.add(name, []byte(strconv.FormatBool(v)))
}

// Len returns the number of parameters.
func (p *Params) Len() int { return len(p.entries) }

func (p *Params) add(name string, encoded []byte) *Params {
	for i := range p.entries {
		if p.entries[i].name == name {
			p.entries[i].value = encoded
			return p
		}
	}
	p.entries = append(p.entries, param{name: name, value: encoded})
	return p
}

// MarshalJSON writes the parameters as a JSON object in insertion order.
func (p *Params) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range p.entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(quote(e.name))
		buf.WriteByte(':')
		buf.Write(e.value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// String returns the encoded object.
func (p *Params) String() string {
	b, _ := p.MarshalJSON()
	return string(b)
}

func quote(s string) []byte {
	b, _ := json.Marshal(s)
	return b
}
