package bytecode

import (
	"math"
	"strconv"
)

// ConstKind tags the variant held by a Constant.
type ConstKind byte

const (
	ConstNumber ConstKind = iota
	ConstString
	ConstBool
	ConstFunction
)

func (k ConstKind) String() string {
	switch k {
	case ConstNumber:
		return "number"
	case ConstString:
		return "string"
	case ConstBool:
		return "boolean"
	case ConstFunction:
		return "function"
	}
	return "unknown"
}

// Constant is an entry of a unit's constant pool.
type Constant struct {
	Kind     ConstKind         `cbor:"1,keyasint"`
	Number   float64           `cbor:"2,keyasint"`
	String   string            `cbor:"3,keyasint,omitempty"`
	Bool     bool              `cbor:"4,keyasint,omitempty"`
	Function *FunctionTemplate `cbor:"5,keyasint,omitempty"`
}

func NumberConst(f float64) Constant { return Constant{Kind: ConstNumber, Number: f} }
func StringConst(s string) Constant  { return Constant{Kind: ConstString, String: s} }
func BoolConst(b bool) Constant      { return Constant{Kind: ConstBool, Bool: b} }

func FunctionConst(fn *FunctionTemplate) Constant {
	return Constant{Kind: ConstFunction, Function: fn}
}

// Inspect renders the constant for disassembly.
func (c Constant) Inspect() string {
	switch c.Kind {
	case ConstNumber:
		if c.Number == 0 && math.Signbit(c.Number) {
			return "-0"
		}
		return strconv.FormatFloat(c.Number, 'g', -1, 64)
	case ConstString:
		return strconv.Quote(c.String)
	case ConstBool:
		return strconv.FormatBool(c.Bool)
	case ConstFunction:
		if c.Function == nil {
			return "<fn ?>"
		}
		return c.Function.Inspect()
	}
	return "?"
}

// constKey identifies a deduplicable constant. Numbers are keyed by their
// IEEE-754 bit pattern, so NaNs with equal bits share an entry and +0/-0 do not.
type constKey struct {
	kind ConstKind
	bits uint64
	str  string
}

// ConstantPool is the ordered, duplicate-free constant table built while a unit
// is generated. Function templates are never deduplicated.
type ConstantPool struct {
	entries []Constant
	index   map[constKey]int
}

// NewConstantPool creates an empty pool.
func NewConstantPool() *ConstantPool {
	return &ConstantPool{index: make(map[constKey]int)}
}

// Intern returns the index of c, appending it if no equal entry exists.
func (p *ConstantPool) Intern(c Constant) int {
	if c.Kind == ConstFunction {
		p.entries = append(p.entries, c)
		return len(p.entries) - 1
	}
	key := constKey{kind: c.Kind}
	switch c.Kind {
	case ConstNumber:
		key.bits = math.Float64bits(c.Number)
	case ConstString:
		key.str = c.String
	case ConstBool:
		if c.Bool {
			key.bits = 1
		}
	}
	if idx, ok := p.index[key]; ok {
		return idx
	}
	p.entries = append(p.entries, c)
	idx := len(p.entries) - 1
	p.index[key] = idx
	return idx
}

// Len returns the number of entries.
func (p *ConstantPool) Len() int { return len(p.entries) }

// Get returns the entry at idx.
func (p *ConstantPool) Get(idx int) Constant { return p.entries[idx] }

// Constants returns the pool contents. The caller must not modify the slice.
func (p *ConstantPool) Constants() []Constant { return p.entries }
