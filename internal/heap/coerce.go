package heap

import (
	"math"
	"math/big"
	"strconv"
	"strings"
	"unicode/utf8"
)

// ToNumber applies JS numeric conversion to a primitive. Heap references
// convert to NaN; the VM rejects them before arithmetic.
func ToNumber(v Value) float64 {
	switch v.Kind {
	case KindNumber:
		return v.AsNumber()
	case KindUndefined:
		return math.NaN()
	case KindNull:
		return 0
	case KindBoolean:
		if v.AsBool() {
			return 1
		}
		return 0
	case KindString:
		return StringToNumber(v.Str)
	}
	return math.NaN()
}

// StringToNumber parses a numeric string the way JS does: surrounding
// whitespace is ignored, the empty string is 0, and 0x/0o/0b prefixes are
// understood. Anything else that is not a decimal literal is NaN.
func StringToNumber(s string) float64 {
	str := strings.TrimSpace(s)
	if str == "" {
		return 0
	}

	if len(str) > 2 && str[0] == '0' {
		base := 0
		switch str[1] {
		case 'x', 'X':
			base = 16
		case 'o', 'O':
			base = 8
		case 'b', 'B':
			base = 2
		}
		if base != 0 {
			i, err := strconv.ParseUint(str[2:], base, 64)
			if err == nil {
				return float64(i)
			}
			if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
				// Valid digits beyond 64 bits round to the nearest double.
				n, _ := new(big.Int).SetString(str[2:], base)
				f, _ := new(big.Float).SetInt(n).Float64()
				return f
			}
			return math.NaN()
		}
	}

	// "Infinity" is case-sensitive; Go's ParseFloat also accepts inf/nan spellings.
	switch str {
	case "Infinity", "+Infinity":
		return math.Inf(1)
	case "-Infinity":
		return math.Inf(-1)
	}
	lower := strings.ToLower(strings.TrimLeft(str, "+-"))
	if strings.HasPrefix(lower, "inf") || strings.HasPrefix(lower, "nan") || strings.ContainsAny(str, "_xXpP") {
		return math.NaN()
	}

	if f, err := strconv.ParseFloat(str, 64); err == nil {
		return f
	} else if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
		return f
	}
	return math.NaN()
}

// cleanExponentialFormat removes leading zeros from exponent to match JS format
// e.g., "1e-07" -> "1e-7"
func cleanExponentialFormat(s string) string {
	i := strings.IndexByte(s, 'e')
	if i < 0 || i+2 > len(s) {
		return s
	}
	sign := s[i+1]
	exp := strings.TrimLeft(s[i+2:], "0")
	if exp == "" {
		exp = "0"
	}
	return s[:i+1] + string(sign) + exp
}

// NumberToString formats f per ECMAScript Number::toString.
func NumberToString(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		// -0 prints as 0
		return "0"
	}
	abs := math.Abs(f)
	if abs < 1e-6 || abs >= 1e21 {
		return cleanExponentialFormat(strconv.FormatFloat(f, 'e', -1, 64))
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// ToString converts a primitive to its JS string form. Heap references
// render as their kind tag; use Inspect for a structural rendering.
func ToString(v Value) string {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindNumber:
		return NumberToString(v.AsNumber())
	case KindBoolean:
		if v.AsBool() {
			return "true"
		}
		return "false"
	case KindUndefined:
		return "undefined"
	case KindNull:
		return "null"
	case KindObject:
		return "[object Object]"
	case KindArray:
		return "[object Array]"
	case KindFunction:
		return "[object Function]"
	}
	return ""
}

// ToBoolean applies JS truthiness. Every heap reference is truthy.
func ToBoolean(v Value) bool {
	switch v.Kind {
	case KindUndefined, KindNull:
		return false
	case KindBoolean:
		return v.AsBool()
	case KindNumber:
		f := v.AsNumber()
		return f != 0 && !math.IsNaN(f)
	case KindString:
		return v.Str != ""
	}
	return true
}

// TypeOf returns the result of the typeof operator.
func TypeOf(v Value) string {
	switch v.Kind {
	case KindUndefined:
		return "undefined"
	case KindNull, KindObject, KindArray:
		return "object"
	case KindBoolean:
		return "boolean"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindFunction:
		return "function"
	}
	return "undefined"
}

// StrictEquals implements ===. Heap references compare by handle.
func StrictEquals(a, b Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindUndefined, KindNull:
		return true
	case KindNumber:
		return a.AsNumber() == b.AsNumber()
	case KindString:
		return a.Str == b.Str
	default:
		return a.Data == b.Data
	}
}

// LooseEquals implements == for the value kinds of this engine.
func LooseEquals(a, b Value) bool {
	if a.Kind == b.Kind {
		return StrictEquals(a, b)
	}
	if a.IsNullish() && b.IsNullish() {
		return true
	}
	if a.IsNullish() || b.IsNullish() {
		return false
	}
	// Heap references only equal themselves; there is no ToPrimitive.
	if a.IsHeap() || b.IsHeap() {
		return false
	}
	return ToNumber(a) == ToNumber(b)
}

// ToPropertyKey converts a primitive to the string used as a property key.
func ToPropertyKey(v Value) string {
	return ToString(v)
}

// ArrayIndex reports whether key is a canonical array index ("0", "17"; not
// "01", "-1" or "1.5").
func ArrayIndex(key string) (int, bool) {
	if key == "" || len(key) > 10 || (len(key) > 1 && key[0] == '0') {
		return 0, false
	}
	n := 0
	for i := 0; i < len(key); i++ {
		c := key[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	if n >= math.MaxUint32 {
		return 0, false
	}
	return n, true
}

// CompareStrings orders strings by UTF-16 code units, as JS relational
// operators do. It differs from byte order only between supplementary
// characters and BMP characters at or above U+E000.
func CompareStrings(a, b string) int {
	for a != "" && b != "" {
		ra, na := utf8.DecodeRuneInString(a)
		rb, nb := utf8.DecodeRuneInString(b)
		if ra != rb {
			ua, ub := firstCodeUnit(ra), firstCodeUnit(rb)
			if ua == ub {
				// Same high surrogate; the low surrogates follow rune order.
				ua, ub = ra, rb
			}
			if ua < ub {
				return -1
			}
			return 1
		}
		a, b = a[na:], b[nb:]
	}
	switch {
	case a == "" && b == "":
		return 0
	case a == "":
		return -1
	}
	return 1
}

func firstCodeUnit(r rune) rune {
	if r >= 0x10000 {
		return 0xD800 + (r-0x10000)>>10
	}
	return r
}
