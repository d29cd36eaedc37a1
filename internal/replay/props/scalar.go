package props

import (
	"strconv"

	"github.com/tidwall/gjson"
)

type ScalarKind int

const (
	KindInt ScalarKind = iota + 1
	KindStr
	KindBool
	KindFloat
)

// Scalar is an unwrapped tagged property value.
type Scalar struct {
	Kind  ScalarKind
	Int   int64
	Str   string
	Bool  bool
	Float float64
}

func IntScalar(n int64) Scalar     { return Scalar{Kind: KindInt, Int: n} }
func StrScalar(s string) Scalar    { return Scalar{Kind: KindStr, Str: s} }
func BoolScalar(b bool) Scalar     { return Scalar{Kind: KindBool, Bool: b} }
func FloatScalar(f float64) Scalar { return Scalar{Kind: KindFloat, Float: f} }

func (s Scalar) String() string {
	switch s.Kind {
	case KindInt:
		return strconv.FormatInt(s.Int, 10)
	case KindStr:
		return s.Str
	case KindBool:
		return strconv.FormatBool(s.Bool)
	case KindFloat:
		return strconv.FormatFloat(s.Float, 'f', -1, 64)
	default:
		return ""
	}
}

// unwrap strips a {"kind":..., "value":{...}} property wrapper.
func unwrap(v gjson.Result) gjson.Result {
	if v.IsObject() && v.Get("kind").Exists() {
		if inner := v.Get("value"); inner.IsObject() {
			return inner
		}
	}
	return v
}

// eachProperty walks a property list that is either an object keyed by
// property name or an array of [key, value] pairs. Returning false stops.
func eachProperty(list gjson.Result, fn func(key string, v gjson.Result) bool) {
	switch {
	case list.IsObject():
		list.ForEach(func(k, v gjson.Result) bool {
			return fn(k.String(), v)
		})
	case list.IsArray():
		list.ForEach(func(_, pair gjson.Result) bool {
			if !pair.IsArray() {
				return true
			}
			k := pair.Get("0")
			if k.Type != gjson.String {
				return true
			}
			return fn(k.Str, pair.Get("1"))
		})
	}
}

// fieldScalar reads any tagged scalar variant a record field may carry.
func fieldScalar(v gjson.Result) (Scalar, bool) {
	v = unwrap(v)
	if !v.IsObject() {
		return Scalar{}, false
	}
	if r := v.Get("int"); r.Type == gjson.Number {
		return IntScalar(r.Int()), true
	}
	for _, tag := range []string{"str", "name"} {
		if r := v.Get(tag); r.Type == gjson.String {
			return StrScalar(r.Str), true
		}
	}
	if r := v.Get("bool"); r.IsBool() {
		return BoolScalar(r.Bool()), true
	}
	if r := v.Get("float"); r.Type == gjson.Number {
		return FloatScalar(r.Float()), true
	}
	if r := v.Get("q_word"); r.Type == gjson.Number || r.Type == gjson.String {
		if n, err := strconv.ParseInt(r.String(), 10, 64); err == nil {
			return IntScalar(n), true
		}
	}
	if r := v.Get("byte"); r.Exists() {
		return byteScalar(r)
	}
	return Scalar{}, false
}

// byteScalar handles enum byte properties: a number, a [type, value] pair
// of strings, or a pair whose second element is {"Right": value}.
func byteScalar(r gjson.Result) (Scalar, bool) {
	switch {
	case r.Type == gjson.Number:
		return IntScalar(r.Int()), true
	case r.Type == gjson.String:
		return StrScalar(r.Str), true
	case r.IsArray():
		second := r.Get("1")
		if right := second.Get("Right"); right.Type == gjson.String {
			return StrScalar(right.Str), true
		}
		if second.Type == gjson.String {
			return StrScalar(second.Str), true
		}
		if first := r.Get("0"); first.Type == gjson.String {
			return StrScalar(first.Str), true
		}
	}
	return Scalar{}, false
}
