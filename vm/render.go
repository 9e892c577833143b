package vm

import (
	"math"
	"strconv"
	"strings"
)

// Render converts a value to its script-visible text, the same text print()
// writes and the host receives as a captured result. A collection reached
// again while it is being rendered prints as [...], {...} or <...>.
func Render(v Value) string {
	var r renderer
	r.value(v)
	return r.sb.String()
}

// maxRenderBytes bounds the text produced for one value. Shared
// sub-collections can make a value's rendering exponential in its size.
const maxRenderBytes = 16 << 20

type renderer struct {
	sb        strings.Builder
	active    map[Object]bool
	truncated bool
}

func (r *renderer) full() bool {
	if r.truncated {
		return true
	}
	if r.sb.Len() >= maxRenderBytes {
		r.sb.WriteString("...")
		r.truncated = true
	}
	return r.truncated
}

func (r *renderer) value(v Value) {
	if r.full() {
		return
	}
	switch v.kind {
	case KindNull:
		r.sb.WriteString("null")
	case KindBool:
		if v.Bool() {
			r.sb.WriteString("true")
		} else {
			r.sb.WriteString("false")
		}
	case KindNumber:
		r.sb.WriteString(FormatNumber(v.num))
	case KindString:
		r.sb.WriteString(v.str)
	case KindObject:
		r.object(v.obj)
	default:
		r.sb.WriteString("<unknown>")
	}
}

// enter marks o as being rendered. It reports false, after writing the
// placeholder, when o is already on the path.
func (r *renderer) enter(o Object, placeholder string) bool {
	if r.active[o] {
		r.sb.WriteString(placeholder)
		return false
	}
	if r.active == nil {
		r.active = make(map[Object]bool)
	}
	r.active[o] = true
	return true
}

func (r *renderer) object(o Object) {
	sb := &r.sb
	switch obj := o.(type) {
	case *Array:
		if !r.enter(obj, "[...]") {
			return
		}
		defer delete(r.active, obj)
		sb.WriteByte('[')
		for i, e := range obj.Elements {
			if i > 0 {
				sb.WriteString(", ")
			}
			r.value(e)
			if r.truncated {
				return
			}
		}
		sb.WriteByte(']')
	case *Map:
		if !r.enter(obj, "{...}") {
			return
		}
		defer delete(r.active, obj)
		sb.WriteByte('{')
		for i, k := range obj.keys {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(k)
			sb.WriteString(": ")
			r.value(obj.entries[k])
			if r.truncated {
				return
			}
		}
		sb.WriteByte('}')
	case *StructType:
		sb.WriteString("<struct ")
		sb.WriteString(obj.Name)
		sb.WriteByte('>')
	case *Instance:
		if !r.enter(obj, "<...>") {
			return
		}
		defer delete(r.active, obj)
		sb.WriteString("<(struct ")
		sb.WriteString(obj.Type.Name)
		sb.WriteByte(')')
		for i, name := range obj.FieldNames() {
			if i > 0 {
				sb.WriteByte(',')
			}
			sb.WriteByte(' ')
			sb.WriteString(name)
			sb.WriteByte('=')
			val, _ := obj.Field(name)
			r.value(val)
			if r.truncated {
				return
			}
		}
		sb.WriteByte('>')
	case *Function:
		renderFunctionName(sb, obj.Name)
	case *Closure:
		renderFunctionName(sb, obj.Fn.Name)
	case *Native:
		sb.WriteString("<native fn>")
	case *Date:
		sb.WriteString("<Date " + obj.At.Format(dateLayout) + ">")
	case *TimeOfDay:
		sb.WriteString("<Time " + obj.At.Format(timeLayout) + ">")
	case *DateTime:
		sb.WriteString("<DateTime " + obj.At.Format(dateTimeLayout) + ">")
	default:
		sb.WriteString("<unknown object>")
	}
}

func renderFunctionName(sb *strings.Builder, name string) {
	if name == "" {
		sb.WriteString("<script>")
		return
	}
	sb.WriteString("<fn ")
	sb.WriteString(name)
	sb.WriteByte('>')
}

// FormatNumber renders a number the way scripts see it: integral values
// without a fractional part or exponent, everything else in shortest form.
func FormatNumber(n float64) string {
	switch {
	case math.IsNaN(n):
		return "nan"
	case math.IsInf(n, 1):
		return "inf"
	case math.IsInf(n, -1):
		return "-inf"
	}
	if n == math.Trunc(n) && math.Abs(n) < 1e15 {
		return strconv.FormatInt(int64(n), 10)
	}
	return strconv.FormatFloat(n, 'g', -1, 64)
}
