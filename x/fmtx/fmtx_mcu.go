//go:build mk20dx256

package fmtx

import (
	"io"

	"bootcode-go/x/strconvx"
)

// Sprintf supports %s %d %x %X %v %t %% and a minimum width for %d/%x
// with optional zero padding (%08x). Enough for register dumps and fault
// reports without pulling fmt into the image.
func Sprintf(format string, a ...any) string {
	var b builder
	b.format(format, a)
	return string(b.buf)
}

func Fprintf(w io.Writer, format string, a ...any) (int, error) {
	return io.WriteString(w, Sprintf(format, a...))
}

func Errorf(format string, a ...any) error {
	return &stringError{Sprintf(format, a...)}
}

func Fprint(w io.Writer, a ...any) (int, error) {
	var b builder
	for i, v := range a {
		if i > 0 {
			b.byte(' ')
		}
		b.any(v)
	}
	return w.Write(b.buf)
}

type stringError struct{ s string }

func (e *stringError) Error() string { return e.s }

type builder struct{ buf []byte }

func (b *builder) byte(c byte)  { b.buf = append(b.buf, c) }
func (b *builder) str(s string) { b.buf = append(b.buf, s...) }

func (b *builder) pad(s string, width int, zero bool) {
	c := byte(' ')
	if zero {
		c = '0'
	}
	for n := len(s); n < width; n++ {
		b.byte(c)
	}
	b.str(s)
}

func (b *builder) any(v any) {
	switch x := v.(type) {
	case string:
		b.str(x)
	case []byte:
		b.buf = append(b.buf, x...)
	case error:
		b.str(x.Error())
	case interface{ String() string }:
		b.str(x.String())
	case bool:
		if x {
			b.str("true")
		} else {
			b.str("false")
		}
	case int, int8, int16, int32, int64:
		b.str(strconvx.FormatInt(toI64(x), 10))
	case uint, uint8, uint16, uint32, uint64, uintptr:
		b.str(strconvx.FormatUint(toU64(x), 10))
	default:
		b.str("<?>")
	}
}

func (b *builder) format(format string, args []any) {
	ai := 0
	for i := 0; i < len(format); i++ {
		c := format[i]
		if c != '%' {
			b.byte(c)
			continue
		}
		i++
		if i >= len(format) {
			return
		}
		if format[i] == '%' {
			b.byte('%')
			continue
		}
		zero := format[i] == '0'
		width := 0
		for i < len(format) && '0' <= format[i] && format[i] <= '9' {
			width = width*10 + int(format[i]-'0')
			i++
		}
		if i >= len(format) || ai >= len(args) {
			return
		}
		verb, arg := format[i], args[ai]
		ai++
		switch verb {
		case 'd':
			switch arg.(type) {
			case int, int8, int16, int32, int64:
				b.pad(strconvx.FormatInt(toI64(arg), 10), width, zero)
			default:
				b.pad(strconvx.FormatUint(toU64(arg), 10), width, zero)
			}
		case 'x', 'X':
			h := []byte(strconvx.FormatUint(toU64(arg), 16))
			if verb == 'X' {
				for j, d := range h {
					if 'a' <= d && d <= 'f' {
						h[j] = d - ('a' - 'A')
					}
				}
			}
			b.pad(string(h), width, zero)
		case 't':
			b.any(arg == true)
		default:
			b.any(arg)
		}
	}
}

func toI64(v any) int64 {
	switch t := v.(type) {
	case int:
		return int64(t)
	case int8:
		return int64(t)
	case int16:
		return int64(t)
	case int32:
		return int64(t)
	case int64:
		return t
	}
	return int64(toU64(v))
}

func toU64(v any) uint64 {
	switch t := v.(type) {
	case uint:
		return uint64(t)
	case uint8:
		return uint64(t)
	case uint16:
		return uint64(t)
	case uint32:
		return uint64(t)
	case uint64:
		return t
	case uintptr:
		return uint64(t)
	case int, int8, int16, int32, int64:
		return uint64(toI64(t))
	}
	return 0
}
