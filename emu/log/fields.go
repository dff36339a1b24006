package log

import (
	"fmt"
	"strconv"
	"time"
)

// FieldType is the kind of value an EntryZ field holds.
type FieldType uint8

const (
	FieldTypeUnknown FieldType = iota
	FieldTypeBool
	FieldTypeString
	FieldTypeHex8
	FieldTypeHex16
	FieldTypeInt
	FieldTypeUint
	FieldTypeError
	FieldTypeDuration
	FieldTypeStringer
)

// A ZField is a typed key/value pair. Its value is only formatted once the
// entry is written.
type ZField struct {
	Type FieldType
	Key  string

	String    string
	Integer   uint64 // hex and integer kinds
	Boolean   bool
	Duration  time.Duration
	Error     error
	Interface any // Stringer
}

const hexDigits = "0123456789abcdef"

func (f *ZField) Value() string {
	switch f.Type {
	case FieldTypeString:
		return f.String
	case FieldTypeBool:
		return strconv.FormatBool(f.Boolean)
	case FieldTypeHex8:
		b := uint8(f.Integer)
		return string([]byte{hexDigits[b>>4], hexDigits[b&0x0f]})
	case FieldTypeHex16:
		w := uint16(f.Integer)
		return string([]byte{hexDigits[w>>12], hexDigits[w>>8&0x0f], hexDigits[w>>4&0x0f], hexDigits[w&0x0f]})
	case FieldTypeInt:
		return strconv.FormatInt(int64(f.Integer), 10)
	case FieldTypeUint:
		return strconv.FormatUint(f.Integer, 10)
	case FieldTypeDuration:
		return f.Duration.String()
	case FieldTypeError:
		if f.Error == nil {
			return "<nil>"
		}
		return f.Error.Error()
	case FieldTypeStringer:
		if s, ok := f.Interface.(fmt.Stringer); ok {
			return s.String()
		}
	}
	return ""
}
