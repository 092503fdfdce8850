package json

import (
	"bytes"
	"strings"
)

var literalEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

// Stringify renders v in the compact literal form used for nested values
// stored in string columns: strings in single quotes, no whitespace, object
// keys and array elements in document order.
//
//	["10","11"]            -> ['10','11']
//	{"a":1,"b":[true,null]} -> {'a':1,'b':[true,null]}
func Stringify(v Value) string {
	switch v.kind {
	case KindString:
		return v.text
	case KindNumber:
		return v.text
	}
	buf := GetBuffer()
	defer PutBuffer(buf)
	writeLiteral(buf, v)
	return buf.String()
}

func writeLiteral(buf *bytes.Buffer, v Value) {
	switch v.kind {
	case KindNull:
		buf.WriteString("null")
	case KindBool:
		if v.boolean {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case KindNumber:
		buf.WriteString(v.text)
	case KindString:
		writeQuoted(buf, v.text)
	case KindArray:
		buf.WriteByte('[')
		for i, item := range v.items {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeLiteral(buf, item)
		}
		buf.WriteByte(']')
	case KindObject:
		buf.WriteByte('{')
		for i, m := range v.members {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeQuoted(buf, m.Key)
			buf.WriteByte(':')
			writeLiteral(buf, m.Value)
		}
		buf.WriteByte('}')
	}
}

func writeQuoted(buf *bytes.Buffer, s string) {
	buf.WriteByte('\'')
	_, _ = literalEscaper.WriteString(buf, s)
	buf.WriteByte('\'')
}
