package value

import (
	"bytes"
	"encoding/base64"
	"encoding/xml"
	"strconv"
)

// EncodeXML appends the <value> element for v to buf. It cannot fail:
// text is escaped and invalid XML characters are replaced. Non-finite
// doubles are written as NaN, +Inf and -Inf, which the decoder in this
// module accepts but strict peers may not.
func (v Value) EncodeXML(buf *bytes.Buffer) {
	buf.WriteString("<value>")
	switch v.kind {
	case KindBoolean:
		if v.b {
			buf.WriteString("<boolean>1</boolean>")
		} else {
			buf.WriteString("<boolean>0</boolean>")
		}
	case KindInt:
		buf.WriteString("<int>")
		buf.WriteString(strconv.FormatInt(int64(v.i), 10))
		buf.WriteString("</int>")
	case KindDouble:
		buf.WriteString("<double>")
		buf.WriteString(strconv.FormatFloat(v.f, 'f', -1, 64))
		buf.WriteString("</double>")
	case KindDateTime:
		buf.WriteString("<dateTime.iso8601>")
		EscapeText(buf, v.dt.ISO())
		buf.WriteString("</dateTime.iso8601>")
	case KindBase64:
		buf.WriteString("<base64>")
		buf.WriteString(base64.StdEncoding.EncodeToString(v.bin))
		buf.WriteString("</base64>")
	case KindArray:
		buf.WriteString("<array><data>\n")
		for _, item := range v.items {
			item.EncodeXML(buf)
			buf.WriteByte('\n')
		}
		buf.WriteString("</data></array>")
	case KindStruct:
		buf.WriteString("<struct>\n")
		for _, m := range v.members {
			buf.WriteString("<member><name>")
			EscapeText(buf, m.Name)
			buf.WriteString("</name>")
			m.Value.EncodeXML(buf)
			buf.WriteString("</member>\n")
		}
		buf.WriteString("</struct>")
	default:
		buf.WriteString("<string>")
		EscapeText(buf, v.s)
		buf.WriteString("</string>")
	}
	buf.WriteString("</value>")
}

// XML returns the encoded <value> element.
func (v Value) XML() string {
	var buf bytes.Buffer
	v.EncodeXML(&buf)
	return buf.String()
}

// EscapeText writes s with &, <, >, ", ' and control characters escaped.
func EscapeText(buf *bytes.Buffer, s string) {
	// bytes.Buffer writes never fail.
	_ = xml.EscapeText(buf, []byte(s))
}
