package codec

import (
	"bytes"
	"errors"
	"io"
	"math"
	"strings"
	"testing"
	"testing/iotest"

	"mini-xmlrpc/message"
	"mini-xmlrpc/value"
)

// nested builds a value tree mixing arrays and structs down to depth 4.
func nested() value.Value {
	leaves := []any{
		true,
		-42,
		3.25,
		"<tag> & 'quotes' \"double\"  ",
		value.DateTime{Year: 1998, Month: 7, Day: 17, Hour: 14, Minute: 8, Second: 55},
		value.Base64("\x00\x01binary\xff"),
	}
	level4 := value.NewStruct().Set("leaves", leaves).Set("empty", []any{})
	level3 := []any{level4, "x", value.NewStruct()}
	level2 := value.NewStruct().Set("deep", level3).Set("n", 7)
	level1 := []any{level2, level2, 1}
	return value.FromNative(level1)
}

func TestRoundTripCall(t *testing.T) {
	in := nested()
	data := EncodeCall("deep.echo", in)

	msg, err := DecodeBytes(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if msg.Kind != message.KindCall || msg.MethodName != "deep.echo" {
		t.Fatalf("unexpected envelope: %v %q", msg.Kind, msg.MethodName)
	}
	if len(msg.Params) != 1 {
		t.Fatalf("expect 1 param, got %d", len(msg.Params))
	}
	if !value.Equal(in, msg.Params[0]) {
		t.Fatalf("round trip mismatch:\nin:  %s\nout: %s", in.XML(), msg.Params[0].XML())
	}
}

func TestRoundTripLeaves(t *testing.T) {
	leaves := []value.Value{
		value.NewBoolean(false),
		value.NewInt(2147483647),
		value.NewInt(-2147483648),
		value.NewDouble(-0.000123),
		value.NewDouble(1e21),
		value.NewString(""),
		value.NewString("  padded\r\n\t"),
		value.NewString("unicode: 日本語 ✓"),
		value.NewBase64(nil),
		value.NewDateTime(value.DateTime{Year: 2024, Month: 2, Day: 29, Timezone: "+0100"}),
		value.NewArray(),
		value.NewStructValue(),
	}
	msg, err := DecodeBytes(EncodeCall("leaves", leaves...))
	if err != nil {
		t.Fatal(err)
	}
	if len(msg.Params) != len(leaves) {
		t.Fatalf("expect %d params, got %d", len(leaves), len(msg.Params))
	}
	for i := range leaves {
		if !value.Equal(leaves[i], msg.Params[i]) {
			t.Errorf("param %d: expect %s, got %s", i, leaves[i].XML(), msg.Params[i].XML())
		}
	}
}

func TestRoundTripResponseAndFault(t *testing.T) {
	msg, err := DecodeBytes(EncodeResponse(value.NewInt(5)))
	if err != nil {
		t.Fatal(err)
	}
	if msg.Kind != message.KindResponse || msg.Result().Int() != 5 {
		t.Fatalf("unexpected response: %+v", msg)
	}

	msg, err = DecodeBytes(EncodeFault(message.NewFault(4, "Too many <params>.")))
	if err != nil {
		t.Fatal(err)
	}
	if msg.Kind != message.KindFault || msg.Fault.Code != 4 || msg.Fault.Message != "Too many <params>." {
		t.Fatalf("unexpected fault: %+v", msg.Fault)
	}
}

func TestCodecInterface(t *testing.T) {
	var c Codec = &XMLCodec{ChunkSize: 32}
	data, err := c.Encode(message.NewCall("a.b", 1, "two"))
	if err != nil {
		t.Fatal(err)
	}
	msg, err := c.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if msg.MethodName != "a.b" || len(msg.Params) != 2 {
		t.Fatalf("unexpected message: %+v", msg)
	}

	if _, err := c.Encode(&message.Message{Kind: message.KindResponse}); err == nil {
		t.Fatal("expect error for response without value")
	}
	if _, err := c.Encode(&message.Message{Kind: message.KindCall}); !errors.Is(err, ErrEmptyMethodName) {
		t.Fatalf("expect ErrEmptyMethodName, got %v", err)
	}
}

// splitReader returns the input in pieces of the given sizes, cycling.
type splitReader struct {
	data  []byte
	sizes []int
	i     int
}

func (r *splitReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, io.EOF
	}
	n := r.sizes[r.i%len(r.sizes)]
	r.i++
	if n > len(r.data) {
		n = len(r.data)
	}
	if n > len(p) {
		n = len(p)
	}
	copy(p, r.data[:n])
	r.data = r.data[n:]
	return n, nil
}

func TestChunkedDecodeEquivalence(t *testing.T) {
	doc := EncodeCall("chunks", nested(), value.NewString(strings.Repeat("abc<>&", 500)))

	whole, err := DecodeBytes(doc)
	if err != nil {
		t.Fatal(err)
	}

	readers := map[string]io.Reader{
		"one byte":  iotest.OneByteReader(bytes.NewReader(doc)),
		"half":      iotest.HalfReader(bytes.NewReader(doc)),
		"primes":    &splitReader{data: doc, sizes: []int{3, 5, 7, 11, 13}},
		"data err":  iotest.DataErrReader(bytes.NewReader(doc)),
		"odd sizes": &splitReader{data: doc, sizes: []int{1, 17, 2, 64}},
	}
	for name, r := range readers {
		t.Run(name, func(t *testing.T) {
			got, err := NewDecoder(r, 16).Decode()
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if got.MethodName != whole.MethodName || len(got.Params) != len(whole.Params) {
				t.Fatalf("envelope mismatch")
			}
			for i := range whole.Params {
				if !value.Equal(whole.Params[i], got.Params[i]) {
					t.Fatalf("param %d differs", i)
				}
			}
		})
	}
}

func TestDecodeUntypedAndWhitespace(t *testing.T) {
	doc := `<?xml version="1.0"?>
<!-- leading comment -->
<methodCall>
  <methodName>  echo  </methodName>
  <params>
    <param><value>  untyped text </value></param>
    <param><value></value></param>
    <param><value>
    </value></param>
    <param><value><i4> 12 </i4></value></param>
    <param><value><boolean>true</boolean></value></param>
    <param><value><base64>
      aGVs
      bG8=
    </base64></value></param>
    <param><value><struct>
      <member><name> key </name><value>v</value></member>
      <member><name>key</name><value><int>2</int></value></member>
    </struct></value></param>
  </params>
</methodCall>`
	msg, err := DecodeBytes([]byte(doc))
	if err != nil {
		t.Fatal(err)
	}
	if msg.MethodName != "echo" {
		t.Fatalf("expect trimmed method name, got %q", msg.MethodName)
	}
	// 空白的无类型 value 不产生参数
	if len(msg.Params) != 5 {
		t.Fatalf("expect 5 params, got %d", len(msg.Params))
	}
	if got := msg.Params[0].Text(); got != "  untyped text " {
		t.Fatalf("untyped value must keep its text, got %q", got)
	}
	if got := msg.Params[1].Int(); got != 12 {
		t.Fatalf("expect 12 after the skipped blanks, got %d", got)
	}
	if !msg.Params[2].Bool() {
		t.Fatal("expect true")
	}
	if got := string(msg.Params[3].Bytes()); got != "hello" {
		t.Fatalf("expect hello, got %q", got)
	}
	st := msg.Params[4]
	if st.Len() != 1 {
		t.Fatalf("duplicate member must collapse, got %d members", st.Len())
	}
	if v, _ := st.Member("key"); v.Int() != 2 {
		t.Fatalf("last member must win, got %s", v.XML())
	}
}

func TestDecodeBlankUntypedSkipped(t *testing.T) {
	doc := `<methodCall><methodName>echo</methodName><params>` +
		`<param><value>a</value></param>` +
		`<param><value>   </value></param>` +
		`<param><value></value></param>` +
		`</params></methodCall>`
	msg, err := DecodeBytes([]byte(doc))
	if err != nil {
		t.Fatal(err)
	}
	if len(msg.Params) != 1 || msg.Params[0].Text() != "a" {
		t.Fatalf("expect the single param \"a\", got %d params", len(msg.Params))
	}
	// 单参数时 handler 拿到的是值本身
	if args := msg.Args(); len(args) != 1 || args[0] != "a" {
		t.Fatalf("expect args [a], got %v", args)
	}

	doc = `<methodCall><methodName>echo</methodName><params><param><value><array><data>` +
		`<value>x</value><value> </value><value><string></string></value>` +
		`</data></array></value></param></params></methodCall>`
	msg, err = DecodeBytes([]byte(doc))
	if err != nil {
		t.Fatal(err)
	}
	items := msg.Params[0].Items()
	if len(items) != 2 || items[0].Text() != "x" || items[1].Text() != "" {
		t.Fatalf("expect [x, \"\"], got %s", msg.Params[0].XML())
	}
}

func TestNonFiniteDoubles(t *testing.T) {
	for _, tc := range []struct {
		in   float64
		wire string
	}{
		{math.NaN(), "<double>NaN</double>"},
		{math.Inf(1), "<double>+Inf</double>"},
		{math.Inf(-1), "<double>-Inf</double>"},
	} {
		data := EncodeCall("f", value.NewDouble(tc.in))
		if !bytes.Contains(data, []byte(tc.wire)) {
			t.Fatalf("expect %s in %s", tc.wire, data)
		}
		msg, err := DecodeBytes(data)
		if err != nil {
			t.Fatalf("%v: %v", tc.in, err)
		}
		if !value.Equal(msg.Params[0], value.NewDouble(tc.in)) {
			t.Fatalf("expect %v, got %s", tc.in, msg.Params[0].XML())
		}
	}
}

func TestDecodeCharset(t *testing.T) {
	doc := "<?xml version=\"1.0\" encoding=\"ISO-8859-1\"?>" +
		"<methodCall><methodName>x</methodName><params><param><value>caf\xe9</value></param></params></methodCall>"
	msg, err := DecodeBytes([]byte(doc))
	if err != nil {
		t.Fatal(err)
	}
	if got := msg.Params[0].Text(); got != "café" {
		t.Fatalf("expect café, got %q", got)
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"malformed", `<methodCall><methodName>x</methodName`},
		{"mismatched", `<methodCall><methodName>x</params></methodCall>`},
		{"truncated", `<methodCall><methodName>x</methodName><params>`},
		{"unknown element", `<methodCall><methodName>x</methodName><params><param><value><nil/></value></param></params></methodCall>`},
		{"wrong root", `<html></html>`},
		{"two roots", `<methodResponse><params><param><value>a</value></param></params></methodResponse><methodResponse/>`},
		{"bad int", `<methodCall><methodName>x</methodName><params><param><value><int>1.5</int></value></param></params></methodCall>`},
		{"int overflow", `<methodCall><methodName>x</methodName><params><param><value><int>2147483648</int></value></param></params></methodCall>`},
		{"bad boolean", `<methodCall><methodName>x</methodName><params><param><value><boolean>yes</boolean></value></param></params></methodCall>`},
		{"bad base64", `<methodCall><methodName>x</methodName><params><param><value><base64>!!!</base64></value></param></params></methodCall>`},
		{"bad date", `<methodCall><methodName>x</methodName><params><param><value><dateTime.iso8601>soon</dateTime.iso8601></value></param></params></methodCall>`},
		{"two types", `<methodCall><methodName>x</methodName><params><param><value><int>1</int><int>2</int></value></param></params></methodCall>`},
		{"mixed text", `<methodCall><methodName>x</methodName><params><param><value>a<int>1</int></value></param></params></methodCall>`},
		{"member without name", `<methodCall><methodName>x</methodName><params><param><value><struct><member><value>1</value></member></struct></value></param></params></methodCall>`},
		{"member without value", `<methodCall><methodName>x</methodName><params><param><value><struct><member><name>a</name></member></struct></value></param></params></methodCall>`},
		{"array without data", `<methodCall><methodName>x</methodName><params><param><value><array></array></value></param></params></methodCall>`},
		{"no method name", `<methodCall><params/></methodCall>`},
		{"empty method name", `<methodCall><methodName> </methodName></methodCall>`},
		{"stray text", `<methodCall>junk<methodName>x</methodName></methodCall>`},
		{"doctype", `<!DOCTYPE methodCall [<!ENTITY a "b">]><methodCall><methodName>x</methodName></methodCall>`},
		{"unknown entity", `<methodCall><methodName>&a;</methodName></methodCall>`},
		{"namespace", `<methodCall xmlns="urn:x"><methodName>x</methodName></methodCall>`},
		{"fault without struct", `<methodResponse><fault><value><int>1</int></value></fault></methodResponse>`},
		{"fault without string", `<methodResponse><fault><value><struct><member><name>faultCode</name><value><int>1</int></value></member></struct></value></fault></methodResponse>`},
		{"two response params", `<methodResponse><params><param><value>a</value></param><param><value>b</value></param></params></methodResponse>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeBytes([]byte(tt.doc))
			var perr *ParseError
			if !errors.As(err, &perr) {
				t.Fatalf("expect *ParseError, got %v", err)
			}
		})
	}
}

func TestDecodeNoContent(t *testing.T) {
	for _, doc := range []string{"", "   \n\t", `<?xml version="1.0"?>`, "<?xml version=\"1.0\"?>\n  <!-- nothing -->\n"} {
		_, err := DecodeBytes([]byte(doc))
		if !errors.Is(err, ErrNoContent) {
			t.Fatalf("expect ErrNoContent for %q, got %v", doc, err)
		}
	}
}
