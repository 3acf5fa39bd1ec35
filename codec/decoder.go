package codec

import (
	"bufio"
	"encoding/base64"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/ianaindex"

	"mini-xmlrpc/message"
	"mini-xmlrpc/value"
)

// ErrNoContent is returned when the input holds no root element.
var ErrNoContent = errors.New("codec: no content")

// ParseError reports a malformed document and where the tokenizer stopped.
type ParseError struct {
	Offset int64
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("codec: parse error at offset %d: %v", e.Offset, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// children lists, per element, which elements may open inside it.
// "" is the document root.
var children = map[string]map[string]bool{
	"":               {"methodCall": true, "methodResponse": true},
	"methodCall":     {"methodName": true, "params": true},
	"methodResponse": {"params": true, "fault": true},
	"params":         {"param": true},
	"param":          {"value": true},
	"fault":          {"value": true},
	"value": {
		"int": true, "i4": true, "double": true, "string": true, "boolean": true,
		"base64": true, "dateTime.iso8601": true, "array": true, "struct": true,
	},
	"array":  {"data": true},
	"data":   {"value": true},
	"struct": {"member": true},
	"member": {"name": true, "value": true},
}

// textual elements keep their character data; everywhere else only
// whitespace may appear between tags.
var textual = map[string]bool{
	"methodName": true, "name": true, "value": true,
	"int": true, "i4": true, "double": true, "string": true, "boolean": true,
	"base64": true, "dateTime.iso8601": true,
}

// Decoder reads one XML-RPC document. The tokenizer pulls input through a
// buffer of chunkSize bytes, so a document of any size is consumed
// incrementally and chunk boundaries may fall anywhere.
type Decoder struct {
	r         io.Reader
	chunkSize int
}

func NewDecoder(r io.Reader, chunkSize int) *Decoder {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Decoder{r: r, chunkSize: chunkSize}
}

// Decode reads until the end of input and returns the message.
// Every failure is a *ParseError.
func (d *Decoder) Decode() (*message.Message, error) {
	xd := xml.NewDecoder(bufio.NewReaderSize(d.r, d.chunkSize))
	xd.Strict = true
	xd.CharsetReader = charsetReader

	var p parser
	for {
		tok, err := xd.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &ParseError{Offset: xd.InputOffset(), Err: err}
		}
		if err := p.token(tok); err != nil {
			return nil, &ParseError{Offset: xd.InputOffset(), Err: err}
		}
	}
	msg, err := p.finish()
	if err != nil {
		return nil, &ParseError{Offset: xd.InputOffset(), Err: err}
	}
	return msg, nil
}

func charsetReader(label string, input io.Reader) (io.Reader, error) {
	if strings.EqualFold(label, "us-ascii") || strings.EqualFold(label, "ascii") {
		return input, nil
	}
	enc, err := ianaindex.IANA.Encoding(label)
	if err != nil {
		return nil, err
	}
	if enc == nil {
		return nil, fmt.Errorf("unsupported charset %q", label)
	}
	return enc.NewDecoder().Reader(input), nil
}

type frameKind uint8

const (
	frameArray frameKind = iota
	frameStruct
)

// frame is an array or struct under construction. A struct frame carries
// the name of the member whose value is being read.
type frame struct {
	kind    frameKind
	items   []value.Value
	members []value.Member
	key     string
}

type element struct {
	name     string
	children int
}

type parser struct {
	kind     message.Kind
	method   string
	params   []value.Value
	rootSeen bool

	open   []element
	frames []frame
	text   []byte
}

func (p *parser) token(tok xml.Token) error {
	switch t := tok.(type) {
	case xml.StartElement:
		return p.start(t.Name)
	case xml.EndElement:
		return p.end(t.Name.Local)
	case xml.CharData:
		return p.charData(t)
	case xml.Directive:
		return errors.New("DTDs and directives are not supported")
	}
	// comments and processing instructions carry no data
	return nil
}

func (p *parser) start(name xml.Name) error {
	if name.Space != "" {
		return fmt.Errorf("namespaced element <%s:%s> is not supported", name.Space, name.Local)
	}
	tag := name.Local

	parent := ""
	var top *element
	if len(p.open) > 0 {
		top = &p.open[len(p.open)-1]
		parent = top.name
	}
	if !children[parent][tag] {
		if parent == "" {
			return fmt.Errorf("unexpected root element <%s>", tag)
		}
		return fmt.Errorf("unexpected <%s> inside <%s>", tag, parent)
	}
	if top == nil {
		if p.rootSeen {
			return errors.New("multiple root elements")
		}
		p.rootSeen = true
	} else {
		if err := checkOrder(top, tag, p.kind); err != nil {
			return err
		}
		if top.name == "value" && len(strings.TrimSpace(string(p.text))) > 0 {
			return errors.New("text mixed with a typed value")
		}
		top.children++
	}

	p.open = append(p.open, element{name: tag})
	p.text = p.text[:0]

	switch tag {
	case "methodCall":
		p.kind = message.KindCall
	case "methodResponse":
		p.kind = message.KindResponse
	case "fault":
		p.kind = message.KindFault
	case "data":
		p.frames = append(p.frames, frame{kind: frameArray})
	case "struct":
		p.frames = append(p.frames, frame{kind: frameStruct})
	}
	return nil
}

// checkOrder enforces the child sequence of elements whose content model
// is fixed.
func checkOrder(parent *element, tag string, kind message.Kind) error {
	n := parent.children
	switch parent.name {
	case "value", "array", "param", "fault", "methodResponse":
		if n > 0 {
			return fmt.Errorf("<%s> allows a single child, found another <%s>", parent.name, tag)
		}
	case "params":
		if kind == message.KindResponse && n > 0 {
			return errors.New("methodResponse carries more than one param")
		}
	case "member":
		if (n == 0 && tag != "name") || (n == 1 && tag != "value") || n > 1 {
			return fmt.Errorf("<member> expects <name> then <value>, found <%s>", tag)
		}
	case "methodCall":
		if (n == 0 && tag != "methodName") || (n == 1 && tag != "params") || n > 1 {
			return fmt.Errorf("<methodCall> expects <methodName> then <params>, found <%s>", tag)
		}
	}
	return nil
}

func (p *parser) charData(data xml.CharData) error {
	if len(p.open) > 0 && textual[p.open[len(p.open)-1].name] {
		p.text = append(p.text, data...)
		return nil
	}
	if len(strings.TrimSpace(string(data))) > 0 {
		if len(p.open) == 0 {
			return errors.New("text outside the root element")
		}
		return fmt.Errorf("unexpected text inside <%s>", p.open[len(p.open)-1].name)
	}
	return nil
}

func (p *parser) end(tag string) error {
	el := p.open[len(p.open)-1]
	p.open = p.open[:len(p.open)-1]
	text := string(p.text)
	p.text = p.text[:0]

	if err := checkComplete(el); err != nil {
		return err
	}

	switch tag {
	case "int", "i4":
		n, err := strconv.ParseInt(strings.TrimSpace(text), 10, 32)
		if err != nil {
			return fmt.Errorf("invalid <%s> %q", tag, text)
		}
		return p.produce(value.NewInt(int32(n)))
	case "double":
		f, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
		if err != nil {
			return fmt.Errorf("invalid <double> %q", text)
		}
		return p.produce(value.NewDouble(f))
	case "string":
		return p.produce(value.NewString(text))
	case "boolean":
		switch strings.TrimSpace(text) {
		case "1", "true":
			return p.produce(value.NewBoolean(true))
		case "0", "false":
			return p.produce(value.NewBoolean(false))
		}
		return fmt.Errorf("invalid <boolean> %q", text)
	case "base64":
		b, err := base64.StdEncoding.DecodeString(stripSpace(text))
		if err != nil {
			return fmt.Errorf("invalid <base64>: %w", err)
		}
		return p.produce(value.NewBase64(b))
	case "dateTime.iso8601":
		dt, err := value.ParseDateTime(strings.TrimSpace(text))
		if err != nil {
			return err
		}
		return p.produce(value.NewDateTime(dt))
	case "value":
		if el.children > 0 {
			if len(strings.TrimSpace(text)) > 0 {
				return errors.New("text mixed with a typed value")
			}
			return nil
		}
		// untyped content is a string; blank content yields no value
		if strings.TrimSpace(text) == "" {
			return nil
		}
		return p.produce(value.NewString(text))
	case "data", "struct":
		f := p.frames[len(p.frames)-1]
		p.frames = p.frames[:len(p.frames)-1]
		if f.kind == frameArray {
			return p.produce(value.NewArray(f.items...))
		}
		return p.produce(value.NewStructValue(f.members...))
	case "name":
		if len(p.frames) == 0 || p.frames[len(p.frames)-1].kind != frameStruct {
			return errors.New("<name> outside a struct")
		}
		p.frames[len(p.frames)-1].key = strings.TrimSpace(text)
	case "member":
		p.frames[len(p.frames)-1].key = ""
	case "methodName":
		p.method = strings.TrimSpace(text)
	}
	return nil
}

// checkComplete rejects elements closed before their required children.
func checkComplete(el element) error {
	want := 0
	switch el.name {
	case "array", "param", "fault", "methodResponse":
		want = 1
	case "member":
		want = 2
	case "methodCall":
		if el.children == 0 {
			return errors.New("<methodCall> without <methodName>")
		}
		return nil
	default:
		return nil
	}
	if el.children != want {
		return fmt.Errorf("incomplete <%s>", el.name)
	}
	return nil
}

// produce hands a finished value to the innermost open composite, or to the
// top-level params when none is open.
func (p *parser) produce(v value.Value) error {
	if len(p.frames) == 0 {
		p.params = append(p.params, v)
		return nil
	}
	top := &p.frames[len(p.frames)-1]
	if top.kind == frameArray {
		top.items = append(top.items, v)
		return nil
	}
	top.members = append(top.members, value.Member{Name: top.key, Value: v})
	return nil
}

func (p *parser) finish() (*message.Message, error) {
	if !p.rootSeen {
		return nil, ErrNoContent
	}
	switch p.kind {
	case message.KindCall:
		if p.method == "" {
			return nil, errors.New("empty <methodName>")
		}
		return &message.Message{Kind: message.KindCall, MethodName: p.method, Params: p.params}, nil
	case message.KindFault:
		f, err := faultFrom(p.params)
		if err != nil {
			return nil, err
		}
		return message.NewFaultResponse(f), nil
	}
	return &message.Message{Kind: message.KindResponse, Params: p.params}, nil
}

func faultFrom(params []value.Value) (*message.Fault, error) {
	if len(params) != 1 || params[0].Kind() != value.KindStruct {
		return nil, errors.New("<fault> must hold a struct")
	}
	code, okCode := params[0].Member("faultCode")
	text, okText := params[0].Member("faultString")
	if !okCode || !okText || code.Kind() != value.KindInt || text.Kind() != value.KindString {
		return nil, errors.New("<fault> struct must supply int faultCode and string faultString")
	}
	return &message.Fault{Code: int(code.Int()), Message: text.Text()}, nil
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r':
			return -1
		}
		return r
	}, s)
}
