package codec

import (
	"bytes"
	"errors"
	"fmt"

	"mini-xmlrpc/message"
	"mini-xmlrpc/value"
)

const xmlHeader = "<?xml version=\"1.0\"?>\n"

var ErrEmptyMethodName = errors.New("codec: empty method name")

// Encode renders msg as a complete XML-RPC document.
func Encode(msg *message.Message) ([]byte, error) {
	switch msg.Kind {
	case message.KindCall:
		if msg.MethodName == "" {
			return nil, ErrEmptyMethodName
		}
		return EncodeCall(msg.MethodName, msg.Params...), nil
	case message.KindResponse:
		if len(msg.Params) != 1 {
			return nil, fmt.Errorf("codec: response must carry exactly one value, got %d", len(msg.Params))
		}
		return EncodeResponse(msg.Params[0]), nil
	case message.KindFault:
		if msg.Fault == nil {
			return nil, errors.New("codec: fault message without fault")
		}
		return EncodeFault(msg.Fault), nil
	}
	return nil, fmt.Errorf("codec: unknown message kind %d", msg.Kind)
}

func EncodeCall(method string, params ...value.Value) []byte {
	var buf bytes.Buffer
	buf.WriteString(xmlHeader)
	buf.WriteString("<methodCall>\n<methodName>")
	value.EscapeText(&buf, method)
	buf.WriteString("</methodName>\n<params>\n")
	for _, p := range params {
		buf.WriteString("<param>")
		p.EncodeXML(&buf)
		buf.WriteString("</param>\n")
	}
	buf.WriteString("</params>\n</methodCall>")
	return buf.Bytes()
}

func EncodeResponse(v value.Value) []byte {
	var buf bytes.Buffer
	buf.WriteString(xmlHeader)
	buf.WriteString("<methodResponse>\n<params>\n<param>")
	v.EncodeXML(&buf)
	buf.WriteString("</param>\n</params>\n</methodResponse>")
	return buf.Bytes()
}

func EncodeFault(f *message.Fault) []byte {
	var buf bytes.Buffer
	buf.WriteString(xmlHeader)
	buf.WriteString("<methodResponse>\n<fault>")
	f.Value().EncodeXML(&buf)
	buf.WriteString("</fault>\n</methodResponse>")
	return buf.Bytes()
}
