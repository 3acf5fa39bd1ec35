package codec

import (
	"bytes"
	"io"

	"mini-xmlrpc/message"
)

// DefaultChunkSize bounds how much of the input the tokenizer holds at once.
const DefaultChunkSize = 256 << 10

type Codec interface {
	Encode(msg *message.Message) ([]byte, error)
	Decode(r io.Reader) (*message.Message, error)
}

// XMLCodec is the XML-RPC wire codec. The zero value uses DefaultChunkSize.
type XMLCodec struct {
	ChunkSize int
}

func (c *XMLCodec) Encode(msg *message.Message) ([]byte, error) {
	return Encode(msg)
}

func (c *XMLCodec) Decode(r io.Reader) (*message.Message, error) {
	return NewDecoder(r, c.ChunkSize).Decode()
}

// DecodeBytes decodes a complete document held in memory.
func DecodeBytes(data []byte) (*message.Message, error) {
	return NewDecoder(bytes.NewReader(data), 0).Decode()
}
