package value

// Base64 marks native bytes that travel as <base64>.
type Base64 []byte

// Struct is an insertion-ordered string-keyed map, the native form of an
// XML-RPC struct. Go maps have no order, so Struct is what FromNative and
// Native use whenever member order matters.
type Struct struct {
	keys   []string
	values map[string]any
}

func NewStruct() *Struct {
	return &Struct{values: make(map[string]any)}
}

// Set stores v under key. An existing key keeps its position.
func (s *Struct) Set(key string, v any) *Struct {
	if s.values == nil {
		s.values = make(map[string]any)
	}
	if _, ok := s.values[key]; !ok {
		s.keys = append(s.keys, key)
	}
	s.values[key] = v
	return s
}

func (s *Struct) Get(key string) (any, bool) {
	if s == nil {
		return nil, false
	}
	v, ok := s.values[key]
	return v, ok
}

// Keys returns the keys in insertion order.
func (s *Struct) Keys() []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s.keys...)
}

func (s *Struct) Len() int {
	if s == nil {
		return 0
	}
	return len(s.keys)
}
