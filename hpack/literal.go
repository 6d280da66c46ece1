package hpack

// MessageType selects which Huffman code table a HeaderEncoder/EncodeBuffer
// literal uses. Proxygen keeps separate request/response tables because
// their header text has different byte-frequency profiles; this
// implementation builds both with the same canonical construction (see
// huffman.go), the response table from a frequency model with heavier
// digit weights.
type MessageType int

const (
	MessageTypeRequest MessageType = iota
	MessageTypeResponse
)

const (
	// plainLiteralFlag is the high bit cleared: a literal string encoded
	// verbatim (RFC 7541 §5.2, H=0).
	plainLiteralFlag byte = 0x00
	// huffmanLiteralFlag is the high bit set: a literal string Huffman
	// coded (RFC 7541 §5.2, H=1).
	huffmanLiteralFlag byte = 0x80
)
