package hpack

// HeaderEncoder encodes an ordered list of header fields into an
// EncodeBuffer. It first tries the RFC 7541 §6.1 fully-indexed path and the
// §6.2.2 literal-with-indexed-name path against the static table, falling
// back to a literal-without-indexing, new-name encoding for anything the
// static table doesn't carry. Huffman coding of literal strings is an
// encoder-wide flag set at construction; message type (request/response)
// picks between the two Huffman tables.
//
// For a fixed input sequence and flags, the emitted byte sequence is
// byte-exactly reproducible: every path below is a pure function of
// (name, value, huffman, msgType).
type HeaderEncoder struct {
	huffman     bool
	msgType     MessageType
	maxTableSize uint32 // tracked for a future dynamic table; unused today
}

// NewHeaderEncoder creates a HeaderEncoder. msgType selects the Huffman
// table used when huffman is true.
func NewHeaderEncoder(huffman bool, msgType MessageType) *HeaderEncoder {
	return &HeaderEncoder{huffman: huffman, msgType: msgType}
}

// SetHuffman toggles Huffman coding of literal strings.
func (h *HeaderEncoder) SetHuffman(enabled bool) {
	h.huffman = enabled
}

// SetMaxDynamicTableSize records the negotiated dynamic-table size limit.
// This implementation has no dynamic table (see SPEC_FULL.md §9 Non-goals);
// the value is retained only so a future dynamic table has somewhere to
// read its budget from.
func (h *HeaderEncoder) SetMaxDynamicTableSize(n uint32) {
	h.maxTableSize = n
}

// EncodeInto encodes fields into buf in order and returns the total number
// of bytes written.
func (h *HeaderEncoder) EncodeInto(buf *EncodeBuffer, fields []HeaderField) int {
	written := 0
	for _, f := range fields {
		written += h.encodeField(buf, f)
	}
	return written
}

func (h *HeaderEncoder) encodeField(buf *EncodeBuffer, f HeaderField) int {
	if idx, ok := staticFullIndex[f]; ok {
		// RFC 7541 §6.1 Indexed Header Field: 1xxxxxxx.
		return buf.AppendInteger(uint64(idx), 7, 0x80)
	}
	if idx, ok := staticNameIndex[f.Name]; ok {
		// RFC 7541 §6.2.2 Literal Header Field without Indexing --
		// Indexed Name: 0000xxxx, then the value literal.
		n := buf.AppendInteger(uint64(idx), 4, 0x00)
		n += buf.AppendLiteral(f.Value, h.huffman, h.msgType)
		return n
	}
	// RFC 7541 §6.2.2 Literal Header Field without Indexing -- New Name:
	// index 0 (0000 0000), then the name literal, then the value literal.
	n := buf.AppendInteger(0, 4, 0x00)
	n += buf.AppendLiteral(f.Name, h.huffman, h.msgType)
	n += buf.AppendLiteral(f.Value, h.huffman, h.msgType)
	return n
}
