package hpack

import (
	"errors"
	"fmt"
)

// ErrCompression is returned by HeaderDecoder.Decode when a header block is
// malformed (truncated integer, invalid static index, ...). Codecs
// translate it into a COMPRESSION_ERROR protocol error.
var ErrCompression = errors.New("hpack: header block compression error")

// HeaderDecoder decodes the subset of the HPACK wire format this repo's
// HeaderEncoder emits: fully-indexed fields and both literal-without-
// indexing variants (indexed name, new name). It has no dynamic table (see
// SPEC_FULL.md §9), matching the encoder.
type HeaderDecoder struct {
	msgType MessageType
}

// NewHeaderDecoder creates a HeaderDecoder for the given message type
// (selects the Huffman table used for encoded literals).
func NewHeaderDecoder(msgType MessageType) *HeaderDecoder {
	return &HeaderDecoder{msgType: msgType}
}

// Decode parses a complete header block and returns the fields in wire
// order.
func (d *HeaderDecoder) Decode(p []byte) ([]HeaderField, error) {
	var fields []HeaderField
	for len(p) > 0 {
		b := p[0]
		switch {
		case b&0x80 != 0: // Indexed Header Field.
			idx, rest, err := decodeInteger(p, 7)
			if err != nil {
				return nil, err
			}
			if idx == 0 || int(idx) >= len(staticTable) {
				return nil, fmt.Errorf("%w: static index %d out of range", ErrCompression, idx)
			}
			e := staticTable[idx]
			fields = append(fields, HeaderField{Name: e.name, Value: e.value})
			p = rest
		case b&0xf0 == 0x00: // Literal without Indexing.
			idx, rest, err := decodeInteger(p, 4)
			if err != nil {
				return nil, err
			}
			var name string
			if idx == 0 {
				name, rest, err = d.decodeLiteral(rest)
				if err != nil {
					return nil, err
				}
			} else {
				if int(idx) >= len(staticTable) {
					return nil, fmt.Errorf("%w: static name index %d out of range", ErrCompression, idx)
				}
				name = staticTable[idx].name
			}
			var value string
			value, rest, err = d.decodeLiteral(rest)
			if err != nil {
				return nil, err
			}
			fields = append(fields, HeaderField{Name: name, Value: value})
			p = rest
		default:
			return nil, fmt.Errorf("%w: unsupported header field representation 0x%02x", ErrCompression, b)
		}
	}
	return fields, nil
}

// decodeInteger decodes an RFC 7541 §5.1 prefix integer with an N-bit
// prefix and returns the value along with the remainder of p.
func decodeInteger(p []byte, prefixBits int) (uint64, []byte, error) {
	if len(p) == 0 {
		return 0, nil, ErrCompression
	}
	mask := byte(1<<uint(prefixBits) - 1)
	value := uint64(p[0] & mask)
	p = p[1:]
	if value < uint64(mask) {
		return value, p, nil
	}
	var shift uint
	for {
		if len(p) == 0 {
			return 0, nil, ErrCompression
		}
		b := p[0]
		p = p[1:]
		value += uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return value, p, nil
		}
		shift += 7
		if shift > 63 {
			return 0, nil, ErrCompression
		}
	}
}

func (d *HeaderDecoder) decodeLiteral(p []byte) (string, []byte, error) {
	if len(p) == 0 {
		return "", nil, ErrCompression
	}
	huffman := p[0]&0x80 != 0
	length, rest, err := decodeInteger(p, 7)
	if err != nil {
		return "", nil, err
	}
	if uint64(len(rest)) < length {
		return "", nil, ErrCompression
	}
	raw := rest[:length]
	rest = rest[length:]
	if !huffman {
		return string(raw), rest, nil
	}
	table := tableFor(d.msgType)
	return string(table.decode(raw)), rest, nil
}
