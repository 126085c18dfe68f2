// Package decoder parses decom log files into decoded packets.
//
// A decom log is a stream of already-decoded field-level records: an 8-byte
// magic header followed by length-framed entries. Declaration entries bind a
// numeric index to a (direction, target, packet) tuple; packet entries carry
// an index, a nanosecond timestamp, and a JSON object of field values.
package decoder

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"github.com/dwsmith1983/decommigrate/pkg/types"
)

// Magic is the decom log file header.
const Magic = "DECOMLOG"

// Entry types within a decom log.
const (
	entryDeclaration uint16 = 1
	entryPacket      uint16 = 2
)

type declaration struct {
	direction types.Direction
	target    string
	packet    string
}

// Decoder is a forward-only reader over one decom log file's decompressed
// bytes. It is not resumable mid-stream; restart by constructing a new
// Decoder over the same bytes.
type Decoder struct {
	data         []byte
	off          int
	declarations map[uint16]declaration
}

// New creates a Decoder. It validates the file header immediately so an
// obviously corrupt file fails before any packet is consumed.
func New(data []byte) (*Decoder, error) {
	if len(data) < len(Magic) || string(data[:len(Magic)]) != Magic {
		return nil, fmt.Errorf("not a decom log: bad magic header")
	}
	return &Decoder{
		data:         data,
		off:          len(Magic),
		declarations: make(map[uint16]declaration),
	}, nil
}

// Next returns the next decoded packet, or io.EOF when the file is exhausted.
// Declaration entries are consumed internally; callers only see packets.
func (d *Decoder) Next() (*types.DecodedPacket, error) {
	for {
		if d.off == len(d.data) {
			return nil, io.EOF
		}
		payload, err := d.nextEntry()
		if err != nil {
			return nil, err
		}
		if len(payload) < 2 {
			return nil, fmt.Errorf("entry at offset %d truncated", d.off)
		}
		entryType := binary.BigEndian.Uint16(payload[:2])
		body := payload[2:]

		switch entryType {
		case entryDeclaration:
			if err := d.readDeclaration(body); err != nil {
				return nil, err
			}
		case entryPacket:
			return d.readPacket(body)
		default:
			return nil, fmt.Errorf("unknown entry type %d", entryType)
		}
	}
}

func (d *Decoder) nextEntry() ([]byte, error) {
	if len(d.data)-d.off < 4 {
		return nil, fmt.Errorf("truncated entry length at offset %d", d.off)
	}
	length := int(binary.BigEndian.Uint32(d.data[d.off : d.off+4]))
	d.off += 4
	if length <= 0 || len(d.data)-d.off < length {
		return nil, fmt.Errorf("entry length %d exceeds remaining file at offset %d", length, d.off)
	}
	payload := d.data[d.off : d.off+length]
	d.off += length
	return payload, nil
}

func (d *Decoder) readDeclaration(body []byte) error {
	if len(body) < 4 {
		return fmt.Errorf("declaration entry truncated")
	}
	index := binary.BigEndian.Uint16(body[:2])
	direction := types.DirectionTLM
	if body[2] == 1 {
		direction = types.DirectionCMD
	}

	rest := body[3:]
	target, rest, err := readString(rest)
	if err != nil {
		return fmt.Errorf("declaration target: %w", err)
	}
	packet, _, err := readString(rest)
	if err != nil {
		return fmt.Errorf("declaration packet: %w", err)
	}

	d.declarations[index] = declaration{direction: direction, target: target, packet: packet}
	return nil
}

func (d *Decoder) readPacket(body []byte) (*types.DecodedPacket, error) {
	if len(body) < 10 {
		return nil, fmt.Errorf("packet entry truncated")
	}
	index := binary.BigEndian.Uint16(body[:2])
	decl, ok := d.declarations[index]
	if !ok {
		return nil, fmt.Errorf("packet references undeclared index %d", index)
	}
	timeNsec := int64(binary.BigEndian.Uint64(body[2:10]))

	fields, err := decodeFields(body[10:])
	if err != nil {
		return nil, fmt.Errorf("packet %s/%s fields: %w", decl.target, decl.packet, err)
	}

	return &types.DecodedPacket{
		Target:   decl.target,
		Packet:   decl.packet,
		TimeNsec: timeNsec,
		Fields:   fields,
	}, nil
}

// decodeFields unmarshals the JSON field map, keeping numbers as json.Number
// so 64-bit integers survive intact for DECIMAL column casting.
func decodeFields(raw []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, err
	}
	return fields, nil
}

func readString(b []byte) (string, []byte, error) {
	if len(b) < 1 {
		return "", nil, fmt.Errorf("missing length byte")
	}
	n := int(b[0])
	if len(b)-1 < n {
		return "", nil, fmt.Errorf("string length %d exceeds entry", n)
	}
	return string(b[1 : 1+n]), b[1+n:], nil
}
