package testutil

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"encoding/json"

	"github.com/dwsmith1983/decommigrate/internal/decoder"
	"github.com/dwsmith1983/decommigrate/pkg/types"
)

// LogBuilder assembles decom log byte streams for tests.
type LogBuilder struct {
	buf bytes.Buffer
}

// NewLogBuilder starts a decom log with the magic header.
func NewLogBuilder() *LogBuilder {
	b := &LogBuilder{}
	b.buf.WriteString(decoder.Magic)
	return b
}

// Declare appends a declaration entry binding index to a packet identity.
func (b *LogBuilder) Declare(index uint16, direction types.Direction, target, packet string) *LogBuilder {
	var body bytes.Buffer
	_ = binary.Write(&body, binary.BigEndian, uint16(1))
	_ = binary.Write(&body, binary.BigEndian, index)
	if direction == types.DirectionCMD {
		body.WriteByte(1)
	} else {
		body.WriteByte(0)
	}
	body.WriteByte(byte(len(target)))
	body.WriteString(target)
	body.WriteByte(byte(len(packet)))
	body.WriteString(packet)
	b.entry(body.Bytes())
	return b
}

// Packet appends a packet entry for a previously declared index.
func (b *LogBuilder) Packet(index uint16, timeNsec int64, fields map[string]any) *LogBuilder {
	raw, err := json.Marshal(fields)
	if err != nil {
		panic(err)
	}
	var body bytes.Buffer
	_ = binary.Write(&body, binary.BigEndian, uint16(2))
	_ = binary.Write(&body, binary.BigEndian, index)
	_ = binary.Write(&body, binary.BigEndian, uint64(timeNsec))
	body.Write(raw)
	b.entry(body.Bytes())
	return b
}

// Raw appends pre-framed entry bytes verbatim, for corruption tests.
func (b *LogBuilder) Raw(p []byte) *LogBuilder {
	b.buf.Write(p)
	return b
}

// Bytes returns the assembled log.
func (b *LogBuilder) Bytes() []byte {
	out := make([]byte, b.buf.Len())
	copy(out, b.buf.Bytes())
	return out
}

// Gzipped returns the assembled log compressed with gzip.
func (b *LogBuilder) Gzipped() []byte {
	var out bytes.Buffer
	zw := gzip.NewWriter(&out)
	_, _ = zw.Write(b.buf.Bytes())
	_ = zw.Close()
	return out.Bytes()
}

func (b *LogBuilder) entry(payload []byte) {
	_ = binary.Write(&b.buf, binary.BigEndian, uint32(len(payload)))
	b.buf.Write(payload)
}
