package acudp

import (
	"bytes"
	"encoding/binary"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/encoding/unicode"
)

// Packet is a little-endian cursor over a single datagram.
type Packet struct {
	buf *bytes.Buffer
}

var (
	// the game writes UTF-16LE without a BOM, but a BOM is honoured if one is present.
	utf16Decoding = unicode.UTF16(unicode.LittleEndian, unicode.UseBOM)
	utf16Encoding = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)
)

const textTerminator = '%'

func NewPacket(b []byte) *Packet {
	return &Packet{
		buf: bytes.NewBuffer(b),
	}
}

func (p *Packet) Write(val interface{}) {
	err := binary.Write(p.buf, binary.LittleEndian, val)

	if err != nil {
		logrus.WithError(err).Errorf("Could not Write: %v", val)
	}
}

func (p *Packet) WritePadding(n int) {
	p.buf.Write(make([]byte, n))
}

// WriteUTF16String writes s as a fixed width UTF-16 field of size bytes, terminated
// with '%' if there is room and zero filled.
func (p *Packet) WriteUTF16String(s string, size int) {
	encoded, err := utf16Encoding.NewEncoder().Bytes([]byte(s + string(textTerminator)))

	if err != nil {
		logrus.WithError(err).Error("Could not EncodeString")
		encoded = nil
	}

	if len(encoded) > size {
		encoded = encoded[:size-size%2]
	}

	p.buf.Write(encoded)
	p.WritePadding(size - len(encoded))
}

func (p *Packet) Read(out interface{}) {
	_ = binary.Read(p.buf, binary.LittleEndian, out)
}

func (p *Packet) Skip(n int) {
	p.buf.Next(n)
}

func (p *Packet) ReadUint32() uint32 {
	var i uint32

	p.Read(&i)

	return i
}

func (p *Packet) ReadInt32() int32 {
	var i int32

	p.Read(&i)

	return i
}

func (p *Packet) ReadFloat32() float32 {
	var f float32

	p.Read(&f)

	return f
}

// ReadUTF16String reads a fixed width UTF-16 field of size bytes. Undecodable sequences
// are replaced with U+FFFD and the result is cut at the first '%'.
func (p *Packet) ReadUTF16String(size int) string {
	b := p.buf.Next(size)

	// the decoder substitutes U+FFFD for bad input rather than failing.
	decoded, _ := utf16Decoding.NewDecoder().Bytes(b)

	s := string(decoded)

	if i := strings.IndexRune(s, textTerminator); i >= 0 {
		s = s[:i]
	}

	return s
}

func (p *Packet) Bytes() []byte {
	return p.buf.Bytes()
}
