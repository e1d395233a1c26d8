package encoding

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math/bits"

	"github.com/eigerco/isel/internal/ir"
)

// BlobMagic starts every serialized table set.
var BlobMagic = [4]byte{'I', 'S', 'E', 'L'}

// blob sections
const (
	SectionActions   byte = 1
	SectionModes     byte = 2
	SectionLevel2    byte = 3
	SectionList      byte = 4
	SectionEndOfFile byte = 0

	BlobVersionV1 byte = 1

	maxBlobEntries uint32 = 1 << 24
)

var ErrBadBlob = errors.New("invalid tables blob")

// MarshalBinary serializes the tables. Sections appear in a fixed order, each prefixed by its
// length.
func (t *Tables) MarshalBinary() ([]byte, error) {
	var w Writer
	w.Write(BlobMagic[:])
	w.WriteByte(BlobVersionV1)

	var sec Writer
	sec.WriteVarint(uint32(len(t.Actions)))
	for _, a := range t.Actions {
		sec.WriteString(a)
	}
	w.WriteSection(SectionActions, sec.Bytes())

	sec.Reset()
	sec.WriteVarint(uint32(len(t.Modes)))
	for _, m := range t.Modes {
		sec.WriteString(m.Name)
		sec.WriteByte(byte(m.Default))
		sec.WriteVarint(uint32(len(m.Level1)))
		for _, e := range m.Level1 {
			sec.WriteByte(byte(e.Type))
			sec.WriteByte(e.Log2Len)
			sec.WriteVarint(e.Offset)
			sec.WriteByte(byte(e.Action))
		}
	}
	w.WriteSection(SectionModes, sec.Bytes())

	sec.Reset()
	sec.WriteVarint(uint32(len(t.Level2)))
	for _, e := range t.Level2 {
		sec.WriteVarint(uint32(e.Opcode))
		sec.WriteVarint(e.Offset)
	}
	w.WriteSection(SectionLevel2, sec.Bytes())

	sec.Reset()
	sec.WriteVarint(uint32(len(t.List)))
	for _, word := range t.List {
		sec.WriteUint16(word)
	}
	w.WriteSection(SectionList, sec.Bytes())

	w.WriteByte(SectionEndOfFile)
	return w.Bytes(), nil
}

// UnmarshalTables decodes a blob written by MarshalBinary. The result still needs Validate before
// it is used for lookups.
func UnmarshalTables(blob []byte) (*Tables, error) {
	r := NewReader(bytes.NewReader(blob))
	magic := make([]byte, len(BlobMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadBlob, err)
	}
	if [len(BlobMagic)]byte(magic) != BlobMagic {
		return nil, fmt.Errorf("%w: blob doesn't start with the expected magic bytes", ErrBadBlob)
	}
	version, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadBlob, err)
	}
	if version != BlobVersionV1 {
		return nil, fmt.Errorf("%w: unsupported version: %d", ErrBadBlob, version)
	}

	t := &Tables{}
	expect := []struct {
		id    byte
		parse func(*Reader) error
	}{
		{SectionActions, t.readActions},
		{SectionModes, t.readModes},
		{SectionLevel2, t.readLevel2},
		{SectionList, t.readList},
	}
	for _, s := range expect {
		section, body, err := r.ReadSection()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrBadBlob, err)
		}
		if section != s.id {
			return nil, fmt.Errorf("%w: unexpected section: %d, want %d", ErrBadBlob, section, s.id)
		}
		sr := NewReader(bytes.NewReader(body))
		if err := s.parse(sr); err != nil {
			return nil, fmt.Errorf("%w: section %d: %w", ErrBadBlob, section, err)
		}
		if sr.Position() != int64(len(body)) {
			return nil, fmt.Errorf("%w: section %d contains more data than expected", ErrBadBlob, section)
		}
	}
	end, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadBlob, err)
	}
	if end != SectionEndOfFile {
		return nil, fmt.Errorf("%w: unexpected section: %d", ErrBadBlob, end)
	}
	return t, nil
}

func readCount(r *Reader) (uint32, error) {
	n, err := r.ReadVarint()
	if err != nil {
		return 0, err
	}
	if n > maxBlobEntries {
		return 0, fmt.Errorf("count %d too large", n)
	}
	return n, nil
}

func (t *Tables) readActions(r *Reader) error {
	n, err := readCount(r)
	if err != nil {
		return err
	}
	t.Actions = make([]string, n)
	for i := range t.Actions {
		if t.Actions[i], err = r.ReadString(); err != nil {
			return err
		}
	}
	return nil
}

func (t *Tables) readModes(r *Reader) error {
	n, err := readCount(r)
	if err != nil {
		return err
	}
	t.Modes = make([]Mode, n)
	for i := range t.Modes {
		m := &t.Modes[i]
		if m.Name, err = r.ReadString(); err != nil {
			return err
		}
		def, err := r.ReadByte()
		if err != nil {
			return err
		}
		m.Default = LegalizeAction(def)
		count, err := readCount(r)
		if err != nil {
			return err
		}
		m.Level1 = make([]Level1Entry, count)
		for j := range m.Level1 {
			e := &m.Level1[j]
			ty, err := r.ReadByte()
			if err != nil {
				return err
			}
			e.Type = ir.Type(ty)
			if e.Log2Len, err = r.ReadByte(); err != nil {
				return err
			}
			if e.Offset, err = r.ReadVarint(); err != nil {
				return err
			}
			action, err := r.ReadByte()
			if err != nil {
				return err
			}
			e.Action = LegalizeAction(action)
		}
	}
	return nil
}

func (t *Tables) readLevel2(r *Reader) error {
	n, err := readCount(r)
	if err != nil {
		return err
	}
	t.Level2 = make([]Level2Entry, n)
	for i := range t.Level2 {
		op, err := r.ReadVarint()
		if err != nil {
			return err
		}
		if op > 0xffff {
			return fmt.Errorf("opcode %d out of range", op)
		}
		t.Level2[i].Opcode = ir.Opcode(op)
		if t.Level2[i].Offset, err = r.ReadVarint(); err != nil {
			return err
		}
	}
	return nil
}

func (t *Tables) readList(r *Reader) error {
	n, err := readCount(r)
	if err != nil {
		return err
	}
	t.List = make([]uint16, n)
	for i := range t.List {
		if t.List[i], err = r.ReadUint16(); err != nil {
			return err
		}
	}
	return nil
}

func NewReader(r io.ReadSeeker) *Reader { return &Reader{r} }

// Reader decodes the primitive blob encodings.
type Reader struct{ io.ReadSeeker }

// ReadSection reads a section id and its length-prefixed body.
func (r *Reader) ReadSection() (section byte, body []byte, err error) {
	if section, err = r.ReadByte(); err != nil {
		return
	}
	var secLen uint32
	if secLen, err = r.ReadVarint(); err != nil {
		return
	}
	if left := r.remaining(); int64(secLen) > left {
		err = fmt.Errorf("section %d claims %d bytes, %d left: %w", section, secLen, left, io.ErrUnexpectedEOF)
		return
	}
	body = make([]byte, secLen)
	_, err = io.ReadFull(r, body)
	return
}

// remaining reports the bytes between the current position and the end of input.
func (r *Reader) remaining() int64 {
	cur := r.Position()
	end, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return 0
	}
	if _, err := r.Seek(cur, io.SeekStart); err != nil {
		return 0
	}
	return end - cur
}

func (r *Reader) ReadByte() (byte, error) {
	b := make([]byte, 1)
	if _, err := io.ReadFull(r, b); err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *Reader) ReadUint16() (uint16, error) {
	b := make([]byte, 2)
	if _, err := io.ReadFull(r, b); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

// ReadVarint reads a variable-length integer: the number of leading one bits of the first byte
// is the count of extra big-endian bytes, the rest of the first byte holds the high bits.
func (r *Reader) ReadVarint() (uint32, error) {
	first, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	length := bits.LeadingZeros8(^first)
	if length > 4 {
		return 0, fmt.Errorf("invalid varint length: %d", length)
	}
	value := uint64(first & (0xff >> length))
	if length == 0 {
		return uint32(value), nil
	}
	rest := make([]byte, length)
	if _, err := io.ReadFull(r, rest); err != nil {
		return 0, err
	}
	for _, b := range rest {
		value = value<<8 | uint64(b)
	}
	if value > 0xffffffff {
		return 0, fmt.Errorf("varint overflows 32 bits")
	}
	return uint32(value), nil
}

func (r *Reader) ReadString() (string, error) {
	n, err := r.ReadVarint()
	if err != nil {
		return "", err
	}
	if n > 1<<16 {
		return "", fmt.Errorf("string of %d bytes too long", n)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *Reader) Position() int64 {
	pos, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		panic(fmt.Sprintf("the current position should always be seekable: %v", err))
	}
	return pos
}

// Writer is the encoding counterpart of Reader.
type Writer struct {
	bytes.Buffer
}

func (w *Writer) WriteVarint(v uint32) {
	length := 0
	for length < 4 && uint64(v) >= uint64(1)<<(7-length+8*length) {
		length++
	}
	var buf [5]byte
	for i := length; i > 0; i-- {
		buf[i] = byte(v)
		v >>= 8
	}
	buf[0] = byte(0xff<<(8-length)) | byte(v)
	w.Buffer.Write(buf[:length+1])
}

func (w *Writer) WriteUint16(v uint16) {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], v)
	w.Buffer.Write(buf[:])
}

func (w *Writer) WriteString(s string) {
	w.WriteVarint(uint32(len(s)))
	w.Buffer.WriteString(s)
}

func (w *Writer) WriteSection(id byte, body []byte) {
	w.Buffer.WriteByte(id)
	w.WriteVarint(uint32(len(body)))
	w.Buffer.Write(body)
}
