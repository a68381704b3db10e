package protocol

import (
	"errors"
	"io"
	"testing"
)

func TestEncoderDecoder(t *testing.T) {
	e := NewEncoder()
	e.WriteByte(0x42)
	e.WriteUvarint(12345)
	e.WriteString("hello world")
	e.WriteLenBytes([]byte{0xDE, 0xAD, 0xBE, 0xEF})
	e.WriteBool(true)
	e.WriteBool(false)
	e.WriteUint16(0x1234)
	e.WriteUint32(0x12345678)
	e.WriteUint64(0x123456789ABCDEF0)

	d := NewDecoder(e.Bytes())

	if b, err := d.ReadByte(); err != nil || b != 0x42 {
		t.Errorf("ReadByte() = %x, %v", b, err)
	}
	if v, err := d.ReadUvarint(); err != nil || v != 12345 {
		t.Errorf("ReadUvarint() = %d, %v", v, err)
	}
	if s, err := d.ReadString(); err != nil || s != "hello world" {
		t.Errorf("ReadString() = %q, %v", s, err)
	}
	if b, err := d.ReadLenBytes(); err != nil || string(b) != "\xDE\xAD\xBE\xEF" {
		t.Errorf("ReadLenBytes() = %x, %v", b, err)
	}
	if b, err := d.ReadBool(); err != nil || !b {
		t.Errorf("ReadBool() = %v, %v; want true", b, err)
	}
	if b, err := d.ReadBool(); err != nil || b {
		t.Errorf("ReadBool() = %v, %v; want false", b, err)
	}
	if v, err := d.ReadUint16(); err != nil || v != 0x1234 {
		t.Errorf("ReadUint16() = %x, %v", v, err)
	}
	if v, err := d.ReadUint32(); err != nil || v != 0x12345678 {
		t.Errorf("ReadUint32() = %x, %v", v, err)
	}
	if v, err := d.ReadUint64(); err != nil || v != 0x123456789ABCDEF0 {
		t.Errorf("ReadUint64() = %x, %v", v, err)
	}
	if !d.EOF() {
		t.Errorf("Remaining() = %d, want 0", d.Remaining())
	}
}

func TestUvarintBoundaries(t *testing.T) {
	values := []uint64{0, 1, 127, 128, 16383, 16384, 1<<32 - 1, 1<<63 + 5}
	for _, v := range values {
		e := NewEncoder()
		e.WriteUvarint(v)
		got, err := NewDecoder(e.Bytes()).ReadUvarint()
		if err != nil || got != v {
			t.Errorf("uvarint %d: got %d, %v", v, got, err)
		}
	}
}

func TestDecoderErrors(t *testing.T) {
	t.Run("truncated_varint", func(t *testing.T) {
		_, err := NewDecoder([]byte{0x80, 0x80}).ReadUvarint()
		if err != io.ErrUnexpectedEOF {
			t.Errorf("got %v, want io.ErrUnexpectedEOF", err)
		}
	})

	t.Run("varint_overflow", func(t *testing.T) {
		data := []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0x01}
		_, err := NewDecoder(data).ReadUvarint()
		if !errors.Is(err, ErrVarintOverflow) {
			t.Errorf("got %v, want ErrVarintOverflow", err)
		}
	})

	t.Run("string_length_beyond_buffer", func(t *testing.T) {
		_, err := NewDecoder([]byte{0x05, 'a', 'b'}).ReadString()
		if err != io.ErrUnexpectedEOF {
			t.Errorf("got %v, want io.ErrUnexpectedEOF", err)
		}
	})

	t.Run("name_too_long", func(t *testing.T) {
		e := NewEncoder()
		e.WriteString(string(make([]byte, MaxNameLength+1)))
		_, err := NewDecoder(e.Bytes()).readName()
		if !errors.Is(err, ErrAllocationTooLarge) {
			t.Errorf("got %v, want ErrAllocationTooLarge", err)
		}
	})

	t.Run("short_uint64", func(t *testing.T) {
		_, err := NewDecoder([]byte{1, 2, 3}).ReadUint64()
		if err != io.ErrUnexpectedEOF {
			t.Errorf("got %v, want io.ErrUnexpectedEOF", err)
		}
	})
}

func TestEncoderReset(t *testing.T) {
	e := NewEncoderWithCap(8)
	e.WriteString("abc")
	e.Reset()
	if e.Len() != 0 {
		t.Errorf("Len() after Reset = %d, want 0", e.Len())
	}
	e.WriteByte(1)
	if e.Len() != 1 {
		t.Errorf("Len() = %d, want 1", e.Len())
	}
}
