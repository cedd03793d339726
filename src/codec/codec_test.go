package codec

import (
	"bytes"
	"errors"
	"testing"

	"github.com/mosaicnetworks/neonode/src/common"
)

func TestVarUintTable(t *testing.T) {
	cases := []struct {
		v   uint64
		enc []byte
	}{
		{0, []byte{0x00}},
		{0xfc, []byte{0xfc}},
		{0xfd, []byte{0xfd, 0xfd, 0x00}},
		{0xffff, []byte{0xfd, 0xff, 0xff}},
		{0x10000, []byte{0xfe, 0x00, 0x00, 0x01, 0x00}},
		{0xffffffff, []byte{0xfe, 0xff, 0xff, 0xff, 0xff}},
		{0x100000000, []byte{0xff, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00}},
	}

	for _, c := range cases {
		w := NewBinWriter()
		w.WriteVarUint(c.v)
		if w.Err != nil {
			t.Fatal(w.Err)
		}
		if !bytes.Equal(w.Bytes(), c.enc) {
			t.Fatalf("encode(%#x) = %x, want %x", c.v, w.Bytes(), c.enc)
		}
		if VarUintSize(c.v) != len(c.enc) {
			t.Fatalf("VarUintSize(%#x) = %d, want %d", c.v, VarUintSize(c.v), len(c.enc))
		}

		r := NewBinReader(c.enc)
		if got := r.ReadVarUint(^uint64(0)); r.Err != nil || got != c.v {
			t.Fatalf("decode(%x) = %#x, %v", c.enc, got, r.Err)
		}
		if r.Len() != 0 {
			t.Fatalf("decode(%x) left %d bytes", c.enc, r.Len())
		}

		if c.v > 0 {
			r = NewBinReader(c.enc)
			r.ReadVarUint(c.v - 1)
			if !errors.Is(r.Err, ErrVarintTooLarge) {
				t.Fatalf("decode(%x) with max %#x should fail, got %v", c.enc, c.v-1, r.Err)
			}
		}
	}
}

func TestReaderUnexpectedEOF(t *testing.T) {
	r := NewBinReader([]byte{0x01, 0x02, 0x03})
	if v := r.ReadU32LE(); v != 0 {
		t.Fatalf("short read returned %d", v)
	}
	if !errors.Is(r.Err, ErrUnexpectedEOF) {
		t.Fatalf("expected ErrUnexpectedEOF, got %v", r.Err)
	}
	// errors are sticky
	if r.ReadU8() != 0 || !errors.Is(r.Err, ErrUnexpectedEOF) {
		t.Fatalf("reader should stay failed")
	}

	// a varbytes prefix announcing more bytes than available
	r = NewBinReader([]byte{0x05, 0xaa, 0xbb})
	r.ReadVarBytes(MaxVarBytes)
	if !errors.Is(r.Err, ErrUnexpectedEOF) {
		t.Fatalf("expected ErrUnexpectedEOF, got %v", r.Err)
	}
}

func TestFixedWidthByteOrder(t *testing.T) {
	w := NewBinWriter()
	w.WriteU16LE(0x0102)
	w.WriteU16BE(0x0102)
	w.WriteU32LE(0x01020304)
	w.WriteI64LE(-1)
	w.WriteBool(true)
	w.WriteString("neo")

	want := []byte{
		0x02, 0x01,
		0x01, 0x02,
		0x04, 0x03, 0x02, 0x01,
		0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
		0x01,
		0x03, 'n', 'e', 'o',
	}
	if !bytes.Equal(w.Bytes(), want) {
		t.Fatalf("got %x, want %x", w.Bytes(), want)
	}

	r := NewBinReader(want)
	if r.ReadU16LE() != 0x0102 || r.ReadU16BE() != 0x0102 || r.ReadU32LE() != 0x01020304 ||
		r.ReadI64LE() != -1 || !r.ReadBool() || r.ReadString(MaxStringLen) != "neo" || r.Err != nil {
		t.Fatalf("read back mismatch: %v", r.Err)
	}
}

type item struct {
	v uint32
}

func (i *item) EncodeBinary(w *BinWriter) { w.WriteU32LE(i.v) }
func (i *item) DecodeBinary(r *BinReader) { i.v = r.ReadU32LE() }

func TestEmptyArrayIsSingleZeroByte(t *testing.T) {
	w := NewBinWriter()
	WriteArray[item](w, nil)
	if !bytes.Equal(w.Bytes(), []byte{0x00}) {
		t.Fatalf("empty array encoded as %x", w.Bytes())
	}

	w = NewBinWriter()
	WriteArray(w, []item{{1}, {2}})
	r := NewBinReader(w.Bytes())
	items := ReadArray[item](r, MaxArraySize)
	if r.Err != nil || len(items) != 2 || items[1].v != 2 {
		t.Fatalf("array read back %v, %v", items, r.Err)
	}
}

func TestUint256Array(t *testing.T) {
	hs := []common.Uint256{{1}, {2}, {3}}
	w := NewBinWriter()
	w.WriteUint256Array(hs)

	r := NewBinReader(w.Bytes())
	back := r.ReadUint256Array(2)
	if !errors.Is(r.Err, ErrVarintTooLarge) || back != nil {
		t.Fatalf("reading 3 hashes with max 2 should fail, got %v", r.Err)
	}
}

func TestFromBytesStrict(t *testing.T) {
	var it item
	if err := FromBytesStrict([]byte{1, 0, 0, 0, 9}, &it); err != ErrTrailingData {
		t.Fatalf("expected ErrTrailingData, got %v", err)
	}
	if err := FromBytes([]byte{1, 0, 0, 0, 9}, &it); err != nil || it.v != 1 {
		t.Fatalf("FromBytes: %v %d", err, it.v)
	}
}
