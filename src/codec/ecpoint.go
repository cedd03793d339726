package codec

import "fmt"

// WriteECPoint writes an already encoded curve point. The point at infinity is
// the single byte 0x00.
func (w *BinWriter) WriteECPoint(p []byte) {
	if len(p) == 0 {
		w.WriteU8(0)
		return
	}
	w.WriteBytes(p)
}

// ReadECPoint reads an encoded curve point: 0x00 for infinity, 0x02 or 0x03
// followed by X, or 0x04 followed by X and Y. The bytes are returned as read.
func (r *BinReader) ReadECPoint() []byte {
	prefix := r.ReadU8()
	if r.Err != nil {
		return nil
	}
	var n int
	switch prefix {
	case 0x00:
		return []byte{0x00}
	case 0x02, 0x03:
		n = 32
	case 0x04:
		n = 64
	default:
		r.Err = fmt.Errorf("invalid point encoding prefix %#x", prefix)
		return nil
	}
	rest := r.ReadBytes(n)
	if rest == nil {
		return nil
	}
	return append([]byte{prefix}, rest...)
}
