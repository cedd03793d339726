package codec

// Limits applied when decoding untrusted data.
const (
	MaxArraySize = 0x1000000
	MaxVarBytes  = 0x1000000
	MaxStringLen = 0x10000
)

// Serializable is implemented by every type that has a binary form.
type Serializable interface {
	EncodeBinary(w *BinWriter)
	DecodeBinary(r *BinReader)
}

// ptrSerializable is a *T that implements Serializable.
type ptrSerializable[T any] interface {
	*T
	Serializable
}

// ToBytes returns the binary form of s.
func ToBytes(s Serializable) ([]byte, error) {
	w := NewBinWriter()
	s.EncodeBinary(w)
	if w.Err != nil {
		return nil, w.Err
	}
	return w.Bytes(), nil
}

// FromBytes decodes data into s. Unread bytes are ignored.
func FromBytes(data []byte, s Serializable) error {
	r := NewBinReader(data)
	s.DecodeBinary(r)
	return r.Err
}

// FromBytesStrict decodes data into s and fails if bytes are left over.
func FromBytesStrict(data []byte, s Serializable) error {
	r := NewBinReader(data)
	s.DecodeBinary(r)
	if r.Err != nil {
		return r.Err
	}
	if r.Len() != 0 {
		return ErrTrailingData
	}
	return nil
}

// WriteArray writes a counted list of items. A nil or empty list is the
// single byte 0x00.
func WriteArray[T any, PT ptrSerializable[T]](w *BinWriter, items []T) {
	w.WriteVarUint(uint64(len(items)))
	for i := range items {
		PT(&items[i]).EncodeBinary(w)
	}
}

// WritePtrArray is WriteArray for lists held as pointers.
func WritePtrArray[T Serializable](w *BinWriter, items []T) {
	w.WriteVarUint(uint64(len(items)))
	for _, it := range items {
		it.EncodeBinary(w)
	}
}

// ReadArray reads a counted list of at most max items of type T.
func ReadArray[T any, PT ptrSerializable[T]](r *BinReader, max int) []T {
	n := r.ReadCount(max)
	if r.Err != nil || n == 0 {
		return nil
	}
	items := make([]T, n)
	for i := range items {
		PT(&items[i]).DecodeBinary(r)
		if r.Err != nil {
			return nil
		}
	}
	return items
}

// ReadPtrArray is ReadArray for lists held as pointers.
func ReadPtrArray[T any, PT ptrSerializable[T]](r *BinReader, max int) []*T {
	n := r.ReadCount(max)
	if r.Err != nil || n == 0 {
		return nil
	}
	items := make([]*T, n)
	for i := range items {
		items[i] = new(T)
		PT(items[i]).DecodeBinary(r)
		if r.Err != nil {
			return nil
		}
	}
	return items
}
