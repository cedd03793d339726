package node

import (
	"bytes"
	"os"
	"sync"

	"github.com/ugorji/go/codec"
)

// AddressBookFile is the default file name of the address book inside the
// data directory.
const AddressBookFile = "addrbook.json"

// AddressBook persists known addresses on disk in the form of a JSON file.
type AddressBook struct {
	l    sync.Mutex
	path string
}

type addressBookFile struct {
	Addresses []string
}

// NewAddressBook ...
func NewAddressBook(path string) *AddressBook {
	return &AddressBook{path: path}
}

// Load returns the saved addresses. A missing or empty file holds none.
func (a *AddressBook) Load() ([]string, error) {
	a.l.Lock()
	defer a.l.Unlock()

	buf, err := os.ReadFile(a.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(buf) == 0 {
		return nil, nil
	}

	var f addressBookFile
	dec := codec.NewDecoder(bytes.NewReader(buf), new(codec.JsonHandle))
	if err := dec.Decode(&f); err != nil {
		return nil, err
	}
	return f.Addresses, nil
}

// Save replaces the saved addresses.
func (a *AddressBook) Save(addrs []string) error {
	a.l.Lock()
	defer a.l.Unlock()

	var buf bytes.Buffer
	jh := new(codec.JsonHandle)
	jh.Indent = 2
	enc := codec.NewEncoder(&buf, jh)
	if err := enc.Encode(addressBookFile{Addresses: addrs}); err != nil {
		return err
	}

	return os.WriteFile(a.path, buf.Bytes(), 0600)
}
