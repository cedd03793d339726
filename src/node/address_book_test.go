package node

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestAddressBook(t *testing.T) {
	path := filepath.Join(t.TempDir(), AddressBookFile)
	book := NewAddressBook(path)

	addrs, err := book.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(addrs) != 0 {
		t.Fatalf("a missing book should be empty, got %v", addrs)
	}

	want := []string{"10.0.0.1:20333", "10.0.0.2:20333"}
	if err := book.Save(want); err != nil {
		t.Fatal(err)
	}

	addrs, err = NewAddressBook(path).Load()
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(want, addrs) {
		t.Fatalf("addresses should be %v, not %v", want, addrs)
	}
}

func TestAddressBookCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), AddressBookFile)
	if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewAddressBook(path).Load(); err == nil {
		t.Fatal("loading a corrupt book should fail")
	}
}
