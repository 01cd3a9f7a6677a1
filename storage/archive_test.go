package storage_test

import (
	"errors"
	"testing"

	"github.com/anuraag-khare/prompt-fence/cidutil"
	"github.com/anuraag-khare/prompt-fence/storage"
	"github.com/anuraag-khare/prompt-fence/storage/memory"
)

func TestArchive_StoreLoadRoundTrip(t *testing.T) {
	a := storage.Archive{CAS: memory.New()}

	assembled := "CRITICAL SECURITY RULES:\n<sec:fence id=\"x\">payload</sec:fence>"
	id, err := a.Store(assembled)
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if !a.Has(id) {
		t.Fatal("Has after Store")
	}

	got, err := a.Load(id)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != assembled {
		t.Fatal("loaded text differs from stored text")
	}

	// The archive key is the CID of the exact bytes.
	want, err := cidutil.CIDv1RawSHA256CID([]byte(assembled))
	if err != nil {
		t.Fatalf("CIDv1RawSHA256CID: %v", err)
	}
	if id != want {
		t.Fatalf("Store CID: got %s want %s", id, want)
	}
}

func TestArchive_LoadMissing(t *testing.T) {
	a := storage.Archive{CAS: memory.New()}
	id, err := cidutil.CIDv1RawSHA256CID([]byte("never stored"))
	if err != nil {
		t.Fatalf("CIDv1RawSHA256CID: %v", err)
	}
	if _, err := a.Load(id); !storage.IsNotFound(err) {
		t.Fatalf("Load missing: got %v want ErrNotFound", err)
	}
}

func TestArchive_LoadRejectsNonText(t *testing.T) {
	a := storage.Archive{CAS: memory.New()}
	id, err := a.CAS.Put([]byte{0xff, 0xfe, 0x01})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := a.Load(id); !errors.Is(err, storage.ErrNotText) {
		t.Fatalf("Load non-text: got %v want ErrNotText", err)
	}
}
