package yaml

import (
	"os"
	"path/filepath"
	"testing"

	yamlv3 "gopkg.in/yaml.v3"
)

type doc struct {
	Name  string `yaml:"name"`
	Count int    `yaml:"count"`
}

func TestAtomicWrite_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "store.yaml")

	want := doc{Name: "jobs", Count: 3}
	if err := AtomicWrite(path, want); err != nil {
		t.Fatalf("AtomicWrite: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	var got doc
	if err := yamlv3.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got != want {
		t.Errorf("round trip: got %+v, want %+v", got, want)
	}
}

func TestAtomicWrite_KeepsBackup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "store.yaml")

	if err := AtomicWrite(path, doc{Name: "first"}); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := AtomicWrite(path, doc{Name: "second"}); err != nil {
		t.Fatalf("second write: %v", err)
	}

	bak, err := os.ReadFile(path + ".bak")
	if err != nil {
		t.Fatalf("read backup: %v", err)
	}
	var got doc
	if err := yamlv3.Unmarshal(bak, &got); err != nil {
		t.Fatalf("unmarshal backup: %v", err)
	}
	if got.Name != "first" {
		t.Errorf("backup holds %q, want the previous content", got.Name)
	}
}

func TestAtomicWriteRaw_RejectsInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "store.yaml")

	original := []byte("name: keep\n")
	if err := os.WriteFile(path, original, 0644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	if err := AtomicWriteRaw(path, []byte("{invalid: [yaml")); err == nil {
		t.Fatal("invalid content should be rejected")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read original: %v", err)
	}
	if string(data) != string(original) {
		t.Error("original file must be untouched after a rejected write")
	}
}

func TestAtomicWrite_NoTempFilesLeftBehind(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "store.yaml")

	if err := AtomicWrite(path, doc{Name: "x"}); err != nil {
		t.Fatalf("AtomicWrite: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	for _, e := range entries {
		if e.Name() != "store.yaml" && e.Name() != "store.yaml.bak" {
			t.Errorf("unexpected leftover file: %s", e.Name())
		}
	}
}
