package res

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFileStateMissing(t *testing.T) {
	root := t.TempDir()
	r := File("nope.txt")
	fp, err := r.State(root)
	if err != nil {
		t.Fatal(err)
	}
	if !fp.Missing {
		t.Fatalf("want Missing, got %v", fp)
	}
}

func TestFileStateChangesWithContent(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "foo.txt")
	if err := os.WriteFile(path, []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}
	r := File("foo.txt")
	fp1, err := r.State(root)
	if err != nil {
		t.Fatal(err)
	}
	if fp1.Missing {
		t.Fatal("want present")
	}
	if err := os.WriteFile(path, []byte("world"), 0644); err != nil {
		t.Fatal(err)
	}
	fp2, err := r.State(root)
	if err != nil {
		t.Fatal(err)
	}
	if fp1.Equal(fp2) {
		t.Fatalf("fingerprints should differ: %v == %v", fp1, fp2)
	}
}

func TestDirStateSortedEntries(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "d")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(sub, "b.txt"), nil, 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(sub, "a.txt"), nil, 0644); err != nil {
		t.Fatal(err)
	}
	r := Dir("d")
	fp1, err := r.State(root)
	if err != nil {
		t.Fatal(err)
	}

	// Creation order should not matter: recreate with reversed order,
	// fingerprint must match.
	root2 := t.TempDir()
	sub2 := filepath.Join(root2, "d")
	if err := os.Mkdir(sub2, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(sub2, "a.txt"), nil, 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(sub2, "b.txt"), nil, 0644); err != nil {
		t.Fatal(err)
	}
	fp2, err := r.State(root2)
	if err != nil {
		t.Fatal(err)
	}
	if !fp1.Equal(fp2) {
		t.Fatalf("fingerprints should match regardless of creation order: %v != %v", fp1, fp2)
	}
}

func TestDeleteMissingIsSuccess(t *testing.T) {
	root := t.TempDir()
	if err := File("nope.txt").Delete(root); err != nil {
		t.Fatal(err)
	}
}
