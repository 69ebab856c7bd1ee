package task

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestMkdirCreatesNestedDirs(t *testing.T) {
	root := t.TempDir()
	m := Mkdir{Path: "a/b/c"}
	var log bytes.Buffer
	if _, err := m.Execute(root, &log); err != nil {
		t.Fatal(err)
	}
	if fi, err := os.Stat(filepath.Join(root, "a/b/c")); err != nil || !fi.IsDir() {
		t.Fatalf("expected directory created, stat err=%v", err)
	}
}

func TestCopyPreservesContent(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "src.txt"), []byte("payload"), 0644); err != nil {
		t.Fatal(err)
	}
	c := Copy{From: "src.txt", To: "out/dst.txt"}
	var log bytes.Buffer
	if _, err := c.Execute(root, &log); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(filepath.Join(root, "out/dst.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "payload" {
		t.Fatalf("got %q want %q", got, "payload")
	}
}

func TestCommandRunsAndCapturesOutput(t *testing.T) {
	root := t.TempDir()
	c := Command{
		Process: Process{Program: "/bin/echo", Args: []string{"hello"}},
		Detect:  DetectNone,
	}
	var log bytes.Buffer
	if _, err := c.Execute(root, &log); err != nil {
		t.Fatal(err)
	}
	if got := log.String(); got != "hello\n" {
		t.Fatalf("got %q", got)
	}
}

func TestCommandNonZeroExitIsError(t *testing.T) {
	root := t.TempDir()
	c := Command{
		Process: Process{Program: "/bin/sh", Args: []string{"-c", "exit 3"}},
		Detect:  DetectNone,
	}
	var log bytes.Buffer
	if _, err := c.Execute(root, &log); err == nil {
		t.Fatal("expected non-zero exit to be an error")
	}
}

func TestRetrySucceedsAfterFailures(t *testing.T) {
	attempts := 0
	r := FixedRetry(3, time.Millisecond)
	err := r.Call(func() error {
		attempts++
		if attempts < 3 {
			return transientError{}
		}
		return nil
	}, func(time.Duration) {})
	if err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("want 3 attempts, got %d", attempts)
	}
}

// transientError is a trivial error stand-in so this test doesn't import
// context just for a sentinel error.
type transientError struct{}

func (transientError) Error() string { return "transient" }

func TestDisplayCommandQuotesWhitespace(t *testing.T) {
	got := DisplayCommand("foo bar", []string{"baz", "some argument"})
	want := `"foo bar" baz "some argument"`
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestParseMakeDepfile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.d")
	if err := os.WriteFile(path, []byte("out.o: foo.c \\\n  foo.h bar.h\n"), 0644); err != nil {
		t.Fatal(err)
	}
	got, err := parseMakeDepfile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"foo.c", "foo.h", "bar.h"}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}
}
