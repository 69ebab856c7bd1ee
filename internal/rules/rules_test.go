package rules

import (
	"strings"
	"testing"

	"github.com/distr1/button/internal/task"
)

const threeRuleDoc = `[
  {
    "inputs": ["foo.c", "foo.h"],
    "outputs": ["foo.o"],
    "tasks": [{"type": "command", "program": "gcc", "args": ["-c", "foo.c", "-o", "foo.o"], "detect": "none"}]
  },
  {
    "inputs": ["bar.c", "foo.h"],
    "outputs": ["bar.o"],
    "tasks": [{"type": "command", "program": "gcc", "args": ["-c", "bar.c", "-o", "bar.o"], "detect": "none"}]
  },
  {
    "inputs": ["foo.o", "bar.o"],
    "outputs": ["foobar"],
    "tasks": [{"type": "command", "program": "gcc", "args": ["foo.o", "bar.o", "-o", "foobar"], "detect": "none"}]
  }
]`

func TestDecodeThreeRuleCBuild(t *testing.T) {
	rs, err := Decode(strings.NewReader(threeRuleDoc))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(rs) != 3 {
		t.Fatalf("got %d rules, want 3", len(rs))
	}
	if len(rs[0].Inputs) != 2 || len(rs[0].Outputs) != 1 || len(rs[0].Tasks) != 1 {
		t.Fatalf("rule 0 shape: %+v", rs[0])
	}
	cmd, ok := rs[0].Tasks[0].(task.Command)
	if !ok {
		t.Fatalf("rule 0 task: got %T, want task.Command", rs[0].Tasks[0])
	}
	if cmd.Process.Program != "gcc" || cmd.Detect != task.DetectNone {
		t.Errorf("unexpected command: %+v", cmd)
	}
}

func TestDecodeUnknownTaskTypeErrors(t *testing.T) {
	_, err := Decode(strings.NewReader(`[{"tasks":[{"type":"bogus"}]}]`))
	if err == nil {
		t.Fatal("expected an error for an unknown task type")
	}
}

func TestDecodeDownloadAndCopyAndMkdir(t *testing.T) {
	doc := `[
	  {"outputs": ["archive.tar"], "tasks": [{"type": "download", "url": "https://example.com/archive.tar", "dest": "archive.tar"}]},
	  {"outputs": ["build"], "tasks": [{"type": "makedir", "path": "build"}]},
	  {"inputs": ["a"], "outputs": ["b"], "tasks": [{"type": "copy", "from": "a", "to": "b"}]}
	]`
	rs, err := Decode(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if _, ok := rs[0].Tasks[0].(task.Download); !ok {
		t.Errorf("rule 0: got %T, want task.Download", rs[0].Tasks[0])
	}
	if _, ok := rs[1].Tasks[0].(task.Mkdir); !ok {
		t.Errorf("rule 1: got %T, want task.Mkdir", rs[1].Tasks[0])
	}
	if _, ok := rs[2].Tasks[0].(task.Copy); !ok {
		t.Errorf("rule 2: got %T, want task.Copy", rs[2].Tasks[0])
	}
}

func TestDecodeTestTag(t *testing.T) {
	doc := `[
		{"outputs": ["a"], "tasks": [{"type": "makedir", "path": "a"}]},
		{"outputs": ["b"], "tasks": [{"type": "makedir", "path": "b"}], "test": true}
	]`
	rs, err := Decode(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if rs[0].Test {
		t.Errorf("rule 0: got Test=true, want false")
	}
	if !rs[1].Test {
		t.Errorf("rule 1: got Test=false, want true")
	}
}

func TestDecodeRetry(t *testing.T) {
	doc := `[{"tasks":[{"type":"command","program":"flaky","retry":{"retries":3,"delay":"10ms","backoff":2,"max_delay":"1s"}}]}]`
	rs, err := Decode(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	cmd := rs[0].Tasks[0].(task.Command)
	if cmd.Retry == nil || cmd.Retry.Retries != 3 || cmd.Retry.Backoff != 2 {
		t.Fatalf("unexpected retry: %+v", cmd.Retry)
	}
}
