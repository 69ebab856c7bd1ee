package trace

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestEventWritesAJSONArrayElement(t *testing.T) {
	var buf bytes.Buffer
	Sink(&buf)

	ev := Event("copy in.txt to out.txt", 2)
	ev.Done()

	out := buf.String()
	if !strings.HasPrefix(out, "[") {
		t.Fatalf("expected the array opener, got %q", out)
	}
	body := strings.TrimSuffix(strings.TrimPrefix(out, "["), ",")

	var pe PendingEvent
	if err := json.Unmarshal([]byte(body), &pe); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if pe.Name != "copy in.txt to out.txt" || pe.Tid != 2 || pe.Type != "X" {
		t.Errorf("unexpected event: %+v", pe)
	}
}
