// Package rules decodes a project's button.json into buildgraph.Rule
// values: the JSON-facing task variants (discriminated by a "type" field,
// the way the teacher's pb.ReadBuildFile decodes a package's
// build.textproto) translated into internal/task constructors.
package rules

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/distr1/button/internal/buildgraph"
	"github.com/distr1/button/internal/res"
	"github.com/distr1/button/internal/task"
	"golang.org/x/xerrors"
)

// retryJSON is the wire form of task.Retry.
type retryJSON struct {
	Retries  uint32 `json:"retries"`
	Delay    string `json:"delay"`
	Backoff  uint32 `json:"backoff"`
	MaxDelay string `json:"max_delay"`
}

func (r *retryJSON) toRetry() (*task.Retry, error) {
	if r == nil {
		return nil, nil
	}
	delay, err := parseDuration(r.Delay)
	if err != nil {
		return nil, xerrors.Errorf("rules: retry.delay: %w", err)
	}
	maxDelay, err := parseDuration(r.MaxDelay)
	if err != nil {
		return nil, xerrors.Errorf("rules: retry.max_delay: %w", err)
	}
	return &task.Retry{Retries: r.Retries, Delay: delay, Backoff: r.Backoff, MaxDelay: maxDelay}, nil
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}

// taskJSON is the wire form of a task.Task, discriminated by Type.
type taskJSON struct {
	Type string `json:"type"`

	// command
	Program string            `json:"program,omitempty"`
	Args    []string          `json:"args,omitempty"`
	Cwd     string            `json:"cwd,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
	Stdin   string            `json:"stdin,omitempty"`
	Stdout  string            `json:"stdout,omitempty"`
	Stderr  string            `json:"stderr,omitempty"`
	Display string            `json:"display,omitempty"`
	Detect  string            `json:"detect,omitempty"`
	Retry   *retryJSON        `json:"retry,omitempty"`

	// batch-script
	Contents string `json:"contents,omitempty"`

	// download
	URL  string `json:"url,omitempty"`
	Dest string `json:"dest,omitempty"`

	// makedir
	Path string `json:"path,omitempty"`

	// copy
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`
}

func (t taskJSON) toTask() (task.Task, error) {
	switch t.Type {
	case "command":
		mode, err := task.ParseDetectMode(t.Detect)
		if err != nil {
			return nil, err
		}
		retry, err := t.Retry.toRetry()
		if err != nil {
			return nil, err
		}
		return task.Command{
			Process: task.Process{
				Program: t.Program,
				Args:    t.Args,
				Cwd:     t.Cwd,
				Env:     t.Env,
				Stdin:   t.Stdin,
				Stdout:  t.Stdout,
				Stderr:  t.Stderr,
			},
			Display: t.Display,
			Retry:   retry,
			Detect:  mode,
		}, nil
	case "batch-script":
		return task.BatchScript{Contents: t.Contents, Cwd: t.Cwd, Env: t.Env, Display: t.Display}, nil
	case "download":
		return task.Download{URL: t.URL, Dest: t.Dest}, nil
	case "makedir":
		return task.Mkdir{Path: t.Path}, nil
	case "copy":
		return task.Copy{From: t.From, To: t.To}, nil
	default:
		return nil, xerrors.Errorf("rules: unknown task type %q", t.Type)
	}
}

// ruleJSON is the wire form of a buildgraph.Rule. Inputs/Outputs are bare
// paths, always file resources: directories only ever arise as
// implicitly-detected resources (task.Detected), never as something a
// rule declares up front.
type ruleJSON struct {
	Inputs  []string   `json:"inputs"`
	Outputs []string   `json:"outputs"`
	Tasks   []taskJSON `json:"tasks"`
	Test    bool       `json:"test,omitempty"`
}

// Document is the top-level button.json shape: a bare JSON array of rules,
// matching the original implementation's Rules::from_reader, which
// deserializes straight into a Vec<Rule>.
type Document []ruleJSON

// Load reads and decodes the rules file at path.
func Load(path string) ([]buildgraph.Rule, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, xerrors.Errorf("rules: open %s: %w", path, err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode parses a rules document from r.
func Decode(r io.Reader) ([]buildgraph.Rule, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, xerrors.Errorf("rules: decode: %w", err)
	}

	out := make([]buildgraph.Rule, 0, len(doc))
	for i, rj := range doc {
		rule, err := rj.toRule()
		if err != nil {
			return nil, xerrors.Errorf("rules: rule %d: %w", i, err)
		}
		out = append(out, rule)
	}
	return out, nil
}

func (rj ruleJSON) toRule() (buildgraph.Rule, error) {
	var rule buildgraph.Rule
	rule.Test = rj.Test
	for _, in := range rj.Inputs {
		rule.Inputs = append(rule.Inputs, res.File(in))
	}
	for _, out := range rj.Outputs {
		rule.Outputs = append(rule.Outputs, res.File(out))
	}
	for _, tj := range rj.Tasks {
		t, err := tj.toTask()
		if err != nil {
			return rule, err
		}
		rule.Tasks = append(rule.Tasks, t)
	}
	return rule, nil
}
