package task

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/distr1/button/internal/res"
	"golang.org/x/xerrors"
)

// Download fetches URL over HTTP(S) and writes it to Dest, relative to the
// project root. Grounded on the teacher's downloadHTTP: compression is
// disabled on the transport so a gzip-encoded artifact (e.g. a .tar.gz)
// isn't transparently decompressed by the HTTP client.
type Download struct {
	URL  string
	Dest string
}

func (d Download) Kind() Kind { return KindDownload }

func (d Download) KnownInputs() []res.Resource { return nil }

func (d Download) KnownOutputs() []res.Resource {
	return []res.Resource{res.File(d.Dest)}
}

func (d Download) String() string { return "download " + d.URL }

func (d Download) Key() string { return "download\x1f" + d.URL + "\x1f" + d.Dest }

func (d Download) Execute(root string, log io.Writer) (Detected, error) {
	t := *(http.DefaultTransport.(*http.Transport))
	t.DisableCompression = true
	client := &http.Client{Transport: &t}

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, d.URL, nil)
	if err != nil {
		return Detected{}, xerrors.Errorf("task: download %s: %w", d.URL, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return Detected{}, xerrors.Errorf("task: download %s: %w", d.URL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Detected{}, xerrors.Errorf("task: download %s: unexpected status %s", d.URL, resp.Status)
	}

	dest := filepath.Join(root, d.Dest)
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return Detected{}, xerrors.Errorf("task: download %s: %w", d.URL, err)
	}
	f, err := os.Create(dest)
	if err != nil {
		return Detected{}, xerrors.Errorf("task: download %s: %w", d.URL, err)
	}
	defer f.Close()

	w := io.MultiWriter(f, log)
	if _, err := io.Copy(w, resp.Body); err != nil {
		return Detected{}, xerrors.Errorf("task: download %s: %w", d.URL, err)
	}
	return Detected{}, nil
}
