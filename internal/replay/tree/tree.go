// Package tree holds the generic decoded replay tree produced by the external
// decoder. The tree is read-only; everything downstream navigates it with
// gjson paths.
package tree

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/tidwall/gjson"
)

// LoadError reports a tree that could not be read or is not JSON.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string { return fmt.Sprintf("load tree %s: %v", e.Path, e.Err) }
func (e *LoadError) Unwrap() error { return e.Err }

type Tree struct {
	raw  []byte
	root gjson.Result
}

// Parse wraps raw JSON. The bytes are retained and must not be modified.
func Parse(raw []byte) (*Tree, error) {
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("invalid json")
	}
	return &Tree{raw: raw, root: gjson.ParseBytes(raw)}, nil
}

// Load reads a decoded tree from disk. Files ending in .zst or .gz are
// decompressed first.
func Load(path string) (*Tree, error) {
	raw, err := readFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	t, err := Parse(raw)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	return t, nil
}

func readFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = bufio.NewReaderSize(f, 256*1024)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".zst":
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		r = dec
	case ".gz":
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		r = gz
	}
	return io.ReadAll(r)
}

func (t *Tree) Raw() []byte { return t.raw }

func (t *Tree) Root() gjson.Result { return t.root }

// Get looks up a gjson path from the root. An empty path returns the root.
func (t *Tree) Get(path string) gjson.Result {
	if path == "" {
		return t.root
	}
	return t.root.Get(path)
}

// BaseName strips directories and every known tree extension, so
// "out/abc.replay.json.zst" becomes "abc.replay".
func BaseName(path string) string {
	name := filepath.Base(path)
	for _, ext := range []string{".zst", ".gz", ".json"} {
		name = strings.TrimSuffix(name, ext)
	}
	return name
}
