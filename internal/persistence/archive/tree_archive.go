package archive

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"rattlebrain/internal/replay/props"
)

type TreeArchiveMeta struct {
	ID              string `json:"id"`
	Source          string `json:"source"`
	Tree            string `json:"tree"`
	CreatedAt       string `json:"created_at"`
	EngineVersion   *int   `json:"engine_version,omitempty"`
	LicenseeVersion *int   `json:"licensee_version,omitempty"`
	Team0Score      *int   `json:"team_0_score,omitempty"`
	Team1Score      *int   `json:"team_1_score,omitempty"`
	MapName         string `json:"map_name,omitempty"`
}

// ArchiveTree stores the decoded tree at `dataDir/archives/<id>/tree.json.zst`.
// A source that is already zstd-compressed is copied as is; anything else is
// compressed on the way. It returns the archived path.
func ArchiveTree(dataDir, id, src string, h props.Header) (string, error) {
	if id == "" {
		return "", fmt.Errorf("archive tree: empty id")
	}
	archiveDir := filepath.Join(dataDir, "archives", id)
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return "", err
	}

	dst := filepath.Join(archiveDir, "tree.json.zst")
	var err error
	if strings.HasSuffix(src, ".zst") {
		err = copyFile(src, dst)
	} else {
		err = compressFile(src, dst)
	}
	if err != nil {
		return "", fmt.Errorf("archive tree %s: %w", src, err)
	}

	meta := TreeArchiveMeta{
		ID:              id,
		Source:          filepath.Base(src),
		Tree:            filepath.Base(dst),
		CreatedAt:       time.Now().UTC().Format(time.RFC3339Nano),
		EngineVersion:   h.EngineVersion,
		LicenseeVersion: h.LicenseeVersion,
		Team0Score:      h.Team0Score,
		Team1Score:      h.Team1Score,
	}
	if h.MapName != nil {
		meta.MapName = *h.MapName
	}
	if b, err := json.MarshalIndent(meta, "", "  "); err == nil {
		_ = os.WriteFile(filepath.Join(archiveDir, "meta.json"), b, 0o644)
	}

	return dst, nil
}

func compressFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	enc, err := zstd.NewWriter(out, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	if _, err := io.Copy(enc, in); err != nil {
		_ = enc.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	return out.Close()
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
