package journal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

const SchemaVersionV1 uint32 = 1

// Manifest pins a journal directory to one deployment so outcomes from
// different parameter sets are never mixed.
type Manifest struct {
	SchemaVersion uint32 `json:"schema_version"`
	Deployment    string `json:"deployment"`
	ParamsVersion uint32 `json:"params_version"`
	CreatedAt     int64  `json:"created_at"`
}

func manifestPath(dir string) string {
	return filepath.Join(dir, "MANIFEST.json")
}

func readManifest(dir string) (*Manifest, error) {
	b, err := os.ReadFile(manifestPath(dir))
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("manifest json: %w", err)
	}
	return &m, nil
}

// writeManifestAtomic pins dir to m. The pin only becomes visible once its
// bytes and the directory entry are on disk, so a crash during Open leaves
// either no pin or a complete one.
func writeManifestAtomic(dir string, m *Manifest) error {
	if m == nil {
		return errors.New("pin journal: nil manifest")
	}
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return errors.Wrap(err, "pin journal")
	}

	pending := manifestPath(dir) + ".pending"
	if err := writeSynced(pending, append(b, '\n')); err != nil {
		return errors.Wrap(err, "pin journal")
	}
	if err := os.Rename(pending, manifestPath(dir)); err != nil {
		return errors.Wrap(err, "pin journal")
	}
	return errors.Wrap(syncDir(dir), "pin journal")
}

func writeSynced(path string, b []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600) // #nosec G304 -- inside the operator-configured journal dir.
	if err != nil {
		return err
	}
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func syncDir(dir string) error {
	d, err := os.Open(dir) // #nosec G304 -- operator-configured journal dir.
	if err != nil {
		return err
	}
	if err := d.Sync(); err != nil {
		_ = d.Close()
		return err
	}
	return d.Close()
}
