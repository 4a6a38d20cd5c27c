package batch

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"

	"github.com/spherical/scan-router/internal/domain"
)

// Archiver files processed source documents under a folder that mirrors
// their location below the source root.
type Archiver struct {
	dir  string
	move bool
}

// NewArchiver archives into dir. When move is false sources are copied and left in place.
func NewArchiver(dir string, move bool) *Archiver {
	return &Archiver{dir: dir, move: move}
}

// Destination returns where doc is archived.
func (a *Archiver) Destination(doc domain.Document) string {
	return filepath.Join(a.dir, doc.RelDir, filepath.Base(doc.Path))
}

// Archive moves or copies doc to its destination, replacing an existing file.
func (a *Archiver) Archive(doc domain.Document) (string, error) {
	if _, err := os.Stat(doc.Path); err != nil {
		return "", domain.WriteError(fmt.Sprintf("archive %s", doc.Path), err)
	}
	dest := a.Destination(doc)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", domain.WriteError(fmt.Sprintf("create archive folder for %s", doc.Path), err)
	}
	if err := os.Remove(dest); err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", domain.WriteError(fmt.Sprintf("replace archived %s", dest), err)
	}

	if !a.move {
		if err := copyFile(doc.Path, dest); err != nil {
			return "", domain.WriteError(fmt.Sprintf("copy %s to archive", doc.Path), err)
		}
		return dest, nil
	}

	err := os.Rename(doc.Path, dest)
	if errors.Is(err, syscall.EXDEV) {
		// Output root on another filesystem
		if err = copyFile(doc.Path, dest); err == nil {
			err = os.Remove(doc.Path)
		}
	}
	if err != nil {
		return "", domain.WriteError(fmt.Sprintf("move %s to archive", doc.Path), err)
	}
	return dest, nil
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
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
