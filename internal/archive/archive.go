package archive

import (
	"archive/zip"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// Extract expands the zip at zipPath into dst. Entries that would land
// outside dst are rejected.
func Extract(zipPath, dst string) error {
	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		return errors.Wrapf(err, "archive: open %s", zipPath)
	}
	defer zr.Close()

	root, err := filepath.Abs(dst)
	if err != nil {
		return errors.Wrapf(err, "archive: resolve %s", dst)
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return errors.Wrapf(err, "archive: create %s", root)
	}

	for _, f := range zr.File {
		target := filepath.Join(root, filepath.FromSlash(f.Name))
		if target != root && !strings.HasPrefix(target, root+string(os.PathSeparator)) {
			return errors.Errorf("archive: entry %q escapes %s", f.Name, dst)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return errors.Wrapf(err, "archive: create %s", target)
			}
			continue
		}
		if err := extractFile(f, target); err != nil {
			return err
		}
	}
	return nil
}

func extractFile(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return errors.Wrapf(err, "archive: create %s", filepath.Dir(target))
	}

	rc, err := f.Open()
	if err != nil {
		return errors.Wrapf(err, "archive: open entry %s", f.Name)
	}
	defer rc.Close()

	out, err := os.Create(target)
	if err != nil {
		return errors.Wrapf(err, "archive: create %s", target)
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return errors.Wrapf(err, "archive: extract %s", f.Name)
	}
	return errors.Wrapf(out.Close(), "archive: close %s", target)
}

// Zip writes every regular file under srcDir to w as a deflated archive, with
// slash-separated names relative to srcDir, in lexical order.
func Zip(srcDir string, w io.Writer) error {
	zw := zip.NewWriter(w)

	err := filepath.WalkDir(srcDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		return addFile(zw, path, filepath.ToSlash(rel))
	})
	if err != nil {
		zw.Close()
		return errors.Wrapf(err, "archive: zip %s", srcDir)
	}
	return errors.Wrap(zw.Close(), "archive: finish zip")
}

// ZipFile is Zip into a newly created file at dst.
func ZipFile(srcDir, dst string) error {
	f, err := os.Create(dst)
	if err != nil {
		return errors.Wrapf(err, "archive: create %s", dst)
	}
	if err := Zip(srcDir, f); err != nil {
		f.Close()
		return err
	}
	return errors.Wrapf(f.Close(), "archive: close %s", dst)
}

func addFile(zw *zip.Writer, path, name string) error {
	in, err := os.Open(path)
	if err != nil {
		return err
	}
	defer in.Close()

	w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
	if err != nil {
		return err
	}
	_, err = io.Copy(w, in)
	return err
}
