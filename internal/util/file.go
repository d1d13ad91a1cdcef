package util

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// CreateCBZ zips files, in the order given, into output. Entries keep their
// base names so readers sort them the same way.
func CreateCBZ(files []string, output string) (err error) {
	out, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("cbz: %w", err)
	}
	defer func() {
		err = errors.Join(err, out.Close())
	}()

	z := zip.NewWriter(out)
	defer func() {
		err = errors.Join(err, z.Close())
	}()

	for _, file := range files {
		if err := addFileToZip(z, file); err != nil {
			return fmt.Errorf("cbz %s: %w", filepath.Base(file), err)
		}
	}

	return nil
}

func addFileToZip(z *zip.Writer, file string) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}

	header.Name = filepath.Base(file)
	// images are already compressed
	header.Method = zip.Store

	w, err := z.CreateHeader(header)
	if err != nil {
		return err
	}

	_, err = io.Copy(w, f)
	return err
}
