// Package archive unpacks package code archives.
package archive

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// DefaultMaxBytes bounds the total size of files extracted from one archive.
const DefaultMaxBytes = 512 << 20

// ErrTooLarge is returned when an archive expands beyond Options.MaxBytes.
var ErrTooLarge = errors.New("archive exceeds size limit")

// Options controls extraction.
type Options struct {
	// StripComponents drops that many leading path elements from every
	// entry, like tar --strip-components. Entries with fewer are skipped.
	StripComponents int

	// MaxBytes bounds the extracted size (0 means DefaultMaxBytes)
	MaxBytes int64
}

// ExtractTarGz unpacks a gzip compressed tarball into dest, which must
// exist. Entries that would land outside dest are rejected.
func ExtractTarGz(ctx context.Context, r io.Reader, dest string, opts Options) error {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return fmt.Errorf("open gzip stream: %w", err)
	}
	defer func() { _ = zr.Close() }()

	return ExtractTar(ctx, zr, dest, opts)
}

// ExtractTar unpacks an uncompressed tarball into dest.
func ExtractTar(ctx context.Context, r io.Reader, dest string, opts Options) error {
	limit := opts.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxBytes
	}

	tr := tar.NewReader(r)
	var written int64
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read archive: %w", err)
		}

		name, ok, err := entryPath(header.Name, opts.StripComponents)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		target := filepath.Join(dest, filepath.FromSlash(name))

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("create directory %s: %w", name, err)
			}

		case tar.TypeReg:
			if written+header.Size > limit {
				return fmt.Errorf("%s: %w", name, ErrTooLarge)
			}
			n, err := writeFile(target, tr, header.FileInfo().Mode().Perm())
			written += n
			if err != nil {
				return fmt.Errorf("extract %s: %w", name, err)
			}

		case tar.TypeSymlink:
			resolved := path.Join(path.Dir(name), header.Linkname)
			if path.IsAbs(header.Linkname) || !filepath.IsLocal(filepath.FromSlash(resolved)) {
				return fmt.Errorf("symlink %s points outside the archive", name)
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			if err := os.Symlink(header.Linkname, target); err != nil {
				return fmt.Errorf("create symlink %s: %w", name, err)
			}

		default:
			// Hard links, devices and pax global headers are not used by
			// package archives.
		}
	}
}

func writeFile(target string, r io.Reader, perm os.FileMode) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return 0, err
	}
	// Archives from some publishers carry 0000 modes.
	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm|0o644)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(f, r)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	return n, err
}

// entryPath cleans an archive path and removes strip leading elements.
// It reports false for entries that strip away entirely.
func entryPath(name string, strip int) (string, bool, error) {
	clean := strings.TrimPrefix(path.Clean(strings.ReplaceAll(name, "\\", "/")), "/")
	if clean == "" || clean == "." {
		return "", false, nil
	}
	if !filepath.IsLocal(filepath.FromSlash(clean)) {
		return "", false, fmt.Errorf("entry %q escapes the destination directory", name)
	}

	parts := strings.Split(clean, "/")
	if len(parts) <= strip {
		return "", false, nil
	}
	return strings.Join(parts[strip:], "/"), true, nil
}
