package safepath

import (
	"archive/tar"
	"archive/zip"
	"compress/bzip2"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ExtractOptions configures safe_extract's behavior.
type ExtractOptions struct {
	MaxFiles             int
	MaxExtractedBytes    int64
	MaxCompressionRatio   float64
	AllowSymlinks         bool
	BombToleranceFactor   float64 // default 1.1: abort if written > declared*factor
}

// DefaultExtractOptions returns the conservative default guard settings.
func DefaultExtractOptions() ExtractOptions {
	return ExtractOptions{
		MaxFiles:            10000,
		MaxExtractedBytes:   10 * 1024 * 1024 * 1024,
		MaxCompressionRatio: 100,
		AllowSymlinks:       false,
		BombToleranceFactor: 1.1,
	}
}

// ExtractArchive dispatches on file extension and safely extracts zip or
// tar(.gz/.bz2) archives to dest, enforcing every safety guard:
// path traversal, symlinks/hardlinks/device files, member count, and
// compression ratio. A .tar.xz archive is not extracted: it fails with a
// DecompressionBombError, since no xz decoder is present. dest is created
// if it does not exist. On any guard failure the
// function returns before any member it hasn't already validated is
// written, and the caller is expected to discard dest if the error is
// fatal (callers of this package typically extract into a fresh temp dir).
func ExtractArchive(archivePath, dest string, opt ExtractOptions) error {
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return err
	}
	lower := strings.ToLower(archivePath)
	switch {
	case strings.HasSuffix(lower, ".zip"):
		return extractZip(archivePath, dest, opt)
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return extractTar(archivePath, dest, opt, "gz")
	case strings.HasSuffix(lower, ".tar.bz2"), strings.HasSuffix(lower, ".tbz2"):
		return extractTar(archivePath, dest, opt, "bz2")
	case strings.HasSuffix(lower, ".tar.xz"):
		return extractTar(archivePath, dest, opt, "xz")
	case strings.HasSuffix(lower, ".tar"):
		return extractTar(archivePath, dest, opt, "")
	default:
		return extractTar(archivePath, dest, opt, "")
	}
}

func extractZip(archivePath, dest string, opt ExtractOptions) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return err
	}
	defer r.Close()

	if len(r.File) > opt.MaxFiles {
		return &TooManyMembersError{Count: len(r.File), Max: opt.MaxFiles}
	}

	var totalDeclared, totalWritten int64
	for _, f := range r.File {
		totalDeclared += int64(f.UncompressedSize64)
	}
	if totalDeclared > 0 && float64(totalDeclared)/float64(max64(1, sumCompressedSize(r.File))) > opt.MaxCompressionRatio {
		return &DecompressionBombError{Reason: "archive-wide compression ratio exceeds limit"}
	}
	if totalDeclared > opt.MaxExtractedBytes {
		return &DecompressionBombError{Reason: "declared total uncompressed size exceeds limit"}
	}

	for _, f := range r.File {
		mode := f.Mode()
		if mode&os.ModeSymlink != 0 {
			if !opt.AllowSymlinks {
				return &SymlinkError{Member: f.Name, Reason: "symlinks rejected by policy"}
			}
		}
		if !mode.IsRegular() && !mode.IsDir() && mode&os.ModeSymlink == 0 {
			return &SymlinkError{Member: f.Name, Reason: "device/special file rejected"}
		}

		target, err := SafeJoin(dest, f.Name)
		if err != nil {
			return err
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}

		rc, err := f.Open()
		if err != nil {
			return err
		}
		written, err := streamWithBombGuard(rc, target, int64(f.UncompressedSize64), opt.BombToleranceFactor)
		rc.Close()
		if err != nil {
			return err
		}
		totalWritten += written
		if totalWritten > opt.MaxExtractedBytes {
			return &DecompressionBombError{Reason: "total written bytes exceed MaxExtractedBytes"}
		}
	}
	return nil
}

func sumCompressedSize(files []*zip.File) int64 {
	var total int64
	for _, f := range files {
		total += int64(f.CompressedSize64)
	}
	return total
}

func extractTar(archivePath, dest string, opt ExtractOptions, comp string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return err
	}

	var r io.Reader = f
	switch comp {
	case "gz":
		gz, err := gzip.NewReader(f)
		if err != nil {
			return err
		}
		defer gz.Close()
		r = gz
	case "bz2":
		r = bzip2.NewReader(f)
	case "xz":
		// xz support requires an external decoder; this module does not
		// vendor one. Treat as an unrecognized/unsupported compression
		// rather than silently reading raw bytes as a tar stream.
		return &DecompressionBombError{Reason: "xz decompression is not supported by this build"}
	}

	tr := tar.NewReader(r)
	var count int
	var totalWritten int64
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		count++
		if count > opt.MaxFiles {
			return &TooManyMembersError{Count: count, Max: opt.MaxFiles}
		}

		switch hdr.Typeflag {
		case tar.TypeSymlink, tar.TypeLink:
			if !opt.AllowSymlinks {
				return &SymlinkError{Member: hdr.Name, Reason: "symlinks rejected by policy"}
			}
			linkTarget, err := SafeJoin(dest, hdr.Linkname)
			if err != nil {
				return &SymlinkError{Member: hdr.Name, Reason: "link target escapes destination"}
			}
			_ = linkTarget
			continue
		case tar.TypeChar, tar.TypeBlock, tar.TypeFifo:
			return &SymlinkError{Member: hdr.Name, Reason: "device file rejected"}
		}

		target, err := SafeJoin(dest, hdr.Name)
		if err != nil {
			return err
		}

		if hdr.Typeflag == tar.TypeDir {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		written, err := streamWithBombGuard(tr, target, hdr.Size, opt.BombToleranceFactor)
		if err != nil {
			return err
		}
		totalWritten += written
		if totalWritten > opt.MaxExtractedBytes {
			return &DecompressionBombError{Reason: "total written bytes exceed MaxExtractedBytes"}
		}
		if float64(totalWritten)/float64(max64(1, fi.Size())) > opt.MaxCompressionRatio {
			return &DecompressionBombError{Reason: "archive-wide compression ratio exceeds limit"}
		}
	}
	return nil
}

// streamWithBombGuard copies src into a newly created file at target,
// aborting with DecompressionBombError if written bytes exceed
// declaredSize*tolerance (member exceeds its declared size by more than 10%).
// declaredSize == 0 is treated as "unknown": only the caller's overall
// MaxExtractedBytes cap applies.
func streamWithBombGuard(src io.Reader, target string, declaredSize int64, tolerance float64) (int64, error) {
	out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, err
	}
	defer out.Close()

	var limit int64 = -1
	if declaredSize > 0 {
		limit = int64(float64(declaredSize) * tolerance)
	}

	buf := make([]byte, 1<<20)
	var written int64
	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			written += int64(n)
			if limit >= 0 && written > limit {
				return written, &DecompressionBombError{Reason: "member exceeded declared size by more than tolerance"}
			}
			if _, werr := out.Write(buf[:n]); werr != nil {
				return written, werr
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return written, rerr
		}
	}
	return written, nil
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
