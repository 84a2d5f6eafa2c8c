package safepath

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"
)

func TestExtractZipSlipRejected(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "evil.zip")
	f, err := os.Create(archivePath)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	w, err := zw.Create("../../etc/passwd")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte("root:x:0:0\n")); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	f.Close()

	dest := filepath.Join(dir, "dest")
	err = ExtractArchive(archivePath, dest, DefaultExtractOptions())
	if err == nil {
		t.Fatalf("expected path traversal error")
	}
	if _, ok := err.(*PathTraversalError); !ok {
		t.Fatalf("expected *PathTraversalError, got %T: %v", err, err)
	}

	entries, _ := os.ReadDir(dest)
	if len(entries) != 0 {
		t.Fatalf("expected empty dest dir, found %d entries", len(entries))
	}
}

func TestExtractZipNormal(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "ok.zip")
	f, err := os.Create(archivePath)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	w, _ := zw.Create("data/file.txt")
	w.Write([]byte("hello"))
	zw.Close()
	f.Close()

	dest := filepath.Join(dir, "dest")
	if err := ExtractArchive(archivePath, dest, DefaultExtractOptions()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := os.ReadFile(filepath.Join(dest, "data", "file.txt"))
	if err != nil {
		t.Fatalf("extracted file missing: %v", err)
	}
	if string(b) != "hello" {
		t.Fatalf("unexpected content: %q", b)
	}
}

func TestSanitizeFilenameReservedNames(t *testing.T) {
	if got := SanitizeFilename("CON"); got != "_CON" {
		t.Fatalf("expected windows-reserved name to be prefixed, got %q", got)
	}
	if got := SanitizeFilename("../../x"); got == "../../x" {
		t.Fatalf("expected path separators to be stripped")
	}
}
