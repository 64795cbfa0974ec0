package squashfs_test

import (
	"io"
	"io/fs"
	"testing"

	"github.com/KarpelesLab/squashfs4"
)

// TestCompression tests the String() method for compression types.
func TestCompression(t *testing.T) {
	compressionTypes := []squashfs.Compression{
		squashfs.GZip,
		squashfs.LZMA,
		squashfs.LZO,
		squashfs.XZ,
		squashfs.LZ4,
		squashfs.ZSTD,
	}

	expectedNames := []string{
		"GZip",
		"LZMA",
		"LZO",
		"XZ",
		"LZ4",
		"ZSTD",
	}

	for i, compType := range compressionTypes {
		if compType.String() != expectedNames[i] {
			t.Errorf("Expected compression type %d name to be %s, got %s",
				compType, expectedNames[i], compType.String())
		}
	}

	unknownType := squashfs.Compression(99)
	if unknownType.String() != "Compression(99)" {
		t.Errorf("Expected unknown compression type to be Compression(99), got %s", unknownType.String())
	}
}

// TestFileOperations exercises fs.FS-shaped access on a synthetic archive
// (ReadDir entries, opening a regular file, Stat on an open file, reading
// its content, and the not-found cases).
func TestFileOperations(t *testing.T) {
	a := openTreeArchive(t, []byte("contents of file.txt"))

	entries, err := a.ReadDir("sub")
	if err != nil {
		t.Fatalf("failed to read directory 'sub': %s", err)
	}
	if len(entries) < 1 {
		t.Fatalf("expected at least 1 entry in 'sub', got %d", len(entries))
	}
	for _, entry := range entries {
		name := entry.Name()
		info, err := entry.Info()
		if err != nil {
			t.Errorf("failed to get info for %s: %s", name, err)
			continue
		}
		if info.Name() != name {
			t.Errorf("info.Name() returned %s, expected %s", info.Name(), name)
		}
		if info.IsDir() != entry.IsDir() {
			t.Errorf("isDir mismatch for %s: entry.IsDir()=%v, info.IsDir()=%v", name, entry.IsDir(), info.IsDir())
		}
	}

	file, err := a.Open("sub/file.txt")
	if err != nil {
		t.Fatalf("failed to open sub/file.txt: %s", err)
	}
	defer file.Close()

	fileInfo, err := file.Stat()
	if err != nil {
		t.Fatalf("failed to get stat on open file: %s", err)
	} else if fileInfo.Name() != "file.txt" {
		t.Errorf("expected filename to be file.txt, got %s", fileInfo.Name())
	}

	buf := make([]byte, 100)
	n, err := file.Read(buf)
	if err != nil && err != io.EOF {
		t.Errorf("failed to read from file: %s", err)
	}
	if n == 0 {
		t.Errorf("read 0 bytes from file")
	}

	if _, err := a.ReadDir("nonexistent"); err == nil {
		t.Errorf("expected error when reading non-existent directory")
	}
	if _, err := a.Open("nonexistent/file.txt"); err == nil {
		t.Errorf("expected error when opening non-existent file")
	}
}

// TestInodeAttributes tests access to inode attributes on a synthetic
// archive.
func TestInodeAttributes(t *testing.T) {
	a := openTreeArchive(t, []byte("z"))

	ino, err := a.FindInode("sub/file.txt", false)
	if err != nil {
		t.Fatalf("failed to find sub/file.txt: %s", err)
	}
	t.Logf("UID: %d, GID: %d", ino.GetUid(), ino.GetGid())

	fileInfo, err := fs.Stat(a, "sub/file.txt")
	if err != nil {
		t.Fatalf("failed to stat sub/file.txt: %s", err)
	}
	mode := fileInfo.Mode()
	if mode.IsDir() {
		t.Errorf("sub/file.txt should not be a directory")
	}
	if !mode.IsRegular() {
		t.Errorf("sub/file.txt should be a regular file")
	}
	if mode&0400 == 0 {
		t.Errorf("sub/file.txt should have read permission")
	}
}

// TestErrorCases exercises a handful of error paths against a synthetic
// archive: invalid paths, reading a directory as a file, and missing
// entries.
func TestErrorCases(t *testing.T) {
	a := openTreeArchive(t, []byte("z"))

	if _, err := a.Open(".."); err == nil {
		t.Errorf("expected error opening invalid path '..'")
	}

	dir, err := a.Open("sub")
	if err != nil {
		t.Fatalf("failed to open directory: %s", err)
	}
	defer dir.Close()

	buf := make([]byte, 100)
	if _, err := dir.Read(buf); err == nil {
		t.Errorf("expected error reading from directory")
	}

	if _, err := fs.ReadFile(a, "sub/nonexistent.txt"); err == nil {
		t.Errorf("expected error reading non-existent file")
	}
}

// TestFileServerCompatibility verifies the interface shape http.FileServer
// expects out of an fs.FS, without starting a real server.
func TestFileServerCompatibility(t *testing.T) {
	a := openTreeArchive(t, []byte("z"))

	var fsys fs.FS = a
	var _ fs.StatFS = a

	if _, err := fs.Stat(fsys, "sub/file.txt"); err != nil {
		t.Errorf("fs.Stat failed: %s", err)
	}
	if _, err := fs.ReadDir(fsys, "sub"); err != nil {
		t.Errorf("fs.ReadDir failed: %s", err)
	}

	f, err := fsys.Open("sub/file.txt")
	if err != nil {
		t.Fatalf("Open failed: %s", err)
	}
	defer f.Close()

	if _, err := f.Stat(); err != nil {
		t.Errorf("file.Stat failed: %s", err)
	}

	buf := make([]byte, 100)
	if _, err := f.Read(buf); err != nil && err != io.EOF {
		t.Errorf("file.Read failed: %s", err)
	}

	if _, ok := f.(io.ReadSeeker); !ok {
		t.Errorf("file doesn't implement io.ReadSeeker interface")
	}
}
