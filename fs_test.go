package squashfs_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io/fs"
	"os"
	"testing"

	"github.com/KarpelesLab/squashfs4"
)

// buildTreeArchive builds a small synthetic archive with a root directory
// holding a subdirectory ("sub/file.txt"), a symlink that resolves through
// it ("link" -> "sub/file.txt"), and a pair of mutually-referencing
// symlinks ("a" -> "b", "b" -> "a") to exercise cycle detection. As with
// archive_synthetic_test.go, every block is stored uncompressed since this
// repo has no real .squashfs fixtures to read symlink/nested-directory
// coverage from.
func buildTreeArchive(t *testing.T, content []byte) []byte {
	t.Helper()
	order := binary.LittleEndian

	const (
		blockSize = 131072
		blockLog  = 17
	)

	put := func(w *bytes.Buffer, v any) {
		if err := binary.Write(w, order, v); err != nil {
			t.Fatalf("buildTreeArchive: %s", err)
		}
	}

	var inodes bytes.Buffer

	// root directory (Ino=1)
	put(&inodes, uint16(1)) // DirType
	put(&inodes, uint16(0o755))
	put(&inodes, uint16(0))
	put(&inodes, uint16(0))
	put(&inodes, int32(0))
	put(&inodes, uint32(1))  // Ino
	put(&inodes, uint32(0))  // StartBlock: dir-table index
	put(&inodes, uint32(2))  // NLink
	rootSizeAt := inodes.Len()
	put(&inodes, uint16(0)) // Size: patched below
	put(&inodes, uint16(0)) // Offset: root listing starts at 0
	put(&inodes, uint32(1)) // ParentIno

	// sub directory (Ino=2)
	subOff := inodes.Len()
	put(&inodes, uint16(1))
	put(&inodes, uint16(0o755))
	put(&inodes, uint16(0))
	put(&inodes, uint16(0))
	put(&inodes, int32(0))
	put(&inodes, uint32(2))
	put(&inodes, uint32(0)) // StartBlock: dir-table index
	put(&inodes, uint32(2))
	subSizeAt := inodes.Len()
	put(&inodes, uint16(0)) // Size: patched below
	subOffsetAt := inodes.Len()
	put(&inodes, uint16(0)) // Offset: patched below
	put(&inodes, uint32(1)) // ParentIno

	// regular file sub/file.txt (Ino=3)
	fileOff := inodes.Len()
	put(&inodes, uint16(2)) // FileType
	put(&inodes, uint16(0o644))
	put(&inodes, uint16(0))
	put(&inodes, uint16(0))
	put(&inodes, int32(0))
	put(&inodes, uint32(3))
	startBlockFieldOffset := inodes.Len()
	put(&inodes, uint32(0)) // StartBlock: patched below
	put(&inodes, uint32(0xffffffff))
	put(&inodes, uint32(0))
	put(&inodes, uint32(len(content)))
	put(&inodes, uint32(len(content))|0x1000000)

	// symlink "link" -> "sub/file.txt" (Ino=5)
	linkOff := inodes.Len()
	target := []byte("sub/file.txt")
	put(&inodes, uint16(3)) // SymlinkType
	put(&inodes, uint16(0o777))
	put(&inodes, uint16(0))
	put(&inodes, uint16(0))
	put(&inodes, int32(0))
	put(&inodes, uint32(5))
	put(&inodes, uint32(1))
	put(&inodes, uint32(len(target)))
	inodes.Write(target)

	// symlink "a" -> "b" (Ino=6)
	aOff := inodes.Len()
	put(&inodes, uint16(3))
	put(&inodes, uint16(0o777))
	put(&inodes, uint16(0))
	put(&inodes, uint16(0))
	put(&inodes, int32(0))
	put(&inodes, uint32(6))
	put(&inodes, uint32(1))
	put(&inodes, uint32(1))
	inodes.WriteString("b")

	// symlink "b" -> "a" (Ino=7)
	bOff := inodes.Len()
	put(&inodes, uint16(3))
	put(&inodes, uint16(0o777))
	put(&inodes, uint16(0))
	put(&inodes, uint16(0))
	put(&inodes, int32(0))
	put(&inodes, uint32(7))
	put(&inodes, uint32(1))
	put(&inodes, uint32(1))
	inodes.WriteString("a")

	// root directory listing: sub, link, a, b
	var rootListing bytes.Buffer
	put(&rootListing, uint32(3)) // count-1: 4 entries
	put(&rootListing, uint32(0)) // startBlock: inode-table index
	put(&rootListing, uint32(0)) // header inodeNum (unused)
	dirEntry := func(w *bytes.Buffer, offset int, typ uint16, name string) {
		put(w, uint16(offset))
		put(w, int16(0))
		put(w, typ)
		put(w, uint16(len(name)-1))
		w.WriteString(name)
	}
	dirEntry(&rootListing, subOff, 1, "sub")
	dirEntry(&rootListing, linkOff, 3, "link")
	dirEntry(&rootListing, aOff, 3, "a")
	dirEntry(&rootListing, bOff, 3, "b")

	// sub directory listing: file.txt
	var subListing bytes.Buffer
	put(&subListing, uint32(0))
	put(&subListing, uint32(0))
	put(&subListing, uint32(0))
	dirEntry(&subListing, fileOff, 2, "file.txt")

	subListingOff := rootListing.Len()

	var dirPayload bytes.Buffer
	dirPayload.Write(rootListing.Bytes())
	dirPayload.Write(subListing.Bytes())

	// patch directory inode Size/Offset fields now that listing lengths
	// and offsets are known.
	inodeBytes := inodes.Bytes()
	order.PutUint16(inodeBytes[rootSizeAt:rootSizeAt+2], uint16(rootListing.Len()+3))
	order.PutUint16(inodeBytes[subSizeAt:subSizeAt+2], uint16(subListing.Len()+3))
	order.PutUint16(inodeBytes[subOffsetAt:subOffsetAt+2], uint16(subListingOff))

	var buf bytes.Buffer
	buf.Write(make([]byte, 96))

	inodeTableStart := int64(buf.Len())
	writeMetablock(t, &buf, inodes.Bytes())

	dirTableStart := int64(buf.Len())
	writeMetablock(t, &buf, dirPayload.Bytes())

	dataBlockStart := int64(buf.Len())
	buf.Write(content)

	idValueStart := int64(buf.Len())
	var idPayload bytes.Buffer
	put(&idPayload, uint32(0))
	writeMetablock(t, &buf, idPayload.Bytes())

	idTableStart := int64(buf.Len())
	put(&buf, uint64(idValueStart))

	out := buf.Bytes()

	startBlockAbs := int(inodeTableStart) + 2 + startBlockFieldOffset
	order.PutUint32(out[startBlockAbs:startBlockAbs+4], uint32(dataBlockStart))

	sb := out[:96]
	copy(sb[0:4], "hsqs")
	order.PutUint32(sb[4:8], 7) // InodeCnt
	order.PutUint32(sb[8:12], 0)
	order.PutUint32(sb[12:16], blockSize)
	order.PutUint32(sb[16:20], 0)
	order.PutUint16(sb[20:22], 1)
	order.PutUint16(sb[22:24], blockLog)
	order.PutUint16(sb[24:26], 0)
	order.PutUint16(sb[26:28], 1)
	order.PutUint16(sb[28:30], 4)
	order.PutUint16(sb[30:32], 0)
	order.PutUint64(sb[32:40], 0) // RootInode: index=0, offset=0
	order.PutUint64(sb[40:48], uint64(len(out)))
	order.PutUint64(sb[48:56], uint64(idTableStart))
	order.PutUint64(sb[56:64], 0xffffffffffffffff)
	order.PutUint64(sb[64:72], uint64(inodeTableStart))
	order.PutUint64(sb[72:80], uint64(dirTableStart))
	order.PutUint64(sb[80:88], 0xffffffffffffffff)
	order.PutUint64(sb[88:96], 0xffffffffffffffff)

	return out
}

func openTreeArchive(t *testing.T, content []byte) *squashfs.Archive {
	t.Helper()
	img := buildTreeArchive(t, content)

	f, err := os.CreateTemp(t.TempDir(), "synth-*.squashfs")
	if err != nil {
		t.Fatalf("failed to create temp file: %s", err)
	}
	if _, err := f.Write(img); err != nil {
		t.Fatalf("failed to write temp file: %s", err)
	}
	f.Close()

	a, err := squashfs.Open(f.Name())
	if err != nil {
		t.Fatalf("failed to open synthetic archive: %s", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func TestArchiveReadFileThroughSymlink(t *testing.T) {
	content := []byte("payload\n")
	a := openTreeArchive(t, content)

	data, err := fs.ReadFile(a, "sub/file.txt")
	if err != nil {
		t.Fatalf("failed to read sub/file.txt: %s", err)
	}
	if !bytes.Equal(data, content) {
		t.Errorf("got %q, want %q", data, content)
	}

	data, err = fs.ReadFile(a, "link")
	if err != nil {
		t.Fatalf("failed to read through symlink 'link': %s", err)
	}
	if !bytes.Equal(data, content) {
		t.Errorf("through symlink: got %q, want %q", data, content)
	}
}

func TestArchiveStatVsLstat(t *testing.T) {
	a := openTreeArchive(t, []byte("x"))

	st, err := a.Stat("link")
	if err != nil {
		t.Fatalf("failed to stat link: %s", err)
	}
	if st.IsDir() {
		t.Errorf("stat(link) should not report a directory")
	}

	lst, err := a.Lstat("link")
	if err != nil {
		t.Fatalf("failed to lstat link: %s", err)
	}
	if lst.Mode()&fs.ModeSymlink == 0 {
		t.Errorf("lstat(link) should report a symlink")
	}
}

func TestArchiveNotDirectoryError(t *testing.T) {
	a := openTreeArchive(t, []byte("x"))

	_, err := fs.ReadFile(a, "sub/file.txt/nope")
	if !errors.Is(err, squashfs.ErrNotDirectory) {
		t.Errorf("expected ErrNotDirectory, got %s", err)
	}
}

func TestArchiveTooManySymlinks(t *testing.T) {
	a := openTreeArchive(t, []byte("x"))

	_, err := a.FindInode("a", true)
	if !errors.Is(err, squashfs.ErrTooManySymlinks) {
		t.Errorf("expected ErrTooManySymlinks, got %s", err)
	}

	// lstat semantics (no follow) must still succeed on the cycle's entry.
	if _, err := a.FindInode("a", false); err != nil {
		t.Errorf("Lstat-style lookup of 'a' should not follow the cycle: %s", err)
	}
}

func TestArchiveReadDirAndSub(t *testing.T) {
	a := openTreeArchive(t, []byte("x"))

	entries, err := a.ReadDir("sub")
	if err != nil {
		t.Fatalf("failed to read directory 'sub': %s", err)
	}
	if len(entries) != 1 || entries[0].Name() != "file.txt" {
		t.Fatalf("unexpected entries in 'sub': %v", entries)
	}
	info, err := entries[0].Info()
	if err != nil {
		t.Fatalf("failed to get info for file.txt: %s", err)
	}
	if info.Name() != "file.txt" || info.IsDir() {
		t.Errorf("unexpected info for file.txt: name=%s isDir=%v", info.Name(), info.IsDir())
	}

	subFS, err := fs.Sub(a, "sub")
	if err != nil {
		t.Fatalf("failed to create sub-filesystem: %s", err)
	}
	data, err := fs.ReadFile(subFS, "file.txt")
	if err != nil {
		t.Fatalf("failed to read file.txt from sub-filesystem: %s", err)
	}
	if string(data) != "x" {
		t.Errorf("unexpected content from sub-filesystem: %q", data)
	}
}
