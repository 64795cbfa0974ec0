package squashfs

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"strings"
	"sync/atomic"
)

// Inode is a decoded SquashFS inode: one of the 14 basic/extended
// variants described by Type. Kept as a single flattened struct (rather
// than 14 distinct Go types) the way the teacher's inode.go does it —
// fields that don't apply to a given Type are simply left at their zero
// value, except XattrIdx, which variants without an xattr field set to
// the noXattr sentinel.
type Inode struct {
	// refcnt is first to keep 64-bit alignment for sync/atomic on 32-bit
	// platforms.
	refcnt uint64

	sb *Superblock

	Type    Type
	Perm    uint16
	UidIdx  uint16
	GidIdx  uint16
	ModTime int32
	Ino     uint32

	StartBlock uint64
	NLink      uint32
	Size       uint64
	Offset     uint32
	ParentIno  uint32
	SymTarget  []byte
	IdxCount   uint16
	XattrIdx   uint32
	Sparse     uint64
	Rdev       uint32
	Index      []DirIndexEntry

	FragBlock uint32
	FragOfft  uint32

	Blocks     []uint32
	BlocksOfft []uint64
}

// noXattr is the sentinel XattrIdx value meaning "no extended attributes".
const noXattr = 0xffffffff

// noFragment is the sentinel FragBlock value meaning "file has no
// trailing fragment; its last data block is a full block".
const noFragment = 0xffffffff

// GetInode resolves an inode number (as seen in directory entries, xattr
// owners, and the root) into a decoded Inode. Inode 1 always means the
// archive root, matching the teacher's convention of storing the real
// root inode number separately and reversing the mapping on lookup.
func (sb *Superblock) GetInode(ino uint64) (*Inode, error) {
	if ino == 1 {
		return sb.rootIno, nil
	}
	if sb.rootIno != nil && ino == sb.rootInoN {
		ino = 1
		return sb.rootIno, nil
	}

	sb.inoMu.RLock()
	inor, ok := sb.inoIdx[uint32(ino)]
	sb.inoMu.RUnlock()
	if ok {
		return sb.GetInodeRef(inor)
	}

	inor, err := sb.lookupExport(uint32(ino))
	if err != nil {
		return nil, err
	}
	return sb.GetInodeRef(inor)
}

// lookupExport resolves ino through the NFS export table, serialized on
// its own mutex so it never needs to re-enter inoMu.
func (sb *Superblock) lookupExport(ino uint32) (inodeRef, error) {
	sb.exportMu.Lock()
	defer sb.exportMu.Unlock()

	if sb.exportTried && sb.exportErr != nil {
		// the archive has no export table at all; every lookup fails the
		// same way, so skip re-reading the header each time.
		return 0, sb.exportErr
	}

	inor, err := sb.exportInodeRef(ino)
	if err != nil {
		if !sb.exportTried {
			sb.exportTried = true
			if errors.Is(err, ErrNoExportTable) {
				sb.exportErr = fmt.Errorf("%w: %s", ErrInodeNotExported, err)
			}
		}
		return 0, fmt.Errorf("%w: %s", ErrInodeNotExported, err)
	}
	sb.exportTried = true

	sb.inoMu.Lock()
	sb.inoIdx[ino] = inor
	sb.inoMu.Unlock()
	return inor, nil
}

func (sb *Superblock) setInodeRefCache(ino uint32, ref inodeRef) {
	sb.inoMu.Lock()
	sb.inoIdx[ino] = ref
	sb.inoMu.Unlock()
}

// GetInodeRef decodes the inode at the given inode-table address.
func (sb *Superblock) GetInodeRef(inor inodeRef) (*Inode, error) {
	r, err := sb.newInodeReader(inor)
	if err != nil {
		return nil, err
	}

	ino := &Inode{sb: sb}

	for _, f := range []any{&ino.Type, &ino.Perm, &ino.UidIdx, &ino.GidIdx, &ino.ModTime, &ino.Ino} {
		if err := binary.Read(r, sb.order, f); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrCorrupt, err)
		}
	}

	switch ino.Type {
	case DirType:
		if err := readFields(r, sb.order,
			&u32Field{&ino.StartBlock}, &ino.NLink, &u16Field{&ino.Size}, &u16Field{&ino.Offset}, &ino.ParentIno,
		); err != nil {
			return nil, err
		}
		ino.XattrIdx = noXattr
	case XDirType:
		if err := readFields(r, sb.order,
			&ino.NLink, &u32Field{&ino.Size}, &u32Field{&ino.StartBlock}, &ino.ParentIno,
			&ino.IdxCount, &u16Field{&ino.Offset}, &ino.XattrIdx,
		); err != nil {
			return nil, err
		}
		if ino.IdxCount > 0 {
			idx, err := readDirIndex(r, sb.order, int(ino.IdxCount))
			if err != nil {
				return nil, err
			}
			ino.Index = idx
		}
	case FileType:
		if err := readFields(r, sb.order, &u32Field{&ino.StartBlock}, &ino.FragBlock, &ino.FragOfft, &u32Field{&ino.Size}); err != nil {
			return nil, err
		}
		ino.XattrIdx = noXattr
		if err := sb.readBlockList(r, ino); err != nil {
			return nil, err
		}
	case XFileType:
		if err := readFields(r, sb.order, &ino.StartBlock, &ino.Size, &ino.Sparse, &ino.NLink, &ino.FragBlock, &ino.FragOfft, &ino.XattrIdx); err != nil {
			return nil, err
		}
		if err := sb.readBlockList(r, ino); err != nil {
			return nil, err
		}
	case SymlinkType, XSymlinkType:
		if err := binary.Read(r, sb.order, &ino.NLink); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrCorrupt, err)
		}
		var tlen uint32
		if err := binary.Read(r, sb.order, &tlen); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrCorrupt, err)
		}
		if tlen > 4096 {
			return nil, fmt.Errorf("%w: symlink target length %d implausible", ErrCorrupt, tlen)
		}
		ino.Size = uint64(tlen)
		buf := make([]byte, tlen)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrCorrupt, err)
		}
		ino.SymTarget = buf
		ino.XattrIdx = noXattr
		if ino.Type == XSymlinkType {
			if err := binary.Read(r, sb.order, &ino.XattrIdx); err != nil {
				return nil, fmt.Errorf("%w: %s", ErrCorrupt, err)
			}
		}
	case BlockDevType, CharDevType:
		if err := readFields(r, sb.order, &ino.NLink, &ino.Rdev); err != nil {
			return nil, err
		}
		ino.XattrIdx = noXattr
	case XBlockDevType, XCharDevType:
		if err := readFields(r, sb.order, &ino.NLink, &ino.Rdev, &ino.XattrIdx); err != nil {
			return nil, err
		}
	case FifoType, SocketType:
		if err := binary.Read(r, sb.order, &ino.NLink); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrCorrupt, err)
		}
		ino.XattrIdx = noXattr
	case XFifoType, XSocketType:
		if err := readFields(r, sb.order, &ino.NLink, &ino.XattrIdx); err != nil {
			return nil, err
		}
	default:
		log.Printf("squashfs: unsupported inode type %d", ino.Type)
		return nil, fmt.Errorf("%w: unsupported inode type %d", ErrCorrupt, ino.Type)
	}

	return ino, nil
}

// u32Field and u16Field adapt a narrower on-disk integer into a wider Go
// field, for the handful of inode fields whose storage width differs
// between basic and extended variants (file size/offset/start-block).
type u32Field struct{ dst *uint64 }
type u16Field struct{ dst any }

// readFields decodes each field in order via binary.Read, routing u32Field
// and u16Field through their narrower on-disk representation.
func readFields(r io.Reader, order binary.ByteOrder, fields ...any) error {
	for _, f := range fields {
		switch v := f.(type) {
		case *u32Field:
			var u32 uint32
			if err := binary.Read(r, order, &u32); err != nil {
				return fmt.Errorf("%w: %s", ErrCorrupt, err)
			}
			*v.dst = uint64(u32)
		case *u16Field:
			var u16 uint16
			if err := binary.Read(r, order, &u16); err != nil {
				return fmt.Errorf("%w: %s", ErrCorrupt, err)
			}
			switch dst := v.dst.(type) {
			case *uint64:
				*dst = uint64(u16)
			case *uint32:
				*dst = uint32(u16)
			}
		default:
			if err := binary.Read(r, order, f); err != nil {
				return fmt.Errorf("%w: %s", ErrCorrupt, err)
			}
		}
	}
	return nil
}

// readBlockList decodes a file inode's trailing array of per-block
// compressed sizes, the same arithmetic the teacher duplicated for basic
// and extended files (`offt += uint64(u32) & 0xffffff`: the low 24 bits
// are the on-disk size, bit 24 is the uncompressed flag).
func (sb *Superblock) readBlockList(r io.Reader, ino *Inode) error {
	blocks := int(ino.Size / uint64(sb.BlockSize))
	if ino.FragBlock == noFragment && ino.Size%uint64(sb.BlockSize) != 0 {
		blocks++
	}

	ino.Blocks = make([]uint32, blocks)
	ino.BlocksOfft = make([]uint64, blocks)

	var offt uint64
	for i := 0; i < blocks; i++ {
		var u32 uint32
		if err := binary.Read(r, sb.order, &u32); err != nil {
			return fmt.Errorf("%w: %s", ErrCorrupt, err)
		}
		ino.Blocks[i] = u32
		ino.BlocksOfft[i] = offt
		offt += uint64(u32) & 0xffffff
	}
	return nil
}

// ReadAt implements io.ReaderAt over a regular file's decoded content,
// built atop the forward-only FileContentIterator (content.go) so random
// access and sequential access share one decoding path.
func (i *Inode) ReadAt(p []byte, off int64) (int, error) {
	if i.Type.Basic() != FileType {
		return 0, ErrNotAFile
	}
	if uint64(off) >= i.Size {
		return 0, io.EOF
	}
	if uint64(off)+uint64(len(p)) > i.Size {
		p = p[:i.Size-uint64(off)]
	}

	it := newFileContentIterator(i)
	n := 0
	for len(p) > 0 {
		chunk, err := it.next(off + int64(n))
		if err != nil {
			return n, err
		}
		c := copy(p, chunk)
		n += c
		p = p[c:]
	}
	return n, nil
}

// LookupRelativeInode resolves a single path component against a
// directory inode.
func (i *Inode) LookupRelativeInode(ctx context.Context, name string) (*Inode, error) {
	if !i.IsDir() {
		return nil, ErrNotDirectory
	}

	dr, err := i.sb.dirReader(i, bestDirIndexEntry(i.Index, name))
	if err != nil {
		return nil, err
	}
	for {
		ename, inoR, err := dr.next()
		if err != nil {
			if err == io.EOF {
				return nil, ErrNoSuchEntry
			}
			return nil, err
		}
		if name == ename {
			found, err := i.sb.GetInodeRef(inoR)
			if err != nil {
				return nil, err
			}
			i.sb.setInodeRefCache(found.Ino, inoR)
			return found, nil
		}
	}
}

// LookupRelativeInodePath resolves a slash-separated relative path
// against a directory inode, without following symlinks (see path.go's
// Resolve for symlink-aware resolution).
func (i *Inode) LookupRelativeInodePath(ctx context.Context, name string) (*Inode, error) {
	cur := i
	for {
		if len(name) == 0 {
			return cur, nil
		}
		pos := strings.IndexByte(name, '/')
		if pos == -1 {
			return cur.LookupRelativeInode(ctx, name)
		}
		if pos == 0 {
			name = name[1:]
			continue
		}
		next, err := cur.LookupRelativeInode(ctx, name[:pos])
		if err != nil {
			return nil, err
		}
		cur = next
		name = name[pos+1:]
	}
}

// Mode returns the fs.FileMode (permissions and type bits) for this inode.
func (i *Inode) Mode() fs.FileMode {
	return UnixToMode(uint32(i.Perm)) | i.Type.Mode()
}

// IsDir reports whether this inode is a directory (basic or extended).
func (i *Inode) IsDir() bool {
	return i.Type.IsDir()
}

// Readlink returns a symlink's target path.
func (i *Inode) Readlink() ([]byte, error) {
	if !i.Type.IsSymlink() {
		return nil, ErrNotASymlink
	}
	return i.SymTarget, nil
}

// HasXattr reports whether this inode carries an extended attribute set.
func (i *Inode) HasXattr() bool {
	return i.XattrIdx != noXattr
}

// Uid resolves this inode's owning user id through the id table.
func (i *Inode) Uid() (uint32, error) {
	return i.sb.id(i.UidIdx)
}

// Gid resolves this inode's owning group id through the id table.
func (i *Inode) Gid() (uint32, error) {
	return i.sb.id(i.GidIdx)
}

func (i *Inode) AddRef(count uint64) uint64 {
	return atomic.AddUint64(&i.refcnt, count)
}

func (i *Inode) DelRef(count uint64) uint64 {
	return atomic.AddUint64(&i.refcnt, ^(count - 1))
}
