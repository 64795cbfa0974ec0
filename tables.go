package squashfs

import (
	"encoding/binary"
	"fmt"
)

// Every SquashFS indirection table (id, fragment, export, xattr) shares
// the same two-level shape: an array of 8-byte pointers to metadata
// blocks, each block packed with fixed-size records. page() generalizes
// the inline arithmetic the teacher duplicated in Inode.ReadAt for the
// fragment table alone (`sub := int64(i.FragBlock) / 512 * 8`,
// `int(i.FragBlock%512)*16`) into one helper shared by all four tables.
func (sb *Superblock) page(tableStart uint64, index int, recordSize int) (*MetablockReader, error) {
	perBlock := metablockMaxSize / recordSize
	block := index / perBlock
	inner := (index % perBlock) * recordSize

	ptr := make([]byte, 8)
	if err := sb.readAt(ptr, int64(tableStart)+int64(block)*8); err != nil {
		return nil, err
	}
	blockStart := sb.order.Uint64(ptr)

	return sb.newMetablockReader(int64(blockStart), inner)
}

// fragmentEntry is one 16-byte record in the fragment table: a data block
// start address and its on-disk size (low 24 bits; bit 24 set means
// uncompressed).
type fragmentEntry struct {
	Start uint64
	Size  uint32
}

func (sb *Superblock) fragmentEntry(idx uint32) (fragmentEntry, error) {
	if sb.FragTableStart == 0xffffffffffffffff || sb.FragCount == 0 {
		return fragmentEntry{}, ErrNoFragmentTable
	}
	r, err := sb.page(sb.FragTableStart, int(idx), 16)
	if err != nil {
		return fragmentEntry{}, err
	}
	var e fragmentEntry
	if err := binary.Read(r, sb.order, &e.Start); err != nil {
		return fragmentEntry{}, err
	}
	if err := binary.Read(r, sb.order, &e.Size); err != nil {
		return fragmentEntry{}, err
	}
	return e, nil
}

// id resolves a uid/gid table index (as stored in an inode's UidIdx or
// GidIdx) into the 32-bit id it represents.
func (sb *Superblock) id(idx uint16) (uint32, error) {
	if int(idx) >= int(sb.IdCount) {
		return 0, fmt.Errorf("%w: id index %d out of range (count=%d)", ErrCorrupt, idx, sb.IdCount)
	}
	r, err := sb.page(sb.IdTableStart, int(idx), 4)
	if err != nil {
		return 0, err
	}
	var v uint32
	if err := binary.Read(r, sb.order, &v); err != nil {
		return 0, err
	}
	return v, nil
}

// exportInodeRef resolves an inode number (1-based) into its inodeRef via
// the NFS export table, which the archive may or may not carry
// (ExportTableStart is 0xffffffffffffffff when absent).
func (sb *Superblock) exportInodeRef(ino uint32) (inodeRef, error) {
	if sb.ExportTableStart == 0xffffffffffffffff {
		return 0, ErrNoExportTable
	}
	r, err := sb.page(sb.ExportTableStart, int(ino-1), 8)
	if err != nil {
		return 0, err
	}
	var v uint64
	if err := binary.Read(r, sb.order, &v); err != nil {
		return 0, err
	}
	return inodeRef(v), nil
}

// xattrIDEntry is one 16-byte record in the xattr id table, indexed by an
// inode's XattrIdx.
type xattrIDEntry struct {
	XattrRef uint64
	Count    uint32
	Size     uint32
}

// xattrTableHeader precedes the xattr id table's index pointers.
type xattrTableHeader struct {
	XattrTableStart uint64
	XattrIds        uint32
	Unused          uint32
}

func (sb *Superblock) xattrHeader() (xattrTableHeader, error) {
	if sb.XattrIdTableStart == 0xffffffffffffffff {
		return xattrTableHeader{}, ErrNoXattr
	}
	buf := make([]byte, 16)
	if err := sb.readAt(buf, int64(sb.XattrIdTableStart)); err != nil {
		return xattrTableHeader{}, err
	}
	var h xattrTableHeader
	h.XattrTableStart = sb.order.Uint64(buf[0:8])
	h.XattrIds = sb.order.Uint32(buf[8:12])
	h.Unused = sb.order.Uint32(buf[12:16])
	return h, nil
}

func (sb *Superblock) xattrIDEntryAt(h xattrTableHeader, idx uint32) (xattrIDEntry, error) {
	if idx >= h.XattrIds {
		return xattrIDEntry{}, fmt.Errorf("%w: xattr id %d out of range (count=%d)", ErrCorrupt, idx, h.XattrIds)
	}
	// the id table's own index-of-pointers sits right after the 16-byte
	// header, addressed the same way as the other indirection tables.
	r, err := sb.page(sb.XattrIdTableStart+16, int(idx), 16)
	if err != nil {
		return xattrIDEntry{}, err
	}
	var e xattrIDEntry
	if err := binary.Read(r, sb.order, &e.XattrRef); err != nil {
		return xattrIDEntry{}, err
	}
	if err := binary.Read(r, sb.order, &e.Count); err != nil {
		return xattrIDEntry{}, err
	}
	if err := binary.Read(r, sb.order, &e.Size); err != nil {
		return xattrIDEntry{}, err
	}
	return e, nil
}
