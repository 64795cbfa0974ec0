package squashfs

import (
	"encoding/binary"
	"fmt"
	"io"
)

// xattrOOLFlag marks an xattr entry's type field as carrying an
// out-of-line value: instead of the value bytes following inline, an
// 8-byte reference points elsewhere in the xattr value table.
const xattrOOLFlag = 0x100

// XattrEntry is one decoded extended attribute: its prefix-qualified name
// (e.g. "user.comment") and value.
type XattrEntry struct {
	Name  string
	Value []byte
}

// xattrPrefixes mirrors the fixed prefix table every SquashFS xattr type
// low byte indexes into.
var xattrPrefixes = []string{
	"user.",
	"trusted.",
	"security.",
}

// XattrIterator walks the extended attribute set attached to an inode.
// New component: the teacher never reads xattrs at all.
type XattrIterator struct {
	sb      *Superblock
	entries *MetablockReader
	count   uint32
	header  xattrTableHeader
}

// Xattrs returns an iterator over ino's extended attributes, or
// ErrNoXattr if the inode has none.
func (sb *Superblock) Xattrs(ino *Inode) (*XattrIterator, error) {
	if !ino.HasXattr() {
		return nil, ErrNoXattr
	}

	h, err := sb.xattrHeader()
	if err != nil {
		return nil, err
	}
	id, err := sb.xattrIDEntryAt(h, ino.XattrIdx)
	if err != nil {
		return nil, err
	}

	ref := inodeRef(id.XattrRef)
	r, err := sb.newMetablockReader(int64(h.XattrTableStart)+int64(ref.Index()), int(ref.Offset()))
	if err != nil {
		return nil, err
	}

	return &XattrIterator{sb: sb, entries: r, count: id.Count, header: h}, nil
}

// Next decodes the next xattr entry. It returns io.EOF once every entry
// in the set has been consumed.
func (it *XattrIterator) Next() (XattrEntry, error) {
	if it.count == 0 {
		return XattrEntry{}, io.EOF
	}
	it.count--

	var typ, nameLen uint16
	if err := binary.Read(it.entries, it.sb.order, &typ); err != nil {
		return XattrEntry{}, fmt.Errorf("%w: %s", ErrCorrupt, err)
	}
	if err := binary.Read(it.entries, it.sb.order, &nameLen); err != nil {
		return XattrEntry{}, fmt.Errorf("%w: %s", ErrCorrupt, err)
	}

	nameBuf := make([]byte, nameLen)
	if _, err := io.ReadFull(it.entries, nameBuf); err != nil {
		return XattrEntry{}, fmt.Errorf("%w: %s", ErrCorrupt, err)
	}

	prefix := ""
	if idx := int(typ &^ xattrOOLFlag); idx < len(xattrPrefixes) {
		prefix = xattrPrefixes[idx]
	}
	name := prefix + string(nameBuf)

	var vsize uint32
	if err := binary.Read(it.entries, it.sb.order, &vsize); err != nil {
		return XattrEntry{}, fmt.Errorf("%w: %s", ErrCorrupt, err)
	}

	if typ&xattrOOLFlag == 0 {
		val := make([]byte, vsize)
		if _, err := io.ReadFull(it.entries, val); err != nil {
			return XattrEntry{}, fmt.Errorf("%w: %s", ErrCorrupt, err)
		}
		return XattrEntry{Name: name, Value: val}, nil
	}

	// out-of-line value: vsize is the 8-byte reference's own size (8),
	// immediately followed in the stream by the reference itself.
	var ref uint64
	if err := binary.Read(it.entries, it.sb.order, &ref); err != nil {
		return XattrEntry{}, fmt.Errorf("%w: %s", ErrCorrupt, err)
	}

	oolRef := inodeRef(ref)
	vr, err := it.sb.newMetablockReader(int64(it.header.XattrTableStart)+int64(oolRef.Index()), int(oolRef.Offset()))
	if err != nil {
		return XattrEntry{}, err
	}
	var realSize uint32
	if err := binary.Read(vr, it.sb.order, &realSize); err != nil {
		return XattrEntry{}, fmt.Errorf("%w: %s", ErrCorrupt, err)
	}
	val := make([]byte, realSize)
	if _, err := io.ReadFull(vr, val); err != nil {
		return XattrEntry{}, fmt.Errorf("%w: %s", ErrCorrupt, err)
	}

	return XattrEntry{Name: name, Value: val}, nil
}

// Lookup scans the remaining entries for fullname (e.g. "user.comment"),
// returning ErrNoSuchEntry if it isn't present.
func (it *XattrIterator) Lookup(fullname string) (XattrEntry, error) {
	for {
		e, err := it.Next()
		if err != nil {
			if err == io.EOF {
				return XattrEntry{}, ErrNoSuchEntry
			}
			return XattrEntry{}, err
		}
		if e.Name == fullname {
			return e, nil
		}
	}
}
