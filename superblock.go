package squashfs

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"reflect"
	"sync"

	"github.com/KarpelesLab/squashfs4/internal/extract"
	"github.com/KarpelesLab/squashfs4/internal/mapper"
)

// superblockSize is the fixed, versioned on-disk header every SquashFS 4.0
// archive starts with.
const superblockSize = 96

// Superblock is the decoded archive header plus the live state (mapper,
// extract caches, decompressor, inode index) needed to service reads
// against it. Grounded on the teacher's Superblock, extended with the
// mapping/cache layers the teacher read directly through an io.ReaderAt.
type Superblock struct {
	m      mapper.Mapper
	order  binary.ByteOrder
	dec    decompressor
	config Config

	Magic             uint32
	InodeCnt          uint32
	ModTime           int32
	BlockSize         uint32
	FragCount         uint32
	Comp              Compression
	BlockLog          uint16
	Flags             Flags
	IdCount           uint16
	VMajor            uint16
	VMinor            uint16
	RootInode         uint64
	BytesUsed         uint64
	IdTableStart      uint64
	XattrIdTableStart uint64
	InodeTableStart   uint64
	DirTableStart     uint64
	FragTableStart    uint64
	ExportTableStart  uint64

	metaCache *extract.Manager
	dataCache *extract.Manager

	inoOfft  uint64
	rootIno  *Inode
	rootInoN uint64

	// inoMu guards inoIdx only. Lazily initializing the export table (on
	// first lookup of an inode number not yet in the index) happens under
	// its own exportMu instead of re-entering inoMu, so GetInode never
	// needs a recursive lock: it releases inoMu before the export-table
	// path resolves and caches further inodes.
	inoMu  sync.RWMutex
	inoIdx map[uint32]inodeRef

	exportMu    sync.Mutex
	exportTried bool
	exportErr   error
}

// New opens a SquashFS archive backed by a random-access source, using
// default Config values.
func New(fs io.ReaderAt) (*Superblock, error) {
	return OpenMapper(mapper.NewStatic(readerAtToBytes(fs)), DefaultConfig())
}

// readerAtToBytes is a compatibility shim for callers (and the teacher's
// own test style) that still hand in a plain io.ReaderAt instead of a
// mapper.Mapper; it is only reached when the caller didn't already supply
// a sized source.
func readerAtToBytes(fs io.ReaderAt) []byte {
	if b, ok := fs.(interface{ Bytes() []byte }); ok {
		return b.Bytes()
	}
	// fall back to reading everything through a bounded probe: most
	// callers in this package construct a mapper directly via Open, so
	// this path only serves ad-hoc io.ReaderAt values in tests.
	var buf bytes.Buffer
	chunk := make([]byte, 32*1024)
	var off int64
	for {
		n, err := fs.ReadAt(chunk, off)
		if n > 0 {
			buf.Write(chunk[:n])
			off += int64(n)
		}
		if err != nil {
			break
		}
	}
	return buf.Bytes()
}

// OpenMapper opens a SquashFS archive over an already-constructed Mapper
// (internal/mapper.NewFile, NewStatic, NewHTTP, ...) using the given
// Config. Open (fs.go) is the convenience entry point for a plain path on
// disk.
func OpenMapper(m mapper.Mapper, config Config) (*Superblock, error) {
	config = config.withDefaults()

	head, err := m.Map(config.ArchiveOffset, superblockSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidSuper, err)
	}
	defer head.Release()
	log.Printf("squashfs: read header %d bytes", len(head.Data()))

	sb := &Superblock{m: m, config: config}
	if err := sb.UnmarshalBinary(head.Data()); err != nil {
		return nil, err
	}
	if err := sb.checkInvariants(); err != nil {
		return nil, err
	}
	log.Printf("squashfs: superblock parsed, comp=%s blocksize=%d inodes=%d", sb.Comp, sb.BlockSize, sb.InodeCnt)

	sb.dec, err = newDecompressor(sb.Comp)
	if err != nil {
		return nil, err
	}

	sb.metaCache = extract.New(config.MetablockCacheSize)
	sb.dataCache = extract.New(config.DataCacheSize)
	sb.inoIdx = make(map[uint32]inodeRef)
	sb.inoOfft = config.InodeOffset

	root, err := sb.GetInodeRef(inodeRef(sb.RootInode))
	if err != nil {
		return nil, fmt.Errorf("%w: reading root inode: %s", ErrCorrupt, err)
	}
	sb.rootIno = root
	sb.rootInoN = uint64(root.Ino)

	return sb, nil
}

// UnmarshalBinary decodes the fixed-size superblock header. Kept in the
// teacher's reflect-over-exported-fields style (super.go), fixed to
// actually write through addressable field pointers.
func (s *Superblock) UnmarshalBinary(data []byte) error {
	if len(data) < 4 {
		return ErrInvalidFile
	}
	switch string(data[:4]) {
	case "hsqs":
		s.order = binary.LittleEndian
	case "sqsh":
		s.order = binary.BigEndian
	default:
		return ErrInvalidFile
	}

	v := reflect.ValueOf(s).Elem()
	r := bytes.NewReader(data)
	for i := 0; i < v.NumField(); i++ {
		name := v.Type().Field(i).Name
		if name[0] < 'A' || name[0] > 'Z' {
			continue
		}
		log.Printf("squashfs: read %s", name)
		if err := binary.Read(r, s.order, v.Field(i).Addr().Interface()); err != nil {
			return fmt.Errorf("%w: %s", ErrInvalidSuper, err)
		}
	}
	return nil
}

func (s *Superblock) checkInvariants() error {
	if s.VMajor != 4 || s.VMinor != 0 {
		return ErrInvalidVersion
	}
	if s.BlockLog > 20 || s.BlockSize != 1<<s.BlockLog {
		return fmt.Errorf("%w: block size %d does not match block log %d", ErrCorrupt, s.BlockSize, s.BlockLog)
	}
	if s.BytesUsed < superblockSize {
		return fmt.Errorf("%w: bytes_used smaller than superblock", ErrCorrupt)
	}
	if s.BytesUsed > uint64(s.m.Size())-uint64(s.config.ArchiveOffset) {
		return fmt.Errorf("%w: bytes_used exceeds source size", ErrCorrupt)
	}
	return nil
}

// readAt fetches exactly len(p) bytes at the given archive-relative
// address (i.e. already excluding config.ArchiveOffset, which readAt adds)
// through the mapper.
func (s *Superblock) readAt(p []byte, addr int64) error {
	mp, err := s.m.Map(s.config.ArchiveOffset+addr, int64(len(p)))
	if err != nil {
		if err == mapper.ErrOutOfBounds {
			return fmt.Errorf("%w: %s", ErrOutOfBounds, err)
		}
		return err
	}
	defer mp.Release()
	copy(p, mp.Data())
	return nil
}

