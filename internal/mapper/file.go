package mapper

import (
	"os"

	"golang.org/x/sys/unix"
)

// File mmaps a regular file read-only and serves windows directly out of
// the mapped pages, avoiding a read syscall per metablock/datablock.
// Grounded on the mmap lifecycle (Mmap at open, Munmap at close) used for
// the write-ahead log in the example pack's dittofs.
type File struct {
	f    *os.File
	data []byte
}

// NewFile mmaps f read-only for its entire current size.
func NewFile(f *os.File) (*File, error) {
	st, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := st.Size()
	if size == 0 {
		return &File{f: f, data: nil}, nil
	}
	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, err
	}
	return &File{f: f, data: data}, nil
}

func (m *File) Size() int64 { return int64(len(m.data)) }

func (m *File) Map(address, length int64) (Mapping, error) {
	if address < 0 || length < 0 || address+length > int64(len(m.data)) {
		return nil, ErrOutOfBounds
	}
	return &fileMapping{m: m, addr: address, length: length}, nil
}

func (m *File) Close() error {
	if m.data != nil {
		if err := unix.Munmap(m.data); err != nil {
			return err
		}
		m.data = nil
	}
	return m.f.Close()
}

type fileMapping struct {
	m      *File
	addr   int64
	length int64
}

func (fm *fileMapping) Data() []byte {
	return fm.m.data[fm.addr : fm.addr+fm.length]
}

func (fm *fileMapping) Resize(length int64) error {
	if fm.addr+length > int64(len(fm.m.data)) {
		return ErrOutOfBounds
	}
	fm.length = length
	return nil
}

func (fm *fileMapping) Release() {}
