package squashfs

// Config collects the tunables a teacher-style Option used to set one at a
// time (options.go's InodeOffset). Generalized into a struct because the
// expanded reader has several independent knobs (cache sizing, symlink
// depth, archive offset) instead of just one.
type Config struct {
	// ArchiveOffset is the byte offset of the superblock within the
	// underlying source, for archives embedded inside another file.
	ArchiveOffset int64

	// InodeOffset is copied onto the Superblock at open, mirroring the
	// teacher's options.go InodeOffset. It is not applied anywhere: inode
	// numbers are exposed exactly as stored on disk.
	InodeOffset uint64

	// MetablockCacheSize bounds how many decoded 8KiB metadata blocks the
	// extract cache retains.
	MetablockCacheSize int

	// DataCacheSize bounds how many decoded file data blocks the extract
	// cache retains.
	DataCacheSize int

	// MaxSymlinkDepth bounds path resolution recursion through symlinks.
	MaxSymlinkDepth int
}

// DefaultConfig returns the Config used by New.
func DefaultConfig() Config {
	return Config{
		MetablockCacheSize: 128,
		DataCacheSize:      128,
		MaxSymlinkDepth:    40,
	}
}

func (c Config) withDefaults() Config {
	if c.MetablockCacheSize <= 0 {
		c.MetablockCacheSize = 128
	}
	if c.DataCacheSize <= 0 {
		c.DataCacheSize = 128
	}
	if c.MaxSymlinkDepth <= 0 {
		c.MaxSymlinkDepth = 40
	}
	return c
}
