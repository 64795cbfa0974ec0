package squashfs

import "errors"

// Package-specific error variables that can be used with errors.Is() for error handling.
var (
	// ErrInvalidFile is returned when the file format is not recognized as SquashFS
	ErrInvalidFile = errors.New("invalid file, squashfs signature not found")

	// ErrInvalidSuper is returned when the superblock data is corrupted or invalid
	ErrInvalidSuper = errors.New("invalid squashfs superblock")

	// ErrInvalidVersion is returned when the SquashFS version is not 4.0
	// This library only supports SquashFS 4.0 format
	ErrInvalidVersion = errors.New("invalid file version, expected squashfs 4.0")

	// ErrInodeNotExported is returned when trying to access an inode that isn't in the export table
	ErrInodeNotExported = errors.New("unknown squashfs inode and no NFS export table")

	// ErrNotDirectory is returned when attempting to perform directory operations on a non-directory
	ErrNotDirectory = errors.New("not a directory")

	// ErrNotAFile is returned when a file-only operation is attempted on a non-regular inode
	ErrNotAFile = errors.New("not a regular file")

	// ErrNotASymlink is returned when symlink-only accessors are used on a non-symlink inode
	ErrNotASymlink = errors.New("not a symbolic link")

	// ErrTooManySymlinks is returned when symlink resolution exceeds the maximum depth
	// This prevents infinite loops in symlink resolution
	ErrTooManySymlinks = errors.New("too many levels of symbolic links")

	// ErrNoSuchEntry is returned when a path component cannot be found in a directory
	ErrNoSuchEntry = errors.New("no such file or directory")

	// ErrCorrupt covers any failed on-disk invariant: bad lengths, unknown inode
	// type, offset overflow, directory loops and the like
	ErrCorrupt = errors.New("corrupt squashfs archive")

	// ErrUnsupportedCompression is returned when the superblock names a compression
	// id this build has no decoder registered for
	ErrUnsupportedCompression = errors.New("unsupported squashfs compression algorithm")

	// ErrOutOfBounds is returned when a read through the archive's Mapper would
	// run past the end of its source
	ErrOutOfBounds = errors.New("squashfs: read out of bounds")

	// ErrDecompressionFailed wraps any error surfaced by a decompression backend
	ErrDecompressionFailed = errors.New("squashfs: decompression failed")

	// ErrNoXattr is returned when an inode has no associated xattr set
	ErrNoXattr = errors.New("squashfs: inode has no extended attributes")

	// ErrNoExportTable is returned when the archive has no NFS export table
	ErrNoExportTable = errors.New("squashfs: archive has no export table")

	// ErrNoFragmentTable is returned when the archive has no fragment table
	ErrNoFragmentTable = errors.New("squashfs: archive has no fragment table")

	// ErrAllocationFailed names the oversized-allocation error kind. No operation
	// in this package returns it; the implausible on-disk lengths that are
	// checked (such as a symlink target over 4096 bytes) fail with ErrCorrupt
	ErrAllocationFailed = errors.New("squashfs: refusing oversized allocation")

	// ErrDirectoryRecursion is returned by tree traversal when a directory cycle
	// is detected
	ErrDirectoryRecursion = errors.New("squashfs: directory recursion detected")

	// ErrClosed names the closed-archive error kind. No operation in this
	// package returns it: Archive.Close only closes the mapper, and later reads
	// fail with whatever error the closed mapper produces
	ErrClosed = errors.New("squashfs: archive is closed")
)
