package squashfs

import (
	"context"
	"strings"
)

// Resolve walks a slash-separated path starting at start, handling "."
// and ".." components and following symlinks as they're encountered
// (unlike Inode.LookupRelativeInodePath, which resolves literal directory
// entries only). Resolution depth is bounded by Config.MaxSymlinkDepth to
// guard against symlink cycles, matching spec.md's configurable
// symlink-follow policy.
func (sb *Superblock) Resolve(ctx context.Context, start *Inode, path string) (*Inode, error) {
	depth := 0
	return sb.resolve(ctx, start, path, &depth)
}

func (sb *Superblock) resolve(ctx context.Context, start *Inode, path string, depth *int) (*Inode, error) {
	cur := start

	parts := strings.Split(path, "/")
	for idx := 0; idx < len(parts); idx++ {
		name := parts[idx]
		switch name {
		case "", ".":
			continue
		case "..":
			if !cur.IsDir() {
				return nil, ErrNotDirectory
			}
			parent, err := sb.GetInode(uint64(cur.ParentIno))
			if err != nil {
				return nil, err
			}
			cur = parent
			continue
		}

		if !cur.IsDir() {
			return nil, ErrNotDirectory
		}
		next, err := cur.LookupRelativeInode(ctx, name)
		if err != nil {
			return nil, err
		}

		for next.Type.IsSymlink() {
			*depth++
			if *depth > sb.config.MaxSymlinkDepth {
				return nil, ErrTooManySymlinks
			}
			target, err := next.Readlink()
			if err != nil {
				return nil, err
			}
			resolveFrom := cur
			if strings.HasPrefix(string(target), "/") {
				resolveFrom = sb.rootIno
			}
			next, err = sb.resolve(ctx, resolveFrom, string(target), depth)
			if err != nil {
				return nil, err
			}
		}

		cur = next
	}

	return cur, nil
}
