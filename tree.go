package squashfs

import (
	"context"
	"io"
	"path"
)

// recursionCheckDepth bounds how many directory descents TreeTraversal
// makes between checkCycle passes over its current stack, rather than
// paying that cost on every single step.
const recursionCheckDepth = 128

// TreeEntry is one node yielded by a TreeTraversal: its full path from the
// traversal root and its decoded inode.
type TreeEntry struct {
	Path  string
	Inode *Inode
}

type treeFrame struct {
	path string
	dr   *dirReader
}

// TreeTraversal performs an explicit-stack depth-first walk of a
// directory subtree, yielding every entry exactly once. New component:
// the teacher only ever resolves one path component at a time
// (LookupRelativeInodePath) and never walks a whole subtree.
type TreeTraversal struct {
	sb      *Superblock
	ctx     context.Context
	stack   []*treeFrame
	visited map[uint32]struct{}
	steps   int
}

// Walk returns a TreeTraversal rooted at root. Paths are relative to root:
// a direct child's Path is its bare name.
func (sb *Superblock) Walk(ctx context.Context, root *Inode) (*TreeTraversal, error) {
	if !root.IsDir() {
		return nil, ErrNotDirectory
	}
	dr, err := sb.dirReader(root, nil)
	if err != nil {
		return nil, err
	}
	return &TreeTraversal{
		sb:      sb,
		ctx:     ctx,
		stack:   []*treeFrame{{path: "", dr: dr}},
		visited: map[uint32]struct{}{root.Ino: {}},
	}, nil
}

// Next returns the next entry in the traversal, descending into
// directories as it encounters them. It returns io.EOF once the subtree
// is exhausted.
func (t *TreeTraversal) Next() (TreeEntry, error) {
	if err := t.ctx.Err(); err != nil {
		return TreeEntry{}, err
	}

	for len(t.stack) > 0 {
		top := t.stack[len(t.stack)-1]

		name, typ, inoR, err := top.dr.nextfull()
		if err != nil {
			if err == io.EOF {
				t.stack = t.stack[:len(t.stack)-1]
				continue
			}
			return TreeEntry{}, err
		}

		entryPath := name
		if top.path != "" {
			entryPath = path.Join(top.path, name)
		}

		ino, err := t.sb.GetInodeRef(inoR)
		if err != nil {
			return TreeEntry{}, err
		}
		t.sb.setInodeRefCache(ino.Ino, inoR)

		if typ.IsDir() {
			t.steps++
			if t.steps >= recursionCheckDepth {
				t.steps = 0
				if err := t.checkCycle(); err != nil {
					return TreeEntry{}, err
				}
			}
			if _, seen := t.visited[ino.Ino]; seen {
				return TreeEntry{}, ErrDirectoryRecursion
			}
			t.visited[ino.Ino] = struct{}{}

			dr, err := t.sb.dirReader(ino, nil)
			if err != nil {
				return TreeEntry{}, err
			}
			t.stack = append(t.stack, &treeFrame{path: entryPath, dr: dr})
		}

		return TreeEntry{Path: entryPath, Inode: ino}, nil
	}

	return TreeEntry{}, io.EOF
}

// checkCycle re-validates that the current stack's directories are all
// still distinct, guarding against a directory table corrupted such that
// a subdirectory's entries loop back to an ancestor through a path the
// single visited-on-descent check wouldn't otherwise re-examine.
func (t *TreeTraversal) checkCycle() error {
	seen := make(map[string]struct{}, len(t.stack))
	for _, f := range t.stack {
		if _, ok := seen[f.path]; ok {
			return ErrDirectoryRecursion
		}
		seen[f.path] = struct{}{}
	}
	return nil
}
