// Package backend implements the simulated device that internal/adb
// drives through its Backend interface: an in-memory POSIX-like
// filesystem, a property store, a process table, a log ring, and a
// forward-rule table, all safe for concurrent use across transport
// sessions.
package backend

import (
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/coldharbor/mockadbd/internal/adb"
)

type fsNode struct {
	path    string
	kind    adb.NodeType
	mode    uint32
	content []byte
	target  string // symlink destination
}

// filesystem is a small in-memory POSIX-like tree: paths are normalized
// (., .., // collapsed) the way PurePosixPath does in the grounding
// corpus's Python source, and every node carries its own permission bits
// with the POSIX type bits added at read time by the sync stream, not
// stored here.
type filesystem struct {
	mu    sync.RWMutex
	nodes map[string]*fsNode
}

func newFilesystem() *filesystem {
	fs := &filesystem{nodes: make(map[string]*fsNode)}
	fs.nodes["/"] = &fsNode{path: "/", kind: adb.NodeDir, mode: 0o755}
	return fs
}

// normalize resolves path against cwd (if path is relative) and collapses
// "." / ".." segments, mirroring PurePosixPath normalization.
func normalize(p, cwd string) string {
	if p == "" {
		p = "."
	}
	if !strings.HasPrefix(p, "/") {
		if cwd == "" {
			cwd = "/"
		}
		p = path.Join(cwd, p)
	}
	clean := path.Clean("/" + p)
	return clean
}

func (fs *filesystem) ensureDir(p string) {
	if p == "/" {
		return
	}
	if n, ok := fs.nodes[p]; ok {
		if n.kind != adb.NodeDir {
			return
		}
		return
	}
	fs.ensureDir(path.Dir(p))
	fs.nodes[p] = &fsNode{path: p, kind: adb.NodeDir, mode: 0o755}
}

// Seed installs one configured filesystem entry (from the YAML device
// descriptor) into the tree.
func (fs *filesystem) Seed(p string, kind adb.NodeType, content []byte, target string, mode uint32) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	norm := normalize(p, "/")
	if mode == 0 {
		mode = 0o644
		if kind == adb.NodeDir {
			mode = 0o755
		}
	}
	fs.ensureDir(path.Dir(norm))
	fs.nodes[norm] = &fsNode{path: norm, kind: kind, mode: mode, content: content, target: target}
}

func (fs *filesystem) resolve(p string) *fsNode {
	n, ok := fs.nodes[p]
	if !ok {
		return nil
	}
	seen := make(map[string]bool)
	for n.kind == adb.NodeSymlink && n.target != "" && !seen[n.path] {
		seen[n.path] = true
		next, ok := fs.nodes[normalize(n.target, path.Dir(n.path))]
		if !ok {
			return n
		}
		n = next
	}
	return n
}

func (fs *filesystem) Stat(p string) (adb.StatResult, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	n := fs.resolve(normalize(p, "/"))
	if n == nil {
		return adb.StatResult{Type: adb.NodeNotFound}, nil
	}
	return adb.StatResult{Type: n.kind, Mode: n.mode, Size: uint32(len(n.content)), Mtime: 0}, nil
}

func (fs *filesystem) List(p string) ([]adb.DirEntry, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	dirPath := normalize(p, "/")
	dir := fs.resolve(dirPath)
	if dir == nil || dir.kind != adb.NodeDir {
		return nil, fmt.Errorf("%w: %s", adb.ErrSyncPathNotFound, p)
	}

	var entries []adb.DirEntry
	for nodePath, n := range fs.nodes {
		if nodePath == dirPath {
			continue
		}
		if path.Dir(nodePath) != dirPath {
			continue
		}
		entries = append(entries, adb.DirEntry{
			Name: path.Base(nodePath),
			Type: n.kind,
			Mode: n.mode,
			Size: uint32(len(n.content)),
		})
	}
	return entries, nil
}

func (fs *filesystem) ReadFile(p string) ([]byte, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	n := fs.resolve(normalize(p, "/"))
	if n == nil || n.kind != adb.NodeFile {
		return nil, fmt.Errorf("%w: %s", adb.ErrSyncPathNotFound, p)
	}
	out := make([]byte, len(n.content))
	copy(out, n.content)
	return out, nil
}

func (fs *filesystem) WriteFile(p string, data []byte, mode uint32) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	norm := normalize(p, "/")
	fs.ensureDir(path.Dir(norm))
	content := make([]byte, len(data))
	copy(content, data)
	fs.nodes[norm] = &fsNode{path: norm, kind: adb.NodeFile, mode: mode, content: content}
	return nil
}

func (fs *filesystem) Remove(p string, recursive bool) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	norm := normalize(p, "/")
	n, ok := fs.nodes[norm]
	if !ok {
		return fmt.Errorf("%w: %s", adb.ErrSyncPathNotFound, p)
	}
	if n.kind == adb.NodeDir && recursive {
		prefix := norm + "/"
		for k := range fs.nodes {
			if strings.HasPrefix(k, prefix) {
				delete(fs.nodes, k)
			}
		}
	}
	delete(fs.nodes, norm)
	return nil
}
