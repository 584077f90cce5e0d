package picker

import (
	"path/filepath"
	"sort"

	ignore "github.com/sabhiram/go-gitignore"
	"golang.org/x/sys/unix"
)

// FindOptions configures Find.
type FindOptions struct {
	Filter   Filter
	NoIgnore bool // skip .gitignore processing
	Hidden   bool // include hidden files and directories
	// OnError, if set, receives errors for directories and entries that
	// could not be read. They are skipped either way.
	OnError func(error)
}

// WalkError is a failure to read one directory or entry during Find.
type WalkError struct {
	Path string
	Err  error
}

func (e *WalkError) Error() string {
	return "walk " + e.Path + ": " + e.Err.Error()
}

func (e *WalkError) Unwrap() error {
	return e.Err
}

// ignoreLayer holds the .gitignore rules of one directory.
type ignoreLayer struct {
	dir    string
	parser *ignore.GitIgnore
}

// loadIgnoreLayer compiles dir/.gitignore. The parser is nil when there is none.
func loadIgnoreLayer(dir string) ignoreLayer {
	parser, err := ignore.CompileIgnoreFile(filepath.Join(dir, ".gitignore"))
	if err != nil {
		return ignoreLayer{dir: dir}
	}
	return ignoreLayer{dir: dir, parser: parser}
}

// isIgnoredByLayers checks if a path should be ignored by any layer in the slice.
func isIgnoredByLayers(layers []ignoreLayer, fullPath string, isDir bool) bool {
	for _, layer := range layers {
		if layer.parser == nil {
			continue
		}
		rel, err := filepath.Rel(layer.dir, fullPath)
		if err != nil {
			continue
		}
		if isDir {
			rel += "/"
		}
		if layer.parser.MatchesPath(rel) {
			return true
		}
	}
	return false
}

// skipDir reports whether a directory is left out of the walk. VCS
// metadata is always skipped; other dot-directories unless hidden is set.
func skipDir(name string, hidden bool) bool {
	switch name {
	case ".git", ".svn", ".hg":
		return true
	}
	return !hidden && name[0] == '.'
}

// dirItem is a directory waiting to be read, with the ignore layers in force for it.
type dirItem struct {
	path    string
	ignores []ignoreLayer
}

// fileID identifies a directory by device and inode.
type fileID [2]uint64

func idOf(stat *unix.Stat_t) fileID {
	return fileID{uint64(stat.Dev), uint64(stat.Ino)}
}

type finder struct {
	opts    FindOptions
	found   []string
	queue   []dirItem
	seen    map[fileID]struct{} // every directory queued so far
	buf     []byte
	dirents []dirent
}

// enter reports whether the directory is new to the walk and marks it seen,
// so symlink cycles and repeated roots are read only once.
func (f *finder) enter(stat *unix.Stat_t) bool {
	id := idOf(stat)
	if _, ok := f.seen[id]; ok {
		return false
	}
	f.seen[id] = struct{}{}
	return true
}

// Find walks roots breadth-first with getdents64 and returns the regular
// files accepted by opts.Filter, sorted. Symlinked directories are followed,
// but each directory is read at most once. Roots that are files are returned
// as-is when they match. A root that cannot be stat'ed is an error; anything
// unreadable below a root is skipped and reported through opts.OnError.
func Find(roots []string, opts FindOptions) ([]string, error) {
	f := &finder{
		opts: opts,
		seen: make(map[fileID]struct{}),
		buf:  make([]byte, 32*1024),
	}

	for _, root := range roots {
		var stat unix.Stat_t
		if err := unix.Stat(root, &stat); err != nil {
			return nil, &WalkError{Path: root, Err: err}
		}
		if stat.Mode&unix.S_IFMT != unix.S_IFDIR {
			if stat.Mode&unix.S_IFMT == unix.S_IFREG && opts.Filter.Match(root) {
				f.found = append(f.found, root)
			}
			continue
		}
		if !f.enter(&stat) {
			continue
		}
		var layers []ignoreLayer
		if !opts.NoIgnore {
			layers = []ignoreLayer{loadIgnoreLayer(root)}
		}
		f.queue = append(f.queue, dirItem{path: root, ignores: layers})
	}

	for len(f.queue) > 0 {
		item := f.queue[0]
		f.queue = f.queue[1:]
		f.readDir(item)
	}

	sort.Strings(f.found)
	return f.found, nil
}

func (f *finder) report(path string, err error) {
	if f.opts.OnError != nil {
		f.opts.OnError(&WalkError{Path: path, Err: err})
	}
}

// readDir lists one directory, collecting matches and queueing subdirectories.
func (f *finder) readDir(item dirItem) {
	fd, err := unix.Open(item.path, unix.O_RDONLY|unix.O_DIRECTORY|unix.O_CLOEXEC|unix.O_NOATIME, 0)
	if err != nil {
		fd, err = unix.Open(item.path, unix.O_RDONLY|unix.O_DIRECTORY|unix.O_CLOEXEC, 0)
		if err != nil {
			f.report(item.path, err)
			return
		}
	}
	defer unix.Close(fd)

	for {
		n, err := unix.Getdents(fd, f.buf)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			f.report(item.path, err)
			return
		}
		if n == 0 {
			return
		}

		f.dirents = parseDirents(f.buf, n, f.dirents)
		for _, entry := range f.dirents {
			f.visit(item, entry)
		}
	}
}

func (f *finder) visit(parent dirItem, entry dirent) {
	fullPath := filepath.Join(parent.path, entry.name)

	var stat unix.Stat_t
	statted := false
	isDir, isReg := entry.dtype == dtDir, entry.dtype == dtReg
	if entry.dtype == dtLnk || entry.dtype == dtUnknown {
		if err := unix.Stat(fullPath, &stat); err != nil {
			// Broken symlinks are common and not worth reporting.
			if entry.dtype == dtUnknown {
				f.report(fullPath, err)
			}
			return
		}
		statted = true
		isDir = stat.Mode&unix.S_IFMT == unix.S_IFDIR
		isReg = stat.Mode&unix.S_IFMT == unix.S_IFREG
	}

	switch {
	case isDir:
		if skipDir(entry.name, f.opts.Hidden) {
			return
		}
		if isIgnoredByLayers(parent.ignores, fullPath, true) {
			return
		}
		if !statted {
			if err := unix.Stat(fullPath, &stat); err != nil {
				f.report(fullPath, err)
				return
			}
		}
		if !f.enter(&stat) {
			return
		}
		var layers []ignoreLayer
		if !f.opts.NoIgnore {
			layers = make([]ignoreLayer, len(parent.ignores)+1)
			copy(layers, parent.ignores)
			layers[len(parent.ignores)] = loadIgnoreLayer(fullPath)
		}
		f.queue = append(f.queue, dirItem{path: fullPath, ignores: layers})

	case isReg:
		if !f.opts.Hidden && entry.name[0] == '.' {
			return
		}
		if isIgnoredByLayers(parent.ignores, fullPath, false) {
			return
		}
		if f.opts.Filter.Match(fullPath) {
			f.found = append(f.found, fullPath)
		}
	}
}
