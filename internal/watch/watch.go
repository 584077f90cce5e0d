package watch

import (
	"encoding/binary"
	"fmt"
	"path/filepath"
	"sync"

	"golang.org/x/sys/unix"
)

// Event represents a change to a watched document.
type Event struct {
	Path string
	Type EventType
	Err  error
}

// EventType identifies the kind of change.
type EventType int

const (
	EventModified EventType = iota // written in place
	EventReplaced                  // created or renamed over, as editors do on save
	EventRemoved                   // deleted or renamed away
)

func (t EventType) String() string {
	switch t {
	case EventModified:
		return "modified"
	case EventReplaced:
		return "replaced"
	case EventRemoved:
		return "removed"
	}
	return "unknown"
}

// Watcher watches documents for changes using raw inotify + epoll.
// It watches each document's parent directory so that atomic saves
// (write to a temp file, rename over the original) are seen.
type Watcher struct {
	inotifyFd int
	epollFd   int

	mu    sync.Mutex
	dirs  map[int]string      // wd -> directory
	files map[string]struct{} // watched documents, absolute

	done      chan struct{}
	closeOnce sync.Once
}

const watchMask = unix.IN_MODIFY | unix.IN_CLOSE_WRITE | unix.IN_CREATE |
	unix.IN_MOVED_TO | unix.IN_DELETE | unix.IN_MOVED_FROM

// New creates a new inotify-based watcher.
func New() (*Watcher, error) {
	ifd, err := unix.InotifyInit1(unix.IN_CLOEXEC | unix.IN_NONBLOCK)
	if err != nil {
		return nil, fmt.Errorf("inotify_init1: %w", err)
	}

	efd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		unix.Close(ifd)
		return nil, fmt.Errorf("epoll_create1: %w", err)
	}

	// Register inotify fd with epoll
	event := unix.EpollEvent{
		Events: unix.EPOLLIN,
		Fd:     int32(ifd),
	}
	if err := unix.EpollCtl(efd, unix.EPOLL_CTL_ADD, ifd, &event); err != nil {
		unix.Close(efd)
		unix.Close(ifd)
		return nil, fmt.Errorf("epoll_ctl: %w", err)
	}

	return &Watcher{
		inotifyFd: ifd,
		epollFd:   efd,
		dirs:      make(map[int]string),
		files:     make(map[string]struct{}),
		done:      make(chan struct{}),
	}, nil
}

// Add starts watching the document at path. The file does not need to exist
// yet, but its directory does.
func (w *Watcher) Add(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	dir := filepath.Dir(absPath)

	wd, err := unix.InotifyAddWatch(w.inotifyFd, dir, watchMask)
	if err != nil {
		return fmt.Errorf("inotify_add_watch %s: %w", dir, err)
	}

	w.mu.Lock()
	w.dirs[wd] = dir
	w.files[absPath] = struct{}{}
	w.mu.Unlock()
	return nil
}

// Events returns a channel of document events. It closes after Close() is called.
func (w *Watcher) Events() <-chan Event {
	ch := make(chan Event, 64)
	go func() {
		defer close(ch)
		buf := make([]byte, 4096)
		events := make([]unix.EpollEvent, 1)

		for {
			select {
			case <-w.done:
				return
			default:
			}

			// Wait for events with 100ms timeout
			n, err := unix.EpollWait(w.epollFd, events, 100)
			if err != nil {
				if err == unix.EINTR {
					continue
				}
				w.emit(ch, Event{Err: fmt.Errorf("epoll_wait: %w", err)})
				return
			}
			if n == 0 {
				continue
			}

			nbytes, err := unix.Read(w.inotifyFd, buf)
			if err != nil {
				if err == unix.EAGAIN {
					continue
				}
				w.emit(ch, Event{Err: fmt.Errorf("read inotify: %w", err)})
				return
			}

			for _, evt := range w.parseEvents(buf[:nbytes]) {
				if !w.emit(ch, evt) {
					return
				}
			}
		}
	}()
	return ch
}

func (w *Watcher) emit(ch chan<- Event, evt Event) bool {
	select {
	case ch <- evt:
		return true
	case <-w.done:
		return false
	}
}

// inotify event header layout:
//   int32  wd       (offset 0)
//   uint32 mask     (offset 4)
//   uint32 cookie   (offset 8)
//   uint32 len      (offset 12)
//   char   name[]   (offset 16)
const inotifyEventSize = 16

func (w *Watcher) parseEvents(buf []byte) []Event {
	w.mu.Lock()
	defer w.mu.Unlock()

	var out []Event
	offset := 0
	for offset+inotifyEventSize <= len(buf) {
		wd := int32(binary.LittleEndian.Uint32(buf[offset:]))
		mask := binary.LittleEndian.Uint32(buf[offset+4:])
		nameLen := int(binary.LittleEndian.Uint32(buf[offset+12:]))

		nameStart := offset + inotifyEventSize
		nameEnd := nameStart + nameLen
		if nameEnd > len(buf) {
			break
		}
		nameBytes := buf[nameStart:nameEnd]
		// Trim NUL padding
		for i, b := range nameBytes {
			if b == 0 {
				nameBytes = nameBytes[:i]
				break
			}
		}
		offset = nameEnd

		dir, ok := w.dirs[int(wd)]
		if !ok || len(nameBytes) == 0 {
			continue
		}
		path := filepath.Join(dir, string(nameBytes))
		if _, watched := w.files[path]; !watched {
			continue
		}

		switch {
		case mask&(unix.IN_CREATE|unix.IN_MOVED_TO) != 0:
			out = append(out, Event{Path: path, Type: EventReplaced})
		case mask&(unix.IN_DELETE|unix.IN_MOVED_FROM) != 0:
			out = append(out, Event{Path: path, Type: EventRemoved})
		case mask&(unix.IN_MODIFY|unix.IN_CLOSE_WRITE) != 0:
			out = append(out, Event{Path: path, Type: EventModified})
		}
	}
	return out
}

// Close stops the watcher and releases resources. It is safe to call twice.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		unix.Close(w.epollFd)
		err = unix.Close(w.inotifyFd)
	})
	return err
}
