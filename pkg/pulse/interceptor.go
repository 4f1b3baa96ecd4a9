package pulse

import (
	"errors"
	"io"
	"io/fs"
	"sync"
	"sync/atomic"
	"time"
)

// Files faster and lighter than both thresholds are not recorded.
const (
	MinRecordedLoadMs      = 0.1
	MinRecordedMemoryBytes = 1024
)

// ErrInterceptionUnavailable is returned by Install when there is no native
// filesystem to wrap. Profiling continues without plugin timing.
var ErrInterceptionUnavailable = errors.New("file interception unavailable")

var errSeekUnsupported = errors.New("seek not supported by underlying file")

// loadRecorder receives timed loads of trackable files.
type loadRecorder interface {
	recordLoad(name string, elapsedMs float64, memoryUsed uint64)
}

// Interceptor wraps the native code filesystem and times loads of trackable files.
//
// Every delegated native call runs with the passthrough depth raised, so any
// call that re-enters the interceptor meanwhile is served untracked.
type Interceptor struct {
	base   fs.FS
	roots  Roots
	memory MemorySampler
	now    func() time.Time
	rec    loadRecorder

	installed atomic.Bool
	depth     atomic.Int32
}

var (
	_ fs.FS         = (*Interceptor)(nil)
	_ fs.StatFS     = (*Interceptor)(nil)
	_ fs.ReadDirFS  = (*Interceptor)(nil)
	_ fs.ReadFileFS = (*Interceptor)(nil)
)

func newInterceptor(base fs.FS, roots Roots, memory MemorySampler, now func() time.Time, rec loadRecorder) *Interceptor {
	if memory == nil {
		memory = zeroMemory{}
	}
	if now == nil {
		now = time.Now
	}
	return &Interceptor{
		base:   base,
		roots:  roots,
		memory: memory,
		now:    now,
		rec:    rec,
	}
}

// Install activates interception. Installing an already installed interceptor
// is a no-op and its release does nothing. The returned release is safe to call
// more than once.
func (i *Interceptor) Install() (release func(), err error) {
	noop := func() {}
	if i == nil || i.base == nil {
		return noop, ErrInterceptionUnavailable
	}
	if !i.installed.CompareAndSwap(false, true) {
		return noop, nil
	}

	var once sync.Once
	return func() {
		once.Do(func() { i.installed.Store(false) })
	}, nil
}

// Installed reports whether Install is in effect.
func (i *Interceptor) Installed() bool {
	return i != nil && i.installed.Load()
}

// Active reports whether a call made now would be instrumented.
func (i *Interceptor) Active() bool {
	return i.Installed() && i.depth.Load() == 0
}

// native runs fn in passthrough mode.
func (i *Interceptor) native(fn func()) {
	i.depth.Add(1)
	defer i.depth.Add(-1)
	fn()
}

func (i *Interceptor) nativeOpen(name string) (f fs.File, err error) {
	i.native(func() {
		f, err = i.base.Open(name)
	})
	return f, err
}

// Open implements fs.FS.
func (i *Interceptor) Open(name string) (fs.File, error) {
	if !i.Active() || !IsTrackable(name, i.roots) {
		return i.nativeOpen(name)
	}

	start := i.now()
	memStart := i.memory.Current()

	f, err := i.nativeOpen(name)
	if err != nil {
		return nil, err
	}

	var info fs.FileInfo
	i.native(func() {
		info, err = f.Stat()
	})
	if err == nil && info.IsDir() {
		return f, nil
	}

	tf := &trackedFile{
		File:     f,
		owner:    i,
		name:     name,
		start:    start,
		memStart: memStart,
	}
	tf.peak.Store(memStart)
	return tf, nil
}

// Stat implements fs.StatFS.
func (i *Interceptor) Stat(name string) (info fs.FileInfo, err error) {
	i.native(func() {
		info, err = fs.Stat(i.base, name)
	})
	return info, err
}

// ReadDir implements fs.ReadDirFS.
func (i *Interceptor) ReadDir(name string) (entries []fs.DirEntry, err error) {
	i.native(func() {
		entries, err = fs.ReadDir(i.base, name)
	})
	return entries, err
}

// ReadFile implements fs.ReadFileFS. Reads of trackable files are timed like an open/close pair.
func (i *Interceptor) ReadFile(name string) ([]byte, error) {
	if !i.Active() || !IsTrackable(name, i.roots) {
		var data []byte
		var err error
		i.native(func() {
			data, err = fs.ReadFile(i.base, name)
		})
		return data, err
	}

	f, err := i.Open(name)
	if err != nil {
		return nil, err
	}
	data, readErr := io.ReadAll(f)
	closeErr := f.Close()
	if readErr != nil {
		return nil, readErr
	}
	return data, closeErr
}

// finish measures a closed trackable file and hands it to the recorder.
func (i *Interceptor) finish(f *trackedFile) {
	elapsed := float64(i.now().Sub(f.start)) / float64(time.Millisecond)
	if elapsed < 0 {
		elapsed = 0
	}

	raise(&f.peak, i.memory.Current())
	used := subFloor(f.peak.Load(), f.memStart)

	if elapsed <= MinRecordedLoadMs && used <= MinRecordedMemoryBytes {
		return
	}
	if i.rec != nil {
		i.rec.recordLoad(f.name, elapsed, used)
	}
}

// trackedFile is a trackable file opened through the interceptor.
type trackedFile struct {
	fs.File
	owner    *Interceptor
	name     string
	start    time.Time
	memStart uint64
	peak     atomic.Uint64 // highest sample between open and close
	closed   atomic.Bool
}

// Read samples memory after each read so the load's peak covers its whole window.
func (f *trackedFile) Read(p []byte) (int, error) {
	n, err := f.File.Read(p)
	raise(&f.peak, f.owner.memory.Current())
	return n, err
}

// Close closes the native file and records the load once.
func (f *trackedFile) Close() error {
	var err error
	f.owner.native(func() {
		err = f.File.Close()
	})
	if f.closed.CompareAndSwap(false, true) {
		f.owner.finish(f)
	}
	return err
}

// Seek delegates to the native file when it supports seeking.
func (f *trackedFile) Seek(offset int64, whence int) (int64, error) {
	if s, ok := f.File.(io.Seeker); ok {
		return s.Seek(offset, whence)
	}
	return 0, errSeekUnsupported
}

// ReadAt delegates to the native file when it supports it.
func (f *trackedFile) ReadAt(p []byte, off int64) (int, error) {
	if r, ok := f.File.(io.ReaderAt); ok {
		return r.ReadAt(p, off)
	}
	return 0, errSeekUnsupported
}

func subFloor(a, b uint64) uint64 {
	if a < b {
		return 0
	}
	return a - b
}
