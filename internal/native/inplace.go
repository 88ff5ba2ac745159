package native

import (
	"path/filepath"
	"sync"
)

// dlopen is swapped out in tests.
var dlopen = openLibrary

// The dynamic loader returns the same handle, and so the same kernel
// globals, for every open of one file. At most one binding per process
// may load a given file in place; the rest load private copies.
var inPlace = struct {
	sync.Mutex
	held map[string]struct{}
}{held: make(map[string]struct{})}

func libraryKey(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	if real, err := filepath.EvalSymlinks(path); err == nil {
		path = real
	}
	return path
}

// claimInPlace reports whether the caller now owns the in-place load of
// path. The returned key is what releaseInPlace expects.
func claimInPlace(path string) (string, bool) {
	key := libraryKey(path)
	inPlace.Lock()
	defer inPlace.Unlock()
	if _, ok := inPlace.held[key]; ok {
		return "", false
	}
	inPlace.held[key] = struct{}{}
	return key, true
}

func releaseInPlace(key string) {
	inPlace.Lock()
	delete(inPlace.held, key)
	inPlace.Unlock()
}
