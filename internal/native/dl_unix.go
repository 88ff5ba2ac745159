//go:build darwin || linux

package native

import "github.com/ebitengine/purego"

type dylib struct {
	handle uintptr
}

func openLibrary(path string) (library, error) {
	h, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_LOCAL)
	if err != nil {
		return nil, err
	}
	return &dylib{handle: h}, nil
}

func (l *dylib) lookup(name string) (uintptr, error) {
	return purego.Dlsym(l.handle, name)
}

func (l *dylib) close() error {
	return purego.Dlclose(l.handle)
}
