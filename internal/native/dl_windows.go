//go:build windows

package native

import "golang.org/x/sys/windows"

type dll struct {
	handle windows.Handle
}

func openLibrary(path string) (library, error) {
	h, err := windows.LoadLibrary(path)
	if err != nil {
		return nil, err
	}
	return &dll{handle: h}, nil
}

func (l *dll) lookup(name string) (uintptr, error) {
	return windows.GetProcAddress(l.handle, name)
}

func (l *dll) close() error {
	return windows.FreeLibrary(l.handle)
}
