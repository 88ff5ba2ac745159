//go:build !darwin && !linux && !windows

package native

import (
	"fmt"
	"runtime"
)

func openLibrary(path string) (library, error) {
	return nil, fmt.Errorf("dynamic loading is not supported on %s/%s", runtime.GOOS, runtime.GOARCH)
}
