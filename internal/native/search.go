package native

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

const (
	EnvLibDir = "UPPERATM_LIB_DIR"
	envPrefix = "UPPERATM_"
)

// FileName returns the platform file name of a library base name.
func FileName(lib string) string {
	switch runtime.GOOS {
	case "windows":
		return lib + ".dll"
	case "darwin":
		return "lib" + lib + ".dylib"
	default:
		return "lib" + lib + ".so"
	}
}

// EnvVar is the per-variant override, e.g. UPPERATM_MSIS2_LIB.
func EnvVar(v Variant) string {
	return envPrefix + strings.ToUpper(v.Name) + "_LIB"
}

// Candidates lists library paths in search order: explicit path, variant
// environment variable, UPPERATM_LIB_DIR, configured directory, then lib/
// next to the executable and under the working directory.
func Candidates(v Variant, explicit, dir string) []string {
	file := FileName(v.Library)
	var paths []string

	if explicit != "" {
		paths = append(paths, explicit)
	}
	if p := os.Getenv(EnvVar(v)); p != "" {
		paths = append(paths, p)
	}
	if d := os.Getenv(EnvLibDir); d != "" {
		paths = append(paths, filepath.Join(d, file))
	}
	if dir != "" {
		paths = append(paths, filepath.Join(dir, file))
	}
	if exe, err := os.Executable(); err == nil {
		paths = append(paths, filepath.Join(filepath.Dir(exe), "lib", file))
	}
	if wd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(wd, "lib", file))
	}

	return dedup(paths)
}

func dedup(paths []string) []string {
	seen := make(map[string]bool, len(paths))
	out := paths[:0]
	for _, p := range paths {
		key := filepath.Clean(p)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, p)
	}
	return out
}
