//go:build (darwin || linux) && !cgo

// Shared utilities for the purego GStreamer backend.

package mediaparser

import (
	"os"
	"path/filepath"
	"runtime"
	"unsafe"
)

// goStringFromPtr converts a C string pointer to a Go string.
func goStringFromPtr(ptr uintptr) string {
	if ptr == 0 {
		return ""
	}
	p := unsafe.Pointer(ptr)
	var length int
	for *(*byte)(unsafe.Add(p, length)) != 0 {
		length++
	}
	if length == 0 {
		return ""
	}
	return string(unsafe.Slice((*byte)(p), length))
}

// nativeLibPaths returns candidate locations of a shared library, highest
// priority first. libEnv names a variable holding the full library path;
// dirEnv names one holding a directory to search.
func nativeLibPaths(linuxName, darwinName, libEnv, dirEnv string) []string {
	var paths []string

	libName := linuxName
	if runtime.GOOS == "darwin" {
		libName = darwinName
	}

	// Environment variable overrides (highest priority)
	if envPath := os.Getenv(libEnv); envPath != "" {
		paths = append(paths, envPath)
	}
	if envPath := os.Getenv(dirEnv); envPath != "" {
		paths = append(paths, filepath.Join(envPath, libName))
	}

	// Search relative to executable location
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, libName),
			filepath.Join(exeDir, "..", "lib", libName),
		)
	}

	// System paths (lowest priority)
	switch runtime.GOOS {
	case "darwin":
		paths = append(paths,
			libName,
			filepath.Join("/Library/Frameworks/GStreamer.framework/Versions/1.0/lib", libName),
			filepath.Join("/opt/homebrew/lib", libName),
			filepath.Join("/usr/local/lib", libName),
		)
	case "linux":
		paths = append(paths,
			libName,
			filepath.Join("/usr/lib/x86_64-linux-gnu", libName),
			filepath.Join("/usr/lib/aarch64-linux-gnu", libName),
			filepath.Join("/usr/lib64", libName),
			filepath.Join("/usr/lib", libName),
			filepath.Join("/usr/local/lib", libName),
		)
	}

	return paths
}
