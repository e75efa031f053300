//go:build !unix

package mmap

import "os"

// Supported reports whether file mappings are available on this platform.
func Supported() bool { return false }

func osMap(*os.File, int, bool) ([]byte, func([]byte) error, error) {
	return nil, nil, ErrUnsupported
}

func osSync([]byte) error { return ErrUnsupported }

func osAdvise([]byte, AccessPattern) error { return nil }
