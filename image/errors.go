package image

import (
	"errors"
	"fmt"
)

var (
	// ErrManifestNotFound is returned when an image has no manifest.
	ErrManifestNotFound = errors.New("image: manifest not found")
	// ErrImageExists is returned when exporting over a committed image.
	ErrImageExists = errors.New("image: already exists")
	// ErrCorruptImage is returned for malformed manifests and chunks.
	ErrCorruptImage = errors.New("image: corrupt")
	// ErrDestinationTooSmall is returned when a fixed-size destination
	// cannot hold the image.
	ErrDestinationTooSmall = errors.New("image: destination too small")
	// ErrNoSnapshot is returned when a catalog has no version for a volume.
	ErrNoSnapshot = errors.New("image: no snapshot")
	// ErrConcurrentModification is returned when another writer committed
	// the same version first.
	ErrConcurrentModification = errors.New("image: concurrent modification")
)

// ErrChecksumMismatch reports a chunk whose contents do not match the
// manifest.
type ErrChecksumMismatch struct {
	Chunk string
	Want  uint32
	Got   uint32
}

func (e *ErrChecksumMismatch) Error() string {
	return fmt.Sprintf("image: checksum mismatch in %s: want %08x, got %08x", e.Chunk, e.Want, e.Got)
}

// Unwrap returns ErrCorruptImage.
func (e *ErrChecksumMismatch) Unwrap() error {
	return ErrCorruptImage
}
