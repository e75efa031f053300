package layout

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// DirEntrySize is the encoded size of a directory entry.
	DirEntrySize = 32
	// NameLen is the maximum file name length in bytes.
	NameLen = 11

	offFirstCluster = 11
	offSize         = 15
	offType         = 19
)

// TypeFile is the type tag of a regular file.
const TypeFile int32 = 0

var (
	// ErrNameTooLong is returned for names longer than NameLen bytes.
	ErrNameTooLong = errors.New("name too long")
	// ErrInvalidName is returned for empty names or names containing NUL bytes.
	ErrInvalidName = errors.New("invalid name")
)

// DirEntry is one slot of the directory table.
type DirEntry struct {
	Name         string
	FirstCluster int32
	Size         int32
	Type         int32
}

// EmptyDirEntry returns the value of an unused slot.
func EmptyDirEntry() DirEntry {
	return DirEntry{FirstCluster: -1, Size: -1, Type: -1}
}

// IsFree reports whether the slot is unused.
func (d DirEntry) IsFree() bool {
	return d.Name == ""
}

// ValidateName checks that name can be stored in a directory slot.
func ValidateName(name string) error {
	switch {
	case name == "":
		return ErrInvalidName
	case len(name) > NameLen:
		return fmt.Errorf("%w: %q is %d bytes, limit %d", ErrNameTooLong, name, len(name), NameLen)
	case bytes.IndexByte([]byte(name), 0) >= 0:
		return fmt.Errorf("%w: %q contains NUL", ErrInvalidName, name)
	}
	return nil
}

// Encode writes the entry into b, which must hold DirEntrySize bytes.
func (d DirEntry) Encode(b []byte) error {
	if len(b) < DirEntrySize {
		return ErrShortBuffer
	}
	if len(d.Name) > NameLen {
		return fmt.Errorf("%w: %q", ErrNameTooLong, d.Name)
	}
	clear(b[:DirEntrySize])
	copy(b[:NameLen], d.Name)
	binary.LittleEndian.PutUint32(b[offFirstCluster:], uint32(d.FirstCluster))
	binary.LittleEndian.PutUint32(b[offSize:], uint32(d.Size))
	binary.LittleEndian.PutUint32(b[offType:], uint32(d.Type))
	return nil
}

// DecodeDirEntry reads an entry from b.
func DecodeDirEntry(b []byte) (DirEntry, error) {
	if len(b) < DirEntrySize {
		return DirEntry{}, ErrShortBuffer
	}
	return DirEntry{
		Name:         string(bytes.TrimRight(b[:NameLen], "\x00")),
		FirstCluster: int32(binary.LittleEndian.Uint32(b[offFirstCluster:])),
		Size:         int32(binary.LittleEndian.Uint32(b[offSize:])),
		Type:         int32(binary.LittleEndian.Uint32(b[offType:])),
	}, nil
}

// Directory is the in-memory directory table.
type Directory []DirEntry

// NewDirectory returns n empty slots.
func NewDirectory(n int) Directory {
	d := make(Directory, n)
	for i := range d {
		d[i] = EmptyDirEntry()
	}
	return d
}

// Encode serializes all slots into b.
func (d Directory) Encode(b []byte) error {
	if len(b) < len(d)*DirEntrySize {
		return ErrShortBuffer
	}
	for i, e := range d {
		if err := e.Encode(b[i*DirEntrySize:]); err != nil {
			return fmt.Errorf("slot %d: %w", i, err)
		}
	}
	return nil
}

// DecodeDirectory reads n slots from b.
func DecodeDirectory(b []byte, n int) (Directory, error) {
	if len(b) < n*DirEntrySize {
		return nil, ErrShortBuffer
	}
	d := make(Directory, n)
	for i := range d {
		e, err := DecodeDirEntry(b[i*DirEntrySize:])
		if err != nil {
			return nil, err
		}
		d[i] = e
	}
	return d, nil
}

// Lookup returns the slot index holding name, or -1.
func (d Directory) Lookup(name string) int {
	if name == "" {
		return -1
	}
	for i, e := range d {
		if e.Name == name {
			return i
		}
	}
	return -1
}

// FreeSlot returns the lowest unused slot index, or -1.
func (d Directory) FreeSlot() int {
	for i, e := range d {
		if e.IsFree() {
			return i
		}
	}
	return -1
}
