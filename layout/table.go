package layout

import (
	"errors"
	"fmt"
)

// Kind tags an allocation table entry.
type Kind uint8

const (
	// KindFree marks an unallocated cluster.
	KindFree Kind = iota
	// KindReserved marks clusters 0 and 1.
	KindReserved
	// KindEndOfChain marks the last cluster of a file.
	KindEndOfChain
	// KindNext links to the next cluster of a file.
	KindNext
)

func (k Kind) String() string {
	switch k {
	case KindFree:
		return "free"
	case KindReserved:
		return "reserved"
	case KindEndOfChain:
		return "end-of-chain"
	case KindNext:
		return "next"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// On-disk byte values of the sentinel entries.
const (
	byteFree       = 0x00
	byteReserved   = 0xFE
	byteEndOfChain = 0xFF
	maxNext        = 0xFD
)

// ErrInvalidEntry is returned when an entry cannot be represented on disk.
var ErrInvalidEntry = errors.New("invalid allocation entry")

// Entry is one allocation table slot: a sentinel or a link to the next cluster.
type Entry struct {
	kind Kind
	next uint32
}

var (
	// Free is the entry of an unallocated cluster.
	Free = Entry{kind: KindFree}
	// Reserved is the entry of a cluster owned by the volume metadata.
	Reserved = Entry{kind: KindReserved}
	// EndOfChain is the entry of the last cluster in a chain.
	EndOfChain = Entry{kind: KindEndOfChain}
)

// Next returns an entry linking to cluster c.
func Next(c uint32) Entry {
	return Entry{kind: KindNext, next: c}
}

// Kind returns the entry tag.
func (e Entry) Kind() Kind { return e.kind }

// Next returns the linked cluster. ok is false for sentinel entries.
func (e Entry) Next() (c uint32, ok bool) {
	return e.next, e.kind == KindNext
}

// IsFree reports whether the cluster is unallocated.
func (e Entry) IsFree() bool { return e.kind == KindFree }

// IsAllocated reports whether the cluster belongs to a chain (linked or tail).
func (e Entry) IsAllocated() bool {
	return e.kind == KindNext || e.kind == KindEndOfChain
}

func (e Entry) String() string {
	if e.kind == KindNext {
		return fmt.Sprintf("next(%d)", e.next)
	}
	return e.kind.String()
}

// EncodeEntry returns the on-disk byte of e.
func EncodeEntry(e Entry) (byte, error) {
	switch e.kind {
	case KindFree:
		return byteFree, nil
	case KindReserved:
		return byteReserved, nil
	case KindEndOfChain:
		return byteEndOfChain, nil
	case KindNext:
		if e.next < FirstDataCluster || e.next > maxNext {
			return 0, fmt.Errorf("%w: link to cluster %d", ErrInvalidEntry, e.next)
		}
		return byte(e.next), nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrInvalidEntry, e.kind)
	}
}

// DecodeEntry maps an on-disk byte to an entry.
// A link into a reserved cluster decodes as-is; chain walks reject it.
func DecodeEntry(b byte) Entry {
	switch b {
	case byteFree:
		return Free
	case byteReserved:
		return Reserved
	case byteEndOfChain:
		return EndOfChain
	default:
		return Next(uint32(b))
	}
}

// Table is the in-memory allocation table, indexed by cluster.
type Table []Entry

// NewTable returns a table of n free entries with clusters 0 and 1 reserved.
func NewTable(n int) Table {
	t := make(Table, n)
	for i := range t {
		t[i] = Free
	}
	for i := 0; i < FirstDataCluster && i < n; i++ {
		t[i] = Reserved
	}
	return t
}

// Encode writes the table into the block b, one byte per cluster.
// Trailing bytes of b are cleared.
func (t Table) Encode(b []byte) error {
	if len(b) < len(t) {
		return ErrShortBuffer
	}
	for i, e := range t {
		v, err := EncodeEntry(e)
		if err != nil {
			return fmt.Errorf("cluster %d: %w", i, err)
		}
		b[i] = v
	}
	clear(b[len(t):])
	return nil
}

// DecodeTable reads n entries from the block b.
func DecodeTable(b []byte, n int) (Table, error) {
	if len(b) < n {
		return nil, ErrShortBuffer
	}
	t := make(Table, n)
	for i := range t {
		t[i] = DecodeEntry(b[i])
	}
	return t, nil
}

// Clone returns a copy of the table.
func (t Table) Clone() Table {
	c := make(Table, len(t))
	copy(c, t)
	return c
}

// CountFree returns the number of free data clusters.
func (t Table) CountFree() int {
	n := 0
	for i := FirstDataCluster; i < len(t); i++ {
		if t[i].IsFree() {
			n++
		}
	}
	return n
}
