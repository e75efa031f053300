package clusterfs

import (
	"fmt"
	"time"

	"github.com/bits-and-blooms/bitset"
	"github.com/hupe1980/clusterfs/layout"
)

// ChainProblem describes a chain that could not be walked to its end.
type ChainProblem struct {
	File    string
	Cluster uint32
	Reason  string
}

func (p ChainProblem) String() string {
	return fmt.Sprintf("%s: cluster %d: %s", p.File, p.Cluster, p.Reason)
}

// CheckReport lists the inconsistencies found by Check.
type CheckReport struct {
	// CrossLinked holds clusters reached from more than one directory entry.
	CrossLinked []uint32
	// BrokenChains holds chains ending in a free, reserved or out-of-range
	// cluster, or looping back on themselves.
	BrokenChains []ChainProblem
	// Orphans holds allocated clusters no directory entry reaches.
	Orphans []uint32
	// Oversized holds files whose size is negative or exceeds the capacity
	// of their chain.
	Oversized []string
	// Duplicates holds names stored in more than one slot.
	Duplicates []string
	// BadReserved holds clusters 0 and 1 when they are not marked reserved.
	BadReserved []uint32
}

// Problems returns the total number of findings.
func (r *CheckReport) Problems() int {
	return len(r.CrossLinked) + len(r.BrokenChains) + len(r.Orphans) +
		len(r.Oversized) + len(r.Duplicates) + len(r.BadReserved)
}

// OK reports whether the check found nothing.
func (r *CheckReport) OK() bool {
	return r.Problems() == 0
}

// Check verifies the allocation and directory tables against each other.
// It never modifies the filesystem.
func (f *FS) Check() (report *CheckReport, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	defer func() {
		problems := 0
		if report != nil {
			problems = report.Problems()
		}
		f.logger.LogCheck(problems, err)
	}()

	if !f.open {
		return nil, ErrNotOpen
	}

	start := time.Now()
	report = &CheckReport{}
	n := uint(len(f.table))

	for c := uint32(0); c < layout.FirstDataCluster && uint(c) < n; c++ {
		if f.table[c].Kind() != layout.KindReserved {
			report.BadReserved = append(report.BadReserved, c)
		}
	}

	owned := bitset.New(n)
	crossed := bitset.New(n)
	names := make(map[string]int)

	for _, e := range f.dir {
		if e.IsFree() {
			continue
		}
		names[e.Name]++
		if names[e.Name] == 2 {
			report.Duplicates = append(report.Duplicates, e.Name)
		}

		length, problem := f.checkChain(e, owned, crossed)
		if problem != nil {
			report.BrokenChains = append(report.BrokenChains, *problem)
			continue
		}
		if int64(e.Size) > int64(length)*int64(f.sb.ClusterSize()) || e.Size < 0 {
			report.Oversized = append(report.Oversized, e.Name)
		}
	}

	for c, ok := crossed.NextSet(0); ok; c, ok = crossed.NextSet(c + 1) {
		report.CrossLinked = append(report.CrossLinked, uint32(c))
	}
	for c := uint(layout.FirstDataCluster); c < n; c++ {
		if f.table[c].IsAllocated() && !owned.Test(c) {
			report.Orphans = append(report.Orphans, uint32(c))
		}
	}

	f.logger.Debug("check walked tables",
		"clusters", n,
		"owned", owned.Count(),
		"duration", time.Since(start),
	)
	return report, nil
}

// checkChain walks the chain of e, marking clusters in owned. Clusters
// already owned by another chain are marked in crossed.
func (f *FS) checkChain(e layout.DirEntry, owned, crossed *bitset.BitSet) (int, *ChainProblem) {
	n := uint(len(f.table))
	if e.FirstCluster < layout.FirstDataCluster || uint(e.FirstCluster) >= n {
		return 0, &ChainProblem{File: e.Name, Cluster: uint32(e.FirstCluster), Reason: "first cluster out of range"}
	}

	seen := bitset.New(n)
	c := uint(e.FirstCluster)
	length := 0
	for {
		if seen.Test(c) {
			return length, &ChainProblem{File: e.Name, Cluster: uint32(c), Reason: "cycle"}
		}
		seen.Set(c)
		length++

		if owned.Test(c) {
			crossed.Set(c)
		}
		owned.Set(c)

		entry := f.table[c]
		switch entry.Kind() {
		case layout.KindEndOfChain:
			return length, nil
		case layout.KindNext:
			next, _ := entry.Next()
			if next < layout.FirstDataCluster || uint(next) >= n {
				return length, &ChainProblem{File: e.Name, Cluster: uint32(c), Reason: fmt.Sprintf("link to cluster %d out of range", next)}
			}
			c = uint(next)
		default:
			return length, &ChainProblem{File: e.Name, Cluster: uint32(c), Reason: entry.Kind().String() + " cluster in chain"}
		}
	}
}
