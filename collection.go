package drift

import (
	"context"
	"fmt"
	"sort"

	"github.com/meigma/drift/naming"
)

// Set groups the remote objects of one backup set: the volumes and the
// manifest written by a single full or incremental run. Start and End
// are equal for full sets.
type Set struct {
	Type  naming.SetType
	Start int64
	End   int64

	// Volumes maps volume number to remote name.
	Volumes map[int]string

	// ManifestName is the remote name of the set's manifest, empty
	// while the manifest has not been seen.
	ManifestName string
}

// Complete reports whether the set has its manifest and a contiguous
// run of volumes starting at 1. Only complete sets take part in chain
// reconstruction.
func (s *Set) Complete() bool {
	if s.ManifestName == "" {
		return false
	}
	for n := 1; n <= len(s.Volumes); n++ {
		if _, ok := s.Volumes[n]; !ok {
			return false
		}
	}
	return true
}

// Names returns the set's remote names, volumes in order, manifest
// last.
func (s *Set) Names() []string {
	numbers := make([]int, 0, len(s.Volumes))
	for n := range s.Volumes {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)
	names := make([]string, 0, len(s.Volumes)+1)
	for _, n := range numbers {
		names = append(names, s.Volumes[n])
	}
	if s.ManifestName != "" {
		names = append(names, s.ManifestName)
	}
	return names
}

// Chain is one full set followed by the incremental sets built on it,
// each starting exactly where the previous set ended.
type Chain struct {
	Sets []*Set
}

// Start returns the backup time of the chain's full set.
func (c *Chain) Start() int64 { return c.Sets[0].Start }

// End returns the end time of the chain's newest set.
func (c *Chain) End() int64 { return c.Sets[len(c.Sets)-1].End }

// SignatureChain is the signature counterpart of a Chain: one full
// signature object and the new-signature deltas layered on it.
type SignatureChain struct {
	Full Object
	Incs []Object
}

// Start returns the backup time of the full signature.
func (c *SignatureChain) Start() int64 { return c.Full.Entry.Time }

// End returns the end time of the newest signature delta, or the full
// signature's time when there are none.
func (c *SignatureChain) End() int64 {
	if len(c.Incs) == 0 {
		return c.Full.Entry.Time
	}
	return c.Incs[len(c.Incs)-1].Entry.End
}

// Collection is the reconstructed state of a remote store: the backup
// chains that can be restored from, plus everything that cannot take
// part in one.
type Collection struct {
	// Chains are the restorable archive chains, ordered by start time.
	Chains []*Chain

	// SignatureChains mirror the archive chains, ordered by start time.
	SignatureChains []*SignatureChain

	// Incomplete are archive sets missing their manifest or volumes.
	Incomplete []*Set

	// Orphaned are complete incremental sets whose base chain is gone.
	Orphaned []*Set

	// OrphanedSignatures are signature deltas with no matching chain.
	OrphanedSignatures []Object

	// Partials are names of interrupted uploads.
	Partials []string
}

// Latest returns the chain with the newest end time, or nil when the
// store holds no restorable chain.
func (c *Collection) Latest() *Chain {
	var latest *Chain
	for _, ch := range c.Chains {
		if latest == nil || ch.End() > latest.End() {
			latest = ch
		}
	}
	return latest
}

// SignatureChainFor returns the signature chain starting together with
// the archive chain, or nil.
func (c *Collection) SignatureChainFor(ch *Chain) *SignatureChain {
	for _, sc := range c.SignatureChains {
		if sc.Start() == ch.Start() {
			return sc
		}
	}
	return nil
}

// Collections lists the remote store and reassembles its backup chains
// from the decoded names alone. Partial uploads never join a set, and
// incomplete sets never join a chain.
func (s *Store) Collections(ctx context.Context) (*Collection, error) {
	objects, err := s.Entries(ctx)
	if err != nil {
		return nil, err
	}
	return Resolve(objects), nil
}

// Resolve reassembles chains from decoded objects. Split out from
// Collections so it can run on any listing.
func Resolve(objects []Object) *Collection {
	col := &Collection{}

	sets := make(map[string]*Set)
	var sigs []Object
	for _, o := range objects {
		if o.Entry.Partial {
			col.Partials = append(col.Partials, o.Name)
			continue
		}
		switch o.Entry.Type {
		case naming.Full, naming.Inc:
			start, end := o.Entry.Time, o.Entry.Time
			if o.Entry.Type == naming.Inc {
				start, end = o.Entry.Start, o.Entry.End
			}
			key := fmt.Sprintf("%d|%d|%d", o.Entry.Type, start, end)
			set, ok := sets[key]
			if !ok {
				set = &Set{Type: o.Entry.Type, Start: start, End: end, Volumes: map[int]string{}}
				sets[key] = set
			}
			if o.Entry.Manifest {
				set.ManifestName = o.Name
			} else {
				set.Volumes[o.Entry.Volume] = o.Name
			}
		case naming.FullSig, naming.NewSig:
			sigs = append(sigs, o)
		}
	}

	var fulls, incs []*Set
	for _, set := range sets {
		switch {
		case !set.Complete():
			col.Incomplete = append(col.Incomplete, set)
		case set.Type == naming.Full:
			fulls = append(fulls, set)
		default:
			incs = append(incs, set)
		}
	}
	sortSets(fulls)
	sortSets(incs)
	sortSets(col.Incomplete)

	for _, set := range fulls {
		col.Chains = append(col.Chains, &Chain{Sets: []*Set{set}})
	}
	for _, set := range incs {
		ch := chainEndingAt(col.Chains, set.Start)
		if ch == nil {
			col.Orphaned = append(col.Orphaned, set)
			continue
		}
		ch.Sets = append(ch.Sets, set)
	}

	col.SignatureChains, col.OrphanedSignatures = resolveSignatures(sigs)
	return col
}

func sortSets(sets []*Set) {
	sort.Slice(sets, func(i, j int) bool {
		if sets[i].Start != sets[j].Start {
			return sets[i].Start < sets[j].Start
		}
		return sets[i].End < sets[j].End
	})
}

// chainEndingAt finds the chain an incremental starting at t extends.
func chainEndingAt(chains []*Chain, t int64) *Chain {
	for _, ch := range chains {
		if ch.End() == t {
			return ch
		}
	}
	return nil
}

func resolveSignatures(sigs []Object) ([]*SignatureChain, []Object) {
	sort.Slice(sigs, func(i, j int) bool {
		si, sj := sigStart(sigs[i]), sigStart(sigs[j])
		if si != sj {
			return si < sj
		}
		return sigs[i].Name < sigs[j].Name
	})

	var chains []*SignatureChain
	var orphans []Object
	for _, o := range sigs {
		if o.Entry.Type == naming.FullSig {
			chains = append(chains, &SignatureChain{Full: o})
			continue
		}
		attached := false
		for _, ch := range chains {
			if ch.End() == o.Entry.Start {
				ch.Incs = append(ch.Incs, o)
				attached = true
				break
			}
		}
		if !attached {
			orphans = append(orphans, o)
		}
	}
	return chains, orphans
}

func sigStart(o Object) int64 {
	if o.Entry.Type == naming.FullSig {
		return o.Entry.Time
	}
	return o.Entry.Start
}
