package timetable

import "slices"

// Conflict is a pair of overlapping entries. A starts no later than B.
type Conflict struct {
	A     Entry
	B     Entry
	Range Range
}

// Overlaps uses half-open intervals: touching entries do not overlap.
func Overlaps(a, b Range) bool { return a.Start < b.End && b.Start < a.End }

func intersect(a, b Range) Range {
	return Range{Start: max(a.Start, b.Start), End: min(a.End, b.End)}
}

// CheckEntry tests candidate against the existing entries of a timeline and
// returns an *OverlapError for the first (earliest) collision. An existing
// entry with the candidate's ID is the one being edited and is skipped.
func CheckEntry(entries []Entry, candidate Entry) error {
	var hit *Entry
	for i := range entries {
		e := &entries[i]
		if e.ID == candidate.ID || !Overlaps(e.Range(), candidate.Range()) {
			continue
		}
		if hit == nil || e.Start < hit.Start {
			hit = e
		}
	}
	if hit == nil {
		return nil
	}
	r := intersect(hit.Range(), candidate.Range())
	return &OverlapError{
		Entry: candidate,
		With:  *hit,
		Range: r,
		Pairs: []Conflict{pairOf(*hit, candidate, r)},
	}
}

// pairOf orders a and b by start; on a tie a stays first.
func pairOf(a, b Entry, r Range) Conflict {
	if b.Start < a.Start {
		a, b = b, a
	}
	return Conflict{A: a, B: b, Range: r}
}

// CheckTimeline returns every overlapping pair in entries. It sorts a copy by
// start and sweeps once, keeping the entries still open at each start.
func CheckTimeline(entries []Entry) []Conflict {
	sorted := slices.Clone(entries)
	sortEntries(sorted)

	var out []Conflict
	open := make([]Entry, 0, 4)
	for _, cur := range sorted {
		keep := open[:0]
		for _, o := range open {
			if o.End > cur.Start {
				keep = append(keep, o)
			}
		}
		open = keep
		for _, o := range open {
			out = append(out, Conflict{A: o, B: cur, Range: intersect(o.Range(), cur.Range())})
		}
		open = append(open, cur)
	}
	return out
}
