package postprocess

import (
	"context"
	"math"
	"sort"

	"booksync/internal/model"
)

// Axis selects which index a timeline filter checks.
type Axis int

const (
	// AxisQuote groups by subtitle line and checks quote indices.
	AxisQuote Axis = iota
	// AxisSubtitle groups by quote and checks subtitle indices.
	AxisSubtitle
)

// Timeline defaults.
const (
	DefaultGapFraction = 0.05
	DefaultSamples     = 5
)

// Timeline removes matches that jump away from the running position on the
// checked axis. A jump beyond the allowed gap but within twice of it survives
// only if the following matches sit closer to it than to the running
// position.
type Timeline struct {
	Axis        Axis
	GapFraction float64
	Samples     int
}

// NewTimeline returns a timeline filter with default tuning.
func NewTimeline(axis Axis) *Timeline {
	return &Timeline{Axis: axis, GapFraction: DefaultGapFraction, Samples: DefaultSamples}
}

// Name implements Filter.
func (t *Timeline) Name() string {
	if t.Axis == AxisSubtitle {
		return NameSubtitleTimeline
	}
	return NameQuoteTimeline
}

type timelineEntry struct {
	value int
	pos   int
}

func (t *Timeline) keys(m model.Match) (group, value int) {
	if t.Axis == AxisSubtitle {
		return m.QuoteIndex, m.SubtitleIndex
	}
	return m.SubtitleIndex, m.QuoteIndex
}

// Filter implements Filter.
func (t *Timeline) Filter(_ context.Context, set model.MatchSet) (model.MatchSet, error) {
	if len(set) == 0 {
		return set.Clone(), nil
	}

	groups := make(map[int][]timelineEntry)
	maxValue := 0
	for pos, m := range set {
		group, value := t.keys(m)
		groups[group] = append(groups[group], timelineEntry{value: value, pos: pos})
		maxValue = max(maxValue, value)
	}
	order := make([]int, 0, len(groups))
	for group, entries := range groups {
		order = append(order, group)
		sort.SliceStable(entries, func(i, j int) bool { return entries[i].value < entries[j].value })
	}
	sort.Ints(order)

	// Flatten so sampling can walk into subsequent groups.
	walk := make([]timelineEntry, 0, len(set))
	for _, group := range order {
		walk = append(walk, groups[group]...)
	}

	// One index step is always within the gap.
	gap := max(1, t.GapFraction*float64(maxValue))
	samples := t.Samples
	if samples <= 0 {
		samples = DefaultSamples
	}

	remove := make(map[int]struct{})
	last := -1
	for i, entry := range walk {
		if last < 0 {
			last = entry.value
			continue
		}
		deviation := math.Abs(float64(entry.value - last))
		switch {
		case deviation <= gap:
			last = entry.value
		case deviation > 2*gap:
			remove[entry.pos] = struct{}{}
		default:
			following := walk[i+1 : min(len(walk), i+1+samples)]
			if len(following) == 0 {
				// Nothing after the final match can contradict a moderate jump.
				last = entry.value
				continue
			}
			candidate, incumbent := support(following, entry.value, last, gap)
			if candidate <= incumbent {
				remove[entry.pos] = struct{}{}
				continue
			}
			last = entry.value
		}
	}
	return set.Without(remove), nil
}

// support counts the samples within half the gap of the candidate and of the
// incumbent. When neither side has any, each sample votes for the side it is
// strictly nearer to, so steady progress in steps just above the gap is kept.
func support(samples []timelineEntry, candidate, incumbent int, gap float64) (int, int) {
	forCandidate, forIncumbent := 0, 0
	for _, sample := range samples {
		if math.Abs(float64(sample.value-candidate)) <= gap/2 {
			forCandidate++
		}
		if math.Abs(float64(sample.value-incumbent)) <= gap/2 {
			forIncumbent++
		}
	}
	if forCandidate > 0 || forIncumbent > 0 {
		return forCandidate, forIncumbent
	}
	for _, sample := range samples {
		toCandidate := math.Abs(float64(sample.value - candidate))
		toIncumbent := math.Abs(float64(sample.value - incumbent))
		switch {
		case toCandidate < toIncumbent:
			forCandidate++
		case toIncumbent < toCandidate:
			forIncumbent++
		}
	}
	return forCandidate, forIncumbent
}
