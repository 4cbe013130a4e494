package postprocess

import (
	"context"
	"sort"

	"booksync/internal/model"
)

// DefaultClusterGap is the largest distance between quote indices that still
// belong to the same cluster.
const DefaultClusterGap = 100

// SceneVote keeps, per scene, only the cluster of nearby quotes with the
// highest aggregated score. A cluster that starts close to the previous
// scene's winner inherits that winner's score as a head start. Matches
// without a scene are left alone.
type SceneVote struct {
	Gap int
}

// NewSceneVote returns a scene vote filter with the default cluster gap.
func NewSceneVote() *SceneVote {
	return &SceneVote{Gap: DefaultClusterGap}
}

// Name implements Filter.
func (s *SceneVote) Name() string { return NameSceneVote }

type quoteTally struct {
	score     float64
	positions []int
}

type cluster struct {
	start, end int
	score      float64
	quotes     []int
}

// Filter implements Filter.
func (s *SceneVote) Filter(_ context.Context, set model.MatchSet) (model.MatchSet, error) {
	gap := s.Gap
	if gap <= 0 {
		gap = DefaultClusterGap
	}

	perScene := make(map[int]map[int]*quoteTally)
	for pos, m := range set {
		if !m.HasScene() {
			continue
		}
		quotes, ok := perScene[m.Scene]
		if !ok {
			quotes = make(map[int]*quoteTally)
			perScene[m.Scene] = quotes
		}
		tally, ok := quotes[m.QuoteIndex]
		if !ok {
			tally = &quoteTally{}
			quotes[m.QuoteIndex] = tally
		}
		tally.score += m.Score
		tally.positions = append(tally.positions, pos)
	}

	scenes := make([]int, 0, len(perScene))
	for scene := range perScene {
		scenes = append(scenes, scene)
	}
	sort.Ints(scenes)

	remove := make(map[int]struct{})
	var prev *cluster
	for _, scene := range scenes {
		tallies := perScene[scene]
		clusters := clusterQuotes(tallies, gap)

		best := -1.0
		var winner *cluster
		for i := range clusters {
			c := &clusters[i]
			if prev != nil && c.start >= prev.start-gap && c.start <= prev.end+gap {
				c.score += prev.score
			}
			for _, q := range c.quotes {
				c.score += tallies[q].score
				if tallies[q].score == 1 {
					c.score += tallies[q].score
				}
			}
			if c.score >= best {
				best = c.score
				winner = c
			}
		}

		for _, c := range clusters {
			if c.score >= best {
				continue
			}
			for _, q := range c.quotes {
				for _, pos := range tallies[q].positions {
					remove[pos] = struct{}{}
				}
			}
		}
		prev = winner
	}
	return set.Without(remove), nil
}

// clusterQuotes groups quote indices in ascending order, opening a new
// cluster whenever the distance to the previous quote exceeds gap.
func clusterQuotes(tallies map[int]*quoteTally, gap int) []cluster {
	indices := make([]int, 0, len(tallies))
	for q := range tallies {
		indices = append(indices, q)
	}
	sort.Ints(indices)

	var clusters []cluster
	for _, q := range indices {
		n := len(clusters)
		if n == 0 || q > clusters[n-1].end+gap {
			clusters = append(clusters, cluster{start: q, end: q})
			n++
		}
		c := &clusters[n-1]
		c.end = q
		c.quotes = append(c.quotes, q)
	}
	return clusters
}
