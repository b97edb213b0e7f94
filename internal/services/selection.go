package services

import (
	"strings"

	"alfredoptarigan/assessment-recommender/internal/models"
)

const (
	PolicyDiversity = "diversity"
	PolicyCoverage  = "coverage"
)

type SelectionOptions struct {
	Policy            string
	MinSelect         int
	MaxSelect         int
	MaxPerTestType    int
	CoverageScoreBar  float64
	CoverageTopSkills int
}

// Selector picks the final list within [MinSelect, MaxSelect].
type Selector struct {
	opts SelectionOptions
}

func NewSelector(opts SelectionOptions) *Selector {
	if opts.MaxPerTestType < 1 {
		opts.MaxPerTestType = 3
	}
	if opts.MaxSelect < opts.MinSelect {
		opts.MaxSelect = opts.MinSelect
	}
	return &Selector{opts: opts}
}

// Select never returns two candidates with the same id or name. Input at or below MinSelect
// is returned as is; otherwise the configured policy runs, then backfill tops the list up to
// MinSelect and the result is ordered by score.
func (s *Selector) Select(req *models.EnrichedRequirement, ranked []models.Candidate) []models.Candidate {
	if len(ranked) <= s.opts.MinSelect {
		return dedupe(ranked)
	}

	var sel *selection
	switch s.opts.Policy {
	case PolicyCoverage:
		sel = s.selectByCoverage(req, ranked)
	default:
		sel = s.selectByDiversity(ranked)
	}

	s.backfill(sel, ranked)

	out := sel.items
	models.SortByScore(out)
	return out
}

type selection struct {
	items []models.Candidate
	ids   map[string]bool
	names map[string]bool
	tags  map[string]int
}

func newSelection(capacity int) *selection {
	return &selection{
		items: make([]models.Candidate, 0, capacity),
		ids:   map[string]bool{},
		names: map[string]bool{},
		tags:  map[string]int{},
	}
}

func (s *selection) has(c *models.Candidate) bool {
	return (c.Item.ID != "" && s.ids[c.Item.ID]) || (c.Item.Name != "" && s.names[c.Item.Name])
}

func (s *selection) add(c models.Candidate) {
	s.items = append(s.items, c)
	if c.Item.ID != "" {
		s.ids[c.Item.ID] = true
	}
	if c.Item.Name != "" {
		s.names[c.Item.Name] = true
	}
	for _, t := range c.Item.TestTypes {
		s.tags[t]++
	}
}

func (s *selection) fitsCap(c *models.Candidate, limit int) bool {
	for _, t := range c.Item.TestTypes {
		if s.tags[t]+1 > limit {
			return false
		}
	}
	return true
}

// selectByDiversity admits candidates in rank order while no test type exceeds its cap.
// The cap is waived until MinSelect candidates are in.
func (s *Selector) selectByDiversity(ranked []models.Candidate) *selection {
	sel := newSelection(s.opts.MaxSelect)
	for i := range ranked {
		if len(sel.items) >= s.opts.MaxSelect {
			break
		}
		c := &ranked[i]
		if sel.has(c) {
			continue
		}
		if len(sel.items) < s.opts.MinSelect || sel.fitsCap(c, s.opts.MaxPerTestType) {
			sel.add(*c)
		}
	}
	return sel
}

// selectByCoverage admits a candidate when it mentions a top skill not yet covered, or when
// its score clears CoverageScoreBar.
func (s *Selector) selectByCoverage(req *models.EnrichedRequirement, ranked []models.Candidate) *selection {
	var skills []string
	for _, skill := range req.TopSkills(s.opts.CoverageTopSkills) {
		if skill = strings.ToLower(strings.TrimSpace(skill)); skill != "" {
			skills = append(skills, skill)
		}
	}
	covered := make(map[string]bool, len(skills))

	sel := newSelection(s.opts.MaxSelect)
	for i := range ranked {
		if len(sel.items) >= s.opts.MaxSelect {
			break
		}
		c := &ranked[i]
		if sel.has(c) {
			continue
		}

		text := strings.ToLower(c.Item.Name + " " + c.Item.Description)
		var fresh []string
		for _, skill := range skills {
			if !covered[skill] && strings.Contains(text, skill) {
				fresh = append(fresh, skill)
			}
		}

		if len(fresh) > 0 || c.Score() > s.opts.CoverageScoreBar {
			sel.add(*c)
			for _, skill := range fresh {
				covered[skill] = true
			}
		}
	}
	return sel
}

// backfill tops the selection up to MinSelect from the remaining candidates, best score first,
// ignoring every policy constraint except uniqueness.
func (s *Selector) backfill(sel *selection, ranked []models.Candidate) {
	if len(sel.items) >= s.opts.MinSelect {
		return
	}

	rest := make([]models.Candidate, 0, len(ranked))
	for i := range ranked {
		if !sel.has(&ranked[i]) {
			rest = append(rest, ranked[i])
		}
	}
	models.SortByScore(rest)

	for i := range rest {
		if len(sel.items) >= s.opts.MinSelect {
			return
		}
		if !sel.has(&rest[i]) {
			sel.add(rest[i])
		}
	}
}

func dedupe(cands []models.Candidate) []models.Candidate {
	sel := newSelection(len(cands))
	for i := range cands {
		if !sel.has(&cands[i]) {
			sel.add(cands[i])
		}
	}
	return sel.items
}
