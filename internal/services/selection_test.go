package services

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"alfredoptarigan/assessment-recommender/internal/models"
)

func scored(name string, score float64, types ...string) models.Candidate {
	c := cand(name, score, types...)
	combined := score
	c.CombinedScore = &combined
	return c
}

func TestSelect_InputAtOrBelowMinimum(t *testing.T) {
	sel := NewSelector(SelectionOptions{MinSelect: 3, MaxSelect: 5, MaxPerTestType: 1})
	in := []models.Candidate{cand("B", 0.2, "K"), cand("A", 0.9, "K")}

	out := sel.Select(&models.EnrichedRequirement{}, in)

	assert.Equal(t, []string{"B", "A"}, names(out))
}

func TestSelect_InputAtMinimumDropsDuplicates(t *testing.T) {
	sel := NewSelector(SelectionOptions{MinSelect: 3, MaxSelect: 5})
	a := cand("A", 0.9, "K")
	in := []models.Candidate{a, a, cand("B", 0.5, "P")}

	assert.Equal(t, []string{"A", "B"}, names(sel.Select(&models.EnrichedRequirement{}, in)))
}

func TestSelect_DiversityCap(t *testing.T) {
	sel := NewSelector(SelectionOptions{Policy: PolicyDiversity, MinSelect: 1, MaxSelect: 5, MaxPerTestType: 2})
	in := []models.Candidate{
		scored("K1", 0.95, "K"),
		scored("K2", 0.94, "K"),
		scored("K3", 0.93, "K"),
		scored("P1", 0.80, "P"),
		scored("K4", 0.79, "K"),
		scored("A1", 0.70, "A"),
	}

	out := sel.Select(&models.EnrichedRequirement{}, in)

	assert.Equal(t, []string{"K1", "K2", "P1", "A1"}, names(out))
}

func TestSelect_DiversityCapWaivedBelowMinimum(t *testing.T) {
	sel := NewSelector(SelectionOptions{Policy: PolicyDiversity, MinSelect: 3, MaxSelect: 5, MaxPerTestType: 1})
	in := []models.Candidate{
		scored("K1", 0.95, "K"),
		scored("K2", 0.94, "K"),
		scored("K3", 0.93, "K"),
		scored("K4", 0.92, "K"),
	}

	out := sel.Select(&models.EnrichedRequirement{}, in)

	assert.Equal(t, []string{"K1", "K2", "K3"}, names(out))
}

func TestSelect_CoveragePolicy(t *testing.T) {
	sel := NewSelector(SelectionOptions{
		Policy:            PolicyCoverage,
		MinSelect:         1,
		MaxSelect:         5,
		CoverageScoreBar:  0.8,
		CoverageTopSkills: 3,
	})
	req := &models.EnrichedRequirement{Skills: []string{"Java", "SQL", "Teamwork"}}
	in := []models.Candidate{
		scored("Core Java", 0.7, "K"),
		scored("Advanced Java", 0.65, "K"),
		scored("SQL Server", 0.6, "K"),
		scored("Verbal Reasoning", 0.85, "A"),
		scored("Excel", 0.5, "K"),
	}

	out := sel.Select(req, in)

	assert.Equal(t, []string{"Verbal Reasoning", "Core Java", "SQL Server"}, names(out))
}

func TestSelect_Backfill(t *testing.T) {
	sel := NewSelector(SelectionOptions{
		Policy:            PolicyCoverage,
		MinSelect:         3,
		MaxSelect:         5,
		CoverageScoreBar:  0.99,
		CoverageTopSkills: 3,
	})
	req := &models.EnrichedRequirement{Skills: []string{"python"}}
	in := []models.Candidate{
		scored("Go", 0.4, "K"),
		scored("Python", 0.3, "K"),
		scored("Rust", 0.6, "K"),
		scored("C", 0.5, "K"),
	}

	out := sel.Select(req, in)

	assert.Equal(t, []string{"Rust", "C", "Python"}, names(out))
}

func TestSelect_NoDuplicateNames(t *testing.T) {
	sel := NewSelector(SelectionOptions{MinSelect: 1, MaxSelect: 5, MaxPerTestType: 5})
	dup := scored("Java 8", 0.9, "K")
	dup.Item.ID = "other-id"
	in := []models.Candidate{scored("Java 8", 0.95, "K"), dup, scored("Python", 0.5, "K")}

	out := sel.Select(&models.EnrichedRequirement{}, in)

	assert.Equal(t, []string{"Java 8", "Python"}, names(out))
}

func TestSelect_SizeWindow(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	tags := []string{"A", "B", "C", "K", "P", "S"}

	for _, policy := range []string{PolicyDiversity, PolicyCoverage} {
		for trial := 0; trial < 50; trial++ {
			minSel := 1 + rng.Intn(4)
			maxSel := minSel + rng.Intn(6)
			sel := NewSelector(SelectionOptions{
				Policy:            policy,
				MinSelect:         minSel,
				MaxSelect:         maxSel,
				MaxPerTestType:    1 + rng.Intn(3),
				CoverageScoreBar:  rng.Float64(),
				CoverageTopSkills: 3,
			})

			n := rng.Intn(15)
			in := make([]models.Candidate, 0, n)
			for i := 0; i < n; i++ {
				in = append(in, scored(fmt.Sprintf("item-%d", i), rng.Float64(), tags[rng.Intn(len(tags))]))
			}

			out := sel.Select(&models.EnrichedRequirement{Skills: []string{"item-1"}}, in)

			if n > minSel {
				assert.GreaterOrEqual(t, len(out), minSel, "policy %s trial %d", policy, trial)
				assert.LessOrEqual(t, len(out), maxSel, "policy %s trial %d", policy, trial)
				for i := 1; i < len(out); i++ {
					assert.GreaterOrEqual(t, out[i-1].Score(), out[i].Score())
				}
			} else {
				assert.Len(t, out, n)
			}

			seen := map[string]bool{}
			for _, c := range out {
				assert.False(t, seen[c.Item.Name], "duplicate %s", c.Item.Name)
				seen[c.Item.Name] = true
			}
		}
	}
}
