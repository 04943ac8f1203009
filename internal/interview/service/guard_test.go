package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"visaflow/internal/interview/models"
	id "visaflow/pkg/domain"
)

func TestProgressGuard_IsStall(t *testing.T) {
	guard := NewProgressGuard(3)
	abc := models.NewCandidateSet([]id.VisaCode{"B-1", "B-2", "ESTA"})

	t.Run("equal sets after an answer is a stall", func(t *testing.T) {
		assert.True(t, guard.IsStall(abc, abc.Clone(), "tourism"))
	})

	t.Run("order does not matter", func(t *testing.T) {
		reordered := models.NewCandidateSet([]id.VisaCode{"ESTA", "B-1", "B-2"})
		assert.True(t, guard.IsStall(abc, reordered, "tourism"))
	})

	t.Run("a shrunk set is progress", func(t *testing.T) {
		narrowed := models.NewCandidateSet([]id.VisaCode{"B-2", "ESTA"})
		assert.False(t, guard.IsStall(abc, narrowed, "tourism"))
	})

	t.Run("a swapped element is progress", func(t *testing.T) {
		swapped := models.NewCandidateSet([]id.VisaCode{"B-1", "B-2", "H-1B"})
		assert.False(t, guard.IsStall(abc, swapped, "tourism"))
	})

	t.Run("blank answer never counts as a stall", func(t *testing.T) {
		assert.False(t, guard.IsStall(abc, abc.Clone(), "   "))
	})
}

func TestProgressGuard_ShouldForce(t *testing.T) {
	guard := NewProgressGuard(3)
	set := models.NewCandidateSet([]id.VisaCode{"B-1", "B-2"})

	assert.False(t, guard.ShouldForce(set, set, 2))
	assert.True(t, guard.ShouldForce(set, set, 3))
	assert.True(t, guard.ShouldForce(set, set, 4))

	narrowed := models.NewCandidateSet([]id.VisaCode{"B-2"})
	assert.False(t, guard.ShouldForce(set, narrowed, 5), "a changed set is never forced")
}

func TestProgressGuard_ThresholdClamped(t *testing.T) {
	guard := NewProgressGuard(0)
	set := models.NewCandidateSet([]id.VisaCode{"B-1"})
	assert.True(t, guard.ShouldForce(set, set, 1))
}

func TestProgressGuard_ForceChoice(t *testing.T) {
	guard := NewProgressGuard(3)

	t.Run("tourism answers prefer ESTA", func(t *testing.T) {
		set := models.NewCandidateSet([]id.VisaCode{"B-1", "B-2", "ESTA"})
		assert.Equal(t, id.VisaCode("ESTA"), guard.ForceChoice(set, "just tourism and sightseeing"))
	})

	t.Run("tourism falls through to B-2 when ESTA absent", func(t *testing.T) {
		set := models.NewCandidateSet([]id.VisaCode{"B-1", "B-2"})
		assert.Equal(t, id.VisaCode("B-2"), guard.ForceChoice(set, "a short vacation"))
	})

	t.Run("business answers prefer B-1", func(t *testing.T) {
		set := models.NewCandidateSet([]id.VisaCode{"E-1", "B-1"})
		assert.Equal(t, id.VisaCode("B-1"), guard.ForceChoice(set, "attending a business conference"))
	})

	t.Run("investment answers prefer EB-5", func(t *testing.T) {
		set := models.NewCandidateSet([]id.VisaCode{"E-2", "EB-5"})
		assert.Equal(t, id.VisaCode("EB-5"), guard.ForceChoice(set, "I want to invest capital in a startup"))
	})

	t.Run("work answers prefer H-1B", func(t *testing.T) {
		set := models.NewCandidateSet([]id.VisaCode{"TN", "L-1", "H-1B"})
		assert.Equal(t, id.VisaCode("H-1B"), guard.ForceChoice(set, "I have a job offer"))
	})

	t.Run("unmatched answer falls back to first in set order", func(t *testing.T) {
		set := models.NewCandidateSet([]id.VisaCode{"F-1", "M-1"})
		assert.Equal(t, id.VisaCode("F-1"), guard.ForceChoice(set, "something else entirely"))
	})

	t.Run("result is always a member of the set", func(t *testing.T) {
		set := models.NewCandidateSet([]id.VisaCode{"F-1", "J-1"})
		for _, answer := range []string{
			"tourism", "business meeting", "invest", "work", "gibberish", "",
		} {
			code := guard.ForceChoice(set, answer)
			assert.True(t, set.Contains(code), "answer %q chose %q outside the set", answer, code)
		}
	})

	t.Run("matching is case-insensitive", func(t *testing.T) {
		set := models.NewCandidateSet([]id.VisaCode{"B-2", "ESTA"})
		assert.Equal(t, id.VisaCode("ESTA"), guard.ForceChoice(set, "TOURISM"))
	})
}
