package catalog

import (
	"testing"

	"github.com/edforge/course-player/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestClassifyFreshCourse(t *testing.T) {
	c := twoByTwo()

	states := ClassifyAll(c, 1)

	assert.Equal(t, domain.LessonCurrent, states[1])
	assert.Equal(t, domain.LessonLocked, states[2])
	assert.Equal(t, domain.LessonLocked, states[3])
	assert.Equal(t, domain.LessonLocked, states[4])
}

func TestClassifyAfterFirstCompletion(t *testing.T) {
	c := twoByTwo(1)

	states := ClassifyAll(c, 2)

	assert.Equal(t, domain.LessonCompleted, states[1])
	assert.Equal(t, domain.LessonCurrent, states[2])
	assert.Equal(t, domain.LessonLocked, states[3])
	assert.Equal(t, domain.LessonLocked, states[4])
}

func TestClassifySingleFrontier(t *testing.T) {
	// learner replays lesson 1 while lesson 2 is the frontier
	c := twoByTwo(1)

	states := ClassifyAll(c, 1)

	assert.Equal(t, domain.LessonCurrent, states[1])
	assert.Equal(t, domain.LessonFirstIncomplete, states[2])
	assert.Equal(t, domain.LessonLocked, states[3])
	assert.Equal(t, domain.LessonLocked, states[4])

	frontiers := 0
	for _, state := range states {
		if state == domain.LessonFirstIncomplete {
			frontiers++
		}
	}
	assert.Equal(t, 1, frontiers)
}

func TestClassifyCurrentBeatsFrontier(t *testing.T) {
	// the displayed lesson is reachable even when it is also the frontier
	c := twoByTwo()
	assert.Equal(t, domain.LessonCurrent, Classify(Find(c, 1), c, 1))
}

func TestClassifyCurrentLessonNeverStranded(t *testing.T) {
	// partial server data may leave the selection on a lesson past the
	// frontier, it must stay reachable regardless
	c := twoByTwo(1)
	assert.Equal(t, domain.LessonCurrent, Classify(Find(c, 4), c, 4))
}

func TestClassifyCrossSectionUnlock(t *testing.T) {
	c := twoByTwo(1, 2)

	states := ClassifyAll(c, 2)

	assert.Equal(t, domain.LessonCompleted, states[1])
	assert.Equal(t, domain.LessonCompleted, states[2])
	assert.Equal(t, domain.LessonFirstIncomplete, states[3])
	assert.Equal(t, domain.LessonLocked, states[4])
}

func TestMonotonicUnlocking(t *testing.T) {
	c := twoByTwo()

	for _, id := range []int64{1, 2, 3, 4} {
		before := ClassifyAll(c, id)
		MarkCompleted(c, id)
		after := ClassifyAll(c, id)

		// completing a lesson never locks a previously reachable one
		for lessonID, state := range before {
			if state != domain.LessonLocked {
				assert.NotEqual(t, domain.LessonLocked, after[lessonID],
					"lesson %d became locked after completing %d", lessonID, id)
			}
		}
	}
}

func TestIsClickable(t *testing.T) {
	c := twoByTwo(1)

	assert.True(t, IsClickable(Find(c, 1), c, 2))  // completed, replayable
	assert.True(t, IsClickable(Find(c, 2), c, 2))  // current
	assert.False(t, IsClickable(Find(c, 3), c, 2)) // locked
	assert.False(t, IsClickable(Find(c, 4), c, 2))

	// frontier is clickable without being selected
	assert.True(t, IsClickable(Find(c, 2), c, 1))
}
