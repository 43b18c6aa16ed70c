package coaching

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/untibullet/teamup-coach/internal/models"
)

func answersFor(position int, grade string) map[string]string {
	qs, _ := Questions(position)
	answers := make(map[string]string, len(qs))
	for _, q := range qs {
		for _, o := range q.Options {
			if strings.HasSuffix(o.Code, "_"+grade) {
				answers[q.ID] = o.Code
			}
		}
	}
	return answers
}

func TestQuestions(t *testing.T) {
	for pos := 1; pos <= 5; pos++ {
		qs, err := Questions(pos)
		require.NoError(t, err)
		require.Len(t, qs, 4)
		assert.Equal(t, []string{"q1", "q2", "q3", PositionQuestionID}, []string{qs[0].ID, qs[1].ID, qs[2].ID, qs[3].ID})
		for _, q := range qs {
			assert.Len(t, q.Options, 3)
		}
	}

	_, err := Questions(6)
	assert.ErrorIs(t, err, ErrInvalidAnswers)
}

func TestCollect(t *testing.T) {
	t.Run("complete", func(t *testing.T) {
		answers := answersFor(5, "GOOD")
		answers["extra"] = "ignored"

		got, err := Collect(5, answers)
		require.NoError(t, err)
		assert.Len(t, got, 4)
		assert.Equal(t, "INSIDE_HELP_GOOD", got[PositionQuestionID])
	})

	t.Run("missing question", func(t *testing.T) {
		answers := answersFor(1, "GOOD")
		delete(answers, "q3")

		_, err := Collect(1, answers)
		assert.ErrorIs(t, err, ErrInvalidAnswers)
		assert.Contains(t, err.Error(), "q3")
	})

	t.Run("option of another position", func(t *testing.T) {
		answers := answersFor(1, "GOOD")
		answers[PositionQuestionID] = "BOX_OUT_GOOD"

		_, err := Collect(1, answers)
		assert.ErrorIs(t, err, ErrInvalidAnswers)
	})

	t.Run("unknown position", func(t *testing.T) {
		_, err := Collect(0, answersFor(1, "GOOD"))
		assert.ErrorIs(t, err, ErrInvalidAnswers)
	})
}

func TestDraft_PositionFeedbacks(t *testing.T) {
	d := NewDraft()
	require.NoError(t, d.Add(4, answersFor(4, "POOR")))
	require.NoError(t, d.Add(1, answersFor(1, "AVERAGE")))
	require.NoError(t, d.Add(4, answersFor(4, "GOOD")))
	assert.Error(t, d.Add(2, map[string]string{"q1": "BALL_MOVEMENT_GOOD"}))
	assert.Equal(t, 2, d.Len())

	fbs := d.PositionFeedbacks()
	require.Len(t, fbs, 2)
	assert.Equal(t, models.PositionFeedback{
		PositionNumber: 1,
		Tags:           []string{"BALL_MOVEMENT_AVERAGE", "DEFENSIVE_ROTATION_AVERAGE", "COMMUNICATION_AVERAGE", "PASS_TEMPO_AVERAGE"},
	}, fbs[0])
	assert.Equal(t, 4, fbs[1].PositionNumber)
	assert.Equal(t, "BOX_OUT_GOOD", fbs[1].Tags[3])
}

func TestFocusTag(t *testing.T) {
	fbs := []models.PositionFeedback{{
		PositionNumber: 3,
		Tags:           []string{"BALL_MOVEMENT_AVERAGE", "DEFENSIVE_ROTATION_GOOD", "COMMUNICATION_POOR", "TRANSITION_AVERAGE"},
	}}

	assert.Equal(t, models.TagDefense, FocusTag(models.ResultWin, fbs))
	assert.Equal(t, models.TagTeamwork, FocusTag(models.ResultLose, fbs))
	assert.Equal(t, models.TagTeamwork, FocusTag(models.ResultDraw, fbs))

	assert.Equal(t, models.TagTeamwork, FocusTag(models.ResultWin, nil))

	// равные оценки решаются порядком тегов
	even := []models.PositionFeedback{{
		PositionNumber: 1,
		Tags:           []string{"BALL_MOVEMENT_GOOD", "DEFENSIVE_ROTATION_GOOD", "COMMUNICATION_GOOD", "PASS_TEMPO_GOOD"},
	}}
	assert.Equal(t, models.TagDefense, FocusTag(models.ResultWin, even))
	assert.Equal(t, models.TagDefense, FocusTag(models.ResultLose, even))
}
