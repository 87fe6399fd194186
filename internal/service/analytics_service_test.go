package service

import (
	"context"
	"errors"
	"learnhub_backend/internal/model"
	"learnhub_backend/internal/repository"
	"learnhub_backend/internal/testutil"
	"learnhub_backend/internal/util"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func submittedAt(score int, at time.Time) model.Attempt {
	return model.Attempt{
		Status:       model.AttemptSubmitted,
		StartedAt:    at.Add(-time.Hour),
		SubmittedAt:  &at,
		ScorePercent: util.IntPtr(score),
	}
}

func TestBuildSummary(t *testing.T) {
	monday := testutil.Clock
	attempts := []model.Attempt{
		submittedAt(40, monday),
		submittedAt(60, monday.AddDate(0, 0, 6)),
		submittedAt(80, monday.AddDate(0, 0, 7)),
	}
	stats := []repository.TopicStat{{TopicID: 3, Correct: 3, Total: 4}, {TopicID: 4, Correct: 0, Total: 0}}

	s := BuildSummary(attempts, stats)
	assert.Equal(t, 3, s.Attempts)
	assert.InDelta(t, 60.0, s.AverageScore, 1e-9)
	assert.Equal(t, 40, s.Improvement)
	assert.Equal(t, 67, s.Readiness)
	assert.Equal(t, 87, s.PassEstimate)

	require.Len(t, s.Topics, 2)
	assert.Equal(t, 75.0, s.Topics[0].Percent)
	assert.Zero(t, s.Topics[1].Percent)

	require.Len(t, s.Weekly, 2)
	assert.Equal(t, "2026-03-02", s.Weekly[0].WeekStart)
	assert.Equal(t, 2, s.Weekly[0].Attempts)
	assert.Equal(t, 50.0, s.Weekly[0].Average)
	assert.Equal(t, "2026-03-09", s.Weekly[1].WeekStart)
	assert.Equal(t, 80.0, s.Weekly[1].Average)
}

func TestBuildSummaryKeepsLastEightWeeks(t *testing.T) {
	var attempts []model.Attempt
	for i := 0; i < 10; i++ {
		attempts = append(attempts, submittedAt(50, testutil.Clock.AddDate(0, 0, 7*i)))
	}
	s := BuildSummary(attempts, nil)
	require.Len(t, s.Weekly, 8)
	assert.Equal(t, "2026-03-16", s.Weekly[0].WeekStart)
}

func TestBuildSummaryWithoutAttempts(t *testing.T) {
	s := BuildSummary(nil, nil)
	assert.Zero(t, s.Attempts)
	assert.Zero(t, s.Readiness)
	assert.Equal(t, 5, s.PassEstimate)
	assert.Empty(t, s.Weekly)
	assert.Empty(t, s.Topics)
}

func TestReadinessUsesLastFiveAttempts(t *testing.T) {
	var attempts []model.Attempt
	for _, score := range []int{0, 0, 100, 100, 100, 100, 100} {
		attempts = append(attempts, submittedAt(score, testutil.Clock))
	}
	assert.Equal(t, 100, Readiness(attempts))
	assert.Equal(t, 0, Readiness(nil))
}

func TestPassEstimate(t *testing.T) {
	assert.Equal(t, 95, PassEstimate(90, 10))
	assert.Equal(t, 5, PassEstimate(0, -10))
	assert.Equal(t, 75, PassEstimate(70, 0))
	assert.Equal(t, 63, PassEstimate(60, 5))
	assert.Equal(t, 60, PassEstimate(60, -20))
}

func TestSummaryAndEnrollmentSummaryFromSubmittedAttempt(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	exam := env.publishCourseExam(t, 2)
	testutil.Enroll(t, env.db, student.UserID, env.catalog.Course.ID)

	view, err := env.attempts.Start(ctx, student, exam.ID)
	require.NoError(t, err)
	for i, q := range view.Questions {
		correct, wrong := testutil.Options(t, env.db, q.QuestionID)
		pick := correct.ID
		if i == 1 {
			pick = wrong.ID
		}
		_, err := env.attempts.AutosaveAnswer(ctx, student, view.Attempt.ID, q.QuestionID, AutosaveRequest{SelectedOptionID: &pick})
		require.NoError(t, err)
	}
	_, err = env.attempts.Submit(ctx, student, view.Attempt.ID)
	require.NoError(t, err)

	summary, err := env.analytics.Summary(ctx, student)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Attempts)
	assert.InDelta(t, 50.0, summary.AverageScore, 1e-9)
	require.Len(t, summary.Topics, 1)
	assert.Equal(t, 1, summary.Topics[0].Correct)
	assert.Equal(t, 2, summary.Topics[0].Total)

	es, err := env.analytics.EnrollmentSummary(ctx, student, env.catalog.Course.ID)
	require.NoError(t, err)
	assert.True(t, es.Enrolled)
	assert.Equal(t, model.EnrollmentCompleted, es.Status)
	assert.Equal(t, 1, es.Submitted)
	require.NotNil(t, es.BestScore)
	assert.Equal(t, 50, *es.BestScore)
	assert.False(t, es.Passed)

	_, err = env.analytics.EnrollmentSummary(ctx, student, 999)
	assert.True(t, errors.Is(err, util.ErrCourseNotFound))
}
