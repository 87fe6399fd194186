package repository_test

import (
	"context"
	"learnhub_backend/internal/model"
	"learnhub_backend/internal/repository"
	"learnhub_backend/internal/testutil"
	"learnhub_backend/internal/util"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertAnswerOnlyTouchesListedColumns(t *testing.T) {
	db := testutil.NewDB(t)
	repo := repository.NewAttemptRepository(db)
	ctx := context.Background()

	attempt := &model.Attempt{ExamID: 1, UserID: 10, StartedAt: testutil.Clock}
	require.NoError(t, repo.CreateWithPlaceholders(ctx, attempt, []uint{5, 6}))

	answers, err := repo.ListAnswers(ctx, attempt.ID)
	require.NoError(t, err)
	require.Len(t, answers, 2)
	assert.Nil(t, answers[0].IsCorrect)

	_, err = repo.UpsertAnswer(ctx, &model.Answer{
		AttemptID:        attempt.ID,
		QuestionID:       5,
		SelectedOptionID: util.UintPtr(42),
		IsCorrect:        util.BoolPtr(true),
	}, []string{"selected_option_id", "is_correct"})
	require.NoError(t, err)

	stored, err := repo.UpsertAnswer(ctx, &model.Answer{
		AttemptID:    attempt.ID,
		QuestionID:   5,
		Flagged:      true,
		TimeSpentSec: 12,
	}, []string{"flagged", "time_spent_sec"})
	require.NoError(t, err)
	assert.True(t, stored.Flagged)
	assert.Equal(t, 12, stored.TimeSpentSec)
	require.NotNil(t, stored.SelectedOptionID)
	assert.Equal(t, uint(42), *stored.SelectedOptionID)
	require.NotNil(t, stored.IsCorrect)
	assert.True(t, *stored.IsCorrect)

	answers, err = repo.ListAnswers(ctx, attempt.ID)
	require.NoError(t, err)
	assert.Len(t, answers, 2)
}

func TestMarkSubmittedSucceedsOnce(t *testing.T) {
	db := testutil.NewDB(t)
	repo := repository.NewAttemptRepository(db)
	ctx := context.Background()

	attempt := &model.Attempt{ExamID: 1, UserID: 10, StartedAt: testutil.Clock}
	require.NoError(t, repo.CreateWithPlaceholders(ctx, attempt, nil))

	ok, err := repo.MarkSubmitted(ctx, attempt.ID, 80, 120, testutil.Clock)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.MarkSubmitted(ctx, attempt.ID, 10, 0, testutil.Clock)
	require.NoError(t, err)
	assert.False(t, ok)

	stored, err := repo.FindByID(ctx, attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AttemptSubmitted, stored.Status)
	require.NotNil(t, stored.ScorePercent)
	assert.Equal(t, 80, *stored.ScorePercent)
	assert.Equal(t, 120, stored.TimeRemainingSec)
}

func TestIncrementWeakTopicAccumulates(t *testing.T) {
	db := testutil.NewDB(t)
	repo := repository.NewRemediationRepository(db)
	ctx := context.Background()

	_, err := repo.IncrementWeakTopic(ctx, 10, 3, 2, 4)
	require.NoError(t, err)
	weak, err := repo.IncrementWeakTopic(ctx, 10, 3, 0, 4)
	require.NoError(t, err)
	assert.Equal(t, 2, weak.WrongCount)
	assert.Equal(t, 8, weak.TotalCount)
	assert.InDelta(t, 75.0, weak.Percent, 1e-9)

	_, err = repo.IncrementWeakTopic(ctx, 10, 4, 3, 3)
	require.NoError(t, err)
	list, err := repo.ListWeakTopics(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, uint(4), list[0].TopicID)
}

func TestUpsertMistakeCountsRepeats(t *testing.T) {
	db := testutil.NewDB(t)
	repo := repository.NewRemediationRepository(db)
	ctx := context.Background()

	_, err := repo.UpsertMistake(ctx, 10, 7, 3, testutil.Clock)
	require.NoError(t, err)
	entry, err := repo.UpsertMistake(ctx, 10, 7, 3, testutil.Clock)
	require.NoError(t, err)
	assert.Equal(t, 2, entry.WrongCount)

	ids, err := repo.UnresolvedMistakeQuestionIDs(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []uint{7}, ids)

	require.NoError(t, repo.MarkRetested(ctx, 10, 7, true, testutil.Clock))
	ids, err = repo.UnresolvedMistakeQuestionIDs(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, ids)
}
