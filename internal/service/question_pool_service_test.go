package service

import (
	"context"
	"errors"
	"learnhub_backend/internal/model"
	"learnhub_backend/internal/testutil"
	"learnhub_backend/internal/util"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDerivePath(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	topic := env.catalog.Topics[1]

	path, err := env.pool.DerivePath(ctx, topic.ID)
	require.NoError(t, err)
	assert.Equal(t, PathIDs{
		CourseID: env.catalog.Course.ID,
		VolumeID: env.catalog.Volume.ID,
		ModuleID: env.catalog.Module.ID,
		TopicID:  topic.ID,
	}, path)

	_, err = env.pool.DerivePath(ctx, 4242)
	assert.True(t, errors.Is(err, util.ErrTopicNotFound))

	orphanModule := model.Module{VolumeID: 999, Title: "orphan"}
	require.NoError(t, env.db.Create(&orphanModule).Error)
	orphan := model.Topic{ModuleID: orphanModule.ID, Title: "orphan", Level: "beginner"}
	require.NoError(t, env.db.Create(&orphan).Error)

	path, err = env.pool.DerivePath(ctx, orphan.ID)
	assert.True(t, errors.Is(err, util.ErrIncompletePath))
	assert.Equal(t, orphanModule.ID, path.ModuleID)
	assert.Zero(t, path.CourseID)
}

func TestSelectAppliesFilters(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	testutil.SeedQuestions(t, env.db, env.catalog, env.catalog.Topics[1], 3, model.DifficultyHard)

	all, err := env.pool.Select(ctx, PoolFilter{CourseID: env.catalog.Course.ID})
	require.NoError(t, err)
	assert.Len(t, all, 9)

	hard, err := env.pool.Select(ctx, PoolFilter{Difficulty: model.DifficultyHard})
	require.NoError(t, err)
	assert.Len(t, hard, 3)

	mixed, err := env.pool.Select(ctx, PoolFilter{
		TopicID:      env.catalog.Topics[0].ID,
		TopicIDs:     []uint{env.catalog.Topics[1].ID},
		Difficulties: []string{model.DifficultyMedium, model.DifficultyHard},
	})
	require.NoError(t, err)
	assert.Len(t, mixed, 9)

	excluded, err := env.pool.SelectExcluding(ctx, PoolFilter{Difficulty: model.DifficultyHard}, hard[:1])
	require.NoError(t, err)
	assert.Equal(t, hard[1:], excluded)

	_, err = env.pool.Select(ctx, PoolFilter{Difficulty: "extreme"})
	assert.True(t, errors.Is(err, util.ErrValidation))
}

func TestImportCSVIsolatesBadRows(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	topic := env.catalog.Topics[1]

	csv := strings.Join([]string{
		"stem,type,difficulty,marks,topic_id,options,correct",
		"What is 2+2?,single_best_answer,easy,1," + uintString(topic.ID) + ",3|4|5,2",
		"Broken marks,single_best_answer,easy,x," + uintString(topic.ID) + ",a|b,1",
		"Missing topic,single_best_answer,easy,1,9999,a|b,1",
		"No key,single_best_answer,,1," + uintString(topic.ID) + ",a|b,",
		"Explain,constructed_response,,2," + uintString(topic.ID) + ",,",
	}, "\n")

	report, err := env.pool.ImportCSV(ctx, teacher, strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, 2, report.Imported)
	require.Len(t, report.Errors, 3)
	assert.Equal(t, 3, report.Errors[0].Line)
	assert.Equal(t, 4, report.Errors[1].Line)
	assert.Equal(t, 5, report.Errors[2].Line)

	q, err := env.pool.QuestionRepo.FindByID(ctx, report.QuestionIDs[0])
	require.NoError(t, err)
	assert.Equal(t, env.catalog.Course.ID, q.CourseID)
	assert.Equal(t, env.catalog.Volume.ID, q.VolumeID)
	assert.Equal(t, env.catalog.Module.ID, q.ModuleID)
	assert.Equal(t, "beginner", q.Level)
	require.Len(t, q.Options, 3)
	assert.True(t, q.Options[1].IsCorrect)
	assert.False(t, q.Options[0].IsCorrect)

	essay, err := env.pool.QuestionRepo.FindByID(ctx, report.QuestionIDs[1])
	require.NoError(t, err)
	assert.Equal(t, model.DifficultyMedium, essay.Difficulty)
	assert.Empty(t, essay.Options)
}

func TestImportCSVRequiresPermissionAndHeader(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.pool.ImportCSV(ctx, student, strings.NewReader("stem,type,marks,topic_id\n"))
	assert.True(t, errors.Is(err, util.ErrForbidden))

	_, err = env.pool.ImportCSV(ctx, admin, strings.NewReader("stem,type\n"))
	require.True(t, errors.Is(err, util.ErrValidation))
	var appErr *util.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Contains(t, appErr.Fields, "marks")
	assert.Contains(t, appErr.Fields, "topic_id")
}

func uintString(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}
