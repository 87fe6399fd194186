package service

import (
	"context"
	"errors"
	"learnhub_backend/internal/model"
	"learnhub_backend/internal/testutil"
	"learnhub_backend/internal/util"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (e *testEnv) selfServiceRequest(count int) CreateExamRequest {
	return CreateExamRequest{
		Name:             "My mock",
		TimeLimitMinutes: 20,
		QuestionCount:    count,
		CourseID:         &e.catalog.Course.ID,
		StartAt:          timePtr(e.now.Add(time.Hour)),
		EndAt:            timePtr(e.now.Add(2 * time.Hour)),
	}
}

func TestCreateCustomRejectsOversizedPool(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.exams.CreateCustom(context.Background(), student, env.selfServiceRequest(7))
	require.Error(t, err)
	assert.True(t, errors.Is(err, util.ErrConflict))

	var appErr *util.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "7", appErr.Fields["requested"])
	assert.Equal(t, "6", appErr.Fields["available"])

	var exams, links int64
	env.db.Model(&model.Exam{}).Count(&exams)
	env.db.Model(&model.ExamQuestion{}).Count(&links)
	assert.Zero(t, exams)
	assert.Zero(t, links)
}

func TestCreateCustomRequiresWindowForLearners(t *testing.T) {
	env := newTestEnv(t)
	req := env.selfServiceRequest(3)
	req.StartAt = nil

	_, err := env.exams.CreateCustom(context.Background(), student, req)
	assert.True(t, errors.Is(err, util.ErrValidation))

	req = env.selfServiceRequest(3)
	req.EndAt = timePtr(*req.StartAt)
	_, err = env.exams.CreateCustom(context.Background(), student, req)
	assert.True(t, errors.Is(err, util.ErrValidation))
}

func TestCreateCustomAllowsOneOpenExam(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	exam, err := env.exams.CreateCustom(ctx, student, env.selfServiceRequest(3))
	require.NoError(t, err)
	assert.Equal(t, model.ExamCourse, exam.Type)
	assert.Equal(t, "beginner", exam.Level)
	assert.True(t, exam.IsActive)
	require.NotNil(t, exam.CreatorID)
	assert.Equal(t, student.UserID, *exam.CreatorID)

	links, err := env.exams.ExamRepo.ListQuestions(ctx, exam.ID)
	require.NoError(t, err)
	require.Len(t, links, 3)
	for i, l := range links {
		assert.Equal(t, i+1, l.Position)
	}

	_, err = env.exams.CreateCustom(ctx, student, env.selfServiceRequest(3))
	assert.True(t, errors.Is(err, util.ErrOpenExamExists))

	// 其他学习者不受影响
	_, err = env.exams.CreateCustom(ctx, other, env.selfServiceRequest(3))
	assert.NoError(t, err)

	env.now = env.now.Add(2*time.Hour + time.Minute)
	_, err = env.exams.CreateCustom(ctx, student, env.selfServiceRequest(3))
	assert.NoError(t, err)
}

func TestCreateCustomAsAdminIsInactiveByDefault(t *testing.T) {
	env := newTestEnv(t)

	exam, err := env.exams.CreateCustom(context.Background(), admin, CreateExamRequest{
		Name:             "Published",
		TimeLimitMinutes: 10,
		QuestionCount:    2,
		TopicIDs:         []uint{env.catalog.Topics[0].ID},
	})
	require.NoError(t, err)
	assert.Equal(t, model.ExamQuiz, exam.Type)
	assert.False(t, exam.IsActive)
	assert.Nil(t, exam.CreatorID)
	require.NotNil(t, exam.TopicID)
	assert.Equal(t, env.catalog.Topics[0].ID, *exam.TopicID)
}

func TestRandomizeReplacesThenAppends(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	exam, err := env.exams.CreateCustom(ctx, student, env.selfServiceRequest(2))
	require.NoError(t, err)

	links, err := env.exams.Randomize(ctx, student, exam.ID, RandomizeRequest{Count: 3})
	require.NoError(t, err)
	require.Len(t, links, 3)
	ids, err := env.exams.ExamRepo.ListQuestionIDs(ctx, exam.ID)
	require.NoError(t, err)
	assert.Len(t, ids, 3)

	links, err = env.exams.Randomize(ctx, student, exam.ID, RandomizeRequest{Count: 2, Append: true})
	require.NoError(t, err)
	require.Len(t, links, 2)
	assert.Equal(t, 4, links[0].Position)
	assert.Equal(t, 5, links[1].Position)

	ids, err = env.exams.ExamRepo.ListQuestionIDs(ctx, exam.ID)
	require.NoError(t, err)
	seen := map[uint]bool{}
	for _, id := range ids {
		assert.False(t, seen[id], "question %d sampled twice", id)
		seen[id] = true
	}
	assert.Len(t, ids, 5)

	// 只剩 1 道未入卷的题
	_, err = env.exams.Randomize(ctx, student, exam.ID, RandomizeRequest{Count: 2, Append: true})
	assert.True(t, errors.Is(err, util.ErrConflict))
	after, err := env.exams.ExamRepo.ListQuestionIDs(ctx, exam.ID)
	require.NoError(t, err)
	assert.Equal(t, ids, after)

	_, err = env.exams.Randomize(ctx, other, exam.ID, RandomizeRequest{Count: 1})
	assert.True(t, errors.Is(err, util.ErrNotFound))
}

func TestGeneratePracticeRequiresEnrollment(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	req := PracticeRequest{CourseID: &env.catalog.Course.ID, Count: 4}

	_, err := env.exams.GeneratePractice(ctx, student, req)
	assert.True(t, errors.Is(err, util.ErrNotEnrolled))

	testutil.Enroll(t, env.db, student.UserID, env.catalog.Course.ID)
	exam, err := env.exams.GeneratePractice(ctx, student, req)
	require.NoError(t, err)
	assert.Equal(t, model.ExamPractice, exam.Type)
	assert.Equal(t, 8, exam.TimeLimitMinutes)
	assert.True(t, exam.IsActive)
	assert.NotEmpty(t, exam.Name)

	// 练习卷不占用自建试卷名额
	_, err = env.exams.CreateCustom(ctx, student, env.selfServiceRequest(2))
	assert.NoError(t, err)
}

func TestGenerateRetestDrawsFromMistakes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.exams.GenerateRetest(ctx, student, RetestRequest{})
	assert.True(t, errors.Is(err, util.ErrMistakeBankEmpty))

	var questions []model.Question
	require.NoError(t, env.db.Order("id asc").Limit(3).Find(&questions).Error)
	for _, q := range questions {
		_, err := env.remediation.RecordMistake(ctx, student.UserID, q.ID, q.TopicID)
		require.NoError(t, err)
	}

	exam, err := env.exams.GenerateRetest(ctx, student, RetestRequest{})
	require.NoError(t, err)
	assert.Equal(t, model.ExamRetest, exam.Type)
	assert.Equal(t, 6, exam.TimeLimitMinutes)

	ids, err := env.exams.ExamRepo.ListQuestionIDs(ctx, exam.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint{questions[0].ID, questions[1].ID, questions[2].ID}, ids)
}

func TestExamGetHidesAnswerKeys(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	exam := env.publishCourseExam(t, 2)

	detail, err := env.exams.Get(ctx, student, exam.ID)
	require.NoError(t, err)
	require.Len(t, detail.Questions, 2)
	for _, o := range detail.Questions[0].Options {
		assert.Nil(t, o.IsCorrect)
	}

	detail, err = env.exams.Get(ctx, admin, exam.ID)
	require.NoError(t, err)
	assert.NotNil(t, detail.Questions[0].Options[0].IsCorrect)
}

func TestUpdateIsAdminOnly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	exam := env.publishCourseExam(t, 2)

	_, err := env.exams.Update(ctx, teacher, exam.ID, UpdateExamRequest{IsActive: util.BoolPtr(false)})
	assert.True(t, errors.Is(err, util.ErrForbidden))

	updated, err := env.exams.Update(ctx, admin, exam.ID, UpdateExamRequest{
		IsActive: util.BoolPtr(false),
		StartAt:  timePtr(env.now),
		EndAt:    timePtr(env.now.Add(time.Hour)),
	})
	require.NoError(t, err)
	assert.False(t, updated.IsActive)
	assert.True(t, updated.HasWindow())

	updated, err = env.exams.Update(ctx, admin, exam.ID, UpdateExamRequest{ClearWindow: true})
	require.NoError(t, err)
	assert.False(t, updated.HasWindow())
}

func TestUpdateHidesOtherLearnersExams(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	exam, err := env.exams.CreateCustom(ctx, student, env.selfServiceRequest(2))
	require.NoError(t, err)

	_, err = env.exams.Update(ctx, other, exam.ID, UpdateExamRequest{IsActive: util.BoolPtr(false)})
	assert.True(t, errors.Is(err, util.ErrExamNotFound))
	_, err = env.exams.Update(ctx, teacher, exam.ID, UpdateExamRequest{IsActive: util.BoolPtr(false)})
	assert.True(t, errors.Is(err, util.ErrNotFound))

	_, err = env.exams.Update(ctx, student, exam.ID, UpdateExamRequest{IsActive: util.BoolPtr(false)})
	assert.True(t, errors.Is(err, util.ErrForbidden))
}

func TestDeleteCascadesAttempts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	exam, err := env.exams.CreateCustom(ctx, student, CreateExamRequest{
		Name:             "Own quiz",
		TimeLimitMinutes: 10,
		QuestionCount:    2,
		TopicIDs:         []uint{env.catalog.Topics[0].ID},
		StartAt:          timePtr(env.now.Add(-time.Minute)),
		EndAt:            timePtr(env.now.Add(time.Hour)),
	})
	require.NoError(t, err)
	_, err = env.attempts.Start(ctx, student, exam.ID)
	require.NoError(t, err)

	require.NoError(t, env.exams.Delete(ctx, student, exam.ID))

	var attempts, answers int64
	env.db.Model(&model.Attempt{}).Count(&attempts)
	env.db.Model(&model.Answer{}).Count(&answers)
	assert.Zero(t, attempts)
	assert.Zero(t, answers)

	_, err = env.exams.Get(ctx, student, exam.ID)
	assert.True(t, errors.Is(err, util.ErrNotFound))
}
