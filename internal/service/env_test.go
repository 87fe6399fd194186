package service

import (
	"context"
	"learnhub_backend/internal/config"
	"learnhub_backend/internal/model"
	"learnhub_backend/internal/repository"
	"learnhub_backend/internal/testutil"
	"learnhub_backend/internal/util"
	"math/rand"
	"testing"
	"time"

	"gorm.io/gorm"
)

var (
	student = Caller{UserID: 10, Role: model.Student}
	other   = Caller{UserID: 11, Role: model.Student}
	teacher = Caller{UserID: 20, Role: model.Teacher}
	admin   = Caller{UserID: 1, Role: model.Admin}
)

type testEnv struct {
	db      *gorm.DB
	catalog *testutil.Catalog
	now     time.Time

	pool        *QuestionPoolService
	exams       *ExamService
	attempts    *AttemptService
	remediation *RemediationService
	progress    *ProgressService
	analytics   *AnalyticsService
}

// newTestEnv 一门 beginner 课程、两个知识点，第一个知识点下有 6 道 medium 题
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := testutil.NewDB(t)
	env := &testEnv{db: db, now: testutil.Clock}
	env.catalog = testutil.SeedCatalog(t, db, "beginner", 2)
	testutil.SeedQuestions(t, db, env.catalog, env.catalog.Topics[0], 6, model.DifficultyMedium)

	cfg := config.Default()
	clock := func() time.Time { return env.now }
	policy := NewPolicy(nil)

	questionRepo := repository.NewQuestionRepository(db)
	catalogRepo := repository.NewCatalogRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	remediationRepo := repository.NewRemediationRepository(db)
	examRepo := repository.NewExamRepository(db)

	env.pool = NewQuestionPoolService(questionRepo, catalogRepo, nil, policy)
	env.remediation = NewRemediationService(remediationRepo, questionRepo)
	env.remediation.Now = clock
	env.analytics = NewAnalyticsService(repository.NewAnalyticsRepository(db), catalogRepo, enrollmentRepo, nil, 0)
	env.attempts = NewAttemptService(
		repository.NewAttemptRepository(db),
		examRepo,
		questionRepo,
		enrollmentRepo,
		env.remediation,
		env.analytics,
		policy,
	)
	env.attempts.Now = clock
	env.progress = NewProgressService(repository.NewProgressRepository(db), catalogRepo, policy, cfg.Progress)
	env.progress.Now = clock
	env.exams = NewExamService(
		examRepo,
		remediationRepo,
		catalogRepo,
		enrollmentRepo,
		env.pool,
		NewSampler(rand.New(rand.NewSource(42))),
		policy,
		&cfg.Exam,
	)
	env.exams.Now = clock
	return env
}

// publishCourseExam 管理员发布一份已启用、无时间窗口的课程试卷
func (e *testEnv) publishCourseExam(t *testing.T, questions int) *model.Exam {
	t.Helper()
	exam, err := e.exams.CreateCustom(context.Background(), admin, CreateExamRequest{
		Name:             "Course final",
		TimeLimitMinutes: 30,
		QuestionCount:    questions,
		CourseID:         &e.catalog.Course.ID,
		IsActive:         util.BoolPtr(true),
	})
	if err != nil {
		t.Fatalf("publish exam: %v", err)
	}
	return exam
}

func timePtr(t time.Time) *time.Time { return &t }
