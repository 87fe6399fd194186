package service

import (
	"context"
	"fmt"
	"learnhub_backend/internal/model"
	"learnhub_backend/internal/repository"
	"learnhub_backend/internal/util"
	"learnhub_backend/pkg/logger"
	"learnhub_backend/pkg/monitoring"
	"learnhub_backend/pkg/tracing"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type AutosaveRequest struct {
	SelectedOptionID *uint   `json:"selectedOptionId"`
	FreeText         *string `json:"freeText" validate:"omitempty,max=20000"`
	Flagged          *bool   `json:"flagged"`
	TimeSpentSec     *int    `json:"timeSpentSec" validate:"omitempty,gte=0"`
}

type AttemptView struct {
	Attempt      *model.Attempt `json:"attempt"`
	RemainingSec int            `json:"remainingSec"`
	Questions    []QuestionView `json:"questions"`
	Answers      []model.Answer `json:"answers"`
}

type AttemptSummary struct {
	model.Attempt
	Passed bool `json:"passed"`
}

// SummaryInvalidator 交卷后清理学习者的统计缓存
type SummaryInvalidator interface {
	Invalidate(ctx context.Context, userID uint)
}

type AttemptService struct {
	AttemptRepo    *repository.AttemptRepository
	ExamRepo       *repository.ExamRepository
	QuestionRepo   *repository.QuestionRepository
	EnrollmentRepo *repository.EnrollmentRepository
	Remediation    *RemediationService
	Cache          SummaryInvalidator
	Policy         *Policy
	Now            func() time.Time
}

func NewAttemptService(
	attemptRepo *repository.AttemptRepository,
	examRepo *repository.ExamRepository,
	questionRepo *repository.QuestionRepository,
	enrollmentRepo *repository.EnrollmentRepository,
	remediation *RemediationService,
	cache SummaryInvalidator,
	policy *Policy,
) *AttemptService {
	return &AttemptService{
		AttemptRepo:    attemptRepo,
		ExamRepo:       examRepo,
		QuestionRepo:   questionRepo,
		EnrollmentRepo: enrollmentRepo,
		Remediation:    remediation,
		Cache:          cache,
		Policy:         policy,
		Now:            time.Now,
	}
}

// Start 校验启用状态、报名与时间窗口后创建尝试，并为每道题预建空答案
func (s *AttemptService) Start(ctx context.Context, caller Caller, examID uint) (*AttemptView, error) {
	ctx, span := tracing.Start(ctx, "AttemptService.Start")
	defer span.End()

	if !s.Policy.Has(caller, "attempt:create") {
		return nil, util.ErrPermissionDenied
	}
	exam, err := s.ExamRepo.FindByID(ctx, examID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, util.ErrExamNotFound
		}
		return nil, err
	}
	if !s.Policy.CanReadExam(caller, exam) {
		return nil, util.ErrExamNotFound
	}
	if !exam.IsActive {
		return nil, util.ErrExamInactive
	}
	if exam.Type == model.ExamCourse && exam.CourseID != nil && !s.Policy.BypassEnrollment(caller) {
		enrolled, err := s.EnrollmentRepo.IsEnrolled(ctx, caller.UserID, *exam.CourseID)
		if err != nil {
			return nil, err
		}
		if !enrolled {
			return nil, util.ErrNotEnrolled
		}
	}
	now := s.Now()
	if exam.HasWindow() && !exam.InWindow(now) {
		return nil, util.ErrWindowClosed
	}

	questionIDs, err := s.ExamRepo.ListQuestionIDs(ctx, exam.ID)
	if err != nil {
		return nil, err
	}

	attempt := &model.Attempt{
		ExamID:           exam.ID,
		UserID:           caller.UserID,
		Status:           model.AttemptInProgress,
		TimeRemainingSec: exam.TimeLimitMinutes * 60,
		StartedAt:        now,
	}
	if err := s.AttemptRepo.CreateWithPlaceholders(ctx, attempt, questionIDs); err != nil {
		return nil, err
	}
	attempt.Exam = exam

	monitoring.AttemptsStarted.WithLabelValues(string(exam.Type)).Inc()
	logger.Log.Info("Attempt started",
		zap.Uint("attemptID", attempt.ID),
		zap.Uint("examID", exam.ID),
		zap.Uint("userID", caller.UserID),
		zap.Int("questions", len(questionIDs)))

	return s.view(ctx, caller, attempt)
}

// loadOwned 不属于调用者的尝试一律返回 NotFound
func (s *AttemptService) loadOwned(ctx context.Context, caller Caller, attemptID uint, canAccess func(Caller, *model.Attempt) bool) (*model.Attempt, error) {
	attempt, err := s.AttemptRepo.FindByID(ctx, attemptID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, util.ErrAttemptNotFound
		}
		return nil, err
	}
	if !canAccess(caller, attempt) {
		return nil, util.ErrAttemptNotFound
	}
	return attempt, nil
}

// AutosaveAnswer 只覆盖请求中提供的字段；选项正误在保存时即确定
func (s *AttemptService) AutosaveAnswer(ctx context.Context, caller Caller, attemptID, questionID uint, req AutosaveRequest) (*model.Answer, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	attempt, err := s.loadOwned(ctx, caller, attemptID, s.Policy.CanWriteAttempt)
	if err != nil {
		return nil, err
	}
	if attempt.IsSubmitted() {
		return nil, util.ErrAttemptSubmitted
	}
	if _, err := s.AttemptRepo.FindAnswer(ctx, attempt.ID, questionID); err != nil {
		if repository.IsNotFound(err) {
			return nil, util.ErrQuestionNotInExam
		}
		return nil, err
	}

	answer := &model.Answer{AttemptID: attempt.ID, QuestionID: questionID}
	var columns []string
	if req.SelectedOptionID != nil {
		answer.SelectedOptionID = req.SelectedOptionID
		option, err := s.QuestionRepo.FindOption(ctx, *req.SelectedOptionID)
		switch {
		case err == nil && option.QuestionID == questionID:
			answer.IsCorrect = util.BoolPtr(option.IsCorrect)
		case err != nil && !repository.IsNotFound(err):
			return nil, err
		}
		columns = append(columns, "selected_option_id", "is_correct")
	}
	if req.FreeText != nil {
		answer.FreeText = req.FreeText
		columns = append(columns, "free_text")
	}
	if req.Flagged != nil {
		answer.Flagged = *req.Flagged
		columns = append(columns, "flagged")
	}
	if req.TimeSpentSec != nil {
		answer.TimeSpentSec = *req.TimeSpentSec
		columns = append(columns, "time_spent_sec")
	}

	return s.AttemptRepo.UpsertAnswer(ctx, answer, columns)
}

// Score 按全部答案行计算得分，未判分与答错同样计为错误
func Score(answers []model.Answer) int {
	correct := 0
	for _, a := range answers {
		if a.IsCorrect != nil && *a.IsCorrect {
			correct++
		}
	}
	total := len(answers)
	if total < 1 {
		total = 1
	}
	return int(math.Round(100 * float64(correct) / float64(total)))
}

func remainingSeconds(attempt *model.Attempt, exam *model.Exam, now time.Time) int {
	if attempt.IsSubmitted() || exam == nil {
		return attempt.TimeRemainingSec
	}
	remaining := exam.TimeLimitMinutes*60 - int(now.Sub(attempt.StartedAt).Seconds())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Submit 交卷为终态；重复提交直接返回已保存的结果，不会重新计分。
// 状态变更、报名完成与错题推导在同一事务中提交，任一失败则整体回滚，可重试。
func (s *AttemptService) Submit(ctx context.Context, caller Caller, attemptID uint) (*model.Attempt, error) {
	ctx, span := tracing.Start(ctx, "AttemptService.Submit")
	defer span.End()

	attempt, err := s.loadOwned(ctx, caller, attemptID, s.Policy.CanWriteAttempt)
	if err != nil {
		return nil, err
	}
	if attempt.IsSubmitted() {
		return attempt, nil
	}

	answers, err := s.AttemptRepo.ListAnswers(ctx, attempt.ID)
	if err != nil {
		return nil, err
	}
	var questions map[uint]model.Question
	if s.Remediation != nil && attempt.Exam != nil {
		if questions, err = s.questionsByID(ctx, answers); err != nil {
			return nil, err
		}
	}

	now := s.Now()
	score := Score(answers)
	var submitted *model.Attempt
	done := false
	err = s.AttemptRepo.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		attemptRepo := s.AttemptRepo.WithTx(tx)
		ok, err := attemptRepo.MarkSubmitted(ctx, attempt.ID, score, remainingSeconds(attempt, attempt.Exam, now), now)
		if err != nil {
			return err
		}
		if submitted, err = attemptRepo.FindByID(ctx, attempt.ID); err != nil {
			return err
		}
		if !ok {
			// 并发提交时由另一请求完成了交卷
			return nil
		}
		done = true

		exam := submitted.Exam
		if exam != nil && exam.Type == model.ExamCourse && exam.CourseID != nil {
			if err := s.EnrollmentRepo.WithTx(tx).MarkCompleted(ctx, submitted.UserID, *exam.CourseID, now); err != nil {
				return fmt.Errorf("complete enrollment: %w", err)
			}
		}
		if s.Remediation != nil && exam != nil {
			if err := s.Remediation.WithTx(tx).DeriveFromAttempt(ctx, submitted, exam.Type, answers, questions); err != nil {
				return fmt.Errorf("derive remediation: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		logger.Log.Error("Submit attempt failed", zap.Uint("attemptID", attempt.ID), zap.Error(err))
		return nil, tracing.Fail(span, err)
	}
	if !done {
		return submitted, nil
	}

	examType := ""
	if submitted.Exam != nil {
		examType = string(submitted.Exam.Type)
	}
	monitoring.AttemptsSubmitted.WithLabelValues(examType).Inc()
	monitoring.AttemptScore.Observe(float64(score))
	logger.Log.Info("Attempt submitted",
		zap.Uint("attemptID", submitted.ID),
		zap.Uint("userID", submitted.UserID),
		zap.Int("score", score),
		zap.Int("answers", len(answers)))

	if s.Cache != nil {
		s.Cache.Invalidate(ctx, submitted.UserID)
	}
	return submitted, nil
}

func (s *AttemptService) questionsByID(ctx context.Context, answers []model.Answer) (map[uint]model.Question, error) {
	ids := make([]uint, 0, len(answers))
	for _, a := range answers {
		ids = append(ids, a.QuestionID)
	}
	qs, err := s.QuestionRepo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	result := make(map[uint]model.Question, len(qs))
	for _, q := range qs {
		result[q.ID] = q
	}
	return result, nil
}

func (s *AttemptService) Get(ctx context.Context, caller Caller, attemptID uint) (*AttemptView, error) {
	attempt, err := s.loadOwned(ctx, caller, attemptID, s.Policy.CanReadAttempt)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, caller, attempt)
}

// view 答案按试卷题目顺序重排；交卷前不返回正确答案
func (s *AttemptService) view(ctx context.Context, caller Caller, attempt *model.Attempt) (*AttemptView, error) {
	links, err := s.ExamRepo.ListQuestions(ctx, attempt.ExamID)
	if err != nil {
		return nil, err
	}
	answers, err := s.AttemptRepo.ListAnswers(ctx, attempt.ID)
	if err != nil {
		return nil, err
	}

	position := make(map[uint]int, len(links))
	for _, l := range links {
		position[l.QuestionID] = l.Position
	}
	sort.SliceStable(answers, func(i, j int) bool {
		return position[answers[i].QuestionID] < position[answers[j].QuestionID]
	})

	withKeys := s.Policy.IsAdmin(caller) || attempt.IsSubmitted()
	return &AttemptView{
		Attempt:      attempt,
		RemainingSec: remainingSeconds(attempt, attempt.Exam, s.Now()),
		Questions:    toQuestionViews(links, withKeys),
		Answers:      answers,
	}, nil
}

func (s *AttemptService) ListMine(ctx context.Context, caller Caller) ([]AttemptSummary, error) {
	attempts, err := s.AttemptRepo.ListByUser(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}
	result := make([]AttemptSummary, len(attempts))
	for i := range attempts {
		result[i] = AttemptSummary{Attempt: attempts[i], Passed: attempts[i].Passed()}
	}
	return result, nil
}
