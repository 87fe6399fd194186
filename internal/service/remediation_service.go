package service

import (
	"context"
	"fmt"
	"learnhub_backend/internal/model"
	"learnhub_backend/internal/repository"
	"learnhub_backend/internal/util"
	"learnhub_backend/pkg/logger"
	"sort"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type RevisionRequest struct {
	QuestionID uint    `json:"questionId" validate:"required"`
	Priority   int     `json:"priority" validate:"omitempty,min=1,max=3"`
	Note       *string `json:"note" validate:"omitempty,max=2000"`
	Reviewed   bool    `json:"reviewed"`
}

type RemediationService struct {
	RemediationRepo *repository.RemediationRepository
	QuestionRepo    *repository.QuestionRepository
	Now             func() time.Time
}

func NewRemediationService(remediationRepo *repository.RemediationRepository, questionRepo *repository.QuestionRepository) *RemediationService {
	return &RemediationService{
		RemediationRepo: remediationRepo,
		QuestionRepo:    questionRepo,
		Now:             time.Now,
	}
}

// WithTx 返回写入绑定到事务 tx 的副本，供交卷时与状态变更一同提交
func (s *RemediationService) WithTx(tx *gorm.DB) *RemediationService {
	cp := *s
	cp.RemediationRepo = s.RemediationRepo.WithTx(tx)
	return &cp
}

func (s *RemediationService) RecordMistake(ctx context.Context, userID, questionID, topicID uint) (*model.MistakeEntry, error) {
	return s.RemediationRepo.UpsertMistake(ctx, userID, questionID, topicID, s.Now())
}

func (s *RemediationService) MarkRetested(ctx context.Context, userID, questionID uint, correct bool) error {
	err := s.RemediationRepo.MarkRetested(ctx, userID, questionID, correct, s.Now())
	if repository.IsNotFound(err) {
		return util.ErrMistakeNotFound
	}
	return err
}

func (s *RemediationService) UpsertRevision(ctx context.Context, caller Caller, req RevisionRequest) (*model.RevisionEntry, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if _, err := s.QuestionRepo.FindByID(ctx, req.QuestionID); err != nil {
		if repository.IsNotFound(err) {
			return nil, util.ErrQuestionNotFound
		}
		return nil, err
	}
	return s.RemediationRepo.UpsertRevision(ctx, caller.UserID, req.QuestionID, req.Priority, req.Note, req.Reviewed, s.Now())
}

func (s *RemediationService) RecordTopicResult(ctx context.Context, userID, topicID uint, wrong, total int) (*model.WeakTopic, error) {
	if total <= 0 {
		return nil, nil
	}
	return s.RemediationRepo.IncrementWeakTopic(ctx, userID, topicID, wrong, total)
}

type topicTally struct {
	wrong, total int
}

// DeriveFromAttempt 交卷后更新错题本、复习清单与薄弱知识点。
// 重测卷先记录重测结果，再记录错题，因此重测仍答错的题会保持未解决状态。
func (s *RemediationService) DeriveFromAttempt(ctx context.Context, attempt *model.Attempt, examType model.ExamType, answers []model.Answer, questions map[uint]model.Question) error {
	tallies := make(map[uint]*topicTally)
	for _, a := range answers {
		q, ok := questions[a.QuestionID]
		if !ok {
			continue
		}
		correct := a.IsCorrect != nil && *a.IsCorrect

		if q.TopicID != 0 {
			t := tallies[q.TopicID]
			if t == nil {
				t = &topicTally{}
				tallies[q.TopicID] = t
			}
			t.total++
			if !correct {
				t.wrong++
			}
		}

		if examType == model.ExamRetest && a.IsCorrect != nil {
			if err := s.MarkRetested(ctx, attempt.UserID, a.QuestionID, correct); err != nil && !util.IsKind(err, util.ErrNotFound) {
				return fmt.Errorf("mark retested question %d: %w", a.QuestionID, err)
			}
		}
		if a.IsCorrect != nil && !correct {
			if _, err := s.RecordMistake(ctx, attempt.UserID, a.QuestionID, q.TopicID); err != nil {
				return fmt.Errorf("record mistake question %d: %w", a.QuestionID, err)
			}
		}
		if a.Flagged {
			if _, err := s.RemediationRepo.UpsertRevision(ctx, attempt.UserID, a.QuestionID, 0, nil, false, s.Now()); err != nil {
				return fmt.Errorf("add revision question %d: %w", a.QuestionID, err)
			}
		}
	}

	topicIDs := make([]uint, 0, len(tallies))
	for id := range tallies {
		topicIDs = append(topicIDs, id)
	}
	sort.Slice(topicIDs, func(i, j int) bool { return topicIDs[i] < topicIDs[j] })
	for _, id := range topicIDs {
		t := tallies[id]
		if _, err := s.RecordTopicResult(ctx, attempt.UserID, id, t.wrong, t.total); err != nil {
			return fmt.Errorf("record topic %d: %w", id, err)
		}
	}

	logger.Log.Debug("Remediation derived",
		zap.Uint("attemptID", attempt.ID),
		zap.Int("answers", len(answers)),
		zap.Int("topics", len(topicIDs)))
	return nil
}

func (s *RemediationService) ListMistakes(ctx context.Context, caller Caller, unresolvedOnly bool) ([]model.MistakeEntry, error) {
	return s.RemediationRepo.ListMistakes(ctx, caller.UserID, unresolvedOnly)
}

func (s *RemediationService) ListRevisions(ctx context.Context, caller Caller, pendingOnly bool) ([]model.RevisionEntry, error) {
	return s.RemediationRepo.ListRevisions(ctx, caller.UserID, pendingOnly)
}

// ListWeakTopics 按正确率升序，最薄弱的在前
func (s *RemediationService) ListWeakTopics(ctx context.Context, caller Caller, limit int) ([]model.WeakTopic, error) {
	return s.RemediationRepo.ListWeakTopics(ctx, caller.UserID, limit)
}
