package repository

import (
	"context"
	"learnhub_backend/internal/model"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AttemptRepository struct {
	DB *gorm.DB
}

func NewAttemptRepository(db *gorm.DB) *AttemptRepository {
	return &AttemptRepository{DB: db}
}

// WithTx 返回绑定到事务 tx 的副本
func (r *AttemptRepository) WithTx(tx *gorm.DB) *AttemptRepository {
	return &AttemptRepository{DB: tx}
}

// CreateWithPlaceholders 创建尝试并按试卷顺序为每道题预建空答案
func (r *AttemptRepository) CreateWithPlaceholders(ctx context.Context, attempt *model.Attempt, questionIDs []uint) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(attempt).Error; err != nil {
			return err
		}
		if len(questionIDs) == 0 {
			return nil
		}
		answers := make([]model.Answer, len(questionIDs))
		for i, qid := range questionIDs {
			answers[i] = model.Answer{AttemptID: attempt.ID, QuestionID: qid}
		}
		return tx.CreateInBatches(&answers, 200).Error
	})
}

func (r *AttemptRepository) FindByID(ctx context.Context, id uint) (*model.Attempt, error) {
	var a model.Attempt
	if err := r.DB.WithContext(ctx).Preload("Exam").First(&a, id).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AttemptRepository) ListAnswers(ctx context.Context, attemptID uint) ([]model.Answer, error) {
	var answers []model.Answer
	err := r.DB.WithContext(ctx).Where("attempt_id = ?", attemptID).Order("id asc").Find(&answers).Error
	return answers, err
}

func (r *AttemptRepository) FindAnswer(ctx context.Context, attemptID, questionID uint) (*model.Answer, error) {
	var a model.Answer
	err := r.DB.WithContext(ctx).Where("attempt_id = ? AND question_id = ?", attemptID, questionID).First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// UpsertAnswer 以 (attempt_id, question_id) 为键写入，冲突时只覆盖 columns 中列出的字段
func (r *AttemptRepository) UpsertAnswer(ctx context.Context, answer *model.Answer, columns []string) (*model.Answer, error) {
	onConflict := clause.OnConflict{
		Columns: []clause.Column{{Name: "attempt_id"}, {Name: "question_id"}},
	}
	if len(columns) == 0 {
		onConflict.DoNothing = true
	} else {
		onConflict.DoUpdates = clause.AssignmentColumns(append(append([]string{}, columns...), "updated_at"))
	}

	db := r.DB.WithContext(ctx)
	if err := db.Clauses(onConflict).Create(answer).Error; err != nil {
		return nil, err
	}

	var stored model.Answer
	err := db.Where("attempt_id = ? AND question_id = ?", answer.AttemptID, answer.QuestionID).First(&stored).Error
	if err != nil {
		return nil, err
	}
	return &stored, nil
}

// MarkSubmitted 仅当仍为 IN_PROGRESS 时写入分数，返回是否由本次调用完成交卷
func (r *AttemptRepository) MarkSubmitted(ctx context.Context, attemptID uint, score, remainingSec int, now time.Time) (bool, error) {
	res := r.DB.WithContext(ctx).Model(&model.Attempt{}).
		Where("id = ? AND status = ?", attemptID, model.AttemptInProgress).
		Updates(map[string]interface{}{
			"status":             model.AttemptSubmitted,
			"submitted_at":       now,
			"score_percent":      score,
			"time_remaining_sec": remainingSec,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *AttemptRepository) UpdateRemaining(ctx context.Context, attemptID uint, remainingSec int) error {
	return r.DB.WithContext(ctx).Model(&model.Attempt{}).
		Where("id = ? AND status = ?", attemptID, model.AttemptInProgress).
		Update("time_remaining_sec", remainingSec).Error
}

func (r *AttemptRepository) ListByUser(ctx context.Context, userID uint) ([]model.Attempt, error) {
	var attempts []model.Attempt
	err := r.DB.WithContext(ctx).
		Preload("Exam").
		Where("user_id = ?", userID).
		Order("started_at desc, id desc").
		Find(&attempts).Error
	return attempts, err
}
