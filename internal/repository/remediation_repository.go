package repository

import (
	"context"
	"learnhub_backend/internal/model"
	"time"

	"gorm.io/gorm"
)

type RemediationRepository struct {
	DB *gorm.DB
}

func NewRemediationRepository(db *gorm.DB) *RemediationRepository {
	return &RemediationRepository{DB: db}
}

// WithTx 返回绑定到事务 tx 的副本
func (r *RemediationRepository) WithTx(tx *gorm.DB) *RemediationRepository {
	return &RemediationRepository{DB: tx}
}

// UpsertMistake 重复答错会累加次数并撤销之前的重测结果
func (r *RemediationRepository) UpsertMistake(ctx context.Context, userID, questionID, topicID uint, now time.Time) (*model.MistakeEntry, error) {
	var entry *model.MistakeEntry
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := lockOrCreate(tx, &model.MistakeEntry{
			UserID:      userID,
			QuestionID:  questionID,
			TopicID:     topicID,
			LastWrongAt: now,
		}, "user_id = ? AND question_id = ?", userID, questionID)
		if err != nil {
			return err
		}

		row.WrongCount++
		row.TopicID = topicID
		row.LastWrongAt = now
		row.Retested = false
		if err := tx.Model(row).Updates(map[string]interface{}{
			"wrong_count":   row.WrongCount,
			"topic_id":      topicID,
			"last_wrong_at": now,
			"retested":      false,
		}).Error; err != nil {
			return err
		}
		entry = row
		return nil
	})
	return entry, err
}

func (r *RemediationRepository) MarkRetested(ctx context.Context, userID, questionID uint, correct bool, now time.Time) error {
	res := r.DB.WithContext(ctx).Model(&model.MistakeEntry{}).
		Where("user_id = ? AND question_id = ?", userID, questionID).
		Updates(map[string]interface{}{
			"retested":       true,
			"retested_at":    now,
			"retest_correct": correct,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UnresolvedMistakeQuestionIDs 返回尚未重测的错题，按题目 id 升序
func (r *RemediationRepository) UnresolvedMistakeQuestionIDs(ctx context.Context, userID uint) ([]uint, error) {
	var ids []uint
	err := r.DB.WithContext(ctx).Model(&model.MistakeEntry{}).
		Where("user_id = ? AND retested = ?", userID, false).
		Order("question_id asc").
		Pluck("question_id", &ids).Error
	return ids, err
}

func (r *RemediationRepository) ListMistakes(ctx context.Context, userID uint, unresolvedOnly bool) ([]model.MistakeEntry, error) {
	var entries []model.MistakeEntry
	q := r.DB.WithContext(ctx).Where("user_id = ?", userID)
	if unresolvedOnly {
		q = q.Where("retested = ?", false)
	}
	err := q.Order("last_wrong_at desc, id desc").Find(&entries).Error
	return entries, err
}

// UpsertRevision 未显式标记已复习时，重新加入清单即视为待复习。
// priority 为 0 时保留已有优先级，新建行取默认的中等优先级。
func (r *RemediationRepository) UpsertRevision(ctx context.Context, userID, questionID uint, priority int, note *string, reviewed bool, now time.Time) (*model.RevisionEntry, error) {
	seedPriority := priority
	if seedPriority == 0 {
		seedPriority = model.RevisionPriorityMid
	}
	var entry *model.RevisionEntry
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := lockOrCreate(tx, &model.RevisionEntry{
			UserID:     userID,
			QuestionID: questionID,
			Priority:   seedPriority,
		}, "user_id = ? AND question_id = ?", userID, questionID)
		if err != nil {
			return err
		}

		updates := map[string]interface{}{
			"reviewed":    reviewed,
			"reviewed_at": nil,
		}
		if priority > 0 {
			updates["priority"] = priority
			row.Priority = priority
		}
		row.Reviewed = reviewed
		row.ReviewedAt = nil
		if reviewed {
			updates["reviewed_at"] = now
			row.ReviewedAt = &now
		}
		if note != nil {
			updates["note"] = *note
			row.Note = *note
		}
		if err := tx.Model(row).Updates(updates).Error; err != nil {
			return err
		}
		entry = row
		return nil
	})
	return entry, err
}

func (r *RemediationRepository) ListRevisions(ctx context.Context, userID uint, pendingOnly bool) ([]model.RevisionEntry, error) {
	var entries []model.RevisionEntry
	q := r.DB.WithContext(ctx).Where("user_id = ?", userID)
	if pendingOnly {
		q = q.Where("reviewed = ?", false)
	}
	err := q.Order("priority desc, updated_at desc").Find(&entries).Error
	return entries, err
}

// IncrementWeakTopic 累加而非覆盖，正确率按终身累计重新计算
func (r *RemediationRepository) IncrementWeakTopic(ctx context.Context, userID, topicID uint, wrong, total int) (*model.WeakTopic, error) {
	var weak *model.WeakTopic
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := lockOrCreate(tx, &model.WeakTopic{
			UserID:  userID,
			TopicID: topicID,
		}, "user_id = ? AND topic_id = ?", userID, topicID)
		if err != nil {
			return err
		}

		row.WrongCount += wrong
		row.TotalCount += total
		row.Percent = 0
		if row.TotalCount > 0 {
			row.Percent = 100 * float64(row.TotalCount-row.WrongCount) / float64(row.TotalCount)
		}
		if err := tx.Model(row).Updates(map[string]interface{}{
			"wrong_count": row.WrongCount,
			"total_count": row.TotalCount,
			"percent":     row.Percent,
		}).Error; err != nil {
			return err
		}
		weak = row
		return nil
	})
	return weak, err
}

func (r *RemediationRepository) ListWeakTopics(ctx context.Context, userID uint, limit int) ([]model.WeakTopic, error) {
	var topics []model.WeakTopic
	q := r.DB.WithContext(ctx).Where("user_id = ?", userID).Order("percent asc, total_count desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&topics).Error
	return topics, err
}
