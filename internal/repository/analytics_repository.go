package repository

import (
	"context"
	"learnhub_backend/internal/model"

	"gorm.io/gorm"
)

type TopicStat struct {
	TopicID uint `json:"topicId"`
	Correct int  `json:"correct"`
	Total   int  `json:"total"`
}

type AnalyticsRepository struct {
	DB *gorm.DB
}

func NewAnalyticsRepository(db *gorm.DB) *AnalyticsRepository {
	return &AnalyticsRepository{DB: db}
}

// SubmittedAttempts 按交卷时间升序返回学习者已交卷的尝试
func (r *AnalyticsRepository) SubmittedAttempts(ctx context.Context, userID uint) ([]model.Attempt, error) {
	var attempts []model.Attempt
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, model.AttemptSubmitted).
		Order("submitted_at asc, id asc").
		Find(&attempts).Error
	return attempts, err
}

// TopicStats 汇总所有已交卷尝试中各知识点的答对数与作答数，按作答量降序
func (r *AnalyticsRepository) TopicStats(ctx context.Context, userID uint, limit int) ([]TopicStat, error) {
	var stats []TopicStat
	q := r.DB.WithContext(ctx).Table("answers").
		Select("questions.topic_id AS topic_id, "+
			"SUM(CASE WHEN answers.is_correct = ? THEN 1 ELSE 0 END) AS correct, "+
			"COUNT(answers.id) AS total", true).
		Joins("JOIN attempts ON attempts.id = answers.attempt_id").
		Joins("JOIN questions ON questions.id = answers.question_id").
		Where("attempts.user_id = ? AND attempts.status = ?", userID, model.AttemptSubmitted).
		Where("answers.deleted_at IS NULL AND attempts.deleted_at IS NULL").
		Group("questions.topic_id").
		Order("total desc, topic_id asc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Scan(&stats).Error
	return stats, err
}

// CourseAttempts 学习者在某课程 COURSE 类型试卷上的全部尝试
func (r *AnalyticsRepository) CourseAttempts(ctx context.Context, userID, courseID uint) ([]model.Attempt, error) {
	var attempts []model.Attempt
	err := r.DB.WithContext(ctx).
		Joins("JOIN exams ON exams.id = attempts.exam_id").
		Where("attempts.user_id = ? AND exams.course_id = ? AND exams.type = ?", userID, courseID, model.ExamCourse).
		Order("attempts.started_at asc, attempts.id asc").
		Find(&attempts).Error
	return attempts, err
}
