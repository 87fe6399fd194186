package repository

import (
	"context"
	"learnhub_backend/internal/model"
	"time"

	"gorm.io/gorm"
)

type ExamRepository struct {
	DB *gorm.DB
}

func NewExamRepository(db *gorm.DB) *ExamRepository {
	return &ExamRepository{DB: db}
}

func (r *ExamRepository) Create(ctx context.Context, exam *model.Exam) error {
	return r.DB.WithContext(ctx).Create(exam).Error
}

// CreateWithQuestions 试卷与题目关联在同一事务内写入
func (r *ExamRepository) CreateWithQuestions(ctx context.Context, exam *model.Exam, questionIDs []uint) ([]model.ExamQuestion, error) {
	var links []model.ExamQuestion
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(exam).Error; err != nil {
			return err
		}
		var err error
		links, err = insertLinks(tx, exam.ID, questionIDs, 0)
		return err
	})
	return links, err
}

func (r *ExamRepository) FindByID(ctx context.Context, id uint) (*model.Exam, error) {
	var exam model.Exam
	if err := r.DB.WithContext(ctx).First(&exam, id).Error; err != nil {
		return nil, err
	}
	return &exam, nil
}

func (r *ExamRepository) Update(ctx context.Context, examID uint, fields map[string]interface{}) error {
	return r.DB.WithContext(ctx).Model(&model.Exam{}).Where("id = ?", examID).Updates(fields).Error
}

// ListQuestions 按 position 返回试卷题目，即展示与答案回放的权威顺序
func (r *ExamRepository) ListQuestions(ctx context.Context, examID uint) ([]model.ExamQuestion, error) {
	var links []model.ExamQuestion
	err := r.DB.WithContext(ctx).
		Preload("Question.Options", func(db *gorm.DB) *gorm.DB { return db.Order("position asc, id asc") }).
		Where("exam_id = ?", examID).
		Order("position asc").
		Find(&links).Error
	return links, err
}

func (r *ExamRepository) ListQuestionIDs(ctx context.Context, examID uint) ([]uint, error) {
	var ids []uint
	err := r.DB.WithContext(ctx).Model(&model.ExamQuestion{}).
		Where("exam_id = ?", examID).
		Order("position asc").
		Pluck("question_id", &ids).Error
	return ids, err
}

// ReplaceQuestions 删除旧关联与写入新关联作为一个事务；appendOnly 时在末尾续写序号
func (r *ExamRepository) ReplaceQuestions(ctx context.Context, examID uint, questionIDs []uint, appendOnly bool, filters []byte) ([]model.ExamQuestion, error) {
	var links []model.ExamQuestion
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		offset := 0
		if appendOnly {
			var maxPos *int
			if err := tx.Model(&model.ExamQuestion{}).
				Where("exam_id = ?", examID).
				Select("MAX(position)").
				Scan(&maxPos).Error; err != nil {
				return err
			}
			if maxPos != nil {
				offset = *maxPos
			}
		} else {
			// 硬删除，否则软删除行会与 (exam_id, question_id) 唯一索引冲突
			if err := tx.Unscoped().Where("exam_id = ?", examID).Delete(&model.ExamQuestion{}).Error; err != nil {
				return err
			}
		}

		var err error
		links, err = insertLinks(tx, examID, questionIDs, offset)
		if err != nil {
			return err
		}

		if filters != nil {
			return tx.Model(&model.Exam{}).Where("id = ?", examID).Update("filters", filters).Error
		}
		return nil
	})
	return links, err
}

func insertLinks(tx *gorm.DB, examID uint, questionIDs []uint, offset int) ([]model.ExamQuestion, error) {
	links := make([]model.ExamQuestion, len(questionIDs))
	for i, qid := range questionIDs {
		links[i] = model.ExamQuestion{
			ExamID:     examID,
			QuestionID: qid,
			Position:   offset + i + 1,
		}
	}
	if len(links) == 0 {
		return links, nil
	}
	if err := tx.CreateInBatches(&links, 200).Error; err != nil {
		return nil, err
	}
	return links, nil
}

// FindOpenSelfCreated 查找学习者自建且仍处于开放或待开放状态的自定义试卷
func (r *ExamRepository) FindOpenSelfCreated(ctx context.Context, creatorID uint, now time.Time) ([]model.Exam, error) {
	var exams []model.Exam
	err := r.DB.WithContext(ctx).
		Where("creator_id = ? AND type IN ?", creatorID, []model.ExamType{model.ExamCourse, model.ExamQuiz}).
		Where("end_at IS NULL OR end_at > ?", now).
		Find(&exams).Error
	return exams, err
}

func (r *ExamRepository) ListByCreator(ctx context.Context, creatorID uint) ([]model.Exam, error) {
	var exams []model.Exam
	err := r.DB.WithContext(ctx).Where("creator_id = ?", creatorID).Order("created_at desc").Find(&exams).Error
	return exams, err
}

// Delete 级联删除作答、尝试与题目关联
func (r *ExamRepository) Delete(ctx context.Context, examID uint) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var attemptIDs []uint
		if err := tx.Model(&model.Attempt{}).Where("exam_id = ?", examID).Pluck("id", &attemptIDs).Error; err != nil {
			return err
		}
		if len(attemptIDs) > 0 {
			if err := tx.Unscoped().Where("attempt_id IN ?", attemptIDs).Delete(&model.Answer{}).Error; err != nil {
				return err
			}
			if err := tx.Unscoped().Where("id IN ?", attemptIDs).Delete(&model.Attempt{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Unscoped().Where("exam_id = ?", examID).Delete(&model.ExamQuestion{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Exam{}, examID).Error
	})
}
