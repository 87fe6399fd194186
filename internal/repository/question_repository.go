package repository

import (
	"context"
	"learnhub_backend/internal/model"

	"gorm.io/gorm"
)

// QuestionFilter 每个非空字段都会收窄结果，空字段不施加约束
type QuestionFilter struct {
	CourseID     uint
	VolumeID     uint
	ModuleID     uint
	TopicIDs     []uint
	Difficulties []string
	Level        string
	ExcludeIDs   []uint
	// 仅保留 course/volume/module/topic 四级齐全的题目
	RequireFullPath bool
}

type QuestionRepository struct {
	DB *gorm.DB
}

func NewQuestionRepository(db *gorm.DB) *QuestionRepository {
	return &QuestionRepository{DB: db}
}

func (r *QuestionRepository) applyFilter(q *gorm.DB, f QuestionFilter) *gorm.DB {
	if f.CourseID != 0 {
		q = q.Where("course_id = ?", f.CourseID)
	}
	if f.VolumeID != 0 {
		q = q.Where("volume_id = ?", f.VolumeID)
	}
	if f.ModuleID != 0 {
		q = q.Where("module_id = ?", f.ModuleID)
	}
	if len(f.TopicIDs) == 1 {
		q = q.Where("topic_id = ?", f.TopicIDs[0])
	} else if len(f.TopicIDs) > 1 {
		q = q.Where("topic_id IN ?", f.TopicIDs)
	}
	if len(f.Difficulties) == 1 {
		q = q.Where("difficulty = ?", f.Difficulties[0])
	} else if len(f.Difficulties) > 1 {
		q = q.Where("difficulty IN ?", f.Difficulties)
	}
	if f.Level != "" {
		q = q.Where("level = ?", f.Level)
	}
	if f.RequireFullPath {
		q = q.Where("course_id <> 0 AND volume_id <> 0 AND module_id <> 0 AND topic_id <> 0")
	}
	if len(f.ExcludeIDs) > 0 {
		q = q.Where("id NOT IN ?", f.ExcludeIDs)
	}
	return q
}

// SelectIDs 返回完整的匹配集合（不分页），按 id 升序保证抽样总体稳定
func (r *QuestionRepository) SelectIDs(ctx context.Context, f QuestionFilter) ([]uint, error) {
	var ids []uint
	q := r.applyFilter(r.DB.WithContext(ctx).Model(&model.Question{}), f)
	err := q.Order("id asc").Pluck("id", &ids).Error
	return ids, err
}

func (r *QuestionRepository) Create(ctx context.Context, q *model.Question) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(q).Error
	})
}

func (r *QuestionRepository) FindByID(ctx context.Context, id uint) (*model.Question, error) {
	var q model.Question
	err := r.DB.WithContext(ctx).
		Preload("Options", func(db *gorm.DB) *gorm.DB { return db.Order("position asc, id asc") }).
		First(&q, id).Error
	if err != nil {
		return nil, err
	}
	return &q, nil
}

func (r *QuestionRepository) FindByIDs(ctx context.Context, ids []uint) ([]model.Question, error) {
	var qs []model.Question
	if len(ids) == 0 {
		return qs, nil
	}
	err := r.DB.WithContext(ctx).
		Preload("Options", func(db *gorm.DB) *gorm.DB { return db.Order("position asc, id asc") }).
		Where("id IN ?", ids).
		Find(&qs).Error
	return qs, err
}

func (r *QuestionRepository) FindOption(ctx context.Context, optionID uint) (*model.QuestionOption, error) {
	var o model.QuestionOption
	if err := r.DB.WithContext(ctx).First(&o, optionID).Error; err != nil {
		return nil, err
	}
	return &o, nil
}
