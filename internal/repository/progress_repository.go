package repository

import (
	"context"
	"learnhub_backend/internal/model"

	"gorm.io/gorm"
)

type ProgressRepository struct {
	DB *gorm.DB
}

func NewProgressRepository(db *gorm.DB) *ProgressRepository {
	return &ProgressRepository{DB: db}
}

// ApplyHeartbeat 在行锁内读取-修改-写回资料进度，并发心跳不会产生重复行
func (r *ProgressRepository) ApplyHeartbeat(ctx context.Context, userID, materialID uint, apply func(p *model.MaterialProgress)) (*model.MaterialProgress, error) {
	var progress *model.MaterialProgress
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := lockOrCreate(tx, &model.MaterialProgress{
			UserID:     userID,
			MaterialID: materialID,
		}, "user_id = ? AND material_id = ?", userID, materialID)
		if err != nil {
			return err
		}
		apply(row)
		if err := tx.Save(row).Error; err != nil {
			return err
		}
		progress = row
		return nil
	})
	return progress, err
}

func (r *ProgressRepository) FindMaterialProgress(ctx context.Context, userID, materialID uint) (*model.MaterialProgress, error) {
	var p model.MaterialProgress
	err := r.DB.WithContext(ctx).Where("user_id = ? AND material_id = ?", userID, materialID).First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListMaterialProgress 以 material_id 为键返回，没有记录的资料不出现在结果中
func (r *ProgressRepository) ListMaterialProgress(ctx context.Context, userID uint, materialIDs []uint) (map[uint]model.MaterialProgress, error) {
	result := make(map[uint]model.MaterialProgress)
	if len(materialIDs) == 0 {
		return result, nil
	}
	var rows []model.MaterialProgress
	if err := r.DB.WithContext(ctx).
		Where("user_id = ? AND material_id IN ?", userID, materialIDs).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		result[row.MaterialID] = row
	}
	return result, nil
}

func (r *ProgressRepository) SaveTopicProgress(ctx context.Context, userID, topicID uint, apply func(p *model.TopicProgress)) (*model.TopicProgress, error) {
	var progress *model.TopicProgress
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := lockOrCreate(tx, &model.TopicProgress{
			UserID:  userID,
			TopicID: topicID,
		}, "user_id = ? AND topic_id = ?", userID, topicID)
		if err != nil {
			return err
		}
		apply(row)
		if err := tx.Save(row).Error; err != nil {
			return err
		}
		progress = row
		return nil
	})
	return progress, err
}

func (r *ProgressRepository) ListTopicProgress(ctx context.Context, userID uint, topicIDs []uint) (map[uint]model.TopicProgress, error) {
	result := make(map[uint]model.TopicProgress)
	if len(topicIDs) == 0 {
		return result, nil
	}
	var rows []model.TopicProgress
	if err := r.DB.WithContext(ctx).
		Where("user_id = ? AND topic_id IN ?", userID, topicIDs).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		result[row.TopicID] = row
	}
	return result, nil
}

func (r *ProgressRepository) SaveCourseProgress(ctx context.Context, userID, courseID uint, apply func(p *model.CourseProgress)) (*model.CourseProgress, error) {
	var progress *model.CourseProgress
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := lockOrCreate(tx, &model.CourseProgress{
			UserID:   userID,
			CourseID: courseID,
		}, "user_id = ? AND course_id = ?", userID, courseID)
		if err != nil {
			return err
		}
		apply(row)
		if err := tx.Save(row).Error; err != nil {
			return err
		}
		progress = row
		return nil
	})
	return progress, err
}
