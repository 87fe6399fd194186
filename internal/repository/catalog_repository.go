package repository

import (
	"context"
	"learnhub_backend/internal/model"

	"gorm.io/gorm"
)

// CatalogRepository 只读访问课程目录（课程、卷、模块、知识点、资料）
type CatalogRepository struct {
	DB *gorm.DB
}

func NewCatalogRepository(db *gorm.DB) *CatalogRepository {
	return &CatalogRepository{DB: db}
}

func (r *CatalogRepository) FindCourse(ctx context.Context, id uint) (*model.Course, error) {
	var c model.Course
	if err := r.DB.WithContext(ctx).First(&c, id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CatalogRepository) FindVolume(ctx context.Context, id uint) (*model.Volume, error) {
	var v model.Volume
	if err := r.DB.WithContext(ctx).First(&v, id).Error; err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *CatalogRepository) FindModule(ctx context.Context, id uint) (*model.Module, error) {
	var m model.Module
	if err := r.DB.WithContext(ctx).First(&m, id).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *CatalogRepository) FindTopic(ctx context.Context, id uint) (*model.Topic, error) {
	var t model.Topic
	if err := r.DB.WithContext(ctx).First(&t, id).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *CatalogRepository) FindTopics(ctx context.Context, ids []uint) ([]model.Topic, error) {
	var topics []model.Topic
	if len(ids) == 0 {
		return topics, nil
	}
	err := r.DB.WithContext(ctx).Where("id IN ?", ids).Order("id asc").Find(&topics).Error
	return topics, err
}

// ListTopicsByLevel 课程与知识点之间按 level 关联
func (r *CatalogRepository) ListTopicsByLevel(ctx context.Context, level string) ([]model.Topic, error) {
	var topics []model.Topic
	err := r.DB.WithContext(ctx).Where("level = ?", level).Order("position asc, id asc").Find(&topics).Error
	return topics, err
}

func (r *CatalogRepository) FindMaterial(ctx context.Context, id uint) (*model.Material, error) {
	var m model.Material
	if err := r.DB.WithContext(ctx).First(&m, id).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *CatalogRepository) ListMaterialsByTopic(ctx context.Context, topicID uint) ([]model.Material, error) {
	var materials []model.Material
	err := r.DB.WithContext(ctx).Where("topic_id = ?", topicID).Order("position asc, id asc").Find(&materials).Error
	return materials, err
}

// SumEstimatesByTopics 返回每个知识点下资料预估时长之和
func (r *CatalogRepository) SumEstimatesByTopics(ctx context.Context, topicIDs []uint) (map[uint]int, error) {
	result := make(map[uint]int)
	if len(topicIDs) == 0 {
		return result, nil
	}
	var rows []struct {
		TopicID uint
		Total   int
	}
	if err := r.DB.WithContext(ctx).Model(&model.Material{}).
		Select("topic_id, COALESCE(SUM(estimated_seconds), 0) AS total").
		Where("topic_id IN ?", topicIDs).
		Group("topic_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		result[row.TopicID] = row.Total
	}
	return result, nil
}

func (r *CatalogRepository) CreateMaterial(ctx context.Context, m *model.Material) error {
	return r.DB.WithContext(ctx).Create(m).Error
}
