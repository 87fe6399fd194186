package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// swagger:model
type BaseModel struct {
	ID        uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func GenerateUUID() string {
	return uuid.New().String()
}

// All 返回需要 AutoMigrate 的全部模型
func All() []interface{} {
	return []interface{}{
		&User{},
		&Course{},
		&Volume{},
		&Module{},
		&Topic{},
		&Material{},
		&Enrollment{},
		&Question{},
		&QuestionOption{},
		&Exam{},
		&ExamQuestion{},
		&Attempt{},
		&Answer{},
		&MistakeEntry{},
		&RevisionEntry{},
		&WeakTopic{},
		&MaterialProgress{},
		&TopicProgress{},
		&CourseProgress{},
	}
}
