package model

import (
	"math"
	"regexp"
	"strings"
	"time"

	"gorm.io/gorm"
)

type MaterialKind string

const (
	MaterialVideo    MaterialKind = "video"
	MaterialRichText MaterialKind = "rich_text"
	MaterialPDF      MaterialKind = "pdf"
	MaterialQuiz     MaterialKind = "quiz"
	MaterialLink     MaterialKind = "link"
)

const (
	DefaultMaterialEstimateSec = 300
	MinVideoEstimateSec        = 60
	ReadingWordsPerMinute      = 200
)

// swagger:model Material
type Material struct {
	BaseModel
	TopicID          uint         `gorm:"index;not null" json:"topicId"`
	Title            string       `gorm:"size:255" json:"title"`
	Kind             MaterialKind `gorm:"size:20;not null" json:"kind"`
	DurationSec      int          `gorm:"default:0" json:"durationSec"`
	Body             string       `gorm:"type:text" json:"body,omitempty"`
	EstimatedSeconds int          `gorm:"default:0" json:"estimatedSeconds"`
	Position         int          `gorm:"default:0" json:"position"`
}

func (Material) TableName() string {
	return "materials"
}

// BeforeCreate 在创作时一次性计算预估学习时长，心跳路径只读取不重算
func (m *Material) BeforeCreate(tx *gorm.DB) error {
	if m.EstimatedSeconds <= 0 {
		m.EstimatedSeconds = EstimateMaterialSeconds(m.Kind, m.DurationSec, m.Body)
	}
	return nil
}

var htmlTag = regexp.MustCompile(`<[^>]*>`)

// EstimateMaterialSeconds 按资料类型估算学习时长（秒）
func EstimateMaterialSeconds(kind MaterialKind, durationSec int, body string) int {
	switch kind {
	case MaterialVideo:
		if durationSec <= 0 {
			return DefaultMaterialEstimateSec
		}
		if durationSec < MinVideoEstimateSec {
			return MinVideoEstimateSec
		}
		return durationSec
	case MaterialRichText:
		words := len(strings.Fields(htmlTag.ReplaceAllString(body, " ")))
		minutes := int(math.Ceil(float64(words) / ReadingWordsPerMinute))
		if minutes < 1 {
			minutes = 1
		}
		return minutes * 60
	default:
		return DefaultMaterialEstimateSec
	}
}

// MaterialProgress 学习者在单个资料上的进度，(user_id, material_id) 唯一
type MaterialProgress struct {
	BaseModel
	UserID          uint       `gorm:"uniqueIndex:idx_material_progress_user_material;not null" json:"userId"`
	MaterialID      uint       `gorm:"uniqueIndex:idx_material_progress_user_material;not null" json:"materialId"`
	Percent         float64    `gorm:"default:0" json:"percent"`
	TimeSpentSec    int        `gorm:"default:0" json:"timeSpentSec"`
	LastPositionSec int        `gorm:"default:0" json:"lastPositionSec"`
	CompletedAt     *time.Time `json:"completedAt,omitempty"`
}

func (MaterialProgress) TableName() string {
	return "material_progress"
}

// TopicProgress 由资料进度按需汇总得到的缓存
type TopicProgress struct {
	BaseModel
	UserID        uint       `gorm:"uniqueIndex:idx_topic_progress_user_topic;not null" json:"userId"`
	TopicID       uint       `gorm:"uniqueIndex:idx_topic_progress_user_topic;not null" json:"topicId"`
	Percent       int        `gorm:"default:0" json:"percent"`
	TimeSpentSec  int        `gorm:"default:0" json:"timeSpentSec"`
	EstimatedSec  int        `gorm:"default:0" json:"estimatedSec"`
	RemainingSec  int        `gorm:"default:0" json:"remainingSec"`
	GateSatisfied bool       `gorm:"default:false" json:"gateSatisfied"`
	CompletedAt   *time.Time `json:"completedAt,omitempty"`
}

func (TopicProgress) TableName() string {
	return "topic_progress"
}

type CourseProgress struct {
	BaseModel
	UserID        uint       `gorm:"uniqueIndex:idx_course_progress_user_course;not null" json:"userId"`
	CourseID      uint       `gorm:"uniqueIndex:idx_course_progress_user_course;not null" json:"courseId"`
	Percent       int        `gorm:"default:0" json:"percent"`
	TimeSpentSec  int        `gorm:"default:0" json:"timeSpentSec"`
	EstimatedSec  int        `gorm:"default:0" json:"estimatedSec"`
	RemainingSec  int        `gorm:"default:0" json:"remainingSec"`
	GateSatisfied bool       `gorm:"default:false" json:"gateSatisfied"`
	CompletedAt   *time.Time `json:"completedAt,omitempty"`
}

func (CourseProgress) TableName() string {
	return "course_progress"
}
