package model

import (
	"time"

	"gorm.io/datatypes"
)

type ExamType string

const (
	ExamCourse   ExamType = "COURSE"
	ExamQuiz     ExamType = "QUIZ"
	ExamPractice ExamType = "PRACTICE"
	ExamRetest   ExamType = "RETEST"
)

func (t ExamType) Valid() bool {
	switch t {
	case ExamCourse, ExamQuiz, ExamPractice, ExamRetest:
		return true
	}
	return false
}

// swagger:model Exam
type Exam struct {
	BaseModel
	Name             string         `gorm:"size:255;not null" json:"name"`
	Level            string         `gorm:"size:50" json:"level"`
	TimeLimitMinutes int            `gorm:"not null" json:"timeLimitMinutes"`
	Type             ExamType       `gorm:"size:20;not null;index" json:"type"`
	CourseID         *uint          `gorm:"index" json:"courseId,omitempty"`
	TopicID          *uint          `gorm:"index" json:"topicId,omitempty"`
	IsActive         bool           `gorm:"default:false" json:"isActive"`
	StartAt          *time.Time     `json:"startAt,omitempty"`
	EndAt            *time.Time     `json:"endAt,omitempty"`
	CreatorID        *uint          `gorm:"index" json:"creatorId,omitempty"` // nil 表示管理员发布的公共试卷
	Filters          datatypes.JSON `json:"filters,omitempty"`                // 最近一次抽题使用的筛选条件
}

func (Exam) TableName() string {
	return "exams"
}

// HasWindow 是否设置了开放时间窗口
func (e *Exam) HasWindow() bool {
	return e.StartAt != nil || e.EndAt != nil
}

// InWindow 缺失的一端视为无界
func (e *Exam) InWindow(now time.Time) bool {
	if e.StartAt != nil && now.Before(*e.StartAt) {
		return false
	}
	if e.EndAt != nil && now.After(*e.EndAt) {
		return false
	}
	return true
}

// IsOpenOrPending 无窗口，或尚未到达 endAt（含未开始）
func (e *Exam) IsOpenOrPending(now time.Time) bool {
	if !e.HasWindow() {
		return true
	}
	if e.EndAt == nil {
		return true
	}
	return now.Before(*e.EndAt)
}

// ExamQuestion 试卷题目的有序关联，Position 为 1..N 的稠密序号
type ExamQuestion struct {
	BaseModel
	ExamID     uint      `gorm:"uniqueIndex:idx_exam_question;not null" json:"examId"`
	QuestionID uint      `gorm:"uniqueIndex:idx_exam_question;not null;index" json:"questionId"`
	Position   int       `gorm:"not null" json:"position"`
	Question   *Question `gorm:"foreignKey:QuestionID" json:"question,omitempty"`
}

func (ExamQuestion) TableName() string {
	return "exam_questions"
}
