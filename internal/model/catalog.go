package model

import "time"

// 课程目录由外部内容系统维护，本服务只读

// swagger:model Course
type Course struct {
	BaseModel
	Title string `gorm:"size:255;not null" json:"title"`
	Level string `gorm:"size:50;index" json:"level"`
}

func (Course) TableName() string {
	return "courses"
}

type Volume struct {
	BaseModel
	CourseID uint   `gorm:"index;not null" json:"courseId"`
	Title    string `gorm:"size:255" json:"title"`
	Position int    `gorm:"default:0" json:"position"`
}

func (Volume) TableName() string {
	return "volumes"
}

type Module struct {
	BaseModel
	VolumeID uint   `gorm:"index;not null" json:"volumeId"`
	Title    string `gorm:"size:255" json:"title"`
	Position int    `gorm:"default:0" json:"position"`
}

func (Module) TableName() string {
	return "modules"
}

// Topic 通过 ModuleID 向上回溯 module -> volume -> course
type Topic struct {
	BaseModel
	ModuleID uint   `gorm:"index;not null" json:"moduleId"`
	Title    string `gorm:"size:255" json:"title"`
	Level    string `gorm:"size:50;index" json:"level"`
	Position int    `gorm:"default:0" json:"position"`
}

func (Topic) TableName() string {
	return "topics"
}

type EnrollmentStatus string

const (
	EnrollmentEnrolled   EnrollmentStatus = "ENROLLED"
	EnrollmentInProgress EnrollmentStatus = "IN_PROGRESS"
	EnrollmentCompleted  EnrollmentStatus = "COMPLETED"
)

type Enrollment struct {
	BaseModel
	UserID      uint             `gorm:"uniqueIndex:idx_enrollment_user_course;not null" json:"userId"`
	CourseID    uint             `gorm:"uniqueIndex:idx_enrollment_user_course;not null" json:"courseId"`
	Status      EnrollmentStatus `gorm:"size:20;default:'ENROLLED'" json:"status"`
	CompletedAt *time.Time       `json:"completedAt,omitempty"`
}

func (Enrollment) TableName() string {
	return "enrollments"
}
