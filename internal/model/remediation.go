package model

import "time"

// MistakeEntry 错题本，(user_id, question_id) 唯一
type MistakeEntry struct {
	BaseModel
	UserID        uint       `gorm:"uniqueIndex:idx_mistake_user_question;not null" json:"userId"`
	QuestionID    uint       `gorm:"uniqueIndex:idx_mistake_user_question;not null" json:"questionId"`
	TopicID       uint       `gorm:"index" json:"topicId"`
	WrongCount    int        `gorm:"default:0" json:"wrongCount"`
	LastWrongAt   time.Time  `json:"lastWrongAt"`
	Retested      bool       `gorm:"default:false;index" json:"retested"`
	RetestedAt    *time.Time `json:"retestedAt,omitempty"`
	RetestCorrect *bool      `json:"retestCorrect,omitempty"`
}

func (MistakeEntry) TableName() string {
	return "mistake_entries"
}

const (
	RevisionPriorityLow  = 1
	RevisionPriorityMid  = 2
	RevisionPriorityHigh = 3
)

// RevisionEntry 复习清单
type RevisionEntry struct {
	BaseModel
	UserID     uint       `gorm:"uniqueIndex:idx_revision_user_question;not null" json:"userId"`
	QuestionID uint       `gorm:"uniqueIndex:idx_revision_user_question;not null" json:"questionId"`
	Priority   int        `gorm:"default:2" json:"priority"`
	Note       string     `gorm:"type:text" json:"note,omitempty"`
	Reviewed   bool       `gorm:"default:false" json:"reviewed"`
	ReviewedAt *time.Time `json:"reviewedAt,omitempty"`
}

func (RevisionEntry) TableName() string {
	return "revision_entries"
}

// WeakTopic 按知识点累计的终身正确率
type WeakTopic struct {
	BaseModel
	UserID     uint    `gorm:"uniqueIndex:idx_weak_topic_user_topic;not null" json:"userId"`
	TopicID    uint    `gorm:"uniqueIndex:idx_weak_topic_user_topic;not null" json:"topicId"`
	WrongCount int     `gorm:"default:0" json:"wrongCount"`
	TotalCount int     `gorm:"default:0" json:"totalCount"`
	Percent    float64 `gorm:"default:0" json:"percent"`
}

func (WeakTopic) TableName() string {
	return "weak_topics"
}
