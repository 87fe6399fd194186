package model

import "errors"

type QuestionType string

const (
	QuestionSingleBest  QuestionType = "single_best_answer"
	QuestionVignetteMCQ QuestionType = "vignette_mcq"
	QuestionConstructed QuestionType = "constructed_response"
)

const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// swagger:model Question
type Question struct {
	BaseModel
	Stem       string           `gorm:"type:text;not null" json:"stem"`
	Type       QuestionType     `gorm:"size:30;not null;index" json:"type"`
	Level      string           `gorm:"size:50;index" json:"level"`
	Difficulty string           `gorm:"size:20;index" json:"difficulty"`
	Marks      int              `gorm:"default:1" json:"marks"`
	CourseID   uint             `gorm:"index" json:"courseId"`
	VolumeID   uint             `gorm:"index" json:"volumeId"`
	ModuleID   uint             `gorm:"index" json:"moduleId"`
	TopicID    uint             `gorm:"index" json:"topicId"`
	Vignette   string           `gorm:"type:text" json:"vignette,omitempty"`
	Options    []QuestionOption `gorm:"foreignKey:QuestionID" json:"options,omitempty"`
}

func (Question) TableName() string {
	return "questions"
}

type QuestionOption struct {
	BaseModel
	QuestionID uint   `gorm:"index;not null" json:"questionId"`
	Text       string `gorm:"type:text;not null" json:"text"`
	IsCorrect  bool   `gorm:"default:false" json:"isCorrect"`
	Position   int    `gorm:"default:0" json:"position"`
}

func (QuestionOption) TableName() string {
	return "question_options"
}

func (q QuestionType) Valid() bool {
	switch q {
	case QuestionSingleBest, QuestionVignetteMCQ, QuestionConstructed:
		return true
	}
	return false
}

// IsChoice 选择题家族按选项正误自动判分
func (q QuestionType) IsChoice() bool {
	return q == QuestionSingleBest || q == QuestionVignetteMCQ
}

func ValidDifficulty(d string) bool {
	return d == DifficultyEasy || d == DifficultyMedium || d == DifficultyHard
}

var (
	errQuestionStem    = errors.New("stem is required")
	errQuestionType    = errors.New("unknown question type")
	errQuestionMarks   = errors.New("marks must be a positive integer")
	errQuestionCorrect = errors.New("choice questions need at least one correct option")
	errVignetteMissing = errors.New("vignette questions need vignette text")
)

func (q *Question) Validate() error {
	if q.Stem == "" {
		return errQuestionStem
	}
	if !q.Type.Valid() {
		return errQuestionType
	}
	if q.Marks <= 0 {
		return errQuestionMarks
	}
	if q.Type == QuestionVignetteMCQ && q.Vignette == "" {
		return errVignetteMissing
	}
	if q.Type.IsChoice() {
		correct := 0
		for _, o := range q.Options {
			if o.IsCorrect {
				correct++
			}
		}
		if correct == 0 {
			return errQuestionCorrect
		}
	}
	return nil
}

// HasFullPath 自定义组卷要求 course/volume/module/topic 四级齐全
func (q *Question) HasFullPath() bool {
	return q.CourseID != 0 && q.VolumeID != 0 && q.ModuleID != 0 && q.TopicID != 0
}
