package model

import "time"

type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "IN_PROGRESS"
	AttemptSubmitted  AttemptStatus = "SUBMITTED"
)

// PassThreshold 仅用于报表展示，不限制重考
const PassThreshold = 70

// swagger:model Attempt
type Attempt struct {
	BaseModel
	ExamID           uint          `gorm:"index;not null" json:"examId"`
	UserID           uint          `gorm:"index;not null" json:"userId"`
	Status           AttemptStatus `gorm:"size:20;not null;default:'IN_PROGRESS'" json:"status"`
	TimeRemainingSec int           `gorm:"default:0" json:"timeRemainingSec"`
	StartedAt        time.Time     `json:"startedAt"`
	SubmittedAt      *time.Time    `json:"submittedAt,omitempty"`
	ScorePercent     *int          `json:"scorePercent,omitempty"`
	Exam             *Exam         `gorm:"foreignKey:ExamID" json:"exam,omitempty"`
}

func (Attempt) TableName() string {
	return "attempts"
}

func (a *Attempt) IsSubmitted() bool {
	return a.Status == AttemptSubmitted
}

// Passed 按固定 70 分线判断，未交卷返回 false
func (a *Attempt) Passed() bool {
	return a.ScorePercent != nil && *a.ScorePercent >= PassThreshold
}

// Answer 每个 (attempt_id, question_id) 仅一行，开考时预建空占位
type Answer struct {
	BaseModel
	AttemptID        uint    `gorm:"uniqueIndex:idx_answer_attempt_question;not null" json:"attemptId"`
	QuestionID       uint    `gorm:"uniqueIndex:idx_answer_attempt_question;not null" json:"questionId"`
	SelectedOptionID *uint   `json:"selectedOptionId,omitempty"`
	FreeText         *string `gorm:"type:text" json:"freeText,omitempty"`
	Flagged          bool    `gorm:"default:false" json:"flagged"`
	IsCorrect        *bool   `json:"isCorrect"`
	TimeSpentSec     int     `gorm:"default:0" json:"timeSpentSec"`
}

func (Answer) TableName() string {
	return "answers"
}
