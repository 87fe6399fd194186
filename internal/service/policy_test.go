package service

import (
	"learnhub_backend/internal/model"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPolicyRoles(t *testing.T) {
	p := NewPolicy(nil)

	assert.False(t, p.CanImportQuestions(student))
	assert.True(t, p.CanImportQuestions(teacher))
	assert.True(t, p.CanImportQuestions(admin))

	assert.False(t, p.CanUpdateExam(teacher, &model.Exam{}))
	assert.True(t, p.CanUpdateExam(admin, &model.Exam{}))
	assert.True(t, p.BypassEnrollment(admin))
	assert.False(t, p.BypassEnrollment(teacher))
}

func TestPolicyAttemptOwnership(t *testing.T) {
	p := NewPolicy(nil)
	a := &model.Attempt{UserID: student.UserID}

	assert.True(t, p.CanReadAttempt(student, a))
	assert.True(t, p.CanWriteAttempt(student, a))
	assert.False(t, p.CanReadAttempt(other, a))
	assert.False(t, p.CanWriteAttempt(other, a))

	assert.True(t, p.CanReadAttempt(teacher, a))
	assert.False(t, p.CanWriteAttempt(teacher, a))
	assert.False(t, p.CanWriteAttempt(admin, a))
}

func TestPolicyExamOwnership(t *testing.T) {
	p := NewPolicy(nil)
	mine := &model.Exam{CreatorID: &student.UserID}
	shared := &model.Exam{}

	assert.True(t, p.CanManageExam(student, mine))
	assert.False(t, p.CanManageExam(other, mine))
	assert.True(t, p.CanManageExam(admin, mine))
	assert.False(t, p.CanManageExam(student, shared))

	assert.True(t, p.CanReadExam(student, shared))
	assert.False(t, p.CanReadExam(other, mine))
	assert.True(t, p.CanReadExam(admin, mine))
}

func TestMatchPermWildcard(t *testing.T) {
	p := NewPolicy(map[model.UserRole][]string{model.Teacher: {"exam:*"}})

	assert.True(t, p.Has(teacher, "exam:update"))
	assert.False(t, p.Has(teacher, "attempt:view_all"))
	assert.False(t, p.Has(student, "exam:view"))
}
