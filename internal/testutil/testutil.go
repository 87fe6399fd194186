// Package testutil 为各层测试提供内存 sqlite 与基础目录数据
package testutil

import (
	"fmt"
	"learnhub_backend/internal/model"
	"learnhub_backend/pkg/database"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Clock 固定的测试时间，2026-03-02 为周一
var Clock = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

// NewDB 每次调用得到一个独立的内存库，并完成迁移
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

type Catalog struct {
	Course model.Course
	Volume model.Volume
	Module model.Module
	Topics []model.Topic
}

// SeedCatalog 创建 course -> volume -> module -> topics，知识点与课程同 level
func SeedCatalog(t *testing.T, db *gorm.DB, level string, topics int) *Catalog {
	t.Helper()

	c := &Catalog{Course: model.Course{Title: "Course " + level, Level: level}}
	require.NoError(t, db.Create(&c.Course).Error)

	c.Volume = model.Volume{CourseID: c.Course.ID, Title: "Volume 1", Position: 1}
	require.NoError(t, db.Create(&c.Volume).Error)

	c.Module = model.Module{VolumeID: c.Volume.ID, Title: "Module 1", Position: 1}
	require.NoError(t, db.Create(&c.Module).Error)

	for i := 0; i < topics; i++ {
		topic := model.Topic{ModuleID: c.Module.ID, Title: fmt.Sprintf("Topic %d", i+1), Level: level, Position: i + 1}
		require.NoError(t, db.Create(&topic).Error)
		c.Topics = append(c.Topics, topic)
	}
	return c
}

// SeedQuestions 在指定知识点下创建 n 道单选题，第一个选项为正确答案
func SeedQuestions(t *testing.T, db *gorm.DB, c *Catalog, topic model.Topic, n int, difficulty string) []model.Question {
	t.Helper()

	questions := make([]model.Question, 0, n)
	for i := 0; i < n; i++ {
		q := model.Question{
			Stem:       fmt.Sprintf("%s question %d", topic.Title, i+1),
			Type:       model.QuestionSingleBest,
			Level:      topic.Level,
			Difficulty: difficulty,
			Marks:      1,
			CourseID:   c.Course.ID,
			VolumeID:   c.Volume.ID,
			ModuleID:   c.Module.ID,
			TopicID:    topic.ID,
			Options: []model.QuestionOption{
				{Text: "right", IsCorrect: true, Position: 1},
				{Text: "wrong", Position: 2},
			},
		}
		require.NoError(t, db.Create(&q).Error)
		questions = append(questions, q)
	}
	return questions
}

func Enroll(t *testing.T, db *gorm.DB, userID, courseID uint) {
	t.Helper()
	require.NoError(t, db.Create(&model.Enrollment{
		UserID:   userID,
		CourseID: courseID,
		Status:   model.EnrollmentEnrolled,
	}).Error)
}

// Options 返回题目选项，正确选项在前
func Options(t *testing.T, db *gorm.DB, questionID uint) (correct, wrong model.QuestionOption) {
	t.Helper()
	var opts []model.QuestionOption
	require.NoError(t, db.Where("question_id = ?", questionID).Order("position asc").Find(&opts).Error)
	require.Len(t, opts, 2)
	return opts[0], opts[1]
}
