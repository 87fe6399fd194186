package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"learnhub_backend/internal/model"
	"learnhub_backend/internal/repository"
	"learnhub_backend/internal/util"
	"learnhub_backend/pkg/logger"
	"learnhub_backend/pkg/tracing"
	"math"
	"sort"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jinzhu/now"
	"go.uber.org/zap"
)

const (
	topTopicLimit   = 10
	weeklyBuckets   = 8
	readinessWindow = 5
	passBonus       = 5
	passEstimateMin = 5
	passEstimateMax = 95
)

type TopicAccuracy struct {
	TopicID uint    `json:"topicId"`
	Correct int     `json:"correct"`
	Total   int     `json:"total"`
	Percent float64 `json:"percent"`
}

type WeeklyScore struct {
	WeekStart string  `json:"weekStart"`
	Average   float64 `json:"average"`
	Attempts  int     `json:"attempts"`
}

type AnalyticsSummary struct {
	Attempts     int             `json:"attempts"`
	AverageScore float64         `json:"averageScore"`
	Topics       []TopicAccuracy `json:"topics"`
	Weekly       []WeeklyScore   `json:"weekly"`
	Improvement  int             `json:"improvement"`
	Readiness    int             `json:"readiness"`
	PassEstimate int             `json:"passEstimate"`
}

type EnrollmentSummary struct {
	CourseID    uint                   `json:"courseId"`
	Enrolled    bool                   `json:"enrolled"`
	Status      model.EnrollmentStatus `json:"status,omitempty"`
	Attempts    int                    `json:"attempts"`
	Submitted   int                    `json:"submitted"`
	BestScore   *int                   `json:"bestScore,omitempty"`
	LatestScore *int                   `json:"latestScore,omitempty"`
	Passed      bool                   `json:"passed"`
}

type AnalyticsService struct {
	AnalyticsRepo  *repository.AnalyticsRepository
	CatalogRepo    *repository.CatalogRepository
	EnrollmentRepo *repository.EnrollmentRepository
	Redis          *redis.Client
	CacheTTL       time.Duration
}

func NewAnalyticsService(
	analyticsRepo *repository.AnalyticsRepository,
	catalogRepo *repository.CatalogRepository,
	enrollmentRepo *repository.EnrollmentRepository,
	rdb *redis.Client,
	cacheTTL time.Duration,
) *AnalyticsService {
	return &AnalyticsService{
		AnalyticsRepo:  analyticsRepo,
		CatalogRepo:    catalogRepo,
		EnrollmentRepo: enrollmentRepo,
		Redis:          rdb,
		CacheTTL:       cacheTTL,
	}
}

func summaryKey(userID uint) string {
	return fmt.Sprintf("analytics:summary:%d", userID)
}

// Summary 优先读取缓存，缓存不可用时直接重新计算
func (s *AnalyticsService) Summary(ctx context.Context, caller Caller) (*AnalyticsSummary, error) {
	ctx, span := tracing.Start(ctx, "AnalyticsService.Summary")
	defer span.End()

	if cached := s.readCache(ctx, caller.UserID); cached != nil {
		return cached, nil
	}

	attempts, err := s.AnalyticsRepo.SubmittedAttempts(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}
	stats, err := s.AnalyticsRepo.TopicStats(ctx, caller.UserID, topTopicLimit)
	if err != nil {
		return nil, err
	}

	summary := BuildSummary(attempts, stats)
	s.writeCache(ctx, caller.UserID, summary)
	return summary, nil
}

func (s *AnalyticsService) readCache(ctx context.Context, userID uint) *AnalyticsSummary {
	if s.Redis == nil {
		return nil
	}
	raw, err := s.Redis.Get(ctx, summaryKey(userID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Log.Warn("Read analytics cache failed", zap.Uint("userID", userID), zap.Error(err))
		}
		return nil
	}
	var summary AnalyticsSummary
	if err := json.Unmarshal(raw, &summary); err != nil {
		return nil
	}
	return &summary
}

func (s *AnalyticsService) writeCache(ctx context.Context, userID uint, summary *AnalyticsSummary) {
	if s.Redis == nil || s.CacheTTL <= 0 {
		return
	}
	raw, err := json.Marshal(summary)
	if err != nil {
		return
	}
	if err := s.Redis.Set(ctx, summaryKey(userID), raw, s.CacheTTL).Err(); err != nil {
		logger.Log.Warn("Write analytics cache failed", zap.Uint("userID", userID), zap.Error(err))
	}
}

// Invalidate 交卷后删除缓存
func (s *AnalyticsService) Invalidate(ctx context.Context, userID uint) {
	if s.Redis == nil {
		return
	}
	if err := s.Redis.Del(ctx, summaryKey(userID)).Err(); err != nil {
		logger.Log.Warn("Invalidate analytics cache failed", zap.Uint("userID", userID), zap.Error(err))
	}
}

var isoWeek = &now.Config{WeekStartDay: time.Monday, TimeLocation: time.UTC}

func weekStart(t time.Time) string {
	return isoWeek.With(t.UTC()).BeginningOfWeek().Format(util.DateFormat)
}

func scoreOf(a model.Attempt) int {
	if a.ScorePercent == nil {
		return 0
	}
	return *a.ScorePercent
}

// BuildSummary attempts 需按交卷时间升序
func BuildSummary(attempts []model.Attempt, stats []repository.TopicStat) *AnalyticsSummary {
	summary := &AnalyticsSummary{
		Attempts: len(attempts),
		Topics:   make([]TopicAccuracy, 0, len(stats)),
		Weekly:   []WeeklyScore{},
	}

	for _, st := range stats {
		ta := TopicAccuracy{TopicID: st.TopicID, Correct: st.Correct, Total: st.Total}
		if st.Total > 0 {
			ta.Percent = 100 * float64(st.Correct) / float64(st.Total)
		}
		summary.Topics = append(summary.Topics, ta)
	}

	if len(attempts) > 0 {
		total := 0
		type bucket struct{ sum, count int }
		buckets := make(map[string]*bucket)
		for _, a := range attempts {
			score := scoreOf(a)
			total += score

			at := a.StartedAt
			if a.SubmittedAt != nil {
				at = *a.SubmittedAt
			}
			key := weekStart(at)
			b := buckets[key]
			if b == nil {
				b = &bucket{}
				buckets[key] = b
			}
			b.sum += score
			b.count++
		}
		summary.AverageScore = float64(total) / float64(len(attempts))

		keys := make([]string, 0, len(buckets))
		for k := range buckets {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		if len(keys) > weeklyBuckets {
			keys = keys[len(keys)-weeklyBuckets:]
		}
		for _, k := range keys {
			b := buckets[k]
			summary.Weekly = append(summary.Weekly, WeeklyScore{
				WeekStart: k,
				Average:   float64(b.sum) / float64(b.count),
				Attempts:  b.count,
			})
		}

		summary.Improvement = scoreOf(attempts[len(attempts)-1]) - scoreOf(attempts[0])
		summary.Readiness = Readiness(attempts)
	}

	summary.PassEstimate = PassEstimate(summary.Readiness, summary.Improvement)
	return summary
}

// Readiness 最近 5 次的加权平均，越新的尝试权重越高（1..k）
func Readiness(attempts []model.Attempt) int {
	recent := attempts
	if len(recent) > readinessWindow {
		recent = recent[len(recent)-readinessWindow:]
	}
	if len(recent) == 0 {
		return 0
	}
	weighted, weights := 0, 0
	for i, a := range recent {
		w := i + 1
		weighted += w * scoreOf(a)
		weights += w
	}
	return int(math.Round(float64(weighted) / float64(weights)))
}

// PassEstimate 固定的启发式：就绪分 + 进步的一半 + 达标奖励，限制在 [5, 95]
func PassEstimate(readiness, improvement int) int {
	estimate := readiness
	if improvement > 0 {
		estimate += int(math.Round(float64(improvement) / 2))
	}
	if readiness >= model.PassThreshold {
		estimate += passBonus
	}
	if estimate < passEstimateMin {
		return passEstimateMin
	}
	if estimate > passEstimateMax {
		return passEstimateMax
	}
	return estimate
}

// EnrollmentSummary 课程 COURSE 类型试卷上的作答情况，及格线固定为 70
func (s *AnalyticsService) EnrollmentSummary(ctx context.Context, caller Caller, courseID uint) (*EnrollmentSummary, error) {
	if _, err := s.CatalogRepo.FindCourse(ctx, courseID); err != nil {
		if repository.IsNotFound(err) {
			return nil, util.ErrCourseNotFound
		}
		return nil, err
	}

	summary := &EnrollmentSummary{CourseID: courseID}
	enrollment, err := s.EnrollmentRepo.Find(ctx, caller.UserID, courseID)
	switch {
	case err == nil:
		summary.Enrolled = true
		summary.Status = enrollment.Status
	case !repository.IsNotFound(err):
		return nil, err
	}

	attempts, err := s.AnalyticsRepo.CourseAttempts(ctx, caller.UserID, courseID)
	if err != nil {
		return nil, err
	}
	summary.Attempts = len(attempts)
	for i := range attempts {
		a := attempts[i]
		if !a.IsSubmitted() || a.ScorePercent == nil {
			continue
		}
		summary.Submitted++
		score := *a.ScorePercent
		if summary.BestScore == nil || score > *summary.BestScore {
			summary.BestScore = util.IntPtr(score)
		}
		summary.LatestScore = util.IntPtr(score)
		if a.Passed() {
			summary.Passed = true
		}
	}
	return summary, nil
}
