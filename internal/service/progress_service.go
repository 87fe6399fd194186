package service

import (
	"context"
	"learnhub_backend/internal/config"
	"learnhub_backend/internal/model"
	"learnhub_backend/internal/repository"
	"learnhub_backend/internal/util"
	"learnhub_backend/pkg/logger"
	"learnhub_backend/pkg/monitoring"
	"learnhub_backend/pkg/tracing"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"
)

// HeartbeatRequest 资料页定期上报的进度，字段均可省略
type HeartbeatRequest struct {
	Kind        model.MaterialKind `json:"kind" validate:"omitempty,oneof=video rich_text pdf quiz link"`
	DeltaSec    *int               `json:"deltaSec" validate:"omitempty,gte=0"`
	PositionSec *float64           `json:"positionSec" validate:"omitempty,gte=0"`
	DurationSec *float64           `json:"durationSec" validate:"omitempty,gte=0"`
	ScrollDepth *float64           `json:"scrollDepth" validate:"omitempty,gte=0,lte=1"`
	Percent     *float64           `json:"percent" validate:"omitempty,gte=0,lte=100"`
}

const (
	capNone  = ""
	capDelta = "delta"
	capTotal = "total"
)

// derivePercent 优先级：显式 percent > 视频播放位置 > 滚动深度；均缺失时返回 false
func derivePercent(kind model.MaterialKind, m *model.Material, req HeartbeatRequest) (float64, bool) {
	if req.Percent != nil {
		return *req.Percent, true
	}
	if kind == model.MaterialVideo && req.PositionSec != nil {
		duration := float64(m.DurationSec)
		if req.DurationSec != nil && *req.DurationSec > 0 {
			duration = *req.DurationSec
		}
		if duration > 0 {
			return *req.PositionSec / duration * 100, true
		}
	}
	if req.ScrollDepth != nil {
		return *req.ScrollDepth * 100, true
	}
	return 0, false
}

// ApplyHeartbeat 把一次心跳合并进进度记录，返回触发的时长上限类型
func ApplyHeartbeat(p *model.MaterialProgress, m *model.Material, req HeartbeatRequest, cfg config.ProgressConfig, now time.Time) string {
	kind := req.Kind
	if kind == "" {
		kind = m.Kind
	}

	if pct, ok := derivePercent(kind, m, req); ok {
		pct = math.Max(0, math.Min(100, pct))
		p.Percent = math.Max(p.Percent, pct)
	}
	if req.PositionSec != nil {
		p.LastPositionSec = int(*req.PositionSec)
	}

	capped := capNone
	if req.DeltaSec != nil {
		delta := *req.DeltaSec
		if delta > cfg.MaxDeltaSec {
			delta = cfg.MaxDeltaSec
			capped = capDelta
		}
		total := p.TimeSpentSec + delta
		if m.EstimatedSeconds > 0 {
			limit := int(float64(m.EstimatedSeconds) * cfg.TimeCapMultiplier)
			if total > limit {
				total = limit
				capped = capTotal
			}
		}
		if total > p.TimeSpentSec {
			p.TimeSpentSec = total
		}
	}

	if p.Percent >= 100 && p.CompletedAt == nil {
		p.CompletedAt = &now
	}
	return capped
}

type ProgressService struct {
	ProgressRepo *repository.ProgressRepository
	CatalogRepo  *repository.CatalogRepository
	Policy       *Policy
	Now          func() time.Time

	mu  sync.RWMutex
	cfg config.ProgressConfig
}

func NewProgressService(progressRepo *repository.ProgressRepository, catalogRepo *repository.CatalogRepository, policy *Policy, cfg config.ProgressConfig) *ProgressService {
	return &ProgressService{
		ProgressRepo: progressRepo,
		CatalogRepo:  catalogRepo,
		Policy:       policy,
		Now:          time.Now,
		cfg:          cfg,
	}
}

// SetConfig 配置热更新时替换时长上限参数
func (s *ProgressService) SetConfig(cfg config.ProgressConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
}

func (s *ProgressService) currentConfig() config.ProgressConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

func (s *ProgressService) Heartbeat(ctx context.Context, caller Caller, materialID uint, req HeartbeatRequest) (*model.MaterialProgress, error) {
	ctx, span := tracing.Start(ctx, "ProgressService.Heartbeat")
	defer span.End()

	if !s.Policy.CanReportProgress(caller) {
		return nil, util.ErrPermissionDenied
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	material, err := s.CatalogRepo.FindMaterial(ctx, materialID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, util.ErrMaterialNotFound
		}
		return nil, err
	}

	cfg := s.currentConfig()
	now := s.Now()
	capped := capNone
	progress, err := s.ProgressRepo.ApplyHeartbeat(ctx, caller.UserID, material.ID, func(p *model.MaterialProgress) {
		capped = ApplyHeartbeat(p, material, req, cfg, now)
	})
	if err != nil {
		return nil, err
	}

	if capped != capNone {
		monitoring.HeartbeatsCapped.WithLabelValues(capped).Inc()
		logger.Log.Debug("Heartbeat capped",
			zap.Uint("userID", caller.UserID),
			zap.Uint("materialID", material.ID),
			zap.String("cap", capped),
			zap.Int("timeSpentSec", progress.TimeSpentSec))
	}
	return progress, nil
}

// TopicRollup 权重为资料预估时长；全部权重为零时退化为算术平均，剩余时间记为零
type TopicRollup struct {
	Percent      float64
	TimeSpentSec int
	EstimatedSec int
	RemainingSec int
}

func RollupMaterials(materials []model.Material, progress map[uint]model.MaterialProgress) TopicRollup {
	var r TopicRollup
	if len(materials) == 0 {
		return r
	}

	var weighted, sum, remaining float64
	totalWeight := 0
	for _, m := range materials {
		p := progress[m.ID]
		w := m.EstimatedSeconds
		if w < 0 {
			w = 0
		}
		totalWeight += w
		weighted += p.Percent * float64(w)
		sum += p.Percent
		remaining += math.Max(0, float64(w)-float64(w)*p.Percent/100)
		r.TimeSpentSec += p.TimeSpentSec
	}

	r.EstimatedSec = totalWeight
	if totalWeight > 0 {
		r.Percent = weighted / float64(totalWeight)
		r.RemainingSec = int(math.Round(remaining))
	} else {
		r.Percent = sum / float64(len(materials))
	}
	return r
}

func (s *ProgressService) RollupTopic(ctx context.Context, caller Caller, topicID uint) (*model.TopicProgress, error) {
	topic, err := s.CatalogRepo.FindTopic(ctx, topicID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, util.ErrTopicNotFound
		}
		return nil, err
	}
	materials, err := s.CatalogRepo.ListMaterialsByTopic(ctx, topic.ID)
	if err != nil {
		return nil, err
	}
	ids := make([]uint, len(materials))
	for i, m := range materials {
		ids[i] = m.ID
	}
	progress, err := s.ProgressRepo.ListMaterialProgress(ctx, caller.UserID, ids)
	if err != nil {
		return nil, err
	}

	r := RollupMaterials(materials, progress)
	now := s.Now()
	return s.ProgressRepo.SaveTopicProgress(ctx, caller.UserID, topic.ID, func(p *model.TopicProgress) {
		p.Percent = int(math.Round(r.Percent))
		p.TimeSpentSec = r.TimeSpentSec
		p.EstimatedSec = r.EstimatedSec
		p.RemainingSec = r.RemainingSec
		p.GateSatisfied = r.Percent >= 100
		if p.GateSatisfied && p.CompletedAt == nil {
			p.CompletedAt = &now
		}
	})
}

// RollupCourse 课程下的知识点按 level 匹配，未学习的知识点按 0 计入平均
func (s *ProgressService) RollupCourse(ctx context.Context, caller Caller, courseID uint) (*model.CourseProgress, error) {
	course, err := s.CatalogRepo.FindCourse(ctx, courseID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, util.ErrCourseNotFound
		}
		return nil, err
	}
	topics, err := s.CatalogRepo.ListTopicsByLevel(ctx, course.Level)
	if err != nil {
		return nil, err
	}
	ids := make([]uint, len(topics))
	for i, t := range topics {
		ids[i] = t.ID
	}
	progress, err := s.ProgressRepo.ListTopicProgress(ctx, caller.UserID, ids)
	if err != nil {
		return nil, err
	}
	estimates, err := s.CatalogRepo.SumEstimatesByTopics(ctx, ids)
	if err != nil {
		return nil, err
	}

	var percentSum, remaining float64
	timeSpent, estimated := 0, 0
	for _, id := range ids {
		tp := progress[id]
		est := estimates[id]
		percentSum += float64(tp.Percent)
		timeSpent += tp.TimeSpentSec
		estimated += est
		remaining += math.Max(0, float64(est)-float64(est)*float64(tp.Percent)/100)
	}
	percent := 0.0
	if len(ids) > 0 {
		percent = percentSum / float64(len(ids))
	}

	now := s.Now()
	return s.ProgressRepo.SaveCourseProgress(ctx, caller.UserID, course.ID, func(p *model.CourseProgress) {
		p.Percent = int(math.Round(percent))
		p.TimeSpentSec = timeSpent
		p.EstimatedSec = estimated
		p.RemainingSec = int(math.Round(remaining))
		p.GateSatisfied = len(ids) > 0 && percent >= 100
		if p.GateSatisfied && p.CompletedAt == nil {
			p.CompletedAt = &now
		}
	})
}
