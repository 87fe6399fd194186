package service

import (
	"context"
	"errors"
	"learnhub_backend/internal/config"
	"learnhub_backend/internal/model"
	"learnhub_backend/internal/testutil"
	"learnhub_backend/internal/util"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatPtr(v float64) *float64 { return &v }

var defaultProgress = config.ProgressConfig{TimeCapMultiplier: 1.5, MaxDeltaSec: 60}

func TestApplyHeartbeatIsMonotonic(t *testing.T) {
	m := &model.Material{Kind: model.MaterialRichText, EstimatedSeconds: 600}
	p := &model.MaterialProgress{}

	ApplyHeartbeat(p, m, HeartbeatRequest{Percent: floatPtr(80), DeltaSec: util.IntPtr(30)}, defaultProgress, testutil.Clock)
	ApplyHeartbeat(p, m, HeartbeatRequest{Percent: floatPtr(50), DeltaSec: util.IntPtr(-5)}, defaultProgress, testutil.Clock)

	assert.Equal(t, 80.0, p.Percent)
	assert.Equal(t, 30, p.TimeSpentSec)
	assert.Nil(t, p.CompletedAt)

	ApplyHeartbeat(p, m, HeartbeatRequest{Percent: floatPtr(130)}, defaultProgress, testutil.Clock)
	assert.Equal(t, 100.0, p.Percent)
	require.NotNil(t, p.CompletedAt)
}

func TestApplyHeartbeatCapsTime(t *testing.T) {
	m := &model.Material{Kind: model.MaterialVideo, DurationSec: 100, EstimatedSeconds: 100}
	p := &model.MaterialProgress{}

	assert.Equal(t, capDelta, ApplyHeartbeat(p, m, HeartbeatRequest{DeltaSec: util.IntPtr(500)}, defaultProgress, testutil.Clock))
	assert.Equal(t, 60, p.TimeSpentSec)

	var last string
	for i := 0; i < 5; i++ {
		last = ApplyHeartbeat(p, m, HeartbeatRequest{DeltaSec: util.IntPtr(30)}, defaultProgress, testutil.Clock)
		assert.LessOrEqual(t, p.TimeSpentSec, 150)
	}
	assert.Equal(t, capTotal, last)
	assert.Equal(t, 150, p.TimeSpentSec)
}

func TestDerivePercentPriority(t *testing.T) {
	video := &model.Material{Kind: model.MaterialVideo, DurationSec: 200}

	pct, ok := derivePercent(model.MaterialVideo, video, HeartbeatRequest{PositionSec: floatPtr(50)})
	require.True(t, ok)
	assert.Equal(t, 25.0, pct)

	pct, _ = derivePercent(model.MaterialVideo, video, HeartbeatRequest{PositionSec: floatPtr(50), DurationSec: floatPtr(100)})
	assert.Equal(t, 50.0, pct)

	pct, _ = derivePercent(model.MaterialVideo, video, HeartbeatRequest{Percent: floatPtr(10), PositionSec: floatPtr(50)})
	assert.Equal(t, 10.0, pct)

	pct, _ = derivePercent(model.MaterialPDF, &model.Material{Kind: model.MaterialPDF}, HeartbeatRequest{ScrollDepth: floatPtr(0.4)})
	assert.InDelta(t, 40.0, pct, 1e-9)

	_, ok = derivePercent(model.MaterialPDF, &model.Material{Kind: model.MaterialPDF}, HeartbeatRequest{})
	assert.False(t, ok)
}

func TestRollupMaterialsZeroWeights(t *testing.T) {
	materials := []model.Material{
		{BaseModel: model.BaseModel{ID: 1}},
		{BaseModel: model.BaseModel{ID: 2}},
	}
	r := RollupMaterials(materials, map[uint]model.MaterialProgress{1: {Percent: 100}, 2: {Percent: 50}})
	assert.Equal(t, 75.0, r.Percent)
	assert.Zero(t, r.RemainingSec)
	assert.Zero(t, r.EstimatedSec)

	assert.Equal(t, TopicRollup{}, RollupMaterials(nil, nil))
}

func TestRollupMaterialsHalfPercent(t *testing.T) {
	materials := []model.Material{
		{BaseModel: model.BaseModel{ID: 1}, EstimatedSeconds: 100},
		{BaseModel: model.BaseModel{ID: 2}, EstimatedSeconds: 300},
	}
	r := RollupMaterials(materials, map[uint]model.MaterialProgress{1: {Percent: 50}, 2: {Percent: 100}})
	assert.Equal(t, 87.5, r.Percent)
	assert.Equal(t, 400, r.EstimatedSec)
	assert.Equal(t, 50, r.RemainingSec)
}

func TestTopicGateRoundsHalfUpWithoutSatisfying(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	topic := env.catalog.Topics[0]

	a := &model.Material{TopicID: topic.ID, Kind: model.MaterialPDF, EstimatedSeconds: 100, Position: 1}
	b := &model.Material{TopicID: topic.ID, Kind: model.MaterialPDF, EstimatedSeconds: 300, Position: 2}
	require.NoError(t, env.progress.CatalogRepo.CreateMaterial(ctx, a))
	require.NoError(t, env.progress.CatalogRepo.CreateMaterial(ctx, b))

	_, err := env.progress.Heartbeat(ctx, student, a.ID, HeartbeatRequest{Percent: floatPtr(50)})
	require.NoError(t, err)
	_, err = env.progress.Heartbeat(ctx, student, b.ID, HeartbeatRequest{Percent: floatPtr(100)})
	require.NoError(t, err)

	tp, err := env.progress.RollupTopic(ctx, student, topic.ID)
	require.NoError(t, err)
	assert.Equal(t, 88, tp.Percent)
	assert.False(t, tp.GateSatisfied)
	assert.Nil(t, tp.CompletedAt)
}

func TestHeartbeatAndTopicGate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	topic := env.catalog.Topics[0]

	a := &model.Material{TopicID: topic.ID, Kind: model.MaterialPDF, EstimatedSeconds: 100, Position: 1}
	b := &model.Material{TopicID: topic.ID, Kind: model.MaterialPDF, EstimatedSeconds: 300, Position: 2}
	require.NoError(t, env.progress.CatalogRepo.CreateMaterial(ctx, a))
	require.NoError(t, env.progress.CatalogRepo.CreateMaterial(ctx, b))

	_, err := env.progress.Heartbeat(ctx, student, a.ID, HeartbeatRequest{Percent: floatPtr(100), DeltaSec: util.IntPtr(60)})
	require.NoError(t, err)
	p, err := env.progress.Heartbeat(ctx, student, b.ID, HeartbeatRequest{Percent: floatPtr(84), DeltaSec: util.IntPtr(45)})
	require.NoError(t, err)
	assert.Equal(t, 84.0, p.Percent)

	tp, err := env.progress.RollupTopic(ctx, student, topic.ID)
	require.NoError(t, err)
	assert.Equal(t, 88, tp.Percent)
	assert.False(t, tp.GateSatisfied)
	assert.Nil(t, tp.CompletedAt)
	assert.Equal(t, 400, tp.EstimatedSec)
	assert.Equal(t, 48, tp.RemainingSec)
	assert.Equal(t, 105, tp.TimeSpentSec)

	_, err = env.progress.Heartbeat(ctx, student, b.ID, HeartbeatRequest{Percent: floatPtr(100)})
	require.NoError(t, err)
	tp, err = env.progress.RollupTopic(ctx, student, topic.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, tp.Percent)
	assert.True(t, tp.GateSatisfied)
	assert.NotNil(t, tp.CompletedAt)

	var rows int64
	env.db.Model(&model.TopicProgress{}).Count(&rows)
	assert.Equal(t, int64(1), rows)
}

func TestRollupCourseCountsMissingTopicsAsZero(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	first := env.catalog.Topics[0]

	m := &model.Material{TopicID: first.ID, Kind: model.MaterialPDF, EstimatedSeconds: 200}
	require.NoError(t, env.progress.CatalogRepo.CreateMaterial(ctx, m))
	_, err := env.progress.Heartbeat(ctx, student, m.ID, HeartbeatRequest{Percent: floatPtr(100)})
	require.NoError(t, err)
	_, err = env.progress.RollupTopic(ctx, student, first.ID)
	require.NoError(t, err)

	cp, err := env.progress.RollupCourse(ctx, student, env.catalog.Course.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, cp.Percent)
	assert.False(t, cp.GateSatisfied)
	assert.Equal(t, 200, cp.EstimatedSec)
	assert.Equal(t, 0, cp.RemainingSec)
}

func TestHeartbeatUnknownMaterial(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.progress.Heartbeat(context.Background(), student, 777, HeartbeatRequest{Percent: floatPtr(10)})
	assert.True(t, errors.Is(err, util.ErrMaterialNotFound))
}

func TestSetConfigAppliesNewCaps(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	m := &model.Material{TopicID: env.catalog.Topics[0].ID, Kind: model.MaterialPDF, EstimatedSeconds: 1000}
	require.NoError(t, env.progress.CatalogRepo.CreateMaterial(ctx, m))

	env.progress.SetConfig(config.ProgressConfig{TimeCapMultiplier: 1.5, MaxDeltaSec: 10})
	p, err := env.progress.Heartbeat(ctx, student, m.ID, HeartbeatRequest{DeltaSec: util.IntPtr(30)})
	require.NoError(t, err)
	assert.Equal(t, 10, p.TimeSpentSec)
}
