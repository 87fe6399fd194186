package controller

import (
	"learnhub_backend/internal/service"
	"learnhub_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type ProgressController struct {
	ProgressService *service.ProgressService
}

func NewProgressController(progressService *service.ProgressService) *ProgressController {
	return &ProgressController{ProgressService: progressService}
}

// @Summary 学习心跳
// @Description 上报资料学习进度，单次时长最多计 60 秒，累计时长不超过预估时长的 1.5 倍
// @Tags 学习进度
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "资料ID"
// @Param heartbeat body service.HeartbeatRequest true "进度"
// @Success 200 {object} util.Response
// @Router /api/materials/{id}/heartbeat [post]
func (c *ProgressController) Heartbeat(ctx *gin.Context) {
	caller, ok := currentCaller(ctx)
	if !ok {
		return
	}
	materialID, ok := uintParam(ctx, "id")
	if !ok {
		return
	}
	var req service.HeartbeatRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	progress, err := c.ProgressService.Heartbeat(ctx.Request.Context(), caller, materialID, req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, progress)
}

// @Summary 知识点进度
// @Tags 学习进度
// @Produce json
// @Security BearerAuth
// @Param id path int true "知识点ID"
// @Success 200 {object} util.Response
// @Router /api/topics/{id}/progress [get]
func (c *ProgressController) TopicProgress(ctx *gin.Context) {
	caller, ok := currentCaller(ctx)
	if !ok {
		return
	}
	topicID, ok := uintParam(ctx, "id")
	if !ok {
		return
	}
	progress, err := c.ProgressService.RollupTopic(ctx.Request.Context(), caller, topicID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, progress)
}

// @Summary 课程进度
// @Tags 学习进度
// @Produce json
// @Security BearerAuth
// @Param id path int true "课程ID"
// @Success 200 {object} util.Response
// @Router /api/courses/{id}/progress [get]
func (c *ProgressController) CourseProgress(ctx *gin.Context) {
	caller, ok := currentCaller(ctx)
	if !ok {
		return
	}
	courseID, ok := uintParam(ctx, "id")
	if !ok {
		return
	}
	progress, err := c.ProgressService.RollupCourse(ctx.Request.Context(), caller, courseID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, progress)
}
