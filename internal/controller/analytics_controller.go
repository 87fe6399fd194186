package controller

import (
	"learnhub_backend/internal/service"
	"learnhub_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type AnalyticsController struct {
	AnalyticsService *service.AnalyticsService
}

func NewAnalyticsController(analyticsService *service.AnalyticsService) *AnalyticsController {
	return &AnalyticsController{AnalyticsService: analyticsService}
}

// @Summary 学习统计概览
// @Description 平均分、知识点正确率、周均分、进步幅度、就绪分与通过率估计
// @Tags 统计
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response
// @Router /api/analytics/summary [get]
func (c *AnalyticsController) Summary(ctx *gin.Context) {
	caller, ok := currentCaller(ctx)
	if !ok {
		return
	}
	summary, err := c.AnalyticsService.Summary(ctx.Request.Context(), caller)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, summary)
}

// @Summary 课程考试情况
// @Tags 统计
// @Produce json
// @Security BearerAuth
// @Param id path int true "课程ID"
// @Success 200 {object} util.Response
// @Router /api/courses/{id}/exam-summary [get]
func (c *AnalyticsController) EnrollmentSummary(ctx *gin.Context) {
	caller, ok := currentCaller(ctx)
	if !ok {
		return
	}
	courseID, ok := uintParam(ctx, "id")
	if !ok {
		return
	}
	summary, err := c.AnalyticsService.EnrollmentSummary(ctx.Request.Context(), caller, courseID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, summary)
}
