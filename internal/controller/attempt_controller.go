package controller

import (
	"learnhub_backend/internal/service"
	"learnhub_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type AttemptController struct {
	AttemptService *service.AttemptService
}

func NewAttemptController(attemptService *service.AttemptService) *AttemptController {
	return &AttemptController{AttemptService: attemptService}
}

// @Summary 开始作答
// @Tags 作答
// @Produce json
// @Security BearerAuth
// @Param id path int true "试卷ID"
// @Success 201 {object} util.Response
// @Failure 403 {object} util.Response
// @Router /api/exams/{id}/attempts [post]
func (c *AttemptController) Start(ctx *gin.Context) {
	caller, ok := currentCaller(ctx)
	if !ok {
		return
	}
	examID, ok := uintParam(ctx, "id")
	if !ok {
		return
	}
	view, err := c.AttemptService.Start(ctx.Request.Context(), caller, examID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, view)
}

// @Summary 自动保存答案
// @Description 只更新请求中提供的字段
// @Tags 作答
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "尝试ID"
// @Param questionId path int true "题目ID"
// @Param answer body service.AutosaveRequest true "答案"
// @Success 200 {object} util.Response
// @Router /api/attempts/{id}/answers/{questionId} [put]
func (c *AttemptController) Autosave(ctx *gin.Context) {
	caller, ok := currentCaller(ctx)
	if !ok {
		return
	}
	attemptID, ok := uintParam(ctx, "id")
	if !ok {
		return
	}
	questionID, ok := uintParam(ctx, "questionId")
	if !ok {
		return
	}
	var req service.AutosaveRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	answer, err := c.AttemptService.AutosaveAnswer(ctx.Request.Context(), caller, attemptID, questionID, req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, answer)
}

// @Summary 交卷
// @Tags 作答
// @Produce json
// @Security BearerAuth
// @Param id path int true "尝试ID"
// @Success 200 {object} util.Response
// @Router /api/attempts/{id}/submit [post]
func (c *AttemptController) Submit(ctx *gin.Context) {
	caller, ok := currentCaller(ctx)
	if !ok {
		return
	}
	attemptID, ok := uintParam(ctx, "id")
	if !ok {
		return
	}
	attempt, err := c.AttemptService.Submit(ctx.Request.Context(), caller, attemptID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{
		"attempt": attempt,
		"passed":  attempt.Passed(),
	})
}

// @Summary 获取尝试详情
// @Tags 作答
// @Produce json
// @Security BearerAuth
// @Param id path int true "尝试ID"
// @Success 200 {object} util.Response
// @Router /api/attempts/{id} [get]
func (c *AttemptController) Get(ctx *gin.Context) {
	caller, ok := currentCaller(ctx)
	if !ok {
		return
	}
	attemptID, ok := uintParam(ctx, "id")
	if !ok {
		return
	}
	view, err := c.AttemptService.Get(ctx.Request.Context(), caller, attemptID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, view)
}

// @Summary 我的作答记录
// @Tags 作答
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response
// @Router /api/attempts [get]
func (c *AttemptController) ListMine(ctx *gin.Context) {
	caller, ok := currentCaller(ctx)
	if !ok {
		return
	}
	attempts, err := c.AttemptService.ListMine(ctx.Request.Context(), caller)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, attempts)
}
