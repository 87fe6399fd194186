package controller

import (
	"learnhub_backend/internal/service"
	"learnhub_backend/internal/util"
	"strconv"

	"github.com/gin-gonic/gin"
)

type RemediationController struct {
	RemediationService *service.RemediationService
}

func NewRemediationController(remediationService *service.RemediationService) *RemediationController {
	return &RemediationController{RemediationService: remediationService}
}

// @Summary 错题本
// @Tags 复习
// @Produce json
// @Security BearerAuth
// @Param unresolved query bool false "只看未重测的错题"
// @Success 200 {object} util.Response
// @Router /api/remediation/mistakes [get]
func (c *RemediationController) ListMistakes(ctx *gin.Context) {
	caller, ok := currentCaller(ctx)
	if !ok {
		return
	}
	entries, err := c.RemediationService.ListMistakes(ctx.Request.Context(), caller, boolQuery(ctx, "unresolved"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, entries)
}

// @Summary 复习清单
// @Tags 复习
// @Produce json
// @Security BearerAuth
// @Param pending query bool false "只看未复习的条目"
// @Success 200 {object} util.Response
// @Router /api/remediation/revisions [get]
func (c *RemediationController) ListRevisions(ctx *gin.Context) {
	caller, ok := currentCaller(ctx)
	if !ok {
		return
	}
	entries, err := c.RemediationService.ListRevisions(ctx.Request.Context(), caller, boolQuery(ctx, "pending"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, entries)
}

// @Summary 加入或更新复习清单
// @Tags 复习
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param revision body service.RevisionRequest true "复习条目"
// @Success 200 {object} util.Response
// @Router /api/remediation/revisions [put]
func (c *RemediationController) UpsertRevision(ctx *gin.Context) {
	caller, ok := currentCaller(ctx)
	if !ok {
		return
	}
	var req service.RevisionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	entry, err := c.RemediationService.UpsertRevision(ctx.Request.Context(), caller, req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, entry)
}

// @Summary 薄弱知识点
// @Tags 复习
// @Produce json
// @Security BearerAuth
// @Param limit query int false "返回数量" default(10)
// @Success 200 {object} util.Response
// @Router /api/remediation/weak-topics [get]
func (c *RemediationController) ListWeakTopics(ctx *gin.Context) {
	caller, ok := currentCaller(ctx)
	if !ok {
		return
	}
	limit := 10
	if l := ctx.Query("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 {
			limit = v
		}
	}
	topics, err := c.RemediationService.ListWeakTopics(ctx.Request.Context(), caller, limit)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, topics)
}
