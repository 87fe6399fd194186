package controller

import (
	"learnhub_backend/internal/service"
	"learnhub_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type ExamController struct {
	ExamService *service.ExamService
}

func NewExamController(examService *service.ExamService) *ExamController {
	return &ExamController{ExamService: examService}
}

// @Summary 创建自定义试卷
// @Description 非管理员同一时间只能持有一份开放或待开放的自建试卷，且必须指定时间窗口
// @Tags 试卷
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param exam body service.CreateExamRequest true "试卷信息"
// @Success 201 {object} util.Response
// @Failure 409 {object} util.Response
// @Router /api/exams [post]
func (c *ExamController) CreateCustom(ctx *gin.Context) {
	caller, ok := currentCaller(ctx)
	if !ok {
		return
	}
	var req service.CreateExamRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	exam, err := c.ExamService.CreateCustom(ctx.Request.Context(), caller, req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, exam)
}

// @Summary 生成练习卷
// @Tags 试卷
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param practice body service.PracticeRequest true "抽题条件"
// @Success 201 {object} util.Response
// @Router /api/exams/practice [post]
func (c *ExamController) GeneratePractice(ctx *gin.Context) {
	caller, ok := currentCaller(ctx)
	if !ok {
		return
	}
	var req service.PracticeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	exam, err := c.ExamService.GeneratePractice(ctx.Request.Context(), caller, req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, exam)
}

// @Summary 生成错题重测卷
// @Tags 试卷
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param retest body service.RetestRequest false "题量与时长"
// @Success 201 {object} util.Response
// @Router /api/exams/retest [post]
func (c *ExamController) GenerateRetest(ctx *gin.Context) {
	caller, ok := currentCaller(ctx)
	if !ok {
		return
	}
	var req service.RetestRequest
	if ctx.Request.ContentLength > 0 {
		if err := ctx.ShouldBindJSON(&req); err != nil {
			util.BadRequest(ctx, err.Error())
			return
		}
	}
	exam, err := c.ExamService.GenerateRetest(ctx.Request.Context(), caller, req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, exam)
}

// @Summary 重新抽题
// @Tags 试卷
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "试卷ID"
// @Param request body service.RandomizeRequest true "抽题条件"
// @Success 200 {object} util.Response
// @Router /api/exams/{id}/randomize [post]
func (c *ExamController) Randomize(ctx *gin.Context) {
	caller, ok := currentCaller(ctx)
	if !ok {
		return
	}
	examID, ok := uintParam(ctx, "id")
	if !ok {
		return
	}
	var req service.RandomizeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	links, err := c.ExamService.Randomize(ctx.Request.Context(), caller, examID, req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, links)
}

// @Summary 获取试卷详情
// @Tags 试卷
// @Produce json
// @Security BearerAuth
// @Param id path int true "试卷ID"
// @Success 200 {object} util.Response
// @Router /api/exams/{id} [get]
func (c *ExamController) Get(ctx *gin.Context) {
	caller, ok := currentCaller(ctx)
	if !ok {
		return
	}
	examID, ok := uintParam(ctx, "id")
	if !ok {
		return
	}
	detail, err := c.ExamService.Get(ctx.Request.Context(), caller, examID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, detail)
}

// @Summary 我创建的试卷
// @Tags 试卷
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response
// @Router /api/exams/mine [get]
func (c *ExamController) ListMine(ctx *gin.Context) {
	caller, ok := currentCaller(ctx)
	if !ok {
		return
	}
	exams, err := c.ExamService.ListMine(ctx.Request.Context(), caller)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, exams)
}

// @Summary 修改试卷
// @Description 仅可修改名称、时长、启用状态与时间窗口
// @Tags 试卷管理
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "试卷ID"
// @Param exam body service.UpdateExamRequest true "修改内容"
// @Success 200 {object} util.Response
// @Router /api/admin/exams/{id} [patch]
func (c *ExamController) Update(ctx *gin.Context) {
	caller, ok := currentCaller(ctx)
	if !ok {
		return
	}
	examID, ok := uintParam(ctx, "id")
	if !ok {
		return
	}
	var req service.UpdateExamRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	exam, err := c.ExamService.Update(ctx.Request.Context(), caller, examID, req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, exam)
}

// @Summary 删除试卷
// @Description 同时删除该试卷的全部尝试与答案
// @Tags 试卷
// @Produce json
// @Security BearerAuth
// @Param id path int true "试卷ID"
// @Success 200 {object} util.Response
// @Router /api/exams/{id} [delete]
func (c *ExamController) Delete(ctx *gin.Context) {
	caller, ok := currentCaller(ctx)
	if !ok {
		return
	}
	examID, ok := uintParam(ctx, "id")
	if !ok {
		return
	}
	if err := c.ExamService.Delete(ctx.Request.Context(), caller, examID); err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"deleted": examID})
}
