package controller

import (
	"fmt"
	"learnhub_backend/internal/model"
	"learnhub_backend/internal/service"
	"learnhub_backend/internal/util"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

type QuestionController struct {
	PoolService    *service.QuestionPoolService
	StorageService *service.StorageService
}

func NewQuestionController(poolService *service.QuestionPoolService, storageService *service.StorageService) *QuestionController {
	return &QuestionController{PoolService: poolService, StorageService: storageService}
}

// @Summary 筛选题库
// @Description 返回满足条件的全部题目ID
// @Tags 题库
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param filter body service.PoolFilter true "筛选条件"
// @Success 200 {object} util.Response
// @Router /api/questions/select [post]
func (c *QuestionController) Select(ctx *gin.Context) {
	if _, ok := currentCaller(ctx); !ok {
		return
	}
	var f service.PoolFilter
	if err := ctx.ShouldBindJSON(&f); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	ids, err := c.PoolService.Select(ctx.Request.Context(), f)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"ids": ids, "total": len(ids)})
}

// @Summary 上传并导入题目 CSV
// @Description 逐行导入，失败行在 errors 中返回，其余行照常提交
// @Tags 题库
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param file formData file true "CSV 文件"
// @Success 200 {object} util.Response
// @Router /api/questions/import [post]
func (c *QuestionController) Import(ctx *gin.Context) {
	caller, ok := currentCaller(ctx)
	if !ok {
		return
	}
	if !c.PoolService.Policy.CanImportQuestions(caller) {
		util.HandleError(ctx, util.ErrPermissionDenied)
		return
	}
	file, err := ctx.FormFile("file")
	if err != nil {
		util.BadRequest(ctx, "file is required")
		return
	}
	if !strings.EqualFold(filepath.Ext(file.Filename), ".csv") {
		util.BadRequest(ctx, "only .csv files are accepted")
		return
	}
	src, err := file.Open()
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	defer src.Close()

	key := fmt.Sprintf("imports/%d/%s-%s", caller.UserID, time.Now().Format("20060102150405"), model.GenerateUUID()+".csv")
	if err := c.StorageService.Provider.Upload(ctx.Request.Context(), key, src, file.Size, util.MimeCSV); err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	report, err := c.PoolService.ImportFromStorage(ctx.Request.Context(), caller, key)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"objectKey": key, "report": report})
}

// @Summary 从对象存储导入题目
// @Tags 题库
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body object true "{\"objectKey\": \"imports/questions.csv\"}"
// @Success 200 {object} util.Response
// @Router /api/questions/import/storage [post]
func (c *QuestionController) ImportFromStorage(ctx *gin.Context) {
	caller, ok := currentCaller(ctx)
	if !ok {
		return
	}
	var req struct {
		ObjectKey string `json:"objectKey" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	report, err := c.PoolService.ImportFromStorage(ctx.Request.Context(), caller, req.ObjectKey)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, report)
}
