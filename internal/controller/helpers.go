package controller

import (
	"learnhub_backend/internal/service"
	"learnhub_backend/internal/util"
	"strconv"

	"github.com/gin-gonic/gin"
)

// currentCaller 未登录时直接写出 401
func currentCaller(ctx *gin.Context) (service.Caller, bool) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return service.Caller{}, false
	}
	return service.Caller{UserID: user.UserID, Role: user.Role}, true
}

func uintParam(ctx *gin.Context, name string) (uint, bool) {
	v, err := strconv.ParseUint(ctx.Param(name), 10, 64)
	if err != nil || v == 0 {
		util.BadRequest(ctx, "invalid "+name)
		return 0, false
	}
	return uint(v), true
}

func boolQuery(ctx *gin.Context, name string) bool {
	v, _ := strconv.ParseBool(ctx.Query(name))
	return v
}
