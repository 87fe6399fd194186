package service

import (
	"learnhub_backend/internal/model"
	"strings"
)

// Caller 由认证中间件解析出的调用者身份
type Caller struct {
	UserID uint
	Role   model.UserRole
}

var RolePermissions = map[model.UserRole][]string{
	model.Student: {
		"exam:create_own",
		"exam:view",
		"attempt:create",
		"attempt:save",
		"attempt:submit",
		"attempt:view_own",
		"progress:report",
		"remediation:manage_own",
	},
	model.Teacher: {
		"exam:create_own",
		"exam:view",
		"attempt:create",
		"attempt:save",
		"attempt:submit",
		"attempt:view_own",
		"attempt:view_all",
		"question:import",
		"progress:report",
		"remediation:manage_own",
	},
	model.Admin: {
		"*",
	},
}

// Policy 集中所有角色与归属判断，服务层不做内联的角色比较
type Policy struct {
	RolePermissions map[model.UserRole][]string
}

func NewPolicy(rp map[model.UserRole][]string) *Policy {
	if rp == nil {
		rp = RolePermissions
	}
	return &Policy{RolePermissions: rp}
}

func (p *Policy) Has(c Caller, perm string) bool {
	for _, granted := range p.RolePermissions[c.Role] {
		if matchPerm(granted, perm) {
			return true
		}
	}
	return false
}

func matchPerm(pattern, perm string) bool {
	if pattern == "*" || pattern == perm {
		return true
	}
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(perm, strings.TrimSuffix(pattern, "*"))
	}
	return false
}

func (p *Policy) IsAdmin(c Caller) bool {
	return c.Role == model.Admin
}

// BypassEnrollment 管理员可绕过报名校验
func (p *Policy) BypassEnrollment(c Caller) bool {
	return p.IsAdmin(c)
}

func (p *Policy) CanReadAttempt(c Caller, a *model.Attempt) bool {
	if a.UserID == c.UserID {
		return p.Has(c, "attempt:view_own")
	}
	return p.Has(c, "attempt:view_all")
}

// CanWriteAttempt 作答与交卷只允许尝试的拥有者
func (p *Policy) CanWriteAttempt(c Caller, a *model.Attempt) bool {
	return a.UserID == c.UserID && p.Has(c, "attempt:save")
}

func (p *Policy) CanReadExam(c Caller, e *model.Exam) bool {
	if e.CreatorID == nil {
		return p.Has(c, "exam:view")
	}
	return *e.CreatorID == c.UserID || p.IsAdmin(c)
}

// CanManageExam 重新抽题与删除：管理员或自建试卷的拥有者
func (p *Policy) CanManageExam(c Caller, e *model.Exam) bool {
	if p.Has(c, "exam:manage") {
		return true
	}
	return e.CreatorID != nil && *e.CreatorID == c.UserID && p.Has(c, "exam:create_own")
}

// CanUpdateExam 修改启用状态与时间窗口仅限管理员
func (p *Policy) CanUpdateExam(c Caller, e *model.Exam) bool {
	return p.Has(c, "exam:update")
}

func (p *Policy) CanCreateExam(c Caller) bool {
	return p.Has(c, "exam:create_own")
}

func (p *Policy) CanImportQuestions(c Caller) bool {
	return p.Has(c, "question:import")
}

func (p *Policy) CanReportProgress(c Caller) bool {
	return p.Has(c, "progress:report")
}
