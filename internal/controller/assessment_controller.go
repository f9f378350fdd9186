package controller

import (
	"strconv"

	"assess_edu_backend/internal/service"
	"assess_edu_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type AssessmentController struct {
	AssessmentService *service.AssessmentService
}

func NewAssessmentController(assessmentService *service.AssessmentService) *AssessmentController {
	return &AssessmentController{AssessmentService: assessmentService}
}

// Create godoc
// @Summary 创建测评
// @Description 按题块定义测评结构，创建后处于未发布状态
// @Tags 测评管理
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   body body service.AssessmentInput true "测评定义"
// @Success 201 {object} util.Response{data=model.Assessment}
// @Failure 400 {object} util.Response "定义无效"
// @Router /api/assessments [post]
func (c *AssessmentController) Create(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)

	var input service.AssessmentInput
	if err := ctx.ShouldBindJSON(&input); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	assessment, err := c.AssessmentService.Create(claims.UserID, &input)
	if err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	util.Created(ctx, assessment)
}

// Update godoc
// @Summary 修改测评
// @Description 仅限未发布的测评，题块整体替换
// @Tags 测评管理
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "测评ID"
// @Param   body body service.AssessmentInput true "测评定义"
// @Success 200 {object} util.Response{data=model.Assessment}
// @Failure 400 {object} util.Response "定义无效或已发布"
// @Failure 403 {object} util.Response "非本人创建"
// @Router /api/assessments/{id} [put]
func (c *AssessmentController) Update(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	id := util.MustParseUint(ctx.Param("id"))

	var input service.AssessmentInput
	if err := ctx.ShouldBindJSON(&input); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	assessment, err := c.AssessmentService.Update(claims.UserID, id, &input)
	if err != nil {
		switch err {
		case util.ErrPermissionDenied, util.ErrNotPublished:
			util.DomainError(ctx, err)
		default:
			util.BadRequest(ctx, err.Error())
		}
		return
	}
	util.Success(ctx, assessment)
}

// PublishRequest 发布/下线请求
// swagger:model PublishRequest
type PublishRequest struct {
	Publish bool `json:"publish"`
}

// Publish godoc
// @Summary 发布或下线测评
// @Description 发布后学生可开卷且结构锁定
// @Tags 测评管理
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "测评ID"
// @Param   body body PublishRequest true "目标状态"
// @Success 200 {object} util.Response{data=model.Assessment}
// @Failure 403 {object} util.Response "非本人创建"
// @Router /api/assessments/{id}/publish [post]
func (c *AssessmentController) Publish(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	id := util.MustParseUint(ctx.Param("id"))

	var req PublishRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	assessment, err := c.AssessmentService.Publish(claims.UserID, id, req.Publish)
	if err != nil {
		switch err {
		case util.ErrPermissionDenied, util.ErrNotPublished:
			util.DomainError(ctx, err)
		default:
			util.BadRequest(ctx, err.Error())
		}
		return
	}
	util.Success(ctx, assessment)
}

// Get godoc
// @Summary 测评详情
// @Tags 测评
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "测评ID"
// @Success 200 {object} util.Response{data=model.Assessment}
// @Failure 404 {object} util.Response "测评不存在"
// @Router /api/assessments/{id} [get]
func (c *AssessmentController) Get(ctx *gin.Context) {
	id := util.MustParseUint(ctx.Param("id"))

	assessment, err := c.AssessmentService.Get(id)
	if err != nil {
		util.DomainError(ctx, err)
		return
	}
	util.Success(ctx, assessment)
}

// List godoc
// @Summary 测评列表
// @Tags 测评
// @Produce  json
// @Security BearerAuth
// @Param   page query int false "页码"
// @Param   limit query int false "每页条数"
// @Success 200 {object} util.Response{data=util.PageResponse}
// @Router /api/assessments [get]
func (c *AssessmentController) List(ctx *gin.Context) {
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	assessments, total, err := c.AssessmentService.List(page, limit)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, util.PageResponse{List: assessments, Total: total, Page: page, Limit: limit})
}

// EnrollRequest 名单维护请求
// swagger:model EnrollRequest
type EnrollRequest struct {
	StudentID uint `json:"studentId" binding:"required"`
}

// Enroll godoc
// @Summary 添加可作答学生
// @Description 学生进入名单后方可开卷，重复添加幂等
// @Tags 测评管理
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "测评ID"
// @Param   body body EnrollRequest true "学生"
// @Success 200 {object} util.Response
// @Failure 403 {object} util.Response "非本人创建"
// @Failure 404 {object} util.Response "学生不存在"
// @Router /api/assessments/{id}/enrollments [post]
func (c *AssessmentController) Enroll(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	id := util.MustParseUint(ctx.Param("id"))

	var req EnrollRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	if err := c.AssessmentService.Enroll(claims.UserID, id, req.StudentID); err != nil {
		util.DomainError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}
