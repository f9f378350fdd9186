package controller

import (
	"strconv"

	"assess_edu_backend/internal/service"
	"assess_edu_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type AttemptController struct {
	AttemptService *service.AttemptService
}

func NewAttemptController(attemptService *service.AttemptService) *AttemptController {
	return &AttemptController{AttemptService: attemptService}
}

// Start godoc
// @Summary 开始或继续作答
// @Description 已有进行中的作答时原样返回（计时不重置），否则组卷并开卷
// @Tags 作答
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "测评ID"
// @Success 200 {object} util.Response{data=service.AttemptState} "继续作答"
// @Success 201 {object} util.Response{data=service.AttemptState} "开卷成功"
// @Failure 403 {object} util.Response "未发布/窗口外/不在名单"
// @Failure 409 {object} util.Response "已完成"
// @Failure 502 {object} util.Response "题源不可用"
// @Router /api/assessments/{id}/attempts [post]
func (c *AttemptController) Start(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	assessmentID := util.MustParseUint(ctx.Param("id"))

	state, err := c.AttemptService.StartOrResume(ctx.Request.Context(), claims.UserID, assessmentID)
	if err != nil {
		util.DomainError(ctx, err)
		return
	}

	if state.Resumed {
		util.Success(ctx, state)
		return
	}
	util.Created(ctx, state)
}

// SaveAnswerRequest 自动保存请求
// swagger:model SaveAnswerRequest
type SaveAnswerRequest struct {
	QuestionID       uint   `json:"questionId" binding:"required"`
	Value            string `json:"value"`
	ClientSeq        int64  `json:"clientSeq" binding:"required,min=1"`
	TimeSpentSeconds int    `json:"timeSpentSeconds"`
}

// SaveAnswer godoc
// @Summary 保存单题作答
// @Description 同题以 clientSeq 较大者为准，截止后的保存会被拒绝
// @Tags 作答
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "作答ID"
// @Param   body body SaveAnswerRequest true "作答内容"
// @Success 200 {object} util.Response{data=service.SaveAnswerResult}
// @Failure 404 {object} util.Response "作答不存在"
// @Failure 409 {object} util.Response "已交卷或已超时"
// @Failure 422 {object} util.Response "题目不属于本次作答"
// @Router /api/attempts/{id}/answers [post]
func (c *AttemptController) SaveAnswer(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	attemptID := util.MustParseUint(ctx.Param("id"))

	var req SaveAnswerRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.AttemptService.SaveAnswer(ctx.Request.Context(),
		claims.UserID, attemptID, req.QuestionID, req.Value, req.ClientSeq, req.TimeSpentSeconds)
	if err != nil {
		util.DomainError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// Submit godoc
// @Summary 交卷
// @Description 幂等：重复交卷返回首次定稿的结果
// @Tags 作答
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "作答ID"
// @Success 200 {object} util.Response{data=service.AttemptResult}
// @Failure 404 {object} util.Response "作答不存在"
// @Router /api/attempts/{id}/submit [post]
func (c *AttemptController) Submit(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	attemptID := util.MustParseUint(ctx.Param("id"))

	result, err := c.AttemptService.Submit(ctx.Request.Context(), claims.UserID, attemptID)
	if err != nil {
		util.DomainError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// Progress godoc
// @Summary 作答进度
// @Description 服务端推导剩余时长，顺带做惰性超时检查
// @Tags 作答
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "作答ID"
// @Success 200 {object} util.Response{data=service.AttemptState}
// @Failure 404 {object} util.Response "作答不存在"
// @Router /api/attempts/{id}/progress [get]
func (c *AttemptController) Progress(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	attemptID := util.MustParseUint(ctx.Param("id"))

	state, err := c.AttemptService.Progress(ctx.Request.Context(), claims.UserID, attemptID)
	if err != nil {
		util.DomainError(ctx, err)
		return
	}
	util.Success(ctx, state)
}

// Review godoc
// @Summary 作答复盘
// @Description 交卷后才可访问，明细含提交值与标准答案
// @Tags 作答
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "作答ID"
// @Success 200 {object} util.Response{data=service.AttemptResult}
// @Failure 403 {object} util.Response "尚未交卷"
// @Failure 404 {object} util.Response "作答不存在"
// @Router /api/attempts/{id}/review [get]
func (c *AttemptController) Review(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	attemptID := util.MustParseUint(ctx.Param("id"))

	result, err := c.AttemptService.Review(ctx.Request.Context(), claims.UserID, attemptID)
	if err != nil {
		util.DomainError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// StartPreview godoc
// @Summary 教师预览组卷
// @Description 跳过发布/窗口/名单校验，预览卷可删除且不计入成绩
// @Tags 测评管理
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "测评ID"
// @Success 201 {object} util.Response{data=service.AttemptState}
// @Failure 403 {object} util.Response "非本人创建的测评"
// @Router /api/assessments/{id}/preview [post]
func (c *AttemptController) StartPreview(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	assessmentID := util.MustParseUint(ctx.Param("id"))

	state, err := c.AttemptService.StartPreview(ctx.Request.Context(), claims.UserID, assessmentID)
	if err != nil {
		util.DomainError(ctx, err)
		return
	}
	util.Created(ctx, state)
}

// DeletePreview godoc
// @Summary 删除预览卷
// @Tags 测评管理
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "作答ID"
// @Success 200 {object} util.Response
// @Failure 404 {object} util.Response "预览卷不存在"
// @Router /api/attempts/{id}/preview [delete]
func (c *AttemptController) DeletePreview(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	attemptID := util.MustParseUint(ctx.Param("id"))

	if err := c.AttemptService.DeletePreview(claims.UserID, attemptID); err != nil {
		util.DomainError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// ListResults godoc
// @Summary 测评成绩列表
// @Description 创建者查看某测评的全部作答（预览卷除外）
// @Tags 测评管理
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "测评ID"
// @Param   page query int false "页码"
// @Param   limit query int false "每页条数"
// @Success 200 {object} util.Response{data=util.PageResponse}
// @Failure 403 {object} util.Response "非本人创建的测评"
// @Router /api/assessments/{id}/results [get]
func (c *AttemptController) ListResults(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	assessmentID := util.MustParseUint(ctx.Param("id"))

	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	attempts, total, err := c.AttemptService.ListResults(claims.UserID, assessmentID, page, limit)
	if err != nil {
		util.DomainError(ctx, err)
		return
	}
	util.Success(ctx, util.PageResponse{List: attempts, Total: total, Page: page, Limit: limit})
}
