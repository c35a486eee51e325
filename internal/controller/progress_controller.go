package controller

import (
	"errors"

	"github.com/AiMarketingPartners/Aiq-Learning-Backend/internal/service"
	"github.com/AiMarketingPartners/Aiq-Learning-Backend/internal/util"

	"github.com/gin-gonic/gin"
)

type ProgressController struct {
	ProgressService *service.ProgressService
}

func NewProgressController(progressService *service.ProgressService) *ProgressController {
	return &ProgressController{ProgressService: progressService}
}

// LessonRequest 课时定位请求，位置从 1 开始
type LessonRequest struct {
	SectionIndex int `json:"sectionIndex" binding:"required,min=1"`
	LectureIndex int `json:"lectureIndex" binding:"required,min=1"`
	TimeSpent    int `json:"timeSpent"`
}

func progressError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, util.ErrCourseNotFound),
		errors.Is(err, util.ErrNotEnrolled):
		util.Error(ctx, 404, err.Error())
	case errors.Is(err, util.ErrInvalidLessonIndex):
		util.BadRequest(ctx, err.Error())
	case errors.Is(err, util.ErrProgressConflict):
		util.ServiceUnavailable(ctx, err.Error())
	default:
		util.LogInternalError(ctx, err)
	}
}

// CompleteLesson godoc
// @Summary 标记课时完成
// @Description 重复标记幂等，只累计学习时长
// @Tags 学习进度
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   courseId path int true "课程ID"
// @Param   body body LessonRequest true "课时位置"
// @Success 200 {object} util.Response{data=service.ProgressSummary}
// @Failure 400 {object} util.Response "课时位置无效"
// @Failure 404 {object} util.Response "课程不存在或未选课"
// @Failure 503 {object} util.Response "并发冲突，请重试"
// @Router /api/courses/{courseId}/progress/complete [post]
func (c *ProgressController) CompleteLesson(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	courseID := util.MustParseUint(ctx.Param("courseId"))

	var req LessonRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	summary, err := c.ProgressService.CompleteLesson(claims.UserID, courseID, req.SectionIndex, req.LectureIndex, req.TimeSpent)
	if err != nil {
		progressError(ctx, err)
		return
	}
	util.Success(ctx, summary)
}

// UncompleteLesson godoc
// @Summary 取消课时完成
// @Description 未完成的课时取消是无操作
// @Tags 学习进度
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   courseId path int true "课程ID"
// @Param   body body LessonRequest true "课时位置"
// @Success 200 {object} util.Response{data=service.ProgressSummary}
// @Failure 400 {object} util.Response "课时位置无效"
// @Failure 404 {object} util.Response "课程不存在或未选课"
// @Failure 503 {object} util.Response "并发冲突，请重试"
// @Router /api/courses/{courseId}/progress/uncomplete [post]
func (c *ProgressController) UncompleteLesson(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	courseID := util.MustParseUint(ctx.Param("courseId"))

	var req LessonRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	summary, err := c.ProgressService.UncompleteLesson(claims.UserID, courseID, req.SectionIndex, req.LectureIndex, req.TimeSpent)
	if err != nil {
		progressError(ctx, err)
		return
	}
	util.Success(ctx, summary)
}

// GetProgress godoc
// @Summary 课程进度
// @Description 返回总进度与按章节的分解
// @Tags 学习进度
// @Produce  json
// @Security BearerAuth
// @Param   courseId path int true "课程ID"
// @Success 200 {object} util.Response{data=service.ProgressSummary}
// @Failure 404 {object} util.Response "课程不存在或未选课"
// @Router /api/courses/{courseId}/progress [get]
func (c *ProgressController) GetProgress(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	courseID := util.MustParseUint(ctx.Param("courseId"))

	summary, err := c.ProgressService.GetProgress(claims.UserID, courseID)
	if err != nil {
		progressError(ctx, err)
		return
	}
	util.Success(ctx, summary)
}
