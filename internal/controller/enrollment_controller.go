package controller

import (
	"errors"

	"github.com/AiMarketingPartners/Aiq-Learning-Backend/internal/service"
	"github.com/AiMarketingPartners/Aiq-Learning-Backend/internal/util"

	"github.com/gin-gonic/gin"
)

type EnrollmentController struct {
	EnrollmentService *service.EnrollmentService
}

func NewEnrollmentController(enrollmentService *service.EnrollmentService) *EnrollmentController {
	return &EnrollmentController{EnrollmentService: enrollmentService}
}

// Enroll godoc
// @Summary 选课
// @Description 重复选课返回既有记录，退课后重新选课恢复原进度
// @Tags 选课
// @Produce  json
// @Security BearerAuth
// @Param   courseId path int true "课程ID"
// @Success 200 {object} util.Response{data=model.Enrollment}
// @Failure 404 {object} util.Response "课程不存在或未发布"
// @Router /api/courses/{courseId}/enroll [post]
func (c *EnrollmentController) Enroll(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	courseID := util.MustParseUint(ctx.Param("courseId"))

	enrollment, err := c.EnrollmentService.Enroll(claims.UserID, courseID)
	if err != nil {
		if errors.Is(err, util.ErrCourseNotFound) {
			util.Error(ctx, 404, err.Error())
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, enrollment)
}

// Unenroll godoc
// @Summary 退课
// @Description 软退课，进度保留
// @Tags 选课
// @Produce  json
// @Security BearerAuth
// @Param   courseId path int true "课程ID"
// @Success 200 {object} util.Response
// @Failure 404 {object} util.Response "未选该课程"
// @Router /api/courses/{courseId}/enroll [delete]
func (c *EnrollmentController) Unenroll(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	courseID := util.MustParseUint(ctx.Param("courseId"))

	if err := c.EnrollmentService.Unenroll(claims.UserID, courseID); err != nil {
		if errors.Is(err, util.ErrNotEnrolled) {
			util.Error(ctx, 404, err.Error())
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, nil)
}

// ListMyCourses godoc
// @Summary 我的课程
// @Description 列出当前用户的有效选课及进度
// @Tags 选课
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=[]model.Enrollment}
// @Router /api/my/courses [get]
func (c *EnrollmentController) ListMyCourses(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)

	enrollments, err := c.EnrollmentService.ListMyCourses(claims.UserID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, enrollments)
}
