package controller

import (
	"errors"

	"github.com/AiMarketingPartners/Aiq-Learning-Backend/internal/service"
	"github.com/AiMarketingPartners/Aiq-Learning-Backend/internal/util"

	"github.com/gin-gonic/gin"
)

type QuizController struct {
	QuizService *service.QuizService
}

func NewQuizController(quizService *service.QuizService) *QuizController {
	return &QuizController{QuizService: quizService}
}

// SubmitQuiz godoc
// @Summary 提交测验
// @Description 判分并记录一次不可变的答题尝试，通过或不计分时自动标记课时完成
// @Tags 测验
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   courseId path int true "课程ID"
// @Param   body body service.QuizSubmissionRequest true "答题内容"
// @Success 200 {object} util.Response{data=service.QuizSubmissionResponse}
// @Failure 400 {object} util.Response "答案数量不匹配或位置无效"
// @Failure 404 {object} util.Response "课程/课时不存在或未选课"
// @Router /api/courses/{courseId}/quiz/submit [post]
func (c *QuizController) SubmitQuiz(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	courseID := util.MustParseUint(ctx.Param("courseId"))

	var req service.QuizSubmissionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	resp, err := c.QuizService.SubmitQuiz(claims.UserID, courseID, req)
	if err != nil {
		switch {
		case errors.Is(err, util.ErrCourseNotFound),
			errors.Is(err, util.ErrLectureNotFound),
			errors.Is(err, util.ErrNotEnrolled):
			util.Error(ctx, 404, err.Error())
		case errors.Is(err, util.ErrInvalidLessonIndex),
			errors.Is(err, util.ErrNotQuizLecture),
			errors.Is(err, util.ErrAnswerCountMismatch):
			util.BadRequest(ctx, err.Error())
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, resp)
}

// ListAttempts godoc
// @Summary 答题历史
// @Description 按时间顺序返回当前用户在课程内的答题尝试，可按课时过滤
// @Tags 测验
// @Produce  json
// @Security BearerAuth
// @Param   courseId path int true "课程ID"
// @Param   lectureId query int false "课时ID"
// @Success 200 {object} util.Response{data=[]model.QuizAttempt}
// @Router /api/courses/{courseId}/quiz/attempts [get]
func (c *QuizController) ListAttempts(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	courseID := util.MustParseUint(ctx.Param("courseId"))
	lectureID := util.MustParseUint(ctx.Query("lectureId"))

	attempts, err := c.QuizService.ListAttempts(claims.UserID, courseID, lectureID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, attempts)
}
