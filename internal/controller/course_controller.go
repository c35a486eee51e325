package controller

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/AiMarketingPartners/Aiq-Learning-Backend/internal/service"
	"github.com/AiMarketingPartners/Aiq-Learning-Backend/internal/util"

	"github.com/gin-gonic/gin"
)

type CourseController struct {
	CourseService *service.CourseService
}

func NewCourseController(courseService *service.CourseService) *CourseController {
	return &CourseController{CourseService: courseService}
}

// courseError 统一课程侧错误到 HTTP 状态码
func courseError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, util.ErrCourseNotFound),
		errors.Is(err, util.ErrSectionNotFound),
		errors.Is(err, util.ErrLectureNotFound):
		util.Error(ctx, 404, err.Error())
	case errors.Is(err, util.ErrPermissionDenied):
		util.Forbidden(ctx)
	case errors.Is(err, util.ErrInvalidQuestion),
		errors.Is(err, util.ErrInvalidPosition):
		util.BadRequest(ctx, err.Error())
	default:
		util.LogInternalError(ctx, err)
	}
}

// ListCourses godoc
// @Summary 课程目录
// @Description 分页列出已发布的课程
// @Tags 课程
// @Produce  json
// @Param   page query int false "页码" default(1)
// @Param   limit query int false "每页数量" default(10)
// @Success 200 {object} util.Response{data=util.PageResponse}
// @Router /api/courses [get]
func (c *CourseController) ListCourses(ctx *gin.Context) {
	page := util.ParseIntDefault(ctx.Query("page"), 1)
	limit := util.ParseIntDefault(ctx.Query("limit"), 10)

	courses, total, err := c.CourseService.ListCourses(page, limit)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, util.PageResponse{
		List:  courses,
		Total: total,
		Page:  page,
		Limit: limit,
	})
}

// GetCourse godoc
// @Summary 课程详情（学习者视图）
// @Description 返回课程结构，测验答案不下发
// @Tags 课程
// @Produce  json
// @Param   courseId path int true "课程ID"
// @Success 200 {object} util.Response{data=model.Course}
// @Failure 404 {object} util.Response "课程不存在"
// @Router /api/courses/{courseId} [get]
func (c *CourseController) GetCourse(ctx *gin.Context) {
	courseID := util.MustParseUint(ctx.Param("courseId"))

	course, err := c.CourseService.GetCourseForLearner(courseID)
	if err != nil {
		courseError(ctx, err)
		return
	}
	util.Success(ctx, course)
}

// CreateCourse godoc
// @Summary 创建课程
// @Tags 课程管理
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   body body service.CourseRequest true "课程信息"
// @Success 201 {object} util.Response{data=model.Course}
// @Failure 400 {object} util.Response "请求参数错误"
// @Router /api/instructor/courses [post]
func (c *CourseController) CreateCourse(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)

	var req service.CourseRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	course, err := c.CourseService.CreateCourse(claims.UserID, req)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Created(ctx, course)
}

// GetCourseAsOwner godoc
// @Summary 课程详情（讲师视图）
// @Tags 课程管理
// @Produce  json
// @Security BearerAuth
// @Param   courseId path int true "课程ID"
// @Success 200 {object} util.Response{data=model.Course}
// @Failure 403 {object} util.Response "无权限"
// @Failure 404 {object} util.Response "课程不存在"
// @Router /api/instructor/courses/{courseId} [get]
func (c *CourseController) GetCourseAsOwner(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	courseID := util.MustParseUint(ctx.Param("courseId"))

	course, err := c.CourseService.GetCourse(claims, courseID)
	if err != nil {
		courseError(ctx, err)
		return
	}
	util.Success(ctx, course)
}

// ListMyCourses godoc
// @Summary 我创建的课程
// @Tags 课程管理
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=[]model.Course}
// @Router /api/instructor/courses [get]
func (c *CourseController) ListMyCourses(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)

	courses, err := c.CourseService.ListInstructorCourses(claims.UserID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, courses)
}

// UpdateCourse godoc
// @Summary 更新课程
// @Tags 课程管理
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   courseId path int true "课程ID"
// @Param   body body service.CourseRequest true "课程信息"
// @Success 200 {object} util.Response{data=model.Course}
// @Router /api/instructor/courses/{courseId} [put]
func (c *CourseController) UpdateCourse(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	courseID := util.MustParseUint(ctx.Param("courseId"))

	var req service.CourseRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	course, err := c.CourseService.UpdateCourse(claims, courseID, req)
	if err != nil {
		courseError(ctx, err)
		return
	}
	util.Success(ctx, course)
}

type publishRequest struct {
	Published bool `json:"published"`
}

// PublishCourse godoc
// @Summary 发布/下架课程
// @Tags 课程管理
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   courseId path int true "课程ID"
// @Param   body body publishRequest true "发布状态"
// @Success 200 {object} util.Response{data=model.Course}
// @Router /api/instructor/courses/{courseId}/publish [put]
func (c *CourseController) PublishCourse(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	courseID := util.MustParseUint(ctx.Param("courseId"))

	var req publishRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	course, err := c.CourseService.PublishCourse(claims, courseID, req.Published)
	if err != nil {
		courseError(ctx, err)
		return
	}
	util.Success(ctx, course)
}

// DeleteCourse godoc
// @Summary 删除课程
// @Tags 课程管理
// @Produce  json
// @Security BearerAuth
// @Param   courseId path int true "课程ID"
// @Success 200 {object} util.Response
// @Router /api/instructor/courses/{courseId} [delete]
func (c *CourseController) DeleteCourse(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	courseID := util.MustParseUint(ctx.Param("courseId"))

	if err := c.CourseService.DeleteCourse(claims, courseID); err != nil {
		courseError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// AddSection godoc
// @Summary 新增章节
// @Description 章节追加到课程末尾，位置自动分配
// @Tags 课程管理
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   courseId path int true "课程ID"
// @Param   body body service.SectionRequest true "章节信息"
// @Success 201 {object} util.Response{data=model.Section}
// @Router /api/instructor/courses/{courseId}/sections [post]
func (c *CourseController) AddSection(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	courseID := util.MustParseUint(ctx.Param("courseId"))

	var req service.SectionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	section, err := c.CourseService.AddSection(claims, courseID, req)
	if err != nil {
		courseError(ctx, err)
		return
	}
	util.Created(ctx, section)
}

// UpdateSection godoc
// @Summary 更新章节
// @Tags 课程管理
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   courseId path int true "课程ID"
// @Param   sectionId path int true "章节ID"
// @Param   body body service.SectionRequest true "章节信息"
// @Success 200 {object} util.Response{data=model.Section}
// @Router /api/instructor/courses/{courseId}/sections/{sectionId} [put]
func (c *CourseController) UpdateSection(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	courseID := util.MustParseUint(ctx.Param("courseId"))
	sectionID := util.MustParseUint(ctx.Param("sectionId"))

	var req service.SectionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	section, err := c.CourseService.UpdateSection(claims, courseID, sectionID, req)
	if err != nil {
		courseError(ctx, err)
		return
	}
	util.Success(ctx, section)
}

// DeleteSection godoc
// @Summary 删除章节
// @Description 删除后其余章节位置自动压缩，保持连续
// @Tags 课程管理
// @Produce  json
// @Security BearerAuth
// @Param   courseId path int true "课程ID"
// @Param   sectionId path int true "章节ID"
// @Success 200 {object} util.Response
// @Router /api/instructor/courses/{courseId}/sections/{sectionId} [delete]
func (c *CourseController) DeleteSection(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	courseID := util.MustParseUint(ctx.Param("courseId"))
	sectionID := util.MustParseUint(ctx.Param("sectionId"))

	if err := c.CourseService.DeleteSection(claims, courseID, sectionID); err != nil {
		courseError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

type moveRequest struct {
	Position int `json:"position" binding:"required,min=1"`
}

// MoveSection godoc
// @Summary 调整章节顺序
// @Description 目标位置必须在现有章节数范围内，其余章节自动平移
// @Tags 课程管理
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   courseId path int true "课程ID"
// @Param   sectionId path int true "章节ID"
// @Param   body body moveRequest true "目标位置"
// @Success 200 {object} util.Response{data=model.Section}
// @Failure 400 {object} util.Response "位置越界"
// @Router /api/instructor/courses/{courseId}/sections/{sectionId}/position [put]
func (c *CourseController) MoveSection(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	courseID := util.MustParseUint(ctx.Param("courseId"))
	sectionID := util.MustParseUint(ctx.Param("sectionId"))

	var req moveRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	section, err := c.CourseService.MoveSection(claims, courseID, sectionID, req.Position)
	if err != nil {
		courseError(ctx, err)
		return
	}
	util.Success(ctx, section)
}

// AddLecture godoc
// @Summary 新增课时
// @Tags 课程管理
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   courseId path int true "课程ID"
// @Param   sectionId path int true "章节ID"
// @Param   body body service.LectureRequest true "课时信息"
// @Success 201 {object} util.Response{data=model.Lecture}
// @Failure 400 {object} util.Response "题目定义无效"
// @Router /api/instructor/courses/{courseId}/sections/{sectionId}/lectures [post]
func (c *CourseController) AddLecture(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	courseID := util.MustParseUint(ctx.Param("courseId"))
	sectionID := util.MustParseUint(ctx.Param("sectionId"))

	var req service.LectureRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	lecture, err := c.CourseService.AddLecture(claims, courseID, sectionID, req)
	if err != nil {
		courseError(ctx, err)
		return
	}
	util.Created(ctx, lecture)
}

// UpdateLecture godoc
// @Summary 更新课时
// @Tags 课程管理
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   courseId path int true "课程ID"
// @Param   sectionId path int true "章节ID"
// @Param   lectureId path int true "课时ID"
// @Param   body body service.LectureRequest true "课时信息"
// @Success 200 {object} util.Response{data=model.Lecture}
// @Router /api/instructor/courses/{courseId}/sections/{sectionId}/lectures/{lectureId} [put]
func (c *CourseController) UpdateLecture(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	courseID := util.MustParseUint(ctx.Param("courseId"))
	sectionID := util.MustParseUint(ctx.Param("sectionId"))
	lectureID := util.MustParseUint(ctx.Param("lectureId"))

	var req service.LectureRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	lecture, err := c.CourseService.UpdateLecture(claims, courseID, sectionID, lectureID, req)
	if err != nil {
		courseError(ctx, err)
		return
	}
	util.Success(ctx, lecture)
}

// DeleteLecture godoc
// @Summary 删除课时
// @Tags 课程管理
// @Produce  json
// @Security BearerAuth
// @Param   courseId path int true "课程ID"
// @Param   sectionId path int true "章节ID"
// @Param   lectureId path int true "课时ID"
// @Success 200 {object} util.Response
// @Router /api/instructor/courses/{courseId}/sections/{sectionId}/lectures/{lectureId} [delete]
func (c *CourseController) DeleteLecture(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	courseID := util.MustParseUint(ctx.Param("courseId"))
	sectionID := util.MustParseUint(ctx.Param("sectionId"))
	lectureID := util.MustParseUint(ctx.Param("lectureId"))

	if err := c.CourseService.DeleteLecture(claims, courseID, sectionID, lectureID); err != nil {
		courseError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// MoveLecture godoc
// @Summary 调整课时顺序
// @Tags 课程管理
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   courseId path int true "课程ID"
// @Param   sectionId path int true "章节ID"
// @Param   lectureId path int true "课时ID"
// @Param   body body moveRequest true "目标位置"
// @Success 200 {object} util.Response{data=model.Lecture}
// @Failure 400 {object} util.Response "位置越界"
// @Router /api/instructor/courses/{courseId}/sections/{sectionId}/lectures/{lectureId}/position [put]
func (c *CourseController) MoveLecture(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	courseID := util.MustParseUint(ctx.Param("courseId"))
	sectionID := util.MustParseUint(ctx.Param("sectionId"))
	lectureID := util.MustParseUint(ctx.Param("lectureId"))

	var req moveRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	lecture, err := c.CourseService.MoveLecture(claims, courseID, sectionID, lectureID, req.Position)
	if err != nil {
		courseError(ctx, err)
		return
	}
	util.Success(ctx, lecture)
}

// UpdateCertificateConfig godoc
// @Summary 更新证书配置
// @Description 配置变更只影响之后颁发的证书，已颁发证书保留快照
// @Tags 课程管理
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   courseId path int true "课程ID"
// @Param   body body service.CertificateConfigRequest true "证书配置"
// @Success 200 {object} util.Response{data=model.Course}
// @Failure 400 {object} util.Response "阈值越界"
// @Router /api/instructor/courses/{courseId}/certificate-config [put]
func (c *CourseController) UpdateCertificateConfig(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	courseID := util.MustParseUint(ctx.Param("courseId"))

	var req service.CertificateConfigRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	course, err := c.CourseService.UpdateCertificateConfig(claims, courseID, req)
	if err != nil {
		switch {
		case errors.Is(err, util.ErrCourseNotFound), errors.Is(err, util.ErrPermissionDenied):
			courseError(ctx, err)
		default:
			util.BadRequest(ctx, err.Error())
		}
		return
	}
	util.Success(ctx, course)
}

// UploadLectureVideo godoc
// @Summary 上传课时视频
// @Description 接收视频文件，探测时长后写入课时并推送到存储后端
// @Tags 课程管理
// @Accept  multipart/form-data
// @Produce  json
// @Security BearerAuth
// @Param   courseId path int true "课程ID"
// @Param   sectionId path int true "章节ID"
// @Param   lectureId path int true "课时ID"
// @Param   file formData file true "视频文件"
// @Success 200 {object} util.Response{data=model.Lecture}
// @Failure 400 {object} util.Response "文件类型不支持"
// @Router /api/instructor/courses/{courseId}/sections/{sectionId}/lectures/{lectureId}/video [post]
func (c *CourseController) UploadLectureVideo(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	courseID := util.MustParseUint(ctx.Param("courseId"))
	sectionID := util.MustParseUint(ctx.Param("sectionId"))
	lectureID := util.MustParseUint(ctx.Param("lectureId"))

	file, err := ctx.FormFile("file")
	if err != nil {
		util.BadRequest(ctx, "缺少视频文件")
		return
	}

	if !util.IsAllowedVideoFile(file.Filename) {
		util.BadRequest(ctx, "不支持的视频格式")
		return
	}

	// 不信任客户端声明的 Content-Type，按文件头嗅探实际类型
	src, err := file.Open()
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	contentType, err := util.ValidateMimeType(src, []string{util.MimeVideo, util.MimeOctetStream})
	src.Close()
	if err != nil {
		util.BadRequest(ctx, "仅支持视频文件")
		return
	}

	tmpPath := filepath.Join(os.TempDir(), file.Filename)
	if err := ctx.SaveUploadedFile(file, tmpPath); err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	defer os.Remove(tmpPath)

	lecture, err := c.CourseService.UploadLectureVideo(claims, courseID, sectionID, lectureID, tmpPath, file.Filename, contentType)
	if err != nil {
		courseError(ctx, err)
		return
	}
	util.Success(ctx, lecture)
}
