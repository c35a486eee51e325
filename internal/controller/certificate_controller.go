package controller

import (
	"errors"

	"github.com/AiMarketingPartners/Aiq-Learning-Backend/internal/service"
	"github.com/AiMarketingPartners/Aiq-Learning-Backend/internal/util"

	"github.com/gin-gonic/gin"
)

type CertificateController struct {
	CertificateService *service.CertificateService
}

func NewCertificateController(certificateService *service.CertificateService) *CertificateController {
	return &CertificateController{CertificateService: certificateService}
}

// CheckEligibility godoc
// @Summary 证书资格查询
// @Description 返回资格判定结果，不满足时带可读原因，已颁发时带回证书
// @Tags 证书
// @Produce  json
// @Security BearerAuth
// @Param   courseId path int true "课程ID"
// @Success 200 {object} util.Response{data=service.EligibilityResult}
// @Failure 404 {object} util.Response "课程不存在"
// @Router /api/courses/{courseId}/certificate/eligibility [get]
func (c *CertificateController) CheckEligibility(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	courseID := util.MustParseUint(ctx.Param("courseId"))

	result, err := c.CertificateService.CheckEligibility(claims.UserID, courseID)
	if err != nil {
		if errors.Is(err, util.ErrCourseNotFound) {
			util.Error(ctx, 404, err.Error())
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, result)
}

// Generate godoc
// @Summary 申领证书
// @Description 满足条件时颁发证书；重复申领返回既有证书；不满足时返回拒绝原因
// @Tags 证书
// @Produce  json
// @Security BearerAuth
// @Param   courseId path int true "课程ID"
// @Success 200 {object} util.Response{data=model.Certificate}
// @Failure 400 {object} util.Response "不满足颁发条件"
// @Failure 404 {object} util.Response "课程不存在"
// @Router /api/courses/{courseId}/certificate [post]
func (c *CertificateController) Generate(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	courseID := util.MustParseUint(ctx.Param("courseId"))

	cert, result, err := c.CertificateService.Generate(claims.UserID, courseID)
	if err != nil {
		if errors.Is(err, util.ErrCourseNotFound) {
			util.Error(ctx, 404, err.Error())
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}
	if cert == nil {
		util.BadRequest(ctx, result.Reason)
		return
	}
	util.Success(ctx, cert)
}

// Verify godoc
// @Summary 证书验证
// @Description 公开接口，凭证书编号验证真伪，不暴露内部标识
// @Tags 证书
// @Produce  json
// @Param   certificateId path string true "证书编号"
// @Success 200 {object} util.Response{data=service.CertificateView}
// @Failure 404 {object} util.Response "证书不存在"
// @Router /api/certificates/verify/{certificateId} [get]
func (c *CertificateController) Verify(ctx *gin.Context) {
	certificateID := ctx.Param("certificateId")

	view, err := c.CertificateService.Verify(ctx.Request.Context(), certificateID)
	if err != nil {
		if errors.Is(err, util.ErrCertificateNotFound) {
			util.Error(ctx, 404, err.Error())
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, view)
}

// ListMine godoc
// @Summary 我的证书
// @Tags 证书
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=[]model.Certificate}
// @Router /api/my/certificates [get]
func (c *CertificateController) ListMine(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)

	certs, err := c.CertificateService.ListMyCertificates(claims.UserID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, certs)
}
