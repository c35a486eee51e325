package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/AiMarketingPartners/Aiq-Learning-Backend/internal/model"
	"github.com/AiMarketingPartners/Aiq-Learning-Backend/internal/repository"
	"github.com/AiMarketingPartners/Aiq-Learning-Backend/internal/util"
	"github.com/AiMarketingPartners/Aiq-Learning-Backend/pkg/logger"
	"github.com/AiMarketingPartners/Aiq-Learning-Backend/pkg/monitoring"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// 资格拒绝原因，接口层按展示文案直接透出
const (
	ReasonNotEnabled    = "certificate not enabled"
	ReasonNotEnrolled   = "not enrolled"
	ReasonAlreadyIssued = "certificate already issued"
	ReasonNoProgress    = "no progress recorded"
)

const verifyCacheTTL = 24 * time.Hour

type CertificateService struct {
	CourseRepo      *repository.CourseRepository
	EnrollmentRepo  *repository.EnrollmentRepository
	AttemptRepo     *repository.QuizAttemptRepository
	CertificateRepo *repository.CertificateRepository
	UserRepo        *repository.UserRepository
	Redis           *redis.Client
}

func NewCertificateService(
	courseRepo *repository.CourseRepository,
	enrollmentRepo *repository.EnrollmentRepository,
	attemptRepo *repository.QuizAttemptRepository,
	certificateRepo *repository.CertificateRepository,
	userRepo *repository.UserRepository,
	rdb *redis.Client,
) *CertificateService {
	return &CertificateService{
		CourseRepo:      courseRepo,
		EnrollmentRepo:  enrollmentRepo,
		AttemptRepo:     attemptRepo,
		CertificateRepo: certificateRepo,
		UserRepo:        userRepo,
		Redis:           rdb,
	}
}

type EligibilityData struct {
	CompletionPercent int       `json:"completionPercent"`
	QuizAverage       int       `json:"quizAverage"`
	CompletedAt       time.Time `json:"completedAt"`
	TotalDuration     int       `json:"totalDuration"` // 秒
	DaysToComplete    int       `json:"daysToComplete"`
}

// EligibilityResult 资格判定结果。拒绝是预期分支而非错误，
// Reason 携带可读原因；已颁发时 Certificate 带回既有证书供展示。
type EligibilityResult struct {
	Eligible    bool               `json:"eligible"`
	Reason      string             `json:"reason,omitempty"`
	Certificate *model.Certificate `json:"certificate,omitempty"`
	Data        *EligibilityData   `json:"data,omitempty"`
}

func ineligible(reason string) *EligibilityResult {
	return &EligibilityResult{Eligible: false, Reason: reason}
}

// CheckEligibility 按固定顺序执行资格检查：
// 未开启证书 → 未选课 → 已颁发（短路，带回证书）→ 无进度 → 完成度不足 → 测验均分不足。
func (s *CertificateService) CheckEligibility(userID, courseID uint) (*EligibilityResult, error) {
	course, err := s.CourseRepo.FindByID(courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrCourseNotFound
		}
		return nil, err
	}

	if !course.Certificate.Enabled {
		return ineligible(ReasonNotEnabled), nil
	}

	enrollment, err := s.EnrollmentRepo.FindActive(userID, courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ineligible(ReasonNotEnrolled), nil
		}
		return nil, err
	}

	// 已颁发检查优先于阈值检查：即使进度之后回退也返回既有证书
	if existing, err := s.CertificateRepo.FindByUserAndCourse(userID, courseID); err == nil {
		result := ineligible(ReasonAlreadyIssued)
		result.Certificate = existing
		return result, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	completions, err := s.EnrollmentRepo.ListCompletions(enrollment.ID)
	if err != nil {
		return nil, err
	}
	if len(completions) == 0 {
		return ineligible(ReasonNoProgress), nil
	}

	completion := enrollment.OverallProgress
	required := course.Certificate.CompletionRequirement
	if completion < required {
		return ineligible(fmt.Sprintf("completion below threshold: need %d%%, have %d%%", required, completion)), nil
	}

	quizAverage, err := s.quizAverage(userID, courseID)
	if err != nil {
		return nil, err
	}
	if course.HasGradedQuiz() && quizAverage < course.Certificate.PassingScore {
		return ineligible(fmt.Sprintf("quiz average below threshold: need %d%%, have %d%%",
			course.Certificate.PassingScore, quizAverage)), nil
	}

	completedAt := time.Now()
	if enrollment.CompletedAt != nil {
		completedAt = *enrollment.CompletedAt
	}

	return &EligibilityResult{
		Eligible: true,
		Data: &EligibilityData{
			CompletionPercent: completion,
			QuizAverage:       quizAverage,
			CompletedAt:       completedAt,
			TotalDuration:     course.TotalDuration(),
			DaysToComplete:    daysBetween(enrollment.EnrolledAt, completedAt),
		},
	}, nil
}

// quizAverage 该课程下全部测验提交的平均分；没有任何提交时按 100 计（空缺即满足）
func (s *CertificateService) quizAverage(userID, courseID uint) (int, error) {
	attempts, err := s.AttemptRepo.ListByUserAndCourse(userID, courseID)
	if err != nil {
		return 0, err
	}
	if len(attempts) == 0 {
		return 100, nil
	}

	sum := 0
	for i := range attempts {
		sum += attempts[i].Score
	}
	return int(math.Round(float64(sum) / float64(len(attempts)))), nil
}

func daysBetween(from, to time.Time) int {
	if !to.After(from) {
		return 0
	}
	return int(math.Ceil(to.Sub(from).Hours() / 24))
}

// gradeFor 按综合分映射等级：(完成度 + 测验均分) / 2
func gradeFor(overall float64) model.CertificateGrade {
	switch {
	case overall >= 95:
		return model.GradeAPlus
	case overall >= 90:
		return model.GradeA
	case overall >= 85:
		return model.GradeBPlus
	case overall >= 80:
		return model.GradeB
	case overall >= 75:
		return model.GradeCPlus
	case overall >= 70:
		return model.GradeC
	default:
		return model.GradePass
	}
}

// newCertificateID 生成对外核验编号：毫秒时间戳 + 高熵随机后缀
func newCertificateID() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))[:10]
	return fmt.Sprintf("CERT-%d-%s", time.Now().UnixMilli(), suffix)
}

// Generate 重跑资格检查后颁发证书。对同一 (user, course) 幂等：
// 已颁发（包括并发竞争中落败的一方）统一返回既有证书而不报错。
func (s *CertificateService) Generate(userID, courseID uint) (*model.Certificate, *EligibilityResult, error) {
	result, err := s.CheckEligibility(userID, courseID)
	if err != nil {
		return nil, nil, err
	}
	if !result.Eligible {
		if result.Certificate != nil {
			return result.Certificate, result, nil
		}
		return nil, result, nil
	}

	course, err := s.CourseRepo.FindByID(courseID)
	if err != nil {
		return nil, nil, err
	}
	user, err := s.UserRepo.FindByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, util.ErrUserNotFound
		}
		return nil, nil, err
	}

	data := result.Data
	overall := (float64(data.CompletionPercent) + float64(data.QuizAverage)) / 2

	certificate := &model.Certificate{
		UserID:            userID,
		CourseID:          courseID,
		CertificateID:     newCertificateID(),
		Grade:             gradeFor(overall),
		CompletedAt:       data.CompletedAt,
		CompletionPercent: data.CompletionPercent,
		QuizAverage:       data.QuizAverage,
		TotalDuration:     data.TotalDuration,
		DaysToComplete:    data.DaysToComplete,
		HolderName:        user.Name,
		CourseTitle:       course.Title,
		OrganizationName:  course.Certificate.OrganizationName,
		SignedBy:          course.Certificate.SignedBy,
		SignerTitle:       course.Certificate.SignerTitle,
		Template:          course.Certificate.Template,
	}

	if err := s.CertificateRepo.Create(certificate); err != nil {
		// 并发颁发由存储层唯一索引兜底，落败方取回已存在的证书
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			existing, findErr := s.CertificateRepo.FindByUserAndCourse(userID, courseID)
			if findErr != nil {
				return nil, nil, findErr
			}
			return existing, result, nil
		}
		return nil, nil, err
	}

	monitoring.CertificatesIssued.Inc()

	// 补偿：完成时间应已由进度聚合写入，颁发不依赖该顺序
	if enrollment, err := s.EnrollmentRepo.FindActive(userID, courseID); err == nil && enrollment.CompletedAt == nil {
		if err := s.EnrollmentRepo.MarkCompleted(enrollment.ID, certificate.CompletedAt); err != nil {
			logger.Log.Warn("failed to backfill enrollment completion",
				zap.Uint("enrollmentId", enrollment.ID), zap.Error(err))
		}
	}

	logger.Log.Info("certificate issued",
		zap.Uint("userId", userID),
		zap.Uint("courseId", courseID),
		zap.String("certificateId", certificate.CertificateID),
		zap.String("grade", string(certificate.Grade)))

	return certificate, result, nil
}

// CertificateView 公开核验的脱敏投影，不含任何内部主键
type CertificateView struct {
	CertificateID     string                 `json:"certificateId"`
	HolderName        string                 `json:"holderName"`
	CourseTitle       string                 `json:"courseTitle"`
	Grade             model.CertificateGrade `json:"grade"`
	CompletionPercent int                    `json:"completionPercent"`
	QuizAverage       int                    `json:"quizAverage"`
	CompletedAt       time.Time              `json:"completedAt"`
	IssuedAt          time.Time              `json:"issuedAt"`
	OrganizationName  string                 `json:"organizationName"`
	SignedBy          string                 `json:"signedBy"`
	SignerTitle       string                 `json:"signerTitle"`
	Template          string                 `json:"template"`
}

// Verify 匿名核验，结果经 Redis 缓存（证书不可变，缓存无一致性问题）
func (s *CertificateService) Verify(ctx context.Context, certificateID string) (*CertificateView, error) {
	cacheKey := "certificate:verify:" + certificateID

	if s.Redis != nil {
		if cached, err := s.Redis.Get(ctx, cacheKey).Result(); err == nil {
			var view CertificateView
			if err := json.Unmarshal([]byte(cached), &view); err == nil {
				return &view, nil
			}
		}
	}

	certificate, err := s.CertificateRepo.FindByCertificateID(certificateID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrCertificateNotFound
		}
		return nil, err
	}

	view := &CertificateView{
		CertificateID:     certificate.CertificateID,
		HolderName:        certificate.HolderName,
		CourseTitle:       certificate.CourseTitle,
		Grade:             certificate.Grade,
		CompletionPercent: certificate.CompletionPercent,
		QuizAverage:       certificate.QuizAverage,
		CompletedAt:       certificate.CompletedAt,
		IssuedAt:          certificate.CreatedAt,
		OrganizationName:  certificate.OrganizationName,
		SignedBy:          certificate.SignedBy,
		SignerTitle:       certificate.SignerTitle,
		Template:          certificate.Template,
	}

	if s.Redis != nil {
		if payload, err := json.Marshal(view); err == nil {
			if err := s.Redis.Set(ctx, cacheKey, payload, verifyCacheTTL).Err(); err != nil {
				logger.Log.Warn("failed to cache certificate view", zap.Error(err))
			}
		}
	}

	return view, nil
}

// ListMyCertificates 当前用户的全部证书
func (s *CertificateService) ListMyCertificates(userID uint) ([]model.Certificate, error) {
	return s.CertificateRepo.ListByUser(userID)
}
