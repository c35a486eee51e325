package service

import (
	"errors"
	"time"

	"github.com/AiMarketingPartners/Aiq-Learning-Backend/internal/model"
	"github.com/AiMarketingPartners/Aiq-Learning-Backend/internal/repository"
	"github.com/AiMarketingPartners/Aiq-Learning-Backend/internal/util"

	"gorm.io/gorm"
)

type EnrollmentService struct {
	EnrollmentRepo *repository.EnrollmentRepository
	CourseRepo     *repository.CourseRepository
}

func NewEnrollmentService(
	enrollmentRepo *repository.EnrollmentRepository,
	courseRepo *repository.CourseRepository,
) *EnrollmentService {
	return &EnrollmentService{
		EnrollmentRepo: enrollmentRepo,
		CourseRepo:     courseRepo,
	}
}

// Enroll 选课。重复选课幂等返回既有记录；退课后再选课复用原记录，
// 进度与首次选课时间保留。
func (s *EnrollmentService) Enroll(userID, courseID uint) (*model.Enrollment, error) {
	course, err := s.CourseRepo.FindByID(courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrCourseNotFound
		}
		return nil, err
	}
	if !course.Published {
		return nil, util.ErrCourseNotFound
	}

	existing, err := s.EnrollmentRepo.FindByUserAndCourse(userID, courseID)
	if err == nil {
		if existing.IsActive {
			return existing, nil
		}
		existing.IsActive = true
		if err := s.EnrollmentRepo.Update(existing); err != nil {
			return nil, err
		}
		return existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	enrollment := &model.Enrollment{
		UserID:     userID,
		CourseID:   courseID,
		IsActive:   true,
		EnrolledAt: time.Now(),
	}
	if err := s.EnrollmentRepo.Create(enrollment); err != nil {
		return nil, err
	}
	return enrollment, nil
}

// Unenroll 软退课，进度数据保留
func (s *EnrollmentService) Unenroll(userID, courseID uint) error {
	enrollment, err := s.EnrollmentRepo.FindActive(userID, courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return util.ErrNotEnrolled
		}
		return err
	}

	enrollment.IsActive = false
	return s.EnrollmentRepo.Update(enrollment)
}

func (s *EnrollmentService) ListMyCourses(userID uint) ([]model.Enrollment, error) {
	return s.EnrollmentRepo.ListByUser(userID)
}
