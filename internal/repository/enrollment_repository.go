package repository

import (
	"time"

	"github.com/AiMarketingPartners/Aiq-Learning-Backend/internal/model"
	"github.com/AiMarketingPartners/Aiq-Learning-Backend/internal/util"

	"gorm.io/gorm"
)

type EnrollmentRepository struct {
	DB *gorm.DB
}

func NewEnrollmentRepository(db *gorm.DB) *EnrollmentRepository {
	return &EnrollmentRepository{DB: db}
}

func (r *EnrollmentRepository) Create(enrollment *model.Enrollment) error {
	return r.DB.Create(enrollment).Error
}

func (r *EnrollmentRepository) Update(enrollment *model.Enrollment) error {
	return r.DB.Save(enrollment).Error
}

func (r *EnrollmentRepository) FindByUserAndCourse(userID, courseID uint) (*model.Enrollment, error) {
	var enrollment model.Enrollment
	err := r.DB.Where("user_id = ? AND course_id = ?", userID, courseID).First(&enrollment).Error
	if err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindActive 仅返回有效选课，退课后的记录视为不存在
func (r *EnrollmentRepository) FindActive(userID, courseID uint) (*model.Enrollment, error) {
	var enrollment model.Enrollment
	err := r.DB.Where("user_id = ? AND course_id = ? AND is_active = ?", userID, courseID, true).
		First(&enrollment).Error
	if err != nil {
		return nil, err
	}
	return &enrollment, nil
}

func (r *EnrollmentRepository) ListByUser(userID uint) ([]model.Enrollment, error) {
	var enrollments []model.Enrollment
	err := r.DB.Where("user_id = ? AND is_active = ?", userID, true).
		Preload("Course").
		Order("enrolled_at DESC").
		Find(&enrollments).Error
	return enrollments, err
}

func (r *EnrollmentRepository) ListCompletions(enrollmentID uint) ([]model.LessonCompletion, error) {
	var completions []model.LessonCompletion
	err := r.DB.Where("enrollment_id = ?", enrollmentID).
		Order("completed_at ASC").
		Find(&completions).Error
	return completions, err
}

func (r *EnrollmentRepository) FindCompletion(enrollmentID, lectureID uint) (*model.LessonCompletion, error) {
	var completion model.LessonCompletion
	err := r.DB.Where("enrollment_id = ? AND lecture_id = ?", enrollmentID, lectureID).
		First(&completion).Error
	if err != nil {
		return nil, err
	}
	return &completion, nil
}

// SaveProgress 在单个事务内原子提交一次进度变更：
// 选课行按 Version 做乐观锁更新，完成记录的新增/更新/删除随同提交。
// 版本不匹配（并发写入）时回滚并返回 ErrProgressConflict，由调用方重试。
func (r *EnrollmentRepository) SaveProgress(
	enrollment *model.Enrollment,
	upsert *model.LessonCompletion,
	removeLectureID uint,
) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		currentVersion := enrollment.Version
		result := tx.Model(&model.Enrollment{}).
			Where("id = ? AND version = ?", enrollment.ID, currentVersion).
			Updates(map[string]interface{}{
				"overall_progress": enrollment.OverallProgress,
				"total_time_spent": enrollment.TotalTimeSpent,
				"last_section_id":  enrollment.LastSectionID,
				"last_lecture_id":  enrollment.LastLectureID,
				"completed_at":     enrollment.CompletedAt,
				"updated_at":       time.Now(),
				"version":          currentVersion + 1,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return util.ErrProgressConflict
		}
		enrollment.Version = currentVersion + 1

		if upsert != nil {
			if upsert.ID == 0 {
				if err := tx.Create(upsert).Error; err != nil {
					return err
				}
			} else if err := tx.Save(upsert).Error; err != nil {
				return err
			}
		}

		if removeLectureID != 0 {
			if err := tx.Where("enrollment_id = ? AND lecture_id = ?", enrollment.ID, removeLectureID).
				Delete(&model.LessonCompletion{}).Error; err != nil {
				return err
			}
		}

		return nil
	})
}

// MarkCompleted 补偿性写入完成时间，仅在尚未设置时生效
func (r *EnrollmentRepository) MarkCompleted(enrollmentID uint, completedAt time.Time) error {
	return r.DB.Model(&model.Enrollment{}).
		Where("id = ? AND completed_at IS NULL", enrollmentID).
		Update("completed_at", completedAt).Error
}
