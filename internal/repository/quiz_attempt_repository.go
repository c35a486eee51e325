package repository

import (
	"github.com/AiMarketingPartners/Aiq-Learning-Backend/internal/model"

	"gorm.io/gorm"
)

type QuizAttemptRepository struct {
	DB *gorm.DB
}

func NewQuizAttemptRepository(db *gorm.DB) *QuizAttemptRepository {
	return &QuizAttemptRepository{DB: db}
}

func (r *QuizAttemptRepository) Create(attempt *model.QuizAttempt) error {
	return r.DB.Create(attempt).Error
}

func (r *QuizAttemptRepository) FindByID(id uint) (*model.QuizAttempt, error) {
	var attempt model.QuizAttempt
	if err := r.DB.First(&attempt, id).Error; err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (r *QuizAttemptRepository) ListByUserAndCourse(userID, courseID uint) ([]model.QuizAttempt, error) {
	var attempts []model.QuizAttempt
	err := r.DB.Where("user_id = ? AND course_id = ?", userID, courseID).
		Order("created_at ASC").
		Find(&attempts).Error
	return attempts, err
}

func (r *QuizAttemptRepository) ListByUserAndLecture(userID, courseID, lectureID uint) ([]model.QuizAttempt, error) {
	var attempts []model.QuizAttempt
	err := r.DB.Where("user_id = ? AND course_id = ? AND lecture_id = ?", userID, courseID, lectureID).
		Order("created_at ASC").
		Find(&attempts).Error
	return attempts, err
}
