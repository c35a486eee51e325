package repository

import (
	"github.com/AiMarketingPartners/Aiq-Learning-Backend/internal/model"

	"gorm.io/gorm"
)

type CourseRepository struct {
	DB *gorm.DB
}

func NewCourseRepository(db *gorm.DB) *CourseRepository {
	return &CourseRepository{DB: db}
}

func (r *CourseRepository) Create(course *model.Course) error {
	return r.DB.Create(course).Error
}

func (r *CourseRepository) Update(course *model.Course) error {
	return r.DB.Save(course).Error
}

func (r *CourseRepository) Delete(id uint) error {
	return r.DB.Delete(&model.Course{}, id).Error
}

// FindByID 加载完整课程结构树，章节/课时/题目均按 Position 排序
func (r *CourseRepository) FindByID(id uint) (*model.Course, error) {
	var course model.Course
	err := r.DB.
		Preload("Sections", func(db *gorm.DB) *gorm.DB {
			return db.Order("sections.position ASC")
		}).
		Preload("Sections.Lectures", func(db *gorm.DB) *gorm.DB {
			return db.Order("lectures.position ASC")
		}).
		Preload("Sections.Lectures.Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("quiz_questions.position ASC")
		}).
		First(&course, id).Error
	if err != nil {
		return nil, err
	}
	return &course, nil
}

func (r *CourseRepository) List(publishedOnly bool, page, limit int) ([]model.Course, int64, error) {
	var courses []model.Course
	var total int64

	query := r.DB.Model(&model.Course{})
	if publishedOnly {
		query = query.Where("published = ?", true)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&courses).Error
	return courses, total, err
}

func (r *CourseRepository) ListByInstructor(instructorID uint) ([]model.Course, error) {
	var courses []model.Course
	err := r.DB.Where("instructor_id = ?", instructorID).Order("created_at DESC").Find(&courses).Error
	return courses, err
}

func (r *CourseRepository) CreateSection(section *model.Section) error {
	return r.DB.Create(section).Error
}

func (r *CourseRepository) UpdateSection(section *model.Section) error {
	return r.DB.Save(section).Error
}

func (r *CourseRepository) FindSection(id uint) (*model.Section, error) {
	var section model.Section
	err := r.DB.Preload("Lectures", func(db *gorm.DB) *gorm.DB {
		return db.Order("lectures.position ASC")
	}).First(&section, id).Error
	if err != nil {
		return nil, err
	}
	return &section, nil
}

func (r *CourseRepository) MaxSectionPosition(courseID uint) (int, error) {
	var max int
	err := r.DB.Model(&model.Section{}).
		Where("course_id = ?", courseID).
		Select("COALESCE(MAX(position), 0)").
		Scan(&max).Error
	return max, err
}

// DeleteSection 删除章节及其课时，并压缩后续章节位置保持 1..N 连续
func (r *CourseRepository) DeleteSection(section *model.Section) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("section_id = ?", section.ID).Delete(&model.Lecture{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(section).Error; err != nil {
			return err
		}
		return tx.Model(&model.Section{}).
			Where("course_id = ? AND position > ?", section.CourseID, section.Position).
			Update("position", gorm.Expr("position - 1")).Error
	})
}

// MoveSection 将章节移动到新位置，区间内其余章节整体平移保持 1..N 连续
func (r *CourseRepository) MoveSection(section *model.Section, newPos int) error {
	if newPos == section.Position {
		return nil
	}
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if newPos < section.Position {
			err := tx.Model(&model.Section{}).
				Where("course_id = ? AND position >= ? AND position < ?", section.CourseID, newPos, section.Position).
				Update("position", gorm.Expr("position + 1")).Error
			if err != nil {
				return err
			}
		} else {
			err := tx.Model(&model.Section{}).
				Where("course_id = ? AND position > ? AND position <= ?", section.CourseID, section.Position, newPos).
				Update("position", gorm.Expr("position - 1")).Error
			if err != nil {
				return err
			}
		}
		section.Position = newPos
		return tx.Model(section).Update("position", newPos).Error
	})
}

func (r *CourseRepository) CreateLecture(lecture *model.Lecture) error {
	return r.DB.Create(lecture).Error
}

func (r *CourseRepository) UpdateLecture(lecture *model.Lecture) error {
	return r.DB.Save(lecture).Error
}

func (r *CourseRepository) FindLecture(id uint) (*model.Lecture, error) {
	var lecture model.Lecture
	err := r.DB.Preload("Questions", func(db *gorm.DB) *gorm.DB {
		return db.Order("quiz_questions.position ASC")
	}).First(&lecture, id).Error
	if err != nil {
		return nil, err
	}
	return &lecture, nil
}

func (r *CourseRepository) MaxLecturePosition(sectionID uint) (int, error) {
	var max int
	err := r.DB.Model(&model.Lecture{}).
		Where("section_id = ?", sectionID).
		Select("COALESCE(MAX(position), 0)").
		Scan(&max).Error
	return max, err
}

// DeleteLecture 删除课时并压缩同章节后续课时位置
func (r *CourseRepository) DeleteLecture(lecture *model.Lecture) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("lecture_id = ?", lecture.ID).Delete(&model.QuizQuestion{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(lecture).Error; err != nil {
			return err
		}
		return tx.Model(&model.Lecture{}).
			Where("section_id = ? AND position > ?", lecture.SectionID, lecture.Position).
			Update("position", gorm.Expr("position - 1")).Error
	})
}

// MoveLecture 将课时在其章节内移动到新位置
func (r *CourseRepository) MoveLecture(lecture *model.Lecture, newPos int) error {
	if newPos == lecture.Position {
		return nil
	}
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if newPos < lecture.Position {
			err := tx.Model(&model.Lecture{}).
				Where("section_id = ? AND position >= ? AND position < ?", lecture.SectionID, newPos, lecture.Position).
				Update("position", gorm.Expr("position + 1")).Error
			if err != nil {
				return err
			}
		} else {
			err := tx.Model(&model.Lecture{}).
				Where("section_id = ? AND position > ? AND position <= ?", lecture.SectionID, lecture.Position, newPos).
				Update("position", gorm.Expr("position - 1")).Error
			if err != nil {
				return err
			}
		}
		lecture.Position = newPos
		return tx.Model(lecture).Update("position", newPos).Error
	})
}

// ReplaceQuestions 整体替换测验课时的题目
func (r *CourseRepository) ReplaceQuestions(lectureID uint, questions []model.QuizQuestion) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("lecture_id = ?", lectureID).Delete(&model.QuizQuestion{}).Error; err != nil {
			return err
		}
		if len(questions) == 0 {
			return nil
		}
		return tx.Create(&questions).Error
	})
}
