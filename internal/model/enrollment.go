package model

import (
	"time"
)

// Enrollment 用户与课程的选课关系及进度状态，(user, course) 唯一。
// 退课仅置 IsActive=false，进度数据保留。
// Version 为乐观锁版本号，进度写入时校验。
type Enrollment struct {
	BaseModel
	UserID          uint       `gorm:"index:idx_user_course,unique;not null" json:"userId"`
	CourseID        uint       `gorm:"index:idx_user_course,unique;not null" json:"courseId"`
	IsActive        bool       `gorm:"default:true" json:"isActive"`
	EnrolledAt      time.Time  `json:"enrolledAt"`
	OverallProgress int        `gorm:"default:0" json:"overallProgress"` // 0-100
	TotalTimeSpent  int        `gorm:"default:0" json:"totalTimeSpent"`  // 秒
	LastSectionID   *uint      `json:"lastSectionId,omitempty"`
	LastLectureID   *uint      `json:"lastLectureId,omitempty"`
	CompletedAt     *time.Time `json:"completedAt,omitempty"`
	Version         int        `gorm:"default:0" json:"-"`

	Course      Course             `gorm:"foreignKey:CourseID" json:"course,omitempty"`
	Completions []LessonCompletion `gorm:"foreignKey:EnrollmentID" json:"completions,omitempty"`
}

func (Enrollment) TableName() string {
	return "enrollments"
}

// LessonCompletion 单条课时完成记录，按稳定的章节/课时 ID 存储，
// (enrollment, lecture) 唯一保证重复完成不产生重复记录。
type LessonCompletion struct {
	BaseModel
	EnrollmentID uint      `gorm:"index:idx_enrollment_lecture,unique;not null" json:"enrollmentId"`
	SectionID    uint      `gorm:"not null" json:"sectionId"`
	LectureID    uint      `gorm:"index:idx_enrollment_lecture,unique;not null" json:"lectureId"`
	CompletedAt  time.Time `json:"completedAt"`
	TimeSpent    int       `gorm:"default:0" json:"timeSpent"` // 秒
}

func (LessonCompletion) TableName() string {
	return "lesson_completions"
}
