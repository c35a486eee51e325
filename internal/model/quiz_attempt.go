package model

import (
	"gorm.io/datatypes"
)

// QuizAttempt 一次测验提交，创建后不再修改，允许同一课时多次提交。
// Answers 为逐题选项下标数组的数组，Results 为逐题判定结果。
// Passed 在测验不计分时为 null。
type QuizAttempt struct {
	BaseModel
	UserID    uint           `gorm:"index:idx_user_course_attempt;not null" json:"userId"`
	CourseID  uint           `gorm:"index:idx_user_course_attempt;not null" json:"courseId"`
	LectureID uint           `gorm:"index;not null" json:"lectureId"`
	Answers   datatypes.JSON `gorm:"type:json" json:"answers"`
	Results   datatypes.JSON `gorm:"type:json" json:"results"`
	Score     int            `gorm:"not null" json:"score"` // 0-100
	Passed    *bool          `json:"passed"`
	IsGraded  bool           `gorm:"default:false" json:"isGraded"`
	TimeTaken int            `gorm:"default:0" json:"timeTaken"` // 秒
}

func (QuizAttempt) TableName() string {
	return "quiz_attempts"
}
