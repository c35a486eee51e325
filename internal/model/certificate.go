package model

import (
	"time"
)

type CertificateGrade string

const (
	GradeAPlus CertificateGrade = "A+"
	GradeA     CertificateGrade = "A"
	GradeBPlus CertificateGrade = "B+"
	GradeB     CertificateGrade = "B"
	GradeCPlus CertificateGrade = "C+"
	GradeC     CertificateGrade = "C"
	GradePass  CertificateGrade = "Pass"
)

// Certificate 结业证书，(user, course) 由数据库唯一索引保证至多一张。
// CertificateID 为对外核验用的全局唯一编号，不暴露数据库主键。
// 持有人/课程/签署方等展示字段为颁发时快照。
type Certificate struct {
	BaseModel
	UserID        uint             `gorm:"index:idx_user_course_certificate,unique;not null" json:"userId"`
	CourseID      uint             `gorm:"index:idx_user_course_certificate,unique;not null" json:"courseId"`
	CertificateID string           `gorm:"size:64;uniqueIndex;not null" json:"certificateId"`
	Grade         CertificateGrade `gorm:"size:8;not null" json:"grade"`
	CompletedAt   time.Time        `json:"completedAt"`

	// 颁发时的成绩快照
	CompletionPercent int `gorm:"not null" json:"completionPercent"`
	QuizAverage       int `gorm:"not null" json:"quizAverage"`
	TotalDuration     int `gorm:"default:0" json:"totalDuration"` // 秒
	DaysToComplete    int `gorm:"default:0" json:"daysToComplete"`

	// 颁发时的展示快照
	HolderName       string `gorm:"size:100" json:"holderName"`
	CourseTitle      string `gorm:"size:255" json:"courseTitle"`
	OrganizationName string `gorm:"size:255" json:"organizationName"`
	SignedBy         string `gorm:"size:100" json:"signedBy"`
	SignerTitle      string `gorm:"size:100" json:"signerTitle"`
	Template         string `gorm:"size:50" json:"template"`
}

func (Certificate) TableName() string {
	return "certificates"
}
