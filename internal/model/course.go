package model

import (
	"gorm.io/datatypes"
)

type LectureType string

const (
	LectureVideo LectureType = "video"
	LectureQuiz  LectureType = "quiz"
	LectureNote  LectureType = "note"
)

// CertificateConfig 课程证书配置，随课程一起维护。
// 颁发证书时对展示字段做快照，后续修改配置不影响已颁发证书。
type CertificateConfig struct {
	Enabled               bool   `gorm:"default:false" json:"enabled"`
	CompletionRequirement int    `gorm:"default:100" json:"completionRequirement"` // 50-100
	PassingScore          int    `gorm:"default:70" json:"passingScore"`
	OrganizationName      string `gorm:"size:255" json:"organizationName"`
	SignedBy              string `gorm:"size:100" json:"signedBy"`
	SignerTitle           string `gorm:"size:100" json:"signerTitle"`
	Template              string `gorm:"size:50;default:'classic'" json:"template"`
}

// swagger:model Course
type Course struct {
	BaseModel
	Title        string            `gorm:"size:255;not null" json:"title"`
	Description  string            `gorm:"type:text" json:"description"`
	InstructorID uint              `gorm:"index" json:"instructorId"`
	Published    bool              `gorm:"default:false" json:"published"`
	CoverURL     string            `gorm:"size:512" json:"coverUrl"`
	Certificate  CertificateConfig `gorm:"embedded;embeddedPrefix:certificate_" json:"certificate"`
	Sections     []Section         `gorm:"foreignKey:CourseID" json:"sections,omitempty"`
}

func (Course) TableName() string {
	return "courses"
}

// Section 课程章节，Position 在课程内保持 1..N 连续
type Section struct {
	BaseModel
	CourseID uint      `gorm:"index;not null" json:"courseId"`
	Title    string    `gorm:"size:255;not null" json:"title"`
	Position int       `gorm:"not null" json:"position"`
	Lectures []Lecture `gorm:"foreignKey:SectionID" json:"lectures,omitempty"`
}

func (Section) TableName() string {
	return "sections"
}

// Lecture 课时，Position 在章节内保持 1..N 连续。
// Duration 单位为秒，视频课时由上传探测写入，测验/笔记由作者填写（可为 0）。
type Lecture struct {
	BaseModel
	SectionID   uint        `gorm:"index;not null" json:"sectionId"`
	Title       string      `gorm:"size:255;not null" json:"title"`
	Type        LectureType `gorm:"size:10;not null" json:"type"`
	Position    int         `gorm:"not null" json:"position"`
	Duration    int         `gorm:"default:0" json:"duration"`
	VideoURL    string      `gorm:"size:512" json:"videoUrl,omitempty"`
	NoteContent string      `gorm:"type:text" json:"noteContent,omitempty"`

	// 测验课时专用
	IsGraded     bool           `gorm:"default:false" json:"isGraded"`
	PassingScore int            `gorm:"default:70" json:"passingScore"`
	Questions    []QuizQuestion `gorm:"foreignKey:LectureID" json:"questions,omitempty"`
}

func (Lecture) TableName() string {
	return "lectures"
}

type QuestionType string

const (
	QuestionSingle   QuestionType = "single"
	QuestionMultiple QuestionType = "multiple"
)

// QuizQuestion 测验题目。Options 为选项文本数组，CorrectAnswers 为正确选项下标数组。
type QuizQuestion struct {
	BaseModel
	LectureID      uint           `gorm:"index;not null" json:"lectureId"`
	Position       int            `gorm:"not null" json:"position"`
	Type           QuestionType   `gorm:"size:10;not null" json:"type"`
	Text           string         `gorm:"type:text;not null" json:"text"`
	Options        datatypes.JSON `gorm:"type:json" json:"options"`
	CorrectAnswers datatypes.JSON `gorm:"type:json" json:"-"`
}

func (QuizQuestion) TableName() string {
	return "quiz_questions"
}

// SectionAt 按 1 起始位置取章节，越界返回 nil
func (c *Course) SectionAt(position int) *Section {
	for i := range c.Sections {
		if c.Sections[i].Position == position {
			return &c.Sections[i]
		}
	}
	return nil
}

// LectureAt 按 1 起始的 (章节位置, 课时位置) 取课时，越界返回 nil。
// 旧接口按位置寻址，内部统一换算为稳定 ID 后使用。
func (c *Course) LectureAt(sectionPos, lecturePos int) (*Section, *Lecture) {
	section := c.SectionAt(sectionPos)
	if section == nil {
		return nil, nil
	}
	for i := range section.Lectures {
		if section.Lectures[i].Position == lecturePos {
			return section, &section.Lectures[i]
		}
	}
	return section, nil
}

// FindLecture 按稳定 ID 取课时
func (c *Course) FindLecture(lectureID uint) (*Section, *Lecture) {
	for i := range c.Sections {
		for j := range c.Sections[i].Lectures {
			if c.Sections[i].Lectures[j].ID == lectureID {
				return &c.Sections[i], &c.Sections[i].Lectures[j]
			}
		}
	}
	return nil, nil
}

// LectureCount 课程总课时数
func (c *Course) LectureCount() int {
	count := 0
	for i := range c.Sections {
		count += len(c.Sections[i].Lectures)
	}
	return count
}

// TotalDuration 课程总时长（秒）
func (c *Course) TotalDuration() int {
	total := 0
	for i := range c.Sections {
		for j := range c.Sections[i].Lectures {
			total += c.Sections[i].Lectures[j].Duration
		}
	}
	return total
}

// HasGradedQuiz 课程是否包含计分测验课时
func (c *Course) HasGradedQuiz() bool {
	for i := range c.Sections {
		for j := range c.Sections[i].Lectures {
			l := &c.Sections[i].Lectures[j]
			if l.Type == LectureQuiz && l.IsGraded {
				return true
			}
		}
	}
	return false
}
