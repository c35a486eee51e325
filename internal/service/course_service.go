package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/AiMarketingPartners/Aiq-Learning-Backend/internal/model"
	"github.com/AiMarketingPartners/Aiq-Learning-Backend/internal/repository"
	"github.com/AiMarketingPartners/Aiq-Learning-Backend/internal/util"

	"gorm.io/gorm"
)

type CourseService struct {
	CourseRepo *repository.CourseRepository
	Storage    *StorageService
}

func NewCourseService(courseRepo *repository.CourseRepository, storage *StorageService) *CourseService {
	return &CourseService{
		CourseRepo: courseRepo,
		Storage:    storage,
	}
}

type CourseRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	CoverURL    string `json:"coverUrl"`
}

type SectionRequest struct {
	Title string `json:"title" binding:"required"`
}

type QuestionRequest struct {
	Type           model.QuestionType `json:"type" binding:"required"`
	Text           string             `json:"text" binding:"required"`
	Options        []string           `json:"options" binding:"required"`
	CorrectAnswers []int              `json:"correctAnswers"`
}

type LectureRequest struct {
	Title        string            `json:"title" binding:"required"`
	Type         model.LectureType `json:"type" binding:"required"`
	Duration     int               `json:"duration"`
	NoteContent  string            `json:"noteContent"`
	IsGraded     bool              `json:"isGraded"`
	PassingScore int               `json:"passingScore"`
	Questions    []QuestionRequest `json:"questions"`
}

type CertificateConfigRequest struct {
	Enabled               bool   `json:"enabled"`
	CompletionRequirement int    `json:"completionRequirement"`
	PassingScore          int    `json:"passingScore"`
	OrganizationName      string `json:"organizationName"`
	SignedBy              string `json:"signedBy"`
	SignerTitle           string `json:"signerTitle"`
	Template              string `json:"template"`
}

func (s *CourseService) CreateCourse(instructorID uint, req CourseRequest) (*model.Course, error) {
	course := &model.Course{
		Title:        req.Title,
		Description:  req.Description,
		CoverURL:     req.CoverURL,
		InstructorID: instructorID,
		Certificate: model.CertificateConfig{
			CompletionRequirement: 100,
			PassingScore:          70,
			Template:              "classic",
		},
	}
	if err := s.CourseRepo.Create(course); err != nil {
		return nil, err
	}
	return course, nil
}

func (s *CourseService) UpdateCourse(claims *util.Claims, courseID uint, req CourseRequest) (*model.Course, error) {
	course, err := s.ownedCourse(claims, courseID)
	if err != nil {
		return nil, err
	}

	course.Title = req.Title
	course.Description = req.Description
	if req.CoverURL != "" {
		course.CoverURL = req.CoverURL
	}
	if err := s.CourseRepo.Update(course); err != nil {
		return nil, err
	}
	return course, nil
}

func (s *CourseService) PublishCourse(claims *util.Claims, courseID uint, published bool) (*model.Course, error) {
	course, err := s.ownedCourse(claims, courseID)
	if err != nil {
		return nil, err
	}
	course.Published = published
	if err := s.CourseRepo.Update(course); err != nil {
		return nil, err
	}
	return course, nil
}

func (s *CourseService) DeleteCourse(claims *util.Claims, courseID uint) error {
	if _, err := s.ownedCourse(claims, courseID); err != nil {
		return err
	}
	return s.CourseRepo.Delete(courseID)
}

func (s *CourseService) ListCourses(page, limit int) ([]model.Course, int64, error) {
	return s.CourseRepo.List(true, page, limit)
}

func (s *CourseService) ListInstructorCourses(instructorID uint) ([]model.Course, error) {
	return s.CourseRepo.ListByInstructor(instructorID)
}

// GetCourse 讲师/管理员视图，携带答案
func (s *CourseService) GetCourse(claims *util.Claims, courseID uint) (*model.Course, error) {
	return s.ownedCourse(claims, courseID)
}

// GetCourseForLearner 学习者视图：仅已发布课程，测验答案不下发
func (s *CourseService) GetCourseForLearner(courseID uint) (*model.Course, error) {
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

	for i := range course.Sections {
		for j := range course.Sections[i].Lectures {
			for k := range course.Sections[i].Lectures[j].Questions {
				course.Sections[i].Lectures[j].Questions[k].CorrectAnswers = nil
			}
		}
	}
	return course, nil
}

func (s *CourseService) AddSection(claims *util.Claims, courseID uint, req SectionRequest) (*model.Section, error) {
	if _, err := s.ownedCourse(claims, courseID); err != nil {
		return nil, err
	}

	max, err := s.CourseRepo.MaxSectionPosition(courseID)
	if err != nil {
		return nil, err
	}

	section := &model.Section{
		CourseID: courseID,
		Title:    req.Title,
		Position: max + 1,
	}
	if err := s.CourseRepo.CreateSection(section); err != nil {
		return nil, err
	}
	return section, nil
}

func (s *CourseService) UpdateSection(claims *util.Claims, courseID, sectionID uint, req SectionRequest) (*model.Section, error) {
	section, err := s.ownedSection(claims, courseID, sectionID)
	if err != nil {
		return nil, err
	}
	section.Title = req.Title
	if err := s.CourseRepo.UpdateSection(section); err != nil {
		return nil, err
	}
	return section, nil
}

func (s *CourseService) DeleteSection(claims *util.Claims, courseID, sectionID uint) error {
	section, err := s.ownedSection(claims, courseID, sectionID)
	if err != nil {
		return err
	}
	return s.CourseRepo.DeleteSection(section)
}

func (s *CourseService) AddLecture(claims *util.Claims, courseID, sectionID uint, req LectureRequest) (*model.Lecture, error) {
	if _, err := s.ownedSection(claims, courseID, sectionID); err != nil {
		return nil, err
	}
	if err := validateLectureRequest(&req); err != nil {
		return nil, err
	}

	max, err := s.CourseRepo.MaxLecturePosition(sectionID)
	if err != nil {
		return nil, err
	}

	lecture := &model.Lecture{
		SectionID:    sectionID,
		Title:        req.Title,
		Type:         req.Type,
		Position:     max + 1,
		Duration:     req.Duration,
		NoteContent:  req.NoteContent,
		IsGraded:     req.IsGraded,
		PassingScore: req.PassingScore,
	}
	if err := s.CourseRepo.CreateLecture(lecture); err != nil {
		return nil, err
	}

	if req.Type == model.LectureQuiz {
		questions, err := buildQuestions(lecture.ID, req.Questions)
		if err != nil {
			return nil, err
		}
		if err := s.CourseRepo.ReplaceQuestions(lecture.ID, questions); err != nil {
			return nil, err
		}
		lecture.Questions = questions
	}
	return lecture, nil
}

func (s *CourseService) UpdateLecture(claims *util.Claims, courseID, sectionID, lectureID uint, req LectureRequest) (*model.Lecture, error) {
	if _, err := s.ownedSection(claims, courseID, sectionID); err != nil {
		return nil, err
	}
	if err := validateLectureRequest(&req); err != nil {
		return nil, err
	}

	lecture, err := s.CourseRepo.FindLecture(lectureID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrLectureNotFound
		}
		return nil, err
	}
	if lecture.SectionID != sectionID {
		return nil, util.ErrLectureNotFound
	}

	lecture.Title = req.Title
	lecture.Type = req.Type
	lecture.NoteContent = req.NoteContent
	lecture.IsGraded = req.IsGraded
	lecture.PassingScore = req.PassingScore
	if req.Duration > 0 {
		lecture.Duration = req.Duration
	}
	if err := s.CourseRepo.UpdateLecture(lecture); err != nil {
		return nil, err
	}

	if req.Type == model.LectureQuiz {
		questions, err := buildQuestions(lecture.ID, req.Questions)
		if err != nil {
			return nil, err
		}
		if err := s.CourseRepo.ReplaceQuestions(lecture.ID, questions); err != nil {
			return nil, err
		}
		lecture.Questions = questions
	}
	return lecture, nil
}

func (s *CourseService) DeleteLecture(claims *util.Claims, courseID, sectionID, lectureID uint) error {
	if _, err := s.ownedSection(claims, courseID, sectionID); err != nil {
		return err
	}

	lecture, err := s.CourseRepo.FindLecture(lectureID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return util.ErrLectureNotFound
		}
		return err
	}
	if lecture.SectionID != sectionID {
		return util.ErrLectureNotFound
	}
	return s.CourseRepo.DeleteLecture(lecture)
}

// MoveSection 调整章节顺序，目标位置必须在 1..章节数 范围内
func (s *CourseService) MoveSection(claims *util.Claims, courseID, sectionID uint, newPos int) (*model.Section, error) {
	section, err := s.ownedSection(claims, courseID, sectionID)
	if err != nil {
		return nil, err
	}

	max, err := s.CourseRepo.MaxSectionPosition(courseID)
	if err != nil {
		return nil, err
	}
	if newPos < 1 || newPos > max {
		return nil, util.ErrInvalidPosition
	}
	if err := s.CourseRepo.MoveSection(section, newPos); err != nil {
		return nil, err
	}
	return section, nil
}

// MoveLecture 调整课时在章节内的顺序
func (s *CourseService) MoveLecture(claims *util.Claims, courseID, sectionID, lectureID uint, newPos int) (*model.Lecture, error) {
	if _, err := s.ownedSection(claims, courseID, sectionID); err != nil {
		return nil, err
	}

	lecture, err := s.CourseRepo.FindLecture(lectureID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrLectureNotFound
		}
		return nil, err
	}
	if lecture.SectionID != sectionID {
		return nil, util.ErrLectureNotFound
	}

	max, err := s.CourseRepo.MaxLecturePosition(sectionID)
	if err != nil {
		return nil, err
	}
	if newPos < 1 || newPos > max {
		return nil, util.ErrInvalidPosition
	}
	if err := s.CourseRepo.MoveLecture(lecture, newPos); err != nil {
		return nil, err
	}
	return lecture, nil
}

// UpdateCertificateConfig 调整课程证书配置，只影响之后颁发的证书
func (s *CourseService) UpdateCertificateConfig(claims *util.Claims, courseID uint, req CertificateConfigRequest) (*model.Course, error) {
	course, err := s.ownedCourse(claims, courseID)
	if err != nil {
		return nil, err
	}

	cfg := model.CertificateConfig{
		Enabled:               req.Enabled,
		CompletionRequirement: req.CompletionRequirement,
		PassingScore:          req.PassingScore,
		OrganizationName:      req.OrganizationName,
		SignedBy:              req.SignedBy,
		SignerTitle:           req.SignerTitle,
		Template:              req.Template,
	}
	if cfg.CompletionRequirement == 0 {
		cfg.CompletionRequirement = 100
	}
	if cfg.CompletionRequirement < 50 || cfg.CompletionRequirement > 100 {
		return nil, fmt.Errorf("completion requirement must be between 50 and 100, got %d", cfg.CompletionRequirement)
	}
	if cfg.PassingScore == 0 {
		cfg.PassingScore = 70
	}
	if cfg.PassingScore < 0 || cfg.PassingScore > 100 {
		return nil, fmt.Errorf("passing score must be between 0 and 100, got %d", cfg.PassingScore)
	}
	if cfg.Template == "" {
		cfg.Template = "classic"
	}

	course.Certificate = cfg
	if err := s.CourseRepo.Update(course); err != nil {
		return nil, err
	}
	return course, nil
}

// UploadLectureVideo 上传视频课时：探测时长写回课时，再交给存储后端
func (s *CourseService) UploadLectureVideo(claims *util.Claims, courseID, sectionID, lectureID uint, localPath, filename, contentType string) (*model.Lecture, error) {
	if _, err := s.ownedSection(claims, courseID, sectionID); err != nil {
		return nil, err
	}

	lecture, err := s.CourseRepo.FindLecture(lectureID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrLectureNotFound
		}
		return nil, err
	}
	if lecture.SectionID != sectionID || lecture.Type != model.LectureVideo {
		return nil, util.ErrLectureNotFound
	}

	info, err := util.GetVideoInfo(localPath)
	if err != nil {
		return nil, err
	}

	objectName := fmt.Sprintf("courses/%d/lectures/%d/%d%s",
		courseID, lectureID, time.Now().UnixNano(), filepath.Ext(filename))
	url, err := s.Storage.UploadFile(context.Background(), objectName, localPath, contentType)
	if err != nil {
		return nil, err
	}

	lecture.VideoURL = url
	lecture.Duration = int(info.Duration)
	if err := s.CourseRepo.UpdateLecture(lecture); err != nil {
		return nil, err
	}
	return lecture, nil
}

func (s *CourseService) ownedCourse(claims *util.Claims, courseID uint) (*model.Course, error) {
	course, err := s.CourseRepo.FindByID(courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrCourseNotFound
		}
		return nil, err
	}
	if claims.Role != model.Admin && course.InstructorID != claims.UserID {
		return nil, util.ErrPermissionDenied
	}
	return course, nil
}

func (s *CourseService) ownedSection(claims *util.Claims, courseID, sectionID uint) (*model.Section, error) {
	if _, err := s.ownedCourse(claims, courseID); err != nil {
		return nil, err
	}
	section, err := s.CourseRepo.FindSection(sectionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrSectionNotFound
		}
		return nil, err
	}
	if section.CourseID != courseID {
		return nil, util.ErrSectionNotFound
	}
	return section, nil
}

func validateLectureRequest(req *LectureRequest) error {
	switch req.Type {
	case model.LectureVideo, model.LectureNote:
	case model.LectureQuiz:
		if req.PassingScore == 0 {
			req.PassingScore = 70
		}
	default:
		return fmt.Errorf("unknown lecture type: %s", req.Type)
	}
	return nil
}

func buildQuestions(lectureID uint, reqs []QuestionRequest) ([]model.QuizQuestion, error) {
	questions := make([]model.QuizQuestion, 0, len(reqs))
	for i, q := range reqs {
		if q.Type != model.QuestionSingle && q.Type != model.QuestionMultiple {
			return nil, util.ErrInvalidQuestion
		}
		if len(q.Options) == 0 {
			return nil, util.ErrInvalidQuestion
		}
		for _, idx := range q.CorrectAnswers {
			if idx < 0 || idx >= len(q.Options) {
				return nil, util.ErrInvalidQuestion
			}
		}
		if q.Type == model.QuestionSingle && len(q.CorrectAnswers) != 1 {
			return nil, util.ErrInvalidQuestion
		}

		optionsJSON, _ := json.Marshal(q.Options)
		answersJSON, _ := json.Marshal(q.CorrectAnswers)
		questions = append(questions, model.QuizQuestion{
			LectureID:      lectureID,
			Position:       i + 1,
			Type:           q.Type,
			Text:           q.Text,
			Options:        optionsJSON,
			CorrectAnswers: answersJSON,
		})
	}
	return questions, nil
}
