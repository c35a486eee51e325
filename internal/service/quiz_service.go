package service

import (
	"encoding/json"
	"errors"
	"math"

	"github.com/AiMarketingPartners/Aiq-Learning-Backend/internal/model"
	"github.com/AiMarketingPartners/Aiq-Learning-Backend/internal/repository"
	"github.com/AiMarketingPartners/Aiq-Learning-Backend/internal/util"
	"github.com/AiMarketingPartners/Aiq-Learning-Backend/pkg/logger"
	"github.com/AiMarketingPartners/Aiq-Learning-Backend/pkg/monitoring"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type QuizService struct {
	CourseRepo     *repository.CourseRepository
	EnrollmentRepo *repository.EnrollmentRepository
	AttemptRepo    *repository.QuizAttemptRepository
	Progress       *ProgressService
}

func NewQuizService(
	courseRepo *repository.CourseRepository,
	enrollmentRepo *repository.EnrollmentRepository,
	attemptRepo *repository.QuizAttemptRepository,
	progress *ProgressService,
) *QuizService {
	return &QuizService{
		CourseRepo:     courseRepo,
		EnrollmentRepo: enrollmentRepo,
		AttemptRepo:    attemptRepo,
		Progress:       progress,
	}
}

type QuizSubmissionRequest struct {
	SectionIndex int     `json:"sectionIndex" binding:"required"`
	LectureIndex int     `json:"lectureIndex" binding:"required"`
	Answers      [][]int `json:"answers"`
	TimeTaken    int     `json:"timeTaken"`
}

type QuestionResult struct {
	QuestionID uint `json:"questionId"`
	Correct    bool `json:"correct"`
}

// QuizGrade 一次判分的结果，纯计算产物，持久化由提交流程另行处理
type QuizGrade struct {
	Results      []QuestionResult `json:"results"`
	CorrectCount int              `json:"correctCount"`
	Total        int              `json:"total"`
	Score        int              `json:"score"` // 0-100
}

type QuizSubmissionResponse struct {
	AttemptID uint             `json:"attemptId"`
	Score     int              `json:"score"`
	Passed    *bool            `json:"passed"`
	IsGraded  bool             `json:"isGraded"`
	Results   []QuestionResult `json:"results"`
}

// GradeQuiz 按题目定义对提交的答案判分。
// single: 恰好选择一个且命中正确集合；multiple: 选择集合与正确集合完全相等。
// 空测验不做除零，得分记 0。
func GradeQuiz(questions []model.QuizQuestion, answers [][]int) QuizGrade {
	grade := QuizGrade{
		Results: make([]QuestionResult, len(questions)),
		Total:   len(questions),
	}

	for i, q := range questions {
		var correct []int
		if len(q.CorrectAnswers) > 0 {
			// 损坏的答案数据按无正确答案对待，但要留下可排查的痕迹
			if err := json.Unmarshal(q.CorrectAnswers, &correct); err != nil {
				logger.Log.Warn("malformed correct answers payload",
					zap.Uint("questionId", q.ID), zap.Error(err))
			}
		}

		var selected []int
		if i < len(answers) {
			selected = answers[i]
		}
		ok := false
		switch q.Type {
		case model.QuestionSingle:
			ok = len(selected) == 1 && containsIndex(correct, selected[0])
		case model.QuestionMultiple:
			ok = sameIndexSet(correct, selected)
		}

		grade.Results[i] = QuestionResult{QuestionID: q.ID, Correct: ok}
		if ok {
			grade.CorrectCount++
		}
	}

	if grade.Total > 0 {
		grade.Score = int(math.Round(float64(grade.CorrectCount) / float64(grade.Total) * 100))
	}
	return grade
}

func containsIndex(set []int, idx int) bool {
	for _, v := range set {
		if v == idx {
			return true
		}
	}
	return false
}

// sameIndexSet 判断两个下标集合相等，去重后不允许缺选或多选
func sameIndexSet(a, b []int) bool {
	setA := make(map[int]bool, len(a))
	for _, v := range a {
		setA[v] = true
	}
	setB := make(map[int]bool, len(b))
	for _, v := range b {
		setB[v] = true
	}
	if len(setA) != len(setB) {
		return false
	}
	for v := range setA {
		if !setB[v] {
			return false
		}
	}
	return true
}

// SubmitQuiz 校验、判分并落一条不可变的测验记录；
// 通过（或不计分）的提交随后作为完成事件进入进度聚合。
func (s *QuizService) SubmitQuiz(userID, courseID uint, req QuizSubmissionRequest) (*QuizSubmissionResponse, error) {
	if req.SectionIndex < 1 || req.LectureIndex < 1 {
		return nil, util.ErrInvalidLessonIndex
	}

	course, err := s.CourseRepo.FindByID(courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrCourseNotFound
		}
		return nil, err
	}

	_, lecture := course.LectureAt(req.SectionIndex, req.LectureIndex)
	if lecture == nil {
		return nil, util.ErrLectureNotFound
	}
	if lecture.Type != model.LectureQuiz {
		return nil, util.ErrNotQuizLecture
	}
	if len(req.Answers) != len(lecture.Questions) {
		return nil, util.ErrAnswerCountMismatch
	}

	if _, err := s.EnrollmentRepo.FindActive(userID, courseID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrNotEnrolled
		}
		return nil, err
	}

	grade := GradeQuiz(lecture.Questions, req.Answers)

	var passed *bool
	if lecture.IsGraded {
		p := grade.Score >= lecture.PassingScore
		passed = &p
	}

	answersJSON, _ := json.Marshal(req.Answers)
	resultsJSON, _ := json.Marshal(grade.Results)

	attempt := &model.QuizAttempt{
		UserID:    userID,
		CourseID:  courseID,
		LectureID: lecture.ID,
		Answers:   answersJSON,
		Results:   resultsJSON,
		Score:     grade.Score,
		Passed:    passed,
		IsGraded:  lecture.IsGraded,
		TimeTaken: req.TimeTaken,
	}
	if err := s.AttemptRepo.Create(attempt); err != nil {
		return nil, err
	}

	switch {
	case passed == nil:
		monitoring.QuizSubmissions.WithLabelValues("ungraded").Inc()
	case *passed:
		monitoring.QuizSubmissions.WithLabelValues("passed").Inc()
	default:
		monitoring.QuizSubmissions.WithLabelValues("failed").Inc()
	}

	// 判分与持久化完成后，通过/不计分的提交作为完成事件驱动进度重算
	if passed == nil || *passed {
		if _, err := s.Progress.CompleteLesson(userID, courseID, req.SectionIndex, req.LectureIndex, req.TimeTaken); err != nil {
			return nil, err
		}
	}

	return &QuizSubmissionResponse{
		AttemptID: attempt.ID,
		Score:     grade.Score,
		Passed:    passed,
		IsGraded:  lecture.IsGraded,
		Results:   grade.Results,
	}, nil
}

func (s *QuizService) ListAttempts(userID, courseID uint, lectureID uint) ([]model.QuizAttempt, error) {
	if lectureID != 0 {
		return s.AttemptRepo.ListByUserAndLecture(userID, courseID, lectureID)
	}
	return s.AttemptRepo.ListByUserAndCourse(userID, courseID)
}
