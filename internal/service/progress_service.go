package service

import (
	"errors"
	"math"
	"time"

	"github.com/AiMarketingPartners/Aiq-Learning-Backend/internal/model"
	"github.com/AiMarketingPartners/Aiq-Learning-Backend/internal/repository"
	"github.com/AiMarketingPartners/Aiq-Learning-Backend/internal/util"
	"github.com/AiMarketingPartners/Aiq-Learning-Backend/pkg/logger"
	"github.com/AiMarketingPartners/Aiq-Learning-Backend/pkg/monitoring"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// progressSaveRetries 乐观锁冲突时的内部重试次数，耗尽后向调用方返回冲突
const progressSaveRetries = 3

type ProgressService struct {
	CourseRepo     *repository.CourseRepository
	EnrollmentRepo *repository.EnrollmentRepository
}

func NewProgressService(
	courseRepo *repository.CourseRepository,
	enrollmentRepo *repository.EnrollmentRepository,
) *ProgressService {
	return &ProgressService{
		CourseRepo:     courseRepo,
		EnrollmentRepo: enrollmentRepo,
	}
}

type CompletedLesson struct {
	SectionIndex int       `json:"sectionIndex"`
	LectureIndex int       `json:"lectureIndex"`
	SectionID    uint      `json:"sectionId"`
	LectureID    uint      `json:"lectureId"`
	CompletedAt  time.Time `json:"completedAt"`
	TimeSpent    int       `json:"timeSpent"`
}

type SectionProgress struct {
	SectionIndex      int    `json:"sectionIndex"`
	SectionID         uint   `json:"sectionId"`
	Title             string `json:"title"`
	CompletedLectures int    `json:"completedLectures"`
	TotalLectures     int    `json:"totalLectures"`
	Percentage        int    `json:"percentage"`
}

type ProgressSummary struct {
	CourseID          uint              `json:"courseId"`
	OverallProgress   int               `json:"overallProgress"`
	CompletedLectures int               `json:"completedLectures"`
	TotalLectures     int               `json:"totalLectures"`
	TotalTimeSpent    int               `json:"totalTimeSpent"`
	CompletedAt       *time.Time        `json:"completedAt,omitempty"`
	LastSectionID     *uint             `json:"lastSectionId,omitempty"`
	LastLectureID     *uint             `json:"lastLectureId,omitempty"`
	Completions       []CompletedLesson `json:"completions"`
	Sections          []SectionProgress `json:"sections"`
}

// weightedPercent 是完成百分比的唯一策略入口：
// 优先按课时时长加权，课时总时长为 0 时退化为按课时数计数。
// 结构中不存在的完成记录（孤儿）对分子分母均不贡献。
// 结果四舍五入并收敛到 [0,100]。
func weightedPercent(lectures []model.Lecture, completed map[uint]bool) int {
	totalCount := len(lectures)
	if totalCount == 0 {
		return 0
	}

	totalDuration, doneDuration, doneCount := 0, 0, 0
	for i := range lectures {
		totalDuration += lectures[i].Duration
		if completed[lectures[i].ID] {
			doneCount++
			doneDuration += lectures[i].Duration
		}
	}

	var pct float64
	if totalDuration > 0 {
		pct = float64(doneDuration) / float64(totalDuration) * 100
	} else {
		pct = float64(doneCount) / float64(totalCount) * 100
	}

	rounded := int(math.Round(pct))
	if rounded < 0 {
		return 0
	}
	if rounded > 100 {
		return 100
	}
	return rounded
}

func courseLectures(course *model.Course) []model.Lecture {
	var lectures []model.Lecture
	for i := range course.Sections {
		lectures = append(lectures, course.Sections[i].Lectures...)
	}
	return lectures
}

func completedSet(completions []model.LessonCompletion) map[uint]bool {
	set := make(map[uint]bool, len(completions))
	for i := range completions {
		set[completions[i].LectureID] = true
	}
	return set
}

// CompleteLesson 标记课时完成。重复完成不产生新记录，仅累加学习时长；
// 最后访问指针无条件更新。乐观锁冲突在内部重试。
func (s *ProgressService) CompleteLesson(userID, courseID uint, sectionIndex, lectureIndex, timeSpent int) (*ProgressSummary, error) {
	if sectionIndex < 1 || lectureIndex < 1 {
		return nil, util.ErrInvalidLessonIndex
	}

	for attempt := 0; attempt < progressSaveRetries; attempt++ {
		summary, err := s.completeOnce(userID, courseID, sectionIndex, lectureIndex, timeSpent)
		if errors.Is(err, util.ErrProgressConflict) {
			monitoring.ProgressWriteConflicts.Inc()
			logger.Log.Warn("progress write conflict, retrying",
				zap.Uint("userId", userID),
				zap.Uint("courseId", courseID),
				zap.Int("attempt", attempt+1))
			continue
		}
		return summary, err
	}
	return nil, util.ErrProgressConflict
}

func (s *ProgressService) completeOnce(userID, courseID uint, sectionIndex, lectureIndex, timeSpent int) (*ProgressSummary, error) {
	course, enrollment, err := s.loadCourseAndEnrollment(userID, courseID)
	if err != nil {
		return nil, err
	}

	section, lecture := course.LectureAt(sectionIndex, lectureIndex)
	if lecture == nil {
		return nil, util.ErrLectureNotFound
	}

	completions, err := s.EnrollmentRepo.ListCompletions(enrollment.ID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	set := completedSet(completions)

	var upsert *model.LessonCompletion
	newCompletion := false
	if set[lecture.ID] {
		// 幂等：已完成的课时不重置完成时间，仅累加时长
		if timeSpent > 0 {
			for i := range completions {
				if completions[i].LectureID == lecture.ID {
					completions[i].TimeSpent += timeSpent
					upsert = &completions[i]
					break
				}
			}
		}
	} else {
		newCompletion = true
		upsert = &model.LessonCompletion{
			EnrollmentID: enrollment.ID,
			SectionID:    section.ID,
			LectureID:    lecture.ID,
			CompletedAt:  now,
			TimeSpent:    timeSpent,
		}
		completions = append(completions, *upsert)
		set[lecture.ID] = true
	}

	// 访问与完成是两回事：最后访问指针无条件更新
	enrollment.LastSectionID = &section.ID
	enrollment.LastLectureID = &lecture.ID
	enrollment.TotalTimeSpent += timeSpent

	enrollment.OverallProgress = weightedPercent(courseLectures(course), set)
	if enrollment.OverallProgress >= 100 && enrollment.CompletedAt == nil {
		enrollment.CompletedAt = &now
	}

	if err := s.EnrollmentRepo.SaveProgress(enrollment, upsert, 0); err != nil {
		return nil, err
	}

	if newCompletion {
		monitoring.LessonCompletions.Inc()
	}

	return buildSummary(course, enrollment, completions), nil
}

// UncompleteLesson 撤销课时完成。记录不存在时为无操作；
// 若提供时长则从累计中扣除（不落到负数）；跌出 100% 时清除完成时间。
func (s *ProgressService) UncompleteLesson(userID, courseID uint, sectionIndex, lectureIndex, timeSpent int) (*ProgressSummary, error) {
	if sectionIndex < 1 || lectureIndex < 1 {
		return nil, util.ErrInvalidLessonIndex
	}

	for attempt := 0; attempt < progressSaveRetries; attempt++ {
		summary, err := s.uncompleteOnce(userID, courseID, sectionIndex, lectureIndex, timeSpent)
		if errors.Is(err, util.ErrProgressConflict) {
			monitoring.ProgressWriteConflicts.Inc()
			continue
		}
		return summary, err
	}
	return nil, util.ErrProgressConflict
}

func (s *ProgressService) uncompleteOnce(userID, courseID uint, sectionIndex, lectureIndex, timeSpent int) (*ProgressSummary, error) {
	course, enrollment, err := s.loadCourseAndEnrollment(userID, courseID)
	if err != nil {
		return nil, err
	}

	_, lecture := course.LectureAt(sectionIndex, lectureIndex)
	if lecture == nil {
		return nil, util.ErrLectureNotFound
	}

	completions, err := s.EnrollmentRepo.ListCompletions(enrollment.ID)
	if err != nil {
		return nil, err
	}

	set := completedSet(completions)
	if !set[lecture.ID] {
		return buildSummary(course, enrollment, completions), nil
	}

	delete(set, lecture.ID)
	remaining := completions[:0:0]
	for i := range completions {
		if completions[i].LectureID != lecture.ID {
			remaining = append(remaining, completions[i])
		}
	}

	if timeSpent > 0 {
		enrollment.TotalTimeSpent -= timeSpent
		if enrollment.TotalTimeSpent < 0 {
			enrollment.TotalTimeSpent = 0
		}
	}

	enrollment.OverallProgress = weightedPercent(courseLectures(course), set)
	if enrollment.CompletedAt != nil && enrollment.OverallProgress < 100 {
		enrollment.CompletedAt = nil
	}

	if err := s.EnrollmentRepo.SaveProgress(enrollment, nil, lecture.ID); err != nil {
		return nil, err
	}

	return buildSummary(course, enrollment, remaining), nil
}

// GetProgress 只读查询当前进度及分章节明细
func (s *ProgressService) GetProgress(userID, courseID uint) (*ProgressSummary, error) {
	course, enrollment, err := s.loadCourseAndEnrollment(userID, courseID)
	if err != nil {
		return nil, err
	}

	completions, err := s.EnrollmentRepo.ListCompletions(enrollment.ID)
	if err != nil {
		return nil, err
	}

	return buildSummary(course, enrollment, completions), nil
}

func (s *ProgressService) loadCourseAndEnrollment(userID, courseID uint) (*model.Course, *model.Enrollment, error) {
	course, err := s.CourseRepo.FindByID(courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, util.ErrCourseNotFound
		}
		return nil, nil, err
	}

	enrollment, err := s.EnrollmentRepo.FindActive(userID, courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, util.ErrNotEnrolled
		}
		return nil, nil, err
	}

	return course, enrollment, nil
}

func buildSummary(course *model.Course, enrollment *model.Enrollment, completions []model.LessonCompletion) *ProgressSummary {
	set := completedSet(completions)

	summary := &ProgressSummary{
		CourseID:        course.ID,
		OverallProgress: enrollment.OverallProgress,
		TotalLectures:   course.LectureCount(),
		TotalTimeSpent:  enrollment.TotalTimeSpent,
		CompletedAt:     enrollment.CompletedAt,
		LastSectionID:   enrollment.LastSectionID,
		LastLectureID:   enrollment.LastLectureID,
	}

	// 分章节明细与总进度同一口径
	for i := range course.Sections {
		section := &course.Sections[i]
		done := 0
		for j := range section.Lectures {
			if set[section.Lectures[j].ID] {
				done++
			}
		}
		summary.Sections = append(summary.Sections, SectionProgress{
			SectionIndex:      section.Position,
			SectionID:         section.ID,
			Title:             section.Title,
			CompletedLectures: done,
			TotalLectures:     len(section.Lectures),
			Percentage:        weightedPercent(section.Lectures, set),
		})
	}

	// 完成记录换算回位置下标；结构中已不存在的记录不参与展示
	for i := range completions {
		completion := &completions[i]
		found := false
		for j := range course.Sections {
			section := &course.Sections[j]
			for k := range section.Lectures {
				if section.Lectures[k].ID == completion.LectureID {
					summary.Completions = append(summary.Completions, CompletedLesson{
						SectionIndex: section.Position,
						LectureIndex: section.Lectures[k].Position,
						SectionID:    section.ID,
						LectureID:    completion.LectureID,
						CompletedAt:  completion.CompletedAt,
						TimeSpent:    completion.TimeSpent,
					})
					summary.CompletedLectures++
					found = true
					break
				}
			}
			if found {
				break
			}
		}
	}

	return summary
}
