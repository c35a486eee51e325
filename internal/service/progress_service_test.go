package service

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/AiMarketingPartners/Aiq-Learning-Backend/internal/model"
	"github.com/AiMarketingPartners/Aiq-Learning-Backend/internal/util"
)

func newProgressFixture(t *testing.T, sections ...[]lectureSpec) (*ProgressService, *testRepos, *model.User, *model.Course) {
	t.Helper()
	db := newTestDB(t)
	repos := newTestRepos(db)

	instructor := mustCreateUser(t, db, "instructor")
	student := mustCreateUser(t, db, "student")
	course := mustCreateCourse(t, db, instructor.ID, sections...)
	mustEnroll(t, db, student.ID, course.ID)

	return NewProgressService(repos.course, repos.enrollment), repos, student, course
}

func TestWeightedPercentDurationWeighted(t *testing.T) {
	lectures := []model.Lecture{
		{BaseModel: model.BaseModel{ID: 1}, Duration: 100},
		{BaseModel: model.BaseModel{ID: 2}, Duration: 300},
	}

	got := weightedPercent(lectures, map[uint]bool{1: true})
	if got != 25 {
		t.Errorf("weightedPercent = %d, want 25", got)
	}

	got = weightedPercent(lectures, map[uint]bool{1: true, 2: true})
	if got != 100 {
		t.Errorf("weightedPercent all done = %d, want 100", got)
	}
}

func TestWeightedPercentCountFallback(t *testing.T) {
	// 时长全部缺失时退化为按课时数计数
	lectures := []model.Lecture{
		{BaseModel: model.BaseModel{ID: 1}},
		{BaseModel: model.BaseModel{ID: 2}},
		{BaseModel: model.BaseModel{ID: 3}},
		{BaseModel: model.BaseModel{ID: 4}},
	}

	if got := weightedPercent(lectures, map[uint]bool{3: true}); got != 25 {
		t.Errorf("weightedPercent = %d, want 25", got)
	}
}

func TestWeightedPercentEdgeCases(t *testing.T) {
	if got := weightedPercent(nil, nil); got != 0 {
		t.Errorf("empty course percent = %d, want 0", got)
	}

	// 结构中不存在的完成记录不参与计算
	lectures := []model.Lecture{{BaseModel: model.BaseModel{ID: 1}, Duration: 60}}
	if got := weightedPercent(lectures, map[uint]bool{99: true}); got != 0 {
		t.Errorf("orphan completion percent = %d, want 0", got)
	}
}

func TestCompleteLessonIdempotent(t *testing.T) {
	svc, repos, student, course := newProgressFixture(t,
		[]lectureSpec{{"视频一", model.LectureVideo, 100}, {"视频二", model.LectureVideo, 300}},
	)

	first, err := svc.CompleteLesson(student.ID, course.ID, 1, 1, 60)
	if err != nil {
		t.Fatalf("CompleteLesson: %v", err)
	}
	if first.OverallProgress != 25 {
		t.Errorf("OverallProgress = %d, want 25", first.OverallProgress)
	}
	if first.CompletedLectures != 1 {
		t.Errorf("CompletedLectures = %d, want 1", first.CompletedLectures)
	}

	// 重复完成：进度不变，时长累加，不产生新记录
	second, err := svc.CompleteLesson(student.ID, course.ID, 1, 1, 40)
	if err != nil {
		t.Fatalf("CompleteLesson repeat: %v", err)
	}
	if second.OverallProgress != 25 {
		t.Errorf("repeat OverallProgress = %d, want 25", second.OverallProgress)
	}
	if second.CompletedLectures != 1 {
		t.Errorf("repeat CompletedLectures = %d, want 1", second.CompletedLectures)
	}
	if second.TotalTimeSpent != 100 {
		t.Errorf("TotalTimeSpent = %d, want 100", second.TotalTimeSpent)
	}

	enrollment, err := repos.enrollment.FindActive(student.ID, course.ID)
	if err != nil {
		t.Fatalf("FindActive: %v", err)
	}
	completions, err := repos.enrollment.ListCompletions(enrollment.ID)
	if err != nil {
		t.Fatalf("ListCompletions: %v", err)
	}
	if len(completions) != 1 {
		t.Fatalf("completion rows = %d, want 1", len(completions))
	}
	if completions[0].TimeSpent != 100 {
		t.Errorf("completion TimeSpent = %d, want 100", completions[0].TimeSpent)
	}
}

func TestSaveProgressStaleVersionConflict(t *testing.T) {
	_, repos, student, course := newProgressFixture(t,
		[]lectureSpec{{"视频一", model.LectureVideo, 100}},
	)

	fresh, err := repos.enrollment.FindActive(student.ID, course.ID)
	if err != nil {
		t.Fatalf("FindActive: %v", err)
	}
	stale := *fresh

	// 先行写入推进版本号
	fresh.OverallProgress = 50
	if err := repos.enrollment.SaveProgress(fresh, nil, 0); err != nil {
		t.Fatalf("SaveProgress: %v", err)
	}

	// 携带旧版本的写入整体回滚，返回冲突
	stale.OverallProgress = 10
	if err := repos.enrollment.SaveProgress(&stale, nil, 0); !errors.Is(err, util.ErrProgressConflict) {
		t.Fatalf("stale SaveProgress = %v, want ErrProgressConflict", err)
	}

	reloaded, err := repos.enrollment.FindActive(student.ID, course.ID)
	if err != nil {
		t.Fatalf("FindActive after conflict: %v", err)
	}
	if reloaded.OverallProgress != 50 {
		t.Errorf("OverallProgress = %d, want 50 (先行写入保持不变)", reloaded.OverallProgress)
	}
	if reloaded.Version != fresh.Version {
		t.Errorf("Version = %d, want %d", reloaded.Version, fresh.Version)
	}
}

func TestCompleteLessonConcurrentWriters(t *testing.T) {
	svc, _, student, course := newProgressFixture(t,
		[]lectureSpec{{"视频一", model.LectureVideo, 100}, {"视频二", model.LectureVideo, 100}},
	)

	// 两个并发写不同课时：落败方在内部重试后也必须成功落库
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.CompleteLesson(student.ID, course.ID, 1, i+1, 30)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("concurrent CompleteLesson %d: %v", i+1, err)
		}
	}

	summary, err := svc.GetProgress(student.ID, course.ID)
	if err != nil {
		t.Fatalf("GetProgress: %v", err)
	}
	if summary.OverallProgress != 100 {
		t.Errorf("OverallProgress = %d, want 100", summary.OverallProgress)
	}
	if summary.CompletedLectures != 2 {
		t.Errorf("CompletedLectures = %d, want 2", summary.CompletedLectures)
	}
	if summary.TotalTimeSpent != 60 {
		t.Errorf("TotalTimeSpent = %d, want 60", summary.TotalTimeSpent)
	}
}

func TestUncompleteLessonInverse(t *testing.T) {
	svc, _, student, course := newProgressFixture(t,
		[]lectureSpec{{"视频一", model.LectureVideo, 100}, {"视频二", model.LectureVideo, 300}},
	)

	if _, err := svc.CompleteLesson(student.ID, course.ID, 1, 1, 60); err != nil {
		t.Fatalf("CompleteLesson: %v", err)
	}

	summary, err := svc.UncompleteLesson(student.ID, course.ID, 1, 1, 60)
	if err != nil {
		t.Fatalf("UncompleteLesson: %v", err)
	}
	if summary.OverallProgress != 0 {
		t.Errorf("OverallProgress after undo = %d, want 0", summary.OverallProgress)
	}
	if summary.CompletedLectures != 0 {
		t.Errorf("CompletedLectures after undo = %d, want 0", summary.CompletedLectures)
	}
	if summary.TotalTimeSpent != 0 {
		t.Errorf("TotalTimeSpent after undo = %d, want 0", summary.TotalTimeSpent)
	}
}

func TestUncompleteAbsentIsNoop(t *testing.T) {
	svc, _, student, course := newProgressFixture(t,
		[]lectureSpec{{"视频一", model.LectureVideo, 100}},
	)

	summary, err := svc.UncompleteLesson(student.ID, course.ID, 1, 1, 30)
	if err != nil {
		t.Fatalf("UncompleteLesson: %v", err)
	}
	if summary.OverallProgress != 0 || summary.TotalTimeSpent != 0 {
		t.Errorf("noop undo changed state: progress=%d time=%d", summary.OverallProgress, summary.TotalTimeSpent)
	}
}

func TestCompleteAllSetsCompletedAt(t *testing.T) {
	svc, _, student, course := newProgressFixture(t,
		[]lectureSpec{{"视频一", model.LectureVideo, 60}},
		[]lectureSpec{{"视频二", model.LectureVideo, 120}},
	)

	if _, err := svc.CompleteLesson(student.ID, course.ID, 1, 1, 0); err != nil {
		t.Fatalf("CompleteLesson: %v", err)
	}
	summary, err := svc.CompleteLesson(student.ID, course.ID, 2, 1, 0)
	if err != nil {
		t.Fatalf("CompleteLesson: %v", err)
	}
	if summary.OverallProgress != 100 {
		t.Fatalf("OverallProgress = %d, want 100", summary.OverallProgress)
	}
	if summary.CompletedAt == nil {
		t.Fatal("CompletedAt not set at 100%")
	}
	firstCompletedAt := *summary.CompletedAt

	// 回退跌出 100% 清除完成时间
	summary, err = svc.UncompleteLesson(student.ID, course.ID, 2, 1, 0)
	if err != nil {
		t.Fatalf("UncompleteLesson: %v", err)
	}
	if summary.CompletedAt != nil {
		t.Error("CompletedAt not cleared after dropping below 100%")
	}

	// 再次完成重新设置（时间不要求复用）
	summary, err = svc.CompleteLesson(student.ID, course.ID, 2, 1, 0)
	if err != nil {
		t.Fatalf("CompleteLesson again: %v", err)
	}
	if summary.CompletedAt == nil {
		t.Fatal("CompletedAt not set after re-completing")
	}
	if summary.CompletedAt.Before(firstCompletedAt.Add(-time.Second)) {
		t.Error("CompletedAt went backwards")
	}
}

func TestCompleteLessonValidation(t *testing.T) {
	svc, _, student, course := newProgressFixture(t,
		[]lectureSpec{{"视频一", model.LectureVideo, 60}},
	)

	if _, err := svc.CompleteLesson(student.ID, course.ID, 0, 1, 0); !errors.Is(err, util.ErrInvalidLessonIndex) {
		t.Errorf("zero section index err = %v, want ErrInvalidLessonIndex", err)
	}
	if _, err := svc.CompleteLesson(student.ID, course.ID, 1, 9, 0); !errors.Is(err, util.ErrLectureNotFound) {
		t.Errorf("out of range lecture err = %v, want ErrLectureNotFound", err)
	}
	if _, err := svc.CompleteLesson(student.ID, 9999, 1, 1, 0); !errors.Is(err, util.ErrCourseNotFound) {
		t.Errorf("unknown course err = %v, want ErrCourseNotFound", err)
	}
}

func TestCompleteLessonRequiresEnrollment(t *testing.T) {
	db := newTestDB(t)
	repos := newTestRepos(db)
	instructor := mustCreateUser(t, db, "instructor")
	outsider := mustCreateUser(t, db, "outsider")
	course := mustCreateCourse(t, db, instructor.ID, []lectureSpec{{"视频一", model.LectureVideo, 60}})

	svc := NewProgressService(repos.course, repos.enrollment)
	if _, err := svc.CompleteLesson(outsider.ID, course.ID, 1, 1, 0); !errors.Is(err, util.ErrNotEnrolled) {
		t.Errorf("err = %v, want ErrNotEnrolled", err)
	}
}

func TestGetProgressSectionBreakdown(t *testing.T) {
	svc, _, student, course := newProgressFixture(t,
		[]lectureSpec{{"视频一", model.LectureVideo, 60}, {"视频二", model.LectureVideo, 60}},
		[]lectureSpec{{"视频三", model.LectureVideo, 120}},
	)

	if _, err := svc.CompleteLesson(student.ID, course.ID, 1, 2, 30); err != nil {
		t.Fatalf("CompleteLesson: %v", err)
	}

	summary, err := svc.GetProgress(student.ID, course.ID)
	if err != nil {
		t.Fatalf("GetProgress: %v", err)
	}
	if len(summary.Sections) != 2 {
		t.Fatalf("sections = %d, want 2", len(summary.Sections))
	}
	if summary.Sections[0].CompletedLectures != 1 || summary.Sections[0].Percentage != 50 {
		t.Errorf("section 1 = %d done / %d%%, want 1 / 50%%", summary.Sections[0].CompletedLectures, summary.Sections[0].Percentage)
	}
	if summary.Sections[1].CompletedLectures != 0 || summary.Sections[1].Percentage != 0 {
		t.Errorf("section 2 = %d done / %d%%, want 0 / 0%%", summary.Sections[1].CompletedLectures, summary.Sections[1].Percentage)
	}
	if summary.LastLectureID == nil {
		t.Error("LastLectureID not recorded")
	}
	if len(summary.Completions) != 1 || summary.Completions[0].SectionIndex != 1 || summary.Completions[0].LectureIndex != 2 {
		t.Errorf("completions = %+v, want one entry at (1,2)", summary.Completions)
	}
}

// 课时被删除后（编号缺位），既有完成记录既不计入进度也不计入展示
func TestOrphanedCompletionTolerated(t *testing.T) {
	svc, repos, student, course := newProgressFixture(t,
		[]lectureSpec{{"视频一", model.LectureVideo, 100}, {"视频二", model.LectureVideo, 100}},
	)

	if _, err := svc.CompleteLesson(student.ID, course.ID, 1, 1, 0); err != nil {
		t.Fatalf("CompleteLesson: %v", err)
	}

	removed := course.Sections[0].Lectures[0]
	if err := repos.course.DeleteLecture(&removed); err != nil {
		t.Fatalf("DeleteLecture: %v", err)
	}

	summary, err := svc.GetProgress(student.ID, course.ID)
	if err != nil {
		t.Fatalf("GetProgress: %v", err)
	}
	if summary.TotalLectures != 1 {
		t.Errorf("TotalLectures = %d, want 1", summary.TotalLectures)
	}
	if summary.CompletedLectures != 0 {
		t.Errorf("CompletedLectures = %d, want 0 (orphan ignored)", summary.CompletedLectures)
	}
	if len(summary.Completions) != 0 {
		t.Errorf("Completions = %d entries, want 0", len(summary.Completions))
	}
}
