package service

import (
	"errors"
	"testing"

	"github.com/AiMarketingPartners/Aiq-Learning-Backend/internal/model"
	"github.com/AiMarketingPartners/Aiq-Learning-Backend/internal/util"
)

func newEnrollmentFixture(t *testing.T) (*EnrollmentService, *ProgressService, *testRepos, *model.User, *model.Course) {
	t.Helper()
	db := newTestDB(t)
	repos := newTestRepos(db)

	instructor := mustCreateUser(t, db, "instructor")
	student := mustCreateUser(t, db, "student")
	course := mustCreateCourse(t, db, instructor.ID,
		[]lectureSpec{{"视频一", model.LectureVideo, 60}, {"视频二", model.LectureVideo, 60}},
	)

	return NewEnrollmentService(repos.enrollment, repos.course),
		NewProgressService(repos.course, repos.enrollment),
		repos, student, course
}

func TestEnrollIdempotent(t *testing.T) {
	svc, _, _, student, course := newEnrollmentFixture(t)

	first, err := svc.Enroll(student.ID, course.ID)
	if err != nil {
		t.Fatalf("Enroll: %v", err)
	}
	second, err := svc.Enroll(student.ID, course.ID)
	if err != nil {
		t.Fatalf("repeat Enroll: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("repeat enroll created new row: %d != %d", second.ID, first.ID)
	}
}

func TestEnrollUnpublishedCourse(t *testing.T) {
	svc, _, repos, student, course := newEnrollmentFixture(t)

	if err := repos.course.DB.Model(&model.Course{}).Where("id = ?", course.ID).
		Update("published", false).Error; err != nil {
		t.Fatalf("unpublish: %v", err)
	}

	if _, err := svc.Enroll(student.ID, course.ID); !errors.Is(err, util.ErrCourseNotFound) {
		t.Errorf("err = %v, want ErrCourseNotFound for unpublished course", err)
	}
}

// 退课后重新选课恢复原选课记录：进度与首次选课时间保留
func TestReenrollPreservesProgress(t *testing.T) {
	svc, progress, _, student, course := newEnrollmentFixture(t)

	original, err := svc.Enroll(student.ID, course.ID)
	if err != nil {
		t.Fatalf("Enroll: %v", err)
	}
	if _, err := progress.CompleteLesson(student.ID, course.ID, 1, 1, 30); err != nil {
		t.Fatalf("CompleteLesson: %v", err)
	}

	if err := svc.Unenroll(student.ID, course.ID); err != nil {
		t.Fatalf("Unenroll: %v", err)
	}

	// 退课后进度接口不可用
	if _, err := progress.GetProgress(student.ID, course.ID); !errors.Is(err, util.ErrNotEnrolled) {
		t.Errorf("GetProgress after unenroll err = %v, want ErrNotEnrolled", err)
	}

	revived, err := svc.Enroll(student.ID, course.ID)
	if err != nil {
		t.Fatalf("re-Enroll: %v", err)
	}
	if revived.ID != original.ID {
		t.Errorf("re-enroll created new row: %d != %d", revived.ID, original.ID)
	}
	if !revived.EnrolledAt.Equal(original.EnrolledAt) {
		t.Errorf("EnrolledAt changed on re-enroll: %v != %v", revived.EnrolledAt, original.EnrolledAt)
	}

	summary, err := progress.GetProgress(student.ID, course.ID)
	if err != nil {
		t.Fatalf("GetProgress after re-enroll: %v", err)
	}
	if summary.OverallProgress != 50 {
		t.Errorf("OverallProgress = %d, want 50 preserved across unenroll", summary.OverallProgress)
	}
}

func TestUnenrollNotEnrolled(t *testing.T) {
	svc, _, _, student, course := newEnrollmentFixture(t)

	if err := svc.Unenroll(student.ID, course.ID); !errors.Is(err, util.ErrNotEnrolled) {
		t.Errorf("err = %v, want ErrNotEnrolled", err)
	}
}

func TestListMyCoursesOnlyActive(t *testing.T) {
	svc, _, repos, student, course := newEnrollmentFixture(t)

	instructor2 := mustCreateUser(t, repos.course.DB, "instructor2")
	other := mustCreateCourse(t, repos.course.DB, instructor2.ID,
		[]lectureSpec{{"视频", model.LectureVideo, 60}},
	)

	if _, err := svc.Enroll(student.ID, course.ID); err != nil {
		t.Fatalf("Enroll: %v", err)
	}
	if _, err := svc.Enroll(student.ID, other.ID); err != nil {
		t.Fatalf("Enroll other: %v", err)
	}
	if err := svc.Unenroll(student.ID, other.ID); err != nil {
		t.Fatalf("Unenroll other: %v", err)
	}

	enrollments, err := svc.ListMyCourses(student.ID)
	if err != nil {
		t.Fatalf("ListMyCourses: %v", err)
	}
	if len(enrollments) != 1 || enrollments[0].CourseID != course.ID {
		t.Errorf("enrollments = %+v, want only active enrollment for course %d", enrollments, course.ID)
	}
}
