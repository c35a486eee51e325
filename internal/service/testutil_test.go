package service

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/AiMarketingPartners/Aiq-Learning-Backend/internal/model"
	"github.com/AiMarketingPartners/Aiq-Learning-Backend/internal/repository"
	"github.com/AiMarketingPartners/Aiq-Learning-Backend/pkg/database"
	"github.com/AiMarketingPartners/Aiq-Learning-Backend/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var testDBSeq int64

func TestMain(m *testing.M) {
	logger.Log = zap.NewNop()
	m.Run()
}

// newTestDB 每个测试一份独立的内存库，迁移与生产共用同一份定义
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:svc_test_%d?mode=memory&cache=shared", atomic.AddInt64(&testDBSeq, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

type testRepos struct {
	user        *repository.UserRepository
	course      *repository.CourseRepository
	enrollment  *repository.EnrollmentRepository
	quizAttempt *repository.QuizAttemptRepository
	certificate *repository.CertificateRepository
}

func newTestRepos(db *gorm.DB) *testRepos {
	return &testRepos{
		user:        repository.NewUserRepository(db),
		course:      repository.NewCourseRepository(db),
		enrollment:  repository.NewEnrollmentRepository(db),
		quizAttempt: repository.NewQuizAttemptRepository(db),
		certificate: repository.NewCertificateRepository(db),
	}
}

func mustCreateUser(t *testing.T, db *gorm.DB, name string) *model.User {
	t.Helper()
	user := &model.User{
		Name:     name,
		Email:    fmt.Sprintf("%s-%d@example.com", name, time.Now().UnixNano()),
		Password: "hashed",
		Role:     model.Student,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

type lectureSpec struct {
	title    string
	typ      model.LectureType
	duration int
}

// mustCreateCourse 按给定结构建一门已发布课程，每个 []lectureSpec 是一个章节
func mustCreateCourse(t *testing.T, db *gorm.DB, instructorID uint, sections ...[]lectureSpec) *model.Course {
	t.Helper()

	course := &model.Course{
		Title:        "测试课程",
		InstructorID: instructorID,
		Published:    true,
		Certificate: model.CertificateConfig{
			CompletionRequirement: 100,
			PassingScore:          70,
			Template:              "classic",
		},
	}
	if err := db.Create(course).Error; err != nil {
		t.Fatalf("create course: %v", err)
	}

	for si, specs := range sections {
		section := &model.Section{
			CourseID: course.ID,
			Title:    fmt.Sprintf("第%d章", si+1),
			Position: si + 1,
		}
		if err := db.Create(section).Error; err != nil {
			t.Fatalf("create section: %v", err)
		}
		for li, spec := range specs {
			lecture := &model.Lecture{
				SectionID: section.ID,
				Title:     spec.title,
				Type:      spec.typ,
				Position:  li + 1,
				Duration:  spec.duration,
			}
			if err := db.Create(lecture).Error; err != nil {
				t.Fatalf("create lecture: %v", err)
			}
		}
	}

	return mustReloadCourse(t, repository.NewCourseRepository(db), course.ID)
}

func mustReloadCourse(t *testing.T, repo *repository.CourseRepository, id uint) *model.Course {
	t.Helper()
	course, err := repo.FindByID(id)
	if err != nil {
		t.Fatalf("reload course: %v", err)
	}
	return course
}

func mustEnroll(t *testing.T, db *gorm.DB, userID, courseID uint) *model.Enrollment {
	t.Helper()
	enrollment := &model.Enrollment{
		UserID:     userID,
		CourseID:   courseID,
		IsActive:   true,
		EnrolledAt: time.Now(),
	}
	if err := db.Create(enrollment).Error; err != nil {
		t.Fatalf("create enrollment: %v", err)
	}
	return enrollment
}

func mustJSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

// addQuizQuestions 给课时挂测验题并标记计分
func addQuizQuestions(t *testing.T, db *gorm.DB, lectureID uint, passingScore int, questions ...model.QuizQuestion) {
	t.Helper()
	if err := db.Model(&model.Lecture{}).Where("id = ?", lectureID).
		Updates(map[string]interface{}{"is_graded": true, "passing_score": passingScore}).Error; err != nil {
		t.Fatalf("mark lecture graded: %v", err)
	}
	for i := range questions {
		questions[i].LectureID = lectureID
		questions[i].Position = i + 1
		if err := db.Create(&questions[i]).Error; err != nil {
			t.Fatalf("create question: %v", err)
		}
	}
}
