package service

import (
	"errors"
	"testing"

	"github.com/AiMarketingPartners/Aiq-Learning-Backend/internal/model"
	"github.com/AiMarketingPartners/Aiq-Learning-Backend/internal/util"
)

func singleQuestion(t *testing.T, id uint, correct int) model.QuizQuestion {
	t.Helper()
	return model.QuizQuestion{
		BaseModel:      model.BaseModel{ID: id},
		Type:           model.QuestionSingle,
		Text:           "单选题",
		Options:        mustJSON(t, []string{"A", "B", "C", "D"}),
		CorrectAnswers: mustJSON(t, []int{correct}),
	}
}

func multipleQuestion(t *testing.T, id uint, correct ...int) model.QuizQuestion {
	t.Helper()
	return model.QuizQuestion{
		BaseModel:      model.BaseModel{ID: id},
		Type:           model.QuestionMultiple,
		Text:           "多选题",
		Options:        mustJSON(t, []string{"A", "B", "C", "D"}),
		CorrectAnswers: mustJSON(t, correct),
	}
}

func TestGradeQuizMalformedCorrectAnswers(t *testing.T) {
	// 损坏的答案数据按无正确答案对待：任何提交都判错，不影响其余题目
	questions := []model.QuizQuestion{
		{
			BaseModel:      model.BaseModel{ID: 1},
			Type:           model.QuestionSingle,
			Text:           "坏数据",
			Options:        mustJSON(t, []string{"A", "B"}),
			CorrectAnswers: []byte("{not json"),
		},
		singleQuestion(t, 2, 0),
	}

	grade := GradeQuiz(questions, [][]int{{0}, {0}})
	if grade.Results[0].Correct {
		t.Error("question with malformed correct answers graded as correct")
	}
	if !grade.Results[1].Correct {
		t.Error("healthy question affected by malformed sibling")
	}
	if grade.Score != 50 {
		t.Errorf("Score = %d, want 50", grade.Score)
	}
}

func TestGradeQuizSingleChoice(t *testing.T) {
	questions := []model.QuizQuestion{singleQuestion(t, 1, 2)}

	cases := []struct {
		name    string
		answers [][]int
		correct bool
	}{
		{"命中正确选项", [][]int{{2}}, true},
		{"选错", [][]int{{0}}, false},
		{"多选视为错误", [][]int{{1, 2}}, false},
		{"空选视为错误", [][]int{{}}, false},
		{"缺失答案视为错误", [][]int{}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			grade := GradeQuiz(questions, tc.answers)
			if got := grade.Results[0].Correct; got != tc.correct {
				t.Errorf("correct = %v, want %v", got, tc.correct)
			}
		})
	}
}

func TestGradeQuizMultipleChoice(t *testing.T) {
	questions := []model.QuizQuestion{multipleQuestion(t, 1, 0, 2)}

	cases := []struct {
		name    string
		answers [][]int
		correct bool
	}{
		{"集合完全相等", [][]int{{0, 2}}, true},
		{"顺序无关", [][]int{{2, 0}}, true},
		{"重复选择不影响", [][]int{{0, 2, 2}}, true},
		{"缺选", [][]int{{0}}, false},
		{"多选", [][]int{{0, 1, 2}}, false},
		{"空选", [][]int{{}}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			grade := GradeQuiz(questions, tc.answers)
			if got := grade.Results[0].Correct; got != tc.correct {
				t.Errorf("correct = %v, want %v", got, tc.correct)
			}
		})
	}
}

func TestGradeQuizScore(t *testing.T) {
	questions := []model.QuizQuestion{
		singleQuestion(t, 1, 0),
		singleQuestion(t, 2, 1),
		multipleQuestion(t, 3, 1, 3),
	}

	// 2/3 正确 → 四舍五入 67
	grade := GradeQuiz(questions, [][]int{{0}, {3}, {1, 3}})
	if grade.CorrectCount != 2 {
		t.Errorf("CorrectCount = %d, want 2", grade.CorrectCount)
	}
	if grade.Score != 67 {
		t.Errorf("Score = %d, want 67", grade.Score)
	}
}

func TestGradeQuizEmpty(t *testing.T) {
	grade := GradeQuiz(nil, nil)
	if grade.Score != 0 || grade.Total != 0 {
		t.Errorf("empty quiz grade = %+v, want zero score", grade)
	}
}

func newQuizFixture(t *testing.T, passingScore int) (*QuizService, *ProgressService, *model.User, *model.Course) {
	t.Helper()
	db := newTestDB(t)
	repos := newTestRepos(db)

	instructor := mustCreateUser(t, db, "instructor")
	student := mustCreateUser(t, db, "student")
	course := mustCreateCourse(t, db, instructor.ID,
		[]lectureSpec{
			{"视频一", model.LectureVideo, 120},
			{"随堂测验", model.LectureQuiz, 0},
		},
	)

	quizLecture := course.Sections[0].Lectures[1]
	addQuizQuestions(t, db, quizLecture.ID, passingScore,
		model.QuizQuestion{Type: model.QuestionSingle, Text: "Q1", Options: mustJSON(t, []string{"A", "B"}), CorrectAnswers: mustJSON(t, []int{0})},
		model.QuizQuestion{Type: model.QuestionMultiple, Text: "Q2", Options: mustJSON(t, []string{"A", "B", "C"}), CorrectAnswers: mustJSON(t, []int{0, 1})},
	)
	mustEnroll(t, db, student.ID, course.ID)

	progress := NewProgressService(repos.course, repos.enrollment)
	quiz := NewQuizService(repos.course, repos.enrollment, repos.quizAttempt, progress)
	return quiz, progress, student, course
}

func TestSubmitQuizPassAutoCompletes(t *testing.T) {
	quiz, progress, student, course := newQuizFixture(t, 70)

	resp, err := quiz.SubmitQuiz(student.ID, course.ID, QuizSubmissionRequest{
		SectionIndex: 1,
		LectureIndex: 2,
		Answers:      [][]int{{0}, {1, 0}},
		TimeTaken:    90,
	})
	if err != nil {
		t.Fatalf("SubmitQuiz: %v", err)
	}
	if resp.Score != 100 {
		t.Errorf("Score = %d, want 100", resp.Score)
	}
	if resp.Passed == nil || !*resp.Passed {
		t.Errorf("Passed = %v, want true", resp.Passed)
	}

	summary, err := progress.GetProgress(student.ID, course.ID)
	if err != nil {
		t.Fatalf("GetProgress: %v", err)
	}
	if summary.CompletedLectures != 1 {
		t.Errorf("CompletedLectures after pass = %d, want 1", summary.CompletedLectures)
	}
}

func TestSubmitQuizFailDoesNotComplete(t *testing.T) {
	quiz, progress, student, course := newQuizFixture(t, 70)

	resp, err := quiz.SubmitQuiz(student.ID, course.ID, QuizSubmissionRequest{
		SectionIndex: 1,
		LectureIndex: 2,
		Answers:      [][]int{{1}, {2}},
	})
	if err != nil {
		t.Fatalf("SubmitQuiz: %v", err)
	}
	if resp.Score != 0 {
		t.Errorf("Score = %d, want 0", resp.Score)
	}
	if resp.Passed == nil || *resp.Passed {
		t.Errorf("Passed = %v, want false", resp.Passed)
	}

	summary, err := progress.GetProgress(student.ID, course.ID)
	if err != nil {
		t.Fatalf("GetProgress: %v", err)
	}
	if summary.CompletedLectures != 0 {
		t.Errorf("CompletedLectures after fail = %d, want 0", summary.CompletedLectures)
	}

	// 失败的提交也保留为历史记录
	attempts, err := quiz.ListAttempts(student.ID, course.ID, 0)
	if err != nil {
		t.Fatalf("ListAttempts: %v", err)
	}
	if len(attempts) != 1 {
		t.Errorf("attempts = %d, want 1", len(attempts))
	}
}

func TestSubmitQuizUngraded(t *testing.T) {
	db := newTestDB(t)
	repos := newTestRepos(db)
	instructor := mustCreateUser(t, db, "instructor")
	student := mustCreateUser(t, db, "student")
	course := mustCreateCourse(t, db, instructor.ID,
		[]lectureSpec{{"自测", model.LectureQuiz, 0}},
	)

	// 不计分测验：只挂题目，不设 is_graded
	q := model.QuizQuestion{
		LectureID:      course.Sections[0].Lectures[0].ID,
		Position:       1,
		Type:           model.QuestionSingle,
		Text:           "Q1",
		Options:        mustJSON(t, []string{"A", "B"}),
		CorrectAnswers: mustJSON(t, []int{0}),
	}
	if err := db.Create(&q).Error; err != nil {
		t.Fatalf("create question: %v", err)
	}
	mustEnroll(t, db, student.ID, course.ID)

	progress := NewProgressService(repos.course, repos.enrollment)
	quiz := NewQuizService(repos.course, repos.enrollment, repos.quizAttempt, progress)

	resp, err := quiz.SubmitQuiz(student.ID, course.ID, QuizSubmissionRequest{
		SectionIndex: 1,
		LectureIndex: 1,
		Answers:      [][]int{{1}}, // 答错也算完成
	})
	if err != nil {
		t.Fatalf("SubmitQuiz: %v", err)
	}
	if resp.Passed != nil {
		t.Errorf("Passed = %v, want nil for ungraded quiz", resp.Passed)
	}

	summary, err := progress.GetProgress(student.ID, course.ID)
	if err != nil {
		t.Fatalf("GetProgress: %v", err)
	}
	if summary.CompletedLectures != 1 {
		t.Errorf("CompletedLectures = %d, want 1 (ungraded submission completes)", summary.CompletedLectures)
	}
}

func TestSubmitQuizValidation(t *testing.T) {
	quiz, _, student, course := newQuizFixture(t, 70)

	// 答案数量与题目数量不符
	_, err := quiz.SubmitQuiz(student.ID, course.ID, QuizSubmissionRequest{
		SectionIndex: 1, LectureIndex: 2, Answers: [][]int{{0}},
	})
	if !errors.Is(err, util.ErrAnswerCountMismatch) {
		t.Errorf("err = %v, want ErrAnswerCountMismatch", err)
	}

	// 视频课时不能提交测验
	_, err = quiz.SubmitQuiz(student.ID, course.ID, QuizSubmissionRequest{
		SectionIndex: 1, LectureIndex: 1, Answers: [][]int{},
	})
	if !errors.Is(err, util.ErrNotQuizLecture) {
		t.Errorf("err = %v, want ErrNotQuizLecture", err)
	}

	// 位置越界
	_, err = quiz.SubmitQuiz(student.ID, course.ID, QuizSubmissionRequest{
		SectionIndex: 5, LectureIndex: 1, Answers: [][]int{},
	})
	if !errors.Is(err, util.ErrLectureNotFound) {
		t.Errorf("err = %v, want ErrLectureNotFound", err)
	}
}

func TestSubmitQuizAttemptsAreImmutableHistory(t *testing.T) {
	quiz, _, student, course := newQuizFixture(t, 70)

	submissions := [][][]int{
		{{1}, {2}},       // 0 分
		{{0}, {2}},       // 50 分
		{{0}, {0, 1}},    // 100 分
	}
	for _, answers := range submissions {
		if _, err := quiz.SubmitQuiz(student.ID, course.ID, QuizSubmissionRequest{
			SectionIndex: 1, LectureIndex: 2, Answers: answers,
		}); err != nil {
			t.Fatalf("SubmitQuiz: %v", err)
		}
	}

	attempts, err := quiz.ListAttempts(student.ID, course.ID, course.Sections[0].Lectures[1].ID)
	if err != nil {
		t.Fatalf("ListAttempts: %v", err)
	}
	if len(attempts) != 3 {
		t.Fatalf("attempts = %d, want 3", len(attempts))
	}
	wantScores := []int{0, 50, 100}
	for i, attempt := range attempts {
		if attempt.Score != wantScores[i] {
			t.Errorf("attempt %d score = %d, want %d", i, attempt.Score, wantScores[i])
		}
	}
}
