package util

import "errors"

var (
	ErrUserNotFound        = errors.New("用户不存在")
	ErrEmailRegistered     = errors.New("该邮箱已被注册")
	ErrPermissionDenied    = errors.New("permission denied")
	ErrCourseNotFound      = errors.New("course not found")
	ErrSectionNotFound     = errors.New("section not found")
	ErrLectureNotFound     = errors.New("lecture not found")
	ErrNotEnrolled         = errors.New("not enrolled")
	ErrInvalidLessonIndex  = errors.New("invalid section/lecture index")
	ErrInvalidPosition     = errors.New("position out of range")
	ErrInvalidQuestion     = errors.New("invalid question definition")
	ErrNotQuizLecture      = errors.New("lecture is not a quiz")
	ErrAnswerCountMismatch = errors.New("answer count does not match question count")
	ErrProgressConflict    = errors.New("progress update conflict, please retry")
	ErrCertificateNotFound = errors.New("certificate not found")
)
