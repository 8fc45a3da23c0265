package enrollments

import (
	"errors"
	"slices"
	"time"
)

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrDuplicateUser       = errors.New("username already taken")
	ErrEnrollmentNotFound  = errors.New("program enrollment not found")
	ErrDuplicateEnrollment = errors.New("enrollment already exists")
	ErrInvalidStatus       = errors.New("invalid enrollment status")
	ErrInvalidEnrollment   = errors.New("invalid enrollment")
)

// Program enrollment statuses.
const (
	StatusEnrolled  = "enrolled"
	StatusPending   = "pending"
	StatusSuspended = "suspended"
	StatusCanceled  = "canceled"
)

// Program course enrollment statuses.
const (
	CourseStatusActive   = "active"
	CourseStatusInactive = "inactive"
)

var (
	programStatuses = []string{StatusEnrolled, StatusPending, StatusSuspended, StatusCanceled}
	courseStatuses  = []string{CourseStatusActive, CourseStatusInactive}

	// ActiveStatuses are the program statuses that count as actively
	// enrolled.
	ActiveStatuses = []string{StatusEnrolled}
)

// ValidProgramStatus reports whether s is a program enrollment status.
func ValidProgramStatus(s string) bool { return slices.Contains(programStatuses, s) }

// ValidCourseStatus reports whether s is a program course enrollment status.
func ValidCourseStatus(s string) bool { return slices.Contains(courseStatuses, s) }

// User is a platform account.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
}

// ProgramEnrollment links a learner to a program. ExternalUserKey is ""
// and UserID is 0 when unset; at least one is always set.
type ProgramEnrollment struct {
	ID              int64     `json:"id"`
	ProgramUUID     string    `json:"program_uuid"`
	CurriculumUUID  string    `json:"curriculum_uuid"`
	ExternalUserKey string    `json:"external_user_key,omitempty"`
	UserID          int64     `json:"user_id,omitempty"`
	Status          string    `json:"status"`
	Created         time.Time `json:"created"`
	Modified        time.Time `json:"modified"`
}

// IsActive reports whether the enrollment's status is active.
func (e ProgramEnrollment) IsActive() bool {
	return slices.Contains(ActiveStatuses, e.Status)
}

// ProgramCourseEnrollment enrolls a program learner in one course run.
type ProgramCourseEnrollment struct {
	ID                  int64     `json:"id"`
	ProgramEnrollmentID int64     `json:"program_enrollment_id"`
	CourseKey           string    `json:"course_key"`
	Status              string    `json:"status"`
	Created             time.Time `json:"created"`
	Modified            time.Time `json:"modified"`
}

// EnrollRequest describes a new program enrollment.
type EnrollRequest struct {
	ProgramUUID     string
	CurriculumUUID  string
	ExternalUserKey string
	UserID          int64
	Status          string
}
