package enrollments

import (
	"context"
	"fmt"

	"github.com/Othello1111/edx-platform/internal/ir"
	"github.com/Othello1111/edx-platform/internal/query"
)

// CourseGrade is a learner's grade in one course run.
type CourseGrade struct {
	Passed      bool    `json:"passed"`
	Percent     float64 `json:"percent"`
	LetterGrade string  `json:"letter_grade"`
}

// Grader reads course grades.
type Grader interface {
	CourseGrade(ctx context.Context, userID int64, courseKey string) (CourseGrade, error)
}

// ProgramCourseGrade is either a grade or the reason it could not be
// loaded, for one learner in one course run.
type ProgramCourseGrade struct {
	StudentKey string       `json:"student_key"`
	Grade      *CourseGrade `json:"grade,omitempty"`
	Error      string       `json:"error,omitempty"`
}

// IsError reports whether the grade failed to load.
func (g ProgramCourseGrade) IsError() bool {
	return g.Grade == nil
}

// GradeOk builds a successful result.
func GradeOk(studentKey string, grade CourseGrade) ProgramCourseGrade {
	return ProgramCourseGrade{StudentKey: studentKey, Grade: &grade}
}

// GradeError builds a failed result. A nil err reads "Unknown error".
func GradeError(studentKey string, err error) ProgramCourseGrade {
	msg := "Unknown error"
	if err != nil {
		msg = err.Error()
	}
	return ProgramCourseGrade{StudentKey: studentKey, Error: msg}
}

// ProgramCourseGrades loads grades for every learner in a program who is
// enrolled in courseKey, in enrollment order. A failure for one learner
// becomes an error result; only database failures abort.
func (s *Store) ProgramCourseGrades(ctx context.Context, programUUID, courseKey string, grader Grader) ([]ProgramCourseGrade, error) {
	programs, err := s.programEnrollments(ctx, s.reader(), query.Select{
		From:    "program_enrollments",
		Columns: programColumns,
		Filter:  query.Equals{Field: "program_uuid", Value: ir.String(programUUID)},
	})
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]ProgramEnrollment, len(programs))
	ids := make([]ir.Value, len(programs))
	for i, p := range programs {
		byID[p.ID] = p
		ids[i] = ir.Int(p.ID)
	}

	courses, err := s.courseEnrollments(ctx, s.reader(), query.Select{
		From:    "program_course_enrollments",
		Columns: courseColumns,
		Filter: query.And{Predicates: []query.Predicate{
			query.Equals{Field: "course_key", Value: ir.String(courseKey)},
			query.In{Field: "program_enrollment_id", Values: ids},
		}},
		OrderBy: []string{"program_enrollment_id"},
	})
	if err != nil {
		return nil, err
	}

	results := make([]ProgramCourseGrade, 0, len(courses))
	for _, c := range courses {
		pe := byID[c.ProgramEnrollmentID]
		key := studentKey(pe)
		if pe.UserID == 0 {
			results = append(results, GradeError(key, fmt.Errorf("enrollment %d is not linked to a user", pe.ID)))
			continue
		}
		grade, err := grader.CourseGrade(ctx, pe.UserID, courseKey)
		if err != nil {
			results = append(results, GradeError(key, err))
			continue
		}
		results = append(results, GradeOk(key, grade))
	}
	return results, nil
}

// studentKey identifies a learner in grade reports: the external key when
// the school supplied one.
func studentKey(pe ProgramEnrollment) string {
	if pe.ExternalUserKey != "" {
		return pe.ExternalUserKey
	}
	return fmt.Sprintf("user:%d", pe.UserID)
}
