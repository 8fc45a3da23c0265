package enrollments

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Othello1111/edx-platform/internal/ir"
	"github.com/Othello1111/edx-platform/internal/query"
)

var programColumns = []string{
	"id", "program_uuid", "curriculum_uuid", "external_user_key",
	"user_id", "status", "created", "modified",
}

var courseColumns = []string{
	"id", "program_enrollment_id", "course_key", "status", "created", "modified",
}

// Enroll creates a program enrollment. Status defaults to pending when
// only an external key is given and enrolled otherwise.
func (s *Store) Enroll(ctx context.Context, req EnrollRequest) (ProgramEnrollment, error) {
	if req.ProgramUUID == "" || req.CurriculumUUID == "" {
		return ProgramEnrollment{}, fmt.Errorf("%w: program and curriculum are required", ErrInvalidEnrollment)
	}
	if req.ExternalUserKey == "" && req.UserID == 0 {
		return ProgramEnrollment{}, fmt.Errorf("%w: external user key or user is required", ErrInvalidEnrollment)
	}
	if req.Status == "" {
		req.Status = StatusEnrolled
		if req.UserID == 0 {
			req.Status = StatusPending
		}
	}
	if !ValidProgramStatus(req.Status) {
		return ProgramEnrollment{}, fmt.Errorf("%w: %q", ErrInvalidStatus, req.Status)
	}

	now := s.now()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO program_enrollments
			(program_uuid, curriculum_uuid, external_user_key, user_id, status, created, modified)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, req.ProgramUUID, req.CurriculumUUID, nullString(req.ExternalUserKey), nullInt(req.UserID), req.Status, now, now)
	if err != nil {
		return ProgramEnrollment{}, fmt.Errorf("enroll in %s: %w", req.ProgramUUID, constraintError(err, ErrDuplicateEnrollment))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return ProgramEnrollment{}, fmt.Errorf("enroll: %w", err)
	}
	s.logger.Debug("program enrollment created", "id", id, "program", req.ProgramUUID, "status", req.Status)
	return s.programEnrollmentByID(ctx, s.db, id)
}

// EnrollInCourse enrolls a program enrollment in a course run.
func (s *Store) EnrollInCourse(ctx context.Context, programEnrollmentID int64, courseKey, status string) (ProgramCourseEnrollment, error) {
	if courseKey == "" {
		return ProgramCourseEnrollment{}, fmt.Errorf("%w: course key is required", ErrInvalidEnrollment)
	}
	if status == "" {
		status = CourseStatusActive
	}
	if !ValidCourseStatus(status) {
		return ProgramCourseEnrollment{}, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	now := s.now()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO program_course_enrollments (program_enrollment_id, course_key, status, created, modified)
		VALUES (?, ?, ?, ?, ?)
	`, programEnrollmentID, courseKey, status, now, now)
	if err != nil {
		return ProgramCourseEnrollment{}, fmt.Errorf("enroll in course %s: %w", courseKey, constraintError(err, ErrDuplicateEnrollment))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return ProgramCourseEnrollment{}, fmt.Errorf("enroll in course: %w", err)
	}
	rows, err := s.courseEnrollments(ctx, s.db, query.Select{
		From:    "program_course_enrollments",
		Columns: courseColumns,
		Filter:  query.Equals{Field: "id", Value: ir.Int(id)},
	})
	if err != nil {
		return ProgramCourseEnrollment{}, err
	}
	return rows[0], nil
}

// SetStatus changes a program enrollment's status.
func (s *Store) SetStatus(ctx context.Context, id int64, status string) error {
	if !ValidProgramStatus(status) {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE program_enrollments SET status = ?, modified = ? WHERE id = ?
	`, status, s.now(), id)
	if err != nil {
		return fmt.Errorf("set status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %d", ErrEnrollmentNotFound, id)
	}
	return nil
}

// GetByExternalKey returns the enrollment of externalKey in a program, or
// nil when there is none.
func (s *Store) GetByExternalKey(ctx context.Context, programUUID, externalKey string) (*ProgramEnrollment, error) {
	return s.single(ctx, query.And{Predicates: []query.Predicate{
		query.Equals{Field: "program_uuid", Value: ir.String(programUUID)},
		query.Equals{Field: "external_user_key", Value: ir.String(externalKey)},
	}})
}

// GetByExternalKeys returns the enrollments in a program whose external
// keys are in externalKeys, ordered by ID. Unknown keys are skipped.
func (s *Store) GetByExternalKeys(ctx context.Context, programUUID string, externalKeys []string) ([]ProgramEnrollment, error) {
	values := make([]ir.Value, len(externalKeys))
	for i, k := range externalKeys {
		values[i] = ir.String(k)
	}
	return s.programEnrollments(ctx, s.reader(), query.Select{
		From:    "program_enrollments",
		Columns: programColumns,
		Filter: query.And{Predicates: []query.Predicate{
			query.Equals{Field: "program_uuid", Value: ir.String(programUUID)},
			query.In{Field: "external_user_key", Values: values},
		}},
	})
}

// GetByUser returns userID's enrollment in a program, or nil when there
// is none.
func (s *Store) GetByUser(ctx context.Context, programUUID string, userID int64) (*ProgramEnrollment, error) {
	return s.single(ctx, query.And{Predicates: []query.Predicate{
		query.Equals{Field: "program_uuid", Value: ir.String(programUUID)},
		query.Equals{Field: "user_id", Value: ir.Int(userID)},
	}})
}

// IsUserActivelyEnrolled reports whether userID has an enrollment in the
// program with an active status.
func (s *Store) IsUserActivelyEnrolled(ctx context.Context, programUUID string, userID int64) (bool, error) {
	statuses := make([]ir.Value, len(ActiveStatuses))
	for i, st := range ActiveStatuses {
		statuses[i] = ir.String(st)
	}
	rows, err := s.programEnrollments(ctx, s.reader(), query.Select{
		From:    "program_enrollments",
		Columns: programColumns,
		Filter: query.And{Predicates: []query.Predicate{
			query.Equals{Field: "program_uuid", Value: ir.String(programUUID)},
			query.Equals{Field: "user_id", Value: ir.Int(userID)},
			query.In{Field: "status", Values: statuses},
		}},
		Limit: 1,
	})
	if err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}

// PendingEnrollments returns a program's enrollments not yet linked to a
// platform user.
func (s *Store) PendingEnrollments(ctx context.Context, programUUID string) ([]ProgramEnrollment, error) {
	return s.programEnrollments(ctx, s.reader(), query.Select{
		From:    "program_enrollments",
		Columns: programColumns,
		Filter: query.And{Predicates: []query.Predicate{
			query.Equals{Field: "program_uuid", Value: ir.String(programUUID)},
			query.IsNull{Field: "user_id"},
		}},
	})
}

// CourseEnrollments returns the course enrollments of a program
// enrollment ordered by course key.
func (s *Store) CourseEnrollments(ctx context.Context, programEnrollmentID int64) ([]ProgramCourseEnrollment, error) {
	return s.courseEnrollments(ctx, s.reader(), query.Select{
		From:    "program_course_enrollments",
		Columns: courseColumns,
		Filter:  query.Equals{Field: "program_enrollment_id", Value: ir.Int(programEnrollmentID)},
		OrderBy: []string{"course_key"},
	})
}

func (s *Store) single(ctx context.Context, filter query.Predicate) (*ProgramEnrollment, error) {
	rows, err := s.programEnrollments(ctx, s.reader(), query.Select{
		From:    "program_enrollments",
		Columns: programColumns,
		Filter:  filter,
		Limit:   1,
	})
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return &rows[0], nil
}

func (s *Store) programEnrollmentByID(ctx context.Context, db *sql.DB, id int64) (ProgramEnrollment, error) {
	rows, err := s.programEnrollments(ctx, db, query.Select{
		From:    "program_enrollments",
		Columns: programColumns,
		Filter:  query.Equals{Field: "id", Value: ir.Int(id)},
	})
	if err != nil {
		return ProgramEnrollment{}, err
	}
	if len(rows) == 0 {
		return ProgramEnrollment{}, fmt.Errorf("%w: %d", ErrEnrollmentNotFound, id)
	}
	return rows[0], nil
}

func (s *Store) programEnrollments(ctx context.Context, db *sql.DB, q query.Select) ([]ProgramEnrollment, error) {
	sqlText, params, err := query.Compile(q)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, sqlText, params...)
	if err != nil {
		return nil, fmt.Errorf("query program enrollments: %w", err)
	}
	defer rows.Close()

	out := []ProgramEnrollment{}
	for rows.Next() {
		var (
			e                 ProgramEnrollment
			extKey            sql.NullString
			userID            sql.NullInt64
			created, modified string
		)
		if err := rows.Scan(&e.ID, &e.ProgramUUID, &e.CurriculumUUID, &extKey, &userID, &e.Status, &created, &modified); err != nil {
			return nil, fmt.Errorf("scan program enrollment: %w", err)
		}
		e.ExternalUserKey = extKey.String
		e.UserID = userID.Int64
		if e.Created, err = parseTime(created); err != nil {
			return nil, err
		}
		if e.Modified, err = parseTime(modified); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate program enrollments: %w", err)
	}
	return out, nil
}

func (s *Store) courseEnrollments(ctx context.Context, db *sql.DB, q query.Select) ([]ProgramCourseEnrollment, error) {
	sqlText, params, err := query.Compile(q)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, sqlText, params...)
	if err != nil {
		return nil, fmt.Errorf("query course enrollments: %w", err)
	}
	defer rows.Close()

	out := []ProgramCourseEnrollment{}
	for rows.Next() {
		var (
			e                 ProgramCourseEnrollment
			created, modified string
		)
		if err := rows.Scan(&e.ID, &e.ProgramEnrollmentID, &e.CourseKey, &e.Status, &created, &modified); err != nil {
			return nil, fmt.Errorf("scan course enrollment: %w", err)
		}
		if e.Created, err = parseTime(created); err != nil {
			return nil, err
		}
		if e.Modified, err = parseTime(modified); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate course enrollments: %w", err)
	}
	return out, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(n int64) sql.NullInt64 {
	return sql.NullInt64{Int64: n, Valid: n != 0}
}
