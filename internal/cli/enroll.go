package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Othello1111/edx-platform/internal/enrollments"
)

// EnrollmentsOptions holds flags shared by the enrollments commands.
type EnrollmentsOptions struct {
	*RootOptions
	DB string
}

// withStore opens the enrollment database, runs fn and outputs its result.
func (o *EnrollmentsOptions) withStore(cmd *cobra.Command, fn func(ctx context.Context, st *enrollments.Store) (any, error)) error {
	out := o.formatter(cmd)
	if o.DB == "" {
		return NewExitError(ExitCommandError, "--db is required")
	}
	st, err := enrollments.Open(o.DB, enrollments.WithLogger(newLogger(out.GetErrWriter(), slog.LevelWarn, o.Verbose)))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open enrollments", err)
	}
	defer st.Close()

	result, err := fn(cmd.Context(), st)
	if err != nil {
		return out.Fail(ExitFailure, cmd.Name()+" failed", err)
	}
	return out.Success(result)
}

// EnrollmentView is a program enrollment with its course enrollments.
type EnrollmentView struct {
	enrollments.ProgramEnrollment
	Active  bool                                  `json:"active"`
	Courses []enrollments.ProgramCourseEnrollment `json:"courses"`
}

func (v EnrollmentView) Text(w io.Writer) {
	who := v.ExternalUserKey
	if v.UserID != 0 {
		who = fmt.Sprintf("user %d", v.UserID)
	}
	fmt.Fprintf(w, "#%d %s in %s: %s\n", v.ID, who, v.ProgramUUID, v.Status)
	for _, c := range v.Courses {
		fmt.Fprintf(w, "  %s: %s\n", c.CourseKey, c.Status)
	}
}

// UserView is a created platform user.
type UserView enrollments.User

func (u UserView) Text(w io.Writer) {
	fmt.Fprintf(w, "user %d: %s\n", u.ID, u.Username)
}

// CourseView is a created program course enrollment.
type CourseView enrollments.ProgramCourseEnrollment

func (c CourseView) Text(w io.Writer) {
	fmt.Fprintf(w, "#%d %s: %s\n", c.ProgramEnrollmentID, c.CourseKey, c.Status)
}

// CatalogCheck answers a program structure question.
type CatalogCheck struct {
	Program   string `json:"program"`
	CourseKey string `json:"course_key,omitempty"`
	Exists    bool   `json:"exists"`
}

func (c CatalogCheck) Text(w io.Writer) {
	subject := c.Program
	if c.CourseKey != "" {
		subject = c.CourseKey + " in " + c.Program
	}
	fmt.Fprintf(w, "%s: %t\n", subject, c.Exists)
}

// NewEnrollmentsCommand creates the enrollments command group.
func NewEnrollmentsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EnrollmentsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:     "enrollments",
		Aliases: []string{"enroll"},
		Short:   "Manage platform users and program enrollments",
		Example: `  blockrt enrollments user-add alice --email alice@example.com
  blockrt enrollments enroll prog-1 --curriculum cur-1 --external-key ext-1
  blockrt enrollments course 1 course-v1:edX+DS101+2026
  blockrt enrollments show prog-1 --external-key ext-1
  blockrt enrollments check prog-1 course-v1:edX+DS101+2026 --catalog catalog.yaml`,
	}
	cmd.PersistentFlags().StringVar(&opts.DB, "db", "enrollments.db", "enrollments database file")

	cmd.AddCommand(newUserAddCommand(opts))
	cmd.AddCommand(newEnrollCommand(opts))
	cmd.AddCommand(newCourseEnrollCommand(opts))
	cmd.AddCommand(newSetStatusCommand(opts))
	cmd.AddCommand(newShowEnrollmentCommand(opts))
	cmd.AddCommand(newCatalogCheckCommand(opts))
	return cmd
}

func newUserAddCommand(opts *EnrollmentsOptions) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "user-add <username>",
		Short: "Create a platform user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(cmd, func(ctx context.Context, st *enrollments.Store) (any, error) {
				u, err := st.CreateUser(ctx, args[0], email)
				return UserView(u), err
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email address")
	return cmd
}

func newEnrollCommand(opts *EnrollmentsOptions) *cobra.Command {
	var req enrollments.EnrollRequest
	cmd := &cobra.Command{
		Use:   "enroll <program-uuid>",
		Short: "Enroll a learner in a program",
		Long: `Enroll a platform user (--user) or an external learner (--external-key)
in a program. The status defaults to pending for external-only learners
and enrolled otherwise.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.ProgramUUID = args[0]
			return opts.withStore(cmd, func(ctx context.Context, st *enrollments.Store) (any, error) {
				pe, err := st.Enroll(ctx, req)
				if err != nil {
					return nil, err
				}
				return EnrollmentView{ProgramEnrollment: pe, Active: pe.IsActive(), Courses: []enrollments.ProgramCourseEnrollment{}}, nil
			})
		},
	}
	cmd.Flags().StringVar(&req.CurriculumUUID, "curriculum", "", "curriculum UUID (required)")
	cmd.Flags().StringVar(&req.ExternalUserKey, "external-key", "", "external user key")
	cmd.Flags().Int64Var(&req.UserID, "user", 0, "platform user ID")
	cmd.Flags().StringVar(&req.Status, "status", "", "enrollment status")
	cmd.MarkFlagRequired("curriculum")
	return cmd
}

func newCourseEnrollCommand(opts *EnrollmentsOptions) *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "course <program-enrollment-id> <course-key>",
		Short: "Enroll a program enrollment in a course run",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid program enrollment id", err)
			}
			return opts.withStore(cmd, func(ctx context.Context, st *enrollments.Store) (any, error) {
				ce, err := st.EnrollInCourse(ctx, id, args[1], status)
				return CourseView(ce), err
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "course enrollment status (default active)")
	return cmd
}

func newSetStatusCommand(opts *EnrollmentsOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set-status <program-enrollment-id> <status>",
		Short: "Change a program enrollment's status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid program enrollment id", err)
			}
			return opts.withStore(cmd, func(ctx context.Context, st *enrollments.Store) (any, error) {
				if err := st.SetStatus(ctx, id, args[1]); err != nil {
					return nil, err
				}
				return fmt.Sprintf("enrollment %d: %s", id, args[1]), nil
			})
		},
	}
}

func newShowEnrollmentCommand(opts *EnrollmentsOptions) *cobra.Command {
	var userID int64
	var externalKey string
	cmd := &cobra.Command{
		Use:   "show <program-uuid>",
		Short: "Show a learner's program enrollment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (userID == 0) == (externalKey == "") {
				return NewExitError(ExitCommandError, "exactly one of --user or --external-key is required")
			}
			return opts.withStore(cmd, func(ctx context.Context, st *enrollments.Store) (any, error) {
				var pe *enrollments.ProgramEnrollment
				var err error
				if userID != 0 {
					pe, err = st.GetByUser(ctx, args[0], userID)
				} else {
					pe, err = st.GetByExternalKey(ctx, args[0], externalKey)
				}
				if err != nil {
					return nil, err
				}
				if pe == nil {
					return nil, fmt.Errorf("%w in program %s", enrollments.ErrEnrollmentNotFound, args[0])
				}
				courses, err := st.CourseEnrollments(ctx, pe.ID)
				if err != nil {
					return nil, err
				}
				return EnrollmentView{ProgramEnrollment: *pe, Active: pe.IsActive(), Courses: courses}, nil
			})
		},
	}
	cmd.Flags().Int64Var(&userID, "user", 0, "platform user ID")
	cmd.Flags().StringVar(&externalKey, "external-key", "", "external user key")
	return cmd
}

func newCatalogCheckCommand(opts *EnrollmentsOptions) *cobra.Command {
	var catalogPath string
	cmd := &cobra.Command{
		Use:   "check <program-uuid> [course-key]",
		Short: "Check a program, or a course run in it, against the catalog",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := opts.formatter(cmd)
			cat, err := enrollments.LoadCatalog(catalogPath)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to load catalog", err)
			}
			check := CatalogCheck{Program: args[0]}
			if len(args) == 2 {
				check.CourseKey = args[1]
				check.Exists, err = enrollments.DoesCourseRunExistInProgram(cmd.Context(), cat, args[0], args[1])
			} else {
				check.Exists, err = enrollments.DoesProgramExist(cmd.Context(), cat, args[0])
			}
			if err != nil {
				return out.Fail(ExitFailure, "catalog check failed", err)
			}
			return out.Success(check)
		},
	}
	cmd.Flags().StringVar(&catalogPath, "catalog", "", "YAML program catalog (required)")
	cmd.MarkFlagRequired("catalog")
	return cmd
}
