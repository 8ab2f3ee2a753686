package university

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/storelabs/storelabs/internal/config"
	"github.com/storelabs/storelabs/internal/errors"
	"github.com/storelabs/storelabs/internal/report"
	"github.com/storelabs/storelabs/internal/sqlstore"
)

// studentBatchSize keeps multi-row inserts well under the 65535 bind limit.
const studentBatchSize = 1000

// Store runs the university workload against one PostgreSQL database.
type Store struct {
	db     *sql.DB
	logger logrus.FieldLogger
	stats  *report.Stats
}

// CreateDatabase creates cfg.Database through the maintenance database if it
// does not exist yet.
func CreateDatabase(ctx context.Context, cfg config.PostgresConfig) error {
	admin := cfg
	admin.Database = "postgres"
	db, err := sqlstore.Open(ctx, sqlstore.Postgres, admin.DSN())
	if err != nil {
		return err
	}
	defer db.Close()

	var exists bool
	if err := db.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)", cfg.Database).Scan(&exists); err != nil {
		return errors.NewQueryError("check database "+cfg.Database, err)
	}
	if exists {
		return nil
	}
	if _, err := db.ExecContext(ctx, "CREATE DATABASE "+pq.QuoteIdentifier(cfg.Database)); err != nil {
		return errors.NewQueryError("create database "+cfg.Database, err)
	}
	return nil
}

// Open connects to the university database.
func Open(ctx context.Context, cfg config.PostgresConfig, logger logrus.FieldLogger) (*Store, error) {
	db, err := sqlstore.Open(ctx, sqlstore.Postgres, cfg.DSN())
	if err != nil {
		return nil, err
	}
	return NewStore(db, logger), nil
}

// NewStore wraps an open database handle.
func NewStore(db *sql.DB, logger logrus.FieldLogger) *Store {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Store{db: db, logger: logger.WithField("component", "university"), stats: report.NewStats()}
}

// Close closes the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Stats returns the collected operation timings.
func (s *Store) Stats() *report.Stats {
	return s.stats
}

func (s *Store) execAll(ctx context.Context, what string, stmts []string) error {
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return errors.NewQueryError(what, err).WithDetails(map[string]interface{}{"statement": stmt})
		}
	}
	return nil
}

// CreateSchema creates the five tables.
func (s *Store) CreateSchema(ctx context.Context) error {
	return s.execAll(ctx, "create schema", SchemaDDL)
}

// CreateIndexes creates the benchmark indexes.
func (s *Store) CreateIndexes(ctx context.Context) error {
	return s.stats.Time(ctx, "create_indexes", func(ctx context.Context) error {
		if err := s.execAll(ctx, "create index", IndexDDL); err != nil {
			return err
		}
		s.logger.WithField("indexes", len(IndexDDL)).Info("indexes created")
		return nil
	})
}

// Refresh truncates every table and restarts the id sequences.
func (s *Store) Refresh(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, RefreshSQL); err != nil {
		return errors.NewQueryError("refresh", err)
	}
	s.logger.Info("tables truncated and ids reset")
	return nil
}

// TableCount is the row count of one table.
type TableCount struct {
	Table string
	Rows  int64
}

// Verify returns the row count of every table.
func (s *Store) Verify(ctx context.Context) ([]TableCount, error) {
	out := make([]TableCount, 0, len(Tables))
	for _, table := range Tables {
		var n int64
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
			return nil, errors.NewQueryError("count "+table, err)
		}
		out = append(out, TableCount{Table: table, Rows: n})
	}
	return out, nil
}

// SeedResult reports how many rows Seed inserted per table.
type SeedResult struct {
	Departments int
	Teachers    int
	Courses     int
	Students    int
	Enrollments int
	Duration    time.Duration
}

// Seed inserts the fixed departments, teachers and courses plus scale
// students with their enrollments in a single transaction.
func (s *Store) Seed(ctx context.Context, gen *Generator, scale int) (*SeedResult, error) {
	if scale <= 0 {
		return nil, errors.NewInvalidConfiguration("scale must be positive, got %d", scale)
	}
	start := time.Now()
	res := &SeedResult{}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.NewLoadError("begin seed transaction", err)
	}
	defer tx.Rollback()

	deptIDs, err := insertReturning(ctx, tx,
		"INSERT INTO Departments (department_name, building) VALUES ($1, $2) RETURNING department_id",
		departmentArgs(gen.Departments()))
	if err != nil {
		return nil, errors.NewLoadError("insert departments", err)
	}
	res.Departments = len(deptIDs)

	teacherIDs, err := insertReturning(ctx, tx,
		"INSERT INTO Teachers (first_name, last_name, email, department_id, hire_date) VALUES ($1, $2, $3, $4, $5) RETURNING teacher_id",
		teacherArgs(gen.Teachers(TeacherCount, deptIDs)))
	if err != nil {
		return nil, errors.NewLoadError("insert teachers", err)
	}
	res.Teachers = len(teacherIDs)

	courseIDs, err := insertReturning(ctx, tx,
		"INSERT INTO Courses (course_name, credits, teacher_id) VALUES ($1, $2, $3) RETURNING course_id",
		courseArgs(gen.Courses(CourseCount, teacherIDs)))
	if err != nil {
		return nil, errors.NewLoadError("insert courses", err)
	}
	res.Courses = len(courseIDs)

	studentIDs := make([]int, 0, scale)
	for lo := 0; lo < scale; lo += studentBatchSize {
		n := studentBatchSize
		if lo+n > scale {
			n = scale - lo
		}
		ids, err := insertStudents(ctx, tx, gen.Students(n))
		if err != nil {
			return nil, errors.NewLoadError("insert students", err)
		}
		studentIDs = append(studentIDs, ids...)
		s.logger.WithFields(logrus.Fields{"students": len(studentIDs), "scale": scale}).Debug("student batch inserted")
	}
	res.Students = len(studentIDs)

	// The connection stays in COPY mode until the statement is closed, so
	// every other insert happens above.
	copyStmt, err := tx.PrepareContext(ctx, pq.CopyIn("enrollments", "student_id", "course_id", "semester", "grade"))
	if err != nil {
		return nil, errors.NewLoadError("prepare enrollment copy", err)
	}
	defer copyStmt.Close()

	for _, id := range studentIDs {
		for _, e := range gen.Enrollments(id, courseIDs) {
			if _, err := copyStmt.ExecContext(ctx, e.StudentID, e.CourseID, e.Semester, e.Grade); err != nil {
				return nil, errors.NewLoadError("copy enrollments", err)
			}
			res.Enrollments++
		}
	}

	// An argument-less Exec flushes the COPY buffer.
	if _, err := copyStmt.ExecContext(ctx); err != nil {
		return nil, errors.NewLoadError("flush enrollments", err)
	}
	if err := copyStmt.Close(); err != nil {
		return nil, errors.NewLoadError("close enrollment copy", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, errors.NewLoadError("commit seed", err)
	}

	res.Duration = time.Since(start)
	s.stats.Record("seed", res.Duration, nil)
	s.logger.WithFields(logrus.Fields{
		"students":    res.Students,
		"enrollments": res.Enrollments,
		"duration":    res.Duration,
	}).Info("university seeded")
	return res, nil
}

func insertReturning(ctx context.Context, tx *sql.Tx, stmt string, rows [][]interface{}) ([]int, error) {
	ps, err := tx.PrepareContext(ctx, stmt)
	if err != nil {
		return nil, err
	}
	defer ps.Close()

	ids := make([]int, 0, len(rows))
	for _, args := range rows {
		var id int
		if err := ps.QueryRowContext(ctx, args...).Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func insertStudents(ctx context.Context, tx *sql.Tx, students []Student) ([]int, error) {
	args := make([]interface{}, 0, len(students)*5)
	for _, st := range students {
		args = append(args, st.FirstName, st.LastName, st.Email, st.EnrollmentDate, st.DateOfBirth)
	}
	stmt := "INSERT INTO Students (first_name, last_name, email, enrollment_date, date_of_birth) VALUES " +
		valuesClause(len(students), 5) + " RETURNING student_id"

	rows, err := tx.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]int, 0, len(students))
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// valuesClause returns "($1, $2), ($3, $4)" style tuples for rows x cols binds.
func valuesClause(rows, cols int) string {
	var b strings.Builder
	for r := 0; r < rows; r++ {
		if r > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for c := 0; c < cols; c++ {
			if c > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "$%d", r*cols+c+1)
		}
		b.WriteByte(')')
	}
	return b.String()
}

func departmentArgs(ds []Department) [][]interface{} {
	out := make([][]interface{}, len(ds))
	for i, d := range ds {
		out[i] = []interface{}{d.Name, d.Building}
	}
	return out
}

func teacherArgs(ts []Teacher) [][]interface{} {
	out := make([][]interface{}, len(ts))
	for i, t := range ts {
		out[i] = []interface{}{t.FirstName, t.LastName, t.Email, t.DepartmentID, t.HireDate}
	}
	return out
}

func courseArgs(cs []Course) [][]interface{} {
	out := make([][]interface{}, len(cs))
	for i, c := range cs {
		out[i] = []interface{}{c.Name, c.Credits, c.TeacherID}
	}
	return out
}
