// Package university seeds and benchmarks the PostgreSQL university schema.
package university

// Tables lists the schema tables in dependency order.
var Tables = []string{"Departments", "Teachers", "Courses", "Students", "Enrollments"}

// SchemaDDL creates the five tables if they do not exist.
var SchemaDDL = []string{
	`CREATE TABLE IF NOT EXISTS Departments (
		department_id SERIAL PRIMARY KEY,
		department_name VARCHAR(100),
		building VARCHAR(50)
	)`,
	`CREATE TABLE IF NOT EXISTS Teachers (
		teacher_id SERIAL PRIMARY KEY,
		first_name VARCHAR(50),
		last_name VARCHAR(50),
		email VARCHAR(100) UNIQUE,
		department_id INT REFERENCES Departments(department_id),
		hire_date DATE
	)`,
	`CREATE TABLE IF NOT EXISTS Courses (
		course_id SERIAL PRIMARY KEY,
		course_name VARCHAR(100),
		credits INT,
		teacher_id INT REFERENCES Teachers(teacher_id)
	)`,
	`CREATE TABLE IF NOT EXISTS Students (
		student_id SERIAL PRIMARY KEY,
		first_name VARCHAR(50),
		last_name VARCHAR(50),
		email VARCHAR(100) UNIQUE,
		enrollment_date DATE,
		date_of_birth DATE
	)`,
	`CREATE TABLE IF NOT EXISTS Enrollments (
		enrollment_id SERIAL PRIMARY KEY,
		student_id INT REFERENCES Students(student_id),
		course_id INT REFERENCES Courses(course_id),
		semester VARCHAR(20),
		grade INT
	)`,
}

// IndexDDL creates one or more indexes per benchmark query.
var IndexDDL = []string{
	// Q1
	"CREATE INDEX IF NOT EXISTS idx_students_enrollment_date ON Students(enrollment_date)",
	// Q2
	"CREATE INDEX IF NOT EXISTS idx_enrollments_student ON Enrollments(student_id)",
	"CREATE INDEX IF NOT EXISTS idx_enrollments_course ON Enrollments(course_id)",
	"CREATE INDEX IF NOT EXISTS idx_courses_teacher ON Courses(teacher_id)",
	// Q3
	"CREATE INDEX IF NOT EXISTS idx_courses_name ON Courses(course_name text_pattern_ops)",
	// Q4
	"CREATE INDEX IF NOT EXISTS idx_teachers_department ON Teachers(department_id)",
	// Q5
	"CREATE INDEX IF NOT EXISTS idx_enrollments_semester ON Enrollments(semester)",
}

// RefreshSQL empties every table and resets the id sequences.
const RefreshSQL = "TRUNCATE TABLE Enrollments, Students, Courses, Teachers, Departments RESTART IDENTITY CASCADE"

// Query is one named benchmark query.
type Query struct {
	Name string
	SQL  string
}

// Queries are the benchmark queries Q1 to Q5 in report order.
var Queries = []Query{
	{
		Name: "Q1_Simple_Filter",
		SQL: `SELECT * FROM Students
			WHERE EXTRACT(YEAR FROM enrollment_date) = 2023`,
	},
	{
		Name: "Q2_Simple_Join_Filter",
		SQL: `SELECT DISTINCT s.email
			FROM Students s
			JOIN Enrollments e ON s.student_id = e.student_id
			JOIN Courses c ON e.course_id = c.course_id
			WHERE c.teacher_id = 50`,
	},
	{
		Name: "Q3_MultiJoin_TextSearch",
		SQL: `SELECT DISTINCT t.first_name || ' ' || t.last_name AS teacher_name
			FROM Teachers t
			JOIN Courses c ON t.teacher_id = c.teacher_id
			WHERE c.course_name ILIKE '%Advanced%'`,
	},
	{
		Name: "Q4_Join_Aggregation",
		SQL: `SELECT d.department_name, COUNT(c.course_id) AS course_count
			FROM Departments d
			JOIN Teachers t ON d.department_id = t.department_id
			JOIN Courses c ON t.teacher_id = c.teacher_id
			GROUP BY d.department_name`,
	},
	{
		Name: "Q5_Complex_Top10",
		SQL: `SELECT s.first_name || ' ' || s.last_name AS student_name,
				AVG(e.grade) AS avg_grade
			FROM Students s
			JOIN Enrollments e ON s.student_id = e.student_id
			WHERE e.semester = 'Spring 2025'
			GROUP BY s.student_id, s.first_name, s.last_name
			ORDER BY avg_grade DESC
			LIMIT 10`,
	},
}
