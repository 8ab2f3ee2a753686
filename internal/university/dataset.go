package university

import (
	"time"

	"github.com/storelabs/storelabs/internal/fake"
)

// Seeding sizes fixed by the lab; only the student count scales.
const (
	TeacherCount      = 100
	CourseCount       = 200
	MinEnrollments    = 5
	MaxEnrollments    = 10
	MinGrade          = 50
	MaxGrade          = 100
	MinCredits        = 2
	MaxCredits        = 5
	MinStudentAge     = 18
	MaxStudentAge     = 30
	teacherTenureDays = 10 * 365
	studentSpanYears  = 4
)

// DepartmentNames are the ten fixed departments.
var DepartmentNames = []string{
	"Computer Science", "Data Science", "Mathematics", "Information Technology",
	"Artificial Intelligence", "Cyber Security", "Software Engineering", "Data Analytics",
	"Data Visualization", "Engineering",
}

// Semesters are the terms enrollments are spread over.
var Semesters = []string{"Fall 2023", "Spring 2024", "Fall 2024", "Spring 2025"}

// Department is a Departments row.
type Department struct {
	Name     string
	Building string
}

// Teacher is a Teachers row.
type Teacher struct {
	FirstName    string
	LastName     string
	Email        string
	DepartmentID int
	HireDate     time.Time
}

// Course is a Courses row.
type Course struct {
	Name      string
	Credits   int
	TeacherID int
}

// Student is a Students row.
type Student struct {
	FirstName      string
	LastName       string
	Email          string
	EnrollmentDate time.Time
	DateOfBirth    time.Time
}

// Enrollment is an Enrollments row.
type Enrollment struct {
	StudentID int
	CourseID  int
	Semester  string
	Grade     int
}

// Generator builds rows for the university tables.
type Generator struct {
	g   *fake.Generator
	now time.Time
}

// NewGenerator returns a generator whose dates are relative to now.
func NewGenerator(g *fake.Generator, now time.Time) *Generator {
	return &Generator{g: g, now: now.UTC()}
}

// Departments returns the fixed departments with generated building names.
func (d *Generator) Departments() []Department {
	out := make([]Department, len(DepartmentNames))
	for i, name := range DepartmentNames {
		out[i] = Department{Name: name, Building: d.g.Building()}
	}
	return out
}

// Teachers returns n teachers spread over the given department ids.
func (d *Generator) Teachers(n int, departmentIDs []int) []Teacher {
	out := make([]Teacher, n)
	for i := range out {
		out[i] = Teacher{
			FirstName:    d.g.FirstName(),
			LastName:     d.g.LastName(),
			Email:        d.g.UniqueEmail(),
			DepartmentID: fake.Pick(d.g, departmentIDs),
			HireDate:     d.g.DateBetween(d.now.AddDate(0, 0, -teacherTenureDays), d.now),
		}
	}
	return out
}

// Courses returns n courses each taught by one of the given teachers.
func (d *Generator) Courses(n int, teacherIDs []int) []Course {
	out := make([]Course, n)
	for i := range out {
		out[i] = Course{
			Name:      d.g.CourseName(),
			Credits:   d.g.IntBetween(MinCredits, MaxCredits),
			TeacherID: fake.Pick(d.g, teacherIDs),
		}
	}
	return out
}

// Students returns n students.
func (d *Generator) Students(n int) []Student {
	out := make([]Student, n)
	for i := range out {
		out[i] = Student{
			FirstName:      d.g.FirstName(),
			LastName:       d.g.LastName(),
			Email:          d.g.UniqueEmail(),
			EnrollmentDate: d.g.DateBetween(d.now.AddDate(-studentSpanYears, 0, 0), d.now),
			DateOfBirth:    d.g.DateOfBirth(d.now, MinStudentAge, MaxStudentAge),
		}
	}
	return out
}

// Enrollments enrolls one student in 5 to 10 distinct courses.
func (d *Generator) Enrollments(studentID int, courseIDs []int) []Enrollment {
	courses := fake.Sample(d.g, courseIDs, d.g.IntBetween(MinEnrollments, MaxEnrollments))
	out := make([]Enrollment, len(courses))
	for i, c := range courses {
		out[i] = Enrollment{
			StudentID: studentID,
			CourseID:  c,
			Semester:  fake.Pick(d.g, Semesters),
			Grade:     d.g.IntBetween(MinGrade, MaxGrade),
		}
	}
	return out
}
