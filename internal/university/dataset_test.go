package university

import (
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/storelabs/storelabs/internal/fake"
)

var now = time.Date(2025, time.October, 1, 12, 0, 0, 0, time.UTC)

func seq(n int) []int {
	ids := make([]int, n)
	for i := range ids {
		ids[i] = i + 1
	}
	return ids
}

func TestDepartments(t *testing.T) {
	d := NewGenerator(fake.New(1), now).Departments()
	if len(d) != 10 {
		t.Fatalf("expected 10 departments, got %d", len(d))
	}
	for i, dep := range d {
		if dep.Name != DepartmentNames[i] {
			t.Errorf("department %d = %q, want %q", i, dep.Name, DepartmentNames[i])
		}
		if !strings.HasSuffix(dep.Building, " Building") {
			t.Errorf("unexpected building %q", dep.Building)
		}
	}
}

func TestTeachersAndCourses(t *testing.T) {
	g := NewGenerator(fake.New(2), now)
	teachers := g.Teachers(TeacherCount, seq(10))
	if len(teachers) != TeacherCount {
		t.Fatalf("expected %d teachers, got %d", TeacherCount, len(teachers))
	}
	emails := make(map[string]bool)
	for _, tc := range teachers {
		if tc.DepartmentID < 1 || tc.DepartmentID > 10 {
			t.Errorf("department id %d out of range", tc.DepartmentID)
		}
		if tc.HireDate.After(now) || tc.HireDate.Before(now.AddDate(-11, 0, 0)) {
			t.Errorf("hire date %v outside the last ten years", tc.HireDate)
		}
		if emails[tc.Email] {
			t.Errorf("duplicate email %s", tc.Email)
		}
		emails[tc.Email] = true
	}

	courses := g.Courses(CourseCount, seq(TeacherCount))
	if len(courses) != CourseCount {
		t.Fatalf("expected %d courses, got %d", CourseCount, len(courses))
	}
	for _, c := range courses {
		if c.Credits < MinCredits || c.Credits > MaxCredits {
			t.Errorf("credits %d out of range", c.Credits)
		}
		if c.TeacherID < 1 || c.TeacherID > TeacherCount {
			t.Errorf("teacher id %d out of range", c.TeacherID)
		}
		if len(c.Name) > 100 {
			t.Errorf("course name too long for VARCHAR(100): %q", c.Name)
		}
	}
}

func TestStudents(t *testing.T) {
	students := NewGenerator(fake.New(3), now).Students(500)
	emails := make(map[string]bool)
	for _, s := range students {
		if s.EnrollmentDate.Before(now.AddDate(-4, 0, -1)) || s.EnrollmentDate.After(now) {
			t.Errorf("enrollment date %v outside the last four years", s.EnrollmentDate)
		}
		if age := now.Sub(s.DateOfBirth).Hours() / 24 / 365.25; age < 17.9 || age > 31.1 {
			t.Errorf("student age %.1f outside 18-30", age)
		}
		if emails[s.Email] {
			t.Errorf("duplicate email %s", s.Email)
		}
		emails[s.Email] = true
	}
}

// TestProperty_Enrollments checks enrollment bounds for arbitrary seeds.
func TestProperty_Enrollments(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	courseIDs := seq(CourseCount)
	semesters := make(map[string]bool)
	for _, s := range Semesters {
		semesters[s] = true
	}

	properties.Property("5-10 distinct courses with valid grades and semesters", prop.ForAll(
		func(seed int64, studentID int) bool {
			es := NewGenerator(fake.New(seed), now).Enrollments(studentID, courseIDs)
			if len(es) < MinEnrollments || len(es) > MaxEnrollments {
				return false
			}
			seen := make(map[int]bool)
			for _, e := range es {
				if e.StudentID != studentID || seen[e.CourseID] {
					return false
				}
				seen[e.CourseID] = true
				if e.CourseID < 1 || e.CourseID > CourseCount {
					return false
				}
				if e.Grade < MinGrade || e.Grade > MaxGrade || !semesters[e.Semester] {
					return false
				}
			}
			return true
		},
		gen.Int64Range(1, 1<<40),
		gen.IntRange(1, 1000000),
	))

	properties.TestingRun(t)
}

func TestGenerator_Deterministic(t *testing.T) {
	a := NewGenerator(fake.New(99), now)
	b := NewGenerator(fake.New(99), now)
	sa, sb := a.Students(50), b.Students(50)
	for i := range sa {
		if sa[i] != sb[i] {
			t.Fatalf("student %d differs: %+v vs %+v", i, sa[i], sb[i])
		}
	}
}
