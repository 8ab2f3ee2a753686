// Package lms runs the course-material workload against object storage:
// dummy course files, the upload plan, listing, announcement updates,
// versioning, deletes and presigned downloads.
package lms

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jung-kurt/gofpdf"

	"github.com/storelabs/storelabs/internal/errors"
)

// StudentMarks is one row of a course marks sheet.
type StudentMarks struct {
	StudentID  string
	Marks      int
	Attendance int
}

// Course holds the fixture data for one course.
type Course struct {
	Code             string
	Weeks            int
	Students         []StudentMarks
	AnnouncementDate string
	Announcement     string
}

// Courses returns the two courses the workload seeds.
func Courses() []Course {
	return []Course{
		{
			Code:  "CS101",
			Weeks: 2,
			Students: []StudentMarks{
				{StudentID: "2023001", Marks: 85, Attendance: 90},
				{StudentID: "2023002", Marks: 78, Attendance: 100},
			},
			AnnouncementDate: "2025-09-25",
			Announcement:     "📢 CS101: Assignment 1 deadline is Sept 30\n",
		},
		{
			Code:  "CS202",
			Weeks: 2,
			Students: []StudentMarks{
				{StudentID: "2023010", Marks: 92, Attendance: 85},
				{StudentID: "2023011", Marks: 74, Attendance: 88},
			},
			AnnouncementDate: "2025-09-26",
			Announcement:     "📢 CS202: Midterm schedule will be announced soon\n",
		},
	}
}

// PlanItem maps one dummy file to its object key.
type PlanItem struct {
	File        string
	Key         string
	ContentType string
	build       func() ([]byte, error)
}

// Plan returns the upload plan for courses in upload order: slides, marks,
// announcement, then submissions for each course.
func Plan(courses []Course) []PlanItem {
	var items []PlanItem
	for _, c := range courses {
		c := c
		for w := 1; w <= c.Weeks; w++ {
			title := c.Code + " Lecture Slides"
			items = append(items, PlanItem{
				File:        fmt.Sprintf("slides_%s_week%d.pdf", c.Code, w),
				Key:         fmt.Sprintf("courses/%s/weeks/week%02d/slides.pdf", c.Code, w),
				ContentType: "application/pdf",
				build:       func() ([]byte, error) { return RenderPDF(title, 2) },
			})
		}
		items = append(items, PlanItem{
			File:        fmt.Sprintf("marks_%s.csv", c.Code),
			Key:         fmt.Sprintf("datasets/%s/marks.csv", c.Code),
			ContentType: "text/csv",
			build:       func() ([]byte, error) { return marksCSV(c.Students) },
		})
		items = append(items, PlanItem{
			File:        fmt.Sprintf("announcements-%s.txt", c.AnnouncementDate),
			Key:         fmt.Sprintf("announcements/%s.txt", c.AnnouncementDate),
			ContentType: "text/plain",
			build:       func() ([]byte, error) { return []byte(c.Announcement), nil },
		})
		for _, s := range c.Students {
			title := fmt.Sprintf("%s Assignment 1 Submission - %s", c.Code, s.StudentID)
			items = append(items, PlanItem{
				File:        fmt.Sprintf("sub_%s_%s_assignment1.pdf", c.Code, s.StudentID),
				Key:         fmt.Sprintf("submissions/%s/assignment1/%s/assignment.pdf", c.Code, s.StudentID),
				ContentType: "application/pdf",
				build:       func() ([]byte, error) { return RenderPDF(title, 2) },
			})
		}
	}
	return items
}

// DefaultPlan is Plan(Courses()).
func DefaultPlan() []PlanItem {
	return Plan(Courses())
}

// Content renders the item's dummy file content.
func (p PlanItem) Content() ([]byte, error) {
	if p.build == nil {
		return nil, errors.NewInternalError("no content for "+p.File, nil)
	}
	return p.build()
}

// WriteDummyFiles writes every file of plan into dir and returns their paths.
func WriteDummyFiles(dir string, plan []PlanItem) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.NewInternalError("create "+dir, err)
	}
	paths := make([]string, 0, len(plan))
	for _, item := range plan {
		data, err := item.Content()
		if err != nil {
			return paths, err
		}
		path := filepath.Join(dir, item.File)
		if err := os.WriteFile(path, data, 0644); err != nil {
			return paths, errors.NewInternalError("write "+path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// RenderPDF renders a letter-size document with pages pages, each carrying
// a "title - Page n" heading and one line of filler text.
func RenderPDF(title string, pages int) ([]byte, error) {
	pdf := gofpdf.New("P", "pt", "Letter", "")
	pdf.SetTitle(title, true)
	pdf.SetFont("Helvetica", "", 12)
	for p := 1; p <= pages; p++ {
		pdf.AddPage()
		pdf.Text(100, 42, fmt.Sprintf("%s - Page %d", title, p))
		pdf.Text(100, 62, "Dummy content for S3 lab testing...")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, errors.NewInternalError("render pdf "+title, err)
	}
	return buf.Bytes(), nil
}

func marksCSV(students []StudentMarks) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.UseCRLF = true
	w.Write([]string{"student_id", "marks", "attendance"})
	for _, s := range students {
		w.Write([]string{s.StudentID, fmt.Sprint(s.Marks), fmt.Sprint(s.Attendance)})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, errors.NewInternalError("encode marks", err)
	}
	return buf.Bytes(), nil
}
