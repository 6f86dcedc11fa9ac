package models

import "time"

// Semester is a row of the 'semesters' lookup table
type Semester struct {
	ID     int64  `json:"id" db:"id"`
	Name   string `json:"name" db:"name"`
	Number int    `json:"number" db:"number"`
}

// AcademicSubject is one subject result within a record
type AcademicSubject struct {
	ID          int64   `json:"id,omitempty" db:"id"`
	RecordID    int64   `json:"recordId,omitempty" db:"record_id"`
	SubjectName string  `json:"subjectName" db:"subject_name"`
	Grade       string  `json:"grade" db:"grade"`
	Marks       float64 `json:"marks" db:"marks"`
}

// AcademicRecord is one semester's results for a student
type AcademicRecord struct {
	ID             int64             `json:"id" db:"id"`
	StudentID      int64             `json:"studentId" db:"student_id"`
	SemesterID     int64             `json:"semesterId" db:"semester_id"`
	SemesterName   string            `json:"semesterName" db:"semester_name"`
	SemesterNumber int               `json:"semesterNumber" db:"semester_number"`
	Course         string            `json:"course" db:"course"`
	ExamPassed     string            `json:"examPassed" db:"exam_passed"`
	Board          string            `json:"board" db:"board"`
	Year           int               `json:"year" db:"year"`
	Division       string            `json:"division" db:"division"`
	Subjects       []AcademicSubject `json:"subjects"`
	CreatedAt      time.Time         `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time         `json:"updatedAt" db:"updated_at"`
}

// AcademicRecordUpdate lists the scalar fields a record update may touch.
// A nil field is left unchanged.
type AcademicRecordUpdate struct {
	Course     *string
	ExamPassed *string
	Board      *string
	Year       *int
	Division   *string
}

// Columns returns the column/value pairs to set, in a stable order
func (u AcademicRecordUpdate) Columns() ([]string, []any) {
	var cols []string
	var vals []any
	if u.Course != nil {
		cols, vals = append(cols, "course"), append(vals, *u.Course)
	}
	if u.ExamPassed != nil {
		cols, vals = append(cols, "exam_passed"), append(vals, *u.ExamPassed)
	}
	if u.Board != nil {
		cols, vals = append(cols, "board"), append(vals, *u.Board)
	}
	if u.Year != nil {
		cols, vals = append(cols, "year"), append(vals, *u.Year)
	}
	if u.Division != nil {
		cols, vals = append(cols, "division"), append(vals, *u.Division)
	}
	return cols, vals
}

// IsEmpty reports whether no scalar field is set
func (u AcademicRecordUpdate) IsEmpty() bool {
	cols, _ := u.Columns()
	return len(cols) == 0
}
