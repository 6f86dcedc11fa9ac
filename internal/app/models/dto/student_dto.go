package dto

import "github.com/00Thor/CCPUR-sub000/internal/app/models"

// SubjectRequest is one subject result
type SubjectRequest struct {
	SubjectName string  `json:"subjectName" validate:"required,notblank"`
	Grade       string  `json:"grade" validate:"required,notblank"`
	Marks       float64 `json:"marks" validate:"gte=0"`
}

// AddAcademicRecordRequest files one semester's results
type AddAcademicRecordRequest struct {
	SemesterName string           `json:"semesterName" validate:"required,notblank"`
	Course       string           `json:"course" validate:"required,notblank"`
	ExamPassed   string           `json:"examPassed" validate:"required,notblank"`
	Board        string           `json:"board" validate:"required,notblank"`
	Year         int              `json:"year" validate:"required,gte=1950,lte=2100"`
	Division     string           `json:"division" validate:"required,notblank"`
	Subjects     []SubjectRequest `json:"subjects" validate:"required,min=1,dive"`
}

// UpdateAcademicRecordRequest edits a record. Scalars are optional; subjects replace
// the stored list wholesale.
type UpdateAcademicRecordRequest struct {
	SemesterName *string          `json:"semesterName,omitempty"`
	Course       *string          `json:"course,omitempty" validate:"omitempty,notblank"`
	ExamPassed   *string          `json:"examPassed,omitempty" validate:"omitempty,notblank"`
	Board        *string          `json:"board,omitempty" validate:"omitempty,notblank"`
	Year         *int             `json:"year,omitempty" validate:"omitempty,gte=1950,lte=2100"`
	Division     *string          `json:"division,omitempty" validate:"omitempty,notblank"`
	Subjects     []SubjectRequest `json:"subjects" validate:"required,min=1,dive"`
}

// ToUpdate extracts the allow-listed scalar updates
func (r UpdateAcademicRecordRequest) ToUpdate() models.AcademicRecordUpdate {
	return models.AcademicRecordUpdate{
		Course:     r.Course,
		ExamPassed: r.ExamPassed,
		Board:      r.Board,
		Year:       r.Year,
		Division:   r.Division,
	}
}

// ToSubjects converts subject requests to models
func ToSubjects(in []SubjectRequest) []models.AcademicSubject {
	out := make([]models.AcademicSubject, 0, len(in))
	for _, s := range in {
		out = append(out, models.AcademicSubject{SubjectName: s.SubjectName, Grade: s.Grade, Marks: s.Marks})
	}
	return out
}

// AcademicRecordResponse reports a filed record and the student's semester afterwards
type AcademicRecordResponse struct {
	Record          *models.AcademicRecord `json:"record"`
	CurrentSemester int                    `json:"currentSemester"`
}

// PromotionResponse reports a semester change
type PromotionResponse struct {
	StudentID       int64 `json:"studentId"`
	CurrentSemester int   `json:"currentSemester"`
}
