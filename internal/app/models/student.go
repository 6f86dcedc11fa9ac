package models

import "time"

// StudentStatus is the enrolment state of a student
type StudentStatus string

const (
	StudentActive    StudentStatus = "active"
	StudentGraduated StudentStatus = "graduated"
)

const (
	FirstSemester = 1
	FinalSemester = 6
)

// semesterAdvance maps a semester whose results were filed to the semester that follows it.
// The final semester has no successor.
var semesterAdvance = map[int]int{1: 2, 2: 3, 3: 4, 4: 5, 5: 6}

// NextSemester returns the semester that follows n and whether one exists
func NextSemester(n int) (int, bool) {
	next, ok := semesterAdvance[n]
	return next, ok
}

// yearlyPromotions are the transitions allowed through an explicit promotion request;
// the remaining ones happen when academic records are filed.
var yearlyPromotions = map[int]int{2: 3, 4: 5}

// YearlyPromotionTarget returns the semester a student in semester n is promoted to
func YearlyPromotionTarget(n int) (int, bool) {
	next, ok := yearlyPromotions[n]
	return next, ok
}

// Student defines the student model based on the 'students' table
type Student struct {
	ID            int64 `json:"id" db:"id"`
	UserID        int64 `json:"userId" db:"user_id"`
	ApplicationID int64 `json:"applicationId" db:"application_id"`
	PersonalDetails
	Educational     *EducationalDetails `json:"educationalDetails,omitempty" db:"educational_details"`
	CurrentSemester int                 `json:"currentSemester" db:"current_semester"`
	Status          StudentStatus       `json:"status" db:"status"`
	GraduatedAt     *time.Time          `json:"graduatedAt,omitempty" db:"graduated_at"`
	CreatedAt       time.Time           `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time           `json:"updatedAt" db:"updated_at"`
}

// NewStudentFromApplication copies an application's data into a new active student
func NewStudentFromApplication(app *Application) *Student {
	s := &Student{
		UserID:          app.UserID,
		ApplicationID:   app.ID,
		PersonalDetails: app.PersonalDetails,
		CurrentSemester: FirstSemester,
		Status:          StudentActive,
	}
	if app.Educational != nil {
		edu := *app.Educational
		s.Educational = &edu
	}
	return s
}
