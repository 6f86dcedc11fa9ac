package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// ApplicationStatus is the admission state of an application
type ApplicationStatus string

const (
	ApplicationPending  ApplicationStatus = "pending"
	ApplicationApproved ApplicationStatus = "approved"
	ApplicationRejected ApplicationStatus = "rejected"
)

// CanTransitionTo reports whether the state machine allows s -> next.
// Only pending has outgoing transitions.
func (s ApplicationStatus) CanTransitionTo(next ApplicationStatus) bool {
	return s == ApplicationPending && (next == ApplicationApproved || next == ApplicationRejected)
}

// PersonalDetails holds the personal fields shared by applications and students
type PersonalDetails struct {
	Email            string `json:"email" db:"email"`
	FirstName        string `json:"firstName" db:"first_name"`
	LastName         string `json:"lastName" db:"last_name"`
	DateOfBirth      string `json:"dateOfBirth" db:"date_of_birth"`
	Gender           string `json:"gender" db:"gender"`
	Phone            string `json:"phone" db:"phone"`
	FatherName       string `json:"fatherName" db:"father_name"`
	MotherName       string `json:"motherName" db:"mother_name"`
	GuardianName     string `json:"guardianName" db:"guardian_name"`
	GuardianPhone    string `json:"guardianPhone" db:"guardian_phone"`
	Nationality      string `json:"nationality" db:"nationality"`
	Religion         string `json:"religion" db:"religion"`
	Category         string `json:"category" db:"category"`
	AadhaarNumber    string `json:"aadhaarNumber" db:"aadhaar_number"`
	PermanentAddress string `json:"permanentAddress" db:"permanent_address"`
	PresentAddress   string `json:"presentAddress" db:"present_address"`
	State            string `json:"state" db:"state"`
	PinCode          string `json:"pinCode" db:"pin_code"`
	Course           string `json:"course" db:"course"`
	Stream           string `json:"stream,omitempty" db:"stream"`
}

// FullName joins first and last name
func (p PersonalDetails) FullName() string {
	if p.LastName == "" {
		return p.FirstName
	}
	return p.FirstName + " " + p.LastName
}

// ExamResult is one prior qualifying exam (class 10 or class 12)
type ExamResult struct {
	Board       string  `json:"board"`
	PassingYear int     `json:"passingYear"`
	RollNumber  string  `json:"rollNumber"`
	Division    string  `json:"division"`
	Percentage  float64 `json:"percentage"`
	Stream      string  `json:"stream,omitempty"`
}

// EducationalDetails is stored as a JSONB document on applications and students
type EducationalDetails struct {
	Class10 ExamResult `json:"class10"`
	Class12 ExamResult `json:"class12"`
}

// Value implements driver.Valuer
func (e EducationalDetails) Value() (driver.Value, error) {
	return json.Marshal(e)
}

// Scan implements sql.Scanner
func (e *EducationalDetails) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*e = EducationalDetails{}
		return nil
	case []byte:
		return json.Unmarshal(v, e)
	case string:
		return json.Unmarshal([]byte(v), e)
	default:
		return errors.New("unsupported type for EducationalDetails")
	}
}

// Application defines the application model based on the 'applications' table
type Application struct {
	ID     int64 `json:"id" db:"id"`
	UserID int64 `json:"userId" db:"user_id"`
	PersonalDetails
	Educational *EducationalDetails `json:"educationalDetails,omitempty" db:"educational_details"`
	Status      ApplicationStatus   `json:"status" db:"status"`
	AcceptedAt  *time.Time          `json:"acceptedAt,omitempty" db:"accepted_at"`
	RejectedAt  *time.Time          `json:"rejectedAt,omitempty" db:"rejected_at"`
	CreatedAt   time.Time           `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time           `json:"updatedAt" db:"updated_at"`
}

// ApplicationFilter narrows application listings
type ApplicationFilter struct {
	Status ApplicationStatus
	Course string
	Offset uint64
	Limit  int
}
