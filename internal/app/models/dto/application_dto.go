package dto

import "github.com/00Thor/CCPUR-sub000/internal/app/models"

// PersonalDetailsRequest is the first step of an admission application.
// Every field except stream is required; all missing fields are reported together.
type PersonalDetailsRequest struct {
	Email            string `json:"email" validate:"required,email"`
	FirstName        string `json:"firstName" validate:"required,notblank"`
	LastName         string `json:"lastName" validate:"required,notblank"`
	DateOfBirth      string `json:"dateOfBirth" validate:"required,isodate"`
	Gender           string `json:"gender" validate:"required,notblank"`
	Phone            string `json:"phone" validate:"required,phone"`
	FatherName       string `json:"fatherName" validate:"required,notblank"`
	MotherName       string `json:"motherName" validate:"required,notblank"`
	GuardianName     string `json:"guardianName" validate:"required,notblank"`
	GuardianPhone    string `json:"guardianPhone" validate:"required,phone"`
	Nationality      string `json:"nationality" validate:"required,notblank"`
	Religion         string `json:"religion" validate:"required,notblank"`
	Category         string `json:"category" validate:"required,notblank"`
	AadhaarNumber    string `json:"aadhaarNumber" validate:"required,numeric,len=12"`
	PermanentAddress string `json:"permanentAddress" validate:"required,notblank"`
	PresentAddress   string `json:"presentAddress" validate:"required,notblank"`
	State            string `json:"state" validate:"required,notblank"`
	PinCode          string `json:"pinCode" validate:"required,numeric,len=6"`
	Course           string `json:"course" validate:"required,notblank"`
	Stream           string `json:"stream,omitempty"`
}

// ToModel converts the request to the shared personal details
func (r PersonalDetailsRequest) ToModel() models.PersonalDetails {
	return models.PersonalDetails{
		Email:            r.Email,
		FirstName:        r.FirstName,
		LastName:         r.LastName,
		DateOfBirth:      r.DateOfBirth,
		Gender:           r.Gender,
		Phone:            r.Phone,
		FatherName:       r.FatherName,
		MotherName:       r.MotherName,
		GuardianName:     r.GuardianName,
		GuardianPhone:    r.GuardianPhone,
		Nationality:      r.Nationality,
		Religion:         r.Religion,
		Category:         r.Category,
		AadhaarNumber:    r.AadhaarNumber,
		PermanentAddress: r.PermanentAddress,
		PresentAddress:   r.PresentAddress,
		State:            r.State,
		PinCode:          r.PinCode,
		Course:           r.Course,
		Stream:           r.Stream,
	}
}

// ExamResultRequest is one prior qualifying exam
type ExamResultRequest struct {
	Board       string  `json:"board" validate:"required,notblank"`
	PassingYear int     `json:"passingYear" validate:"required,gte=1950,lte=2100"`
	RollNumber  string  `json:"rollNumber" validate:"required,notblank"`
	Division    string  `json:"division" validate:"required,notblank"`
	Percentage  float64 `json:"percentage" validate:"required,gt=0,lte=100"`
	Stream      string  `json:"stream,omitempty"`
}

func (r ExamResultRequest) toModel() models.ExamResult {
	return models.ExamResult{
		Board:       r.Board,
		PassingYear: r.PassingYear,
		RollNumber:  r.RollNumber,
		Division:    r.Division,
		Percentage:  r.Percentage,
		Stream:      r.Stream,
	}
}

// EducationalDetailsRequest is the second step of an admission application
type EducationalDetailsRequest struct {
	Class10 ExamResultRequest `json:"class10"`
	Class12 ExamResultRequest `json:"class12"`
}

// ToModel converts the request to the stored document
func (r EducationalDetailsRequest) ToModel() models.EducationalDetails {
	return models.EducationalDetails{
		Class10: r.Class10.toModel(),
		Class12: r.Class12.toModel(),
	}
}

// DecisionResponse reports the outcome of approve/reject
type DecisionResponse struct {
	ApplicationID int64                    `json:"applicationId"`
	Status        models.ApplicationStatus `json:"status"`
	StudentID     *int64                   `json:"studentId,omitempty"`
}

// ApplicationListResponse is a page of applications
type ApplicationListResponse struct {
	Applications []*models.Application `json:"applications"`
	Pagination   PaginationInfo        `json:"pagination"`
}
