package admission

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/aqram/core"
	"github.com/trezcool/aqram/core/fee"
	"github.com/trezcool/aqram/core/user"
)

type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
)

type Gender string

const (
	GenderMale   Gender = "MALE"
	GenderFemale Gender = "FEMALE"
)

const EnrollmentActive = "ACTIVE"

// Application is a batch admission request made by one parent for one or more students.
type Application struct {
	ID              string     `json:"id"`
	Number          string     `json:"application_number"`
	ParentID        string     `json:"parent_id"`
	Status          Status     `json:"status"`
	SubmittedAt     time.Time  `json:"submitted_at"`
	ReviewedAt      *time.Time `json:"reviewed_at"`
	ReviewedBy      *string    `json:"reviewed_by"`
	RejectionReason *string    `json:"rejection_reason"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	Parent          *user.User `json:"parent,omitempty"`
	Students        []Student  `json:"students"`
}

type Student struct {
	ID                    string             `json:"id"`
	ApplicationID         string             `json:"application_id"`
	Surname               string             `json:"surname"`
	OtherName             string             `json:"other_name"`
	DateOfBirthDay        string             `json:"date_of_birth_day"`
	DateOfBirthMonth      string             `json:"date_of_birth_month"`
	DateOfBirthYear       string             `json:"date_of_birth_year"`
	Gender                Gender             `json:"gender"`
	StateOfOrigin         string             `json:"state_of_origin"`
	Nationality           string             `json:"nationality"`
	Religion              string             `json:"religion"`
	ClassSeekingAdmission string             `json:"class_seeking_admission"`
	CreatedAt             time.Time          `json:"created_at"`
	Enrollment            *Enrollment        `json:"enrollment,omitempty"`
	Fees                  []fee.FeeStructure `json:"fees,omitempty"`
}

func (s Student) FullName() string {
	return s.Surname + " " + s.OtherName
}

func (s Student) Info() fee.StudentInfo {
	return fee.StudentInfo{
		ID:                    s.ID,
		ApplicationID:         s.ApplicationID,
		Surname:               s.Surname,
		OtherName:             s.OtherName,
		ClassSeekingAdmission: s.ClassSeekingAdmission,
	}
}

type Enrollment struct {
	ID           string    `json:"id"`
	StudentID    string    `json:"student_id"`
	AcademicYear string    `json:"academic_year"`
	Grade        string    `json:"grade"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

// Stats is the admin overview of applications.
type Stats struct {
	Total         int `json:"total_applications"`
	Pending       int `json:"pending_applications"`
	Approved      int `json:"approved_applications"`
	Rejected      int `json:"rejected_applications"`
	TotalStudents int `json:"total_students"`
}

// NewApplication is the admission form: parent details and at least one student.
type NewApplication struct {
	Parent   user.NewParent `json:"parent"`
	Students []NewStudent   `json:"students" validate:"required,min=1,dive"`
}

type NewStudent struct {
	Surname               string `json:"surname" validate:"required,notblank,min=2,max=255"`
	OtherName             string `json:"other_name" validate:"required,notblank,min=2,max=255"`
	DateOfBirthDay        string `json:"date_of_birth_day" validate:"required,numeric,max=2"`
	DateOfBirthMonth      string `json:"date_of_birth_month" validate:"required,notblank,max=20"`
	DateOfBirthYear       string `json:"date_of_birth_year" validate:"required,numeric,len=4"`
	Gender                Gender `json:"gender" validate:"required,oneof=MALE FEMALE"`
	StateOfOrigin         string `json:"state_of_origin" validate:"required,notblank,min=2,max=255"`
	Nationality           string `json:"nationality" validate:"required,notblank,min=2,max=255"`
	Religion              string `json:"religion" validate:"required,notblank,min=2,max=255"`
	ClassSeekingAdmission string `json:"class_seeking_admission" validate:"required,notblank,max=50"`
}

func (na *NewApplication) Validate(validate *validator.Validate) error {
	na.Parent.Clean()
	for i := range na.Students {
		st := &na.Students[i]
		st.Surname = core.CleanString(st.Surname)
		st.OtherName = core.CleanString(st.OtherName)
		st.DateOfBirthDay = core.CleanString(st.DateOfBirthDay)
		st.DateOfBirthMonth = core.CleanString(st.DateOfBirthMonth)
		st.DateOfBirthYear = core.CleanString(st.DateOfBirthYear)
		st.Gender = Gender(core.CleanString(string(st.Gender)))
		st.StateOfOrigin = core.CleanString(st.StateOfOrigin)
		st.Nationality = core.CleanString(st.Nationality)
		st.Religion = core.CleanString(st.Religion)
		st.ClassSeekingAdmission = core.CleanString(st.ClassSeekingAdmission)
	}
	return validate.Struct(na)
}

// ReviewApplication is an admin decision on a pending application.
type ReviewApplication struct {
	Status          Status `json:"status" validate:"required,oneof=APPROVED REJECTED"`
	RejectionReason string `json:"rejection_reason"`
}

func (ra *ReviewApplication) Validate(validate *validator.Validate) error {
	ra.Status = Status(core.CleanString(string(ra.Status)))
	ra.RejectionReason = core.CleanString(ra.RejectionReason)
	return validate.Struct(ra)
}

type QueryFilter struct {
	Status   Status `query:"status"`
	ParentID string
}

// Review is the stored outcome of a ReviewApplication.
type Review struct {
	Status          Status
	ReviewedBy      string
	ReviewedAt      time.Time
	RejectionReason string
}
