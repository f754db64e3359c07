package fee

import (
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/trezcool/aqram/core"
)

type Type string

const (
	TypeTuition      Type = "TUITION"
	TypeRegistration Type = "REGISTRATION"
	TypeUniform      Type = "UNIFORM"
	TypeBooks        Type = "BOOKS"
)

type PaymentStatus string

// Only PaymentCompleted is reachable with the instant gateway.
const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentCompleted PaymentStatus = "COMPLETED"
	PaymentFailed    PaymentStatus = "FAILED"
)

// BundleItem is one line of the fee bundle billed to every approved student.
type BundleItem struct {
	Type     Type
	TermName string
	Amount   decimal.Decimal
}

var DefaultBundle = []BundleItem{
	{Type: TypeTuition, TermName: "First Term", Amount: decimal.NewFromInt(5000)},
	{Type: TypeRegistration, TermName: "One Time", Amount: decimal.NewFromInt(500)},
	{Type: TypeUniform, TermName: "One Time", Amount: decimal.NewFromInt(200)},
	{Type: TypeBooks, TermName: "Annual", Amount: decimal.NewFromInt(300)},
}

// StudentInfo is the student context attached to fees and payments.
type StudentInfo struct {
	ID                    string `json:"id"`
	ApplicationID         string `json:"application_id"`
	Surname               string `json:"surname"`
	OtherName             string `json:"other_name"`
	ClassSeekingAdmission string `json:"class_seeking_admission"`
}

func (si StudentInfo) FullName() string {
	return si.Surname + " " + si.OtherName
}

// FeeStructure is a billable line item. It is never mutated once created.
type FeeStructure struct {
	ID           string          `json:"id"`
	StudentID    string          `json:"student_id"`
	ParentID     string          `json:"parent_id"`
	AcademicYear string          `json:"academic_year"`
	TermName     string          `json:"term_name"`
	FeeType      Type            `json:"fee_type"`
	Amount       decimal.Decimal `json:"amount"`
	DueDate      time.Time       `json:"due_date"`
	CreatedAt    time.Time       `json:"created_at"`
	Student      *StudentInfo    `json:"student,omitempty"`
	Payments     []Payment       `json:"payments"`
}

// IsOutstanding reports whether no COMPLETED payment is linked to the fee.
// Payments must have been loaded.
func (fs FeeStructure) IsOutstanding() bool {
	for _, p := range fs.Payments {
		if p.Status == PaymentCompleted {
			return false
		}
	}
	return true
}

func (fs FeeStructure) MarshalJSON() ([]byte, error) {
	type alias FeeStructure
	payments := fs.Payments
	if payments == nil {
		payments = []Payment{}
	}
	a := alias(fs)
	a.Payments = payments
	return json.Marshal(struct {
		alias
		Outstanding bool `json:"outstanding"`
	}{a, fs.IsOutstanding()})
}

// Total sums the amounts of fees, only counting outstanding ones if asked.
func Total(fees []FeeStructure, outstandingOnly bool) decimal.Decimal {
	total := decimal.Zero
	for _, fs := range fees {
		if outstandingOnly && !fs.IsOutstanding() {
			continue
		}
		total = total.Add(fs.Amount)
	}
	return total
}

type Payment struct {
	ID             string          `json:"id"`
	Number         string          `json:"payment_number"`
	ParentID       string          `json:"parent_id"`
	FeeStructureID string          `json:"fee_structure_id"`
	Amount         decimal.Decimal `json:"amount"`
	Status         PaymentStatus   `json:"status"`
	Method         string          `json:"payment_method"`
	TransactionID  string          `json:"transaction_id,omitempty"`
	PaidAt         *time.Time      `json:"paid_at"`
	CreatedAt      time.Time       `json:"created_at"`
	FeeStructure   *FeeStructure   `json:"fee_structure,omitempty"`
}

// NewPayment is the payment form submitted by a parent.
type NewPayment struct {
	FeeStructureID string `json:"fee_structure_id" validate:"required"`
	PaymentMethod  string `json:"payment_method" validate:"required,notblank,max=50"`
}

func (np *NewPayment) Validate(validate *validator.Validate) error {
	np.FeeStructureID = core.CleanString(np.FeeStructureID)
	np.PaymentMethod = core.CleanString(np.PaymentMethod)
	return validate.Struct(np)
}

type QueryFilter struct {
	ParentID        string
	OutstandingOnly bool `query:"outstanding"`
}
