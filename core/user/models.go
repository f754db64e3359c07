package user

import (
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/aqram/core"
)

type Role string

// Roles
const (
	RoleParent     Role = "PARENT"
	RoleAdmin      Role = "ADMIN"
	RoleSuperAdmin Role = "SUPER_ADMIN"
)

var AllRoles = []Role{RoleParent, RoleAdmin, RoleSuperAdmin}

func (r Role) IsValid() bool {
	for _, role := range AllRoles {
		if r == role {
			return true
		}
	}
	return false
}

type User struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	Email              string    `json:"email"`
	Phone              string    `json:"phone"`
	Role               Role      `json:"role"`
	IsActive           bool      `json:"is_active"`
	PasswordHash       []byte    `json:"-"`
	MustChangePassword bool      `json:"must_change_password"`
	CreatedAt          time.Time `json:"created_at"`           // UTC
	UpdatedAt          time.Time `json:"updated_at"`           // UTC
	LastLogin          time.Time `json:"last_login,omitempty"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u User) IsParent() bool { return u.Role == RoleParent }
func (u User) IsAdmin() bool  { return u.Role == RoleAdmin || u.Role == RoleSuperAdmin }

// IsAuthenticated reports whether u is a real, active account.
func (u User) IsAuthenticated() bool { return u.ID != "" && u.IsActive }

// ParentProfile holds the parent/guardian details given on the admission form.
type ParentProfile struct {
	UserID              string `json:"user_id"`
	Address             string `json:"address"`
	MedicalInstructions string `json:"medical_instructions,omitempty"`
	Signature           string `json:"signature"`
}

type AdminProfile struct {
	UserID     string `json:"user_id"`
	Position   string `json:"position,omitempty"`
	Department string `json:"department,omitempty"`
}

// NewUser contains information needed to register a new parent account.
type NewUser struct {
	Name            string `json:"name" validate:"required,notblank,min=2,max=255"`
	Email           string `json:"email" validate:"required,email,max=255"`
	Phone           string `json:"phone" validate:"required,min=10,max=50,phone"`
	Password        string `json:"password" validate:"required,min=6"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (nu *NewUser) Validate(validate *validator.Validate, svc ServiceInterface) error {
	nu.Name = core.CleanString(nu.Name)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.Phone = core.CleanString(nu.Phone)

	if err := validate.Struct(nu); err != nil {
		return err
	}
	return svc.CheckEmailUniqueness(nu.Email)
}

// NewParent holds the parent details submitted with an admission application.
type NewParent struct {
	Name                string `json:"name" validate:"required,notblank,min=2,max=255"`
	Email               string `json:"email" validate:"required,email,max=255"`
	Phone               string `json:"phone" validate:"required,min=10,max=50,phone"`
	Address             string `json:"address" validate:"required,notblank,min=5"`
	MedicalInstructions string `json:"medical_instructions"`
	Signature           string `json:"signature" validate:"required,notblank"`
}

func (np *NewParent) Clean() {
	np.Name = core.CleanString(np.Name)
	np.Email = core.CleanString(np.Email, true /* lower */)
	np.Phone = core.CleanString(np.Phone)
	np.Address = core.CleanString(np.Address)
	np.MedicalInstructions = core.CleanString(np.MedicalInstructions)
	np.Signature = core.CleanString(np.Signature)
}

// NewAdmin is used by the admin CLI to create staff accounts.
type NewAdmin struct {
	Name       string
	Email      string
	Password   string
	Role       Role
	Position   string
	Department string
}

type ChangePassword struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	Password        string `json:"password" validate:"required,min=6"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (cp ChangePassword) Validate(validate *validator.Validate) error { return validate.Struct(cp) }

type ResetUserPassword struct {
	Token           string `json:"token,omitempty" validate:"required"`
	UID             string `json:"uid,omitempty" validate:"required"`
	Password        string `json:"password,omitempty" validate:"required,min=6"`
	PasswordConfirm string `json:"password_confirm,omitempty" validate:"required,eqfield=Password"`
}

func (rp ResetUserPassword) Validate(validate *validator.Validate) error { return validate.Struct(rp) }

type GetFilter struct {
	ID    string
	Email string
}
