package user

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/aqram/core"
)

const tempPasswordLen = 8

var (
	// errors
	ErrNotFound       = core.NewNotFoundError("user")
	ErrEmailExists    = errors.New("a user with this email already exists")
	ErrNotParentEmail = errors.New("this email belongs to a staff account")

	errWrongPassword = errors.New("current password is incorrect")
)

type (
	Repository interface {
		CheckEmailUniqueness(ctx context.Context, email string, exec ...core.DBExecutor) error
		CreateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		GetUser(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (User, error)
		UpdateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		SaveParentProfile(ctx context.Context, prof ParentProfile, exec ...core.DBExecutor) (ParentProfile, error)
		GetParentProfile(ctx context.Context, userID string, exec ...core.DBExecutor) (ParentProfile, error)
		SaveAdminProfile(ctx context.Context, prof AdminProfile, exec ...core.DBExecutor) (AdminProfile, error)
	}

	ServiceInterface interface {
		CheckEmailUniqueness(email string) error
		Register(ctx context.Context, nu NewUser) (User, error)
		CreateAdmin(ctx context.Context, na NewAdmin) (User, error)
		GetByID(ctx context.Context, id string) (User, error)
		GetByEmail(ctx context.Context, email string) (User, error)
		GetParentProfile(ctx context.Context, userID string) (ParentProfile, error)
		SetLastLogin(ctx context.Context, usr User) (User, error)
		ChangePassword(ctx context.Context, usr User, cp ChangePassword) (User, error)
		SetPassword(ctx context.Context, email, pwd string) (User, error)
		RequestPasswordReset(ctx context.Context, email string) error
		ResetPassword(ctx context.Context, data ResetUserPassword) error
		GetOrCreateParent(ctx context.Context, np NewParent, exec core.DBExecutor) (User, bool, error)
		IssueTemporaryPassword(ctx context.Context, usr User, exec core.DBExecutor) (User, string, error)
	}

	service struct {
		db      core.Transactor
		repo    Repository
		mailSvc core.EmailService
		conf    *core.Config
		tokens  *resetTokens
	}
)

var _ ServiceInterface = (*service)(nil)

func NewService(db core.Transactor, repo Repository, mailSvc core.EmailService, conf *core.Config) *service {
	return &service{
		db:      db,
		repo:    repo,
		mailSvc: mailSvc,
		conf:    conf,
		tokens:  newResetTokens(conf),
	}
}

func (svc *service) CheckEmailUniqueness(email string) error {
	if err := svc.repo.CheckEmailUniqueness(context.Background(), email); err != nil {
		if err == ErrEmailExists {
			return core.NewValidationError(err, core.FieldError{Field: "email", Error: err.Error()})
		}
		return errors.Wrap(err, "checking email uniqueness")
	}
	return nil
}

// Register creates a new active PARENT account from the registration form.
func (svc *service) Register(ctx context.Context, nu NewUser) (User, error) {
	now := time.Now().UTC()
	usr := User{
		Name:      nu.Name,
		Email:     nu.Email,
		Phone:     nu.Phone,
		Role:      RoleParent,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}
	usr, err := svc.repo.CreateUser(ctx, usr)
	return usr, errors.Wrap(err, "creating user")
}

// CreateAdmin creates a staff account, or promotes and updates it if the email is taken.
func (svc *service) CreateAdmin(ctx context.Context, na NewAdmin) (User, error) {
	var usr User
	role := na.Role
	if role == "" {
		role = RoleAdmin
	}

	err := svc.db.Transact(ctx, func(exec core.DBExecutor) error {
		now := time.Now().UTC()
		email := core.CleanString(na.Email, true /* lower */)

		var err error
		usr, err = svc.repo.GetUser(ctx, GetFilter{Email: email}, exec)
		if err != nil && err != ErrNotFound {
			return errors.Wrap(err, "finding user by email")
		}
		usr.Name = core.CleanString(na.Name)
		usr.Email = email
		usr.Role = role
		usr.IsActive = true
		usr.UpdatedAt = now
		if err = usr.SetPassword(na.Password); err != nil {
			return errors.Wrap(err, "setting password")
		}

		if usr.ID == "" {
			usr.CreatedAt = now
			if usr, err = svc.repo.CreateUser(ctx, usr, exec); err != nil {
				return errors.Wrap(err, "creating user")
			}
		} else if usr, err = svc.repo.UpdateUser(ctx, usr, exec); err != nil {
			return errors.Wrap(err, "updating user")
		}

		_, err = svc.repo.SaveAdminProfile(ctx, AdminProfile{UserID: usr.ID, Position: na.Position, Department: na.Department}, exec)
		return errors.Wrap(err, "saving admin profile")
	})
	return usr, err
}

func (svc *service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
}

func (svc *service) GetParentProfile(ctx context.Context, userID string) (ParentProfile, error) {
	return svc.repo.GetParentProfile(ctx, userID)
}

func (svc *service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

// ChangePassword replaces the password of an authenticated user and lifts the temporary credential flag.
func (svc *service) ChangePassword(ctx context.Context, usr User, cp ChangePassword) (User, error) {
	if err := usr.CheckPassword(cp.CurrentPassword); err != nil {
		return User{}, core.NewValidationError(errWrongPassword, core.FieldError{Field: "current_password", Error: errWrongPassword.Error()})
	}
	if err := usr.SetPassword(cp.Password); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}
	usr.MustChangePassword = false
	usr.UpdatedAt = time.Now().UTC()
	usr, err := svc.repo.UpdateUser(ctx, usr)
	return usr, errors.Wrap(err, "updating user")
}

// SetPassword is used by the admin CLI.
func (svc *service) SetPassword(ctx context.Context, email, pwd string) (User, error) {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return User{}, err
	}
	if err = usr.SetPassword(pwd); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}
	usr.MustChangePassword = false
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !usr.IsActive {
		return ErrNotFound
	}
	go svc.sendPasswordResetMail(usr)
	return nil
}

func (svc *service) ResetPassword(ctx context.Context, data ResetUserPassword) error {
	uid, err := decodeUID(data.UID)
	if err != nil {
		return core.NewValidationError(errInvalidToken)
	}
	usr, err := svc.GetByID(ctx, uid)
	if err != nil {
		if err == ErrNotFound {
			return core.NewValidationError(errInvalidToken)
		}
		return err
	}
	if err = svc.tokens.check(usr, data.Token); err != nil {
		if err == errInvalidToken || err == errTokenExpired {
			return core.NewValidationError(err)
		}
		return err
	}

	if err = usr.SetPassword(data.Password); err != nil {
		return errors.Wrap(err, "setting password")
	}
	usr.MustChangePassword = false
	usr.UpdatedAt = time.Now().UTC()
	_, err = svc.repo.UpdateUser(ctx, usr)
	return errors.Wrap(err, "updating user")
}

// GetOrCreateParent finds the parent by email or creates a PARENT account with a random credential
// and the submitted profile. An existing account is left untouched; emails of non-PARENT accounts are rejected.
func (svc *service) GetOrCreateParent(ctx context.Context, np NewParent, exec core.DBExecutor) (User, bool, error) {
	usr, err := svc.repo.GetUser(ctx, GetFilter{Email: np.Email}, exec)
	switch {
	case err == nil:
		if !usr.IsParent() {
			return User{}, false, core.NewValidationError(
				ErrNotParentEmail, core.FieldError{Field: "parent.email", Error: ErrNotParentEmail.Error()},
			)
		}
		return usr, false, nil
	case err != ErrNotFound:
		return User{}, false, errors.Wrap(err, "finding parent by email")
	}

	now := time.Now().UTC()
	usr = User{
		Name:               np.Name,
		Email:              np.Email,
		Phone:              np.Phone,
		Role:               RoleParent,
		IsActive:           true,
		MustChangePassword: true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	pwd, err := generateTemporaryPassword()
	if err != nil {
		return User{}, false, errors.Wrap(err, "generating temporary password")
	}
	if err = usr.SetPassword(pwd); err != nil {
		return User{}, false, errors.Wrap(err, "setting password")
	}
	if usr, err = svc.repo.CreateUser(ctx, usr, exec); err != nil {
		return User{}, false, errors.Wrap(err, "creating parent")
	}

	prof := ParentProfile{
		UserID:              usr.ID,
		Address:             np.Address,
		MedicalInstructions: np.MedicalInstructions,
		Signature:           np.Signature,
	}
	if _, err = svc.repo.SaveParentProfile(ctx, prof, exec); err != nil {
		return User{}, false, errors.Wrap(err, "saving parent profile")
	}
	return usr, true, nil
}

// IssueTemporaryPassword rotates usr's credential to a new random one, returned in clear for emailing.
func (svc *service) IssueTemporaryPassword(ctx context.Context, usr User, exec core.DBExecutor) (User, string, error) {
	pwd, err := generateTemporaryPassword()
	if err != nil {
		return User{}, "", errors.Wrap(err, "generating temporary password")
	}
	if err = usr.SetPassword(pwd); err != nil {
		return User{}, "", errors.Wrap(err, "setting password")
	}
	usr.MustChangePassword = true
	usr.UpdatedAt = time.Now().UTC()
	if usr, err = svc.repo.UpdateUser(ctx, usr, exec); err != nil {
		return User{}, "", errors.Wrap(err, "updating user")
	}
	return usr, pwd, nil
}

type passwordResetData struct {
	Name     string
	ResetURL string
}

func (svc *service) sendPasswordResetMail(usr User) {
	token := svc.tokens.make(usr)
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Password Reset",
		TemplateName: "password_reset",
		TemplateData: passwordResetData{
			Name:     usr.Name,
			ResetURL: fmt.Sprintf("%s/password-reset?uid=%s&token=%s", svc.conf.FrontendBaseURL, encodeUID(usr), token),
		},
	})
}

func generateTemporaryPassword() (string, error) {
	return core.RandomLowerAlphaNum(tempPasswordLen)
}
