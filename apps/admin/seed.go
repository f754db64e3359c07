package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/trezcool/aqram/core/admission"
	"github.com/trezcool/aqram/core/user"
)

const (
	seedAdminEmail   = "admin@aqram.com"
	seedParentEmail  = "parent@example.com"
	seedPendingEmail = "pending@example.com"
)

// seed loads the demo data: an admin, a parent with an approved application and a parent with a pending one.
// Parents that already exist are left alone, so running it twice is harmless.
func (cli *commandLine) seed() error {
	ctx := context.Background()

	admin, err := cli.usrSvc.CreateAdmin(ctx, user.NewAdmin{
		Name:       "Admin User",
		Email:      seedAdminEmail,
		Password:   "admin123",
		Position:   "Admissions Officer",
		Department: "Administration",
	})
	if err != nil {
		return errors.Wrap(err, "seeding admin")
	}

	approved := admission.NewApplication{
		Parent: user.NewParent{
			Name:                "John Smith",
			Email:               seedParentEmail,
			Phone:               "+1987654321",
			Address:             "123 Main Street, Anytown, ST 12345",
			MedicalInstructions: "Contact family doctor at +1555987654 in case of emergency",
			Signature:           "John Smith",
		},
		Students: []admission.NewStudent{
			seedStudent("Smith", "Emma", "15", "5", "2018", admission.GenderFemale, "Lagos", "Kindergarten"),
			seedStudent("Smith", "Oliver", "22", "8", "2015", admission.GenderMale, "Lagos", "Grade 3"),
		},
	}
	if err = cli.seedParent(ctx, approved, "parent123", &admin); err != nil {
		return err
	}

	pending := admission.NewApplication{
		Parent: user.NewParent{
			Name:                "Sarah Johnson",
			Email:               seedPendingEmail,
			Phone:               "+1555987654",
			Address:             "456 Oak Avenue, Somewhere, ST 67890",
			MedicalInstructions: "In case of emergency, contact family doctor at +1555111222",
			Signature:           "Sarah Johnson",
		},
		Students: []admission.NewStudent{
			seedStudent("Johnson", "Liam", "10", "3", "2019", admission.GenderMale, "Abuja", "Nursery 2"),
		},
	}
	if err = cli.seedParent(ctx, pending, "temp123", nil); err != nil {
		return err
	}

	fmt.Println("Demo accounts:")
	fmt.Printf("  Admin: %s / admin123\n", seedAdminEmail)
	fmt.Printf("  Parent (with approved children): %s / parent123\n", seedParentEmail)
	fmt.Printf("  Parent (with pending application): %s / temp123\n", seedPendingEmail)
	return nil
}

// seedParent submits na, approves it when reviewer is set, then gives the parent a known password.
func (cli *commandLine) seedParent(ctx context.Context, na admission.NewApplication, pwd string, reviewer *user.User) error {
	if _, err := cli.usrSvc.GetByEmail(ctx, na.Parent.Email); err == nil {
		return nil
	} else if err != user.ErrNotFound {
		return errors.Wrapf(err, "finding %s", na.Parent.Email)
	}

	app, err := cli.appSvc.Submit(ctx, na)
	if err != nil {
		return errors.Wrapf(err, "submitting application for %s", na.Parent.Email)
	}
	if reviewer != nil {
		ra := admission.ReviewApplication{Status: admission.StatusApproved}
		if _, err = cli.appSvc.Review(ctx, *reviewer, app.ID, ra); err != nil {
			return errors.Wrapf(err, "approving %s", app.Number)
		}
	}
	_, err = cli.usrSvc.SetPassword(ctx, na.Parent.Email, pwd)
	return errors.Wrapf(err, "setting password for %s", na.Parent.Email)
}

func seedStudent(surname, otherName, day, month, year string, gender admission.Gender, state, class string) admission.NewStudent {
	return admission.NewStudent{
		Surname:               surname,
		OtherName:             otherName,
		DateOfBirthDay:        day,
		DateOfBirthMonth:      month,
		DateOfBirthYear:       year,
		Gender:                gender,
		StateOfOrigin:         state,
		Nationality:           "Nigerian",
		Religion:              "Christianity",
		ClassSeekingAdmission: class,
	}
}
