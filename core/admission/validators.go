package admission

import (
	"strconv"
	"strings"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/aqram/core"
)

var (
	reasonRequiredTag  = "reason_required"
	reasonRequiredText = "a rejection reason is required when rejecting an application"

	dobInvalidTag  = "dob_invalid"
	dobInvalidText = "date of birth is not a valid date"
	dobFutureTag   = "dob_future"
	dobFutureText  = "date of birth cannot be in the future"

	nowFunc = time.Now // mockable
)

func InitValidators(validate *validator.Validate, translator ut.Translator) {
	validate.RegisterStructValidation(reviewStructValidation, ReviewApplication{})
	core.RegisterCustomTranslation(validate, translator, reasonRequiredTag, reasonRequiredText)

	validate.RegisterStructValidation(studentStructValidation, NewStudent{})
	core.RegisterCustomTranslation(validate, translator, dobInvalidTag, dobInvalidText)
	core.RegisterCustomTranslation(validate, translator, dobFutureTag, dobFutureText)
}

// reviewStructValidation requires a rejection reason iff the application is being rejected.
func reviewStructValidation(sl validator.StructLevel) {
	ra, ok := sl.Current().Interface().(ReviewApplication)
	if !ok {
		return
	}
	if ra.Status == StatusRejected && ra.RejectionReason == "" {
		sl.ReportError(ra.RejectionReason, "rejection_reason", "RejectionReason", reasonRequiredTag, "")
	}
}

// studentStructValidation checks that the date of birth parts make a real, past date.
// Malformed parts are left to the field tags.
func studentStructValidation(sl validator.StructLevel) {
	st, ok := sl.Current().Interface().(NewStudent)
	if !ok {
		return
	}
	day, dErr := strconv.Atoi(st.DateOfBirthDay)
	year, yErr := strconv.Atoi(st.DateOfBirthYear)
	month, mOk := parseMonth(st.DateOfBirthMonth)
	if dErr != nil || yErr != nil || !mOk {
		if dErr == nil && yErr == nil && st.DateOfBirthMonth != "" {
			sl.ReportError(st.DateOfBirthMonth, "date_of_birth_month", "DateOfBirthMonth", dobInvalidTag, "")
		}
		return
	}

	dob := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if day < 1 || dob.Day() != day || dob.Month() != month {
		sl.ReportError(st.DateOfBirthDay, "date_of_birth_day", "DateOfBirthDay", dobInvalidTag, "")
		return
	}
	if dob.After(nowFunc().UTC()) {
		sl.ReportError(st.DateOfBirthYear, "date_of_birth_year", "DateOfBirthYear", dobFutureTag, "")
	}
}

// parseMonth accepts 1-12, full month names and their 3 letter abbreviations.
func parseMonth(s string) (time.Month, bool) {
	if n, err := strconv.Atoi(s); err == nil {
		return time.Month(n), n >= 1 && n <= 12
	}
	s = strings.ToLower(s)
	for m := time.January; m <= time.December; m++ {
		name := strings.ToLower(m.String())
		if s == name || (len(s) == 3 && strings.HasPrefix(name, s)) {
			return m, true
		}
	}
	return 0, false
}
