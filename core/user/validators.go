package user

import (
	"strings"
	"unicode"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/trezcool/aqram/core"
)

var (
	// password policy
	pwdNoSpaceTag  = "pwdnospace"
	pwdNoSpaceText = "password must not contain whitespace"

	pwdNotAllNumTag  = "pwdnotallnum"
	pwdNotAllNumText = "password cannot be entirely numeric"

	pwdMaxSim      = .7
	pwdAttrSimTag  = "pwdtoosim"
	pwdAttrSimText = "password cannot be similar to your name or email"
)

func InitValidators(validate *validator.Validate, translator ut.Translator) {
	validate.RegisterStructValidation(passwordStructValidation, NewUser{}, ChangePassword{}, ResetUserPassword{})
	core.RegisterCustomTranslation(validate, translator, pwdNoSpaceTag, pwdNoSpaceText)
	core.RegisterCustomTranslation(validate, translator, pwdNotAllNumTag, pwdNotAllNumText)
	core.RegisterCustomTranslation(validate, translator, pwdAttrSimTag, pwdAttrSimText)
}

// passwordStructValidation applies the password policy to structs carrying a new password.
func passwordStructValidation(sl validator.StructLevel) {
	switch data := sl.Current().Interface().(type) {
	case NewUser:
		validatePassword(data.Password, sl, data.Name, data.Email)
	case ChangePassword:
		validatePassword(data.Password, sl)
	case ResetUserPassword:
		validatePassword(data.Password, sl)
	}
}

// validatePassword applies the password policy to provided password:
// - no whitespace
// - no all numeric
// - no user attrs similarity
// Length is enforced by the `min` tag.
func validatePassword(pwd string, sl validator.StructLevel, attrs ...string) {
	if pwd == "" {
		return
	}
	reportErr := func(tag string) {
		sl.ReportError(pwd, "password", "Password", tag, "")
	}

	var digitCount int
	for _, char := range pwd {
		if unicode.IsSpace(char) {
			reportErr(pwdNoSpaceTag)
			return
		}
		if unicode.IsDigit(char) {
			digitCount++
		}
	}
	if digitCount == len([]rune(pwd)) {
		reportErr(pwdNotAllNumTag)
		return
	}

	getRatio := func(pass, usrAttr string) float64 {
		if usrAttr == "" {
			return 0
		}
		return difflib.NewMatcher(strings.Split(strings.ToLower(pass), ""), strings.Split(strings.ToLower(usrAttr), "")).QuickRatio()
	}
	for _, attr := range attrs {
		if getRatio(pwd, attr) >= pwdMaxSim {
			reportErr(pwdAttrSimTag)
			return
		}
	}
}
