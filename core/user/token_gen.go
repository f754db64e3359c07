package user

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/aqram/core"
)

const resetTokenSalt = "aqram.core.user.resetTokens"

var (
	errInvalidToken = errors.New("invalid token")
	errTokenExpired = errors.New("token expired")
)

// resetTokens issues and checks password reset tokens of the form "<issued at, base36>-<signature>".
// The signature covers the password hash and the last login, so a token stops working once the
// password is reset or the user logs in.
type resetTokens struct {
	key     []byte
	timeout time.Duration
	now     func() time.Time
}

func newResetTokens(conf *core.Config) *resetTokens {
	key := sha256.Sum256([]byte(resetTokenSalt + conf.SecretKey))
	return &resetTokens{
		key:     key[:],
		timeout: conf.PasswordResetTimeoutDelta,
		now:     time.Now,
	}
}

func (rt *resetTokens) make(usr User) string {
	return rt.tokenAt(usr, rt.now().Unix())
}

func (rt *resetTokens) check(usr User, token string) error {
	i := strings.IndexByte(token, '-')
	if i <= 0 {
		return errInvalidToken
	}
	issuedAt, err := strconv.ParseInt(token[:i], 36, 64)
	if err != nil {
		return errInvalidToken
	}
	if !hmac.Equal([]byte(rt.tokenAt(usr, issuedAt)), []byte(token)) {
		return errInvalidToken
	}
	if rt.now().Sub(time.Unix(issuedAt, 0)) > rt.timeout {
		return errTokenExpired
	}
	return nil
}

func (rt *resetTokens) tokenAt(usr User, issuedAt int64) string {
	ts := strconv.FormatInt(issuedAt, 36)

	mac := hmac.New(sha256.New, rt.key)
	mac.Write([]byte(usr.ID))
	mac.Write([]byte(usr.Email))
	mac.Write(usr.PasswordHash)
	if !usr.LastLogin.IsZero() {
		mac.Write([]byte(usr.LastLogin.UTC().Format(time.RFC3339Nano)))
	}
	mac.Write([]byte(ts))
	return ts + "-" + base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// encodeUID hides the raw user ID in reset links.
func encodeUID(usr User) string {
	return base64.RawURLEncoding.EncodeToString([]byte(usr.ID))
}

func decodeUID(uid string) (string, error) {
	id, err := base64.RawURLEncoding.DecodeString(uid)
	return string(id), err
}
