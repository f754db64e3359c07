package user

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/aqram/core"
)

func TestResetTokens(t *testing.T) {
	conf := &core.Config{SecretKey: "secret", PasswordResetTimeoutDelta: 72 * time.Hour}
	tokens := newResetTokens(conf)

	now := time.Now()
	usr := User{
		ID:        "3c7d5c2e-0f35-4b59-9f2b-4d1b6f5c2a11",
		Name:      "Parent",
		Email:     "parent@example.com",
		Role:      RoleParent,
		IsActive:  true,
		LastLogin: now.Add(-time.Hour),
	}
	require.NoError(t, usr.SetPassword("parent123"))

	validToken := tokens.make(usr)

	late := newResetTokens(conf)
	late.now = func() time.Time { return now.Add(-conf.PasswordResetTimeoutDelta - time.Minute) }
	expiredToken := late.make(usr)

	changedPwd := usr
	require.NoError(t, changedPwd.SetPassword("n3wpass!"))
	loggedIn := usr
	loggedIn.LastLogin = now

	otherKey := newResetTokens(&core.Config{SecretKey: "other", PasswordResetTimeoutDelta: conf.PasswordResetTimeoutDelta})

	tests := []struct {
		name    string
		tokens  *resetTokens
		usr     User
		token   string
		wantErr error
	}{
		{name: "no token", tokens: tokens, usr: usr, wantErr: errInvalidToken},
		{name: "no separator", tokens: tokens, usr: usr, token: "lmaooolol", wantErr: errInvalidToken},
		{name: "empty timestamp", tokens: tokens, usr: usr, token: "-sig", wantErr: errInvalidToken},
		{name: "bad timestamp", tokens: tokens, usr: usr, token: "$$-sig", wantErr: errInvalidToken},
		{name: "forged signature", tokens: tokens, usr: usr, token: validToken[:len(validToken)-2] + "xx", wantErr: errInvalidToken},
		{name: "expired", tokens: tokens, usr: usr, token: expiredToken, wantErr: errTokenExpired},
		{name: "password changed", tokens: tokens, usr: changedPwd, token: validToken, wantErr: errInvalidToken},
		{name: "logged in since", tokens: tokens, usr: loggedIn, token: validToken, wantErr: errInvalidToken},
		{name: "other secret key", tokens: otherKey, usr: usr, token: validToken, wantErr: errInvalidToken},
		{name: "valid", tokens: tokens, usr: usr, token: validToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantErr, tt.tokens.check(tt.usr, tt.token))
		})
	}
}

func TestEncodeDecodeUID(t *testing.T) {
	usr := User{ID: "3c7d5c2e-0f35-4b59-9f2b-4d1b6f5c2a11"}
	uid, err := decodeUID(encodeUID(usr))
	require.NoError(t, err)
	assert.Equal(t, usr.ID, uid)

	_, err = decodeUID("not base64!")
	assert.Error(t, err)
}
