package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	echoapi "github.com/trezcool/aqram/apps/api/echo"
	"github.com/trezcool/aqram/core/user"
	"github.com/trezcool/aqram/tests"
)

var (
	env *testutil.Env
	app *echoapi.Server
)

func TestMain(m *testing.M) {
	env = testutil.NewEnv()

	// set up server
	app = echoapi.NewServer(
		&echoapi.Deps{
			Conf:         env.Conf,
			Logger:       env.Logger,
			Validate:     env.Validate,
			Translator:   env.Translator,
			UserSvc:      env.UserSvc,
			AdmissionSvc: env.AdmissionSvc,
			FeeSvc:       env.FeeSvc,
			NotifSvc:     env.NotifSvc,
			DashboardSvc: env.DashboardSvc,
			ContactSvc:   env.ContactSvc,
		},
		make(chan os.Signal, 1),
	)

	os.Exit(m.Run())
}

// envelope is the shape of every API response.
type envelope struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Data    json.RawMessage   `json:"data"`
	Errors  map[string]string `json:"errors"`
}

type httpTest struct {
	name        string
	method      string
	path        string
	body        interface{}
	token       string
	wantCode    int
	wantMessage string
	wantFields  []string // keys expected in "errors"
}

func newAuthRequest(t *testing.T, method, path, token string, data interface{}) (*http.Request, *httptest.ResponseRecorder) {
	t.Helper()
	var body bytes.Buffer
	if data != nil {
		if raw, ok := data.([]byte); ok {
			body.Write(raw)
		} else if err := json.NewEncoder(&body).Encode(data); err != nil {
			t.Fatalf("newAuthRequest() failed: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, httptest.NewRecorder()
}

// do serves the request and decodes the response envelope.
func do(t *testing.T, method, path, token string, data interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req, rec := newAuthRequest(t, method, path, token, data)
	app.ServeHTTP(rec, req)

	var resp envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
	return rec, resp
}

func decodeData(t *testing.T, resp envelope, dst interface{}) {
	t.Helper()
	if err := json.Unmarshal(resp.Data, dst); err != nil {
		t.Fatalf("decoding data %q: %v", string(resp.Data), err)
	}
}

func getToken(t *testing.T, usr user.User) string {
	t.Helper()
	token, err := app.Token(usr)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func runHTTPTests(t *testing.T, tests []httpTest) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, resp := do(t, tt.method, tt.path, tt.token, tt.body)
			if rec.Code != tt.wantCode {
				t.Errorf("failed! code = %v; wantCode %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
			}
			if wantSuccess := tt.wantCode < 400; resp.Success != wantSuccess {
				t.Errorf("failed! success = %v; want %v", resp.Success, wantSuccess)
			}
			if tt.wantMessage != "" && resp.Message != tt.wantMessage {
				t.Errorf("failed! message = %q; wantMessage %q", resp.Message, tt.wantMessage)
			}
			for _, fld := range tt.wantFields {
				if _, ok := resp.Errors[fld]; !ok {
					t.Errorf("failed! errors = %v; want field %q", resp.Errors, fld)
				}
			}
		})
	}
}

// seedUsers resets the store and creates an admin, two parents and an inactive parent.
func seedUsers(t *testing.T) (admin, parent, other, inactive user.User) {
	t.Helper()
	env.Reset()
	admin = testutil.CreateUser(t, env.UsrRepo, "Admin", "admin@aqram.com", "admin123", user.RoleAdmin, true)
	parent = testutil.CreateUser(t, env.UsrRepo, "Parent", "parent@example.com", "parent123", user.RoleParent, true)
	other = testutil.CreateUser(t, env.UsrRepo, "Other", "other@example.com", "other123", user.RoleParent, true)
	inactive = testutil.CreateUser(t, env.UsrRepo, "Gone", "gone@example.com", "gone1234", user.RoleParent, false)
	return
}
