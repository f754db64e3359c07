package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/aqram/core"
	"github.com/trezcool/aqram/core/admission"
	"github.com/trezcool/aqram/core/contact"
	"github.com/trezcool/aqram/core/dashboard"
	"github.com/trezcool/aqram/core/fee"
	"github.com/trezcool/aqram/core/notification"
	"github.com/trezcool/aqram/core/user"
)

// Deps are the services exposed by the API.
type Deps struct {
	Conf         *core.Config
	Logger       core.Logger
	Validate     *validator.Validate
	Translator   ut.Translator
	UserSvc      user.ServiceInterface
	AdmissionSvc admission.ServiceInterface
	FeeSvc       fee.ServiceInterface
	NotifSvc     notification.ServiceInterface
	DashboardSvc dashboard.ServiceInterface
	ContactSvc   contact.ServiceInterface
}

type Server struct {
	app      *echo.Echo
	deps     *Deps
	auth     *authenticator
	errors   chan error
	shutdown chan os.Signal
}

// NewServer registers every route on a new echo instance.
// A nil shutdown channel is replaced by one notified on SIGINT and SIGTERM.
func NewServer(deps *Deps, shutdown chan os.Signal) *Server {
	if shutdown == nil {
		shutdown = make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	}
	s := &Server{
		app:      echo.New(),
		deps:     deps,
		auth:     newAuthenticator(deps.Conf),
		errors:   make(chan error, 1),
		shutdown: shutdown,
	}
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Debug = conf.Debug
	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.SignalShutdown)

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.TestMode {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{conf.FrontendBaseURL},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	s.app.GET("/", s.home)

	g := s.app.Group("/api")
	jwt := middleware.JWTWithConfig(s.auth.jwtConfig)

	registerUserAPI(g, jwt, s.auth, s.deps)
	registerAdmissionAPI(g, jwt, s.auth, s.deps)
	registerFeeAPI(g, jwt, s.auth, s.deps)
	registerNotificationAPI(g, jwt, s.auth, s.deps)
	registerDashboardAPI(g, jwt, s.auth, s.deps)
	registerContactAPI(g, s.deps)
}

// Start blocks until the server stops. Errors other than a clean shutdown are sent to Errors().
func (s *Server) Start() {
	if err := s.app.Start(s.deps.Conf.Server.Address()); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error { return s.errors }

func (s *Server) ShutdownSignal() <-chan os.Signal { return s.shutdown }

// SignalShutdown asks main to stop the server gracefully.
func (s *Server) SignalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.app.ServeHTTP(w, r)
}

// Token issues a JWT for usr. Used by the admin tooling and tests.
func (s *Server) Token(usr user.User) (string, error) {
	return s.auth.generateToken(s.auth.userClaims(usr))
}

func (s *Server) home(ctx echo.Context) error {
	return ok(ctx, http.StatusOK, "Welcome to "+s.deps.Conf.AppName+" API!", nil)
}
