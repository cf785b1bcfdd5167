package handler

import (
	"net/http"
	"strconv"

	_ "github.com/Astemirdum/library-catalog/catalog/swagger"
	"github.com/Astemirdum/library-catalog/pkg/assets"
	"github.com/Astemirdum/library-catalog/pkg/auth"
	md "github.com/Astemirdum/library-catalog/pkg/middleware"
	"github.com/Astemirdum/library-catalog/pkg/validate"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	echoSwagger "github.com/swaggo/echo-swagger"
	"go.uber.org/zap"
)

// AssetFiles resolves stored cover files for serving.
type AssetFiles interface {
	Path(name string) (string, error)
	Exists(name string) bool
	MaxSize() int64
}

type Handler struct {
	authSvc  AuthService
	bookSvc  BookService
	loanSvc  LoanService
	verifier md.TokenVerifier
	files    AssetFiles
	log      *zap.Logger
}

func New(
	authSvc AuthService,
	bookSvc BookService,
	loanSvc LoanService,
	verifier md.TokenVerifier,
	files AssetFiles,
	log *zap.Logger,
) *Handler {
	return &Handler{
		authSvc:  authSvc,
		bookSvc:  bookSvc,
		loanSvc:  loanSvc,
		verifier: verifier,
		files:    files,
		log:      log.Named("handler"),
	}
}

func (h *Handler) NewRouter() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 4 << 10, // 4 KB
	}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{http.MethodGet, http.MethodOptions, http.MethodHead, http.MethodPut, http.MethodPost, http.MethodDelete},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		AllowCredentials: true,
	}))
	e.Validator = validate.NewCustomValidator()

	e.GET("/manage/health", h.Health)
	e.GET("/swagger/*", echoSwagger.WrapHandler)
	e.GET("/assets/:file", h.Asset)

	api := e.Group("",
		middleware.RequestLoggerWithConfig(md.RequestLoggerConfig(h.log)),
		middleware.RequestID(),
	)

	admin := md.Guard(h.verifier, auth.RoleAdmin)
	member := md.Guard(h.verifier)
	// multipart overhead on top of the largest accepted file
	uploadLimit := middleware.BodyLimit(strconv.FormatInt(h.files.MaxSize()+1<<20, 10) + "B")

	api.POST("/auth/register", h.Register)
	api.POST("/auth/login", h.Login)

	api.GET("/books", h.ListBooks)
	api.GET("/books/:id", h.GetBook)
	api.GET("/books/:id/copies", h.ListCopies)
	api.POST("/books", h.CreateBook, admin, uploadLimit)
	api.PUT("/books/:id", h.UpdateBook, admin, uploadLimit)
	api.DELETE("/books/:id", h.DeleteBook, admin)

	api.GET("/authors", h.ListAuthors)
	api.GET("/categories", h.ListCategories)

	api.GET("/loans", h.ListLoans, member)
	api.POST("/loans", h.Borrow, member)
	api.POST("/loans/:id/return", h.Return, member)

	return e
}

func (h *Handler) Health(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

func (h *Handler) Asset(c echo.Context) error {
	name := c.Param("file")
	if name == assets.Fallback && !h.files.Exists(name) {
		return c.Blob(http.StatusOK, "image/png", assets.FallbackImage)
	}
	full, err := h.files.Path(name)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "Not Found")
	}
	return c.File(full)
}

func paramID(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, name+" is invalid")
	}
	return id, nil
}
