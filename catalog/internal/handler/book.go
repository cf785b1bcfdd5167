package handler

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/Astemirdum/library-catalog/catalog/internal/model"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

const coverField = "cover"

func (h *Handler) ListBooks(c echo.Context) error {
	books, err := h.bookSvc.ListBooks(c.Request().Context())
	if err != nil {
		return h.httpError(c, err)
	}
	return c.JSON(http.StatusOK, books)
}

func (h *Handler) GetBook(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	book, err := h.bookSvc.GetBook(c.Request().Context(), id)
	if err != nil {
		return h.httpError(c, err)
	}
	return c.JSON(http.StatusOK, book)
}

func (h *Handler) ListCopies(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	copies, err := h.bookSvc.ListCopies(c.Request().Context(), id)
	if err != nil {
		return h.httpError(c, err)
	}
	return c.JSON(http.StatusOK, copies)
}

func (h *Handler) ListAuthors(c echo.Context) error {
	refs, err := h.bookSvc.ListAuthors(c.Request().Context())
	if err != nil {
		return h.httpError(c, err)
	}
	return c.JSON(http.StatusOK, refs)
}

func (h *Handler) ListCategories(c echo.Context) error {
	refs, err := h.bookSvc.ListCategories(c.Request().Context())
	if err != nil {
		return h.httpError(c, err)
	}
	return c.JSON(http.StatusOK, refs)
}

func (h *Handler) CreateBook(c echo.Context) error {
	form, err := readBookForm(c)
	if err != nil {
		return err
	}
	defer form.Close()
	req := model.CreateBookRequest{
		Title:       strings.TrimSpace(form.get("title")),
		Description: form.get("description"),
		Cover:       form.cover,
	}
	if req.Authors, err = form.ids("authors"); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Categories, err = form.ids("categories"); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Title == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "title is required")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	book, err := h.bookSvc.CreateBook(c.Request().Context(), req)
	if err != nil {
		return h.httpError(c, err)
	}
	return c.JSON(http.StatusCreated, book)
}

func (h *Handler) UpdateBook(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	form, err := readBookForm(c)
	if err != nil {
		return err
	}
	defer form.Close()
	req := model.UpdateBookRequest{Cover: form.cover}
	if form.has("title") {
		title := strings.TrimSpace(form.get("title"))
		if title == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "title must not be empty")
		}
		req.Title = &title
	}
	if form.has("description") {
		description := form.get("description")
		req.Description = &description
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.bookSvc.UpdateBook(c.Request().Context(), id, req); err != nil {
		return h.httpError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"updated": true})
}

func (h *Handler) DeleteBook(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := h.bookSvc.DeleteBook(c.Request().Context(), id); err != nil {
		return h.httpError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"deleted": true})
}

// bookForm holds create/update input from either a multipart form
// (with an optional cover file) or a JSON body.
type bookForm struct {
	values map[string][]string
	cover  *model.Upload
	closer io.Closer
}

func (f bookForm) Close() {
	if f.closer != nil {
		_ = f.closer.Close()
	}
}

type bookJSON struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Authors     []int64 `json:"authors"`
	Categories  []int64 `json:"categories"`
}

func readBookForm(c echo.Context) (bookForm, error) {
	ctype := c.Request().Header.Get(echo.HeaderContentType)
	switch {
	case strings.HasPrefix(ctype, echo.MIMEMultipartForm):
		return readMultipart(c)
	case strings.HasPrefix(ctype, echo.MIMEApplicationForm):
		values, err := c.FormParams()
		if err != nil {
			return bookForm{}, echo.NewHTTPError(http.StatusBadRequest, "invalid form")
		}
		return bookForm{values: values}, nil
	}
	var body bookJSON
	if err := c.Bind(&body); err != nil {
		return bookForm{}, echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	form := bookForm{values: map[string][]string{}}
	if body.Title != nil {
		form.values["title"] = []string{*body.Title}
	}
	if body.Description != nil {
		form.values["description"] = []string{*body.Description}
	}
	for _, id := range body.Authors {
		form.values["authors"] = append(form.values["authors"], strconv.FormatInt(id, 10))
	}
	for _, id := range body.Categories {
		form.values["categories"] = append(form.values["categories"], strconv.FormatInt(id, 10))
	}
	return form, nil
}

func readMultipart(c echo.Context) (bookForm, error) {
	mf, err := c.MultipartForm()
	if err != nil {
		var (
			maxErr  *http.MaxBytesError
			httpErr *echo.HTTPError
		)
		if errors.As(err, &maxErr) || (errors.As(err, &httpErr) && httpErr.Code == http.StatusRequestEntityTooLarge) {
			return bookForm{}, echo.NewHTTPError(http.StatusRequestEntityTooLarge, "file too large")
		}
		return bookForm{}, echo.NewHTTPError(http.StatusBadRequest, "invalid multipart form")
	}
	form := bookForm{values: mf.Value}
	if fhs := mf.File[coverField]; len(fhs) > 0 {
		f, err := fhs[0].Open()
		if err != nil {
			return bookForm{}, echo.NewHTTPError(http.StatusBadRequest, "cannot read cover")
		}
		form.closer = f
		form.cover = &model.Upload{
			Filename:    fhs[0].Filename,
			ContentType: fhs[0].Header.Get(echo.HeaderContentType),
			Body:        f,
		}
	}
	return form, nil
}

func (f bookForm) has(key string) bool {
	_, ok := f.values[key]
	return ok
}

func (f bookForm) get(key string) string {
	if v := f.values[key]; len(v) > 0 {
		return v[0]
	}
	return ""
}

// ids accepts repeated keys (authors=1&authors=2), the bracket form
// (authors[]=1) and comma separated lists.
func (f bookForm) ids(key string) ([]int64, error) {
	raw := append(append([]string{}, f.values[key]...), f.values[key+"[]"]...)
	ids := make([]int64, 0, len(raw))
	for _, v := range raw {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil || id <= 0 {
				return nil, errors.Errorf("%s: invalid id %q", key, part)
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}
