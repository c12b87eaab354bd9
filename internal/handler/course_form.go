package handler

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/course-marketplace/internal/service"
)

// imageField is the multipart field carrying a course image.
const imageField = "courseImage"

// splitFormKey maps "instructor[name]" and "instructor.name" to
// ("instructor", "name") and "tags[]" to ("tags", "").
func splitFormKey(key string) (parent, child string) {
	if i := strings.IndexByte(key, '['); i > 0 && strings.HasSuffix(key, "]") {
		return key[:i], key[i+1 : len(key)-1]
	}
	if i := strings.IndexByte(key, '.'); i > 0 {
		return key[:i], key[i+1:]
	}
	return key, ""
}

// formFields folds form values into a JSON-shaped map so course payloads
// share one decoder. Repeated keys and "x[]" keys become arrays; bracketed
// or dotted keys become nested objects.
func formFields(values map[string][]string) map[string]any {
	out := make(map[string]any, len(values))
	for key, vals := range values {
		if len(vals) == 0 {
			continue
		}
		var v any = vals[0]
		if len(vals) > 1 || strings.HasSuffix(key, "[]") {
			v = vals
		}
		parent, child := splitFormKey(key)
		if child == "" {
			out[parent] = v
			continue
		}
		m, ok := out[parent].(map[string]any)
		if !ok {
			m = map[string]any{}
			out[parent] = m
		}
		m[child] = v
	}
	return out
}

// decodeCourse fills dst from a JSON, urlencoded or multipart body and
// validates it. A multipart courseImage file is returned as an upload; the
// caller must run the returned cleanup.
func decodeCourse(c echo.Context, dst any) (*service.Upload, func(), error) {
	nop := func() {}
	r := c.Request()
	ctype := r.Header.Get(echo.HeaderContentType)

	var (
		img     *service.Upload
		cleanup = nop
		values  map[string][]string
	)
	switch {
	case strings.HasPrefix(ctype, echo.MIMEMultipartForm):
		form, err := c.MultipartForm()
		if err != nil {
			return nil, nop, errInvalidBody
		}
		values = form.Value
		fh, err := c.FormFile(imageField)
		switch {
		case errors.Is(err, http.ErrMissingFile):
		case err != nil:
			return nil, nop, errInvalidBody
		default:
			f, err := fh.Open()
			if err != nil {
				return nil, nop, err
			}
			img = &service.Upload{Filename: fh.Filename, Body: f}
			cleanup = func() { _ = f.Close() }
		}
	case strings.HasPrefix(ctype, echo.MIMEApplicationForm):
		if err := r.ParseForm(); err != nil {
			return nil, nop, errInvalidBody
		}
		values = r.PostForm
	}

	if values != nil {
		raw, err := sonic.Marshal(formFields(values))
		if err == nil {
			err = sonic.Unmarshal(raw, dst)
		}
		if err != nil {
			cleanup()
			return nil, nop, errInvalidBody
		}
	} else {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, nop, errInvalidBody
		}
		if len(body) > 0 {
			if err := sonic.Unmarshal(body, dst); err != nil {
				return nil, nop, errInvalidBody
			}
		}
	}

	if err := c.Validate(dst); err != nil {
		cleanup()
		return nil, nop, err
	}
	return img, cleanup, nil
}
