package posting

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/gallery/service/internal/middleware"
)

// errBadForm is returned when a request body is not a readable form.
var errBadForm = errors.New("invalid form data")

// parseForm parses a multipart body (or a urlencoded one) once. Forms
// already parsed by the method override middleware are reused.
func parseForm(r *http.Request) error {
	if r.MultipartForm != nil {
		return nil
	}
	err := r.ParseMultipartForm(middleware.FormMemory)
	if errors.Is(err, http.ErrNotMultipart) {
		err = r.ParseForm()
	}
	if err != nil {
		return fmt.Errorf("%w: %v", errBadForm, err)
	}
	return nil
}

// formUploads collects the files posted under any of fields, in order.
// Both "images" and "images[]" are accepted.
func formUploads(r *http.Request, fields ...string) []Upload {
	if r.MultipartForm == nil {
		return nil
	}
	var out []Upload
	for _, field := range fields {
		for _, fh := range r.MultipartForm.File[field] {
			out = append(out, uploadFromHeader(fh))
		}
	}
	return out
}

func uploadFromHeader(fh *multipart.FileHeader) Upload {
	return Upload{
		Filename: fh.Filename,
		Size:     fh.Size,
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}

// formValues returns every value posted under any of fields.
func formValues(r *http.Request, fields ...string) []string {
	var out []string
	for _, field := range fields {
		if r.MultipartForm != nil {
			out = append(out, r.MultipartForm.Value[field]...)
			continue
		}
		out = append(out, r.PostForm[field]...)
	}
	return out
}

// formIDs parses delete_images style id lists. A malformed entry is reported
// under <field>.<index>.
func formIDs(r *http.Request, field string) ([]int64, *ValidationError) {
	raw := formValues(r, field, field+"[]")
	ve := &ValidationError{}
	ids := make([]int64, 0, len(raw))
	for i, v := range raw {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			ve.add(fmt.Sprintf("%s.%d", field, i), "One or more selected images do not exist.")
			continue
		}
		ids = append(ids, id)
	}
	if len(ve.Fields) > 0 {
		return nil, ve
	}
	return ids, nil
}

// pathID reads a positive integer route parameter.
func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
