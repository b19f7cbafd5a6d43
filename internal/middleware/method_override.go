package middleware

import (
	"mime"
	"net/http"
	"strings"
)

// FormMemory is the in-memory budget for parsed multipart forms; larger
// parts spill to temporary files.
const FormMemory = 32 << 20

// MethodOverride lets HTML forms issue PUT, PATCH and DELETE by posting a
// "_method" field or an X-HTTP-Method-Override header.
func MethodOverride(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			override := r.Header.Get("X-HTTP-Method-Override")
			if override == "" && isForm(r) {
				override = r.PostFormValue("_method")
			}
			switch m := strings.ToUpper(strings.TrimSpace(override)); m {
			case http.MethodPut, http.MethodPatch, http.MethodDelete:
				r.Method = m
			}
		}
		next.ServeHTTP(w, r)
	})
}

func isForm(r *http.Request) bool {
	ct, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return false
	}
	if ct == "multipart/form-data" {
		// Parse with the shared budget so handlers reuse the same form.
		return r.ParseMultipartForm(FormMemory) == nil
	}
	return ct == "application/x-www-form-urlencoded"
}
