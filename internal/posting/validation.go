package posting

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"unicode/utf8"
)

// Limits applied to every create, update and upload path.
const (
	MaxTitleLength       = 255
	MaxDescriptionLength = 5000
	MaxImagesPerRequest  = 10
	MaxImageSize         = 5 * 1024 * 1024
)

// allowedMimeTypes are the content-sniffed types accepted for images.
var allowedMimeTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// Upload is one submitted file. MimeType is filled in from the file content
// during validation; the client-declared type is never trusted.
type Upload struct {
	Filename string
	Size     int64
	Open     func() (io.ReadCloser, error)
	MimeType string
}

// ValidationError carries user-correctable, field-level messages. No
// mutation has happened when it is returned.
type ValidationError struct {
	Fields map[string][]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+strings.Join(e.Fields[k], ", "))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Messages flattens the field messages in field order.
func (e *ValidationError) Messages() []string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []string
	for _, k := range keys {
		out = append(out, e.Fields[k]...)
	}
	return out
}

func (e *ValidationError) add(field, msg string) {
	if e.Fields == nil {
		e.Fields = map[string][]string{}
	}
	e.Fields[field] = append(e.Fields[field], msg)
}

func (e *ValidationError) merge(other *ValidationError) {
	if other == nil {
		return
	}
	for field, msgs := range other.Fields {
		for _, msg := range msgs {
			e.add(field, msg)
		}
	}
}

func (e *ValidationError) errOrNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

func validateText(ve *ValidationError, title, description string) {
	if title == "" {
		ve.add("title", "The title field is required.")
	} else if utf8.RuneCountInString(title) > MaxTitleLength {
		ve.add("title", fmt.Sprintf("The title may not be greater than %d characters.", MaxTitleLength))
	}
	if utf8.RuneCountInString(description) > MaxDescriptionLength {
		ve.add("description", fmt.Sprintf("The description may not be greater than %d characters.", MaxDescriptionLength))
	}
}

// validateUploads checks the count of uploads against [min, MaxImagesPerRequest]
// and each file's size and sniffed type.
func validateUploads(ve *ValidationError, uploads []Upload, min int, maxMsg string) {
	switch {
	case len(uploads) < min:
		ve.add("images", "At least one image is required.")
		return
	case len(uploads) > MaxImagesPerRequest:
		ve.add("images", maxMsg)
		return
	}
	for i := range uploads {
		validateUpload(ve, fmt.Sprintf("images.%d", i), &uploads[i])
	}
}

func validateUpload(ve *ValidationError, field string, u *Upload) {
	if u.Size > MaxImageSize {
		ve.add(field, fmt.Sprintf("Each image may not be greater than %dMB.", MaxImageSize/(1024*1024)))
		return
	}
	mimeType, err := sniff(u)
	if err != nil {
		ve.add(field, "The file failed to upload.")
		return
	}
	if !strings.HasPrefix(mimeType, "image/") {
		ve.add(field, "Each file must be an image.")
		return
	}
	if !allowedMimeTypes[mimeType] {
		ve.add(field, "Images must be in JPEG, PNG, GIF, or WebP format.")
		return
	}
	u.MimeType = mimeType
}

// sniff detects the content type from the first 512 bytes of the file.
func sniff(u *Upload) (string, error) {
	if u.Open == nil {
		return "", fmt.Errorf("no content for %q", u.Filename)
	}
	f, err := u.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()

	buf := make([]byte, 512)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", err
	}
	return http.DetectContentType(buf[:n]), nil
}
