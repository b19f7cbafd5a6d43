package posting

import (
	"bytes"
	"embed"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

//go:embed templates/*.html
var templateFS embed.FS

const flashCookie = "gallery_flash"

// WebHandler serves the browser pages. Mutations answer with a 302 and a
// flash message; validation failures re-render the form with 422.
type WebHandler struct {
	svc   *Service
	pages map[string]*template.Template
}

// NewWebHandler parses the embedded templates.
func NewWebHandler(svc *Service) (*WebHandler, error) {
	funcs := template.FuncMap{
		"bytes": formatBytes,
		"date":  func(t time.Time) string { return t.Format("Jan 2, 2006 15:04") },
	}
	names := []string{"images_index", "image_show", "postings_index", "posting_show", "posting_form"}

	pages := make(map[string]*template.Template, len(names))
	for _, name := range names {
		t, err := template.New(name).Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		pages[name] = t
	}
	return &WebHandler{svc: svc, pages: pages}, nil
}

// Register mounts the browser routes on r.
func (h *WebHandler) Register(r chi.Router) {
	r.Get("/", h.Index)
	r.Get("/gallery/create", h.CreateGallery)
	r.Post("/gallery", h.StoreGallery)
	r.Get("/gallery/{id}", h.ShowImage)
	r.Delete("/gallery/{id}", h.DestroyImage)

	r.Get("/postings", h.Postings)
	r.Get("/postings/create", h.CreatePosting)
	r.Post("/postings", h.StorePosting)
	r.Get("/postings/{id}", h.ShowPosting)
	r.Get("/postings/{id}/edit", h.EditPosting)
	r.Put("/postings/{id}", h.UpdatePosting)
	r.Delete("/postings/{id}", h.DestroyPosting)
	r.Delete("/postings/{id}/images/{imageId}", h.DestroyPostingImage)
}

type flash struct {
	Success string `json:"success,omitempty"`
	Error   string `json:"error,omitempty"`
}

type formState struct {
	Action      string
	Method      string
	Title       string
	Description string
}

type page struct {
	Title    string
	Flash    flash
	Errors   []string
	Form     formState
	Posting  *Posting
	Postings []Posting
	Image    *Image
	Images   []Image
}

func (h *WebHandler) render(w http.ResponseWriter, r *http.Request, status int, name string, p page) {
	p.Flash = takeFlash(w, r)

	var buf bytes.Buffer
	if err := h.pages[name].ExecuteTemplate(&buf, "layout", p); err != nil {
		h.svc.log.Error("rendering page failed", "page", name, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func redirect(w http.ResponseWriter, r *http.Request, to string, f flash) {
	setFlash(w, f)
	http.Redirect(w, r, to, http.StatusFound)
}

func setFlash(w http.ResponseWriter, f flash) {
	raw, err := json.Marshal(f)
	if err != nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    base64.RawURLEncoding.EncodeToString(raw),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// takeFlash reads and clears the flash cookie.
func takeFlash(w http.ResponseWriter, r *http.Request) flash {
	var f flash
	c, err := r.Cookie(flashCookie)
	if err != nil {
		return f
	}
	http.SetCookie(w, &http.Cookie{Name: flashCookie, Path: "/", MaxAge: -1})

	raw, err := base64.RawURLEncoding.DecodeString(c.Value)
	if err != nil {
		return f
	}
	_ = json.Unmarshal(raw, &f)
	return f
}

// Index shows every image.
func (h *WebHandler) Index(w http.ResponseWriter, r *http.Request) {
	images, err := h.svc.ListImages(r.Context())
	if err != nil {
		h.serverError(w, "listing images failed", err)
		return
	}
	h.render(w, r, http.StatusOK, "images_index", page{Title: "Gallery", Images: images})
}

// CreateGallery shows the upload form that creates a posting.
func (h *WebHandler) CreateGallery(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "posting_form", page{
		Title: "Upload images",
		Form:  formState{Action: "/gallery"},
	})
}

// StoreGallery creates a posting from the gallery form.
func (h *WebHandler) StoreGallery(w http.ResponseWriter, r *http.Request) {
	h.store(w, r, "/gallery", "/gallery/create", func(p *Posting) string {
		if len(p.Images) == 1 {
			return "Posting with 1 image created successfully!"
		}
		return fmt.Sprintf("Posting with %d images created successfully!", len(p.Images))
	})
}

// CreatePosting shows the new posting form.
func (h *WebHandler) CreatePosting(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "posting_form", page{
		Title: "New posting",
		Form:  formState{Action: "/postings"},
	})
}

// StorePosting creates a posting from the postings form.
func (h *WebHandler) StorePosting(w http.ResponseWriter, r *http.Request) {
	h.store(w, r, "/postings", "/postings/create", func(*Posting) string {
		return "Posting created successfully!"
	})
}

func (h *WebHandler) store(w http.ResponseWriter, r *http.Request, action, formURL string, message func(*Posting) string) {
	if err := parseForm(r); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	in := CreateInput{
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		Images:      formUploads(r, "images", "images[]"),
	}

	p, err := h.svc.CreatePosting(r.Context(), in)
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		h.render(w, r, http.StatusUnprocessableEntity, "posting_form", page{
			Title:  "New posting",
			Errors: ve.Messages(),
			Form:   formState{Action: action, Title: in.Title, Description: in.Description},
		})
	case err != nil:
		redirect(w, r, formURL, flash{Error: "Failed to create posting. Please try again."})
	default:
		redirect(w, r, "/postings", flash{Success: message(p)})
	}
}

// ShowImage shows one image.
func (h *WebHandler) ShowImage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		http.NotFound(w, r)
		return
	}
	img, err := h.svc.GetImage(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		h.serverError(w, "loading image failed", err)
		return
	}
	h.render(w, r, http.StatusOK, "image_show", page{Title: img.Title, Image: img})
}

// DestroyImage deletes one image.
func (h *WebHandler) DestroyImage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		http.NotFound(w, r)
		return
	}
	err := h.svc.DeleteImage(r.Context(), id)
	switch {
	case errors.Is(err, ErrNotFound):
		http.NotFound(w, r)
	case err != nil:
		redirect(w, r, "/", flash{Error: "Failed to delete image. Please try again."})
	default:
		redirect(w, r, "/", flash{Success: "Image deleted successfully!"})
	}
}

// Postings lists every posting.
func (h *WebHandler) Postings(w http.ResponseWriter, r *http.Request) {
	postings, err := h.svc.ListPostings(r.Context())
	if err != nil {
		h.serverError(w, "listing postings failed", err)
		return
	}
	h.render(w, r, http.StatusOK, "postings_index", page{Title: "Postings", Postings: postings})
}

// ShowPosting shows one posting.
func (h *WebHandler) ShowPosting(w http.ResponseWriter, r *http.Request) {
	p, ok := h.loadPosting(w, r)
	if !ok {
		return
	}
	h.render(w, r, http.StatusOK, "posting_show", page{Title: p.Title, Posting: p})
}

// EditPosting shows the edit form.
func (h *WebHandler) EditPosting(w http.ResponseWriter, r *http.Request) {
	p, ok := h.loadPosting(w, r)
	if !ok {
		return
	}
	h.render(w, r, http.StatusOK, "posting_form", page{
		Title:   "Edit posting",
		Posting: p,
		Form:    editForm(p, p.Title, p.Description),
	})
}

// UpdatePosting applies the edit form.
func (h *WebHandler) UpdatePosting(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		http.NotFound(w, r)
		return
	}
	if err := parseForm(r); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	ids, idErrs := formIDs(r, "delete_images")
	in := UpdateInput{
		Title:          r.FormValue("title"),
		Description:    r.FormValue("description"),
		Images:         formUploads(r, "images", "images[]"),
		DeleteImageIDs: ids,
		FormErrors:     idErrs,
	}
	_, err := h.svc.UpdatePosting(r.Context(), id, in)

	var ve *ValidationError
	editURL := fmt.Sprintf("/postings/%d/edit", id)
	switch {
	case errors.As(err, &ve):
		p, loadErr := h.svc.GetPosting(r.Context(), id)
		if loadErr != nil {
			redirect(w, r, editURL, flash{Error: "Failed to update posting. Please try again."})
			return
		}
		h.render(w, r, http.StatusUnprocessableEntity, "posting_form", page{
			Title:   "Edit posting",
			Errors:  ve.Messages(),
			Posting: p,
			Form:    editForm(p, in.Title, in.Description),
		})
	case errors.Is(err, ErrNotFound):
		http.NotFound(w, r)
	case err != nil:
		redirect(w, r, editURL, flash{Error: "Failed to update posting. Please try again."})
	default:
		redirect(w, r, fmt.Sprintf("/postings/%d", id), flash{Success: "Posting updated successfully!"})
	}
}

// DestroyPosting deletes a posting with its images.
func (h *WebHandler) DestroyPosting(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		http.NotFound(w, r)
		return
	}
	err := h.svc.DeletePosting(r.Context(), id)
	switch {
	case errors.Is(err, ErrNotFound):
		http.NotFound(w, r)
	case err != nil:
		redirect(w, r, "/postings", flash{Error: "Failed to delete posting. Please try again."})
	default:
		redirect(w, r, "/postings", flash{Success: "Posting deleted successfully!"})
	}
}

// DestroyPostingImage deletes one image of a posting.
func (h *WebHandler) DestroyPostingImage(w http.ResponseWriter, r *http.Request) {
	postingID, ok := pathID(r, "id")
	if !ok {
		http.NotFound(w, r)
		return
	}
	imageID, ok := pathID(r, "imageId")
	if !ok {
		http.NotFound(w, r)
		return
	}

	back := fmt.Sprintf("/postings/%d", postingID)
	err := h.svc.DeletePostingImage(r.Context(), postingID, imageID)
	switch {
	case errors.Is(err, ErrForbidden):
		redirect(w, r, back, flash{Error: "Image does not belong to this posting."})
	case errors.Is(err, ErrNotFound):
		http.NotFound(w, r)
	case err != nil:
		redirect(w, r, back, flash{Error: "Failed to delete image. Please try again."})
	default:
		redirect(w, r, back, flash{Success: "Image deleted successfully!"})
	}
}

func (h *WebHandler) loadPosting(w http.ResponseWriter, r *http.Request) (*Posting, bool) {
	id, ok := pathID(r, "id")
	if !ok {
		http.NotFound(w, r)
		return nil, false
	}
	p, err := h.svc.GetPosting(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		http.NotFound(w, r)
		return nil, false
	}
	if err != nil {
		h.serverError(w, "loading posting failed", err)
		return nil, false
	}
	return p, true
}

func (h *WebHandler) serverError(w http.ResponseWriter, msg string, err error) {
	h.svc.log.Error(msg, "error", err)
	http.Error(w, "Internal Server Error", http.StatusInternalServerError)
}

func editForm(p *Posting, title, description string) formState {
	return formState{
		Action:      fmt.Sprintf("/postings/%d", p.ID),
		Method:      http.MethodPut,
		Title:       title,
		Description: description,
	}
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}
