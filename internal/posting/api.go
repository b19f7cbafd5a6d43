package posting

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gallery/service/internal/response"
)

// APIHandler holds the JSON handlers for postings and gallery images.
type APIHandler struct {
	svc *Service
}

// NewAPIHandler creates a new APIHandler.
func NewAPIHandler(svc *Service) *APIHandler {
	return &APIHandler{svc: svc}
}

// Register mounts the JSON routes on r.
func (h *APIHandler) Register(r chi.Router) {
	r.Route("/postings", func(r chi.Router) {
		r.Get("/", h.ListPostings)
		r.Post("/", h.CreatePosting)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetPosting)
			r.Put("/", h.UpdatePosting)
			r.Delete("/", h.DeletePosting)
			r.Post("/images", h.AddImages)
			r.Delete("/images", h.DeleteAllImages)
			r.Delete("/images/{imageId}", h.DeletePostingImage)
		})
	})
	r.Route("/gallery", func(r chi.Router) {
		r.Get("/", h.ListImages)
		r.Post("/", h.UploadImage)
		r.Get("/{id}", h.GetImage)
		r.Delete("/{id}", h.DeleteImage)
	})
}

type imageSummary struct {
	ID           int64  `json:"id"            example:"7"`
	Path         string `json:"path"          example:"images/posting-3/1700000000_a.jpg"`
	URL          string `json:"url"           example:"https://s3.example.com/gallery/images/posting-3/1700000000_a.jpg"`
	OriginalName string `json:"original_name" example:"a.jpg"`
}

type createdPostingData struct {
	ID          int64          `json:"id"          example:"3"`
	Title       string         `json:"title"       example:"Trip"`
	Description string         `json:"description" example:""`
	Images      []imageSummary `json:"images"`
}

type addedImagesData struct {
	PostingID int64          `json:"posting_id" example:"3"`
	Images    []imageSummary `json:"images"`
}

type deletedImagesData struct {
	Deleted int `json:"deleted" example:"4"`
}

func summarize(images []Image) []imageSummary {
	out := make([]imageSummary, len(images))
	for i, img := range images {
		out[i] = imageSummary{ID: img.ID, Path: img.Path, URL: img.URL, OriginalName: img.OriginalName}
	}
	return out
}

// writeError maps service errors to the JSON envelope. Unexpected errors are
// reported with failMsg only; the service has already logged them.
func writeError(w http.ResponseWriter, err error, notFoundMsg, failMsg string) {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		response.Validation(w, "Validation failed", ve.Fields)
	case errors.Is(err, ErrNotFound):
		response.NotFound(w, notFoundMsg)
	case errors.Is(err, ErrForbidden):
		response.Forbidden(w, "Image does not belong to this posting")
	case errors.Is(err, errBadForm):
		response.BadRequest(w, "invalid form data")
	default:
		response.InternalError(w, failMsg)
	}
}

// ListPostings godoc
//
//	@Summary		List postings
//	@Description	Returns every posting, newest first, with freshly issued image URLs.
//	@Tags			postings
//	@Produce		json
//	@Success		200	{object}	response.Envelope{data=[]Posting}
//	@Failure		500	{object}	response.Envelope
//	@Router			/postings [get]
func (h *APIHandler) ListPostings(w http.ResponseWriter, r *http.Request) {
	postings, err := h.svc.ListPostings(r.Context())
	if err != nil {
		h.svc.log.Error("listing postings failed", "error", err)
		response.InternalError(w, "Failed to load postings")
		return
	}
	if postings == nil {
		postings = []Posting{}
	}
	response.OK(w, "Postings retrieved successfully", postings)
}

// GetPosting godoc
//
//	@Summary		Get posting
//	@Tags			postings
//	@Produce		json
//	@Param			id	path		int	true	"Posting ID"
//	@Success		200	{object}	response.Envelope{data=Posting}
//	@Failure		404	{object}	response.Envelope
//	@Failure		500	{object}	response.Envelope
//	@Router			/postings/{id} [get]
func (h *APIHandler) GetPosting(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		response.NotFound(w, "Posting not found")
		return
	}
	p, err := h.svc.GetPosting(r.Context(), id)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			h.svc.log.Error("loading posting failed", "posting_id", id, "error", err)
		}
		writeError(w, err, "Posting not found", "Failed to load posting")
		return
	}
	response.OK(w, "Posting retrieved successfully", p)
}

// CreatePosting godoc
//
//	@Summary		Create posting
//	@Description	Creates a posting with 1 to 10 images (JPEG, PNG, GIF or WebP, at most 5MB each).
//	@Tags			postings
//	@Accept			multipart/form-data
//	@Produce		json
//	@Security		BearerAuth
//	@Param			title		formData	string	true	"Title (max 255 characters)"
//	@Param			description	formData	string	false	"Description (max 5000 characters)"
//	@Param			images[]	formData	file	true	"Images"
//	@Success		201			{object}	response.Envelope{data=createdPostingData}
//	@Failure		422			{object}	response.Envelope
//	@Failure		500			{object}	response.Envelope
//	@Router			/postings [post]
func (h *APIHandler) CreatePosting(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(r); err != nil {
		writeError(w, err, "", "")
		return
	}

	p, err := h.svc.CreatePosting(r.Context(), CreateInput{
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		Images:      formUploads(r, "images", "images[]"),
	})
	if err != nil {
		writeError(w, err, "Posting not found", "Failed to create posting")
		return
	}

	response.Created(w, "Posting created successfully", createdPostingData{
		ID:          p.ID,
		Title:       p.Title,
		Description: p.Description,
		Images:      summarize(p.Images),
	})
}

// UpdatePosting godoc
//
//	@Summary		Update posting
//	@Description	Replaces title and description, deletes the listed images and then adds the new ones.
//	@Tags			postings
//	@Accept			multipart/form-data
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id				path		int		true	"Posting ID"
//	@Param			title			formData	string	true	"Title (max 255 characters)"
//	@Param			description		formData	string	false	"Description (max 5000 characters)"
//	@Param			images[]		formData	file	false	"Images to add"
//	@Param			delete_images[]	formData	[]int	false	"Image IDs to delete"
//	@Success		200				{object}	response.Envelope{data=Posting}
//	@Failure		404				{object}	response.Envelope
//	@Failure		422				{object}	response.Envelope
//	@Failure		500				{object}	response.Envelope
//	@Router			/postings/{id} [put]
func (h *APIHandler) UpdatePosting(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		response.NotFound(w, "Posting not found")
		return
	}
	if err := parseForm(r); err != nil {
		writeError(w, err, "", "")
		return
	}
	deleteIDs, idErrs := formIDs(r, "delete_images")

	p, err := h.svc.UpdatePosting(r.Context(), id, UpdateInput{
		Title:          r.FormValue("title"),
		Description:    r.FormValue("description"),
		Images:         formUploads(r, "images", "images[]"),
		DeleteImageIDs: deleteIDs,
		FormErrors:     idErrs,
	})
	if err != nil {
		writeError(w, err, "Posting not found", "Failed to update posting")
		return
	}
	response.OK(w, "Posting updated successfully", p)
}

// DeletePosting godoc
//
//	@Summary		Delete posting
//	@Description	Deletes the posting, its images and their stored objects.
//	@Tags			postings
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id	path		int	true	"Posting ID"
//	@Success		200	{object}	response.Envelope
//	@Failure		404	{object}	response.Envelope
//	@Failure		500	{object}	response.Envelope
//	@Router			/postings/{id} [delete]
func (h *APIHandler) DeletePosting(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		response.NotFound(w, "Posting not found")
		return
	}
	if err := h.svc.DeletePosting(r.Context(), id); err != nil {
		writeError(w, err, "Posting not found", "Failed to delete posting")
		return
	}
	response.OK(w, "Posting deleted successfully", nil)
}

// AddImages godoc
//
//	@Summary		Add images to posting
//	@Tags			postings
//	@Accept			multipart/form-data
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id			path		int		true	"Posting ID"
//	@Param			images[]	formData	file	true	"Images"
//	@Success		201			{object}	response.Envelope{data=addedImagesData}
//	@Failure		404			{object}	response.Envelope
//	@Failure		422			{object}	response.Envelope
//	@Failure		500			{object}	response.Envelope
//	@Router			/postings/{id}/images [post]
func (h *APIHandler) AddImages(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		response.NotFound(w, "Posting not found")
		return
	}
	if err := parseForm(r); err != nil {
		writeError(w, err, "", "")
		return
	}

	images, err := h.svc.AddImages(r.Context(), id, formUploads(r, "images", "images[]"))
	if err != nil {
		writeError(w, err, "Posting not found", "Failed to add images")
		return
	}
	response.Created(w, "Images added successfully", addedImagesData{
		PostingID: id,
		Images:    summarize(images),
	})
}

// DeletePostingImage godoc
//
//	@Summary		Delete posting image
//	@Description	Deletes one image through its posting. Images of other postings are rejected with 403.
//	@Tags			postings
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id		path		int	true	"Posting ID"
//	@Param			imageId	path		int	true	"Image ID"
//	@Success		200		{object}	response.Envelope
//	@Failure		403		{object}	response.Envelope
//	@Failure		404		{object}	response.Envelope
//	@Failure		500		{object}	response.Envelope
//	@Router			/postings/{id}/images/{imageId} [delete]
func (h *APIHandler) DeletePostingImage(w http.ResponseWriter, r *http.Request) {
	postingID, ok := pathID(r, "id")
	if !ok {
		response.NotFound(w, "Posting not found")
		return
	}
	imageID, ok := pathID(r, "imageId")
	if !ok {
		response.NotFound(w, "Image not found")
		return
	}
	if err := h.svc.DeletePostingImage(r.Context(), postingID, imageID); err != nil {
		writeError(w, err, "Image not found", "Failed to delete image")
		return
	}
	response.OK(w, "Image deleted successfully", nil)
}

// DeleteAllImages godoc
//
//	@Summary		Delete all posting images
//	@Tags			postings
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id	path		int	true	"Posting ID"
//	@Success		200	{object}	response.Envelope{data=deletedImagesData}
//	@Failure		404	{object}	response.Envelope
//	@Failure		500	{object}	response.Envelope
//	@Router			/postings/{id}/images [delete]
func (h *APIHandler) DeleteAllImages(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		response.NotFound(w, "Posting not found")
		return
	}
	n, err := h.svc.DeleteAllPostingImages(r.Context(), id)
	if err != nil {
		writeError(w, err, "Posting not found", "Failed to delete images")
		return
	}
	response.OK(w, "All images deleted successfully", deletedImagesData{Deleted: n})
}

// ListImages godoc
//
//	@Summary		List gallery images
//	@Tags			gallery
//	@Produce		json
//	@Success		200	{object}	response.Envelope{data=[]Image}
//	@Failure		500	{object}	response.Envelope
//	@Router			/gallery [get]
func (h *APIHandler) ListImages(w http.ResponseWriter, r *http.Request) {
	images, err := h.svc.ListImages(r.Context())
	if err != nil {
		h.svc.log.Error("listing images failed", "error", err)
		response.InternalError(w, "Failed to load images")
		return
	}
	response.OK(w, "Images retrieved successfully", images)
}

// GetImage godoc
//
//	@Summary		Get gallery image
//	@Tags			gallery
//	@Produce		json
//	@Param			id	path		int	true	"Image ID"
//	@Success		200	{object}	response.Envelope{data=Image}
//	@Failure		404	{object}	response.Envelope
//	@Failure		500	{object}	response.Envelope
//	@Router			/gallery/{id} [get]
func (h *APIHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		response.NotFound(w, "Image not found")
		return
	}
	img, err := h.svc.GetImage(r.Context(), id)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			h.svc.log.Error("loading image failed", "image_id", id, "error", err)
		}
		writeError(w, err, "Image not found", "Failed to load image")
		return
	}
	response.OK(w, "Image retrieved successfully", img)
}

// UploadImage godoc
//
//	@Summary		Upload gallery image
//	@Description	Stores one image that belongs to no posting.
//	@Tags			gallery
//	@Accept			multipart/form-data
//	@Produce		json
//	@Security		BearerAuth
//	@Param			title		formData	string	true	"Title (max 255 characters)"
//	@Param			description	formData	string	false	"Description (max 5000 characters)"
//	@Param			image		formData	file	true	"Image"
//	@Success		201			{object}	response.Envelope{data=Image}
//	@Failure		422			{object}	response.Envelope
//	@Failure		500			{object}	response.Envelope
//	@Router			/gallery [post]
func (h *APIHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(r); err != nil {
		writeError(w, err, "", "")
		return
	}

	in := UploadInput{
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
	}
	if files := formUploads(r, "image"); len(files) > 0 {
		in.Image = &files[0]
	}

	img, err := h.svc.UploadImage(r.Context(), in)
	if err != nil {
		writeError(w, err, "", "Failed to upload image")
		return
	}
	response.Created(w, "Image uploaded successfully", img)
}

// DeleteImage godoc
//
//	@Summary		Delete gallery image
//	@Tags			gallery
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id	path		int	true	"Image ID"
//	@Success		200	{object}	response.Envelope
//	@Failure		404	{object}	response.Envelope
//	@Failure		500	{object}	response.Envelope
//	@Router			/gallery/{id} [delete]
func (h *APIHandler) DeleteImage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		response.NotFound(w, "Image not found")
		return
	}
	if err := h.svc.DeleteImage(r.Context(), id); err != nil {
		writeError(w, err, "Image not found", "Failed to delete image")
		return
	}
	response.OK(w, "Image deleted successfully", nil)
}
