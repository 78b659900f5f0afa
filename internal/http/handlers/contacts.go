package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rfsouza01/contacthub/internal/config"
	"github.com/rfsouza01/contacthub/internal/domain/contact"
	"github.com/rfsouza01/contacthub/internal/http/middlewares"
	"github.com/rfsouza01/contacthub/internal/utils"

	"github.com/gin-gonic/gin"
)

// 2MB cap on uploaded images
const maxImageBytes = 2 << 20

var allowedImageExts = map[string]struct{}{
	"jpeg": {},
	"jpg":  {},
	"png":  {},
	"gif":  {},
}

type ContactDirectory interface {
	List(ctx context.Context, ownerID, query string, page, perPage int) (contact.Page, error)
	Get(ctx context.Context, ownerID, id string) (contact.Contact, error)
	Create(ctx context.Context, ownerID string, req contact.CreateContactRequest) (contact.Contact, error)
	Update(ctx context.Context, ownerID, id string, req contact.UpdateContactRequest) (contact.Contact, error)
	SetImagePath(ctx context.Context, ownerID, id string, path *string) (contact.Contact, error)
	Delete(ctx context.Context, ownerID, id string) (*string, error)
}

type ImageStore interface {
	Store(ctx context.Context, r io.Reader, ext string) (string, error)
	Delete(ctx context.Context, path string) error
	PublicURL(path string) string
}

type ContactsHandler struct {
	directory ContactDirectory
	images    ImageStore
}

func NewContactsHandler(directory ContactDirectory, images ImageStore) *ContactsHandler {
	return &ContactsHandler{directory: directory, images: images}
}

// contactResource is the wire shape of a contact, with the derived
// image_url resolved against the public asset base.
func (h *ContactsHandler) contactResource(c contact.Contact) gin.H {
	var imageURL *string

	if c.ImagePath != nil {
		u := h.images.PublicURL(*c.ImagePath)
		imageURL = &u
	}

	return gin.H{
		"id":         c.ID,
		"name":       c.Name,
		"phone":      c.Phone,
		"email":      c.Email,
		"image_path": c.ImagePath,
		"image_url":  imageURL,
		"created_at": c.CreatedAt,
		"updated_at": c.UpdatedAt,
	}
}

// GET /contacts?q=&page=&per_page=
func (h *ContactsHandler) Index(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity")
		return
	}

	query := ctx.Query("q")
	page, _ := strconv.Atoi(ctx.Query("page"))
	perPage, _ := strconv.Atoi(ctx.Query("per_page"))

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	result, err := h.directory.List(cctx, userID, query, page, perPage)

	if err != nil {
		slog.Default().ErrorContext(ctx.Request.Context(), "list contacts failed", "err", err)
		RespondInternal(ctx, "Could not list contacts")
		return
	}

	data := make([]gin.H, 0, len(result.Items))

	for _, c := range result.Items {
		data = append(data, h.contactResource(c))
	}

	RespondJSONWithETag(ctx, http.StatusOK, gin.H{
		"data": data,
		"pagination": gin.H{
			"total":        result.Total,
			"per_page":     result.PerPage,
			"current_page": result.CurrentPage,
			"last_page":    result.LastPage,
		},
	})
}

// POST /contacts (JSON, or multipart when an image rides along)
func (h *ContactsHandler) Store(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity")
		return
	}

	var req contact.CreateContactRequest

	if !Bind(ctx, &req) {
		return
	}

	file, ext, ok := h.imageFromForm(ctx)

	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	created, err := h.directory.Create(cctx, userID, req)

	if err != nil {
		h.respondContactError(ctx, err, "Could not create contact")
		return
	}

	if file != nil {
		created, err = h.attachImage(cctx, ctx, userID, created.ID, file, ext)

		if err != nil {
			// record exists but the image never made it; report the failure
			RespondInternal(ctx, "Could not store contact image")
			return
		}
	}

	ctx.JSON(http.StatusCreated, gin.H{"data": h.contactResource(created)})
}

// GET /contacts/:id
func (h *ContactsHandler) Show(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity")
		return
	}

	id := ctx.Param("id")

	if !utils.IsUUID(id) {
		RespondNotFound(ctx, "Contact not found")
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	c, err := h.directory.Get(cctx, userID, id)

	if err != nil {
		h.respondContactError(ctx, err, "Could not fetch contact")
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, gin.H{"data": h.contactResource(c)})
}

// PUT /contacts/:id
func (h *ContactsHandler) Update(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity")
		return
	}

	id := ctx.Param("id")

	if !utils.IsUUID(id) {
		RespondNotFound(ctx, "Contact not found")
		return
	}

	var req contact.UpdateContactRequest

	if !Bind(ctx, &req) {
		return
	}

	file, ext, ok := h.imageFromForm(ctx)

	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	updated, err := h.directory.Update(cctx, userID, id, req)

	if err != nil {
		h.respondContactError(ctx, err, "Could not update contact")
		return
	}

	if file != nil {
		// two-phase image swap: write the new blob, move the record's
		// reference, and only then delete the old blob. A crash in between
		// can orphan a file but never leaves the record pointing nowhere.
		oldPath := updated.ImagePath

		updated, err = h.attachImage(cctx, ctx, userID, id, file, ext)

		if err != nil {
			RespondInternal(ctx, "Could not store contact image")
			return
		}

		if oldPath != nil {
			if err := h.images.Delete(cctx, *oldPath); err != nil {
				// orphaned blob, recoverable by garbage collection
				slog.Default().WarnContext(ctx.Request.Context(), "old image not deleted", "err", err, "path", *oldPath)
			}
		}
	}

	ctx.JSON(http.StatusOK, gin.H{"data": h.contactResource(updated)})
}

// DELETE /contacts/:id
func (h *ContactsHandler) Destroy(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity")
		return
	}

	id := ctx.Param("id")

	if !utils.IsUUID(id) {
		RespondNotFound(ctx, "Contact not found")
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	// record first; a failed record delete must leave the image in place
	imagePath, err := h.directory.Delete(cctx, userID, id)

	if err != nil {
		h.respondContactError(ctx, err, "Could not delete contact")
		return
	}

	if imagePath != nil {
		if err := h.images.Delete(cctx, *imagePath); err != nil {
			slog.Default().WarnContext(ctx.Request.Context(), "contact image not deleted", "err", err, "path", *imagePath)
		}
	}

	ctx.Status(http.StatusNoContent)
}

// imageFromForm pulls and validates the optional multipart image. The third
// return is false when a response has already been written.
func (h *ContactsHandler) imageFromForm(ctx *gin.Context) (*multipart.FileHeader, string, bool) {
	file, err := ctx.FormFile("image")

	if err != nil {
		// no image attached (or not a multipart request at all)
		return nil, "", true
	}

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(file.Filename)), ".")

	if _, ok := allowedImageExts[ext]; !ok {
		RespondUnprocessable(ctx, "Validation failed", gin.H{"fields": []FieldError{
			{Field: "image", Rule: "mimes", Message: "must be a jpeg, png, jpg or gif image"},
		}})
		return nil, "", false
	}

	if file.Size > maxImageBytes {
		RespondUnprocessable(ctx, "Validation failed", gin.H{"fields": []FieldError{
			{Field: "image", Rule: "max", Param: "2048", Message: "must be at most 2MB"},
		}})
		return nil, "", false
	}

	return file, ext, true
}

// attachImage writes the blob and swaps the record's image reference.
func (h *ContactsHandler) attachImage(cctx context.Context, ctx *gin.Context, userID, contactID string, file *multipart.FileHeader, ext string) (contact.Contact, error) {
	src, err := file.Open()

	if err != nil {
		return contact.Contact{}, err
	}

	defer src.Close()

	path, err := h.images.Store(cctx, src, ext)

	if err != nil {
		slog.Default().ErrorContext(ctx.Request.Context(), "image store failed", "err", err)
		return contact.Contact{}, err
	}

	updated, err := h.directory.SetImagePath(cctx, userID, contactID, &path)

	if err != nil {
		// the record never took the reference; drop the fresh blob
		_ = h.images.Delete(cctx, path)
		return contact.Contact{}, err
	}

	return updated, nil
}

func (h *ContactsHandler) respondContactError(ctx *gin.Context, err error, internalMsg string) {
	switch {
	case errors.Is(err, contact.ErrNotFound):
		RespondNotFound(ctx, "Contact not found")
	case errors.Is(err, contact.ErrDuplicatePhone):
		RespondUnprocessable(ctx, "Validation failed", gin.H{"fields": []FieldError{
			{Field: "phone", Rule: "unique", Message: "is already registered for this user"},
		}})
	case errors.Is(err, contact.ErrDuplicateEmail):
		RespondUnprocessable(ctx, "Validation failed", gin.H{"fields": []FieldError{
			{Field: "email", Rule: "unique", Message: "is already registered for this user"},
		}})
	default:
		slog.Default().ErrorContext(ctx.Request.Context(), "contact operation failed", "err", err)
		RespondInternal(ctx, internalMsg)
	}
}
