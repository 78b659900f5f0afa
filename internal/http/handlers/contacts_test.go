package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rfsouza01/contacthub/internal/domain/contact"
	"github.com/rfsouza01/contacthub/internal/http/handlers"
	"github.com/rfsouza01/contacthub/internal/http/middlewares"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type fakeDirectory struct {
	listFn     func(ctx context.Context, ownerID, query string, page, perPage int) (contact.Page, error)
	getFn      func(ctx context.Context, ownerID, id string) (contact.Contact, error)
	createFn   func(ctx context.Context, ownerID string, req contact.CreateContactRequest) (contact.Contact, error)
	updateFn   func(ctx context.Context, ownerID, id string, req contact.UpdateContactRequest) (contact.Contact, error)
	setImageFn func(ctx context.Context, ownerID, id string, path *string) (contact.Contact, error)
	deleteFn   func(ctx context.Context, ownerID, id string) (*string, error)
}

func (f *fakeDirectory) List(ctx context.Context, ownerID, query string, page, perPage int) (contact.Page, error) {
	if f.listFn != nil {
		return f.listFn(ctx, ownerID, query, page, perPage)
	}

	return contact.Page{Items: []contact.Contact{}, PerPage: 15, CurrentPage: 1, LastPage: 1}, nil
}

func (f *fakeDirectory) Get(ctx context.Context, ownerID, id string) (contact.Contact, error) {
	if f.getFn != nil {
		return f.getFn(ctx, ownerID, id)
	}

	return contact.Contact{}, contact.ErrNotFound
}

func (f *fakeDirectory) Create(ctx context.Context, ownerID string, req contact.CreateContactRequest) (contact.Contact, error) {
	if f.createFn != nil {
		return f.createFn(ctx, ownerID, req)
	}

	return contact.Contact{ID: uuid.NewString(), OwnerID: ownerID, Name: req.Name, Phone: req.Phone, Email: req.Email}, nil
}

func (f *fakeDirectory) Update(ctx context.Context, ownerID, id string, req contact.UpdateContactRequest) (contact.Contact, error) {
	if f.updateFn != nil {
		return f.updateFn(ctx, ownerID, id, req)
	}

	return contact.Contact{ID: id, OwnerID: ownerID, Name: req.Name, Phone: req.Phone, Email: req.Email}, nil
}

func (f *fakeDirectory) SetImagePath(ctx context.Context, ownerID, id string, path *string) (contact.Contact, error) {
	if f.setImageFn != nil {
		return f.setImageFn(ctx, ownerID, id, path)
	}

	return contact.Contact{ID: id, OwnerID: ownerID, ImagePath: path}, nil
}

func (f *fakeDirectory) Delete(ctx context.Context, ownerID, id string) (*string, error) {
	if f.deleteFn != nil {
		return f.deleteFn(ctx, ownerID, id)
	}

	return nil, nil
}

type fakeImageStore struct {
	stored  []string
	deleted []string
	storeFn func(ctx context.Context, r io.Reader, ext string) (string, error)
}

func (f *fakeImageStore) Store(ctx context.Context, r io.Reader, ext string) (string, error) {
	if f.storeFn != nil {
		return f.storeFn(ctx, r, ext)
	}

	path := "contacts/blob-" + ext
	f.stored = append(f.stored, path)

	return path, nil
}

func (f *fakeImageStore) Delete(ctx context.Context, path string) error {
	f.deleted = append(f.deleted, path)
	return nil
}

func (f *fakeImageStore) PublicURL(path string) string {
	return "http://assets.local/storage/" + path
}

// authedRouter mounts a handler behind a stub identity, the way the auth
// middleware would present it.
func authedRouter(method, path, userID string, h gin.HandlerFunc) *gin.Engine {
	r := gin.New()

	r.Handle(method, path, func(ctx *gin.Context) {
		ctx.Set(middlewares.CtxUserID, userID)
		h(ctx)
	})

	return r
}

func multipartBody(t *testing.T, fields map[string]string, fileField, fileName string, fileContent []byte) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field %q: %v", k, err)
		}
	}

	if fileField != "" {
		fw, err := mw.CreateFormFile(fileField, fileName)

		if err != nil {
			t.Fatalf("create form file: %v", err)
		}

		if _, err := fw.Write(fileContent); err != nil {
			t.Fatalf("write file content: %v", err)
		}
	}

	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	return &buf, mw.FormDataContentType()
}

func TestListContactsHandler(t *testing.T) {
	ownerID := uuid.NewString()
	now := time.Now().UTC()

	tests := []struct {
		name           string
		url            string
		directorySetUp func(*fakeDirectory)
		wantStatusCode int
	}{
		{
			name: "success",
			url:  "/contacts?page=2&per_page=10&q=ann",
			directorySetUp: func(f *fakeDirectory) {
				f.listFn = func(ctx context.Context, gotOwner, query string, page, perPage int) (contact.Page, error) {
					if gotOwner != ownerID {
						return contact.Page{}, errors.New("wrong owner")
					}
					if query != "ann" || page != 2 || perPage != 10 {
						return contact.Page{}, errors.New("query params not passed through")
					}

					return contact.Page{
						Items: []contact.Contact{
							{ID: uuid.NewString(), Name: "Anna", Phone: "11 91234-5678", CreatedAt: now, UpdatedAt: now},
						},
						Total:       11,
						PerPage:     10,
						CurrentPage: 2,
						LastPage:    2,
					}, nil
				}
			},
			wantStatusCode: http.StatusOK,
		},
		{
			name: "repo_error",
			url:  "/contacts",
			directorySetUp: func(f *fakeDirectory) {
				f.listFn = func(ctx context.Context, ownerID, query string, page, perPage int) (contact.Page, error) {
					return contact.Page{}, errors.New("db error")
				}
			},
			wantStatusCode: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			directory := &fakeDirectory{}

			if tt.directorySetUp != nil {
				tt.directorySetUp(directory)
			}

			h := handlers.NewContactsHandler(directory, &fakeImageStore{})
			r := authedRouter(http.MethodGet, "/contacts", ownerID, h.Index)

			req := httptest.NewRequest(http.MethodGet, tt.url, nil)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}
		})
	}
}

func TestListContactsPaginationEnvelope(t *testing.T) {
	ownerID := uuid.NewString()

	directory := &fakeDirectory{
		listFn: func(ctx context.Context, ownerID, query string, page, perPage int) (contact.Page, error) {
			return contact.Page{
				Items:       []contact.Contact{{ID: uuid.NewString(), Name: "Anna", Phone: "11 91234-5678"}},
				Total:       17,
				PerPage:     10,
				CurrentPage: 1,
				LastPage:    2,
			}, nil
		},
	}

	h := handlers.NewContactsHandler(directory, &fakeImageStore{})
	r := authedRouter(http.MethodGet, "/contacts", ownerID, h.Index)

	req := httptest.NewRequest(http.MethodGet, "/contacts?per_page=10", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp struct {
		Data       []json.RawMessage `json:"data"`
		Pagination struct {
			Total       int `json:"total"`
			PerPage     int `json:"per_page"`
			CurrentPage int `json:"current_page"`
			LastPage    int `json:"last_page"`
		} `json:"pagination"`
	}

	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v body=%s", err, w.Body.String())
	}

	if len(resp.Data) != 1 {
		t.Fatalf("expected 1 item, got %d", len(resp.Data))
	}

	p := resp.Pagination

	if p.Total != 17 || p.PerPage != 10 || p.CurrentPage != 1 || p.LastPage != 2 {
		t.Fatalf("unexpected pagination envelope: %+v", p)
	}
}

func TestShowContactHandler(t *testing.T) {
	ownerID := uuid.NewString()
	contactID := uuid.NewString()

	tests := []struct {
		name           string
		id             string
		directorySetUp func(*fakeDirectory)
		wantStatusCode int
	}{
		{
			name: "success",
			id:   contactID,
			directorySetUp: func(f *fakeDirectory) {
				f.getFn = func(ctx context.Context, gotOwner, id string) (contact.Contact, error) {
					if gotOwner != ownerID || id != contactID {
						return contact.Contact{}, contact.ErrNotFound
					}

					return contact.Contact{ID: contactID, OwnerID: ownerID, Name: "Anna", Phone: "11 91234-5678"}, nil
				}
			},
			wantStatusCode: http.StatusOK,
		},
		{
			name:           "not_found",
			id:             uuid.NewString(),
			wantStatusCode: http.StatusNotFound,
		},
		{
			name:           "malformed_id",
			id:             "not-a-uuid",
			wantStatusCode: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			directory := &fakeDirectory{}

			if tt.directorySetUp != nil {
				tt.directorySetUp(directory)
			}

			h := handlers.NewContactsHandler(directory, &fakeImageStore{})
			r := authedRouter(http.MethodGet, "/contacts/:id", ownerID, h.Show)

			req := httptest.NewRequest(http.MethodGet, "/contacts/"+tt.id, nil)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}
		})
	}
}

func TestCreateContactHandler(t *testing.T) {
	ownerID := uuid.NewString()

	tests := []struct {
		name           string
		body           string
		directorySetUp func(*fakeDirectory)
		wantStatusCode int
		wantField      string
	}{
		{
			name:           "success",
			body:           `{"name": "Anna Lima", "phone": "11 91234-5678", "email": "anna@example.com"}`,
			wantStatusCode: http.StatusCreated,
		},
		{
			name:           "success_without_email",
			body:           `{"name": "Anna Lima", "phone": "11 91234-5678"}`,
			wantStatusCode: http.StatusCreated,
		},
		{
			name:           "validation_error_missing_phone",
			body:           `{"name": "Anna Lima"}`,
			wantStatusCode: http.StatusUnprocessableEntity,
			wantField:      "phone",
		},
		{
			name:           "validation_error_bad_phone",
			body:           `{"name": "Anna Lima", "phone": "abc"}`,
			wantStatusCode: http.StatusUnprocessableEntity,
			wantField:      "phone",
		},
		{
			name: "duplicate_phone",
			body: `{"name": "Anna Lima", "phone": "11 91234-5678"}`,
			directorySetUp: func(f *fakeDirectory) {
				f.createFn = func(ctx context.Context, ownerID string, req contact.CreateContactRequest) (contact.Contact, error) {
					return contact.Contact{}, contact.ErrDuplicatePhone
				}
			},
			wantStatusCode: http.StatusUnprocessableEntity,
			wantField:      "phone",
		},
		{
			name: "duplicate_email",
			body: `{"name": "Anna Lima", "phone": "11 91234-5678", "email": "anna@example.com"}`,
			directorySetUp: func(f *fakeDirectory) {
				f.createFn = func(ctx context.Context, ownerID string, req contact.CreateContactRequest) (contact.Contact, error) {
					return contact.Contact{}, contact.ErrDuplicateEmail
				}
			},
			wantStatusCode: http.StatusUnprocessableEntity,
			wantField:      "email",
		},
		{
			name: "repo_error",
			body: `{"name": "Anna Lima", "phone": "11 91234-5678"}`,
			directorySetUp: func(f *fakeDirectory) {
				f.createFn = func(ctx context.Context, ownerID string, req contact.CreateContactRequest) (contact.Contact, error) {
					return contact.Contact{}, errors.New("db error")
				}
			},
			wantStatusCode: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			directory := &fakeDirectory{}

			if tt.directorySetUp != nil {
				tt.directorySetUp(directory)
			}

			h := handlers.NewContactsHandler(directory, &fakeImageStore{})
			r := authedRouter(http.MethodPost, "/contacts", ownerID, h.Store)

			req := httptest.NewRequest(http.MethodPost, "/contacts", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")

			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}

			if tt.wantField != "" {
				var resp struct {
					Error struct {
						Details struct {
							Fields []handlers.FieldError `json:"fields"`
						} `json:"details"`
					} `json:"error"`
				}

				if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
					t.Fatalf("failed to unmarshal error response: %v body=%s", err, w.Body.String())
				}

				found := false
				for _, fe := range resp.Error.Details.Fields {
					if fe.Field == tt.wantField {
						found = true
					}
				}

				if !found {
					t.Fatalf("missing field error for %q: %s", tt.wantField, w.Body.String())
				}
			}
		})
	}
}

func TestCreateContactWithImage(t *testing.T) {
	ownerID := uuid.NewString()
	contactID := uuid.NewString()

	var gotPath *string

	directory := &fakeDirectory{
		createFn: func(ctx context.Context, ownerID string, req contact.CreateContactRequest) (contact.Contact, error) {
			return contact.Contact{ID: contactID, OwnerID: ownerID, Name: req.Name, Phone: req.Phone}, nil
		},
		setImageFn: func(ctx context.Context, ownerID, id string, path *string) (contact.Contact, error) {
			gotPath = path
			return contact.Contact{ID: id, OwnerID: ownerID, Name: "Anna Lima", Phone: "11 91234-5678", ImagePath: path}, nil
		},
	}
	images := &fakeImageStore{}

	h := handlers.NewContactsHandler(directory, images)
	r := authedRouter(http.MethodPost, "/contacts", ownerID, h.Store)

	body, contentType := multipartBody(t, map[string]string{
		"name":  "Anna Lima",
		"phone": "11 91234-5678",
	}, "image", "avatar.png", []byte("png-bytes"))

	req := httptest.NewRequest(http.MethodPost, "/contacts", body)
	req.Header.Set("Content-Type", contentType)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
	}

	if len(images.stored) != 1 {
		t.Fatalf("expected one stored blob, got %d", len(images.stored))
	}

	if gotPath == nil || *gotPath != images.stored[0] {
		t.Fatalf("record not pointed at the stored blob: %v vs %v", gotPath, images.stored)
	}

	var resp struct {
		Data struct {
			ImageURL *string `json:"image_url"`
		} `json:"data"`
	}

	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v body=%s", err, w.Body.String())
	}

	if resp.Data.ImageURL == nil || *resp.Data.ImageURL != images.PublicURL(images.stored[0]) {
		t.Fatalf("unexpected image_url: %v", resp.Data.ImageURL)
	}
}

func TestCreateContactRejectsBadImage(t *testing.T) {
	ownerID := uuid.NewString()

	tests := []struct {
		name     string
		fileName string
		content  []byte
	}{
		{name: "wrong_extension", fileName: "avatar.bmp", content: []byte("bmp-bytes")},
		{name: "oversized", fileName: "avatar.png", content: bytes.Repeat([]byte("x"), (2<<20)+1)},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			directory := &fakeDirectory{}
			images := &fakeImageStore{}

			h := handlers.NewContactsHandler(directory, images)
			r := authedRouter(http.MethodPost, "/contacts", ownerID, h.Store)

			body, contentType := multipartBody(t, map[string]string{
				"name":  "Anna Lima",
				"phone": "11 91234-5678",
			}, "image", tt.fileName, tt.content)

			req := httptest.NewRequest(http.MethodPost, "/contacts", body)
			req.Header.Set("Content-Type", contentType)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != http.StatusUnprocessableEntity {
				t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
			}

			if len(images.stored) != 0 {
				t.Fatal("rejected image must not reach the store")
			}
		})
	}
}

func TestUpdateContactHandler(t *testing.T) {
	ownerID := uuid.NewString()
	contactID := uuid.NewString()

	tests := []struct {
		name           string
		id             string
		body           string
		directorySetUp func(*fakeDirectory)
		wantStatusCode int
	}{
		{
			name:           "success",
			id:             contactID,
			body:           `{"name": "Anna Lima", "phone": "11 91234-5678"}`,
			wantStatusCode: http.StatusOK,
		},
		{
			name: "not_found",
			id:   contactID,
			body: `{"name": "Anna Lima", "phone": "11 91234-5678"}`,
			directorySetUp: func(f *fakeDirectory) {
				f.updateFn = func(ctx context.Context, ownerID, id string, req contact.UpdateContactRequest) (contact.Contact, error) {
					return contact.Contact{}, contact.ErrNotFound
				}
			},
			wantStatusCode: http.StatusNotFound,
		},
		{
			name:           "malformed_id",
			id:             "42",
			body:           `{"name": "Anna Lima", "phone": "11 91234-5678"}`,
			wantStatusCode: http.StatusNotFound,
		},
		{
			name: "duplicate_phone",
			id:   contactID,
			body: `{"name": "Anna Lima", "phone": "11 91234-5678"}`,
			directorySetUp: func(f *fakeDirectory) {
				f.updateFn = func(ctx context.Context, ownerID, id string, req contact.UpdateContactRequest) (contact.Contact, error) {
					return contact.Contact{}, contact.ErrDuplicatePhone
				}
			},
			wantStatusCode: http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			directory := &fakeDirectory{}

			if tt.directorySetUp != nil {
				tt.directorySetUp(directory)
			}

			h := handlers.NewContactsHandler(directory, &fakeImageStore{})
			r := authedRouter(http.MethodPut, "/contacts/:id", ownerID, h.Update)

			req := httptest.NewRequest(http.MethodPut, "/contacts/"+tt.id, bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")

			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}
		})
	}
}

// replacing an image keeps the record consistent: new blob written, record
// swapped, only then the old blob removed
func TestUpdateContactReplacesImage(t *testing.T) {
	ownerID := uuid.NewString()
	contactID := uuid.NewString()
	oldPath := "contacts/old-blob.png"

	directory := &fakeDirectory{
		updateFn: func(ctx context.Context, ownerID, id string, req contact.UpdateContactRequest) (contact.Contact, error) {
			return contact.Contact{ID: id, OwnerID: ownerID, Name: req.Name, Phone: req.Phone, ImagePath: &oldPath}, nil
		},
		setImageFn: func(ctx context.Context, ownerID, id string, path *string) (contact.Contact, error) {
			return contact.Contact{ID: id, OwnerID: ownerID, Name: "Anna Lima", Phone: "11 91234-5678", ImagePath: path}, nil
		},
	}
	images := &fakeImageStore{}

	h := handlers.NewContactsHandler(directory, images)
	r := authedRouter(http.MethodPut, "/contacts/:id", ownerID, h.Update)

	body, contentType := multipartBody(t, map[string]string{
		"name":  "Anna Lima",
		"phone": "11 91234-5678",
	}, "image", "new.jpg", []byte("jpg-bytes"))

	req := httptest.NewRequest(http.MethodPut, "/contacts/"+contactID, body)
	req.Header.Set("Content-Type", contentType)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
	}

	if len(images.stored) != 1 {
		t.Fatalf("expected one new blob, got %d", len(images.stored))
	}

	if len(images.deleted) != 1 || images.deleted[0] != oldPath {
		t.Fatalf("old blob not removed: %v", images.deleted)
	}
}

func TestDestroyContactHandler(t *testing.T) {
	ownerID := uuid.NewString()
	contactID := uuid.NewString()
	imagePath := "contacts/blob.png"

	tests := []struct {
		name           string
		id             string
		directorySetUp func(*fakeDirectory)
		wantStatusCode int
		wantDeleted    []string
	}{
		{
			name: "success_with_image",
			id:   contactID,
			directorySetUp: func(f *fakeDirectory) {
				f.deleteFn = func(ctx context.Context, ownerID, id string) (*string, error) {
					return &imagePath, nil
				}
			},
			wantStatusCode: http.StatusNoContent,
			wantDeleted:    []string{imagePath},
		},
		{
			name:           "success_without_image",
			id:             contactID,
			wantStatusCode: http.StatusNoContent,
			wantDeleted:    nil,
		},
		{
			name: "not_found",
			id:   contactID,
			directorySetUp: func(f *fakeDirectory) {
				f.deleteFn = func(ctx context.Context, ownerID, id string) (*string, error) {
					return nil, contact.ErrNotFound
				}
			},
			wantStatusCode: http.StatusNotFound,
		},
		{
			name:           "malformed_id",
			id:             "nope",
			wantStatusCode: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			directory := &fakeDirectory{}

			if tt.directorySetUp != nil {
				tt.directorySetUp(directory)
			}

			images := &fakeImageStore{}

			h := handlers.NewContactsHandler(directory, images)
			r := authedRouter(http.MethodDelete, "/contacts/:id", ownerID, h.Destroy)

			req := httptest.NewRequest(http.MethodDelete, "/contacts/"+tt.id, nil)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}

			if len(images.deleted) != len(tt.wantDeleted) {
				t.Fatalf("expected %d blob deletions, got %v", len(tt.wantDeleted), images.deleted)
			}

			for i, p := range tt.wantDeleted {
				if images.deleted[i] != p {
					t.Fatalf("deleted wrong blob: %v", images.deleted)
				}
			}
		})
	}
}

func TestContactsRequireIdentity(t *testing.T) {
	h := handlers.NewContactsHandler(&fakeDirectory{}, &fakeImageStore{})

	r := gin.New()
	r.GET("/contacts", h.Index)

	req := httptest.NewRequest(http.MethodGet, "/contacts", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("got status %d, want 401", w.Code)
	}
}
