// Package directory is the contact directory service: every operation takes
// the calling user's id explicitly and only ever touches that user's rows.
package directory

import (
	"context"
	"errors"
	"strings"

	"github.com/rfsouza01/contacthub/internal/domain/contact"
)

const (
	DefaultPerPage = 15
	MaxPerPage     = 100
)

// ContactsStore is what the service needs from persistence. Implemented by
// the postgres and memory repos.
type ContactsStore interface {
	List(ctx context.Context, ownerID string, f contact.ListFilter) ([]contact.Contact, int, error)
	GetByID(ctx context.Context, ownerID, id string) (contact.Contact, error)
	FindByPhone(ctx context.Context, ownerID, phone string) (contact.Contact, error)
	FindByEmail(ctx context.Context, ownerID, email string) (contact.Contact, error)
	Create(ctx context.Context, ownerID string, req contact.CreateContactRequest) (contact.Contact, error)
	Update(ctx context.Context, ownerID, id string, req contact.UpdateContactRequest) (contact.Contact, error)
	SetImagePath(ctx context.Context, ownerID, id string, path *string) (contact.Contact, error)
	Delete(ctx context.Context, ownerID, id string) (*string, error)
}

type Service struct {
	store ContactsStore
}

func NewService(store ContactsStore) *Service {
	return &Service{store: store}
}

// List pages through the caller's contacts. An empty query lists everything;
// otherwise name, phone and email are matched as substrings (name and email
// case-insensitively). Ordered by name, then id.
func (s *Service) List(ctx context.Context, ownerID, query string, page, perPage int) (contact.Page, error) {
	if page <= 0 {
		page = 1
	}

	if perPage <= 0 {
		perPage = DefaultPerPage
	}

	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}

	filter := contact.ListFilter{
		Query:  strings.TrimSpace(query),
		Limit:  perPage,
		Offset: (page - 1) * perPage,
	}

	items, total, err := s.store.List(ctx, ownerID, filter)

	if err != nil {
		return contact.Page{}, err
	}

	lastPage := (total + perPage - 1) / perPage

	if lastPage < 1 {
		lastPage = 1
	}

	return contact.Page{
		Items:       items,
		Total:       total,
		PerPage:     perPage,
		CurrentPage: page,
		LastPage:    lastPage,
	}, nil
}

func (s *Service) Get(ctx context.Context, ownerID, id string) (contact.Contact, error) {
	return s.store.GetByID(ctx, ownerID, id)
}

func (s *Service) Create(ctx context.Context, ownerID string, req contact.CreateContactRequest) (contact.Contact, error) {
	err := s.checkDuplicates(ctx, ownerID, req.Phone, req.Email, "")

	if err != nil {
		return contact.Contact{}, err
	}

	return s.store.Create(ctx, ownerID, req)
}

func (s *Service) Update(ctx context.Context, ownerID, id string, req contact.UpdateContactRequest) (contact.Contact, error) {
	err := s.checkDuplicates(ctx, ownerID, req.Phone, req.Email, id)

	if err != nil {
		return contact.Contact{}, err
	}

	return s.store.Update(ctx, ownerID, id, req)
}

// SetImagePath swaps the stored image reference once the new blob exists.
func (s *Service) SetImagePath(ctx context.Context, ownerID, id string, path *string) (contact.Contact, error) {
	return s.store.SetImagePath(ctx, ownerID, id, path)
}

// Delete removes the contact and returns the image path it referenced, if
// any, so the caller can delete the blob after the record is gone.
func (s *Service) Delete(ctx context.Context, ownerID, id string) (*string, error) {
	return s.store.Delete(ctx, ownerID, id)
}

// checkDuplicates enforces per-owner uniqueness of phone and (when present)
// email, ignoring the record being updated. The composite unique index on
// (user_id, phone) is the backstop for the remaining race window.
func (s *Service) checkDuplicates(ctx context.Context, ownerID, phone string, email *string, excludeID string) error {
	existing, err := s.store.FindByPhone(ctx, ownerID, phone)

	if err == nil && existing.ID != excludeID {
		return contact.ErrDuplicatePhone
	}

	if err != nil && !errors.Is(err, contact.ErrNotFound) {
		return err
	}

	if email != nil && *email != "" {
		existing, err = s.store.FindByEmail(ctx, ownerID, *email)

		if err == nil && existing.ID != excludeID {
			return contact.ErrDuplicateEmail
		}

		if err != nil && !errors.Is(err, contact.ErrNotFound) {
			return err
		}
	}

	return nil
}
