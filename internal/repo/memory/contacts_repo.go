package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rfsouza01/contacthub/internal/domain/contact"

	"github.com/google/uuid"
)

// ContactsRepo mirrors the postgres contacts repo semantics in memory,
// including owner scoping and per-owner phone uniqueness. Used in tests and
// handy for local hacking without a database.
type ContactsRepo struct {
	mu    sync.RWMutex
	items map[string]contact.Contact
}

func NewContactsRepo() *ContactsRepo {
	return &ContactsRepo{
		items: make(map[string]contact.Contact),
	}
}

func (r *ContactsRepo) List(ctx context.Context, ownerID string, f contact.ListFilter) ([]contact.Contact, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]contact.Contact, 0)

	for _, c := range r.items {
		if c.OwnerID != ownerID {
			continue
		}

		if f.Query != "" && !matchesQuery(c, f.Query) {
			continue
		}

		matched = append(matched, c)
	}

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Name != matched[j].Name {
			return matched[i].Name < matched[j].Name
		}
		return matched[i].ID < matched[j].ID
	})

	total := len(matched)

	if f.Offset >= total {
		return []contact.Contact{}, total, nil
	}

	end := f.Offset + f.Limit
	if end > total {
		end = total
	}

	return matched[f.Offset:end], total, nil
}

func matchesQuery(c contact.Contact, q string) bool {
	q = strings.ToLower(q)

	if strings.Contains(strings.ToLower(c.Name), q) {
		return true
	}

	if strings.Contains(c.Phone, q) {
		return true
	}

	if c.Email != nil && strings.Contains(strings.ToLower(*c.Email), q) {
		return true
	}

	return false
}

func (r *ContactsRepo) GetByID(ctx context.Context, ownerID, id string) (contact.Contact, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.items[id]

	if !ok || c.OwnerID != ownerID {
		return contact.Contact{}, contact.ErrNotFound
	}

	return c, nil
}

func (r *ContactsRepo) FindByPhone(ctx context.Context, ownerID, phone string) (contact.Contact, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, c := range r.items {
		if c.OwnerID == ownerID && c.Phone == phone {
			return c, nil
		}
	}

	return contact.Contact{}, contact.ErrNotFound
}

func (r *ContactsRepo) FindByEmail(ctx context.Context, ownerID, email string) (contact.Contact, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, c := range r.items {
		if c.OwnerID == ownerID && c.Email != nil && *c.Email == email {
			return c, nil
		}
	}

	return contact.Contact{}, contact.ErrNotFound
}

func (r *ContactsRepo) Create(ctx context.Context, ownerID string, req contact.CreateContactRequest) (contact.Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.items {
		if existing.OwnerID == ownerID && existing.Phone == req.Phone {
			return contact.Contact{}, contact.ErrDuplicatePhone
		}
	}

	now := time.Now().UTC()
	c := contact.Contact{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Name:      req.Name,
		Phone:     req.Phone,
		Email:     req.Email,
		CreatedAt: now,
		UpdatedAt: now,
	}

	r.items[c.ID] = c

	return c, nil
}

func (r *ContactsRepo) Update(ctx context.Context, ownerID, id string, req contact.UpdateContactRequest) (contact.Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.items[id]

	if !ok || c.OwnerID != ownerID {
		return contact.Contact{}, contact.ErrNotFound
	}

	for _, existing := range r.items {
		if existing.ID != id && existing.OwnerID == ownerID && existing.Phone == req.Phone {
			return contact.Contact{}, contact.ErrDuplicatePhone
		}
	}

	c.Name = req.Name
	c.Phone = req.Phone
	c.Email = req.Email
	c.UpdatedAt = time.Now().UTC()

	r.items[id] = c

	return c, nil
}

func (r *ContactsRepo) SetImagePath(ctx context.Context, ownerID, id string, path *string) (contact.Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.items[id]

	if !ok || c.OwnerID != ownerID {
		return contact.Contact{}, contact.ErrNotFound
	}

	c.ImagePath = path
	c.UpdatedAt = time.Now().UTC()

	r.items[id] = c

	return c, nil
}

func (r *ContactsRepo) Delete(ctx context.Context, ownerID, id string) (*string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.items[id]

	if !ok || c.OwnerID != ownerID {
		return nil, contact.ErrNotFound
	}

	delete(r.items, id)

	return c.ImagePath, nil
}
