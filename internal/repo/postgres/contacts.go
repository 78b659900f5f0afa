package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rfsouza01/contacthub/internal/domain/contact"
	"github.com/rfsouza01/contacthub/internal/observability"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ContactsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewContactsRepo(pool *pgxpool.Pool, prom *observability.Prom) *ContactsRepo {
	return &ContactsRepo{
		pool: pool,
		prom: prom,
	}
}

func (repo *ContactsRepo) observe(op string, fn func() error) error {
	if repo.prom != nil {
		return repo.prom.ObserveDB(op, fn)
	}
	return fn()
}

// Every query below filters by user_id in the WHERE clause, so a contact
// owned by someone else is indistinguishable from a missing one.

func (r *ContactsRepo) List(ctx context.Context, ownerID string, f contact.ListFilter) ([]contact.Contact, int, error) {
	baseQuery := `SELECT id,
		user_id,
		name,
		phone,
		email,
		image_path,
		created_at,
		updated_at,
		COUNT(*) OVER() AS total
	FROM contacts
	WHERE user_id = $1
	`

	args := []interface{}{ownerID}
	argsPosition := 2

	if f.Query != "" {
		baseQuery += fmt.Sprintf(
			" AND (name ILIKE $%d OR phone LIKE $%d OR email ILIKE $%d)",
			argsPosition, argsPosition, argsPosition,
		)
		args = append(args, "%"+f.Query+"%")
		argsPosition++
	}

	// stable ordering for pagination
	baseQuery += fmt.Sprintf(" ORDER BY name ASC, id ASC LIMIT $%d OFFSET $%d", argsPosition, argsPosition+1)
	args = append(args, f.Limit, f.Offset)

	var output []contact.Contact
	total := 0

	err := r.observe("contacts.list", func() error {
		rows, err := r.pool.Query(ctx, baseQuery, args...)

		if err != nil {
			return err
		}

		defer rows.Close()

		output = make([]contact.Contact, 0, f.Limit)

		for rows.Next() {
			var c contact.Contact
			var t int

			err = rows.Scan(&c.ID, &c.OwnerID, &c.Name, &c.Phone, &c.Email, &c.ImagePath, &c.CreatedAt, &c.UpdatedAt, &t)

			if err != nil {
				return err
			}

			total = t
			output = append(output, c)
		}

		return rows.Err()
	})

	if err != nil {
		return nil, 0, err
	}

	// a page past the end returns no rows, so the window total is lost
	if len(output) == 0 && f.Offset > 0 {
		total, err = r.count(ctx, ownerID, f)

		if err != nil {
			return nil, 0, err
		}
	}

	return output, total, nil
}

func (r *ContactsRepo) count(ctx context.Context, ownerID string, f contact.ListFilter) (int, error) {
	query := `SELECT COUNT(*) FROM contacts WHERE user_id = $1`
	args := []interface{}{ownerID}

	if f.Query != "" {
		query += " AND (name ILIKE $2 OR phone LIKE $2 OR email ILIKE $2)"
		args = append(args, "%"+f.Query+"%")
	}

	var total int

	err := r.observe("contacts.count", func() error {
		return r.pool.QueryRow(ctx, query, args...).Scan(&total)
	})

	return total, err
}

func (r *ContactsRepo) GetByID(ctx context.Context, ownerID, id string) (contact.Contact, error) {
	var c contact.Contact

	err := r.observe("contacts.get", func() error {
		return r.pool.QueryRow(ctx,
			`SELECT id, user_id, name, phone, email, image_path, created_at, updated_at
			FROM contacts
			WHERE id = $1 AND user_id = $2`,
			id, ownerID,
		).Scan(&c.ID, &c.OwnerID, &c.Name, &c.Phone, &c.Email, &c.ImagePath, &c.CreatedAt, &c.UpdatedAt)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return contact.Contact{}, contact.ErrNotFound
		}

		return contact.Contact{}, err
	}

	return c, nil
}

func (r *ContactsRepo) FindByPhone(ctx context.Context, ownerID, phone string) (contact.Contact, error) {
	var c contact.Contact

	err := r.observe("contacts.find_by_phone", func() error {
		return r.pool.QueryRow(ctx,
			`SELECT id, user_id, name, phone, email, image_path, created_at, updated_at
			FROM contacts
			WHERE user_id = $1 AND phone = $2`,
			ownerID, phone,
		).Scan(&c.ID, &c.OwnerID, &c.Name, &c.Phone, &c.Email, &c.ImagePath, &c.CreatedAt, &c.UpdatedAt)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return contact.Contact{}, contact.ErrNotFound
		}

		return contact.Contact{}, err
	}

	return c, nil
}

func (r *ContactsRepo) FindByEmail(ctx context.Context, ownerID, email string) (contact.Contact, error) {
	var c contact.Contact

	err := r.observe("contacts.find_by_email", func() error {
		return r.pool.QueryRow(ctx,
			`SELECT id, user_id, name, phone, email, image_path, created_at, updated_at
			FROM contacts
			WHERE user_id = $1 AND email = $2`,
			ownerID, email,
		).Scan(&c.ID, &c.OwnerID, &c.Name, &c.Phone, &c.Email, &c.ImagePath, &c.CreatedAt, &c.UpdatedAt)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return contact.Contact{}, contact.ErrNotFound
		}

		return contact.Contact{}, err
	}

	return c, nil
}

func (r *ContactsRepo) Create(ctx context.Context, ownerID string, req contact.CreateContactRequest) (contact.Contact, error) {
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

	err := r.observe("contacts.create", func() error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO contacts (id, user_id, name, phone, email, image_path, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			c.ID, c.OwnerID, c.Name, c.Phone, c.Email, c.ImagePath, c.CreatedAt, c.UpdatedAt,
		)
		return err
	})

	if err != nil {
		// (user_id, phone) unique index closes the check-then-act window
		if IsUniqueViolation(err) {
			return contact.Contact{}, contact.ErrDuplicatePhone
		}

		return contact.Contact{}, err
	}

	return c, nil
}

func (r *ContactsRepo) Update(ctx context.Context, ownerID, id string, req contact.UpdateContactRequest) (contact.Contact, error) {
	var c contact.Contact

	err := r.observe("contacts.update", func() error {
		return r.pool.QueryRow(ctx,
			`UPDATE contacts
				SET name = $3,
						phone = $4,
						email = $5,
						updated_at = NOW()
			WHERE id = $1 AND user_id = $2
			RETURNING id, user_id, name, phone, email, image_path, created_at, updated_at`,
			id, ownerID, req.Name, req.Phone, req.Email,
		).Scan(&c.ID, &c.OwnerID, &c.Name, &c.Phone, &c.Email, &c.ImagePath, &c.CreatedAt, &c.UpdatedAt)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return contact.Contact{}, contact.ErrNotFound
		}

		if IsUniqueViolation(err) {
			return contact.Contact{}, contact.ErrDuplicatePhone
		}

		return contact.Contact{}, err
	}

	return c, nil
}

// SetImagePath swaps only the stored image reference; used by the API layer
// after a new blob has been written so the record never points at a blob
// that does not exist yet.
func (r *ContactsRepo) SetImagePath(ctx context.Context, ownerID, id string, path *string) (contact.Contact, error) {
	var c contact.Contact

	err := r.observe("contacts.set_image_path", func() error {
		return r.pool.QueryRow(ctx,
			`UPDATE contacts
				SET image_path = $3,
						updated_at = NOW()
			WHERE id = $1 AND user_id = $2
			RETURNING id, user_id, name, phone, email, image_path, created_at, updated_at`,
			id, ownerID, path,
		).Scan(&c.ID, &c.OwnerID, &c.Name, &c.Phone, &c.Email, &c.ImagePath, &c.CreatedAt, &c.UpdatedAt)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return contact.Contact{}, contact.ErrNotFound
		}

		return contact.Contact{}, err
	}

	return c, nil
}

// Delete removes the row and reports the image path it held, so the caller
// can clean up the blob once the record is definitely gone.
func (r *ContactsRepo) Delete(ctx context.Context, ownerID, id string) (*string, error) {
	var imagePath *string

	err := r.observe("contacts.delete", func() error {
		return r.pool.QueryRow(ctx,
			`DELETE FROM contacts
			WHERE id = $1 AND user_id = $2
			RETURNING image_path`,
			id, ownerID,
		).Scan(&imagePath)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, contact.ErrNotFound
		}

		return nil, err
	}

	return imagePath, nil
}
