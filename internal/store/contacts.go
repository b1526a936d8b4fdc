package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Contact categories offered by the UI. Category is free text — these are
// only the well-known values.
const (
	CategoryUnknown  = "Unknown"
	CategoryBusiness = "Business"
	CategoryPersonal = "Personal"
	CategorySpam     = "Spam"
	CategoryVerified = "Verified"
)

// Contact is a saved contact keyed by phone number. Save is a full-record
// upsert: at most one contact exists per number, last write wins.
type Contact struct {
	// ID is the surrogate key assigned on first insert.
	ID int64

	// PhoneNumber is the unique key.
	PhoneNumber string

	Name     string
	Email    string
	Category string
	Company  string
	Notes    string
	Tags     string

	// SavedAt is when the contact was created or last replaced.
	SavedAt time.Time
}

// Contacts provides access to the saved_contacts table.
// All methods are safe for concurrent use.
type Contacts struct {
	db *sql.DB
}

// Save upserts c keyed by phone number, replacing the full record on
// conflict. SavedAt is set to now; the caller's value is ignored.
func (c *Contacts) Save(ctx context.Context, contact Contact) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO saved_contacts (phone_number, name, email, category, company, notes, tags, saved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(phone_number) DO UPDATE SET
		    name     = excluded.name,
		    email    = excluded.email,
		    category = excluded.category,
		    company  = excluded.company,
		    notes    = excluded.notes,
		    tags     = excluded.tags,
		    saved_at = excluded.saved_at`,
		contact.PhoneNumber,
		contact.Name,
		contact.Email,
		contact.Category,
		contact.Company,
		contact.Notes,
		contact.Tags,
		time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("contacts: save %q: %w", contact.PhoneNumber, err)
	}
	return nil
}

// Get returns the contact for number. The bool reports whether one exists.
func (c *Contacts) Get(ctx context.Context, number string) (Contact, bool, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT id, phone_number, name, email, category, company, notes, tags, saved_at
		FROM   saved_contacts
		WHERE  phone_number = ?`, number)

	var (
		contact Contact
		savedAt int64
	)
	err := row.Scan(
		&contact.ID,
		&contact.PhoneNumber,
		&contact.Name,
		&contact.Email,
		&contact.Category,
		&contact.Company,
		&contact.Notes,
		&contact.Tags,
		&savedAt,
	)
	if err == sql.ErrNoRows {
		return Contact{}, false, nil
	}
	if err != nil {
		return Contact{}, false, fmt.Errorf("contacts: get %q: %w", number, err)
	}
	contact.SavedAt = time.UnixMilli(savedAt)
	return contact, true, nil
}

// IsKnown reports whether a contact exists for number.
func (c *Contacts) IsKnown(ctx context.Context, number string) (bool, error) {
	_, ok, err := c.Get(ctx, number)
	return ok, err
}

// List returns all contacts ordered by saved_at descending.
func (c *Contacts) List(ctx context.Context) ([]Contact, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, phone_number, name, email, category, company, notes, tags, saved_at
		FROM   saved_contacts
		ORDER  BY saved_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("contacts: list: %w", err)
	}
	defer rows.Close()

	contacts := []Contact{}
	for rows.Next() {
		var (
			contact Contact
			savedAt int64
		)
		if err := rows.Scan(
			&contact.ID,
			&contact.PhoneNumber,
			&contact.Name,
			&contact.Email,
			&contact.Category,
			&contact.Company,
			&contact.Notes,
			&contact.Tags,
			&savedAt,
		); err != nil {
			return nil, fmt.Errorf("contacts: scan: %w", err)
		}
		contact.SavedAt = time.UnixMilli(savedAt)
		contacts = append(contacts, contact)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("contacts: list: %w", err)
	}
	return contacts, nil
}

// Delete removes the contact for number. Unknown numbers are a no-op.
func (c *Contacts) Delete(ctx context.Context, number string) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM saved_contacts WHERE phone_number = ?`, number); err != nil {
		return fmt.Errorf("contacts: delete %q: %w", number, err)
	}
	return nil
}
