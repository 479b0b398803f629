// Package services – ContactService
//
// This file implements ContactService, the per-user address book. Phone
// numbers must be E.164 and are unique per user: creating a contact for a
// number that already exists returns the existing contact instead of failing.
// Names are whitespace-normalized, and single-case input is title-cased.
package services

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"github.com/tbourn/go-sms-backend/internal/domain"
	"github.com/tbourn/go-sms-backend/internal/provider"
	"github.com/tbourn/go-sms-backend/internal/repo"
	"github.com/tbourn/go-sms-backend/internal/utils"
)

var (
	validate = validator.New()
	wsRE     = regexp.MustCompile(`\s+`)
)

// ContactInput carries the fields of a new contact.
type ContactInput struct {
	FirstName    string
	LastName     string
	PhoneNumber  string
	Email        *string
	Tags         []string
	CustomFields map[string]string
}

// ContactPatch is a partial update; nil fields are left unchanged.
type ContactPatch struct {
	FirstName    *string
	LastName     *string
	PhoneNumber  *string
	Email        *string
	Tags         []string
	CustomFields map[string]string
}

// ContactService manages contacts owned by a user.
type ContactService struct {
	DB *gorm.DB

	// NameLocale drives title-casing of single-case names.
	NameLocale language.Tag
}

// NewContactService constructs a ContactService.
func NewContactService(db *gorm.DB) *ContactService {
	return &ContactService{DB: db, NameLocale: language.Und}
}

// Create adds a contact for userID. When the user already has a contact with
// the same phone number it is returned with created=false.
func (s *ContactService) Create(ctx context.Context, userID string, in ContactInput) (c *domain.Contact, created bool, err error) {
	tr := otel.Tracer("services/ContactService")
	ctx, span := tr.Start(ctx, "Create", trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	c = &domain.Contact{
		UserID:       userID,
		FirstName:    s.normalizeName(in.FirstName),
		LastName:     s.normalizeName(in.LastName),
		PhoneNumber:  strings.TrimSpace(in.PhoneNumber),
		Tags:         cleanTags(in.Tags),
		CustomFields: in.CustomFields,
	}
	if c.FirstName == "" || c.LastName == "" || c.PhoneNumber == "" {
		return nil, false, ErrInvalidContact
	}
	if !provider.ValidatePhoneNumber(c.PhoneNumber) {
		return nil, false, ErrInvalidPhone
	}
	if c.Email, err = normalizeEmail(in.Email); err != nil {
		return nil, false, err
	}

	existing, err := repo.FindContactByPhone(ctx, s.DB, userID, c.PhoneNumber)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return nil, false, err
	}

	if err := repo.CreateContact(ctx, s.DB, c); err != nil {
		// Lost a race with a concurrent create of the same number.
		if existing, ferr := repo.FindContactByPhone(ctx, s.DB, userID, c.PhoneNumber); ferr == nil {
			return existing, false, nil
		}
		return nil, false, err
	}
	return c, true, nil
}

// Get returns a contact owned by userID.
func (s *ContactService) Get(ctx context.Context, userID, id string) (*domain.Contact, error) {
	c, err := repo.GetContact(ctx, s.DB, id, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrContactNotFound
	}
	return c, err
}

// ListPage returns a filtered, sorted page of contacts and the total count.
func (s *ContactService) ListPage(ctx context.Context, f repo.ContactFilter, sort repo.ContactSort, page, pageSize int) ([]domain.Contact, int64, error) {
	tr := otel.Tracer("services/ContactService")
	ctx, span := tr.Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.String("user.id", f.UserID),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	pg := utils.Page{Number: page, Size: pageSize}.Normalize(10)

	total, err := repo.CountContacts(ctx, s.DB, f)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Contact{}, 0, nil
	}
	items, err := repo.ListContactsPage(ctx, s.DB, f, sort, pg.Offset(), pg.Size)
	return items, total, err
}

// Update applies p to a contact owned by userID and returns the result.
func (s *ContactService) Update(ctx context.Context, userID, id string, p ContactPatch) (*domain.Contact, error) {
	tr := otel.Tracer("services/ContactService")
	ctx, span := tr.Start(ctx, "Update",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("contact.id", id),
		),
	)
	defer span.End()

	c, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if p.FirstName != nil {
		c.FirstName = s.normalizeName(*p.FirstName)
	}
	if p.LastName != nil {
		c.LastName = s.normalizeName(*p.LastName)
	}
	if p.PhoneNumber != nil {
		c.PhoneNumber = strings.TrimSpace(*p.PhoneNumber)
		if !provider.ValidatePhoneNumber(c.PhoneNumber) {
			return nil, ErrInvalidPhone
		}
	}
	if p.Email != nil {
		if c.Email, err = normalizeEmail(p.Email); err != nil {
			return nil, err
		}
	}
	if p.Tags != nil {
		c.Tags = cleanTags(p.Tags)
	}
	if p.CustomFields != nil {
		c.CustomFields = p.CustomFields
	}
	if c.FirstName == "" || c.LastName == "" {
		return nil, ErrInvalidContact
	}

	if p.PhoneNumber != nil {
		if other, err := repo.FindContactByPhone(ctx, s.DB, userID, c.PhoneNumber); err == nil && other.ID != c.ID {
			return nil, ErrDuplicateContact
		}
	}

	if err := repo.UpdateContact(ctx, s.DB, c); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrContactNotFound
		}
		return nil, err
	}
	return c, nil
}

// Delete removes a contact owned by userID.
func (s *ContactService) Delete(ctx context.Context, userID, id string) error {
	err := repo.DeleteContact(ctx, s.DB, id, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrContactNotFound
	}
	return err
}

// normalizeName trims and collapses whitespace. All-lower or all-upper input
// is title-cased; mixed case is kept as typed.
func (s *ContactService) normalizeName(raw string) string {
	n := wsRE.ReplaceAllString(strings.TrimSpace(raw), " ")
	if n == "" {
		return ""
	}
	if n == strings.ToLower(n) || n == strings.ToUpper(n) {
		return cases.Title(s.NameLocale).String(n)
	}
	return n
}

// normalizeEmail trims e and validates it. Empty becomes nil.
func normalizeEmail(e *string) (*string, error) {
	if e == nil {
		return nil, nil
	}
	v := strings.TrimSpace(*e)
	if v == "" {
		return nil, nil
	}
	if err := validate.Var(v, "email"); err != nil {
		return nil, ErrInvalidEmail
	}
	return &v, nil
}

// cleanTags trims, drops empty, and de-duplicates while keeping order.
func cleanTags(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, t := range in {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
