// Contact HTTP handlers.
//
//   - GET    /contacts       (list with filters, sort, pagination)
//   - POST   /contacts       (create, deduplicated by phone number)
//   - GET    /contacts/{id}  (fetch one)
//   - PUT    /contacts/{id}  (partial update)
//   - DELETE /contacts/{id}  (remove)
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tbourn/go-sms-backend/internal/domain"
	"github.com/tbourn/go-sms-backend/internal/repo"
	"github.com/tbourn/go-sms-backend/internal/services"
)

// CreateContactRequest is the JSON payload for a new contact.
type CreateContactRequest struct {
	FirstName   string `json:"first_name" binding:"required" example:"Ada"`
	LastName    string `json:"last_name" binding:"required" example:"Lovelace"`
	PhoneNumber string `json:"phone_number" binding:"required,e164" example:"+14155550100"`
	// Email is optional; an empty string is treated as absent.
	Email        *string           `json:"email,omitempty" example:"ada@example.com"`
	Tags         []string          `json:"tags,omitempty"`
	CustomFields map[string]string `json:"custom_fields,omitempty"`
}

// UpdateContactRequest is a partial update; omitted fields are unchanged.
type UpdateContactRequest struct {
	FirstName    *string           `json:"first_name,omitempty" binding:"omitempty,min=1"`
	LastName     *string           `json:"last_name,omitempty" binding:"omitempty,min=1"`
	PhoneNumber  *string           `json:"phone_number,omitempty" binding:"omitempty,e164"`
	Email        *string           `json:"email,omitempty"`
	Tags         []string          `json:"tags,omitempty"`
	CustomFields map[string]string `json:"custom_fields,omitempty"`
}

// ListContactsResponse is the page envelope for GET /contacts.
type ListContactsResponse struct {
	Success  bool             `json:"success"`
	Data     []domain.Contact `json:"data"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
	Total    int64            `json:"total"`
}

func failContact(c *gin.Context, code string, err error) {
	switch {
	case errors.Is(err, services.ErrContactNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "contact not found")
	case errors.Is(err, services.ErrInvalidContact),
		errors.Is(err, services.ErrInvalidPhone),
		errors.Is(err, services.ErrInvalidEmail):
		fail(c, http.StatusBadRequest, ErrCodeValidation, err.Error())
	case errors.Is(err, services.ErrDuplicateContact):
		fail(c, http.StatusConflict, ErrCodeConflict, err.Error())
	default:
		fail(c, http.StatusInternalServerError, code, err.Error())
	}
}

func contactID(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "contact not found")
		return "", false
	}
	return id, true
}

// ListContacts godoc
// @ID          listContacts
// @Summary     List contacts
// @Description Returns a filtered, sorted page of the user's contacts.
// @Tags        Contacts
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       page       query   int     false "Page number"      minimum(1) default(1)
// @Param       page_size  query   int     false "Items per page"   minimum(1) maximum(100) default(20)
// @Param       sort_by    query   string  false "Sort column"      Enums(created_at, first_name, last_name) default(created_at)
// @Param       sort_dir   query   string  false "Sort direction"   Enums(asc, desc) default(desc)
// @Param       name       query   string  false "First or last name contains (case-insensitive)"
// @Param       phone      query   string  false "Phone number contains"
// @Param       tags       query   string  false "Comma-separated tags; the first is matched"
//
// @Success     200  {object} handlers.ListContactsResponse
// @Failure     400  {object} handlers.ErrorResponse "Invalid query"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /contacts [get]
func (h *Handlers) ListContacts(c *gin.Context) {
	sortBy := c.DefaultQuery("sort_by", "created_at")
	switch sortBy {
	case "created_at", "first_name", "last_name":
	default:
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "sort_by must be created_at, first_name or last_name")
		return
	}
	sortDir := c.DefaultQuery("sort_dir", "desc")
	if sortDir != "asc" && sortDir != "desc" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "sort_dir must be asc or desc")
		return
	}

	f := repo.ContactFilter{
		UserID: userID(c),
		Name:   strings.TrimSpace(c.Query("name")),
		Phone:  strings.TrimSpace(c.Query("phone")),
	}
	for _, t := range strings.Split(c.Query("tags"), ",") {
		if t = strings.TrimSpace(t); t != "" {
			f.Tag = t
			break
		}
	}
	page, pageSize := clampPagination(c, 20)

	items, total, err := h.contactSvc.ListPage(c.Request.Context(), f,
		repo.ContactSort{Column: sortBy, Desc: sortDir == "desc"}, page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, ListContactsResponse{
		Success:  true,
		Data:     items,
		Page:     page,
		PageSize: pageSize,
		Total:    total,
	})
}

// CreateContact godoc
// @ID          createContact
// @Summary     Create a contact
// @Description Creates a contact. When the user already has one with the same
// @Description phone number, that contact is returned with "Contact already exists".
// @Tags        Contacts
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       body       body    handlers.CreateContactRequest  true  "Contact payload"
//
// @Success     200  {object} handlers.SuccessResponse{data=domain.Contact}
// @Failure     400  {object} handlers.ErrorResponse "Invalid request data"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /contacts [post]
func (h *Handlers) CreateContact(c *gin.Context) {
	var req CreateContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeValidation, bindMessage(err))
		return
	}

	ct, created, err := h.contactSvc.Create(c.Request.Context(), userID(c), services.ContactInput{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		PhoneNumber:  req.PhoneNumber,
		Email:        req.Email,
		Tags:         req.Tags,
		CustomFields: req.CustomFields,
	})
	if err != nil {
		failContact(c, ErrCodeCreateFailed, err)
		return
	}
	if !created {
		success(c, "Contact already exists", ct)
		return
	}
	success(c, "Contact created", ct)
}

// GetContact godoc
// @ID          getContact
// @Summary     Get a contact
// @Tags        Contacts
// @Produce     json
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Contact ID (UUID)"  format(uuid)
// @Success     200  {object} handlers.SuccessResponse{data=domain.Contact}
// @Failure     404  {object} handlers.ErrorResponse "Contact not found"
// @Router      /contacts/{id} [get]
func (h *Handlers) GetContact(c *gin.Context) {
	id, valid := contactID(c)
	if !valid {
		return
	}
	ct, err := h.contactSvc.Get(c.Request.Context(), userID(c), id)
	if err != nil {
		failContact(c, ErrCodeInternal, err)
		return
	}
	success(c, "", ct)
}

// UpdateContact godoc
// @ID          updateContact
// @Summary     Update a contact
// @Description Applies a partial update to a contact owned by the current user.
// @Tags        Contacts
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Contact ID (UUID)"  format(uuid)
// @Param       body       body    handlers.UpdateContactRequest  true  "Fields to change"
//
// @Success     200  {object} handlers.SuccessResponse{data=domain.Contact}
// @Failure     400  {object} handlers.ErrorResponse "Invalid request data"
// @Failure     404  {object} handlers.ErrorResponse "Contact not found"
// @Failure     409  {object} handlers.ErrorResponse "Phone number already used"
// @Router      /contacts/{id} [put]
func (h *Handlers) UpdateContact(c *gin.Context) {
	id, valid := contactID(c)
	if !valid {
		return
	}
	var req UpdateContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeValidation, bindMessage(err))
		return
	}

	ct, err := h.contactSvc.Update(c.Request.Context(), userID(c), id, services.ContactPatch{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		PhoneNumber:  req.PhoneNumber,
		Email:        req.Email,
		Tags:         req.Tags,
		CustomFields: req.CustomFields,
	})
	if err != nil {
		failContact(c, ErrCodeUpdateFailed, err)
		return
	}
	success(c, "", ct)
}

// DeleteContact godoc
// @ID          deleteContact
// @Summary     Delete a contact
// @Tags        Contacts
// @Produce     json
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Contact ID (UUID)"  format(uuid)
// @Success     200  {object} handlers.SuccessResponse
// @Failure     404  {object} handlers.ErrorResponse "Contact not found"
// @Router      /contacts/{id} [delete]
func (h *Handlers) DeleteContact(c *gin.Context) {
	id, valid := contactID(c)
	if !valid {
		return
	}
	if err := h.contactSvc.Delete(c.Request.Context(), userID(c), id); err != nil {
		failContact(c, ErrCodeDeleteFailed, err)
		return
	}
	success(c, "", nil)
}
