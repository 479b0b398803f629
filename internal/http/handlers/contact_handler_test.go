package handlers

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-sms-backend/internal/domain"
	"github.com/tbourn/go-sms-backend/internal/services"
)

func contactRouter(db *gorm.DB) *gin.Engine {
	h := New(nil, nil, services.NewContactService(db), services.NewAnalyticsService(db))
	r := newEngine()
	r.GET("/contacts", h.ListContacts)
	r.POST("/contacts", h.CreateContact)
	r.GET("/contacts/:id", h.GetContact)
	r.PUT("/contacts/:id", h.UpdateContact)
	r.DELETE("/contacts/:id", h.DeleteContact)
	r.GET("/analytics/summary", h.AnalyticsSummary)
	return r
}

var u1 = map[string]string{"X-User-ID": "u1"}

func TestCreateContact_CreatesThenDedupes(t *testing.T) {
	r := contactRouter(newTestDB(t))

	body := map[string]any{
		"first_name":    "ada",
		"last_name":     "lovelace",
		"phone_number":  "+14155550100",
		"email":         "ada@example.com",
		"tags":          []string{"vip", " vip ", ""},
		"custom_fields": map[string]string{"tier": "gold"},
	}
	w := doJSON(t, r, http.MethodPost, "/contacts", body, u1)
	first := decode[envelope[domain.Contact]](t, w)
	if w.Code != http.StatusOK || first.Message != "Contact created" {
		t.Fatalf("create: %d %s", w.Code, w.Body.String())
	}
	c := first.Data
	if c.FirstName != "Ada" || c.LastName != "Lovelace" || len(c.Tags) != 1 || c.CustomFields["tier"] != "gold" {
		t.Fatalf("normalized contact=%+v", c)
	}

	body["first_name"] = "Someone Else"
	w = doJSON(t, r, http.MethodPost, "/contacts", body, u1)
	again := decode[envelope[domain.Contact]](t, w)
	if w.Code != http.StatusOK || again.Message != "Contact already exists" || again.Data.ID != c.ID || again.Data.FirstName != "Ada" {
		t.Fatalf("dedupe: %d %s", w.Code, w.Body.String())
	}

	// Another user gets their own contact for the same number.
	w = doJSON(t, r, http.MethodPost, "/contacts", body, map[string]string{"X-User-ID": "u2"})
	if other := decode[envelope[domain.Contact]](t, w); other.Message != "Contact created" || other.Data.ID == c.ID {
		t.Fatalf("per-user dedupe: %s", w.Body.String())
	}
}

func TestCreateContact_Validation(t *testing.T) {
	r := contactRouter(newTestDB(t))

	for name, body := range map[string]string{
		"missing last":  `{"first_name":"A","phone_number":"+14155550100"}`,
		"not e164":      `{"first_name":"A","last_name":"B","phone_number":"4155550100"}`,
		"bad email":     `{"first_name":"A","last_name":"B","phone_number":"+14155550100","email":"nope"}`,
		"whitespace fn": `{"first_name":"   ","last_name":"B","phone_number":"+14155550100"}`,
	} {
		w := doJSON(t, r, http.MethodPost, "/contacts", body, u1)
		if w.Code != http.StatusBadRequest || decode[ErrorResponse](t, w).Code != ErrCodeValidation {
			t.Fatalf("%s: %d %s", name, w.Code, w.Body.String())
		}
	}

	// Empty email is treated as absent.
	w := doJSON(t, r, http.MethodPost, "/contacts", `{"first_name":"A","last_name":"B","phone_number":"+14155550100","email":""}`, u1)
	if w.Code != http.StatusOK || decode[envelope[domain.Contact]](t, w).Data.Email != nil {
		t.Fatalf("empty email: %d %s", w.Code, w.Body.String())
	}
}

func TestListContacts_FiltersSortAndPaging(t *testing.T) {
	r := contactRouter(newTestDB(t))
	for _, c := range []map[string]any{
		{"first_name": "Ada", "last_name": "Lovelace", "phone_number": "+14155550101", "tags": []string{"vip"}},
		{"first_name": "Alan", "last_name": "Turing", "phone_number": "+14155550102", "tags": []string{"lead"}},
		{"first_name": "Grace", "last_name": "Hopper", "phone_number": "+442071838750", "tags": []string{"vip", "lead"}},
	} {
		if w := doJSON(t, r, http.MethodPost, "/contacts", c, u1); w.Code != http.StatusOK {
			t.Fatalf("seed: %d %s", w.Code, w.Body.String())
		}
	}

	w := doJSON(t, r, http.MethodGet, "/contacts?sort_by=first_name&sort_dir=asc&page_size=2", nil, u1)
	resp := decode[ListContactsResponse](t, w)
	if w.Code != http.StatusOK || !resp.Success || resp.Total != 3 || resp.PageSize != 2 || len(resp.Data) != 2 ||
		resp.Data[0].FirstName != "Ada" || resp.Data[1].FirstName != "Alan" {
		t.Fatalf("sorted page: %d %s", w.Code, w.Body.String())
	}

	w = doJSON(t, r, http.MethodGet, "/contacts?name=HOP", nil, u1)
	if resp := decode[ListContactsResponse](t, w); resp.Total != 1 || resp.Data[0].LastName != "Hopper" {
		t.Fatalf("name filter: %s", w.Body.String())
	}

	w = doJSON(t, r, http.MethodGet, "/contacts?tags=vip,lead", nil, u1)
	if resp := decode[ListContactsResponse](t, w); resp.Total != 2 {
		t.Fatalf("tag filter (first tag): %s", w.Body.String())
	}

	w = doJSON(t, r, http.MethodGet, "/contacts?phone=%2B44", nil, u1)
	if resp := decode[ListContactsResponse](t, w); resp.Total != 1 {
		t.Fatalf("phone filter: %s", w.Body.String())
	}

	w = doJSON(t, r, http.MethodGet, "/contacts", nil, map[string]string{"X-User-ID": "nobody"})
	if resp := decode[ListContactsResponse](t, w); resp.Total != 0 || resp.Data == nil {
		t.Fatalf("empty list should be []: %s", w.Body.String())
	}

	for _, q := range []string{"sort_by=phone_number", "sort_dir=up"} {
		if w := doJSON(t, r, http.MethodGet, "/contacts?"+q, nil, u1); w.Code != http.StatusBadRequest {
			t.Fatalf("%s: %d", q, w.Code)
		}
	}
}

func TestUpdateAndDeleteContact(t *testing.T) {
	r := contactRouter(newTestDB(t))
	mk := func(phone string) domain.Contact {
		w := doJSON(t, r, http.MethodPost, "/contacts",
			map[string]any{"first_name": "A", "last_name": "B", "phone_number": phone}, u1)
		return decode[envelope[domain.Contact]](t, w).Data
	}
	a, b := mk("+14155550101"), mk("+14155550102")

	w := doJSON(t, r, http.MethodPut, "/contacts/"+a.ID, `{"last_name":"Byron","tags":["poet"]}`, u1)
	up := decode[envelope[domain.Contact]](t, w)
	if w.Code != http.StatusOK || up.Data.LastName != "Byron" || up.Data.FirstName != "A" || up.Data.PhoneNumber != a.PhoneNumber || len(up.Data.Tags) != 1 {
		t.Fatalf("update: %d %s", w.Code, w.Body.String())
	}

	w = doJSON(t, r, http.MethodPut, "/contacts/"+a.ID, `{"phone_number":"`+b.PhoneNumber+`"}`, u1)
	if w.Code != http.StatusConflict {
		t.Fatalf("duplicate phone: %d %s", w.Code, w.Body.String())
	}
	if w := doJSON(t, r, http.MethodPut, "/contacts/"+a.ID, `{"phone_number":"12"}`, u1); w.Code != http.StatusBadRequest {
		t.Fatalf("bad phone: %d", w.Code)
	}

	// Not owned and unknown both look like 404.
	if w := doJSON(t, r, http.MethodPut, "/contacts/"+a.ID, `{"last_name":"X"}`, map[string]string{"X-User-ID": "u2"}); w.Code != http.StatusNotFound {
		t.Fatalf("foreign update: %d", w.Code)
	}
	if w := doJSON(t, r, http.MethodGet, "/contacts/not-a-uuid", nil, u1); w.Code != http.StatusNotFound {
		t.Fatalf("bad id: %d", w.Code)
	}

	if w := doJSON(t, r, http.MethodGet, "/contacts/"+b.ID, nil, u1); w.Code != http.StatusOK {
		t.Fatalf("get: %d", w.Code)
	}
	w = doJSON(t, r, http.MethodDelete, "/contacts/"+b.ID, nil, u1)
	if w.Code != http.StatusOK || !decode[SuccessResponse](t, w).Success {
		t.Fatalf("delete: %d %s", w.Code, w.Body.String())
	}
	if w := doJSON(t, r, http.MethodDelete, "/contacts/"+b.ID, nil, u1); w.Code != http.StatusNotFound {
		t.Fatalf("second delete: %d", w.Code)
	}
	if w := doJSON(t, r, http.MethodDelete, "/contacts/"+uuid.NewString(), nil, u1); w.Code != http.StatusNotFound {
		t.Fatalf("unknown delete: %d", w.Code)
	}
}

func TestAnalyticsSummary_Empty(t *testing.T) {
	r := contactRouter(newTestDB(t))
	w := doJSON(t, r, http.MethodGet, "/analytics/summary", nil, u1)
	env := decode[envelope[services.Analytics]](t, w)
	if w.Code != http.StatusOK || !env.Success || env.Data.TotalMessages != 0 || len(env.Data.RecentActivity) != services.ActivityDays {
		t.Fatalf("summary: %d %s", w.Code, w.Body.String())
	}
}
