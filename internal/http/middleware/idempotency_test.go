package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestHelpers_GetIdempotencyKey_IsReplay(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	if k, ok := GetIdempotencyKey(c); k != "" || ok {
		t.Fatalf("expected empty key when not set")
	}
	if IsReplay(c) || IsRateBypass(c) {
		t.Fatalf("expected no replay/bypass by default")
	}

	c.Set(ctxKeyIdemKey, 123)
	if _, ok := GetIdempotencyKey(c); ok {
		t.Fatalf("non-string key should be absent")
	}
	c.Set(ctxKeyIdemReplay, "yes")
	if IsReplay(c) {
		t.Fatalf("non-bool replay flag should read false")
	}
}

func TestIdempotencyValidator_NoHeader_NoLookup(t *testing.T) {
	gin.SetMode(gin.TestMode)
	called := false
	r := gin.New()
	r.Use(IdempotencyValidator(IdempotencyOptions{}, func(context.Context, string, string, string, time.Time) (bool, error) {
		called = true
		return false, nil
	}))
	r.POST("/messages/sms", func(c *gin.Context) {
		if _, ok := GetIdempotencyKey(c); ok {
			t.Fatalf("key should be absent")
		}
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/messages/sms", nil))
	if w.Code != http.StatusNoContent || called {
		t.Fatalf("code=%d lookupCalled=%v", w.Code, called)
	}
}

func TestIdempotencyValidator_RejectsInvalidKeys(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name string
		opts IdempotencyOptions
		key  string
	}{
		{"too long", IdempotencyOptions{MaxLen: 5}, "abcdef"},
		{"bad chars default pattern", IdempotencyOptions{}, "has space"},
		{"custom pattern", IdempotencyOptions{Pattern: regexp.MustCompile(`^[0-9]+$`)}, "abc123"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := gin.New()
			r.Use(RequestID(), IdempotencyValidator(tc.opts, nil))
			r.POST("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/x", nil)
			req.Header.Set(HeaderIdempotencyKey, tc.key)
			r.ServeHTTP(w, req)

			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", w.Code)
			}
			var body map[string]any
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("invalid json: %v", err)
			}
			if body["code"] != "bad_idempotency_key" || body["request_id"] == "" {
				t.Fatalf("unexpected body: %v", body)
			}
		})
	}
}

func TestIdempotencyValidator_LookupScopeAndUser(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("miss with default identity", func(t *testing.T) {
		r := gin.New()
		r.Use(IdempotencyValidator(IdempotencyOptions{}, func(_ context.Context, uid, scope, key string, now time.Time) (bool, error) {
			if uid != DefaultUserID || scope != "sms" || key != "key-1" || now.IsZero() {
				t.Fatalf("lookup args: uid=%q scope=%q key=%q now=%v", uid, scope, key, now)
			}
			return false, nil
		}))
		r.POST("/api/v1/messages/sms", func(c *gin.Context) {
			if k, _ := GetIdempotencyKey(c); k != "key-1" {
				t.Fatalf("stashed key=%q", k)
			}
			if IsReplay(c) || IsRateBypass(c) {
				t.Fatalf("miss marked as replay")
			}
			c.Status(http.StatusOK)
		})

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/messages/sms", nil)
		req.Header.Set(HeaderIdempotencyKey, "key-1")
		r.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("code=%d", w.Code)
		}
	})

	t.Run("hit with identity and custom scope", func(t *testing.T) {
		r := gin.New()
		r.Use(Identity())
		r.Use(IdempotencyValidator(
			IdempotencyOptions{Scope: func(*gin.Context) string { return "custom" }},
			func(_ context.Context, uid, scope, key string, _ time.Time) (bool, error) {
				if uid != "u9" || scope != "custom" || key != "k-9" {
					t.Fatalf("lookup args: uid=%q scope=%q key=%q", uid, scope, key)
				}
				return true, nil
			},
		))
		r.POST("/messages/rcs", func(c *gin.Context) {
			if !IsReplay(c) || !IsRateBypass(c) {
				t.Fatalf("hit not marked")
			}
			c.Status(http.StatusOK)
		})

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/messages/rcs", nil)
		req.Header.Set(UserIDHeader, "u9")
		req.Header.Set(HeaderIdempotencyKey, "k-9")
		r.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("code=%d", w.Code)
		}
	})
}

func TestScopeFromRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	var got string
	r.POST("/api/v1/messages/bulk", func(c *gin.Context) { got = ScopeFromRoute(c) })
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/messages/bulk", nil))
	if got != "bulk" {
		t.Fatalf("scope=%q", got)
	}
}
