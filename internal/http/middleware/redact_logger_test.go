package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestRedact_Patterns(t *testing.T) {
	cases := []struct{ in, want string }{
		{"to=%2B14155550100", "to=[REDACTED:phone]"},
		{"phone=+442071838750&x=1", "phone=[REDACTED:phone]&x=1"},
		{"call (415) 555-0100 now", "call [REDACTED:phone] now"},
		{"email=ada@example.com", "email=[REDACTED:email]"},
		{"id=123e4567-e89b-12d3-a456-426614174000", "id=[REDACTED:id]"},
		{"page=2&page_size=20", "page=2&page_size=20"},
		{"sid=SM0123456789abcdef0123456789abcdef", "sid=SM0123456789abcdef0123456789abcdef"},
	}
	for _, tc := range cases {
		if got := redact(tc.in); got != tc.want {
			t.Errorf("redact(%q)=%q want %q", tc.in, got, tc.want)
		}
	}
}

func TestRedactingLogger_ScrubsAndAttachesLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	r := gin.New()
	r.Use(RequestID(), Identity(), RedactingLogger(RedactOptions{MaskHeaders: []string{"X-Api-Key"}}))
	r.GET("/api/v1/contacts", func(c *gin.Context) {
		LoggerFrom(c).Info().Msg("inside")
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/contacts?phone=%2B14155550100&name=ada@example.com", nil)
	req.Header.Set("Authorization", "Bearer secret")
	req.Header.Set("X-Api-Key", "k")
	req.Header.Set("X-Twilio-Signature", "sig")
	req.Header.Set(UserIDHeader, "u7")
	r.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	for _, leak := range []string{"14155550100", "ada@example.com", "Bearer secret", "sig\""} {
		if strings.Contains(out, leak) {
			t.Fatalf("log leaked %q: %s", leak, out)
		}
	}

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 log lines, got %d: %s", len(lines), out)
	}
	if !strings.Contains(lines[0], `"message":"inside"`) || !strings.Contains(lines[0], `"user_id":"u7"`) {
		t.Fatalf("scoped logger missing fields: %s", lines[0])
	}
	access := lastLogLine(t, buf)
	if access["message"] != "http_request" || access["path"] != "/api/v1/contacts" || access["level"] != "info" {
		t.Fatalf("access line: %v", access)
	}
}

func TestRedactingLogger_LevelByStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)

	for status, level := range map[int]string{200: "info", 404: "warn", 503: "error"} {
		buf := captureLogger(t)
		r := gin.New()
		r.Use(RedactingLogger(RedactOptions{}))
		st := status
		r.GET("/s", func(c *gin.Context) { c.Status(st) })
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/s", nil))

		if got := lastLogLine(t, buf)["level"]; got != level {
			t.Fatalf("status %d logged at %v, want %s", status, got, level)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("abcdef", 3); got != "abc..." {
		t.Fatalf("truncate=%q", got)
	}
	if got := truncate("ab", 3); got != "ab" {
		t.Fatalf("truncate short=%q", got)
	}
}
