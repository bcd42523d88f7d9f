package http

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/roadwatch/internal/auth"
	"github.com/mrlokans/roadwatch/internal/theme"
)

func serveDashboard(dc *DashboardController, accept string) *httptest.ResponseRecorder {
	router := gin.New()
	router.GET("/dashboard", func(c *gin.Context) {
		c.Set(auth.ContextKeyEmail, "driver@example.com")
		c.Next()
	}, dc.Page)

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestDashboard_RendersTemplate(t *testing.T) {
	dir := t.TempDir()
	tmpl := `<html data-theme="{{.Theme}}">{{.Email}}|{{.Stats.TotalReports}}|{{.Stats.ActiveAlerts}}|{{.Stats.MostCommonAccident}}|{{.Glyph}}</html>`
	if err := os.WriteFile(filepath.Join(dir, "dashboard.html"), []byte(tmpl), 0o644); err != nil {
		t.Fatal(err)
	}

	dark := func(*gin.Context) theme.Resolution {
		return theme.Resolution{Theme: theme.Dark, Source: theme.SourceRemote}
	}
	w := serveDashboard(NewDashboardController(dir, dark), "")

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("expected HTML, got %q", ct)
	}
	want := `<html data-theme="dark">driver@example.com|1,245|32|Rear-End|☀️</html>`
	if got := w.Body.String(); got != want {
		t.Errorf("body = %q, want %q", got, want)
	}
}

func TestDashboard_JSONWithoutTemplates(t *testing.T) {
	w := serveDashboard(NewDashboardController(t.TempDir(), nil), "")

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{`"email":"driver@example.com"`, `"theme":"light"`, `"total_reports":"1,245"`} {
		if !strings.Contains(body, want) {
			t.Errorf("body %s missing %s", body, want)
		}
	}
}

func TestDashboard_RenderFailureIsInternalError(t *testing.T) {
	dir := t.TempDir()
	tmpl := `<html>{{.Email}}{{.Stats.Missing}}</html>`
	if err := os.WriteFile(filepath.Join(dir, "dashboard.html"), []byte(tmpl), 0o644); err != nil {
		t.Fatal(err)
	}

	w := serveDashboard(NewDashboardController(dir, nil), "")

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", w.Code)
	}
	body := w.Body.String()
	if strings.Contains(body, "<html>") || strings.Contains(body, "driver@example.com") {
		t.Errorf("partial page leaked: %s", body)
	}
	if !strings.Contains(body, "internal server error") {
		t.Errorf("body = %s", body)
	}
}
