package http

import (
	"bytes"
	"html/template"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/roadwatch/internal/auth"
	"github.com/mrlokans/roadwatch/internal/logger"
	"github.com/mrlokans/roadwatch/internal/theme"
)

// DashboardStats are the summary figures on the dashboard. They are fixed
// placeholder values until a reporting source exists.
type DashboardStats struct {
	TotalReports       string `json:"total_reports"`
	ActiveAlerts       string `json:"active_alerts"`
	MostCommonAccident string `json:"most_common_accident"`
}

var placeholderStats = DashboardStats{
	TotalReports:       "1,245",
	ActiveAlerts:       "32",
	MostCommonAccident: "Rear-End",
}

// DashboardController renders the protected landing page.
type DashboardController struct {
	templates *template.Template
	theme     func(c *gin.Context) theme.Resolution
}

// NewDashboardController parses dashboard.html from templatesPath. Without
// it the page is served as JSON.
func NewDashboardController(templatesPath string, resolve func(c *gin.Context) theme.Resolution) *DashboardController {
	log := logger.Component("dashboard")

	path := filepath.Join(templatesPath, "dashboard.html")
	tmpl, err := template.ParseFiles(path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("dashboard template not loaded")
		tmpl = nil
	}

	return &DashboardController{templates: tmpl, theme: resolve}
}

// Page must run behind the session resolver.
func (dc *DashboardController) Page(c *gin.Context) {
	current := theme.Light
	if dc.theme != nil {
		current = dc.theme(c).Theme
	}

	data := gin.H{
		"Title":     "Dashboard",
		"Email":     auth.GetEmail(c),
		"Stats":     placeholderStats,
		"Theme":     current,
		"Glyph":     current.Glyph(),
		"CSRFToken": auth.GetCSRFToken(c),
		"CSRFField": auth.CSRFFormField,
	}

	if dc.templates == nil || wantsJSON(c) {
		c.JSON(http.StatusOK, gin.H{
			"email": data["Email"],
			"stats": placeholderStats,
			"theme": current,
			"glyph": current.Glyph(),
		})
		return
	}

	var buf bytes.Buffer
	if err := dc.templates.ExecuteTemplate(&buf, "dashboard.html", data); err != nil {
		respondInternalError(c, err, "render dashboard")
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}
