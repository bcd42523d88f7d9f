package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/roadwatch/internal/validation"
)

// maxRulesBody caps the rules request; passwords past the policy maximum
// are reported, not scored.
const maxRulesBody = 8 << 10

// PasswordController serves the live password requirements check used by
// the registration form.
type PasswordController struct{}

func NewPasswordController() *PasswordController {
	return &PasswordController{}
}

type passwordRulesRequest struct {
	Password string `json:"password" form:"password"`
	Email    string `json:"email" form:"email"`
}

type passwordRulesResponse struct {
	Rules         []validation.RuleStatus `json:"rules"`
	Strength      int                     `json:"strength"`
	StrengthLabel string                  `json:"strength_label"`
	ValidEmail    bool                    `json:"valid_email"`
}

// Rules reports the pass state of each registration rule. The password is
// evaluated and dropped; nothing is logged or stored.
func (pc *PasswordController) Rules(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxRulesBody)

	var req passwordRulesRequest
	if err := c.ShouldBind(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	score := validation.Strength(req.Password, req.Email)
	c.JSON(http.StatusOK, passwordRulesResponse{
		Rules:         validation.RuleStatuses(req.Password, req.Email),
		Strength:      score,
		StrengthLabel: validation.StrengthLabel(score),
		ValidEmail:    validation.ValidateEmail(req.Email),
	})
}
