package gotrue

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/mrlokans/roadwatch/internal/backend"
)

// errorBody covers the error shapes GoTrue has used across versions.
type errorBody struct {
	Msg              string `json:"msg"`
	Message          string `json:"message"`
	ErrorDescription string `json:"error_description"`
	Error            string `json:"error"`
	ErrorCode        string `json:"error_code"`
	Code             any    `json:"code"`
}

func parseError(status int, data []byte) error {
	e := &backend.Error{Status: status}

	var body errorBody
	if err := json.Unmarshal(data, &body); err != nil {
		e.Message = strings.TrimSpace(string(data))
		if e.Message == "" {
			e.Message = http.StatusText(status)
		}
		return e
	}

	for _, m := range []string{body.Msg, body.Message, body.ErrorDescription, body.Error} {
		if m != "" {
			e.Message = m
			break
		}
	}
	if e.Message == "" {
		e.Message = http.StatusText(status)
	}

	e.Code = body.ErrorCode
	if e.Code == "" {
		if s, ok := body.Code.(string); ok {
			e.Code = s
		} else if body.Error != "" && body.Error != e.Message {
			e.Code = body.Error
		}
	}
	return e
}
