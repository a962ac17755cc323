package services

import (
	"encoding/json"
	"strings"
)

const errLoggerKey = "err"

// LLMParameters holds the generation settings sent with every request. Nil pointers are left to the
// provider's defaults.
type LLMParameters struct {
	MaxTokens   int
	Temperature *float32
	TopP        *float32
	Stop        []string
}

type apiErrorBody struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// apiErrorMessage extracts error.message from a failure response body, or returns "" if the body has no
// such field.
func apiErrorMessage(body []byte) string {
	var res apiErrorBody
	if err := json.Unmarshal(body, &res); err != nil {
		return ""
	}
	return strings.TrimSpace(res.Error.Message)
}
