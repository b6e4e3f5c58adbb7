package wscutils

import (
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Response is the uniform envelope returned by every endpoint of the batch
// control surface. Exactly one of Data and Error is set.
type Response struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
}

// ErrorInfo carries a short machine-readable code and a human-readable
// message. Internal stack traces are logged, never exposed here.
type ErrorInfo struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Field   *string  `json:"field,omitempty"`
	Vals    []string `json:"vals,omitempty"`
}

// errorMessages maps error codes to their default human-readable messages.
// Deployments may override the table with LoadErrorMessages.
var errorMessages = map[string]string{}

// LoadErrorMessages loads a code -> message table from YAML, replacing the
// built-in defaults for the codes it names.
func LoadErrorMessages(r io.Reader) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	overrides := map[string]string{}
	if err := yaml.Unmarshal(b, &overrides); err != nil {
		return err
	}
	for code, msg := range overrides {
		errorMessages[code] = msg
	}
	return nil
}

// BuildError creates an ErrorInfo for the given code. When message is empty
// the registered default message for the code is used.
func BuildError(code, message string) *ErrorInfo {
	if message == "" {
		if m, ok := errorMessages[code]; ok {
			message = m
		} else {
			log.Printf("wscutils: no message registered for error code %q", code)
			message = code
		}
	}
	return &ErrorInfo{Code: code, Message: message}
}

// NewSuccessResponse wraps data in the standard success envelope.
func NewSuccessResponse(data any) *Response {
	return &Response{Success: true, Data: data}
}

// NewErrorResponse builds the standard error envelope for the given code.
func NewErrorResponse(code, message string) *Response {
	return &Response{Success: false, Error: BuildError(code, message)}
}

// SendSuccessResponse sends a 200 with the success envelope.
func SendSuccessResponse(c *gin.Context, data any) {
	c.JSON(http.StatusOK, NewSuccessResponse(data))
}

// SendErrorResponse sends the error envelope with the given HTTP status.
func SendErrorResponse(c *gin.Context, httpStatus int, code, message string) {
	c.JSON(httpStatus, NewErrorResponse(code, message))
}

// BindJSON binds the request body into data and, on malformed JSON, replies
// with the standard invalid_json envelope. The caller must return without
// writing a second response when an error is returned.
func BindJSON(c *gin.Context, data any) error {
	if err := c.ShouldBindJSON(data); err != nil {
		SendErrorResponse(c, http.StatusBadRequest, ErrcodeInvalidJSON, "")
		return err
	}
	return nil
}

// WscValidate validates data according to its struct tags and returns one
// ErrorInfo per violation. An empty slice means the data is valid.
func WscValidate[T any](data T) []ErrorInfo {
	var out []ErrorInfo

	validate := validator.New()
	err := validate.Struct(data)
	if err == nil {
		return out
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, ve := range verrs {
			field := ve.Field()
			out = append(out, ErrorInfo{
				Code:    ErrcodeValidation,
				Message: "validation failed on tag " + ve.Tag(),
				Field:   &field,
				Vals:    []string{ve.Param()},
			})
		}
	}
	return out
}

// SendValidationErrors replies 400 with the first validation error in the
// envelope and the rest in Vals, keeping the envelope single-error shaped.
func SendValidationErrors(c *gin.Context, errs []ErrorInfo) {
	if len(errs) == 0 {
		return
	}
	first := errs[0]
	c.JSON(http.StatusBadRequest, &Response{Success: false, Error: &first})
}
