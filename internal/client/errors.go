package client

import (
	"errors"
	"fmt"
	"net/http"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeSendFailure    = "SEND_FAILURE"
	TextCodeConfiguration  = "CONFIGURATION_ERROR"
	TextCodeInvalidMessage = "INVALID_MESSAGE"
)

// SendFailure is a non-2xx answer from the messages endpoint. RawBody
// carries the platform error payload verbatim (error codes such as 131030
// only appear there).
type SendFailure struct {
	HTTPStatus int
	RawBody    string
}

func (e *SendFailure) Error() string {
	return fmt.Sprintf("graph api: send failed (%d): %s", e.HTTPStatus, e.RawBody)
}

func (e *SendFailure) ToServiceError() *goerrors.Error {
	return goerrors.New(e.Error(), goerrors.CategoryExternal).
		WithCode(e.HTTPStatus).
		WithTextCode(TextCodeSendFailure).
		WithMetadata(map[string]any{
			"http_status": e.HTTPStatus,
			"body":        e.RawBody,
		})
}

func AsSendFailure(err error) (*SendFailure, bool) {
	var sf *SendFailure
	if errors.As(err, &sf) {
		return sf, true
	}
	return nil, false
}

func configurationError(missing string) error {
	return goerrors.New("graph api: missing "+missing, goerrors.CategoryValidation).
		WithCode(http.StatusInternalServerError).
		WithTextCode(TextCodeConfiguration).
		WithMetadata(map[string]any{"missing": missing})
}

// IsConfigurationError reports whether err comes from a missing credential.
func IsConfigurationError(err error) bool {
	var rich *goerrors.Error
	return goerrors.As(err, &rich) && rich.TextCode == TextCodeConfiguration
}

func invalidMessage(message string) error {
	return goerrors.New("graph api: "+message, goerrors.CategoryBadInput).
		WithCode(http.StatusBadRequest).
		WithTextCode(TextCodeInvalidMessage)
}
