package bridge

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	apperrors "licensebridge/internal/errors"
)

var validate = validator.New()

// Request is one call on a channel
type Request struct {
	ID      string          `json:"id" validate:"required,uuid4"`
	Channel string          `json:"channel" validate:"required,max=128"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Response answers the request with the same ID
type Response struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *RemoteError    `json:"error,omitempty"`
}

// RemoteError is a failure reported by the other end of the bridge
type RemoteError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the local sentinel for the code, so errors.Is works across the wire
func (e *RemoteError) Unwrap() error {
	return apperrors.FromCode(e.Code)
}

// NewRequest builds a request with a fresh ID. A nil args sends no payload.
func NewRequest(channel string, args interface{}) (Request, error) {
	req := Request{ID: uuid.New().String(), Channel: channel}
	if args != nil {
		raw, err := json.Marshal(args)
		if err != nil {
			return Request{}, fmt.Errorf("encode %s payload: %w", channel, err)
		}
		req.Payload = raw
	}
	return req, nil
}

// Validate checks the envelope fields
func (r Request) Validate() error {
	return validate.Struct(r)
}

// errorResponse converts err into a response for id
func errorResponse(id string, err error) Response {
	return Response{
		ID: id,
		Error: &RemoteError{
			Code:    apperrors.Code(err),
			Message: err.Error(),
		},
	}
}

// decode unpacks the response into out, returning the remote error if there is one
func (r Response) decode(out interface{}) error {
	if r.Error != nil {
		return r.Error
	}
	if out == nil || len(r.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Result, out); err != nil {
		return fmt.Errorf("decode result: %w", err)
	}
	return nil
}
