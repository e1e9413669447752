package retouch

import (
	"context"
	"errors"
)

// Request carries an image plus a natural-language adjustment instruction.
type Request struct {
	ImageData   []byte
	MIMEType    string
	Instruction string
}

// Response is the adjusted image.
type Response struct {
	ImageData []byte
	MIMEType  string
}

// Client interface for generative image adjustment providers.
type Client interface {
	Name() string
	Adjust(ctx context.Context, req Request) (Response, error)
}

// The service is untrusted: every response shape gets its own failure so the
// caller can render a distinct message.
var (
	ErrMissingCredential = errors.New("missing_credential")
	ErrInvalidCredential = errors.New("invalid_credential")
	ErrSafetyBlocked     = errors.New("safety_blocked")
	ErrNoImage           = errors.New("no_image_in_response")
	ErrRateLimited       = errors.New("rate_limited")
)

func IsMissingCredential(err error) bool { return errors.Is(err, ErrMissingCredential) }
func IsInvalidCredential(err error) bool { return errors.Is(err, ErrInvalidCredential) }
func IsSafetyBlocked(err error) bool     { return errors.Is(err, ErrSafetyBlocked) }
func IsNoImage(err error) bool           { return errors.Is(err, ErrNoImage) }
func IsRateLimited(err error) bool       { return errors.Is(err, ErrRateLimited) }
