package cloudfiles

import "github.com/bitrise-io/go-cloudfiles/cloudfiles/apierror"

// Error kinds returned by the client, for use with errors.Is.
var (
	ErrInvalidArgument = apierror.ErrInvalidArgument
	ErrNotFound        = apierror.ErrNotFound
	ErrUnauthorized    = apierror.ErrUnauthorized
	ErrBadRequest      = apierror.ErrBadRequest
	ErrServerError     = apierror.ErrServerError
	ErrTimeout         = apierror.ErrTimeout
	ErrHTTP            = apierror.ErrHTTP
)
