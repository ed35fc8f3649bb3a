package httpserver

const (
	ErrInvalidJSON       = "invalid json"
	ErrMissingID         = "missing id"
	ErrDependency        = "dependency error"
	ErrNotFound          = "not found"
	ErrInvalidSignature  = "invalid signature"
	ErrForbidden         = "forbidden"
	ErrServiceNotConfigd = "email service not configured"
)
