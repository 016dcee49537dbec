package error

// GenericError is implemented by all typed errors in this package so the
// HTTP layer can map them to a status code and a stable error code.
type GenericError interface {
	error
	ErrCode() string
	StatusCode() int
}
