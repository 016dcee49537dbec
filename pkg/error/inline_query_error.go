package error

import "net/http"

// InlineQueryError covers transport and decoding failures while talking to
// the upstream bot provider. The caller gets no retry from this layer.
type InlineQueryError string

func (err InlineQueryError) Error() string {
	return string(err)
}

func (err InlineQueryError) ErrCode() string {
	return "INLINE_QUERY_FAILED"
}

func (err InlineQueryError) StatusCode() int {
	return http.StatusBadGateway
}
