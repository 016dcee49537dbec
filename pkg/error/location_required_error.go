package error

import "net/http"

// LocationRequiredError signals that the bot demands a geolocation the
// request did not carry. Surfaced distinctly so the caller can prompt for
// location and retry at a higher level.
type LocationRequiredError string

func (err LocationRequiredError) Error() string {
	return string(err)
}

func (err LocationRequiredError) ErrCode() string {
	return "LOCATION_REQUIRED"
}

func (err LocationRequiredError) StatusCode() int {
	return http.StatusPreconditionRequired
}
