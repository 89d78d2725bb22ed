// Package response holds the JSON envelopes of the dashboard API.
package response

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/victoryforphil/cursed-next-odm/internal/core/util"
)

// ErrorBody is the flat error envelope the dashboard frontend expects
// from the extraction endpoints.
type ErrorBody struct {
	Error string `json:"error"`
}

// Availability answers an info probe: whether the artifact exists in
// the job's result archive and under which name.
type Availability struct {
	Available     bool   `json:"available"`
	Format        string `json:"format,omitempty"`
	Filename      string `json:"filename,omitempty"`
	Path          string `json:"path,omitempty"`
	Size          uint64 `json:"size,omitempty"`
	SizeFormatted string `json:"sizeFormatted,omitempty"`
	Cached        bool   `json:"cached"`
	Error         string `json:"error,omitempty"`
}

// Error reports an extraction failure. Everything that goes wrong
// server-side is a 500 with the reason in the body.
func Error(c echo.Context, err error) error {
	return c.JSON(http.StatusInternalServerError, ErrorBody{Error: err.Error()})
}

// Unavailable answers an info probe that found nothing. Probes always
// succeed at the HTTP level; absence is data, not an error.
func Unavailable(c echo.Context, err error) error {
	return c.JSON(http.StatusOK, Availability{Available: false, Error: err.Error()})
}

// Available answers an info probe that located the artifact.
func Available(c echo.Context, format, filename, path string, size uint64, cached bool) error {
	return c.JSON(http.StatusOK, Availability{
		Available:     true,
		Format:        format,
		Filename:      filename,
		Path:          path,
		Size:          size,
		SizeFormatted: util.FormatBytes(size),
		Cached:        cached,
	})
}
