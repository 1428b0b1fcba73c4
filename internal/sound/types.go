package sound

import (
	"regexp"
	"time"
)

// Sound is the metadata record of a stored sound payload. The audio bytes
// themselves live on disk under the configured sounds directory; the record
// carries only the catalogue entry and the file path.
type Sound struct {
	// ID is the immutable identifier (snd-xxxxxxxx).
	ID string `json:"id"`

	// Name is the human label shown when picking a sound for a schedule.
	Name string `json:"name"`

	// ContentType is the MIME type reported at upload, served back verbatim
	// when a device fetches the payload.
	ContentType string `json:"content_type"`

	// Path is the on-disk location of the payload, relative handling is the
	// store's concern. Not serialised.
	Path string `json:"-"`

	// SizeBytes is the payload size recorded at upload.
	SizeBytes int64 `json:"size_bytes"`

	CreatedAt time.Time `json:"created_at"`
}

var namePattern = regexp.MustCompile(`^[a-zA-Z0-9 ._-]{1,128}$`)

// IsValidName reports whether a sound name is acceptable.
func IsValidName(name string) bool {
	return namePattern.MatchString(name)
}
