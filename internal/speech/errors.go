package speech

import (
	"errors"

	"github.com/nikhilbhutani/atheer/internal/retry"
	"github.com/nikhilbhutani/atheer/internal/tts"
)

type ErrorKind string

const (
	KindNone         ErrorKind = ""
	KindValidation   ErrorKind = "validation"
	KindQuota        ErrorKind = "quota"
	KindUpstream     ErrorKind = "upstream"
	KindUnclassified ErrorKind = "unclassified"
)

// Kind classifies an error returned by Generate.
func Kind(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrEmptyText), errors.Is(err, ErrUnknownVoice), errors.Is(err, ErrInvalidRate):
		return KindValidation
	case retry.IsQuotaError(err):
		return KindQuota
	case errors.Is(err, ErrNoAudio):
		return KindUpstream
	}
	var apiErr *tts.APIError
	if errors.As(err, &apiErr) {
		return KindUpstream
	}
	return KindUnclassified
}
