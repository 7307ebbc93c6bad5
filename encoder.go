package apkres

import (
	"encoding/xml"

	"github.com/pkg/errors"
)

type ManifestEncoder interface {
	EncodeToken(t xml.Token) error
	Flush() error
}

// Return this error from EncodeToken to tell apkres to finish parsing,
// to be used when you found the value you care about and don't need the rest.
var ErrEndParsing = errors.New("end manifest parsing")
