package acudp

import (
	"github.com/pkg/errors"
)

// ErrMalformedRecord is returned when a decoder is handed a buffer that is not
// exactly the size of the record it decodes.
var ErrMalformedRecord = errors.New("acudp: malformed record")

func checkRecordSize(record string, b []byte, size int) error {
	if len(b) != size {
		return errors.Wrapf(ErrMalformedRecord, "%s: got %d bytes, want %d", record, len(b), size)
	}

	return nil
}
