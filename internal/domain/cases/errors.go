package cases

import "errors"

// ErrUnsupportedFormat indicates the uploaded file type cannot be parsed (user must fix the file).
var ErrUnsupportedFormat = errors.New("unsupported import file format")

// ErrNoValidRecords indicates the file parsed but zero rows had a usable fault description.
var ErrNoValidRecords = errors.New("no valid case records in import file")
