package definitions

import "errors"

var ErrFormat = errors.New("malformed record data")
