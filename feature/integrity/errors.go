package integrity

import "errors"

var errNoDevice = errors.New("no device connected")
