package config

import "errors"

// ErrConfiguration marks caller or deployment mistakes such as an unknown plan or a
// malformed tenant id. Wrap it with fmt.Errorf("%w: ...") and test with errors.Is.
var ErrConfiguration = errors.New("configuration_error")
