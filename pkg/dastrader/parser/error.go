package parser

import "errors"

// ErrMalformedLine marks a single line that could not be decoded. Block
// parsers log it and keep going; it never aborts a batch.
var ErrMalformedLine = errors.New("malformed line")
