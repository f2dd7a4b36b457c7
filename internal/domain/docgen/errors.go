package docgen

import "errors"

var (
	ErrTemplateNotFound     = errors.New("letter template not found")
	ErrMalformedPlaceholder = errors.New("malformed placeholder")
)
