package search

import "go.trai.ch/zerr"

var (
	ErrEmptySchema   = zerr.New("schema has no text fields")
	ErrInvalidSchema = zerr.New("composite key needs at least two named fields")
	ErrUnknownField  = zerr.New("unknown filter field")
	ErrInvalidFilter = zerr.New("invalid filter")
)
