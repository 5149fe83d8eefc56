package library

import "errors"

var (
	ErrBookExists    = errors.New("book already exists")
	ErrBookNotFound  = errors.New("book not found")
	ErrUnknownFormat = errors.New("unknown book format")
	ErrEmptyFile     = errors.New("book file is empty")
	ErrCoverNotFound = errors.New("book has no cover")
)
