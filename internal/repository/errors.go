package repository

import "errors"

var (
	// ErrUnsupportedDriver indicates a database driver this package cannot open
	ErrUnsupportedDriver = errors.New("unsupported database driver")

	// ErrEmptyName indicates an attempt to store a blank name
	ErrEmptyName = errors.New("store name is empty")
)
