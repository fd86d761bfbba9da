package epub

import "errors"

var (
	ErrNoRootfile   = errors.New("no rootfile found in epub")
	ErrPageNotFound = errors.New("page not found in index")
)
