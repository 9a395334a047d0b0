package service

import "errors"

// ErrInvalidRequest covers malformed input and checkouts that do not match the cart.
var ErrInvalidRequest = errors.New("invalid request")
