package domain

import "errors"

var (
	ErrNotAuthenticated    = errors.New("not authenticated")
	ErrRemote              = errors.New("remote call failed")
	ErrInvalidDiscountCode = errors.New("invalid discount code")
	ErrEmptyCart           = errors.New("cart is empty")

	ErrCartNotFound      = errors.New("cart not found")
	ErrDiscountNotFound  = errors.New("discount code not found")
	ErrInvalidQuantity   = errors.New("quantity must be at least 1")
	ErrQuantityFloor     = errors.New("quantity cannot go below 1, remove the item instead")
	ErrMalformedResponse = errors.New("malformed response")
)
