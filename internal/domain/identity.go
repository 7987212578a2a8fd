package domain

// Identity is the authenticated user context that owns a cart.
type Identity struct {
	UserID string
	Token  string
}

func (i Identity) Authenticated() bool {
	return i.UserID != ""
}
