package directory

import "pro-chat/internal/identity"

// Account is a participant as the surrounding platform stores it. The chat
// core only ever needs the display name and email; credentials stay here.
type Account struct {
	ID    int            `json:"id"`
	Class identity.Class `json:"class"`
	Name  string         `json:"name"`
	Email string         `json:"email"`

	Password string `json:"-"`
}

type RegisterRequest struct {
	Class    identity.Class `json:"class"`
	Name     string         `json:"name"`
	Email    string         `json:"email"`
	Password string         `json:"password"`
}

type LoginRequest struct {
	Class    identity.Class `json:"class"`
	Email    string         `json:"email"`
	Password string         `json:"password"`
}

type LoginResponse struct {
	AccessToken string         `json:"access_token"`
	ID          int            `json:"id"`
	Class       identity.Class `json:"class"`
	Name        string         `json:"name"`
}
