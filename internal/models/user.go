package models

// UserStatus is the presence state reported by the server.
type UserStatus string

const (
	StatusOnline  UserStatus = "online"
	StatusAway    UserStatus = "away"
	StatusBusy    UserStatus = "busy"
	StatusOffline UserStatus = "offline"
)

// User is a member of the server roster.
type User struct {
	ID       string     `json:"id"`
	Username string     `json:"username"`
	Avatar   string     `json:"avatar"`
	Status   UserStatus `json:"status"`
}

// Identity is the locally chosen login identity announced with user_join.
type Identity struct {
	Username string `json:"username" db:"username"`
	Avatar   string `json:"avatar" db:"avatar"`
}
