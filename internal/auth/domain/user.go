package domain

import "time"

// User is an account that can log in. The core never mutates it; accounts
// are created by the admin CLI.
type User struct {
	ID           int64
	Login        string
	PasswordHash string // argon2id PHC string
	CreatedAt    time.Time
}
