package users

import "time"

// User is an account row. The email doubles as the public user id; the
// numeric-looking ID is internal only. Password and security answer are
// stored as bcrypt hashes, never as plaintext.
type User struct {
	ID                 string
	Email              string
	PasswordHash       []byte
	SecurityQuestion   string
	SecurityAnswerHash []byte
	CreatedAt          time.Time
}
