package model

// OTP is a registration passcode. CodeHash is the hex sha256 of the code;
// Ctime is unix milliseconds.
type OTP struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	CodeHash string `json:"-"`
	Ctime    int64  `json:"ctime"`
}
