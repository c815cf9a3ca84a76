package model

type AccountType string

const (
	AccountStudent    AccountType = "Student"
	AccountInstructor AccountType = "Instructor"
	AccountAdmin      AccountType = "Admin"
)

func (t AccountType) Valid() bool {
	switch t {
	case AccountStudent, AccountInstructor, AccountAdmin:
		return true
	}
	return false
}

// NeedsApproval reports whether accounts of this type start unapproved.
func (t AccountType) NeedsApproval() bool {
	return t == AccountInstructor
}

// User is an account. PasswordHash never leaves the process in JSON.
type User struct {
	ID            string      `json:"id"`
	FirstName     string      `json:"firstName"`
	LastName      string      `json:"lastName"`
	Email         string      `json:"email"`
	PasswordHash  string      `json:"-"`
	AccountType   AccountType `json:"accountType"`
	Approved      bool        `json:"approved"`
	ProfileID     string      `json:"additionalDetails"`
	ContactNumber string      `json:"contactNumber,omitempty"`
	Image         string      `json:"image"`
	Ctime         int64       `json:"ctime"`
	Mtime         int64       `json:"mtime"`
}

// Public returns a copy without the password digest.
func (u *User) Public() *User {
	if u == nil {
		return nil
	}
	out := *u
	out.PasswordHash = ""
	return &out
}
