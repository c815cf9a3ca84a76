package model

type Profile struct {
	ID            string  `json:"id"`
	Gender        *string `json:"gender"`
	DateOfBirth   *string `json:"dateOfBirth"`
	About         *string `json:"about"`
	ContactNumber *string `json:"contactNumber"`
	Ctime         int64   `json:"ctime"`
	Mtime         int64   `json:"mtime"`
}
