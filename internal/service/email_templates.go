package service

import (
	"fmt"
	"time"
)

const (
	otpMailSubject             = "Email Verification - OTP"
	passwordUpdatedMailSubject = "Password Updated Successfully"
)

func otpMailBody(code string, expiry time.Duration) string {
	return fmt.Sprintf("Your OTP for email verification is: %s. Valid for %d minutes.", code, int(expiry/time.Minute))
}

func passwordUpdatedMailBody(email, name string) string {
	return fmt.Sprintf("Hey %s,\n\nThe password for your account %s was updated successfully.\n"+
		"If you did not make this change, contact support immediately.", name, email)
}
