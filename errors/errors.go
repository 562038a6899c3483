package errors

import "fmt"

var (
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrSessionExpired     = fmt.Errorf("session expired")
	ErrOrganizationFetch  = fmt.Errorf("organization fetch failed")
	ErrAccountExists      = fmt.Errorf("an account with this email already exists")
	ErrTokenInvalid       = fmt.Errorf("token is malformed or unreadable")
	ErrVerificationFailed = fmt.Errorf("email verification failed")
	ErrInvitationInvalid  = fmt.Errorf("invitation is invalid or expired")
	ErrInvalidPassword    = fmt.Errorf("password does not meet complexity requirements")
	ErrEmptyChatTurn      = fmt.Errorf("chat turn needs a query or a file")
)
