package auth

// AuthError is the authentication/authorization failure taxonomy. Codes are
// stable API surface; messages shown to clients stay generic so failures do
// not reveal whether an account exists.
type AuthError struct {
	Code    string
	Message string
}

func (e *AuthError) Error() string {
	return e.Code
}

var (
	ErrInvalidCredentials = &AuthError{Code: "invalid_credentials", Message: "incorrect email/username or password"}
	ErrAccountDeactivated = &AuthError{Code: "account_deactivated", Message: "account is deactivated"}

	ErrInvalidBearerToken  = &AuthError{Code: "invalid_token", Message: "could not validate credentials"}
	ErrUserNotFound        = &AuthError{Code: "user_not_found", Message: "user not found"}
	ErrTokenRevoked        = &AuthError{Code: "token_revoked", Message: "token has been revoked or is invalid"}
	ErrInvalidRefreshToken = &AuthError{Code: "invalid_refresh_token", Message: "invalid refresh token"}
	ErrInactiveUser        = &AuthError{Code: "inactive_or_missing_user", Message: "user not found or inactive"}

	ErrNotFound         = &AuthError{Code: "not_found", Message: "user not found"}
	ErrForbidden        = &AuthError{Code: "forbidden", Message: "admin access required"}
	ErrInvalidStepToken = &AuthError{Code: "invalid_step_token", Message: "invalid or expired step token"}
	ErrWrongAnswer      = &AuthError{Code: "wrong_answer", Message: "incorrect security answer"}

	ErrWrongCurrentPassword = &AuthError{Code: "wrong_current_password", Message: "current password is incorrect"}
)
