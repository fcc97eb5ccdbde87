package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"campusmarket/internal/crypto"
	"campusmarket/internal/model"
)

// The admin security question is a single global pair, not per-account state.
// Step 2 compares answers case-insensitively after trimming whitespace.
const (
	securityQuestion = "What is your favourite movie?"
	securityAnswer   = "Baahubali"
)

// UserStore is the persistence boundary of the auth subsystem: whole-record
// reads keyed by unique identifiers plus the two targeted writes the token
// lifecycle needs. Missing rows are reported as pgx.ErrNoRows.
type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (model.User, error)
	GetUserByUsername(ctx context.Context, username string) (model.User, error)
	GetUserByID(ctx context.Context, id int64) (model.User, error)
	UpdateUserTokens(ctx context.Context, id int64, access, refresh *string, updatedBy string) error
	UpdateUserPassword(ctx context.Context, id int64, hashedPassword, updatedBy string) error
}

// TokenUserInfo is the user object embedded in token responses.
type TokenUserInfo struct {
	UserID     int64      `json:"user_id"`
	Username   string     `json:"username"`
	Email      string     `json:"email"`
	FullName   string     `json:"full_name"`
	Role       model.Role `json:"role"`
	IsVerified bool       `json:"is_verified"`
}

// LoginResult is the outcome of a credential login: either a full token pair
// or, for admins, a challenge that must be completed first. Callers are
// forced to handle both variants.
type LoginResult interface {
	loginResult()
}

// Token is the full credential bundle issued on successful authentication.
type Token struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	TokenType    string        `json:"token_type"`
	ExpiresIn    int64         `json:"expires_in"`
	User         TokenUserInfo `json:"user"`
}

func (Token) loginResult() {}

// Challenge is issued when an admin passes the credential step: the step
// token is only good for answering the security question within its ttl.
type Challenge struct {
	StepToken        string `json:"step_token"`
	SecurityQuestion string `json:"security_question"`
}

func (Challenge) loginResult() {}

// Service orchestrates credential verification, token issuance and the
// request-time authorization guard.
type Service struct {
	store UserStore
	codec *Codec

	accessTTL  time.Duration
	refreshTTL time.Duration
	stepTTL    time.Duration
}

func NewService(store UserStore, codec *Codec, accessTTL, refreshTTL, stepTTL time.Duration) *Service {
	return &Service{
		store:      store,
		codec:      codec,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		stepTTL:    stepTTL,
	}
}

// SecurityQuestion returns the challenge question shown after step 1.
func (s *Service) SecurityQuestion() string {
	return securityQuestion
}

// lookupByIdentifier resolves an email or username to a user. Matching is
// case-sensitive and exact.
func (s *Service) lookupByIdentifier(ctx context.Context, identifier string) (model.User, error) {
	if strings.Contains(identifier, "@") {
		return s.store.GetUserByEmail(ctx, identifier)
	}
	return s.store.GetUserByUsername(ctx, identifier)
}

func claimsForUser(user model.User) Claims {
	return Claims{
		UserID:   user.ID,
		Username: user.Username,
		Email:    user.Email,
		Role:     user.Role,
		FullName: user.FullName,
	}
}

// issueTokens creates an access+refresh pair, persists it on the user record
// (overwriting the previous pair, which revokes the prior session) and builds
// the response bundle.
func (s *Service) issueTokens(ctx context.Context, user model.User) (Token, error) {
	accessToken, err := s.codec.Encode(claimsForUser(user), KindAccess, s.accessTTL)
	if err != nil {
		return Token{}, err
	}
	refreshToken, err := s.codec.Encode(Claims{UserID: user.ID}, KindRefresh, s.refreshTTL)
	if err != nil {
		return Token{}, err
	}

	if err := s.store.UpdateUserTokens(ctx, user.ID, &accessToken, &refreshToken, user.Username); err != nil {
		return Token{}, err
	}

	return Token{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "bearer",
		ExpiresIn:    int64(s.accessTTL.Seconds()),
		User: TokenUserInfo{
			UserID:     user.ID,
			Username:   user.Username,
			Email:      user.Email,
			FullName:   user.FullName,
			Role:       user.Role,
			IsVerified: user.IsVerified,
		},
	}, nil
}

// Login verifies credentials and issues tokens. Admin accounts never get a
// full pair from a single factor: they receive a Challenge instead.
func (s *Service) Login(ctx context.Context, identifier, password string) (LoginResult, error) {
	user, err := s.lookupByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !crypto.VerifyPassword(password, user.HashedPassword) {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrAccountDeactivated
	}

	if user.Role == model.RoleAdmin {
		return s.buildChallenge(user)
	}

	return s.issueTokens(ctx, user)
}

// ChallengeStart is step 1 of the admin login. Unlike Login it reports a
// missing account distinctly from a non-admin one.
func (s *Service) ChallengeStart(ctx context.Context, identifier, password string) (Challenge, error) {
	user, err := s.lookupByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Challenge{}, ErrNotFound
		}
		return Challenge{}, err
	}
	if user.Role != model.RoleAdmin {
		return Challenge{}, ErrForbidden
	}
	if !crypto.VerifyPassword(password, user.HashedPassword) {
		return Challenge{}, ErrInvalidCredentials
	}
	if !user.IsActive {
		return Challenge{}, ErrAccountDeactivated
	}
	return s.buildChallenge(user)
}

func (s *Service) buildChallenge(user model.User) (Challenge, error) {
	claims := claimsForUser(user)
	claims.Step = StepSecurityQuestion
	stepToken, err := s.codec.Encode(claims, KindAccess, s.stepTTL)
	if err != nil {
		return Challenge{}, err
	}
	return Challenge{StepToken: stepToken, SecurityQuestion: securityQuestion}, nil
}

// ChallengeVerify is step 2 of the admin login: it consumes the step token
// and the security answer, re-validates the account and issues full tokens.
func (s *Service) ChallengeVerify(ctx context.Context, stepToken, answer string) (Token, error) {
	claims, err := s.codec.Decode(stepToken, KindAccess)
	if err != nil {
		return Token{}, ErrInvalidStepToken
	}
	// A token without the step marker is an ordinary access token and must
	// not satisfy the challenge.
	if claims.Step != StepSecurityQuestion {
		return Token{}, ErrInvalidStepToken
	}
	if !strings.EqualFold(strings.TrimSpace(answer), securityAnswer) {
		return Token{}, ErrWrongAnswer
	}

	user, err := s.store.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Token{}, ErrInvalidStepToken
		}
		return Token{}, err
	}
	if user.Role != model.RoleAdmin {
		return Token{}, ErrForbidden
	}
	if !user.IsActive {
		return Token{}, ErrAccountDeactivated
	}

	return s.issueTokens(ctx, user)
}

// Refresh exchanges a refresh token for a new pair. The new pair overwrites
// the stored one, so refresh tokens are single-use by overwrite rather than
// by an explicit revocation list.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Token, error) {
	claims, err := s.codec.Decode(refreshToken, KindRefresh)
	if err != nil {
		return Token{}, ErrInvalidRefreshToken
	}

	user, err := s.store.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Token{}, ErrInactiveUser
		}
		return Token{}, err
	}
	if !user.IsActive {
		return Token{}, ErrInactiveUser
	}

	return s.issueTokens(ctx, user)
}

// Authenticate is the request-time guard: decode the bearer token, load the
// user, enforce the stored-token equality check and the active flag.
func (s *Service) Authenticate(ctx context.Context, bearerToken string) (model.User, error) {
	claims, err := s.codec.Decode(bearerToken, KindAccess)
	if err != nil {
		return model.User{}, ErrInvalidBearerToken
	}

	user, err := s.store.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.User{}, ErrUserNotFound
		}
		return model.User{}, err
	}

	// The bearer token must textually equal the stored one. A cleared pair
	// (logout, password change) therefore revokes every outstanding token
	// even though the JWTs stay cryptographically valid until expiry.
	if user.AccessToken == nil || *user.AccessToken != bearerToken {
		return model.User{}, ErrTokenRevoked
	}
	if !user.IsActive {
		return model.User{}, ErrAccountDeactivated
	}

	return user, nil
}

// RequireRole enforces a role requirement on an authenticated user.
func (s *Service) RequireRole(user model.User, role model.Role) error {
	if user.Role != role {
		return ErrForbidden
	}
	return nil
}

// ChangePassword verifies the current password, stores the new hash and
// clears both tokens so every session must re-authenticate.
func (s *Service) ChangePassword(ctx context.Context, user model.User, currentPassword, newPassword string) error {
	if !crypto.VerifyPassword(currentPassword, user.HashedPassword) {
		return ErrWrongCurrentPassword
	}
	hash, err := crypto.HashPassword(newPassword)
	if err != nil {
		return err
	}
	return s.store.UpdateUserPassword(ctx, user.ID, hash, user.Username)
}

// Logout clears the stored token pair. Clearing an already-empty pair is not
// an error.
func (s *Service) Logout(ctx context.Context, user model.User) error {
	return s.store.UpdateUserTokens(ctx, user.ID, nil, nil, user.Username)
}
