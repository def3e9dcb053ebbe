package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"backend-navi/internal/apperr"
	"backend-navi/internal/db"
	"backend-navi/internal/events"
	"backend-navi/internal/shared/validate"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

const (
	accessTokenTTL  = 15 * time.Minute
	refreshTokenTTL = 7 * 24 * time.Hour
	verifyTokenTTL  = 24 * time.Hour
	resetTokenTTL   = time.Hour

	revokedPrefix = "auth:revoked:"
	verifyPrefix  = "auth:verify:"
	resetPrefix   = "auth:reset:"
)

var (
	signTokenFn       = (*Service).signToken
	hashPasswordFn    = bcrypt.GenerateFromPassword
	parseWithClaimsFn = jwt.ParseWithClaims

	errNoTokenStore = errors.New("redis not configured")
)

type Service struct {
	secret    []byte
	db        db.Querier
	rdb       *redis.Client
	publisher events.Publisher
}

func NewService(secret string, db db.Querier, rdb *redis.Client, publisher events.Publisher) *Service {
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &Service{
		secret:    []byte(secret),
		db:        db,
		rdb:       rdb,
		publisher: publisher,
	}
}

const userColumns = `id, email, name, phone, avatar, password_hash, email_verified, is_active, last_login, created_at, updated_at`

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Phone, &u.Avatar, &u.PasswordHash, &u.EmailVerified, &u.IsActive, &u.LastLogin, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func (s *Service) Signup(ctx context.Context, req SignupRequest) (User, TokenResponse, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := validate.Struct(req); err != nil {
		return User{}, TokenResponse{}, err
	}
	hash, err := hashPasswordFn([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, TokenResponse{}, fmt.Errorf("hash password: %w", err)
	}

	user := User{
		ID:           uuid.NewString(),
		Email:        req.Email,
		Name:         req.Name,
		PasswordHash: string(hash),
		IsActive:     true,
	}
	row := s.db.QueryRow(ctx, `
		INSERT INTO users (id, email, password_hash, name)
		VALUES ($1,$2,$3,$4)
		RETURNING created_at, updated_at
	`, user.ID, user.Email, user.PasswordHash, user.Name)
	if err := row.Scan(&user.CreatedAt, &user.UpdatedAt); err != nil {
		return User{}, TokenResponse{}, apperr.FromDB(err, "email")
	}

	if err := s.issueOneTimeToken(ctx, verifyPrefix, user.ID, verifyTokenTTL, events.UserVerificationRequested, user.Email); err != nil && !errors.Is(err, errNoTokenStore) {
		return User{}, TokenResponse{}, err
	}

	tokens, err := s.GenerateTokens(ctx, user.ID)
	if err != nil {
		return User{}, TokenResponse{}, err
	}
	return user, tokens, nil
}

func (s *Service) Login(ctx context.Context, req LoginRequest) (User, TokenResponse, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := validate.Struct(req); err != nil {
		return User{}, TokenResponse{}, err
	}

	user, err := scanUser(s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, req.Email))
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, TokenResponse{}, apperr.Unauthorized("invalid credentials")
	}
	if err != nil {
		return User{}, TokenResponse{}, fmt.Errorf("load user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return User{}, TokenResponse{}, apperr.Unauthorized("invalid credentials")
	}
	if !user.IsActive {
		return User{}, TokenResponse{}, apperr.Unauthorized("account disabled")
	}

	now := time.Now()
	if _, err := s.db.Exec(ctx, `UPDATE users SET last_login=$2 WHERE id=$1`, user.ID, now); err != nil {
		return User{}, TokenResponse{}, fmt.Errorf("update last login: %w", err)
	}
	user.LastLogin = &now

	tokens, err := s.GenerateTokens(ctx, user.ID)
	if err != nil {
		return User{}, TokenResponse{}, err
	}
	return user, tokens, nil
}

func (s *Service) Me(ctx context.Context, userID string) (User, error) {
	user, err := scanUser(s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID))
	if err != nil {
		return User{}, apperr.FromDB(err, "user")
	}
	return user, nil
}

func (s *Service) GenerateTokens(ctx context.Context, userID string) (TokenResponse, error) {
	access, err := signTokenFn(s, userID, tokenAccess, accessTokenTTL)
	if err != nil {
		return TokenResponse{}, fmt.Errorf("sign access token: %w", err)
	}

	refresh, err := signTokenFn(s, userID, tokenRefresh, refreshTokenTTL)
	if err != nil {
		return TokenResponse{}, fmt.Errorf("sign refresh token: %w", err)
	}

	if err := s.saveRefreshToken(ctx, refresh, userID, refreshTokenTTL); err != nil {
		return TokenResponse{}, err
	}

	return TokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(accessTokenTTL.Seconds()),
	}, nil
}

// Refresh rotates a refresh token: the presented one is revoked and a new
// pair is issued.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenResponse, error) {
	userID, err := s.ValidateRefreshToken(ctx, refreshToken)
	if err != nil {
		return TokenResponse{}, err
	}
	if _, err := s.db.Exec(ctx, `UPDATE refresh_tokens SET revoked_at=now() WHERE token=$1`, refreshToken); err != nil {
		return TokenResponse{}, fmt.Errorf("revoke refresh token: %w", err)
	}
	return s.GenerateTokens(ctx, userID)
}

func (s *Service) ValidateRefreshToken(ctx context.Context, token string) (string, error) {
	claims, err := s.parseToken(token)
	if err != nil {
		return "", err
	}
	if claims.TokenType != tokenRefresh {
		return "", apperr.Unauthorized("refresh token invalid")
	}

	userID, expiresAt, err := s.lookupRefreshToken(ctx, token)
	if err != nil || userID != claims.UserID || time.Now().After(expiresAt) {
		return "", apperr.Unauthorized("refresh token invalid")
	}
	return claims.UserID, nil
}

// Authenticate validates an access token and checks the revocation list.
func (s *Service) Authenticate(ctx context.Context, token string) (*Claims, error) {
	claims, err := s.parseToken(token)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != tokenAccess {
		return nil, apperr.Unauthorized("token invalid")
	}
	revoked, err := s.isRevoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		return nil, apperr.Unauthorized("token revoked")
	}
	return claims, nil
}

// Logout deny-lists the access token until it expires and revokes the
// refresh token when one is given.
func (s *Service) Logout(ctx context.Context, claims *Claims, refreshToken string) error {
	if s.rdb != nil && claims.ExpiresAt != nil {
		if ttl := time.Until(claims.ExpiresAt.Time); ttl > 0 {
			if err := s.rdb.Set(ctx, revokedPrefix+claims.ID, claims.UserID, ttl).Err(); err != nil {
				return apperr.Integration("token revocation", err)
			}
		}
	}
	if refreshToken == "" {
		return nil
	}
	_, err := s.db.Exec(ctx, `
		UPDATE refresh_tokens SET revoked_at=now()
		WHERE token=$1 AND user_id=$2 AND revoked_at IS NULL
	`, refreshToken, claims.UserID)
	if err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

func (s *Service) VerifyEmail(ctx context.Context, token string) error {
	userID, err := s.consumeOneTimeToken(ctx, verifyPrefix, token)
	if err != nil {
		return err
	}
	tag, err := s.db.Exec(ctx, `UPDATE users SET email_verified=TRUE, updated_at=now() WHERE id=$1`, userID)
	if err != nil {
		return fmt.Errorf("verify email: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("user not found")
	}
	return nil
}

// ForgotPassword issues a reset token when the email exists. Unknown emails
// succeed silently so the endpoint cannot be used to probe accounts.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	var userID string
	err := s.db.QueryRow(ctx, `SELECT id FROM users WHERE email = $1`, email).Scan(&userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("lookup user: %w", err)
	}
	if err := s.issueOneTimeToken(ctx, resetPrefix, userID, resetTokenTTL, events.UserPasswordResetRequested, email); err != nil {
		if errors.Is(err, errNoTokenStore) {
			return apperr.Integration("password reset", err)
		}
		return err
	}
	return nil
}

// ResetPassword rotates the password hash and revokes every refresh token
// of the user in one transaction.
func (s *Service) ResetPassword(ctx context.Context, req ResetPasswordRequest) error {
	if err := validate.Struct(req); err != nil {
		return err
	}
	userID, err := s.consumeOneTimeToken(ctx, resetPrefix, req.Token)
	if err != nil {
		return err
	}
	hash, err := hashPasswordFn([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return db.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `UPDATE users SET password_hash=$2, updated_at=now() WHERE id=$1`, userID, string(hash)); err != nil {
			return fmt.Errorf("update password: %w", err)
		}
		if _, err := tx.Exec(ctx, `UPDATE refresh_tokens SET revoked_at=now() WHERE user_id=$1 AND revoked_at IS NULL`, userID); err != nil {
			return fmt.Errorf("revoke refresh tokens: %w", err)
		}
		return nil
	})
}

func (s *Service) issueOneTimeToken(ctx context.Context, prefix, userID string, ttl time.Duration, eventType, email string) error {
	if s.rdb == nil {
		return errNoTokenStore
	}
	token := uuid.NewString()
	if err := s.rdb.Set(ctx, prefix+token, userID, ttl).Err(); err != nil {
		return apperr.Integration("token store", err)
	}
	events.Emit(ctx, s.publisher, eventType, map[string]any{
		"user_id":    userID,
		"email":      email,
		"token":      token,
		"expires_at": time.Now().Add(ttl).UTC(),
	})
	return nil
}

func (s *Service) consumeOneTimeToken(ctx context.Context, prefix, token string) (string, error) {
	if token == "" {
		return "", apperr.Validation("token is required", apperr.FieldError{Field: "token", Message: "token is required"})
	}
	if s.rdb == nil {
		return "", apperr.Integration("token store", errNoTokenStore)
	}
	userID, err := s.rdb.GetDel(ctx, prefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return "", apperr.Validation("invalid or expired token")
	}
	if err != nil {
		return "", apperr.Integration("token store", err)
	}
	return userID, nil
}

func (s *Service) isRevoked(ctx context.Context, jti string) (bool, error) {
	if s.rdb == nil || jti == "" {
		return false, nil
	}
	n, err := s.rdb.Exists(ctx, revokedPrefix+jti).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Service) signToken(userID, tokenType string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:    userID,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *Service) parseToken(token string) (*Claims, error) {
	parsed, err := parseWithClaimsFn(token, &Claims{}, func(_ *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, apperr.Unauthorized("token invalid")
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.UserID == "" {
		return nil, apperr.Unauthorized("token invalid")
	}
	return claims, nil
}

func (s *Service) saveRefreshToken(ctx context.Context, token, userID string, ttl time.Duration) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO refresh_tokens (id, user_id, token, expires_at)
		VALUES ($1,$2,$3,$4)
	`, uuid.NewString(), userID, token, time.Now().Add(ttl))
	if err != nil {
		return fmt.Errorf("save refresh token: %w", err)
	}
	return nil
}

func (s *Service) lookupRefreshToken(ctx context.Context, token string) (string, time.Time, error) {
	row := s.db.QueryRow(ctx, `
		SELECT user_id, expires_at
		FROM refresh_tokens
		WHERE token = $1 AND revoked_at IS NULL
	`, token)
	var userID string
	var expiresAt time.Time
	if err := row.Scan(&userID, &expiresAt); err != nil {
		return "", time.Time{}, err
	}
	return userID, expiresAt, nil
}
