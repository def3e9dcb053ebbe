package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"backend-navi/internal/apperr"
	"backend-navi/internal/events"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

var pgErr = errors.New("db error")

var pgconnError = pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"}

var userCols = []string{"id", "email", "name", "phone", "avatar", "password_hash", "email_verified", "is_active", "last_login", "created_at", "updated_at"}

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	t.Cleanup(mock.Close)
	return mock
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

type capturePublisher struct {
	events []events.Event
}

func (p *capturePublisher) Publish(_ context.Context, ev events.Event) error {
	p.events = append(p.events, ev)
	return nil
}

func expectRefreshInsert(mock pgxmock.PgxPoolIface, userID any) {
	mock.ExpectExec(`INSERT INTO refresh_tokens`).
		WithArgs(pgxmock.AnyArg(), userID, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
}

func TestSignupAndLogin(t *testing.T) {
	mock := newMock(t)
	createdAt := time.Now().Add(-time.Minute)

	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs(pgxmock.AnyArg(), "user@example.com", pgxmock.AnyArg(), "User One").
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(createdAt, createdAt))
	expectRefreshInsert(mock, pgxmock.AnyArg())

	svc := NewService("test-secret", mock, nil, nil)
	user, tokens, err := svc.Signup(context.Background(), SignupRequest{
		Email:    " User@Example.com ",
		Password: "password123",
		Name:     "User One",
	})
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if user.ID == "" || user.Email != "user@example.com" || tokens.AccessToken == "" || tokens.RefreshToken == "" {
		t.Fatalf("expected user and tokens, got %+v", user)
	}

	mock.ExpectQuery(`SELECT id, email, name`).
		WithArgs("user@example.com").
		WillReturnRows(pgxmock.NewRows(userCols).
			AddRow(user.ID, user.Email, user.Name, "", "", user.PasswordHash, false, true, nil, createdAt, createdAt))
	mock.ExpectExec(`UPDATE users SET last_login`).
		WithArgs(user.ID, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	expectRefreshInsert(mock, user.ID)

	loggedIn, loginTokens, err := svc.Login(context.Background(), LoginRequest{Email: "user@example.com", Password: "password123"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if loginTokens.AccessToken == "" || loggedIn.LastLogin == nil {
		t.Fatalf("expected login tokens and last_login")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSignupValidation(t *testing.T) {
	svc := NewService("test-secret", newMock(t), nil, nil)
	_, _, err := svc.Signup(context.Background(), SignupRequest{Email: "not-an-email", Password: "short", Name: ""})
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(appErr.Fields) != 3 {
		t.Fatalf("expected 3 field errors, got %+v", appErr.Fields)
	}
}

func TestSignupDuplicateEmail(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs(pgxmock.AnyArg(), "user@example.com", pgxmock.AnyArg(), "User").
		WillReturnError(&pgconnError)

	svc := NewService("test-secret", mock, nil, nil)
	_, _, err := svc.Signup(context.Background(), SignupRequest{Email: "user@example.com", Password: "password123", Name: "User"})
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestSignupIssuesVerificationToken(t *testing.T) {
	mock := newMock(t)
	mr, rdb := newRedis(t)
	pub := &capturePublisher{}

	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs(pgxmock.AnyArg(), "user@example.com", pgxmock.AnyArg(), "User").
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(time.Now(), time.Now()))
	expectRefreshInsert(mock, pgxmock.AnyArg())

	svc := NewService("test-secret", mock, rdb, pub)
	user, _, err := svc.Signup(context.Background(), SignupRequest{Email: "user@example.com", Password: "password123", Name: "User"})
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if len(pub.events) != 1 || pub.events[0].Type != events.UserVerificationRequested {
		t.Fatalf("expected verification event, got %+v", pub.events)
	}
	token := pub.events[0].Data.(map[string]any)["token"].(string)
	got, err := mr.Get(verifyPrefix + token)
	if err != nil || got != user.ID {
		t.Fatalf("expected stored verify token, got %q %v", got, err)
	}
	if ttl := mr.TTL(verifyPrefix + token); ttl != verifyTokenTTL {
		t.Fatalf("unexpected ttl: %v", ttl)
	}

	mock.ExpectExec(`UPDATE users SET email_verified=TRUE`).
		WithArgs(user.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	if err := svc.VerifyEmail(context.Background(), token); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if err := svc.VerifyEmail(context.Background(), token); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected token to be single use, got %v", err)
	}
}

func TestLoginUnknownEmail(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`SELECT id, email, name`).
		WithArgs("nobody@example.com").
		WillReturnRows(pgxmock.NewRows(userCols))

	svc := NewService("test-secret", mock, nil, nil)
	_, _, err := svc.Login(context.Background(), LoginRequest{Email: "nobody@example.com", Password: "whatever"})
	if !errors.Is(err, apperr.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestLoginInvalidPassword(t *testing.T) {
	mock := newMock(t)
	hash, _ := bcrypt.GenerateFromPassword([]byte("correct-password"), bcrypt.MinCost)

	mock.ExpectQuery(`SELECT id, email, name`).
		WithArgs("user@example.com").
		WillReturnRows(pgxmock.NewRows(userCols).
			AddRow("user-1", "user@example.com", "User", "", "", string(hash), false, true, nil, time.Now(), time.Now()))

	svc := NewService("test-secret", mock, nil, nil)
	_, _, err := svc.Login(context.Background(), LoginRequest{Email: "user@example.com", Password: "wrong-password"})
	if !errors.Is(err, apperr.ErrUnauthorized) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestLoginQueryError(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`SELECT id, email, name`).
		WithArgs("user@example.com").
		WillReturnError(pgErr)

	svc := NewService("test-secret", mock, nil, nil)
	_, _, err := svc.Login(context.Background(), LoginRequest{Email: "user@example.com", Password: "pass"})
	if !errors.Is(err, pgErr) {
		t.Fatalf("expected db error, got %v", err)
	}
}

func TestRefreshRotatesToken(t *testing.T) {
	mock := newMock(t)
	svc := NewService("test-secret", mock, nil, nil)

	expectRefreshInsert(mock, "user-1")
	tokens, err := svc.GenerateTokens(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("generate tokens: %v", err)
	}

	mock.ExpectQuery(`SELECT user_id, expires_at`).
		WithArgs(tokens.RefreshToken).
		WillReturnRows(pgxmock.NewRows([]string{"user_id", "expires_at"}).AddRow("user-1", time.Now().Add(5*time.Minute)))
	mock.ExpectExec(`UPDATE refresh_tokens SET revoked_at`).
		WithArgs(tokens.RefreshToken).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	expectRefreshInsert(mock, "user-1")

	next, err := svc.Refresh(context.Background(), tokens.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if next.RefreshToken == tokens.RefreshToken {
		t.Fatalf("expected a new refresh token")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestValidateRefreshTokenExpired(t *testing.T) {
	mock := newMock(t)
	svc := NewService("test-secret", mock, nil, nil)

	expectRefreshInsert(mock, "user-2")
	tokens, err := svc.GenerateTokens(context.Background(), "user-2")
	if err != nil {
		t.Fatalf("generate tokens: %v", err)
	}

	mock.ExpectQuery(`SELECT user_id, expires_at`).
		WithArgs(tokens.RefreshToken).
		WillReturnRows(pgxmock.NewRows([]string{"user_id", "expires_at"}).AddRow("user-2", time.Now().Add(-time.Minute)))

	_, err = svc.ValidateRefreshToken(context.Background(), tokens.RefreshToken)
	if !errors.Is(err, apperr.ErrUnauthorized) {
		t.Fatalf("expected expired token error, got %v", err)
	}
}

func TestValidateRefreshTokenRejectsAccessToken(t *testing.T) {
	mock := newMock(t)
	svc := NewService("test-secret", mock, nil, nil)

	expectRefreshInsert(mock, "user-3")
	tokens, err := svc.GenerateTokens(context.Background(), "user-3")
	if err != nil {
		t.Fatalf("generate tokens: %v", err)
	}
	if _, err := svc.ValidateRefreshToken(context.Background(), tokens.AccessToken); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Fatalf("expected access token to be rejected, got %v", err)
	}
	if _, err := svc.Authenticate(context.Background(), tokens.RefreshToken); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Fatalf("expected refresh token to be rejected as access token, got %v", err)
	}
}

func TestGenerateTokensSaveRefreshError(t *testing.T) {
	mock := newMock(t)
	mock.ExpectExec(`INSERT INTO refresh_tokens`).
		WithArgs(pgxmock.AnyArg(), "user-1", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(pgErr)

	svc := NewService("test-secret", mock, nil, nil)
	if _, err := svc.GenerateTokens(context.Background(), "user-1"); !errors.Is(err, pgErr) {
		t.Fatalf("expected error, got %v", err)
	}
}

func TestGenerateTokensSignErrors(t *testing.T) {
	oldSign := signTokenFn
	defer func() { signTokenFn = oldSign }()

	for _, failOn := range []int{1, 2} {
		call := 0
		signTokenFn = func(_ *Service, _, _ string, _ time.Duration) (string, error) {
			call++
			if call == failOn {
				return "", pgErr
			}
			return "token", nil
		}
		svc := NewService("test-secret", nil, nil, nil)
		if _, err := svc.GenerateTokens(context.Background(), "user-1"); err == nil {
			t.Fatalf("expected error when sign call %d fails", failOn)
		}
	}
}

func TestSignupHashError(t *testing.T) {
	oldHash := hashPasswordFn
	hashPasswordFn = func(_ []byte, _ int) ([]byte, error) {
		return nil, pgErr
	}
	defer func() { hashPasswordFn = oldHash }()

	svc := NewService("test-secret", nil, nil, nil)
	_, _, err := svc.Signup(context.Background(), SignupRequest{Email: "user@example.com", Name: "user", Password: "password123"})
	if !errors.Is(err, pgErr) {
		t.Fatalf("expected hash error, got %v", err)
	}
}

func TestParseTokenInvalid(t *testing.T) {
	oldParse := parseWithClaimsFn
	parseWithClaimsFn = func(_ string, _ jwt.Claims, _ jwt.Keyfunc, _ ...jwt.ParserOption) (*jwt.Token, error) {
		return &jwt.Token{Valid: false, Claims: &Claims{}}, nil
	}
	defer func() { parseWithClaimsFn = oldParse }()

	svc := NewService("test-secret", nil, nil, nil)
	if _, err := svc.parseToken("token"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestParseTokenWrongSecret(t *testing.T) {
	other := NewService("other-secret", nil, nil, nil)
	token, _ := other.signToken("user-1", tokenAccess, accessTokenTTL)

	svc := NewService("test-secret", nil, nil, nil)
	if _, err := svc.Authenticate(context.Background(), token); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestLogoutRevokesTokens(t *testing.T) {
	mock := newMock(t)
	mr, rdb := newRedis(t)
	svc := NewService("test-secret", mock, rdb, nil)

	access, _ := svc.signToken("user-1", tokenAccess, accessTokenTTL)
	claims, err := svc.Authenticate(context.Background(), access)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}

	mock.ExpectExec(`UPDATE refresh_tokens SET revoked_at`).
		WithArgs("refresh-token", "user-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if err := svc.Logout(context.Background(), claims, "refresh-token"); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if !mr.Exists(revokedPrefix + claims.ID) {
		t.Fatalf("expected jti on deny-list")
	}
	if ttl := mr.TTL(revokedPrefix + claims.ID); ttl <= 0 || ttl > accessTokenTTL {
		t.Fatalf("deny-list entry should expire with the token, ttl=%v", ttl)
	}
	if _, err := svc.Authenticate(context.Background(), access); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Fatalf("expected revoked token to be rejected, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestForgotAndResetPassword(t *testing.T) {
	mock := newMock(t)
	mr, rdb := newRedis(t)
	pub := &capturePublisher{}
	svc := NewService("test-secret", mock, rdb, pub)

	mock.ExpectQuery(`SELECT id FROM users WHERE email`).
		WithArgs("user@example.com").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("user-1"))

	if err := svc.ForgotPassword(context.Background(), "User@example.com"); err != nil {
		t.Fatalf("forgot: %v", err)
	}
	if len(pub.events) != 1 || pub.events[0].Type != events.UserPasswordResetRequested {
		t.Fatalf("expected reset event, got %+v", pub.events)
	}
	token := pub.events[0].Data.(map[string]any)["token"].(string)
	if mr.TTL(resetPrefix+token) != resetTokenTTL {
		t.Fatalf("expected 1h reset token ttl")
	}

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE users SET password_hash`).
		WithArgs("user-1", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE refresh_tokens SET revoked_at=now\(\) WHERE user_id`).
		WithArgs("user-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 2))
	mock.ExpectCommit()

	if err := svc.ResetPassword(context.Background(), ResetPasswordRequest{Token: token, Password: "new-password"}); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if mr.Exists(resetPrefix + token) {
		t.Fatalf("reset token should be consumed")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestForgotPasswordUnknownEmailSucceeds(t *testing.T) {
	mock := newMock(t)
	_, rdb := newRedis(t)
	mock.ExpectQuery(`SELECT id FROM users WHERE email`).
		WithArgs("ghost@example.com").
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	svc := NewService("test-secret", mock, rdb, nil)
	if err := svc.ForgotPassword(context.Background(), "ghost@example.com"); err != nil {
		t.Fatalf("expected silent success, got %v", err)
	}
}

func TestResetPasswordInvalidToken(t *testing.T) {
	_, rdb := newRedis(t)
	svc := NewService("test-secret", newMock(t), rdb, nil)
	err := svc.ResetPassword(context.Background(), ResetPasswordRequest{Token: "missing", Password: "new-password"})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected invalid token, got %v", err)
	}
}
