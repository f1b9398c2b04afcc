package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/germed/backend/internal/cache"
	"github.com/germed/backend/internal/config"
	"github.com/germed/backend/internal/db"
	"github.com/germed/backend/internal/model"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"

	minPasswordLength = 8
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenInvalid       = errors.New("token invalid")
	ErrTokenExpired       = errors.New("token expired")
	ErrTokenRevoked       = errors.New("token revoked")
	ErrTokenNotFound      = errors.New("token not found")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("conflict")
	ErrMisconfigured      = errors.New("auth config invalid")
)

// Compared against when the email is unknown, so login latency does not
// reveal whether an account exists.
var dummyPasswordHash = []byte("$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy")

type UserRepo interface {
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByID(ctx context.Context, userID string) (*model.User, error)
	CreateUser(ctx context.Context, id, email, passwordHash, region string, roles []string) (*model.User, error)
}

type TokenStore interface {
	Put(ctx context.Context, tokenID string, record model.TokenRecord, ttl time.Duration) error
	Get(ctx context.Context, tokenID string) (*model.TokenRecord, error)
	Revoke(ctx context.Context, tokenID string) error
}

type RegionResolver interface {
	RegionFromIP(ctx context.Context, ip string) string
}

type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
}

type AuthService struct {
	users       UserRepo
	tokens      TokenStore
	geo         RegionResolver
	log         *zap.Logger
	jwtSecret   []byte
	accessTTL   time.Duration
	refreshTTL  time.Duration
	allowSignup bool
}

type authClaims struct {
	Email     string   `json:"email,omitempty"`
	Roles     []string `json:"roles,omitempty"`
	TokenType string   `json:"type"`
	jwt.RegisteredClaims
}

func NewAuthService(users UserRepo, tokens TokenStore, geo RegionResolver, cfg config.AuthConfig, log *zap.Logger) (*AuthService, error) {
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("%w: JWT_SECRET_KEY is required", ErrMisconfigured)
	}

	accessTTL, err := time.ParseDuration(cfg.JWTAccessTTL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid ACCESS_TOKEN_EXPIRY", ErrMisconfigured)
	}

	refreshTTL, err := time.ParseDuration(cfg.JWTRefreshTTL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid REFRESH_TOKEN_EXPIRY", ErrMisconfigured)
	}

	allowSignup, err := parseBool(cfg.AllowSignup, false)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid ALLOW_SIGNUP", ErrMisconfigured)
	}

	return &AuthService{
		users:       users,
		tokens:      tokens,
		geo:         geo,
		log:         log,
		jwtSecret:   []byte(cfg.JWTSecret),
		accessTTL:   accessTTL,
		refreshTTL:  refreshTTL,
		allowSignup: allowSignup,
	}, nil
}

func (s *AuthService) AllowSignup() bool {
	return s.allowSignup
}

func (s *AuthService) AccessTTL() time.Duration {
	return s.accessTTL
}

func (s *AuthService) RefreshTTL() time.Duration {
	return s.refreshTTL
}

func (s *AuthService) Register(ctx context.Context, email, password, clientIP string) (*TokenPair, *model.User, error) {
	if !s.allowSignup {
		return nil, nil, ErrForbidden
	}
	if err := validateCredentials(email, password); err != nil {
		return nil, nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, err
	}

	region := s.geo.RegionFromIP(ctx, clientIP)
	userID := "user_" + uuid.NewString()

	user, err := s.users.CreateUser(ctx, userID, strings.ToLower(strings.TrimSpace(email)), string(hash), region, []string{"user"})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, nil, ErrConflict
		}
		return nil, nil, err
	}

	s.log.Info("user registered", zap.String("user_id", user.ID), zap.String("region", region))

	pair, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	return pair, user, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	if err := validateCredentials(email, password); err != nil {
		return nil, err
	}

	user, err := s.users.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if db.IsNoRows(err) {
			// Burn a comparison anyway to keep timing uniform.
			_ = bcrypt.CompareHashAndPassword(dummyPasswordHash, []byte(password))
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.log.Warn("login rejected", zap.String("user_id", user.ID))
		return nil, ErrInvalidCredentials
	}

	return s.issueTokens(ctx, user)
}

// Refresh rotates a refresh token: the presented token id is revoked with a
// compare-and-swap, so of two concurrent calls exactly one mints a new pair
// and the other observes the revocation.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.parseToken(refreshToken, tokenTypeRefresh)
	if err != nil {
		return nil, err
	}

	record, err := s.tokens.Get(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			return nil, ErrTokenNotFound
		}
		return nil, err
	}
	if record.Revoked {
		return nil, ErrTokenRevoked
	}
	if time.Now().After(record.ExpiresAt) {
		return nil, ErrTokenExpired
	}

	user, err := s.users.GetUserByID(ctx, record.UserID)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrTokenInvalid
		}
		return nil, err
	}

	if err := s.tokens.Revoke(ctx, claims.ID); err != nil {
		switch {
		case errors.Is(err, cache.ErrAlreadyRevoked):
			s.log.Warn("refresh lost rotation race", zap.String("token_id", claims.ID))
			return nil, ErrTokenRevoked
		case errors.Is(err, cache.ErrNotFound):
			return nil, ErrTokenNotFound
		default:
			return nil, err
		}
	}

	return s.issueTokens(ctx, user)
}

// Logout revokes the presented refresh token. It is idempotent: unknown,
// expired, already-revoked or malformed tokens are not errors.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if strings.TrimSpace(refreshToken) == "" {
		return nil
	}

	claims := &authClaims{}
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	token, err := parser.ParseWithClaims(refreshToken, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid || claims.TokenType != tokenTypeRefresh || claims.ID == "" {
		return nil
	}

	if err := s.tokens.Revoke(ctx, claims.ID); err != nil {
		if errors.Is(err, cache.ErrNotFound) || errors.Is(err, cache.ErrAlreadyRevoked) {
			return nil
		}
		s.log.Error("logout revoke failed", zap.String("token_id", claims.ID), zap.Error(err))
		return nil
	}

	s.log.Info("user logged out", zap.String("token_id", claims.ID))
	return nil
}

// Verify validates an access token and returns the identity it carries.
func (s *AuthService) Verify(tokenStr string) (*model.AuthUser, error) {
	claims, err := s.parseToken(tokenStr, tokenTypeAccess)
	if err != nil {
		return nil, err
	}
	return &model.AuthUser{
		ID:    claims.Subject,
		Email: claims.Email,
		Roles: claims.Roles,
	}, nil
}

func (s *AuthService) issueTokens(ctx context.Context, user *model.User) (*TokenPair, error) {
	now := time.Now()
	refreshID := uuid.NewString()
	refreshExpiry := now.Add(s.refreshTTL)

	accessToken, err := s.signToken(authClaims{
		Email:     user.Email,
		Roles:     user.Roles,
		TokenType: tokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
		},
	})
	if err != nil {
		return nil, err
	}

	refreshToken, err := s.signToken(authClaims{
		TokenType: tokenTypeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ID:        refreshID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(refreshExpiry),
		},
	})
	if err != nil {
		return nil, err
	}

	record := model.TokenRecord{UserID: user.ID, ExpiresAt: refreshExpiry}
	if err := s.tokens.Put(ctx, refreshID, record, s.refreshTTL); err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.accessTTL.Seconds()),
	}, nil
}

func (s *AuthService) signToken(claims authClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

func (s *AuthService) parseToken(tokenStr, wantType string) (*authClaims, error) {
	claims := &authClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if !token.Valid || claims.TokenType != wantType || claims.ID == "" || claims.Subject == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

func validateCredentials(email, password string) error {
	email = strings.TrimSpace(email)
	if len(email) < 3 || len(email) > 254 || !strings.Contains(email, "@") {
		return ErrInvalidInput
	}
	if len(password) < minPasswordLength || len(password) > 128 {
		return ErrInvalidInput
	}
	return nil
}

func parseBool(value string, fallback bool) (bool, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback, nil
	}
	return strconv.ParseBool(value)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
