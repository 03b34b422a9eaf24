package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"crmsaas/internal/caching"
	"crmsaas/internal/models"
	"crmsaas/internal/repositories"
	"crmsaas/internal/tenancy"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	tokenTTL       = 24 * time.Hour
	otpTTL         = 10 * time.Minute
	otpRateLimit   = 5
	otpRateWindow  = time.Hour
	otpMailSubject = "Your login code"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidOTP         = errors.New("invalid or expired code")
	ErrTooManyRequests    = errors.New("too many requests")
)

// Claims is the JWT payload. TenantID is empty for platform admins; the
// tenant resolver treats their tokens as control-scoped regardless.
type Claims struct {
	UserID   string `json:"user_id"`
	TenantID string `json:"tenant_id,omitempty"`
	jwt.RegisteredClaims
}

type LoginResponse struct {
	Token  string         `json:"token"`
	User   *models.User   `json:"user"`
	Tenant *models.Tenant `json:"tenant,omitempty"`
}

type AuthService interface {
	Register(ctx context.Context, req *RegisterUserRequest) (*models.User, error)
	Login(ctx context.Context, username, password, tenantName string) (*LoginResponse, error)
	Logout(ctx context.Context, token string) error
	RequestOTP(ctx context.Context, email string) error
	VerifyOTP(ctx context.Context, email, code string) (*LoginResponse, error)
}

type authService struct {
	userRepo   repositories.UserRepository
	tokenRepo  repositories.TokenRepository
	tenantRepo repositories.TenantRepository
	cache      caching.CacheService
	mailer     Mailer
	jwtSecret  []byte
	log        *zap.Logger
}

func NewAuthService(
	userRepo repositories.UserRepository,
	tokenRepo repositories.TokenRepository,
	tenantRepo repositories.TenantRepository,
	cache caching.CacheService,
	mailer Mailer,
	jwtSecret string,
	log *zap.Logger,
) AuthService {
	return &authService{
		userRepo:   userRepo,
		tokenRepo:  tokenRepo,
		tenantRepo: tenantRepo,
		cache:      cache,
		mailer:     mailer,
		jwtSecret:  []byte(jwtSecret),
		log:        log,
	}
}

type RegisterUserRequest struct {
	Username  string `json:"username" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Register creates a user in the store the current execution context routes
// to: the active tenant's database, or the control database when none is
// resolved.
func (s *authService) Register(ctx context.Context, req *RegisterUserRequest) (*models.User, error) {
	if req.Username == "" || req.Email == "" || req.Password == "" {
		return nil, errors.New("username, email and password are required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		ID:           uuid.New(),
		Username:     req.Username,
		Email:        strings.ToLower(req.Email),
		PasswordHash: string(hash),
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		IsActive:     true,
	}
	if tenant, ok := tenancy.CurrentTenant(ctx); ok {
		user.TenantID = &tenant.ID
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Login authenticates a user. With a tenant hint the lookup goes straight to
// that tenant's store. Without one the control database is tried first, then
// every active tenant database in turn; each probe runs under that tenant's
// execution context and the caller's context is never mutated.
func (s *authService) Login(ctx context.Context, username, password, tenantName string) (*LoginResponse, error) {
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	if tenantName != "" {
		tenant, err := s.tenantRepo.GetByName(ctx, tenantName)
		if err != nil {
			return nil, ErrInvalidCredentials
		}
		return s.loginIn(tenancy.WithTenant(ctx, tenant), username, password, tenant)
	}

	// Platform admins and unscoped accounts live centrally.
	if resp, err := s.loginIn(tenancy.WithoutTenant(ctx), username, password, nil); err == nil {
		return resp, nil
	}

	tenants, err := s.tenantRepo.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	for _, tenant := range tenants {
		resp, err := s.loginIn(tenancy.WithTenant(ctx, tenant), username, password, tenant)
		if err == nil {
			return resp, nil
		}
		if !errors.Is(err, ErrInvalidCredentials) {
			s.log.Warn("login probe failed",
				zap.String("tenant", tenant.Name),
				zap.Error(err))
		}
	}
	return nil, ErrInvalidCredentials
}

func (s *authService) loginIn(ctx context.Context, username, password string, tenant *models.Tenant) (*LoginResponse, error) {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return s.issueToken(ctx, user, tenant)
}

func (s *authService) issueToken(ctx context.Context, user *models.User, tenant *models.Tenant) (*LoginResponse, error) {
	now := time.Now()
	claims := Claims{
		UserID: user.ID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}
	if tenant != nil && !user.IsPlatformAdmin {
		claims.TenantID = tenant.ID.String()
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	record := &models.AuthToken{
		ID:        uuid.New(),
		UserID:    user.ID,
		TokenHash: hashToken(token),
	}
	if err := s.tokenRepo.Create(ctx, record); err != nil {
		return nil, err
	}

	return &LoginResponse{Token: token, User: user, Tenant: tenant}, nil
}

func (s *authService) Logout(ctx context.Context, token string) error {
	return s.tokenRepo.DeleteByHash(ctx, hashToken(token))
}

// RequestOTP mails a one-time login code to a known account. Unknown emails
// return success without sending so the endpoint does not leak which
// accounts exist.
func (s *authService) RequestOTP(ctx context.Context, email string) error {
	email = strings.ToLower(email)

	count, err := s.cache.IncrementRateLimit(ctx, "otp:"+email, otpRateWindow)
	if err != nil {
		s.log.Warn("otp rate limit check failed", zap.Error(err))
	} else if count > otpRateLimit {
		return ErrTooManyRequests
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		s.log.Info("otp requested for unknown email", zap.String("email", email))
		return nil
	}

	code, err := generateOTP()
	if err != nil {
		return err
	}
	if err := s.cache.SetOTP(ctx, email, code, otpTTL); err != nil {
		return err
	}

	body := fmt.Sprintf("Hello %s,\n\nYour login code is %s. It expires in %d minutes.\n", user.FirstName, code, int(otpTTL.Minutes()))
	if err := s.mailer.Send(email, otpMailSubject, body); err != nil {
		return err
	}
	return nil
}

func (s *authService) VerifyOTP(ctx context.Context, email, code string) (*LoginResponse, error) {
	email = strings.ToLower(email)

	stored, err := s.cache.GetOTP(ctx, email)
	if err != nil || stored == "" || stored != code {
		return nil, ErrInvalidOTP
	}
	if err := s.cache.DeleteOTP(ctx, email); err != nil {
		s.log.Warn("failed to clear used otp", zap.Error(err))
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, ErrInvalidOTP
	}
	tenant, _ := tenancy.CurrentTenant(ctx)
	return s.issueToken(ctx, user, tenant)
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
