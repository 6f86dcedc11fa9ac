package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/00Thor/CCPUR-sub000/internal/app/models"
	"github.com/00Thor/CCPUR-sub000/internal/app/models/dto"
	"github.com/00Thor/CCPUR-sub000/internal/app/repositories"
	"github.com/00Thor/CCPUR-sub000/internal/db"
	"github.com/00Thor/CCPUR-sub000/internal/pkg/apperrors"
	"github.com/00Thor/CCPUR-sub000/internal/pkg/auth"
	"github.com/00Thor/CCPUR-sub000/internal/pkg/metrics"
	"github.com/00Thor/CCPUR-sub000/internal/pkg/notify"
	"github.com/00Thor/CCPUR-sub000/internal/pkg/otp"
	"github.com/00Thor/CCPUR-sub000/internal/pkg/validation"
)

// ResetTokenTTL is how long a password reset link stays valid
const ResetTokenTTL = time.Hour

var errInvalidCredentials = apperrors.NewCustomError(apperrors.ErrUnauthorized, "invalid email or password")

// AuthService defines identity operations
type AuthService interface {
	Register(ctx context.Context, req *dto.RegisterRequest) (*dto.RegisterResponse, error)
	VerifyRegistration(ctx context.Context, req *dto.VerifyRegistrationRequest) (*dto.AuthResponse, error)
	Login(ctx context.Context, req *dto.LoginRequest) (*dto.AuthResponse, error)
	Me(ctx context.Context, userID int64) (*dto.UserResponse, error)
	ForgotPassword(ctx context.Context, req *dto.ForgotPasswordRequest) error
	ResetPassword(ctx context.Context, req *dto.ResetPasswordRequest) error
	CreateUser(ctx context.Context, req *dto.CreateUserRequest) (*models.User, error)
}

// AuthConfig holds the registration code settings
type AuthConfig struct {
	OTPTTL    time.Duration
	OTPLength int
}

type authServiceImpl struct {
	userRepo   repositories.IUserRepository
	resetRepo  repositories.IPasswordResetTokenRepository
	transactor db.Transactor
	otpStore   *otp.Store
	notifier   *notify.Notifier
	jwtService *auth.JWTService
	config     AuthConfig
	logger     zerolog.Logger
	now        func() time.Time
}

// NewAuthService creates a new AuthService
func NewAuthService(
	userRepo repositories.IUserRepository,
	resetRepo repositories.IPasswordResetTokenRepository,
	transactor db.Transactor,
	otpStore *otp.Store,
	notifier *notify.Notifier,
	jwtService *auth.JWTService,
	config AuthConfig,
	logger zerolog.Logger,
) AuthService {
	if config.OTPLength <= 0 {
		config.OTPLength = 6
	}
	if config.OTPTTL <= 0 {
		config.OTPTTL = 10 * time.Minute
	}
	return &authServiceImpl{
		userRepo:   userRepo,
		resetRepo:  resetRepo,
		transactor: transactor,
		otpStore:   otpStore,
		notifier:   notifier,
		jwtService: jwtService,
		config:     config,
		logger:     logger,
		now:        time.Now,
	}
}

// Register stores a pending account and emails a one-time code
func (s *authServiceImpl) Register(ctx context.Context, req *dto.RegisterRequest) (*dto.RegisterResponse, error) {
	req.Email = normalizeEmail(req.Email)
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	email := normalizeEmail(req.Email)

	exists, err := s.userRepo.EmailExists(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("error checking email: %w", err)
	}
	if exists {
		return nil, apperrors.ErrEmailAlreadyExists
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	code, err := otp.GenerateCode(s.config.OTPLength)
	if err != nil {
		return nil, fmt.Errorf("error generating verification code: %w", err)
	}

	ref := otp.NewReference()
	pending := models.PendingRegistration{
		Email:        email,
		FullName:     strings.TrimSpace(req.FullName),
		PasswordHash: hash,
		Code:         code,
		IssuedAt:     s.now(),
	}
	if err := s.otpStore.Save(ctx, ref, pending, s.config.OTPTTL); err != nil {
		return nil, err
	}

	if err := s.notifier.RegistrationCode(ctx, email, pending.FullName, code, s.config.OTPTTL); err != nil {
		s.logger.Error().Err(err).Str("email", email).Msg("Failed to send registration code")
		metrics.RecordNotificationFailure("registration_code")
		return nil, apperrors.NewCustomError(apperrors.ErrInternal, "could not send verification code")
	}

	s.logger.Info().Str("email", email).Msg("Registration pending verification")
	return &dto.RegisterResponse{Reference: ref, ExpiresIn: int64(s.config.OTPTTL.Seconds())}, nil
}

// VerifyRegistration consumes the pending entry and creates the account.
// A wrong code consumes the entry too, so each reference gets one attempt.
func (s *authServiceImpl) VerifyRegistration(ctx context.Context, req *dto.VerifyRegistrationRequest) (*dto.AuthResponse, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	pending, err := s.otpStore.Take(ctx, req.Reference)
	if err != nil {
		return nil, err
	}
	if !otp.CodesEqual(pending.Code, req.OTP) {
		s.logger.Warn().Str("email", pending.Email).Msg("Invalid verification code")
		return nil, apperrors.ErrInvalidOTP
	}

	user := &models.User{
		Email:    pending.Email,
		Password: pending.PasswordHash,
		FullName: pending.FullName,
		RoleType: models.RoleStudent,
		IsActive: true,
	}
	if _, err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info().Int64("userID", user.ID).Str("email", user.Email).Msg("User registered")
	return s.authResponse(user)
}

// Login authenticates a user by email and password
func (s *authServiceImpl) Login(ctx context.Context, req *dto.LoginRequest) (*dto.AuthResponse, error) {
	req.Email = normalizeEmail(req.Email)
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, errInvalidCredentials
		}
		return nil, err
	}
	if !auth.CheckPassword(user.Password, req.Password) {
		return nil, errInvalidCredentials
	}
	if !user.IsActive {
		return nil, apperrors.NewCustomError(apperrors.ErrPermissionDenied, apperrors.ErrAccountDisabled.Error())
	}

	return s.authResponse(user)
}

// Me returns the caller's profile
func (s *authServiceImpl) Me(ctx context.Context, userID int64) (*dto.UserResponse, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	resp := dto.ToUserResponse(user)
	return &resp, nil
}

// ForgotPassword issues a reset token. Unknown emails succeed silently.
func (s *authServiceImpl) ForgotPassword(ctx context.Context, req *dto.ForgotPasswordRequest) error {
	req.Email = normalizeEmail(req.Email)
	if err := validation.Struct(req); err != nil {
		return err
	}

	user, err := s.userRepo.GetByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			s.logger.Info().Msg("Password reset requested for unknown email")
			return nil
		}
		return err
	}

	token, err := auth.GenerateResetToken()
	if err != nil {
		return err
	}

	err = s.transactor.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		resetRepo := s.resetRepo.WithTx(tx)
		if err := resetRepo.DeleteTokensByUserID(ctx, user.ID); err != nil {
			return err
		}
		return resetRepo.CreateToken(ctx, user.ID, token, s.now().Add(ResetTokenTTL))
	})
	if err != nil {
		return err
	}

	if err := s.notifier.PasswordReset(ctx, user.Email, user.FullName, token); err != nil {
		s.logger.Error().Err(err).Int64("userID", user.ID).Msg("Failed to send password reset email")
		metrics.RecordNotificationFailure("password_reset")
	}
	return nil
}

// ResetPassword sets a new password using a single-use token
func (s *authServiceImpl) ResetPassword(ctx context.Context, req *dto.ResetPasswordRequest) error {
	if err := validation.Struct(req); err != nil {
		return err
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		return err
	}

	var userID int64
	err = s.transactor.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		resetRepo := s.resetRepo.WithTx(tx)
		token, err := resetRepo.GetForUpdate(ctx, req.Token)
		if err != nil {
			return err
		}
		if token.Used {
			return apperrors.ErrPasswordResetTokenUsed
		}
		if token.Expired(s.now()) {
			return apperrors.ErrInvalidPasswordResetToken
		}
		if err := s.userRepo.WithTx(tx).UpdatePassword(ctx, token.UserID, hash); err != nil {
			return err
		}
		userID = token.UserID
		return resetRepo.MarkTokenAsUsed(ctx, req.Token)
	})
	if err != nil {
		return err
	}

	s.logger.Info().Int64("userID", userID).Msg("Password reset")
	return nil
}

// CreateUser creates an account directly, bypassing verification
func (s *authServiceImpl) CreateUser(ctx context.Context, req *dto.CreateUserRequest) (*models.User, error) {
	req.Email = normalizeEmail(req.Email)
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		Email:    normalizeEmail(req.Email),
		Password: hash,
		FullName: strings.TrimSpace(req.FullName),
		RoleType: req.Role,
		IsActive: true,
	}
	if _, err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info().Int64("userID", user.ID).Str("role", string(user.RoleType)).Msg("User created")
	return user, nil
}

func (s *authServiceImpl) authResponse(user *models.User) (*dto.AuthResponse, error) {
	token, expiresIn, err := s.jwtService.GenerateToken(user)
	if err != nil {
		return nil, fmt.Errorf("token generation error: %w", err)
	}
	return &dto.AuthResponse{
		Token: dto.TokenResponse{
			AccessToken: token,
			TokenType:   "Bearer",
			ExpiresIn:   expiresIn,
		},
		User: dto.ToUserResponse(user),
	}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
