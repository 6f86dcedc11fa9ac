package dto

import "github.com/00Thor/CCPUR-sub000/internal/app/models"

// LoginRequest represents login credentials
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RegisterRequest starts an OTP-confirmed registration
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	FullName string `json:"fullName" validate:"required,notblank,max=150"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// RegisterResponse carries the reference the OTP must be confirmed against
type RegisterResponse struct {
	Reference string `json:"reference"`
	ExpiresIn int64  `json:"expiresIn"`
}

// VerifyRegistrationRequest confirms a registration with the emailed code
type VerifyRegistrationRequest struct {
	Reference string `json:"reference" validate:"required"`
	OTP       string `json:"otp" validate:"required,numeric"`
}

// ForgotPasswordRequest asks for a reset link
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ResetPasswordRequest sets a new password with a reset token
type ResetPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=8,max=72"`
}

// CreateUserRequest is used by admins and the CLI to create staff accounts
type CreateUserRequest struct {
	Email    string          `json:"email" validate:"required,email"`
	FullName string          `json:"fullName" validate:"required,notblank"`
	Password string          `json:"password" validate:"required,min=8,max=72"`
	Role     models.RoleType `json:"role" validate:"required,oneof=student staff admin"`
}

// TokenResponse represents JWT token information
type TokenResponse struct {
	AccessToken string `json:"accessToken"`
	TokenType   string `json:"tokenType" example:"Bearer"`
	ExpiresIn   int64  `json:"expiresIn"`
}

// UserResponse represents basic user information
type UserResponse struct {
	ID       int64  `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"fullName"`
	Role     string `json:"role"`
}

// AuthResponse represents successful authentication response
type AuthResponse struct {
	Token TokenResponse `json:"token"`
	User  UserResponse  `json:"user"`
}

// ToUserResponse maps a user model to its public shape
func ToUserResponse(u *models.User) UserResponse {
	return UserResponse{
		ID:       u.ID,
		Email:    u.Email,
		FullName: u.FullName,
		Role:     string(u.RoleType),
	}
}
