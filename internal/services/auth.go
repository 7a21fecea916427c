package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/desertthunder/apostle/internal/models"
	"github.com/desertthunder/apostle/internal/shared"
)

// Admin auth endpoints.
const (
	LoginPath          = "/api/admin/auth/login"
	RegisterPath       = "/api/admin/auth/register"
	LogoutPath         = "/api/admin/auth/logout"
	ProfilePath        = "/api/admin/auth/me"
	VerifyOTPPath      = "/api/admin/auth/verify-otp"
	ForgotPasswordPath = "/api/admin/auth/forgot-password"
	ResetPasswordPath  = "/api/admin/auth/reset-password"
)

// RegisterInput is the payload for creating an admin account.
type RegisterInput struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"name,omitempty"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
}

// Login exchanges credentials for tokens.
func (c *Client) Login(ctx context.Context, email, password string) (*Response, error) {
	return c.auth(ctx, http.MethodPost, LoginPath, map[string]string{"email": email, "password": password})
}

// Register creates an admin account.
func (c *Client) Register(ctx context.Context, in RegisterInput) (*Response, error) {
	return c.auth(ctx, http.MethodPost, RegisterPath, in)
}

// Logout ends the server side of the session.
func (c *Client) Logout(ctx context.Context) (*Response, error) {
	return c.auth(ctx, http.MethodPost, LogoutPath, nil)
}

// Profile fetches the signed-in principal. A successful answer without a principal returns nil, nil.
func (c *Client) Profile(ctx context.Context) (*models.Principal, error) {
	resp, err := c.auth(ctx, http.MethodGet, ProfilePath, nil)
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("%w: %s", shared.ErrNotAuthenticated, firstNonEmpty(resp.Message, "profile unavailable"))
	}
	return resp.Principal, nil
}

// VerifyOTP confirms a one-time code sent to email.
func (c *Client) VerifyOTP(ctx context.Context, email, otp string) (*Response, error) {
	return c.auth(ctx, http.MethodPost, VerifyOTPPath, map[string]string{"email": email, "otp": otp})
}

// ForgotPassword asks the API to send a reset code to email.
func (c *Client) ForgotPassword(ctx context.Context, email string) (*Response, error) {
	return c.auth(ctx, http.MethodPost, ForgotPasswordPath, map[string]string{"email": email})
}

// ResetPassword sets a new password using a previously issued code.
func (c *Client) ResetPassword(ctx context.Context, email, otp, password string) (*Response, error) {
	return c.auth(ctx, http.MethodPost, ResetPasswordPath, map[string]string{
		"email":    email,
		"otp":      otp,
		"password": password,
	})
}

// auth sends an auth request and normalizes the answer.
//
// A 4xx with a readable envelope is returned as an unsuccessful [Response]. Network
// failures, 5xx answers and unreadable bodies are [TransportError]s.
func (c *Client) auth(ctx context.Context, method, path string, in any) (*Response, error) {
	op := method + " " + path

	var data []byte
	if in != nil {
		var err error
		if data, err = json.Marshal(in); err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
	}

	resp, err := c.Do(ctx, method, path, data)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 500 {
		return nil, &TransportError{Op: op, StatusCode: resp.StatusCode, Message: serverMessage(resp.Body)}
	}

	norm, err := Normalize(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: op, StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode >= 300 {
		norm.Success = false
	}
	return norm, nil
}
