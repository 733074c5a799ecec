package main

import (
	"errors"
	"net/http"
	"net/mail"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Gee2424/HubFreelance-sub001/internal/auth"
	"github.com/Gee2424/HubFreelance-sub001/internal/data"
	"github.com/Gee2424/HubFreelance-sub001/internal/normalize"
	"github.com/Gee2424/HubFreelance-sub001/internal/policy"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expiresAt"`
	User      *data.User `json:"user"`
}

// issueToken answers with a fresh local token for user.
func (s *Server) issueToken(c echo.Context, user *data.User) error {
	if !user.Active {
		return echo.NewHTTPError(http.StatusForbidden, "account disabled")
	}
	token, expiresAt, err := s.auth.GenerateToken(user.ID, user.Email, string(user.Role))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, authResponse{Token: token, ExpiresAt: expiresAt, User: user})
}

// login authenticates a local credential and returns a JWT.
func (s *Server) login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Email == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "email and password are required")
	}

	user, err := s.stores.Users.GetUserByEmail(c.Request().Context(), req.Email)
	if err != nil {
		if errors.Is(err, data.ErrNotFound) {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
		}
		return err
	}
	if err := auth.CheckPassword(user.Password, req.Password); err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	}
	return s.issueToken(c, user)
}

// exchange trades an identity-provider access token for a local JWT. The
// local account is found by provider id, then by email.
func (s *Server) exchange(c echo.Context) error {
	if s.identity == nil {
		return echo.NewHTTPError(http.StatusNotImplemented, "identity provider not configured")
	}
	var req struct {
		AccessToken string `json:"accessToken"`
	}
	if err := c.Bind(&req); err != nil || req.AccessToken == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "accessToken is required")
	}

	ctx := c.Request().Context()
	ident, err := s.identity.VerifyToken(ctx, req.AccessToken)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid provider token")
	}

	user, err := s.stores.Users.GetUserByProviderID(ctx, ident.ID)
	if errors.Is(err, data.ErrNotFound) {
		user, err = s.stores.Users.GetUserByEmail(ctx, ident.Email)
	}
	if errors.Is(err, data.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "no local account for this identity")
	}
	if err != nil {
		return err
	}
	return s.issueToken(c, user)
}

// me returns the authenticated user.
func (s *Server) me(c echo.Context) error {
	user, err := s.stores.Users.GetUserByID(c.Request().Context(), claimsOf(c).UserID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

type createUserRequest struct {
	Email      string    `json:"email"`
	Username   string    `json:"username"`
	FullName   string    `json:"fullName"`
	Password   string    `json:"password"`
	Role       data.Role `json:"role"`
	ProviderID string    `json:"providerId"`
}

// createUser mirrors a sign-up into the users table. Anonymous callers may
// only create client and freelancer accounts.
func (s *Server) createUser(c echo.Context) error {
	var req createUserRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid email")
	}
	if normalize.Username(req.Username) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "username is required")
	}
	if len(req.Password) < 6 {
		return echo.NewHTTPError(http.StatusBadRequest, "password must be at least 6 characters")
	}
	if req.Role == "" {
		req.Role = data.RoleClient
	}
	if !req.Role.Valid() {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown role")
	}
	if req.Role.IsStaff() {
		claims, ok := getClaimsFromContext(c.Request().Context())
		if !ok || data.Role(claims.Role) != data.RoleAdmin {
			return echo.NewHTTPError(http.StatusForbidden, "only admins may create staff accounts")
		}
	}

	hashed, err := auth.HashPassword(req.Password)
	if err != nil {
		return err
	}
	user := &data.User{
		Email:    req.Email,
		Username: req.Username,
		FullName: req.FullName,
		Password: hashed,
		Role:     req.Role,
		Active:   true,
	}
	if req.ProviderID != "" {
		pid := req.ProviderID
		user.ProviderID = &pid
	}
	if err := s.stores.Users.CreateUser(c.Request().Context(), user); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, user)
}

// listUsers lists accounts, optionally of one role.
func (s *Server) listUsers(c echo.Context) error {
	limit, err := queryInt(c, "limit")
	if err != nil {
		return err
	}
	f := data.UserFilter{Limit: limit}
	if r := c.QueryParam("role"); r != "" {
		role, err := data.ParseRole(r)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		f.Role = role
	}
	users, err := s.stores.Users.ListUsers(c.Request().Context(), f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, users)
}

func (s *Server) getUser(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	user, err := s.stores.Users.GetUserByID(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

// updateUser edits a profile. Users edit their own name and handle; role
// and active flag are admin-only.
func (s *Server) updateUser(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var upd data.UserUpdate
	if err := c.Bind(&upd); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	claims := claimsOf(c)
	allowed, err := s.policy.Allow(c.Request().Context(), claims.Role, policy.ActionUsersManage)
	if err != nil {
		return err
	}
	if !allowed {
		if claims.UserID != id {
			return echo.NewHTTPError(http.StatusForbidden, "access denied")
		}
		if upd.Role != nil || upd.Active != nil {
			return echo.NewHTTPError(http.StatusForbidden, "only admins may change role or status")
		}
	}
	if upd.Role != nil && !upd.Role.Valid() {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown role")
	}
	if upd.Username != nil && normalize.Username(*upd.Username) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "username must not be empty")
	}

	user, err := s.stores.Users.UpdateUser(c.Request().Context(), id, upd)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}
