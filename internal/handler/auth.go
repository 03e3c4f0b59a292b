package handler

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sysu-ecnc-dev/squad-optimizer/backend/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

const tokenCookieName = "__squad_optimizer_token"

var errBadCredentials = errors.New("用户名不存在或密码错误")

type AuthClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// caller 当前请求的登录用户，由 auth 中间件从令牌中解析
type caller struct {
	ID   int64
	Role domain.Role
}

func (c *caller) isAdmin() bool {
	return c.Role == domain.RoleAdmin
}

// canAccess 管理员可以查看所有优化任务，其他人只能查看自己提交的
func (c *caller) canAccess(run *domain.OptimizationRun) bool {
	return c.isAdmin() || run.RequesterID == c.ID
}

func callerFrom(r *http.Request) *caller {
	return r.Context().Value(CallerCtx).(*caller)
}

func (h *Handler) issueToken(user *domain.User, now time.Time) (string, time.Time, error) {
	expiresAt := now.Add(time.Duration(h.config.JWT.Expiration) * time.Hour)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, AuthClaims{
		Role: string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(user.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})

	signed, err := token.SignedString([]byte(h.config.JWT.Secret))
	return signed, expiresAt, err
}

func (h *Handler) parseToken(tokenString string) (*caller, error) {
	claims := &AuthClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return []byte(h.config.JWT.Secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("令牌中的用户 ID 无效: %w", err)
	}

	return &caller{ID: id, Role: domain.Role(claims.Role)}, nil
}

func (h *Handler) tokenCookie(value string, expires time.Time) *http.Cookie {
	cookie := &http.Cookie{
		Name:     tokenCookieName,
		Value:    value,
		Expires:  expires,
		Path:     "/",
		HttpOnly: true,
	}
	if h.config.Environment == "production" {
		cookie.Secure = true
		cookie.SameSite = http.SameSiteStrictMode
	}
	return cookie
}

// authenticate 校验用户名和密码，失败时统一返回 errBadCredentials，不区分是哪一项错误
func (h *Handler) authenticate(username, password string) (*domain.User, error) {
	user, err := h.repository.GetUserByUsername(username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errBadCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, errBadCredentials
		}
		return nil, err
	}

	return user, nil
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}
	if err := h.decode(w, r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	user, err := h.authenticate(req.Username, req.Password)
	switch {
	case errors.Is(err, errBadCredentials):
		h.errorResponse(w, r, err.Error())
		return
	case err != nil:
		h.internalServerError(w, r, err)
		return
	case !user.IsActive:
		h.errorResponse(w, r, "账号已停用")
		return
	}

	token, expiresAt, err := h.issueToken(user, time.Now())
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	http.SetCookie(w, h.tokenCookie(token, expiresAt))
	h.successResponse(w, r, "登录成功", user)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, h.tokenCookie("", time.Unix(0, 0)))
	h.successResponse(w, r, "登出成功", nil)
}
