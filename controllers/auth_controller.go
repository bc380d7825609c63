package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cppla/myblog/forms"
	"github.com/cppla/myblog/middleware"
	"github.com/cppla/myblog/models"
	"github.com/cppla/myblog/utils"
)

const tokenTTL = 24 * time.Hour

// AuthController handles admin sign-in and sign-out.
type AuthController struct {
	db *gorm.DB
}

// NewAuthController creates a new AuthController instance.
func NewAuthController(db *gorm.DB) *AuthController {
	return &AuthController{db: db}
}

// Login exchanges staff credentials for a bearer token.
func (a *AuthController) Login(ctx *gin.Context) {
	var req forms.LoginForm
	if errs := forms.Bind(ctx, &req); errs != nil {
		utils.Respond(ctx, http.StatusBadRequest, 40001, "invalid request payload", gin.H{"errors": errs})
		return
	}

	var user models.User
	if err := a.db.Where("username = ?", req.Username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusUnauthorized, 40107, "invalid username or password")
			return
		}
		utils.Sugar.Errorf("login: load user %q: %v", req.Username, err)
		utils.Error(ctx, http.StatusInternalServerError, 50015, "failed to load user")
		return
	}
	if !utils.CheckPassword(user.PasswordHash, req.Password) {
		utils.Error(ctx, http.StatusUnauthorized, 40107, "invalid username or password")
		return
	}
	if !middleware.IsStaff(user) {
		utils.Error(ctx, http.StatusForbidden, 40301, "staff access required")
		return
	}

	token, err := utils.GenerateToken(user.ID, user.Username, true, tokenTTL)
	if err != nil {
		utils.Sugar.Errorf("login: sign token: %v", err)
		utils.Error(ctx, http.StatusInternalServerError, 50016, "failed to generate token")
		return
	}
	utils.Sugar.Infof("admin login user=%s ip=%s", user.Username, ctx.ClientIP())
	utils.Success(ctx, gin.H{
		"token":      token,
		"expires_at": time.Now().Add(tokenTTL),
		"user":       user,
	})
}

// Logout revokes the presented token until it would have expired.
func (a *AuthController) Logout(ctx *gin.Context) {
	token := ctx.GetString(middleware.ContextTokenKey)
	expiresAt := time.Now().Add(tokenTTL)
	if claims, ok := ctx.Get(middleware.ContextClaimsKey); ok {
		if c, ok := claims.(*utils.Claims); ok && c.ExpiresAt != nil {
			expiresAt = c.ExpiresAt.Time
		}
	}
	utils.BlacklistToken(token, expiresAt)
	utils.Success(ctx, gin.H{"message": "logged out"})
}

// Me returns the signed-in staff user.
func (a *AuthController) Me(ctx *gin.Context) {
	user, ok := ctx.Get(middleware.ContextUserKey)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	utils.Success(ctx, gin.H{"user": user})
}
