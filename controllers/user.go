package controllers

import (
	"context"
	"net/http"

	"panda-blog/client"
	"panda-blog/leaderboard"
	"panda-blog/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// UserStore is the part of the user model the handlers use
type UserStore interface {
	CreateUser(ctx context.Context, username string, email string, password string) (*models.User, error)
	Login(ctx context.Context, email string, password string) (*models.User, error)
	GetUser(ctx context.Context, id string) (*models.User, error)
	UpdateProfile(ctx context.Context, id string, callerID string, changes models.ProfileChanges) (*models.User, error)
	AddTokens(ctx context.Context, id string, amount int64) (*models.User, error)
	UpgradePremium(ctx context.Context, id string) (*models.User, error)
}

// TokenIssuer signs the credential handed out at registration and login
type TokenIssuer interface {
	CreateToken(userID string, email string) (string, error)
	SetCookie(w http.ResponseWriter, token string) error
}

// LeaderboardBuilder computes the ranking across the services
type LeaderboardBuilder interface {
	Build(ctx context.Context, limit int) ([]leaderboard.Entry, error)
}

// UserController serves the user service routes
type UserController struct {
	Users       UserStore
	Tokens      TokenIssuer
	Leaderboard LeaderboardBuilder
	// guards the internal routes, empty = open
	InternalKey string
	Log         *zap.Logger
}

type registerRequest struct {
	Username string `json:"username" binding:"required,min=3,max=30"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

// Registered is returned by registration and login
type Registered struct {
	User  models.UserInfo `json:"user"`
	Token string          `json:"token"`
}

// Register creates a user and signs its first token
func (ctl *UserController) Register(c *gin.Context) {
	var data registerRequest
	if err := bindJSON(c, &data); err != nil {
		fail(c, ctl.Log, err)
		return
	}

	user, err := ctl.Users.CreateUser(c.Request.Context(), data.Username, data.Email, data.Password)
	if err != nil {
		fail(c, ctl.Log, err)
		return
	}

	ctl.issue(c, http.StatusCreated, "User registered successfully", user)
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Login signs a new token for a registered user
func (ctl *UserController) Login(c *gin.Context) {
	var data loginRequest
	if err := bindJSON(c, &data); err != nil {
		fail(c, ctl.Log, err)
		return
	}

	user, err := ctl.Users.Login(c.Request.Context(), data.Email, data.Password)
	if err != nil {
		fail(c, ctl.Log, err)
		return
	}

	ctl.issue(c, http.StatusOK, "Login successful", user)
}

// issue signs the token of user and answers with it
func (ctl *UserController) issue(c *gin.Context, status int, message string, user *models.User) {
	token, err := ctl.Tokens.CreateToken(user.ID.Hex(), user.Email)
	if err != nil {
		fail(c, ctl.Log, err)
		return
	}
	// browsers may keep the token in the cookie instead
	if err := ctl.Tokens.SetCookie(c.Writer, token); err != nil {
		ctl.Log.Warn("session cookie not set", zap.String("userId", user.ID.Hex()), zap.Error(err))
	}

	ok(c, status, message, Registered{User: user.Info(), Token: token})
}

// GetProfile returns a user without the password
func (ctl *UserController) GetProfile(c *gin.Context) {
	user, err := ctl.Users.GetUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, ctl.Log, err)
		return
	}

	ok(c, http.StatusOK, "", user)
}

// UpdateProfile changes bio/avatar of the caller's own profile
func (ctl *UserController) UpdateProfile(c *gin.Context) {
	id, err := caller(c)
	if err != nil {
		fail(c, ctl.Log, err)
		return
	}

	var changes models.ProfileChanges
	if err = bindJSON(c, &changes); err != nil {
		fail(c, ctl.Log, err)
		return
	}

	user, err := ctl.Users.UpdateProfile(c.Request.Context(), c.Param("id"), id.UserID, changes)
	if err != nil {
		fail(c, ctl.Log, err)
		return
	}

	ok(c, http.StatusOK, "Profile updated successfully", user)
}

type tokensRequest struct {
	Amount int64  `json:"amount"`
	Reason string `json:"reason"`
}

// AddTokens credits tokens to the caller
func (ctl *UserController) AddTokens(c *gin.Context) {
	id, err := caller(c)
	if err != nil {
		fail(c, ctl.Log, err)
		return
	}

	// a malformed amount is treated like a missing one
	var data tokensRequest
	_ = c.ShouldBindJSON(&data)

	user, err := ctl.Users.AddTokens(c.Request.Context(), id.UserID, data.Amount)
	if err != nil {
		fail(c, ctl.Log, err)
		return
	}

	ok(c, http.StatusOK, "Tokens added successfully", user)
}

// UpgradePremium spends the premium price of the caller's tokens
func (ctl *UserController) UpgradePremium(c *gin.Context) {
	id, err := caller(c)
	if err != nil {
		fail(c, ctl.Log, err)
		return
	}

	user, err := ctl.Users.UpgradePremium(c.Request.Context(), id.UserID)
	if err != nil {
		fail(c, ctl.Log, err)
		return
	}

	ctl.Log.Info("user upgraded to premium", zap.String("userId", id.UserID))
	ok(c, http.StatusOK, "Upgraded to premium successfully", user)
}

// GetLeaderboard returns the computed ranking
func (ctl *UserController) GetLeaderboard(c *gin.Context) {
	limit := queryInt(c, "limit", leaderboard.DefaultLimit)

	entries, err := ctl.Leaderboard.Build(c.Request.Context(), int(limit))
	if err != nil {
		fail(c, ctl.Log, err)
		return
	}

	ok(c, http.StatusOK, "", entries)
}

// CreditTokens is the internal reward route used by the other services
func (ctl *UserController) CreditTokens(c *gin.Context) {
	if ctl.InternalKey != "" && c.GetHeader(client.HeaderInternalKey) != ctl.InternalKey {
		c.JSON(http.StatusForbidden, Response{Message: "Access denied"})
		return
	}

	var data tokensRequest
	_ = c.ShouldBindJSON(&data)

	user, err := ctl.Users.AddTokens(c.Request.Context(), c.Param("id"), data.Amount)
	if err != nil {
		fail(c, ctl.Log, err)
		return
	}

	ctl.Log.Info("tokens credited",
		zap.String("userId", c.Param("id")),
		zap.Int64("amount", data.Amount),
		zap.String("reason", data.Reason))
	ok(c, http.StatusOK, "Tokens added successfully", user)
}
