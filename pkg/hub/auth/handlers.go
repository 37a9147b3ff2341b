package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/datasociety/hub/pkg/hub/models"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// recentSubmissionLimit bounds the submissions listed on a member's profile.
const recentSubmissionLimit = 5

// Handler serves member accounts: registration, login and the member profile.
type Handler struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewHandler creates a new auth handler
func NewHandler(db *gorm.DB, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{db: db, logger: logger}
}

// RegisterRequest is the body of a member sign-up.
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Name     string `json:"name" binding:"required"`
}

// LoginRequest is the body of a password login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// AuthResponse carries a session token and the member it was issued to.
type AuthResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

// UserResponse is the public view of a member account.
type UserResponse struct {
	ID         uint   `json:"id"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	SystemRole string `json:"system_role"`
}

func userResponse(u models.User) UserResponse {
	return UserResponse{ID: u.ID, Email: u.Email, Name: u.Name, SystemRole: string(u.SystemRole)}
}

// SubmissionSummary describes what a member has added to the library.
type SubmissionSummary struct {
	Total    int64              `json:"total"`
	Featured int64              `json:"featured"`
	Recent   []RecentSubmission `json:"recent"`
}

// RecentSubmission is one of a member's latest resources.
type RecentSubmission struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	URL       string `json:"url"`
	DateAdded string `json:"date_added"`
}

// ProfileResponse is returned by /auth/me.
type ProfileResponse struct {
	UserResponse
	Submissions SubmissionSummary `json:"submissions"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (h *Handler) findByEmail(c *gin.Context, email string) (*models.User, error) {
	var users []models.User
	if err := h.db.WithContext(c.Request.Context()).Where("email = ?", email).Limit(1).Find(&users).Error; err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, nil
	}
	return &users[0], nil
}

// issue signs a token for u and writes it with status.
func (h *Handler) issue(c *gin.Context, status int, u models.User) {
	token, err := GenerateToken(u.ID, u.Email, string(u.SystemRole))
	if err != nil {
		h.logger.Error("token signing failed", zap.Uint("user_id", u.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}
	c.JSON(status, AuthResponse{Token: token, User: userResponse(u)})
}

// Register creates a member account. Members can submit resources; only the
// bootstrap admin or another admin can grant the admin role.
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	email := normalizeEmail(req.Email)

	existing, err := h.findByEmail(c, email)
	if err != nil {
		h.logger.Error("member lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		return
	}
	if existing != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Email already registered"})
		return
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		h.logger.Error("password hashing failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process password"})
		return
	}

	user := models.User{
		Email:        email,
		PasswordHash: hash,
		Name:         strings.TrimSpace(req.Name),
		SystemRole:   models.SystemRoleUser,
	}
	if err := h.db.WithContext(c.Request.Context()).Create(&user).Error; err != nil {
		h.logger.Error("member create failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		return
	}

	h.logger.Info("member registered", zap.Uint("user_id", user.ID))
	h.issue(c, http.StatusCreated, user)
}

// Login exchanges an email and password for a token.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.findByEmail(c, normalizeEmail(req.Email))
	if err != nil {
		h.logger.Error("member lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Login failed"})
		return
	}
	if user == nil || !CheckPassword(req.Password, user.PasswordHash) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}

	h.issue(c, http.StatusOK, *user)
}

// Me returns the caller's account and what they have submitted.
func (h *Handler) Me(c *gin.Context) {
	principal, ok := CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}
	db := h.db.WithContext(c.Request.Context())

	var user models.User
	err := db.First(&user, principal.ID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	if err != nil {
		h.logger.Error("member lookup failed", zap.Uint("user_id", principal.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load profile"})
		return
	}

	summary, err := submissionSummary(db, user.ID)
	if err != nil {
		h.logger.Error("submission summary failed", zap.Uint("user_id", user.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load profile"})
		return
	}

	c.JSON(http.StatusOK, ProfileResponse{UserResponse: userResponse(user), Submissions: summary})
}

func submissionSummary(db *gorm.DB, userID uint) (SubmissionSummary, error) {
	var s SubmissionSummary
	mine := db.Model(&models.Resource{}).Where("author_id = ?", userID)

	if err := mine.Session(&gorm.Session{}).Count(&s.Total).Error; err != nil {
		return s, err
	}
	if err := mine.Session(&gorm.Session{}).Where("featured = ?", true).Count(&s.Featured).Error; err != nil {
		return s, err
	}

	var recent []models.Resource
	err := mine.Session(&gorm.Session{}).
		Select("id", "title", "url", "created_at").
		Order("created_at DESC").Order("id ASC").
		Limit(recentSubmissionLimit).
		Find(&recent).Error
	if err != nil {
		return s, err
	}

	s.Recent = make([]RecentSubmission, len(recent))
	for i, r := range recent {
		s.Recent[i] = RecentSubmission{
			ID:        r.ID,
			Title:     r.Title,
			URL:       r.URL,
			DateAdded: r.CreatedAt.UTC().Format(time.DateOnly),
		}
	}
	return s, nil
}

// Logout is a no-op; tokens are dropped client side.
func (h *Handler) Logout(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}

// RegisterRoutes registers auth routes on the given router group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/register", h.Register)
	rg.POST("/login", h.Login)
	rg.POST("/logout", h.Logout)
	rg.GET("/me", AuthMiddleware(), h.Me)
}
