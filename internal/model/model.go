package model

import (
	"context"
	"time"
)

// UserRole represents a user's access level.
type UserRole string

const (
	// UserRoleStudent is a student user role.
	UserRoleStudent UserRole = "student"
	// UserRoleAdmin is an admin user role.
	UserRoleAdmin UserRole = "admin"
)

// Valid reports whether r is a known role.
func (r UserRole) Valid() bool {
	return r == UserRoleStudent || r == UserRoleAdmin
}

// DefaultAvatar is the avatar reference given to new accounts.
const DefaultAvatar = "default.png"

// User represents a registered account.
type User struct {
	ID           int64
	Username     string
	Nickname     string
	Avatar       string
	PasswordHash string
	Role         UserRole
	Active       bool
	CreatedAt    time.Time
	ExpiresAt    *time.Time
}

// Expired reports whether the account is past its expiry at now.
func (u *User) Expired(now time.Time) bool {
	return u.ExpiresAt != nil && now.After(*u.ExpiresAt)
}

// Identity is the authenticated principal attached to a live session.
type Identity struct {
	Username string
	Role     UserRole
}

// IsAdmin reports whether the identity carries the admin role.
func (i Identity) IsAdmin() bool { return i.Role == UserRoleAdmin }

type identityCtxKey struct{}

// ContextWithIdentity stores the session identity in the request context.
func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityCtxKey{}, id)
}

// IdentityFromContext retrieves the session identity from context.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityCtxKey{}).(Identity)
	return id, ok
}

type userCtxKey struct{}

// ContextWithUser stores a user in the request context.
func ContextWithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userCtxKey{}, u)
}

// UserFromContext retrieves the authenticated user from context, or nil.
func UserFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(userCtxKey{}).(*User)
	return u
}

type tokenCtxKey struct{}

// ContextWithSessionToken stores the raw session token in context.
func ContextWithSessionToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenCtxKey{}, token)
}

// SessionTokenFromContext retrieves the session token from context.
func SessionTokenFromContext(ctx context.Context) string {
	t, _ := ctx.Value(tokenCtxKey{}).(string)
	return t
}

type basePathCtxKey struct{}

// ContextWithBasePath stores the base path prefix in context.
func ContextWithBasePath(ctx context.Context, basePath string) context.Context {
	return context.WithValue(ctx, basePathCtxKey{}, basePath)
}

// BasePathFromContext retrieves the base path from context (empty string if not set).
func BasePathFromContext(ctx context.Context) string {
	bp, _ := ctx.Value(basePathCtxKey{}).(string)
	return bp
}

type csrfCtxKey struct{}

// ContextWithCSRFToken stores the CSRF token in context.
func ContextWithCSRFToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, csrfCtxKey{}, token)
}

// CSRFTokenFromContext retrieves the CSRF token from context.
func CSRFTokenFromContext(ctx context.Context) string {
	t, _ := ctx.Value(csrfCtxKey{}).(string)
	return t
}

// Option is a multiple-choice option letter.
type Option string

const (
	OptionA Option = "A"
	OptionB Option = "B"
	OptionC Option = "C"
	OptionD Option = "D"
)

// Options lists the option letters in display order.
var Options = []Option{OptionA, OptionB, OptionC, OptionD}

// Valid reports whether o is one of A-D.
func (o Option) Valid() bool {
	switch o {
	case OptionA, OptionB, OptionC, OptionD:
		return true
	}
	return false
}

// Question is a multiple-choice quiz question.
type Question struct {
	ID      int64  `json:"id" yaml:"-"`
	Content string `json:"content" yaml:"content" validate:"required"`
	OptionA string `json:"option_a" yaml:"option_a" validate:"required"`
	OptionB string `json:"option_b" yaml:"option_b" validate:"required"`
	OptionC string `json:"option_c" yaml:"option_c" validate:"required"`
	OptionD string `json:"option_d" yaml:"option_d" validate:"required"`
	Correct Option `json:"correct" yaml:"correct" validate:"required,oneof=A B C D"`
}

// OptionText returns the text of the given option letter.
func (q Question) OptionText(o Option) string {
	switch o {
	case OptionA:
		return q.OptionA
	case OptionB:
		return q.OptionB
	case OptionC:
		return q.OptionC
	case OptionD:
		return q.OptionD
	}
	return ""
}

// PublicQuestion is a question as shown to students, without the answer key.
type PublicQuestion struct {
	ID      int64             `json:"id"`
	Content string            `json:"content"`
	Options map[Option]string `json:"options"`
}

// Public strips the answer key.
func (q Question) Public() PublicQuestion {
	opts := make(map[Option]string, len(Options))
	for _, o := range Options {
		opts[o] = q.OptionText(o)
	}
	return PublicQuestion{ID: q.ID, Content: q.Content, Options: opts}
}

// Answer is the latest recorded answer of a user to one question.
type Answer struct {
	Username   string    `json:"username"`
	QuestionID int64     `json:"question_id"`
	Selected   Option    `json:"selected"`
	IsCorrect  bool      `json:"is_correct"`
	AnsweredAt time.Time `json:"answered_at"`
}

// Video is an uploaded instructional video.
type Video struct {
	ID         int64     `json:"id"`
	Title      string    `json:"title"`
	Filename   string    `json:"filename"`
	UploadedBy string    `json:"uploaded_by"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// Progress is a user's watch progress marker for one video.
type Progress struct {
	Username  string    `json:"username"`
	VideoID   int64     `json:"video_id"`
	Marker    string    `json:"progress"`
	UpdatedAt time.Time `json:"updated_at"`
}

// VideoProgress joins a progress marker with its video title.
type VideoProgress struct {
	VideoID int64  `json:"video_id"`
	Title   string `json:"title"`
	Marker  string `json:"progress"`
}

// AppConfig holds runtime parameters set via CLI flags.
type AppConfig struct {
	DataDir       string
	BasePath      string // URL prefix for sub-path deployments
	SecureCookies bool   // Set Secure flag on cookies (disable for local dev)
	SessionTTL    time.Duration
	AccountTTL    time.Duration // 0 means accounts never expire
	MaxUploadMB   int64
	CORSOrigins   []string
}
