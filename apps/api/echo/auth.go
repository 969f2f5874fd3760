package echoapi

import (
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/examroutine/core"
	"github.com/trezcool/examroutine/core/exam"
)

const (
	contextTokenKey = "userToken"
	contextExamKey  = "exam"
)

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	Username  string `json:"username,omitempty"`
	SchoolID  string `json:"school_id"`
	IsTeacher bool   `json:"is_teacher,omitempty"` // -> TEACHER PORTAL
	IsAdmin   bool   `json:"is_admin,omitempty"`   // -> ADMIN PORTAL
}

// Actor is the engine actor the claims stand for.
func (c Claims) Actor() exam.Actor {
	return exam.Actor{
		ID:        c.Subject,
		Username:  c.Username,
		SchoolID:  c.SchoolID,
		IsAdmin:   c.IsAdmin,
		IsTeacher: c.IsTeacher,
	}
}

func jwtConfig(conf *core.Config) middleware.JWTConfig {
	return middleware.JWTConfig{
		SigningKey:    []byte(conf.SecretKey),
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    contextTokenKey,
		Claims:        new(Claims),
	}
}

func NewClaims(actor exam.Actor, conf *core.Config) *Claims {
	now := time.Now()
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    conf.AppName,
			Subject:   actor.ID,
			ExpiresAt: now.Add(conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  now.Unix(),
		},
		Username:  actor.Username,
		SchoolID:  actor.SchoolID,
		IsTeacher: actor.IsTeacher,
		IsAdmin:   actor.IsAdmin,
	}
}

// GenerateToken generates a signed JWT token string representing the Claims.
func GenerateToken(claims *Claims, conf *core.Config) (string, error) {
	method := jwt.GetSigningMethod(middleware.AlgorithmHS256)
	token := jwt.NewWithClaims(method, claims)

	ss, err := token.SignedString([]byte(conf.SecretKey))
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(contextTokenKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

func getContextActor(ctx echo.Context) (exam.Actor, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return exam.Actor{}, err
	}
	return claims.Actor(), nil
}

func getContextExam(ctx echo.Context) (exam.Exam, error) {
	if ex, ok := ctx.Get(contextExamKey).(exam.Exam); ok {
		return ex, nil
	}
	return exam.Exam{}, errors.Wrap(errExamNotFoundInCtx, "retrieving exam from context")
}
