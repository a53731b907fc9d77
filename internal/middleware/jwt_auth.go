package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"firebase.google.com/go/v4/auth"
	"github.com/anonto42/postacad/backend/internal/models"
	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
)

// Context keys set by JWTAuthMiddleware
const (
	ContextUser   = "user"
	ContextUserID = "userID"
)

// IDTokenVerifier verifies Firebase ID tokens; *auth.Client satisfies it
type IDTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// FirebaseUserLookup maps a Firebase UID to the local account
type FirebaseUserLookup interface {
	GetUserByFirebaseUID(ctx context.Context, firebaseUID string) (*models.User, error)
}

// JWTAuthMiddleware checks for a valid local JWT and extracts user claims. When the token is
// not a local JWT and a verifier is given, it is tried as a Firebase ID token of a user who
// already signed in through /auth/firebase-login.
func JWTAuthMiddleware(secret string, verifier IDTokenVerifier, users FirebaseUserLookup) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tokenString, err := bearerToken(c.Request().Header.Get("Authorization"))
			if err != nil {
				return err
			}

			claims, jwtErr := parseLocalToken(tokenString, secret)
			if jwtErr != nil {
				if verifier == nil || users == nil {
					return jwtErr
				}
				claims, err = firebaseClaims(c.Request().Context(), tokenString, verifier, users)
				if err != nil {
					return jwtErr
				}
			}

			c.Set(ContextUser, claims)
			c.Set(ContextUserID, claims.UserID)
			return next(c)
		}
	}
}

func bearerToken(header string) (string, error) {
	if header == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "Missing Authorization header")
	}
	// Expecting "Bearer <token>"
	parts := strings.Split(header, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || parts[1] == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "Invalid Authorization header format")
	}
	return parts[1], nil
}

func parseLocalToken(tokenString, secret string) (*models.JwtCustomClaims, error) {
	claims := &models.JwtCustomClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, echo.NewHTTPError(http.StatusUnauthorized, "Unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrSignatureInvalid) {
			return nil, echo.NewHTTPError(http.StatusUnauthorized, "Invalid token signature")
		}
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
	}
	if !token.Valid || claims.UserID == 0 {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
	}
	return claims, nil
}

func firebaseClaims(ctx context.Context, idToken string, verifier IDTokenVerifier, users FirebaseUserLookup) (*models.JwtCustomClaims, error) {
	token, err := verifier.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, err
	}
	user, err := users.GetUserByFirebaseUID(ctx, token.UID)
	if err != nil {
		return nil, err
	}
	return &models.JwtCustomClaims{UserID: user.ID, Email: user.Email}, nil
}
