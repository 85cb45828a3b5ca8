// internal/utils/jwt.go
package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

const (
	UserTypeAdmin     = "admin"
	UserTypeAffiliate = "affiliate"

	jwtIssuer = "commission-backend"
)

// JWTClaims are issued by the account service. Affiliate tokens carry the
// affiliate the caller acts as.
type JWTClaims struct {
	UserID      string `json:"user_id"`
	UserType    string `json:"user_type"`
	AffiliateID string `json:"affiliate_id,omitempty"`
	jwt.RegisteredClaims
}

var jwtSecret = []byte("your-secret-key-change-in-production")

func SetJWTSecret(secret string) {
	jwtSecret = []byte(secret)
}

func GenerateJWT(userID, userType, affiliateID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := JWTClaims{
		UserID:      userID,
		UserType:    userType,
		AffiliateID: affiliateID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    jwtIssuer,
			Subject:   userID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecret)
}

func ValidateJWT(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return jwtSecret, nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid {
		if claims.UserType != UserTypeAdmin && claims.UserType != UserTypeAffiliate {
			return nil, errors.New("unknown user type")
		}
		return claims, nil
	}

	return nil, errors.New("invalid token")
}
