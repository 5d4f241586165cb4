package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func TestGenerateJWT(t *testing.T) {
	tests := []struct {
		name           string
		service        *JWTService
		userID         int
		expirationTime time.Time
		expectError    bool
	}{
		{
			name:           "Valid Token",
			service:        NewJWTService(testSecret),
			userID:         123,
			expirationTime: time.Now().Add(time.Hour),
		},
		{
			name:           "Expired Token is still signed",
			service:        NewJWTService(testSecret),
			userID:         123,
			expirationTime: time.Now().Add(-time.Hour),
		},
		{
			name:           "Missing secret",
			service:        NewJWTService(""),
			userID:         123,
			expirationTime: time.Now().Add(time.Hour),
			expectError:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := tt.service.GenerateJWT(tt.userID, "user", tt.expirationTime)

			if tt.expectError {
				assert.Error(t, err)
				assert.Empty(t, token)
			} else {
				assert.NoError(t, err)
				assert.NotEmpty(t, token)
			}
		})
	}
}

func TestValidateToken(t *testing.T) {
	jwtService := NewJWTService(testSecret)

	tests := []struct {
		name        string
		tokenString string
		setup       func() string
		expectError bool
		expectRole  string
	}{
		{
			name: "Valid Token",
			setup: func() string {
				token, _ := jwtService.GenerateJWT(123, "admin", time.Now().Add(time.Hour))
				return token
			},
			expectRole: "admin",
		},
		{
			name:        "Invalid Token",
			tokenString: "invalid.token.string",
			expectError: true,
		},
		{
			name: "Expired Token",
			setup: func() string {
				token, _ := jwtService.GenerateJWT(123, "user", time.Now().Add(-time.Hour))
				return token
			},
			expectError: true,
		},
		{
			name: "Signed with another secret",
			setup: func() string {
				token, _ := NewJWTService("other-secret").GenerateJWT(123, "admin", time.Now().Add(time.Hour))
				return token
			},
			expectError: true,
		},
		{
			name: "Invalid Claims Type",
			setup: func() string {
				token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.StandardClaims{
					ExpiresAt: time.Now().Add(time.Hour).Unix(),
					Issuer:    issuer,
				})
				signedToken, _ := token.SignedString([]byte(testSecret))
				return signedToken
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokenString := tt.tokenString
			if tt.setup != nil {
				tokenString = tt.setup()
			}

			claims, err := jwtService.ValidateToken(tokenString)

			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, claims)
			} else {
				require.NoError(t, err)
				assert.Equal(t, 123, claims.UserID)
				assert.Equal(t, tt.expectRole, claims.Role)
			}
		})
	}
}
