package service

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/bakate/aeroreserve/internal/domain"
)

// ManageTokenService issues and validates the signed links a passenger
// uses to view or cancel a booking without an account.
type ManageTokenService interface {
	// Issue signs a manage token for the booking
	Issue(bookingID string, pnr domain.PnrCode) (string, time.Time, error)

	// Validate parses a manage token and checks it names the booking
	Validate(token, bookingID string) (*ManageTokenClaims, error)
}

// ManageTokenClaims represents the claims of a manage-booking JWT
type ManageTokenClaims struct {
	BookingID string `json:"booking_id"`
	PnrCode   string `json:"pnr_code"`
	Purpose   string `json:"purpose"`
	jwt.RegisteredClaims
}

const manageTokenPurpose = "manage_booking"

// ManageTokenConfig contains configuration for the manage token service
type ManageTokenConfig struct {
	// Secret signs the tokens. Required.
	Secret string
	// TTL is how long an issued token stays valid (default: 24 hours)
	TTL time.Duration
	// Issuer names this deployment in the token (default: "aeroreserve")
	Issuer string
}

// manageTokenService implements ManageTokenService
type manageTokenService struct {
	secret []byte
	ttl    time.Duration
	issuer string
}

// NewManageTokenService creates a new manage token service
func NewManageTokenService(cfg *ManageTokenConfig) ManageTokenService {
	ttl := 24 * time.Hour
	issuer := "aeroreserve"
	secret := ""

	if cfg != nil {
		if cfg.TTL > 0 {
			ttl = cfg.TTL
		}
		if cfg.Issuer != "" {
			issuer = cfg.Issuer
		}
		secret = cfg.Secret
	}

	if secret == "" {
		panic("ManageTokenConfig.Secret is required")
	}

	return &manageTokenService{
		secret: []byte(secret),
		ttl:    ttl,
		issuer: issuer,
	}
}

// Issue signs a manage token for the booking
func (s *manageTokenService) Issue(bookingID string, pnr domain.PnrCode) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(s.ttl)

	claims := ManageTokenClaims{
		BookingID: bookingID,
		PnrCode:   string(pnr),
		Purpose:   manageTokenPurpose,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			Subject:   bookingID,
			ID:        generateTokenID(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign manage token: %w", err)
	}

	return signedToken, expiresAt, nil
}

// Validate parses a manage token and checks it names the booking
func (s *manageTokenService) Validate(tokenStr, bookingID string) (*ManageTokenClaims, error) {
	if tokenStr == "" {
		return nil, domain.ErrInvalidManageToken
	}

	token, err := jwt.ParseWithClaims(tokenStr, &ManageTokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, domain.ErrInvalidManageToken
	}

	claims, ok := token.Claims.(*ManageTokenClaims)
	if !ok || !token.Valid {
		return nil, domain.ErrInvalidManageToken
	}

	if claims.Purpose != manageTokenPurpose {
		return nil, domain.ErrInvalidManageToken
	}
	if claims.BookingID != bookingID {
		return nil, domain.ErrManageTokenMismatch
	}

	return claims, nil
}

// generateTokenID generates a random JWT ID
func generateTokenID() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return hex.EncodeToString([]byte(time.Now().String()))[:32]
	}
	return hex.EncodeToString(bytes)
}
