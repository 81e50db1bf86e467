package auth

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

// TicketTokenManager issues and validates ticket-scoped access tokens. A
// token is handed out with the created ticket and lets the requester read
// the ticket and post to its conversation without a full user session.
type TicketTokenManager struct {
	secret []byte
	ttl    time.Duration
}

// NewTicketTokenManager builds a manager. An empty secret disables token
// enforcement.
func NewTicketTokenManager(secret string, ttlMinutes int) *TicketTokenManager {
	if secret == "" {
		return nil
	}
	if ttlMinutes <= 0 {
		ttlMinutes = 1440
	}
	return &TicketTokenManager{secret: []byte(secret), ttl: time.Duration(ttlMinutes) * time.Minute}
}

// TicketClaims describes the JWT payload.
type TicketClaims struct {
	TicketID string `json:"ticket_id"`
	jwt.RegisteredClaims
}

// Issue builds and signs a token scoped to one ticket.
func (tm *TicketTokenManager) Issue(ticketID, requesterEmail string) (string, time.Time, error) {
	expiresAt := time.Now().Add(tm.ttl)
	claims := &TicketClaims{
		TicketID: ticketID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   requesterEmail,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// Verify validates a token and confirms it is scoped to the given ticket.
func (tm *TicketTokenManager) Verify(tokenStr, ticketID string) (*TicketClaims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &TicketClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return tm.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*TicketClaims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token claims")
	}
	if claims.TicketID != ticketID {
		return nil, errors.New("token not scoped to ticket")
	}
	return claims, nil
}
