package http

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

// LearnerResolver extracts the learner identity for a connection. Token
// issuance is owned by the external auth collaborator; this only reads the
// subject claim from an HS256 token. With no secret configured it falls back
// to a caller-supplied ID, which keeps local runs tokenless.
type LearnerResolver struct {
	secret []byte
}

func NewLearnerResolver(secret string) *LearnerResolver {
	return &LearnerResolver{secret: []byte(secret)}
}

var errNoLearner = errors.New("missing or invalid learner identity")

func (r *LearnerResolver) Resolve(tokenStr, fallbackID string) (string, error) {
	if len(r.secret) == 0 {
		if fallbackID == "" {
			return "", errNoLearner
		}
		return fallbackID, nil
	}
	if tokenStr == "" {
		return "", errNoLearner
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return r.secret, nil
	})
	if err != nil || !token.Valid || claims.Subject == "" {
		return "", errNoLearner
	}
	return claims.Subject, nil
}
