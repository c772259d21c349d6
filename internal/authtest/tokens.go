package authtest

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var errInvalidAccess = errors.New("invalid access token")

type accessClaims struct {
	SID string `json:"sid"`
	Gen int64  `json:"gen"`
	jwt.RegisteredClaims
}

type issuer struct {
	key    []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

func (i *issuer) issue(sid string, gen int64) (string, error) {
	now := i.now()
	claims := accessClaims{
		SID: sid,
		Gen: gen,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   sid,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.key)
}

func (i *issuer) parse(raw string) (*accessClaims, error) {
	claims := &accessClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return i.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil || !token.Valid {
		return nil, errInvalidAccess
	}
	if claims.SID == "" {
		return nil, errInvalidAccess
	}
	return claims, nil
}
