package rest

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"github.com/su225/networktables/logfield"
)

// rateLimit answers 429 once the limiter is exhausted
func (s *APIServer) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow() {
			logrus.WithFields(logrus.Fields{
				logfield.Component:          apiServer,
				logfield.Event:              "RATE-LIMITED",
				logfield.RequesterIPAddress: r.RemoteAddr,
			}).Warnf("rejecting request over the rate limit")
			writeError(w, http.StatusTooManyRequests, "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// authenticate requires an HS256 bearer token signed with
// JWTSecret when one is configured
func (s *APIServer) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.JWTSecret == "" {
			next.ServeHTTP(w, r)
			return
		}
		authorization := r.Header.Get("Authorization")
		tokenString := strings.TrimPrefix(authorization, "Bearer ")
		if tokenString == authorization || strings.TrimSpace(tokenString) == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		token, parseErr := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{},
			func(token *jwt.Token) (interface{}, error) {
				return []byte(s.JWTSecret), nil
			},
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		)
		if parseErr != nil || !token.Valid {
			reason := "invalid token"
			if parseErr != nil {
				reason = parseErr.Error()
			}
			logrus.WithFields(logrus.Fields{
				logfield.ErrorReason:        reason,
				logfield.Component:          apiServer,
				logfield.Event:              "AUTHENTICATE",
				logfield.RequesterIPAddress: r.RemoteAddr,
			}).Warnf("rejecting request with invalid token")
			writeError(w, http.StatusUnauthorized, "invalid bearer token")
			return
		}
		next.ServeHTTP(w, r)
	})
}
