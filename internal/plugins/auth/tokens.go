package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
)

// Redis key prefixes. A session record points at its current refresh
// token; each refresh token points back at its session so rotation and
// revocation are both single lookups.
const (
	sessionKeyPrefix  = "auth:session:"
	refreshKeyPrefix  = "auth:refresh:"
	recoveryKeyPrefix = "auth:recovery:"
)

// opaqueTokenBytes is the entropy of refresh and recovery tokens.
const opaqueTokenBytes = 32

var errTokenNotFound = errors.New("token not found or expired")

// accessTokens signs and verifies HS256 access tokens.
type accessTokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func (a accessTokens) sign(userID, email, sessionID string) (string, time.Time, error) {
	now := a.now()
	exp := now.Add(a.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Email:     email,
		SessionID: sessionID,
	})
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing access token: %w", err)
	}
	return signed, exp, nil
}

func (a accessTokens) parse(raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	if claims.Subject == "" || claims.SessionID == "" {
		return nil, errors.New("access token missing subject or session")
	}
	return claims, nil
}

// tokenStore keeps refresh sessions and recovery tokens in Redis.
type tokenStore struct {
	rdb         *redis.Client
	refreshTTL  time.Duration
	recoveryTTL time.Duration
}

// createSession stores a new session and returns its refresh token.
func (s tokenStore) createSession(ctx context.Context, sessionID, userID, email string) (string, error) {
	refresh, err := newOpaqueToken()
	if err != nil {
		return "", err
	}
	rec := sessionRecord{UserID: userID, Email: email, RefreshToken: refresh}
	if err := s.writeSession(ctx, sessionID, rec); err != nil {
		return "", err
	}
	return refresh, nil
}

func (s tokenStore) writeSession(ctx context.Context, sessionID string, rec sessionRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}
	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, sessionKeyPrefix+sessionID, data, s.refreshTTL)
		p.Set(ctx, refreshKeyPrefix+rec.RefreshToken, sessionID, s.refreshTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("storing session: %w", err)
	}
	return nil
}

func (s tokenStore) session(ctx context.Context, sessionID string) (*sessionRecord, error) {
	data, err := s.rdb.Get(ctx, sessionKeyPrefix+sessionID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, errTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading session: %w", err)
	}
	var rec sessionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decoding session: %w", err)
	}
	return &rec, nil
}

// sessionExists is the per-request revocation check for access tokens.
func (s tokenStore) sessionExists(ctx context.Context, sessionID string) (bool, error) {
	n, err := s.rdb.Exists(ctx, sessionKeyPrefix+sessionID).Result()
	if err != nil {
		return false, fmt.Errorf("checking session: %w", err)
	}
	return n == 1, nil
}

// rotate consumes a refresh token and issues its replacement. A rotated
// token is deleted, so presenting it again finds nothing.
func (s tokenStore) rotate(ctx context.Context, refresh string) (string, *sessionRecord, error) {
	sessionID, err := s.rdb.GetDel(ctx, refreshKeyPrefix+refresh).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil, errTokenNotFound
	}
	if err != nil {
		return "", nil, fmt.Errorf("consuming refresh token: %w", err)
	}

	rec, err := s.session(ctx, sessionID)
	if err != nil {
		return "", nil, err
	}
	if rec.RefreshToken != refresh {
		return "", nil, errTokenNotFound
	}

	next, err := newOpaqueToken()
	if err != nil {
		return "", nil, err
	}
	rec.RefreshToken = next
	if err := s.writeSession(ctx, sessionID, *rec); err != nil {
		return "", nil, err
	}
	return sessionID, rec, nil
}

// revoke deletes a session and its current refresh token.
func (s tokenStore) revoke(ctx context.Context, sessionID string) error {
	rec, err := s.session(ctx, sessionID)
	if errors.Is(err, errTokenNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := s.rdb.Del(ctx, sessionKeyPrefix+sessionID, refreshKeyPrefix+rec.RefreshToken).Err(); err != nil {
		return fmt.Errorf("revoking session: %w", err)
	}
	return nil
}

// createRecovery stores a single-use recovery token for userID.
func (s tokenStore) createRecovery(ctx context.Context, userID string) (string, error) {
	token, err := newOpaqueToken()
	if err != nil {
		return "", err
	}
	if err := s.rdb.Set(ctx, recoveryKeyPrefix+token, userID, s.recoveryTTL).Err(); err != nil {
		return "", fmt.Errorf("storing recovery token: %w", err)
	}
	return token, nil
}

// consumeRecovery returns the user id for token and deletes it.
func (s tokenStore) consumeRecovery(ctx context.Context, token string) (string, error) {
	userID, err := s.rdb.GetDel(ctx, recoveryKeyPrefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return "", errTokenNotFound
	}
	if err != nil {
		return "", fmt.Errorf("consuming recovery token: %w", err)
	}
	return userID, nil
}

func newOpaqueToken() (string, error) {
	b := make([]byte, opaqueTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
