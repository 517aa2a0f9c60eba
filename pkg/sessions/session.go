// Package sessions verifies account session tokens. A token is
// base64(msgpack([session id, refreshed at])) "." base64(hmac-sha256 of the
// claims), signed with the key stored in the config collection.
package sessions

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strings"
	"time"

	"github.com/meower-media/feed/pkg/db"
	"github.com/meower-media/feed/pkg/meowid"
	"github.com/vmihailenco/msgpack/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Tokens stop working 21 days after the session was last refreshed.
const TokenLifetime = time.Hour * 24 * 21

var (
	ErrInvalidTokenFormat    = errors.New("invalid token format")
	ErrInvalidTokenSignature = errors.New("invalid token signature")
	ErrTokenExpired          = errors.New("token expired")
	ErrSessionNotFound       = errors.New("session not found")
)

var SigningKey []byte

type AccSession struct {
	Id          meowid.MeowID `bson:"_id"`
	UserId      meowid.MeowID `bson:"user"`
	RefreshedAt int64         `bson:"refreshed"`
}

type Claims struct {
	SessionId   meowid.MeowID
	RefreshedAt int64
}

// InitSigningKey loads the session signing key, creating one on first run.
func InitSigningKey(ctx context.Context) error {
	var signingKeys struct {
		Id  string `bson:"_id"`
		Acc []byte `bson:"acc"`
	}
	err := db.Config.FindOne(ctx, bson.M{"_id": "signing_keys"}).Decode(&signingKeys)
	if err == mongo.ErrNoDocuments {
		signingKeys.Id = "signing_keys"
		signingKeys.Acc = make([]byte, 64)
		if _, err := rand.Read(signingKeys.Acc); err != nil {
			return err
		}
		if _, err := db.Config.InsertOne(ctx, signingKeys); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	SigningKey = signingKeys.Acc
	return nil
}

func SignToken(key []byte, claims Claims) (string, error) {
	marshaled, err := msgpack.Marshal([]int64{claims.SessionId, claims.RefreshedAt})
	if err != nil {
		return "", err
	}

	h := hmac.New(sha256.New, key)
	h.Write(marshaled)

	return base64.URLEncoding.EncodeToString(marshaled) + "." + base64.URLEncoding.EncodeToString(h.Sum(nil)), nil
}

// ParseToken checks a token's signature and age and returns its claims.
func ParseToken(key []byte, token string, now time.Time) (Claims, error) {
	var claims Claims

	// Split token into claims and signature
	parts := strings.Split(token, ".")
	if len(parts) != 2 {
		return claims, ErrInvalidTokenFormat
	}
	marshaled, err := base64.URLEncoding.DecodeString(parts[0])
	if err != nil {
		return claims, ErrInvalidTokenFormat
	}
	signature, err := base64.URLEncoding.DecodeString(parts[1])
	if err != nil {
		return claims, ErrInvalidTokenFormat
	}

	// Check signature
	h := hmac.New(sha256.New, key)
	h.Write(marshaled)
	if !hmac.Equal(signature, h.Sum(nil)) {
		return claims, ErrInvalidTokenSignature
	}

	// Decode claims
	var decoded []int64
	if err := msgpack.Unmarshal(marshaled, &decoded); err != nil || len(decoded) != 2 {
		return claims, ErrInvalidTokenFormat
	}
	claims.SessionId = decoded[0]
	claims.RefreshedAt = decoded[1]

	// Make sure the token hasn't expired
	if now.Sub(time.UnixMilli(claims.RefreshedAt)) > TokenLifetime {
		return claims, ErrTokenExpired
	}

	return claims, nil
}

func GetSession(ctx context.Context, id meowid.MeowID) (AccSession, error) {
	var s AccSession
	err := db.AccSessions.FindOne(ctx, bson.M{"_id": id}).Decode(&s)
	if err == mongo.ErrNoDocuments {
		err = ErrSessionNotFound
	}
	return s, err
}

// Verify returns the id of the user a token was issued to.
func Verify(ctx context.Context, token string) (meowid.MeowID, error) {
	claims, err := ParseToken(SigningKey, token, time.Now())
	if err != nil {
		return 0, err
	}

	s, err := GetSession(ctx, claims.SessionId)
	if err != nil {
		return 0, err
	}

	return s.UserId, nil
}
