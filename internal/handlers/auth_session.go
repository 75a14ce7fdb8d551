package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront/internal/database"
	"storefront/internal/middleware"
	"storefront/internal/models"
)

// SessionConfig holds the secrets for exchanging identity-provider tokens
// for session tokens.
type SessionConfig struct {
	JWTSecret       string
	SessionTTL      time.Duration
	IdentitySecret  string
	IdentityIssuer  string
	UseTransactions bool
}

type sessionRequest struct {
	IDToken string `json:"idToken" binding:"required"`
}

// identityClaims are the fields read from a provider ID token. The subject
// is the provider uid.
type identityClaims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	jwt.RegisteredClaims
}

var errMissingSubject = errors.New("identity token has no subject")

func verifyIdentityToken(raw, secret, issuer string) (*identityClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}

	claims := &identityClaims{}
	if _, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, opts...); err != nil {
		return nil, err
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, errMissingSubject
	}
	return claims, nil
}

func issueSessionToken(user models.User, secret string, ttl time.Duration) (string, time.Time, error) {
	expiresAt := time.Now().Add(ttl)
	claims := jwt.MapClaims{
		"uid":     user.UID,
		"email":   user.Email,
		"role":    user.Role,
		"isAdmin": user.IsAdmin,
		"iat":     time.Now().Unix(),
		"exp":     expiresAt.Unix(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// upsertUser creates the user on first sign-in and refreshes email, name
// and last login otherwise.
func upsertUser(ctx context.Context, db *mongo.Database, uid, email, name string) (models.User, error) {
	now := time.Now()
	set := bson.M{"email": email, "lastLoginAt": now}
	setOnInsert := bson.M{
		"createdAt": now,
		"isAdmin":   false,
		"role":      models.RoleCustomer,
	}
	if name != "" {
		set["displayName"] = name
	} else {
		setOnInsert["displayName"] = ""
	}

	var user models.User
	err := db.Collection("users").FindOneAndUpdate(ctx,
		bson.M{"uid": uid},
		bson.M{"$set": set, "$setOnInsert": setOnInsert},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&user)
	return user, err
}

// consumeInvite promotes the user when a pending invite exists for the
// email and deletes the invite, both in one transaction when enabled.
func consumeInvite(ctx context.Context, db *mongo.Database, useTxn bool, uid, email string) (bool, error) {
	if email == "" {
		return false, nil
	}

	promoted := false
	err := database.WithTransaction(ctx, db, useTxn, func(ctx context.Context) error {
		promoted = false
		result, err := db.Collection("admin_invites").DeleteOne(ctx,
			bson.M{"_id": email, "status": models.InviteStatusPending})
		if err != nil {
			return err
		}
		if result.DeletedCount == 0 {
			return nil
		}

		if _, err := db.Collection("users").UpdateOne(ctx,
			bson.M{"uid": uid},
			bson.M{"$set": bson.M{"isAdmin": true, "role": models.RoleAdmin}},
		); err != nil {
			return err
		}
		promoted = true
		return nil
	})
	return promoted, err
}

/*
POST /auth/session
- verifies the provider ID token, creates the user if needed, applies a pending admin invite and returns a session token
*/
func CreateSession(db *mongo.Database, cfg SessionConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/auth/session"
		defer handlePanic(c, route)

		var req sessionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		identity, err := verifyIdentityToken(strings.TrimSpace(req.IDToken), cfg.IdentitySecret, cfg.IdentityIssuer)
		if err != nil {
			logger.WithError(err).Info("identity token rejected")
			respondWithError(c, http.StatusUnauthorized, route, "invalid identity token")
			return
		}

		uid := strings.TrimSpace(identity.Subject)
		email := strings.ToLower(strings.TrimSpace(identity.Email))

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		user, err := upsertUser(ctx, db, uid, email, strings.TrimSpace(identity.Name))
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		promoted, err := consumeInvite(ctx, db, cfg.UseTransactions, uid, email)
		if err != nil {
			logger.WithError(err).WithField("uid", uid).Warn("admin invite could not be applied")
		}
		if promoted {
			user.IsAdmin = true
			user.Role = models.RoleAdmin
			logger.WithField("uid", uid).Info("admin invite consumed")
		}

		token, expiresAt, err := issueSessionToken(user, cfg.JWTSecret, cfg.SessionTTL)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "token generation failed")
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"token":     token,
			"expiresAt": expiresAt,
			"user":      user,
		})
	}
}

/*
GET /auth/me
*/
func GetMe(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/auth/me"

		uid := c.GetString(middleware.UIDKey)
		if uid == "" {
			respondWithError(c, http.StatusUnauthorized, route, "unauthorized")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		var user models.User
		err := db.Collection("users").FindOne(ctx, bson.M{"uid": uid}).Decode(&user)
		if errors.Is(err, mongo.ErrNoDocuments) {
			respondWithError(c, http.StatusNotFound, route, "user not found")
			return
		}
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		c.JSON(http.StatusOK, user)
	}
}
