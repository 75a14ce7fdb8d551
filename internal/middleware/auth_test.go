package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

const testSecret = "test-secret"

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func newAuthRouter(guard gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/protected", guard, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"uid": c.GetString(UIDKey), "email": c.GetString(EmailKey)})
	})
	return r
}

func doGet(r http.Handler, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAdminAuthRejectsMissingToken(t *testing.T) {
	w := doGet(newAuthRouter(AdminAuth(testSecret, nil)), "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "missing token")
}

func TestAdminAuthRejectsCustomer(t *testing.T) {
	token := signToken(t, jwt.MapClaims{
		"uid": "u1", "role": "customer", "isAdmin": false,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	w := doGet(newAuthRouter(AdminAuth(testSecret, nil)), token)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAdminAuthAcceptsIsAdminClaim(t *testing.T) {
	token := signToken(t, jwt.MapClaims{
		"uid": "u1", "email": "a@example.com", "isAdmin": true,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	w := doGet(newAuthRouter(AdminAuth(testSecret, nil)), token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"uid":"u1"`)
}

func TestAuthGuardRejectsExpiredAndForeignTokens(t *testing.T) {
	r := newAuthRouter(AuthGuard(testSecret))

	expired := signToken(t, jwt.MapClaims{"uid": "u1", "exp": time.Now().Add(-time.Minute).Unix()})
	assert.Equal(t, http.StatusUnauthorized, doGet(r, expired).Code)

	foreign, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"uid": "u1"}).SignedString([]byte("other"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, doGet(r, foreign).Code)
}

func TestUserAuthRequiresUID(t *testing.T) {
	r := newAuthRouter(UserAuth(testSecret))

	noUID := signToken(t, jwt.MapClaims{"email": "a@example.com", "exp": time.Now().Add(time.Hour).Unix()})
	assert.Equal(t, http.StatusUnauthorized, doGet(r, noUID).Code)

	ok := signToken(t, jwt.MapClaims{"uid": "u9", "exp": time.Now().Add(time.Hour).Unix()})
	w := doGet(r, ok)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"uid":"u9"`)
}

type adminSet struct {
	admins map[string]bool
	err    error
}

func (s adminSet) IsAdmin(_ context.Context, uid string) (bool, error) {
	return s.admins[uid], s.err
}

func TestAdminAuthRejectsDemotedUserWithAdminToken(t *testing.T) {
	token := signToken(t, jwt.MapClaims{
		"uid": "u1", "role": "admin", "isAdmin": true,
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	w := doGet(newAuthRouter(AdminAuth(testSecret, adminSet{admins: map[string]bool{"u1": true}})), token)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doGet(newAuthRouter(AdminAuth(testSecret, adminSet{admins: map[string]bool{}})), token)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doGet(newAuthRouter(AdminAuth(testSecret, adminSet{err: errors.New("db down")})), token)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestUserDirectoryIsAdmin(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("reads the stored role", func(mt *mtest.T) {
		ns := mt.DB.Name() + ".users"
		dir := UserDirectory{Users: mt.DB.Collection("users")}

		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{
			{Key: "uid", Value: "u1"}, {Key: "isAdmin", Value: false}, {Key: "role", Value: "customer"},
		}))
		ok, err := dir.IsAdmin(context.Background(), "u1")
		require.NoError(mt, err)
		assert.False(mt, ok)

		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{
			{Key: "uid", Value: "u2"}, {Key: "isAdmin", Value: true}, {Key: "role", Value: "admin"},
		}))
		ok, err = dir.IsAdmin(context.Background(), "u2")
		require.NoError(mt, err)
		assert.True(mt, ok)

		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))
		ok, err = dir.IsAdmin(context.Background(), "missing")
		require.NoError(mt, err)
		assert.False(mt, ok)
	})
}
