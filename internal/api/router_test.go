package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/woozar/paperless-ai-ngx/internal/app"
	iauth "github.com/woozar/paperless-ai-ngx/internal/auth"
	"github.com/woozar/paperless-ai-ngx/internal/database/testutil"
	"github.com/woozar/paperless-ai-ngx/internal/models"
	"github.com/woozar/paperless-ai-ngx/pkg/crypto"
)

func newTestRouter(t *testing.T) (*gin.Engine, *gorm.DB, *iauth.JWTService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{
		Secret:         "router-test-secret",
		Issuer:         "test",
		AccessTokenTTL: 15 * time.Minute,
	})
	require.NoError(t, err)

	cfg := &app.Config{}
	cfg.Auth.JWTSecret = "router-test-secret"
	cfg.Vault.EncryptionKey = "0123456789abcdef0123456789abcdef"
	cfg.Metrics.Enabled = true
	cfg.Metrics.Endpoint = "/metrics"

	router, err := NewRouter(db, jwtSvc, cfg)
	require.NoError(t, err)

	return router, db, jwtSvc
}

func bearerFor(t *testing.T, jwtSvc *iauth.JWTService, userID string) string {
	t.Helper()
	token, err := jwtSvc.GenerateAccessToken(userID, false)
	require.NoError(t, err)
	return "Bearer " + token
}

func doJSON(router *gin.Engine, method, path, authz string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func seedLoginUser(t *testing.T, db *gorm.DB, username, email, password string) models.User {
	t.Helper()
	hashed, err := crypto.HashPassword(password)
	require.NoError(t, err)
	user := models.User{Username: username, Email: email, Password: hashed}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func TestRouter_PublicAndProtectedRoutes(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := doJSON(router, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(router, http.MethodGet, "/api/auth/me", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(router, http.MethodGet, "/api/bots", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(router, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_BotSharingFlow(t *testing.T) {
	router, db, jwtSvc := newTestRouter(t)

	u1 := models.User{Username: "u1", Email: "u1@example.com", Password: "secret"}
	require.NoError(t, db.Create(&u1).Error)
	u2 := models.User{Username: "u2", Email: "u2@example.com", Password: "secret"}
	require.NoError(t, db.Create(&u2).Error)

	bot := models.Bot{Name: "B1", OwnerUserID: u1.ID}
	require.NoError(t, db.Create(&bot).Error)

	ownerAuth := bearerFor(t, jwtSvc, u1.ID)
	otherAuth := bearerFor(t, jwtSvc, u2.ID)
	sharesPath := "/api/bots/" + bot.ID + "/shares"

	// First share creates the grant.
	rec := doJSON(router, http.MethodPost, sharesPath, ownerAuth, gin.H{
		"userId": u2.ID, "permission": "READ",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created struct {
		Success bool `json:"success"`
		Data    struct {
			ID         string  `json:"id"`
			UserID     *string `json:"userId"`
			Username   *string `json:"username"`
			Permission string  `json:"permission"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.True(t, created.Success)
	require.NotNil(t, created.Data.UserID)
	require.Equal(t, u2.ID, *created.Data.UserID)
	require.NotNil(t, created.Data.Username)
	require.Equal(t, "u2", *created.Data.Username)
	require.Equal(t, "READ", created.Data.Permission)

	// Repeating with a new permission updates in place.
	rec = doJSON(router, http.MethodPost, sharesPath, ownerAuth, gin.H{
		"userId": u2.ID, "permission": "WRITE",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var updated struct {
		Data struct {
			ID         string `json:"id"`
			Permission string `json:"permission"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	require.Equal(t, created.Data.ID, updated.Data.ID)
	require.Equal(t, "WRITE", updated.Data.Permission)

	// Self-share rejected.
	rec = doJSON(router, http.MethodPost, sharesPath, ownerAuth, gin.H{
		"userId": u1.ID, "permission": "READ",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var failure struct {
		Success bool `json:"success"`
		Error   struct {
			Code string `json:"error"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &failure))
	require.False(t, failure.Success)
	require.Equal(t, "cannotShareWithSelf", failure.Error.Code)

	// Unknown grantee is a 404 with its own code.
	rec = doJSON(router, http.MethodPost, sharesPath, ownerAuth, gin.H{
		"userId": "00000000-0000-0000-0000-000000000000", "permission": "READ",
	})
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &failure))
	require.Equal(t, "userNotFound", failure.Error.Code)

	// Owner sees the listing with the updated grant.
	rec = doJSON(router, http.MethodGet, sharesPath, ownerAuth, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var listing struct {
		Data struct {
			Items []struct {
				ID         string `json:"id"`
				Permission string `json:"permission"`
			} `json:"items"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listing))
	require.Len(t, listing.Data.Items, 1)
	require.Equal(t, created.Data.ID, listing.Data.Items[0].ID)
	require.Equal(t, "WRITE", listing.Data.Items[0].Permission)

	// A WRITE holder cannot inspect sharing; the bot looks missing to them.
	rec = doJSON(router, http.MethodGet, sharesPath, otherAuth, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &failure))
	require.Equal(t, "aiBotNotFound", failure.Error.Code)
}

func TestRouter_WildcardShareFlow(t *testing.T) {
	router, db, jwtSvc := newTestRouter(t)

	owner := models.User{Username: "owner", Email: "owner@example.com", Password: "secret"}
	require.NoError(t, db.Create(&owner).Error)

	bot := models.Bot{Name: "Everyone bot", OwnerUserID: owner.ID}
	require.NoError(t, db.Create(&bot).Error)

	ownerAuth := bearerFor(t, jwtSvc, owner.ID)
	sharesPath := "/api/bots/" + bot.ID + "/shares"

	rec := doJSON(router, http.MethodPost, sharesPath, ownerAuth, gin.H{
		"userId": nil, "permission": "WRITE",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created struct {
		Data struct {
			ID         string  `json:"id"`
			UserID     *string `json:"userId"`
			Username   *string `json:"username"`
			Permission string  `json:"permission"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.Nil(t, created.Data.UserID)
	require.Nil(t, created.Data.Username)
	require.Equal(t, "WRITE", created.Data.Permission)

	rec = doJSON(router, http.MethodPost, sharesPath, ownerAuth, gin.H{
		"permission": "READ",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var downgraded struct {
		Data struct {
			ID         string `json:"id"`
			Permission string `json:"permission"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &downgraded))
	require.Equal(t, created.Data.ID, downgraded.Data.ID)
	require.Equal(t, "READ", downgraded.Data.Permission)
}

func TestRouter_ResourceCRUDAndVisibility(t *testing.T) {
	router, db, jwtSvc := newTestRouter(t)

	owner := models.User{Username: "owner", Email: "owner@example.com", Password: "secret"}
	require.NoError(t, db.Create(&owner).Error)
	other := models.User{Username: "other", Email: "other@example.com", Password: "secret"}
	require.NoError(t, db.Create(&other).Error)

	ownerAuth := bearerFor(t, jwtSvc, owner.ID)
	otherAuth := bearerFor(t, jwtSvc, other.ID)

	rec := doJSON(router, http.MethodPost, "/api/ai-accounts", ownerAuth, gin.H{
		"name": "prod", "provider": "openai", "apiKey": "sk-test",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created struct {
		Data struct {
			ID       string `json:"id"`
			IsOwner  bool   `json:"isOwner"`
			CanEdit  bool   `json:"canEdit"`
			CanShare bool   `json:"canShare"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.True(t, created.Data.IsOwner)
	require.True(t, created.Data.CanEdit)
	require.True(t, created.Data.CanShare)

	// Invisible to strangers.
	rec = doJSON(router, http.MethodGet, "/api/ai-accounts/"+created.Data.ID, otherAuth, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	var failure struct {
		Error struct {
			Code string `json:"error"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &failure))
	require.Equal(t, "aiAccountNotFound", failure.Error.Code)

	// Grant READ, then the stranger sees it with read-only flags.
	rec = doJSON(router, http.MethodPost, "/api/ai-accounts/"+created.Data.ID+"/shares", ownerAuth, gin.H{
		"userId": other.ID, "permission": "READ",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(router, http.MethodGet, "/api/ai-accounts/"+created.Data.ID, otherAuth, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var visible struct {
		Data struct {
			IsOwner  bool `json:"isOwner"`
			CanEdit  bool `json:"canEdit"`
			CanShare bool `json:"canShare"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &visible))
	require.False(t, visible.Data.IsOwner)
	require.False(t, visible.Data.CanEdit)
	require.False(t, visible.Data.CanShare)

	// Read-only holders cannot edit.
	rec = doJSON(router, http.MethodPatch, "/api/ai-accounts/"+created.Data.ID, otherAuth, gin.H{
		"name": "hijack",
	})
	require.Equal(t, http.StatusForbidden, rec.Code)

	// Owner deletes; the resource and its grants are gone.
	rec = doJSON(router, http.MethodDelete, "/api/ai-accounts/"+created.Data.ID, ownerAuth, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var grantRows int64
	require.NoError(t, db.Model(&models.ShareGrant{}).
		Where("resource_id = ?", created.Data.ID).
		Count(&grantRows).Error)
	require.Zero(t, grantRows)
}

func TestRouter_SecretRevealOwnerOnly(t *testing.T) {
	router, db, jwtSvc := newTestRouter(t)

	owner := models.User{Username: "owner", Email: "owner@example.com", Password: "secret"}
	require.NoError(t, db.Create(&owner).Error)
	other := models.User{Username: "other", Email: "other@example.com", Password: "secret"}
	require.NoError(t, db.Create(&other).Error)

	ownerAuth := bearerFor(t, jwtSvc, owner.ID)
	otherAuth := bearerFor(t, jwtSvc, other.ID)

	rec := doJSON(router, http.MethodPost, "/api/ai-accounts", ownerAuth, gin.H{
		"name": "prod", "provider": "openai", "apiKey": "sk-reveal-me",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	keyPath := "/api/ai-accounts/" + created.Data.ID + "/key"

	rec = doJSON(router, http.MethodGet, keyPath, ownerAuth, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var revealed struct {
		Data struct {
			APIKey string `json:"apiKey"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &revealed))
	require.Equal(t, "sk-reveal-me", revealed.Data.APIKey)

	// A WRITE holder may edit the account but never read the sealed key.
	rec = doJSON(router, http.MethodPost, "/api/ai-accounts/"+created.Data.ID+"/shares", ownerAuth, gin.H{
		"userId": other.ID, "permission": "WRITE",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(router, http.MethodGet, keyPath, otherAuth, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	// Same contract for instance tokens.
	rec = doJSON(router, http.MethodPost, "/api/instances", ownerAuth, gin.H{
		"name": "archive", "baseUrl": "https://paperless.example.com", "apiToken": "tok-reveal-me",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = doJSON(router, http.MethodGet, "/api/instances/"+created.Data.ID+"/token", ownerAuth, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var token struct {
		Data struct {
			APIToken string `json:"apiToken"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &token))
	require.Equal(t, "tok-reveal-me", token.Data.APIToken)

	rec = doJSON(router, http.MethodGet, "/api/instances/"+created.Data.ID+"/token", otherAuth, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_LoginFlow(t *testing.T) {
	router, db, _ := newTestRouter(t)

	seedLoginUser(t, db, "carol", "carol@example.com", "correct horse")

	rec := doJSON(router, http.MethodPost, "/api/auth/login", "", gin.H{
		"username": "carol", "password": "correct horse",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var login struct {
		Data struct {
			AccessToken string `json:"accessToken"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &login))
	require.NotEmpty(t, login.Data.AccessToken)

	rec = doJSON(router, http.MethodGet, "/api/auth/me", "Bearer "+login.Data.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(router, http.MethodPost, "/api/auth/login", "", gin.H{
		"username": "carol", "password": "wrong",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
