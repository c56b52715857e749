package services

import (
	"testing"
	"time"

	"expediente_flow_go/models"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func setupAuthTestDB() *gorm.DB {
	db := setupProgressionTestDB()
	db.AutoMigrate(&models.Session{})
	return db
}

func createAuthUser(db *gorm.DB) models.User {
	hash, _ := HashPassword("correct-horse-battery")
	user := models.User{
		Name:     "Ana Pérez",
		Email:    "ana@test.local",
		Password: hash,
		Role:     models.RoleAnalyst,
		IsActive: true,
	}
	db.Create(&user)
	return user
}

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("mypassword123")
	assert.NoError(t, err)
	assert.NotEqual(t, "mypassword123", hash)

	assert.True(t, CheckPassword("mypassword123", hash))
	assert.False(t, CheckPassword("wrongpassword", hash))
}

func TestGenerateSessionToken(t *testing.T) {
	token1, err := GenerateSessionToken()
	assert.NoError(t, err)
	assert.Len(t, token1, SessionTokenLength*2)

	token2, err := GenerateSessionToken()
	assert.NoError(t, err)
	assert.NotEqual(t, token1, token2)
}

func TestCreateAndValidateSession(t *testing.T) {
	db := setupAuthTestDB()
	user := createAuthUser(db)

	session, err := CreateSession(db, user.ID, "127.0.0.1", "test-agent")
	assert.NoError(t, err)
	assert.NotEmpty(t, session.Token)
	assert.WithinDuration(t, time.Now().Add(DefaultSessionDuration), session.ExpiresAt, time.Minute)

	validated, err := ValidateSession(db, session.Token)
	assert.NoError(t, err)
	assert.Equal(t, user.ID, validated.UserID)
	assert.Equal(t, user.Email, validated.User.Email)
}

func TestValidateSessionUnknownToken(t *testing.T) {
	db := setupAuthTestDB()

	_, err := ValidateSession(db, "no-such-token")
	assert.Error(t, err)
}

func TestValidateSessionExpired(t *testing.T) {
	db := setupAuthTestDB()
	user := createAuthUser(db)

	session, err := CreateSession(db, user.ID, "127.0.0.1", "test-agent")
	assert.NoError(t, err)

	db.Model(&models.Session{}).Where("id = ?", session.ID).
		Update("expires_at", time.Now().Add(-time.Hour))

	_, err = ValidateSession(db, session.Token)
	assert.Error(t, err)

	// The expired row is purged on validation
	var count int64
	db.Model(&models.Session{}).Where("id = ?", session.ID).Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestDeleteSession(t *testing.T) {
	db := setupAuthTestDB()
	user := createAuthUser(db)

	session, _ := CreateSession(db, user.ID, "127.0.0.1", "test-agent")
	assert.NoError(t, DeleteSession(db, session.Token))

	_, err := ValidateSession(db, session.Token)
	assert.Error(t, err)
}

func TestCleanupExpiredSessions(t *testing.T) {
	db := setupAuthTestDB()
	user := createAuthUser(db)

	live, _ := CreateSession(db, user.ID, "127.0.0.1", "a")
	expired, _ := CreateSession(db, user.ID, "127.0.0.1", "b")
	db.Model(&models.Session{}).Where("id = ?", expired.ID).
		Update("expires_at", time.Now().Add(-time.Hour))

	assert.NoError(t, CleanupExpiredSessions(db))

	var count int64
	db.Model(&models.Session{}).Count(&count)
	assert.Equal(t, int64(1), count)

	_, err := ValidateSession(db, live.Token)
	assert.NoError(t, err)
}

func TestDeleteAllUserSessions(t *testing.T) {
	db := setupAuthTestDB()
	user := createAuthUser(db)
	other := models.User{Name: "Otro", Email: "otro@test.local", Password: "x", Role: models.RoleAnalyst, IsActive: true}
	db.Create(&other)

	CreateSession(db, user.ID, "127.0.0.1", "a")
	CreateSession(db, user.ID, "127.0.0.1", "b")
	kept, _ := CreateSession(db, other.ID, "127.0.0.1", "c")

	assert.NoError(t, DeleteAllUserSessions(db, user.ID))

	var count int64
	db.Model(&models.Session{}).Count(&count)
	assert.Equal(t, int64(1), count)

	_, err := ValidateSession(db, kept.Token)
	assert.NoError(t, err)
}
