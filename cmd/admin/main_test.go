package main

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"cvforge/internal/auth"
	"cvforge/internal/database"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

func TestCreateAdminForcesPasswordChange(t *testing.T) {
	db := newTestDB(t)

	password, err := createAdmin(db, "root")
	require.NoError(t, err)

	var user database.User
	require.NoError(t, db.Where("username = ?", "root").First(&user).Error)
	assert.True(t, user.IsAdmin)
	assert.True(t, user.MustChangePassword)
	assert.True(t, auth.CheckPasswordHash(password, user.PasswordHash))

	_, err = createAdmin(db, "root")
	assert.ErrorContains(t, err, "already exists")
}

func TestPromoteUser(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Create(&database.User{Username: "alice", PasswordHash: "x"}).Error)

	require.NoError(t, promoteUser(db, "alice"))
	var user database.User
	require.NoError(t, db.Where("username = ?", "alice").First(&user).Error)
	assert.True(t, user.IsAdmin)
	assert.False(t, user.MustChangePassword)

	assert.ErrorContains(t, promoteUser(db, "nobody"), "not found")
}

func TestLoadDatabaseConfigFallsBackToEnv(t *testing.T) {
	t.Setenv("DATABASE_HOST", "db.internal")
	t.Setenv("DATABASE_PORT", "6543")
	t.Setenv("POSTGRES_DB", "cvforge")
	t.Setenv("POSTGRES_USER", "cv")
	t.Setenv("POSTGRES_PASSWORD", "secret")
	t.Setenv("DATABASE_SSLMODE", "")

	cfg, err := loadDatabaseConfig("", 0, "", "", "", "")
	require.NoError(t, err)
	assert.Equal(t, "db.internal", cfg.Host)
	assert.Equal(t, 6543, cfg.Port)
	assert.Equal(t, "cvforge", cfg.Name)
	assert.Equal(t, "disable", cfg.SSLMode)

	cfg, err = loadDatabaseConfig("flag-host", 5433, "", "", "", "require")
	require.NoError(t, err)
	assert.Equal(t, "flag-host", cfg.Host)
	assert.Equal(t, 5433, cfg.Port)
	assert.Equal(t, "require", cfg.SSLMode)

	t.Setenv("POSTGRES_PASSWORD", "")
	t.Setenv("DB_PASSWORD", "")
	_, err = loadDatabaseConfig("", 0, "", "", "", "")
	assert.ErrorContains(t, err, "password is required")
}
