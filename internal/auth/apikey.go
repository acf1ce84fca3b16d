/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/friendsincode/crewdesk/internal/models"
)

// API key constants
const (
	APIKeyPrefix      = "cd_"
	APIKeyRandomBytes = 24 // 192 bits of entropy
	APIKeyDefaultTTL  = 90 * 24 * time.Hour
	APIKeyMaxTTL      = 365 * 24 * time.Hour
)

var (
	// ErrAPIKeyNotFound is returned when an API key doesn't exist.
	ErrAPIKeyNotFound = errors.New("api key not found")
	// ErrAPIKeyExpired is returned when an API key has expired.
	ErrAPIKeyExpired = errors.New("api key expired")
	// ErrAPIKeyRevoked is returned when an API key has been revoked.
	ErrAPIKeyRevoked = errors.New("api key revoked")
	// ErrUserNotFound is returned when the user for an API key doesn't exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserSuspended is returned for credentials belonging to a suspended user.
	ErrUserSuspended = errors.New("user account suspended")
)

func hashKey(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

// GenerateAPIKey creates a new API key for a user.
// Returns the plaintext key (shown to the user once) and the model to store.
func GenerateAPIKey(tenantID, userID, name string, expiresIn time.Duration) (string, *models.APIKey, error) {
	if expiresIn <= 0 {
		expiresIn = APIKeyDefaultTTL
	}
	if expiresIn > APIKeyMaxTTL {
		expiresIn = APIKeyMaxTTL
	}

	randomBytes := make([]byte, APIKeyRandomBytes)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", nil, err
	}
	plaintextKey := APIKeyPrefix + hex.EncodeToString(randomBytes)

	apiKey := &models.APIKey{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		UserID:    userID,
		Name:      name,
		KeyHash:   hashKey(plaintextKey),
		KeyPrefix: plaintextKey[:11], // "cd_" + first 8 hex chars
		ExpiresAt: time.Now().Add(expiresIn),
	}

	return plaintextKey, apiKey, nil
}

// ValidateAPIKey validates an API key and returns claims for its user.
// Also updates the LastUsedAt timestamp.
func ValidateAPIKey(db *gorm.DB, plaintextKey string) (*Claims, error) {
	var apiKey models.APIKey
	result := db.Where("key_hash = ?", hashKey(plaintextKey)).First(&apiKey)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrAPIKeyNotFound
	}
	if result.Error != nil {
		return nil, result.Error
	}

	if apiKey.IsRevoked() {
		return nil, ErrAPIKeyRevoked
	}

	now := time.Now()
	if apiKey.IsExpired(now) {
		return nil, ErrAPIKeyExpired
	}

	var user models.User
	result = db.First(&user, "id = ? AND tenant_id = ?", apiKey.UserID, apiKey.TenantID)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if result.Error != nil {
		return nil, result.Error
	}

	if user.Suspended {
		return nil, ErrUserSuspended
	}

	// Best effort; a failed touch must not reject a valid key.
	_ = db.Model(&apiKey).Update("last_used_at", now).Error

	return ClaimsForUser(&user), nil
}

// ClaimsForUser builds request claims for an authenticated user.
func ClaimsForUser(user *models.User) *Claims {
	claims := &Claims{
		UserID:   user.ID,
		TenantID: user.TenantID,
		Roles:    []string{string(models.NormalizeRole(string(user.Role)))},
	}
	if user.WorkerID != nil {
		claims.WorkerID = *user.WorkerID
	}
	return claims
}

// RevokeAPIKey revokes an API key. Only the owner can revoke their own keys.
func RevokeAPIKey(db *gorm.DB, keyID, tenantID, userID string) error {
	result := db.Model(&models.APIKey{}).
		Where("id = ? AND tenant_id = ? AND user_id = ? AND revoked_at IS NULL", keyID, tenantID, userID).
		Update("revoked_at", time.Now())

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAPIKeyNotFound
	}

	return nil
}

// ListAPIKeys returns all API keys for a user (without the hash).
func ListAPIKeys(db *gorm.DB, tenantID, userID string) ([]models.APIKey, error) {
	var keys []models.APIKey
	err := db.Where("tenant_id = ? AND user_id = ?", tenantID, userID).
		Order("created_at DESC").
		Find(&keys).Error

	return keys, err
}
