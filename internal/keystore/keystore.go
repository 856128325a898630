// Package keystore keeps the CRM access token in the OS keychain.
package keystore

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"
)

const (
	keystoreService = "brandsync"
	keystoreUser    = "hubspot-access-token"
)

// ErrNoToken is returned when no access token has been stored
var ErrNoToken = errors.New("no access token in keychain")

// SaveToken stores the access token in the system keychain
func SaveToken(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("access token is empty")
	}
	if err := keyring.Set(keystoreService, keystoreUser, token); err != nil {
		return fmt.Errorf("failed to store access token in keychain: %w", err)
	}
	return nil
}

// LoadToken reads the access token from the system keychain
func LoadToken() (string, error) {
	token, err := keyring.Get(keystoreService, keystoreUser)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNoToken
	}
	if err != nil {
		return "", fmt.Errorf("keychain unavailable: %w", err)
	}
	if token == "" {
		return "", ErrNoToken
	}
	return token, nil
}

// DeleteToken removes the access token from the keychain
func DeleteToken() error {
	err := keyring.Delete(keystoreService, keystoreUser)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete access token: %w", err)
	}
	return nil
}

// IsTokenStored checks if an access token exists in the keychain
func IsTokenStored() bool {
	_, err := LoadToken()
	return err == nil
}
