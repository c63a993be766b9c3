package infra

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/lamvt/vaultstream/config"
)

// AuthorizationService talks to the external auth/billing collaborator. This
// service never issues or refreshes tokens itself; it only validates the ones
// presented to it and asks which plan the account is on.
type AuthorizationService struct {
	AuthorizationServiceURL string
	PrivateKey              string
}

type EntitlementResponse struct {
	UserID  string `json:"user_id"`
	Plan    string `json:"plan"`
	Premium bool   `json:"premium"`
}

func InitAuthorizationService(config *config.EnvConfig) *AuthorizationService {
	url := config.ExternalService.AuthorizationServiceURL
	if url == "" {
		panic("Authorization service URL is not configured")
	}

	return &AuthorizationService{
		AuthorizationServiceURL: url,
		PrivateKey:              config.PrivateKey,
	}
}

func (s *AuthorizationService) CheckAccessToken(token string) error {
	url := fmt.Sprintf("%s/api/v2/authorization/token/validate?token=%s", s.AuthorizationServiceURL, token)

	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Private-Key", s.PrivateKey)

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("invalid token: %s", string(raw))
	}

	return nil
}

// GetEntitlement asks the billing collaborator whether the account is
// premium. Segment policy itself does not depend on it; the flag is only
// injected into the request context for downstream consumers.
func (s *AuthorizationService) GetEntitlement(userID string) (*EntitlementResponse, error) {
	url := fmt.Sprintf("%s/api/v2/billing/entitlement/%s", s.AuthorizationServiceURL, userID)

	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Private-Key", s.PrivateKey)

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("billing service returned %d: %s", resp.StatusCode, string(raw))
	}

	var entitlement EntitlementResponse
	if err := json.NewDecoder(resp.Body).Decode(&entitlement); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &entitlement, nil
}
