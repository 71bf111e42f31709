/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see LICENSE file for details.                                       *
 ******************************************************************************/

package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/itchyny/gojq"
)

// Profile is the subset of the gateway user profile used for identity
type Profile struct {
	Email string         `json:"email"`
	Raw   map[string]any `json:"-"`
}

// ProfileFetcher looks up the profile belonging to a gateway token
type ProfileFetcher interface {
	FetchProfile(ctx context.Context, token string) Advisory[Profile]
}

// ProfileClient fetches profiles from the gateway profile endpoint
type ProfileClient struct {
	apiClient
	config     *Config
	emailQuery *gojq.Code
}

// NewProfileClient creates a profile client. The email is taken from the
// profile document with the configured jq expression.
func NewProfileClient(config *Config, opts ...ClientOption) (*ProfileClient, error) {
	query, err := gojq.Parse(config.ProfileEmailQuery)
	if err != nil {
		return nil, NewConfigurationError("profileEmailQuery", "invalid jq expression", err)
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return nil, NewConfigurationError("profileEmailQuery", "jq expression does not compile", err)
	}

	return &ProfileClient{
		apiClient:  newAPIClient(config, opts),
		config:     config,
		emailQuery: code,
	}, nil
}

// FetchProfile returns the profile for token. Failures are suppressed.
func (c *ProfileClient) FetchProfile(ctx context.Context, token string) Advisory[Profile] {
	if token == "" {
		return NotAttempted[Profile]()
	}

	profileURL := c.config.ProfileURL(token)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, profileURL, nil)
	if err != nil {
		return c.suppress(err)
	}
	req.Header.Set("Accept", "application/json")
	c.authorize(req, token)

	status, body, err := doRequest(c.httpClient, req, "profile", c.metrics)
	if err != nil {
		return c.suppress(err)
	}
	if status < 200 || status >= 300 {
		return c.suppress(NewAPIError(profileURL, status, "", "profile request failed"))
	}

	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		return c.suppress(fmt.Errorf("invalid profile document: %w", err))
	}

	email, err := c.extractEmail(ctx, doc)
	if err != nil {
		return c.suppress(err)
	}

	if c.logger != nil {
		c.logger.Debugf("Fetched gateway profile for %s", SanitizeEmailForLogging(email))
	}

	return Fetched(Profile{Email: email, Raw: doc})
}

// extractEmail returns the first string produced by the email query, or ""
func (c *ProfileClient) extractEmail(ctx context.Context, doc map[string]any) (string, error) {
	iter := c.emailQuery.RunWithContext(ctx, doc)
	for {
		v, ok := iter.Next()
		if !ok {
			return "", nil
		}
		if err, isErr := v.(error); isErr {
			return "", fmt.Errorf("profile email query failed: %w", err)
		}
		if email, isString := v.(string); isString && email != "" {
			return email, nil
		}
	}
}

func (c *ProfileClient) suppress(err error) Advisory[Profile] {
	if c.logger != nil {
		c.logger.Debugf("Profile lookup suppressed: %v", err)
	}
	return Suppressed[Profile](err)
}
