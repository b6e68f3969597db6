package ghauth

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/go-github/v66/github"
)

// defaultTokenLifetime backstops a response without an expiry; the platform
// issues one-hour installation tokens.
const defaultTokenLifetime = time.Hour

// AppsExchanger performs the assertion-for-token exchange against the
// platform's Apps API.
type AppsExchanger struct {
	minter *Minter

	// newClient exists so tests can point the exchange at a local server.
	newClient func(assertion string) *github.Client
}

func NewAppsExchanger(minter *Minter) *AppsExchanger {
	return &AppsExchanger{
		minter: minter,
		newClient: func(assertion string) *github.Client {
			return github.NewClient(nil).WithAuthToken(assertion)
		},
	}
}

func (e *AppsExchanger) Exchange(ctx context.Context, installationID int64) (Grant, error) {
	assertion, err := e.minter.Mint()
	if err != nil {
		return Grant{}, err
	}
	tok, _, err := e.newClient(assertion).Apps.CreateInstallationToken(ctx, installationID, nil)
	if err != nil {
		return Grant{}, fmt.Errorf("create installation token: %w", err)
	}
	expiresAt := tok.GetExpiresAt().Time
	if expiresAt.IsZero() {
		expiresAt = time.Now().Add(defaultTokenLifetime)
	}
	return Grant{
		Token:       tok.GetToken(),
		ExpiresAt:   expiresAt,
		Permissions: permissionScopes(tok.Permissions),
	}, nil
}

// permissionScopes flattens the typed permissions struct into the
// name-to-scope mapping the cache stores.
func permissionScopes(perms *github.InstallationPermissions) map[string]string {
	if perms == nil {
		return nil
	}
	raw, err := json.Marshal(perms)
	if err != nil {
		return nil
	}
	var out map[string]string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}
