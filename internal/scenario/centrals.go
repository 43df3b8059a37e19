package scenario

import (
	"context"
	"fmt"
	"net/http"
	"os"
)

const (
	// CentralsPath is the fleet manager endpoint listing the caller's centrals.
	CentralsPath = "/api/rhacs/v1/centrals"

	// TokenEnvVar holds the static bearer token.
	TokenEnvVar = "STATIC_TOKEN"

	// MissingToken replaces the token in the header when TokenEnvVar is unset.
	MissingToken = "<nil>"
)

// ListCentrals is a user that keeps listing centrals.
var ListCentrals = User{
	Name:        "list-centrals",
	Description: "Lists centrals of the authenticated caller with a static bearer token",
	Tasks: []Task{
		{Name: "get-centrals", Weight: 1, Fn: GetCentrals},
	},
}

// GetCentrals issues one authenticated GET against CentralsPath.
//
// The token is read on every call. An unset variable is not an error here:
// the request goes out with MissingToken in place of the token and the
// target reports the authentication failure.
func GetCentrals(ctx context.Context, c Client) error {
	return c.Get(ctx, CentralsPath, BearerHeader())
}

// BearerHeader builds the authorization header from the current environment.
func BearerHeader() http.Header {
	h := make(http.Header, 1)
	h.Set("Authorization", "Bearer "+token())
	return h
}

// TokenPresent reports whether TokenEnvVar is set.
func TokenPresent() bool {
	_, ok := os.LookupEnv(TokenEnvVar)
	return ok
}

// RequireToken returns an error when TokenEnvVar is unset.
func RequireToken() error {
	if !TokenPresent() {
		return fmt.Errorf("%s unset in the environment", TokenEnvVar)
	}
	return nil
}

func token() string {
	v, ok := os.LookupEnv(TokenEnvVar)
	if !ok {
		return MissingToken
	}
	return v
}

func init() {
	Register(ListCentrals)
}
