package cli

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"

	"github.com/stackrox/acs-loadtest/internal/scenario"
)

const centralsList = `{"kind":"CentralRequestList","page":1,"size":1,"total":1,"items":[{` +
	`"id":"cb3vs6fq1tbtsgsrbdcg","kind":"CentralRequest","href":"/api/rhacs/v1/centrals/cb3vs6fq1tbtsgsrbdcg",` +
	`"name":"loadtest","status":"ready","region":"us-east-1","created_at":"2023-01-02T15:04:05Z"}]}`

// fleetManager accepts a single token and records the authorization
// headers it receives.
type fleetManager struct {
	*httptest.Server

	mu    sync.Mutex
	auths []string
}

func newFleetManager(t *testing.T, token string) *fleetManager {
	t.Helper()

	fm := &fleetManager{}
	fm.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		fm.mu.Lock()
		fm.auths = append(fm.auths, auth)
		fm.mu.Unlock()

		if r.URL.Path != scenario.CentralsPath {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if auth != "Bearer "+token {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"kind":"Error","reason":"unauthorized"}`))
			return
		}
		_, _ = w.Write([]byte(centralsList))
	}))
	t.Cleanup(fm.Close)
	return fm
}

func (fm *fleetManager) Auths() []string {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	return append([]string(nil), fm.auths...)
}

// execute runs the command line with args and returns its stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out, errOut bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)

	err := cmd.Execute()
	return out.String(), err
}

func unsetToken(t *testing.T) {
	t.Helper()
	t.Setenv(scenario.TokenEnvVar, "")
	if err := os.Unsetenv(scenario.TokenEnvVar); err != nil {
		t.Fatal(err)
	}
}
