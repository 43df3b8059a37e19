// Package fakefm serves a minimal fleet manager API for local load tests:
// the list centrals endpoint behind a static bearer token.
package fakefm

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// CentralsPath is the endpoint served.
const CentralsPath = "/api/rhacs/v1/centrals"

// Options configures the fake.
type Options struct {
	// Token is the accepted bearer token. Empty accepts any Authorization header.
	Token string

	// Centrals is the number of centrals in the list.
	Centrals int

	// Latency is added to every list response, with up to Jitter on top.
	Latency time.Duration
	Jitter  time.Duration

	Log logrus.FieldLogger
}

// Central is one CentralRequest item.
type Central struct {
	ID            string    `json:"id"`
	Kind          string    `json:"kind"`
	Href          string    `json:"href"`
	Name          string    `json:"name"`
	Status        string    `json:"status"`
	CloudProvider string    `json:"cloud_provider"`
	MultiAZ       bool      `json:"multi_az"`
	Region        string    `json:"region"`
	Owner         string    `json:"owner"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// CentralList is the CentralRequestList body.
type CentralList struct {
	Kind  string    `json:"kind"`
	Page  int       `json:"page"`
	Size  int       `json:"size"`
	Total int       `json:"total"`
	Items []Central `json:"items"`
}

type apiError struct {
	Kind   string `json:"kind"`
	ID     string `json:"id"`
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

// Server counts the requests it answers.
type Server struct {
	opts Options
	body []byte

	requests     atomic.Int64
	unauthorized atomic.Int64
}

// New builds the fake with its list body rendered once.
func New(opts Options) (*Server, error) {
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}
	if opts.Centrals < 0 {
		return nil, fmt.Errorf("centrals must be >= 0, got %d", opts.Centrals)
	}

	body, err := json.Marshal(newCentralList(opts.Centrals))
	if err != nil {
		return nil, err
	}
	return &Server{opts: opts, body: body}, nil
}

func newCentralList(n int) CentralList {
	created := time.Date(2023, 1, 2, 15, 4, 5, 0, time.UTC)
	list := CentralList{Kind: "CentralRequestList", Page: 1, Size: n, Total: n, Items: make([]Central, 0, n)}

	for i := 0; i < n; i++ {
		id := fmt.Sprintf("loadtest%012d", i)
		list.Items = append(list.Items, Central{
			ID:            id,
			Kind:          "CentralRequest",
			Href:          CentralsPath + "/" + id,
			Name:          fmt.Sprintf("central-%d", i),
			Status:        "ready",
			CloudProvider: "aws",
			MultiAZ:       true,
			Region:        "us-east-1",
			Owner:         "loadtest",
			CreatedAt:     created,
			UpdatedAt:     created,
		})
	}
	return list
}

// Handler returns the HTTP routes of the fake.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(CentralsPath, s.listCentrals)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("healthy"))
	})
	return mux
}

// Requests returns the number of list requests answered.
func (s *Server) Requests() int64 {
	return s.requests.Load()
}

// Unauthorized returns how many of them were rejected.
func (s *Server) Unauthorized() int64 {
	return s.unauthorized.Load()
}

func (s *Server) listCentrals(w http.ResponseWriter, r *http.Request) {
	s.requests.Add(1)

	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if !s.authorized(r.Header.Get("Authorization")) {
		s.unauthorized.Add(1)
		s.opts.Log.WithField("remote", r.RemoteAddr).Debug("rejected request with invalid token")
		writeError(w, http.StatusUnauthorized, "account authentication could not be verified")
		return
	}

	if d := s.delay(); d > 0 {
		select {
		case <-time.After(d):
		case <-r.Context().Done():
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(s.body)
}

func (s *Server) authorized(header string) bool {
	if header == "" {
		return false
	}
	if s.opts.Token == "" {
		return true
	}
	return header == "Bearer "+s.opts.Token
}

func (s *Server) delay() time.Duration {
	d := s.opts.Latency
	if s.opts.Jitter > 0 {
		d += time.Duration(rand.Int63n(int64(s.opts.Jitter)))
	}
	return d
}

func writeError(w http.ResponseWriter, code int, reason string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(apiError{
		Kind:   "Error",
		ID:     fmt.Sprint(code),
		Code:   fmt.Sprintf("RHACS-MGMT-%d", code),
		Reason: reason,
	})
}
