package mockservice

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Error codes returned in the error body.
const (
	CodePRExists    = "PR_EXISTS"
	CodePRMerged    = "PR_MERGED"
	CodeNotAssigned = "NOT_ASSIGNED"
	CodeNoCandidate = "NO_CANDIDATE"
	CodeNotFound    = "NOT_FOUND"
	CodeValidation  = "VALIDATION"
	CodeInternal    = "INTERNAL_ERROR"
)

// Options tunes the mock.
type Options struct {
	// Latency is added before every API response.
	Latency time.Duration

	// Store defaults to NewSeededStore.
	Store *Store

	// Registry receives the request metrics. Nil disables them.
	Registry *prometheus.Registry
}

// Service serves the PR-review API from a Store.
type Service struct {
	store   *Store
	latency time.Duration
	mux     *http.ServeMux

	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// New builds the service and its routes.
func New(opts Options) (*Service, error) {
	s := &Service{
		store:   opts.Store,
		latency: opts.Latency,
		mux:     http.NewServeMux(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pr_manager_mock",
			Name:      "requests_total",
			Help:      "Requests served, by endpoint and status code.",
		}, []string{"endpoint", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pr_manager_mock",
			Name:      "request_duration_seconds",
			Help:      "Time to serve a request, including injected latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
	}
	if s.store == nil {
		s.store = NewSeededStore()
	}

	if opts.Registry != nil {
		for _, c := range []prometheus.Collector{s.requests, s.duration} {
			if err := opts.Registry.Register(c); err != nil {
				return nil, errors.Wrap(err, "failed to register mock metrics")
			}
		}
		s.mux.Handle("/metrics", promhttp.HandlerFor(opts.Registry, promhttp.HandlerOpts{}))
	}

	s.route("/pullRequest/create", http.MethodPost, s.handleCreate)
	s.route("/pullRequest/merge", http.MethodPost, s.handleMerge)
	s.route("/pullRequest/reassign", http.MethodPost, s.handleReassign)
	s.route("/users/getReview", http.MethodGet, s.handleGetReviews)
	s.mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return s, nil
}

// Store returns the backing store.
func (s *Service) Store() *Store {
	return s.store
}

func (s *Service) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Service) route(path, method string, h http.HandlerFunc) {
	s.mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		if r.Method != method {
			rec.WriteHeader(http.StatusMethodNotAllowed)
		} else {
			if s.latency > 0 {
				select {
				case <-time.After(s.latency):
				case <-r.Context().Done():
					return
				}
			}
			h(rec, r)
		}

		s.requests.WithLabelValues(path, strconv.Itoa(rec.status)).Inc()
		s.duration.WithLabelValues(path).Observe(time.Since(start).Seconds())
		log.WithFields(log.Fields{
			"method":   r.Method,
			"path":     path,
			"status":   rec.status,
			"duration": time.Since(start),
		}).Debug("request served")
	})
}

type pullRequestJSON struct {
	ID        string   `json:"pull_request_id"`
	Name      string   `json:"pull_request_name"`
	AuthorID  string   `json:"author_id"`
	Status    string   `json:"status"`
	Reviewers []string `json:"assigned_reviewers,omitempty"`
}

func toJSON(pr PullRequest, withReviewers bool) pullRequestJSON {
	out := pullRequestJSON{ID: pr.ID, Name: pr.Name, AuthorID: pr.AuthorID, Status: pr.Status}
	if withReviewers {
		out.Reviewers = pr.Reviewers
		if out.Reviewers == nil {
			out.Reviewers = []string{}
		}
	}
	return out
}

func (s *Service) handleCreate(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAdmin(w, r); !ok {
		return
	}

	var req struct {
		ID       string `json:"pull_request_id"`
		Name     string `json:"pull_request_name"`
		AuthorID string `json:"author_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeValidation, "invalid json")
		return
	}

	pr, err := s.store.CreatePullRequest(req.ID, req.Name, req.AuthorID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"pr": toJSON(pr, true)})
}

func (s *Service) handleMerge(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAdmin(w, r); !ok {
		return
	}

	var req struct {
		ID string `json:"pull_request_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeValidation, "invalid json")
		return
	}

	pr, err := s.store.MergePullRequest(req.ID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"pr": toJSON(pr, true)})
}

func (s *Service) handleReassign(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAdmin(w, r); !ok {
		return
	}

	var req struct {
		ID        string `json:"pull_request_id"`
		OldUserID string `json:"old_user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeValidation, "invalid json")
		return
	}

	pr, replacedBy, err := s.store.ReassignReviewer(req.ID, req.OldUserID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"pr":          toJSON(pr, true),
		"replaced_by": replacedBy,
	})
}

func (s *Service) handleGetReviews(w http.ResponseWriter, r *http.Request) {
	auth, ok := requireAnyAuth(w, r)
	if !ok {
		return
	}

	userID := r.URL.Query().Get("user_id")
	if !auth.admin && auth.userID != userID {
		writeError(w, http.StatusUnauthorized, CodeNotFound, "forbidden for this user_id")
		return
	}

	prs, err := s.store.ReviewsOf(userID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	short := make([]pullRequestJSON, 0, len(prs))
	for _, pr := range prs {
		short = append(short, toJSON(pr, false))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user_id":       userID,
		"pull_requests": short,
	})
}

type authInfo struct {
	userID string
	admin  bool
}

// parseAuth reads "Authorization: Bearer admin:<id>" or "Bearer user:<id>".
func parseAuth(r *http.Request) (authInfo, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return authInfo{}, false
	}
	role, id, ok := strings.Cut(token, ":")
	if !ok || id == "" {
		return authInfo{}, false
	}

	switch role {
	case "admin":
		return authInfo{userID: id, admin: true}, true
	case "user":
		return authInfo{userID: id}, true
	default:
		return authInfo{}, false
	}
}

func requireAdmin(w http.ResponseWriter, r *http.Request) (authInfo, bool) {
	info, ok := parseAuth(r)
	if !ok || !info.admin {
		writeError(w, http.StatusUnauthorized, CodeNotFound, "admin token required")
		return authInfo{}, false
	}
	return info, true
}

func requireAnyAuth(w http.ResponseWriter, r *http.Request) (authInfo, bool) {
	info, ok := parseAuth(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, CodeNotFound, "auth token required")
		return authInfo{}, false
	}
	return info, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{"code": code, "message": message},
	})
}

func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrValidation):
		writeError(w, http.StatusBadRequest, CodeValidation, err.Error())
	case errors.Is(err, ErrPRExists):
		writeError(w, http.StatusConflict, CodePRExists, err.Error())
	case errors.Is(err, ErrPRMerged):
		writeError(w, http.StatusConflict, CodePRMerged, err.Error())
	case errors.Is(err, ErrNotAssigned):
		writeError(w, http.StatusConflict, CodeNotAssigned, err.Error())
	case errors.Is(err, ErrNoCandidate):
		writeError(w, http.StatusConflict, CodeNoCandidate, err.Error())
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, CodeNotFound, err.Error())
	default:
		log.WithError(err).Error("unexpected store error")
		writeError(w, http.StatusInternalServerError, CodeInternal, "internal error")
	}
}
