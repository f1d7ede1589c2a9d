// Package mockservice is an in-memory stand-in for the PR-review service. It
// serves the endpoints the load presets target so runs can be smoke-tested
// without the real service and its database.
package mockservice

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
)

// Store errors, mapped to HTTP status codes by the handlers.
var (
	ErrNotFound    = errors.New("resource not found")
	ErrPRExists    = errors.New("pull request already exists")
	ErrPRMerged    = errors.New("cannot edit merged pull request")
	ErrNotAssigned = errors.New("reviewer is not assigned to this pull request")
	ErrNoCandidate = errors.New("no active replacement candidate in team")
	ErrValidation  = errors.New("validation failed")
)

const (
	maxReviewersPerPR = 2

	statusOpen   = "OPEN"
	statusMerged = "MERGED"
)

// User is a team member.
type User struct {
	ID       string
	Name     string
	Team     string
	IsActive bool
}

// PullRequest is a stored pull request.
type PullRequest struct {
	ID        string
	Name      string
	AuthorID  string
	Status    string
	Reviewers []string
}

func (p *PullRequest) clone() PullRequest {
	out := *p
	out.Reviewers = append([]string(nil), p.Reviewers...)
	return out
}

func (p *PullRequest) hasReviewer(id string) bool {
	for _, r := range p.Reviewers {
		if r == id {
			return true
		}
	}
	return false
}

// Store keeps users and pull requests in memory.
type Store struct {
	mu    sync.RWMutex
	users map[string]*User
	prs   map[string]*PullRequest
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		users: make(map[string]*User),
		prs:   make(map[string]*PullRequest),
	}
}

// NewSeededStore returns a store holding the team and pull request the load
// presets expect by default: users u1..u4 in team "backend" and pr-load-1
// authored by u1 and reviewed by u2 and u3.
func NewSeededStore() *Store {
	s := NewStore()
	for _, id := range []string{"u1", "u2", "u3", "u4"} {
		s.AddUser(User{ID: id, Name: "user-" + id, Team: "backend", IsActive: true})
	}
	s.prs["pr-load-1"] = &PullRequest{
		ID:        "pr-load-1",
		Name:      "seeded load-test PR",
		AuthorID:  "u1",
		Status:    statusOpen,
		Reviewers: []string{"u2", "u3"},
	}
	return s
}

// AddUser inserts or replaces a user.
func (s *Store) AddUser(u User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = &u
}

// activeTeammates returns active members of team sorted by ID, excluding the
// given IDs. Callers hold the lock.
func (s *Store) activeTeammates(team string, exclude ...string) []string {
	skip := make(map[string]bool, len(exclude))
	for _, id := range exclude {
		skip[id] = true
	}

	var out []string
	for id, u := range s.users {
		if u.Team == team && u.IsActive && !skip[id] {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// CreatePullRequest stores a new open pull request and assigns up to two
// active teammates of the author as reviewers.
func (s *Store) CreatePullRequest(id, name, authorID string) (PullRequest, error) {
	switch {
	case id == "":
		return PullRequest{}, errors.Wrap(ErrValidation, "pull_request_id is required")
	case name == "":
		return PullRequest{}, errors.Wrap(ErrValidation, "pull_request_name is required")
	case authorID == "":
		return PullRequest{}, errors.Wrap(ErrValidation, "author_id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.prs[id]; ok {
		return PullRequest{}, errors.Wrapf(ErrPRExists, "pull request %s", id)
	}
	author, ok := s.users[authorID]
	if !ok {
		return PullRequest{}, errors.Wrapf(ErrNotFound, "author %s", authorID)
	}

	reviewers := s.activeTeammates(author.Team, authorID)
	if len(reviewers) > maxReviewersPerPR {
		reviewers = reviewers[:maxReviewersPerPR]
	}

	pr := &PullRequest{ID: id, Name: name, AuthorID: authorID, Status: statusOpen, Reviewers: reviewers}
	s.prs[id] = pr
	return pr.clone(), nil
}

// MergePullRequest marks a pull request merged. Merging twice is a no-op.
func (s *Store) MergePullRequest(id string) (PullRequest, error) {
	if id == "" {
		return PullRequest{}, errors.Wrap(ErrValidation, "pull_request_id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	pr, ok := s.prs[id]
	if !ok {
		return PullRequest{}, errors.Wrapf(ErrNotFound, "pull request %s", id)
	}
	pr.Status = statusMerged
	return pr.clone(), nil
}

// ReassignReviewer replaces oldUserID on the pull request with another
// active member of that reviewer's team and returns the replacement.
func (s *Store) ReassignReviewer(id, oldUserID string) (PullRequest, string, error) {
	switch {
	case id == "":
		return PullRequest{}, "", errors.Wrap(ErrValidation, "pull_request_id is required")
	case oldUserID == "":
		return PullRequest{}, "", errors.Wrap(ErrValidation, "old_user_id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	pr, ok := s.prs[id]
	if !ok {
		return PullRequest{}, "", errors.Wrapf(ErrNotFound, "pull request %s", id)
	}
	if pr.Status == statusMerged {
		return PullRequest{}, "", errors.Wrapf(ErrPRMerged, "pull request %s", id)
	}
	if !pr.hasReviewer(oldUserID) {
		return PullRequest{}, "", errors.Wrapf(ErrNotAssigned, "user %s", oldUserID)
	}
	old, ok := s.users[oldUserID]
	if !ok {
		return PullRequest{}, "", errors.Wrapf(ErrNotFound, "user %s", oldUserID)
	}

	exclude := append([]string{pr.AuthorID}, pr.Reviewers...)
	candidates := s.activeTeammates(old.Team, exclude...)
	if len(candidates) == 0 {
		return PullRequest{}, "", errors.Wrapf(ErrNoCandidate, "team %s", old.Team)
	}

	replacement := candidates[0]
	for i, r := range pr.Reviewers {
		if r == oldUserID {
			pr.Reviewers[i] = replacement
		}
	}
	return pr.clone(), replacement, nil
}

// ReviewsOf returns the pull requests userID is assigned to, sorted by ID.
func (s *Store) ReviewsOf(userID string) ([]PullRequest, error) {
	if userID == "" {
		return nil, errors.Wrap(ErrValidation, "user_id is required")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.users[userID]; !ok {
		return nil, errors.Wrapf(ErrNotFound, "user %s", userID)
	}

	out := []PullRequest{}
	for _, pr := range s.prs {
		if pr.hasReviewer(userID) {
			out = append(out, pr.clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
