// Package memstore is an in-memory implementation of every repository, used by
// service and transport tests. Transactions are serialized and roll back by
// restoring a snapshot.
package memstore

import (
	"context"
	"sync"

	invitedomain "tenant-access-control/internal/invite/domain"
	memberdomain "tenant-access-control/internal/membership/domain"
	orgdomain "tenant-access-control/internal/organization/domain"
	userdomain "tenant-access-control/internal/user/domain"
	webdomain "tenant-access-control/internal/website/domain"
)

type inviteKey struct {
	resourceID string
	email      string
}

type data struct {
	users         map[string]userdomain.User
	orgs          map[string]orgdomain.Organization
	websites      map[string]webdomain.Website
	memberships   map[memberdomain.Scope]map[string]memberdomain.Membership
	invites       map[memberdomain.Scope]map[inviteKey]invitedomain.Invite
	membershipSeq int
}

func newData() data {
	return data{
		users:    map[string]userdomain.User{},
		orgs:     map[string]orgdomain.Organization{},
		websites: map[string]webdomain.Website{},
		memberships: map[memberdomain.Scope]map[string]memberdomain.Membership{
			memberdomain.ScopeOrganization: {},
			memberdomain.ScopeWebsite:      {},
		},
		invites: map[memberdomain.Scope]map[inviteKey]invitedomain.Invite{
			memberdomain.ScopeOrganization: {},
			memberdomain.ScopeWebsite:      {},
		},
	}
}

func (d data) orgLive(id string) bool {
	o, ok := d.orgs[id]
	return !ok || o.DeletedAt == nil
}

func (d data) clone() data {
	c := newData()
	c.membershipSeq = d.membershipSeq
	for k, v := range d.users {
		c.users[k] = v
	}
	for k, v := range d.orgs {
		c.orgs[k] = v
	}
	for k, v := range d.websites {
		c.websites[k] = v
	}
	for s, m := range d.memberships {
		for k, v := range m {
			c.memberships[s][k] = v
		}
	}
	for s, m := range d.invites {
		for k, v := range m {
			c.invites[s][k] = v
		}
	}
	return c
}

// Store holds all rows. The zero value is not usable; call New.
type Store struct {
	mu   sync.Mutex
	txMu sync.Mutex
	d    data

	faultMu sync.Mutex
	faults  map[string]error
	calls   map[string]int
}

// New returns an empty store.
func New() *Store {
	return &Store{d: newData(), faults: map[string]error{}, calls: map[string]int{}}
}

// Fail makes the named operation (e.g. "membership.website.add") return err
// until cleared with Fail(op, nil).
func (s *Store) Fail(op string, err error) {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	if err == nil {
		delete(s.faults, op)
		return
	}
	s.faults[op] = err
}

// Calls returns how many times op ran, failed or not.
func (s *Store) Calls(op string) int {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	return s.calls[op]
}

func (s *Store) enter(op string) error {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	s.calls[op]++
	return s.faults[op]
}

type txKey struct{}

// WithinTx runs fn with exclusive access to the store and restores the previous
// state when fn fails or panics. Nested calls join the outer transaction.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snapshot := s.d.clone()
	s.mu.Unlock()

	restore := func() {
		s.mu.Lock()
		s.d = snapshot
		s.mu.Unlock()
	}
	defer func() {
		if p := recover(); p != nil {
			restore()
			panic(p)
		}
	}()
	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		restore()
		return err
	}
	return nil
}

// Users returns the user repository view.
func (s *Store) Users() *Users { return &Users{s: s} }

// Organizations returns the organization repository view.
func (s *Store) Organizations() *Organizations { return &Organizations{s: s} }

// Websites returns the website repository view.
func (s *Store) Websites() *Websites { return &Websites{s: s} }

// Memberships returns the membership repository view for scope.
func (s *Store) Memberships(scope memberdomain.Scope) *Memberships {
	return &Memberships{s: s, scope: scope}
}

// Invites returns the invite repository view for scope.
func (s *Store) Invites(scope memberdomain.Scope) *Invites {
	return &Invites{s: s, scope: scope}
}
