package memstore

import (
	"context"
	"fmt"
	"sort"
	"time"

	invitedomain "tenant-access-control/internal/invite/domain"
	memberdomain "tenant-access-control/internal/membership/domain"
	"tenant-access-control/internal/platform/apperr"
)

// Memberships implements the membership repository for one scope.
type Memberships struct {
	s     *Store
	scope memberdomain.Scope
}

func (r *Memberships) op(name string) string {
	return "membership." + string(r.scope) + "." + name
}

func (r *Memberships) Scope() memberdomain.Scope { return r.scope }

// live reports whether the membership's resource is not soft-deleted. A website
// also needs a live organization. Caller holds mu.
func (r *Memberships) live(resourceID string) bool {
	if r.scope == memberdomain.ScopeOrganization {
		return r.s.d.orgLive(resourceID)
	}
	w, ok := r.s.d.websites[resourceID]
	if !ok {
		return true
	}
	return w.DeletedAt == nil && r.s.d.orgLive(w.OrganizationID)
}

func (r *Memberships) Add(_ context.Context, resourceID, userID string, role memberdomain.Role) (*memberdomain.Membership, error) {
	if err := r.s.enter(r.op("add")); err != nil {
		return nil, err
	}
	if !role.Valid() {
		return nil, apperr.InvalidArgument("unknown role %q", role)
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, m := range r.s.d.memberships[r.scope] {
		if m.UserID == userID && m.ResourceID == resourceID {
			return nil, apperr.New(apperr.ErrDuplicateMembership, "")
		}
	}
	r.s.d.membershipSeq++
	m := memberdomain.Membership{
		ID:         fmt.Sprintf("m%d", r.s.d.membershipSeq),
		Scope:      r.scope,
		ResourceID: resourceID,
		UserID:     userID,
		Role:       role,
		JoinedAt:   time.Now().UTC(),
	}
	r.s.d.memberships[r.scope][m.ID] = m
	return &m, nil
}

func (r *Memberships) Remove(_ context.Context, id string) error {
	if err := r.s.enter(r.op("remove")); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.d.memberships[r.scope][id]; !ok {
		return apperr.NotFound(string(r.scope) + "_membership")
	}
	delete(r.s.d.memberships[r.scope], id)
	return nil
}

func (r *Memberships) Get(_ context.Context, userID, resourceID string) (*memberdomain.Membership, error) {
	if err := r.s.enter(r.op("get")); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, m := range r.s.d.memberships[r.scope] {
		if m.UserID == userID && m.ResourceID == resourceID && r.live(resourceID) {
			return &m, nil
		}
	}
	return nil, nil
}

func (r *Memberships) GetByID(_ context.Context, id string) (*memberdomain.Membership, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.d.memberships[r.scope][id]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (r *Memberships) ListByUser(_ context.Context, userID string) ([]*memberdomain.Membership, error) {
	return r.list(func(m memberdomain.Membership) bool { return m.UserID == userID && r.live(m.ResourceID) }), nil
}

func (r *Memberships) ListByResource(_ context.Context, resourceID string) ([]*memberdomain.Membership, error) {
	return r.list(func(m memberdomain.Membership) bool { return m.ResourceID == resourceID }), nil
}

func (r *Memberships) list(keep func(memberdomain.Membership) bool) []*memberdomain.Membership {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*memberdomain.Membership
	for _, m := range r.s.d.memberships[r.scope] {
		if keep(m) {
			out = append(out, &m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *Memberships) UpdateRole(_ context.Context, resourceID, userID string, role memberdomain.Role) (*memberdomain.Membership, error) {
	if !role.Valid() {
		return nil, apperr.InvalidArgument("unknown role %q", role)
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, m := range r.s.d.memberships[r.scope] {
		if m.UserID == userID && m.ResourceID == resourceID {
			m.Role = role
			r.s.d.memberships[r.scope][id] = m
			return &m, nil
		}
	}
	return nil, apperr.NotFound(string(r.scope) + "_membership")
}

// Invites implements the invite repository for one scope.
type Invites struct {
	s     *Store
	scope memberdomain.Scope
}

func (r *Invites) Scope() memberdomain.Scope { return r.scope }

func (r *Invites) Get(_ context.Context, resourceID, email string) (*invitedomain.Invite, error) {
	if err := r.s.enter("invite." + string(r.scope) + ".get"); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	inv, ok := r.s.d.invites[r.scope][inviteKey{resourceID, invitedomain.NormalizeEmail(email)}]
	if !ok || inv.DeletedAt != nil {
		return nil, nil
	}
	return &inv, nil
}

func (r *Invites) Upsert(_ context.Context, resourceID, email string, role memberdomain.Role) (*invitedomain.Invite, bool, error) {
	if err := r.s.enter("invite." + string(r.scope) + ".upsert"); err != nil {
		return nil, false, err
	}
	if !role.Valid() {
		return nil, false, apperr.InvalidArgument("unknown role %q", role)
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := inviteKey{resourceID, invitedomain.NormalizeEmail(email)}
	now := time.Now().UTC()
	inv, exists := r.s.d.invites[r.scope][key]
	if exists && inv.IsAccepted {
		return nil, false, apperr.New(apperr.ErrDuplicateInvite, apperr.ReasonInvite)
	}
	if !exists {
		inv = invitedomain.Invite{Scope: r.scope, ResourceID: resourceID, Email: key.email, CreatedAt: now}
	}
	inv.Role = role
	inv.UpdatedAt = now
	inv.DeletedAt = nil
	r.s.d.invites[r.scope][key] = inv
	return &inv, exists, nil
}

func (r *Invites) MarkAccepted(_ context.Context, resourceID, email string) error {
	if err := r.s.enter("invite." + string(r.scope) + ".accept"); err != nil {
		return err
	}
	return r.pending(resourceID, email, func(inv *invitedomain.Invite, now time.Time) { inv.IsAccepted = true })
}

func (r *Invites) Revoke(_ context.Context, resourceID, email string) error {
	return r.pending(resourceID, email, func(inv *invitedomain.Invite, now time.Time) { inv.DeletedAt = &now })
}

func (r *Invites) pending(resourceID, email string, fn func(*invitedomain.Invite, time.Time)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := inviteKey{resourceID, invitedomain.NormalizeEmail(email)}
	inv, ok := r.s.d.invites[r.scope][key]
	if !ok || !inv.Pending() {
		return apperr.NotFound(apperr.ReasonInvite)
	}
	now := time.Now().UTC()
	fn(&inv, now)
	inv.UpdatedAt = now
	r.s.d.invites[r.scope][key] = inv
	return nil
}

func (r *Invites) ListPending(_ context.Context, resourceID string) ([]*invitedomain.Invite, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*invitedomain.Invite
	for _, inv := range r.s.d.invites[r.scope] {
		if inv.ResourceID == resourceID && inv.Pending() {
			out = append(out, &inv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}
