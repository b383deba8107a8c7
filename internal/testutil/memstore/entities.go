package memstore

import (
	"context"
	"sort"
	"time"

	memberdomain "tenant-access-control/internal/membership/domain"
	orgdomain "tenant-access-control/internal/organization/domain"
	"tenant-access-control/internal/platform/apperr"
	userdomain "tenant-access-control/internal/user/domain"
	webdomain "tenant-access-control/internal/website/domain"
)

// Users implements the user repository.
type Users struct{ s *Store }

func (r *Users) GetByID(_ context.Context, id string) (*userdomain.User, error) {
	if err := r.s.enter("user.get"); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.d.users[id]
	if !ok || u.DeletedAt != nil {
		return nil, nil
	}
	return &u, nil
}

func (r *Users) GetByEmail(ctx context.Context, email string) (*userdomain.User, error) {
	u, err := r.GetAnyByEmail(ctx, email)
	if err != nil || u == nil || u.DeletedAt != nil {
		return nil, err
	}
	return u, nil
}

func (r *Users) GetAnyByEmail(_ context.Context, email string) (*userdomain.User, error) {
	if err := r.s.enter("user.get"); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.d.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, nil
}

func (r *Users) Create(_ context.Context, u *userdomain.User) error {
	if err := r.s.enter("user.create"); err != nil {
		return err
	}
	if err := u.Validate(); err != nil {
		return apperr.InvalidArgument("%s", err.Error())
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.d.users {
		if existing.Username == u.Username {
			return apperr.Conflict("username")
		}
		if existing.Email == u.Email {
			return apperr.Conflict("email")
		}
	}
	r.s.d.users[u.ID] = *u
	return nil
}

func (r *Users) Update(_ context.Context, u *userdomain.User) error {
	if err := r.s.enter("user.update"); err != nil {
		return err
	}
	if err := u.Validate(); err != nil {
		return apperr.InvalidArgument("%s", err.Error())
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.d.users[u.ID]
	if !ok || cur.DeletedAt != nil {
		return apperr.NotFound("user")
	}
	for id, existing := range r.s.d.users {
		if id == u.ID {
			continue
		}
		if existing.Username == u.Username {
			return apperr.Conflict("username")
		}
		if existing.Email == u.Email {
			return apperr.Conflict("email")
		}
	}
	next := *u
	next.CreatedAt, next.DeletedAt = cur.CreatedAt, cur.DeletedAt
	r.s.d.users[u.ID] = next
	return nil
}

func (r *Users) SetVerificationToken(_ context.Context, userID, tokenHash string) error {
	return r.update(userID, func(u *userdomain.User) { u.VerificationToken = tokenHash })
}

func (r *Users) MarkVerified(_ context.Context, userID string) error {
	now := time.Now().UTC()
	return r.update(userID, func(u *userdomain.User) {
		u.IsVerified = true
		u.VerifiedAt = &now
		u.VerificationToken = ""
	})
}

func (r *Users) SoftDelete(_ context.Context, userID string) error {
	now := time.Now().UTC()
	return r.update(userID, func(u *userdomain.User) { u.DeletedAt = &now })
}

func (r *Users) update(id string, fn func(*userdomain.User)) error {
	if err := r.s.enter("user.update"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.d.users[id]
	if !ok || u.DeletedAt != nil {
		return apperr.NotFound("user")
	}
	fn(&u)
	u.UpdatedAt = time.Now().UTC()
	r.s.d.users[id] = u
	return nil
}

// Organizations implements the organization repository.
type Organizations struct{ s *Store }

func (r *Organizations) GetByID(_ context.Context, id string) (*orgdomain.Organization, error) {
	if err := r.s.enter("organization.get"); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.d.orgs[id]
	if !ok || o.DeletedAt != nil {
		return nil, nil
	}
	return &o, nil
}

func (r *Organizations) ListByMember(_ context.Context, userID string) ([]*orgdomain.Organization, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*orgdomain.Organization
	for _, m := range r.s.d.memberships[memberdomain.ScopeOrganization] {
		if m.UserID != userID {
			continue
		}
		if o, ok := r.s.d.orgs[m.ResourceID]; ok && o.DeletedAt == nil {
			out = append(out, &o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *Organizations) Create(_ context.Context, o *orgdomain.Organization) error {
	if err := r.s.enter("organization.create"); err != nil {
		return err
	}
	if err := o.Validate(); err != nil {
		return apperr.InvalidArgument("%s", err.Error())
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.d.orgs {
		if existing.Name == o.Name {
			return apperr.Conflict("organization_name")
		}
	}
	r.s.d.orgs[o.ID] = *o
	return nil
}

func (r *Organizations) Update(_ context.Context, o *orgdomain.Organization) error {
	if err := o.Validate(); err != nil {
		return apperr.InvalidArgument("%s", err.Error())
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.d.orgs[o.ID]
	if !ok || cur.DeletedAt != nil {
		return apperr.NotFound("organization")
	}
	cur.Name, cur.Description, cur.UpdatedAt = o.Name, o.Description, time.Now().UTC()
	r.s.d.orgs[o.ID] = cur
	return nil
}

func (r *Organizations) SoftDelete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.d.orgs[id]
	if !ok || o.DeletedAt != nil {
		return apperr.NotFound("organization")
	}
	now := time.Now().UTC()
	o.DeletedAt = &now
	r.s.d.orgs[id] = o
	return nil
}

// Websites implements the website repository and rbac.WebsiteGetter.
type Websites struct{ s *Store }

func (r *Websites) GetByID(_ context.Context, id string) (*webdomain.Website, error) {
	if err := r.s.enter("website.get"); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	w, ok := r.s.d.websites[id]
	if !ok || w.DeletedAt != nil {
		return nil, nil
	}
	if o, ok := r.s.d.orgs[w.OrganizationID]; !ok || o.DeletedAt != nil {
		return nil, nil
	}
	return &w, nil
}

func (r *Websites) ListByOrganization(_ context.Context, orgID string) ([]*webdomain.Website, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*webdomain.Website
	for _, w := range r.s.d.websites {
		if w.OrganizationID == orgID && w.DeletedAt == nil {
			out = append(out, &w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *Websites) Create(_ context.Context, w *webdomain.Website) error {
	if err := r.s.enter("website.create"); err != nil {
		return err
	}
	if err := w.Validate(); err != nil {
		return apperr.InvalidArgument("%s", err.Error())
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.d.websites {
		if existing.Name == w.Name {
			return apperr.Conflict("website_name")
		}
		if existing.URL == w.URL {
			return apperr.Conflict("website_url")
		}
	}
	r.s.d.websites[w.ID] = *w
	return nil
}

func (r *Websites) Update(_ context.Context, w *webdomain.Website) error {
	if err := w.Validate(); err != nil {
		return apperr.InvalidArgument("%s", err.Error())
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.d.websites[w.ID]
	if !ok || cur.DeletedAt != nil {
		return apperr.NotFound("website")
	}
	cur.Name, cur.URL, cur.Description, cur.UpdatedAt = w.Name, w.URL, w.Description, time.Now().UTC()
	r.s.d.websites[w.ID] = cur
	return nil
}

func (r *Websites) SoftDelete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	w, ok := r.s.d.websites[id]
	if !ok || w.DeletedAt != nil {
		return apperr.NotFound("website")
	}
	now := time.Now().UTC()
	w.DeletedAt = &now
	r.s.d.websites[id] = w
	return nil
}
