// Package service implements account lifecycle: signup, email verification,
// signin, profile changes and soft deletion.
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"tenant-access-control/internal/db"
	memberdomain "tenant-access-control/internal/membership/domain"
	"tenant-access-control/internal/notification"
	orgdomain "tenant-access-control/internal/organization/domain"
	"tenant-access-control/internal/platform/apperr"
	"tenant-access-control/internal/platform/validation"
	"tenant-access-control/internal/security"
	userdomain "tenant-access-control/internal/user/domain"
	userrepo "tenant-access-control/internal/user/repository"
)

const personalDescription = "Personal organization"

var (
	errAlreadyVerified = errors.New("email already verified")
	errTokenSuperseded = errors.New("verification token superseded")
)

// OrgCreator persists organizations.
type OrgCreator interface {
	Create(ctx context.Context, o *orgdomain.Organization) error
}

// MembershipAdder creates organization memberships.
type MembershipAdder interface {
	Add(ctx context.Context, resourceID, userID string, role memberdomain.Role) (*memberdomain.Membership, error)
}

// Deps holds the collaborators of AccountService.
type Deps struct {
	Users         userrepo.Repository
	Orgs          OrgCreator
	OrgMembers    MembershipAdder
	Tx            db.TxRunner
	Hasher        *security.Hasher
	Codec         *security.Codec
	Notifications *notification.Dispatcher
	Log           zerolog.Logger
}

// AccountService owns users and their credentials.
type AccountService struct {
	users   userrepo.Repository
	orgs    OrgCreator
	members MembershipAdder
	tx      db.TxRunner
	hasher  *security.Hasher
	codec   *security.Codec
	notify  *notification.Dispatcher
	log     zerolog.Logger
}

// NewAccountService returns an AccountService over d.
func NewAccountService(d Deps) *AccountService {
	return &AccountService{
		users:   d.Users,
		orgs:    d.Orgs,
		members: d.OrgMembers,
		tx:      d.Tx,
		hasher:  d.Hasher,
		codec:   d.Codec,
		notify:  d.Notifications,
		log:     d.Log,
	}
}

// SignupInput is the signup request.
type SignupInput struct {
	Username string `validate:"required,min=3,max=32,alphanum"`
	Email    string `validate:"required,email,max=254"`
	// bcrypt ignores input past 72 bytes; the salt takes 32 of them.
	Password string `validate:"required,min=8,max=40"`
}

// SignupResult is the user and personal organization created by Signup.
type SignupResult struct {
	User         *userdomain.User
	Organization *orgdomain.Organization
}

// AuthResult carries an identity token for an authenticated user.
type AuthResult struct {
	Token     string
	ExpiresAt time.Time
	User      *userdomain.User
}

// Signup creates an unverified user together with a personal organization in
// which the user is admin, then mails a verification link. A taken username or
// email fails with apperr.ErrConflict.
func (s *AccountService) Signup(ctx context.Context, in SignupInput) (*SignupResult, error) {
	in.Email = normalizeEmail(in.Email)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	salt, err := security.GenerateSalt()
	if err != nil {
		return nil, err
	}
	hash, err := s.hasher.Hash(security.SaltedPassword(salt, in.Password))
	if err != nil {
		return nil, err
	}
	verifyToken, err := s.codec.Issue(security.EmailVerificationClaims{Email: in.Email})
	if err != nil {
		return nil, err
	}
	orgName, err := orgdomain.GenerateName()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	user := &userdomain.User{
		ID:                uuid.New().String(),
		Username:          in.Username,
		Email:             in.Email,
		Salt:              salt,
		PasswordHash:      hash,
		VerificationToken: security.HashToken(verifyToken),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	org := &orgdomain.Organization{
		ID:          uuid.New().String(),
		Name:        orgName,
		Description: personalDescription,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.users.Create(ctx, user); err != nil {
			return err
		}
		if err := s.orgs.Create(ctx, org); err != nil {
			return err
		}
		_, err := s.members.Add(ctx, org.ID, user.ID, memberdomain.RoleAdmin)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.notify.Dispatch(notification.NewMessage(notification.KindVerification, user.Email, verifyToken, map[string]string{
		"username": user.Username,
	}))
	s.log.Info().Str("user_id", user.ID).Str("organization_id", org.ID).Msg("user signed up")
	return &SignupResult{User: user, Organization: org}, nil
}

// ResendVerification mints a new verification token for an unverified user and
// mails it. Unknown and already verified emails are ignored so the call does
// not reveal which accounts exist.
func (s *AccountService) ResendVerification(ctx context.Context, email string) error {
	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return err
	}
	if user == nil || user.IsVerified {
		return nil
	}
	token, err := s.codec.Issue(security.EmailVerificationClaims{Email: user.Email})
	if err != nil {
		return err
	}
	if err := s.users.SetVerificationToken(ctx, user.ID, security.HashToken(token)); err != nil {
		return err
	}
	s.notify.Dispatch(notification.NewMessage(notification.KindVerification, user.Email, token, map[string]string{
		"username": user.Username,
	}))
	return nil
}

// VerifyEmail consumes a verification token, marks the user verified and signs
// them in. Only the most recently issued verification token is accepted.
func (s *AccountService) VerifyEmail(ctx context.Context, token string) (*AuthResult, error) {
	claims, err := s.codec.VerifyEmailVerification(token)
	if err != nil {
		return nil, err
	}
	user, err := s.users.GetByEmail(ctx, claims.Email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperr.NotFound("user")
	}
	if user.IsVerified {
		return nil, apperr.Token(errAlreadyVerified)
	}
	if !security.TokenHashEqual(token, user.VerificationToken) {
		return nil, apperr.Token(errTokenSuperseded)
	}
	if err := s.users.MarkVerified(ctx, user.ID); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	user.IsVerified = true
	user.VerifiedAt = &now
	user.VerificationToken = ""
	return s.authenticate(user)
}

// Signin checks the password and returns an identity token. Unknown emails and
// wrong passwords fail alike with apperr.ErrInvalidCredentials; a correct
// password on an unverified or deleted account fails with apperr.ErrForbidden.
func (s *AccountService) Signin(ctx context.Context, email, password string) (*AuthResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, apperr.New(apperr.ErrInvalidCredentials, "")
	}
	user, err := s.users.GetAnyByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperr.New(apperr.ErrInvalidCredentials, "")
	}
	if err := s.hasher.Compare(user.PasswordHash, security.SaltedPassword(user.Salt, password)); err != nil {
		return nil, apperr.New(apperr.ErrInvalidCredentials, "")
	}
	if user.IsDeleted() {
		return nil, apperr.Forbidden(apperr.ReasonUserDeleted)
	}
	if !user.IsVerified {
		return nil, apperr.Forbidden(apperr.ReasonUserNotVerified)
	}
	return s.authenticate(user)
}

// CurrentUser returns the live user for userID.
func (s *AccountService) CurrentUser(ctx context.Context, userID string) (*userdomain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperr.NotFound("user")
	}
	return user, nil
}

// ProfileInput changes any of username, email and password. Empty fields are kept.
type ProfileInput struct {
	Username string `validate:"omitempty,min=3,max=32,alphanum"`
	Email    string `validate:"omitempty,email,max=254"`
	Password string `validate:"omitempty,min=8,max=40"`
}

// UpdateProfile changes the user's username, email or password. A new password
// is hashed with a fresh salt. A new email clears verification and mails a
// link to the new address; the account cannot sign in until it is confirmed.
// A taken username or email fails with apperr.ErrConflict.
func (s *AccountService) UpdateProfile(ctx context.Context, userID string, in ProfileInput) (*userdomain.User, error) {
	in.Email = normalizeEmail(in.Email)
	if in == (ProfileInput{}) {
		return nil, apperr.InvalidArgument("nothing to update")
	}
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	user, err := s.CurrentUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if in.Username != "" {
		user.Username = in.Username
	}
	if in.Password != "" {
		salt, err := security.GenerateSalt()
		if err != nil {
			return nil, err
		}
		hash, err := s.hasher.Hash(security.SaltedPassword(salt, in.Password))
		if err != nil {
			return nil, err
		}
		user.Salt, user.PasswordHash = salt, hash
	}
	var verifyToken string
	if in.Email != "" && in.Email != user.Email {
		verifyToken, err = s.codec.Issue(security.EmailVerificationClaims{Email: in.Email})
		if err != nil {
			return nil, err
		}
		user.Email = in.Email
		user.IsVerified = false
		user.VerifiedAt = nil
		user.VerificationToken = security.HashToken(verifyToken)
	}
	user.UpdatedAt = time.Now().UTC()
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}

	if verifyToken != "" {
		s.notify.Dispatch(notification.NewMessage(notification.KindVerification, user.Email, verifyToken, map[string]string{
			"username": user.Username,
		}))
	}
	s.log.Info().Str("user_id", user.ID).Bool("password_changed", in.Password != "").Bool("email_changed", verifyToken != "").Msg("profile updated")
	return user, nil
}

// DeleteAccount soft-deletes the user. Existing identity tokens stay valid
// until they expire but the user can no longer sign in.
func (s *AccountService) DeleteAccount(ctx context.Context, userID string) error {
	if err := s.users.SoftDelete(ctx, userID); err != nil {
		return err
	}
	s.log.Info().Str("user_id", userID).Msg("user deleted")
	return nil
}

func (s *AccountService) authenticate(user *userdomain.User) (*AuthResult, error) {
	token, err := s.codec.IssueIdentity(user.ID, user.Username, user.Email)
	if err != nil {
		return nil, err
	}
	return &AuthResult{
		Token:     token,
		ExpiresAt: time.Now().UTC().Add(s.codec.TTL()),
		User:      user,
	}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
