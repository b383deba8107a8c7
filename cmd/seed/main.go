// seed inserts development sample data through the services, so every row goes
// through the same validation and transactions as a real signup.
// Idempotent: skips when the dev user (dev@example.com) already exists.
package main

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog"

	"tenant-access-control/internal/config"
	"tenant-access-control/internal/db"
	identityservice "tenant-access-control/internal/identity/service"
	inviteservice "tenant-access-control/internal/invite/service"
	"tenant-access-control/internal/logger"
	memberdomain "tenant-access-control/internal/membership/domain"
	"tenant-access-control/internal/notification"
	"tenant-access-control/internal/server"
	tenancyservice "tenant-access-control/internal/tenancy/service"
	userrepo "tenant-access-control/internal/user/repository"
)

const (
	devUsername    = "dev"
	devUserEmail   = "dev@example.com"
	devPassword    = "password123"
	memberUsername = "member"
	memberEmail    = "member@example.com"
)

// tokenCapture keeps the last token mailed to each recipient.
type tokenCapture struct {
	mu     sync.Mutex
	tokens map[string]string
}

func (c *tokenCapture) Notify(_ context.Context, msg notification.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens[string(msg.Kind)+"/"+msg.Recipient] = msg.Token
	return nil
}

func (c *tokenCapture) token(kind notification.Kind, recipient string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tokens[string(kind)+"/"+recipient]
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log := logger.New(logger.Options{Level: cfg.LogLevel, Pretty: true, Service: "seed"})
	if err := seed(context.Background(), cfg, log); err != nil {
		log.Fatal().Err(err).Msg("seed failed")
	}
}

func seed(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	defer conn.Close()

	existing, err := userrepo.NewPostgresRepository(conn).GetAnyByEmail(ctx, devUserEmail)
	if err != nil {
		return fmt.Errorf("seed check: %w", err)
	}
	if existing != nil {
		log.Info().Str("email", devUserEmail).Msg("seed already applied, skipping")
		return nil
	}

	mail := &tokenCapture{tokens: make(map[string]string)}
	disp := notification.NewDispatcher(mail, log)
	stack := server.NewStack(conn, cfg, disp, nil, log)

	signup := func(username, email string) (*identityservice.SignupResult, error) {
		res, err := stack.Accounts.Signup(ctx, identityservice.SignupInput{Username: username, Email: email, Password: devPassword})
		if err != nil {
			return nil, fmt.Errorf("signup %s: %w", email, err)
		}
		disp.Wait()
		if _, err := stack.Accounts.VerifyEmail(ctx, mail.token(notification.KindVerification, email)); err != nil {
			return nil, fmt.Errorf("verify %s: %w", email, err)
		}
		return res, nil
	}

	dev, err := signup(devUsername, devUserEmail)
	if err != nil {
		return err
	}
	site, err := stack.Tenancy.CreateWebsite(ctx, dev.Organization.ID, tenancyservice.WebsiteInput{
		Name:        "Dev site",
		URL:         "http://localhost:3000",
		Description: "Sample website",
	})
	if err != nil {
		return fmt.Errorf("create website: %w", err)
	}
	if _, err := signup(memberUsername, memberEmail); err != nil {
		return err
	}

	if _, _, err := stack.Invites.Invite(ctx, inviteservice.InviteInput{
		Scope:        memberdomain.ScopeOrganization,
		ResourceID:   dev.Organization.ID,
		Email:        memberEmail,
		Role:         memberdomain.RoleMember,
		ResourceName: dev.Organization.Name,
	}); err != nil {
		return fmt.Errorf("invite member: %w", err)
	}
	disp.Wait()
	if _, err := stack.Invites.Accept(ctx, memberdomain.ScopeOrganization, mail.token(notification.KindOrgInvite, memberEmail)); err != nil {
		return fmt.Errorf("accept invite: %w", err)
	}

	log.Info().
		Str("organization_id", dev.Organization.ID).
		Str("website_id", site.ID).
		Str("password", devPassword).
		Strs("users", []string{devUserEmail, memberEmail}).
		Msg("seed applied")
	return nil
}
