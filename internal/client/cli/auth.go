package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ordokr/LMS-sub004/internal/client/storage"
	"github.com/ordokr/LMS-sub004/internal/crypto"
	"github.com/ordokr/LMS-sub004/internal/validation"
	"github.com/ordokr/LMS-sub004/pkg/api"
)

func (c *Cli) runLogin(ctx context.Context, args []string) error {
	fs := c.flags("login", "[-u username]")
	username := fs.String("u", "", "operator username")
	if _, err := parse(fs, args, 0); err != nil {
		return err
	}

	c.io.Println("=== Login ===")

	var err error
	if *username == "" {
		*username, err = c.io.ReadInput("Username: ")
		if err != nil {
			return fmt.Errorf("failed to read username: %w", err)
		}
	}
	if err := validation.ValidateUsername(*username); err != nil {
		return err
	}

	password, err := c.io.ReadPassword("Password: ")
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	if password == "" {
		return fmt.Errorf("password cannot be empty")
	}

	c.io.Println("Authenticating...")

	resp, err := c.apiClient.Login(ctx, api.LoginRequest{Username: *username, Password: password})
	if err != nil {
		return err
	}

	session := &storage.Session{
		Username:    *username,
		ServerURL:   c.serverURL,
		AccessToken: resp.AccessToken,
		ExpiresAt:   c.now().Add(time.Duration(resp.ExpiresIn) * time.Second),
	}
	if err := c.sessions.SaveSession(ctx, session); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	c.io.Println("✓ Login successful!")
	c.io.Printf("Username: %s\n", session.Username)
	c.io.Printf("Access token expires in: %d seconds\n", resp.ExpiresIn)
	return nil
}

func (c *Cli) runLogout(ctx context.Context, args []string) error {
	if _, err := parse(c.flags("logout", ""), args, 0); err != nil {
		return err
	}

	if err := c.sessions.DeleteSession(ctx); err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			c.io.Println("Not logged in.")
			return nil
		}
		return fmt.Errorf("logout failed: %w", err)
	}

	c.io.Println("✓ Logout successful!")
	c.io.Println("Your local session has been deleted.")
	return nil
}

func (c *Cli) runStatus(ctx context.Context, args []string) error {
	if _, err := parse(c.flags("status", ""), args, 0); err != nil {
		return err
	}

	c.io.Println("=== Server ===")
	health, err := c.apiClient.Health(ctx)
	if err != nil {
		c.io.Printf("Server %s is unreachable: %v\n", c.serverURL, err)
	} else {
		c.io.Printf("Server:   %s (version %s)\n", c.serverURL, health.Version)
		c.io.Printf("Database: %s\n", health.Database)
		c.io.Printf("Replica:  %s\n", health.Replica)
	}

	c.io.Println()
	c.io.Println("=== Session ===")
	if err := c.authorize(ctx); err != nil {
		c.io.Printf("Status: %v\n", err)
		return nil
	}

	session, err := c.sessions.GetSession(ctx)
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}
	c.io.Println("Status: Authenticated")
	c.io.Printf("Username: %s\n", session.Username)
	c.io.Printf("Token expires: %s (%s remaining)\n",
		session.ExpiresAt.Format(time.RFC3339), session.ExpiresAt.Sub(c.now()).Round(time.Second))

	st, err := c.apiClient.SyncStatus(ctx)
	if err != nil {
		return err
	}

	c.io.Println()
	c.io.Println("=== Sync ===")
	printSyncStatus(c.io, st)
	return nil
}

// runHashPassword печатает argon2id-хеш пароля для секции auth.operators конфигурации сервера
func (c *Cli) runHashPassword(_ context.Context, args []string) error {
	if _, err := parse(c.flags("hash-password", ""), args, 0); err != nil {
		return err
	}

	password, err := c.io.ReadPassword("Password: ")
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	if err := validation.ValidatePassword(password); err != nil {
		return err
	}

	confirm, err := c.io.ReadPassword("Repeat password: ")
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	if confirm != password {
		return fmt.Errorf("passwords do not match")
	}

	hash, err := crypto.HashPassword(password)
	if err != nil {
		return err
	}

	c.io.Println(hash)
	return nil
}
