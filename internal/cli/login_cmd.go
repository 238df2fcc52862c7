// login_cmd.go - the login command and the session bootstrap shared by
// every authenticated command.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jeranaias/desperado/internal/auth"
	"github.com/jeranaias/desperado/internal/config"
	"github.com/jeranaias/desperado/internal/mail"
	"github.com/jeranaias/desperado/internal/session"
)

// runLogin establishes (or reuses) a session and prints the profile it
// resolves to, proving the credentials work.
func runLogin(ctx context.Context, args *ArgParser) error {
	sess, store, _, err := establishSession(ctx, args)
	if err != nil {
		return err
	}
	defer store.Close()

	profileID, err := sess.ProfileID(ctx)
	if err != nil {
		return fmt.Errorf("verify session: %w", err)
	}
	fmt.Printf("logged in as %s (profile %s)\n", sess.Account(), profileID)

	if wallet, err := sess.WalletBalance(ctx); err == nil {
		fmt.Printf("wallet balance: %s\n", wallet)
	}
	return nil
}

// establishSession loads configuration, assembles the challenge
// providers it names, and runs the login conversation. The returned
// store is open; the caller closes it.
func establishSession(ctx context.Context, args *ArgParser) (*session.Session, *session.Store, *config.Config, error) {
	cfg, err := loadConfig(args)
	if err != nil {
		return nil, nil, nil, err
	}

	account := cfg.Account.Username
	if account == "" {
		if !IsTTY() {
			return nil, nil, nil, errors.New("no account configured and no terminal to ask on")
		}
		account, err = PromptLine("account name ---> ")
		if err != nil {
			return nil, nil, nil, err
		}
	}

	store, err := session.OpenStore(cfg.Store.Path)
	if err != nil {
		return nil, nil, nil, err
	}

	// Skip the password prompt entirely when a stored session exists.
	if stored, err := store.Load(account); err == nil && stored != nil {
		logrus.WithField("account", account).Debug("using stored session")
		return stored, store, cfg, nil
	}

	password := os.Getenv("DESPERADO_PASSWORD")
	if password == "" {
		if !IsTTY() {
			store.Close()
			return nil, nil, nil, errors.New("DESPERADO_PASSWORD not set and no terminal to ask on")
		}
		password, err = PromptPassword("password ---> ")
		if err != nil {
			store.Close()
			return nil, nil, nil, err
		}
	}

	client := auth.NewClient()
	opts := auth.LoginOptions{
		Account:       account,
		Password:      password,
		MaxAttempts:   cfg.Account.MaxAttempts,
		FriendlyName:  cfg.Account.FriendlyName,
		RememberLogin: cfg.Account.RememberLogin,
		Store:         store,
	}

	switch cfg.Account.GuardProvider {
	case config.GuardIMAP:
		opts.Codes = mail.NewProvider(mail.Config{
			Server:       cfg.Mail.Server,
			Username:     cfg.Mail.Username,
			Password:     cfg.Mail.Password,
			Mailbox:      cfg.Mail.Mailbox,
			MaxTries:     cfg.Mail.MaxTries,
			PollInterval: time.Duration(cfg.Mail.PollIntervalSecs) * time.Second,
		})
	default:
		if IsTTY() {
			opts.Codes = auth.NewManualCodeProvider(PromptLine, "")
		}
	}

	if IsTTY() {
		opts.Captcha = auth.NewManualCaptchaSolver(client, PromptLine)
	}

	if cfg.Account.TOTPSecret != "" {
		opts.TwoFactor = auth.NewTOTPProvider(cfg.Account.TOTPSecret)
	} else if IsTTY() {
		opts.TwoFactor = auth.NewManualCodeProvider(PromptLine, "")
	}

	sess, err := client.Login(ctx, opts)
	if err != nil {
		store.Close()
		return nil, nil, nil, fmt.Errorf("login: %w", err)
	}
	return sess, store, cfg, nil
}

// loadConfig honors --config, falling back to the default path.
func loadConfig(args *ArgParser) (*config.Config, error) {
	if path := args.Flag("config"); path != "" {
		return config.LoadFrom(path)
	}
	return config.Load()
}
