// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package auth

import (
	"context"
	"fmt"
	"os"
)

// CodeProvider produces a one-time code when the server asks for one.
// Implementations may block for a long time (operator prompt, inbox
// polling); they must honor ctx cancellation. The login loop re-invokes
// the provider every time the server asks again, so each call must yield
// a fresh code.
type CodeProvider interface {
	Code(ctx context.Context) (string, error)
}

// CodeProviderFunc adapts a function to the CodeProvider interface.
type CodeProviderFunc func(ctx context.Context) (string, error)

// Code implements CodeProvider.
func (f CodeProviderFunc) Code(ctx context.Context) (string, error) { return f(ctx) }

// CaptchaSolver resolves a captcha challenge to its text answer given
// the captcha's gid. Same blocking and re-invocation rules as
// CodeProvider.
type CaptchaSolver interface {
	Solve(ctx context.Context, gid string) (string, error)
}

// CaptchaSolverFunc adapts a function to the CaptchaSolver interface.
type CaptchaSolverFunc func(ctx context.Context, gid string) (string, error)

// Solve implements CaptchaSolver.
func (f CaptchaSolverFunc) Solve(ctx context.Context, gid string) (string, error) {
	return f(ctx, gid)
}

// PromptFunc reads one line of operator input for the given prompt.
// The cli package supplies a liner-backed implementation.
type PromptFunc func(prompt string) (string, error)

// NewManualCodeProvider returns a CodeProvider that asks the operator to
// type the guard code from their inbox. emailHint, when non-empty, names
// the mail domain the code was sent to.
func NewManualCodeProvider(prompt PromptFunc, emailHint string) CodeProvider {
	return CodeProviderFunc(func(ctx context.Context) (string, error) {
		label := "guard code"
		if emailHint != "" {
			label = fmt.Sprintf("guard code [%s]", emailHint)
		}
		return promptWithContext(ctx, prompt, label+" ---> ")
	})
}

// NewManualCaptchaSolver returns a CaptchaSolver that downloads the
// captcha image, drops it into a temp file for the operator to open, and
// prompts for the text.
func NewManualCaptchaSolver(c *Client, prompt PromptFunc) CaptchaSolver {
	return CaptchaSolverFunc(func(ctx context.Context, gid string) (string, error) {
		img, err := c.CaptchaImage(ctx, gid)
		if err != nil {
			return "", fmt.Errorf("fetch captcha image: %w", err)
		}

		f, err := os.CreateTemp("", "captcha-*.png")
		if err != nil {
			return "", fmt.Errorf("write captcha image: %w", err)
		}
		if _, err := f.Write(img); err != nil {
			f.Close()
			return "", fmt.Errorf("write captcha image: %w", err)
		}
		f.Close()

		return promptWithContext(ctx, prompt, fmt.Sprintf("solve captcha %s ---> ", f.Name()))
	})
}

// promptWithContext runs the prompt in a goroutine so a caller-imposed
// timeout can abandon a stalled operator. The goroutine leaks its read
// until the operator finally answers, which is acceptable for a process
// that exits on login failure.
func promptWithContext(ctx context.Context, prompt PromptFunc, label string) (string, error) {
	type result struct {
		text string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		text, err := prompt(label)
		ch <- result{text: text, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-ch:
		return r.text, r.err
	}
}
