// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jeranaias/desperado/internal/session"
)

// script drives a fake login server: each /login/dologin/ post consumes
// the next canned body, and every request is recorded for assertions.
type script struct {
	key    *rsa.PrivateKey
	bodies []string

	mu         sync.Mutex
	keyCalls   int
	loginCalls int
	forms      []url.Values
}

func newScriptedServer(t *testing.T, keySuccess bool, bodies ...string) (*httptest.Server, *script) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 1024)
	require.NoError(t, err)
	s := &script{key: key, bodies: bodies}

	mux := http.NewServeMux()
	mux.HandleFunc("/login/getrsakey/", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.keyCalls++
		s.mu.Unlock()

		if !keySuccess {
			fmt.Fprint(w, `{"success": false}`)
			return
		}
		fmt.Fprintf(w, `{
			"success": true,
			"publickey_mod": "%x",
			"publickey_exp": "%x",
			"timestamp": "987654",
			"token_gid": "gid123"
		}`, key.PublicKey.N, key.PublicKey.E)
	})
	mux.HandleFunc("/login/dologin/", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())

		s.mu.Lock()
		i := s.loginCalls
		s.loginCalls++
		s.forms = append(s.forms, r.PostForm)
		s.mu.Unlock()

		require.Less(t, i, len(s.bodies), "more login submissions than scripted")
		if i == len(s.bodies)-1 {
			// Final response; the success path sets a session cookie.
			http.SetCookie(w, &http.Cookie{Name: "sessionid", Value: "scripted-session"})
		}
		fmt.Fprint(w, s.bodies[i])
	})
	mux.HandleFunc("/join/refreshcaptcha/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"gid": 424242}`)
	})
	mux.HandleFunc("/public/captcha.php", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not really a png"))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, s
}

const successBody = `{
	"success": true,
	"login_complete": true,
	"transfer_parameters": {"steamid": "76561198000000", "token": "tok", "token_secure": "tokS"}
}`

// countingCodes is a CodeProvider that yields CODE1, CODE2, ... and
// counts invocations.
type countingCodes struct {
	mu    sync.Mutex
	calls int
}

func (p *countingCodes) Code(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return fmt.Sprintf("CODE%d", p.calls), nil
}

func (p *countingCodes) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func TestLoginImmediateSuccess(t *testing.T) {
	srv, s := newScriptedServer(t, true, successBody)
	client := NewClient().WithBaseURLs(srv.URL, srv.URL)

	sess, err := client.Login(context.Background(), LoginOptions{
		Account:  "gabe",
		Password: "hunter2",
	})
	require.NoError(t, err)
	require.Equal(t, "gabe", sess.Account())
	require.Equal(t, "76561198000000", sess.SteamID())
	require.Equal(t, 1, s.keyCalls)
	require.Equal(t, 1, s.loginCalls)

	// The identity carries both the server-set cookie and the tokens
	// from the transfer parameters.
	v, ok := sess.Cookie("sessionid")
	require.True(t, ok)
	require.Equal(t, "scripted-session", v)

	v, ok = sess.Cookie("steamLogin")
	require.True(t, ok)
	require.Equal(t, "76561198000000||tok", v)

	v, ok = sess.Cookie("steamLoginSecure")
	require.True(t, ok)
	require.Equal(t, "76561198000000||tokS", v)

	// The submission carried the encoded password, not the plaintext.
	form := s.forms[0]
	require.NotEmpty(t, form.Get("password"))
	require.NotEqual(t, "hunter2", form.Get("password"))
	require.Equal(t, "987654", form.Get("rsatimestamp"))
}

func TestLoginCaptchaThenSuccess(t *testing.T) {
	srv, s := newScriptedServer(t, true,
		`{"success": false, "captcha_needed": true, "captcha_gid": "12345"}`,
		successBody,
	)
	client := NewClient().WithBaseURLs(srv.URL, srv.URL)

	var solves int
	codes := &countingCodes{}
	_, err := client.Login(context.Background(), LoginOptions{
		Account:  "gabe",
		Password: "hunter2",
		Codes:    codes,
		Captcha: CaptchaSolverFunc(func(_ context.Context, gid string) (string, error) {
			solves++
			require.Equal(t, "12345", gid)
			return "W0RDS", nil
		}),
	})
	require.NoError(t, err)

	require.Equal(t, 2, s.loginCalls)
	require.Equal(t, 1, solves)
	require.Equal(t, 0, codes.count(), "code provider must not run for a captcha challenge")

	retry := s.forms[1]
	require.Equal(t, "12345", retry.Get("captchagid"))
	require.Equal(t, "W0RDS", retry.Get("captcha_text"))
}

func TestLoginCaptchaRefreshWhenNoGID(t *testing.T) {
	// A captcha challenge without a usable gid forces a refresh.
	srv, s := newScriptedServer(t, true,
		`{"success": false, "captcha_needed": true, "captcha_gid": "-1"}`,
		successBody,
	)
	client := NewClient().WithBaseURLs(srv.URL, srv.URL)

	_, err := client.Login(context.Background(), LoginOptions{
		Account:  "gabe",
		Password: "hunter2",
		Captcha: CaptchaSolverFunc(func(_ context.Context, gid string) (string, error) {
			require.Equal(t, "424242", gid)
			return "FRESH", nil
		}),
	})
	require.NoError(t, err)
	require.Equal(t, "424242", s.forms[1].Get("captchagid"))
}

func TestLoginEmailCodeReaskedThenSuccess(t *testing.T) {
	emailBody := `{"success": false, "emailauth_needed": true, "emaildomain": "example.com"}`
	srv, s := newScriptedServer(t, true, emailBody, emailBody, successBody)
	client := NewClient().WithBaseURLs(srv.URL, srv.URL)

	codes := &countingCodes{}
	_, err := client.Login(context.Background(), LoginOptions{
		Account:  "gabe",
		Password: "hunter2",
		Codes:    codes,
	})
	require.NoError(t, err)

	// Re-asked challenge means a second, fresh code.
	require.Equal(t, 3, s.loginCalls)
	require.Equal(t, 2, codes.count())
	require.Equal(t, "CODE1", s.forms[1].Get("emailauth"))
	require.Equal(t, "CODE2", s.forms[2].Get("emailauth"))
}

func TestLoginTwoFactorThenSuccess(t *testing.T) {
	srv, s := newScriptedServer(t, true,
		`{"success": false, "requires_twofactor": true}`,
		successBody,
	)
	client := NewClient().WithBaseURLs(srv.URL, srv.URL)

	twoFactor := &countingCodes{}
	_, err := client.Login(context.Background(), LoginOptions{
		Account:   "gabe",
		Password:  "hunter2",
		TwoFactor: twoFactor,
	})
	require.NoError(t, err)
	require.Equal(t, 1, twoFactor.count())
	require.Equal(t, "CODE1", s.forms[1].Get("twofactorcode"))
}

func TestLoginAttemptsExhausted(t *testing.T) {
	emailBody := `{"success": false, "emailauth_needed": true}`
	srv, s := newScriptedServer(t, true, emailBody, emailBody, emailBody)
	client := NewClient().WithBaseURLs(srv.URL, srv.URL)

	codes := &countingCodes{}
	_, err := client.Login(context.Background(), LoginOptions{
		Account:     "gabe",
		Password:    "hunter2",
		Codes:       codes,
		MaxAttempts: 3,
	})
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrTooManyAttempts))

	// Exactly the budget, no more.
	require.Equal(t, 3, s.loginCalls)
	require.Equal(t, 3, codes.count())
}

func TestLoginUnrecognizedResponseFailsImmediately(t *testing.T) {
	srv, s := newScriptedServer(t, true, `<html>service unavailable</html>`)
	client := NewClient().WithBaseURLs(srv.URL, srv.URL)

	_, err := client.Login(context.Background(), LoginOptions{
		Account:  "gabe",
		Password: "hunter2",
	})
	require.Error(t, err)

	var unrec *UnrecognizedStateError
	require.True(t, errors.As(err, &unrec))
	require.Contains(t, string(unrec.Raw), "service unavailable")
	require.Equal(t, 1, s.loginCalls, "unrecognized state must not be retried")
}

func TestLoginRejected(t *testing.T) {
	srv, _ := newScriptedServer(t, true,
		`{"success": false, "message": "The account name or password is incorrect."}`)
	client := NewClient().WithBaseURLs(srv.URL, srv.URL)

	_, err := client.Login(context.Background(), LoginOptions{
		Account:  "gabe",
		Password: "wrong",
	})
	require.Error(t, err)

	var rejected *RejectedError
	require.True(t, errors.As(err, &rejected))
	require.Contains(t, rejected.Reason, "incorrect")
}

func TestLoginCodeProviderFailureAborts(t *testing.T) {
	// A provider that itself fails is fatal; the loop must not burn the
	// remaining attempts retrying without an answer.
	srv, s := newScriptedServer(t, true,
		`{"success": false, "emailauth_needed": true}`,
		successBody,
	)
	client := NewClient().WithBaseURLs(srv.URL, srv.URL)

	providerErr := errors.New("mailbox unreachable")
	_, err := client.Login(context.Background(), LoginOptions{
		Account:  "gabe",
		Password: "hunter2",
		Codes: CodeProviderFunc(func(context.Context) (string, error) {
			return "", providerErr
		}),
	})
	require.Error(t, err)

	var challenge *ChallengeError
	require.True(t, errors.As(err, &challenge))
	require.Equal(t, "email code", challenge.Challenge)
	require.True(t, errors.Is(err, providerErr))
	require.Equal(t, 1, s.loginCalls, "a failed provider must abort, not retry")
}

func TestLoginCaptchaSolverFailureAborts(t *testing.T) {
	srv, s := newScriptedServer(t, true,
		`{"success": false, "captcha_needed": true, "captcha_gid": "12345"}`,
		successBody,
	)
	client := NewClient().WithBaseURLs(srv.URL, srv.URL)

	_, err := client.Login(context.Background(), LoginOptions{
		Account:  "gabe",
		Password: "hunter2",
		Captcha: CaptchaSolverFunc(func(context.Context, string) (string, error) {
			return "", errors.New("operator gave up")
		}),
	})
	require.Error(t, err)

	var challenge *ChallengeError
	require.True(t, errors.As(err, &challenge))
	require.Equal(t, "captcha", challenge.Challenge)
	require.Equal(t, 1, s.loginCalls)
}

func TestLoginTwoFactorProviderFailureAborts(t *testing.T) {
	srv, s := newScriptedServer(t, true,
		`{"success": false, "requires_twofactor": true}`,
		successBody,
	)
	client := NewClient().WithBaseURLs(srv.URL, srv.URL)

	_, err := client.Login(context.Background(), LoginOptions{
		Account:  "gabe",
		Password: "hunter2",
		TwoFactor: CodeProviderFunc(func(context.Context) (string, error) {
			return "", errors.New("clock skew")
		}),
	})
	require.Error(t, err)

	var challenge *ChallengeError
	require.True(t, errors.As(err, &challenge))
	require.Equal(t, "two-factor code", challenge.Challenge)
	require.Equal(t, 1, s.loginCalls)
}

func TestLoginChallengeWithoutProvider(t *testing.T) {
	srv, s := newScriptedServer(t, true,
		`{"success": false, "emailauth_needed": true}`)
	client := NewClient().WithBaseURLs(srv.URL, srv.URL)

	_, err := client.Login(context.Background(), LoginOptions{
		Account:  "gabe",
		Password: "hunter2",
	})
	require.Error(t, err)

	var challenge *ChallengeError
	require.True(t, errors.As(err, &challenge))
	require.True(t, errors.Is(err, ErrNoProvider))
	require.Equal(t, 1, s.loginCalls)
}

func TestLoginKeyRetrievalFailure(t *testing.T) {
	srv, s := newScriptedServer(t, false)
	client := NewClient().WithBaseURLs(srv.URL, srv.URL)

	_, err := client.Login(context.Background(), LoginOptions{
		Account:  "gabe",
		Password: "hunter2",
	})
	require.Error(t, err)

	var keyErr *KeyRetrievalError
	require.True(t, errors.As(err, &keyErr))
	require.Equal(t, 0, s.loginCalls, "no submission without key material")
}

func TestLoginPasswordTooLongForKey(t *testing.T) {
	srv, s := newScriptedServer(t, true, successBody)
	client := NewClient().WithBaseURLs(srv.URL, srv.URL)

	// 1024-bit key, so anything from 117 bytes up cannot be padded.
	_, err := client.Login(context.Background(), LoginOptions{
		Account:  "gabe",
		Password: string(make([]byte, 200)),
	})
	require.True(t, errors.Is(err, ErrPasswordTooLong))
	require.Equal(t, 0, s.loginCalls)
}

func TestLoginUsesStoredSession(t *testing.T) {
	srv, s := newScriptedServer(t, true, successBody)
	client := NewClient().WithBaseURLs(srv.URL, srv.URL)

	store, err := session.OpenStore(t.TempDir() + "/sessions.db")
	require.NoError(t, err)
	defer store.Close()

	existing := session.New("gabe", []session.Credential{
		{Name: "sessionid", Value: "old", Domain: "example.com", Path: "/"},
	}).WithSteamID("111")
	require.NoError(t, store.Save(existing))

	sess, err := client.Login(context.Background(), LoginOptions{
		Account:  "gabe",
		Password: "hunter2",
		Store:    store,
	})
	require.NoError(t, err)
	require.Equal(t, "111", sess.SteamID())

	// No network conversation at all.
	require.Equal(t, 0, s.keyCalls)
	require.Equal(t, 0, s.loginCalls)
}

func TestLoginPersistsSession(t *testing.T) {
	srv, _ := newScriptedServer(t, true, successBody)
	client := NewClient().WithBaseURLs(srv.URL, srv.URL)

	store, err := session.OpenStore(t.TempDir() + "/sessions.db")
	require.NoError(t, err)
	defer store.Close()

	_, err = client.Login(context.Background(), LoginOptions{
		Account:  "gabe",
		Password: "hunter2",
		Store:    store,
	})
	require.NoError(t, err)

	loaded, err := store.Load("gabe")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Equal(t, "76561198000000", loaded.SteamID())
}
