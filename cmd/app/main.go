// Command app is a terminal rendering of the Campus Connect client: it
// drives the route guard loop and the sign-in, verification and settings
// flows against the hosted service (or the local emulator).
package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/campus-connect/appcore/internal/application/account"
	"github.com/campus-connect/appcore/internal/application/guard"
	"github.com/campus-connect/appcore/internal/application/signin"
	"github.com/campus-connect/appcore/internal/application/verification"
	"github.com/campus-connect/appcore/internal/backend"
	"github.com/campus-connect/appcore/internal/config"
	"github.com/campus-connect/appcore/internal/domain"
	"github.com/campus-connect/appcore/internal/nav"
	"github.com/campus-connect/appcore/internal/pkg/id"
	"github.com/campus-connect/appcore/internal/transport/callback"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}
	cfg := config.Load()

	app := &app{
		cfg:    cfg,
		in:     bufio.NewScanner(os.Stdin),
		navCh:  make(chan nav.Destination, 1),
		loaded: false,
	}
	if cfg.Present() {
		app.client = backend.NewClient(cfg.ServiceURL, cfg.ServiceAnonKey,
			backend.WithDeviceID(installID()))
		app.admin = backend.NewAdmin(cfg.ServiceURL, cfg.ServiceRoleKey)
		app.startCallbackListener()
	}
	app.run(context.Background())
}

type app struct {
	cfg    *config.Config
	client *backend.Client
	admin  *backend.Admin
	in     *bufio.Scanner
	navCh  chan nav.Destination
	loaded bool
}

// run is the route guard loop: re-decide after every screen, render exactly
// one of the four top-level states.
func (a *app) run(ctx context.Context) {
	for {
		sess := a.currentSession(ctx)
		switch guard.Decide(!a.loaded, sess, a.cfg.Present()) {
		case guard.RouteLoading:
			fmt.Println("Loading session...")
			a.loaded = true
		case guard.RouteSetupRequired:
			fmt.Println("Setup required: set SERVICE_URL and SERVICE_ANON_KEY (see .env).")
			return
		case guard.RouteAuth:
			if done := a.authArea(ctx, sess); done {
				return
			}
		case guard.RouteMain:
			if done := a.mainArea(ctx, sess); done {
				return
			}
		}
	}
}

// currentSession reads the latest session; the guard never caches it.
func (a *app) currentSession(ctx context.Context) *domain.Session {
	if a.client == nil || !a.loaded {
		return nil
	}
	sess, err := a.client.GetSession(ctx)
	if err != nil {
		log.Printf("session read failed: %v", err)
		return nil
	}
	return sess
}

// authArea renders the sign-in stack. A session that exists but is not
// confirmed lands directly on the verify screen for its address.
func (a *app) authArea(ctx context.Context, sess *domain.Session) bool {
	if sess != nil && sess.User != nil && !sess.Confirmed() {
		a.verifyScreen(ctx, sess.User.Email)
		return false
	}
	fmt.Println("\n[1] Sign in  [2] Sign up  [q] Quit")
	switch a.prompt("> ") {
	case "1":
		a.signInScreen(ctx, false)
	case "2":
		a.signInScreen(ctx, true)
	case "q":
		return true
	}
	return false
}

func (a *app) signInScreen(ctx context.Context, signUp bool) {
	flow := signin.New(a.client, a.cfg.CampusEmailDomain)
	defer flow.Close()
	email := a.prompt("Email: ")
	password := a.prompt("Password: ")

	var dest nav.Destination
	var err error
	if signUp {
		dest, err = flow.SignUp(ctx, email, password)
	} else {
		dest, err = flow.SignIn(ctx, email, password)
	}
	if err != nil {
		fmt.Printf("  ! %v\n", err)
		return
	}
	if dest.Base() == nav.Verify {
		a.verifyScreen(ctx, dest.Param("email"))
	}
}

func (a *app) verifyScreen(ctx context.Context, email string) {
	m := verification.New(a.client, email,
		verification.WithCooldown(a.cfg.ResendCooldown))
	defer m.Close()

	if dest, err := m.Activate(ctx); dest == nav.Main {
		fmt.Println("Email already verified.")
		return
	} else if err != nil {
		fmt.Printf("  ! %v\n", err)
	} else {
		fmt.Printf("A 6-digit code was sent to %s.\n", email)
	}

	focus := 0
	for {
		// The emailed deep link may have completed verification out of band.
		select {
		case dest := <-a.navCh:
			if dest == nav.Main || dest == nav.SignIn {
				fmt.Println("Verified via email link.")
				return
			}
		default:
		}

		fmt.Printf("Code %s  [s]ubmit  [r]esend(%ds)  [b]ackspace  [q]uit screen\n",
			renderDigits(m.Digits()), m.CooldownSeconds())
		input := a.prompt("> ")
		switch input {
		case "s":
			dest, err := m.Submit(ctx)
			if err != nil {
				fmt.Printf("  ! %v\n", err)
				continue
			}
			switch dest {
			case nav.Main:
				fmt.Println("Verified. Welcome!")
				return
			case nav.SignIn:
				fmt.Println("Verified. Please sign in again.")
				return
			}
		case "r":
			if err := m.Resend(ctx); err != nil {
				fmt.Printf("  ! %v\n", err)
			} else if m.CooldownSeconds() > 0 {
				fmt.Println("Code sent.")
			}
		case "q":
			return
		case "b":
			if next, moved := m.Backspace(focus); moved {
				focus = next
			}
		default:
			// Each typed character lands in the focused cell, the way the
			// six input boxes behave on the phone.
			for _, r := range input {
				if next, moved := m.EnterDigit(focus, string(r)); moved {
					focus = next
				}
			}
		}
	}
}

func (a *app) mainArea(ctx context.Context, sess *domain.Session) bool {
	actions := account.New(a.client, backend.NewEraser(a.client, a.admin))
	email := ""
	if sess.User != nil {
		email = sess.User.Email
	}
	fmt.Printf("\nSigned in as %s\n[1] Sign out  [2] Delete account  [q] Quit\n", email)
	switch a.prompt("> ") {
	case "1":
		if _, err := actions.SignOut(ctx); err != nil {
			fmt.Printf("  ! %v\n", err)
		}
	case "2":
		a.deleteFlow(ctx, actions)
	case "q":
		return true
	}
	return false
}

// deleteFlow is the two-step destructive confirmation from the settings
// screen: open the confirmation, then require an explicit "delete".
func (a *app) deleteFlow(ctx context.Context, actions *account.Actions) {
	pending := actions.BeginDelete()
	fmt.Println("This permanently removes your account and everything attached to it.")
	if a.prompt("Type 'delete' to confirm: ") != "delete" {
		pending.Cancel()
		fmt.Println("Cancelled.")
		return
	}
	if _, err := pending.Confirm(ctx); err != nil {
		fmt.Printf("  ! %v\n", err)
		return
	}
	fmt.Println("Account deleted.")
}

func (a *app) startCallbackListener() {
	handler := callback.NewHandler(a.client, func(dest nav.Destination) {
		select {
		case a.navCh <- dest:
		default:
		}
	})
	srv := &http.Server{
		Addr:         a.cfg.CallbackAddr,
		Handler:      handler.Router(a.cfg.ServiceURL),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("callback listener: %v", err)
		}
	}()
}

func (a *app) prompt(label string) string {
	fmt.Print(label)
	if !a.in.Scan() {
		return "q"
	}
	return strings.TrimSpace(a.in.Text())
}

func renderDigits(digits [verification.CodeLength]string) string {
	cells := make([]string, len(digits))
	for i, d := range digits {
		if d == "" {
			d = "_"
		}
		cells[i] = d
	}
	return "[" + strings.Join(cells, " ") + "]"
}

// installID returns the per-install device identifier, minting and
// persisting one on first run.
func installID() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return id.New()
	}
	path := filepath.Join(dir, "campusconnect", "device_id")
	if b, err := os.ReadFile(path); err == nil && len(b) > 0 {
		return strings.TrimSpace(string(b))
	}
	device := id.New()
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err == nil {
		_ = os.WriteFile(path, []byte(device), 0o600)
	}
	return device
}
