package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"hrdesk/api"
	"hrdesk/auth"
	"hrdesk/chatparse"
	"hrdesk/domain"
	hrerrors "hrdesk/errors"
	"hrdesk/internal"
	"hrdesk/repositories"
	"hrdesk/services"
	"hrdesk/session"
	"hrdesk/tenant"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"github.com/olekukonko/tablewriter"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "hrdesk error: %v\n", err)
	}
	os.Exit(code)
}

// run handles configuration loading, wiring, and the interactive loop.
func run() (int, error) {
	// 1. Load configuration from .env (if present) and the environment.
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Setup context to handle termination signals (Ctrl+C).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open the local credential store.
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.ERROR))
	if err != nil {
		return exitRuntime, fmt.Errorf("could not open credential store at %s: %w", config.BadgerFilepath, err)
	}
	defer func() {
		log.Info("Closing credential store...")
		_ = db.Close()
	}()

	// 4. Wire the session layer.
	store := repositories.NewCredentialRepository(db, log)
	gateway := api.NewGateway(config.APIBaseURL, config.HTTPTimeout, log)
	manager := session.NewManager(gateway, store, log)
	binder := tenant.NewBinder(gateway, manager, log)
	manager.SetHook(binder)
	chat := services.NewChatService(gateway, manager, config.HistoryLimit, log)

	unsubscribe := manager.Subscribe(func(s domain.Session) {
		printState(s)
	})
	defer unsubscribe()

	if err := gateway.Health(ctx); err != nil {
		color.Yellow.Printf("Backend unreachable at %s: %v\n", config.APIBaseURL, err)
	}

	// 5. Validate any stored credential before showing the prompt.
	manager.CheckSession(ctx)

	return repl(ctx, manager, binder, chat)
}

func repl(ctx context.Context, manager *session.Manager, binder *tenant.Binder, chat *services.ChatService) (int, error) {
	fmt.Println("Commands: signin <email> <password> | signup <email> <password> <full name>")
	fmt.Println("          verify <token> | invite <token> <password> <full name>")
	fmt.Println("          ask [file:<path>] <question> | upload <path> | org | whoami | signout | quit")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return exitOK, scanner.Err()
		}
		select {
		case <-ctx.Done():
			return exitOK, nil
		default:
		}

		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "quit", "exit":
			return exitOK, nil
		case "signin":
			if len(fields) != 3 {
				color.Red.Println("usage: signin <email> <password>")
				continue
			}
			if err := manager.SignIn(ctx, fields[1], fields[2]); err != nil {
				color.Red.Printf("sign-in failed: %v\n", err)
			}
		case "signup":
			if len(fields) < 4 {
				color.Red.Println("usage: signup <email> <password> <full name>")
				continue
			}
			err := manager.SignUp(ctx, auth.SignUpRequest{
				Email:    fields[1],
				Password: fields[2],
				FullName: strings.Join(fields[3:], " "),
			})
			if err != nil {
				color.Red.Printf("sign-up failed: %v\n", err)
				continue
			}
			color.Green.Println("Account created. Check your inbox to verify your email before signing in.")
		case "verify":
			if len(fields) != 2 {
				color.Red.Println("usage: verify <token>")
				continue
			}
			if err := manager.VerifyEmail(ctx, fields[1]); err != nil {
				color.Red.Printf("verification failed: %v\n", err)
				continue
			}
			color.Green.Println("Email verified. You can sign in now.")
		case "invite":
			if len(fields) < 4 {
				color.Red.Println("usage: invite <token> <password> <full name>")
				continue
			}
			if err := manager.AcceptInvitation(ctx, fields[1], fields[2], strings.Join(fields[3:], " ")); err != nil {
				color.Red.Printf("invitation failed: %v\n", err)
			}
		case "signout":
			manager.SignOut(ctx)
			chat.Reset()
		case "whoami":
			snap := manager.Snapshot()
			if snap.User == nil {
				color.Yellow.Println("not signed in")
				continue
			}
			fmt.Printf("%s <%s>\n", snap.User.FullName, snap.User.Email)
		case "org":
			if err := binder.Refresh(ctx); err != nil {
				color.Red.Printf("%v\n", err)
				continue
			}
			org, _ := binder.Current()
			fmt.Printf("%s (%s) active=%t\n", org.Name, org.Slug, org.IsActive)
		case "upload":
			if len(fields) != 2 {
				color.Red.Println("usage: upload <path>")
				continue
			}
			askTurn(ctx, manager, chat, "", fields[1])
		case "ask":
			if len(fields) < 2 {
				color.Red.Println("usage: ask [file:<path>] <question>")
				continue
			}
			path := ""
			rest := fields[1:]
			if strings.HasPrefix(rest[0], "file:") {
				path = strings.TrimPrefix(rest[0], "file:")
				rest = rest[1:]
			}
			askTurn(ctx, manager, chat, strings.Join(rest, " "), path)
		default:
			color.Red.Printf("unknown command %q\n", fields[0])
		}
	}
}

func askTurn(ctx context.Context, manager *session.Manager, chat *services.ChatService, query, path string) {
	var upload *api.Upload
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			color.Red.Printf("cannot open %s: %v\n", path, err)
			return
		}
		defer f.Close()
		upload = &api.Upload{Name: f.Name(), Content: f}
	}

	turn, err := chat.Ask(ctx, query, upload)
	if err != nil {
		if errors.Is(err, hrerrors.ErrSessionExpired) {
			// A mid-use 401: the credential is gone server-side.
			manager.Invalidate(ctx)
		}
		color.Red.Printf("chat failed: %v\n", err)
		return
	}
	if turn.Assistant == nil {
		color.Green.Println(turn.Ack)
		return
	}
	renderTurn(turn)
}

func renderTurn(turn services.Turn) {
	for _, block := range turn.Parsed.Prose {
		switch block.Kind {
		case chatparse.Blank:
			fmt.Println()
		case chatparse.BoldParagraph:
			color.Bold.Println(block.Text)
		default:
			fmt.Println(block.Text)
		}
	}

	if len(turn.Parsed.Citations) == 0 {
		return
	}
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"#", "Source", "Preview"})
	table.SetAutoWrapText(false)
	table.SetBorder(false)
	for _, c := range turn.Parsed.Citations {
		table.Append([]string{c.Index, c.SourceName, c.Preview})
	}
	table.Render()
}

func printState(s domain.Session) {
	switch s.State {
	case domain.StateAuthenticated:
		color.Green.Printf("[session] %s as %s\n", s.State, s.User.Email)
	case domain.StateUnauthenticated:
		if s.Err != nil {
			color.Red.Printf("[session] %s (%v)\n", s.State, s.Err)
			return
		}
		color.Yellow.Printf("[session] %s\n", s.State)
	default:
		color.Gray.Printf("[session] %s\n", s.State)
	}
}
