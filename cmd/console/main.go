package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/common-nighthawk/go-figure"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-console-client/auth"
	"github.com/jrsteele09/go-console-client/credentials"
	"github.com/jrsteele09/go-console-client/internal/config"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	c := config.New()
	displayAppname(c.GetAppName())

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		With().Timestamp().Logger()
	if c.GetEnv() != "DEV" {
		log = log.Level(zerolog.InfoLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := credentials.NewFileStore(c.GetCredentialsFile())

	client, err := auth.New(c, store,
		auth.WithLogger(log),
		auth.WithSessionExpiredHook(func() {
			fmt.Fprintln(os.Stderr, "Session expired. Please log in again.")
		}),
	)
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}
	client.OnError(func(message string, _ error) {
		fmt.Fprintf(os.Stderr, "Request failed: %s\n", message)
	})

	if !client.Authenticated() {
		if err := login(ctx, client); err != nil {
			return err
		}
	}

	profile, err := client.Me(ctx)
	if err != nil {
		return fmt.Errorf("fetch profile: %w", err)
	}

	fmt.Printf("Logged in as %s (%s)\n", profile.Email, strings.Join(profile.Roles, ", "))
	return nil
}

// login walks the two-step email + OTP flow on stdin.
func login(ctx context.Context, client *auth.Client) error {
	reader := bufio.NewReader(os.Stdin)

	email, err := prompt(reader, "Email: ")
	if err != nil {
		return err
	}

	session, err := client.Login(ctx, email)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}

	otp, err := prompt(reader, "One-time passcode: ")
	if err != nil {
		return err
	}

	if _, err := client.VerifyOTP(ctx, session, otp); err != nil {
		return fmt.Errorf("verify passcode: %w", err)
	}

	return nil
}

func prompt(reader *bufio.Reader, label string) (string, error) {
	fmt.Print(label)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
