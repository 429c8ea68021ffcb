// Command createuser registers a user, with a seeded default board, directly
// against the configured database and blob store.
//
//	createuser -email admin@example.com
//
// The password is read from the terminal. Every server flag and environment
// variable applies as well.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/dmitrijs2005/talkboard/internal/console"
	"github.com/dmitrijs2005/talkboard/internal/flagx"
	"github.com/dmitrijs2005/talkboard/internal/server"
	"github.com/dmitrijs2005/talkboard/internal/server/config"
)

func main() {
	var email string
	fs := flag.NewFlagSet("createuser", flag.ExitOnError)
	fs.StringVar(&email, "email", "", "email of the new user")
	_ = fs.Parse(flagx.FilterArgs(os.Args[1:], []string{"-email"}))

	if err := run(context.Background(), email); err != nil {
		log.Fatalf("createuser: %v", err)
	}
}

func run(ctx context.Context, email string) error {
	if email == "" {
		var err error
		if email, err = console.Prompt(bufio.NewReader(os.Stdin), "Email", os.Stdout); err != nil {
			return err
		}
	}
	password, err := console.NewPassword(os.Stdout)
	if err != nil {
		return err
	}

	app, err := server.NewApp(ctx, config.LoadConfig())
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(ctx); err != nil {
			log.Printf("close: %v", err)
		}
	}()

	u, err := app.RegisterUser(ctx, email, string(password))
	if err != nil {
		return err
	}
	fmt.Printf("created user %s (%s)\n", u.Email, u.ID)
	return nil
}
