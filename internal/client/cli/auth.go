package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/fieldops/techsync/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// Login prompts the user for an email and password and exchanges them for a
// bearer token, which is persisted in the local database so later runs stay
// authenticated offline.
//
// The password byte slice is securely wiped before returning.
func (a *App) Login(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", os.Stdout)
	if err != nil {
		return err
	}

	password, err := getPassword(os.Stdout)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	token, err := a.api.Login(ctx, email, string(password))
	if err != nil {
		fmt.Println("Login failed:", err.Error())
		return err
	}

	if err := a.meta.SetToken(ctx, token); err != nil {
		return err
	}
	a.loggedIn = true
	fmt.Println("Success!")
	a.scheduler.Kick()
	return nil
}
