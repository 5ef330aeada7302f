package cli

import (
	"context"
	"fmt"
	"os"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// Register prompts for the registration fields and creates the account.
func (a *App) Register(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", os.Stdout)
	if err != nil {
		return err
	}
	password, err := getPassword(os.Stdout)
	if err != nil {
		return err
	}
	question, err := getSimpleText(a.reader, "Choose a security question", os.Stdout)
	if err != nil {
		return err
	}
	answer, err := getSimpleText(a.reader, "Answer to the security question", os.Stdout)
	if err != nil {
		return err
	}

	out, err := a.session.Register(ctx, email, password, question, answer)
	if err != nil {
		if out != nil && out.Message != "" {
			fmt.Println(out.Message)
		} else {
			fmt.Println("Registration failed:", err)
		}
		return err
	}

	fmt.Println(out.Message, "You can log in now.")
	return nil
}

// Login prompts for credentials and authenticates. When the server is
// unreachable the session falls back to the offline path on its own;
// here we only report which one happened.
func (a *App) Login(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", os.Stdout)
	if err != nil {
		return err
	}
	password, err := getPassword(os.Stdout)
	if err != nil {
		return err
	}

	out, err := a.session.Login(ctx, email, password)
	if err != nil {
		if out != nil && out.Message != "" {
			fmt.Println(out.Message)
		} else {
			fmt.Println("Login failed:", err)
		}
		return err
	}

	switch {
	case out.RequiresVerification:
		fmt.Println("This device needs verification. Use 'question' and 'verify'.")
	case out.Offline:
		fmt.Println("Offline login successful")
		a.setMode(ModeOffline)
	default:
		fmt.Println("Login successful")
		a.setMode(ModeOnline)
	}
	return nil
}

// Question fetches and prints the pending security question.
func (a *App) Question(ctx context.Context) error {
	q, err := a.session.SecurityQuestion(ctx)
	if err != nil {
		fmt.Println("Cannot fetch the security question:", err)
		return err
	}
	fmt.Println("Security question:", q)
	return nil
}

// Verify prompts for the security answer and submits it.
func (a *App) Verify(ctx context.Context) error {
	answer, err := getSimpleText(a.reader, "Answer to the security question", os.Stdout)
	if err != nil {
		return err
	}

	out, err := a.session.VerifyDevice(ctx, answer)
	if err != nil {
		if out != nil && out.Message != "" {
			fmt.Println(out.Message)
		} else {
			fmt.Println("Verification failed:", err)
		}
		return err
	}
	if !out.Success {
		fmt.Println("Verification rejected:", out.Message)
		return nil
	}
	fmt.Println("Device verified, you are logged in.")
	return nil
}

// Logout clears the logged-in flag. The device stays verified.
func (a *App) Logout(ctx context.Context) error {
	if err := a.session.Logout(ctx); err != nil {
		return err
	}
	fmt.Println("Logged out.")
	return nil
}
