package cli

import (
	"context"
	"fmt"
	"strconv"
)

// Score records a finished run: "score <level> <points>". The reconciler
// raises the cached best and pushes to the server when reachable.
func (a *App) Score(ctx context.Context, args []string) error {
	if len(args) != 2 {
		fmt.Println("Usage: score <level> <points>")
		return nil
	}
	points, err := strconv.Atoi(args[1])
	if err != nil {
		fmt.Println("Points must be an integer")
		return nil
	}

	if err := a.progress.OnScoreObserved(ctx, a.session.Email(), args[0], points); err != nil {
		fmt.Println("Could not record score:", err)
		return err
	}

	best, err := a.progress.BestScore(ctx, a.session.Email(), args[0])
	if err != nil {
		return err
	}
	fmt.Printf("Recorded. Best for %s: %d\n", args[0], best)
	return nil
}

// Best prints the locally cached best score: "best <level>".
func (a *App) Best(ctx context.Context, args []string) error {
	if len(args) != 1 {
		fmt.Println("Usage: best <level>")
		return nil
	}

	best, err := a.progress.BestScore(ctx, a.session.Email(), args[0])
	if err != nil {
		fmt.Println("Could not read best score:", err)
		return err
	}
	fmt.Printf("Best for %s: %d\n", args[0], best)
	return nil
}

// Sync runs a full reconciliation for the logged-in user.
func (a *App) Sync(ctx context.Context) error {
	a.progress.OnLogin(ctx, a.session.Email())
	fmt.Println("Sync finished.")
	return nil
}
