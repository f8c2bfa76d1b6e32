// Command ielts is an IELTS Writing practice tool. It hands out Task 1 and
// Task 2 prompts, times the attempt, has an examiner model band the essay
// against the four public criteria, and keeps the history in SQLite.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := newCLI()
	defer c.close()

	if err := newRootCmd(c).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, red("Error: ")+err.Error())
		return 1
	}
	return 0
}
