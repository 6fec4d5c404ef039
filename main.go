package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	logging "github.com/ipfs/go-log/v2"

	"github.com/sbuerk/dbdoctor/cmd"
)

var log = logging.Logger("main")

func main() {
	// set up a context that is canceled when the command is interrupted
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		interrupt := make(chan os.Signal, 1)
		signal.Notify(interrupt, syscall.SIGTERM, syscall.SIGINT)

		select {
		case <-interrupt:
			log.Info("received interrupt signal")
			cancel()
		case <-ctx.Done():
		}

		// Allow any further SIGTERM or SIGINT to kill the process
		signal.Stop(interrupt)
	}()

	if err := cmd.ExecuteContext(ctx); err != nil {
		log.Errorf("%v", err)
		os.Exit(1)
	}
}
