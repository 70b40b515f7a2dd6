// This package runs the DAG core end to end against the minimal
// internal/board move generator and heuristic evaluator, printing one
// suggestion once the run duration elapses or an interrupt arrives.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/tetrisdag/internal/board"
	"github.com/tetrisdag/internal/config"
	"github.com/tetrisdag/internal/frontend"
	"github.com/tetrisdag/internal/workerpool"
)

var (
	configPath  = flag.String("config", "", "optional YAML config path (workers, speculate, seed)")
	addr        = flag.String("addr", "", "if set, serve the frontend websocket/debug HTTP API on this address")
	runDuration = flag.Duration("duration", 5*time.Second, "how long to let the worker pool expand before suggesting")
)

func main() {
	flag.Parse()
	log.SetFlags(log.Ltime)

	opts := config.DefaultBotOptions()
	if *configPath != "" {
		loaded, err := config.FromYaml(*configPath)
		if err != nil {
			log.Fatalf("error loading config: %s", err)
		}
		opts = loaded
	}
	if !opts.IsValid() {
		log.Fatalf("invalid bot options: %+v", opts)
	}

	root := board.NewGame()
	coord := workerpool.NewCoordinator(root, nil, opts, board.SimpleGenerator{}, board.DefaultHeuristicEvaluator())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	coord.Start(ctx)
	log.Printf("started %d workers, speculate=%t", opts.Workers, opts.Speculate)

	if *addr != "" {
		srv := frontend.NewServer(coord)
		go func() {
			log.Printf("serving frontend API on %s", *addr)
			if err := http.ListenAndServe(*addr, srv); err != nil {
				log.Printf("frontend server stopped: %s", err)
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)

	select {
	case <-time.After(*runDuration):
	case <-sigCh:
	}

	moves, info := coord.Suggest()
	fmt.Printf("suggested placements: %+v\n", moves)
	fmt.Printf("stats: %+v\n", info)

	if err := coord.Stop(); err != nil {
		log.Fatalf("error stopping worker pool: %s", err)
	}
}
