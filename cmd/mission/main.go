// Command mission runs a single hierarchical mission end to end: it
// assembles the runtime from the environment, splits and executes the
// given task under a budget, and reports the result and any unmet
// deliverables.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"agentcore/internal/observability"
	"agentcore/internal/runtimecfg"
	"agentcore/internal/verify"
)

func main() {
	task := flag.String("task", "", "mission task description")
	budgetCents := flag.Uint64("budget-cents", 1000, "total budget for the mission, in cents")
	timeout := flag.Duration("timeout", 5*time.Minute, "overall mission timeout")
	flag.Parse()

	if *task == "" {
		fmt.Fprintln(os.Stderr, "usage: mission -task \"...\" [-budget-cents N] [-timeout 5m]")
		os.Exit(2)
	}

	if err := runtimecfg.LoadDotEnv(); err != nil {
		log.Debug().Err(err).Msg("no .env loaded")
	}
	observability.InitLogger("", "info")

	rt, err := runtimecfg.Load(runtimecfg.Options{})
	if err != nil {
		log.Fatal().Err(err).Msg("runtime assembly failed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	node, tree, b := rt.Root(*task, *budgetCents)

	output, err := node.Run(ctx, tree, *task, b)
	if err != nil {
		log.Fatal().Err(err).Msg("mission failed")
	}

	deliverables := verify.ExtractDeliverables(*task)
	missing := deliverables.MissingPaths(ctx)

	fmt.Println(output)
	fmt.Printf("\nspent=%dc of %dc\n", b.SpentCents(), b.TotalCents())
	if len(missing) > 0 {
		fmt.Printf("missing deliverables: %v\n", missing)
		os.Exit(1)
	}
}
