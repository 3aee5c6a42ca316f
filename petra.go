package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/petra-storage/petra/cmd"

	"github.com/getsentry/sentry-go"
)

func main() {
	// Error reporting is best-effort: a gateway that cannot reach sentry
	// still serves requests.
	if err := sentry.Init(sentry.ClientOptions{
		SampleRate:       0.2,
		EnableTracing:    true,
		TracesSampleRate: 0.05,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "sentry init failed: %v\n", err)
	}
	// Give buffered events a chance to leave before shutdown.
	defer sentry.Flush(3 * time.Second)

	flag.Parse()

	cmd.Execute()
}
