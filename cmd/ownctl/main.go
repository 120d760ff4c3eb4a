// Command ownctl drives the ownership decision engine: classification,
// threshold tuning, model versions, retraining, active learning, error
// localization and A/B experiments.
package main

import (
	"os"

	"github.com/danielpatrickdp/ownership-engine/internal/cli"
)

// set via -ldflags
var version = "dev"

func main() {
	os.Exit(cli.Execute(version))
}
