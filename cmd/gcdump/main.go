// Command gcdump builds an arena from a YAML configuration file, runs
// no mutator, and prints a coloured segment/trace report. It exists to
// make the collector's state observable from outside a test binary; it
// drives nothing, it only renders.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/Hamid-Mansha2/mps"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML arena configuration")
	flag.Parse()

	if *configPath == "" {
		fmt.Fprintln(os.Stderr, "gcdump: -config is required")
		os.Exit(2)
	}

	opts, err := mps.LoadOptions(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "gcdump:", err)
		os.Exit(1)
	}

	arena, res := mps.ArenaCreate(opts.ArenaOptions())
	if res != mps.ResOK {
		fmt.Fprintln(os.Stderr, "gcdump: creating arena:", res)
		os.Exit(1)
	}
	defer arena.Destroy()

	w := mps.DescribeWriter()
	arena.Describe(w)
	arena.Messages().DescribeMessages(w)
}
