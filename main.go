// Command hanabi plays a handful of seeded games between two registered
// bots and reports their scores. spec.md §1 places a full CLI/evaluation
// harness deliberately out of core scope, so this stays a thin wiring of
// config.FromEnv into a bot.Registry and engine.PlaySeeds, the way a
// caller of this module would actually use it, rather than the
// speedup-experiment/training harness that formerly lived here.
package main

import (
	"flag"
	"fmt"
	"strings"

	"hanabi/blueprint"
	"hanabi/bot"
	"hanabi/config"
	"hanabi/engine"
	"hanabi/search"
)

func main() {
	players := flag.String("players", "SmartBot,SmartBot", "comma-separated bot names, one per seat")
	seeds := flag.String("seeds", "1", "comma-separated game seeds")
	flag.Parse()

	cfg := config.FromEnv()

	reg := bot.NewRegistry()
	blueprint.Register(reg)
	search.Register(reg, cfg)
	search.RegisterJoint(reg, cfg)

	botNames := strings.Split(*players, ",")

	var seedList []int64
	for _, s := range strings.Split(*seeds, ",") {
		var seed int64
		if _, err := fmt.Sscanf(s, "%d", &seed); err != nil {
			panic(fmt.Sprintf("invalid seed %q: %v", s, err))
		}
		seedList = append(seedList, seed)
	}

	results := engine.PlaySeeds(cfg, reg, botNames, seedList)

	total := 0
	for _, r := range results {
		fmt.Printf("seed %d: score %d\n", r.Seed, r.Score)
		total += r.Score
	}
	fmt.Printf("average score: %.2f\n", float64(total)/float64(len(results)))
}
