package main

import (
	"fmt"
	"log"

	"github.com/samuelfneumann/rollouts/agent"
	"github.com/samuelfneumann/rollouts/cache"
	"github.com/samuelfneumann/rollouts/environment/gridnav"
	"github.com/samuelfneumann/rollouts/episodeio"
	"github.com/samuelfneumann/rollouts/metrics"
	"github.com/samuelfneumann/rollouts/sampler"
	"github.com/samuelfneumann/rollouts/simulation"
)

func main() {
	var seed uint64 = 192382

	// Create the environment slots backed by one shared world
	envs, err := gridnav.DefaultConfig(seed).Create(4)
	if err != nil {
		log.Fatalf("could not create world: %v", err)
	}

	// Random agent
	policy := agent.Uniform(gridnav.Actions, seed)

	// Experience cache and metrics
	c := cache.New()
	sink, err := metrics.NewLogger("./logs")
	if err != nil {
		log.Fatalf("could not create logger: %v", err)
	}

	// Simulate
	conf := simulation.Config{
		Steps:         20_000,
		StepBudget:    10_000,
		Directory:     "./episodes",
		Curriculum:    true,
		ProgressWidth: 40,
	}
	driver, err := simulation.NewDriver(envs, policy, c, sink, conf)
	if err != nil {
		log.Fatalf("could not create driver: %v", err)
	}
	if _, err := driver.Run(nil); err != nil {
		log.Fatalf("simulation failed: %v", err)
	}

	// Sample a training batch from what was gathered
	s, err := sampler.New(c.Snapshot(), 16, seed)
	if err != nil {
		log.Fatalf("could not create sampler: %v", err)
	}
	batch, err := s.Batch(8)
	if err != nil {
		log.Fatalf("could not sample batch: %v", err)
	}
	fmt.Println("sampled image batch with shape", batch["image"].Shape())

	// Episodes persist across runs
	episodes, ids, err := episodeio.Load("./episodes", 1_000, false)
	if err != nil {
		log.Fatalf("could not reload episodes: %v", err)
	}
	if len(ids) > 0 {
		fmt.Printf("reloaded %d episodes, newest %v\n", len(episodes), ids[0])
	}
}
