// Command gen-digis writes a synthetic events file and the matching
// geometry for exercising pixelreco.
package main

import (
	"flag"
	"log"
	"os"

	"github.com/banshee-data/pixelreco/internal/pixel/ingest"
	"github.com/banshee-data/pixelreco/internal/pixel/synthetic"
)

func main() {
	output := flag.String("o", "events.jsonl", "events output path")
	geomOut := flag.String("geometry", "geometry.json", "geometry output path")
	events := flag.Int("n", 100, "number of events")
	seed := flag.Uint64("seed", 1, "random seed")
	units := flag.Int("units", 16, "number of detector units")
	missing := flag.Int("missing", 0, "trailing units left out of the geometry")
	flag.Parse()

	cfg := synthetic.DefaultConfig()
	cfg.Seed = *seed
	cfg.DetUnits = *units
	cfg.MissingUnits = *missing
	gen := synthetic.NewGenerator(cfg)

	res, err := gen.Resolver()
	if err != nil {
		log.Fatalf("failed to build geometry: %v", err)
	}
	gf, err := os.Create(*geomOut)
	if err != nil {
		log.Fatalf("failed to create geometry file: %v", err)
	}
	if err := res.WriteJSON(gf); err != nil {
		log.Fatalf("failed to write geometry: %v", err)
	}
	if err := gf.Close(); err != nil {
		log.Fatalf("failed to close geometry file: %v", err)
	}

	ef, err := os.Create(*output)
	if err != nil {
		log.Fatalf("failed to create events file: %v", err)
	}
	defer ef.Close()

	w := ingest.NewWriter(ef)
	for i := 0; i < *events; i++ {
		if err := w.Write(gen.Next()); err != nil {
			log.Fatalf("failed to write event %d: %v", i+1, err)
		}
		if (i+1)%100 == 0 {
			log.Printf("%d/%d events", i+1, *events)
		}
	}
	log.Printf("Created: %s (%d events), %s (%d units)", *output, *events, *geomOut, res.Len())
}
