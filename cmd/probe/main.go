// Command probe runs one risk assessment against the configured backend and
// prints the result panel. It is meant for checking a deployment by hand:
//
//	probe -lat -25.4294 -lng -49.2733 -radius 1000
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/georisk/georisk/internal/adapters/riskapi"
	"github.com/georisk/georisk/internal/core/domain"
	"github.com/georisk/georisk/internal/core/usecases"
	"github.com/georisk/georisk/internal/pkg/config"
	"github.com/georisk/georisk/internal/pkg/logging"
)

func main() {
	cfg, err := config.Load("georisk-probe")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	lat := flag.Float64("lat", cfg.Session.CenterLat, "latitude of the point of interest")
	lng := flag.Float64("lng", cfg.Session.CenterLng, "longitude of the point of interest")
	radius := flag.Float64("radius", cfg.Session.DefaultRadius, "analysis radius in meters")
	baseURL := flag.String("url", cfg.Risk.BaseURL, "risk backend base URL")
	asJSON := flag.Bool("json", false, "print the raw assessment as JSON")
	flag.Parse()

	logger := logging.New(os.Stderr, cfg.Log.Level, "text", "")

	client := riskapi.New(riskapi.Config{
		BaseURL:  *baseURL,
		Endpoint: cfg.Risk.Endpoint,
		Timeout:  cfg.Risk.Timeout(),
	}, riskapi.WithLogger(logger))
	svc := usecases.NewAssessmentService(client, cfg.Session.MinRadius)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Risk.Timeout()+5*time.Second)
	defer cancel()

	center := domain.GeoPoint{Lat: *lat, Lng: *lng}
	start := time.Now()
	a, err := svc.Assess(ctx, center, *radius)
	if err != nil {
		fmt.Fprintln(os.Stderr, usecases.FailureMessage(err))
		logger.Error("assessment failed", "kind", domain.ErrorKind(err), "error", err)
		os.Exit(1)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(a.Result); err != nil {
			log.Fatalf("encode: %v", err)
		}
		return
	}

	p := a.Overlay.Panel
	fmt.Printf("Coordenadas:   %s\n", p.Coordinates)
	fmt.Printf("Rio próximo:   %s\n", p.NearestWaterBody)
	fmt.Printf("Distância:     %s\n", p.Distance)
	fmt.Printf("Queda relativa: %s\n", p.RelativeDrop)
	fmt.Printf("Nível:         %s (%s)\n", p.LevelLabel, a.Overlay.FillColor)
	fmt.Printf("               %s\n", p.Description)
	if p.Narrative != "" {
		fmt.Printf("\n%s\n", p.Narrative)
	}
	fmt.Printf("\n(%d vertices, %v)\n", len(a.Ring)-1, time.Since(start).Round(time.Millisecond))
}
