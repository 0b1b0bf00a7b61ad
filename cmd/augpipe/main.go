package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"augpipe/config"
	"augpipe/internal/logging"
	"augpipe/internal/telemetry"

	_ "augpipe/bbox"
	_ "augpipe/keypoint"
	_ "augpipe/transform"
)

func main() {
	pipelinePath := flag.String("pipeline", "pipeline.yml", "pipeline description to load")
	runtimePath := flag.String("config", "", "optional runtime config YAML")
	flag.Parse()

	rt, err := config.LoadRuntime(*runtimePath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Configure(logging.Options{Level: rt.LogLevel, JSON: rt.LogJSON})

	if rt.MetricsPort > 0 {
		telemetry.Expose(rt.MetricsPort)
	}

	t, err := config.LoadPipeline(*pipelinePath)
	if err != nil {
		logging.L().Error("load pipeline", "path", *pipelinePath, "err", err)
		os.Exit(1)
	}

	fmt.Println(t)
	logging.L().Info("pipeline valid", "path", *pipelinePath)
}
