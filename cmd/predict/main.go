// Command predict classifies digit images from the command line, the same
// decision path the desktop drawing surface uses. With -strokes it replays
// a recorded drawing onto a fresh canvas instead.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/Brownie44l1/digit-api/internal/canvas"
	"github.com/Brownie44l1/digit-api/internal/config"
	"github.com/Brownie44l1/digit-api/internal/logging"
	"github.com/Brownie44l1/digit-api/internal/model"
	"github.com/Brownie44l1/digit-api/internal/preprocess"
	"github.com/Brownie44l1/digit-api/internal/recognizer"
)

func main() {
	weights := flag.String("weights", "models/weights.json", "weight artifact to load")
	level := flag.String("log-level", "warn", "log level")
	strokes := flag.String("strokes", "", "JSON stroke recording to draw and classify")
	flag.Parse()

	if flag.NArg() == 0 && *strokes == "" {
		fmt.Fprintln(os.Stderr, "usage: predict [-weights path] [-strokes file.json] [image.png ...]")
		os.Exit(2)
	}

	logger, err := logging.New(config.Log{Level: *level})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	m, err := model.LoadFile(*weights)
	if err != nil {
		log.Fatalf("Failed to load model: %v", err)
	}

	eng, err := model.NewEngine(m)
	if err != nil {
		log.Fatalf("Failed to build engine: %v", err)
	}
	rec, err := recognizer.New(eng, recognizer.Options{InputSize: model.InputSize}, logger)
	if err != nil {
		log.Fatalf("Failed to build recognizer: %v", err)
	}

	failed := false
	if *strokes != "" {
		p, err := predictStrokes(rec, *strokes)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", *strokes, err)
			failed = true
		} else {
			fmt.Printf("%s: %s\n", *strokes, p)
		}
	}
	for _, path := range flag.Args() {
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			failed = true
			continue
		}
		p, err := rec.PredictBytes(data)
		var de *preprocess.DecodeError
		switch {
		case errors.As(err, &de):
			fmt.Fprintf(os.Stderr, "%s: unable to decode image: %v\n", path, err)
			failed = true
			continue
		case err != nil:
			log.Fatalf("Prediction failed: %v", err)
		}
		fmt.Printf("%s: %s\n", path, p)
	}
	if failed {
		os.Exit(1)
	}
}

func predictStrokes(rec *recognizer.Recognizer, path string) (model.Prediction, error) {
	f, err := os.Open(path)
	if err != nil {
		return model.Prediction{}, err
	}
	defer f.Close()

	c := canvas.Default()
	if err := c.Replay(f); err != nil {
		return model.Prediction{}, err
	}
	return rec.PredictImage(c.Bitmap())
}
