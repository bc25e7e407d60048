package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/je4/bordercrop/pkg/bordercrop"
	"github.com/je4/bordercrop/pkg/util"
)

var cfgFlag = flag.String("cfg", "", "config file location")
var inputFlag = flag.String("input", "", "folder with the images to crop")
var outputFlag = flag.String("output", "", "folder for the cropped images")
var reportFlag = flag.String("report", "", "csv report file")
var concurrentFlag = flag.Uint("n", 0, "number of concurrent workers")
var recursiveFlag = flag.Bool("recursive", false, "descend into subfolders")
var dryrunFlag = flag.Bool("dryrun", false, "measure only, do not write cropped images")
var watchFlag = flag.Bool("watch", false, "keep watching the input folder")

func main() {
	flag.Parse()

	conf, err := util.LoadConfig(*cfgFlag)
	if err != nil {
		log.Fatalf("cannot load config: %v", err)
	}

	// only flags given on the command line overwrite the config
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "input":
			conf.Crop.InputDir = *inputFlag
		case "output":
			conf.Crop.OutputDir = *outputFlag
		case "report":
			conf.Crop.Report = *reportFlag
		case "n":
			conf.Crop.Workers = *concurrentFlag
		case "recursive":
			conf.Crop.Recursive = *recursiveFlag
		case "dryrun":
			conf.Crop.DryRun = *dryrunFlag
		case "watch":
			conf.Crop.Watch.Enabled = *watchFlag
		}
	})

	logger, logCloser, err := util.CreateLogger(&conf.Log)
	if err != nil {
		log.Fatalf("cannot create logger: %v", err)
	}
	defer logCloser.Close()

	var cache *bordercrop.Cache
	if conf.Crop.Cache.Enabled {
		cache, err = bordercrop.NewCache(conf.Crop.Cache, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("cannot open scan cache")
		}
		defer cache.Close()
	}

	// no Fatal below, the deferred Close calls must run
	proc, err := bordercrop.NewProcessor(conf.Crop, cache, logger)
	if err != nil {
		logger.Error().Err(err).Msg("cannot initialize processor")
		return
	}

	fsys, err := bordercrop.OpenInput(conf.Crop.InputDir, conf.Crop.ZipAsFolder, logger)
	if err != nil {
		logger.Error().Err(err).Msgf("cannot open input folder %s", conf.Crop.InputDir)
		return
	}
	src := bordercrop.NewSource(fsys, conf.Crop.Recursive, conf.Crop.Extensions)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	batch := bordercrop.NewBatch(proc, conf.Crop.Workers, conf.Crop.Report, logger)
	outcome, err := batch.Run(ctx, src)
	if err != nil {
		logger.Error().Err(err).Msg("batch failed")
		if outcome == nil {
			return
		}
	}
	failed := outcome.Failed()
	fmt.Printf("%d images processed, %d cropped, %d failed\n", len(outcome.Results), len(outcome.Rows()), len(failed))

	if !conf.Crop.Watch.Enabled {
		return
	}

	watcher := bordercrop.NewWatcher(proc, src, conf.Crop.InputDir, conf.Crop.Report, conf.Crop.Watch.Debounce.Duration, outcome.Rows(), logger)
	if err := watcher.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("watcher died")
	}
}
