package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/petems/miclevel/internal/audio"
	"github.com/petems/miclevel/internal/config"
	"github.com/petems/miclevel/internal/history"
	"github.com/petems/miclevel/internal/logging"
	"github.com/petems/miclevel/internal/permissions"
	"github.com/petems/miclevel/internal/session"
)

var (
	// Version is set via ldflags at build time
	Version = "dev"
	// Commit is set via ldflags at build time
	Commit = "unknown"
)

// Console meter display range in dBFS.
const (
	meterFloorDB = -60.0
	meterWidth   = 40
)

func main() {
	listDevices := flag.Bool("devices", false, "list available input devices and exit")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("miclevel %s (%s)\n", Version, Commit)
		return
	}

	// A .env next to the binary may carry MICLEVEL_* overrides
	godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log := logging.New()
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	log := logging.NewWithLevel(cfg.LogLevel)

	// Initialize the capture backend
	backend, err := audio.New()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize audio")
	}
	defer backend.Close()

	sess := session.New(session.Config{
		Backend: backend,
		Gate:    permissions.NewGate(log),
		Logger:  log,
	})

	if *listDevices {
		devices, err := sess.AvailableDevices()
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to list devices")
		}
		for _, d := range devices {
			marker := " "
			if d.Default {
				marker = "*"
			}
			fmt.Printf("%s %s\n", marker, d.Name)
		}
		closeSession(sess, log)
		return
	}

	// Apply the configured device before the first start
	if cfg.Device != "" {
		if devices, err := sess.AvailableDevices(); err == nil {
			for _, d := range devices {
				if d.Name == cfg.Device {
					sess.SelectDevice(d)
					break
				}
			}
		}
	}

	sess.Start()

	sub := sess.Subscribe()
	ring := history.NewRing(cfg.Meter.History)

	go func() {
		for s := range sub.Levels() {
			ring.Push(s)
		}
	}()

	log.Info().Msg("miclevel starting...")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(time.Duration(cfg.Meter.RefreshMs) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-sigChan:
			fmt.Println()
			log.Info().Msg("Shutting down...")
			sub.Close()
			closeSession(sess, log)
			return
		case <-ticker.C:
			fmt.Print(renderMeter(ring))
		}
	}
}

func closeSession(sess *session.Session, log zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := sess.Close(ctx); err != nil {
		log.Error().Err(err).Msg("Shutdown error")
	}
}

// renderMeter draws a single-line bar from the most recent sample plus
// the retained peak, carriage-returned in place.
func renderMeter(ring *history.Ring) string {
	last, ok := ring.Last()
	if !ok {
		return "\r waiting for audio..."
	}

	peak, _ := ring.Peak()

	fill := meterFill(float64(last.Level))
	bar := strings.Repeat("#", fill) + strings.Repeat(" ", meterWidth-fill)

	return fmt.Sprintf("\r[%s] %6.1f dBFS  peak %6.1f", bar, last.Level, peak)
}

func meterFill(level float64) int {
	if level <= meterFloorDB {
		return 0
	}
	if level >= 0 {
		return meterWidth
	}
	return int((level - meterFloorDB) / -meterFloorDB * meterWidth)
}
