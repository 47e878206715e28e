package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"runtime"
	"time"

	"git.sr.ht/~whereswaldon/metal-detector/iio"
	"git.sr.ht/~whereswaldon/metal-detector/trace"
)

func linuxUsage() {
	fmt.Fprintf(flag.CommandLine.Output(), `%[1]s: collect csv magnetometer trace file from sensors
Usage:

 %[1]s > file

OR

 %[1]s | metal-detector -trace -

Some IIO drivers only expose their attributes to root, in which case this
binary needs to run as root.

`, os.Args[0])
	flag.PrintDefaults()
}

func unsupportedUsage() {
	fmt.Fprintf(flag.CommandLine.Output(), `%[1]s: collect csv magnetometer trace file from sensors

This platform is unsupported; no sensor data is available.

`, os.Args[0])
	flag.PrintDefaults()
}

func main() {
	switch runtime.GOOS {
	case "linux":
		flag.Usage = linuxUsage
	default:
		flag.Usage = unsupportedUsage
	}
	dur := flag.Duration("sample-interval", 200*time.Millisecond, "Interval between reading new samples from sensors")
	outputName := flag.String("output", "-", "Output file for CSV sensor data")
	sysfs := flag.String("sysfs", iio.DefaultRoot, "Directory holding IIO devices")
	maxRange := flag.Float64("max-range", 2000, "Range in µT assumed for sensors that do not report one")
	flag.Parse()

	magnetometers, err := iio.Find(*sysfs, *maxRange)
	if err != nil {
		log.Printf("failed loading IIO sensors: %v", err)
	}
	if len(magnetometers) < 1 {
		log.Fatalf("No magnetometers found under %s.", *sysfs)
	}
	sensor := magnetometers[0]
	defer sensor.Close()
	log.Printf("sampling %s at %s (range %.1f %s)", sensor.Name(), sensor.Dir(), sensor.MaxRange(), sensor.Unit())

	var output io.WriteCloser
	if *outputName == "-" {
		output = os.Stdout
	} else {
		f, err := os.Create(*outputName)
		if err != nil {
			log.Fatalf("failed opening output file %q: %v", *outputName, err)
		}
		output = f
	}
	w := csv.NewWriter(output)
	if err := w.Write(trace.Heading); err != nil {
		log.Fatalf("failed writing heading: %v", err)
	}
	w.Flush()

	ticker := time.NewTicker(*dur)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	defer ticker.Stop()
	for {
		select {
		case <-sigChan:
			// We've gotten an interrupt; shut down.
			w.Flush()
			if err := output.Close(); err != nil {
				log.Printf("failed closing output: %v", err)
			}
			return
		case t := <-ticker.C:
			v, err := sensor.Read()
			if err != nil {
				log.Printf("failed reading value: %v", err)
				continue
			}
			if err := w.Write(trace.FormatRecord(trace.Sample{Timestamp: t, Values: v})); err != nil {
				log.Fatalf("failed writing sample: %v", err)
			}
			// Flush every line so that followers of the trace see it immediately.
			w.Flush()
			if err := w.Error(); err != nil {
				log.Fatalf("failed writing sample: %v", err)
			}
		}
	}
}
