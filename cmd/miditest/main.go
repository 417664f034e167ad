package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"go-stompbox/config"
	smidi "go-stompbox/midi"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}

	switch os.Args[1] {
	case "list":
		listPorts()
	case "monitor":
		monitor(portArg())
	case "leds":
		testLEDs(portArg())
	default:
		usage()
	}
}

func usage() {
	fmt.Println("MIDI controller checks")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  list            - List all MIDI ports")
	fmt.Println("  monitor [port]  - Show button and pot events as the stompbox sees them")
	fmt.Println("  leds [port]     - Flash the sample and tone pads")
}

func portArg() string {
	if len(os.Args) > 2 {
		return os.Args[2]
	}
	cfg, err := config.Load()
	if err != nil {
		return ""
	}
	return cfg.MIDI.PortName
}

func mapping() smidi.Mapping {
	m := smidi.DefaultMapping()
	cfg, err := config.Load()
	if err != nil {
		return m
	}
	m.Channel = cfg.MIDI.Channel
	m.SampleNote = cfg.MIDI.SampleNote
	m.ToneNote = cfg.MIDI.ToneNote
	m.PotCC = cfg.MIDI.PotCC
	return m
}

func listPorts() {
	fmt.Println("=== MIDI Input Ports ===")
	fmt.Println("(waiting up to 3 seconds...)")

	type result struct {
		ins  []drivers.In
		outs []drivers.Out
	}
	ch := make(chan result, 1)
	go func() {
		ch <- result{ins: midi.GetInPorts(), outs: midi.GetOutPorts()}
	}()

	select {
	case r := <-ch:
		for i, p := range r.ins {
			fmt.Printf("  %d: %s\n", i, p.String())
		}
		fmt.Println("\n=== MIDI Output Ports ===")
		for i, p := range r.outs {
			fmt.Printf("  %d: %s\n", i, p.String())
		}
	case <-time.After(3 * time.Second):
		fmt.Println("\nTIMEOUT! MIDI service is not answering.")
	}
}

func findPorts(match string) (drivers.In, drivers.Out) {
	match = strings.ToLower(match)
	var in drivers.In
	var out drivers.Out
	for _, p := range midi.GetInPorts() {
		if strings.Contains(strings.ToLower(p.String()), match) {
			in = p
			break
		}
	}
	for _, p := range midi.GetOutPorts() {
		if strings.Contains(strings.ToLower(p.String()), match) {
			out = p
			break
		}
	}
	return in, out
}

func monitor(match string) {
	in, _ := findPorts(match)
	if in == nil {
		fmt.Printf("No input port matching %q\n", match)
		return
	}
	fmt.Printf("Listening on %s. Ctrl+C to exit.\n", in.String())

	m := mapping()
	stop, err := midi.ListenTo(in, func(msg midi.Message, timestampms int32) {
		ev, ok := m.Translate(msg)
		switch {
		case !ok:
			fmt.Printf("[%6d] %-28s (unmapped)\n", timestampms, msg.String())
		case ev.Kind == smidi.EventPot:
			fmt.Printf("[%6d] %-28s pot=%d\n", timestampms, msg.String(), ev.Pot)
		case ev.Edge.Pressed:
			fmt.Printf("[%6d] %-28s %s pressed\n", timestampms, msg.String(), ev.Edge.Button)
		default:
			fmt.Printf("[%6d] %-28s %s released\n", timestampms, msg.String(), ev.Edge.Button)
		}
	})
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer stop()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	<-sig
}

func testLEDs(match string) {
	in, out := findPorts(match)
	if out == nil {
		fmt.Printf("No output port matching %q\n", match)
		return
	}
	fmt.Printf("Using output: %s\n", out.String())

	s, err := smidi.NewSurface(out.String(), mapping(), in, out)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer s.Close()

	for i := 0; i < 6; i++ {
		s.SetIndicators(i%2 == 0, i%2 == 1)
		time.Sleep(300 * time.Millisecond)
	}
	fmt.Println("Done!")
}
