package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strconv"

	"go-stompbox/config"
	"go-stompbox/flash"
	"go-stompbox/settings"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}

	var err error
	switch os.Args[1] {
	case "read":
		err = withStore(func(s *settings.Store, _ *flash.File) error {
			fmt.Println(s.Read())
			return nil
		})
	case "history":
		err = withStore(printHistory)
	case "write":
		err = write(os.Args[2:])
	case "erase":
		err = withStore(func(_ *settings.Store, img *flash.File) error {
			return img.EraseBlock()
		})
	case "dump":
		err = withStore(func(_ *settings.Store, img *flash.File) error {
			return dump(os.Stdout, img)
		})
	default:
		usage()
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("Flash image tool")
	fmt.Println("")
	fmt.Println("The image is $STOMPBOX_FLASH, or the one in the config.")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  read                       - Print the settings the device would boot with")
	fmt.Println("  history                    - Print every saved record, oldest first")
	fmt.Println("  write <mode> <sample> <tone> - Append a record (mode: sample|tone|0|1)")
	fmt.Println("  erase                      - Erase the sector")
	fmt.Println("  dump                       - Hex dump of the sector")
}

func imagePath() (string, error) {
	if p := os.Getenv("STOMPBOX_FLASH"); p != "" {
		return p, nil
	}
	cfg, err := config.Load()
	if err != nil {
		return "", err
	}
	return cfg.FlashImage()
}

func withStore(fn func(*settings.Store, *flash.File) error) error {
	path, err := imagePath()
	if err != nil {
		return err
	}
	img, err := flash.OpenFile(path, flash.SectorSize, flash.PageSize)
	if err != nil {
		return err
	}
	defer img.Close()
	return fn(settings.NewStore(img, &flash.Mutex{}), img)
}

func printHistory(s *settings.Store, _ *flash.File) error {
	recs := s.History()
	for i, r := range recs {
		fmt.Printf("%4d  %v\n", i, r)
	}
	used, capacity := s.Usage()
	fmt.Printf("%d/%d records until the next erase\n", used, capacity)
	return nil
}

func write(args []string) error {
	if len(args) != 3 {
		usage()
		return fmt.Errorf("write needs mode, sample and tone")
	}
	rec, err := parseRecord(args[0], args[1], args[2])
	if err != nil {
		return err
	}
	return withStore(func(s *settings.Store, _ *flash.File) error {
		if err := s.Write(rec); err != nil {
			return err
		}
		fmt.Println("wrote", rec)
		return nil
	})
}

func parseRecord(mode, smp, tone string) (settings.Settings, error) {
	var rec settings.Settings
	switch mode {
	case "sample":
		rec.Mode = settings.ModeSample
	case "tone":
		rec.Mode = settings.ModeTone
	default:
		v, err := strconv.ParseUint(mode, 0, 8)
		if err != nil {
			return rec, fmt.Errorf("mode %q: %w", mode, err)
		}
		rec.Mode = settings.Mode(v)
	}

	si, err := strconv.ParseUint(smp, 0, 8)
	if err != nil {
		return rec, fmt.Errorf("sample %q: %w", smp, err)
	}
	ti, err := strconv.ParseUint(tone, 0, 8)
	if err != nil {
		return rec, fmt.Errorf("tone %q: %w", tone, err)
	}
	rec.SampleIndex, rec.ToneIndex = uint8(si), uint8(ti)
	return rec, rec.Validate()
}

func dump(w io.Writer, img *flash.File) error {
	buf := make([]byte, img.Size())
	if _, err := img.ReadAt(buf, 0); err != nil {
		return err
	}
	d := hex.Dumper(w)
	defer d.Close()
	_, err := d.Write(buf)
	return err
}
