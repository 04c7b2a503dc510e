package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"golang.org/x/term"

	otp "github.com/i5heu/ouroboros-otp"
	"github.com/i5heu/ouroboros-otp/internal/config"
	"github.com/i5heu/ouroboros-otp/pkg/keygen"
	"github.com/i5heu/ouroboros-otp/pkg/logging"
)

func usage() {
	fmt.Println("Usage: otp <command> [flags] [arguments]")
	fmt.Println("Commands:")
	fmt.Println("  generate [-seeds file]   mix seeds into a new channel")
	fmt.Println("  encode                   plainfile -> cipherfile")
	fmt.Println("  decode                   cipherfile -> plainfile")
	fmt.Println("  handover                 take the mirrored role after exporting")
	fmt.Println("  swap                     borrow the other direction's keys")
	fmt.Println("  skip <encode|decode>     drop the next unit of a direction")
	fmt.Println("  status")
	fmt.Println("  export <file>            write the channel as tar.xz")
	fmt.Println("  import <file>            unpack a channel into -dir")
	fmt.Println("Common flags: -config otp.yaml -dir <channel dir> -yes")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	if err := run(os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd string, args []string) error {
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	configPath := fs.String("config", "otp.yaml", "configuration file")
	dir := fs.String("dir", "", "channel directory, overrides the config file")
	yes := fs.Bool("yes", false, "do not ask for confirmation")
	seedsFile := fs.String("seeds", "", "generate: read seeds from this file instead of the terminal")
	if err := fs.Parse(args); err != nil {
		return err
	}

	conf, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *dir != "" {
		conf.Dir = *dir
	}
	level, err := logging.ParseLevel(conf.LogLevel)
	if err != nil {
		return err
	}
	logging.Logger = logging.New(os.Stderr, level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if cmd == "import" {
		if fs.NArg() < 1 {
			return errors.New("usage: otp import [-dir target] <file>")
		}
		return importChannel(fs.Arg(0), conf.Dir)
	}

	ch, err := otp.New(otp.Config{
		Paths:         []string{conf.Dir},
		MinimumFreeGB: conf.MinimumFreeGB,
		Logger:        logging.Logger,
		Workers:       conf.Workers,
	})
	if err != nil {
		return err
	}
	if err := ch.Start(ctx); err != nil {
		return err
	}
	defer ch.Close(context.Background())

	ask := func(question string) bool {
		return *yes || confirm(question)
	}

	switch cmd {
	case "generate":
		seeds, err := readSeeds(*seedsFile, ch.Layout().SeedCount)
		if err != nil {
			return err
		}
		if !ask(fmt.Sprintf("Generate new keys in %s?", ch.Dir())) {
			keygen.WipeSeeds(seeds)
			return errAborted
		}
		fmt.Println("Generating keys, this takes a while...")
		if err := ch.Generate(ctx, seeds); err != nil {
			return err
		}
		fmt.Println("Keys generated. Export the channel for your partner, then run handover.")

	case "encode":
		if !ask(fmt.Sprintf("Encode %s into %s?", conf.PlainFile, conf.CipherFile)) {
			return errAborted
		}
		if err := ch.EncodeFile(conf.PlainFile, conf.CipherFile); err != nil {
			return err
		}
		fmt.Printf("Encoded. Send %s to your partner.\n", conf.CipherFile)

	case "decode":
		if !ask(fmt.Sprintf("Decode %s into %s?", conf.CipherFile, conf.PlainFile)) {
			return errAborted
		}
		if err := ch.DecodeFile(conf.CipherFile, conf.PlainFile); err != nil {
			return err
		}
		fmt.Printf("Decoded into %s.\n", conf.PlainFile)

	case "handover":
		if !ask("Hand over the channel? Only do this once, right after exporting it.") {
			return errAborted
		}
		s, err := ch.HandOver()
		if err != nil {
			return err
		}
		printState(s)

	case "swap":
		if !ask("Swap channels? Your partner has to swap as well.") {
			return errAborted
		}
		s, err := ch.SwapChannels()
		if err != nil {
			return err
		}
		printState(s)

	case "skip":
		if fs.NArg() < 1 {
			return errors.New("usage: otp skip <encode|decode>")
		}
		d, err := parseDirection(fs.Arg(0))
		if err != nil {
			return err
		}
		if !ask(fmt.Sprintf("Destroy the next %s key unit?", d)) {
			return errAborted
		}
		if err := ch.Skip(d); err != nil {
			return err
		}
		fmt.Println("Key unit destroyed.")

	case "status":
		st, err := ch.Status()
		if err != nil {
			return err
		}
		printStatus(st)

	case "export":
		if fs.NArg() < 1 {
			return errors.New("usage: otp export <file>")
		}
		return exportChannel(ch, fs.Arg(0))

	default:
		usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
	return nil
}

var errAborted = errors.New("aborted, nothing changed")

func confirm(question string) bool {
	fmt.Printf("%s [y/N] ", question)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && err != io.EOF {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

func parseDirection(s string) (otp.Direction, error) {
	switch s {
	case "encode":
		return otp.Encoding, nil
	case "decode":
		return otp.Decoding, nil
	}
	return 0, fmt.Errorf("unknown direction %q", s)
}

// readSeeds reads from path, or prompts on the terminal without echo, or
// reads stdin when it is not a terminal.
func readSeeds(path string, count int) ([]uint32, error) {
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		defer clear(raw)
		return parseSeedText(raw, count)
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		raw, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, err
		}
		defer clear(raw)
		return parseSeedText(raw, count)
	}

	fmt.Printf("Enter %d nine-digit numbers. Input is not echoed.\n", count)
	seeds := make([]uint32, 0, count)
	for len(seeds) < count {
		fmt.Printf("Seed %d/%d: ", len(seeds)+1, count)
		line, err := term.ReadPassword(fd)
		fmt.Println()
		if err != nil {
			keygen.WipeSeeds(seeds)
			return nil, err
		}
		v, err := keygen.ParseSeed(string(line))
		clear(line)
		if err != nil {
			fmt.Println("Not a nine-digit number, try again.")
			continue
		}
		seeds = append(seeds, v)
	}
	return seeds, nil
}

func parseSeedText(raw []byte, count int) ([]uint32, error) {
	seeds, err := keygen.ParseSeeds(string(raw))
	if err != nil {
		return nil, err
	}
	if len(seeds) != count {
		keygen.WipeSeeds(seeds)
		return nil, fmt.Errorf("%w: want %d, got %d", keygen.ErrSeedCount, count, len(seeds))
	}
	return seeds, nil
}

func exportChannel(ch *otp.Channel, path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return err
	}
	if err := ch.Export(f); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Printf("Channel written to %s. Hand it over, then run handover here.\n", path)
	return nil
}

func importChannel(path, dir string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := otp.Import(f, dir); err != nil {
		return err
	}
	fmt.Printf("Channel unpacked into %s.\n", dir)
	return nil
}

func printState(s otp.State) {
	fmt.Printf("Entangled: %v  Swapped: %v\n", s.Entangled, s.Swapped)
}

func orNone(name string) string {
	if name == "" {
		return "-"
	}
	return name
}

func printStatus(st otp.Status) {
	if !st.Generated {
		fmt.Println("No keys generated in this channel.")
		printState(st.State)
		return
	}
	fmt.Println("Channel status:")
	fmt.Printf("  Encode:  pool %-8s counter %s\n", st.EncodePool, st.EncodeCounter)
	fmt.Printf("  Decode:  pool %-8s counter %s\n", st.DecodePool, st.DecodeCounter)
	fmt.Printf("  Remaining encrypt: %3d\n", st.RemainingEncrypt)
	fmt.Printf("  Remaining decrypt: %3d\n", st.RemainingDecrypt)
	fmt.Printf("  Units incoming:    %3d\n", st.IncomingUnits)
	fmt.Printf("  Units outgoing:    %3d\n", st.OutgoingUnits)
	fmt.Printf("  Next incoming:     %s\n", orNone(st.NextIncoming))
	fmt.Printf("  Next outgoing:     %s\n", orNone(st.NextOutgoing))
	printState(st.State)
}
