// Command trajplot draws the ball trajectories stored in a trial log.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/wilberth/SledBalls/internal/triallog"
	"github.com/wilberth/SledBalls/internal/version"
)

type options struct {
	in      string
	out     string
	format  string
	block   int
	version bool
}

func parseOptions(fs *flag.FlagSet, args []string) (options, error) {
	var o options
	fs.StringVar(&o.in, "in", "", "trial log (<subject>_traject.json)")
	fs.StringVar(&o.out, "out", "", "output file prefix (default: the log name without extension)")
	fs.StringVar(&o.format, "format", "png", "png or html")
	fs.IntVar(&o.block, "block", -1, "plot only this block, counted from 0")
	fs.BoolVar(&o.version, "version", false, "print version and exit")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if o.version {
		return o, nil
	}
	if o.in == "" && fs.NArg() == 1 {
		o.in = fs.Arg(0)
	}
	if o.in == "" {
		return options{}, fmt.Errorf("no trial log given")
	}
	if o.format != "png" && o.format != "html" {
		return options{}, fmt.Errorf("unknown format %q", o.format)
	}
	if o.out == "" {
		o.out = strings.TrimSuffix(o.in, filepath.Ext(o.in))
	}
	return o, nil
}

// selectBlocks returns the blocks to plot and the index of the first one.
func selectBlocks(blocks []triallog.Block, which int) ([]triallog.Block, int, error) {
	if which < 0 {
		return blocks, 0, nil
	}
	if which >= len(blocks) {
		return nil, 0, fmt.Errorf("block %d requested, log has %d", which, len(blocks))
	}
	return blocks[which : which+1], which, nil
}

func run(o options) ([]string, error) {
	f, err := os.Open(o.in)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	blocks, err := triallog.ReadBlocks(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", o.in, err)
	}
	blocks, first, err := selectBlocks(blocks, o.block)
	if err != nil {
		return nil, err
	}

	name := filepath.Base(o.in)
	var written []string
	if o.format == "html" {
		path := o.out + ".html"
		if err := writeFile(path, func(w io.Writer) error { return writeHTML(w, name, blocks, first) }); err != nil {
			return written, err
		}
		return append(written, path), nil
	}
	for i, block := range blocks {
		path := fmt.Sprintf("%s_block%03d.png", o.out, first+i)
		title := fmt.Sprintf("%s block %d", name, first+i)
		if err := writeFile(path, func(w io.Writer) error { return writePNG(w, title, block) }); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}

func writeFile(path string, render func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := render(f); err != nil {
		f.Close()
		return fmt.Errorf("rendering %s: %w", path, err)
	}
	return f.Close()
}

func main() {
	o, err := parseOptions(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("trajplot: %v", err)
	}
	if o.version {
		fmt.Println(version.String("trajplot"))
		return
	}
	written, err := run(o)
	for _, p := range written {
		log.Printf("wrote %s", p)
	}
	if err != nil {
		log.Fatalf("trajplot: %v", err)
	}
}
