package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/bastiangx/keyserve/internal/cli"
	"github.com/bastiangx/keyserve/pkg/config"
	"github.com/bastiangx/keyserve/pkg/dictionary"
	"github.com/bastiangx/keyserve/pkg/server"
	"github.com/bastiangx/keyserve/pkg/source"
	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
)

// dictFlags registers the flags shared by commands that open an index.
func dictFlags(fs *flag.FlagSet, cfg *config.Config) (path, strategy *string) {
	path = fs.String("dict", cfg.Dict.Path, "Index file to open")
	strategy = fs.String("strategy", cfg.Dict.LoadingStrategy.String(), "Loading strategy")
	return path, strategy
}

func openDict(path, strategy string) (*dictionary.Dictionary, error) {
	s, err := dictionary.ParseLoadingStrategy(strategy)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	d, err := dictionary.Open(path, dictionary.WithLoadingStrategy(s))
	if err != nil {
		return nil, err
	}
	log.Debug("Opened index", "path", path, "entries", d.Size(), "strategy", s, "took", time.Since(start))
	return d, nil
}

func runCompile(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("compile", flag.ExitOnError)
	out := fs.String("o", cfg.Dict.Path, "Output index file")
	format := fs.String("format", "", "Source format, detected when empty:\n"+formatHelp())
	valueType := fs.String("type", cfg.Compile.ValueType, "Value type: key_only, int, string or json")
	compression := fs.String("compression", cfg.Compile.Compression, "Value compression: none, zstd or lz4")
	threshold := fs.Int("threshold", cfg.Compile.CompressionThreshold, "Compress values of at least this many bytes")
	weighted := fs.Bool("weighted", cfg.Compile.Weighted, "Store weights and order completions by them")
	manifest := fs.String("manifest", "", "Free-form manifest stored in the index")
	workers := fs.Int("workers", cfg.Compile.Workers, "Chunk files decoded in parallel")
	fs.Parse(args)

	if fs.NArg() == 0 {
		return errors.New("no sources given")
	}
	var f source.Format
	if *format != "" {
		var err error
		if f, err = source.ParseFormat(*format); err != nil {
			return fmt.Errorf("%w; supported formats:\n%s", err, formatHelp())
		}
	}

	cc := cfg.Compile
	cc.ValueType, cc.Compression, cc.CompressionThreshold, cc.Weighted = *valueType, *compression, *threshold, *weighted
	opts, err := cc.CompilerOptions()
	if err != nil {
		return err
	}
	if *manifest != "" {
		opts = append(opts, dictionary.WithManifest(*manifest))
	}
	vt, _ := dictionary.ParseValueType(cc.ValueType)

	start := time.Now()
	c := dictionary.NewCompiler(opts...)
	add := func(r source.Record) error {
		v, err := recordValue(vt, r)
		if err != nil {
			return fmt.Errorf("key %q: %w", r.Key, err)
		}
		if cc.Weighted {
			return c.AddWeighted(r.Key, v, r.Weight)
		}
		return c.Add(r.Key, v)
	}
	for _, src := range fs.Args() {
		info, err := os.Stat(src)
		if err != nil {
			return err
		}
		if info.IsDir() {
			err = source.ReadDir(src, *workers, add)
		} else {
			err = source.ReadFile(src, f, add)
		}
		if err != nil {
			return err
		}
		log.Debug("Read source", "path", src, "staged", c.Len())
	}

	if err := c.WriteFile(*out); err != nil {
		if dictionary.IsTooLarge(err) {
			log.Error("Index exceeds the format limits", "entries", c.Len())
		}
		return err
	}
	size := int64(0)
	if info, err := os.Stat(*out); err == nil {
		size = info.Size()
	}
	log.Info("Compiled index",
		"path", *out,
		"entries", humanize.Comma(int64(c.Len())),
		"size", humanize.IBytes(uint64(size)),
		"took", time.Since(start).Round(time.Millisecond))
	return nil
}

// formatHelp lists the source formats, one per line.
func formatHelp() string {
	var b strings.Builder
	for _, f := range []source.Format{source.FormatTSV, source.FormatChunk} {
		info, ok := source.Info(f)
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "  %-6s %s (%s)\n", f, info.Description, strings.Join(info.Extensions, ", "))
	}
	return b.String()
}

// recordValue converts a source value to what the compiler expects for vt.
// Int indexes fall back to the weight for entries without a value.
func recordValue(vt dictionary.ValueType, r source.Record) (any, error) {
	switch vt {
	case dictionary.ValueKeyOnly:
		return nil, nil
	case dictionary.ValueInt:
		if r.Value == "" && r.HasWeight {
			return int64(r.Weight), nil
		}
		return r.Value, nil
	case dictionary.ValueJSON:
		if !json.Valid([]byte(r.Value)) {
			return nil, fmt.Errorf("invalid JSON value %q", r.Value)
		}
		return json.RawMessage(r.Value), nil
	}
	return r.Value, nil
}

func runServe(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	path, strategy := dictFlags(fs, cfg)
	fs.Parse(args)

	d, err := openDict(*path, *strategy)
	if err != nil {
		return err
	}
	defer d.Close()

	showStartupInfo(*path, d.Size(), d.LoadingStrategy().String())
	return server.NewServer(d, cfg, os.Stdin, os.Stdout).Start()
}

func runCLI(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("cli", flag.ExitOnError)
	path, strategy := dictFlags(fs, cfg)
	limit := fs.Int("limit", cfg.Query.DefaultCutoff, "Number of matches to print")
	minPrefix := fs.Int("prmin", cfg.Query.MinPrefix, "Minimum query length")
	maxPrefix := fs.Int("prmax", cfg.Query.MaxPrefix, "Maximum query length")
	distance := fs.Int("distance", cfg.Query.MaxEditDistance, "Edit distance for ~fuzzy queries")
	fs.Parse(args)

	d, err := openDict(*path, *strategy)
	if err != nil {
		return err
	}
	defer d.Close()

	log.Debug("Input info:",
		"minPrefix", *minPrefix,
		"maxPrefix", *maxPrefix,
		"limit", *limit,
		"distance", *distance)
	return cli.NewInputHandler(d, os.Stdin, os.Stdout, *minPrefix, *maxPrefix, *limit, *distance).Start()
}

func runStats(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	path, strategy := dictFlags(fs, cfg)
	fs.Parse(args)

	d, err := openDict(*path, *strategy)
	if err != nil {
		return err
	}
	defer d.Close()

	_, err = fmt.Fprintln(os.Stdout, d.Statistics())
	return err
}

func runDump(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("dump", flag.ExitOnError)
	path, strategy := dictFlags(fs, cfg)
	fs.Parse(args)

	d, err := openDict(*path, *strategy)
	if err != nil {
		return err
	}
	defer d.Close()

	w := bufio.NewWriter(os.Stdout)
	if err := dump(w, d); err != nil {
		return err
	}
	return w.Flush()
}

// dump writes key, value and weight per line, tab separated, in key order.
// The output of a string or int index reads back with -format tsv.
func dump(w io.Writer, d *dictionary.Dictionary) error {
	it := d.GetAllItems()
	defer it.Close()
	for it.Next() {
		m := it.Match()
		v, err := m.ValueAsString()
		if err != nil {
			return fmt.Errorf("key %q: %w", m.Key(), err)
		}
		switch {
		case d.Weighted():
			_, err = fmt.Fprintf(w, "%s\t%s\t%d\n", m.Key(), v, m.Weight())
		case d.ValueType() == dictionary.ValueKeyOnly:
			_, err = fmt.Fprintln(w, m.Key())
		default:
			_, err = fmt.Fprintf(w, "%s\t%s\n", m.Key(), v)
		}
		if err != nil {
			return err
		}
	}
	return it.Err()
}
