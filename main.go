package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/charmbracelet/x/ansi"
	"golang.org/x/term"

	"x64cc/pkg/asm"
	"x64cc/pkg/compiler"
	"x64cc/pkg/config"
	"x64cc/pkg/debugview"
	"x64cc/pkg/utils"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

// run is the whole driver. It returns the process exit status: 0 on success,
// 1 when the program is rejected or an output cannot be written, 2 on usage
// errors.
func run(args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("x64cc", flag.ContinueOnError)
	fs.SetOutput(stderr)
	inPath := fs.String("in", "", "input AST document (YAML or JSON)")
	outDir := fs.String("out-dir", "", "directory for generated files (default: next to the input)")
	configPath := fs.String("config", "", "config file (default: "+config.DefaultFilename+" next to the input)")
	snapshots := fs.Bool("snapshots", false, "write <base>_stack.json and <base>_stack.json.asm.json")
	annotate := fs.Bool("annotate", false, "mark snapshot points in the assembly with # SNAPIDX comments")
	verify := fs.Bool("verify", false, "check the emitted listing for duplicate and undefined labels")
	pngOut := fs.Bool("png", false, "render the snapshots to <base>_stack.png")
	colorFlag := fs.String("color", "", "style diagnostics: auto, always or never")
	verbose := fs.Bool("v", false, "verbose logging")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *inPath == "" && fs.NArg() == 1 {
		*inPath = fs.Arg(0)
	}
	if *inPath == "" {
		fmt.Fprintln(stderr, "nothing to do: provide -in <document>")
		fs.Usage()
		return 2
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	input, inputDir, err := utils.ResolveInput(*inPath)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}

	cfgPath := *configPath
	if cfgPath == "" {
		cfgPath = filepath.Join(inputDir, config.DefaultFilename)
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(stderr, "failed to load config: %v\n", err)
		return 2
	}

	// Flags given on the command line win over the file.
	var flagErr error
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "out-dir":
			cfg.OutDir = *outDir
		case "snapshots":
			cfg.Snapshots = *snapshots
		case "annotate":
			cfg.Annotate = *annotate
		case "verify":
			cfg.Verify = *verify
		case "png":
			cfg.PNG = *pngOut
		case "color":
			cfg.Color, flagErr = config.ParseColor(*colorFlag)
		}
	})
	if flagErr != nil {
		fmt.Fprintln(stderr, flagErr)
		return 2
	}
	log.Debug("configuration", "file", cfgPath, "snapshots", cfg.Snapshots, "annotate", cfg.Annotate,
		"verify", cfg.Verify, "png", cfg.PNG, "color", cfg.Color)

	d := diagnostics{w: stderr, styled: useColor(cfg.Color, stderr)}

	doc, err := os.ReadFile(input)
	if err != nil {
		d.report(fmt.Errorf("failed to read input file %q: %w", input, err))
		return 1
	}

	opts := compiler.Options{
		Snapshots: cfg.Snapshots || cfg.PNG,
		Annotate:  cfg.Annotate,
	}
	prog, out, err := compiler.CompileDocument(doc, opts)
	if err != nil {
		d.report(err)
		return 1
	}
	log.Debug("compiled", "input", input, "functions", len(prog.Funcs), "globals", len(prog.Top),
		"snapshots", len(out.Snapshots))

	if cfg.Verify {
		listing, err := asm.Parse(out.Asm)
		if err == nil {
			err = listing.Verify()
		}
		if err != nil {
			d.report(fmt.Errorf("listing verification failed: %w", err))
			return 1
		}
		log.Debug("listing verified", "instructions", len(listing.Instructions()))
	}

	paths := utils.OutputsFor(input, cfg.OutDir)
	if cfg.OutDir != "" {
		if err := os.MkdirAll(cfg.OutDir, 0o755); err != nil {
			d.report(err)
			return 1
		}
	}

	written, err := writeOutputs(paths, out, cfg)
	if err != nil {
		d.report(err)
		return 1
	}
	for _, path := range written {
		log.Info("wrote", "file", path)
	}
	return 0
}

// writeOutputs writes the assembly and whichever side files cfg asks for.
// It returns the paths written, in order.
func writeOutputs(paths utils.Outputs, out *compiler.Output, cfg config.Config) ([]string, error) {
	if err := os.WriteFile(paths.Asm, []byte(out.Asm), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write assembly file %q: %w", paths.Asm, err)
	}
	written := []string{paths.Asm}

	if cfg.Snapshots {
		err := debugview.WriteFile(paths.Stack, func(w io.Writer) error {
			return debugview.WriteSnapshots(w, out.Snapshots)
		})
		if err != nil {
			return written, fmt.Errorf("failed to write snapshots %q: %w", paths.Stack, err)
		}
		written = append(written, paths.Stack)

		err = debugview.WriteFile(paths.AsmMap, func(w io.Writer) error {
			return debugview.WriteLineMap(w, out.LineMap)
		})
		if err != nil {
			return written, fmt.Errorf("failed to write instruction map %q: %w", paths.AsmMap, err)
		}
		written = append(written, paths.AsmMap)
	}

	if cfg.PNG {
		if err := debugview.SavePNG(paths.Image, out.Snapshots); err != nil {
			return written, fmt.Errorf("failed to write image %q: %w", paths.Image, err)
		}
		written = append(written, paths.Image)
	}
	return written, nil
}

func useColor(mode config.ColorMode, w io.Writer) bool {
	switch mode {
	case config.ColorAlways:
		return true
	case config.ColorNever:
		return false
	}
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

type diagnostics struct {
	w      io.Writer
	styled bool
}

var (
	errorStyle = ansi.Style{}.Bold().ForegroundColor(ansi.Red)
	codeStyle  = ansi.Style{}.ForegroundColor(ansi.Yellow)
	dimStyle   = ansi.Style{}.Faint()
)

// report prints err once, with the error code and a hint when it is a
// semantic error.
func (d diagnostics) report(err error) {
	prefix := "error:"
	if d.styled {
		prefix = errorStyle.Styled(prefix)
	}

	var se *compiler.SemanticError
	var de *compiler.DecodeError
	switch {
	case errors.As(err, &se):
		code := se.Code.Code
		if d.styled {
			code = codeStyle.Styled(code)
		}
		where := ""
		if se.Line > 0 {
			where = fmt.Sprintf("line %d: ", se.Line)
		}
		fmt.Fprintf(d.w, "%s %s%s [%s]: %s\n", prefix, where, se.Kind, code, se.Msg)
		hint := "  " + se.Code.Name + ": " + se.Code.Description
		if d.styled {
			hint = dimStyle.Styled(hint)
		}
		fmt.Fprintln(d.w, hint)
	case errors.As(err, &de):
		fmt.Fprintf(d.w, "%s invalid AST document: %v\n", prefix, de)
	default:
		fmt.Fprintf(d.w, "%s %v\n", prefix, err)
	}
}
