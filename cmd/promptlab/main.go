// Command promptlab assembles a prompt template from a file or a bundled
// example and previews it, runs it once, or chats with it in the terminal.
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
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/PabloGalante/promptlab/internal/adapters/llm"
	"github.com/PabloGalante/promptlab/internal/app/workbench"
	"github.com/PabloGalante/promptlab/internal/catalog"
	"github.com/PabloGalante/promptlab/internal/config"
	"github.com/PabloGalante/promptlab/internal/domain"
	"github.com/PabloGalante/promptlab/internal/export"
	"github.com/PabloGalante/promptlab/internal/observability"
	"github.com/PabloGalante/promptlab/internal/templatefile"
)

type options struct {
	template string
	example  string
	vars     map[string]string
	search   bool
	mode     string
	export   string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	observability.SetLevel(cfg.LogLevel)

	model, err := newModel(ctx, cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, model, cfg.ModelName); err != nil {
		fmt.Fprintln(os.Stderr, "promptlab:", err)
		os.Exit(1)
	}
}

func newModel(ctx context.Context, cfg *config.Config) (domain.ChatModel, error) {
	if cfg.UseMockLLM {
		return llm.NewMockLLM(), nil
	}
	return llm.NewGeminiClient(ctx, llm.GeminiConfig{
		APIKey:    cfg.APIKey,
		Project:   cfg.GCPProjectID,
		Location:  cfg.GCPLocation,
		ModelName: cfg.ModelName,
	})
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	opts := &options{vars: make(map[string]string)}

	fs := flag.NewFlagSet("promptlab", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.template, "template", "", "template file (.json, .yaml, .hjson)")
	fs.StringVar(&opts.example, "example", "", "bundled example id")
	fs.BoolVar(&opts.search, "search", false, "ground answers with Google Search")
	fs.StringVar(&opts.mode, "mode", "chat", "preview, generate or chat")
	fs.StringVar(&opts.export, "export", "", "write the chat transcript to this file on exit (.md, .json, .html)")
	fs.Func("var", "test value as name=value (repeatable)", func(s string) error {
		name, value, ok := strings.Cut(s, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return fmt.Errorf("expected name=value, got %q", s)
		}
		opts.vars[workbench.CleanVariableName(name)] = value
		return nil
	})

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if opts.template != "" && opts.example != "" {
		return nil, errors.New("-template and -example are mutually exclusive")
	}
	switch opts.mode {
	case "preview", "generate", "chat":
	default:
		return nil, fmt.Errorf("unknown mode %q", opts.mode)
	}
	return opts, nil
}

func run(ctx context.Context, args []string, in io.Reader, out io.Writer, model domain.ChatModel, modelName string) error {
	opts, err := parseFlags(args, out)
	if err != nil {
		return err
	}

	cat := catalog.Default()
	wb := workbench.New(domain.WorkbenchID(uuid.NewString()), model, workbench.Options{
		ModelName: modelName,
		DomainID:  cat.DefaultDomain(),
	})
	if err := load(ctx, wb, cat, opts); err != nil {
		return err
	}

	switch opts.mode {
	case "preview":
		fmt.Fprintln(out, wb.Preview())
		return nil
	case "generate":
		msg, err := wb.Generate(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, msg.Text)
		printSources(out, msg.Citations)
		return nil
	}

	err = chat(ctx, wb, in, out)
	if opts.export != "" {
		if werr := writeTranscript(opts.export, wb.Snapshot().History); werr != nil {
			return errors.Join(err, werr)
		}
	}
	return err
}

func load(ctx context.Context, wb *workbench.Workbench, cat *catalog.Catalog, opts *options) error {
	var tmpl *domain.Template
	switch {
	case opts.template != "":
		t, err := templatefile.Load(opts.template)
		if err != nil {
			return err
		}
		tmpl = t
	case opts.example != "":
		ex, err := cat.Example(opts.example)
		if err != nil {
			return err
		}
		tmpl = &ex.Template
	default:
		return errors.New("one of -template or -example is required")
	}

	domainID := cat.DefaultDomain()
	if _, err := wb.Dispatch(ctx, workbench.LoadTemplate{Template: *tmpl, DomainID: &domainID}); err != nil {
		return err
	}
	if opts.search {
		if _, err := wb.Dispatch(ctx, workbench.SetSearch{Enabled: true}); err != nil {
			return err
		}
	}

	for name, value := range opts.vars {
		ev := workbench.Event(workbench.AddVariable{Variable: domain.InputVariable{Name: name, TestValue: value}})
		for _, v := range wb.Snapshot().Variables {
			if v.Name == name {
				ev = workbench.UpdateVariable{ID: v.ID, TestValue: &value}
				break
			}
		}
		if _, err := wb.Dispatch(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}

const help = `Commands: /restart starts over, /preview shows the prompt, /quit exits.`

// chat runs the terminal loop until EOF or /quit.
func chat(ctx context.Context, wb *workbench.Workbench, in io.Reader, out io.Writer) error {
	fmt.Fprintln(out, help)

	if err := start(ctx, wb, out); err != nil {
		return err
	}

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())

		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/preview":
			fmt.Fprintln(out, wb.Preview())
			continue
		case "/restart":
			if err := start(ctx, wb, out); err != nil {
				return err
			}
			continue
		}

		msg, err := wb.SendFollowUp(ctx, line)
		switch {
		case errors.Is(err, workbench.ErrNoActiveChat):
			fmt.Fprintln(out, "No active chat. Use /restart to start a new one.")
			continue
		case err != nil:
			return err
		}
		printMessage(out, msg)
	}
}

func start(ctx context.Context, wb *workbench.Workbench, out io.Writer) error {
	msg, err := wb.StartChat(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "you: %s\n\n", wb.Snapshot().History[0].Text)
	printMessage(out, msg)
	return nil
}

func printMessage(out io.Writer, msg *domain.ChatMessage) {
	fmt.Fprintf(out, "model: %s\n", msg.Text)
	printSources(out, msg.Citations)
	fmt.Fprintln(out)
}

func printSources(out io.Writer, citations []domain.Citation) {
	for _, c := range citations {
		if src := c.Source(); src != nil && src.URI != "" {
			fmt.Fprintf(out, "  [%s] %s\n", src.Title, src.URI)
		}
	}
}

func writeTranscript(path string, history []domain.ChatMessage) error {
	format := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))

	var data []byte
	switch format {
	case "json":
		b, err := export.ChatJSON(history)
		if err != nil {
			return err
		}
		data = b
	case "html":
		s, err := export.ChatHTML(history)
		if err != nil {
			return err
		}
		data = []byte(s)
	default:
		data = []byte(export.ChatMarkdown(history, time.Now()))
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing transcript: %w", err)
	}
	return nil
}
