package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/Paulobirribarra/Facturas-App-Movil/internal/api"
	"github.com/Paulobirribarra/Facturas-App-Movil/internal/config"
	"github.com/Paulobirribarra/Facturas-App-Movil/internal/invoices"
	"github.com/Paulobirribarra/Facturas-App-Movil/internal/session"
	"github.com/Paulobirribarra/Facturas-App-Movil/internal/siiquery"

	"go.uber.org/zap"
	"golang.org/x/term"
)

const programName = "facturas"

type command func(ctx context.Context, args []string) error

type Runner struct {
	options  Options
	logger   *zap.Logger
	client   *api.Client
	session  *session.Store
	invoices *invoices.Source
	sii      *siiquery.Service

	stdin  *os.File
	in     *bufio.Reader
	out    io.Writer
	errOut io.Writer
}

func NewRunner(
	cfg config.Config,
	logger *zap.Logger,
	client *api.Client,
	sess *session.Store,
	source *invoices.Source,
	svc *siiquery.Service,
) *Runner {
	opts := Options{
		Debug: cfg.Debug,
	}

	return &Runner{
		options:  opts,
		logger:   logger.Named("cli"),
		client:   client,
		session:  sess,
		invoices: source,
		sii:      svc,
		stdin:    os.Stdin,
		in:       bufio.NewReader(os.Stdin),
		out:      os.Stdout,
		errOut:   os.Stderr,
	}
}

// WithIO returns a copy of r reading answers from in and writing to out and
// errOut.
func (r *Runner) WithIO(in io.Reader, out, errOut io.Writer) *Runner {
	clone := *r
	clone.stdin = nil
	if f, ok := in.(*os.File); ok {
		clone.stdin = f
	}
	clone.in = bufio.NewReader(in)
	clone.out = out
	clone.errOut = errOut
	return &clone
}

func (r *Runner) Execute() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	return r.Run(ctx, os.Args[1:])
}

// Run parses args and executes one command. Returned errors carry a message
// meant for the user.
func (r *Runner) Run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet(programName, flag.ContinueOnError)
	fs.SetOutput(r.errOut)
	fs.Usage = r.usage
	fs.BoolVar(&r.options.JSON, "json", r.options.JSON, "Salida en formato JSON")
	fs.BoolVar(&r.options.Yes, "yes", r.options.Yes, "No pedir confirmación")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	rest := fs.Args()
	if len(rest) == 0 {
		r.usage()
		return nil
	}

	commands := r.commands()
	name := rest[0]
	cmd, ok := commands[name]
	if !ok {
		r.usage()
		return fmt.Errorf("comando desconocido: %s", name)
	}

	r.logger.Debug("running command", zap.String("command", name))
	if err := cmd(ctx, rest[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		r.logger.Debug("command failed", zap.String("command", name), zap.Error(err))
		message := friendlyError(err)
		if r.options.Debug && message != err.Error() {
			message += " (" + err.Error() + ")"
		}
		return &userError{message: message, err: err}
	}
	return nil
}

func (r *Runner) commands() map[string]command {
	return map[string]command{
		"login":     r.login,
		"logout":    r.logout,
		"whoami":    r.whoami,
		"companies": r.companies,
		"use":       r.use,
		"invoices":  r.listInvoices,
		"browse":    r.browse,
		"invoice":   r.invoice,
		"sii":       r.siiCommand,
	}
}

func (r *Runner) usage() {
	fmt.Fprintf(r.errOut, "Uso: %s [--json] [--yes] <comando> [flags]\n\nComandos:\n", programName)
	help := map[string]string{
		"login":     "Inicia sesión (--email, --password)",
		"logout":    "Cierra la sesión y revoca el acceso SII",
		"whoami":    "Muestra el usuario actual (--remote)",
		"companies": "Lista las empresas del usuario",
		"use":       "Selecciona la empresa activa: use <id> [--remote]",
		"invoices":  "Lista facturas (--search, --anio, --mes, --estado, --page, --per-page)",
		"browse":    "Recorre facturas de forma interactiva (n, p, r, q)",
		"invoice":   "Muestra el detalle de una factura: invoice <id>",
		"sii":       "Consultas SII: validate | revoke | status | query",
	}
	names := make([]string, 0, len(help))
	for name := range help {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(r.errOut, "  %-10s %s\n", name, help[name])
	}
}

// userError keeps the original error for errors.Is while showing a
// friendly message.
type userError struct {
	message string
	err     error
}

func (e *userError) Error() string {
	return e.message
}

func (e *userError) Unwrap() error {
	return e.err
}

func (r *Runner) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(programName+" "+name, flag.ContinueOnError)
	fs.SetOutput(r.errOut)
	fs.BoolVar(&r.options.JSON, "json", r.options.JSON, "Salida en formato JSON")
	return fs
}

// parseArgs parses flags that may appear before or after positional
// arguments and returns the positional ones.
func parseArgs(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		rest := fs.Args()
		if len(rest) == 0 {
			return positional, nil
		}
		positional = append(positional, rest[0])
		args = rest[1:]
	}
}

func (r *Runner) readLine() (string, error) {
	line, err := r.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (r *Runner) ask(label string) (string, error) {
	fmt.Fprint(r.out, label)
	return r.readLine()
}

// askSecret reads without echo when stdin is a terminal.
func (r *Runner) askSecret(label string) (string, error) {
	fmt.Fprint(r.out, label)
	if r.stdin != nil && term.IsTerminal(int(r.stdin.Fd())) {
		raw, err := term.ReadPassword(int(r.stdin.Fd()))
		fmt.Fprintln(r.out)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(raw)), nil
	}
	return r.readLine()
}

// confirm is the y/N question asked before an SII query.
func (r *Runner) confirm(_ context.Context, message string) bool {
	fmt.Fprintf(r.out, "%s\n[s/N]: ", message)
	answer, err := r.readLine()
	if err != nil {
		return false
	}
	switch strings.ToLower(answer) {
	case "s", "si", "sí", "y", "yes":
		return true
	default:
		return false
	}
}

func (r *Runner) writeJSON(v any) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
