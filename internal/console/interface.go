package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"trip-agent/internal/config"
	"trip-agent/internal/entity"
	"trip-agent/internal/usecase"
	"trip-agent/pkg/logg"

	"github.com/fatih/color"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const consoleName = "Console"

var errExit = errors.New("exit")

// Options selects one-shot mode when Prompt is set.
type Options struct {
	Prompt string
}

type Interface struct {
	config     *config.Config
	logger     *zap.Logger
	usecase    *usecase.Service
	shutdowner fx.Shutdowner
	options    Options
	in         io.Reader
	out        io.Writer
	printer    *StatusPrinter
	ctx        context.Context
	cancel     context.CancelFunc
	stopOnce   sync.Once
	// running is held for the whole of a session run.
	running    sync.Mutex
}

type Params struct {
	fx.In

	Config     *config.Config
	Logger     *zap.Logger
	Usecase    *usecase.Service
	Shutdowner fx.Shutdowner
	Options    Options `optional:"true"`
}

func NewInterface(params Params) *Interface {
	ctx, cancel := context.WithCancel(context.Background())

	return &Interface{
		config:     params.Config,
		logger:     params.Logger.With(zap.String(logg.Layer, consoleName)),
		usecase:    params.Usecase,
		shutdowner: params.Shutdowner,
		options:    params.Options,
		in:         os.Stdin,
		out:        os.Stdout,
		printer:    NewStatusPrinter(os.Stdout),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start runs the one-shot request or the interactive prompt and shuts the app
// down when either finishes.
func (i *Interface) Start() error {
	defer i.shutdown()

	if i.options.Prompt != "" {
		i.runRequest(i.options.Prompt)

		return nil
	}

	i.printBanner()
	i.printHelp()

	scanner := bufio.NewScanner(i.in)

	for {
		if i.ctx.Err() != nil {
			return nil
		}

		fmt.Fprint(i.out, "\n> ")

		if !scanner.Scan() {
			return scanner.Err()
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		if err := i.handleCommand(input); err != nil {
			if errors.Is(err, errExit) {
				return nil
			}

			i.logger.Error("Command error", zap.Error(err))
			fmt.Fprintf(i.out, "Error: %v\n", err)
		}
	}
}

// Stop cancels the running session, if any, and waits for it to return so the
// browser can be closed afterwards.
func (i *Interface) Stop(ctx context.Context) error {
	i.logger.Info("Stopping console interface...")
	i.cancel()

	idle := make(chan struct{})
	go func() {
		i.running.Lock()
		defer i.running.Unlock()
		close(idle)
	}()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (i *Interface) shutdown() {
	i.stopOnce.Do(func() {
		if i.shutdowner == nil {
			return
		}

		if err := i.shutdowner.Shutdown(); err != nil {
			i.logger.Warn("Failed to request shutdown", zap.Error(err))
		}
	})
}

func (i *Interface) handleCommand(input string) error {
	switch input {
	case "help", "h":
		i.printHelp()

		return nil
	case "status":
		i.printStatus()

		return nil
	case "demo":
		i.runRequest(config.DefaultRequest)

		return nil
	case "exit", "quit", "q":
		fmt.Fprintln(i.out, "Shutting down...")

		return errExit
	default:
		i.runRequest(input)

		return nil
	}
}

func (i *Interface) runRequest(request string) {
	i.running.Lock()
	defer i.running.Unlock()

	if i.ctx.Err() != nil {
		return
	}

	fmt.Fprintf(i.out, "\nTrip request: %s\n", request)
	fmt.Fprintln(i.out, strings.Repeat("-", 60))

	sess, err := i.usecase.Session.Run(i.ctx, request, i.printer)

	fmt.Fprintln(i.out, strings.Repeat("-", 60))

	if err != nil {
		i.logger.Debug("Session ended with error", zap.Error(err))
		color.New(color.FgRed).Fprintf(i.out, "Booking failed: %v\n", err)

		return
	}

	if sess.Status == entity.SessionStatusCompleted {
		color.New(color.FgGreen).Fprintln(i.out, "Booking finished")
		fmt.Fprintf(i.out, "Result: %s\n", sess.Result)
		fmt.Fprintf(i.out, "Steps: %d, turns: %d\n", len(sess.Steps), sess.Turns)
	}
}

func (i *Interface) printStatus() {
	if i.usecase.Browser.IsReady() {
		color.New(color.FgGreen).Fprintln(i.out, "Browser: ready")

		return
	}

	color.New(color.FgRed).Fprintln(i.out, "Browser: not ready")
}

func (i *Interface) printBanner() {
	color.New(color.FgCyan, color.Bold).Fprintln(i.out, "\nTrip Agent: books a stay from a plain-language request")
}

func (i *Interface) printHelp() {
	help := `
Available commands:
  help, h       - Show this help message
  status        - Show whether the browser is ready
  demo          - Run the sample request below
  exit, quit, q - Exit the application

Describe your trip in natural language, for example:
  ` + config.DefaultRequest + `

Log in in the browser window when asked; the agent takes over afterwards.
`
	fmt.Fprintln(i.out, help)
}
