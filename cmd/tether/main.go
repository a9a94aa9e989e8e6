package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"
	"golang.org/x/term"

	"tether/internal/config"
	"tether/internal/core"
	"tether/internal/ledger"
	"tether/internal/mailbox"
	"tether/internal/mediator"
	"tether/internal/permission"
	"tether/internal/shell"
	"tether/internal/usage"
)

var BUILD_VERSION = "dev"

var agentFlag = flag.String("agent", "", "agent id override")
var modeFlag = flag.String("mode", "", "starting permission mode: safe, default, or yolo")
var cwdFlag = flag.String("cwd", "", "initial working directory for the shell session")

var helpFlag = flag.Bool("h", false, "display help information")
var versionFlag = flag.Bool("ver", false, "display build version")

const helpText = `tether - mediated tool execution for coding agents

Reads line-delimited JSON tool calls on stdin and writes one JSON result
per line on stdout. Confirmation prompts are shown on the controlling
terminal; without one, every prompt is answered with a denial.

USAGE:
  tether [options]

OPTIONS:
`

func main() {
	flag.Parse()

	if *versionFlag {
		fmt.Println(BUILD_VERSION)
		return
	}

	if *helpFlag {
		fmt.Print(helpText)
		flag.PrintDefaults()
		return
	}

	cfg, err := config.Load(core.ConfigFile())
	if err != nil {
		panic(err)
	}
	if *agentFlag != "" {
		cfg.AgentID = *agentFlag
	}
	if *modeFlag != "" {
		cfg.Mode = *modeFlag
	}

	logger, err := initializeLogger(cfg)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	logger.Info("-------- new tether session --------",
		zap.Any("args", os.Args), zap.String("agent", cfg.AgentID))

	mode, err := permission.ParseMode(cfg.Mode)
	if err != nil {
		logger.Warn("invalid configured mode, using default", zap.Error(err))
	}

	recorder, err := usage.NewRecorder(core.UsageFile())
	if err != nil {
		panic(fmt.Sprintf("failed to initialize usage recorder: %v", err))
	}

	box := mailbox.New(core.InboxDir(), cfg.AgentID, logger)
	session := shell.NewSession(*cwdFlag, nil, logger)
	defer session.Close()

	gate := permission.NewGate(mode, logger)
	go confirmLoop(gate, logger)

	med := mediator.New(mediator.Deps{
		AgentID:          cfg.AgentID,
		Shell:            session,
		Ledger:           ledger.New(logger),
		Gate:             gate,
		Usage:            recorder,
		Mailbox:          box,
		Logger:           logger,
		DefaultTimeoutMs: cfg.DefaultTimeoutMs,
		MaxTimeoutMs:     cfg.MaxTimeoutMs,
	})

	if err := run(med, gate, session, box, logger); err != nil {
		logger.Error("unhandled error", zap.Error(err))
		os.Exit(1)
	}
}

// envelope is one request line on stdin. Tool names go to the mediator;
// everything else is a control request handled here.
type envelope struct {
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	Input map[string]any `json:"input"`
}

type response struct {
	ID      string `json:"id,omitempty"`
	Content string `json:"content"`
	IsError bool   `json:"is_error"`
	Mode    string `json:"mode,omitempty"`
}

func run(
	med *mediator.Mediator,
	gate *permission.Gate,
	session *shell.Session,
	box *mailbox.Mailbox,
	logger *zap.Logger,
) error {
	ctx := context.Background()

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	encoder := json.NewEncoder(os.Stdout)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var req envelope
		if err := json.Unmarshal([]byte(line), &req); err != nil {
			logger.Warn("malformed request line", zap.Error(err))
			writeResponse(encoder, logger, response{
				Content: fmt.Sprintf("malformed request: %v", err),
				IsError: true,
			})
			continue
		}

		writeResponse(encoder, logger, handleRequest(ctx, med, gate, session, box, req))
	}

	return scanner.Err()
}

func handleRequest(
	ctx context.Context,
	med *mediator.Mediator,
	gate *permission.Gate,
	session *shell.Session,
	box *mailbox.Mailbox,
	req envelope,
) response {
	switch req.Name {
	case "GetMode":
		return response{ID: req.ID, Mode: gate.Mode().String()}

	case "CycleMode":
		mode := gate.CycleMode()
		return response{
			ID:      req.ID,
			Content: fmt.Sprintf("permission mode is now %s", mode),
			Mode:    mode.String(),
		}

	case "RestartShell":
		session.Restart()
		return response{ID: req.ID, Content: "shell restarted"}

	case "SendMessage":
		to, _ := req.Input["to"].(string)
		summary, _ := req.Input["summary"].(string)
		body, _ := req.Input["body"].(string)
		priority, _ := req.Input["priority"].(string)
		if to == "" || summary == "" {
			return response{ID: req.ID, Content: "to and summary are required", IsError: true}
		}
		path, err := box.Send(to, summary, body, priority)
		if err != nil {
			return response{ID: req.ID, Content: err.Error(), IsError: true}
		}
		return response{ID: req.ID, Content: fmt.Sprintf("message delivered to %s", path)}
	}

	res := med.Dispatch(ctx, &mediator.Request{Name: req.Name, Input: req.Input})
	return response{ID: req.ID, Content: res.Content, IsError: res.IsError}
}

func writeResponse(encoder *json.Encoder, logger *zap.Logger, res response) {
	if err := encoder.Encode(res); err != nil {
		logger.Error("failed to write response", zap.Error(err))
	}
}

var (
	dangerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	dimStyle    = lipgloss.NewStyle().Faint(true)
)

// confirmLoop services confirmation requests on the controlling terminal.
// stdin and stdout belong to the JSON protocol, so prompts go to /dev/tty;
// when no usable terminal is available every request is denied.
func confirmLoop(gate *permission.Gate, logger *zap.Logger) {
	tty, err := os.OpenFile("/dev/tty", os.O_RDWR, 0)
	if err != nil || !term.IsTerminal(int(tty.Fd())) {
		if tty != nil {
			tty.Close()
		}
		logger.Warn("no controlling terminal, confirmation requests will be denied")
		for req := range gate.Requests() {
			req.Resolve(false)
		}
		return
	}
	defer tty.Close()

	reader := bufio.NewReader(tty)
	for req := range gate.Requests() {
		header := promptStyle.Render(fmt.Sprintf("%s requires confirmation", req.ToolName))
		if req.Dangerous {
			header = dangerStyle.Render(fmt.Sprintf("%s requires confirmation", req.ToolName))
		}

		fmt.Fprintf(tty, "\n%s\n%s\n%s ",
			header,
			dimStyle.Render(req.Preview),
			promptStyle.Render("Allow? [y/N]"))

		answer, err := reader.ReadString('\n')
		if err != nil {
			req.Resolve(false)
			continue
		}
		answer = strings.ToLower(strings.TrimSpace(answer))
		req.Resolve(answer == "y" || answer == "yes")
	}
}

func initializeLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	if BUILD_VERSION == "dev" {
		level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}

	loggerConfig := zap.NewProductionConfig()
	loggerConfig.Level = level
	loggerConfig.OutputPaths = []string{
		core.LogFile(),
	}

	// Logs go to file only; stdout carries the JSON protocol.

	return loggerConfig.Build()
}
