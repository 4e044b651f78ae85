package cmd

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/dgallion1/manualrag/internal/config"
	"github.com/dgallion1/manualrag/internal/rag"
	"github.com/fatih/color"
)

func init() {
	color.NoColor = true
}

type recordingResponder struct {
	questions []string
}

func (r *recordingResponder) respond(ctx context.Context, q string) string {
	r.questions = append(r.questions, q)
	return "answer to " + q
}

func TestChatLoop_ExitCommand(t *testing.T) {
	r := &recordingResponder{}
	var out bytes.Buffer
	in := strings.NewReader("How do I prime the pump?\n  SAIR  \nnever asked\n")

	if err := chatLoop(context.Background(), in, &out, r.respond); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(r.questions) != 1 || r.questions[0] != "How do I prime the pump?" {
		t.Errorf("unexpected questions %q", r.questions)
	}
	if !strings.Contains(out.String(), "Assistant: answer to How do I prime the pump?") {
		t.Errorf("answer not printed: %q", out.String())
	}
	if !strings.Contains(out.String(), "Bye.") {
		t.Errorf("expected goodbye, got %q", out.String())
	}
}

func TestChatLoop_IgnoresEmptyInput(t *testing.T) {
	r := &recordingResponder{}
	var out bytes.Buffer
	in := strings.NewReader("\n   \n\t\nsair\n")

	if err := chatLoop(context.Background(), in, &out, r.respond); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(r.questions) != 0 {
		t.Errorf("expected no questions, got %q", r.questions)
	}
}

func TestChatLoop_TooLongContinues(t *testing.T) {
	r := &recordingResponder{}
	var out bytes.Buffer
	in := strings.NewReader(strings.Repeat("x", rag.MaxQuestionLen+1) + "\nalarm codes?\n")

	if err := chatLoop(context.Background(), in, &out, r.respond); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(r.questions) != 1 || r.questions[0] != "alarm codes?" {
		t.Errorf("expected session to continue after a rejected question, got %q", r.questions)
	}
	if !strings.Contains(out.String(), rag.ErrQuestionTooLong.Error()) {
		t.Errorf("expected length error in output: %q", out.String())
	}
}

func TestChatLoop_EOFEndsSession(t *testing.T) {
	r := &recordingResponder{}
	if err := chatLoop(context.Background(), strings.NewReader("first"), &bytes.Buffer{}, r.respond); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(r.questions) != 1 {
		t.Errorf("expected the unterminated last line to be asked, got %q", r.questions)
	}
}

func TestChatLoop_CanceledContextStops(t *testing.T) {
	r := &recordingResponder{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := chatLoop(ctx, strings.NewReader("first\nsecond\n"), &bytes.Buffer{}, r.respond)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(r.questions) != 0 {
		t.Errorf("expected no questions asked, got %q", r.questions)
	}
}

func TestSignalContext_CanceledOnSIGTERM(t *testing.T) {
	ctx, stop := SignalContext(context.Background())
	defer stop()

	if err := syscall.Kill(os.Getpid(), syscall.SIGTERM); err != nil {
		t.Fatalf("kill: %v", err)
	}
	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("context not canceled by SIGTERM")
	}
}

func TestWriteTimeout_OutlastsAskTimeout(t *testing.T) {
	tests := []struct {
		ask  time.Duration
		want time.Duration
	}{
		{5 * time.Minute, 5*time.Minute + 30*time.Second},
		{10 * time.Second, 2 * time.Minute},
	}
	for _, tt := range tests {
		got := WriteTimeout(config.Config{AskTimeout: tt.ask})
		if got != tt.want {
			t.Errorf("WriteTimeout(ask=%v) = %v, want %v", tt.ask, got, tt.want)
		}
		if got <= tt.ask {
			t.Errorf("write deadline %v does not outlast ask timeout %v", got, tt.ask)
		}
	}
}

func TestRootFlags_Override(t *testing.T) {
	e := &env{flags: &rootFlags{}}
	root := newRootCommand(e)
	if err := root.ParseFlags([]string{"--index-dir=/tmp/idx", "--k=7", "--first-page=3", "-v"}); err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}
	e.load(root)

	if e.cfg.IndexDir != "/tmp/idx" || e.cfg.RetrievalK != 7 || e.cfg.PageFirst != 3 {
		t.Errorf("flags not applied: %+v", e.cfg)
	}
	if e.cfg.LogLevel != slog.LevelDebug {
		t.Errorf("expected debug level, got %v", e.cfg.LogLevel)
	}
	if root.Flags().Changed("last-page") {
		t.Error("last-page was not set")
	}
}

func TestRootCommand_Subcommands(t *testing.T) {
	root := NewRootCommand()
	want := []string{"ingest", "chat", "ask", "sections", "serve", "mcp"}
	for _, name := range want {
		c, _, err := root.Find([]string{name})
		if err != nil || c.Name() != name {
			t.Errorf("missing subcommand %q", name)
		}
	}
}
