package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/hpc-help/sccbot/pkg/chats/message"
	"github.com/hpc-help/sccbot/pkg/chats/role"
	"github.com/hpc-help/sccbot/pkg/engine"
	"github.com/hpc-help/sccbot/pkg/modeladapter"
)

const greeting = "Hello! I can help you with questions about the university's " +
	"Shared Computing Cluster. You can ask specific questions like, " +
	"\"How to run my Python script with 16 cores?\", but please do not include " +
	"any sensitive data in your message! What would you like to know?"

const helpText = `Commands:
  exit, quit  end the session
  clear       forget the conversation so far
  help        show this message

Anything else is sent to the assistant.`

// streamEngine is the subset of the engine the REPL needs. Satisfied by
// *engine.Engine.
type streamEngine interface {
	ExecuteStream(ctx context.Context, msgs []message.Message, fn modeladapter.StreamFunc) (engine.Result, error)
}

// repl is the interactive read-eval-print loop.
type repl struct {
	eng     streamEngine
	in      io.Reader
	out     io.Writer
	render  *renderer
	history []message.Message

	// usage, when set, supplies the session's token totals shown at exit.
	usage modeladapter.UsageReporter
}

func newREPL(eng streamEngine, in io.Reader, out io.Writer, plain bool) *repl {
	return &repl{
		eng:    eng,
		in:     in,
		out:    out,
		render: newRenderer(out, plain),
	}
}

func (r *repl) run(ctx context.Context) error {
	r.render.assistant(greeting)

	scanner := bufio.NewScanner(r.in)
	for {
		fmt.Fprint(r.out, "\nYou: ")

		if !scanner.Scan() {
			fmt.Fprintln(r.out)
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return nil
		}

		input := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(input) {
		case "":
			continue
		case "exit", "quit":
			r.printUsage()
			fmt.Fprintln(r.out, "Goodbye!")
			return nil
		case "clear":
			r.history = nil
			r.render.info("Conversation cleared.")
			continue
		case "help":
			fmt.Fprintln(r.out, helpText)
			continue
		}

		if err := r.turn(ctx, input); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			r.render.error(err)
		}
	}
}

// printUsage reports the tokens spent across the whole session.
func (r *repl) printUsage() {
	if r.usage == nil {
		return
	}

	total := r.usage.UsageTracker().Total()
	if total.Total() == 0 {
		return
	}
	r.render.info(fmt.Sprintf("Total tokens used: %d", total.Total()))
}

// turn sends one user message and renders the streamed reply. The raw
// streamed text is erased and replaced with the markdown-rendered version
// once complete.
func (r *repl) turn(ctx context.Context, input string) error {
	r.history = append(r.history, message.NewText(role.User, input))

	fmt.Fprintln(r.out)
	stream := r.render.newStream()
	res, err := r.eng.ExecuteStream(ctx, r.history, stream.deliver)
	if err != nil {
		return err
	}

	r.history = res.Messages

	if len(res.Messages) > 0 {
		if last := res.Messages[len(res.Messages)-1]; last.Role == role.Assistant {
			stream.finish(last.TextContent())
		}
	}

	return nil
}
