package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"strings"
	"sync"

	"github.com/tbourn/go-complaint-desk/internal/client"
	"github.com/tbourn/go-complaint-desk/internal/domain"
	"github.com/tbourn/go-complaint-desk/internal/store"
)

const chatHelp = `commands: /good /bad (rate the conversation), /end, /reset, /quit`

// transcript prints messages as the conversation store appends them.
type transcript struct {
	mu      sync.Mutex
	a       *app
	printed int
	typing  bool
}

func (t *transcript) render(st store.ConversationState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(st.Messages) < t.printed {
		t.printed = 0
	}
	for _, m := range st.Messages[t.printed:] {
		if t.a.json {
			// one message per line
			_ = json.NewEncoder(t.a.out).Encode(m)
			continue
		}
		who := "you"
		if m.Sender == domain.SenderBot {
			who = "bot"
		}
		mark := ""
		if m.IsError {
			mark = " (!)"
		}
		fmt.Fprintf(t.a.out, "%s%s> %s\n", who, mark, m.Text)
	}
	t.printed = len(st.Messages)
	if st.Typing && !t.typing && !t.a.json {
		fmt.Fprintln(t.a.out, "bot is typing...")
	}
	t.typing = st.Typing
}

func (a *app) chatLoop(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("chat", flag.ExitOnError)
	first := fs.String("start", "", "open a new conversation with this message")
	_ = fs.Parse(args)

	tr := &transcript{a: a}
	unsub := a.chat.Subscribe(tr.render)
	defer unsub()
	defer a.chat.Wait()

	a.chat.Initialize(ctx)
	st := a.chat.State()
	if !st.Connected {
		fmt.Fprintln(a.out, "assistant unavailable; messages may fail")
	}
	if *first != "" {
		if err := a.chat.StartConversation(ctx, *first); err != nil {
			fmt.Fprintf(a.out, "could not start a conversation: %v\n", err)
		}
	}
	if !a.json {
		fmt.Fprintln(a.out, chatHelp)
	}

	sc := bufio.NewScanner(a.in)
	for {
		if ctx.Err() != nil {
			break
		}
		if !sc.Scan() {
			break
		}
		line := strings.TrimSpace(sc.Text())
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			a.chat.EndConversation(ctx)
			return sc.Err()
		case "/end":
			a.chat.EndConversation(ctx)
			fmt.Fprintln(a.out, "conversation ended; /reset to start over")
			continue
		case "/reset":
			a.chat.ResetConversation(ctx)
			continue
		case "/good", "/bad":
			rating := 1
			if line == "/bad" {
				rating = -1
			}
			a.chat.ReportFeedback(client.Feedback{Rating: rating})
			fmt.Fprintln(a.out, "thanks for the feedback")
			continue
		}

		// Failures already show up in the transcript as a bot message.
		if err := a.chat.SendMessage(ctx, line); errors.Is(err, store.ErrConversationEnded) {
			fmt.Fprintln(a.out, "conversation ended; /reset to start over")
		}
	}
	a.chat.EndConversation(context.WithoutCancel(ctx))
	return sc.Err()
}
