package cli

import (
	"errors"
	"fmt"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pandoo/chatsync/internal/events"
	"github.com/pandoo/chatsync/internal/session"
)

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [conversation-id]",
		Short: "Stream a conversation timeline to the terminal",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runWatch,
	}
	cmd.Flags().String("search", "", "Print matching history and exit")
	cmd.Flags().Bool("status", false, "Show push channel state changes")
	return cmd
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sess, err := current.newSession(ctx)
	if err != nil {
		return Exitf(ExitCodeFailure, "init session: %v", err)
	}
	defer sess.Close()

	arg := ""
	if len(args) > 0 {
		arg = args[0]
	}
	id, err := current.resolveConversation(arg)
	if err != nil {
		return Exitf(ExitCodeFailure, "resolve conversation: %v", err)
	}

	if id != "" {
		err = sess.Select(ctx, id)
	} else {
		id, err = sess.AutoSelect(ctx)
		if errors.Is(err, session.ErrNoConversations) {
			return Exitf(ExitCodeFailure, "no conversations available")
		}
	}
	if err != nil {
		return Exitf(ExitCodeFailure, "select conversation: %v", err)
	}

	if query, _ := cmd.Flags().GetString("search"); query != "" {
		matches := sess.Store().Search(query)
		for i := range matches {
			fmt.Fprintln(cmd.OutOrStdout(), formatMessage(&matches[i]))
		}
		if len(matches) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no matches")
		}
		return nil
	}

	out := cmd.OutOrStdout()
	showStatus, _ := cmd.Flags().GetBool("status")

	// Printing is serialized; event handlers run on session goroutines.
	var mu sync.Mutex
	seen := make(map[string]bool)

	printNew := func() {
		mu.Lock()
		defer mu.Unlock()
		for _, msg := range sess.Store().Snapshot() {
			if seen[msg.MsgID] {
				continue
			}
			seen[msg.MsgID] = true
			fmt.Fprintln(out, formatMessage(&msg))
		}
	}

	printNew()

	sub := sess.Events()
	err = sub.Subscribe("cli-watch", events.Filter{ConversationID: id}, func(e *events.Event) {
		switch e.Type {
		case events.EventMessagesUpdated:
			printNew()
		case events.EventChannelState:
			if showStatus {
				mu.Lock()
				fmt.Fprintf(out, "-- channel %s --\n", e.ChannelState)
				mu.Unlock()
			}
		}
	})
	if err != nil {
		return Exitf(ExitCodeFailure, "subscribe: %v", err)
	}
	defer func() { _ = sub.Unsubscribe("cli-watch") }()

	<-ctx.Done()
	return nil
}
