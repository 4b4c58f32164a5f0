// Package assistant keeps a conversation with an OpenAI assistant going across snapshots.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	"github.com/jiggo089/conference-ai-assistant/internal/config"
	"github.com/jiggo089/conference-ai-assistant/internal/observability"
	"github.com/jiggo089/conference-ai-assistant/internal/openaiclient"
	"github.com/jiggo089/conference-ai-assistant/internal/resilience"
	"github.com/jiggo089/conference-ai-assistant/internal/session"
)

// ReplyPrefix introduces the assistant's answer in the output
const ReplyPrefix = "assistant > "

// ErrRunFailed is returned when a run ends in any state other than completed
var ErrRunFailed = errors.New("assistant run did not complete")

// Options configures the assistant and run polling
type Options struct {
	Model        string
	Name         string
	Description  string
	Instructions string
	PollInterval time.Duration
	RunTimeout   time.Duration
}

// OptionsFromConfig reads assistant settings from processor configuration
func OptionsFromConfig(cfg *config.ProcessorConfig) Options {
	return Options{
		Model:        cfg.AssistantModel,
		Name:         cfg.AssistantName,
		Description:  cfg.AssistantDescription,
		Instructions: cfg.AssistantInstructions,
		PollInterval: time.Duration(cfg.RunPollInterval) * time.Millisecond,
		RunTimeout:   time.Duration(cfg.RunTimeout) * time.Second,
	}
}

// Conversation sends transcriptions to a thread and prints the replies
type Conversation struct {
	client *openai.Client
	store  *session.Store
	opts   Options
	retry  *resilience.RetryConfig
	out    io.Writer
	logger zerolog.Logger
}

// NewConversation creates a conversation that persists ids in store and writes replies to out
func NewConversation(client *openai.Client, store *session.Store, opts Options, retry *resilience.RetryConfig, out io.Writer) *Conversation {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 500 * time.Millisecond
	}
	return &Conversation{
		client: client,
		store:  store,
		opts:   opts,
		retry:  retry,
		out:    out,
		logger: observability.WithComponent("assistant"),
	}
}

// Ask posts text to the conversation identified by ids, starting a new one
// when ids are incomplete. It returns the ids in use.
func (c *Conversation) Ask(ctx context.Context, ids session.IDs, text string) (session.IDs, error) {
	var err error
	if ids.Complete() {
		err = c.call(ctx, "create message", func(ctx context.Context) error {
			_, err := c.client.CreateMessage(ctx, ids.ThreadID, openai.MessageRequest{
				Role:    string(openai.ThreadMessageRoleUser),
				Content: text,
			})
			return err
		})
	} else {
		ids, err = c.start(ctx, text)
	}
	if err != nil {
		return ids, err
	}

	logger := c.logger.With().Str("thread_id", ids.ThreadID).Str("assistant_id", ids.AssistantID).Logger()

	run, err := c.run(ctx, ids)
	if err != nil {
		return ids, err
	}
	logger.Debug().Str("run_id", run.ID).Msg("Run completed")

	return ids, c.printReply(ctx, ids.ThreadID, run.ID)
}

// start creates a thread seeded with text and an assistant, then saves both ids
func (c *Conversation) start(ctx context.Context, text string) (session.IDs, error) {
	var ids session.IDs

	err := c.call(ctx, "create thread", func(ctx context.Context) error {
		thread, err := c.client.CreateThread(ctx, openai.ThreadRequest{
			Messages: []openai.ThreadMessage{{
				Role:    openai.ThreadMessageRoleUser,
				Content: text,
			}},
		})
		ids.ThreadID = thread.ID
		return err
	})
	if err != nil {
		return session.IDs{}, err
	}

	err = c.call(ctx, "create assistant", func(ctx context.Context) error {
		asst, err := c.client.CreateAssistant(ctx, openai.AssistantRequest{
			Model:       c.opts.Model,
			Name:        &c.opts.Name,
			Description: &c.opts.Description,
		})
		ids.AssistantID = asst.ID
		return err
	})
	if err != nil {
		return session.IDs{}, err
	}

	if err := c.store.Save(ids); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to persist session ids")
	}
	c.logger.Info().Str("thread_id", ids.ThreadID).Str("assistant_id", ids.AssistantID).Msg("Started new conversation")
	return ids, nil
}

// run creates a run and polls it until it reaches a terminal state
func (c *Conversation) run(ctx context.Context, ids session.IDs) (openai.Run, error) {
	if c.opts.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.RunTimeout)
		defer cancel()
	}

	var run openai.Run
	err := c.call(ctx, "create run", func(ctx context.Context) error {
		var err error
		run, err = c.client.CreateRun(ctx, ids.ThreadID, openai.RunRequest{
			AssistantID:  ids.AssistantID,
			Instructions: c.opts.Instructions,
		})
		return err
	})
	if err != nil {
		return run, err
	}

	ticker := time.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()

	for {
		switch run.Status {
		case openai.RunStatusCompleted:
			return run, nil
		case openai.RunStatusFailed, openai.RunStatusCancelled, openai.RunStatusExpired,
			openai.RunStatusRequiresAction:
			msg := string(run.Status)
			if run.LastError != nil {
				msg = fmt.Sprintf("%s: %s", run.Status, run.LastError.Message)
			}
			observability.RecordError("run_failed", "assistant")
			return run, fmt.Errorf("%w: %s", ErrRunFailed, msg)
		}

		select {
		case <-ctx.Done():
			return run, fmt.Errorf("waiting for run %s: %w", run.ID, ctx.Err())
		case <-ticker.C:
		}

		runID := run.ID
		err := c.call(ctx, "retrieve run", func(ctx context.Context) error {
			var err error
			run, err = c.client.RetrieveRun(ctx, ids.ThreadID, runID)
			return err
		})
		if err != nil {
			return run, err
		}
	}
}

// printReply writes the run's assistant messages, one sentence per line
func (c *Conversation) printReply(ctx context.Context, threadID, runID string) error {
	var list openai.MessagesList
	err := c.call(ctx, "list messages", func(ctx context.Context) error {
		limit := 20
		order := "asc"
		var err error
		list, err = c.client.ListMessage(ctx, threadID, &limit, &order, nil, nil, &runID)
		return err
	})
	if err != nil {
		return err
	}

	fmt.Fprintln(c.out, ReplyPrefix)

	var s Splitter
	for _, msg := range list.Messages {
		if msg.Role != string(openai.ThreadMessageRoleAssistant) {
			continue
		}
		for _, content := range msg.Content {
			if content.Text == nil {
				continue
			}
			for _, sentence := range s.Feed(content.Text.Value) {
				fmt.Fprintln(c.out, sentence)
			}
		}
	}
	if rest, ok := s.Flush(); ok {
		fmt.Fprintln(c.out, rest)
	}
	return nil
}

func (c *Conversation) call(ctx context.Context, op string, fn resilience.RetryableFunc) error {
	err := resilience.Retry(ctx, fn, c.retry, openaiclient.IsRetryable)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
