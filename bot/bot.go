// Package bot owns one simulated conversational session against a live bot
// service: connect, run the question script, then reconcile the transcript
// against the platform's session logs.
package bot

import (
	"fmt"
	"slices"
	"time"

	"github.com/botceptor/botceptor/channel"
	"github.com/botceptor/botceptor/logger"
	"github.com/botceptor/botceptor/logs"
	"github.com/botceptor/botceptor/model"
	"github.com/botceptor/botceptor/reconcile"
	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
)

const (
	// DefaultQuestionDelay throttles the ask loop to the pacing the target
	// service expects between turns.
	DefaultQuestionDelay = 3 * time.Second

	repeatedCallLookBackInterval = 20
)

// Metrics is the per-message result of the interactive chat path: which
// objectives and tools the most recent request actually used.
type Metrics struct {
	UsedObjectives []string `json:"used_objectives"`
	UsedToolCalls  []string `json:"used_tool_calls"`
}

// TestBot drives one session end to end. All of its state is session-private;
// bots never share anything mutable, so many can run in parallel without
// locking.
type TestBot struct {
	ID        int
	SessionID string
	Hostname  string
	BotName   string
	Questions []model.QuestionSpec

	// QuestionDelay is the pause between scripted questions.
	QuestionDelay time.Duration

	Report *model.SessionReport

	client  *channel.Client
	logs    *logs.Client
	history *reconcile.History
}

// NewTestBot builds a bot with a fresh session id and its per-session
// channel endpoint. The session is not connected until StartSession.
func NewTestBot(id int, hostname, botName string, questions []model.QuestionSpec) *TestBot {
	sessionID := uuid.New().String()
	socketURL := fmt.Sprintf("ws://%s/bots/%s/sessions/%s", hostname, botName, sessionID)

	b := &TestBot{
		ID:            id,
		SessionID:     sessionID,
		Hostname:      hostname,
		BotName:       botName,
		Questions:     questions,
		QuestionDelay: DefaultQuestionDelay,
		Report:        model.NewSessionReport(sessionID),
		client:        channel.NewClient(socketURL),
		logs:          logs.NewClient(hostname),
	}

	logger.Logger.Info("Test bot initialized",
		"bot", b.ID,
		"session_id", b.SessionID,
		"bot_name", b.BotName)
	return b
}

// DefaultEntities seeds the session with the entity values a real caller
// would carry.
func DefaultEntities() map[string]string {
	f := gofakeit.New(0)
	return map[string]string{
		"mobile_number": f.Phone(),
	}
}

// StartSession opens the channel, sends the session-start message, and
// returns the bot's opening greeting. A bot whose connect fails stays
// permanently unusable for asking; there are no retries.
func (b *TestBot) StartSession(entities map[string]string) (string, error) {
	if err := b.client.Connect(); err != nil {
		return "", fmt.Errorf("failed to start session %s: %w", b.SessionID, err)
	}

	if entities == nil {
		entities = DefaultEntities()
	}

	start := channel.StartMessage{
		Event:     channel.EventStart,
		SessionID: b.SessionID,
		MimeType:  channel.MimeTypeText,
		Payload: channel.StartPayload{
			Metadata: channel.StartMetadata{
				RepeatedCallCount:            0,
				RepeatedCallLookBackInterval: repeatedCallLookBackInterval,
				RepeatedCallTimestamps:       []int64{},
			},
			Entities: entities,
		},
	}

	if err := b.client.Send(start); err != nil {
		return "", fmt.Errorf("failed to send start message for session %s: %w", b.SessionID, err)
	}

	reply, err := b.client.Receive()
	if err != nil {
		return "", fmt.Errorf("failed to receive opening message for session %s: %w", b.SessionID, err)
	}

	logger.Logger.Info("Session started",
		"bot", b.ID,
		"session_id", b.SessionID,
		"greeting", reply.Payload.Text)
	return reply.Payload.Text, nil
}

// Run executes the full scripted ask loop, closes the channel, and
// reconciles the transcript against the session logs. A failed send or
// receive leaves an empty response on that turn and moves on; only a
// reconciliation decode failure is returned as an error.
func (b *TestBot) Run() error {
	for i, q := range b.Questions {
		logger.Logger.Info("Asking question",
			"bot", b.ID,
			"number", i+1,
			"question", q.Question)

		turn := model.ConversationTurn{
			Question:           q.Question,
			ExpectedObjectives: q.ExpectedObjectives,
			ExpectedTools:      q.ExpectedTools,
			Event:              "error",
		}

		reply, err := b.ask(q.Question)
		if err != nil {
			logger.Logger.Error("No reply for question",
				"bot", b.ID,
				"number", i+1,
				"error", err)
		} else {
			turn.Response = reply.Payload.Text
			turn.Event = reply.Event
			logger.Logger.Info("Got answer",
				"bot", b.ID,
				"number", i+1,
				"answer", reply.Payload.Text)
		}

		b.Report.AppendTurn(turn)

		if b.QuestionDelay > 0 && i < len(b.Questions)-1 {
			time.Sleep(b.QuestionDelay)
		}
	}

	logger.Logger.Info("All requests completed", "bot", b.ID, "session_id", b.SessionID)
	b.client.Close()

	return b.GenerateReport()
}

func (b *TestBot) ask(question string) (*channel.Message, error) {
	msg := channel.GenerateMessage{
		Event:     channel.EventGenerate,
		SessionID: b.SessionID,
		Channel:   channel.ChannelChat,
		MimeType:  channel.MimeTypeText,
		Payload:   channel.GeneratePayload{Text: question},
	}

	if err := b.client.Send(msg); err != nil {
		return nil, err
	}
	return b.client.Receive()
}

// Chat sends one ad-hoc message on the already-open channel and returns just
// the reply text. It does not touch the conversation transcript.
func (b *TestBot) Chat(query string) (string, error) {
	reply, err := b.ask(query)
	if err != nil {
		return "", err
	}
	return reply.Payload.Text, nil
}

// GenerateReport fetches the session logs and decorates each turn with the
// objectives and tools actually used, in strict index correspondence: the
// i-th log record belongs to the i-th turn. If the fetch fails the turns stay
// undecorated and the report keeps no final result.
func (b *TestBot) GenerateReport() error {
	records, err := b.logs.Fetch(b.SessionID)
	if err != nil {
		logger.Logger.Warn("Failed to fetch logs, skipping reconciliation",
			"session_id", b.SessionID,
			"error", err)
		return nil
	}

	b.history = reconcile.NewHistory()

	for i := range records {
		if i >= len(b.Report.Conversation) {
			logger.Logger.Warn("More log records than conversation turns",
				"session_id", b.SessionID,
				"records", len(records),
				"turns", len(b.Report.Conversation))
			break
		}

		dialogStates, toolCalls, err := reconcile.ParseLogRecord(records[i])
		if err != nil {
			return fmt.Errorf("failed to reconcile turn %d of session %s: %w", i+1, b.SessionID, err)
		}

		turn := &b.Report.Conversation[i]
		turn.UsedObjectives = dialogStates
		turn.UsedToolCalls = b.history.DiffAndRecord(toolCalls)

		passed := slices.Equal(turn.ExpectedObjectives, turn.UsedObjectives) &&
			slices.Equal(turn.ExpectedTools, turn.UsedToolCalls)
		turn.IsPassed = &passed
	}

	b.Report.Finalize()
	logger.Logger.Info("Report finalized",
		"session_id", b.SessionID,
		"turns", len(b.Report.Conversation),
		"result", b.Report.FinalResult)
	return nil
}

// MetricsForLastRequest fetches the session logs, parses only the most
// recent record, and diffs it against the session's tool-call history. Used
// by the interactive chat path, which never runs the full reconciliation.
func (b *TestBot) MetricsForLastRequest() (*Metrics, error) {
	records, err := b.logs.Fetch(b.SessionID)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("no log records for session %s", b.SessionID)
	}

	if b.history == nil {
		b.history = reconcile.NewHistory()
	}

	dialogStates, toolCalls, err := reconcile.ParseLogRecord(records[len(records)-1])
	if err != nil {
		return nil, err
	}

	return &Metrics{
		UsedObjectives: dialogStates,
		UsedToolCalls:  b.history.DiffAndRecord(toolCalls),
	}, nil
}

// Close tears the session channel down.
func (b *TestBot) Close() {
	b.client.Close()
}
