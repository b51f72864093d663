package bot

import (
	"net/http"
	"testing"

	"github.com/botceptor/botceptor/internal/bottest"
	"github.com/botceptor/botceptor/logger"
	"github.com/botceptor/botceptor/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var bookingQuestions = []model.QuestionSpec{
	{
		Question:           "Can I book a table for two?",
		ExpectedObjectives: []string{"greeting"},
		ExpectedTools:      []string{"check_availability"},
	},
	{
		Question:           "Tomorrow at seven.",
		ExpectedObjectives: []string{"booking"},
		ExpectedTools:      []string{"reserve_table"},
	},
}

// bookingTurns scripts the platform side of the bookingQuestions run. Tool
// calls appear cumulatively in the records, the way the platform logs them.
func bookingTurns() []bottest.Turn {
	return []bottest.Turn{
		{
			Reply:     "Sure, for when?",
			LogRecord: bottest.Record([]string{"greeting"}, []string{"check_availability"}),
		},
		{
			Reply:     "Booked!",
			LogRecord: bottest.Record([]string{"booking"}, []string{"check_availability", "reserve_table"}),
		},
	}
}

func newTestBot(t *testing.T, svc *bottest.Service, questions []model.QuestionSpec) *TestBot {
	t.Helper()

	tb := NewTestBot(1, svc.Host(), "table-booking", questions)
	tb.QuestionDelay = 0

	greeting, err := tb.StartSession(nil)
	require.NoError(t, err)
	assert.Equal(t, "Welcome!", greeting)
	return tb
}

func TestTestBotRun(t *testing.T) {
	logger.SetupLogger(bottest.NewDummyWriter(), true)

	t.Run("Full run passes when logs match expectations", func(t *testing.T) {
		svc := bottest.NewService("Welcome!", bookingTurns())
		defer svc.Close()

		tb := newTestBot(t, svc, bookingQuestions)
		require.NoError(t, tb.Run())

		report := tb.Report
		assert.Equal(t, model.ResultPassed, report.FinalResult)
		require.Len(t, report.Conversation, 2)

		first := report.Conversation[0]
		assert.Equal(t, "Sure, for when?", first.Response)
		assert.Equal(t, "message", first.Event)
		assert.Equal(t, []string{"greeting"}, first.UsedObjectives)
		assert.Equal(t, []string{"check_availability"}, first.UsedToolCalls)
		require.NotNil(t, first.IsPassed)
		assert.True(t, *first.IsPassed)

		second := report.Conversation[1]
		assert.Equal(t, []string{"booking"}, second.UsedObjectives)
		// Only the calls new since the previous turn are attributed here.
		assert.Equal(t, []string{"reserve_table"}, second.UsedToolCalls)
		require.NotNil(t, second.IsPassed)
		assert.True(t, *second.IsPassed)
	})

	t.Run("Mismatched tools fail the session", func(t *testing.T) {
		svc := bottest.NewService("Welcome!", bookingTurns())
		defer svc.Close()

		questions := []model.QuestionSpec{
			{
				Question:           "Can I book a table for two?",
				ExpectedObjectives: []string{"greeting"},
				ExpectedTools:      []string{"lookup_order"},
			},
		}

		tb := newTestBot(t, svc, questions)
		require.NoError(t, tb.Run())

		report := tb.Report
		assert.Equal(t, model.ResultFailed, report.FinalResult)
		require.NotNil(t, report.Conversation[0].IsPassed)
		assert.False(t, *report.Conversation[0].IsPassed)
	})

	t.Run("Fewer log records than turns leaves the tail undecorated", func(t *testing.T) {
		turns := bookingTurns()
		turns[1].LogRecord = ""
		svc := bottest.NewService("Welcome!", turns)
		defer svc.Close()

		tb := newTestBot(t, svc, bookingQuestions)
		require.NoError(t, tb.Run())

		report := tb.Report
		require.Len(t, report.Conversation, 2)
		assert.True(t, report.Conversation[0].Decorated())
		assert.False(t, report.Conversation[1].Decorated())
		// Undecorated turns do not count against the verdict.
		assert.Equal(t, model.ResultPassed, report.FinalResult)
	})

	t.Run("Unavailable logs skip reconciliation", func(t *testing.T) {
		svc := bottest.NewService("Welcome!", bookingTurns())
		defer svc.Close()
		svc.LogStatus = http.StatusInternalServerError

		tb := newTestBot(t, svc, bookingQuestions)
		require.NoError(t, tb.Run())

		report := tb.Report
		assert.Empty(t, report.FinalResult)
		assert.False(t, report.Passed())
		for _, turn := range report.Conversation {
			assert.False(t, turn.Decorated())
		}
	})

	t.Run("Dropped connection keeps an error turn and moves on", func(t *testing.T) {
		svc := bottest.NewService("Welcome!", []bottest.Turn{{Drop: true}})
		defer svc.Close()

		questions := bookingQuestions[:1]
		tb := newTestBot(t, svc, questions)
		require.NoError(t, tb.Run())

		turn := tb.Report.Conversation[0]
		assert.Empty(t, turn.Response)
		assert.Equal(t, "error", turn.Event)
	})

	t.Run("Undecodable log record is a hard error", func(t *testing.T) {
		svc := bottest.NewService("Welcome!", []bottest.Turn{
			{Reply: "ok", LogRecord: "{'dialog_state': [unquoted]}"},
		})
		defer svc.Close()

		tb := newTestBot(t, svc, bookingQuestions[:1])
		err := tb.Run()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to reconcile turn 1")
	})
}

func TestStartSessionFailure(t *testing.T) {
	logger.SetupLogger(bottest.NewDummyWriter(), true)

	tb := NewTestBot(1, "127.0.0.1:1", "table-booking", nil)
	_, err := tb.StartSession(nil)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to start session")
}

func TestChatAndMetrics(t *testing.T) {
	logger.SetupLogger(bottest.NewDummyWriter(), true)

	svc := bottest.NewService("Welcome!", bookingTurns())
	defer svc.Close()

	tb := newTestBot(t, svc, nil)
	defer tb.Close()

	reply, err := tb.Chat("Can I book a table for two?")
	require.NoError(t, err)
	assert.Equal(t, "Sure, for when?", reply)

	metrics, err := tb.MetricsForLastRequest()
	require.NoError(t, err)
	assert.Equal(t, []string{"greeting"}, metrics.UsedObjectives)
	assert.Equal(t, []string{"check_availability"}, metrics.UsedToolCalls)

	reply, err = tb.Chat("Tomorrow at seven.")
	require.NoError(t, err)
	assert.Equal(t, "Booked!", reply)

	metrics, err = tb.MetricsForLastRequest()
	require.NoError(t, err)
	assert.Equal(t, []string{"booking"}, metrics.UsedObjectives)
	assert.Equal(t, []string{"reserve_table"}, metrics.UsedToolCalls)
}

func TestMetricsForLastRequestNoRecords(t *testing.T) {
	logger.SetupLogger(bottest.NewDummyWriter(), true)

	svc := bottest.NewService("Welcome!", nil)
	defer svc.Close()

	tb := newTestBot(t, svc, nil)
	defer tb.Close()

	_, err := tb.MetricsForLastRequest()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "no log records")
}

func TestDefaultEntities(t *testing.T) {
	entities := DefaultEntities()
	assert.NotEmpty(t, entities["mobile_number"])
}
