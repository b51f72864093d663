// Package engine fans a shared question script out over N concurrent test
// sessions and aggregates their reports.
package engine

import (
	"fmt"
	"sync"

	"github.com/botceptor/botceptor/bot"
	"github.com/botceptor/botceptor/logger"
	"github.com/botceptor/botceptor/model"
	"github.com/life4/genesis/slices"
)

// DefaultWorkerCount bounds how many sessions run their ask loops at once.
const DefaultWorkerCount = 5

// Controller owns one test run: it constructs the sessions, dispatches them
// onto a fixed-size worker pool, and collects their reports. Sessions share
// no mutable state with each other, so the controller needs no per-session
// locking; the only synchronization is the completion join.
type Controller struct {
	Hostname  string
	BotName   string
	CallCount int
	Questions []model.QuestionSpec

	// Workers caps concurrent sessions. Zero means DefaultWorkerCount.
	Workers int

	bots []*bot.TestBot
	wg   sync.WaitGroup
}

func NewController(input *model.TestInput) *Controller {
	c := &Controller{
		Hostname:  input.Hostname,
		BotName:   input.BotName,
		CallCount: input.CallCount,
		Questions: input.Questions,
	}

	logger.Logger.Info("Test controller initialized",
		"hostname", c.Hostname,
		"bot_name", c.BotName,
		"call_count", c.CallCount,
		"total_questions", len(c.Questions))
	return c
}

// InitializeBots constructs CallCount sessions and connects each one
// sequentially, before any asking begins. A connection failure aborts
// initialization; the caller is told which session could not connect.
func (c *Controller) InitializeBots() error {
	c.bots = make([]*bot.TestBot, 0, c.CallCount)

	for i := 0; i < c.CallCount; i++ {
		tb := bot.NewTestBot(i+1, c.Hostname, c.BotName, c.Questions)
		if _, err := tb.StartSession(nil); err != nil {
			return fmt.Errorf("failed to connect bot %d: %w", i+1, err)
		}
		c.bots = append(c.bots, tb)
	}

	logger.Logger.Info("Test bots are ready to run", "count", len(c.bots))
	return nil
}

// Bots exposes the initialized sessions, mainly so callers can tune
// per-session settings before RunBots.
func (c *Controller) Bots() []*bot.TestBot {
	return c.bots
}

// RunBots dispatches every session's ask-through-reconcile sequence onto the
// worker pool and returns immediately. Completion is observed through Wait;
// reports read before Wait returns may still be in flight.
func (c *Controller) RunBots() {
	workers := c.Workers
	if workers <= 0 {
		workers = DefaultWorkerCount
	}

	logger.Logger.Info("Starting test bots", "count", len(c.bots), "workers", workers)

	jobs := make(chan *bot.TestBot)
	c.wg.Add(len(c.bots))

	for w := 0; w < workers; w++ {
		go func() {
			for tb := range jobs {
				c.runBot(tb)
			}
		}()
	}

	go func() {
		for _, tb := range c.bots {
			jobs <- tb
		}
		close(jobs)
	}()
}

// runBot is the worker boundary: one session's fatal error or panic is
// logged here and must never take down sibling sessions.
func (c *Controller) runBot(tb *bot.TestBot) {
	defer c.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			logger.Logger.Error("Test bot aborted",
				"bot", tb.ID,
				"session_id", tb.SessionID,
				"panic", r)
		}
	}()

	if err := tb.Run(); err != nil {
		logger.Logger.Error("Test bot run failed",
			"bot", tb.ID,
			"session_id", tb.SessionID,
			"error", err)
	}
}

// Wait blocks until every dispatched session has finished.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Reports returns each session's report in initialization order. Results are
// only final after Wait.
func (c *Controller) Reports() []*model.SessionReport {
	return slices.Map(c.bots, func(tb *bot.TestBot) *model.SessionReport {
		return tb.Report
	})
}
