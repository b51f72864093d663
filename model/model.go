package model

import (
	"fmt"
	"os"
	"strings"

	"github.com/aymerick/raymond"
	"github.com/botceptor/botceptor/logger"
	"github.com/life4/genesis/slices"
	"gopkg.in/yaml.v3"
)

// ============================================================================
// TEST INPUT
// ============================================================================

// QuestionSpec is one scripted question together with the values the bot is
// expected to produce for it. ExpectedAnswer is informational only and never
// takes part in pass/fail evaluation.
type QuestionSpec struct {
	Question           string   `yaml:"question" json:"question"`
	ExpectedAnswer     string   `yaml:"expected_answer" json:"expected_answer"`
	ExpectedObjectives []string `yaml:"expected_objectives" json:"expected_objectives"`
	ExpectedTools      []string `yaml:"expected_tools" json:"expected_tools"`
}

// TestInput describes one test run: which bot to call, how many parallel
// sessions to open, and the shared question script. It is both the /run-test
// request body and the schema of script files passed with -f.
type TestInput struct {
	Hostname  string         `yaml:"hostname" json:"hostname"`
	BotName   string         `yaml:"bot_name" json:"bot_name"`
	CallCount int            `yaml:"call_count" json:"call_count"`
	Questions []QuestionSpec `yaml:"questions" json:"questions"`
}

func (in *TestInput) Validate() error {
	if in == nil {
		return fmt.Errorf("test input is nil")
	}
	if in.Hostname == "" {
		return fmt.Errorf("hostname is empty")
	}
	if in.BotName == "" {
		return fmt.Errorf("bot name is empty")
	}
	if in.CallCount <= 0 {
		return fmt.Errorf("call count must be positive, got %d", in.CallCount)
	}
	return nil
}

// Render applies the template context to every question text in place.
// Expected values are opaque identifiers and are left untouched.
func (in *TestInput) Render(templateCtx map[string]string) {
	for i := range in.Questions {
		in.Questions[i].Question = RenderTemplate(in.Questions[i].Question, templateCtx)
	}
}

// ParseTestInput reads a test input file. YAML and JSON are both accepted;
// yaml.v3 decodes JSON documents as a YAML subset.
func ParseTestInput(filename string) (*TestInput, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var input TestInput
	if err := yaml.Unmarshal(data, &input); err != nil {
		return nil, fmt.Errorf("failed to parse test input: %w", err)
	}

	return &input, nil
}

// ============================================================================
// SESSION REPORT
// ============================================================================

const (
	ResultPassed = "passed"
	ResultFailed = "failed"
)

// ConversationTurn is one question/answer exchange. The Used* fields and
// IsPassed are filled once, after the full script finishes, when the session
// logs are reconciled against expectations. IsPassed stays nil for turns the
// reconciliation never reached (logs unavailable, or fewer log records than
// turns).
type ConversationTurn struct {
	Question           string   `json:"question"`
	Response           string   `json:"response"`
	ExpectedObjectives []string `json:"expected_objectives"`
	ExpectedTools      []string `json:"expected_tools"`
	Event              string   `json:"event"`
	UsedObjectives     []string `json:"used_objectives,omitempty"`
	UsedToolCalls      []string `json:"used_tool_calls,omitempty"`
	IsPassed           *bool    `json:"is_passed,omitempty"`
}

// Decorated reports whether reconciliation reached this turn.
func (t *ConversationTurn) Decorated() bool {
	return t.IsPassed != nil
}

// SessionReport is the result of one simulated session. FinalResult is empty
// until Finalize is called; a report whose session could not fetch its logs
// is never finalized.
type SessionReport struct {
	SessionID    string             `json:"session_id"`
	Conversation []ConversationTurn `json:"conversation"`
	FinalResult  string             `json:"final_result,omitempty"`
}

func NewSessionReport(sessionID string) *SessionReport {
	return &SessionReport{
		SessionID:    sessionID,
		Conversation: make([]ConversationTurn, 0),
	}
}

func (r *SessionReport) AppendTurn(turn ConversationTurn) {
	r.Conversation = append(r.Conversation, turn)
}

// Finalize computes FinalResult: "failed" if any decorated turn failed,
// "passed" otherwise. A report with zero turns is vacuously passed.
// Undecorated turns do not count against the result; only the turn/log
// pairs the reconciliation could match up are judged.
func (r *SessionReport) Finalize() {
	passed := slices.All(r.Conversation, func(t ConversationTurn) bool {
		return t.IsPassed == nil || *t.IsPassed
	})
	if passed {
		r.FinalResult = ResultPassed
	} else {
		r.FinalResult = ResultFailed
	}
}

// Passed reports whether the session finalized as passed.
func (r *SessionReport) Passed() bool {
	return r.FinalResult == ResultPassed
}

// ============================================================================
// TEMPLATE UTILITIES
// ============================================================================

func GetAllEnv() map[string]string {
	envMap := make(map[string]string)
	for _, env := range os.Environ() {
		parts := strings.SplitN(env, "=", 2)
		if len(parts) == 2 {
			envMap[parts[0]] = parts[1]
		}
	}
	return envMap
}

// RenderTemplate safely parses and executes a Raymond template.
// If parsing or execution fails, it returns the input string unchanged.
func RenderTemplate(input string, context map[string]string) string {
	tmpl, err := raymond.Parse(input)
	if err != nil {
		if logger.Logger != nil {
			logger.Logger.Warn("Failed to parse template", "error", err)
		}
		return input
	}

	output, err := tmpl.Exec(context)
	if err != nil {
		if logger.Logger != nil {
			logger.Logger.Warn("Failed to execute template", "error", err)
		}
		return input
	}

	return output
}
