// Package report renders finished session reports as HTML or JSON files.
package report

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"os"
	"time"

	"github.com/botceptor/botceptor/model"
	"github.com/botceptor/botceptor/version"
	"github.com/bytedance/sonic"
)

//go:embed templates/report.html
var templateFS embed.FS

const filePermission = 0644

// ReportData is the root structure handed to the HTML template.
type ReportData struct {
	Version     string
	GeneratedAt string
	Summary     SummaryData
	Sessions    []SessionView
}

type SummaryData struct {
	TotalSessions  int
	PassedSessions int
	FailedSessions int
	TotalTurns     int
	PassedTurns    int
	PassRate       float64
}

// SessionView is one session report prepared for rendering.
type SessionView struct {
	SessionID   string
	FinalResult string
	ResultClass string
	Turns       []TurnView
}

type TurnView struct {
	Number             int
	Question           string
	Response           string
	Event              string
	ExpectedObjectives []string
	UsedObjectives     []string
	ExpectedTools      []string
	UsedToolCalls      []string
	Status             string
	StatusClass        string
}

type Generator struct {
	tmpl *template.Template
}

func NewGenerator() (*Generator, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/report.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse report template: %w", err)
	}
	return &Generator{tmpl: tmpl}, nil
}

// GenerateHTML renders the session reports into a standalone HTML document.
func (g *Generator) GenerateHTML(reports []*model.SessionReport) (string, error) {
	data := buildReportData(reports)

	var buf bytes.Buffer
	if err := g.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render report: %w", err)
	}
	return buf.String(), nil
}

// GenerateHTMLToFile renders the reports and writes them to outputPath.
func (g *Generator) GenerateHTMLToFile(reports []*model.SessionReport, outputPath string) error {
	html, err := g.GenerateHTML(reports)
	if err != nil {
		return err
	}
	if err := os.WriteFile(outputPath, []byte(html), filePermission); err != nil {
		return fmt.Errorf("failed to write report file: %w", err)
	}
	return nil
}

// GenerateJSONToFile writes the raw session reports as an indented JSON
// document.
func GenerateJSONToFile(reports []*model.SessionReport, outputPath string) error {
	data, err := sonic.ConfigDefault.MarshalIndent(reports, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode reports: %w", err)
	}
	if err := os.WriteFile(outputPath, data, filePermission); err != nil {
		return fmt.Errorf("failed to write report file: %w", err)
	}
	return nil
}

func buildReportData(reports []*model.SessionReport) ReportData {
	data := ReportData{
		Version:     version.Version,
		GeneratedAt: time.Now().Format("2006-01-02 15:04:05"),
	}

	for _, r := range reports {
		view := SessionView{
			SessionID:   r.SessionID,
			FinalResult: r.FinalResult,
			ResultClass: "unresolved",
		}
		switch r.FinalResult {
		case model.ResultPassed:
			view.ResultClass = "passed"
			data.Summary.PassedSessions++
		case model.ResultFailed:
			view.ResultClass = "failed"
			data.Summary.FailedSessions++
		default:
			view.FinalResult = "unresolved"
		}

		for i, turn := range r.Conversation {
			tv := TurnView{
				Number:             i + 1,
				Question:           turn.Question,
				Response:           turn.Response,
				Event:              turn.Event,
				ExpectedObjectives: turn.ExpectedObjectives,
				UsedObjectives:     turn.UsedObjectives,
				ExpectedTools:      turn.ExpectedTools,
				UsedToolCalls:      turn.UsedToolCalls,
				Status:             "undetermined",
				StatusClass:        "unresolved",
			}
			if turn.IsPassed != nil {
				if *turn.IsPassed {
					tv.Status = "passed"
					tv.StatusClass = "passed"
					data.Summary.PassedTurns++
				} else {
					tv.Status = "failed"
					tv.StatusClass = "failed"
				}
			}
			view.Turns = append(view.Turns, tv)
			data.Summary.TotalTurns++
		}

		data.Sessions = append(data.Sessions, view)
		data.Summary.TotalSessions++
	}

	if data.Summary.TotalSessions > 0 {
		data.Summary.PassRate = float64(data.Summary.PassedSessions) /
			float64(data.Summary.TotalSessions) * 100
	}
	return data
}
