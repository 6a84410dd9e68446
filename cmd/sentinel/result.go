package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/alimgiray/sentinel/internal/models"
	"github.com/alimgiray/sentinel/internal/services"
	"github.com/google/uuid"
)

// Result is the JSON payload every command writes, on success and failure.
type Result struct {
	Success bool        `json:"success"`
	Command string      `json:"command"`
	Outcome string      `json:"outcome"`
	RunID   string      `json:"run_id"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func newResult(command string, data interface{}, err error) Result {
	result := Result{
		Success: err == nil,
		Command: command,
		Outcome: models.Outcome(err),
		RunID:   uuid.New().String(),
		Data:    data,
	}
	if err != nil {
		result.Error = err.Error()
	}
	if cycle, ok := data.(*services.HealthCycleResult); ok && cycle != nil && cycle.Report != nil && cycle.Report.RunID != "" {
		result.RunID = cycle.Report.RunID
	}
	return result
}

func (o *rootOptions) write(result Result) error {
	o.written = true

	payload, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	payload = append(payload, '\n')

	if o.outputFile == "" || o.outputFile == "-" {
		_, err = os.Stdout.Write(payload)
		return err
	}
	if err := os.WriteFile(o.outputFile, payload, 0o644); err != nil {
		return fmt.Errorf("failed to write result to %s: %w", o.outputFile, err)
	}
	return nil
}
