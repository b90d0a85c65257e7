package cli

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

// syncBuffer provides thread-safe access to a bytes.Buffer.
type syncBuffer struct {
	buf bytes.Buffer
	mu  sync.Mutex
}

func (s *syncBuffer) Write(p []byte) (n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

func TestNewInterruptHandler(t *testing.T) {
	tests := []struct {
		writer io.Writer
		name   string
	}{
		{
			name:   "with custom writer",
			writer: &bytes.Buffer{},
		},
		{
			name:   "with nil writer",
			writer: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewInterruptHandler(tt.writer)
			assert.NotNil(t, handler)
			assert.NotNil(t, handler.writer)
			assert.False(t, handler.WasInterrupted())
		})
	}
}

func TestInterrupt_CancelsContext(t *testing.T) {
	output := &syncBuffer{}
	handler := NewInterruptHandler(output)

	parent, cancelParent := context.WithCancel(context.Background())
	defer cancelParent()
	ctx := handler.HandleInterrupts(parent, false)

	select {
	case <-ctx.Done():
		t.Fatal("context should not be canceled initially")
	default:
	}

	handler.interrupt()
	handler.interrupt()

	<-ctx.Done()
	assert.True(t, handler.WasInterrupted())
	assert.Equal(t, 1, strings.Count(output.String(), "Reconciliation interrupted!"))
}

func TestParentCancel_IsNotAnInterrupt(t *testing.T) {
	handler := NewInterruptHandler(&syncBuffer{})

	parent, cancel := context.WithCancel(context.Background())
	ctx := handler.HandleInterrupts(parent, false)
	cancel()

	<-ctx.Done()
	assert.False(t, handler.WasInterrupted())
}

func TestShowInterruptMessage(t *testing.T) {
	tests := []struct {
		name        string
		expected    []string
		notExpected []string
		dryRun      bool
	}{
		{
			name:     "writing run",
			expected: []string{"Reconciliation interrupted!", "No output files were written"},
		},
		{
			name:        "dry run",
			dryRun:      true,
			expected:    []string{"Reconciliation interrupted!"},
			notExpected: []string{"No output files were written"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var output bytes.Buffer
			handler := &InterruptHandler{
				writer: &output,
				dryRun: tt.dryRun,
			}

			handler.showInterruptMessage()

			outputStr := output.String()
			for _, expected := range tt.expected {
				assert.Contains(t, outputStr, expected)
			}
			for _, notExpected := range tt.notExpected {
				assert.NotContains(t, outputStr, notExpected)
			}
		})
	}
}
