package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/Veraticus/rxsync/internal/common"
	"github.com/Veraticus/rxsync/internal/engine"
)

// Resolver asks the operator to confirm ambiguous matches on a terminal.
type Resolver struct {
	writer   io.Writer
	reader   *NonBlockingReader
	timeout  time.Duration
	accepted int
	rejected int
	timedOut int
	mu       sync.Mutex
}

// ResolverStats counts the operator's answers.
type ResolverStats struct {
	Accepted int
	Rejected int
	TimedOut int
}

// NewResolver creates a resolver reading answers from reader and writing
// prompts to writer. A positive timeout bounds each prompt; an unanswered
// prompt counts as "no".
func NewResolver(reader io.Reader, writer io.Writer, timeout time.Duration) *Resolver {
	if reader == nil {
		reader = os.Stdin
	}
	if writer == nil {
		writer = os.Stdout
	}

	return &Resolver{
		reader:  NewNonBlockingReader(reader),
		writer:  writer,
		timeout: timeout,
	}
}

// Resolve shows the candidate and waits for a yes or no answer.
func (r *Resolver) Resolve(ctx context.Context, match engine.AmbiguousMatch) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	if _, err := fmt.Fprintln(r.writer, RenderBox("Possible Match", formatMatch(match))); err != nil {
		return false, fmt.Errorf("failed to write match box: %w", err)
	}

	accept, err := r.promptYesNo(ctx, "Replace the formulary price? [Y]es / [N]o")
	if err != nil {
		return false, err
	}

	r.mu.Lock()
	if accept {
		r.accepted++
	} else {
		r.rejected++
	}
	r.mu.Unlock()

	return accept, nil
}

// Stats returns the answers given so far.
func (r *Resolver) Stats() ResolverStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return ResolverStats{Accepted: r.accepted, Rejected: r.rejected, TimedOut: r.timedOut}
}

func (r *Resolver) promptYesNo(ctx context.Context, prompt string) (bool, error) {
	promptCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		promptCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	for {
		if _, err := fmt.Fprint(r.writer, FormatPrompt(prompt)); err != nil {
			return false, fmt.Errorf("failed to write prompt: %w", err)
		}

		input, err := r.reader.ReadLine(promptCtx)
		if err != nil {
			switch {
			case ctx.Err() != nil:
				return false, ctx.Err()
			case errors.Is(err, context.DeadlineExceeded):
				r.mu.Lock()
				r.timedOut++
				r.mu.Unlock()
				slog.Warn("Confirmation timed out, keeping current price", "timeout", r.timeout)
				if _, werr := fmt.Fprintln(r.writer, "\n"+FormatWarning("No answer, keeping the current price.")); werr != nil {
					slog.Warn("Failed to write timeout message", "error", werr)
				}
				return false, nil
			case errors.Is(err, io.EOF):
				return false, common.ErrInputTerminated
			default:
				return false, fmt.Errorf("failed to read answer: %w", err)
			}
		}

		switch strings.ToLower(input) {
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}

		if _, err := fmt.Fprintln(r.writer, FormatError("Invalid choice. Please try again.")); err != nil {
			slog.Warn("Failed to write error message", "error", err)
		}
	}
}

func formatMatch(match engine.AmbiguousMatch) string {
	entry := match.Entry
	inv := match.Invoice

	formulary := fmt.Sprintf("%s Formulary:\n", PillIcon) +
		fmt.Sprintf("  Name: %s\n", BoldStyle.Render(entry.Name)) +
		fmt.Sprintf("  Dose: %s\n", entry.Dose) +
		fmt.Sprintf("  Cost: %s\n", entry.Cost)
	if entry.Category != "" {
		formulary += fmt.Sprintf("  Category: %s\n", entry.Category)
	}

	invoice := fmt.Sprintf("\n%s Invoice:\n", InvoiceIcon) +
		fmt.Sprintf("  Description: %s\n", BoldStyle.Render(inv.NameDose)) +
		fmt.Sprintf("  Cost: %s\n", costChange(entry.Cost, inv.Cost)) +
		fmt.Sprintf("  Item: %s\n", inv.ItemNumber)
	if !inv.RequisitionDate.IsZero() {
		invoice += fmt.Sprintf("  Requisitioned: %s", inv.RequisitionDate.Format("Jan 2, 2006 15:04"))
	}

	return formulary + invoice
}

func costChange(oldCost, newCost string) string {
	if strings.EqualFold(oldCost, newCost) {
		return SubtleStyle.Render(newCost + " (unchanged)")
	}
	return WarningStyle.Render(newCost)
}
