// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/siemens/ilookup/driver"

	"github.com/gosuri/uilive"
)

// statser gives access to a snapshot of lookup statistics.
type statser interface {
	Stats() driver.Stats
}

// showProgress renders a live progress line to the specified writer at the
// specified interval, until the context is done. It then renders the final
// progress once more before returning.
func showProgress(ctx context.Context, w io.Writer, src statser, interval time.Duration) {
	// uilive's background updating mode using Start() might trigger anytime
	// with the rendering into the buffer not yet complete, so we avoid
	// Start() and instead trigger an explicit flush after rendering.
	term := uilive.New()
	term.Out = w
	sp := newSpinner()
	render := func(final bool) {
		renderProgress(term, sp, src.Stats(), final)
		_ = term.Flush()
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	render(false)
	for {
		select {
		case <-ticker.C:
			sp.Advance()
			render(false)
		case <-ctx.Done():
			render(true)
			return
		}
	}
}

// renderProgress renders the lookup statistics into a single progress line.
func renderProgress(w io.Writer, sp *spinner, stats driver.Stats, final bool) {
	prefix := sp.Spinner()
	if final {
		prefix = doneStyle.Styled("✔ ")
	}
	fmt.Fprintf(w, "%stasks: submitted %d, completed %d, rejected %d, dropped %d, queued %d, workers %d; lookups: ",
		prefix,
		stats.Submitted, stats.Completed, stats.Rejected, stats.Dropped, stats.Queued, stats.Workers)
	fmt.Fprintf(w, "%s %d, %s %d\n",
		resolvedStyle.Styled("resolved"), stats.Resolved,
		failedStyle.Styled("failed"), stats.Failed)
}
