package tui

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/muesli/termenv"

	"github.com/aretw0/statforge/pkg/domain"
)

// ProgressHooks prints one line per finished stage to w.
func ProgressHooks(w io.Writer) domain.LifecycleHooks {
	out := termenv.NewOutput(w)
	var mu sync.Mutex

	return domain.LifecycleHooks{
		OnStageLeave: func(_ context.Context, e *domain.StageEvent) {
			mu.Lock()
			defer mu.Unlock()

			if e.Err != nil {
				fmt.Fprintf(w, "%s %s: %v\n", out.String("✗").Foreground(out.Color("1")), e.Stage, e.Err)
				return
			}
			detail := ""
			switch {
			case e.Stage == domain.StageClassify:
				detail = string(e.EntityType)
			case e.Stage.IsGeneration():
				detail = fmt.Sprintf("draft %d", e.RevisionNumber)
			}
			fmt.Fprintf(w, "%s %-9s %s %s\n",
				out.String("✓").Foreground(out.Color("2")),
				e.Stage,
				detail,
				out.String(e.Duration.Round(time.Millisecond).String()).Faint(),
			)
		},
		OnParseWarning: func(_ context.Context, e *domain.ParseWarningEvent) {
			mu.Lock()
			defer mu.Unlock()
			fmt.Fprintf(w, "%s %v\n", out.String("!").Foreground(out.Color("3")), e.Warning)
		},
	}
}
