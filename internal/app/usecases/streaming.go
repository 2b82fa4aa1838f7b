package usecases

import (
	"context"

	"github.com/flowgraph/ragagent/internal/app/dto"
)

// ChannelSink forwards events to ch, dropping them once ctx is done.
func ChannelSink(ctx context.Context, ch chan<- dto.Event) EventSink {
	return func(ev dto.Event) {
		select {
		case ch <- ev:
		case <-ctx.Done():
		}
	}
}

// MultiSink fans events out to every non-nil sink.
func MultiSink(sinks ...EventSink) EventSink {
	return func(ev dto.Event) {
		for _, s := range sinks {
			if s != nil {
				s(ev)
			}
		}
	}
}
