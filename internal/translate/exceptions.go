package translate

import (
	"sort"

	"github.com/ilforge/ilforge/internal/metadata"
)

// handlerEvent is one exception-region event at a specific bytecode offset.
type handlerEvent struct {
	Offset  int
	Kind    metadata.HandlerKind
	Handler metadata.ExceptionHandler
}

// handlerEventPriority is the fixed emission order within a single offset,
// per spec §4.3 step 2: handler-end, try-begin, catch-begin, finally-begin,
// filter-begin, filter-handler-begin.
var handlerEventPriority = map[metadata.HandlerKind]int{
	metadata.HandlerEnd:               0,
	metadata.HandlerTryBegin:          1,
	metadata.HandlerCatchBegin:        2,
	metadata.HandlerFinallyBegin:      3,
	metadata.HandlerFilterBegin:       4,
	metadata.HandlerFilterHandlerBegin: 5,
}

// buildHandlerEvents produces the ordered map of exception-handler events
// per offset described in spec §4.3 step 2, as a flat slice pre-sorted by
// (offset, priority) so the translator's main walk can consume it linearly.
func buildHandlerEvents(handlers []metadata.ExceptionHandler) []handlerEvent {
	var events []handlerEvent
	for _, h := range handlers {
		events = append(events, handlerEvent{Offset: h.TryStart, Kind: metadata.HandlerTryBegin, Handler: h})
		// The try region's extent is implicit: it runs from TryStart up to
		// whichever begin-event starts the handler (spec §4.3 lists only
		// six event kinds; there is no separate "try-end").
		if h.Kind == metadata.HandlerFilterBegin || h.FilterStart != 0 {
			events = append(events, handlerEvent{Offset: h.FilterStart, Kind: metadata.HandlerFilterBegin, Handler: h})
			events = append(events, handlerEvent{Offset: h.HandlerStart, Kind: metadata.HandlerFilterHandlerBegin, Handler: h})
		} else if h.Kind == metadata.HandlerFinallyBegin {
			events = append(events, handlerEvent{Offset: h.HandlerStart, Kind: metadata.HandlerFinallyBegin, Handler: h})
		} else {
			events = append(events, handlerEvent{Offset: h.HandlerStart, Kind: metadata.HandlerCatchBegin, Handler: h})
		}
		events = append(events, handlerEvent{Offset: h.HandlerEnd, Kind: metadata.HandlerEnd, Handler: h})
	}

	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Offset != events[j].Offset {
			return events[i].Offset < events[j].Offset
		}
		return handlerEventPriority[events[i].Kind] < handlerEventPriority[events[j].Kind]
	})
	return events
}

// eventsByOffset groups an already-sorted event slice by offset, preserving
// priority order within each offset.
func eventsByOffset(events []handlerEvent) map[int][]handlerEvent {
	out := make(map[int][]handlerEvent)
	for _, e := range events {
		out[e.Offset] = append(out[e.Offset], e)
	}
	return out
}
