package embedding

import (
	"github.com/turtacn/embedscope/internal/domain/pointcloud"
	"github.com/turtacn/embedscope/pkg/types/common"
)

// FanoutRecorder forwards store activity to several recorders.
type FanoutRecorder []pointcloud.Recorder

func (f FanoutRecorder) RecordDataset(primary, reference, clusters int) {
	for _, r := range f {
		r.RecordDataset(primary, reference, clusters)
	}
}

func (f FanoutRecorder) RecordSelection(event string) {
	for _, r := range f {
		r.RecordSelection(event)
	}
}

// SelectionEvents publishes every applied interaction as a
// selection.changed lifecycle event.
type SelectionEvents struct {
	Stream      *EventStream
	EmbeddingID func() string
}

func (SelectionEvents) RecordDataset(int, int, int) {}

func (r SelectionEvents) RecordSelection(event string) {
	if r.Stream == nil {
		return
	}
	var aggID string
	if r.EmbeddingID != nil {
		aggID = r.EmbeddingID()
	}
	r.Stream.Emit(LifecycleEvent{
		BaseEvent:   common.NewBaseEvent(EventSelectionChanged, aggID),
		Interaction: event,
	})
}
