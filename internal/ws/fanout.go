package ws

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"relaychat/internal/messaging"
)

// Bus is the pub/sub transport used to reach connections on other instances.
type Bus interface {
	Publish(subject string, data []byte) error
	Subscribe(subject string, handler func(data []byte)) error
}

type envelope struct {
	Identity string          `json:"identity"`
	Frame    json.RawMessage `json:"frame"`
}

// Fanout delivers frames through the bus so that every instance pushes to its
// own connections of the target identity. When publishing fails the frame is
// pushed locally only.
type Fanout struct {
	hub *Hub
	bus Bus
	log *zap.Logger
}

func NewFanout(hub *Hub, bus Bus, log *zap.Logger) *Fanout {
	return &Fanout{hub: hub, bus: bus, log: log.Named("fanout")}
}

// Start subscribes this instance to deliveries.
func (f *Fanout) Start() error {
	return f.bus.Subscribe(messaging.SubjectDeliver, f.handle)
}

func (f *Fanout) handle(data []byte) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		f.log.Warn("bad delivery envelope", zap.Error(err))
		return
	}
	if env.Identity == "" || len(env.Frame) == 0 {
		return
	}
	f.hub.PushTo(env.Identity, env.Frame)
}

func (f *Fanout) Deliver(_ context.Context, identity string, frame any) {
	raw, err := json.Marshal(frame)
	if err != nil {
		f.log.Error("marshal frame", zap.String("identity", identity), zap.Error(err))
		return
	}
	data, err := json.Marshal(envelope{Identity: identity, Frame: raw})
	if err != nil {
		f.log.Error("marshal envelope", zap.String("identity", identity), zap.Error(err))
		return
	}
	if err := f.bus.Publish(messaging.SubjectDeliver, data); err != nil {
		f.log.Warn("publish failed, delivering locally", zap.String("identity", identity), zap.Error(err))
		f.hub.PushTo(identity, json.RawMessage(raw))
	}
}
