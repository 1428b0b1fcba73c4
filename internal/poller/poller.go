package poller

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/automated-cuckoo/cuckoo-core/internal/device"
	"github.com/automated-cuckoo/cuckoo-core/internal/infrastructure/logging"
	"github.com/automated-cuckoo/cuckoo-core/internal/infrastructure/mqtt"
	"github.com/automated-cuckoo/cuckoo-core/internal/schedule"
)

// DeviceLister is the slice of the device registry the poller needs.
type DeviceLister interface {
	List(ctx context.Context) ([]device.Device, error)
}

// Evaluator is the due-schedule evaluation the poller drives.
type Evaluator interface {
	DueForDevice(ctx context.Context, deviceID string, now time.Time) ([]schedule.Firing, error)
}

// Notifier is the slice of the MQTT client the poller needs. Nil disables
// push notifications; devices then poll the due endpoint over HTTP.
type Notifier interface {
	PublishQoS(topic string, payload []byte) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// HistoryWriter records firings and evaluation passes. Nil disables history.
type HistoryWriter interface {
	WriteFiring(scheduleID, deviceID, soundID string, oneShot bool, firedAt time.Time)
	WriteEvaluation(deviceID string, fired int, elapsed time.Duration)
}

// Poller periodically evaluates every registered device's schedules and
// pushes play notifications for the firings. It is the single in-process
// driver of evaluation; devices and operators can trigger extra passes
// through the due endpoint at any time, the store's conditional update keeps
// the two from double-firing.
type Poller struct {
	devices   DeviceLister
	evaluator Evaluator
	notifier  Notifier
	history   HistoryWriter
	interval  time.Duration
	logger    *logging.Logger
}

// New creates a poller. notifier and history may be nil.
func New(devices DeviceLister, evaluator Evaluator, notifier Notifier, history HistoryWriter, interval time.Duration, logger *logging.Logger) *Poller {
	return &Poller{
		devices:   devices,
		evaluator: evaluator,
		notifier:  notifier,
		history:   history,
		interval:  interval,
		logger:    logger.With("component", "poller"),
	}
}

// Run drives evaluation passes until ctx is cancelled. The first pass runs
// immediately so due schedules fire at startup, not one interval later.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("poller started", "interval", p.interval.String())

	if p.notifier != nil {
		p.subscribeAcks()
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.pass(ctx)
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("poller stopped")
			return ctx.Err()
		case <-ticker.C:
			p.pass(ctx)
		}
	}
}

// pass runs one evaluation sweep over all devices. Per-device failures are
// logged and do not abort the sweep.
func (p *Poller) pass(ctx context.Context) {
	devices, err := p.devices.List(ctx)
	if err != nil {
		p.logger.Error("listing devices failed", "error", err)
		return
	}

	now := time.Now()
	for _, d := range devices {
		start := time.Now()
		firings, err := p.evaluator.DueForDevice(ctx, d.ID, now)
		if err != nil {
			p.logger.Error("evaluating device failed", "device_id", d.ID, "error", err)
			continue
		}

		if p.history != nil {
			p.history.WriteEvaluation(d.ID, len(firings), time.Since(start))
		}
		for _, f := range firings {
			p.notify(f)
		}
	}
}

// playMessage is the payload published to a device's play topic. It carries
// references only; the device fetches the audio bytes over HTTP.
type playMessage struct {
	ScheduleID string `json:"schedule_id"`
	SoundID    string `json:"sound_id"`
	FiredAt    string `json:"fired_at"`
	PayloadURL string `json:"payload_url"`
}

// notify pushes one firing to its device and records it in history.
func (p *Poller) notify(f schedule.Firing) {
	if p.history != nil {
		p.history.WriteFiring(f.ScheduleID, f.DeviceID, f.SoundID, f.OneShot, f.FiredAt)
	}
	if p.notifier == nil {
		return
	}

	msg := playMessage{
		ScheduleID: f.ScheduleID,
		SoundID:    f.SoundID,
		FiredAt:    f.FiredAt.UTC().Format(time.RFC3339),
		PayloadURL: fmt.Sprintf("/api/v1/devices/%s/schedules/%s/payload", f.DeviceID, f.ScheduleID),
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		p.logger.Error("marshalling play message failed", "schedule_id", f.ScheduleID, "error", err)
		return
	}

	topic := mqtt.Topics{}.DevicePlay(f.DeviceID)
	if err := p.notifier.PublishQoS(topic, payload); err != nil {
		// The firing is already recorded; the device catches up via the
		// due endpoint payload fetch on its next poll.
		p.logger.Warn("publishing play notification failed",
			"device_id", f.DeviceID, "schedule_id", f.ScheduleID, "error", err)
	}
}

// subscribeAcks listens for playback results from devices and logs them.
func (p *Poller) subscribeAcks() {
	topic := mqtt.Topics{}.AllDeviceAcks()
	err := p.notifier.Subscribe(topic, 1, func(topic string, payload []byte) error {
		p.logger.Info("device playback ack", "topic", topic, "payload", string(payload))
		return nil
	})
	if err != nil {
		p.logger.Warn("subscribing to device acks failed", "error", err)
	}
}
