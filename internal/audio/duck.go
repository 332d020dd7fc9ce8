package audio

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"
)

const maxVolume = 150

// Stream is one playback stream of the sound server.
type Stream struct {
	ID      int
	Volume  int
	AppName string
}

// Mixer lists playback streams and sets their volume in percent.
type Mixer interface {
	Streams(ctx context.Context) ([]Stream, error)
	SetVolume(ctx context.Context, id, percent int) error
}

type fade struct {
	id       int
	from, to int
}

// Ducker lowers every other application's volume while the interviewer
// speaks and restores it afterwards. Streams named in self are untouched.
type Ducker struct {
	mixer     Mixer
	self      map[string]bool
	minVolume int
	sleep     func(time.Duration)

	mu       sync.Mutex
	active   bool
	original map[int]int
}

func NewDucker(mixer Mixer, self []string, minVolume int) *Ducker {
	names := make(map[string]bool, len(self))
	for _, n := range self {
		names[n] = true
	}
	return &Ducker{
		mixer:     mixer,
		self:      names,
		minVolume: clampVolume(minVolume),
		sleep:     time.Sleep,
		original:  map[int]int{},
	}
}

// Duck fades foreign streams to factor of their volume, never below the
// configured minimum. Ducking twice is a no-op.
func (d *Ducker) Duck(ctx context.Context, factor float64, over time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.active {
		return nil
	}

	streams, err := d.mixer.Streams(ctx)
	if err != nil {
		return fmt.Errorf("list streams: %w", err)
	}

	d.original = map[int]int{}
	var fades []fade
	for _, s := range streams {
		if d.self[s.AppName] {
			continue
		}
		to := int(math.Round(float64(s.Volume) * factor))
		to = max(clampVolume(to), d.minVolume)
		d.original[s.ID] = s.Volume
		fades = append(fades, fade{id: s.ID, from: s.Volume, to: to})
	}

	if err := d.run(ctx, fades, over); err != nil {
		return err
	}
	d.active = true
	return nil
}

// Restore fades ducked streams back. Streams that appeared after Duck are
// left alone.
func (d *Ducker) Restore(ctx context.Context, over time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.active {
		return nil
	}

	streams, err := d.mixer.Streams(ctx)
	if err != nil {
		return fmt.Errorf("list streams: %w", err)
	}

	var fades []fade
	for _, s := range streams {
		orig, ok := d.original[s.ID]
		if !ok || d.self[s.AppName] {
			continue
		}
		fades = append(fades, fade{id: s.ID, from: s.Volume, to: orig})
	}

	if err := d.run(ctx, fades, over); err != nil {
		return err
	}
	d.original = map[int]int{}
	d.active = false
	return nil
}

func (d *Ducker) run(ctx context.Context, fades []fade, over time.Duration) error {
	if len(fades) == 0 {
		return nil
	}

	steps := max(int(over/(10*time.Millisecond)), 1)
	if over <= 0 {
		steps = 0
	}
	step := time.Duration(0)
	if steps > 0 {
		step = over / time.Duration(steps)
	}

	for i := 0; i <= steps; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		frac := 1.0
		if steps > 0 {
			frac = float64(i) / float64(steps)
		}
		for _, f := range fades {
			v := int(math.Round(float64(f.from) + float64(f.to-f.from)*frac))
			if err := d.mixer.SetVolume(ctx, f.id, clampVolume(v)); err != nil {
				return fmt.Errorf("set volume of %d: %w", f.id, err)
			}
		}
		if i < steps {
			d.sleep(step)
		}
	}
	return nil
}

func clampVolume(v int) int {
	return min(max(v, 0), maxVolume)
}
