package countdown

import "sync/atomic"

// Preferences holds user alarm settings shared between the API and the driver.
type Preferences struct {
	sound atomic.Bool
}

// NewPreferences creates preferences with the given initial sound setting.
func NewPreferences(soundEnabled bool) *Preferences {
	p := &Preferences{}
	p.sound.Store(soundEnabled)
	return p
}

// SoundEnabled reports whether audible alarms are on.
func (p *Preferences) SoundEnabled() bool {
	return p.sound.Load()
}

// SetSoundEnabled turns audible alarms on or off.
func (p *Preferences) SetSoundEnabled(v bool) {
	p.sound.Store(v)
}
