package services

import "time"

// NopMetrics discards all metrics. Useful for tests and tools that do not
// export telemetry.
type NopMetrics struct{}

func (NopMetrics) RoomCreated()                          {}
func (NopMetrics) RoomClosed()                           {}
func (NopMetrics) ParticipantConnected()                 {}
func (NopMetrics) ParticipantDisconnected()              {}
func (NopMetrics) SessionStarted()                       {}
func (NopMetrics) SessionEnded()                         {}
func (NopMetrics) SignalMessage(string)                  {}
func (NopMetrics) NegotiationCompleted(time.Duration)    {}
func (NopMetrics) NegotiationFailed()                    {}
func (NopMetrics) ContributionRecorded()                 {}
