package camera

import (
	"fmt"

	"github.com/arenaworks/simarena/internal/sim/engine"
)

// Dtype is the element type of a captured channel. The channel→dtype
// mapping is fixed by channel identity and is part of the public contract:
// color and position-like channels are float32, segmentation-like channels
// are unsigned integer.
type Dtype int

const (
	DtypeFloat32 Dtype = iota
	DtypeUint32
)

func (d Dtype) String() string {
	switch d {
	case DtypeFloat32:
		return "float32"
	case DtypeUint32:
		return "uint32"
	default:
		return "unknown"
	}
}

// ChannelDtype returns the fixed dtype for a channel.
func ChannelDtype(ch engine.Channel) Dtype {
	if ch == engine.ChannelSegmentation {
		return DtypeUint32
	}
	return DtypeFloat32
}

// ParseChannel maps a channel name from configuration to its enum value.
func ParseChannel(name string) (engine.Channel, error) {
	switch name {
	case "Color":
		return engine.ChannelColor, nil
	case "Position":
		return engine.ChannelPosition, nil
	case "Segmentation":
		return engine.ChannelSegmentation, nil
	default:
		return 0, fmt.Errorf("unknown channel name %q", name)
	}
}

// SupportedChannels returns the channels a renderer backend can produce.
func SupportedChannels(b engine.Backend) []engine.Channel {
	if b.ColorOnly() {
		return []engine.Channel{engine.ChannelColor}
	}
	return []engine.Channel{engine.ChannelColor, engine.ChannelPosition, engine.ChannelSegmentation}
}

// backendSupports reports whether backend b can produce channel ch.
func backendSupports(b engine.Backend, ch engine.Channel) bool {
	for _, s := range SupportedChannels(b) {
		if s == ch {
			return true
		}
	}
	return false
}

// narrowChannels intersects the requested channels with what the backend
// supports, preserving request order. Requests for unsupported channels
// are dropped silently; the asymmetric fail-fast policy for whole
// observation modes lives in the observation pipeline, not here.
func narrowChannels(requested []engine.Channel, b engine.Backend) []engine.Channel {
	out := make([]engine.Channel, 0, len(requested))
	for _, ch := range requested {
		if backendSupports(b, ch) {
			out = append(out, ch)
		}
	}
	return out
}
