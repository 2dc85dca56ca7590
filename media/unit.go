// Package media contains the units a pipeline accepts: RGBA video frames and
// interleaved float audio blocks.
package media

// Kind discriminates the payload of a Unit.
type Kind int

// The kinds of media a pipeline carries.
const (
	KindVideo Kind = iota
	KindAudio
)

func (k Kind) String() string {
	switch k {
	case KindVideo:
		return "video"
	case KindAudio:
		return "audio"
	default:
		return "unknown"
	}
}

// A Unit is one queued piece of media. Exactly one of Video and Audio is set,
// matching Kind.
type Unit struct {
	Kind  Kind
	Video *VideoFrame
	Audio *AudioSamples
}

// VideoUnit tags a frame.
func VideoUnit(frame *VideoFrame) Unit {
	return Unit{Kind: KindVideo, Video: frame}
}

// AudioUnit tags a sample block.
func AudioUnit(samples *AudioSamples) Unit {
	return Unit{Kind: KindAudio, Audio: samples}
}
