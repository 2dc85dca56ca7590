package opus

// CodecName is the bitstream the encoder produces.
const CodecName = "opus"

// Names are the encoder names callers may ask for.
var Names = []string{"libopus", "opus"}

const framesPerSecond = 50

func validSampleRate(rate int) bool {
	switch rate {
	case 8000, 12000, 16000, 24000, 48000:
		return true
	default:
		return false
	}
}
