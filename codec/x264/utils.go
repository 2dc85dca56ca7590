package x264

import (
	"strconv"
	"strings"

	"github.com/edaniels/golog"
	"github.com/pion/mediadevices/pkg/codec/x264"
	"github.com/pkg/errors"
)

// CodecName is the bitstream the encoder produces.
const CodecName = "h264"

// Names are the encoder names callers may ask for.
var Names = []string{"libx264", "h264"}

var presets = map[string]x264.Preset{
	"ultrafast": x264.PresetUltrafast,
	"superfast": x264.PresetSuperfast,
	"veryfast":  x264.PresetVeryfast,
	"faster":    x264.PresetFaster,
	"fast":      x264.PresetFast,
	"medium":    x264.PresetMedium,
	"slow":      x264.PresetSlow,
	"slower":    x264.PresetSlower,
	"veryslow":  x264.PresetVeryslow,
	"placebo":   x264.PresetPlacebo,
}

// keyFrameInterval is one keyframe every two seconds unless "g" says otherwise.
func keyFrameInterval(frameRate int, options map[string]string) int {
	if g, ok := options["g"]; ok {
		if n, err := strconv.Atoi(g); err == nil && n > 0 {
			return n
		}
	}
	return 2 * frameRate
}

func applyOptions(params *x264.Params, options map[string]string, logger golog.Logger) error {
	for key, value := range options {
		switch key {
		case "preset":
			preset, ok := presets[strings.ToLower(value)]
			if !ok {
				return errors.Errorf("unknown x264 preset %q", value)
			}
			params.Preset = preset
		case "g":
		default:
			// rate control beyond the bit rate is not exposed by the binding
			logger.Debugw("ignoring unsupported x264 option", "option", key, "value", value)
		}
	}
	return nil
}
