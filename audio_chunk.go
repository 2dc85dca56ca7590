package goencode

type sampleSpan struct {
	start, end int
}

// chunkAudio splits total samples into spans of frameSize. The last span is
// shorter when total is not a multiple of frameSize.
func chunkAudio(total, frameSize int) []sampleSpan {
	if total <= 0 || frameSize <= 0 {
		return nil
	}
	spans := make([]sampleSpan, 0, (total+frameSize-1)/frameSize)
	for start := 0; start < total; start += frameSize {
		end := start + frameSize
		if end > total {
			end = total
		}
		spans = append(spans, sampleSpan{start, end})
	}
	return spans
}
