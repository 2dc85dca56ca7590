package goencode

import "sync/atomic"

// Stats counts what a pipeline has processed so far.
type Stats struct {
	VideoFramesSubmitted int64
	AudioBlocksSubmitted int64
	VideoFramesEncoded   int64
	AudioChunksEncoded   int64
	VideoPacketsWritten  int64
	AudioPacketsWritten  int64
	DTSRepairs           int64
}

type pipelineStats struct {
	videoSubmitted atomic.Int64
	audioSubmitted atomic.Int64
	videoEncoded   atomic.Int64
	audioEncoded   atomic.Int64
	videoPackets   atomic.Int64
	audioPackets   atomic.Int64
	dtsRepairs     atomic.Int64
}

// Stats returns a snapshot of the pipeline's counters.
func (p *Pipeline) Stats() Stats {
	return Stats{
		VideoFramesSubmitted: p.stats.videoSubmitted.Load(),
		AudioBlocksSubmitted: p.stats.audioSubmitted.Load(),
		VideoFramesEncoded:   p.stats.videoEncoded.Load(),
		AudioChunksEncoded:   p.stats.audioEncoded.Load(),
		VideoPacketsWritten:  p.stats.videoPackets.Load(),
		AudioPacketsWritten:  p.stats.audioPackets.Load(),
		DTSRepairs:           p.stats.dtsRepairs.Load(),
	}
}
