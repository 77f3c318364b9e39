// replicate/ratelimit.go
// Copyright(c) 2017 Matt Pharr
// BSD licensed; see LICENSE for details.

// Taken from skicka: gdrive/readers.go. (c)2015, Google, Inc. (BSD Licensed).
// Adapted here from storage/ratelimit.go to throttle the GCS replication
// path instead of the teacher's chunk backend.

package replicate

import (
	"io"
	"sync"
	"time"
)

var availableUploadBytes, availableDownloadBytes int
var uploadBandwidthLimited, downloadBandwidthLimited bool
var bandwidthTaskRunning bool

var bandwidthMutex sync.Mutex
var bandwidthCond = sync.NewCond(&bandwidthMutex)

// InitBandwidthLimit starts the periodic token-bucket refill task that
// rateLimitedReader draws from. Pass 0 for a direction to leave it
// unlimited.
func InitBandwidthLimit(uploadBytesPerSecond, downloadBytesPerSecond int) {
	if bandwidthTaskRunning {
		return
	}

	uploadBandwidthLimited = uploadBytesPerSecond != 0
	downloadBandwidthLimited = downloadBytesPerSecond != 0

	bandwidthMutex.Lock()
	defer bandwidthMutex.Unlock()
	bandwidthTaskRunning = true

	ticker := time.NewTicker(125 * time.Millisecond)

	go func() {
		for {
			<-ticker.C

			bandwidthMutex.Lock()
			availableUploadBytes += uploadBytesPerSecond * 94 / 100 / 8
			if availableUploadBytes > uploadBytesPerSecond {
				availableUploadBytes = uploadBytesPerSecond
			}
			availableDownloadBytes += downloadBytesPerSecond * 94 / 100 / 8
			if availableDownloadBytes > downloadBytesPerSecond {
				availableDownloadBytes = downloadBytesPerSecond
			}

			bandwidthCond.Broadcast()
			bandwidthMutex.Unlock()
		}
	}()
}

type rateLimitedReader struct {
	R              io.Reader
	availableBytes *int
}

func NewLimitedUploadReader(r io.Reader) io.Reader {
	if uploadBandwidthLimited {
		return rateLimitedReader{R: r, availableBytes: &availableUploadBytes}
	}
	return r
}

func NewLimitedDownloadReader(r io.Reader) io.Reader {
	if downloadBandwidthLimited {
		return rateLimitedReader{R: r, availableBytes: &availableDownloadBytes}
	}
	return r
}

func (lr rateLimitedReader) Read(dst []byte) (int, error) {
	bandwidthMutex.Lock()
	for *lr.availableBytes <= 0 {
		bandwidthCond.Wait()
	}

	n := len(dst)
	if n > *lr.availableBytes {
		n = *lr.availableBytes
	}
	*lr.availableBytes -= n
	bandwidthMutex.Unlock()

	read, err := lr.R.Read(dst[:n])
	if read < n {
		bandwidthMutex.Lock()
		*lr.availableBytes += n - read
		bandwidthMutex.Unlock()
	}

	return read, err
}
