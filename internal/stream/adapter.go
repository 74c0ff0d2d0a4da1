package stream

import (
	"context"

	"github.com/ppiankov/clarifai/internal/pipeline"
)

// Forward starts run and writes its frames to enc until it ends, then writes
// exactly one terminal frame: [DONE] on success, [ERROR] on failure. A write
// failure cancels the run. The returned error is the run error, or the write
// error when the client went away first.
func Forward(ctx context.Context, run *pipeline.Run, enc *Encoder) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	chunks, err := run.Start(ctx)
	if err != nil {
		_ = enc.Encode(ErrorFrame(err))
		return err
	}

	var writeErr error
	for c := range chunks {
		if writeErr != nil {
			continue
		}
		f, ok := FrameOf(c)
		if !ok {
			continue
		}
		if writeErr = enc.Encode(f); writeErr != nil {
			cancel()
		}
	}

	_, runErr := run.Wait()
	if writeErr != nil {
		return writeErr
	}
	if runErr != nil {
		_ = enc.Encode(ErrorFrame(runErr))
		return runErr
	}
	return enc.Encode(DoneFrame())
}
