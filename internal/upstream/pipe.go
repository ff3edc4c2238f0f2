package upstream

import (
	"context"
	"io"

	"github.com/rs/zerolog/log"

	"artico/internal/sse"
)

// deltaFunc yields the next text delta. io.EOF ends the stream.
type deltaFunc func() (string, error)

// encodeFunc writes one delta to the pipe.
type encodeFunc func(w io.Writer, delta string) error

func writeText(w io.Writer, delta string) error {
	_, err := io.WriteString(w, delta)
	return err
}

// streamReader closes the pipe and cancels the upstream call together.
type streamReader struct {
	*io.PipeReader
	cancel context.CancelFunc
}

func (r *streamReader) Close() error {
	r.cancel()
	return r.PipeReader.Close()
}

// pipeDeltas pumps deltas from next into a pipe until the upstream ends, the
// upstream fails (the error is handed to the reader) or the reader is closed.
// release runs once the pump stops.
func pipeDeltas(cancel context.CancelFunc, next deltaFunc, release func(), encode encodeFunc, finish func(io.Writer) error) io.ReadCloser {
	pr, pw := io.Pipe()

	go func() {
		defer release()
		for {
			delta, err := next()
			if err == io.EOF {
				if finish != nil {
					if err := finish(pw); err != nil {
						pw.CloseWithError(err)
						return
					}
				}
				pw.Close()
				return
			}
			if err != nil {
				log.Debug().Err(err).Msg("upstream stream ended with error")
				pw.CloseWithError(err)
				return
			}
			if delta == "" {
				continue
			}
			if err := encode(pw, delta); err != nil {
				// reader went away
				return
			}
		}
	}()

	return &streamReader{PipeReader: pr, cancel: cancel}
}

func textStream(cancel context.CancelFunc, next deltaFunc, release func()) io.ReadCloser {
	return pipeDeltas(cancel, next, release, writeText, nil)
}

func eventStream(cancel context.CancelFunc, next deltaFunc, release func()) io.ReadCloser {
	return pipeDeltas(cancel, next, release, sse.WriteDelta, sse.WriteDone)
}

// bodyReader ties an upstream body to the cancel func of its request.
type bodyReader struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *bodyReader) Close() error {
	defer b.cancel()
	return b.ReadCloser.Close()
}
