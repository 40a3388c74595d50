package filetransfer

import (
	"io"

	apptransport "connected/application/transport"
)

// pipeStream adapts an io.Reader/io.Writer pair to apptransport.Stream for
// in-process round-trip tests, avoiding any real transport.
type pipeStream struct {
	io.Reader
	io.Writer
	kind apptransport.StreamKind
}

func (p *pipeStream) Close() error                  { return nil }
func (p *pipeStream) Kind() apptransport.StreamKind { return p.kind }

// newStreamPair returns two pipeStreams, each one's writes visible as the
// other's reads, modeling one bidirectional transport stream from both
// ends.
func newStreamPair() (a, b *pipeStream) {
	ar, bw := io.Pipe()
	br, aw := io.Pipe()
	a = &pipeStream{Reader: ar, Writer: aw, kind: apptransport.StreamFile}
	b = &pipeStream{Reader: br, Writer: bw, kind: apptransport.StreamFile}
	return a, b
}
