package transport

import (
	"context"
	"crypto/tls"
	"net/netip"
	"testing"
	"time"

	apptransport "connected/application/transport"
	"connected/domain/control"
	infracontrol "connected/infrastructure/control"
	"connected/infrastructure/identity"
)

func generateTestCert(t *testing.T) tls.Certificate {
	t.Helper()
	store, err := identity.New(t.TempDir())
	if err != nil {
		t.Fatalf("identity.New() error = %v", err)
	}
	id, err := store.LocalIdentity(context.Background())
	if err != nil {
		t.Fatalf("LocalIdentity() error = %v", err)
	}
	return id.Cert
}

func newBoundTransport(t *testing.T) *Transport {
	t.Helper()
	tr := New(generateTestCert(t))
	if err := tr.Bind(context.Background(), netip.MustParseAddrPort("127.0.0.1:0")); err != nil {
		t.Fatalf("Bind() error = %v", err)
	}
	t.Cleanup(func() { _ = tr.Shutdown(context.Background()) })
	return tr
}

func TestTransport_DialAcceptAndExchangeControlStream(t *testing.T) {
	server := newBoundTransport(t)
	client := newBoundTransport(t)

	serverSessCh := make(chan apptransport.Session, 1)
	serverErrCh := make(chan error, 1)
	go func() {
		s, err := server.Accept(context.Background())
		if err != nil {
			serverErrCh <- err
			return
		}
		serverSessCh <- s
	}()

	clientSess, err := client.Dial(context.Background(), server.LocalAddr())
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}

	var serverSess apptransport.Session
	select {
	case serverSess = <-serverSessCh:
	case err := <-serverErrCh:
		t.Fatalf("Accept() error = %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for server accept")
	}

	if len(clientSess.PeerLeafCert()) == 0 {
		t.Fatal("expected client to see server's leaf certificate")
	}
	if len(serverSess.PeerLeafCert()) == 0 {
		t.Fatal("expected server to see client's leaf certificate")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	clientStream, err := clientSess.OpenStream(ctx, apptransport.StreamControl)
	if err != nil {
		t.Fatalf("OpenStream() error = %v", err)
	}
	sent := control.Message{Kind: control.MessageClipboard, Text: "hello peer"}
	if err := infracontrol.WriteMessage(clientStream, sent); err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}

	serverStream, err := serverSess.AcceptStream(ctx)
	if err != nil {
		t.Fatalf("AcceptStream() error = %v", err)
	}
	if serverStream.Kind() != apptransport.StreamControl {
		t.Fatalf("expected StreamControl, got %v", serverStream.Kind())
	}

	got, err := infracontrol.ReadMessage(ctx, serverStream)
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	if got.Kind != control.MessageClipboard || got.Text != sent.Text {
		t.Fatalf("message mismatch: got %+v, want %+v", got, sent)
	}
}

func TestTransport_AcceptStream_InterceptsPingWithoutSurfacingIt(t *testing.T) {
	server := newBoundTransport(t)
	client := newBoundTransport(t)

	serverSessCh := make(chan apptransport.Session, 1)
	go func() {
		s, err := server.Accept(context.Background())
		if err != nil {
			return
		}
		serverSessCh <- s
	}()

	clientSess, err := client.Dial(context.Background(), server.LocalAddr())
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}

	var serverSess apptransport.Session
	select {
	case serverSess = <-serverSessCh:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for server accept")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	acceptErrCh := make(chan error, 1)
	acceptedCh := make(chan apptransport.Stream, 1)
	go func() {
		st, err := serverSess.AcceptStream(ctx)
		if err != nil {
			acceptErrCh <- err
			return
		}
		acceptedCh <- st
	}()

	if _, err := clientSess.Ping(ctx, "client-device"); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}

	clientStream, err := clientSess.OpenStream(ctx, apptransport.StreamControl)
	if err != nil {
		t.Fatalf("OpenStream() error = %v", err)
	}
	sent := control.Message{Kind: control.MessageHandshake, DeviceID: "client-device", DeviceName: "client"}
	if err := infracontrol.WriteMessage(clientStream, sent); err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}

	select {
	case err := <-acceptErrCh:
		t.Fatalf("AcceptStream() error = %v", err)
	case st := <-acceptedCh:
		got, err := infracontrol.ReadMessage(ctx, st)
		if err != nil {
			t.Fatalf("ReadMessage() error = %v", err)
		}
		if got.Kind != control.MessageHandshake || got.DeviceID != sent.DeviceID {
			t.Fatalf("expected the Handshake to surface untouched, got %+v", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the Handshake stream to surface past the Ping")
	}
}

func TestTransport_Ping_RoundTripsSuccessfully(t *testing.T) {
	server := newBoundTransport(t)
	client := newBoundTransport(t)

	go func() {
		s, err := server.Accept(context.Background())
		if err != nil {
			return
		}
		// Keep the server session's accept loop running so it can answer
		// the ping stream transparently.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, _ = s.AcceptStream(ctx)
	}()

	clientSess, err := client.Dial(context.Background(), server.LocalAddr())
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := clientSess.Ping(ctx, "client-device"); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
}

func TestTransport_Dial_ReusesCachedSession(t *testing.T) {
	server := newBoundTransport(t)
	client := newBoundTransport(t)

	go func() {
		for {
			if _, err := server.Accept(context.Background()); err != nil {
				return
			}
		}
	}()

	first, err := client.Dial(context.Background(), server.LocalAddr())
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	second, err := client.Dial(context.Background(), server.LocalAddr())
	if err != nil {
		t.Fatalf("Dial() second call error = %v", err)
	}
	if first != second {
		t.Fatal("expected second Dial to return the cached session")
	}
}
