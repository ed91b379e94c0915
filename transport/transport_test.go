package transport

import (
	"net"
	"testing"
	"time"
)

func TestPortMath(t *testing.T) {
	if got := SPDPMulticastPort(0); got != 7400 {
		t.Fatalf("SPDPMulticastPort(0) = %d, want 7400", got)
	}
	if got := SPDPUnicastPort(0, 0); got != 7410 {
		t.Fatalf("SPDPUnicastPort(0,0) = %d, want 7410", got)
	}
	if got := UserMulticastPort(0); got != 7401 {
		t.Fatalf("UserMulticastPort(0) = %d, want 7401", got)
	}
	if got := UserUnicastPort(0, 1); got != 7413 {
		t.Fatalf("UserUnicastPort(0,1) = %d, want 7413", got)
	}
	if got := SPDPMulticastPort(1); got != 7650 {
		t.Fatalf("SPDPMulticastPort(1) = %d, want 7650", got)
	}
}

func TestPickParticipantIDFindsFirstFree(t *testing.T) {
	pid, err := PickParticipantID(func(p int) error {
		if p < 3 {
			return errTestBindTaken
		}
		return nil
	})
	if err != nil {
		t.Fatalf("PickParticipantID: %v", err)
	}
	if pid != 3 {
		t.Fatalf("pid = %d, want 3", pid)
	}
}

func TestPickParticipantIDExhausted(t *testing.T) {
	_, err := PickParticipantID(func(p int) error { return errTestBindTaken })
	if err == nil {
		t.Fatal("expected error when every participant_id is taken")
	}
}

func TestUDPv4TransportSendRecvLoopback(t *testing.T) {
	rx, err := Bind(0, nil)
	if err != nil {
		t.Fatalf("Bind rx: %v", err)
	}
	defer rx.Close()
	txPort := rx.conn.LocalAddr().(*net.UDPAddr).Port

	tx, err := Bind(0, nil)
	if err != nil {
		t.Fatalf("Bind tx: %v", err)
	}
	defer tx.Close()

	payload := []byte("hello-rtps")
	if err := tx.Send(payload, "127.0.0.1", txPort); err != nil {
		t.Fatalf("Send: %v", err)
	}

	done := make(chan struct{})
	var gotErr error
	var got []byte
	go func() {
		got, _, gotErr = rx.Recv()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for loopback datagram")
	}
	if gotErr != nil {
		t.Fatalf("Recv: %v", gotErr)
	}
	if string(got) != string(payload) {
		t.Fatalf("got %q, want %q", got, payload)
	}
}

var errTestBindTaken = fakeError("port taken")

type fakeError string

func (e fakeError) Error() string { return string(e) }
