package link

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-robocomm/logger"
	"github.com/arloliu/go-robocomm/rtp"
)

type packetSink struct {
	mu      sync.Mutex
	packets []rtp.Packet
	err     error
}

func (s *packetSink) Deliver(pkt rtp.Packet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.packets = append(s.packets, pkt)
	return nil
}

func (s *packetSink) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.packets)
}

// stubLink returns the queued responses from Receive, one per call.
type stubLink struct {
	Loopback
	responses [][]byte
}

func (s *stubLink) Receive() []byte {
	if len(s.responses) == 0 {
		return nil
	}
	r := s.responses[0]
	s.responses = s.responses[1:]
	return r
}

func TestReceiver_ReceiveOnce(t *testing.T) {
	require := require.New(t)

	lnk := &stubLink{responses: [][]byte{
		nil,
		{0x01},
		{0x00, 0x02, 0xAA},
	}}
	sink := &packetSink{}
	r, err := NewReceiver(lnk, NewSignalInterrupt(), sink, WithLogger(logger.NewNopMockLogger()))
	require.NoError(err)

	require.Equal(FalseTrigger, r.ReceiveOnce())
	require.Equal(FunctionBufferError, r.ReceiveOnce())
	require.Equal(Success, r.ReceiveOnce())

	require.Len(sink.packets, 1)
	require.Equal(rtp.PortControl, sink.packets[0].Header.Port)
	require.Equal([]byte{0xAA}, sink.packets[0].Payload)

	m := r.Metrics()
	require.Equal(uint64(3), m.Wakeups.Load())
	require.Equal(uint64(1), m.FalseTriggers.Load())
	require.Equal(uint64(1), m.Dropped.Load())
	require.Equal(uint64(1), m.Delivered.Load())
}

func TestReceiver_DeliverError(t *testing.T) {
	require := require.New(t)

	lnk := &stubLink{responses: [][]byte{{0x00, 0x01}}}
	sink := &packetSink{err: errors.New("no handler")}
	r, err := NewReceiver(lnk, NewSignalInterrupt(), sink, WithLogger(logger.NewNopMockLogger()))
	require.NoError(err)

	require.Equal(Failure, r.ReceiveOnce())
	require.Equal(uint64(1), r.Metrics().Dropped.Load())
}

func TestReceiver_Loopback(t *testing.T) {
	require := require.New(t)

	lb := NewLoopback(4)
	sink := &packetSink{}
	ready := make(chan struct{})
	r, err := NewReceiver(lb, lb.Interrupt(), sink,
		WithReady(ready),
		WithLogger(logger.NewNopMockLogger()),
	)
	require.NoError(err)
	require.NoError(r.Start(context.Background()))
	require.ErrorIs(r.Start(context.Background()), ErrReceiverStarted)
	defer r.Stop()

	for i := 0; i < 3; i++ {
		pkt := rtp.NewPacket(rtp.PortPing, []byte{byte(i)})
		require.Equal(Success, lb.Send(&pkt))
	}

	// nothing is consumed before ready
	time.Sleep(20 * time.Millisecond)
	require.Equal(0, sink.len())
	require.Equal(3, lb.Pending())

	close(ready)
	require.Eventually(func() bool { return sink.len() == 3 }, time.Second, time.Millisecond)

	sink.mu.Lock()
	for i, pkt := range sink.packets {
		require.Equal([]byte{byte(i)}, pkt.Payload)
	}
	sink.mu.Unlock()
}

func TestReceiver_StopWhileWaitingForReady(t *testing.T) {
	require := require.New(t)

	lb := NewLoopback(1)
	r, err := NewReceiver(lb, lb.Interrupt(), &packetSink{},
		WithReady(make(chan struct{})),
		WithLogger(logger.NewNopMockLogger()),
	)
	require.NoError(err)
	require.NoError(r.Start(context.Background()))

	stopped := make(chan struct{})
	go func() {
		r.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		require.Fail("receiver did not stop")
	}
}

func TestNewReceiver_Validation(t *testing.T) {
	require := require.New(t)

	lb := NewLoopback(1)
	_, err := NewReceiver(nil, lb.Interrupt(), &packetSink{})
	require.ErrorIs(err, ErrNilLink)
	_, err = NewReceiver(lb, nil, &packetSink{})
	require.ErrorIs(err, ErrNilInterrupt)
	_, err = NewReceiver(lb, lb.Interrupt(), nil)
	require.ErrorIs(err, ErrNilDeliverer)
}
