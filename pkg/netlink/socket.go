package netlink

import (
	"context"

	"golang.org/x/sys/unix"
)

const recvBufferSize = 8192

// Start opens the NETLINK_ROUTE socket, subscribes to the link/address/
// route multicast groups, and kicks off the GETADDR -> GETLINK -> GETROUTE
// discovery sequence (spec.md §4.9 steps 1-4). If the socket cannot be
// opened or bound, Start falls back to degraded mode: the handler is told
// both signals are available and Start returns nil, letting the caller
// proceed without link supervision rather than failing startup outright.
func (s *Supervisor) Start() error {
	fd, err := unix.Socket(unix.AF_NETLINK, unix.SOCK_RAW, unix.NETLINK_ROUTE)
	if err != nil {
		s.logger.Error("netlink: socket() failed", "err", err)
		s.degrade()
		return nil
	}

	addr := &unix.SockaddrNetlink{Family: unix.AF_NETLINK, Groups: uint32(multicastGroups)}
	if err := unix.Bind(fd, addr); err != nil {
		s.logger.Error("netlink: bind() failed", "err", err)
		unix.Close(fd)
		s.degrade()
		return nil
	}

	s.fd = fd
	s.send = func(msg []byte) error {
		return unix.Sendto(fd, msg, 0, &unix.SockaddrNetlink{Family: unix.AF_NETLINK})
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.wg.Add(1)
	go s.receiveLoop(ctx, fd)

	s.sendRequest(kindGetAddr, rtmGetAddr)
	return nil
}

// Stop closes the socket and joins the receive loop. Reads interrupted by
// the close return an operation-aborted style error the loop recognizes
// and exits on rather than logging as a failure.
func (s *Supervisor) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	if s.fd != 0 {
		unix.Close(s.fd)
	}
	s.wg.Wait()
}

func (s *Supervisor) receiveLoop(ctx context.Context, fd int) {
	defer s.wg.Done()
	buf := make([]byte, recvBufferSize)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		n, _, err := unix.Recvfrom(fd, buf, 0)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Warn("netlink: recvfrom failed", "err", err)
			return
		}
		if n == 0 {
			return
		}
		s.handleMessage(buf[:n])
	}
}
