package wayland

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// recvBufferSize bounds a single Recvmsg call; it matches the largest
// frame the wire format can carry (spec.md §3).
const recvBufferSize = maxMessageSize

// oobBufferSize is sized for the ancillary data of a message carrying the
// maximum plausible number of passed file descriptors.
const oobBufferSize = 512

// defaultRuntimeDir is used when $XDG_RUNTIME_DIR is unset, matching the
// conventional per-user runtime directory on a single-user Linux system.
const defaultRuntimeDir = "/run/user/1000"

// socketPath resolves the compositor socket per $XDG_RUNTIME_DIR and
// $WAYLAND_DISPLAY (spec.md §6): WAYLAND_DISPLAY defaults to "wayland-0"
// and, if given as an absolute path, is used as-is instead of being
// joined under the runtime directory. XDG_RUNTIME_DIR itself defaults to
// /run/user/1000 when unset.
func socketPath() (string, error) {
	runtimeDir := os.Getenv("XDG_RUNTIME_DIR")
	if runtimeDir == "" {
		runtimeDir = defaultRuntimeDir
	}

	display := os.Getenv("WAYLAND_DISPLAY")
	if display == "" {
		display = "wayland-0"
	}

	if filepath.IsAbs(display) {
		return display, nil
	}
	return filepath.Join(runtimeDir, display), nil
}

// conn wraps the Unix domain socket to the compositor, sending and
// receiving raw frame bytes plus any file descriptors carried alongside
// them via SCM_RIGHTS. It performs no framing of its own: that is the
// event demultiplexer's job.
type conn struct {
	uc   *net.UnixConn
	file *os.File
	fd   int

	writeMu sync.Mutex
	readMu  sync.Mutex

	readBuf []byte
	oobBuf  []byte

	mu     sync.Mutex
	closed bool
}

// dialConn connects to the socket at path.
func dialConn(path string) (*conn, error) {
	c, err := net.Dial("unix", path)
	if err != nil {
		return nil, fmt.Errorf("wayland: dial %s: %w", path, err)
	}
	uc, ok := c.(*net.UnixConn)
	if !ok {
		_ = c.Close()
		return nil, fmt.Errorf("wayland: %s is not a unix socket", path)
	}

	file, err := uc.File()
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("wayland: dup socket fd: %w", err)
	}

	return &conn{
		uc:      uc,
		file:    file,
		fd:      int(file.Fd()),
		readBuf: make([]byte, recvBufferSize),
		oobBuf:  make([]byte, oobBufferSize),
	}, nil
}

// newConnFromFD wraps an already-connected Unix domain socket fd obtained
// by some means other than dialConn (tests use a unix.Socketpair in place
// of a real compositor).
func newConnFromFD(fd int) *conn {
	return &conn{
		file:    os.NewFile(uintptr(fd), "wayland-socket"),
		fd:      fd,
		readBuf: make([]byte, recvBufferSize),
		oobBuf:  make([]byte, oobBufferSize),
	}
}

// Fd returns the underlying socket file descriptor, for callers that want
// to multiplex it into their own event loop (select/poll/epoll).
func (c *conn) Fd() int { return c.fd }

// SetRecvTimeout bounds how long Recv blocks before returning a
// would-block result (nil, nil, nil), via SO_RCVTIMEO. Sync uses this to
// poll its deadline instead of blocking on Recvmsg indefinitely; d <= 0
// clears the timeout.
func (c *conn) SetRecvTimeout(d time.Duration) error {
	tv := unix.NsecToTimeval(d.Nanoseconds())
	if err := unix.SetsockoptTimeval(c.fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv); err != nil {
		return fmt.Errorf("wayland: set recv timeout: %w", err)
	}
	return nil
}

// Send writes a complete frame, passing fds out-of-band via SCM_RIGHTS
// when present. A Sendmsg call is permitted by the kernel to accept fewer
// bytes than requested (e.g. a full send buffer); Send retries with the
// unsent remainder until the whole frame has been written or the socket
// itself errors (spec.md §4.G/§5). The fds, if any, ride along with the
// first Sendmsg call only: SCM_RIGHTS is delivered once per frame.
func (c *conn) Send(frame []byte, fds []int) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.isClosed() {
		return ErrTransportClosed
	}

	var oob []byte
	if len(fds) > 0 {
		oob = unix.UnixRights(fds...)
	}

	sent := 0
	for sent < len(frame) {
		n, err := unix.SendmsgN(c.fd, frame[sent:], oob, nil, 0)
		if err != nil {
			return fmt.Errorf("wayland: sendmsg: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("wayland: sendmsg made no progress after %d of %d bytes", sent, len(frame))
		}
		sent += n
		oob = nil // already delivered with the first chunk
	}
	return nil
}

// Recv reads one inbound datagram's worth of bytes (which may contain
// zero, one, or several whole or partial frames) and any file descriptors
// carried alongside it.
func (c *conn) Recv() ([]byte, []int, error) {
	c.readMu.Lock()
	defer c.readMu.Unlock()

	if c.isClosed() {
		return nil, nil, ErrTransportClosed
	}

	n, oobn, _, _, err := unix.Recvmsg(c.fd, c.readBuf, c.oobBuf, 0)
	if err != nil {
		if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("%w: recvmsg: %v", ErrTransportClosed, err)
	}
	if n == 0 {
		return nil, nil, ErrTransportEOF
	}

	fds, err := parseRights(c.oobBuf[:oobn])
	if err != nil {
		return nil, nil, err
	}

	out := make([]byte, n)
	copy(out, c.readBuf[:n])
	return out, fds, nil
}

func parseRights(oob []byte) ([]int, error) {
	if len(oob) == 0 {
		return nil, nil
	}
	scms, err := unix.ParseSocketControlMessage(oob)
	if err != nil {
		return nil, fmt.Errorf("wayland: parse control message: %w", err)
	}
	var fds []int
	for _, scm := range scms {
		if scm.Header.Level != unix.SOL_SOCKET || scm.Header.Type != unix.SCM_RIGHTS {
			continue
		}
		got, err := unix.ParseUnixRights(&scm)
		if err != nil {
			return nil, fmt.Errorf("wayland: parse unix rights: %w", err)
		}
		fds = append(fds, got...)
	}
	return fds, nil
}

func (c *conn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Close closes the socket and its duplicated file descriptor.
func (c *conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	if c.file != nil {
		_ = c.file.Close()
	}
	if c.uc != nil {
		return c.uc.Close()
	}
	return nil
}
