// Package platform supplies the host-side adapters the supervision
// engine is wired with in production: a process observer built on
// standard Unix tools and an accessibility backend that drives a
// platform helper binary over a JSON-line pipe. The helper owns the
// native accessibility API calls; this package only speaks its
// protocol.
package platform

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"sync/atomic"

	"github.com/steipete/codelooper/internal/element"
	"github.com/steipete/codelooper/internal/errors"
	"github.com/steipete/codelooper/internal/locator"
	"github.com/steipete/codelooper/internal/logging"
	"github.com/steipete/codelooper/internal/persist"
	"github.com/steipete/codelooper/internal/supervisor"
)

// helperRequest is one line sent to the helper.
type helperRequest struct {
	ID       int64                  `json:"id"`
	Op       string                 `json:"op"`
	PID      int32                  `json:"pid,omitempty"`
	Locator  *persist.LocatorRecord `json:"locator,omitempty"`
	MaxDepth int                    `json:"max_depth,omitempty"`
	Element  string                 `json:"element,omitempty"`
	Action   string                 `json:"action,omitempty"`
	Names    []string               `json:"names,omitempty"`
}

// helperResponse is one line received from the helper.
type helperResponse struct {
	ID         int64             `json:"id"`
	Error      string            `json:"error,omitempty"`
	NotFound   bool              `json:"not_found,omitempty"`
	Element    string            `json:"element,omitempty"`
	Text       string            `json:"text,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Windows    []helperWindow    `json:"windows,omitempty"`
}

type helperWindow struct {
	Index int    `json:"index"`
	Title string `json:"title"`
}

// Helper operations.
const (
	opResolve     = "resolve"
	opReadText    = "read_text"
	opReadAttrs   = "read_attributes"
	opInvoke      = "invoke_action"
	opListWindows = "list_windows"
)

// Helper is a client for the accessibility helper process. It
// implements element.Backend and supervisor.WindowEnumerator.
// Requests are multiplexed by id, so concurrent callers share one
// helper without blocking each other on the pipe.
type Helper struct {
	logger *logging.Logger
	cmd    *exec.Cmd
	closer io.Closer

	writeMu sync.Mutex
	enc     *json.Encoder

	mu      sync.Mutex
	pending map[int64]chan helperResponse
	readErr error
	done    chan struct{}

	nextID atomic.Int64
}

// NewHelper attaches to an already-open helper transport. closer may be
// nil; Close then only stops the read loop.
func NewHelper(transport io.ReadWriter, closer io.Closer, logger *logging.Logger) *Helper {
	if logger == nil {
		logger = logging.NopLogger()
	}
	h := &Helper{
		logger:  logger,
		closer:  closer,
		enc:     json.NewEncoder(transport),
		pending: make(map[int64]chan helperResponse),
		done:    make(chan struct{}),
	}
	go h.readLoop(transport)
	return h
}

// NewHelperCommand spawns the helper binary and attaches to its
// stdin/stdout. The helper's stderr is forwarded to the log.
func NewHelperCommand(path string, args []string, logger *logging.Logger) (*Helper, error) {
	if logger == nil {
		logger = logging.NopLogger()
	}
	cmd := exec.Command(path, args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, errors.Wrap(err, "failed to open helper stdin")
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Wrap(err, "failed to open helper stdout")
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, errors.Wrap(err, "failed to open helper stderr")
	}

	if err := cmd.Start(); err != nil {
		return nil, errors.Wrapf(err, "failed to start helper %s", path)
	}
	logger.Info("accessibility helper started", "path", path, "pid", cmd.Process.Pid)

	go func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			logger.Warn("helper stderr", "line", scanner.Text())
		}
	}()

	h := &Helper{
		logger:  logger,
		cmd:     cmd,
		closer:  stdin,
		enc:     json.NewEncoder(stdin),
		pending: make(map[int64]chan helperResponse),
		done:    make(chan struct{}),
	}
	go h.readLoop(stdout)
	return h, nil
}

// Close shuts the transport down and fails any in-flight requests.
func (h *Helper) Close() error {
	var err error
	if h.closer != nil {
		err = h.closer.Close()
	}
	if h.cmd != nil {
		if waitErr := h.cmd.Wait(); waitErr != nil && err == nil {
			err = waitErr
		}
	}
	return err
}

// readLoop dispatches responses to their waiting callers until the
// transport fails or closes.
func (h *Helper) readLoop(r io.Reader) {
	dec := json.NewDecoder(r)
	for {
		var resp helperResponse
		if err := dec.Decode(&resp); err != nil {
			h.mu.Lock()
			if err == io.EOF {
				h.readErr = errors.New("helper closed the connection")
			} else {
				h.readErr = err
			}
			close(h.done)
			h.mu.Unlock()
			return
		}

		h.mu.Lock()
		ch, ok := h.pending[resp.ID]
		if ok {
			delete(h.pending, resp.ID)
		}
		h.mu.Unlock()

		if !ok {
			h.logger.Debug("dropping unmatched helper response", "id", resp.ID)
			continue
		}
		ch <- resp
	}
}

// call performs one request/response round trip.
func (h *Helper) call(ctx context.Context, req helperRequest) (helperResponse, error) {
	if err := ctx.Err(); err != nil {
		return helperResponse{}, err
	}

	req.ID = h.nextID.Add(1)
	ch := make(chan helperResponse, 1)

	h.mu.Lock()
	if h.readErr != nil {
		err := h.readErr
		h.mu.Unlock()
		return helperResponse{}, errors.NewQueryError(req.Op, req.PID, err)
	}
	h.pending[req.ID] = ch
	h.mu.Unlock()

	h.writeMu.Lock()
	err := h.enc.Encode(req)
	h.writeMu.Unlock()
	if err != nil {
		h.forget(req.ID)
		return helperResponse{}, errors.NewQueryError(req.Op, req.PID, err)
	}

	select {
	case resp := <-ch:
		return resp, nil
	case <-ctx.Done():
		h.forget(req.ID)
		return helperResponse{}, ctx.Err()
	case <-h.done:
		h.mu.Lock()
		err := h.readErr
		h.mu.Unlock()
		return helperResponse{}, errors.NewQueryError(req.Op, req.PID, err)
	}
}

func (h *Helper) forget(id int64) {
	h.mu.Lock()
	delete(h.pending, id)
	h.mu.Unlock()
}

// respErr maps a helper response to the engine's error taxonomy.
func respErr(op string, pid int32, resp helperResponse) error {
	if resp.NotFound {
		return errors.Wrapf(errors.ErrElementNotFound, "%s in pid %d", op, pid)
	}
	if resp.Error != "" {
		return errors.NewQueryError(op, pid, errors.New(resp.Error))
	}
	return nil
}

// Resolve implements element.Backend.
func (h *Helper) Resolve(ctx context.Context, pid int32, loc locator.Locator, maxDepth int) (element.Handle, error) {
	rec := persist.FromLocator(loc)
	resp, err := h.call(ctx, helperRequest{
		Op:       opResolve,
		PID:      pid,
		Locator:  &rec,
		MaxDepth: maxDepth,
	})
	if err != nil {
		return element.Handle{}, err
	}
	if err := respErr(opResolve, pid, resp); err != nil {
		return element.Handle{}, err
	}
	if resp.Element == "" {
		return element.Handle{}, errors.NewQueryError(opResolve, pid,
			errors.New("helper returned no element id"))
	}
	return element.Handle{ID: resp.Element, PID: pid}, nil
}

// ReadText implements element.Backend.
func (h *Helper) ReadText(ctx context.Context, handle element.Handle) (string, error) {
	resp, err := h.call(ctx, helperRequest{Op: opReadText, PID: handle.PID, Element: handle.ID})
	if err != nil {
		return "", err
	}
	if err := respErr(opReadText, handle.PID, resp); err != nil {
		return "", err
	}
	return resp.Text, nil
}

// ReadAttributes implements element.Backend.
func (h *Helper) ReadAttributes(ctx context.Context, handle element.Handle, names []string) (map[string]string, error) {
	resp, err := h.call(ctx, helperRequest{Op: opReadAttrs, PID: handle.PID, Element: handle.ID, Names: names})
	if err != nil {
		return nil, err
	}
	if err := respErr(opReadAttrs, handle.PID, resp); err != nil {
		return nil, err
	}
	return resp.Attributes, nil
}

// InvokeAction implements element.Backend.
func (h *Helper) InvokeAction(ctx context.Context, handle element.Handle, action string) error {
	resp, err := h.call(ctx, helperRequest{Op: opInvoke, PID: handle.PID, Element: handle.ID, Action: action})
	if err != nil {
		return err
	}
	return respErr(fmt.Sprintf("%s %s", opInvoke, action), handle.PID, resp)
}

// Windows implements supervisor.WindowEnumerator.
func (h *Helper) Windows(ctx context.Context, pid int32) ([]supervisor.WindowInfo, error) {
	resp, err := h.call(ctx, helperRequest{Op: opListWindows, PID: pid})
	if err != nil {
		return nil, err
	}
	if resp.NotFound {
		return nil, nil
	}
	if err := respErr(opListWindows, pid, resp); err != nil {
		return nil, err
	}

	out := make([]supervisor.WindowInfo, 0, len(resp.Windows))
	for _, w := range resp.Windows {
		out = append(out, supervisor.WindowInfo{Index: w.Index, Title: w.Title})
	}
	return out, nil
}
