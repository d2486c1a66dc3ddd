package platform

import (
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/steipete/codelooper/internal/element"
	"github.com/steipete/codelooper/internal/errors"
	"github.com/steipete/codelooper/internal/locator"
)

// fakeHelperProcess answers helper requests on the far end of a pipe.
type fakeHelperProcess struct {
	conn     net.Conn
	respond  func(helperRequest) helperResponse
	requests chan helperRequest
}

func startFakeHelper(t *testing.T, respond func(helperRequest) helperResponse) (*Helper, *fakeHelperProcess) {
	t.Helper()
	client, server := net.Pipe()

	f := &fakeHelperProcess{
		conn:     server,
		respond:  respond,
		requests: make(chan helperRequest, 16),
	}
	go func() {
		dec := json.NewDecoder(server)
		enc := json.NewEncoder(server)
		for {
			var req helperRequest
			if err := dec.Decode(&req); err != nil {
				return
			}
			f.requests <- req
			if f.respond == nil {
				continue
			}
			resp := f.respond(req)
			resp.ID = req.ID
			if err := enc.Encode(resp); err != nil {
				return
			}
		}
	}()

	h := NewHelper(client, client, nil)
	t.Cleanup(func() {
		_ = h.Close()
		_ = server.Close()
	})
	return h, f
}

func pressLocator(t *testing.T) locator.Locator {
	t.Helper()
	c, err := locator.NewCriterion(element.AttrRole, "AXButton", locator.MatchExact)
	if err != nil {
		t.Fatal(err)
	}
	l, err := locator.New(c)
	if err != nil {
		t.Fatal(err)
	}
	return l.WithRequiredAction(element.ActionPress)
}

func TestHelper_Resolve(t *testing.T) {
	h, f := startFakeHelper(t, func(req helperRequest) helperResponse {
		return helperResponse{Element: "btn-1"}
	})

	handle, err := h.Resolve(context.Background(), 42, pressLocator(t), 10)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if handle.ID != "btn-1" || handle.PID != 42 {
		t.Errorf("handle = %+v", handle)
	}

	req := <-f.requests
	if req.Op != opResolve || req.PID != 42 || req.MaxDepth != 10 {
		t.Errorf("request = %+v", req)
	}
	if req.Locator == nil || req.Locator.RequiredAction != element.ActionPress {
		t.Errorf("locator payload = %+v", req.Locator)
	}
}

func TestHelper_ResolveNotFound(t *testing.T) {
	h, _ := startFakeHelper(t, func(helperRequest) helperResponse {
		return helperResponse{NotFound: true}
	})

	_, err := h.Resolve(context.Background(), 42, pressLocator(t), 10)
	if !errors.Is(err, errors.ErrElementNotFound) {
		t.Errorf("err = %v, want ErrElementNotFound", err)
	}
}

func TestHelper_ErrorBecomesQueryError(t *testing.T) {
	h, _ := startFakeHelper(t, func(helperRequest) helperResponse {
		return helperResponse{Error: "accessibility permission denied"}
	})

	_, err := h.ReadText(context.Background(), element.Handle{ID: "x", PID: 42})
	if !errors.IsQueryError(err) {
		t.Errorf("err = %v, want a query error", err)
	}
	if errors.Is(err, errors.ErrElementNotFound) {
		t.Error("helper failures must never read as element-not-found")
	}
}

func TestHelper_InvokeAction(t *testing.T) {
	h, f := startFakeHelper(t, func(helperRequest) helperResponse {
		return helperResponse{}
	})

	err := h.InvokeAction(context.Background(), element.Handle{ID: "btn-1", PID: 42}, element.ActionPress)
	if err != nil {
		t.Fatalf("InvokeAction: %v", err)
	}
	req := <-f.requests
	if req.Op != opInvoke || req.Action != element.ActionPress || req.Element != "btn-1" {
		t.Errorf("request = %+v", req)
	}
}

func TestHelper_Windows(t *testing.T) {
	h, _ := startFakeHelper(t, func(helperRequest) helperResponse {
		return helperResponse{Windows: []helperWindow{
			{Index: 0, Title: "main"},
			{Index: 1, Title: "settings"},
		}}
	})

	wins, err := h.Windows(context.Background(), 42)
	if err != nil {
		t.Fatalf("Windows: %v", err)
	}
	if len(wins) != 2 || wins[1].Title != "settings" {
		t.Errorf("windows = %+v", wins)
	}
}

func TestHelper_ContextCancellation(t *testing.T) {
	// A helper that never answers.
	h, _ := startFakeHelper(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := h.ReadText(ctx, element.Handle{ID: "x", PID: 42})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want context.DeadlineExceeded", err)
	}

	// The abandoned request must not leak a pending waiter.
	h.mu.Lock()
	pending := len(h.pending)
	h.mu.Unlock()
	if pending != 0 {
		t.Errorf("pending requests = %d, want 0", pending)
	}
}

func TestHelper_TransportFailureFailsInFlight(t *testing.T) {
	client, server := net.Pipe()
	h := NewHelper(client, client, nil)
	t.Cleanup(func() { _ = h.Close() })

	go func() {
		dec := json.NewDecoder(server)
		var req helperRequest
		_ = dec.Decode(&req)
		_ = server.Close()
	}()

	_, err := h.ReadText(context.Background(), element.Handle{ID: "x", PID: 42})
	if !errors.IsQueryError(err) {
		t.Errorf("err = %v, want a query error after transport loss", err)
	}
}

func TestParsePIDs(t *testing.T) {
	tests := []struct {
		name string
		out  string
		want []int32
	}{
		{"typical", "123\n456\n", []int32{123, 456}},
		{"empty", "", nil},
		{"garbage line skipped", "123\nnope\n456", []int32{123, 456}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := parsePIDs(tc.out)
			if len(got) != len(tc.want) {
				t.Fatalf("parsePIDs(%q) = %v, want %v", tc.out, got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Errorf("pid[%d] = %d, want %d", i, got[i], tc.want[i])
				}
			}
		})
	}
}

func TestProcesses_AliveRejectsBadPIDs(t *testing.T) {
	p := NewProcesses(nil)
	if p.Alive(0) || p.Alive(-5) {
		t.Error("non-positive pids must never read as alive")
	}
}
