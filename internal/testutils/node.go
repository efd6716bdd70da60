package testutils

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// Push is one recorded push call received by a FakeNode.
type Push struct {
	Process string
	Fields  map[string]string
	Header  http.Header
}

// Reply is a canned HTTP answer.
type Reply struct {
	Status int
	Body   string
	Header http.Header
}

// FakeNode is an httptest compute node. Handlers default to a healthy node:
// operator "operator-1", spawn answers {"process":"P123"}, messages answer
// {"Output":{"data":"ok"}} and state reads answer {"ready":true}.
type FakeNode struct {
	Server *httptest.Server

	// Operator is returned by the address endpoint.
	Operator string
	// OnSpawn answers pushes without a process.
	OnSpawn func(fields map[string]string) Reply
	// OnMessage answers pushes targeting a process.
	OnMessage func(process string, fields map[string]string) Reply
	// OnState answers reads; n is the 1-based call count for that path.
	OnState func(path string, n int) Reply

	mu            sync.Mutex
	pushes        []Push
	operatorCalls int
	stateCalls    map[string]int
}

// NewFakeNode starts a FakeNode closed with the test.
func NewFakeNode(t *testing.T) *FakeNode {
	t.Helper()
	n := &FakeNode{
		Operator:   "operator-1",
		stateCalls: make(map[string]int),
	}
	n.Server = httptest.NewServer(http.HandlerFunc(n.serve))
	t.Cleanup(n.Server.Close)
	return n
}

// URL returns the node base URL.
func (n *FakeNode) URL() string {
	return n.Server.URL
}

// Pushes returns the push calls received so far.
func (n *FakeNode) Pushes() []Push {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Push, len(n.pushes))
	copy(out, n.pushes)
	return out
}

// OperatorCalls returns how often the address endpoint was hit.
func (n *FakeNode) OperatorCalls() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.operatorCalls
}

// StateCalls returns how often path was read.
func (n *FakeNode) StateCalls(path string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.stateCalls[path]
}

func (n *FakeNode) serve(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/~meta@1.0/info/address":
		n.mu.Lock()
		n.operatorCalls++
		op := n.Operator
		n.mu.Unlock()
		io.WriteString(w, op+"\n")

	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/push"):
		var fields map[string]string
		if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
			http.Error(w, "bad body", http.StatusBadRequest)
			return
		}
		process := strings.Trim(strings.TrimSuffix(r.URL.Path, "/push"), "/")

		n.mu.Lock()
		n.pushes = append(n.pushes, Push{Process: process, Fields: fields, Header: r.Header.Clone()})
		onSpawn, onMessage := n.OnSpawn, n.OnMessage
		n.mu.Unlock()

		var reply Reply
		switch {
		case process == "" && onSpawn != nil:
			reply = onSpawn(fields)
		case process == "":
			reply = Reply{Body: `{"process":"P123"}`}
		case onMessage != nil:
			reply = onMessage(process, fields)
		default:
			reply = Reply{Body: `{"Output":{"data":"ok"}}`}
		}
		write(w, reply)

	case r.Method == http.MethodGet:
		n.mu.Lock()
		n.stateCalls[r.URL.Path]++
		count := n.stateCalls[r.URL.Path]
		onState := n.OnState
		n.mu.Unlock()

		reply := Reply{Body: `{"ready":true}`}
		if onState != nil {
			reply = onState(r.URL.Path, count)
		}
		write(w, reply)

	default:
		http.NotFound(w, r)
	}
}

func write(w http.ResponseWriter, reply Reply) {
	for k, vs := range reply.Header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	status := reply.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	io.WriteString(w, reply.Body)
}
