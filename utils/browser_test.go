package utils

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"review-scraper/internal/types"
)

type devtoolsMessage struct {
	ID        int64           `json:"id,omitempty"`
	SessionID string          `json:"sessionId,omitempty"`
	Method    string          `json:"method,omitempty"`
	Params    json.RawMessage `json:"params,omitempty"`
	Result    interface{}     `json:"result,omitempty"`
}

// fakeDevTools speaks just enough of the DevTools protocol to host one blank tab
type fakeDevTools struct {
	server *httptest.Server
	title  string

	mu      sync.Mutex
	methods []string
}

func newFakeDevTools(t *testing.T, title string) *fakeDevTools {
	t.Helper()
	f := &fakeDevTools{title: title}
	f.server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeDevTools) URL() string {
	return "ws" + strings.TrimPrefix(f.server.URL, "http") + "/devtools/browser/fake"
}

func (f *fakeDevTools) Methods() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.methods...)
}

func (f *fakeDevTools) serve(w http.ResponseWriter, r *http.Request) {
	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		return
	}
	defer conn.Close()

	for {
		data, err := wsutil.ReadClientText(conn)
		if err != nil {
			return
		}
		var msg devtoolsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return
		}
		f.mu.Lock()
		f.methods = append(f.methods, msg.Method)
		f.mu.Unlock()

		reply, _ := json.Marshal(devtoolsMessage{ID: msg.ID, SessionID: msg.SessionID, Result: f.result(msg)})
		if err := wsutil.WriteServerText(conn, reply); err != nil {
			return
		}

		if msg.Method == "Target.setDiscoverTargets" && msg.SessionID == "" {
			event, _ := json.Marshal(map[string]interface{}{
				"method": "Target.targetCreated",
				"params": map[string]interface{}{
					"targetInfo": map[string]interface{}{
						"targetId": "tab-1", "type": "page", "title": "", "url": "about:blank",
						"attached": false, "canAccessOpener": false,
					},
				},
			})
			if err := wsutil.WriteServerText(conn, event); err != nil {
				return
			}
		}
	}
}

func (f *fakeDevTools) result(msg devtoolsMessage) interface{} {
	switch msg.Method {
	case "Target.attachToTarget":
		return map[string]string{"sessionId": "session-1"}
	case "Page.addScriptToEvaluateOnNewDocument":
		return map[string]string{"identifier": "1"}
	case "Runtime.evaluate":
		var params struct {
			Expression string `json:"expression"`
		}
		_ = json.Unmarshal(msg.Params, &params)
		switch params.Expression {
		case "self":
			return map[string]interface{}{"result": map[string]string{"type": "object", "className": "Window"}}
		case "document.title":
			return map[string]interface{}{"result": map[string]string{"type": "string", "value": f.title}}
		}
		return map[string]interface{}{"result": map[string]string{"type": "undefined"}}
	}
	return map[string]string{}
}

func TestOpenSession_RemoteBrowserOutlivesStartup(t *testing.T) {
	devtools := newFakeDevTools(t, "Acme Reviews")
	config := types.DefaultConfig()
	config.RemoteURL = devtools.URL()
	config.NavigationTimeout = 5 * time.Second
	config.ElementTimeout = 5 * time.Second
	ctx := context.Background()

	session, err := OpenSession(ctx, config, testLogger())
	require.NoError(t, err)
	assert.Contains(t, devtools.Methods(), "Emulation.setDeviceMetricsOverride")

	title, err := session.Title(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Acme Reviews", title)

	// a second read proves the tab stayed attached after the first one finished
	title, err = session.Title(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Acme Reviews", title)
	assert.NotContains(t, devtools.Methods(), "Target.detachFromTarget")
	assert.NotContains(t, devtools.Methods(), "Target.closeTarget")

	session.Close()
	assert.Contains(t, devtools.Methods(), "Target.closeTarget")
	assert.NotContains(t, devtools.Methods(), "Browser.close", "a remote browser outlives the session")
}

func TestOpenSession_StartupDeadline(t *testing.T) {
	// accepts the websocket but never answers
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, _, _, err := ws.UpgradeHTTP(r, w)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, err := wsutil.ReadClientText(conn); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	config := types.DefaultConfig()
	config.RemoteURL = "ws" + strings.TrimPrefix(server.URL, "http") + "/devtools/browser/silent"
	config.NavigationTimeout = 200 * time.Millisecond

	start := time.Now()
	_, err := OpenSession(context.Background(), config, testLogger())

	assert.ErrorIs(t, err, types.ErrSessionUnavailable)
	assert.Less(t, time.Since(start), 5*time.Second)
}
