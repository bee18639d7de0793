package realtime

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edufarm/edufarm/core"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

func newTestHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub(core.NewTestConfig(), nopLogger{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ns := strings.TrimPrefix(r.URL.Path, "/")
		if err := hub.Serve(w, r, ns, r.URL.Query().Get("user")); err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
		}
	}))
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server, ns, userID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/" + ns + "?user=" + userID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) core.Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	var evt core.Event
	require.NoError(t, json.Unmarshal(msg, &evt))
	return evt
}

func TestHub_PublishToUserNamespace(t *testing.T) {
	hub, srv := newTestHub(t)

	farmConn := dial(t, srv, core.ChannelFarm, "u1")
	petConn := dial(t, srv, core.ChannelPet, "u1")
	otherConn := dial(t, srv, core.ChannelFarm, "u2")

	for _, conn := range []*websocket.Conn{farmConn, petConn, otherConn} {
		assert.Equal(t, EventConnected, readEvent(t, conn).Type)
	}
	require.Eventually(t, func() bool {
		return hub.Count(core.ChannelFarm, "u1") == 1 && hub.Count(core.ChannelPet, "u1") == 1
	}, time.Second, 10*time.Millisecond)

	hub.Publish(core.NewEvent(core.ChannelFarm, "farm.planted", "u1", map[string]int{"coins": 3}))
	hub.Publish(core.NewEvent(core.ChannelPet, "pet.fed", "u1", nil))

	evt := readEvent(t, farmConn)
	assert.Equal(t, "farm.planted", evt.Type)
	assert.Equal(t, core.ChannelFarm, evt.Channel)
	assert.Equal(t, "u1", evt.UserID)
	assert.Equal(t, map[string]interface{}{"coins": float64(3)}, evt.Payload)

	assert.Equal(t, "pet.fed", readEvent(t, petConn).Type)

	// u2 got nothing
	require.NoError(t, otherConn.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err := otherConn.ReadMessage()
	assert.Error(t, err)
}

func TestHub_UnknownNamespace(t *testing.T) {
	_, srv := newTestHub(t)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/chat?user=u1"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHub_Close(t *testing.T) {
	hub, srv := newTestHub(t)
	conn := dial(t, srv, core.ChannelPet, "u1")
	assert.Equal(t, EventConnected, readEvent(t, conn).Type)

	hub.Close()
	assert.Equal(t, 0, hub.Count(core.ChannelPet, "u1"))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}

func TestHub_PublishWithoutClients(t *testing.T) {
	hub := NewHub(core.NewTestConfig(), nopLogger{})
	assert.NotPanics(t, func() {
		hub.Publish(core.NewEvent(core.ChannelFarm, "farm.rewarded", "nobody", nil))
	})
}

func TestHub_DropsSlowClient(t *testing.T) {
	conf := core.NewTestConfig()
	conf.Realtime.SendBuffer = 1
	hub := NewHub(conf, nopLogger{})

	// registered without a write pump, so nothing drains its buffer
	c := &client{hub: hub, namespace: core.ChannelFarm, userID: "u1", send: make(chan []byte, conf.Realtime.SendBuffer)}
	require.True(t, hub.register(c))
	assert.Equal(t, 1, hub.Count(core.ChannelFarm, "u1"))

	done := make(chan struct{})
	go func() {
		defer close(done)
		hub.Publish(core.NewEvent(core.ChannelFarm, "farm.planted", "u1", nil))
		hub.Publish(core.NewEvent(core.ChannelFarm, "farm.harvested", "u1", nil))
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a full client")
	}

	assert.Equal(t, 0, hub.Count(core.ChannelFarm, "u1"))
	var evt core.Event
	require.NoError(t, json.Unmarshal(<-c.send, &evt))
	assert.Equal(t, "farm.planted", evt.Type)
	_, ok := <-c.send
	assert.False(t, ok, "send is closed once dropped")

	assert.NotPanics(t, func() {
		hub.Publish(core.NewEvent(core.ChannelFarm, "farm.sold", "u1", nil))
		hub.Close()
	})
}
