package presence

import (
	"sync"
	"time"

	"github.com/leandro-lugaresi/hub"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/traPtitech/callsignal/event"
	"github.com/traPtitech/callsignal/signaling"
)

var onlineUsersCounter = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "callsignal",
	Name:      "online_users",
})

// OnlineCounter オンラインユーザーカウンター
//
// プレゼンスチャンネルの接続数をユーザーごとに数えます
type OnlineCounter struct {
	hub          *hub.Hub
	sub          hub.Subscription
	counters     map[signaling.UserID]*counter
	countersLock sync.Mutex
}

// NewOnlineCounter オンラインユーザーカウンターを生成します
func NewOnlineCounter(h *hub.Hub) *OnlineCounter {
	oc := &OnlineCounter{
		hub:      h,
		sub:      h.Subscribe(8, event.PresenceConnected, event.PresenceDisconnected),
		counters: map[signaling.UserID]*counter{},
	}
	go func() {
		for e := range oc.sub.Receiver {
			userID, ok := e.Fields["user_id"].(signaling.UserID)
			if !ok {
				continue
			}
			switch e.Topic() {
			case event.PresenceConnected:
				oc.inc(userID)
			case event.PresenceDisconnected:
				oc.dec(userID)
			}
		}
	}()
	return oc
}

// Close 購読を停止します
func (oc *OnlineCounter) Close() {
	oc.hub.Unsubscribe(oc.sub)
}

// inc 指定したユーザーのカウンタをインクリメントします
func (oc *OnlineCounter) inc(userID signaling.UserID) (toOnline bool) {
	oc.countersLock.Lock()
	c, ok := oc.counters[userID]
	if !ok {
		c = &counter{}
		oc.counters[userID] = c
	}
	oc.countersLock.Unlock()

	toOnline = c.inc()
	if toOnline {
		onlineUsersCounter.Inc()
		oc.hub.Publish(hub.Message{
			Name: event.UserOnline,
			Fields: hub.Fields{
				"user_id":  userID,
				"datetime": c.getLastUpdated(),
			},
		})
	}
	return
}

// dec 指定したユーザーのカウンタをデクリメントします
func (oc *OnlineCounter) dec(userID signaling.UserID) (toOffline bool) {
	oc.countersLock.Lock()
	c, ok := oc.counters[userID]
	oc.countersLock.Unlock()
	if !ok {
		return
	}

	toOffline = c.dec()
	if toOffline {
		onlineUsersCounter.Dec()
		oc.hub.Publish(hub.Message{
			Name: event.UserOffline,
			Fields: hub.Fields{
				"user_id":  userID,
				"datetime": c.getLastUpdated(),
			},
		})
	}
	return
}

// IsOnline 指定したユーザーがオンラインかどうかを取得します
func (oc *OnlineCounter) IsOnline(userID signaling.UserID) bool {
	oc.countersLock.Lock()
	c, ok := oc.counters[userID]
	oc.countersLock.Unlock()
	if !ok {
		return false
	}
	return c.isOnline()
}

// GetOnlineUserIDs オンラインなユーザーのIDの配列を取得します
func (oc *OnlineCounter) GetOnlineUserIDs() []signaling.UserID {
	oc.countersLock.Lock()
	users := make([]signaling.UserID, 0, len(oc.counters))
	for u, c := range oc.counters {
		if c.isOnline() {
			users = append(users, u)
		}
	}
	oc.countersLock.Unlock()
	return users
}

type counter struct {
	sync.RWMutex
	count       int
	lastUpdated time.Time
}

func (s *counter) isOnline() (r bool) {
	s.RLock()
	r = s.count > 0
	s.RUnlock()
	return
}

func (s *counter) inc() (toOnline bool) {
	s.Lock()
	s.count++
	s.lastUpdated = time.Now()
	if s.count == 1 {
		toOnline = true
	}
	s.Unlock()
	return
}

func (s *counter) dec() (toOffline bool) {
	s.Lock()
	if s.count > 0 {
		s.count--
		s.lastUpdated = time.Now()
		if s.count == 0 {
			toOffline = true
		}
	}
	s.Unlock()
	return
}

func (s *counter) getLastUpdated() (t time.Time) {
	s.RLock()
	t = s.lastUpdated
	s.RUnlock()
	return
}
